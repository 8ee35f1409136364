package emulator

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/asad/azctl/internal/logging"
)

// APIVersion is reported in x-ms-version when the client sends none.
const APIVersion = "2025-01-05"

// NewRouter builds the emulator's HTTP handler: the middleware stack, a
// health endpoint and the blob service routes mounted at the root, the
// way Azurite addresses accounts (http://host:port/<account>/...).
func NewRouter(service *BlobService, logger logging.Logger) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(azureHeadersMiddleware)

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","service":"azctl-emulator"}`))
	})

	logger.Info("registering service routes",
		logging.String("service", service.Name()),
	)
	service.RegisterRoutes(r)

	return r
}

// azureHeadersMiddleware stamps the response headers every Blob service
// response carries.
func azureHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("x-ms-request-id", uuid.NewString())
		version := r.Header.Get("x-ms-version")
		if version == "" {
			version = APIVersion
		}
		h.Set("x-ms-version", version)
		if id := r.Header.Get("x-ms-client-request-id"); id != "" {
			h.Set("x-ms-client-request-id", id)
		}
		h.Set("Date", time.Now().UTC().Format(http.TimeFormat))
		next.ServeHTTP(w, r)
	})
}

// requestLoggingMiddleware creates middleware that logs HTTP requests with
// structured logging including method, path, status code, and latency.
func requestLoggingMiddleware(logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status code
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Debug("request completed",
				logging.String("method", r.Method),
				logging.String("path", r.URL.Path),
				logging.String("query", r.URL.RawQuery),
				logging.Int("status", ww.Status()),
				logging.Duration("latency_ms", time.Since(start).Milliseconds()),
				logging.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
