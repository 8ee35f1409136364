package emulator

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/asad/azctl/internal/logging"
)

// BlobService implements the subset of the Azure Blob Storage REST API used
// by azctl, with path-style addressing (/{account}/{container}/{blob}).
type BlobService struct {
	store  BlobStore
	logger logging.Logger
}

// NewBlobService creates a new blob service instance.
func NewBlobService(store BlobStore, logger logging.Logger) *BlobService {
	return &BlobService{
		store:  store,
		logger: logger,
	}
}

// Name returns the service identifier.
func (s *BlobService) Name() string {
	return "blob"
}

// RegisterRoutes sets up HTTP routes for blob operations:
//   - GET /{account}?comp=list - List containers
//   - PUT /{account}/{container}?restype=container - Create container
//   - DELETE /{account}/{container}?restype=container - Delete container
//   - GET /{account}/{container}?restype=container&comp=list - List blobs
//   - PUT /{account}/{container}/{blob} - Put blob
//   - GET /{account}/{container}/{blob} - Get blob
//   - DELETE /{account}/{container}/{blob} - Delete blob
func (s *BlobService) RegisterRoutes(router chi.Router) {
	router.Get("/{account}", s.handleListContainers)
	router.Get("/{account}/", s.handleListContainers)

	router.Put("/{account}/{container}", s.handleCreateContainer)
	router.Delete("/{account}/{container}", s.handleDeleteContainer)
	router.Get("/{account}/{container}", s.handleListBlobs)

	router.Put("/{account}/{container}/*", s.handlePutBlob)
	router.Get("/{account}/{container}/*", s.handleGetBlob)
	router.Delete("/{account}/{container}/*", s.handleDeleteBlob)
}

// handleListContainers handles GET /{account}?comp=list.
func (s *BlobService) handleListContainers(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	q := r.URL.Query()
	if q.Get("comp") != "list" {
		s.writeError(w, http.StatusBadRequest, "InvalidQueryParameterValue", "Value for one of the query parameters specified in the request URI is invalid.")
		return
	}

	opts, ok := s.listOptions(w, q)
	if !ok {
		return
	}
	page, err := s.store.ListContainers(r.Context(), account, opts)
	if err != nil {
		s.logger.Error("failed to list containers",
			logging.String("account", account),
			logging.ErrorField(err),
		)
		s.writeError(w, http.StatusInternalServerError, "InternalError", "Failed to list containers")
		return
	}

	result := containerEnumerationResults{
		ServiceEndpoint: serviceEndpoint(r, account),
		Prefix:          opts.Prefix,
		Marker:          opts.Marker,
		MaxResults:      opts.MaxResults,
		NextMarker:      page.NextMarker,
	}
	for _, c := range page.Containers {
		result.Containers = append(result.Containers, containerXML{
			Name: c.Name,
			Properties: containerPropertiesXML{
				LastModified: c.LastModified.Format(http.TimeFormat),
				ETag:         c.ETag,
			},
		})
	}
	s.writeXML(w, result)
}

// handleCreateContainer handles PUT /{account}/{container}?restype=container.
func (s *BlobService) handleCreateContainer(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	containerName, ok := s.containerName(w, r)
	if !ok {
		return
	}
	if r.URL.Query().Get("restype") != "container" {
		s.writeError(w, http.StatusBadRequest, "InvalidQueryParameterValue", "restype=container is required")
		return
	}

	info, err := s.store.CreateContainer(r.Context(), account, containerName)
	if err != nil {
		if errors.Is(err, ErrContainerExists) {
			s.writeError(w, http.StatusConflict, "ContainerAlreadyExists", "The specified container already exists.")
		} else {
			s.logger.Error("failed to create container",
				logging.String("account", account),
				logging.String("container", containerName),
				logging.ErrorField(err),
			)
			s.writeError(w, http.StatusInternalServerError, "InternalError", "Failed to create container")
		}
		return
	}

	s.logger.Info("container created",
		logging.String("account", account),
		logging.String("container", containerName),
	)
	w.Header().Set("ETag", info.ETag)
	w.Header().Set("Last-Modified", info.LastModified.Format(http.TimeFormat))
	w.WriteHeader(http.StatusCreated)
}

// handleDeleteContainer handles DELETE /{account}/{container}?restype=container.
func (s *BlobService) handleDeleteContainer(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	containerName, ok := s.containerName(w, r)
	if !ok {
		return
	}
	if r.URL.Query().Get("restype") != "container" {
		s.writeError(w, http.StatusBadRequest, "InvalidQueryParameterValue", "restype=container is required")
		return
	}

	err := s.store.DeleteContainer(r.Context(), account, containerName)
	if err != nil {
		if errors.Is(err, ErrContainerNotFound) {
			s.writeError(w, http.StatusNotFound, "ContainerNotFound", "The specified container does not exist.")
		} else {
			s.logger.Error("failed to delete container",
				logging.String("account", account),
				logging.String("container", containerName),
				logging.ErrorField(err),
			)
			s.writeError(w, http.StatusInternalServerError, "InternalError", "Failed to delete container")
		}
		return
	}

	s.logger.Info("container deleted",
		logging.String("account", account),
		logging.String("container", containerName),
	)
	w.WriteHeader(http.StatusAccepted)
}

// handleListBlobs handles GET /{account}/{container}?restype=container&comp=list.
func (s *BlobService) handleListBlobs(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	containerName, ok := s.containerName(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	if q.Get("restype") != "container" || q.Get("comp") != "list" {
		s.writeError(w, http.StatusBadRequest, "InvalidQueryParameterValue", "restype=container&comp=list is required")
		return
	}

	opts, ok := s.listOptions(w, q)
	if !ok {
		return
	}
	opts.Delimiter = q.Get("delimiter")
	page, err := s.store.ListBlobs(r.Context(), account, containerName, opts)
	if err != nil {
		if errors.Is(err, ErrContainerNotFound) {
			s.writeError(w, http.StatusNotFound, "ContainerNotFound", "The specified container does not exist.")
		} else {
			s.logger.Error("failed to list blobs",
				logging.String("account", account),
				logging.String("container", containerName),
				logging.ErrorField(err),
			)
			s.writeError(w, http.StatusInternalServerError, "InternalError", "Failed to list blobs")
		}
		return
	}

	result := blobEnumerationResults{
		ServiceEndpoint: serviceEndpoint(r, account),
		ContainerName:   containerName,
		Prefix:          opts.Prefix,
		Marker:          opts.Marker,
		MaxResults:      opts.MaxResults,
		Delimiter:       opts.Delimiter,
		NextMarker:      page.NextMarker,
	}
	for _, b := range page.Blobs {
		result.Blobs.Blobs = append(result.Blobs.Blobs, blobXML{
			Name: b.Name,
			Properties: blobPropertiesXML{
				LastModified:  b.LastModified.Format(http.TimeFormat),
				ETag:          b.ETag,
				ContentLength: b.Size,
				ContentType:   b.ContentType,
				BlobType:      "BlockBlob",
			},
		})
	}
	for _, p := range page.Prefixes {
		result.Blobs.Prefixes = append(result.Blobs.Prefixes, blobPrefixXML{Name: p})
	}
	s.writeXML(w, result)
}

// handlePutBlob handles PUT /{account}/{container}/{blob} (Put Blob).
func (s *BlobService) handlePutBlob(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	containerName, ok := s.containerName(w, r)
	if !ok {
		return
	}
	blobName, ok := s.blobName(w, r)
	if !ok {
		return
	}
	if bt := r.Header.Get("x-ms-blob-type"); bt != "" && bt != "BlockBlob" {
		s.writeError(w, http.StatusBadRequest, "UnsupportedHeader", fmt.Sprintf("Blob type %s is not supported.", bt))
		return
	}

	content, err := io.ReadAll(r.Body)
	if err != nil {
		s.logger.Error("failed to read request body",
			logging.ErrorField(err),
		)
		s.writeError(w, http.StatusBadRequest, "InvalidInput", "Failed to read request body")
		return
	}
	defer r.Body.Close()

	// The SDKs send the blob's content type in x-ms-blob-content-type; plain
	// clients use Content-Type.
	contentType := r.Header.Get("x-ms-blob-content-type")
	if contentType == "" {
		contentType = r.Header.Get("Content-Type")
	}

	// Extract metadata from headers (Azure uses x-ms-meta-* prefix)
	metadata := make(map[string]string)
	for key, values := range r.Header {
		if strings.HasPrefix(strings.ToLower(key), "x-ms-meta-") {
			metaKey := strings.TrimPrefix(strings.ToLower(key), "x-ms-meta-")
			if len(values) > 0 {
				metadata[metaKey] = values[0]
			}
		}
	}

	info, err := s.store.PutBlob(r.Context(), account, containerName, blobName, content, contentType, metadata)
	if err != nil {
		switch {
		case errors.Is(err, ErrContainerNotFound):
			s.writeError(w, http.StatusNotFound, "ContainerNotFound", "The specified container does not exist.")
			return
		case errors.Is(err, ErrInvalidName):
			s.writeError(w, http.StatusBadRequest, "InvalidResourceName", "The specified resource name contains invalid characters.")
			return
		}
		s.logger.Error("failed to put blob",
			logging.String("account", account),
			logging.String("container", containerName),
			logging.String("blob", blobName),
			logging.ErrorField(err),
		)
		s.writeError(w, http.StatusInternalServerError, "InternalError", "Failed to upload blob")
		return
	}

	s.logger.Info("blob uploaded",
		logging.String("account", account),
		logging.String("container", containerName),
		logging.String("blob", blobName),
		logging.Int("size", len(content)),
	)
	w.Header().Set("ETag", info.ETag)
	w.Header().Set("Last-Modified", info.LastModified.Format(http.TimeFormat))
	w.Header().Set("x-ms-request-server-encrypted", "false")
	w.WriteHeader(http.StatusCreated)
}

// handleGetBlob handles GET /{account}/{container}/{blob} to download a blob.
func (s *BlobService) handleGetBlob(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	containerName, ok := s.containerName(w, r)
	if !ok {
		return
	}
	blobName, ok := s.blobName(w, r)
	if !ok {
		return
	}

	blob, err := s.store.GetBlob(r.Context(), account, containerName, blobName)
	if err != nil {
		s.writeBlobError(w, err, "get blob", account, containerName, blobName)
		return
	}

	w.Header().Set("Content-Type", blob.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(blob.Size, 10))
	w.Header().Set("Last-Modified", blob.LastModified.Format(http.TimeFormat))
	w.Header().Set("ETag", blob.ETag)
	w.Header().Set("x-ms-blob-type", "BlockBlob")
	for key, value := range blob.Metadata {
		w.Header().Set("x-ms-meta-"+key, value)
	}

	s.logger.Info("blob downloaded",
		logging.String("account", account),
		logging.String("container", containerName),
		logging.String("blob", blobName),
		logging.Int64("size", blob.Size),
	)

	w.WriteHeader(http.StatusOK)
	w.Write(blob.Content)
}

// handleDeleteBlob handles DELETE /{account}/{container}/{blob} to delete a blob.
func (s *BlobService) handleDeleteBlob(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	containerName, ok := s.containerName(w, r)
	if !ok {
		return
	}
	blobName, ok := s.blobName(w, r)
	if !ok {
		return
	}

	err := s.store.DeleteBlob(r.Context(), account, containerName, blobName)
	if err != nil {
		s.writeBlobError(w, err, "delete blob", account, containerName, blobName)
		return
	}

	s.logger.Info("blob deleted",
		logging.String("account", account),
		logging.String("container", containerName),
		logging.String("blob", blobName),
	)
	w.WriteHeader(http.StatusAccepted)
}

// containerName returns the container segment of the path, rejecting names
// outside the Blob service naming rules with 400 InvalidResourceName.
func (s *BlobService) containerName(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := chi.URLParam(r, "container")
	if !ValidContainerName(name) {
		s.writeError(w, http.StatusBadRequest, "InvalidResourceName", "The specified resource name contains invalid characters.")
		return "", false
	}
	return name, true
}

// ValidContainerName reports whether name is 3 to 63 characters of lowercase
// letters, digits and hyphens, starting and ending with a letter or digit,
// with no two hyphens in a row.
func ValidContainerName(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		case c == '-':
			if i == 0 || i == len(name)-1 || name[i-1] == '-' {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// blobName returns the unescaped blob name. chi matches on the raw path when
// the request path carries escapes (e.g. %2F inside a name).
func (s *BlobService) blobName(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := chi.URLParam(r, "*")
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(name)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "InvalidUri", "The requested URI does not represent any resource on the server.")
			return "", false
		}
		name = unescaped
	}
	if name == "" {
		s.writeError(w, http.StatusBadRequest, "InvalidUri", "Blob name is required")
		return "", false
	}
	return name, true
}

func (s *BlobService) listOptions(w http.ResponseWriter, q url.Values) (ListOptions, bool) {
	opts := ListOptions{
		Prefix: q.Get("prefix"),
		Marker: q.Get("marker"),
	}
	if v := q.Get("maxresults"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "OutOfRangeQueryParameterValue", "maxresults must be a positive integer")
			return ListOptions{}, false
		}
		opts.MaxResults = n
	}
	return opts, true
}

func (s *BlobService) writeBlobError(w http.ResponseWriter, err error, op, account, containerName, blobName string) {
	switch {
	case errors.Is(err, ErrContainerNotFound):
		s.writeError(w, http.StatusNotFound, "ContainerNotFound", "The specified container does not exist.")
	case errors.Is(err, ErrBlobNotFound):
		s.writeError(w, http.StatusNotFound, "BlobNotFound", "The specified blob does not exist.")
	default:
		s.logger.Error("failed to "+op,
			logging.String("account", account),
			logging.String("container", containerName),
			logging.String("blob", blobName),
			logging.ErrorField(err),
		)
		s.writeError(w, http.StatusInternalServerError, "InternalError", "Failed to "+op)
	}
}

func (s *BlobService) writeXML(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, xml.Header)
	if err := xml.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response",
			logging.ErrorField(err),
		)
	}
}

// writeError writes an error response in the Blob service format: an XML
// <Error> body plus the x-ms-error-code header.
func (s *BlobService) writeError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set("x-ms-error-code", code)
	w.WriteHeader(statusCode)
	io.WriteString(w, xml.Header)
	xml.NewEncoder(w).Encode(errorXML{
		Code:    code,
		Message: fmt.Sprintf("%s\nTime:%s", message, time.Now().UTC().Format(time.RFC3339Nano)),
	})
}

func serviceEndpoint(r *http.Request, account string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/", scheme, r.Host, account)
}
