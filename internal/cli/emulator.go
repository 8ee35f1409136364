package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/asad/azctl/internal/config"
	"github.com/asad/azctl/internal/emulator"
	"github.com/asad/azctl/internal/logging"
)

// newEmulatorCmd groups the commands of the built-in emulator.
func newEmulatorCmd(v *viper.Viper) *cobra.Command {
	emulatorCmd := &cobra.Command{
		Use:   "emulator",
		Short: "Run the built-in Blob storage emulator",
	}

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the emulator server",
		Long: `Start a local Blob storage emulator that serves the container and blob
operations azctl uses, with Azurite-style addressing (http://host:port/<account>).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEmulator(cmd.Context(), v)
		},
	}
	flags := startCmd.Flags()
	flags.Int(config.KeyPort, config.DefaultEmulatorPort, "HTTP port to listen on")
	flags.String(config.KeyDataDir, config.DefaultDataDir, "directory where blob data is stored")
	bindFlags(v, flags, config.KeyPort, config.KeyDataDir)

	emulatorCmd.AddCommand(startCmd)
	return emulatorCmd
}

// runEmulator initializes and starts the HTTP server, returning once it has
// shut down after SIGINT or SIGTERM.
func runEmulator(ctx context.Context, v *viper.Viper) error {
	cfg := config.LoadEmulator(v)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("starting emulator",
		logging.String("version", Version),
		logging.Int("port", cfg.Port),
		logging.String("data_dir", cfg.DataDir),
		logging.String("log_level", cfg.LogLevel),
	)

	store, err := emulator.NewFileBlobStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to initialize blob store: %w", err)
	}
	router := emulator.NewRouter(emulator.NewBlobService(store, logger), logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", logging.String("address", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
