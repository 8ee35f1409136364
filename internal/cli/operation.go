package cli

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/asad/azctl/internal/azurite"
	"github.com/asad/azctl/internal/config"
	"github.com/asad/azctl/internal/logging"
)

// runOperation performs the single storage operation selected on the
// command line.
func runOperation(cmd *cobra.Command, v *viper.Viper) error {
	cfg := config.Load(v)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	logger.Debug("start",
		logging.String("version", Version),
		logging.String("azurite_url", cfg.AzuriteURL),
		logging.String("container", cfg.ContainerName),
	)

	storage, err := azurite.New(cfg.AzuriteURL, storageOptions(cfg), logger)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	flags := cmd.Flags()
	switch {
	case mustBool(flags.GetBool(flagCreateContainer)):
		return createContainer(ctx, storage, logger, cfg.ContainerName)
	case mustBool(flags.GetBool(flagDeleteContainer)):
		return deleteContainer(ctx, storage, logger, cfg.ContainerName)
	case mustBool(flags.GetBool(flagListBlobs)):
		return listBlobs(ctx, storage, logger, cfg.ContainerName)
	case flags.Changed(flagPutBlob):
		filePath, _ := flags.GetString(flagPutBlob)
		return putBlob(ctx, storage, logger, cfg.ContainerName, filePath, cfg.BlobName)
	default:
		return listContainers(ctx, storage, logger)
	}
}

// storageOptions maps the command line configuration onto facade options.
// A zero timeout on the command line means no bound.
func storageOptions(cfg *config.Config) azurite.Options {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = -1
	}
	return azurite.Options{
		Credential: azurite.Credential{AccountName: cfg.AccountName, AccountKey: cfg.AccountKey},
		Timeout:    timeout,
		PageSize:   int32(cfg.PageSize),
		Delimiter:  cfg.Delimiter,
		TLS:        cfg.TLS,
	}
}

func createContainer(ctx context.Context, storage *azurite.Storage, logger logging.Logger, name string) error {
	if err := storage.CreateContainer(ctx, name); err != nil {
		return err
	}
	path, err := storage.ContainerURL(ctx, name)
	if err != nil {
		return err
	}
	logger.Info("Container created", logging.String("container", name), logging.String("path", path))
	return nil
}

func deleteContainer(ctx context.Context, storage *azurite.Storage, logger logging.Logger, name string) error {
	if err := storage.DeleteContainer(ctx, name); err != nil {
		return err
	}
	logger.Info("Container deleted", logging.String("container", name))
	return nil
}

func listContainers(ctx context.Context, storage *azurite.Storage, logger logging.Logger) error {
	containers, err := storage.ListContainers(ctx)
	if err != nil {
		return err
	}
	if len(containers) == 0 {
		logger.Info("No containers found")
		return nil
	}
	for i, name := range containers {
		logger.Info("container", logging.Int("No", i+1), logging.String("container", name))
	}
	return nil
}

func listBlobs(ctx context.Context, storage *azurite.Storage, logger logging.Logger, containerName string) error {
	blobs, err := storage.ListBlobs(ctx, containerName)
	if err != nil {
		return err
	}
	if len(blobs) == 0 {
		logger.Info("No blobs found in container", logging.String("container", containerName))
		return nil
	}
	for i, b := range blobs {
		version := "N/A"
		if b.VersionID != nil {
			version = *b.VersionID
		}
		logger.Info("blob",
			logging.Int("No", i+1),
			logging.String("blob", b.Name),
			logging.String("version", version),
			logging.String("content_type", b.ContentType),
			logging.String("etag", b.ETag),
			logging.String("size", humanize.IBytes(uint64(b.Size))),
		)
	}
	return nil
}

// putBlob uploads filePath. An empty blobName keeps the file path as the
// blob name.
func putBlob(ctx context.Context, storage *azurite.Storage, logger logging.Logger, containerName, filePath, blobName string) error {
	if err := storage.PushBlobAs(ctx, containerName, filePath, blobName); err != nil {
		return err
	}
	fields := []logging.Field{
		logging.String("file", filePath),
		logging.String("container", containerName),
	}
	if blobName != "" {
		fields = append(fields, logging.String("blob", blobName))
	}
	logger.Info("File uploaded successfully", fields...)
	return nil
}

func mustBool(v bool, err error) bool {
	return err == nil && v
}
