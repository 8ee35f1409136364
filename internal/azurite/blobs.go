package azurite

import (
	"bytes"
	"context"
	"mime"
	"os"
	"path/filepath"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"

	"github.com/asad/azctl/internal/logging"
)

// Blob is a blob as observed in a listing.
type Blob struct {
	Name        string
	ContentType string
	ETag        string
	VersionID   *string
	Size        int64
}

func blobFromItem(item *container.BlobItem) Blob {
	b := Blob{
		Name:      deref(item.Name),
		VersionID: item.VersionID,
	}
	if p := item.Properties; p != nil {
		b.ContentType = deref(p.ContentType)
		if p.ETag != nil {
			b.ETag = string(*p.ETag)
		}
		if p.ContentLength != nil {
			b.Size = *p.ContentLength
		}
	}
	return b
}

// ListBlobs returns every blob in containerName in backend order. Prefix
// entries of a hierarchical listing are skipped. A failing page request
// fails the whole listing.
func (s *Storage) ListBlobs(ctx context.Context, containerName string) ([]Blob, error) {
	var blobs []Blob
	err := s.bridge.run(ctx, "list_blobs", func(ctx context.Context) error {
		client := s.client.ServiceClient().NewContainerClient(containerName)
		if s.delimiter != "" {
			return s.listHierarchy(ctx, client, containerName, &blobs)
		}
		pager := client.NewListBlobsFlatPager(&container.ListBlobsFlatOptions{
			MaxResults: s.maxResults(),
		})
		for page := 1; pager.More(); page++ {
			resp, err := pager.NextPage(ctx)
			if err != nil {
				return err
			}
			if resp.Segment == nil {
				continue
			}
			for _, item := range resp.Segment.BlobItems {
				if item == nil || item.Name == nil {
					continue
				}
				blobs = append(blobs, blobFromItem(item))
			}
			s.logger.Debug("blob page fetched",
				logging.String("container", containerName),
				logging.Int("page", page),
				logging.Int("blobs", len(resp.Segment.BlobItems)),
			)
		}
		return nil
	})
	if err != nil {
		return nil, internalf(err, "list blobs in container %q", containerName)
	}
	return blobs, nil
}

func (s *Storage) listHierarchy(ctx context.Context, client *container.Client, containerName string, blobs *[]Blob) error {
	pager := client.NewListBlobsHierarchyPager(s.delimiter, &container.ListBlobsHierarchyOptions{
		MaxResults: s.maxResults(),
	})
	for page := 1; pager.More(); page++ {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return err
		}
		if resp.Segment == nil {
			continue
		}
		for _, item := range resp.Segment.BlobItems {
			if item == nil || item.Name == nil {
				continue
			}
			*blobs = append(*blobs, blobFromItem(item))
		}
		for _, prefix := range resp.Segment.BlobPrefixes {
			if prefix != nil {
				s.logger.Debug("skipping prefix entry", logging.String("prefix", deref(prefix.Name)))
			}
		}
		s.logger.Debug("blob page fetched",
			logging.String("container", containerName),
			logging.Int("page", page),
			logging.Int("blobs", len(resp.Segment.BlobItems)),
			logging.Int("prefixes", len(resp.Segment.BlobPrefixes)),
		)
	}
	return nil
}

// PushBlob uploads the file at filePath into containerName, using filePath
// itself as the blob name.
func (s *Storage) PushBlob(ctx context.Context, containerName, filePath string) error {
	return s.PushBlobAs(ctx, containerName, filePath, filePath)
}

// PushBlobAs uploads the file at filePath as blobName. The whole file is
// read into memory and sent in a single Put Blob request. An empty blobName
// falls back to filePath.
func (s *Storage) PushBlobAs(ctx context.Context, containerName, filePath, blobName string) error {
	if blobName == "" {
		blobName = filePath
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return internalf(err, "read %s", filePath)
	}

	opts := &blockblob.UploadOptions{}
	if ct := mime.TypeByExtension(filepath.Ext(filePath)); ct != "" {
		opts.HTTPHeaders = &blob.HTTPHeaders{BlobContentType: to.Ptr(ct)}
	}

	err = s.bridge.run(ctx, "push_blob", func(ctx context.Context) error {
		client := s.client.ServiceClient().NewContainerClient(containerName).NewBlockBlobClient(blobName)
		_, err := client.Upload(ctx, streaming.NopCloser(bytes.NewReader(data)), opts)
		return err
	})
	if err != nil {
		return internalf(err, "upload %s to container %q", blobName, containerName)
	}
	s.logger.Debug("blob uploaded",
		logging.String("container", containerName),
		logging.String("blob", blobName),
		logging.Int("size", len(data)),
	)
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
