package emulator

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Store errors. Handlers map them onto Blob service error codes.
var (
	ErrContainerExists   = errors.New("container already exists")
	ErrContainerNotFound = errors.New("container not found")
	ErrBlobNotFound      = errors.New("blob not found")
	ErrInvalidName       = errors.New("invalid resource name")
)

// BlobStore defines the interface for blob storage operations.
// This abstraction allows for different storage backends to be swapped in
// without changing the service implementation.
type BlobStore interface {
	// CreateContainer creates a new container with the given name in the specified account.
	CreateContainer(ctx context.Context, account, containerName string) (ContainerInfo, error)

	// DeleteContainer deletes a container and all its blobs.
	DeleteContainer(ctx context.Context, account, containerName string) error

	// ContainerExists checks if a container exists.
	ContainerExists(ctx context.Context, account, containerName string) (bool, error)

	// ListContainers returns one page of the account's containers in name order.
	ListContainers(ctx context.Context, account string, opts ListOptions) (ContainerPage, error)

	// PutBlob stores a blob, replacing any blob of the same name.
	PutBlob(ctx context.Context, account, containerName, blobName string, content []byte, contentType string, metadata map[string]string) (BlobInfo, error)

	// GetBlob retrieves a blob from storage.
	GetBlob(ctx context.Context, account, containerName, blobName string) (*Blob, error)

	// DeleteBlob removes a blob from storage.
	DeleteBlob(ctx context.Context, account, containerName, blobName string) error

	// ListBlobs returns one page of the container's blobs in name order.
	ListBlobs(ctx context.Context, account, containerName string, opts ListOptions) (BlobPage, error)
}

type containerEntry struct {
	info  ContainerInfo
	blobs map[string]BlobInfo
}

// FileBlobStore is a file-based implementation of BlobStore.
// Blob content lives in <baseDir>/blob/<account>/<container>/<escaped blob name>;
// properties are kept in an in-memory index rebuilt from disk on start.
type FileBlobStore struct {
	baseDir string
	mu      sync.RWMutex
	seq     uint32
	// key: account/container
	containers map[string]*containerEntry
}

// NewFileBlobStore creates a new file-based blob store and indexes any data
// already present under baseDir.
func NewFileBlobStore(baseDir string) (*FileBlobStore, error) {
	blobDir := filepath.Join(baseDir, "blob")
	if err := os.MkdirAll(blobDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}

	s := &FileBlobStore{
		baseDir:    blobDir,
		containers: make(map[string]*containerEntry),
	}
	if err := s.loadIndex(); err != nil {
		return nil, fmt.Errorf("failed to index blob directory: %w", err)
	}
	return s, nil
}

// loadIndex walks <baseDir>/<account>/<container>/<blob> once at start.
// Content types are not persisted and come back as the default.
func (s *FileBlobStore) loadIndex() error {
	accounts, err := os.ReadDir(s.baseDir)
	if err != nil {
		return err
	}
	for _, acct := range accounts {
		if !acct.IsDir() {
			continue
		}
		containers, err := os.ReadDir(filepath.Join(s.baseDir, acct.Name()))
		if err != nil {
			return err
		}
		for _, c := range containers {
			if !c.IsDir() {
				continue
			}
			info, err := c.Info()
			if err != nil {
				return err
			}
			entry := &containerEntry{
				info: ContainerInfo{
					Name:         c.Name(),
					ETag:         s.nextETag(info.ModTime()),
					LastModified: info.ModTime().UTC(),
				},
				blobs: make(map[string]BlobInfo),
			}
			files, err := os.ReadDir(s.containerPath(acct.Name(), c.Name()))
			if err != nil {
				return err
			}
			for _, f := range files {
				if f.IsDir() {
					continue
				}
				name, err := url.PathUnescape(f.Name())
				if err != nil {
					continue
				}
				fi, err := f.Info()
				if err != nil {
					return err
				}
				entry.blobs[name] = BlobInfo{
					Name:         name,
					ContentType:  defaultContentType,
					ETag:         s.nextETag(fi.ModTime()),
					Size:         fi.Size(),
					LastModified: fi.ModTime().UTC(),
					Metadata:     map[string]string{},
				}
			}
			s.containers[s.containerKey(acct.Name(), c.Name())] = entry
		}
	}
	return nil
}

// containerPath returns the filesystem path for a container.
func (s *FileBlobStore) containerPath(account, containerName string) string {
	return filepath.Join(s.baseDir, account, containerName)
}

// blobPath returns the filesystem path for a blob. Names are escaped so that
// every blob is a single file directly under its container directory.
func (s *FileBlobStore) blobPath(account, containerName, blobName string) string {
	return filepath.Join(s.containerPath(account, containerName), url.PathEscape(blobName))
}

// checkName rejects names that would not map to a single directory entry.
func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	return nil
}

// containerKey returns a unique key for a container.
func (s *FileBlobStore) containerKey(account, containerName string) string {
	return fmt.Sprintf("%s/%s", account, containerName)
}

// nextETag must be called with mu held or before the store is shared.
func (s *FileBlobStore) nextETag(t time.Time) string {
	s.seq++
	return fmt.Sprintf("\"0x%X%04X\"", t.UnixNano(), s.seq&0xFFFF)
}

func (s *FileBlobStore) CreateContainer(ctx context.Context, account, containerName string) (ContainerInfo, error) {
	if err := checkName(account); err != nil {
		return ContainerInfo{}, err
	}
	if err := checkName(containerName); err != nil {
		return ContainerInfo{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.containerKey(account, containerName)
	if _, ok := s.containers[key]; ok {
		return ContainerInfo{}, fmt.Errorf("container %s: %w", containerName, ErrContainerExists)
	}

	path := s.containerPath(account, containerName)
	if err := os.MkdirAll(path, 0755); err != nil {
		return ContainerInfo{}, fmt.Errorf("failed to create container directory: %w", err)
	}

	now := time.Now().UTC()
	entry := &containerEntry{
		info: ContainerInfo{
			Name:         containerName,
			ETag:         s.nextETag(now),
			LastModified: now,
		},
		blobs: make(map[string]BlobInfo),
	}
	s.containers[key] = entry
	return entry.info, nil
}

func (s *FileBlobStore) DeleteContainer(ctx context.Context, account, containerName string) error {
	if err := checkName(containerName); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.containerKey(account, containerName)
	if _, ok := s.containers[key]; !ok {
		return fmt.Errorf("container %s: %w", containerName, ErrContainerNotFound)
	}

	path := s.containerPath(account, containerName)
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to delete container directory: %w", err)
	}

	delete(s.containers, key)
	return nil
}

func (s *FileBlobStore) ContainerExists(ctx context.Context, account, containerName string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.containers[s.containerKey(account, containerName)]
	return ok, nil
}

func (s *FileBlobStore) ListContainers(ctx context.Context, account string, opts ListOptions) (ContainerPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acctPrefix := account + "/"
	var names []string
	for key, entry := range s.containers {
		if strings.HasPrefix(key, acctPrefix) && strings.HasPrefix(entry.info.Name, opts.Prefix) {
			names = append(names, entry.info.Name)
		}
	}
	sort.Strings(names)

	var page ContainerPage
	limit := pageLimit(opts.MaxResults)
	for _, name := range names {
		if name < opts.Marker {
			continue
		}
		if len(page.Containers) == limit {
			page.NextMarker = name
			break
		}
		page.Containers = append(page.Containers, s.containers[acctPrefix+name].info)
	}
	return page, nil
}

func (s *FileBlobStore) PutBlob(ctx context.Context, account, containerName, blobName string, content []byte, contentType string, metadata map[string]string) (BlobInfo, error) {
	// Escaping turns separators into %2F, so only the dot names remain unsafe.
	if blobName == "" || blobName == "." || blobName == ".." {
		return BlobInfo{}, fmt.Errorf("blob %q: %w", blobName, ErrInvalidName)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.containers[s.containerKey(account, containerName)]
	if !ok {
		return BlobInfo{}, fmt.Errorf("container %s: %w", containerName, ErrContainerNotFound)
	}

	if err := os.WriteFile(s.blobPath(account, containerName, blobName), content, 0644); err != nil {
		return BlobInfo{}, fmt.Errorf("failed to write blob: %w", err)
	}

	if contentType == "" {
		contentType = defaultContentType
	}
	if metadata == nil {
		metadata = map[string]string{}
	}
	now := time.Now().UTC()
	info := BlobInfo{
		Name:         blobName,
		ContentType:  contentType,
		ETag:         s.nextETag(now),
		Size:         int64(len(content)),
		LastModified: now,
		Metadata:     metadata,
	}
	entry.blobs[blobName] = info
	return info, nil
}

func (s *FileBlobStore) GetBlob(ctx context.Context, account, containerName, blobName string) (*Blob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.containers[s.containerKey(account, containerName)]
	if !ok {
		return nil, fmt.Errorf("container %s: %w", containerName, ErrContainerNotFound)
	}
	info, ok := entry.blobs[blobName]
	if !ok {
		return nil, fmt.Errorf("blob %s: %w", blobName, ErrBlobNotFound)
	}

	content, err := os.ReadFile(s.blobPath(account, containerName, blobName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("blob %s: %w", blobName, ErrBlobNotFound)
		}
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}

	return &Blob{BlobInfo: info, Content: content}, nil
}

func (s *FileBlobStore) DeleteBlob(ctx context.Context, account, containerName, blobName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.containers[s.containerKey(account, containerName)]
	if !ok {
		return fmt.Errorf("container %s: %w", containerName, ErrContainerNotFound)
	}
	if _, ok := entry.blobs[blobName]; !ok {
		return fmt.Errorf("blob %s: %w", blobName, ErrBlobNotFound)
	}

	if err := os.Remove(s.blobPath(account, containerName, blobName)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob: %w", err)
	}

	delete(entry.blobs, blobName)
	return nil
}

// ListBlobs pages over the container's blobs in name order. With a
// delimiter, names continuing past the delimiter collapse into one prefix
// entry that occupies a single slot in the page.
func (s *FileBlobStore) ListBlobs(ctx context.Context, account, containerName string, opts ListOptions) (BlobPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.containers[s.containerKey(account, containerName)]
	if !ok {
		return BlobPage{}, fmt.Errorf("container %s: %w", containerName, ErrContainerNotFound)
	}

	names := make([]string, 0, len(entry.blobs))
	for name := range entry.blobs {
		if strings.HasPrefix(name, opts.Prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var page BlobPage
	limit := pageLimit(opts.MaxResults)
	taken := 0
	lastPrefix := ""
	for _, name := range names {
		entryName, isPrefix := name, false
		if opts.Delimiter != "" {
			rest := name[len(opts.Prefix):]
			if i := strings.Index(rest, opts.Delimiter); i >= 0 {
				entryName = opts.Prefix + rest[:i+len(opts.Delimiter)]
				isPrefix = true
			}
		}
		if isPrefix && entryName == lastPrefix {
			continue
		}
		if entryName < opts.Marker {
			continue
		}
		if taken == limit {
			page.NextMarker = entryName
			break
		}
		taken++
		if isPrefix {
			lastPrefix = entryName
			page.Prefixes = append(page.Prefixes, entryName)
		} else {
			page.Blobs = append(page.Blobs, entry.blobs[name])
		}
	}
	return page, nil
}

func pageLimit(maxResults int) int {
	if maxResults <= 0 || maxResults > DefaultMaxResults {
		return DefaultMaxResults
	}
	return maxResults
}

const defaultContentType = "application/octet-stream"
