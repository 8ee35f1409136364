package emulator

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/asad/azctl/internal/logging"
)

// setupTestService creates a test blob service with a temporary store.
func setupTestService(t *testing.T) (http.Handler, *FileBlobStore) {
	t.Helper()

	store, err := NewFileBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create blob store: %v", err)
	}

	service := NewBlobService(store, logging.NewNop())
	return NewRouter(service, logging.NewNop()), store
}

func do(t *testing.T, h http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// TestBlobService_CreateContainer tests container creation.
func TestBlobService_CreateContainer(t *testing.T) {
	router, store := setupTestService(t)

	w := do(t, router, "PUT", "/devstoreaccount1/testcontainer?restype=container", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, w.Code)
	}
	if w.Header().Get("ETag") == "" {
		t.Error("expected ETag header")
	}
	if w.Header().Get("x-ms-request-id") == "" {
		t.Error("expected x-ms-request-id header")
	}

	exists, err := store.ContainerExists(context.Background(), "devstoreaccount1", "testcontainer")
	if err != nil {
		t.Fatalf("failed to check container existence: %v", err)
	}
	if !exists {
		t.Error("container should exist after creation")
	}

	w = do(t, router, "PUT", "/devstoreaccount1/testcontainer?restype=container", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("expected status %d, got %d", http.StatusConflict, w.Code)
	}
	if code := w.Header().Get("x-ms-error-code"); code != "ContainerAlreadyExists" {
		t.Errorf("expected ContainerAlreadyExists, got %q", code)
	}
	var e errorXML
	if err := xml.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	if e.Code != "ContainerAlreadyExists" {
		t.Errorf("expected error code in body, got %q", e.Code)
	}
}

func TestBlobService_DeleteContainer(t *testing.T) {
	router, _ := setupTestService(t)

	w := do(t, router, "DELETE", "/devstoreaccount1/missing?restype=container", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}

	do(t, router, "PUT", "/devstoreaccount1/doomed?restype=container", nil)
	w = do(t, router, "DELETE", "/devstoreaccount1/doomed?restype=container", nil)
	if w.Code != http.StatusAccepted {
		t.Errorf("expected status %d, got %d", http.StatusAccepted, w.Code)
	}
}

func TestBlobService_RequiresRestype(t *testing.T) {
	router, _ := setupTestService(t)

	w := do(t, router, "PUT", "/devstoreaccount1/testcontainer", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

// TestBlobService_PutGetBlob tests blob upload and download.
func TestBlobService_PutGetBlob(t *testing.T) {
	router, _ := setupTestService(t)
	do(t, router, "PUT", "/devstoreaccount1/testcontainer?restype=container", nil)

	blobContent := []byte("test blob content")
	req := httptest.NewRequest("PUT", "/devstoreaccount1/testcontainer/dir/testblob.txt", bytes.NewReader(blobContent))
	req.Header.Set("x-ms-blob-type", "BlockBlob")
	req.Header.Set("x-ms-blob-content-type", "text/plain")
	req.Header.Set("x-ms-meta-owner", "tests")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, w.Code)
	}

	w = do(t, router, "GET", "/devstoreaccount1/testcontainer/dir/testblob.txt", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if !bytes.Equal(w.Body.Bytes(), blobContent) {
		t.Errorf("expected content %q, got %q", string(blobContent), w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/plain" {
		t.Errorf("expected content type text/plain, got %q", ct)
	}
	if owner := w.Header().Get("x-ms-meta-owner"); owner != "tests" {
		t.Errorf("expected metadata to round-trip, got %q", owner)
	}
}

func TestBlobService_PutBlobEscapedName(t *testing.T) {
	router, store := setupTestService(t)
	do(t, router, "PUT", "/devstoreaccount1/cargo?restype=container", nil)

	w := do(t, router, "PUT", "/devstoreaccount1/cargo/%2Ftmp%2Fupload.bin", []byte{1, 2, 3})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, w.Code)
	}

	blob, err := store.GetBlob(context.Background(), "devstoreaccount1", "cargo", "/tmp/upload.bin")
	if err != nil {
		t.Fatalf("expected blob stored under its unescaped name: %v", err)
	}
	if !bytes.Equal(blob.Content, []byte{1, 2, 3}) {
		t.Errorf("unexpected content %v", blob.Content)
	}
}

func TestBlobService_PutBlobMissingContainer(t *testing.T) {
	router, _ := setupTestService(t)

	w := do(t, router, "PUT", "/devstoreaccount1/nope/blob.txt", []byte("x"))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}
	if code := w.Header().Get("x-ms-error-code"); code != "ContainerNotFound" {
		t.Errorf("expected ContainerNotFound, got %q", code)
	}
}

// TestBlobService_DeleteBlob tests blob deletion.
func TestBlobService_DeleteBlob(t *testing.T) {
	router, store := setupTestService(t)
	ctx := context.Background()

	if _, err := store.CreateContainer(ctx, "devstoreaccount1", "testcontainer"); err != nil {
		t.Fatalf("failed to create container: %v", err)
	}
	if _, err := store.PutBlob(ctx, "devstoreaccount1", "testcontainer", "testblob.txt", []byte("content"), "text/plain", nil); err != nil {
		t.Fatalf("failed to put blob: %v", err)
	}

	w := do(t, router, "DELETE", "/devstoreaccount1/testcontainer/testblob.txt", nil)
	if w.Code != http.StatusAccepted {
		t.Errorf("expected status %d, got %d", http.StatusAccepted, w.Code)
	}

	if _, err := store.GetBlob(ctx, "devstoreaccount1", "testcontainer", "testblob.txt"); err == nil {
		t.Error("blob should not exist after deletion")
	}

	w = do(t, router, "DELETE", "/devstoreaccount1/testcontainer/testblob.txt", nil)
	if code := w.Header().Get("x-ms-error-code"); code != "BlobNotFound" {
		t.Errorf("expected BlobNotFound, got %q", code)
	}
}

// TestBlobService_ListBlobs tests paged, hierarchical blob listing.
func TestBlobService_ListBlobs(t *testing.T) {
	router, store := setupTestService(t)
	ctx := context.Background()

	if _, err := store.CreateContainer(ctx, "devstoreaccount1", "testcontainer"); err != nil {
		t.Fatalf("failed to create container: %v", err)
	}
	for _, blobName := range []string{"a.txt", "dir/one.txt", "dir/two.txt", "z.txt"} {
		if _, err := store.PutBlob(ctx, "devstoreaccount1", "testcontainer", blobName, []byte("content"), "text/plain", nil); err != nil {
			t.Fatalf("failed to put blob %s: %v", blobName, err)
		}
	}

	w := do(t, router, "GET", "/devstoreaccount1/testcontainer?restype=container&comp=list&delimiter=/&maxresults=2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	var first blobEnumerationResults
	if err := xml.Unmarshal(w.Body.Bytes(), &first); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(first.Blobs.Blobs) != 1 || first.Blobs.Blobs[0].Name != "a.txt" {
		t.Errorf("expected [a.txt] on first page, got %+v", first.Blobs.Blobs)
	}
	if len(first.Blobs.Prefixes) != 1 || first.Blobs.Prefixes[0].Name != "dir/" {
		t.Errorf("expected [dir/] prefix on first page, got %+v", first.Blobs.Prefixes)
	}
	if first.NextMarker != "z.txt" {
		t.Fatalf("expected next marker z.txt, got %q", first.NextMarker)
	}

	w = do(t, router, "GET", "/devstoreaccount1/testcontainer?restype=container&comp=list&delimiter=/&maxresults=2&marker="+first.NextMarker, nil)
	var second blobEnumerationResults
	if err := xml.Unmarshal(w.Body.Bytes(), &second); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(second.Blobs.Blobs) != 1 || second.Blobs.Blobs[0].Name != "z.txt" {
		t.Errorf("expected [z.txt] on second page, got %+v", second.Blobs.Blobs)
	}
	if second.NextMarker != "" {
		t.Errorf("expected listing to end, got marker %q", second.NextMarker)
	}
}

func TestBlobService_ListContainers(t *testing.T) {
	router, _ := setupTestService(t)
	for _, name := range []string{"gamma", "alpha", "beta"} {
		do(t, router, "PUT", "/devstoreaccount1/"+name+"?restype=container", nil)
	}

	var names []string
	marker := ""
	for pages := 0; pages < 10; pages++ {
		w := do(t, router, "GET", "/devstoreaccount1?comp=list&maxresults=2&marker="+marker, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
		}
		var res containerEnumerationResults
		if err := xml.Unmarshal(w.Body.Bytes(), &res); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		for _, c := range res.Containers {
			names = append(names, c.Name)
		}
		if res.NextMarker == "" {
			break
		}
		marker = res.NextMarker
	}

	want := []string{"alpha", "beta", "gamma"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("expected %v, got %v", want, names)
			break
		}
	}
}

func TestFileBlobStore_ReloadsIndex(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewFileBlobStore(dir)
	if err != nil {
		t.Fatalf("failed to create blob store: %v", err)
	}
	if _, err := store.CreateContainer(ctx, "acct", "photos"); err != nil {
		t.Fatalf("failed to create container: %v", err)
	}
	if _, err := store.PutBlob(ctx, "acct", "photos", "2024/cat.jpg", []byte("meow"), "image/jpeg", nil); err != nil {
		t.Fatalf("failed to put blob: %v", err)
	}

	reopened, err := NewFileBlobStore(dir)
	if err != nil {
		t.Fatalf("failed to reopen blob store: %v", err)
	}
	page, err := reopened.ListBlobs(ctx, "acct", "photos", ListOptions{})
	if err != nil {
		t.Fatalf("failed to list blobs: %v", err)
	}
	if len(page.Blobs) != 1 || page.Blobs[0].Name != "2024/cat.jpg" || page.Blobs[0].Size != 4 {
		t.Errorf("unexpected blobs after reload: %+v", page.Blobs)
	}
}

func TestHealth(t *testing.T) {
	router, _ := setupTestService(t)

	w := do(t, router, "GET", "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}
}

func TestBlobService_RejectsInvalidContainerNames(t *testing.T) {
	router, _ := setupTestService(t)

	for _, name := range []string{"..", "ab", "UPPER", "under_score", "-lead", "trail-", "dou--ble", "%2E%2E"} {
		w := do(t, router, "PUT", "/devstoreaccount1/"+name+"?restype=container", nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%q: expected status %d, got %d", name, http.StatusBadRequest, w.Code)
		}
		if code := w.Header().Get("x-ms-error-code"); code != "InvalidResourceName" {
			t.Errorf("%q: expected InvalidResourceName, got %q", name, code)
		}
	}
}

func TestBlobService_DotContainerLeavesOtherDataIntact(t *testing.T) {
	router, store := setupTestService(t)
	ctx := context.Background()

	do(t, router, "PUT", "/devstoreaccount1/keep?restype=container", nil)
	do(t, router, "PUT", "/devstoreaccount1/keep/precious.txt", []byte("gold"))

	if w := do(t, router, "PUT", "/devstoreaccount1/..?restype=container", nil); w.Code != http.StatusBadRequest {
		t.Errorf("create '..': expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
	if w := do(t, router, "DELETE", "/devstoreaccount1/..?restype=container", nil); w.Code != http.StatusBadRequest {
		t.Errorf("delete '..': expected status %d, got %d", http.StatusBadRequest, w.Code)
	}

	blob, err := store.GetBlob(ctx, "devstoreaccount1", "keep", "precious.txt")
	if err != nil {
		t.Fatalf("expected blob to survive: %v", err)
	}
	if string(blob.Content) != "gold" {
		t.Errorf("unexpected content %q", blob.Content)
	}
}

func TestBlobService_RejectsDotBlobNames(t *testing.T) {
	router, _ := setupTestService(t)
	do(t, router, "PUT", "/devstoreaccount1/keep?restype=container", nil)

	for _, name := range []string{".", ".."} {
		w := do(t, router, "PUT", "/devstoreaccount1/keep/"+name, []byte("x"))
		if w.Code != http.StatusBadRequest {
			t.Errorf("%q: expected status %d, got %d", name, http.StatusBadRequest, w.Code)
		}
		if code := w.Header().Get("x-ms-error-code"); code != "InvalidResourceName" {
			t.Errorf("%q: expected InvalidResourceName, got %q", name, code)
		}
	}
}

func TestFileBlobStore_RejectsDotNames(t *testing.T) {
	store, err := NewFileBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create blob store: %v", err)
	}
	ctx := context.Background()

	for _, name := range []string{"", ".", "..", "a/b", `a\b`} {
		if _, err := store.CreateContainer(ctx, "acct", name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("CreateContainer(%q): expected ErrInvalidName, got %v", name, err)
		}
		if err := store.DeleteContainer(ctx, "acct", name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("DeleteContainer(%q): expected ErrInvalidName, got %v", name, err)
		}
	}

	if _, err := store.CreateContainer(ctx, "acct", "photos"); err != nil {
		t.Fatalf("failed to create container: %v", err)
	}
	for _, name := range []string{".", ".."} {
		if _, err := store.PutBlob(ctx, "acct", "photos", name, []byte("x"), "", nil); !errors.Is(err, ErrInvalidName) {
			t.Errorf("PutBlob(%q): expected ErrInvalidName, got %v", name, err)
		}
	}
}

func TestValidContainerName(t *testing.T) {
	valid := []string{"abc", "my-container", "c0ntainer-1", strings.Repeat("a", 63)}
	invalid := []string{"", "ab", strings.Repeat("a", 64), "Abc", "a_b", "-abc", "abc-", "a--b", "..", "a.b"}

	for _, name := range valid {
		if !ValidContainerName(name) {
			t.Errorf("expected %q to be valid", name)
		}
	}
	for _, name := range invalid {
		if ValidContainerName(name) {
			t.Errorf("expected %q to be invalid", name)
		}
	}
}
