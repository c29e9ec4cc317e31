package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

type fakeSupabase struct {
	mu      sync.Mutex
	buckets map[string]bool
	objects map[string]string
	failAll bool
}

func (f *fakeSupabase) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failAll {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if r.Header.Get("Authorization") != "Bearer service-key" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/storage/v1")
	switch {
	case r.Method == http.MethodGet && strings.HasPrefix(path, "/bucket/"):
		if !f.buckets[strings.TrimPrefix(path, "/bucket/")] {
			w.WriteHeader(http.StatusNotFound)
		}
	case r.Method == http.MethodPost && path == "/bucket":
		f.buckets["fiscal-documents"] = true
	case strings.HasPrefix(path, "/object/"):
		key := strings.TrimPrefix(path, "/object/")
		switch r.Method {
		case http.MethodPost:
			body, _ := io.ReadAll(r.Body)
			f.objects[key] = string(body)
		case http.MethodGet:
			body, ok := f.objects[key]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_, _ = io.WriteString(w, body)
		case http.MethodDelete:
			delete(f.objects, key)
		}
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func TestSupabaseStorageCreatesMissingBucket(t *testing.T) {
	fake := &fakeSupabase{buckets: map[string]bool{}, objects: map[string]string{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	s := NewSupabaseStorage(srv.URL, "service-key", "fiscal-documents")
	s.EnsureBucket(context.Background())

	if !s.Available() {
		t.Fatalf("expected storage to be available")
	}
	if !fake.buckets["fiscal-documents"] {
		t.Fatalf("expected bucket to be created")
	}
}

func TestSupabaseStorageUnavailable(t *testing.T) {
	fake := &fakeSupabase{failAll: true}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	s := NewSupabaseStorage(srv.URL, "service-key", "fiscal-documents")
	s.EnsureBucket(context.Background())

	if s.Available() {
		t.Fatalf("expected storage to be unavailable")
	}
}

func TestSupabaseStorageObjectLifecycle(t *testing.T) {
	fake := &fakeSupabase{buckets: map[string]bool{"fiscal-documents": true}, objects: map[string]string{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	ctx := context.Background()
	s := NewSupabaseStorage(srv.URL, "service-key", "fiscal-documents")

	if err := s.Upload(ctx, "owner/k_nota.txt", strings.NewReader("hello"), "text/plain"); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if fake.objects["fiscal-documents/owner/k_nota.txt"] != "hello" {
		t.Fatalf("object not stored under bucket path: %+v", fake.objects)
	}

	rc, err := s.Download(ctx, "owner/k_nota.txt")
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "hello" {
		t.Fatalf("unexpected content %q", string(data))
	}

	if err := s.Delete(ctx, "owner/k_nota.txt"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Download(ctx, "owner/k_nota.txt"); err == nil {
		t.Fatalf("expected download after delete to fail")
	}
}
