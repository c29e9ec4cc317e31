package document

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/fiscalassistant/internal/models"
	"github.com/nikhilbhutani/fiscalassistant/internal/queue"
	"github.com/nikhilbhutani/fiscalassistant/internal/store/memory"
)

type fakeBlobStore struct {
	mu          sync.Mutex
	available   bool
	objects     map[string][]byte
	uploadErr   error
	downloadErr error
	deleteErr   error
	deleted     []string
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{available: true, objects: map[string][]byte{}}
}

func (f *fakeBlobStore) Upload(_ context.Context, key string, data io.Reader, _ string) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = b
	return nil
}

func (f *fakeBlobStore) Download(_ context.Context, key string) (io.ReadCloser, error) {
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (f *fakeBlobStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.objects, key)
	return nil
}

func (f *fakeBlobStore) Available() bool { return f.available }

type fakeQueue struct {
	mu       sync.Mutex
	err      error
	payloads []queue.DocumentOCRPayload
}

func (f *fakeQueue) EnqueueDocumentOCR(_ context.Context, p queue.DocumentOCRPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, p)
	return nil
}

type fakeRecognizer struct {
	text  string
	err   error
	panic bool
	calls int
	hook  func()
}

func (f *fakeRecognizer) Recognize(ctx context.Context, _ []byte, _, _ string) (string, error) {
	f.calls++
	if f.hook != nil {
		f.hook()
	}
	if f.panic {
		panic("tesseract exploded")
	}
	if f.err != nil {
		return "", f.err
	}
	return f.text, ctx.Err()
}

// failTransitionStore makes the failed transition unpersistable.
type failTransitionStore struct {
	*memory.Store
}

func (s failTransitionStore) TransitionDocument(ctx context.Context, id uuid.UUID, from, to models.DocumentStatus, text string) (bool, error) {
	if to == models.DocStatusFailed {
		return false, errors.New("connection reset")
	}
	return s.Store.TransitionDocument(ctx, id, from, to, text)
}

type fixture struct {
	svc   *Service
	store *memory.Store
	blobs *fakeBlobStore
	queue *fakeQueue
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.New()
	blobs := newFakeBlobStore()
	q := &fakeQueue{}
	return &fixture{svc: NewService(st, blobs, q), store: st, blobs: blobs, queue: q}
}

func (f *fixture) seed(t *testing.T, owner uuid.UUID, status models.DocumentStatus, content string) *models.Document {
	t.Helper()
	key := owner.String() + "/seed_" + uuid.NewString()[:8] + ".txt"
	f.blobs.objects[key] = []byte(content)
	doc := &models.Document{
		ID:          uuid.New(),
		OwnerID:     owner,
		Filename:    "nota.txt",
		BlobKey:     key,
		Size:        int64(len(content)),
		ContentType: "text/plain",
		Status:      status,
		CreatedAt:   time.Now().UTC(),
	}
	if status == models.DocStatusCompleted {
		doc.ExtractedText = content
	}
	if err := f.store.CreateDocument(context.Background(), doc); err != nil {
		t.Fatalf("seed document: %v", err)
	}
	return doc
}

func (f *fixture) status(t *testing.T, id uuid.UUID) *models.Document {
	t.Helper()
	doc, err := f.store.GetDocument(context.Background(), id)
	if err != nil {
		t.Fatalf("GetDocument() error = %v", err)
	}
	return doc
}
