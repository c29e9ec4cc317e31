package queue

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hibiken/asynq"
)

func TestHandlersRegistryRoutesByType(t *testing.T) {
	r := NewHandlersRegistry()

	var got string
	r.Register(TypeDocumentOCR, asynq.HandlerFunc(func(_ context.Context, task *asynq.Task) error {
		got = string(task.Payload())
		return nil
	}))

	task := asynq.NewTask(TypeDocumentOCR, []byte(`{"document_id":"abc"}`))
	if err := r.Mux().ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("ProcessTask() error = %v", err)
	}
	if got != `{"document_id":"abc"}` {
		t.Fatalf("handler not invoked with payload, got %q", got)
	}

	if err := r.Mux().ProcessTask(context.Background(), asynq.NewTask("unknown:type", nil)); err == nil {
		t.Fatalf("expected error for unregistered task type")
	}
}

func TestHandlersRegistryKeepsHandlerErrors(t *testing.T) {
	r := NewHandlersRegistry()
	r.Register("b:task", asynq.HandlerFunc(func(context.Context, *asynq.Task) error {
		return fmt.Errorf("gone: %w", asynq.SkipRetry)
	}))
	r.Register("a:task", asynq.HandlerFunc(func(context.Context, *asynq.Task) error { return nil }))

	err := r.Mux().ProcessTask(context.Background(), asynq.NewTask("b:task", nil))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("unexpected error %v", err)
	}

	types := r.Types()
	if len(types) != 2 || types[0] != "a:task" || types[1] != "b:task" {
		t.Fatalf("Types() = %v", types)
	}
}
