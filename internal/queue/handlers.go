package queue

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/hibiken/asynq"
)

// HandlersRegistry maps task types to handlers and wraps every handler with
// a structured log line per attempt.
type HandlersRegistry struct {
	mux   *asynq.ServeMux
	types []string
}

func NewHandlersRegistry() *HandlersRegistry {
	mux := asynq.NewServeMux()
	mux.Use(logTask)
	return &HandlersRegistry{mux: mux}
}

func (r *HandlersRegistry) Register(taskType string, handler asynq.Handler) {
	r.mux.Handle(taskType, handler)
	r.types = append(r.types, taskType)
}

// Types lists the registered task types in lexical order.
func (r *HandlersRegistry) Types() []string {
	out := append([]string(nil), r.types...)
	sort.Strings(out)
	return out
}

func (r *HandlersRegistry) Mux() *asynq.ServeMux {
	return r.mux
}

func logTask(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		start := time.Now()
		id, _ := asynq.GetTaskID(ctx)
		retry, _ := asynq.GetRetryCount(ctx)

		err := next.ProcessTask(ctx, t)

		attrs := []any{
			"task_id", id,
			"type", t.Type(),
			"retry", retry,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		switch {
		case err == nil:
			slog.Info("task.complete", attrs...)
		case errors.Is(err, asynq.SkipRetry):
			slog.Warn("task.dropped", append(attrs, "error", err)...)
		default:
			slog.Error("task.failed", append(attrs, "error", err)...)
		}
		return err
	})
}
