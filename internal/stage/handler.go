package stage

import (
	"context"
	"log/slog"

	"puhuri/internal/queue"
)

// Handler describes the contract the pipeline runner needs from each stage.
type Handler interface {
	Prepare(context.Context, *queue.Item) error
	Execute(context.Context, *queue.Item) error
	HealthCheck(context.Context) Health
}

// LoggerAware is implemented by handlers that accept a run-scoped logger so
// stage output carries the item and stage fields the runner stamps on it.
type LoggerAware interface {
	SetLogger(*slog.Logger)
}
