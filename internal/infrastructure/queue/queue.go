// Package queue delivers import tasks to the worker, either in process or
// through Kafka.
package queue

import (
	"context"
	"errors"

	app "github.com/mohammadpnp/prospect-import/internal/application/prospect"
)

var ErrClosed = errors.New("queue is shutting down")

// Handler processes one task. Returning an error only affects logging; the
// job row records the outcome.
type Handler func(ctx context.Context, task app.ImportTask) error
