// Package stage defines the contract between the workflow manager and the
// pipeline stages that move a recording through moderation.
package stage

import (
	"context"

	"kpid/internal/queue"
)

// Handler describes the contract the workflow manager needs from each stage.
// Prepare runs quick validation before the item enters the processing status;
// Execute performs the stage work and mutates the item in place.
type Handler interface {
	Prepare(context.Context, *queue.Item) error
	Execute(context.Context, *queue.Item) error
	HealthCheck(context.Context) Health
}
