package dispatcher

import (
	"context"
	"time"

	"github.com/garyjia/emission-workflow/internal/domain/event"
)

// Handler processes domain events
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo contains handler metadata for debugging
type HandlerInfo struct {
	Name      string
	EventType event.Type
	Handler   Handler
	Wildcard  bool
}

// Observer receives one callback per handler execution. Metrics collectors
// implement it to count deliveries by event type and outcome.
type Observer interface {
	ObserveDelivery(eventType string, handler string, elapsed time.Duration, err error)
}
