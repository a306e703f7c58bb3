package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bookline-ai/bookline/pkg/logging"
)

// Handler consumes one event. Handlers must tolerate redelivery of the
// same event id.
type Handler interface {
	Handle(ctx context.Context, eventType string, payload any) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, eventType string, payload any) error

func (f HandlerFunc) Handle(ctx context.Context, eventType string, payload any) error {
	return f(ctx, eventType, payload)
}

// NewEventID returns a fresh event identifier.
func NewEventID() string {
	return uuid.NewString()
}

// Dispatcher fans events out to subscribers on background goroutines.
// Emission never blocks the caller and handler failures are logged, not
// propagated: a notification problem must never undo or delay the state
// change that triggered it.
type Dispatcher struct {
	logger  *logging.Logger
	timeout time.Duration

	mu       sync.RWMutex
	handlers []Handler
	wg       sync.WaitGroup
}

// NewDispatcher constructs an empty dispatcher.
func NewDispatcher(logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{logger: logger, timeout: 30 * time.Second}
}

// WithHandlerTimeout bounds how long each handler may run per event.
func (d *Dispatcher) WithHandlerTimeout(timeout time.Duration) *Dispatcher {
	if timeout > 0 {
		d.timeout = timeout
	}
	return d
}

// Subscribe registers a handler for all subsequent events.
func (d *Dispatcher) Subscribe(h Handler) {
	if h == nil {
		return
	}
	d.mu.Lock()
	d.handlers = append(d.handlers, h)
	d.mu.Unlock()
}

// Emit delivers the event to every subscriber asynchronously and returns
// immediately. The event is detached from the caller's context so an
// already-answered HTTP request does not cancel its side effects.
func (d *Dispatcher) Emit(eventType string, payload any) {
	d.mu.RLock()
	handlers := make([]Handler, len(d.handlers))
	copy(handlers, d.handlers)
	d.mu.RUnlock()

	for _, h := range handlers {
		d.wg.Add(1)
		go func(h Handler) {
			defer d.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					d.logger.Error("event handler panicked", "type", eventType, "panic", r)
				}
			}()

			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			defer cancel()

			if err := h.Handle(ctx, eventType, payload); err != nil {
				d.logger.Error("event handler failed", "type", eventType, "error", err)
			}
		}(h)
	}
}

// Drain waits for in-flight handlers to finish, for graceful shutdown.
func (d *Dispatcher) Drain() {
	d.wg.Wait()
}
