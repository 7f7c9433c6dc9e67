package notify

import (
	"context"
	"time"

	"rentalshop-trusted/internal/logger"
)

// Async decouples alert delivery from the caller. The ticker must not wait on
// SendGrid or FCM round trips, so alerts are queued and delivered by Run.
type Async struct {
	inner   Notifier
	queue   chan Alert
	timeout time.Duration
}

func NewAsync(inner Notifier, buffer int, timeout time.Duration) *Async {
	if buffer <= 0 {
		buffer = 64
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Async{inner: inner, queue: make(chan Alert, buffer), timeout: timeout}
}

// Notify enqueues the alert. When the queue is full the alert is dropped and
// logged; it never blocks.
func (a *Async) Notify(ctx context.Context, alert Alert) error {
	select {
	case a.queue <- alert:
	default:
		logger.Warn("Alert queue full, dropping alert", "alert_id", alert.ID, "rental_id", alert.RentalID, "kind", alert.Kind)
	}
	return nil
}

// Run delivers queued alerts until ctx is done.
func (a *Async) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case alert := <-a.queue:
			a.deliver(ctx, alert)
		}
	}
}

// Drain delivers whatever is queued right now and returns how many alerts it
// handled. Short-lived callers that never start Run use it before exiting.
func (a *Async) Drain(ctx context.Context) int {
	n := 0
	for {
		select {
		case alert := <-a.queue:
			a.deliver(ctx, alert)
			n++
		default:
			return n
		}
	}
}

func (a *Async) deliver(ctx context.Context, alert Alert) {
	sendCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	if err := a.inner.Notify(sendCtx, alert); err != nil {
		logger.Error("Failed to deliver alert", "alert_id", alert.ID, "rental_id", alert.RentalID, "error", err)
	}
}
