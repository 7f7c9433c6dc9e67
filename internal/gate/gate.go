// Package gate decides which actions a rental currently allows and forwards
// permitted actions to the backend. It never retries; a failed or timed-out
// action leaves the rental's state as it was.
package gate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"rentalshop-trusted/internal/aggregator"
	"rentalshop-trusted/internal/clock"
	"rentalshop-trusted/internal/domain"
	"rentalshop-trusted/internal/logger"
	"rentalshop-trusted/internal/metrics"
	"rentalshop-trusted/internal/notify"
	"rentalshop-trusted/internal/rentaltimer"
)

const (
	// DefaultActionTimeout bounds every backend call made by the gate.
	DefaultActionTimeout = 10 * time.Second
	// DefaultClosedRetention is how long a locally closed rental is ignored
	// by Observe. It must outlast any poll in flight when the action landed.
	DefaultClosedRetention = 2 * time.Minute
)

var (
	ErrCancelWindowClosed = errors.New("cancellation window closed")
	ErrActionNotPermitted = errors.New("action not permitted in current state")
	ErrRentalClosed       = errors.New("rental already completed or cancelled")
	ErrUnknownRental      = errors.New("rental not on board")
	ErrInvalidExtension   = errors.New("extra minutes must be positive")
	// ErrActionTimeout is retryable: the backend may or may not have applied
	// the action, and the next poll will tell.
	ErrActionTimeout = errors.New("backend did not answer in time")
)

// Backend is the rental-mutation collaborator. Each call returns the rental as
// confirmed by the server.
type Backend interface {
	CancelRental(ctx context.Context, rentalID int64, reason string) (*domain.Rental, error)
	ExtendRental(ctx context.Context, rentalID int64, extraMinutes int32) (*domain.Rental, error)
	CompleteRental(ctx context.Context, rentalID int64, payment domain.PaymentInfo) (*domain.Rental, error)
}

// Replica is the local copy of open rentals the gate reads and updates.
type Replica interface {
	Get(id int64) (domain.Rental, bool)
	Upsert(r domain.Rental)
	Remove(id int64)
}

type Gate struct {
	backend  Backend
	replica  Replica
	clock    clock.Clock
	notifier notify.Notifier
	timeout  time.Duration
	retain   time.Duration

	mu     sync.Mutex
	states map[int64]State
	// closed holds rentals confirmed cancelled or completed, keyed to the
	// time of confirmation. Observe never prunes it by snapshot membership.
	closed map[int64]time.Time
}

type Option func(*Gate)

func WithTimeout(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithClosedRetention sets how long a closed rental stays closed against
// polls that still list it.
func WithClosedRetention(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.retain = d
		}
	}
}

func WithNotifier(n notify.Notifier) Option {
	return func(g *Gate) { g.notifier = n }
}

func New(backend Backend, replica Replica, c clock.Clock, opts ...Option) *Gate {
	g := &Gate{
		backend:  backend,
		replica:  replica,
		clock:    c,
		notifier: notify.Log{},
		timeout:  DefaultActionTimeout,
		retain:   DefaultClosedRetention,
		states:   make(map[int64]State),
		closed:   make(map[int64]time.Time),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// State returns the last known state of a rental.
func (g *Gate) State(id int64) (State, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.closed[id]; ok {
		return StateTerminal, true
	}
	s, ok := g.states[id]
	return s, ok
}

// Observe applies one tick's snapshot. Rentals that entered near-end or
// expired-pending-completion since the previous snapshot raise exactly one
// alert each; rentals missing from the snapshot are forgotten. Rentals closed
// locally within the retention period stay closed and are dropped from the
// replica again if a stale poll brought them back.
func (g *Gate) Observe(ctx context.Context, snap aggregator.Snapshot) {
	var (
		alerts []notify.Alert
		stale  []int64
	)

	g.mu.Lock()
	now := g.clock.Now()
	for id, at := range g.closed {
		if now.Sub(at) > g.retain {
			delete(g.closed, id)
		}
	}
	seen := make(map[int64]struct{}, len(snap.States))
	for _, id := range snap.Order {
		if _, ok := g.closed[id]; ok {
			stale = append(stale, id)
			continue
		}
		ts, ok := snap.States[id]
		if !ok {
			continue
		}
		seen[id] = struct{}{}
		r := snap.Rentals[id]
		prev, known := g.states[id]
		next := Evaluate(r.Status, ts)
		g.states[id] = next

		if known && prev == next {
			continue
		}
		switch next {
		case StateNearEnd:
			alerts = append(alerts, alertFor(notify.AlertNearEnd, r, ts, snap.At))
		case StateExpiredPendingCompletion:
			alerts = append(alerts, alertFor(notify.AlertEnded, r, ts, snap.At))
		}
	}
	for id := range g.states {
		if _, ok := seen[id]; !ok {
			delete(g.states, id)
		}
	}
	g.mu.Unlock()

	for _, id := range stale {
		g.replica.Remove(id)
	}
	for _, a := range alerts {
		metrics.AlertsTotal.WithLabelValues(string(a.Kind)).Inc()
		if err := g.notifier.Notify(ctx, a); err != nil {
			logger.WithRental(a.RentalID).Error("Failed to dispatch alert", "kind", a.Kind, "error", err)
		}
	}
}

func alertFor(kind notify.AlertKind, r domain.Rental, ts rentaltimer.State, at time.Time) notify.Alert {
	a := notify.NewAlert(kind)
	a.RentalID = r.ID
	a.BranchID = r.BranchID
	a.GameID = r.GameID
	a.CustomerName = r.CustomerName
	a.RemainingSeconds = ts.RemainingSeconds
	a.EndsAt = ts.EndsAt
	a.RaisedAt = at
	return a
}

// Permissions reports which actions are enabled for a rental at this instant.
func (g *Gate) Permissions(id int64) (Permissions, error) {
	s, _, err := g.current(id)
	if err != nil {
		return Permissions{}, err
	}
	return permissionsFor(s), nil
}

// current re-evaluates the rental against the clock instead of trusting the
// last tick, which can be up to one interval old.
func (g *Gate) current(id int64) (State, domain.Rental, error) {
	g.mu.Lock()
	_, closed := g.closed[id]
	g.mu.Unlock()
	if closed {
		return StateTerminal, domain.Rental{}, ErrRentalClosed
	}

	r, ok := g.replica.Get(id)
	if !ok {
		return "", domain.Rental{}, ErrUnknownRental
	}
	s := Evaluate(r.Status, rentaltimer.Compute(r, g.clock.Now()))
	if s == StateTerminal {
		return s, r, ErrRentalClosed
	}
	return s, r, nil
}

func (g *Gate) reject(action string, id int64, err error) error {
	metrics.GateActionsTotal.WithLabelValues(action, "rejected").Inc()
	logger.WithRental(id).Info("Action rejected locally", "action", action, "reason", err)
	return err
}

// forward runs one backend call under the action timeout.
func (g *Gate) forward(ctx context.Context, action string, id int64, call func(context.Context) (*domain.Rental, error)) (*domain.Rental, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	logger.ExternalServiceCall("backend", action, "rental_id", id)
	r, err := call(callCtx)
	if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		err = fmt.Errorf("%s rental %d: %w", action, id, ErrActionTimeout)
		metrics.GateActionsTotal.WithLabelValues(action, "timeout").Inc()
	} else if err != nil {
		err = fmt.Errorf("%s rental %d: %w", action, id, err)
		metrics.GateActionsTotal.WithLabelValues(action, "failed").Inc()
	} else {
		metrics.GateActionsTotal.WithLabelValues(action, "ok").Inc()
	}
	logger.ExternalServiceResult("backend", action, err, "rental_id", id)
	return r, err
}

func (g *Gate) markTerminal(id int64) {
	g.mu.Lock()
	delete(g.states, id)
	g.closed[id] = g.clock.Now()
	g.mu.Unlock()
	g.replica.Remove(id)
}

// Cancel is only permitted while the rental is inside its cancel window.
// Outside it the call is refused without contacting the backend.
func (g *Gate) Cancel(ctx context.Context, id int64, reason string) (*domain.Rental, error) {
	s, _, err := g.current(id)
	if err != nil {
		return nil, g.reject("cancel", id, err)
	}
	if s != StateActiveCancellable {
		return nil, g.reject("cancel", id, ErrCancelWindowClosed)
	}

	confirmed, err := g.forward(ctx, "cancel", id, func(ctx context.Context) (*domain.Rental, error) {
		return g.backend.CancelRental(ctx, id, reason)
	})
	if err != nil {
		return nil, err
	}
	g.markTerminal(id)
	logger.WithRental(id).Info("Rental cancelled", "reason", reason)
	return confirmed, nil
}

// Extend is permitted once the rental is near its end or already expired.
// On confirmation the replica takes the server's record and the state is
// recomputed against the new expiry straight away.
func (g *Gate) Extend(ctx context.Context, id int64, extraMinutes int32) (*domain.Rental, error) {
	if extraMinutes <= 0 {
		return nil, g.reject("extend", id, ErrInvalidExtension)
	}
	s, local, err := g.current(id)
	if err != nil {
		return nil, g.reject("extend", id, err)
	}
	if s != StateNearEnd && s != StateExpiredPendingCompletion {
		return nil, g.reject("extend", id, ErrActionNotPermitted)
	}

	confirmed, err := g.forward(ctx, "extend", id, func(ctx context.Context) (*domain.Rental, error) {
		return g.backend.ExtendRental(ctx, id, extraMinutes)
	})
	if err != nil {
		return nil, err
	}
	if confirmed == nil {
		local.DurationMinutes += extraMinutes
		local.Status = domain.RentalStatusActive
		confirmed = &local
	}

	g.replica.Upsert(*confirmed)
	next := Evaluate(confirmed.Status, rentaltimer.Compute(*confirmed, g.clock.Now()))
	g.mu.Lock()
	g.states[id] = next
	g.mu.Unlock()

	logger.WithRental(id).Info("Rental extended", "extra_minutes", extraMinutes, "duration_minutes", confirmed.DurationMinutes, "state", next)
	return confirmed, nil
}

// Complete is permitted once the rental has run out.
func (g *Gate) Complete(ctx context.Context, id int64, payment domain.PaymentInfo) (*domain.Rental, error) {
	s, _, err := g.current(id)
	if err != nil {
		return nil, g.reject("complete", id, err)
	}
	if s != StateExpiredPendingCompletion {
		return nil, g.reject("complete", id, ErrActionNotPermitted)
	}

	confirmed, err := g.forward(ctx, "complete", id, func(ctx context.Context) (*domain.Rental, error) {
		return g.backend.CompleteRental(ctx, id, payment)
	})
	if err != nil {
		return nil, err
	}
	g.markTerminal(id)
	logger.WithRental(id).Info("Rental completed", "payment_method", payment.Method, "paid_cents", payment.PaidCents)
	return confirmed, nil
}
