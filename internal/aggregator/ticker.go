package aggregator

import (
	"context"
	"sync"
	"time"

	"rentalshop-trusted/internal/clock"
	"rentalshop-trusted/internal/domain"
	"rentalshop-trusted/internal/logger"
	"rentalshop-trusted/internal/metrics"
)

// DefaultTickInterval matches the one-second countdown refresh.
const DefaultTickInterval = time.Second

// Source supplies the rentals to recompute on each tick.
type Source interface {
	List() []domain.Rental
}

// Subscriber receives every tick's snapshot.
type Subscriber func(Snapshot)

type subscription struct {
	id int
	fn Subscriber
}

// Ticker is the single shared countdown driver. Each tick computes one
// snapshot and hands that same snapshot to every subscriber, so views that
// show overlapping rentals never disagree. Subscribers run in the order they
// subscribed.
type Ticker struct {
	clock    clock.Clock
	source   Source
	interval time.Duration

	mu     sync.Mutex
	subs   []subscription
	nextID int
	last   *Snapshot
}

func NewTicker(c clock.Clock, source Source, interval time.Duration) *Ticker {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Ticker{
		clock:    c,
		source:   source,
		interval: interval,
	}
}

// Subscribe registers fn and returns the function that removes it. Calling
// the returned function more than once is harmless.
func (t *Ticker) Subscribe(fn Subscriber) (unsubscribe func()) {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.subs = append(t.subs, subscription{id: id, fn: fn})
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			for i, sub := range t.subs {
				if sub.id == id {
					t.subs = append(t.subs[:i:i], t.subs[i+1:]...)
					break
				}
			}
			t.mu.Unlock()
		})
	}
}

func (t *Ticker) Subscribers() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

// Last returns the most recent snapshot, if any tick has run.
func (t *Ticker) Last() (Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.last == nil {
		return Snapshot{}, false
	}
	return *t.last, true
}

// Tick recomputes once using the clock's current reading and publishes the
// result synchronously.
func (t *Ticker) Tick() Snapshot {
	started := time.Now()
	snap := Aggregate(t.source.List(), t.clock.Now())
	metrics.TickDuration.Observe(time.Since(started).Seconds())
	metrics.OpenRentals.Set(float64(snap.Summary.Count))

	t.mu.Lock()
	t.last = &snap
	subs := make([]subscription, len(t.subs))
	copy(subs, t.subs)
	t.mu.Unlock()

	for _, sub := range subs {
		sub.fn(snap)
	}
	return snap
}

// Run ticks until ctx is done. A late tick just reads the clock when it fires;
// missed ticks are never replayed.
func (t *Ticker) Run(ctx context.Context) error {
	log := logger.WithComponent("ticker")
	log.Info("Ticker started", "interval", t.interval)

	tk := time.NewTicker(t.interval)
	defer tk.Stop()

	t.Tick()
	for {
		select {
		case <-ctx.Done():
			log.Info("Ticker stopped")
			return ctx.Err()
		case <-tk.C:
			t.Tick()
		}
	}
}
