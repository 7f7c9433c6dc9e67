// Package monitor assembles the terminal side: a poller feeding the board, a
// synced clock, the shared ticker and the action gate, all run under one
// errgroup.
package monitor

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"rentalshop-trusted/internal/aggregator"
	"rentalshop-trusted/internal/clock"
	"rentalshop-trusted/internal/domain"
	"rentalshop-trusted/internal/gate"
	"rentalshop-trusted/internal/logger"
	"rentalshop-trusted/internal/notify"
)

const DefaultPollInterval = 5 * time.Second

// RentalLister fetches the open rentals the terminal should display.
type RentalLister interface {
	ListActiveRentals(ctx context.Context, branchID int64) ([]domain.Rental, error)
}

// Backend is everything the monitor needs from the rental service.
type Backend interface {
	RentalLister
	gate.Backend
	clock.TimeSource
}

type Config struct {
	BranchID      int64
	PollInterval  time.Duration
	SyncInterval  time.Duration
	TickInterval  time.Duration
	ActionTimeout time.Duration
	AlertBuffer   int
	// Base is the local clock the server offset is applied to. Nil means
	// the system clock.
	Base clock.Clock
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.SyncInterval <= 0 {
		c.SyncInterval = clock.DefaultSyncInterval
	}
	if c.TickInterval <= 0 {
		c.TickInterval = aggregator.DefaultTickInterval
	}
	if c.ActionTimeout <= 0 {
		c.ActionTimeout = gate.DefaultActionTimeout
	}
	if c.Base == nil {
		c.Base = clock.System{}
	}
}

type Monitor struct {
	cfg     Config
	backend Backend
	board   *aggregator.Board
	clock   *clock.Synced
	ticker  *aggregator.Ticker
	gate    *gate.Gate
	alerts  *notify.Async
}

func New(cfg Config, backend Backend, notifier notify.Notifier) *Monitor {
	cfg.applyDefaults()
	if notifier == nil {
		notifier = notify.Log{}
	}

	board := aggregator.NewBoard()
	synced := clock.NewSynced(backend, clock.WithBase(cfg.Base))
	alerts := notify.NewAsync(notifier, cfg.AlertBuffer, cfg.ActionTimeout)

	return &Monitor{
		cfg:     cfg,
		backend: backend,
		board:   board,
		clock:   synced,
		ticker:  aggregator.NewTicker(synced, board, cfg.TickInterval),
		gate:    gate.New(backend, board, synced, gate.WithNotifier(alerts), gate.WithTimeout(cfg.ActionTimeout)),
		alerts:  alerts,
	}
}

func (m *Monitor) Board() *aggregator.Board   { return m.board }
func (m *Monitor) Gate() *gate.Gate           { return m.gate }
func (m *Monitor) Ticker() *aggregator.Ticker { return m.ticker }
func (m *Monitor) Clock() *clock.Synced       { return m.clock }

// Refresh polls once. On failure the board keeps its previous contents so
// timers keep counting down on the last known data.
func (m *Monitor) Refresh(ctx context.Context) error {
	rentals, err := m.backend.ListActiveRentals(ctx, m.cfg.BranchID)
	if err != nil {
		logger.Warn("Rental poll failed, keeping last board", "branch_id", m.cfg.BranchID, "error", err)
		return err
	}
	m.board.Replace(rentals)
	logger.Debug("Rental poll completed", "branch_id", m.cfg.BranchID, "count", m.board.Len())
	return nil
}

// Prepare syncs the clock and loads the board once. One-shot commands use it
// in place of Run.
func (m *Monitor) Prepare(ctx context.Context) error {
	_ = m.clock.Sync(ctx)
	return m.Refresh(ctx)
}

// Once runs a single tick outside Run: the gate observes it and any alert it
// raised is delivered before Once returns.
func (m *Monitor) Once(ctx context.Context) aggregator.Snapshot {
	snap := m.ticker.Tick()
	m.gate.Observe(ctx, snap)
	m.alerts.Drain(ctx)
	return snap
}

func (m *Monitor) poll(ctx context.Context) error {
	_ = m.Refresh(ctx)

	tk := time.NewTicker(m.cfg.PollInterval)
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tk.C:
			_ = m.Refresh(ctx)
		}
	}
}

// Run blocks until ctx is done. The gate observes every tick; onTick, when
// set, receives the same snapshot.
func (m *Monitor) Run(ctx context.Context, onTick aggregator.Subscriber) error {
	unsubGate := m.ticker.Subscribe(func(s aggregator.Snapshot) {
		m.gate.Observe(ctx, s)
	})
	defer unsubGate()
	if onTick != nil {
		unsub := m.ticker.Subscribe(onTick)
		defer unsub()
	}

	logger.Info("Monitor started",
		"branch_id", m.cfg.BranchID,
		"poll_interval", m.cfg.PollInterval,
		"sync_interval", m.cfg.SyncInterval,
		"tick_interval", m.cfg.TickInterval)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return m.clock.Run(gctx, m.cfg.SyncInterval) })
	g.Go(func() error { return m.poll(gctx) })
	g.Go(func() error { return m.alerts.Run(gctx) })
	g.Go(func() error { return m.ticker.Run(gctx) })

	err := g.Wait()
	logger.Info("Monitor stopped")
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
