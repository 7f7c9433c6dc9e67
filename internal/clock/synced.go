package clock

import (
	"context"
	"sync"
	"time"

	"rentalshop-trusted/internal/logger"
)

// DefaultSyncInterval is how often Run refreshes the server offset.
const DefaultSyncInterval = 60 * time.Second

// TimeSource reports the backend's current time.
type TimeSource interface {
	ServerTime(ctx context.Context) (time.Time, error)
}

// Synced is a Clock corrected by an offset learned from a TimeSource.
// Until the first successful sync, and whenever a sync fails, it keeps the
// last known offset (zero initially), so Now never blocks or fails.
type Synced struct {
	base    Clock
	source  TimeSource
	timeout time.Duration

	mu     sync.RWMutex
	offset time.Duration
	synced bool
}

type SyncedOption func(*Synced)

// WithBase replaces the local clock the offset is applied to.
func WithBase(base Clock) SyncedOption {
	return func(s *Synced) { s.base = base }
}

// WithSyncTimeout bounds a single ServerTime call.
func WithSyncTimeout(d time.Duration) SyncedOption {
	return func(s *Synced) { s.timeout = d }
}

func NewSynced(source TimeSource, opts ...SyncedOption) *Synced {
	s := &Synced{
		base:    System{},
		source:  source,
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Synced) Now() time.Time {
	s.mu.RLock()
	off := s.offset
	s.mu.RUnlock()
	return s.base.Now().Add(off)
}

// Offset returns the current correction and whether any sync has succeeded.
func (s *Synced) Offset() (time.Duration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.offset, s.synced
}

// Sync fetches server time once and updates the offset as
// server_time - sent_at - round_trip/2. On error the offset is left untouched.
func (s *Synced) Sync(ctx context.Context) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	sentAt := s.base.Now()
	serverTime, err := s.source.ServerTime(ctx)
	receivedAt := s.base.Now()
	if err != nil {
		logger.Debug("Time sync failed, keeping previous offset", "error", err)
		return err
	}

	rtt := receivedAt.Sub(sentAt)
	if rtt < 0 {
		rtt = 0
	}
	offset := serverTime.Sub(sentAt) - rtt/2

	s.mu.Lock()
	s.offset = offset
	s.synced = true
	s.mu.Unlock()

	logger.Debug("Time sync completed", "offset", offset, "round_trip", rtt)
	return nil
}

// Run syncs immediately and then on every interval until ctx is done.
// Sync failures are swallowed; Run only returns ctx.Err().
func (s *Synced) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	_ = s.Sync(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_ = s.Sync(ctx)
		}
	}
}
