package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"rentalshop-trusted/internal/logger"
)

const (
	// ServiceName is the health entry for the rental API as a whole.
	ServiceName = "rentalshop.RentalAPI"

	DefaultProbeInterval = 10 * time.Second
	probeTimeout         = 2 * time.Second
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthChecker reports SERVING while the database answers pings.
type HealthChecker struct {
	db       Pinger
	interval time.Duration
	server   *health.Server
}

func NewHealthChecker(db Pinger, interval time.Duration) *HealthChecker {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	return &HealthChecker{
		db:       db,
		interval: interval,
		server:   health.NewServer(),
	}
}

// Register adds the health and reflection services to s.
func (h *HealthChecker) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.server)
	reflection.Register(s)
}

// Probe pings once and publishes the result for both the overall ("") and
// the named service.
func (h *HealthChecker) Probe(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := h.db.PingContext(ctx); err != nil {
		logger.Warn("Database ping failed", "error", err)
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.server.SetServingStatus("", status)
	h.server.SetServingStatus(ServiceName, status)
	return status
}

// Run probes until ctx is cancelled, then marks everything NOT_SERVING.
func (h *HealthChecker) Run(ctx context.Context) {
	h.Probe(ctx)
	t := time.NewTicker(h.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			h.server.Shutdown()
			return
		case <-t.C:
			h.Probe(ctx)
		}
	}
}
