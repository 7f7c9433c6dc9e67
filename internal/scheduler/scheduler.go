package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"

	"rentalshop-trusted/internal/jobs"
	"rentalshop-trusted/internal/logger"
)

// Scheduler manages cron job scheduling
type Scheduler struct {
	cron *cron.Cron
	jobs *jobs.JobRunner
}

// NewScheduler creates a new scheduler with the provided job runner
func NewScheduler(jobRunner *jobs.JobRunner) *Scheduler {
	// Create cron with UTC timezone and seconds precision
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithSeconds(),
	)

	s := &Scheduler{
		cron: c,
		jobs: jobRunner,
	}

	s.registerJobs()
	return s
}

// registerJobs registers all scheduled jobs with the cron scheduler
func (s *Scheduler) registerJobs() {
	cfg := s.jobs.Config().Scheduler

	// Flip overdue active rentals to expired
	_, err := s.cron.AddFunc(cfg.MarkExpiredRentals, s.jobs.MarkExpiredRentals)
	if err != nil {
		logger.Error("Failed to register MarkExpiredRentals job", "error", err, "schedule", cfg.MarkExpiredRentals)
	}

	// Daily revenue e-mail
	_, err = s.cron.AddFunc(cfg.SendRevenueReport, s.jobs.SendRevenueReport)
	if err != nil {
		logger.Error("Failed to register SendRevenueReport job", "error", err, "schedule", cfg.SendRevenueReport)
	}

	logger.Info("Cron jobs registered", "count", len(s.cron.Entries()))
}

// Start begins the cron scheduler
func (s *Scheduler) Start() {
	logger.Info("Starting cron scheduler...")
	s.cron.Start()
	logger.Info("Cron scheduler started successfully")
}

// Stop gracefully stops the cron scheduler
func (s *Scheduler) Stop() {
	logger.Info("Stopping cron scheduler...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("Cron scheduler stopped")
}

// IsRunning returns true if the scheduler has jobs registered
func (s *Scheduler) IsRunning() bool {
	return len(s.cron.Entries()) > 0
}
