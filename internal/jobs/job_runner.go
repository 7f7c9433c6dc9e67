package jobs

import (
	"database/sql"

	"rentalshop-trusted/internal/clock"
	"rentalshop-trusted/internal/config"
	"rentalshop-trusted/internal/logger"
	"rentalshop-trusted/internal/repository/postgres"
	"rentalshop-trusted/internal/service"
)

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	db       *sql.DB
	store    *postgres.Store
	services *Services
	config   *config.Config
	clock    clock.Clock
}

// Services holds all service dependencies needed by jobs.
// Mailer may be nil, in which case e-mail jobs only log.
type Services struct {
	Report service.ReportService
	Mailer service.Mailer
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(db *sql.DB, store *postgres.Store, services *Services, cfg *config.Config) *JobRunner {
	return &JobRunner{
		db:       db,
		store:    store,
		services: services,
		config:   cfg,
		clock:    clock.System{},
	}
}

// WithClock replaces the wall clock, for tests and backfills.
func (jr *JobRunner) WithClock(c clock.Clock) *JobRunner {
	jr.clock = c
	return jr
}

// Config returns the configuration the runner was built with
func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
		}
	}()

	logger.Info("Starting job", "job", jobName)
	jobFunc()
	logger.Info("Job completed", "job", jobName)
}

// RunAll runs every job once (for manual execution)
func (jr *JobRunner) RunAll() {
	jr.MarkExpiredRentals()
	jr.SendRevenueReport()
}
