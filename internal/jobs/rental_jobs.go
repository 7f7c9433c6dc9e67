package jobs

import (
	"context"
	"fmt"
	"time"

	"rentalshop-trusted/internal/logger"
	"rentalshop-trusted/internal/metrics"
)

type expiredRental struct {
	ID       int64
	BranchID int64
	GameID   int64
	EndTime  time.Time
}

// MarkExpiredRentals moves active rentals whose time has run out to expired,
// so the terminals and reports agree even when no terminal was watching.
func (jr *JobRunner) MarkExpiredRentals() {
	jr.runWithRecovery("MarkExpiredRentals", func() {
		if _, err := jr.markExpiredRentals(context.Background()); err != nil {
			logger.Error("Failed to mark expired rentals", "error", err)
		}
	})
}

func (jr *JobRunner) markExpiredRentals(ctx context.Context) ([]expiredRental, error) {
	now := jr.clock.Now().UTC()
	query := `
		UPDATE rentals
		SET status = 'expired',
		    updated_on = $1
		WHERE status = 'active'
		  AND start_time + duration_minutes * INTERVAL '1 minute' <= $1
		RETURNING id, branch_id, game_id, start_time + duration_minutes * INTERVAL '1 minute'
	`

	logger.DatabaseCall("rentals.MarkExpired", "now", now)
	rows, err := jr.db.QueryContext(ctx, query, now)
	if err != nil {
		logger.DatabaseResult("rentals.MarkExpired", 0, err)
		return nil, fmt.Errorf("mark expired: %w", err)
	}
	defer rows.Close()

	var expired []expiredRental
	for rows.Next() {
		var rt expiredRental
		if err := rows.Scan(&rt.ID, &rt.BranchID, &rt.GameID, &rt.EndTime); err != nil {
			logger.Error("Failed to scan expired rental", "error", err)
			continue
		}
		expired = append(expired, rt)
	}
	if err := rows.Err(); err != nil {
		return expired, fmt.Errorf("iterate expired rentals: %w", err)
	}
	logger.DatabaseResult("rentals.MarkExpired", int64(len(expired)), nil)

	metrics.ExpiredMarkedTotal.Add(float64(len(expired)))
	logger.Info("Marked rentals as expired", "count", len(expired))
	for _, rt := range expired {
		logger.Debug("Marked rental as expired",
			"rental_id", rt.ID,
			"branch_id", rt.BranchID,
			"game_id", rt.GameID,
			"end_time", rt.EndTime)
	}
	return expired, nil
}
