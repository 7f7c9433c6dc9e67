package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"rentalshop-trusted/internal/domain"
	"rentalshop-trusted/internal/logger"
	"rentalshop-trusted/internal/repository"
)

type rentalRepository struct {
	db *sql.DB
}

func NewRentalRepository(db *sql.DB) repository.RentalRepository {
	return &rentalRepository{db: db}
}

const rentalColumns = `id, branch_id, game_id, employee_id, customer_name, start_time, duration_minutes, status, total_price_cents,
	COALESCE(cancel_reason, ''), COALESCE(payment_method, ''), paid_cents, completed_at, created_on, updated_on`

func scanRental(row interface{ Scan(...any) error }) (domain.Rental, error) {
	var rt domain.Rental
	var completedAt sql.NullTime
	err := row.Scan(&rt.ID, &rt.BranchID, &rt.GameID, &rt.EmployeeID, &rt.CustomerName, &rt.StartTime, &rt.DurationMinutes,
		&rt.Status, &rt.TotalPriceCents, &rt.CancelReason, &rt.PaymentMethod, &rt.PaidCents, &completedAt, &rt.CreatedOn, &rt.UpdatedOn)
	if err != nil {
		return rt, err
	}
	if completedAt.Valid {
		t := completedAt.Time
		rt.CompletedAt = &t
	}
	return rt, nil
}

func (r *rentalRepository) Create(ctx context.Context, rt *domain.Rental) error {
	query := `INSERT INTO rentals (branch_id, game_id, employee_id, customer_name, start_time, duration_minutes, status, total_price_cents, paid_cents, created_on, updated_on)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $9, $10) RETURNING id`
	now := time.Now().UTC()
	rt.CreatedOn = now
	rt.UpdatedOn = now
	logger.DatabaseCall("rentals.Create", "game_id", rt.GameID, "branch_id", rt.BranchID)
	err := r.db.QueryRowContext(ctx, query, rt.BranchID, rt.GameID, rt.EmployeeID, rt.CustomerName, rt.StartTime, rt.DurationMinutes, rt.Status, rt.TotalPriceCents, rt.CreatedOn, rt.UpdatedOn).Scan(&rt.ID)
	var rows int64
	if err == nil {
		rows = 1
	}
	logger.DatabaseResult("rentals.Create", rows, err, "rental_id", rt.ID)
	if isUniqueViolation(err) {
		// idx_rentals_one_open_per_game: someone started this game first
		return repository.ErrConflict
	}
	return err
}

func (r *rentalRepository) GetByID(ctx context.Context, id int64) (*domain.Rental, error) {
	query := `SELECT ` + rentalColumns + ` FROM rentals WHERE id = $1`
	rt, err := scanRental(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &rt, nil
}

func (r *rentalRepository) Update(ctx context.Context, rt *domain.Rental, fromStatuses ...domain.RentalStatus) error {
	if len(fromStatuses) == 0 {
		return fmt.Errorf("update rental %d: no source status given", rt.ID)
	}
	allowed := make([]string, len(fromStatuses))
	for i, s := range fromStatuses {
		allowed[i] = string(s)
	}

	rt.UpdatedOn = time.Now().UTC()
	var completedAt sql.NullTime
	if rt.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *rt.CompletedAt, Valid: true}
	}

	query := `UPDATE rentals
	          SET status=$1, duration_minutes=$2, total_price_cents=$3, cancel_reason=$4, payment_method=$5, paid_cents=$6, completed_at=$7, updated_on=$8
	          WHERE id=$9 AND status = ANY($10)`
	logger.DatabaseCall("rentals.Update", "rental_id", rt.ID, "status", rt.Status)
	res, err := r.db.ExecContext(ctx, query, rt.Status, rt.DurationMinutes, rt.TotalPriceCents, rt.CancelReason, rt.PaymentMethod, rt.PaidCents, completedAt, rt.UpdatedOn, rt.ID, pq.Array(allowed))
	if err != nil {
		logger.DatabaseResult("rentals.Update", 0, err, "rental_id", rt.ID)
		return err
	}
	n, err := res.RowsAffected()
	logger.DatabaseResult("rentals.Update", n, err, "rental_id", rt.ID)
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrConflict
	}
	return nil
}

func (r *rentalRepository) Extend(ctx context.Context, rt *domain.Rental, fromDuration int32, fromStatuses ...domain.RentalStatus) error {
	if len(fromStatuses) == 0 {
		return fmt.Errorf("extend rental %d: no source status given", rt.ID)
	}
	allowed := make([]string, len(fromStatuses))
	for i, s := range fromStatuses {
		allowed[i] = string(s)
	}

	rt.UpdatedOn = time.Now().UTC()
	query := `UPDATE rentals
	          SET status=$1, duration_minutes=$2, total_price_cents=$3, updated_on=$4
	          WHERE id=$5 AND duration_minutes=$6 AND status = ANY($7)`
	logger.DatabaseCall("rentals.Extend", "rental_id", rt.ID, "from_minutes", fromDuration, "to_minutes", rt.DurationMinutes)
	res, err := r.db.ExecContext(ctx, query, rt.Status, rt.DurationMinutes, rt.TotalPriceCents, rt.UpdatedOn, rt.ID, fromDuration, pq.Array(allowed))
	if err != nil {
		logger.DatabaseResult("rentals.Extend", 0, err, "rental_id", rt.ID)
		return err
	}
	n, err := res.RowsAffected()
	logger.DatabaseResult("rentals.Extend", n, err, "rental_id", rt.ID)
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrConflict
	}
	return nil
}

func (r *rentalRepository) ListOpen(ctx context.Context, branchID int64) ([]domain.Rental, error) {
	query := `SELECT ` + rentalColumns + ` FROM rentals WHERE status IN ('active', 'expired')`
	args := []interface{}{}
	if branchID != 0 {
		query += " AND branch_id = $1"
		args = append(args, branchID)
	}
	query += " ORDER BY start_time, id"
	return r.list(ctx, query, args...)
}

func (r *rentalRepository) HasOpenOnGame(ctx context.Context, gameID int64) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM rentals WHERE game_id = $1 AND status IN ('active', 'expired'))`
	err := r.db.QueryRowContext(ctx, query, gameID).Scan(&exists)
	return exists, err
}

func (r *rentalRepository) ListCompleted(ctx context.Context, branchID int64, from, to time.Time) ([]domain.Rental, error) {
	query := `SELECT ` + rentalColumns + ` FROM rentals WHERE status = 'completed' AND completed_at >= $1 AND completed_at < $2`
	args := []interface{}{from, to}
	if branchID != 0 {
		query += " AND branch_id = $3"
		args = append(args, branchID)
	}
	query += " ORDER BY completed_at, id"
	return r.list(ctx, query, args...)
}

func (r *rentalRepository) RevenueByGame(ctx context.Context, branchID int64, from, to time.Time) ([]domain.RevenueLine, error) {
	query := `SELECT r.branch_id, r.game_id, g.name, COUNT(*), COALESCE(SUM(r.duration_minutes), 0), COALESCE(SUM(r.total_price_cents), 0), COALESCE(SUM(r.paid_cents), 0)
	          FROM rentals r JOIN games g ON g.id = r.game_id
	          WHERE r.status = 'completed' AND r.completed_at >= $1 AND r.completed_at < $2`
	args := []interface{}{from, to}
	if branchID != 0 {
		query += " AND r.branch_id = $3"
		args = append(args, branchID)
	}
	query += " GROUP BY r.branch_id, r.game_id, g.name ORDER BY r.branch_id, g.name"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []domain.RevenueLine
	for rows.Next() {
		var l domain.RevenueLine
		if err := rows.Scan(&l.BranchID, &l.GameID, &l.GameName, &l.Rentals, &l.Minutes, &l.BilledCents, &l.CollectedCents); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *rentalRepository) list(ctx context.Context, query string, args ...interface{}) ([]domain.Rental, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rentals := []domain.Rental{}
	for rows.Next() {
		rt, err := scanRental(rows)
		if err != nil {
			return nil, err
		}
		rentals = append(rentals, rt)
	}
	return rentals, rows.Err()
}
