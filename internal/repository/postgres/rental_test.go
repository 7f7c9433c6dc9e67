package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"rentalshop-trusted/internal/domain"
	"rentalshop-trusted/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var rentalCols = []string{"id", "branch_id", "game_id", "employee_id", "customer_name", "start_time", "duration_minutes", "status",
	"total_price_cents", "cancel_reason", "payment_method", "paid_cents", "completed_at", "created_on", "updated_on"}

func TestRentalRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := NewRentalRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		start := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
		rental := &domain.Rental{
			BranchID:        1,
			GameID:          2,
			EmployeeID:      3,
			CustomerName:    "Layla",
			StartTime:       start,
			DurationMinutes: 30,
			Status:          domain.RentalStatusActive,
			TotalPriceCents: 1000,
		}

		mock.ExpectQuery("INSERT INTO rentals").
			WithArgs(int64(1), int64(2), int64(3), "Layla", start, int32(30), domain.RentalStatusActive, int64(1000), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(41))

		err := repo.Create(ctx, rental)
		assert.NoError(t, err)
		assert.Equal(t, int64(41), rental.ID)
		assert.False(t, rental.CreatedOn.IsZero())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("GameAlreadyRented", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO rentals").
			WillReturnError(&pq.Error{Code: "23505", Constraint: "idx_rentals_one_open_per_game"})

		err := repo.Create(ctx, &domain.Rental{BranchID: 1, GameID: 2, Status: domain.RentalStatusActive})
		assert.ErrorIs(t, err, repository.ErrConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRentalRepository_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := NewRentalRepository(db)
	ctx := context.Background()
	now := time.Now()

	t.Run("Success", func(t *testing.T) {
		rows := sqlmock.NewRows(rentalCols).
			AddRow(1, 1, 2, 3, "Layla", now, 30, "completed", 1000, "", "cash", 1000, now, now, now)

		mock.ExpectQuery("SELECT (.+) FROM rentals WHERE id = \\$1").
			WithArgs(int64(1)).
			WillReturnRows(rows)

		rental, err := repo.GetByID(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(1), rental.ID)
		assert.Equal(t, domain.RentalStatusCompleted, rental.Status)
		require.NotNil(t, rental.CompletedAt)
		assert.Equal(t, "cash", rental.PaymentMethod)
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM rentals WHERE id = \\$1").
			WithArgs(int64(99)).
			WillReturnError(sql.ErrNoRows)

		_, err := repo.GetByID(ctx, 99)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestRentalRepository_Update(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := NewRentalRepository(db)
	ctx := context.Background()
	rental := &domain.Rental{ID: 5, Status: domain.RentalStatusCancelled, DurationMinutes: 30, TotalPriceCents: 1000, CancelReason: "wrong car"}

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec("UPDATE rentals").
			WithArgs(domain.RentalStatusCancelled, int32(30), int64(1000), "wrong car", "", int64(0), sqlmock.AnyArg(), sqlmock.AnyArg(), int64(5), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.Update(ctx, rental, domain.RentalStatusActive)
		assert.NoError(t, err)
	})

	t.Run("Conflict", func(t *testing.T) {
		mock.ExpectExec("UPDATE rentals").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Update(ctx, rental, domain.RentalStatusActive)
		assert.ErrorIs(t, err, repository.ErrConflict)
	})

	t.Run("NoSourceStatus", func(t *testing.T) {
		err := repo.Update(ctx, rental)
		assert.Error(t, err)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRentalRepository_Extend(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := NewRentalRepository(db)
	ctx := context.Background()
	rental := &domain.Rental{ID: 5, Status: domain.RentalStatusActive, DurationMinutes: 45, TotalPriceCents: 1500}

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec(`UPDATE rentals\s+SET status=\$1, duration_minutes=\$2, total_price_cents=\$3, updated_on=\$4\s+WHERE id=\$5 AND duration_minutes=\$6 AND status = ANY\(\$7\)`).
			WithArgs(domain.RentalStatusActive, int32(45), int64(1500), sqlmock.AnyArg(), int64(5), int32(30), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.Extend(ctx, rental, 30, domain.RentalStatusActive, domain.RentalStatusExpired)
		assert.NoError(t, err)
	})

	t.Run("DurationChangedConcurrently", func(t *testing.T) {
		mock.ExpectExec("UPDATE rentals").
			WithArgs(domain.RentalStatusActive, int32(45), int64(1500), sqlmock.AnyArg(), int64(5), int32(30), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Extend(ctx, rental, 30, domain.RentalStatusActive)
		assert.ErrorIs(t, err, repository.ErrConflict)
	})

	t.Run("NoSourceStatus", func(t *testing.T) {
		err := repo.Extend(ctx, rental, 30)
		assert.Error(t, err)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRentalRepository_ListOpen(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := NewRentalRepository(db)
	ctx := context.Background()
	now := time.Now()

	t.Run("Branch", func(t *testing.T) {
		rows := sqlmock.NewRows(rentalCols).
			AddRow(1, 4, 2, 3, "A", now, 15, "active", 500, "", "", 0, nil, now, now).
			AddRow(2, 4, 3, 3, "B", now, 30, "expired", 1000, "", "", 0, nil, now, now)
		mock.ExpectQuery("SELECT (.+) FROM rentals WHERE status IN \\('active', 'expired'\\) AND branch_id = \\$1").
			WithArgs(int64(4)).
			WillReturnRows(rows)

		got, err := repo.ListOpen(ctx, 4)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Nil(t, got[0].CompletedAt)
		assert.Equal(t, domain.RentalStatusExpired, got[1].Status)
	})

	t.Run("AllBranchesEmpty", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM rentals WHERE status IN \\('active', 'expired'\\) ORDER BY").
			WillReturnRows(sqlmock.NewRows(rentalCols))

		got, err := repo.ListOpen(ctx, 0)
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})
}

func TestRentalRepository_RevenueByGame(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := NewRentalRepository(db)
	from := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	mock.ExpectQuery("SELECT (.+) FROM rentals r JOIN games g").
		WithArgs(from, to, int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"branch_id", "game_id", "name", "count", "minutes", "billed", "collected"}).
			AddRow(1, 2, "Red Kart", 3, 75, 2500, 2400))

	lines, err := repo.RevenueByGame(context.Background(), 1, from, to)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "Red Kart", lines[0].GameName)
	assert.Equal(t, int64(3), lines[0].Rentals)
	assert.Equal(t, int64(2400), lines[0].CollectedCents)
}

func TestRentalRepository_HasOpenOnGame(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	busy, err := NewRentalRepository(db).HasOpenOnGame(context.Background(), 2)
	require.NoError(t, err)
	assert.True(t, busy)
}
