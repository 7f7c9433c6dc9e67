package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"rentalshop-trusted/internal/domain"
	"rentalshop-trusted/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_GetByUsername(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := NewUserRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id", "username", "name", "email", "password_hash", "role", "branch_id", "active", "created_on"}).
			AddRow(3, "sara", "Sara", "sara@example.com", "hash", "مدير فرع", 2, true, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))
		mock.ExpectQuery("SELECT (.+) FROM users WHERE LOWER\\(username\\) = LOWER\\(\\$1\\)").
			WithArgs("Sara").
			WillReturnRows(rows)

		u, err := repo.GetByUsername(ctx, "Sara")
		require.NoError(t, err)
		assert.Equal(t, int64(3), u.ID)
		assert.Equal(t, domain.RoleBranchManager, u.Role())
		assert.Equal(t, "2026-01-02", u.CreatedOn)
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM users").
			WithArgs("ghost").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.GetByUsername(ctx, "ghost")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestGameRepository_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM games WHERE id = \\$1").
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "branch_id", "name", "kind", "price_per_block_cents", "block_minutes", "active"}).
			AddRow(2, 1, "Red Kart", "vehicle", 500, 15, true))

	g, err := NewGameRepository(db).GetByID(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, domain.GameKindVehicle, g.Kind)
	assert.Equal(t, int64(500), g.PricePerBlockCents)
}

func TestBranchRepository_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM branches ORDER BY id").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "manager_email"}).
			AddRow(1, "Corniche", "corniche@example.com").
			AddRow(2, "Mall", ""))

	branches, err := NewBranchRepository(db).List(context.Background())
	require.NoError(t, err)
	require.Len(t, branches, 2)
	assert.Equal(t, "Mall", branches[1].Name)
}
