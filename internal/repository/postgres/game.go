package postgres

import (
	"context"
	"database/sql"

	"rentalshop-trusted/internal/domain"
	"rentalshop-trusted/internal/repository"
)

type gameRepository struct {
	db *sql.DB
}

func NewGameRepository(db *sql.DB) repository.GameRepository {
	return &gameRepository{db: db}
}

const gameColumns = `id, branch_id, name, kind, price_per_block_cents, block_minutes, active`

func (r *gameRepository) GetByID(ctx context.Context, id int64) (*domain.Game, error) {
	g := &domain.Game{}
	query := `SELECT ` + gameColumns + ` FROM games WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&g.ID, &g.BranchID, &g.Name, &g.Kind, &g.PricePerBlockCents, &g.BlockMinutes, &g.Active)
	if err != nil {
		return nil, notFound(err)
	}
	return g, nil
}

func (r *gameRepository) ListByBranch(ctx context.Context, branchID int64) ([]domain.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE branch_id = $1 ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var games []domain.Game
	for rows.Next() {
		var g domain.Game
		if err := rows.Scan(&g.ID, &g.BranchID, &g.Name, &g.Kind, &g.PricePerBlockCents, &g.BlockMinutes, &g.Active); err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, rows.Err()
}
