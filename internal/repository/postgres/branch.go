package postgres

import (
	"context"
	"database/sql"

	"rentalshop-trusted/internal/domain"
	"rentalshop-trusted/internal/repository"
)

type branchRepository struct {
	db *sql.DB
}

func NewBranchRepository(db *sql.DB) repository.BranchRepository {
	return &branchRepository{db: db}
}

func (r *branchRepository) GetByID(ctx context.Context, id int64) (*domain.Branch, error) {
	b := &domain.Branch{}
	query := `SELECT id, name, COALESCE(manager_email, '') FROM branches WHERE id = $1`
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&b.ID, &b.Name, &b.ManagerEmail); err != nil {
		return nil, notFound(err)
	}
	return b, nil
}

func (r *branchRepository) List(ctx context.Context) ([]domain.Branch, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, COALESCE(manager_email, '') FROM branches ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var branches []domain.Branch
	for rows.Next() {
		var b domain.Branch
		if err := rows.Scan(&b.ID, &b.Name, &b.ManagerEmail); err != nil {
			return nil, err
		}
		branches = append(branches, b)
	}
	return branches, rows.Err()
}
