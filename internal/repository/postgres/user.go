package postgres

import (
	"context"
	"database/sql"
	"time"

	"rentalshop-trusted/internal/domain"
	"rentalshop-trusted/internal/logger"
	"rentalshop-trusted/internal/repository"
)

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, username, name, COALESCE(email, ''), password_hash, role, COALESCE(branch_id, 0), active, created_on`

func scanUser(row interface{ Scan(...any) error }) (*domain.User, error) {
	u := &domain.User{}
	var createdOn time.Time
	if err := row.Scan(&u.ID, &u.Username, &u.Name, &u.Email, &u.PasswordHash, &u.RawRole, &u.BranchID, &u.Active, &createdOn); err != nil {
		return nil, err
	}
	u.CreatedOn = createdOn.Format("2006-01-02")
	return u, nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	logger.DatabaseCall("users.GetByUsername", "username", username)
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(username) = LOWER($1)`
	u, err := scanUser(r.db.QueryRowContext(ctx, query, username))
	if err != nil {
		err = notFound(err)
		logger.DatabaseResult("users.GetByUsername", 0, err)
		return nil, err
	}
	logger.DatabaseResult("users.GetByUsername", 1, nil)
	return u, nil
}
