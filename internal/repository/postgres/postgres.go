package postgres

import (
	"database/sql"
	"errors"

	"rentalshop-trusted/internal/repository"

	"github.com/lib/pq"
)

type Store struct {
	db *sql.DB
	repository.UserRepository
	repository.BranchRepository
	repository.GameRepository
	repository.RentalRepository
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:               db,
		UserRepository:   NewUserRepository(db),
		BranchRepository: NewBranchRepository(db),
		GameRepository:   NewGameRepository(db),
		RentalRepository: NewRentalRepository(db),
	}
}

// DB exposes the pool for health checks and jobs.
func (s *Store) DB() *sql.DB {
	return s.db
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
