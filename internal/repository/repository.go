package repository

import (
	"context"
	"errors"
	"time"

	"rentalshop-trusted/internal/domain"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrConflict means the row exists but was not in a state the update
	// allows, usually because another terminal got there first.
	ErrConflict = errors.New("record changed concurrently")
)

type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

type BranchRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Branch, error)
	List(ctx context.Context) ([]domain.Branch, error)
}

type GameRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Game, error)
	ListByBranch(ctx context.Context, branchID int64) ([]domain.Game, error)
}

type RentalRepository interface {
	Create(ctx context.Context, rental *domain.Rental) error
	GetByID(ctx context.Context, id int64) (*domain.Rental, error)
	// Update writes the mutable fields of rental, but only if the stored row
	// is still in one of fromStatuses. Otherwise it returns ErrConflict.
	Update(ctx context.Context, rental *domain.Rental, fromStatuses ...domain.RentalStatus) error
	// Extend writes the new duration, price and status of rental, but only if
	// the stored row still has fromDuration and one of fromStatuses. A
	// concurrent extend therefore makes one of the two return ErrConflict.
	Extend(ctx context.Context, rental *domain.Rental, fromDuration int32, fromStatuses ...domain.RentalStatus) error
	// ListOpen returns active and expired rentals, oldest start first. A zero
	// branchID lists every branch.
	ListOpen(ctx context.Context, branchID int64) ([]domain.Rental, error)
	// HasOpenOnGame reports whether the game is currently rented out.
	HasOpenOnGame(ctx context.Context, gameID int64) (bool, error)
	// ListCompleted returns rentals completed in [from, to).
	ListCompleted(ctx context.Context, branchID int64, from, to time.Time) ([]domain.Rental, error)
	// RevenueByGame aggregates completed rentals in [from, to) per game.
	RevenueByGame(ctx context.Context, branchID int64, from, to time.Time) ([]domain.RevenueLine, error)
}
