package service_test

import (
	"context"
	"time"

	"rentalshop-trusted/internal/domain"

	"github.com/stretchr/testify/mock"
)

// MockUserRepo
type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

// MockGameRepo
type MockGameRepo struct {
	mock.Mock
}

func (m *MockGameRepo) GetByID(ctx context.Context, id int64) (*domain.Game, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Game), args.Error(1)
}

func (m *MockGameRepo) ListByBranch(ctx context.Context, branchID int64) ([]domain.Game, error) {
	args := m.Called(ctx, branchID)
	return args.Get(0).([]domain.Game), args.Error(1)
}

// MockRentalRepo
type MockRentalRepo struct {
	mock.Mock
}

func (m *MockRentalRepo) Create(ctx context.Context, rental *domain.Rental) error {
	args := m.Called(ctx, rental)
	return args.Error(0)
}

func (m *MockRentalRepo) GetByID(ctx context.Context, id int64) (*domain.Rental, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	// hand out a copy so the service can mutate it freely
	rt := *args.Get(0).(*domain.Rental)
	return &rt, args.Error(1)
}

func (m *MockRentalRepo) Update(ctx context.Context, rental *domain.Rental, fromStatuses ...domain.RentalStatus) error {
	args := m.Called(ctx, rental, fromStatuses)
	return args.Error(0)
}

func (m *MockRentalRepo) Extend(ctx context.Context, rental *domain.Rental, fromDuration int32, fromStatuses ...domain.RentalStatus) error {
	args := m.Called(ctx, rental, fromDuration, fromStatuses)
	return args.Error(0)
}

func (m *MockRentalRepo) ListOpen(ctx context.Context, branchID int64) ([]domain.Rental, error) {
	args := m.Called(ctx, branchID)
	return args.Get(0).([]domain.Rental), args.Error(1)
}

func (m *MockRentalRepo) HasOpenOnGame(ctx context.Context, gameID int64) (bool, error) {
	args := m.Called(ctx, gameID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRentalRepo) ListCompleted(ctx context.Context, branchID int64, from, to time.Time) ([]domain.Rental, error) {
	args := m.Called(ctx, branchID, from, to)
	return args.Get(0).([]domain.Rental), args.Error(1)
}

func (m *MockRentalRepo) RevenueByGame(ctx context.Context, branchID int64, from, to time.Time) ([]domain.RevenueLine, error) {
	args := m.Called(ctx, branchID, from, to)
	return args.Get(0).([]domain.RevenueLine), args.Error(1)
}
