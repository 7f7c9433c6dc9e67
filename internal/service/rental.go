package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"rentalshop-trusted/internal/clock"
	"rentalshop-trusted/internal/domain"
	"rentalshop-trusted/internal/logger"
	"rentalshop-trusted/internal/metrics"
	"rentalshop-trusted/internal/rentaltimer"
	"rentalshop-trusted/internal/repository"
	"rentalshop-trusted/internal/utils"
)

const (
	// MaxDurationMinutes caps both a new rental and a single extension.
	MaxDurationMinutes = 12 * 60
	gameCacheTTL       = 5 * time.Minute
)

type rentalService struct {
	rentalRepo repository.RentalRepository
	gameRepo   repository.GameRepository
	clock      clock.Clock
	games      *expirable.LRU[int64, domain.Game]
}

func NewRentalService(rentalRepo repository.RentalRepository, gameRepo repository.GameRepository, c clock.Clock, gameCacheSize int) RentalService {
	if c == nil {
		c = clock.System{}
	}
	if gameCacheSize <= 0 {
		gameCacheSize = 256
	}
	return &rentalService{
		rentalRepo: rentalRepo,
		gameRepo:   gameRepo,
		clock:      c,
		games:      expirable.NewLRU[int64, domain.Game](gameCacheSize, nil, gameCacheTTL),
	}
}

func (s *rentalService) game(ctx context.Context, id int64) (*domain.Game, error) {
	if g, ok := s.games.Get(id); ok {
		return &g, nil
	}
	g, err := s.gameRepo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, err
	}
	s.games.Add(id, *g)
	return g, nil
}

// load fetches a rental and checks the caller may act on its branch.
func (s *rentalService) load(ctx context.Context, actor Actor, id int64) (*domain.Rental, error) {
	if !actor.Role.CanOperateRentals() {
		return nil, ErrForbidden
	}
	rt, err := s.rentalRepo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrRentalNotFound
	}
	if err != nil {
		return nil, err
	}
	if !actor.Role.SpansBranches() && rt.BranchID != actor.BranchID {
		// not found rather than forbidden, ids of other branches stay opaque
		return nil, ErrRentalNotFound
	}
	return rt, nil
}

func record(op string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrCancelWindowClosed), errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrGameUnavailable):
		result = "refused"
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrForbidden), errors.Is(err, ErrRentalNotFound), errors.Is(err, ErrGameNotFound):
		result = "rejected"
	default:
		result = "error"
	}
	metrics.RentalOperationsTotal.WithLabelValues(op, result).Inc()
}

func (s *rentalService) StartRental(ctx context.Context, actor Actor, in StartRentalInput) (rt *domain.Rental, err error) {
	logger.EnterMethod("RentalService.StartRental", "user_id", actor.UserID, "game_id", in.GameID)
	defer func() {
		record("start", err)
		if err != nil {
			logger.ExitMethodWithError("RentalService.StartRental", err)
		}
	}()

	if !actor.Role.CanOperateRentals() {
		return nil, ErrForbidden
	}
	in.CustomerName = strings.TrimSpace(in.CustomerName)
	if in.GameID <= 0 || in.CustomerName == "" {
		return nil, fmt.Errorf("%w: game_id and customer_name are required", ErrInvalidInput)
	}
	if in.DurationMinutes < domain.MinDurationMinutes || in.DurationMinutes > MaxDurationMinutes {
		return nil, fmt.Errorf("%w: duration must be between %d and %d minutes", ErrInvalidInput, domain.MinDurationMinutes, MaxDurationMinutes)
	}

	g, err := s.game(ctx, in.GameID)
	if err != nil {
		return nil, err
	}
	branchID, err := scopeBranch(actor, g.BranchID)
	if err != nil {
		return nil, err
	}
	if in.BranchID != 0 && in.BranchID != branchID {
		return nil, fmt.Errorf("%w: game %d belongs to branch %d", ErrInvalidInput, g.ID, g.BranchID)
	}
	if !g.Active {
		return nil, ErrGameUnavailable
	}
	busy, err := s.rentalRepo.HasOpenOnGame(ctx, g.ID)
	if err != nil {
		return nil, err
	}
	if busy {
		return nil, ErrGameUnavailable
	}

	price, err := utils.CalculateRentalCost(in.DurationMinutes, g)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	rt = &domain.Rental{
		BranchID:        g.BranchID,
		GameID:          g.ID,
		EmployeeID:      actor.UserID,
		CustomerName:    in.CustomerName,
		StartTime:       s.clock.Now().UTC().Truncate(time.Second),
		DurationMinutes: in.DurationMinutes,
		Status:          domain.RentalStatusActive,
		TotalPriceCents: price,
	}
	if err := s.rentalRepo.Create(ctx, rt); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrGameUnavailable
		}
		return nil, err
	}

	logger.ExitMethod("RentalService.StartRental", "rental_id", rt.ID, "total_price_cents", price)
	return rt, nil
}

func (s *rentalService) GetRental(ctx context.Context, actor Actor, id int64) (*domain.Rental, error) {
	return s.load(ctx, actor, id)
}

func (s *rentalService) ListActive(ctx context.Context, actor Actor, branchID int64) ([]domain.Rental, error) {
	if !actor.Role.CanOperateRentals() {
		return nil, ErrForbidden
	}
	scoped, err := scopeBranch(actor, branchID)
	if err != nil {
		return nil, err
	}
	return s.rentalRepo.ListOpen(ctx, scoped)
}

// CancelRental applies the same cancel window the terminals enforce, measured
// on the server clock.
func (s *rentalService) CancelRental(ctx context.Context, actor Actor, id int64, reason string) (rt *domain.Rental, err error) {
	logger.EnterMethod("RentalService.CancelRental", "user_id", actor.UserID, "rental_id", id)
	defer func() {
		record("cancel", err)
		if err != nil {
			logger.ExitMethodWithError("RentalService.CancelRental", err, "rental_id", id)
		}
	}()

	rt, err = s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if rt.Status != domain.RentalStatusActive {
		return nil, ErrInvalidTransition
	}
	if !rentaltimer.Compute(*rt, s.clock.Now()).CanCancel {
		return nil, ErrCancelWindowClosed
	}

	rt.Status = domain.RentalStatusCancelled
	rt.CancelReason = strings.TrimSpace(reason)
	if err := s.update(ctx, rt, domain.RentalStatusActive); err != nil {
		return nil, err
	}
	logger.ExitMethod("RentalService.CancelRental", "rental_id", id)
	return rt, nil
}

// ExtendRental adds minutes to an open rental and reprices it. An expired
// rental becomes active again.
func (s *rentalService) ExtendRental(ctx context.Context, actor Actor, id int64, extraMinutes int32) (rt *domain.Rental, err error) {
	logger.EnterMethod("RentalService.ExtendRental", "user_id", actor.UserID, "rental_id", id, "extra_minutes", extraMinutes)
	defer func() {
		record("extend", err)
		if err != nil {
			logger.ExitMethodWithError("RentalService.ExtendRental", err, "rental_id", id)
		}
	}()

	if extraMinutes <= 0 || extraMinutes > MaxDurationMinutes {
		return nil, fmt.Errorf("%w: extra_minutes must be between 1 and %d", ErrInvalidInput, MaxDurationMinutes)
	}
	rt, err = s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !rt.Status.IsOpen() {
		return nil, ErrInvalidTransition
	}
	g, err := s.game(ctx, rt.GameID)
	if err != nil {
		return nil, err
	}

	from, fromDuration := rt.Status, rt.DurationMinutes
	rt.DurationMinutes += extraMinutes
	price, err := utils.CalculateRentalCost(rt.DurationMinutes, g)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	rt.TotalPriceCents = price
	rt.Status = domain.RentalStatusActive
	if err := s.rentalRepo.Extend(ctx, rt, fromDuration, from); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}
	logger.ExitMethod("RentalService.ExtendRental", "rental_id", id, "duration_minutes", rt.DurationMinutes, "total_price_cents", price)
	return rt, nil
}

// CompleteRental closes a rental whose time has run out and records payment.
func (s *rentalService) CompleteRental(ctx context.Context, actor Actor, id int64, payment domain.PaymentInfo) (rt *domain.Rental, err error) {
	logger.EnterMethod("RentalService.CompleteRental", "user_id", actor.UserID, "rental_id", id)
	defer func() {
		record("complete", err)
		if err != nil {
			logger.ExitMethodWithError("RentalService.CompleteRental", err, "rental_id", id)
		}
	}()

	payment.Method = strings.ToLower(strings.TrimSpace(payment.Method))
	if payment.Method == "" || payment.PaidCents < 0 {
		return nil, fmt.Errorf("%w: payment_method is required and paid_cents must not be negative", ErrInvalidInput)
	}
	rt, err = s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if !rt.Status.IsOpen() {
		return nil, ErrInvalidTransition
	}
	if rt.Status == domain.RentalStatusActive && !rentaltimer.Compute(*rt, now).IsExpired {
		return nil, ErrInvalidTransition
	}

	from := rt.Status
	completedAt := now.UTC()
	rt.Status = domain.RentalStatusCompleted
	rt.PaymentMethod = payment.Method
	rt.PaidCents = payment.PaidCents
	rt.CompletedAt = &completedAt
	if err := s.update(ctx, rt, from); err != nil {
		return nil, err
	}
	logger.ExitMethod("RentalService.CompleteRental", "rental_id", id, "paid_cents", payment.PaidCents)
	return rt, nil
}

func (s *rentalService) update(ctx context.Context, rt *domain.Rental, from domain.RentalStatus) error {
	err := s.rentalRepo.Update(ctx, rt, from)
	if errors.Is(err, repository.ErrConflict) {
		return ErrInvalidTransition
	}
	return err
}
