package service

import (
	"context"
	"errors"
	"io"
	"time"

	"rentalshop-trusted/internal/domain"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountDisabled    = errors.New("account is disabled")
	ErrForbidden          = errors.New("not allowed for this role or branch")
	ErrInvalidInput       = errors.New("invalid input")
	ErrRentalNotFound     = errors.New("rental not found")
	ErrGameNotFound       = errors.New("game not found")
	ErrGameUnavailable    = errors.New("game is inactive or already rented")
	// ErrCancelWindowClosed is the server's own check of the cancel window;
	// a terminal with a drifting clock cannot bypass it.
	ErrCancelWindowClosed = errors.New("cancellation window closed")
	ErrInvalidTransition  = errors.New("rental is not in a state that allows this action")
)

// Actor is the authenticated caller of a service method.
type Actor struct {
	UserID   int64
	Role     domain.Role
	BranchID int64
}

// SystemActor is used by scheduled jobs.
var SystemActor = Actor{Role: domain.RoleAdmin}

// StartRentalInput is what an employee enters at the counter.
type StartRentalInput struct {
	BranchID        int64  `json:"branch_id"`
	GameID          int64  `json:"game_id"`
	CustomerName    string `json:"customer_name"`
	DurationMinutes int32  `json:"duration_minutes"`
}

// LoginResult carries the issued tokens and the signed-in user.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	User         *domain.User
}

// RevenueReport sums completed rentals over [From, To).
type RevenueReport struct {
	BranchID       int64                `json:"branch_id"`
	From           time.Time            `json:"from"`
	To             time.Time            `json:"to"`
	Lines          []domain.RevenueLine `json:"lines"`
	Rentals        int64                `json:"rentals"`
	Minutes        int64                `json:"minutes"`
	BilledCents    int64                `json:"billed_cents"`
	CollectedCents int64                `json:"collected_cents"`
}

type AuthService interface {
	Login(ctx context.Context, username, password string) (*LoginResult, error)
}

type RentalService interface {
	StartRental(ctx context.Context, actor Actor, in StartRentalInput) (*domain.Rental, error)
	GetRental(ctx context.Context, actor Actor, id int64) (*domain.Rental, error)
	ListActive(ctx context.Context, actor Actor, branchID int64) ([]domain.Rental, error)
	CancelRental(ctx context.Context, actor Actor, id int64, reason string) (*domain.Rental, error)
	ExtendRental(ctx context.Context, actor Actor, id int64, extraMinutes int32) (*domain.Rental, error)
	CompleteRental(ctx context.Context, actor Actor, id int64, payment domain.PaymentInfo) (*domain.Rental, error)
}

type ReportService interface {
	RevenueSummary(ctx context.Context, actor Actor, branchID int64, from, to time.Time) (*RevenueReport, error)
	WriteRevenueCSV(ctx context.Context, actor Actor, branchID int64, from, to time.Time, w io.Writer) error
}

// Mailer sends one e-mail. notify.SendGrid satisfies it.
type Mailer interface {
	SendEmail(ctx context.Context, to, subject, plainText, htmlContent string) error
}

// scopeBranch resolves which branch a caller may act on. Only admins may
// pick another branch or all branches (zero).
func scopeBranch(actor Actor, requested int64) (int64, error) {
	if actor.Role.SpansBranches() {
		return requested, nil
	}
	if actor.BranchID == 0 {
		return 0, ErrForbidden
	}
	if requested != 0 && requested != actor.BranchID {
		return 0, ErrForbidden
	}
	return actor.BranchID, nil
}
