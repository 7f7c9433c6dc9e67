package domain

import "time"

type RentalStatus string

const (
	RentalStatusActive    RentalStatus = "active"
	RentalStatusCompleted RentalStatus = "completed"
	RentalStatusCancelled RentalStatus = "cancelled"
	RentalStatusExpired   RentalStatus = "expired"
)

// MinDurationMinutes is the shortest session a rental can be started with.
const MinDurationMinutes = 15

// IsTerminal reports whether no further action can change the rental.
func (s RentalStatus) IsTerminal() bool {
	return s == RentalStatusCompleted || s == RentalStatusCancelled
}

// IsOpen reports whether the rental still occupies its game (running or overdue).
func (s RentalStatus) IsOpen() bool {
	return s == RentalStatusActive || s == RentalStatusExpired
}

type Rental struct {
	ID           int64  `json:"id"`
	BranchID     int64  `json:"branch_id"`
	GameID       int64  `json:"game_id"`
	EmployeeID   int64  `json:"employee_id"`
	CustomerName string `json:"customer_name"`
	// StartTime is set once by the server. A zero value on the client means the
	// record arrived without a parseable start_time.
	StartTime       time.Time    `json:"start_time"`
	DurationMinutes int32        `json:"duration_minutes"`
	Status          RentalStatus `json:"status"`
	TotalPriceCents int64        `json:"total_price_cents"`
	CancelReason    string       `json:"cancel_reason,omitempty"`
	PaymentMethod   string       `json:"payment_method,omitempty"`
	PaidCents       int64        `json:"paid_cents,omitempty"`
	CompletedAt     *time.Time   `json:"completed_at,omitempty"`
	CreatedOn       time.Time    `json:"created_on"`
	UpdatedOn       time.Time    `json:"updated_on"`
}

// EndTime is the current expiry, derived from the current duration.
func (r *Rental) EndTime() time.Time {
	return r.StartTime.Add(time.Duration(r.DurationMinutes) * time.Minute)
}

// PaymentInfo is what the employee records when closing a rental.
type PaymentInfo struct {
	Method    string `json:"payment_method"`
	PaidCents int64  `json:"paid_cents"`
}
