package client

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"rentalshop-trusted/internal/domain"
)

// rentalPayload mirrors domain.Rental on the wire but keeps start_time raw so
// a bad value degrades one rental instead of failing the whole list.
type rentalPayload struct {
	ID              int64               `json:"id"`
	BranchID        int64               `json:"branch_id"`
	GameID          int64               `json:"game_id"`
	EmployeeID      int64               `json:"employee_id"`
	CustomerName    string              `json:"customer_name"`
	StartTime       json.RawMessage     `json:"start_time"`
	DurationMinutes int32               `json:"duration_minutes"`
	Status          domain.RentalStatus `json:"status"`
	TotalPriceCents int64               `json:"total_price_cents"`
	CancelReason    string              `json:"cancel_reason"`
	PaymentMethod   string              `json:"payment_method"`
	PaidCents       int64               `json:"paid_cents"`
	CompletedAt     *time.Time          `json:"completed_at"`
}

func (p rentalPayload) toDomain(log *slog.Logger) domain.Rental {
	start, ok := parseStartTime(p.StartTime)
	if !ok {
		log.Warn("Rental has unreadable start_time, timer disabled", "rental_id", p.ID, "start_time", string(p.StartTime))
	}
	return domain.Rental{
		ID:              p.ID,
		BranchID:        p.BranchID,
		GameID:          p.GameID,
		EmployeeID:      p.EmployeeID,
		CustomerName:    p.CustomerName,
		StartTime:       start,
		DurationMinutes: p.DurationMinutes,
		Status:          p.Status,
		TotalPriceCents: p.TotalPriceCents,
		CancelReason:    p.CancelReason,
		PaymentMethod:   p.PaymentMethod,
		PaidCents:       p.PaidCents,
		CompletedAt:     p.CompletedAt,
	}
}

var startLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// parseStartTime accepts an RFC 3339 string, a naive timestamp (taken as
// UTC) or unix milliseconds. Anything else yields the zero time.
func parseStartTime(raw json.RawMessage) (time.Time, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, false
	}

	var ms int64
	if err := json.Unmarshal(raw, &ms); err == nil {
		if ms <= 0 {
			return time.Time{}, false
		}
		return time.UnixMilli(ms).UTC(), true
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)
	for _, layout := range startLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
