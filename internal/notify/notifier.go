// Package notify delivers rental alerts to staff: the log, e-mail via
// SendGrid and push via Firebase Cloud Messaging.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rentalshop-trusted/internal/logger"
)

type AlertKind string

const (
	AlertNearEnd AlertKind = "near_end"
	AlertEnded   AlertKind = "ended"
)

// Alert is one transition-triggered warning about a rental.
type Alert struct {
	ID               string    `json:"id"`
	Kind             AlertKind `json:"kind"`
	RentalID         int64     `json:"rental_id"`
	BranchID         int64     `json:"branch_id"`
	GameID           int64     `json:"game_id"`
	CustomerName     string    `json:"customer_name"`
	RemainingSeconds int64     `json:"remaining_seconds"`
	EndsAt           time.Time `json:"ends_at"`
	RaisedAt         time.Time `json:"raised_at"`
}

// NewAlert stamps a fresh alert id.
func NewAlert(kind AlertKind) Alert {
	return Alert{ID: uuid.NewString(), Kind: kind}
}

func (a Alert) Title() string {
	switch a.Kind {
	case AlertNearEnd:
		return "Rental ending soon"
	case AlertEnded:
		return "Rental time is up"
	default:
		return "Rental alert"
	}
}

func (a Alert) Body() string {
	who := a.CustomerName
	if who == "" {
		who = fmt.Sprintf("rental #%d", a.RentalID)
	}
	switch a.Kind {
	case AlertNearEnd:
		mins := (a.RemainingSeconds + 59) / 60
		return fmt.Sprintf("%s has about %d minute(s) left (ends %s).", who, mins, a.EndsAt.Format("15:04"))
	case AlertEnded:
		return fmt.Sprintf("%s has reached the end of the session. Complete or extend it.", who)
	default:
		return who
	}
}

// Notifier delivers alerts. Implementations must be safe for concurrent use.
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

// Log writes alerts to the structured log. It is the sound-and-banner
// equivalent of a headless monitor.
type Log struct{}

func (Log) Notify(ctx context.Context, a Alert) error {
	logger.WarnContext(ctx, a.Title(),
		"alert_id", a.ID,
		"kind", a.Kind,
		"rental_id", a.RentalID,
		"branch_id", a.BranchID,
		"remaining_seconds", a.RemainingSeconds,
		"message", a.Body())
	return nil
}

// Multi fans an alert out to several notifiers. Every notifier is tried; the
// errors are joined.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, a Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
