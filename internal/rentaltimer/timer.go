// Package rentaltimer derives the countdown state of a rental from its start
// time, its current duration and the time now. Everything here is pure.
package rentaltimer

import (
	"time"

	"rentalshop-trusted/internal/domain"
)

const (
	// CancelWindowSeconds is measured from start_time. Inclusive.
	CancelWindowSeconds = 180
	// NearEndSeconds is the remaining time at which the end warning starts. Inclusive.
	NearEndSeconds = 300
)

// State is the derived countdown state of one rental at one instant. The
// flags are decided on exact durations; the second counts are rounded up.
type State struct {
	RentalID         int64     `json:"rental_id"`
	EndsAt           time.Time `json:"ends_at"`
	ElapsedSeconds   int64     `json:"elapsed_seconds"`
	RemainingSeconds int64     `json:"remaining_seconds"`
	IsExpired        bool      `json:"is_expired"`
	IsNearEnd        bool      `json:"is_near_end"`
	CanCancel        bool      `json:"can_cancel"`
	// Valid is false when the rental had no usable start time or duration and
	// the fail-safe "already ended" state was produced instead.
	Valid bool `json:"valid"`
}

// IsMalformed reports whether the record cannot be timed at all.
func IsMalformed(r domain.Rental) bool {
	return r.StartTime.IsZero() || r.DurationMinutes <= 0
}

// Compute returns the timer state of r at now. Malformed rentals come back as
// expired and not cancellable rather than as an error.
func Compute(r domain.Rental, now time.Time) State {
	if IsMalformed(r) {
		return State{
			RentalID:  r.ID,
			IsExpired: true,
		}
	}

	end := r.EndTime()
	elapsed := now.Sub(r.StartTime)
	remaining := end.Sub(now)
	if remaining < 0 {
		remaining = 0
	}

	return State{
		RentalID:         r.ID,
		EndsAt:           end,
		ElapsedSeconds:   ceilSeconds(elapsed),
		RemainingSeconds: ceilSeconds(remaining),
		IsExpired:        remaining <= 0,
		IsNearEnd:        remaining > 0 && remaining <= NearEndSeconds*time.Second,
		CanCancel:        elapsed <= CancelWindowSeconds*time.Second,
		Valid:            true,
	}
}

// ceilSeconds rounds up, so the whole-second fields compare against the
// thresholds exactly like the durations they were taken from.
func ceilSeconds(d time.Duration) int64 {
	s := int64(d / time.Second)
	if d%time.Second > 0 {
		s++
	}
	return s
}
