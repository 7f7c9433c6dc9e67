package gate

import (
	"rentalshop-trusted/internal/domain"
	"rentalshop-trusted/internal/rentaltimer"
)

// State is the per-rental position in the action state machine.
type State string

const (
	StateActiveCancellable        State = "active-cancellable"
	StateActiveLocked             State = "active-locked"
	StateNearEnd                  State = "near-end"
	StateExpiredPendingCompletion State = "expired-pending-completion"
	StateTerminal                 State = "terminal"
)

// Evaluate derives the state from the server status and the current timer
// state. Time alone moves a rental forward; only a confirmed extend moves it
// back.
func Evaluate(status domain.RentalStatus, ts rentaltimer.State) State {
	switch {
	case status.IsTerminal():
		return StateTerminal
	case status == domain.RentalStatusExpired, ts.IsExpired:
		return StateExpiredPendingCompletion
	case ts.CanCancel:
		return StateActiveCancellable
	case ts.IsNearEnd:
		return StateNearEnd
	default:
		return StateActiveLocked
	}
}

// Permissions is what the UI may enable for a rental right now.
type Permissions struct {
	State    State `json:"state"`
	Cancel   bool  `json:"cancel"`
	Extend   bool  `json:"extend"`
	Complete bool  `json:"complete"`
}

func permissionsFor(s State) Permissions {
	return Permissions{
		State:    s,
		Cancel:   s == StateActiveCancellable,
		Extend:   s == StateNearEnd || s == StateExpiredPendingCompletion,
		Complete: s == StateExpiredPendingCompletion,
	}
}
