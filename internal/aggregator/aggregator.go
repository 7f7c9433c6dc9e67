// Package aggregator recomputes rental timers over the whole set of open
// rentals and derives the list-level summary shown on dashboards.
package aggregator

import (
	"time"

	"rentalshop-trusted/internal/domain"
	"rentalshop-trusted/internal/rentaltimer"
)

// Summary holds the list-level figures of one snapshot. Malformed rentals are
// not counted.
type Summary struct {
	Count              int     `json:"count"`
	RevenueCents       int64   `json:"revenue_cents"`
	AvgDurationMinutes float64 `json:"avg_duration_minutes"`
	Cancellable        int     `json:"cancellable"`
	NearEnd            int     `json:"near_end"`
	Expired            int     `json:"expired"`
}

// Snapshot is the result of one recomputation. It is shared between every
// subscriber of a tick and must be treated as read-only.
type Snapshot struct {
	At        time.Time                   `json:"at"`
	Order     []int64                     `json:"order"`
	Rentals   map[int64]domain.Rental     `json:"-"`
	States    map[int64]rentaltimer.State `json:"states"`
	Malformed []int64                     `json:"malformed,omitempty"`
	Summary   Summary                     `json:"summary"`
}

// Rows returns the timed rentals in display order.
func (s Snapshot) Rows() []Row {
	rows := make([]Row, 0, len(s.Order))
	for _, id := range s.Order {
		st, ok := s.States[id]
		if !ok {
			continue
		}
		rows = append(rows, Row{Rental: s.Rentals[id], State: st})
	}
	return rows
}

type Row struct {
	Rental domain.Rental
	State  rentaltimer.State
}

// Aggregate computes timer states for rentals at now. It does not modify its
// input. Order follows the input order; duplicate ids keep the first position
// and the last record.
func Aggregate(rentals []domain.Rental, now time.Time) Snapshot {
	snap := Snapshot{
		At:      now,
		Order:   make([]int64, 0, len(rentals)),
		Rentals: make(map[int64]domain.Rental, len(rentals)),
		States:  make(map[int64]rentaltimer.State, len(rentals)),
	}

	for _, r := range rentals {
		if _, seen := snap.Rentals[r.ID]; !seen {
			snap.Order = append(snap.Order, r.ID)
		}
		snap.Rentals[r.ID] = r
	}

	var durationTotal int64
	for _, id := range snap.Order {
		r := snap.Rentals[id]
		if rentaltimer.IsMalformed(r) {
			snap.Malformed = append(snap.Malformed, id)
			continue
		}

		st := rentaltimer.Compute(r, now)
		snap.States[id] = st

		snap.Summary.Count++
		snap.Summary.RevenueCents += r.TotalPriceCents
		durationTotal += int64(r.DurationMinutes)
		if st.CanCancel {
			snap.Summary.Cancellable++
		}
		if st.IsNearEnd {
			snap.Summary.NearEnd++
		}
		if st.IsExpired {
			snap.Summary.Expired++
		}
	}

	if snap.Summary.Count > 0 {
		snap.Summary.AvgDurationMinutes = float64(durationTotal) / float64(snap.Summary.Count)
	}
	return snap
}
