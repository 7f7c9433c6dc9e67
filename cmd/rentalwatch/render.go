package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"rentalshop-trusted/internal/aggregator"
	"rentalshop-trusted/internal/gate"
	"rentalshop-trusted/internal/rentaltimer"
	"rentalshop-trusted/internal/service"
)

// stateSource is the part of the gate the board view reads.
type stateSource interface {
	State(id int64) (gate.State, bool)
}

func renderBoard(w io.Writer, snap aggregator.Snapshot, states stateSource) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Rentals at %s\n\n", snap.At.Local().Format("15:04:05"))
	fmt.Fprintln(tw, "ID\tCUSTOMER\tGAME\tENDS\tREMAINING\tSTATE\tACTIONS")
	for _, row := range snap.Rows() {
		// the gate only overrides rentals it has closed; everything else is
		// evaluated from this snapshot so the columns agree
		if st, ok := states.State(row.Rental.ID); ok && st == gate.StateTerminal {
			continue
		}
		st := gate.Evaluate(row.Rental.Status, row.State)
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\t%s\n",
			row.Rental.ID,
			row.Rental.CustomerName,
			row.Rental.GameID,
			row.State.EndsAt.Local().Format("15:04"),
			formatRemaining(row.State, snap.At),
			st,
			actionsFor(st))
	}
	for _, id := range snap.Malformed {
		fmt.Fprintf(tw, "%d\t%s\t\t\tinvalid record\t\t\n", id, snap.Rentals[id].CustomerName)
	}

	s := snap.Summary
	fmt.Fprintf(tw, "\n%d open, %d near end, %d ended, %d cancellable, avg %.0f min, %s on the board\n",
		s.Count, s.NearEnd, s.Expired, s.Cancellable, s.AvgDurationMinutes, service.FormatCents(s.RevenueCents))
	return tw.Flush()
}

func formatRemaining(st rentaltimer.State, at time.Time) string {
	if st.IsExpired {
		over := at.Sub(st.EndsAt).Truncate(time.Second)
		if over <= 0 {
			return "ended"
		}
		return "ended " + formatClock(over) + " ago"
	}
	return formatClock(time.Duration(st.RemainingSeconds) * time.Second)
}

// formatClock renders h:mm:ss, or mm:ss under an hour.
func formatClock(d time.Duration) string {
	total := int64(d / time.Second)
	h, m, sec := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%02d:%02d", m, sec)
}

func actionsFor(st gate.State) string {
	switch st {
	case gate.StateActiveCancellable:
		return "cancel"
	case gate.StateNearEnd:
		return "extend"
	case gate.StateExpiredPendingCompletion:
		return "extend, complete"
	default:
		return "-"
	}
}
