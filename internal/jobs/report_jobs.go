package jobs

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"rentalshop-trusted/internal/domain"
	"rentalshop-trusted/internal/logger"
	"rentalshop-trusted/internal/service"
	"rentalshop-trusted/internal/utils"
)

// SendRevenueReport e-mails each branch manager the revenue of the current
// UTC day.
func (jr *JobRunner) SendRevenueReport() {
	jr.runWithRecovery("SendRevenueReport", func() {
		sent, err := jr.sendRevenueReport(context.Background())
		if err != nil {
			logger.Error("Failed to send revenue reports", "error", err)
			return
		}
		logger.Info("Revenue reports sent", "count", sent)
	})
}

func (jr *JobRunner) sendRevenueReport(ctx context.Context) (int, error) {
	day := utils.DateOf(jr.clock.Now().UTC())
	from := day.Start(time.UTC)
	to := from.AddDate(0, 0, 1)

	branches, err := jr.store.BranchRepository.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list branches: %w", err)
	}

	sent := 0
	for _, b := range branches {
		if b.ManagerEmail == "" {
			logger.Debug("Branch has no manager e-mail, skipping report", "branch_id", b.ID)
			continue
		}
		report, err := jr.services.Report.RevenueSummary(ctx, service.SystemActor, b.ID, from, to)
		if err != nil {
			logger.Error("Failed to build revenue report", "branch_id", b.ID, "error", err)
			continue
		}
		if jr.services.Mailer == nil {
			logger.Info("No mailer configured, revenue report logged only",
				"branch_id", b.ID, "rentals", report.Rentals, "collected_cents", report.CollectedCents)
			continue
		}

		subject, plain, htmlBody := renderRevenueEmail(b, day, report)
		err = jr.services.Mailer.SendEmail(ctx, b.ManagerEmail, subject, plain, htmlBody)
		if err != nil {
			continue
		}
		sent++
	}
	return sent, nil
}

func renderRevenueEmail(b domain.Branch, day utils.Date, r *service.RevenueReport) (string, string, string) {
	subject := fmt.Sprintf("Revenue for %s on %s", b.Name, day)

	var plain, rows strings.Builder
	fmt.Fprintf(&plain, "%s, %s\n\n", b.Name, day)
	for _, l := range r.Lines {
		fmt.Fprintf(&plain, "%-24s %4d rentals %6d min  %10s\n", l.GameName, l.Rentals, l.Minutes, service.FormatCents(l.CollectedCents))
		fmt.Fprintf(&rows, "<tr><td>%s</td><td>%d</td><td>%d</td><td>%s</td></tr>",
			html.EscapeString(l.GameName), l.Rentals, l.Minutes, service.FormatCents(l.CollectedCents))
	}
	fmt.Fprintf(&plain, "\nTotal: %d rentals, billed %s, collected %s\n",
		r.Rentals, service.FormatCents(r.BilledCents), service.FormatCents(r.CollectedCents))

	htmlBody := fmt.Sprintf(`<h3>%s, %s</h3><table><tr><th>Game</th><th>Rentals</th><th>Minutes</th><th>Collected</th></tr>%s</table><p>Total: %d rentals, billed %s, collected %s</p>`,
		html.EscapeString(b.Name), day, rows.String(), r.Rentals, service.FormatCents(r.BilledCents), service.FormatCents(r.CollectedCents))
	return subject, plain.String(), htmlBody
}
