package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"rentalshop-trusted/internal/domain"
	"rentalshop-trusted/internal/logger"
	"rentalshop-trusted/internal/repository"
)

type reportService struct {
	rentalRepo repository.RentalRepository
}

func NewReportService(rentalRepo repository.RentalRepository) ReportService {
	return &reportService{rentalRepo: rentalRepo}
}

func (s *reportService) scope(actor Actor, branchID int64, from, to time.Time) (int64, error) {
	if !actor.Role.CanViewReports() {
		return 0, ErrForbidden
	}
	if !to.After(from) {
		return 0, fmt.Errorf("%w: report range is empty", ErrInvalidInput)
	}
	return scopeBranch(actor, branchID)
}

func (s *reportService) RevenueSummary(ctx context.Context, actor Actor, branchID int64, from, to time.Time) (*RevenueReport, error) {
	branchID, err := s.scope(actor, branchID, from, to)
	if err != nil {
		return nil, err
	}

	lines, err := s.rentalRepo.RevenueByGame(ctx, branchID, from, to)
	if err != nil {
		return nil, err
	}
	report := &RevenueReport{BranchID: branchID, From: from, To: to, Lines: lines}
	if report.Lines == nil {
		report.Lines = []domain.RevenueLine{}
	}
	for _, l := range lines {
		report.Rentals += l.Rentals
		report.Minutes += l.Minutes
		report.BilledCents += l.BilledCents
		report.CollectedCents += l.CollectedCents
	}
	logger.Debug("Revenue summary built", "branch_id", branchID, "rentals", report.Rentals, "collected_cents", report.CollectedCents)
	return report, nil
}

var csvHeader = []string{"rental_id", "branch_id", "game_id", "employee_id", "customer_name", "start_time", "completed_at", "duration_minutes", "total_price_cents", "payment_method", "paid_cents"}

// WriteRevenueCSV streams one row per completed rental.
func (s *reportService) WriteRevenueCSV(ctx context.Context, actor Actor, branchID int64, from, to time.Time, w io.Writer) error {
	branchID, err := s.scope(actor, branchID, from, to)
	if err != nil {
		return err
	}
	rentals, err := s.rentalRepo.ListCompleted(ctx, branchID, from, to)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, rt := range rentals {
		completed := ""
		if rt.CompletedAt != nil {
			completed = rt.CompletedAt.UTC().Format(time.RFC3339)
		}
		if err := cw.Write([]string{
			strconv.FormatInt(rt.ID, 10),
			strconv.FormatInt(rt.BranchID, 10),
			strconv.FormatInt(rt.GameID, 10),
			strconv.FormatInt(rt.EmployeeID, 10),
			rt.CustomerName,
			rt.StartTime.UTC().Format(time.RFC3339),
			completed,
			strconv.FormatInt(int64(rt.DurationMinutes), 10),
			strconv.FormatInt(rt.TotalPriceCents, 10),
			rt.PaymentMethod,
			strconv.FormatInt(rt.PaidCents, 10),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// FormatCents renders an amount as "12.50".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
