package jobs

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"rentalshop-trusted/internal/clock"
	"rentalshop-trusted/internal/config"
	"rentalshop-trusted/internal/domain"
	"rentalshop-trusted/internal/repository/postgres"
	"rentalshop-trusted/internal/service"
)

var jobNow = time.Date(2026, 3, 14, 23, 0, 0, 0, time.UTC)

type MockReportService struct {
	mock.Mock
}

func (m *MockReportService) RevenueSummary(ctx context.Context, actor service.Actor, branchID int64, from, to time.Time) (*service.RevenueReport, error) {
	args := m.Called(ctx, actor, branchID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.RevenueReport), args.Error(1)
}

func (m *MockReportService) WriteRevenueCSV(ctx context.Context, actor service.Actor, branchID int64, from, to time.Time, w io.Writer) error {
	return m.Called(ctx, actor, branchID, from, to, w).Error(0)
}

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendEmail(ctx context.Context, to, subject, plainText, htmlContent string) error {
	return m.Called(ctx, to, subject, plainText, htmlContent).Error(0)
}

func newRunner(t *testing.T, services *Services) (*JobRunner, sqlmock.Sqlmock) {
	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	jr := NewJobRunner(db, postgres.NewStore(db), services, &config.Config{}).WithClock(clock.NewFake(jobNow))
	return jr, sqlMock
}

func TestMarkExpiredRentals(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		jr, sqlMock := newRunner(t, &Services{})
		end := jobNow.Add(-time.Minute)
		sqlMock.ExpectQuery("UPDATE rentals SET status = 'expired'").
			WithArgs(jobNow).
			WillReturnRows(sqlmock.NewRows([]string{"id", "branch_id", "game_id", "end_time"}).
				AddRow(10, 1, 2, end).
				AddRow(11, 1, 3, end))

		expired, err := jr.markExpiredRentals(ctx)

		require.NoError(t, err)
		require.Len(t, expired, 2)
		assert.Equal(t, int64(11), expired[1].ID)
		assert.NoError(t, sqlMock.ExpectationsWereMet())
	})

	t.Run("QueryError", func(t *testing.T) {
		jr, sqlMock := newRunner(t, &Services{})
		sqlMock.ExpectQuery("UPDATE rentals").WillReturnError(errors.New("connection refused"))

		_, err := jr.markExpiredRentals(ctx)
		assert.ErrorContains(t, err, "connection refused")
	})

	t.Run("PublicWrapperSwallowsErrors", func(t *testing.T) {
		jr, sqlMock := newRunner(t, &Services{})
		sqlMock.ExpectQuery("UPDATE rentals").WillReturnError(errors.New("boom"))

		assert.NotPanics(t, jr.MarkExpiredRentals)
	})
}

func TestSendRevenueReport(t *testing.T) {
	ctx := context.Background()
	from := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)
	branchRows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "name", "manager_email"}).
			AddRow(1, "Downtown", "boss@example.com").
			AddRow(2, "Mall", "")
	}
	report := &service.RevenueReport{
		BranchID: 1,
		Lines:    []domain.RevenueLine{{GameID: 2, GameName: "Red <Kart>", Rentals: 3, Minutes: 60, BilledCents: 2000, CollectedCents: 1500}},
		Rentals:  3, Minutes: 60, BilledCents: 2000, CollectedCents: 1500,
	}

	t.Run("MailsManagers", func(t *testing.T) {
		reports := new(MockReportService)
		mailer := new(MockMailer)
		jr, sqlMock := newRunner(t, &Services{Report: reports, Mailer: mailer})

		sqlMock.ExpectQuery("SELECT (.+) FROM branches").WillReturnRows(branchRows())
		reports.On("RevenueSummary", mock.Anything, service.SystemActor, int64(1), from, to).Return(report, nil)
		mailer.On("SendEmail", mock.Anything, "boss@example.com", "Revenue for Downtown on 2026-03-14",
			mock.MatchedBy(func(s string) bool { return strings.Contains(s, "Red <Kart>") }),
			mock.MatchedBy(func(s string) bool { return strings.Contains(s, "Red &lt;Kart&gt;") })).Return(nil)

		sent, err := jr.sendRevenueReport(ctx)

		require.NoError(t, err)
		assert.Equal(t, 1, sent)
		reports.AssertNumberOfCalls(t, "RevenueSummary", 1)
		mailer.AssertExpectations(t)
	})

	t.Run("NoMailer", func(t *testing.T) {
		reports := new(MockReportService)
		jr, sqlMock := newRunner(t, &Services{Report: reports})

		sqlMock.ExpectQuery("SELECT (.+) FROM branches").WillReturnRows(branchRows())
		reports.On("RevenueSummary", mock.Anything, service.SystemActor, int64(1), from, to).Return(report, nil)

		sent, err := jr.sendRevenueReport(ctx)
		require.NoError(t, err)
		assert.Zero(t, sent)
	})

	t.Run("MailFailureIsNotFatal", func(t *testing.T) {
		reports := new(MockReportService)
		mailer := new(MockMailer)
		jr, sqlMock := newRunner(t, &Services{Report: reports, Mailer: mailer})

		sqlMock.ExpectQuery("SELECT (.+) FROM branches").WillReturnRows(branchRows())
		reports.On("RevenueSummary", mock.Anything, service.SystemActor, int64(1), from, to).Return(report, nil)
		mailer.On("SendEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("quota"))

		sent, err := jr.sendRevenueReport(ctx)
		require.NoError(t, err)
		assert.Zero(t, sent)
	})
}
