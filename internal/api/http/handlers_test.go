package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"rentalshop-trusted/internal/clock"
	"rentalshop-trusted/internal/domain"
	"rentalshop-trusted/internal/security"
	"rentalshop-trusted/internal/service"
)

const testSecret = "0123456789abcdef0123456789abcdef"

var now = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Login(ctx context.Context, username, password string) (*service.LoginResult, error) {
	args := m.Called(ctx, username, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.LoginResult), args.Error(1)
}

type MockRentalService struct {
	mock.Mock
}

func (m *MockRentalService) rental(args mock.Arguments) (*domain.Rental, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Rental), args.Error(1)
}

func (m *MockRentalService) StartRental(ctx context.Context, actor service.Actor, in service.StartRentalInput) (*domain.Rental, error) {
	return m.rental(m.Called(ctx, actor, in))
}

func (m *MockRentalService) GetRental(ctx context.Context, actor service.Actor, id int64) (*domain.Rental, error) {
	return m.rental(m.Called(ctx, actor, id))
}

func (m *MockRentalService) ListActive(ctx context.Context, actor service.Actor, branchID int64) ([]domain.Rental, error) {
	args := m.Called(ctx, actor, branchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Rental), args.Error(1)
}

func (m *MockRentalService) CancelRental(ctx context.Context, actor service.Actor, id int64, reason string) (*domain.Rental, error) {
	return m.rental(m.Called(ctx, actor, id, reason))
}

func (m *MockRentalService) ExtendRental(ctx context.Context, actor service.Actor, id int64, extraMinutes int32) (*domain.Rental, error) {
	return m.rental(m.Called(ctx, actor, id, extraMinutes))
}

func (m *MockRentalService) CompleteRental(ctx context.Context, actor service.Actor, id int64, payment domain.PaymentInfo) (*domain.Rental, error) {
	return m.rental(m.Called(ctx, actor, id, payment))
}

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
	args := m.Called(ctx, actor, branchID, from, to, w)
	if args.Error(0) == nil {
		_, _ = io.WriteString(w, "rental_id\n10\n")
	}
	return args.Error(0)
}

type apiFixture struct {
	server  *httptest.Server
	tokens  security.TokenManager
	auth    *MockAuthService
	rentals *MockRentalService
	reports *MockReportService
}

func newAPIFixture(t *testing.T) *apiFixture {
	f := &apiFixture{
		tokens:  security.NewTokenManager(testSecret, time.Hour, 0),
		auth:    new(MockAuthService),
		rentals: new(MockRentalService),
		reports: new(MockReportService),
	}
	h := NewHandler(f.auth, f.rentals, f.reports, clock.NewFake(now))
	f.server = httptest.NewServer(NewRouter(h, f.tokens, RouterConfig{LoginPerMinute: 60, LoginBurst: 2}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *apiFixture) token(t *testing.T, rawRole string, branchID int64) string {
	tok, err := f.tokens.GenerateAccessToken(&domain.User{ID: 3, Username: "sara", RawRole: rawRole, BranchID: branchID})
	require.NoError(t, err)
	return tok
}

func (f *apiFixture) do(t *testing.T, method, path, token, body string) (*http.Response, envelopeResponse) {
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.server.URL+path, rdr)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelopeResponse
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &env))
	}
	env.raw = raw
	return resp, env
}

type envelopeResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	raw     []byte
}

func sampleRental() *domain.Rental {
	return &domain.Rental{ID: 10, BranchID: 1, GameID: 2, CustomerName: "Rami", StartTime: now, DurationMinutes: 30, Status: domain.RentalStatusActive, TotalPriceCents: 1000}
}

var employee = service.Actor{UserID: 3, Role: domain.RoleEmployee, BranchID: 1}

func TestServerTime(t *testing.T) {
	f := newAPIFixture(t)
	resp, env := f.do(t, http.MethodGet, "/api/time", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]int64
	require.NoError(t, json.Unmarshal(env.raw, &body))
	assert.Equal(t, now.UnixMilli(), body["serverTime"])
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestLogin(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		f := newAPIFixture(t)
		f.auth.On("Login", mock.Anything, "sara", "pw").Return(&service.LoginResult{
			AccessToken: "tok",
			User:        &domain.User{ID: 3, Username: "sara", Name: "Sara", RawRole: "موظف", BranchID: 1},
		}, nil)

		resp, env := f.do(t, http.MethodPost, "/api/auth/login", "", `{"username":"sara","password":"pw"}`)

		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.True(t, env.Success)
		var data loginResponse
		require.NoError(t, json.Unmarshal(env.Data, &data))
		assert.Equal(t, "tok", data.AccessToken)
		assert.Equal(t, "موظف", data.User.Role)
	})

	t.Run("BadCredentials", func(t *testing.T) {
		f := newAPIFixture(t)
		f.auth.On("Login", mock.Anything, "sara", "no").Return(nil, service.ErrInvalidCredentials)

		resp, env := f.do(t, http.MethodPost, "/api/auth/login", "", `{"username":"sara","password":"no"}`)

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.False(t, env.Success)
		assert.Equal(t, service.ErrInvalidCredentials.Error(), env.Message)
	})

	t.Run("RateLimited", func(t *testing.T) {
		f := newAPIFixture(t)
		f.auth.On("Login", mock.Anything, mock.Anything, mock.Anything).Return(nil, service.ErrInvalidCredentials)

		codes := make([]int, 0, 3)
		for i := 0; i < 3; i++ {
			resp, _ := f.do(t, http.MethodPost, "/api/auth/login", "", `{"username":"x","password":"y"}`)
			codes = append(codes, resp.StatusCode)
		}
		assert.Equal(t, []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusTooManyRequests}, codes)
	})
}

func TestAuthMiddleware(t *testing.T) {
	f := newAPIFixture(t)

	resp, env := f.do(t, http.MethodGet, "/api/rentals/active", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.False(t, env.Success)

	resp, _ = f.do(t, http.MethodGet, "/api/rentals/active", "garbage", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	refresh, err := f.tokens.GenerateRefreshToken(&domain.User{ID: 3, RawRole: "employee", BranchID: 1})
	require.NoError(t, err)
	resp, _ = f.do(t, http.MethodGet, "/api/rentals/active", refresh, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, env = f.do(t, http.MethodGet, "/api/reports/revenue", f.token(t, "cashier", 1), "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, service.ErrForbidden.Error(), env.Message)
}

func TestListActive(t *testing.T) {
	f := newAPIFixture(t)
	f.rentals.On("ListActive", mock.Anything, employee, int64(1)).Return([]domain.Rental{*sampleRental()}, nil)

	resp, env := f.do(t, http.MethodGet, "/api/rentals/active?branch_id=1", f.token(t, "Employee", 1), "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rentals []domain.Rental
	require.NoError(t, json.Unmarshal(env.Data, &rentals))
	require.Len(t, rentals, 1)
	assert.Equal(t, int64(10), rentals[0].ID)
	assert.True(t, rentals[0].StartTime.Equal(now))
}

func TestStartRental(t *testing.T) {
	f := newAPIFixture(t)
	in := service.StartRentalInput{GameID: 2, CustomerName: "Rami", DurationMinutes: 30}
	f.rentals.On("StartRental", mock.Anything, employee, in).Return(sampleRental(), nil)

	resp, env := f.do(t, http.MethodPost, "/api/rentals", f.token(t, "employee", 1), `{"game_id":2,"customer_name":"Rami","duration_minutes":30}`)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.True(t, env.Success)

	resp, env = f.do(t, http.MethodPost, "/api/rentals", f.token(t, "employee", 1), `{"game_id":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, env.Message, "invalid input")
}

func TestCancelRental(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"Success", nil, http.StatusOK},
		{"WindowClosed", service.ErrCancelWindowClosed, http.StatusUnprocessableEntity},
		{"AlreadyClosed", service.ErrInvalidTransition, http.StatusConflict},
		{"NotFound", service.ErrRentalNotFound, http.StatusNotFound},
		{"Internal", fmt.Errorf("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAPIFixture(t)
			if tt.err == nil {
				cancelled := sampleRental()
				cancelled.Status = domain.RentalStatusCancelled
				f.rentals.On("CancelRental", mock.Anything, employee, int64(10), "mistake").Return(cancelled, nil)
			} else {
				f.rentals.On("CancelRental", mock.Anything, employee, int64(10), "mistake").Return(nil, tt.err)
			}

			resp, env := f.do(t, http.MethodPost, "/api/rentals/10/cancel", f.token(t, "employee", 1), `{"reason":"mistake"}`)

			assert.Equal(t, tt.code, resp.StatusCode)
			assert.Equal(t, tt.err == nil, env.Success)
			if tt.code == http.StatusInternalServerError {
				assert.Equal(t, "internal error", env.Message)
			}
		})
	}
}

func TestCancelRental_EmptyBody(t *testing.T) {
	f := newAPIFixture(t)
	f.rentals.On("CancelRental", mock.Anything, employee, int64(10), "").Return(sampleRental(), nil)

	resp, _ := f.do(t, http.MethodPost, "/api/rentals/10/cancel", f.token(t, "employee", 1), "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestExtendAndComplete(t *testing.T) {
	f := newAPIFixture(t)
	f.rentals.On("ExtendRental", mock.Anything, employee, int64(10), int32(15)).Return(sampleRental(), nil)
	f.rentals.On("CompleteRental", mock.Anything, employee, int64(10), domain.PaymentInfo{Method: "cash", PaidCents: 1000}).Return(sampleRental(), nil)
	tok := f.token(t, "employee", 1)

	resp, _ := f.do(t, http.MethodPost, "/api/rentals/10/extend", tok, `{"extra_minutes":15}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/api/rentals/10/complete", tok, `{"payment_method":"cash","paid_cents":1000}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/api/rentals/abc", tok, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	f.rentals.AssertExpectations(t)
}

func TestRevenueReports(t *testing.T) {
	f := newAPIFixture(t)
	manager := service.Actor{UserID: 3, Role: domain.RoleBranchManager, BranchID: 1}
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	f.reports.On("RevenueSummary", mock.Anything, manager, int64(0), from, to).Return(&service.RevenueReport{BranchID: 1, From: from, To: to, Rentals: 4}, nil)
	f.reports.On("WriteRevenueCSV", mock.Anything, manager, int64(0), from, to, mock.Anything).Return(nil)
	tok := f.token(t, "مدير فرع", 1)

	resp, env := f.do(t, http.MethodGet, "/api/reports/revenue?from=2026-03-01&to=2026-03-02", tok, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var report service.RevenueReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, int64(4), report.Rentals)

	resp, env = f.do(t, http.MethodGet, "/api/reports/revenue.csv?from=2026-03-01&to=2026-03-02", tok, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "revenue_2026-03-01_2026-03-02.csv")
	assert.Equal(t, "rental_id\n10\n", string(env.raw))

	resp, _ = f.do(t, http.MethodGet, "/api/reports/revenue?from=2026-02-30", tok, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.do(t, http.MethodGet, "/api/time", "", "")

	resp, env := f.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(env.raw), "rentalshop_http_request_duration_seconds")
}
