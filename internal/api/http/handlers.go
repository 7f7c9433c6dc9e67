package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"rentalshop-trusted/internal/clock"
	"rentalshop-trusted/internal/domain"
	"rentalshop-trusted/internal/service"
	"rentalshop-trusted/internal/utils"
)

// Handler serves the REST API the rental terminals talk to.
type Handler struct {
	auth    service.AuthService
	rentals service.RentalService
	reports service.ReportService
	clock   clock.Clock
}

func NewHandler(auth service.AuthService, rentals service.RentalService, reports service.ReportService, c clock.Clock) *Handler {
	if c == nil {
		c = clock.System{}
	}
	return &Handler{auth: auth, rentals: rentals, reports: reports, clock: c}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	BranchID int64  `json:"branch_id"`
}

type loginResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	User         loginUser `json:"user"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, loginResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		User: loginUser{
			ID:       res.User.ID,
			Username: res.User.Username,
			Name:     res.User.Name,
			Role:     res.User.RawRole,
			BranchID: res.User.BranchID,
		},
	})
}

// ServerTime is unwrapped so terminals can sync with a single small read.
func (h *Handler) ServerTime(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int64{"serverTime": h.clock.Now().UnixMilli()})
}

func (h *Handler) ListActive(w http.ResponseWriter, r *http.Request) {
	branchID, err := queryInt(r, "branch_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	rentals, err := h.rentals.ListActive(r.Context(), actorFrom(r.Context()), branchID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rentals == nil {
		rentals = []domain.Rental{}
	}
	writeData(w, http.StatusOK, rentals)
}

func (h *Handler) StartRental(w http.ResponseWriter, r *http.Request) {
	var in service.StartRentalInput
	if err := decodeBody(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	rt, err := h.rentals.StartRental(r.Context(), actorFrom(r.Context()), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, rt)
}

func (h *Handler) GetRental(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rt, err := h.rentals.GetRental(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, rt)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) CancelRental(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req cancelRequest
	// an empty body is a cancel without a reason
	if r.ContentLength != 0 {
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	rt, err := h.rentals.CancelRental(r.Context(), actorFrom(r.Context()), id, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, rt)
}

type extendRequest struct {
	ExtraMinutes int32 `json:"extra_minutes"`
}

func (h *Handler) ExtendRental(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req extendRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	rt, err := h.rentals.ExtendRental(r.Context(), actorFrom(r.Context()), id, req.ExtraMinutes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, rt)
}

func (h *Handler) CompleteRental(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var payment domain.PaymentInfo
	if err := decodeBody(w, r, &payment); err != nil {
		writeError(w, r, err)
		return
	}
	rt, err := h.rentals.CompleteRental(r.Context(), actorFrom(r.Context()), id, payment)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, rt)
}

func (h *Handler) RevenueSummary(w http.ResponseWriter, r *http.Request) {
	branchID, from, to, err := h.reportParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	report, err := h.reports.RevenueSummary(r.Context(), actorFrom(r.Context()), branchID, from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, report)
}

func (h *Handler) RevenueCSV(w http.ResponseWriter, r *http.Request) {
	branchID, from, to, err := h.reportParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := h.reports.WriteRevenueCSV(r.Context(), actorFrom(r.Context()), branchID, from, to, &buf); err != nil {
		writeError(w, r, err)
		return
	}
	name := fmt.Sprintf("revenue_%s_%s.csv", utils.DateOf(from), utils.DateOf(to.Add(-time.Nanosecond)))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// reportParams reads branch_id and the from/to days. Both days are
// inclusive; a missing range means today (UTC).
func (h *Handler) reportParams(r *http.Request) (int64, time.Time, time.Time, error) {
	branchID, err := queryInt(r, "branch_id")
	if err != nil {
		return 0, time.Time{}, time.Time{}, err
	}
	today := utils.DateOf(h.clock.Now().UTC()).String()
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" {
		from = today
	}
	if to == "" {
		to = from
	}
	start, end, err := utils.DayRange(from, to)
	if err != nil {
		return 0, time.Time{}, time.Time{}, fmt.Errorf("%w: %v", service.ErrInvalidInput, err)
	}
	return branchID, start, end, nil
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "ok"})
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad rental id", service.ErrInvalidInput)
	}
	return id, nil
}

func queryInt(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: bad %s", service.ErrInvalidInput, name)
	}
	return v, nil
}
