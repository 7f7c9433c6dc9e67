package http

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rentalshop-trusted/internal/security"
)

// RouterConfig carries the login rate limit settings.
type RouterConfig struct {
	LoginPerMinute int
	LoginBurst     int
}

// NewRouter wires every REST route. Route templates must match the keys in
// config.EndpointSecurityConfig.
func NewRouter(h *Handler, tm security.TokenManager, cfg RouterConfig) *mux.Router {
	router := mux.NewRouter()
	router.Use(observe)
	router.Use(NewAuthMiddleware(tm).Handler)

	limiter := newLoginLimiter(cfg.LoginPerMinute, cfg.LoginBurst)

	router.HandleFunc("/api/auth/login", limiter.Handler(h.Login)).Methods(http.MethodPost)
	router.HandleFunc("/api/time", h.ServerTime).Methods(http.MethodGet)
	router.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// "active" is registered before {id} so it is not parsed as an id
	router.HandleFunc("/api/rentals/active", h.ListActive).Methods(http.MethodGet)
	router.HandleFunc("/api/rentals", h.StartRental).Methods(http.MethodPost)
	router.HandleFunc("/api/rentals/{id}", h.GetRental).Methods(http.MethodGet)
	router.HandleFunc("/api/rentals/{id}/cancel", h.CancelRental).Methods(http.MethodPost)
	router.HandleFunc("/api/rentals/{id}/extend", h.ExtendRental).Methods(http.MethodPost)
	router.HandleFunc("/api/rentals/{id}/complete", h.CompleteRental).Methods(http.MethodPost)

	router.HandleFunc("/api/reports/revenue", h.RevenueSummary).Methods(http.MethodGet)
	router.HandleFunc("/api/reports/revenue.csv", h.RevenueCSV).Methods(http.MethodGet)

	return router
}
