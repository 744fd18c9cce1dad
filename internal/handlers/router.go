package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/qr-attendance/internal/middleware"
)

// RouterConfig collects what NewRouter wires together.
type RouterConfig struct {
	Auth     *AuthHandler
	Checkin  *CheckinHandler
	Attempts *AttemptHandler

	AuthMiddleware  *middleware.AuthMiddleware
	RateLimiter     *middleware.RateLimitMiddleware
	ScanLimit       int
	ScanLimitWindow int
	AllowedOrigins  []string
}

// NewRouter builds the HTTP surface.
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.RequestLogger)
	r.Use(cfg.AuthMiddleware.Authenticate)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "OK")
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/auth/login", cfg.Auth.Login).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", cfg.Auth.Logout).Methods(http.MethodPost)
	api.HandleFunc("/auth/me", cfg.Auth.Me).Methods(http.MethodGet)

	api.HandleFunc("/emitter/generate", cfg.Checkin.Generate).Methods(http.MethodPost)
	api.HandleFunc("/emitter/qr.png", cfg.Checkin.QRImage).Methods(http.MethodGet)

	scan := http.HandlerFunc(cfg.Checkin.Scan)
	api.HandleFunc("/verifier/open", cfg.Checkin.Open).Methods(http.MethodPost)
	api.Handle("/verifier/scan", cfg.RateLimiter.RateLimit(cfg.ScanLimit, cfg.ScanLimitWindow)(scan)).Methods(http.MethodPost)
	api.HandleFunc("/verifier/state", cfg.Checkin.State).Methods(http.MethodGet)
	api.HandleFunc("/verifier/reset", cfg.Checkin.Reset).Methods(http.MethodPost)
	api.HandleFunc("/verifier/events", cfg.Checkin.Events(cfg.AllowedOrigins)).Methods(http.MethodGet)

	api.HandleFunc("/location", cfg.Checkin.ReportLocation).Methods(http.MethodPost)

	api.HandleFunc("/attempts", cfg.Attempts.List).Methods(http.MethodGet)

	// CORS wraps the router so preflight requests never reach route matching
	return middleware.CORS(cfg.AllowedOrigins)(r)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("Failed to write response")
	}
}
