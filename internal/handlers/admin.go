package handlers

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"time"

	"github.com/ripta/hotscrape/internal/config"
	"github.com/ripta/hotscrape/internal/fault"
)

// AdminHandlers provides admin endpoint handlers for runtime configuration.
type AdminHandlers struct {
	// token is the authentication token (empty = open access)
	token string
	// injector is the scrape fault injector
	injector *fault.Injector
	// cfg is the server configuration
	cfg *config.Config
}

// NewAdminHandlers creates handlers for admin endpoints.
func NewAdminHandlers(token string, injector *fault.Injector, cfg *config.Config) *AdminHandlers {
	return &AdminHandlers{
		token:    token,
		injector: injector,
		cfg:      cfg,
	}
}

// Register adds admin routes to the mux.
func (h *AdminHandlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /admin/config", h.Config)
	mux.HandleFunc("POST /admin/scrape-fault", h.ScrapeFault)
	mux.HandleFunc("POST /admin/reset", h.Reset)
}

func (h *AdminHandlers) authenticate(w http.ResponseWriter, r *http.Request) bool {
	if h.token == "" {
		return true
	}
	if subtle.ConstantTimeCompare([]byte(r.Header.Get("X-Admin-Token")), []byte(h.token)) == 1 {
		return true
	}
	writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or missing admin token")
	return false
}

// AdminFaultState describes the active scrape fault.
type AdminFaultState struct {
	Rate      float64 `json:"rate"`
	Message   string  `json:"message"`
	ExpiresAt string  `json:"expires_at,omitempty"`
}

// AdminConfigScrape holds scrape settings.
type AdminConfigScrape struct {
	MetricsPath  string `json:"metrics_path"`
	Namespace    string `json:"namespace"`
	TextfileDir  string `json:"textfile_dir,omitempty"`
	RuntimeStats bool   `json:"runtime_stats"`
	Timeout      string `json:"timeout"`
}

// AdminConfigResponse is the JSON response for GET /admin/config.
type AdminConfigResponse struct {
	Scrape         AdminConfigScrape `json:"scrape"`
	RequestTimeout string            `json:"request_timeout"`
	Fault          *AdminFaultState  `json:"fault"`
}

func (h *AdminHandlers) Config(w http.ResponseWriter, r *http.Request) {
	if !h.authenticate(w, r) {
		return
	}

	writeJSON(w, http.StatusOK, AdminConfigResponse{
		Scrape: AdminConfigScrape{
			MetricsPath:  h.cfg.MetricsPath,
			Namespace:    h.cfg.Namespace,
			TextfileDir:  h.cfg.TextfileDir,
			RuntimeStats: h.cfg.RuntimeStats,
			Timeout:      h.cfg.ScrapeTimeout.String(),
		},
		RequestTimeout: h.cfg.RequestTimeout.String(),
		Fault:          faultState(h.injector.Get()),
	})
}

func faultState(cfg *fault.Config) *AdminFaultState {
	if cfg == nil {
		return nil
	}
	st := &AdminFaultState{Rate: cfg.Rate, Message: cfg.Message}
	if !cfg.ExpiresAt.IsZero() {
		st.ExpiresAt = cfg.ExpiresAt.Format(time.RFC3339)
	}
	return st
}

func (h *AdminHandlers) ScrapeFault(w http.ResponseWriter, r *http.Request) {
	if !h.authenticate(w, r) {
		return
	}

	q := r.URL.Query()

	rateStr := q.Get("rate")
	if rateStr == "" {
		writeError(w, http.StatusBadRequest, "INVALID_PARAMETER", "rate is required")
		return
	}
	rate, err := strconv.ParseFloat(rateStr, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAMETER", "rate must be a number")
		return
	}
	if rate < 0 || rate > 1 {
		writeError(w, http.StatusBadRequest, "INVALID_PARAMETER", "rate must be between 0 and 1")
		return
	}

	cfg := &fault.Config{
		Rate:    rate,
		Message: q.Get("message"),
	}
	if cfg.Message == "" {
		cfg.Message = fault.DefaultMessage
	}

	if durationStr := q.Get("duration"); durationStr != "" {
		d, err := time.ParseDuration(durationStr)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "INVALID_PARAMETER", "duration must be a positive duration")
			return
		}
		cfg.ExpiresAt = h.injector.Clock().Now().Add(d)
	}

	h.injector.Set(cfg)

	writeJSON(w, http.StatusOK, faultState(h.injector.Get()))
}

// AdminResetResponse is the JSON response for POST /admin/reset.
type AdminResetResponse struct {
	FaultReset bool `json:"fault_reset"`
}

func (h *AdminHandlers) Reset(w http.ResponseWriter, r *http.Request) {
	if !h.authenticate(w, r) {
		return
	}

	h.injector.Reset()

	writeJSON(w, http.StatusOK, AdminResetResponse{FaultReset: true})
}
