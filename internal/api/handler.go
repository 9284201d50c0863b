package api

import (
	"context"
	"net/http"
	"time"

	"codeberg.org/mutker/irrigatectl/internal/dashboard"
	"codeberg.org/mutker/irrigatectl/internal/logger"
	"codeberg.org/mutker/irrigatectl/internal/pump"
	"codeberg.org/mutker/irrigatectl/internal/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const commandTimeout = 5 * time.Second

// Dashboard is the part of the aggregator the API needs.
type Dashboard interface {
	CurrentSnapshot() *dashboard.Snapshot
	TogglePump(ctx context.Context) (pump.State, error)
	ToggleMode(ctx context.Context) (pump.State, error)
	Subscribe() (<-chan *dashboard.Snapshot, func())
	Bands() telemetry.Bands
}

type Handler struct {
	dash        Dashboard
	metrics     http.Handler
	metricsPath string
	breaker     func() string
	heartbeat   time.Duration
	logger      logger.Logger
}

type Option func(*Handler)

// WithMetrics mounts h under path.
func WithMetrics(path string, h http.Handler) Option {
	return func(hd *Handler) {
		hd.metrics = h
		hd.metricsPath = path
	}
}

// WithBreaker adds the telemetry source breaker state to /healthz.
func WithBreaker(state func() string) Option {
	return func(hd *Handler) { hd.breaker = state }
}

func WithHeartbeat(d time.Duration) Option {
	return func(hd *Handler) {
		if d > 0 {
			hd.heartbeat = d
		}
	}
}

func NewHandler(dash Dashboard, log logger.Logger, opts ...Option) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	h := &Handler{
		dash:      dash,
		heartbeat: DefaultConfig().Heartbeat,
		logger:    log,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router builds the route table.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggerMiddleware(h.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.health)
	if h.metrics != nil && h.metricsPath != "" {
		r.Method(http.MethodGet, h.metricsPath, h.metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/snapshot", h.snapshot)
		r.Get("/snapshot/{metric}", h.metric)
		r.Get("/status-descriptors", h.descriptors)
		r.Get("/bands", h.bands)
		r.Get("/events", h.events)

		r.Group(func(r chi.Router) {
			r.Use(middleware.NoCache)
			r.Post("/pump/toggle", h.togglePump)
			r.Post("/pump/mode", h.toggleMode)
		})
	})

	return r
}

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	snap := h.dash.CurrentSnapshot()
	if snap == nil {
		respondError(w, r, http.StatusServiceUnavailable, "no snapshot yet")
		return
	}
	respondJSON(w, r, http.StatusOK, snap)
}

func (h *Handler) metric(w http.ResponseWriter, r *http.Request) {
	m, err := telemetry.ParseMetric(chi.URLParam(r, "metric"))
	if err != nil {
		respondError(w, r, http.StatusNotFound, err.Error())
		return
	}

	snap := h.dash.CurrentSnapshot()
	if snap == nil {
		respondError(w, r, http.StatusServiceUnavailable, "no snapshot yet")
		return
	}
	respondJSON(w, r, http.StatusOK, snap.Metric(m))
}

type descriptorEntry struct {
	Status telemetry.Status `json:"status"`
	telemetry.Descriptor
}

func (*Handler) descriptors(w http.ResponseWriter, r *http.Request) {
	table := telemetry.Descriptors()
	out := make([]descriptorEntry, 0, len(table))
	for _, s := range []telemetry.Status{telemetry.StatusGood, telemetry.StatusWarning, telemetry.StatusCritical} {
		out = append(out, descriptorEntry{Status: s, Descriptor: table[s]})
	}
	respondJSON(w, r, http.StatusOK, out)
}

func (h *Handler) bands(w http.ResponseWriter, r *http.Request) {
	bands := h.dash.Bands()
	out := make(map[string]telemetry.Band, len(bands))
	for m, b := range bands {
		out[m.String()] = b
	}
	respondJSON(w, r, http.StatusOK, out)
}

func (h *Handler) togglePump(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, h.dash.TogglePump)
}

func (h *Handler) toggleMode(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, h.dash.ToggleMode)
}

func (*Handler) command(w http.ResponseWriter, r *http.Request, fn func(context.Context) (pump.State, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()

	state, err := fn(ctx)
	if err != nil {
		respondCodedError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, state)
}

type healthResponse struct {
	Status       string     `json:"status"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`
	SkippedTicks uint64     `json:"skippedTicks"`
	Breaker      string     `json:"breaker,omitempty"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	var breaker string
	if h.breaker != nil {
		breaker = h.breaker()
	}

	snap := h.dash.CurrentSnapshot()
	if snap == nil {
		respondJSON(w, r, http.StatusServiceUnavailable, healthResponse{Status: "starting", Breaker: breaker})
		return
	}

	status := "ok"
	if snap.Stale {
		status = "stale"
	}
	updatedAt := snap.UpdatedAt
	respondJSON(w, r, http.StatusOK, healthResponse{
		Status:       status,
		UpdatedAt:    &updatedAt,
		SkippedTicks: snap.SkippedTicks,
		Breaker:      breaker,
	})
}
