package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/blogapp/summarizer/internal/api/shared"
	"github.com/blogapp/summarizer/internal/config"
	"github.com/blogapp/summarizer/internal/metrics"
	"github.com/blogapp/summarizer/internal/platform/logger"
	"github.com/blogapp/summarizer/internal/task"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Messages returned by the control endpoints. Schedulers match on them.
const (
	HealthOKMessage       = "OK - Consumer Ready !"
	WakeupReceivedMessage = "Wakeup signal received"
	ForbiddenMessage      = "Forbidden"
)

var errWakeupSecret = errors.New("wakeup rejected: invalid or missing secret")

// ConsumerControl is the part of the consumer driven over HTTP.
type ConsumerControl interface {
	Status() task.Snapshot
	Wakeup(ctx context.Context)
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status             string    `json:"status"`
	Message            string    `json:"message"`
	ConsumerLoopActive bool      `json:"consumerLoopActive"`
	MLServiceReady     bool      `json:"mlServiceReady"`
	ActiveJobs         int       `json:"activeJobs"`
	Timestamp          time.Time `json:"timestamp"`
}

// WakeupResponse is the body of an accepted POST /wakeup.
type WakeupResponse struct {
	Message string `json:"message"`
}

// ControlHandler serves /health, /wakeup and /metrics.
type ControlHandler struct {
	consumer ConsumerControl
	secret   []byte

	// baseCtx outlives requests; wakeups run on it after the response is sent
	baseCtx context.Context

	now    func() time.Time
	logger *slog.Logger
}

// NewControlHandler creates a ControlHandler. An empty secret disables the
// wakeup secret check. baseCtx bounds background wakeups and is usually the
// process context.
func NewControlHandler(
	baseCtx context.Context,
	consumer ConsumerControl,
	secret string,
	logger *slog.Logger,
) *ControlHandler {
	if consumer == nil {
		panic("consumer cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &ControlHandler{
		consumer: consumer,
		secret:   []byte(secret),
		baseCtx:  baseCtx,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "control_handler")),
	}
}

// Routes registers the control endpoints on r.
func (h *ControlHandler) Routes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Post("/wakeup", h.Wakeup)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
}

// Health handles GET /health. It always answers 200; readiness is reported
// in the body.
func (h *ControlHandler) Health(w http.ResponseWriter, r *http.Request) {
	snap := h.consumer.Status()

	shared.RespondWithJSON(w, r, http.StatusOK, HealthResponse{
		Status:             "ok",
		Message:            HealthOKMessage,
		ConsumerLoopActive: snap.LoopActive,
		MLServiceReady:     snap.MLServiceReady,
		ActiveJobs:         snap.ActiveJobs,
		Timestamp:          h.now().UTC(),
	})
}

// Wakeup handles POST /wakeup. The response is written before the consumer
// is touched; the wakeup itself runs in the background.
func (h *ControlHandler) Wakeup(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	if !h.authorized(r) {
		metrics.Wakeup("received", "forbidden")
		r = r.WithContext(logger.WithLogger(r.Context(),
			log.With(slog.String("remote_addr", r.RemoteAddr))))
		shared.RespondWithErrorAndLog(w, r, http.StatusForbidden, ForbiddenMessage, errWakeupSecret)
		return
	}

	metrics.Wakeup("received", "ok")
	log.Info("wakeup signal received", slog.Bool("loop_active", h.consumer.Status().LoopActive))
	shared.RespondWithJSON(w, r, http.StatusOK, WakeupResponse{Message: WakeupReceivedMessage})

	go h.consumer.Wakeup(h.baseCtx)
}

func (h *ControlHandler) authorized(r *http.Request) bool {
	if len(h.secret) == 0 {
		return true
	}
	got := r.Header.Get(config.WakeupSecretHeader)
	return subtle.ConstantTimeCompare([]byte(got), h.secret) == 1
}
