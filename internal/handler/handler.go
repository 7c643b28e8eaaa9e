package handler

import (
	"time"

	"marketpulse-dash/internal/domain"
	"marketpulse-dash/internal/history"
	"marketpulse-dash/internal/poller"
	"marketpulse-dash/internal/view"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"
)

// Dashboard is the poll control surface of one dashboard session.
type Dashboard interface {
	TogglePolling() (poller.Status, error)
	PollStatus() poller.Status
	UpdateConfig(cfg domain.PollConfig) domain.PollConfig
	Config() domain.PollConfig
	History() history.Reader
}

// ViewSource holds the latest derived state.
type ViewSource interface {
	Latest() (view.State, bool)
	LastError() error
	LastErrorAt() time.Time
}

type Handler struct {
	tracer trace.Tracer
	dash   Dashboard
	views  ViewSource
}

func New(tracer trace.Tracer, dash Dashboard, views ViewSource) *Handler {
	return &Handler{
		tracer: tracer,
		dash:   dash,
		views:  views,
	}
}

// NewRouter builds the status API engine. apiKey guards /api when set.
func NewRouter(h *Handler, service, apiKey string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(service))
	h.RegisterRoutes(r, apiKey)
	return r
}

func (h *Handler) RegisterRoutes(r *gin.Engine, apiKey string) {
	r.GET("/health", h.Health)

	api := r.Group("/api", APIKeyAuth(apiKey))
	api.GET("/view", h.GetView)
	api.GET("/candles", h.GetCandles)
	api.POST("/poll/toggle", h.TogglePoll)
	api.GET("/poll/config", h.GetPollConfig)
	api.PUT("/poll/config", h.UpdatePollConfig)
}
