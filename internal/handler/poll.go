package handler

import (
	"errors"
	"net/http"

	"marketpulse-dash/internal/dashboard"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// TogglePoll godoc
// @Summary      Start or stop polling
// @Tags         poll
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /api/poll/toggle [post]
func (h *Handler) TogglePoll(c *gin.Context) {
	_, span := h.tracer.Start(c.Request.Context(), "handler.toggle-poll")
	defer span.End()

	status, err := h.dash.TogglePolling()
	if errors.Is(err, dashboard.ErrNotAuthenticated) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	span.SetAttributes(attribute.String("polling", status.String()))
	c.JSON(http.StatusOK, gin.H{"polling": status.String()})
}

// GetPollConfig godoc
// @Summary      Current poll config
// @Tags         poll
// @Produce      json
// @Success      200  {object}  domain.PollConfig
// @Router       /api/poll/config [get]
func (h *Handler) GetPollConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.dash.Config())
}

// UpdatePollConfig godoc
// @Summary      Change symbol, thresholds or interval
// @Description  Fields left out of the body keep their current value
// @Tags         poll
// @Accept       json
// @Produce      json
// @Param        config  body  domain.PollConfig  true  "Poll config"
// @Success      200  {object}  domain.PollConfig
// @Failure      400  {object}  map[string]string
// @Router       /api/poll/config [put]
func (h *Handler) UpdatePollConfig(c *gin.Context) {
	_, span := h.tracer.Start(c.Request.Context(), "handler.update-poll-config")
	defer span.End()

	cfg := h.dash.Config()
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid poll config: " + err.Error()})
		return
	}
	if cfg.RSILow < 0 || cfg.RSILow > 100 || cfg.RSIHigh < 0 || cfg.RSIHigh > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rsi thresholds must be between 0 and 100"})
		return
	}
	if cfg.IntervalMS < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "interval_ms must not be negative"})
		return
	}

	next := h.dash.UpdateConfig(cfg)
	span.SetAttributes(attribute.String("symbol", next.Symbol))
	c.JSON(http.StatusOK, next)
}
