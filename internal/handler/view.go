package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

const defaultCandleLimit = 20

// GetView godoc
// @Summary      Latest dashboard state
// @Description  Returns the state derived from the last successful poll, 204 before the first one
// @Tags         view
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Success      204
// @Router       /api/view [get]
func (h *Handler) GetView(c *gin.Context) {
	_, span := h.tracer.Start(c.Request.Context(), "handler.get-view")
	defer span.End()

	st, ok := h.views.Latest()
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}

	resp := gin.H{
		"view":    st,
		"polling": h.dash.PollStatus().String(),
	}
	if err := h.views.LastError(); err != nil {
		resp["last_error"] = err.Error()
		resp["last_error_at"] = h.views.LastErrorAt()
	}
	span.SetAttributes(attribute.String("symbol", st.Symbol))
	c.JSON(http.StatusOK, resp)
}

// GetCandles godoc
// @Summary      Cached candle history
// @Description  Returns the most recent candles, oldest first
// @Tags         view
// @Produce      json
// @Param        limit  query  int  false  "Number of candles (default 20, max history capacity)"  default(20)
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Router       /api/candles [get]
func (h *Handler) GetCandles(c *gin.Context) {
	_, span := h.tracer.Start(c.Request.Context(), "handler.get-candles")
	defer span.End()

	hist := h.dash.History()
	limit := defaultCandleLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	if limit > hist.Capacity() {
		limit = hist.Capacity()
	}
	span.SetAttributes(attribute.Int("limit", limit))

	candles := hist.Window(limit)
	c.JSON(http.StatusOK, gin.H{
		"candles":  candles,
		"count":    len(candles),
		"cached":   hist.Size(),
		"capacity": hist.Capacity(),
	})
}
