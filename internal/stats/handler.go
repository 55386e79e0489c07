package stats

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"screener/internal/logger"
	"screener/pkg/errors"
)

type Handler struct {
	collector *Collector
	logger    logger.Logger
}

func NewHandler(collector *Collector, log logger.Logger) *Handler {
	return &Handler{
		collector: collector,
		logger:    log,
	}
}

// RegisterRoutes wires the read endpoints; admin endpoints are
// registered separately so the caller can rate limit them.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		stats := v1.Group("/stats")
		{
			stats.GET("/daily", h.GetDailySummary)
			stats.GET("/trend", h.GetTrend)
		}
	}
}

func (h *Handler) RegisterAdminRoutes(group *gin.RouterGroup) {
	group.POST("/stats/recompute", h.RecomputeToday)
	group.POST("/stats/purge", h.PurgeSamples)
}

func (h *Handler) handleError(c *gin.Context, err error) {
	h.logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	c.JSON(errors.ToHTTPStatus(err), errors.ToErrorResponse(err))
}

// GetDailySummary godoc
// @Summary      Daily classification summary
// @Description  Aggregate counts and average processing time for one day (defaults to today)
// @Tags         stats
// @Accept       json
// @Produce      json
// @Param        date  query     string  false  "Day in YYYY-MM-DD format"
// @Success      200   {object}  DailySample
// @Failure      400   {object}  errors.ErrorResponse
// @Failure      404   {object}  errors.ErrorResponse
// @Router       /stats/daily [get]
func (h *Handler) GetDailySummary(c *gin.Context) {
	date := time.Now()
	if v := c.Query("date"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusBadRequest, errors.ToErrorResponse(
				errors.ErrValidation.WithDetail("message", "date must be in YYYY-MM-DD format")))
			return
		}
		date = parsed
	}

	summary, err := h.collector.DailySummary(c.Request.Context(), date)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// GetTrend godoc
// @Summary      Classification trend report
// @Description  Compares the last N days against the preceding N days; trend is null when there is no preceding data
// @Tags         stats
// @Accept       json
// @Produce      json
// @Param        days  query     int  false  "Window size in days"  default(7)
// @Success      200   {object}  map[string]interface{}
// @Failure      500   {object}  errors.ErrorResponse
// @Router       /stats/trend [get]
func (h *Handler) GetTrend(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "7"))

	report, err := h.collector.Trend(c.Request.Context(), days)
	if err != nil {
		h.handleError(c, err)
		return
	}

	if report == nil {
		c.JSON(http.StatusOK, gin.H{
			"trend":   nil,
			"message": "not enough historical data for a trend comparison",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"trend": report})
}

// RecomputeToday godoc
// @Summary      Rewrite today's persisted sample
// @Description  Forces the in-memory aggregate for today to be written out; idempotent
// @Tags         admin
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /admin/stats/recompute [post]
func (h *Handler) RecomputeToday(c *gin.Context) {
	if err := h.collector.Flush(c.Request.Context()); err != nil {
		h.handleError(c, err)
		return
	}

	h.logger.InfowCtx(c.Request.Context(), "Daily sample recomputed")
	c.JSON(http.StatusOK, gin.H{"status": "recomputed"})
}

// PurgeSamples godoc
// @Summary      Purge old daily samples
// @Description  Deletes samples older than the given retention window; idempotent
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        days  query     int  false  "Retention in days"  default(90)
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  errors.ErrorResponse
// @Failure      500   {object}  errors.ErrorResponse
// @Router       /admin/stats/purge [post]
func (h *Handler) PurgeSamples(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "90"))
	if err != nil || days <= 0 {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(
			errors.ErrValidation.WithDetail("message", "days must be a positive integer")))
		return
	}

	deleted, err := h.collector.Purge(c.Request.Context(), days)
	if err != nil {
		h.handleError(c, err)
		return
	}

	h.logger.InfowCtx(c.Request.Context(), "Old samples purged", "retention_days", days, "deleted", deleted)
	c.JSON(http.StatusOK, gin.H{"status": "purged", "deleted": deleted})
}
