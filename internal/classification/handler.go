package classification

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"screener/internal/decisioncache"
	"screener/internal/logger"
	"screener/pkg/errors"
)

type Handler struct {
	service *Service
	cache   decisioncache.Cache
	logger  logger.Logger
}

func NewHandler(service *Service, cache decisioncache.Cache, log logger.Logger) *Handler {
	return &Handler{
		service: service,
		cache:   cache,
		logger:  log,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		v1.POST("/classify", h.Classify)
	}
}

func (h *Handler) RegisterAdminRoutes(group *gin.RouterGroup) {
	group.POST("/cache/clear", h.ClearCache)
}

// Classify godoc
// @Summary      Classify a video
// @Description  Runs the item through the active pattern set and returns an allow or block verdict
// @Tags         classification
// @Accept       json
// @Produce      json
// @Param        request  body      ClassificationRequest  true  "Item to classify"
// @Success      200      {object}  ClassificationDecision
// @Failure      400      {object}  errors.ErrorResponse
// @Failure      500      {object}  errors.ErrorResponse
// @Router       /classify [post]
func (h *Handler) Classify(c *gin.Context) {
	var req ClassificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	decision, err := h.service.Classify(c.Request.Context(), req)
	if err != nil {
		h.logger.ErrorwCtx(c.Request.Context(), "Classification failed", "video_id", req.VideoID, "error", err)
		c.JSON(errors.ToHTTPStatus(err), errors.ToErrorResponse(err))
		return
	}

	c.JSON(http.StatusOK, decision)
}

// ClearCache godoc
// @Summary      Invalidate all cached decisions
// @Description  Advances the cache generation so every cached decision is recomputed on next use; idempotent
// @Tags         admin
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /admin/cache/clear [post]
func (h *Handler) ClearCache(c *gin.Context) {
	ctx := c.Request.Context()

	if err := h.cache.InvalidateAll(ctx); err != nil {
		h.logger.ErrorwCtx(ctx, "Cache invalidation failed", "error", err)
		c.JSON(errors.ToHTTPStatus(err), errors.ToErrorResponse(errors.ErrServiceUnavailable.WithCause(err)))
		return
	}

	generation := h.cache.Generation(ctx)
	h.logger.InfowCtx(ctx, "Decision cache cleared", "generation", generation)

	c.JSON(http.StatusOK, gin.H{
		"status":     "cleared",
		"generation": generation,
	})
}
