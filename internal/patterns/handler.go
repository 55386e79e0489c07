package patterns

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"screener/internal/logger"
	"screener/pkg/errors"
)

type BaseHandler struct {
	Service Service
	Logger  logger.Logger
}

func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	h.Logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)

	status := errors.ToHTTPStatus(err)
	response := errors.ToErrorResponse(err)

	c.JSON(status, response)
}

type Handler struct {
	BaseHandler
}

func NewHandler(service Service, log logger.Logger) *Handler {
	return &Handler{
		BaseHandler: BaseHandler{
			Service: service,
			Logger:  log,
		},
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		patterns := v1.Group("/patterns")
		{
			patterns.GET("", h.ListPatterns)
			patterns.POST("", h.CreatePattern)
			patterns.GET("/top", h.TopPatterns)
			patterns.GET("/:id", h.GetPattern)
			patterns.PUT("/:id", h.UpdatePattern)
			patterns.DELETE("/:id", h.DeletePattern)
			patterns.GET("/:id/audit", h.GetPatternAuditLogs)
		}

		audit := v1.Group("/audit")
		{
			audit.GET("/logs", h.GetAuditLogs)
		}
	}
}

// ListPatterns godoc
// @Summary      List classification patterns
// @Description  Get classification patterns, optionally filtered by type, target field, active state or category
// @Tags         patterns
// @Accept       json
// @Produce      json
// @Param        type          query     string  false  "Pattern type"
// @Param        target_field  query     string  false  "Target field"
// @Param        is_active     query     bool    false  "Active state"
// @Param        category_id   query     string  false  "Category ID"
// @Param        limit         query     int     false  "Page size"
// @Param        offset        query     int     false  "Page offset"
// @Success      200  {array}   Pattern
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /patterns [get]
func (h *Handler) ListPatterns(c *gin.Context) {
	filter := ListFilter{}

	if v := c.Query("type"); v != "" {
		pt := PatternType(v)
		filter.Type = &pt
	}
	if v := c.Query("target_field"); v != "" {
		tf := TargetField(v)
		filter.TargetField = &tf
	}
	if v := c.Query("is_active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithDetail("message", "is_active must be a boolean")))
			return
		}
		filter.IsActive = &active
	}
	if v := c.Query("category_id"); v != "" {
		filter.CategoryID = &v
	}
	filter.Limit, _ = strconv.Atoi(c.Query("limit"))
	filter.Offset, _ = strconv.Atoi(c.Query("offset"))

	result, err := h.Service.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// CreatePattern godoc
// @Summary      Create a classification pattern
// @Description  Create a new classification pattern; the pattern text is validated for its declared type
// @Tags         patterns
// @Accept       json
// @Produce      json
// @Param        pattern  body      CreatePatternRequest  true  "Pattern data"
// @Success      201      {object}  Pattern
// @Failure      400      {object}  errors.ErrorResponse
// @Failure      409      {object}  errors.ErrorResponse
// @Failure      500      {object}  errors.ErrorResponse
// @Router       /patterns [post]
func (h *Handler) CreatePattern(c *gin.Context) {
	var req CreatePatternRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	pattern, err := h.Service.Create(c.Request.Context(), req, changeMeta(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, pattern)
}

// GetPattern godoc
// @Summary      Get a classification pattern by ID
// @Tags         patterns
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Pattern ID"
// @Success      200  {object}  Pattern
// @Failure      404  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /patterns/{id} [get]
func (h *Handler) GetPattern(c *gin.Context) {
	pattern, err := h.Service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, pattern)
}

// UpdatePattern godoc
// @Summary      Update a classification pattern
// @Description  Update an existing pattern; the resulting pattern text is re-validated
// @Tags         patterns
// @Accept       json
// @Produce      json
// @Param        id       path      string                true  "Pattern ID"
// @Param        pattern  body      UpdatePatternRequest  true  "Fields to update"
// @Success      200      {object}  Pattern
// @Failure      400      {object}  errors.ErrorResponse
// @Failure      404      {object}  errors.ErrorResponse
// @Failure      500      {object}  errors.ErrorResponse
// @Router       /patterns/{id} [put]
func (h *Handler) UpdatePattern(c *gin.Context) {
	var req UpdatePatternRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	pattern, err := h.Service.Update(c.Request.Context(), c.Param("id"), req, changeMeta(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, pattern)
}

// DeletePattern godoc
// @Summary      Delete a classification pattern
// @Tags         patterns
// @Accept       json
// @Produce      json
// @Param        id   path  string  true  "Pattern ID"
// @Success      204  "No Content"
// @Failure      404  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /patterns/{id} [delete]
func (h *Handler) DeletePattern(c *gin.Context) {
	if err := h.Service.Delete(c.Request.Context(), c.Param("id"), changeMeta(c)); err != nil {
		h.HandleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// TopPatterns godoc
// @Summary      Top patterns by match count
// @Description  Get the patterns that have blocked the most items
// @Tags         patterns
// @Accept       json
// @Produce      json
// @Param        limit  query     int  false  "Result count"  default(10)
// @Success      200    {array}   Pattern
// @Failure      500    {object}  errors.ErrorResponse
// @Router       /patterns/top [get]
func (h *Handler) TopPatterns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	result, err := h.Service.TopPatterns(c.Request.Context(), limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetPatternAuditLogs godoc
// @Summary      Audit log for one pattern
// @Tags         audit
// @Accept       json
// @Produce      json
// @Param        id     path      string  true   "Pattern ID"
// @Param        limit  query     int     false  "Result count"
// @Success      200    {array}   AuditLogEntry
// @Failure      500    {object}  errors.ErrorResponse
// @Router       /patterns/{id}/audit [get]
func (h *Handler) GetPatternAuditLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	entries, err := h.Service.AuditLogs(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, entries)
}

// GetAuditLogs godoc
// @Summary      Recent audit log entries
// @Tags         audit
// @Accept       json
// @Produce      json
// @Param        limit  query     int  false  "Result count"
// @Success      200    {array}   AuditLogEntry
// @Failure      500    {object}  errors.ErrorResponse
// @Router       /audit/logs [get]
func (h *Handler) GetAuditLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	entries, err := h.Service.RecentAuditLogs(c.Request.Context(), limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, entries)
}

func changeMeta(c *gin.Context) ChangeMeta {
	return ChangeMeta{
		ChangedBy:    c.GetHeader("X-Changed-By"),
		ChangeReason: c.GetHeader("X-Change-Reason"),
		IPAddress:    c.ClientIP(),
	}
}
