package handler

import (
	"fmt"
	"net/http"
	"strings"

	"smartsales_backend/internal/leads/domain"
	"smartsales_backend/internal/leads/outreach"
	"smartsales_backend/internal/leads/service"
	"smartsales_backend/internal/leads/transport"
	"smartsales_backend/platform/httpkit"
	"smartsales_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc      *service.Service
	exporter *outreach.Exporter
	val      *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgMissingID        = "lead id is required"
)

func New(svc *service.Service, exporter *outreach.Exporter, val *validator.Validator) *Handler {
	return &Handler{svc: svc, exporter: exporter, val: val}
}

// RegisterRoutes mounts the lead routes on rg and the qualification routes on qg.
func (h *Handler) RegisterRoutes(rg, qg *gin.RouterGroup) {
	qg.POST("/batches", h.QualifyBatch)
	qg.POST("/evaluations", h.Evaluate)

	rg.GET("", h.List)
	rg.GET("/:id", h.GetByID)
	rg.GET("/:id/history", h.History)
	rg.GET("/:id/outreach.eml", h.ExportOutreach)
	rg.PATCH("/:id/status", h.ChangeStatus)
	rg.DELETE("/:id/followup", h.CancelFollowUp)
}

func (h *Handler) QualifyBatch(c *gin.Context) {
	var req transport.QualifyBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Describe(err))
		return
	}

	result, err := h.svc.Qualify(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

func (h *Handler) Evaluate(c *gin.Context) {
	var req transport.EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Describe(err))
		return
	}

	metrics, err := h.svc.Evaluate(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, metrics)
}

func (h *Handler) List(c *gin.Context) {
	var req transport.ListLeadsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Describe(err))
		return
	}

	result, err := h.svc.List(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

func (h *Handler) GetByID(c *gin.Context) {
	id, ok := leadID(c)
	if !ok {
		return
	}

	lead, err := h.svc.GetByID(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, lead)
}

func (h *Handler) History(c *gin.Context) {
	id, ok := leadID(c)
	if !ok {
		return
	}

	result, err := h.svc.History(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

func (h *Handler) ChangeStatus(c *gin.Context) {
	id, ok := leadID(c)
	if !ok {
		return
	}
	var req transport.ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Describe(err))
		return
	}

	lead, err := h.svc.ChangeStatus(c.Request.Context(), id, domain.Status(req.Status))
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, lead)
}

func (h *Handler) CancelFollowUp(c *gin.Context) {
	id, ok := leadID(c)
	if !ok {
		return
	}

	result, err := h.svc.CancelFollowUp(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

func (h *Handler) ExportOutreach(c *gin.Context) {
	id, ok := leadID(c)
	if !ok {
		return
	}

	lead, err := h.svc.GetByID(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	eml, err := h.exporter.EML(lead)
	if httpkit.HandleError(c, err) {
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", lead.ID+".eml"))
	c.Data(http.StatusOK, "message/rfc822", eml)
}

func leadID(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		httpkit.Error(c, http.StatusBadRequest, msgMissingID, nil)
		return "", false
	}
	return id, true
}
