package handler

import (
	"net/http"
	"time"

	"leaddesk_backend/internal/succession/domain"
	"leaddesk_backend/internal/succession/repository"
	"leaddesk_backend/internal/succession/service"
	"leaddesk_backend/internal/succession/sweep"
	"leaddesk_backend/internal/succession/transport"
	"leaddesk_backend/platform/httpkit"
	"leaddesk_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

type Handler struct {
	svc     *service.Service
	sweeper *sweep.Sweeper
	val     *validator.Validator
}

func New(svc *service.Service, sweeper *sweep.Sweeper, val *validator.Validator) *Handler {
	return &Handler{svc: svc, sweeper: sweeper, val: val}
}

// RegisterLeadRoutes mounts the per-lead succession endpoints.
func (h *Handler) RegisterLeadRoutes(rg *gin.RouterGroup) {
	rg.POST("/:id/reassign", h.ManualReassign)
	rg.GET("/:id/activity", h.ActivityHistory)
}

// RegisterEscalationRoutes mounts the escalation management endpoints.
func (h *Handler) RegisterEscalationRoutes(rg *gin.RouterGroup) {
	rg.GET("/pending", h.PendingEscalations)
	rg.POST("/sweep", httpkit.RequireRole(string(domain.RoleAdmin)), h.RunSweep)
	rg.GET("/rule", h.GetRule)
	rg.PUT("/rule", httpkit.RequireRole(string(domain.RoleAdmin)), h.SetRule)
}

func (h *Handler) ManualReassign(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.ReassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.ManualReassign(c.Request.Context(), leadID, identity.OrganizationID(), req.TargetOwnerID, identity.UserID(), req.Reason)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToTransitionResponse(result))
}

func (h *Handler) ActivityHistory(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	items, err := h.svc.GetActivityHistory(c.Request.Context(), leadID, identity.OrganizationID())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToActivityEventResponses(items))
}

func (h *Handler) PendingEscalations(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	items, err := h.svc.GetPendingEscalations(c.Request.Context(), identity.OrganizationID(), time.Now())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToPendingEscalationResponses(items))
}

// RunSweep triggers one sweep tick for the caller's organization outside the
// scheduled cycle, functionally identical to a scheduler tick.
func (h *Handler) RunSweep(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.sweeper.RunOnce(c.Request.Context(), identity.OrganizationID())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

func (h *Handler) GetRule(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	rule, err := h.svc.ActiveRule(c.Request.Context(), identity.OrganizationID())
	if httpkit.HandleError(c, err) {
		return
	}
	if rule == nil {
		httpkit.Error(c, http.StatusNotFound, "no escalation rule configured", nil)
		return
	}

	httpkit.OK(c, transport.ToRuleResponse(*rule))
}

func (h *Handler) SetRule(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	var req transport.SetRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	roles := make([]domain.Role, 0, len(req.ApplicableRoles))
	for _, role := range req.ApplicableRoles {
		roles = append(roles, domain.Role(role))
	}

	rule, err := h.svc.SetRule(c.Request.Context(), repository.SetRuleParams{
		OrganizationID:             identity.OrganizationID(),
		Enabled:                    req.Enabled,
		InactivityThresholdMinutes: req.InactivityThresholdMinutes,
		ApplicableRoles:            roles,
		NotificationChannel:        domain.NotificationChannel(req.NotificationChannel),
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToRuleResponse(rule))
}
