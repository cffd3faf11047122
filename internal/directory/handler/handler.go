package handler

import (
	"net/http"

	"leaddesk_backend/internal/directory/repository"
	"leaddesk_backend/internal/directory/service"
	"leaddesk_backend/internal/directory/transport"
	"leaddesk_backend/internal/succession/domain"
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
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/:id", h.GetByID)
	rg.POST("", httpkit.RequireRole(string(domain.RoleAdmin)), h.Create)
}

func (h *Handler) Create(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	var req transport.CreateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	agent, err := h.svc.Create(c.Request.Context(), repository.CreateAgentParams{
		OrganizationID: identity.OrganizationID(),
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Email:          req.Email,
		Role:           domain.Role(req.Role),
		SupervisorID:   req.SupervisorID,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, transport.ToAgentResponse(agent))
}

func (h *Handler) GetByID(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	agent, err := h.svc.GetByID(c.Request.Context(), id, identity.OrganizationID())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToAgentResponse(agent))
}

func (h *Handler) List(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	agents, err := h.svc.List(c.Request.Context(), identity.OrganizationID())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToAgentResponses(agents))
}
