package handler

import (
	"net/http"

	"leaddesk_backend/internal/leads/repository"
	"leaddesk_backend/internal/leads/service"
	"leaddesk_backend/internal/leads/transport"
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
	rg.POST("", h.Create)
	rg.GET("/:id", h.GetByID)
	rg.PATCH("/:id/status", h.UpdateStatus)
	rg.POST("/:id/contact", h.RecordContact)
	rg.POST("/:id/documents", h.RecordDocument)
}

func (h *Handler) Create(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	var req transport.CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	params := repository.CreateLeadParams{
		OrganizationID:    identity.OrganizationID(),
		ConsumerFirstName: req.FirstName,
		ConsumerLastName:  req.LastName,
		ConsumerPhone:     req.Phone,
		CurrentOwnerID:    req.OwnerID,
	}
	if req.Email != "" {
		params.ConsumerEmail = &req.Email
	}

	lead, err := h.svc.Create(c.Request.Context(), params)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, transport.ToLeadResponse(lead))
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

	lead, err := h.svc.GetByID(c.Request.Context(), id, identity.OrganizationID())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToLeadResponse(lead))
}

func (h *Handler) List(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	leads, err := h.svc.List(c.Request.Context(), identity.OrganizationID())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToLeadResponses(leads))
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	lead, err := h.svc.UpdateStatus(c.Request.Context(), id, identity.OrganizationID(), domain.LifecycleStatus(req.Status), identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToLeadResponse(lead))
}

func (h *Handler) RecordContact(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.RecordContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	if err := h.svc.RecordContact(c.Request.Context(), id, identity.OrganizationID(), identity.UserID(), req.Channel, req.Note); httpkit.HandleError(c, err) {
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) RecordDocument(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.RecordDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	if err := h.svc.RecordDocument(c.Request.Context(), id, identity.OrganizationID(), identity.UserID(), req.FileName); httpkit.HandleError(c, err) {
		return
	}

	c.Status(http.StatusNoContent)
}
