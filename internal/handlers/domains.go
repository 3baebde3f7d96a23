package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/inkhousehq/inkhouse/internal/services"
	"github.com/inkhousehq/inkhouse/pkg/response"
)

type DomainHandler struct {
	svc *services.DomainService
}

type registerDomainRequest struct {
	Domain            string  `json:"domain" validate:"required,fqdn"`
	Subdomain         string  `json:"subdomain" validate:"omitempty,hostname"`
	IsMainDomain      bool    `json:"is_main_domain"`
	IsSecondaryDomain bool    `json:"is_secondary_domain"`
	GroupID           *string `json:"group_id" validate:"omitempty,uuid4"`
}

type bindGroupRequest struct {
	GroupID *string `json:"group_id" validate:"omitempty,uuid4"`
}

type matchEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func NewDomainHandler(db *gorm.DB) (*DomainHandler, error) {
	svc, err := services.NewDomainService(db)
	if err != nil {
		return nil, err
	}
	return &DomainHandler{svc: svc}, nil
}

// GET /api/domains
func (h *DomainHandler) List(c *gin.Context) {
	records, err := h.svc.List(requestContext(c), currentTenantID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, records)
}

// POST /api/domains
func (h *DomainHandler) Register(c *gin.Context) {
	var body registerDomainRequest
	if !bindAndValidate(c, &body) {
		return
	}

	record, err := h.svc.Register(requestContext(c), services.RegisterDomainInput{
		TenantID:          currentTenantID(c),
		Domain:            body.Domain,
		Subdomain:         body.Subdomain,
		IsMainDomain:      body.IsMainDomain,
		IsSecondaryDomain: body.IsSecondaryDomain,
		GroupID:           body.GroupID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, record)
}

// PATCH /api/domains/:id/group
func (h *DomainHandler) BindGroup(c *gin.Context) {
	var body bindGroupRequest
	if !bindAndValidate(c, &body) {
		return
	}

	record, err := h.svc.BindGroup(requestContext(c), c.Param("id"), body.GroupID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, record)
}

// DELETE /api/domains/:id
func (h *DomainHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// POST /api/domains/match
func (h *DomainHandler) MatchEmail(c *gin.Context) {
	var body matchEmailRequest
	if !bindAndValidate(c, &body) {
		return
	}

	record, err := h.svc.MatchEmailForTenant(requestContext(c), currentTenantID(c), body.Email)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"matched": record})
}
