package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/inkhousehq/inkhouse/internal/permissions"
	"github.com/inkhousehq/inkhouse/internal/services"
	"github.com/inkhousehq/inkhouse/pkg/errors"
	"github.com/inkhousehq/inkhouse/pkg/response"
)

type PermissionHandler struct {
	grants   *services.GrantService
	resolver *services.PermissionResolver
}

type tenantDefaultRequest struct {
	Permissions []string `json:"permissions" validate:"required"`
}

type userGrantRequest struct {
	UserID      string   `json:"user_id" validate:"required,uuid4"`
	Permissions []string `json:"permissions" validate:"required,min=1"`
}

type resourceGrantRequest struct {
	UserID       string   `json:"user_id" validate:"required,uuid4"`
	ResourceType string   `json:"resource_type" validate:"required,min=1,max=64"`
	ResourceID   string   `json:"resource_id" validate:"required,uuid4"`
	Permissions  []string `json:"permissions" validate:"required,min=1"`
}

func NewPermissionHandler(db *gorm.DB) (*PermissionHandler, error) {
	grants, err := services.NewGrantService(db)
	if err != nil {
		return nil, err
	}
	resolver, err := services.NewPermissionResolver(grants)
	if err != nil {
		return nil, err
	}
	return &PermissionHandler{grants: grants, resolver: resolver}, nil
}

// GET /api/permissions/registry
func (h *PermissionHandler) Registry(c *gin.Context) {
	types := permissions.All()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.String()
	}
	response.Success(c, http.StatusOK, gin.H{"permissions": names})
}

// PUT /api/permissions/tenant-default
func (h *PermissionHandler) SetTenantDefault(c *gin.Context) {
	var body tenantDefaultRequest
	if !bindAndValidate(c, &body) {
		return
	}

	set, err := parsePermissionNames(body.Permissions)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.grants.SetTenantDefault(requestContext(c), currentTenantID(c), set); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"permissions": set.Names()})
}

// GET /api/permissions/tenant-default
func (h *PermissionHandler) TenantDefault(c *gin.Context) {
	set, err := h.grants.TenantDefault(requestContext(c), currentTenantID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"permissions": set.Names()})
}

// POST /api/permissions/grants
func (h *PermissionHandler) GrantUser(c *gin.Context) {
	var body userGrantRequest
	if !bindAndValidate(c, &body) {
		return
	}

	set, err := parsePermissionNames(body.Permissions)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.grants.GrantUserTenant(requestContext(c), body.UserID, currentTenantID(c), set); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"granted": set.Names()})
}

// POST /api/permissions/revocations
func (h *PermissionHandler) RevokeUser(c *gin.Context) {
	var body userGrantRequest
	if !bindAndValidate(c, &body) {
		return
	}

	set, err := parsePermissionNames(body.Permissions)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.grants.RevokeUserTenant(requestContext(c), body.UserID, currentTenantID(c), set); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"revoked": set.Names()})
}

// POST /api/permissions/resource-grants
func (h *PermissionHandler) GrantResource(c *gin.Context) {
	var body resourceGrantRequest
	if !bindAndValidate(c, &body) {
		return
	}

	set, err := parsePermissionNames(body.Permissions)
	if err != nil {
		response.Error(c, err)
		return
	}

	ref := services.ResourceRef{Type: body.ResourceType, ID: body.ResourceID}
	if err := h.grants.GrantResource(requestContext(c), body.UserID, currentTenantID(c), ref, set); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"granted": set.Names()})
}

// POST /api/permissions/resource-revocations
func (h *PermissionHandler) RevokeResource(c *gin.Context) {
	var body resourceGrantRequest
	if !bindAndValidate(c, &body) {
		return
	}

	set, err := parsePermissionNames(body.Permissions)
	if err != nil {
		response.Error(c, err)
		return
	}

	ref := services.ResourceRef{Type: body.ResourceType, ID: body.ResourceID}
	if err := h.grants.RevokeResource(requestContext(c), body.UserID, currentTenantID(c), ref, set); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"revoked": set.Names()})
}

// GET /api/permissions/effective/:userID
func (h *PermissionHandler) EffectiveTenant(c *gin.Context) {
	set, err := h.resolver.EffectiveTenant(requestContext(c), c.Param("userID"), currentTenantID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"permissions": set.Names()})
}

// GET /api/permissions/effective/:userID/:resourceType/:resourceID
func (h *PermissionHandler) EffectiveResource(c *gin.Context) {
	ref := services.ResourceRef{Type: c.Param("resourceType"), ID: c.Param("resourceID")}
	set, err := h.resolver.EffectiveResource(requestContext(c), c.Param("userID"), currentTenantID(c), ref)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"permissions": set.Names()})
}

// parsePermissionNames converts wire-level permission names into a Set,
// rejecting the whole request on the first unknown name.
func parsePermissionNames(names []string) (permissions.Set, error) {
	var set permissions.Set
	for _, name := range names {
		t, ok := permissions.Parse(name)
		if !ok {
			return permissions.Set{}, errors.NewBadRequest(fmt.Sprintf("unknown permission %q", name))
		}
		set = set.With(t)
	}
	return set, nil
}
