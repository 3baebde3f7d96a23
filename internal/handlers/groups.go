package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/inkhousehq/inkhouse/internal/services"
	"github.com/inkhousehq/inkhouse/pkg/response"
)

type GroupHandler struct {
	svc    *services.GroupService
	assign *services.AutoAssignService
}

type createGroupRequest struct {
	Name      string  `json:"name" validate:"required,min=2,max=128"`
	ParentID  *string `json:"parent_id" validate:"omitempty,uuid4"`
	IsDefault bool    `json:"is_default"`
}

type renameGroupRequest struct {
	Name string `json:"name" validate:"required,min=2,max=128"`
}

type reparentGroupRequest struct {
	ParentID *string `json:"parent_id" validate:"omitempty,uuid4"`
}

type groupMemberRequest struct {
	UserID string `json:"user_id" validate:"required,uuid4"`
}

func NewGroupHandler(db *gorm.DB) (*GroupHandler, error) {
	audit, err := services.NewAuditService(db)
	if err != nil {
		return nil, err
	}
	svc, err := services.NewGroupService(db, audit)
	if err != nil {
		return nil, err
	}
	domains, err := services.NewDomainService(db)
	if err != nil {
		return nil, err
	}
	assign, err := services.NewAutoAssignService(db, domains, svc)
	if err != nil {
		return nil, err
	}
	return &GroupHandler{svc: svc, assign: assign}, nil
}

// GET /api/groups
func (h *GroupHandler) List(c *gin.Context) {
	groups, err := h.svc.List(requestContext(c), currentTenantID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, groups)
}

// POST /api/groups
func (h *GroupHandler) Create(c *gin.Context) {
	var body createGroupRequest
	if !bindAndValidate(c, &body) {
		return
	}

	group, err := h.svc.Create(requestContext(c), services.CreateGroupInput{
		TenantID:  currentTenantID(c),
		Name:      body.Name,
		ParentID:  body.ParentID,
		IsDefault: body.IsDefault,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, group)
}

// PATCH /api/groups/:id
func (h *GroupHandler) Rename(c *gin.Context) {
	var body renameGroupRequest
	if !bindAndValidate(c, &body) {
		return
	}

	group, err := h.svc.Rename(requestContext(c), c.Param("id"), body.Name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, group)
}

// PATCH /api/groups/:id/parent
func (h *GroupHandler) Reparent(c *gin.Context) {
	var body reparentGroupRequest
	if !bindAndValidate(c, &body) {
		return
	}

	group, err := h.svc.Reparent(requestContext(c), c.Param("id"), body.ParentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, group)
}

// DELETE /api/groups/:id
func (h *GroupHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// GET /api/groups/:id/members
func (h *GroupHandler) ListMembers(c *gin.Context) {
	members, err := h.svc.Members(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, members)
}

// GET /api/groups/:id/ancestors
func (h *GroupHandler) Ancestors(c *gin.Context) {
	chain, err := h.svc.AncestorsOf(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, chain)
}

// POST /api/groups/:id/members
func (h *GroupHandler) AddMember(c *gin.Context) {
	var body groupMemberRequest
	if !bindAndValidate(c, &body) {
		return
	}

	membership, err := h.svc.AddMember(requestContext(c), c.Param("id"), body.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, membership)
}

// DELETE /api/groups/:id/members/:userID
func (h *GroupHandler) RemoveMember(c *gin.Context) {
	if err := h.svc.RemoveMember(requestContext(c), c.Param("id"), c.Param("userID")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"removed": true})
}

// POST /api/groups/auto-assign
func (h *GroupHandler) AutoAssignTenant(c *gin.Context) {
	report, err := h.assign.AutoAssignTenant(requestContext(c), currentTenantID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, report)
}

// DELETE /api/groups/auto-assign
func (h *GroupHandler) RemoveAutoAssigned(c *gin.Context) {
	removed, err := h.assign.RemoveAutoAssigned(requestContext(c), currentTenantID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"removed": removed})
}
