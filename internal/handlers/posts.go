package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/inkhousehq/inkhouse/internal/services"
	"github.com/inkhousehq/inkhouse/pkg/response"
)

type PostHandler struct {
	svc *services.PostService
}

type createPostRequest struct {
	Title string `json:"title" validate:"required,min=1,max=256"`
	Body  string `json:"body" validate:"omitempty"`
}

type updatePostRequest struct {
	Title *string `json:"title" validate:"omitempty,min=1,max=256"`
	Body  *string `json:"body"`
}

func NewPostHandler(db *gorm.DB) (*PostHandler, error) {
	grants, err := services.NewGrantService(db)
	if err != nil {
		return nil, err
	}
	resolver, err := services.NewPermissionResolver(grants)
	if err != nil {
		return nil, err
	}
	audit, err := services.NewAuditService(db)
	if err != nil {
		return nil, err
	}
	svc, err := services.NewPostService(db, resolver, audit)
	if err != nil {
		return nil, err
	}
	return &PostHandler{svc: svc}, nil
}

// GET /api/posts
func (h *PostHandler) List(c *gin.Context) {
	posts, err := h.svc.List(requestContext(c), currentUserID(c), currentTenantID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, posts)
}

// GET /api/posts/:id
func (h *PostHandler) Get(c *gin.Context) {
	post, err := h.svc.Get(requestContext(c), currentUserID(c), currentTenantID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, post)
}

// POST /api/posts
func (h *PostHandler) Create(c *gin.Context) {
	var body createPostRequest
	if !bindAndValidate(c, &body) {
		return
	}

	post, err := h.svc.Create(requestContext(c), currentUserID(c), currentTenantID(c), services.CreatePostInput{
		Title: body.Title,
		Body:  body.Body,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, post)
}

// PATCH /api/posts/:id
func (h *PostHandler) Update(c *gin.Context) {
	var body updatePostRequest
	if !bindAndValidate(c, &body) {
		return
	}

	post, err := h.svc.Update(requestContext(c), currentUserID(c), currentTenantID(c), c.Param("id"), services.UpdatePostInput{
		Title: body.Title,
		Body:  body.Body,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, post)
}

// POST /api/posts/:id/publish
func (h *PostHandler) Publish(c *gin.Context) {
	post, err := h.svc.Publish(requestContext(c), currentUserID(c), currentTenantID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, post)
}

// DELETE /api/posts/:id
func (h *PostHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(requestContext(c), currentUserID(c), currentTenantID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
