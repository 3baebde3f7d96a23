package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	iauth "github.com/inkhousehq/inkhouse/internal/auth"
	"github.com/inkhousehq/inkhouse/internal/services"
	"github.com/inkhousehq/inkhouse/pkg/errors"
	"github.com/inkhousehq/inkhouse/pkg/response"
)

type AuthHandler struct {
	users   *services.UserService
	tenants *services.TenantContextService
	jwt     *iauth.JWTService
}

type loginRequest struct {
	Username string `json:"username" validate:"required,min=2,max=128"`
	Password string `json:"password" validate:"required,min=8"`
}

type registerRequest struct {
	Username    string `json:"username" validate:"required,min=2,max=128"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	DisplayName string `json:"display_name" validate:"omitempty,max=128"`
}

func NewAuthHandler(db *gorm.DB, jwt *iauth.JWTService, users *services.UserService) (*AuthHandler, error) {
	tenants, err := services.NewTenantContextService(db)
	if err != nil {
		return nil, err
	}
	return &AuthHandler{users: users, tenants: tenants, jwt: jwt}, nil
}

// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var body registerRequest
	if !bindAndValidate(c, &body) {
		return
	}

	user, err := h.users.Register(requestContext(c), services.RegisterUserInput{
		Username:    body.Username,
		Email:       body.Email,
		Password:    body.Password,
		DisplayName: body.DisplayName,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, user)
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if !bindAndValidate(c, &body) {
		return
	}

	ctx := requestContext(c)
	user, err := h.users.Authenticate(ctx, body.Username, body.Password)
	if err != nil {
		response.Error(c, errors.ErrInvalidCredentials)
		return
	}

	// Bake the tenant into the token only when it is unambiguous; users in
	// several tenants pick one per request via the tenant header.
	tenantID, err := h.tenants.SoleTenantOf(ctx, user.ID)
	if err != nil {
		response.Error(c, errors.ErrInternalServer)
		return
	}

	token, err := h.jwt.GenerateAccessToken(iauth.AccessTokenInput{
		UserID:   user.ID,
		TenantID: tenantID,
	})
	if err != nil {
		response.Error(c, errors.ErrInternalServer)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"token": token,
		"user":  user,
	})
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.users.GetByID(requestContext(c), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"user":      user,
		"tenant_id": currentTenantID(c),
	})
}
