package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	iauth "github.com/inkhousehq/inkhouse/internal/auth"
	"github.com/inkhousehq/inkhouse/internal/models"
	"github.com/inkhousehq/inkhouse/internal/services"
)

func newTenantTestRouter(t *testing.T) (*gin.Engine, *iauth.JWTService, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Tenant{}, &models.UserGroup{}, &models.GroupMembership{}))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	resolver, err := services.NewTenantContextService(db)
	require.NoError(t, err)

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         "secret",
		AccessTokenTTL: time.Minute,
	})
	require.NoError(t, err)

	r := gin.New()
	r.GET("/scoped", Auth(jwtSvc), Tenant(resolver), RequireTenant(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"tenant_id": c.GetString(CtxTenantIDKey)})
	})
	return r, jwtSvc, db
}

func TestTenantMiddlewareHeaderOverridesClaim(t *testing.T) {
	r, jwtSvc, db := newTenantTestRouter(t)

	claimed := &models.Tenant{Name: "claimed", Slug: "claimed", IsActive: true}
	require.NoError(t, db.Create(claimed).Error)
	fromHeader := &models.Tenant{Name: "header", Slug: "header", IsActive: true}
	require.NoError(t, db.Create(fromHeader).Error)

	token, err := jwtSvc.GenerateAccessToken(iauth.AccessTokenInput{
		UserID:   "user-123",
		TenantID: claimed.ID,
	})
	require.NoError(t, err)

	// Claim only.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/scoped", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), claimed.ID)

	// Header beats the claim.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/scoped", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(TenantHeader, fromHeader.ID)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), fromHeader.ID)
}

func TestTenantMiddlewareRejectsWithoutLiveTenant(t *testing.T) {
	r, jwtSvc, db := newTenantTestRouter(t)

	dead := &models.Tenant{Name: "dead", Slug: "dead", IsActive: false}
	require.NoError(t, db.Create(dead).Error)

	token, err := jwtSvc.GenerateAccessToken(iauth.AccessTokenInput{
		UserID:   "user-123",
		TenantID: dead.ID,
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/scoped", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
