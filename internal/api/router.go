package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	iauth "github.com/inkhousehq/inkhouse/internal/auth"
	"github.com/inkhousehq/inkhouse/internal/handlers"
	"github.com/inkhousehq/inkhouse/internal/middleware"
	"github.com/inkhousehq/inkhouse/internal/permissions"
	"github.com/inkhousehq/inkhouse/internal/services"
)

// NewRouter builds the Gin engine, wires middleware and registers routes.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	// Health endpoint (public)
	r.GET("/health", handlers.Health(db))

	// Shared services for middleware wiring
	grants, err := services.NewGrantService(db)
	if err != nil {
		return nil, err
	}
	resolver, err := services.NewPermissionResolver(grants)
	if err != nil {
		return nil, err
	}
	tenantCtx, err := services.NewTenantContextService(db)
	if err != nil {
		return nil, err
	}
	audit, err := services.NewAuditService(db)
	if err != nil {
		return nil, err
	}
	domainSvc, err := services.NewDomainService(db)
	if err != nil {
		return nil, err
	}
	groupSvc, err := services.NewGroupService(db, audit)
	if err != nil {
		return nil, err
	}
	assignSvc, err := services.NewAutoAssignService(db, domainSvc, groupSvc)
	if err != nil {
		return nil, err
	}
	userSvc, err := services.NewUserService(db, assignSvc, groupSvc, audit)
	if err != nil {
		return nil, err
	}

	authHandler, err := handlers.NewAuthHandler(db, jwt, userSvc)
	if err != nil {
		return nil, err
	}

	// Public auth routes
	auth := r.Group("/api/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
	}

	requireAuth := middleware.Auth(jwt)
	withTenant := middleware.Tenant(tenantCtx)
	requireTenant := middleware.RequireTenant()

	api := r.Group("/api")
	api.Use(requireAuth, withTenant)

	// Authenticated auth routes
	api.GET("/auth/me", authHandler.Me)

	// Tenants
	tenantHandler, err := handlers.NewTenantHandler(db)
	if err != nil {
		return nil, err
	}
	tenants := api.Group("/tenants")
	{
		tenants.GET("", tenantHandler.List)
		tenants.GET("/:id", tenantHandler.Get)
		tenants.POST("", tenantHandler.Create)
		tenants.PATCH("/:id", tenantHandler.Update)
		tenants.POST("/:id/active", tenantHandler.SetActive)
		tenants.DELETE("/:id", tenantHandler.Delete)
	}

	// Domain registry (tenant-scoped)
	domainHandler, err := handlers.NewDomainHandler(db)
	if err != nil {
		return nil, err
	}
	domains := api.Group("/domains", requireTenant)
	{
		domains.GET("", domainHandler.List)
		domains.POST("", middleware.RequirePermission(resolver, permissions.TypeManageDomains), domainHandler.Register)
		domains.PATCH("/:id/group", middleware.RequirePermission(resolver, permissions.TypeManageDomains), domainHandler.BindGroup)
		domains.DELETE("/:id", middleware.RequirePermission(resolver, permissions.TypeManageDomains), domainHandler.Delete)
		domains.POST("/match", domainHandler.MatchEmail)
	}

	// Groups and auto-assignment (tenant-scoped)
	groupHandler, err := handlers.NewGroupHandler(db)
	if err != nil {
		return nil, err
	}
	groups := api.Group("/groups", requireTenant)
	{
		groups.GET("", groupHandler.List)
		groups.POST("", middleware.RequirePermission(resolver, permissions.TypeManageGroups), groupHandler.Create)
		groups.PATCH("/:id", middleware.RequirePermission(resolver, permissions.TypeManageGroups), groupHandler.Rename)
		groups.PATCH("/:id/parent", middleware.RequirePermission(resolver, permissions.TypeManageGroups), groupHandler.Reparent)
		groups.DELETE("/:id", middleware.RequirePermission(resolver, permissions.TypeManageGroups), groupHandler.Delete)
		groups.GET("/:id/members", groupHandler.ListMembers)
		groups.GET("/:id/ancestors", groupHandler.Ancestors)
		groups.POST("/:id/members", middleware.RequirePermission(resolver, permissions.TypeManageMembers), groupHandler.AddMember)
		groups.DELETE("/:id/members/:userID", middleware.RequirePermission(resolver, permissions.TypeManageMembers), groupHandler.RemoveMember)
		groups.POST("/auto-assign", middleware.RequirePermission(resolver, permissions.TypeManageMembers), groupHandler.AutoAssignTenant)
		groups.DELETE("/auto-assign", middleware.RequirePermission(resolver, permissions.TypeManageMembers), groupHandler.RemoveAutoAssigned)
	}

	// Grants and effective permissions (tenant-scoped)
	permHandler, err := handlers.NewPermissionHandler(db)
	if err != nil {
		return nil, err
	}
	perms := api.Group("/permissions", requireTenant)
	{
		perms.GET("/registry", permHandler.Registry)
		perms.GET("/tenant-default", permHandler.TenantDefault)
		perms.PUT("/tenant-default", middleware.RequirePermission(resolver, permissions.TypeManageGrants), permHandler.SetTenantDefault)
		perms.POST("/grants", middleware.RequirePermission(resolver, permissions.TypeManageGrants), permHandler.GrantUser)
		perms.POST("/revocations", middleware.RequirePermission(resolver, permissions.TypeManageGrants), permHandler.RevokeUser)
		perms.POST("/resource-grants", middleware.RequirePermission(resolver, permissions.TypeManageGrants), permHandler.GrantResource)
		perms.POST("/resource-revocations", middleware.RequirePermission(resolver, permissions.TypeManageGrants), permHandler.RevokeResource)
		perms.GET("/effective/:userID", permHandler.EffectiveTenant)
		perms.GET("/effective/:userID/:resourceType/:resourceID", permHandler.EffectiveResource)
	}

	// Content (tenant-scoped; per-operation checks live in the service)
	postHandler, err := handlers.NewPostHandler(db)
	if err != nil {
		return nil, err
	}
	posts := api.Group("/posts", requireTenant)
	{
		posts.GET("", postHandler.List)
		posts.GET("/:id", postHandler.Get)
		posts.POST("", postHandler.Create)
		posts.PATCH("/:id", postHandler.Update)
		posts.POST("/:id/publish", postHandler.Publish)
		posts.DELETE("/:id", postHandler.Delete)
	}

	// Testing labs (tenant-scoped)
	labHandler, err := handlers.NewLabHandler(db)
	if err != nil {
		return nil, err
	}
	labs := api.Group("/labs", requireTenant)
	{
		labs.GET("/bookings", labHandler.Upcoming)
		labs.POST("/bookings", labHandler.Book)
		labs.DELETE("/bookings/:id", labHandler.Cancel)
	}

	// Audit
	auditHandler, err := handlers.NewAuditHandler(db)
	if err != nil {
		return nil, err
	}
	api.GET("/audit", requireTenant, auditHandler.List)

	// Metrics endpoint
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
