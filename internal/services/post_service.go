package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/inkhousehq/inkhouse/internal/models"
	"github.com/inkhousehq/inkhouse/internal/permissions"
	apperrors "github.com/inkhousehq/inkhouse/pkg/errors"
)

var (
	// ErrPostNotFound indicates the requested post does not exist.
	ErrPostNotFound = apperrors.New("POST_NOT_FOUND", "Post not found", http.StatusNotFound)
)

// CreatePostInput captures new post content.
type CreatePostInput struct {
	Title string
	Body  string
}

// UpdatePostInput represents mutable post fields.
type UpdatePostInput struct {
	Title *string
	Body  *string
}

// PostService manages tenant-scoped content, delegating every authorization
// decision to the effective-permission resolver.
type PostService struct {
	db       *gorm.DB
	resolver *PermissionResolver
	audit    *AuditService
}

// NewPostService constructs a PostService instance.
func NewPostService(db *gorm.DB, resolver *PermissionResolver, audit *AuditService) (*PostService, error) {
	if db == nil {
		return nil, errors.New("post service: db is required")
	}
	if resolver == nil {
		return nil, errors.New("post service: permission resolver is required")
	}
	return &PostService{db: db, resolver: resolver, audit: audit}, nil
}

// Create drafts a new post for the author within the tenant.
func (s *PostService) Create(ctx context.Context, userID, tenantID string, input CreatePostInput) (*models.Post, error) {
	ctx = ensureContext(ctx)

	if err := s.require(ctx, userID, tenantID, permissions.TypeCreate); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewBadRequest("post title is required")
	}

	post := &models.Post{
		TenantID: strings.TrimSpace(tenantID),
		AuthorID: strings.TrimSpace(userID),
		Title:    title,
		Body:     input.Body,
		Status:   models.PostStatusDraft,
	}
	post.Normalise()

	if err := s.db.WithContext(ctx).Create(post).Error; err != nil {
		return nil, fmt.Errorf("post service: create post: %w", err)
	}

	recordAudit(s.audit, ctx, AuditEntry{
		UserID:   &post.AuthorID,
		TenantID: &post.TenantID,
		Action:   "post.create",
		Resource: post.ID,
		Result:   "success",
	})

	return post, nil
}

// Get loads a post the user may read. Read access can come from the tenant
// layers or from a resource grant on this specific post (e.g. a draft
// shared to a reviewer).
func (s *PostService) Get(ctx context.Context, userID, tenantID, postID string) (*models.Post, error) {
	ctx = ensureContext(ctx)

	post, err := s.load(ctx, tenantID, postID)
	if err != nil {
		return nil, err
	}

	ok, err := s.resolver.HasOnResource(ctx, userID, tenantID,
		ResourceRef{Type: models.ResourceTypePost, ID: post.ID}, permissions.TypeRead)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.ErrForbidden
	}
	return post, nil
}

// List returns the tenant's posts the user can read, resolving the batch of
// resource grants in one pass instead of per-post round-trips.
func (s *PostService) List(ctx context.Context, userID, tenantID string) ([]models.Post, error) {
	ctx = ensureContext(ctx)

	var posts []models.Post
	err := s.db.WithContext(ctx).
		Where("tenant_id = ?", strings.TrimSpace(tenantID)).
		Order("created_at DESC").
		Find(&posts).Error
	if err != nil {
		return nil, fmt.Errorf("post service: list posts: %w", err)
	}

	ids := make([]string, len(posts))
	for i := range posts {
		ids[i] = posts[i].ID
	}

	effective, err := s.resolver.EffectiveResources(ctx, userID, tenantID, models.ResourceTypePost, ids)
	if err != nil {
		return nil, err
	}

	visible := posts[:0]
	for _, post := range posts {
		if effective[post.ID].Has(permissions.TypeRead) {
			visible = append(visible, post)
		}
	}
	return visible, nil
}

// Update edits a post's content.
func (s *PostService) Update(ctx context.Context, userID, tenantID, postID string, input UpdatePostInput) (*models.Post, error) {
	ctx = ensureContext(ctx)

	post, err := s.load(ctx, tenantID, postID)
	if err != nil {
		return nil, err
	}

	ok, err := s.resolver.HasOnResource(ctx, userID, tenantID,
		ResourceRef{Type: models.ResourceTypePost, ID: post.ID}, permissions.TypeEdit)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.ErrForbidden
	}

	updates := map[string]any{}
	if input.Title != nil {
		if title := strings.TrimSpace(*input.Title); title != "" && title != post.Title {
			updates["title"] = title
		}
	}
	if input.Body != nil {
		updates["body"] = *input.Body
	}

	if len(updates) == 0 {
		return post, nil
	}

	if err := s.db.WithContext(ctx).Model(post).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("post service: update post: %w", err)
	}

	recordAudit(s.audit, ctx, AuditEntry{
		UserID:   &post.AuthorID,
		TenantID: &post.TenantID,
		Action:   "post.update",
		Resource: post.ID,
		Result:   "success",
	})

	return post, nil
}

// Publish transitions a draft to published; approval rights are required.
func (s *PostService) Publish(ctx context.Context, userID, tenantID, postID string) (*models.Post, error) {
	ctx = ensureContext(ctx)

	post, err := s.load(ctx, tenantID, postID)
	if err != nil {
		return nil, err
	}

	ok, err := s.resolver.HasOnResource(ctx, userID, tenantID,
		ResourceRef{Type: models.ResourceTypePost, ID: post.ID}, permissions.TypeApprove)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.ErrForbidden
	}

	if post.Status == models.PostStatusPublished {
		return post, nil
	}

	if err := s.db.WithContext(ctx).Model(post).Update("status", models.PostStatusPublished).Error; err != nil {
		return nil, fmt.Errorf("post service: publish post: %w", err)
	}
	post.Status = models.PostStatusPublished

	recordAudit(s.audit, ctx, AuditEntry{
		UserID:   &post.AuthorID,
		TenantID: &post.TenantID,
		Action:   "post.publish",
		Resource: post.ID,
		Result:   "success",
	})

	return post, nil
}

// Delete removes a post.
func (s *PostService) Delete(ctx context.Context, userID, tenantID, postID string) error {
	ctx = ensureContext(ctx)

	post, err := s.load(ctx, tenantID, postID)
	if err != nil {
		return err
	}

	ok, err := s.resolver.HasOnResource(ctx, userID, tenantID,
		ResourceRef{Type: models.ResourceTypePost, ID: post.ID}, permissions.TypeDelete)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.ErrForbidden
	}

	if err := s.db.WithContext(ctx).Delete(post).Error; err != nil {
		return fmt.Errorf("post service: delete post: %w", err)
	}

	recordAudit(s.audit, ctx, AuditEntry{
		TenantID: &post.TenantID,
		Action:   "post.delete",
		Resource: post.ID,
		Result:   "success",
	})

	return nil
}

func (s *PostService) load(ctx context.Context, tenantID, postID string) (*models.Post, error) {
	var post models.Post
	err := s.db.WithContext(ctx).
		First(&post, "id = ? AND tenant_id = ?", strings.TrimSpace(postID), strings.TrimSpace(tenantID)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("post service: load post: %w", err)
	}
	return &post, nil
}

func (s *PostService) require(ctx context.Context, userID, tenantID string, t permissions.Type) error {
	ok, err := s.resolver.Has(ctx, userID, tenantID, t)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.ErrForbidden
	}
	return nil
}
