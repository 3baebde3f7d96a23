package services

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/inkhousehq/inkhouse/internal/models"
	"github.com/inkhousehq/inkhouse/internal/permissions"
	apperrors "github.com/inkhousehq/inkhouse/pkg/errors"
)

type postFixture struct {
	db     *gorm.DB
	grants *GrantService
	posts  *PostService
	tenant *models.Tenant
	author *models.User
	reader *models.User
}

func newPostFixture(t *testing.T) *postFixture {
	t.Helper()

	db := openServiceTestDB(t)
	grants, err := NewGrantService(db)
	require.NoError(t, err)
	resolver, err := NewPermissionResolver(grants)
	require.NoError(t, err)
	posts, err := NewPostService(db, resolver, nil)
	require.NoError(t, err)

	f := &postFixture{
		db:     db,
		grants: grants,
		posts:  posts,
		tenant: createTestTenant(t, db, "acme"),
		author: createTestUser(t, db, "author", "author@acme.com"),
		reader: createTestUser(t, db, "reader", "reader@acme.com"),
	}

	ctx := testContext()
	require.NoError(t, grants.SetTenantDefault(ctx, f.tenant.ID, permissions.Of(permissions.TypeRead)))
	require.NoError(t, grants.GrantUserTenant(ctx, f.author.ID, f.tenant.ID,
		permissions.Of(permissions.TypeCreate, permissions.TypeEdit, permissions.TypeDelete)))
	return f
}

func TestPostServiceCreateRequiresPermission(t *testing.T) {
	f := newPostFixture(t)
	ctx := testContext()

	post, err := f.posts.Create(ctx, f.author.ID, f.tenant.ID, CreatePostInput{Title: "Hello", Body: "World"})
	require.NoError(t, err)
	require.Equal(t, models.PostStatusDraft, post.Status)

	// The reader only carries the tenant-default Read bit.
	_, err = f.posts.Create(ctx, f.reader.ID, f.tenant.ID, CreatePostInput{Title: "Nope"})
	require.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestPostServiceGetHonoursResourceGrants(t *testing.T) {
	f := newPostFixture(t)
	ctx := testContext()

	post, err := f.posts.Create(ctx, f.author.ID, f.tenant.ID, CreatePostInput{Title: "Draft"})
	require.NoError(t, err)

	// Tenant default grants Read, so the reader can see it.
	got, err := f.posts.Get(ctx, f.reader.ID, f.tenant.ID, post.ID)
	require.NoError(t, err)
	require.Equal(t, post.ID, got.ID)

	// Strip the default; now only a resource grant lets the reader in.
	require.NoError(t, f.grants.SetTenantDefault(ctx, f.tenant.ID, permissions.Set{}))
	_, err = f.posts.Get(ctx, f.reader.ID, f.tenant.ID, post.ID)
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	ref := ResourceRef{Type: models.ResourceTypePost, ID: post.ID}
	require.NoError(t, f.grants.GrantResource(ctx, f.reader.ID, f.tenant.ID, ref, permissions.Of(permissions.TypeRead)))

	got, err = f.posts.Get(ctx, f.reader.ID, f.tenant.ID, post.ID)
	require.NoError(t, err)
	require.Equal(t, post.ID, got.ID)
}

func TestPostServiceListFiltersByReadability(t *testing.T) {
	f := newPostFixture(t)
	ctx := testContext()

	visible, err := f.posts.Create(ctx, f.author.ID, f.tenant.ID, CreatePostInput{Title: "Visible"})
	require.NoError(t, err)
	hidden, err := f.posts.Create(ctx, f.author.ID, f.tenant.ID, CreatePostInput{Title: "Hidden"})
	require.NoError(t, err)

	require.NoError(t, f.grants.SetTenantDefault(ctx, f.tenant.ID, permissions.Set{}))
	require.NoError(t, f.grants.GrantResource(ctx, f.reader.ID, f.tenant.ID,
		ResourceRef{Type: models.ResourceTypePost, ID: visible.ID}, permissions.Of(permissions.TypeRead)))

	listed, err := f.posts.List(ctx, f.reader.ID, f.tenant.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, visible.ID, listed[0].ID)
	require.NotEqual(t, hidden.ID, listed[0].ID)
}

func TestPostServicePublishNeedsApproval(t *testing.T) {
	f := newPostFixture(t)
	ctx := testContext()

	post, err := f.posts.Create(ctx, f.author.ID, f.tenant.ID, CreatePostInput{Title: "Draft"})
	require.NoError(t, err)

	// Edit rights do not include approval.
	_, err = f.posts.Publish(ctx, f.author.ID, f.tenant.ID, post.ID)
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	require.NoError(t, f.grants.GrantUserTenant(ctx, f.author.ID, f.tenant.ID, permissions.Of(permissions.TypeApprove)))

	published, err := f.posts.Publish(ctx, f.author.ID, f.tenant.ID, post.ID)
	require.NoError(t, err)
	require.Equal(t, models.PostStatusPublished, published.Status)

	// Publishing twice stays published.
	published, err = f.posts.Publish(ctx, f.author.ID, f.tenant.ID, post.ID)
	require.NoError(t, err)
	require.Equal(t, models.PostStatusPublished, published.Status)
}

func TestPostServiceUpdateAndDelete(t *testing.T) {
	f := newPostFixture(t)
	ctx := testContext()

	post, err := f.posts.Create(ctx, f.author.ID, f.tenant.ID, CreatePostInput{Title: "Before"})
	require.NoError(t, err)

	title := "After"
	updated, err := f.posts.Update(ctx, f.author.ID, f.tenant.ID, post.ID, UpdatePostInput{Title: &title})
	require.NoError(t, err)
	require.Equal(t, "After", updated.Title)

	_, err = f.posts.Update(ctx, f.reader.ID, f.tenant.ID, post.ID, UpdatePostInput{Title: &title})
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	require.ErrorIs(t, f.posts.Delete(ctx, f.reader.ID, f.tenant.ID, post.ID), apperrors.ErrForbidden)
	require.NoError(t, f.posts.Delete(ctx, f.author.ID, f.tenant.ID, post.ID))

	_, err = f.posts.Get(ctx, f.author.ID, f.tenant.ID, post.ID)
	require.ErrorIs(t, err, ErrPostNotFound)
}
