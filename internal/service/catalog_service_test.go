package service

import (
	"context"
	"testing"

	"homeservices/internal/domain"
	"homeservices/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.catalog.UpsertCategory(ctx, provider, CategoryInput{Name: "Nope"})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = env.catalog.UpsertCategory(ctx, admin, CategoryInput{})
	assert.ErrorIs(t, err, domain.ErrValidationFailed)

	require.NoError(t, env.catalog.SeedCategories(ctx, []*models.Category{
		{ID: "plumbing", Name: "Plumbing", SortOrder: 2},
		{ID: "cleaning", Name: "Cleaning", SortOrder: 1},
	}))

	categories, err := env.catalog.GetActiveCategories(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 2)
	assert.Equal(t, "cleaning", categories[0].ID)

	updated, err := env.catalog.UpsertCategory(ctx, admin, CategoryInput{ID: "plumbing", Name: "Plumbing & Pipes", SortOrder: 0})
	require.NoError(t, err)
	assert.Equal(t, "Plumbing & Pipes", updated.Name)

	categories, err = env.catalog.GetActiveCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, "plumbing", categories[0].ID, "cache refreshed after write")

	got, err := env.catalog.GetCategory(ctx, "plumbing")
	require.NoError(t, err)
	assert.Equal(t, "Plumbing & Pipes", got.Name)
}

func TestDeleteCategoryGuard(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := env.approvedService(t, 999)

	err := env.catalog.DeleteCategory(ctx, admin, svc.CategoryID)
	assert.ErrorIs(t, err, domain.ErrHasDependents)

	_, err = env.catalog.GetCategory(ctx, svc.CategoryID)
	require.NoError(t, err, "category survives a rejected delete")

	require.NoError(t, env.catalog.DeleteService(ctx, provider, svc.ID))
	require.NoError(t, env.catalog.DeleteCategory(ctx, admin, svc.CategoryID))

	_, err = env.catalog.GetCategory(ctx, svc.CategoryID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, env.catalog.DeleteCategory(ctx, customer, "x"), domain.ErrForbidden)
}

func TestServiceModeration(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.catalog.UpsertCategory(ctx, admin, CategoryInput{ID: "repair", Name: "Repair"})
	require.NoError(t, err)

	input := ServiceInput{CategoryID: "repair", Title: "AC Repair", Price: 799, DurationMinutes: 60}

	_, err = env.catalog.CreateService(ctx, customer, input)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	bad := input
	bad.CategoryID = "unknown"
	bad.Price = 0
	_, err = env.catalog.CreateService(ctx, provider, bad)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "category_id")
	assert.Contains(t, verr.Fields, "price")

	svc, err := env.catalog.CreateService(ctx, provider, input)
	require.NoError(t, err)
	assert.Equal(t, models.ModerationPending, svc.ModerationStatus)

	_, err = env.catalog.GetService(ctx, customer, svc.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound, "pending services are hidden from the public")

	_, err = env.catalog.SetServiceModeration(ctx, provider, svc.ID, "approved")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = env.catalog.SetServiceModeration(ctx, admin, svc.ID, "pending")
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "decision")

	rejected, err := env.catalog.SetServiceModeration(ctx, admin, svc.ID, "inactive")
	require.NoError(t, err)
	assert.Equal(t, models.ModerationRejected, rejected.ModerationStatus)

	_, err = env.catalog.SetServiceModeration(ctx, admin, svc.ID, "approved")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "decisions apply only to pending services")

	_, err = env.catalog.ResubmitService(ctx, provider2, svc.ID, input)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	input.Price = 899
	resubmitted, err := env.catalog.ResubmitService(ctx, provider, svc.ID, input)
	require.NoError(t, err)
	assert.Equal(t, models.ModerationPending, resubmitted.ModerationStatus)
	assert.Equal(t, 899.0, resubmitted.Price)

	approved, err := env.catalog.SetServiceModeration(ctx, admin, svc.ID, "active")
	require.NoError(t, err)
	assert.True(t, approved.IsBookable())

	public, err := env.catalog.GetService(ctx, customer, svc.ID)
	require.NoError(t, err)
	assert.Equal(t, "AC Repair", public.Title)
}

func TestCreateServiceNeedsVerifiedProvider(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.catalog.UpsertCategory(ctx, admin, CategoryInput{ID: "repair", Name: "Repair"})
	require.NoError(t, err)

	newcomer := domain.Actor{UserID: "provider-new", Role: models.RoleProvider}
	_, err = env.users.Register(ctx, newcomer, RegisterInput{Role: "provider", FullName: "New Provider"})
	require.NoError(t, err)

	input := ServiceInput{CategoryID: "repair", Title: "Fan Repair", Price: 299, DurationMinutes: 30}
	_, err = env.catalog.CreateService(ctx, newcomer, input)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = env.catalog.CreateService(ctx, admin, input)
	assert.ErrorIs(t, err, domain.ErrValidationFailed, "admins must name the provider")

	input.ProviderID = provider.UserID
	svc, err := env.catalog.CreateService(ctx, admin, input)
	require.NoError(t, err)
	assert.Equal(t, provider.UserID, svc.ProviderID)
}

func TestListServicesVisibility(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	live := env.approvedService(t, 999)

	pending, err := env.catalog.CreateService(ctx, provider, ServiceInput{
		CategoryID: live.CategoryID, Title: "Window Cleaning", Price: 499, DurationMinutes: 45,
	})
	require.NoError(t, err)

	public, err := env.catalog.ListServices(ctx, customer, models.ServiceFilter{})
	require.NoError(t, err)
	require.Len(t, public, 1)
	assert.Equal(t, live.ID, public[0].ID)

	own, err := env.catalog.ListServices(ctx, provider, models.ServiceFilter{ProviderID: provider.UserID})
	require.NoError(t, err)
	assert.Len(t, own, 2)

	queue, err := env.catalog.ListServices(ctx, admin, models.ServiceFilter{Status: models.ModerationPending})
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, pending.ID, queue[0].ID)
}

func TestPackages(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := env.approvedService(t, 999)

	_, err := env.catalog.AddPackage(ctx, provider2, svc.ID, PackageInput{Name: "Basic", Price: 499})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = env.catalog.AddPackage(ctx, provider, svc.ID, PackageInput{Name: "", Price: -1})
	assert.ErrorIs(t, err, domain.ErrValidationFailed)

	_, err = env.catalog.AddPackage(ctx, provider, svc.ID, PackageInput{Name: "Premium", Price: 1999})
	require.NoError(t, err)
	_, err = env.catalog.AddPackage(ctx, admin, svc.ID, PackageInput{Name: "Basic", Price: 499})
	require.NoError(t, err)

	packages, err := env.catalog.ListPackages(ctx, svc.ID)
	require.NoError(t, err)
	require.Len(t, packages, 2)
	assert.Equal(t, "Basic", packages[0].Name)

	_, err = env.catalog.ListPackages(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
