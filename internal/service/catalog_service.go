package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"homeservices/internal/domain"
	"homeservices/internal/models"
	"homeservices/internal/validator"

	"github.com/rs/zerolog"
)

// ServiceInput is the provider-editable part of a service listing.
type ServiceInput struct {
	CategoryID      string  `json:"category_id" validate:"required"`
	Title           string  `json:"title" validate:"required,max=120"`
	Description     string  `json:"description" validate:"max=2000"`
	Price           float64 `json:"price" validate:"gt=0"`
	DurationMinutes int     `json:"duration_minutes" validate:"gt=0,lte=1440"`
	ImageURL        string  `json:"image_url" validate:"omitempty,url"`
	// ProviderID is only honoured when an admin creates a listing on behalf of a provider.
	ProviderID string `json:"provider_id,omitempty"`
}

type PackageInput struct {
	Name        string  `json:"name" validate:"required,max=80"`
	Description string  `json:"description" validate:"max=500"`
	Price       float64 `json:"price" validate:"gt=0"`
}

type CategoryInput struct {
	ID          string `json:"id"`
	Name        string `json:"name" validate:"required,max=80"`
	Description string `json:"description" validate:"max=500"`
	SortOrder   int64  `json:"sort_order" validate:"gte=0"`
}

type CatalogService struct {
	repo          domain.Repository
	logger        *zerolog.Logger
	categories    []*models.Category
	categoriesMap map[string]*models.Category
	loaded        bool
	mu            sync.RWMutex
}

func NewCatalogService(repo domain.Repository, logger *zerolog.Logger) *CatalogService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &CatalogService{
		repo:          repo,
		logger:        logger,
		categoriesMap: make(map[string]*models.Category),
	}
}

// Categories

func (s *CatalogService) GetActiveCategories(ctx context.Context) ([]*models.Category, error) {
	s.mu.RLock()
	loaded := s.loaded
	categories := s.categories
	s.mu.RUnlock()

	if !loaded {
		if err := s.Refresh(ctx); err != nil {
			return nil, err
		}
		s.mu.RLock()
		categories = s.categories
		s.mu.RUnlock()
	}
	return categories, nil
}

func (s *CatalogService) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	if _, err := s.GetActiveCategories(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	category, ok := s.categoriesMap[id]
	if !ok {
		return nil, fmt.Errorf("category %s: %w", id, domain.ErrNotFound)
	}
	return category, nil
}

func (s *CatalogService) UpsertCategory(ctx context.Context, actor domain.Actor, in CategoryInput) (*models.Category, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	if verr := validator.Struct(in); verr != nil {
		return nil, verr
	}

	category := &models.Category{
		ID:          strings.TrimSpace(in.ID),
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		SortOrder:   in.SortOrder,
	}
	if err := s.repo.UpsertCategory(ctx, category); err != nil {
		return nil, err
	}
	s.logger.Info().Str("category_id", category.ID).Str("name", category.Name).Msg("category saved")
	return category, s.Refresh(ctx)
}

// DeleteCategory soft-deletes a category that no active service uses.
func (s *CatalogService) DeleteCategory(ctx context.Context, actor domain.Actor, id string) error {
	if !actor.IsAdmin() {
		return domain.ErrForbidden
	}
	if err := s.repo.DeactivateCategory(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("category_id", id).Msg("category deactivated")
	return s.Refresh(ctx)
}

// SeedCategories upserts the startup catalog.
func (s *CatalogService) SeedCategories(ctx context.Context, categories []*models.Category) error {
	for _, c := range categories {
		if err := s.repo.UpsertCategory(ctx, c); err != nil {
			return fmt.Errorf("seed category %q: %w", c.Name, err)
		}
	}
	return s.Refresh(ctx)
}

func (s *CatalogService) Refresh(ctx context.Context) error {
	categories, err := s.repo.GetActiveCategories(ctx)
	if err != nil {
		return err
	}
	sort.SliceStable(categories, func(i, j int) bool {
		if categories[i].SortOrder != categories[j].SortOrder {
			return categories[i].SortOrder < categories[j].SortOrder
		}
		return categories[i].Name < categories[j].Name
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories = categories
	s.categoriesMap = make(map[string]*models.Category, len(categories))
	for _, c := range categories {
		s.categoriesMap[c.ID] = c
	}
	s.loaded = true
	return nil
}

// Services

// CreateService stores a new listing in pending moderation.
func (s *CatalogService) CreateService(ctx context.Context, actor domain.Actor, in ServiceInput) (*models.Service, error) {
	providerID := actor.UserID
	switch {
	case actor.IsAdmin():
		if in.ProviderID == "" {
			return nil, domain.FieldError("provider_id", "is required")
		}
		providerID = in.ProviderID
	case actor.IsProvider():
	default:
		return nil, domain.ErrForbidden
	}

	if err := s.checkProvider(ctx, providerID); err != nil {
		return nil, err
	}
	if err := s.checkServiceInput(ctx, in); err != nil {
		return nil, err
	}

	svc := &models.Service{
		ProviderID:       providerID,
		CategoryID:       in.CategoryID,
		Title:            strings.TrimSpace(in.Title),
		Description:      in.Description,
		Price:            in.Price,
		DurationMinutes:  in.DurationMinutes,
		ImageURL:         in.ImageURL,
		ModerationStatus: models.ModerationPending,
	}
	if err := s.repo.CreateService(ctx, svc); err != nil {
		return nil, err
	}
	s.logger.Info().Str("service_id", svc.ID).Str("provider_id", providerID).Msg("service submitted for moderation")
	return svc, nil
}

// ResubmitService replaces the listing fields and starts a new moderation round.
func (s *CatalogService) ResubmitService(ctx context.Context, actor domain.Actor, id string, in ServiceInput) (*models.Service, error) {
	svc, err := s.repo.GetService(ctx, id)
	if err != nil {
		return nil, err
	}
	if !svc.IsActive {
		return nil, fmt.Errorf("service %s: %w", id, domain.ErrNotFound)
	}
	if !actor.IsProvider() || svc.ProviderID != actor.UserID {
		return nil, domain.ErrForbidden
	}
	if err := s.checkServiceInput(ctx, in); err != nil {
		return nil, err
	}

	svc.CategoryID = in.CategoryID
	svc.Title = strings.TrimSpace(in.Title)
	svc.Description = in.Description
	svc.Price = in.Price
	svc.DurationMinutes = in.DurationMinutes
	svc.ImageURL = in.ImageURL
	svc.ModerationStatus = models.ModerationPending

	if err := s.repo.UpdateService(ctx, svc); err != nil {
		return nil, err
	}
	return svc, nil
}

// SetServiceModeration applies an admin decision to a pending service.
func (s *CatalogService) SetServiceModeration(ctx context.Context, actor domain.Actor, id, rawDecision string) (*models.Service, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	decision, ok := models.ParseModerationStatus(rawDecision)
	if !ok || decision == models.ModerationPending {
		return nil, domain.FieldError("decision", "must be approved or rejected")
	}

	svc, err := s.repo.GetService(ctx, id)
	if err != nil {
		return nil, err
	}
	if !svc.ModerationStatus.CanModerateTo(decision) {
		return nil, fmt.Errorf("service %s is %s: %w", id, svc.ModerationStatus, domain.ErrInvalidTransition)
	}
	if err := s.repo.SetServiceModeration(ctx, id, svc.ModerationStatus, decision); err != nil {
		return nil, err
	}

	svc.ModerationStatus = decision
	s.logger.Info().Str("service_id", id).Str("decision", string(decision)).Str("admin", actor.UserID).Msg("service moderated")
	return svc, nil
}

// DeleteService is a soft delete by the owner or an admin.
func (s *CatalogService) DeleteService(ctx context.Context, actor domain.Actor, id string) error {
	svc, err := s.repo.GetService(ctx, id)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() && !(actor.IsProvider() && svc.ProviderID == actor.UserID) {
		return domain.ErrForbidden
	}
	return s.repo.DeactivateService(ctx, id)
}

// GetService hides unpublished listings from everyone but their owner and admins.
func (s *CatalogService) GetService(ctx context.Context, actor domain.Actor, id string) (*models.Service, error) {
	svc, err := s.repo.GetService(ctx, id)
	if err != nil {
		return nil, err
	}
	if svc.IsBookable() || actor.IsAdmin() || (actor.IsProvider() && svc.ProviderID == actor.UserID) {
		return svc, nil
	}
	return nil, fmt.Errorf("service %s: %w", id, domain.ErrNotFound)
}

func (s *CatalogService) ListServices(ctx context.Context, actor domain.Actor, filter models.ServiceFilter) ([]*models.Service, error) {
	ownListing := actor.IsProvider() && filter.ProviderID == actor.UserID
	if !actor.IsAdmin() && !ownListing {
		filter.OnlyBookable = true
		filter.Status = ""
	}
	return s.repo.ListServices(ctx, filter)
}

// Packages

func (s *CatalogService) AddPackage(ctx context.Context, actor domain.Actor, serviceID string, in PackageInput) (*models.Package, error) {
	svc, err := s.repo.GetService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !(actor.IsProvider() && svc.ProviderID == actor.UserID) {
		return nil, domain.ErrForbidden
	}
	if verr := validator.Struct(in); verr != nil {
		return nil, verr
	}

	pkg := &models.Package{
		ServiceID:   serviceID,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Price:       in.Price,
	}
	if err := s.repo.CreatePackage(ctx, pkg); err != nil {
		return nil, err
	}
	return pkg, nil
}

func (s *CatalogService) ListPackages(ctx context.Context, serviceID string) ([]*models.Package, error) {
	if _, err := s.repo.GetService(ctx, serviceID); err != nil {
		return nil, err
	}
	return s.repo.GetPackagesByService(ctx, serviceID)
}

func (s *CatalogService) checkServiceInput(ctx context.Context, in ServiceInput) error {
	verr := validator.Struct(in)
	if verr == nil {
		verr = domain.NewValidationError()
	}
	if in.CategoryID != "" {
		if _, err := s.GetCategory(ctx, in.CategoryID); errors.Is(err, domain.ErrNotFound) {
			verr.Add("category_id", "unknown or inactive category")
		} else if err != nil {
			return err
		}
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}

func (s *CatalogService) checkProvider(ctx context.Context, providerID string) error {
	provider, err := s.repo.GetUser(ctx, providerID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.FieldError("provider_id", "unknown provider")
	}
	if err != nil {
		return err
	}
	if provider.Role != models.RoleProvider {
		return domain.FieldError("provider_id", "user is not a provider")
	}
	if !provider.IsVerified() {
		return fmt.Errorf("provider %s is not verified: %w", providerID, domain.ErrForbidden)
	}
	return nil
}
