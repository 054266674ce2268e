package domain

import (
	"context"
	"time"

	"homeservices/internal/models"
)

// Actor is the verified caller supplied by the identity collaborator.
type Actor struct {
	UserID string
	Role   models.Role
}

func (a Actor) IsAdmin() bool    { return a.Role == models.RoleAdmin }
func (a Actor) IsProvider() bool { return a.Role == models.RoleProvider }
func (a Actor) IsCustomer() bool { return a.Role == models.RoleCustomer }

type BookingRepository interface {
	CreateBookingWithLock(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	CountActiveBookings(ctx context.Context, serviceID, date, slot string) (int, error)
	SaveBookingTransition(ctx context.Context, booking *models.Booking, from models.BookingStatus, version int64) error
	AssignBookingProvider(ctx context.Context, id string, version int64, providerID string) error
	UpdateBookingPayment(ctx context.Context, id string, version int64, status models.PaymentStatus) error
	ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error)
}

type CatalogRepository interface {
	CreateService(ctx context.Context, svc *models.Service) error
	GetService(ctx context.Context, id string) (*models.Service, error)
	UpdateService(ctx context.Context, svc *models.Service) error
	SetServiceModeration(ctx context.Context, id string, from, to models.ModerationStatus) error
	DeactivateService(ctx context.Context, id string) error
	ListServices(ctx context.Context, filter models.ServiceFilter) ([]*models.Service, error)
	UpdateServiceRating(ctx context.Context, id string, rating float64, count int) error
	CreatePackage(ctx context.Context, pkg *models.Package) error
	GetPackagesByService(ctx context.Context, serviceID string) ([]*models.Package, error)
	UpsertCategory(ctx context.Context, category *models.Category) error
	GetCategory(ctx context.Context, id string) (*models.Category, error)
	GetActiveCategories(ctx context.Context) ([]*models.Category, error)
	DeactivateCategory(ctx context.Context, id string) error
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context, role models.Role) ([]*models.User, error)
	SetUserVerification(ctx context.Context, id string, from, to models.ModerationStatus) error
}

type ReviewRepository interface {
	CreateReview(ctx context.Context, review *models.Review) error
	GetReviewsByService(ctx context.Context, serviceID string) ([]*models.Review, error)
	ListReviews(ctx context.Context) ([]*models.Review, error)
}

// Repository is the full store implemented by the SQLite database.
type Repository interface {
	BookingRepository
	CatalogRepository
	UserRepository
	ReviewRepository
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// Notifier delivers a templated message to a user. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, userID, templateKey string, data map[string]string) error
}

type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType string, booking *models.Booking) error
}

// IdempotencyStore remembers mutating requests by client-supplied key.
type IdempotencyStore interface {
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Complete(ctx context.Context, key string, record *models.IdempotencyRecord, ttl time.Duration) error
	Get(ctx context.Context, key string) (*models.IdempotencyRecord, error)
	Release(ctx context.Context, key string) error
}
