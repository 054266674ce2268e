package service

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"homeservices/internal/database"
	"homeservices/internal/domain"
	"homeservices/internal/events"
	"homeservices/internal/models"
	"homeservices/internal/validator"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	admin     = domain.Actor{UserID: "admin-1", Role: models.RoleAdmin}
	provider  = domain.Actor{UserID: "provider-1", Role: models.RoleProvider}
	provider2 = domain.Actor{UserID: "provider-2", Role: models.RoleProvider}
	customer  = domain.Actor{UserID: "customer-1", Role: models.RoleCustomer}
	customer2 = domain.Actor{UserID: "customer-2", Role: models.RoleCustomer}
)

// fixedNow is a Wednesday morning; bookings in tests are made for the next days.
var fixedNow = time.Date(2026, 7, 1, 10, 0, 0, 0, time.Local)

type mockSyncWorker struct {
	mock.Mock
}

func (m *mockSyncWorker) EnqueueTask(ctx context.Context, taskType string, booking *models.Booking) error {
	return m.Called(ctx, taskType, booking).Error(0)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []events.BookingEventPayload
	types  []string
}

func (r *eventRecorder) handler(e *events.Event) error {
	var p events.BookingEventPayload
	if err := e.Decode(&p); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, p)
	r.types = append(r.types, e.Type)
	return nil
}

func (r *eventRecorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.types...)
}

type testEnv struct {
	db        *database.DB
	bus       *events.EventBus
	recorder  *eventRecorder
	sync      *mockSyncWorker
	bookings  *BookingService
	catalog   *CatalogService
	users     *UserService
	reviews   *ReviewService
	analytics *AnalyticsService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zerolog.New(io.Discard)

	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	bus := events.NewEventBus()
	recorder := &eventRecorder{}
	for _, et := range events.BookingEventTypes {
		bus.Subscribe(et, recorder.handler)
	}

	worker := new(mockSyncWorker)
	worker.On("EnqueueTask", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	env := &testEnv{
		db:        db,
		bus:       bus,
		recorder:  recorder,
		sync:      worker,
		bookings:  NewBookingService(db, bus, worker, validator.New(validator.DefaultRules()), 3, &logger),
		catalog:   NewCatalogService(db, &logger),
		users:     NewUserService(db, []string{"blocked-1"}, &logger),
		reviews:   NewReviewService(db, bus, &logger),
		analytics: NewAnalyticsService(db, &logger),
	}
	env.bookings.now = func() time.Time { return fixedNow }
	env.analytics.now = func() time.Time { return fixedNow }

	ctx := context.Background()
	for _, u := range []*models.User{
		{ID: admin.UserID, Role: models.RoleAdmin, FullName: "Admin", VerificationStatus: models.ModerationApproved},
		{ID: provider.UserID, Role: models.RoleProvider, FullName: "Ravi", VerificationStatus: models.ModerationApproved},
		{ID: provider2.UserID, Role: models.RoleProvider, FullName: "Meena", VerificationStatus: models.ModerationApproved},
		{ID: customer.UserID, Role: models.RoleCustomer, FullName: "Asha", VerificationStatus: models.ModerationApproved},
		{ID: customer2.UserID, Role: models.RoleCustomer, FullName: "Vikram", VerificationStatus: models.ModerationApproved},
	} {
		require.NoError(t, db.CreateUser(ctx, u))
	}
	return env
}

// approvedService creates a bookable service owned by provider-1.
func (e *testEnv) approvedService(t *testing.T, price float64) *models.Service {
	t.Helper()
	ctx := context.Background()

	category, err := e.catalog.UpsertCategory(ctx, admin, CategoryInput{ID: "cleaning", Name: "Cleaning"})
	require.NoError(t, err)

	svc, err := e.catalog.CreateService(ctx, provider, ServiceInput{
		CategoryID:      category.ID,
		Title:           "Deep Cleaning",
		Price:           price,
		DurationMinutes: 120,
	})
	require.NoError(t, err)

	svc, err = e.catalog.SetServiceModeration(ctx, admin, svc.ID, "approved")
	require.NoError(t, err)
	return svc
}

func bookingForm(serviceID, date, slot string) validator.BookingForm {
	return validator.BookingForm{
		ServiceID:       serviceID,
		ServiceDate:     date,
		ServiceTime:     slot,
		CustomerAddress: "221B Baker Street, Pune",
		CustomerPhone:   "+91 98765 43210",
	}
}
