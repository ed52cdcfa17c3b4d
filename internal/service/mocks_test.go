package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fixitnow/internal/domain"
	"fixitnow/internal/redis"
	"fixitnow/internal/repository"
	"fixitnow/internal/repository/memory"
)

// ──────────────────────────────────────────────
// MOCK EMITTER
// ──────────────────────────────────────────────

type emitted struct {
	Channel string
	Event   domain.Event
}

// MockEmitter records every emitted event.
type MockEmitter struct {
	mu     sync.Mutex
	events []emitted

	EmitCallCount int32
	EmitError     error
}

func NewMockEmitter() *MockEmitter {
	return &MockEmitter{}
}

func (m *MockEmitter) Emit(ctx context.Context, channel string, event domain.Event) error {
	atomic.AddInt32(&m.EmitCallCount, 1)
	if m.EmitError != nil {
		return m.EmitError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, emitted{Channel: channel, Event: event})
	return nil
}

// EventsFor returns the event names delivered to a user, in order.
func (m *MockEmitter) EventsFor(userID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for _, e := range m.events {
		if e.Channel == domain.UserChannel(userID) {
			names = append(names, e.Event.Name)
		}
	}
	return names
}

// ──────────────────────────────────────────────
// MOCK CANDIDATE SELECTOR
// ──────────────────────────────────────────────

// MockSelector returns a fixed candidate list.
type MockSelector struct {
	IDs       []string
	Err       error
	CallCount int32
}

func (m *MockSelector) CandidateTechnicians(ctx context.Context, serviceType string, loc domain.Location) ([]string, error) {
	atomic.AddInt32(&m.CallCount, 1)
	if m.Err != nil {
		return nil, m.Err
	}
	return append([]string(nil), m.IDs...), nil
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore serializes callers per booking with in-process mutexes.
type MockLockStore struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex

	AcquireCallCount int32
	AcquireError     error
}

func NewMockLockStore() *MockLockStore {
	return &MockLockStore{locks: make(map[string]*sync.Mutex)}
}

func (m *MockLockStore) WithBookingLock(ctx context.Context, bookingID string, fn func(ctx context.Context) error) error {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	if m.AcquireError != nil {
		return m.AcquireError
	}

	m.mu.Lock()
	l, ok := m.locks[bookingID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[bookingID] = l
	}
	m.mu.Unlock()

	l.Lock()
	defer l.Unlock()
	return fn(ctx)
}

// ──────────────────────────────────────────────
// MOCK LOCATION STORE
// ──────────────────────────────────────────────

// MockLocationStore keeps positions in a map and returns them in insertion order.
type MockLocationStore struct {
	mu        sync.Mutex
	order     []string
	positions map[string]redis.TechnicianPosition

	UpdateCallCount int32
	FindError       error
}

func NewMockLocationStore() *MockLocationStore {
	return &MockLocationStore{positions: make(map[string]redis.TechnicianPosition)}
}

func (m *MockLocationStore) UpdateLocation(ctx context.Context, technicianID string, lat, lng float64) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.positions[technicianID]; !ok {
		m.order = append(m.order, technicianID)
	}
	m.positions[technicianID] = redis.TechnicianPosition{TechnicianID: technicianID, Lat: lat, Lng: lng}
	return nil
}

func (m *MockLocationStore) FindNearby(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]redis.TechnicianPosition, error) {
	if m.FindError != nil {
		return nil, m.FindError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []redis.TechnicianPosition
	for _, id := range m.order {
		p, ok := m.positions[id]
		if !ok {
			continue
		}
		if domain.DistanceKm(lat, lng, p.Lat, p.Lng) > radiusKm {
			continue
		}
		out = append(out, p)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MockLocationStore) RemoveLocation(ctx context.Context, technicianID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.positions, technicianID)
	return nil
}

// ──────────────────────────────────────────────
// FAULTY REPOSITORIES
// ──────────────────────────────────────────────

// ConflictingBookingRepository fails the next ConflictsLeft writes with ErrConflict,
// as if another writer got there first.
type ConflictingBookingRepository struct {
	*memory.BookingRepository

	ConflictsLeft int32
	WriteCount    int32
}

func (r *ConflictingBookingRepository) Update(ctx context.Context, b *domain.Booking, expectedVersion int64) error {
	atomic.AddInt32(&r.WriteCount, 1)
	if atomic.AddInt32(&r.ConflictsLeft, -1) >= 0 {
		return repository.ErrConflict
	}
	return r.BookingRepository.Update(ctx, b, expectedVersion)
}

// FailingNotificationRepository rejects every write.
type FailingNotificationRepository struct {
	Err error
}

func (r FailingNotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	return r.Err
}

func (r FailingNotificationRepository) ListByRecipient(ctx context.Context, recipientID string, limit int) ([]*domain.Notification, error) {
	return nil, r.Err
}

// ──────────────────────────────────────────────
// FIXTURE
// ──────────────────────────────────────────────

var fixtureStart = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

// fakeClock is a settable clock shared by the services under test.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	bookings      repository.BookingRepository
	users         *memory.UserRepository
	notifications *memory.NotificationRepository
	emitter       *MockEmitter
	selector      *MockSelector
	clock         *fakeClock
	service       *BookingService
}

var (
	customer    = domain.Actor{ID: "cust-1", Role: domain.RoleCustomer}
	otherCust   = domain.Actor{ID: "cust-2", Role: domain.RoleCustomer}
	admin       = domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}
	tech1       = domain.Actor{ID: "tech-1", Role: domain.RoleTechnician}
	tech2       = domain.Actor{ID: "tech-2", Role: domain.RoleTechnician}
	tech3       = domain.Actor{ID: "tech-3", Role: domain.RoleTechnician}
	outsider    = domain.Actor{ID: "tech-9", Role: domain.RoleTechnician}
	testLogger  = slog.New(slog.NewTextHandler(io.Discard, nil))
	broadcastTo = []string{tech1.ID, tech2.ID, tech3.ID}
)

type fixtureOption func(*fixture)

func withBookingRepository(r repository.BookingRepository) fixtureOption {
	return func(f *fixture) { f.bookings = r }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	f := &fixture{
		bookings:      memory.NewBookingRepository(),
		users:         memory.NewUserRepository(),
		notifications: memory.NewNotificationRepository(),
		emitter:       NewMockEmitter(),
		selector:      &MockSelector{IDs: broadcastTo},
		clock:         &fakeClock{now: fixtureStart},
	}
	for _, opt := range opts {
		opt(f)
	}

	ctx := context.Background()
	for _, id := range []string{tech1.ID, tech2.ID, tech3.ID, outsider.ID} {
		if err := f.users.Create(ctx, &domain.User{
			ID: id, Name: id, Role: domain.RoleTechnician, IsActive: true, ServiceTypes: []string{"plumbing"},
		}); err != nil {
			t.Fatalf("seed technician: %v", err)
		}
	}

	notifier := NewNotificationService(f.notifications, f.emitter, testLogger, time.Second)
	notifier.now = f.clock.Now
	f.service = f.newService(notifier, nil)
	return f
}

func (f *fixture) newService(notifier *NotificationService, locker redis.LockStoreInterface) *BookingService {
	svc := NewBookingService(
		f.bookings,
		NewDirectory(f.users, nil, testLogger),
		f.selector,
		notifier,
		locker,
		nil,
		testLogger,
		Settings{BroadcastTTL: 30 * time.Minute},
	)
	svc.now = f.clock.Now
	return svc
}

func validRequest() CreateBookingRequest {
	lat, lng := 40.7128, -74.0060
	return CreateBookingRequest{
		ServiceType: "plumbing",
		Description: "Kitchen sink is leaking",
		Date:        "2026-03-15",
		Time:        "10:00",
		Location:    LocationInput{Address: "1 Main St", Lat: &lat, Lng: &lng},
	}
}

func (f *fixture) createPrecision(t *testing.T) *domain.Booking {
	t.Helper()
	req := validRequest()
	req.TechnicianID = tech1.ID
	b, err := f.service.CreateBooking(context.Background(), customer, req)
	if err != nil {
		t.Fatalf("create precision booking: %v", err)
	}
	return b
}

func (f *fixture) createBroadcast(t *testing.T) *domain.Booking {
	t.Helper()
	b, err := f.service.CreateBooking(context.Background(), customer, validRequest())
	if err != nil {
		t.Fatalf("create broadcast booking: %v", err)
	}
	return b
}

func (f *fixture) stored(t *testing.T, id string) *domain.Booking {
	t.Helper()
	b, err := f.bookings.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("load booking %s: %v", id, err)
	}
	return b
}
