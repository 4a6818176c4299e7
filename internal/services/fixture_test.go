package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chachabrian/haulbook-backend/internal/models"
	"github.com/chachabrian/haulbook-backend/internal/store"
	"github.com/chachabrian/haulbook-backend/internal/store/memstore"
	"github.com/chachabrian/haulbook-backend/pkg/logger"
)

var storePageAll = store.Page{Page: 1, Limit: store.MaxLimit}

type statusEvent struct {
	bookingID    string
	from         models.BookingStatus
	to           models.BookingStatus
	driverUserID string
}

type fakeNotifier struct {
	mu      sync.Mutex
	created []string
	changes []statusEvent
	support []SupportRequest
}

func (f *fakeNotifier) BookingCreated(_ context.Context, b *models.Booking) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, b.ID)
}

func (f *fakeNotifier) StatusChanged(_ context.Context, b *models.Booking, from models.BookingStatus, driverUserID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changes = append(f.changes, statusEvent{bookingID: b.ID, from: from, to: b.Status, driverUserID: driverUserID})
}

func (f *fakeNotifier) SupportRequest(_ context.Context, req SupportRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.support = append(f.support, req)
}

func (f *fakeNotifier) statuses() []models.BookingStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.BookingStatus, 0, len(f.changes))
	for _, c := range f.changes {
		out = append(out, c.to)
	}
	return out
}

type driverFixture struct {
	caller  Caller
	profile *models.DriverProfile
	vehicle *models.Vehicle
}

type fixture struct {
	ctx      context.Context
	store    *memstore.Store
	notifier *fakeNotifier
	bookings *BookingService
	assigner *AssignmentCoordinator
	location *LocationSink
	customer Caller
	admin    Caller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memstore.New()
	n := &fakeNotifier{}
	log := logger.NewNop()
	f := &fixture{
		ctx:      context.Background(),
		store:    st,
		notifier: n,
		bookings: NewBookingService(st, n, log),
		assigner: NewAssignmentCoordinator(st, n, log),
		location: NewLocationSink(st, log),
	}
	f.customer = f.user(t, models.RoleCustomer)
	f.admin = f.user(t, models.RoleAdmin)
	return f
}

func (f *fixture) user(t *testing.T, role models.Role) Caller {
	t.Helper()
	u := &models.User{Name: string(role), Email: models.NewID() + "@haulbook.local", Role: role, IsActive: true}
	require.NoError(t, f.store.CreateUser(f.ctx, u))
	return Caller{UserID: u.ID, Role: role}
}

// driver creates a driver user with a profile and, when vehicle is true, one
// active verified truck.
func (f *fixture) driver(t *testing.T, vehicle bool) driverFixture {
	t.Helper()
	caller := f.user(t, models.RoleDriver)
	p := &models.DriverProfile{UserID: caller.UserID, LicenseNumber: "DL-" + caller.UserID[:8]}
	require.NoError(t, f.store.CreateDriverProfile(f.ctx, p))

	d := driverFixture{caller: caller, profile: p}
	if vehicle {
		d.vehicle = f.vehicle(t, p.ID, "TRUCK", true, true)
	}
	return d
}

func (f *fixture) vehicle(t *testing.T, driverProfileID, vehicleType string, active, verified bool) *models.Vehicle {
	t.Helper()
	v := &models.Vehicle{
		DriverProfileID: driverProfileID,
		VehicleNumber:   "KA" + models.NewID()[:8],
		VehicleType:     vehicleType,
		IsActive:        active,
		IsVerified:      verified,
	}
	require.NoError(t, f.store.CreateVehicle(f.ctx, v))
	return v
}

func coord(v float64) *float64 { return &v }

func (f *fixture) booking(t *testing.T) *models.Booking {
	t.Helper()
	b, err := f.bookings.Create(f.ctx, f.customer, CreateBookingInput{
		PickupAddress:    "Indiranagar, Bengaluru",
		PickupLatitude:   coord(12.9784),
		PickupLongitude:  coord(77.6408),
		DropoffAddress:   "Whitefield, Bengaluru",
		DropoffLatitude:  coord(12.9698),
		DropoffLongitude: coord(77.7500),
		PickupTime:       time.Now().Add(2 * time.Hour),
		ServiceType:      models.ServiceTruck,
	})
	require.NoError(t, err)
	return b
}

func (f *fixture) assign(t *testing.T, b *models.Booking, d driverFixture) *models.Booking {
	t.Helper()
	got, err := f.assigner.Assign(f.ctx, f.admin, AssignInput{BookingID: b.ID, DriverID: d.profile.ID})
	require.NoError(t, err)
	return got
}

// requireDriverBinding checks driverId is set exactly for the driver-bound statuses.
func (f *fixture) requireDriverBinding(t *testing.T) {
	t.Helper()
	all, _, err := f.bookings.List(f.ctx, f.admin, "", storePageAll)
	require.NoError(t, err)
	for _, b := range all {
		require.Equal(t, b.Status.HasDriver(), b.DriverID != nil, "booking %s in %s", b.BookingNumber, b.Status)
	}
}
