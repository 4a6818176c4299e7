// Package memstore is an in-process store.Store. It keeps the conditional
// write semantics of the relational store and is used by tests and by
// STORAGE=memory deployments.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chachabrian/haulbook-backend/internal/apperr"
	"github.com/chachabrian/haulbook-backend/internal/models"
	"github.com/chachabrian/haulbook-backend/internal/store"
)

type Store struct {
	mu sync.RWMutex

	bookings      map[string]models.Booking
	trips         map[string]models.Trip // keyed by booking id
	drivers       map[string]models.DriverProfile
	vehicles      map[string]models.Vehicle
	users         map[string]models.User
	notifications map[string]models.Notification
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		bookings:      make(map[string]models.Booking),
		trips:         make(map[string]models.Trip),
		drivers:       make(map[string]models.DriverProfile),
		vehicles:      make(map[string]models.Vehicle),
		users:         make(map[string]models.User),
		notifications: make(map[string]models.Notification),
	}
}

func (s *Store) Ping(context.Context) error { return nil }

func now() time.Time { return time.Now().UTC() }

func timePtr(t time.Time) *time.Time { return &t }

func page[T any](items []T, p store.Page) []T {
	p = p.Normalize()
	start := p.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + p.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// Bookings

func (s *Store) CreateBooking(_ context.Context, b *models.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b.Prepare()
	if _, ok := s.bookings[b.ID]; ok {
		return store.ErrDuplicate
	}
	for _, existing := range s.bookings {
		if existing.BookingNumber == b.BookingNumber {
			return store.ErrDuplicate
		}
	}
	t := now()
	b.CreatedAt, b.UpdatedAt = t, t
	s.bookings[b.ID] = *b
	return nil
}

func (s *Store) GetBooking(_ context.Context, id string) (*models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bookings[id]
	if !ok {
		return nil, apperr.ErrBookingNotFound
	}
	return &b, nil
}

func (s *Store) ListBookings(_ context.Context, f store.BookingFilter) ([]models.Booking, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Booking
	for _, b := range s.bookings {
		if f.CustomerID != "" && b.CustomerID != f.CustomerID {
			continue
		}
		if f.DriverID != "" && !b.AssignedTo(f.DriverID) {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, f.Page), int64(len(out)), nil
}

func (s *Store) ApplyTransition(_ context.Context, t store.Transition) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[t.BookingID]
	if !ok {
		return nil, apperr.ErrBookingNotFound
	}
	if b.Status != t.From {
		return nil, apperr.ErrStateConflict
	}
	if t.ExpectDriverID != nil && !b.AssignedTo(*t.ExpectDriverID) {
		return nil, apperr.ErrStateConflict
	}

	at := now()
	c := t.Booking
	b.Status = t.To
	b.UpdatedAt = at
	if c.AssignDriverID != nil {
		id := *c.AssignDriverID
		b.DriverID = &id
		b.AcceptedAt = nil
	}
	if c.ClearDriver {
		b.DriverID = nil
		b.AcceptedAt = nil
	}
	if c.ActualFare != nil {
		fare := *c.ActualFare
		b.ActualFare = &fare
	}
	if c.CancelReason != "" {
		b.CancelReason = c.CancelReason
	}
	if c.AssignedAt != nil {
		b.AssignedAt = timePtr(*c.AssignedAt)
	}
	if c.ArrivedAt != nil {
		b.ArrivedAt = timePtr(*c.ArrivedAt)
	}
	if c.PickedUpAt != nil {
		b.PickedUpAt = timePtr(*c.PickedUpAt)
	}
	if c.DeliveredAt != nil {
		b.DeliveredAt = timePtr(*c.DeliveredAt)
	}
	if c.CancelledAt != nil {
		b.CancelledAt = timePtr(*c.CancelledAt)
	}

	s.applyTrip(t, at)
	s.bookings[b.ID] = b
	return &b, nil
}

func (s *Store) applyTrip(t store.Transition, at time.Time) {
	status, projected := models.TripStatusFor(t.To)

	if ensure := t.Trip.Ensure; ensure != nil {
		trip, exists := s.trips[t.BookingID]
		if !exists {
			trip = *ensure
			trip.Prepare()
			trip.CreatedAt = at
		}
		trip.BookingID = t.BookingID
		trip.DriverProfileID = ensure.DriverProfileID
		trip.VehicleID = ensure.VehicleID
		trip.StartTime = t.Trip.StartTime
		trip.EndTime = nil
		trip.EndLatitude = nil
		trip.EndLongitude = nil
		trip.UpdatedAt = at
		s.trips[t.BookingID] = trip
		*ensure = trip
	}

	trip, exists := s.trips[t.BookingID]
	if !exists || !projected {
		return
	}
	trip.Status = status
	if t.Trip.StartTime != nil {
		trip.StartTime = timePtr(*t.Trip.StartTime)
	}
	if t.Trip.EndTime != nil {
		trip.EndTime = timePtr(*t.Trip.EndTime)
	}
	trip.UpdatedAt = at
	s.trips[t.BookingID] = trip
}

func (s *Store) MarkAccepted(_ context.Context, bookingID, driverID string, at time.Time) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[bookingID]
	if !ok {
		return nil, apperr.ErrBookingNotFound
	}
	if b.Status != models.StatusDriverAssigned || !b.AssignedTo(driverID) {
		return nil, apperr.ErrStateConflict
	}
	if b.AcceptedAt == nil {
		b.AcceptedAt = timePtr(at)
		b.UpdatedAt = at
		s.bookings[bookingID] = b
	}
	return &b, nil
}

func (s *Store) GetTrip(_ context.Context, bookingID string) (*models.Trip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.trips[bookingID]
	if !ok {
		return nil, apperr.ErrTripNotFound
	}
	return &t, nil
}

func (s *Store) UpdateTripPosition(_ context.Context, bookingID string, lat, lon float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.trips[bookingID]
	if !ok {
		return apperr.ErrTripNotFound
	}
	t.EndLatitude = &lat
	t.EndLongitude = &lon
	t.UpdatedAt = now()
	s.trips[bookingID] = t
	return nil
}

// Drivers and vehicles

func (s *Store) withRelations(d models.DriverProfile) models.DriverProfile {
	d.Vehicles = s.vehiclesOf(d.ID)
	if u, ok := s.users[d.UserID]; ok {
		d.User = &u
	}
	return d
}

func (s *Store) vehiclesOf(driverProfileID string) []models.Vehicle {
	var out []models.Vehicle
	for _, v := range s.vehicles {
		if v.DriverProfileID == driverProfileID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *Store) CreateDriverProfile(_ context.Context, d *models.DriverProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.drivers {
		if existing.UserID == d.UserID {
			return apperr.ErrDriverProfileExists
		}
	}
	d.Prepare()
	t := now()
	d.CreatedAt, d.UpdatedAt = t, t
	stored := *d
	stored.User = nil
	stored.Vehicles = nil
	s.drivers[d.ID] = stored
	return nil
}

func (s *Store) GetDriverProfile(_ context.Context, id string) (*models.DriverProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.drivers[id]
	if !ok {
		return nil, apperr.ErrDriverNotFound
	}
	d = s.withRelations(d)
	d.User = nil
	return &d, nil
}

func (s *Store) GetDriverProfileByUser(ctx context.Context, userID string) (*models.DriverProfile, error) {
	s.mu.RLock()
	var id string
	for _, d := range s.drivers {
		if d.UserID == userID {
			id = d.ID
			break
		}
	}
	s.mu.RUnlock()

	if id == "" {
		return nil, apperr.ErrDriverNotFound
	}
	return s.GetDriverProfile(ctx, id)
}

func (s *Store) ListDriverProfiles(_ context.Context, p store.Page) ([]models.DriverProfile, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.DriverProfile, 0, len(s.drivers))
	for _, d := range s.drivers {
		out = append(out, s.withRelations(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, p), int64(len(out)), nil
}

func (s *Store) updateDriver(ctx context.Context, id string, fn func(*models.DriverProfile)) (*models.DriverProfile, error) {
	s.mu.Lock()
	d, ok := s.drivers[id]
	if ok {
		fn(&d)
		d.UpdatedAt = now()
		s.drivers[id] = d
	}
	s.mu.Unlock()

	if !ok {
		return nil, apperr.ErrDriverNotFound
	}
	return s.GetDriverProfile(ctx, id)
}

func (s *Store) SetDriverVerified(ctx context.Context, id string, verified bool) (*models.DriverProfile, error) {
	return s.updateDriver(ctx, id, func(d *models.DriverProfile) { d.IsVerified = verified })
}

func (s *Store) SetDriverOnline(ctx context.Context, id string, online bool) (*models.DriverProfile, error) {
	return s.updateDriver(ctx, id, func(d *models.DriverProfile) { d.IsOnline = online })
}

func (s *Store) UpdateDriverPosition(ctx context.Context, id string, lat, lon float64, at time.Time) error {
	_, err := s.updateDriver(ctx, id, func(d *models.DriverProfile) {
		d.CurrentLatitude = &lat
		d.CurrentLongitude = &lon
		d.LastLocationUpdate = timePtr(at)
	})
	return err
}

func (s *Store) CreateVehicle(_ context.Context, v *models.Vehicle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.vehicles {
		if strings.EqualFold(existing.VehicleNumber, v.VehicleNumber) {
			return apperr.ErrVehicleNumberTaken
		}
	}
	v.Prepare()
	t := now()
	v.CreatedAt, v.UpdatedAt = t, t
	s.vehicles[v.ID] = *v
	return nil
}

func (s *Store) GetVehicle(_ context.Context, id string) (*models.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.vehicles[id]
	if !ok {
		return nil, apperr.ErrVehicleNotFound
	}
	return &v, nil
}

func (s *Store) ListVehicles(_ context.Context, driverProfileID string) ([]models.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vehiclesOf(driverProfileID), nil
}

func (s *Store) UpdateVehicleFlags(_ context.Context, id string, verified, active *bool) (*models.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vehicles[id]
	if !ok {
		return nil, apperr.ErrVehicleNotFound
	}
	if verified != nil {
		v.IsVerified = *verified
	}
	if active != nil {
		v.IsActive = *active
	}
	v.UpdatedAt = now()
	s.vehicles[id] = v
	return &v, nil
}

// Users

func (s *Store) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return apperr.ErrEmailTaken
		}
	}
	u.Prepare()
	t := now()
	u.CreatedAt, u.UpdatedAt = t, t
	s.users[u.ID] = *u
	return nil
}

func (s *Store) GetUser(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, apperr.ErrUserNotFound
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, apperr.ErrUserNotFound
}

func (s *Store) ListUsersByRole(_ context.Context, roles ...models.Role) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.User
	for _, u := range s.users {
		if !u.IsActive {
			continue
		}
		for _, r := range roles {
			if u.Role == r {
				out = append(out, u)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (s *Store) SetFCMToken(_ context.Context, userID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return apperr.ErrUserNotFound
	}
	u.FCMToken = token
	u.UpdatedAt = now()
	s.users[userID] = u
	return nil
}

// Notifications

func (s *Store) CreateNotifications(_ context.Context, ns []models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := now()
	for i := range ns {
		ns[i].Prepare()
		ns[i].CreatedAt = t
		s.notifications[ns[i].ID] = ns[i]
	}
	return nil
}

func (s *Store) ListNotifications(_ context.Context, userID string, unreadOnly bool, p store.Page) ([]models.Notification, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Notification
	for _, n := range s.notifications {
		if n.UserID != userID || (unreadOnly && n.IsRead) {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, p), int64(len(out)), nil
}

func (s *Store) MarkNotificationRead(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok || n.UserID != userID {
		return apperr.ErrNotificationMissing
	}
	n.IsRead = true
	s.notifications[id] = n
	return nil
}

func (s *Store) MarkAllNotificationsRead(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, note := range s.notifications {
		if note.UserID == userID && !note.IsRead {
			note.IsRead = true
			s.notifications[id] = note
			n++
		}
	}
	return n, nil
}
