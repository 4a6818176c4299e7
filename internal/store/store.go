// Package store defines persistence for bookings, trips, drivers, users and
// notifications. Every status change goes through ApplyTransition, which is a
// single conditional write: it lands only while the booking is still in the
// expected status, so concurrent callers cannot both win.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/chachabrian/haulbook-backend/internal/models"
)

// ErrDuplicate is returned when a unique business key already exists.
var ErrDuplicate = errors.New("store: duplicate key")

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type Page struct {
	Page  int
	Limit int
}

// Normalize clamps the page to at least 1 and the limit to [1, MaxLimit].
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

func (p Page) Offset() int {
	p = p.Normalize()
	return (p.Page - 1) * p.Limit
}

type BookingFilter struct {
	CustomerID string
	DriverID   string
	Status     models.BookingStatus
	Page       Page
}

type BookingChanges struct {
	AssignDriverID *string
	ClearDriver    bool
	ActualFare     *float64
	CancelReason   string
	AssignedAt     *time.Time
	ArrivedAt      *time.Time
	PickedUpAt     *time.Time
	DeliveredAt    *time.Time
	CancelledAt    *time.Time
}

type TripChanges struct {
	// Ensure creates the trip, or rebinds the existing one to this driver and vehicle.
	Ensure    *models.Trip
	StartTime *time.Time
	EndTime   *time.Time
}

// Transition describes one conditional booking write. The trip status is
// always projected from To inside the same transaction.
type Transition struct {
	BookingID      string
	From           models.BookingStatus
	To             models.BookingStatus
	ExpectDriverID *string
	Booking        BookingChanges
	Trip           TripChanges
}

type BookingStore interface {
	CreateBooking(ctx context.Context, b *models.Booking) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	ListBookings(ctx context.Context, f BookingFilter) ([]models.Booking, int64, error)
	// ApplyTransition returns apperr.ErrBookingNotFound or apperr.ErrStateConflict
	// when the conditional write matches no row.
	ApplyTransition(ctx context.Context, t Transition) (*models.Booking, error)
	// MarkAccepted stamps acceptedAt once while the booking is DRIVER_ASSIGNED to driverID.
	MarkAccepted(ctx context.Context, bookingID, driverID string, at time.Time) (*models.Booking, error)
	GetTrip(ctx context.Context, bookingID string) (*models.Trip, error)
	UpdateTripPosition(ctx context.Context, bookingID string, lat, lon float64) error
}

type DriverStore interface {
	CreateDriverProfile(ctx context.Context, d *models.DriverProfile) error
	GetDriverProfile(ctx context.Context, id string) (*models.DriverProfile, error)
	GetDriverProfileByUser(ctx context.Context, userID string) (*models.DriverProfile, error)
	ListDriverProfiles(ctx context.Context, p Page) ([]models.DriverProfile, int64, error)
	SetDriverVerified(ctx context.Context, id string, verified bool) (*models.DriverProfile, error)
	SetDriverOnline(ctx context.Context, id string, online bool) (*models.DriverProfile, error)
	UpdateDriverPosition(ctx context.Context, id string, lat, lon float64, at time.Time) error

	CreateVehicle(ctx context.Context, v *models.Vehicle) error
	GetVehicle(ctx context.Context, id string) (*models.Vehicle, error)
	ListVehicles(ctx context.Context, driverProfileID string) ([]models.Vehicle, error)
	UpdateVehicleFlags(ctx context.Context, id string, verified, active *bool) (*models.Vehicle, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsersByRole(ctx context.Context, roles ...models.Role) ([]models.User, error)
	SetFCMToken(ctx context.Context, userID, token string) error
}

type NotificationStore interface {
	CreateNotifications(ctx context.Context, ns []models.Notification) error
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, p Page) ([]models.Notification, int64, error)
	MarkNotificationRead(ctx context.Context, userID, id string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error)
}

type Store interface {
	BookingStore
	DriverStore
	UserStore
	NotificationStore
	Ping(ctx context.Context) error
}
