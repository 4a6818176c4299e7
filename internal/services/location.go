package services

import (
	"context"
	"errors"
	"time"

	"github.com/chachabrian/haulbook-backend/internal/apperr"
	"github.com/chachabrian/haulbook-backend/internal/models"
	"github.com/chachabrian/haulbook-backend/internal/store"
	"github.com/chachabrian/haulbook-backend/pkg/logger"
	"github.com/chachabrian/haulbook-backend/pkg/utils"
)

// LocationUpdate is one accepted driver position, as cached and pushed.
type LocationUpdate struct {
	BookingID           string    `json:"bookingId"`
	DriverProfileID     string    `json:"driverId"`
	Latitude            float64   `json:"latitude"`
	Longitude           float64   `json:"longitude"`
	DistanceToDropoffKm float64   `json:"distanceToDropoffKm"`
	ETAMinutes          int       `json:"etaMinutes"`
	RecordedAt          time.Time `json:"recordedAt"`
}

// LocationCache is the live-position fan-out, typically Redis.
type LocationCache interface {
	SetDriverLocation(ctx context.Context, u LocationUpdate) error
	GetDriverLocation(ctx context.Context, driverProfileID string) (*LocationUpdate, error)
	PublishBookingLocation(ctx context.Context, u LocationUpdate) error
}

// LocationSink accepts driver positions for in-progress bookings. Positions
// are last-write-wins; nothing orders concurrent updates.
type LocationSink struct {
	store    store.Store
	cache    LocationCache
	realtime RealtimeSender
	log      logger.ILogger
	now      func() time.Time
}

func NewLocationSink(st store.Store, log logger.ILogger) *LocationSink {
	return &LocationSink{
		store: st,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (l *LocationSink) WithCache(c LocationCache) *LocationSink {
	l.cache = c
	return l
}

func (l *LocationSink) WithRealtime(r RealtimeSender) *LocationSink {
	l.realtime = r
	return l
}

func (l *LocationSink) Update(ctx context.Context, caller Caller, bookingID string, lat, lon float64) (*LocationUpdate, error) {
	if !utils.ValidCoordinates(lat, lon) {
		return nil, apperr.ErrInvalidCoordinates
	}
	if caller.Role != models.RoleDriver {
		return nil, apperr.Forbidden("only the assigned driver can report location")
	}

	profile, err := l.store.GetDriverProfileByUser(ctx, caller.UserID)
	if errors.Is(err, apperr.ErrDriverNotFound) {
		return nil, apperr.Forbidden("driver profile required")
	}
	if err != nil {
		return nil, err
	}

	b, err := l.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !b.AssignedTo(profile.ID) {
		return nil, apperr.Forbidden("booking is not assigned to you")
	}
	if b.Status != models.StatusInProgress {
		return nil, apperr.ErrNotInProgress
	}

	now := l.now()
	tripErr := l.store.UpdateTripPosition(ctx, b.ID, lat, lon)
	driverErr := l.store.UpdateDriverPosition(ctx, profile.ID, lat, lon, now)
	if tripErr != nil && driverErr != nil {
		return nil, apperr.Internal(errors.Join(tripErr, driverErr))
	}
	if err := errors.Join(tripErr, driverErr); err != nil {
		l.log.Warning("partial location write", logger.String("bookingId", b.ID), logger.Error(err))
	}

	remaining := utils.HaversineDistance(lat, lon, b.DropoffLatitude, b.DropoffLongitude)
	u := &LocationUpdate{
		BookingID:           b.ID,
		DriverProfileID:     profile.ID,
		Latitude:            lat,
		Longitude:           lon,
		DistanceToDropoffKm: remaining,
		ETAMinutes:          utils.CalculateETA(remaining, 0),
		RecordedAt:          now,
	}
	l.fanOut(ctx, b, u)
	return u, nil
}

func (l *LocationSink) fanOut(ctx context.Context, b *models.Booking, u *LocationUpdate) {
	if l.realtime != nil {
		l.realtime.SendToUser(b.CustomerID, "driver_location_update", u)
	}
	if l.cache == nil {
		return
	}
	if err := l.cache.SetDriverLocation(ctx, *u); err != nil {
		l.log.Warning("failed to cache driver location", logger.String("driverId", u.DriverProfileID), logger.Error(err))
	}
	if err := l.cache.PublishBookingLocation(ctx, *u); err != nil {
		l.log.Warning("failed to publish driver location", logger.String("bookingId", u.BookingID), logger.Error(err))
	}
}

// Latest returns the last accepted position for an in-progress booking. The
// cache answers first; the trip row is the fallback.
func (l *LocationSink) Latest(ctx context.Context, caller Caller, bookingID string) (*LocationUpdate, error) {
	b, err := l.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := l.canFollow(ctx, caller, b); err != nil {
		return nil, err
	}
	if b.Status != models.StatusInProgress || b.DriverID == nil {
		return nil, apperr.ErrNotInProgress
	}

	if l.cache != nil {
		u, err := l.cache.GetDriverLocation(ctx, *b.DriverID)
		if err == nil && u.BookingID == b.ID {
			return u, nil
		}
		if err != nil {
			l.log.Debug("location cache miss", logger.String("bookingId", b.ID), logger.Error(err))
		}
	}

	trip, err := l.store.GetTrip(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	if trip.EndLatitude == nil || trip.EndLongitude == nil {
		return nil, apperr.ErrLocationUnknown
	}
	lat, lon := *trip.EndLatitude, *trip.EndLongitude
	remaining := utils.HaversineDistance(lat, lon, b.DropoffLatitude, b.DropoffLongitude)
	return &LocationUpdate{
		BookingID:           b.ID,
		DriverProfileID:     *b.DriverID,
		Latitude:            lat,
		Longitude:           lon,
		DistanceToDropoffKm: remaining,
		ETAMinutes:          utils.CalculateETA(remaining, 0),
		RecordedAt:          trip.UpdatedAt,
	}, nil
}

func (l *LocationSink) canFollow(ctx context.Context, caller Caller, b *models.Booking) error {
	switch caller.Role {
	case models.RoleAdmin, models.RoleSuperAdmin:
		return nil
	case models.RoleCustomer:
		if b.CustomerID == caller.UserID {
			return nil
		}
	case models.RoleDriver:
		p, err := l.store.GetDriverProfileByUser(ctx, caller.UserID)
		if err == nil && b.AssignedTo(p.ID) {
			return nil
		}
	}
	return apperr.Forbidden("you do not have access to this booking")
}
