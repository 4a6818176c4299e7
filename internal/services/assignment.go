package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/chachabrian/haulbook-backend/internal/apperr"
	"github.com/chachabrian/haulbook-backend/internal/lifecycle"
	"github.com/chachabrian/haulbook-backend/internal/models"
	"github.com/chachabrian/haulbook-backend/internal/store"
	"github.com/chachabrian/haulbook-backend/pkg/logger"
)

type AssignInput struct {
	BookingID string `json:"bookingId" binding:"required"`
	// DriverID is a driver profile id. A driver's user id is accepted too.
	DriverID  string `json:"driverId" binding:"required"`
	VehicleID string `json:"vehicleId"`
}

// AssignmentCoordinator binds one driver and vehicle to a pending booking.
// The booking update and the trip upsert are a single store transition, so
// either both land or neither does.
type AssignmentCoordinator struct {
	store    store.Store
	notifier Notifier
	log      logger.ILogger
	now      func() time.Time
}

func NewAssignmentCoordinator(st store.Store, notifier Notifier, log logger.ILogger) *AssignmentCoordinator {
	return &AssignmentCoordinator{
		store:    st,
		notifier: notifier,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (a *AssignmentCoordinator) Assign(ctx context.Context, caller Caller, in AssignInput) (*models.Booking, error) {
	actor := lifecycle.Actor{Role: caller.Role}
	if !caller.Role.IsAdmin() {
		return nil, apperr.Forbidden("admin role required")
	}

	b, err := a.store.GetBooking(ctx, in.BookingID)
	if err != nil {
		return nil, err
	}

	d := lifecycle.Decide(b.Status, models.StatusDriverAssigned, actor)
	if d.Err != nil {
		return nil, d.Err
	}

	driver, err := a.resolveDriver(ctx, in.DriverID)
	if d.Outcome == lifecycle.NoOp {
		// Already assigned: repeating the same assignment is a no-op.
		if err == nil && b.AssignedTo(driver.ID) {
			return b, nil
		}
		return nil, apperr.ErrBookingAssigned
	}
	if err != nil {
		return nil, err
	}

	vehicles, err := a.store.ListVehicles(ctx, driver.ID)
	if err != nil {
		return nil, err
	}
	vehicle, err := pickVehicle(vehicles, b.VehicleType, in.VehicleID)
	if err != nil {
		return nil, err
	}

	now := a.now()
	updated, err := a.store.ApplyTransition(ctx, store.Transition{
		BookingID: b.ID,
		From:      models.StatusPending,
		To:        models.StatusDriverAssigned,
		Booking: store.BookingChanges{
			AssignDriverID: &driver.ID,
			AssignedAt:     &now,
		},
		Trip: store.TripChanges{
			Ensure: &models.Trip{DriverProfileID: driver.ID, VehicleID: vehicle.ID},
		},
	})
	if errors.Is(err, apperr.ErrStateConflict) {
		return nil, a.lostRace(ctx, b.ID)
	}
	if err != nil {
		return nil, err
	}

	a.log.Info("driver assigned",
		logger.String("bookingId", b.ID),
		logger.String("driverId", driver.ID),
		logger.String("vehicleId", vehicle.ID))

	if d.Has(lifecycle.EffectNotify) {
		a.notifier.StatusChanged(ctx, updated, d.From, driver.UserID)
	}
	return updated, nil
}

func (a *AssignmentCoordinator) resolveDriver(ctx context.Context, id string) (*models.DriverProfile, error) {
	p, err := a.store.GetDriverProfile(ctx, id)
	if errors.Is(err, apperr.ErrDriverNotFound) {
		return a.store.GetDriverProfileByUser(ctx, id)
	}
	return p, err
}

// lostRace reports why the conditional write matched nothing.
func (a *AssignmentCoordinator) lostRace(ctx context.Context, bookingID string) error {
	current, err := a.store.GetBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	if current.DriverID != nil {
		return apperr.ErrBookingAssigned
	}
	return apperr.ErrStateConflict
}

// pickVehicle returns the requested vehicle if it is usable, otherwise the
// first assignable vehicle matching the type hint, otherwise any assignable one.
func pickVehicle(vehicles []models.Vehicle, typeHint, vehicleID string) (*models.Vehicle, error) {
	if vehicleID != "" {
		for i := range vehicles {
			if vehicles[i].ID != vehicleID {
				continue
			}
			if !vehicles[i].Assignable() {
				return nil, apperr.ErrNoActiveVehicle
			}
			return &vehicles[i], nil
		}
		return nil, apperr.ErrVehicleNotFound
	}

	var fallback *models.Vehicle
	for i := range vehicles {
		v := &vehicles[i]
		if !v.Assignable() {
			continue
		}
		if typeHint != "" && strings.EqualFold(v.VehicleType, typeHint) {
			return v, nil
		}
		if fallback == nil {
			fallback = v
		}
	}
	if fallback == nil {
		return nil, apperr.ErrNoActiveVehicle
	}
	return fallback, nil
}
