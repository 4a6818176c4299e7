package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chachabrian/haulbook-backend/internal/apperr"
	"github.com/chachabrian/haulbook-backend/internal/lifecycle"
	"github.com/chachabrian/haulbook-backend/internal/models"
	"github.com/chachabrian/haulbook-backend/internal/store"
	"github.com/chachabrian/haulbook-backend/pkg/logger"
	"github.com/chachabrian/haulbook-backend/pkg/utils"
)

// Caller is the authenticated user issuing a command.
type Caller struct {
	UserID string
	Role   models.Role
}

const bookingNumberAttempts = 5

type CreateBookingInput struct {
	PickupAddress    string    `json:"pickupAddress" binding:"required"`
	PickupLatitude   *float64  `json:"pickupLatitude" binding:"required"`
	PickupLongitude  *float64  `json:"pickupLongitude" binding:"required"`
	DropoffAddress   string    `json:"dropoffAddress" binding:"required"`
	DropoffLatitude  *float64  `json:"dropoffLatitude" binding:"required"`
	DropoffLongitude *float64  `json:"dropoffLongitude" binding:"required"`
	PickupTime       time.Time `json:"pickupTime" binding:"required"`

	ServiceType   models.ServiceType   `json:"serviceType" binding:"required"`
	VehicleType   string               `json:"vehicleType"`
	VehicleName   string               `json:"vehicleName"`
	Notes         string               `json:"notes"`
	PaymentMethod models.PaymentMethod `json:"paymentMethod"`
}

func (in CreateBookingInput) validate() error {
	if strings.TrimSpace(in.PickupAddress) == "" || strings.TrimSpace(in.DropoffAddress) == "" {
		return apperr.Validation("pickup and dropoff addresses are required")
	}
	if in.PickupLatitude == nil || in.PickupLongitude == nil ||
		in.DropoffLatitude == nil || in.DropoffLongitude == nil {
		return apperr.Validation("pickup and dropoff coordinates are required")
	}
	if !utils.ValidCoordinates(*in.PickupLatitude, *in.PickupLongitude) ||
		!utils.ValidCoordinates(*in.DropoffLatitude, *in.DropoffLongitude) {
		return apperr.ErrInvalidCoordinates
	}
	if in.PickupTime.IsZero() {
		return apperr.Validation("pickupTime is required")
	}
	if !in.ServiceType.Valid() {
		return apperr.Validation(fmt.Sprintf("unknown serviceType %q", in.ServiceType))
	}
	if in.PaymentMethod != "" && !in.PaymentMethod.Valid() {
		return apperr.Validation(fmt.Sprintf("unknown paymentMethod %q", in.PaymentMethod))
	}
	return nil
}

// BookingService runs every booking lifecycle command except assignment
// through the transition engine and a single conditional store write.
type BookingService struct {
	store    store.Store
	notifier Notifier
	log      logger.ILogger
	now      func() time.Time
}

func NewBookingService(st store.Store, notifier Notifier, log logger.ILogger) *BookingService {
	return &BookingService{
		store:    st,
		notifier: notifier,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *BookingService) Create(ctx context.Context, caller Caller, in CreateBookingInput) (*models.Booking, error) {
	if caller.Role != models.RoleCustomer {
		return nil, apperr.Forbidden("only customers can create bookings")
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	pickupLat, pickupLng := *in.PickupLatitude, *in.PickupLongitude
	dropLat, dropLng := *in.DropoffLatitude, *in.DropoffLongitude
	fare := utils.EstimateFare(in.ServiceType, pickupLat, pickupLng, dropLat, dropLng)

	var b *models.Booking
	for attempt := 0; attempt < bookingNumberAttempts; attempt++ {
		b = &models.Booking{
			BookingNumber:    utils.GenerateBookingNumber(s.now()),
			CustomerID:       caller.UserID,
			PickupAddress:    strings.TrimSpace(in.PickupAddress),
			PickupLatitude:   pickupLat,
			PickupLongitude:  pickupLng,
			DropoffAddress:   strings.TrimSpace(in.DropoffAddress),
			DropoffLatitude:  dropLat,
			DropoffLongitude: dropLng,
			PickupTime:       in.PickupTime.UTC(),
			ServiceType:      in.ServiceType,
			VehicleType:      in.VehicleType,
			VehicleName:      in.VehicleName,
			Notes:            in.Notes,
			DistanceKm:       fare.DistanceKm,
			EstimatedFare:    fare.Total,
			PaymentMethod:    in.PaymentMethod,
			Status:           models.StatusPending,
		}
		err := s.store.CreateBooking(ctx, b)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrDuplicate) {
			return nil, err
		}
		s.log.Warning("booking number collision, retrying", logger.String("bookingNumber", b.BookingNumber))
		if attempt == bookingNumberAttempts-1 {
			return nil, apperr.Internal(fmt.Errorf("could not allocate a booking number: %w", err))
		}
	}

	s.log.Info("booking created", logger.String("bookingId", b.ID), logger.String("bookingNumber", b.BookingNumber))
	s.notifier.BookingCreated(ctx, b)
	return b, nil
}

// driverProfile resolves the caller's driver profile. A driver without a
// profile cannot be a party to any booking.
func (s *BookingService) driverProfile(ctx context.Context, caller Caller) (*models.DriverProfile, error) {
	p, err := s.store.GetDriverProfileByUser(ctx, caller.UserID)
	if errors.Is(err, apperr.ErrDriverNotFound) {
		return nil, apperr.Forbidden("driver profile required")
	}
	return p, err
}

// canView allows admins, the owning customer and the assigned driver.
func (s *BookingService) canView(ctx context.Context, caller Caller, b *models.Booking) error {
	switch {
	case caller.Role.IsAdmin():
		return nil
	case caller.Role == models.RoleCustomer && b.CustomerID == caller.UserID:
		return nil
	case caller.Role == models.RoleDriver:
		p, err := s.driverProfile(ctx, caller)
		if err != nil {
			return err
		}
		if b.AssignedTo(p.ID) {
			return nil
		}
	}
	return apperr.Forbidden("you do not have access to this booking")
}

func (s *BookingService) Get(ctx context.Context, caller Caller, id string) (*models.Booking, error) {
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.canView(ctx, caller, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *BookingService) GetTrip(ctx context.Context, caller Caller, bookingID string) (*models.Trip, error) {
	if _, err := s.Get(ctx, caller, bookingID); err != nil {
		return nil, err
	}
	return s.store.GetTrip(ctx, bookingID)
}

func (s *BookingService) List(ctx context.Context, caller Caller, status string, page store.Page) ([]models.Booking, int64, error) {
	f := store.BookingFilter{Page: page}
	if status != "" {
		st, err := models.ParseBookingStatus(strings.ToUpper(status))
		if err != nil {
			return nil, 0, apperr.Validation(err.Error())
		}
		f.Status = st
	}

	switch {
	case caller.Role.IsAdmin():
	case caller.Role == models.RoleCustomer:
		f.CustomerID = caller.UserID
	case caller.Role == models.RoleDriver:
		p, err := s.driverProfile(ctx, caller)
		if err != nil {
			return nil, 0, err
		}
		f.DriverID = p.ID
	default:
		return nil, 0, apperr.Forbidden("unknown role")
	}
	return s.store.ListBookings(ctx, f)
}

type transitionOptions struct {
	actualFare   *float64
	cancelReason string
}

// party loads the booking and works out the caller's relationship to it.
// Drivers must be the current assignee for any command, whatever the status.
func (s *BookingService) party(ctx context.Context, caller Caller, id string) (*models.Booking, lifecycle.Actor, *models.DriverProfile, error) {
	actor := lifecycle.Actor{Role: caller.Role}
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, actor, nil, err
	}

	switch caller.Role {
	case models.RoleCustomer:
		if b.CustomerID != caller.UserID {
			return nil, actor, nil, apperr.Forbidden("you do not own this booking")
		}
		actor.Party = true
	case models.RoleDriver:
		p, err := s.driverProfile(ctx, caller)
		if err != nil {
			return nil, actor, nil, err
		}
		if !b.AssignedTo(p.ID) {
			return nil, actor, nil, apperr.Forbidden("booking is not assigned to you")
		}
		actor.Party = true
		return b, actor, p, nil
	}
	return b, actor, nil, nil
}

func (s *BookingService) Cancel(ctx context.Context, caller Caller, id, reason string) (*models.Booking, error) {
	b, actor, _, err := s.party(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, b, models.StatusCancelled, actor, transitionOptions{cancelReason: reason})
}

// AdminSetStatus is the generic admin command. Assignment has its own
// coordinator because it needs a driver and vehicle.
func (s *BookingService) AdminSetStatus(ctx context.Context, caller Caller, id string, to models.BookingStatus) (*models.Booking, error) {
	if !caller.Role.IsAdmin() {
		return nil, apperr.Forbidden("admin role required")
	}
	if !to.Valid() {
		return nil, apperr.Validation(fmt.Sprintf("unknown status %q", to))
	}
	b, actor, _, err := s.party(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if to == models.StatusDriverAssigned && b.Status != models.StatusDriverAssigned {
		return nil, apperr.Validation("use assign-driver to assign a booking")
	}
	return s.transition(ctx, b, to, actor, transitionOptions{})
}

// Accept acknowledges an assignment. The status stays DRIVER_ASSIGNED.
func (s *BookingService) Accept(ctx context.Context, caller Caller, id string) (*models.Booking, error) {
	if caller.Role != models.RoleDriver {
		return nil, apperr.Forbidden("only the assigned driver can accept")
	}
	b, _, profile, err := s.party(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if b.Status != models.StatusDriverAssigned {
		return nil, apperr.New(apperr.KindInvalidTransition, apperr.CodeInvalidTransition,
			fmt.Sprintf("only a DRIVER_ASSIGNED booking can be accepted, current status is %s", b.Status))
	}
	if b.AcceptedAt != nil {
		return b, nil
	}
	updated, err := s.store.MarkAccepted(ctx, b.ID, profile.ID, s.now())
	if err != nil {
		return nil, err
	}
	s.log.Info("assignment accepted", logger.String("bookingId", b.ID), logger.String("driverId", profile.ID))
	return updated, nil
}

func (s *BookingService) Reject(ctx context.Context, caller Caller, id string) (*models.Booking, error) {
	return s.driverCommand(ctx, caller, id, models.StatusPending, transitionOptions{})
}

func (s *BookingService) Arrive(ctx context.Context, caller Caller, id string) (*models.Booking, error) {
	return s.driverCommand(ctx, caller, id, models.StatusDriverArrived, transitionOptions{})
}

func (s *BookingService) Start(ctx context.Context, caller Caller, id string) (*models.Booking, error) {
	return s.driverCommand(ctx, caller, id, models.StatusInProgress, transitionOptions{})
}

// Complete closes the trip. actualFare defaults to the estimate when nil.
func (s *BookingService) Complete(ctx context.Context, caller Caller, id string, actualFare *float64) (*models.Booking, error) {
	if actualFare != nil && *actualFare < 0 {
		return nil, apperr.Validation("actualFare must not be negative")
	}
	return s.driverCommand(ctx, caller, id, models.StatusCompleted, transitionOptions{actualFare: actualFare})
}

func (s *BookingService) driverCommand(ctx context.Context, caller Caller, id string, to models.BookingStatus, opts transitionOptions) (*models.Booking, error) {
	if caller.Role != models.RoleDriver {
		return nil, apperr.Forbidden("only the assigned driver can do this")
	}
	b, actor, _, err := s.party(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, b, to, actor, opts)
}

// transition decides, writes and notifies. The write is conditional on the
// status the decision was made against; if another request got there first
// the booking is re-read and the decision retried once, so a duplicate
// request that lost the race still gets the idempotent answer.
func (s *BookingService) transition(ctx context.Context, b *models.Booking, to models.BookingStatus, actor lifecycle.Actor, opts transitionOptions) (*models.Booking, error) {
	d := lifecycle.Decide(b.Status, to, actor)
	if d.Err != nil {
		return nil, d.Err
	}
	if d.Outcome == lifecycle.NoOp {
		return b, nil
	}

	t, err := s.plan(ctx, b, d, actor, opts)
	if err != nil {
		return nil, err
	}

	updated, err := s.store.ApplyTransition(ctx, t)
	if errors.Is(err, apperr.ErrStateConflict) {
		current, getErr := s.store.GetBooking(ctx, b.ID)
		if getErr != nil {
			return nil, getErr
		}
		if again := lifecycle.Decide(current.Status, to, actor); again.Outcome == lifecycle.NoOp && sameParty(b, current, actor) {
			return current, nil
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("booking status changed",
		logger.String("bookingId", b.ID),
		logger.String("from", string(d.From)),
		logger.String("to", string(d.To)),
		logger.String("actor", string(actor.Role)))

	if d.Has(lifecycle.EffectNotify) {
		s.notifier.StatusChanged(ctx, updated, d.From, s.driverUserID(ctx, b, updated))
	}
	return updated, nil
}

// sameParty keeps a driver from inheriting a no-op on a booking that was
// re-assigned to someone else between the read and the write.
func sameParty(before, after *models.Booking, actor lifecycle.Actor) bool {
	if actor.Role != models.RoleDriver {
		return true
	}
	return before.DriverID != nil && after.AssignedTo(*before.DriverID)
}

func (s *BookingService) plan(ctx context.Context, b *models.Booking, d lifecycle.Decision, actor lifecycle.Actor, opts transitionOptions) (store.Transition, error) {
	now := s.now()
	t := store.Transition{BookingID: b.ID, From: d.From, To: d.To}
	if actor.Role == models.RoleDriver {
		t.ExpectDriverID = b.DriverID
	}

	for _, e := range d.Effects {
		switch e {
		case lifecycle.EffectClearDriver:
			t.Booking.ClearDriver = true
		case lifecycle.EffectSetActualFare:
			fare := b.EstimatedFare
			if opts.actualFare != nil {
				fare = *opts.actualFare
			}
			t.Booking.ActualFare = &fare
			t.Trip.EndTime = &now
		case lifecycle.EffectStampArrived:
			t.Booking.ArrivedAt = &now
		case lifecycle.EffectStampPickedUp:
			t.Booking.PickedUpAt = &now
			t.Trip.StartTime = &now
		case lifecycle.EffectStampDelivered:
			t.Booking.DeliveredAt = &now
		case lifecycle.EffectStampCancelled:
			t.Booking.CancelledAt = &now
			t.Booking.CancelReason = opts.cancelReason
			t.Trip.EndTime = &now
		case lifecycle.EffectEnsureTrip:
			trip, err := s.missingTrip(ctx, b)
			if err != nil {
				return t, err
			}
			t.Trip.Ensure = trip
		case lifecycle.EffectAssignDriver, lifecycle.EffectStampAssigned:
			return t, apperr.Validation("use assign-driver to assign a booking")
		}
	}
	return t, nil
}

// missingTrip returns a trip to create when the booking has none yet, or nil.
func (s *BookingService) missingTrip(ctx context.Context, b *models.Booking) (*models.Trip, error) {
	if _, err := s.store.GetTrip(ctx, b.ID); err == nil {
		return nil, nil
	} else if !errors.Is(err, apperr.ErrTripNotFound) {
		return nil, err
	}
	if b.DriverID == nil {
		return nil, apperr.ErrStateConflict
	}
	vehicles, err := s.store.ListVehicles(ctx, *b.DriverID)
	if err != nil {
		return nil, err
	}
	v, err := pickVehicle(vehicles, b.VehicleType, "")
	if err != nil {
		return nil, err
	}
	return &models.Trip{DriverProfileID: *b.DriverID, VehicleID: v.ID}, nil
}

// driverUserID finds the user behind the driver bound before or after the change.
func (s *BookingService) driverUserID(ctx context.Context, before, after *models.Booking) string {
	id := after.DriverID
	if id == nil {
		id = before.DriverID
	}
	if id == nil {
		return ""
	}
	p, err := s.store.GetDriverProfile(ctx, *id)
	if err != nil {
		s.log.Warning("driver lookup for notification failed", logger.String("driverId", *id), logger.Error(err))
		return ""
	}
	return p.UserID
}
