package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chachabrian/haulbook-backend/internal/apperr"
	"github.com/chachabrian/haulbook-backend/internal/models"
	"github.com/chachabrian/haulbook-backend/pkg/logger"
)

func TestDriverOnboarding(t *testing.T) {
	f := newFixture(t)
	drivers := NewDriverService(f.store, logger.NewNop())
	user := f.user(t, models.RoleDriver)

	_, err := drivers.CreateProfile(f.ctx, f.customer.UserID, DriverProfileInput{LicenseNumber: "L1"})
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))

	_, err = drivers.AddVehicle(f.ctx, user.UserID, VehicleInput{VehicleNumber: "KA01", VehicleType: "BIKE"})
	assert.ErrorIs(t, err, apperr.ErrDriverNotFound)

	p, err := drivers.CreateProfile(f.ctx, user.UserID, DriverProfileInput{LicenseNumber: " KA-DL-42 ", City: "Bengaluru"})
	require.NoError(t, err)
	assert.Equal(t, "KA-DL-42", p.LicenseNumber)
	assert.False(t, p.IsVerified)

	_, err = drivers.CreateProfile(f.ctx, user.UserID, DriverProfileInput{LicenseNumber: "again"})
	assert.ErrorIs(t, err, apperr.ErrDriverProfileExists)

	v, err := drivers.AddVehicle(f.ctx, user.UserID, VehicleInput{VehicleNumber: "ka 01 ab 1234", VehicleType: "TRUCK", CapacityKg: 1500})
	require.NoError(t, err)
	assert.Equal(t, "KA01AB1234", v.VehicleNumber)
	assert.True(t, v.IsActive)
	assert.False(t, v.IsVerified)

	_, err = drivers.AddVehicle(f.ctx, user.UserID, VehicleInput{VehicleNumber: "KA01AB1234", VehicleType: "TRUCK"})
	assert.ErrorIs(t, err, apperr.ErrVehicleNumberTaken)

	// Unverified vehicles cannot be assigned until an admin approves them.
	b := f.booking(t)
	_, err = f.assigner.Assign(f.ctx, f.admin, AssignInput{BookingID: b.ID, DriverID: p.ID})
	assert.ErrorIs(t, err, apperr.ErrNoActiveVehicle)

	verified := true
	_, err = drivers.UpdateVehicle(f.ctx, v.ID, &verified, nil)
	require.NoError(t, err)
	assigned, err := f.assigner.Assign(f.ctx, f.admin, AssignInput{BookingID: b.ID, DriverID: p.ID})
	require.NoError(t, err)
	assert.Equal(t, models.StatusDriverAssigned, assigned.Status)

	_, err = drivers.UpdateVehicle(f.ctx, v.ID, nil, nil)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestDriverVerificationAndOnline(t *testing.T) {
	f := newFixture(t)
	drivers := NewDriverService(f.store, logger.NewNop())
	d := f.driver(t, true)

	p, err := drivers.VerifyDriver(f.ctx, d.profile.ID, true)
	require.NoError(t, err)
	assert.True(t, p.IsVerified)

	p, err = drivers.SetOnline(f.ctx, d.caller.UserID, true)
	require.NoError(t, err)
	assert.True(t, p.IsOnline)

	vehicles, err := drivers.Vehicles(f.ctx, d.caller.UserID)
	require.NoError(t, err)
	require.Len(t, vehicles, 1)
	assert.Equal(t, d.vehicle.ID, vehicles[0].ID)

	list, total, err := drivers.ListDrivers(f.ctx, storePageAll)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].User)
	assert.Equal(t, d.caller.UserID, list[0].User.ID)

	_, err = drivers.VerifyDriver(f.ctx, models.NewID(), true)
	assert.ErrorIs(t, err, apperr.ErrDriverNotFound)
}

func TestNotificationService(t *testing.T) {
	f := newFixture(t)
	svc := NewNotificationService(f.store, f.store)

	err := svc.RegisterToken(f.ctx, f.customer.UserID, "  ")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	require.NoError(t, svc.RegisterToken(f.ctx, f.customer.UserID, "tok"))
	u, err := f.store.GetUser(f.ctx, f.customer.UserID)
	require.NoError(t, err)
	assert.Equal(t, "tok", u.FCMToken)

	d := NewDispatcher(f.store, f.store, logger.NewNop(), DispatcherConfig{})
	d.BookingCreated(f.ctx, f.booking(t))

	rows, total, err := svc.List(f.ctx, f.customer.UserID, true, storePageAll)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.NoError(t, svc.MarkRead(f.ctx, f.customer.UserID, rows[0].ID))
	assert.ErrorIs(t, svc.MarkRead(f.ctx, f.admin.UserID, rows[0].ID), apperr.ErrNotificationMissing)

	n, err := svc.MarkAllRead(f.ctx, f.admin.UserID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
