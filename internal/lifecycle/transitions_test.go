package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chachabrian/haulbook-backend/internal/apperr"
	"github.com/chachabrian/haulbook-backend/internal/models"
)

var (
	customerOwner  = Actor{Role: models.RoleCustomer, Party: true}
	customerOther  = Actor{Role: models.RoleCustomer}
	driverAssigned = Actor{Role: models.RoleDriver, Party: true}
	driverOther    = Actor{Role: models.RoleDriver}
	adminActor     = Actor{Role: models.RoleAdmin}
	superAdmin     = Actor{Role: models.RoleSuperAdmin}
)

type pair struct{ from, to models.BookingStatus }

var legal = map[pair]bool{
	{models.StatusPending, models.StatusDriverAssigned}:       true,
	{models.StatusPending, models.StatusCancelled}:            true,
	{models.StatusDriverAssigned, models.StatusDriverArrived}: true,
	{models.StatusDriverAssigned, models.StatusPending}:       true,
	{models.StatusDriverArrived, models.StatusInProgress}:     true,
	{models.StatusInProgress, models.StatusCompleted}:         true,
	{models.StatusConfirmed, models.StatusCancelled}:          true,
	{models.StatusDriverAssigned, models.StatusCancelled}:     true,
	{models.StatusDriverArrived, models.StatusCancelled}:      true,
	{models.StatusInProgress, models.StatusCancelled}:         true,
}

func TestDecideAllowedEdges(t *testing.T) {
	cases := []struct {
		name    string
		from    models.BookingStatus
		to      models.BookingStatus
		actor   Actor
		effects []Effect
	}{
		{"admin assigns", models.StatusPending, models.StatusDriverAssigned, adminActor,
			[]Effect{EffectAssignDriver, EffectEnsureTrip, EffectStampAssigned, EffectNotify}},
		{"super admin assigns", models.StatusPending, models.StatusDriverAssigned, superAdmin,
			[]Effect{EffectAssignDriver, EffectEnsureTrip, EffectStampAssigned, EffectNotify}},
		{"customer cancels pending", models.StatusPending, models.StatusCancelled, customerOwner,
			[]Effect{EffectClearDriver, EffectStampCancelled, EffectNotify}},
		{"admin cancels pending", models.StatusPending, models.StatusCancelled, adminActor,
			[]Effect{EffectClearDriver, EffectStampCancelled, EffectNotify}},
		{"driver arrives", models.StatusDriverAssigned, models.StatusDriverArrived, driverAssigned,
			[]Effect{EffectStampArrived, EffectNotify}},
		{"driver rejects", models.StatusDriverAssigned, models.StatusPending, driverAssigned,
			[]Effect{EffectClearDriver}},
		{"driver starts", models.StatusDriverArrived, models.StatusInProgress, driverAssigned,
			[]Effect{EffectEnsureTrip, EffectStampPickedUp, EffectNotify}},
		{"driver completes", models.StatusInProgress, models.StatusCompleted, driverAssigned,
			[]Effect{EffectSetActualFare, EffectStampDelivered, EffectNotify}},
		{"admin cancels in progress", models.StatusInProgress, models.StatusCancelled, adminActor,
			[]Effect{EffectClearDriver, EffectStampCancelled, EffectNotify}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Decide(tc.from, tc.to, tc.actor)
			require.NoError(t, d.Err)
			assert.Equal(t, Allowed, d.Outcome)
			assert.ElementsMatch(t, tc.effects, d.Effects)
		})
	}
}

func TestDecideRejectsEveryPairOutsideTable(t *testing.T) {
	actors := []Actor{customerOwner, driverAssigned, adminActor}
	for _, from := range models.AllBookingStatuses {
		for _, to := range models.AllBookingStatuses {
			if from == to || legal[pair{from, to}] {
				continue
			}
			for _, actor := range actors {
				d := Decide(from, to, actor)
				assert.Equal(t, Denied, d.Outcome, "%s -> %s by %s", from, to, actor.Role)
				assert.Equal(t, apperr.KindInvalidTransition, apperr.KindOf(d.Err), "%s -> %s by %s", from, to, actor.Role)
			}
		}
	}
}

func TestDecideSkipAhead(t *testing.T) {
	d := Decide(models.StatusPending, models.StatusCompleted, driverAssigned)
	require.Error(t, d.Err)
	assert.ErrorIs(t, d.Err, apperr.InvalidTransition("", ""))
	assert.Contains(t, d.Err.Error(), "PENDING")
	assert.Contains(t, d.Err.Error(), "COMPLETED")
}

func TestDecideWrongActor(t *testing.T) {
	cases := []struct {
		name  string
		from  models.BookingStatus
		to    models.BookingStatus
		actor Actor
	}{
		{"driver cannot assign", models.StatusPending, models.StatusDriverAssigned, driverAssigned},
		{"customer cannot assign", models.StatusPending, models.StatusDriverAssigned, customerOwner},
		{"other customer cannot cancel", models.StatusPending, models.StatusCancelled, customerOther},
		{"customer cannot cancel once assigned", models.StatusDriverAssigned, models.StatusCancelled, customerOwner},
		{"unassigned driver cannot start", models.StatusDriverArrived, models.StatusInProgress, driverOther},
		{"admin cannot mark arrived", models.StatusDriverAssigned, models.StatusDriverArrived, adminActor},
		{"admin cannot complete", models.StatusInProgress, models.StatusCompleted, adminActor},
		{"driver cannot cancel", models.StatusInProgress, models.StatusCancelled, driverAssigned},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Decide(tc.from, tc.to, tc.actor)
			assert.Equal(t, Denied, d.Outcome)
			assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(d.Err))
		})
	}
}

func TestDecideRepeatIsNoOp(t *testing.T) {
	cases := []struct {
		status models.BookingStatus
		actor  Actor
	}{
		{models.StatusInProgress, driverAssigned},
		{models.StatusDriverArrived, driverAssigned},
		{models.StatusCompleted, driverAssigned},
		{models.StatusCancelled, customerOwner},
		{models.StatusCancelled, adminActor},
		{models.StatusDriverAssigned, adminActor},
	}
	for _, tc := range cases {
		d := Decide(tc.status, tc.status, tc.actor)
		assert.NoError(t, d.Err, tc.status)
		assert.Equal(t, NoOp, d.Outcome, tc.status)
		assert.Empty(t, d.Effects)
	}
}

func TestDecideRepeatWithoutInboundEdge(t *testing.T) {
	d := Decide(models.StatusFailed, models.StatusFailed, adminActor)
	assert.Equal(t, apperr.KindInvalidTransition, apperr.KindOf(d.Err))

	d = Decide(models.StatusInProgress, models.StatusInProgress, driverOther)
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(d.Err))
}

func TestDecideUnknownStatus(t *testing.T) {
	d := Decide(models.StatusPending, models.BookingStatus("SHIPPED"), adminActor)
	assert.Equal(t, apperr.KindInvalidTransition, apperr.KindOf(d.Err))
}

func TestNext(t *testing.T) {
	assert.Equal(t,
		[]models.BookingStatus{models.StatusPending, models.StatusDriverArrived},
		Next(models.StatusDriverAssigned, driverAssigned),
	)
	assert.Equal(t,
		[]models.BookingStatus{models.StatusDriverAssigned, models.StatusCancelled},
		Next(models.StatusPending, adminActor),
	)
	assert.Empty(t, Next(models.StatusCompleted, adminActor))
}
