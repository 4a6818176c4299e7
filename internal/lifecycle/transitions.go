// Package lifecycle is the single authority on booking status changes: which
// edges exist, who may take them and what each one implies for persistence.
package lifecycle

import (
	"fmt"

	"github.com/chachabrian/haulbook-backend/internal/apperr"
	"github.com/chachabrian/haulbook-backend/internal/models"
)

// Actor is the caller of a lifecycle command. Party is true when a customer
// owns the booking or a driver is its current assignee.
type Actor struct {
	Role  models.Role
	Party bool
}

type Effect int

const (
	EffectAssignDriver Effect = iota
	EffectClearDriver
	EffectEnsureTrip
	EffectSetActualFare
	EffectStampAssigned
	EffectStampArrived
	EffectStampPickedUp
	EffectStampDelivered
	EffectStampCancelled
	EffectNotify
)

func (e Effect) String() string {
	switch e {
	case EffectAssignDriver:
		return "assign_driver"
	case EffectClearDriver:
		return "clear_driver"
	case EffectEnsureTrip:
		return "ensure_trip"
	case EffectSetActualFare:
		return "set_actual_fare"
	case EffectStampAssigned:
		return "stamp_assigned"
	case EffectStampArrived:
		return "stamp_arrived"
	case EffectStampPickedUp:
		return "stamp_picked_up"
	case EffectStampDelivered:
		return "stamp_delivered"
	case EffectStampCancelled:
		return "stamp_cancelled"
	case EffectNotify:
		return "notify"
	}
	return fmt.Sprintf("effect(%d)", int(e))
}

type Outcome int

const (
	Denied Outcome = iota
	Allowed
	// NoOp means the booking is already in the requested status and the actor
	// could legitimately have put it there; the caller returns current state.
	NoOp
)

type Decision struct {
	Outcome Outcome
	From    models.BookingStatus
	To      models.BookingStatus
	Effects []Effect
	Err     error
}

func (d Decision) Has(e Effect) bool {
	for _, have := range d.Effects {
		if have == e {
			return true
		}
	}
	return false
}

type permit func(Actor) bool

func admin(a Actor) bool { return a.Role.IsAdmin() }

func owningCustomer(a Actor) bool { return a.Role == models.RoleCustomer && a.Party }

func assignedDriver(a Actor) bool { return a.Role == models.RoleDriver && a.Party }

type edge struct {
	from    models.BookingStatus
	to      models.BookingStatus
	permits []permit
	effects []Effect
}

func (e edge) allows(a Actor) bool {
	for _, p := range e.permits {
		if p(a) {
			return true
		}
	}
	return false
}

var edges = buildEdges()

func buildEdges() map[[2]models.BookingStatus]edge {
	base := []edge{
		{
			from: models.StatusPending, to: models.StatusDriverAssigned,
			permits: []permit{admin},
			effects: []Effect{EffectAssignDriver, EffectEnsureTrip, EffectStampAssigned},
		},
		{
			from: models.StatusPending, to: models.StatusCancelled,
			permits: []permit{owningCustomer, admin},
			effects: []Effect{EffectClearDriver, EffectStampCancelled},
		},
		{
			from: models.StatusDriverAssigned, to: models.StatusDriverArrived,
			permits: []permit{assignedDriver},
			effects: []Effect{EffectStampArrived},
		},
		{
			from: models.StatusDriverAssigned, to: models.StatusPending,
			permits: []permit{assignedDriver},
			effects: []Effect{EffectClearDriver},
		},
		{
			from: models.StatusDriverArrived, to: models.StatusInProgress,
			permits: []permit{assignedDriver},
			effects: []Effect{EffectEnsureTrip, EffectStampPickedUp},
		},
		{
			from: models.StatusInProgress, to: models.StatusCompleted,
			permits: []permit{assignedDriver},
			effects: []Effect{EffectSetActualFare, EffectStampDelivered},
		},
	}

	table := make(map[[2]models.BookingStatus]edge)
	for _, e := range base {
		table[[2]models.BookingStatus{e.from, e.to}] = e
	}

	// Admins may cancel from any non-terminal status; PENDING already lists them.
	for _, from := range models.AllBookingStatuses {
		if from.IsTerminal() {
			continue
		}
		key := [2]models.BookingStatus{from, models.StatusCancelled}
		if _, ok := table[key]; ok {
			continue
		}
		table[key] = edge{
			from: from, to: models.StatusCancelled,
			permits: []permit{admin},
			effects: []Effect{EffectClearDriver, EffectStampCancelled},
		}
	}

	for key, e := range table {
		if e.to.Published() {
			e.effects = append(e.effects, EffectNotify)
			table[key] = e
		}
	}
	return table
}

// Decide validates a requested status change against the current persisted status.
func Decide(from, to models.BookingStatus, actor Actor) Decision {
	d := Decision{From: from, To: to}

	if !from.Valid() || !to.Valid() {
		d.Err = apperr.InvalidTransition(string(from), string(to))
		return d
	}

	if from == to {
		return decideRepeat(d, actor)
	}

	e, ok := edges[[2]models.BookingStatus{from, to}]
	if !ok {
		d.Err = apperr.InvalidTransition(string(from), string(to))
		return d
	}
	if !e.allows(actor) {
		d.Err = apperr.Forbidden(fmt.Sprintf("%s may not move this booking from %s to %s", actor.Role, from, to))
		return d
	}

	d.Outcome = Allowed
	d.Effects = append([]Effect(nil), e.effects...)
	return d
}

// decideRepeat treats a re-request of the current status as a no-op when the
// actor holds some edge into that status, so retried client calls succeed.
func decideRepeat(d Decision, actor Actor) Decision {
	inbound := false
	for _, e := range edges {
		if e.to != d.To {
			continue
		}
		inbound = true
		if e.allows(actor) {
			d.Outcome = NoOp
			return d
		}
	}
	if inbound {
		d.Err = apperr.Forbidden(fmt.Sprintf("%s may not set booking status %s", actor.Role, d.To))
	} else {
		d.Err = apperr.InvalidTransition(string(d.From), string(d.To))
	}
	return d
}

// Next lists the statuses the actor may move a booking to from the given one,
// in lifecycle order.
func Next(from models.BookingStatus, actor Actor) []models.BookingStatus {
	var out []models.BookingStatus
	for _, to := range models.AllBookingStatuses {
		if e, ok := edges[[2]models.BookingStatus{from, to}]; ok && e.allows(actor) {
			out = append(out, to)
		}
	}
	return out
}
