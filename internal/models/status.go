package models

import "fmt"

// BookingStatus is the closed set of lifecycle states a booking can be in.
type BookingStatus string

const (
	StatusPending        BookingStatus = "PENDING"
	StatusConfirmed      BookingStatus = "CONFIRMED"
	StatusDriverAssigned BookingStatus = "DRIVER_ASSIGNED"
	StatusDriverArrived  BookingStatus = "DRIVER_ARRIVED"
	StatusInProgress     BookingStatus = "IN_PROGRESS"
	StatusCompleted      BookingStatus = "COMPLETED"
	StatusCancelled      BookingStatus = "CANCELLED"
	StatusFailed         BookingStatus = "FAILED"
)

// AllBookingStatuses lists every status in lifecycle order.
var AllBookingStatuses = []BookingStatus{
	StatusPending,
	StatusConfirmed,
	StatusDriverAssigned,
	StatusDriverArrived,
	StatusInProgress,
	StatusCompleted,
	StatusCancelled,
	StatusFailed,
}

func (s BookingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusDriverAssigned, StatusDriverArrived,
		StatusInProgress, StatusCompleted, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

func (s BookingStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

// HasDriver reports whether a booking in this status must carry a driverId.
func (s BookingStatus) HasDriver() bool {
	switch s {
	case StatusDriverAssigned, StatusDriverArrived, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Published reports whether entering this status emits a notification event.
func (s BookingStatus) Published() bool {
	switch s {
	case StatusDriverAssigned, StatusDriverArrived, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

func (s BookingStatus) String() string {
	return string(s)
}

func ParseBookingStatus(s string) (BookingStatus, error) {
	status := BookingStatus(s)
	if !status.Valid() {
		return "", fmt.Errorf("invalid booking status: %q", s)
	}
	return status, nil
}

type TripStatus string

const (
	TripStatusStarted    TripStatus = "STARTED"
	TripStatusInProgress TripStatus = "IN_PROGRESS"
	TripStatusCompleted  TripStatus = "COMPLETED"
	TripStatusCancelled  TripStatus = "CANCELLED"
	// TripStatusReleased marks a trip whose driver rejected the assignment.
	TripStatusReleased TripStatus = "RELEASED"
)

// TripStatusFor projects a booking status onto its trip. Trip status is never
// written from anywhere else.
func TripStatusFor(s BookingStatus) (TripStatus, bool) {
	switch s {
	case StatusDriverAssigned, StatusDriverArrived:
		return TripStatusStarted, true
	case StatusInProgress:
		return TripStatusInProgress, true
	case StatusCompleted:
		return TripStatusCompleted, true
	case StatusCancelled, StatusFailed:
		return TripStatusCancelled, true
	case StatusPending:
		return TripStatusReleased, true
	}
	return "", false
}
