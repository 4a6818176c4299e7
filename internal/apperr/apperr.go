// Package apperr defines the typed errors returned by the booking core and
// their mapping onto HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindAuthorization
	KindInvalidTransition
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindAuthorization:
		return "authorization"
	case KindInvalidTransition:
		return "invalid_transition"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// HTTPStatus is the single status code every error of this kind maps to.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation, KindInvalidTransition:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindAuthorization:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeInvalidCoordinates  = "INVALID_COORDINATES"
	CodeBookingNotFound     = "BOOKING_NOT_FOUND"
	CodeDriverNotFound      = "DRIVER_NOT_FOUND"
	CodeVehicleNotFound     = "VEHICLE_NOT_FOUND"
	CodeUserNotFound        = "USER_NOT_FOUND"
	CodeNotificationMissing = "NOTIFICATION_NOT_FOUND"
	CodeTripNotFound        = "TRIP_NOT_FOUND"
	CodeForbidden           = "FORBIDDEN"
	CodeInvalidTransition   = "INVALID_TRANSITION"
	CodeAlreadyAssigned     = "BOOKING_ALREADY_ASSIGNED"
	CodeStateConflict       = "BOOKING_STATE_CONFLICT"
	CodeNoActiveVehicle     = "DRIVER_HAS_NO_ACTIVE_VEHICLE"
	CodeNotInProgress       = "BOOKING_NOT_IN_PROGRESS"
	CodeLocationUnknown     = "LOCATION_NOT_AVAILABLE"
	CodeEmailTaken          = "EMAIL_TAKEN"
	CodeVehicleNumberTaken  = "VEHICLE_NUMBER_TAKEN"
	CodeDriverProfileExists = "DRIVER_PROFILE_EXISTS"
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeInternal            = "INTERNAL_ERROR"
)

// Error is a tagged core error. Two errors are considered equal by errors.Is
// when their codes match, so the package-level sentinels can be compared
// against errors built with extra message detail.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Validation(message string) *Error {
	return New(KindValidation, CodeValidation, message)
}

func Forbidden(message string) *Error {
	return New(KindAuthorization, CodeForbidden, message)
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: "internal server error", Err: err}
}

// InvalidTransition carries both statuses so clients can tell what they raced against.
func InvalidTransition(from, to string) *Error {
	return New(KindInvalidTransition, CodeInvalidTransition,
		fmt.Sprintf("cannot change booking status from %s to %s", from, to))
}

var (
	ErrInvalidCoordinates  = New(KindValidation, CodeInvalidCoordinates, "latitude must be within [-90,90] and longitude within [-180,180]")
	ErrBookingNotFound     = New(KindNotFound, CodeBookingNotFound, "booking not found")
	ErrDriverNotFound      = New(KindNotFound, CodeDriverNotFound, "driver not found")
	ErrVehicleNotFound     = New(KindNotFound, CodeVehicleNotFound, "vehicle not found")
	ErrUserNotFound        = New(KindNotFound, CodeUserNotFound, "user not found")
	ErrNotificationMissing = New(KindNotFound, CodeNotificationMissing, "notification not found")
	ErrTripNotFound        = New(KindNotFound, CodeTripNotFound, "trip not found")
	ErrBookingAssigned     = New(KindConflict, CodeAlreadyAssigned, "booking is already assigned to a driver")
	ErrStateConflict       = New(KindConflict, CodeStateConflict, "booking changed concurrently, re-fetch and retry")
	ErrNoActiveVehicle     = New(KindValidation, CodeNoActiveVehicle, "driver has no active verified vehicle")
	ErrNotInProgress       = New(KindValidation, CodeNotInProgress, "booking is not in progress")
	ErrLocationUnknown     = New(KindNotFound, CodeLocationUnknown, "no location reported yet")
	ErrEmailTaken          = New(KindConflict, CodeEmailTaken, "email is already registered")
	ErrVehicleNumberTaken  = New(KindConflict, CodeVehicleNumberTaken, "vehicle number is already registered")
	ErrDriverProfileExists = New(KindConflict, CodeDriverProfileExists, "driver profile already exists")
	ErrInvalidCredentials  = New(KindAuthorization, CodeInvalidCredentials, "invalid email or password")
)

// From converts any error into an *Error, wrapping unknown errors as internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}

func KindOf(err error) Kind {
	return From(err).Kind
}
