package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chachabrian/haulbook-backend/internal/models"
	"github.com/chachabrian/haulbook-backend/internal/services"
)

// CreateBooking places a new PENDING booking for the authenticated customer.
func CreateBooking(bookings *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input services.CreateBookingInput
		if !bindJSON(c, &input) {
			return
		}

		b, err := bookings.Create(c.Request.Context(), caller(c), input)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusCreated, "Booking created", b)
	}
}

// ListBookings returns the bookings visible to the caller, newest first.
func ListBookings(bookings *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		page := pageFromQuery(c)
		list, total, err := bookings.List(c.Request.Context(), caller(c), c.Query("status"), page)
		if err != nil {
			respondError(c, err)
			return
		}
		respondPage(c, "Bookings retrieved", list, total, page)
	}
}

func GetBooking(bookings *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		b, err := bookings.Get(c.Request.Context(), caller(c), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, "Booking retrieved", b)
	}
}

func GetBookingTrip(bookings *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		trip, err := bookings.GetTrip(c.Request.Context(), caller(c), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, "Trip retrieved", trip)
	}
}

// CancelBooking is open to the owning customer and to admins.
func CancelBooking(bookings *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Reason string `json:"reason"`
		}
		if !bindOptionalJSON(c, &input) {
			return
		}

		b, err := bookings.Cancel(c.Request.Context(), caller(c), c.Param("id"), input.Reason)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, "Booking cancelled", b)
	}
}

func AssignDriver(assigner *services.AssignmentCoordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input services.AssignInput
		if !bindJSON(c, &input) {
			return
		}

		b, err := assigner.Assign(c.Request.Context(), caller(c), input)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, "Driver assigned", b)
	}
}

// AdminSetBookingStatus moves a booking through the same transition rules as
// every other caller.
func AdminSetBookingStatus(bookings *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			BookingID string               `json:"bookingId" binding:"required"`
			Status    models.BookingStatus `json:"status" binding:"required"`
		}
		if !bindJSON(c, &input) {
			return
		}

		b, err := bookings.AdminSetStatus(c.Request.Context(), caller(c), input.BookingID, input.Status)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, "Booking status updated", b)
	}
}
