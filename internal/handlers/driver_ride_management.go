package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chachabrian/haulbook-backend/internal/models"
	"github.com/chachabrian/haulbook-backend/internal/services"
)

type driverCommand func(ctx context.Context, caller services.Caller, id string) (*models.Booking, error)

// driverAction adapts a driver lifecycle command to a handler.
func driverAction(cmd driverCommand, message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		b, err := cmd(c.Request.Context(), caller(c), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, message, b)
	}
}

// AcceptBooking acknowledges an assignment without changing its status.
func AcceptBooking(bookings *services.BookingService) gin.HandlerFunc {
	return driverAction(bookings.Accept, "Booking accepted")
}

// RejectBooking releases the booking back to PENDING for re-assignment.
func RejectBooking(bookings *services.BookingService) gin.HandlerFunc {
	return driverAction(bookings.Reject, "Booking rejected")
}

func DriverArrived(bookings *services.BookingService) gin.HandlerFunc {
	return driverAction(bookings.Arrive, "Driver arrived at pickup")
}

func StartTrip(bookings *services.BookingService) gin.HandlerFunc {
	return driverAction(bookings.Start, "Trip started")
}
