package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chachabrian/haulbook-backend/internal/services"
)

// UpdateBookingLocation records the assigned driver's position for an
// in-progress booking.
func UpdateBookingLocation(sink *services.LocationSink) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Latitude  *float64 `json:"latitude" binding:"required"`
			Longitude *float64 `json:"longitude" binding:"required"`
		}
		if !bindJSON(c, &input) {
			return
		}

		ack, err := sink.Update(c.Request.Context(), caller(c), c.Param("id"), *input.Latitude, *input.Longitude)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, "Location updated", ack)
	}
}

// GetBookingLocation returns the last known driver position for an
// in-progress booking.
func GetBookingLocation(sink *services.LocationSink) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := sink.Latest(c.Request.Context(), caller(c), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, "Location retrieved", u)
	}
}
