package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chachabrian/haulbook-backend/internal/services"
)

// CompleteTrip finishes an in-progress booking. actualFare defaults to the
// estimate when omitted.
func CompleteTrip(bookings *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			ActualFare *float64 `json:"actualFare"`
		}
		if !bindOptionalJSON(c, &input) {
			return
		}

		b, err := bookings.Complete(c.Request.Context(), caller(c), c.Param("id"), input.ActualFare)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, "Trip completed", b)
	}
}
