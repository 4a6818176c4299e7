package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chachabrian/haulbook-backend/internal/apperr"
	"github.com/chachabrian/haulbook-backend/internal/models"
	"github.com/chachabrian/haulbook-backend/pkg/utils"
)

// EstimateFare quotes the fare a booking between two points would be charged.
func EstimateFare() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			ServiceType      models.ServiceType `form:"serviceType" binding:"required"`
			PickupLatitude   *float64           `form:"pickupLatitude" binding:"required"`
			PickupLongitude  *float64           `form:"pickupLongitude" binding:"required"`
			DropoffLatitude  *float64           `form:"dropoffLatitude" binding:"required"`
			DropoffLongitude *float64           `form:"dropoffLongitude" binding:"required"`
		}
		if err := c.ShouldBindQuery(&input); err != nil {
			respondError(c, bindingError(err))
			return
		}
		if !input.ServiceType.Valid() {
			respondError(c, apperr.Validation("unknown serviceType"))
			return
		}
		pickupLat, pickupLng := *input.PickupLatitude, *input.PickupLongitude
		dropLat, dropLng := *input.DropoffLatitude, *input.DropoffLongitude
		if !utils.ValidCoordinates(pickupLat, pickupLng) || !utils.ValidCoordinates(dropLat, dropLng) {
			respondError(c, apperr.ErrInvalidCoordinates)
			return
		}

		estimate := utils.EstimateFare(input.ServiceType, pickupLat, pickupLng, dropLat, dropLng)
		respondOK(c, http.StatusOK, "Fare estimated", estimate)
	}
}
