package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chachabrian/haulbook-backend/internal/services"
)

func CreateDriverProfile(drivers *services.DriverService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input services.DriverProfileInput
		if !bindJSON(c, &input) {
			return
		}

		p, err := drivers.CreateProfile(c.Request.Context(), caller(c).UserID, input)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusCreated, "Driver profile created", p)
	}
}

func GetDriverProfile(drivers *services.DriverService) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := drivers.Profile(c.Request.Context(), caller(c).UserID)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, "Driver profile retrieved", p)
	}
}

func SetDriverOnline(drivers *services.DriverService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			IsOnline *bool `json:"isOnline" binding:"required"`
		}
		if !bindJSON(c, &input) {
			return
		}

		p, err := drivers.SetOnline(c.Request.Context(), caller(c).UserID, *input.IsOnline)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, "Availability updated", p)
	}
}

func AddVehicle(drivers *services.DriverService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input services.VehicleInput
		if !bindJSON(c, &input) {
			return
		}

		v, err := drivers.AddVehicle(c.Request.Context(), caller(c).UserID, input)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusCreated, "Vehicle registered", v)
	}
}

func ListVehicles(drivers *services.DriverService) gin.HandlerFunc {
	return func(c *gin.Context) {
		vehicles, err := drivers.Vehicles(c.Request.Context(), caller(c).UserID)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, "Vehicles retrieved", vehicles)
	}
}

// Admin

func ListDrivers(drivers *services.DriverService) gin.HandlerFunc {
	return func(c *gin.Context) {
		page := pageFromQuery(c)
		list, total, err := drivers.ListDrivers(c.Request.Context(), page)
		if err != nil {
			respondError(c, err)
			return
		}
		respondPage(c, "Drivers retrieved", list, total, page)
	}
}

func VerifyDriver(drivers *services.DriverService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			IsVerified *bool `json:"isVerified" binding:"required"`
		}
		if !bindJSON(c, &input) {
			return
		}

		p, err := drivers.VerifyDriver(c.Request.Context(), c.Param("id"), *input.IsVerified)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, "Driver verification updated", p)
	}
}

func UpdateVehicle(drivers *services.DriverService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			IsVerified *bool `json:"isVerified"`
			IsActive   *bool `json:"isActive"`
		}
		if !bindJSON(c, &input) {
			return
		}

		v, err := drivers.UpdateVehicle(c.Request.Context(), c.Param("id"), input.IsVerified, input.IsActive)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, "Vehicle updated", v)
	}
}
