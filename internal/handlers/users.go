package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chachabrian/haulbook-backend/internal/services"
)

// GetProfile retrieves the user's profile
func GetProfile(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := auth.Profile(c.Request.Context(), caller(c).UserID)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, "Profile retrieved", user)
	}
}
