package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chachabrian/haulbook-backend/internal/services"
)

func Register(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input services.RegisterInput
		if !bindJSON(c, &input) {
			return
		}

		res, err := auth.Register(c.Request.Context(), input)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusCreated, "Registration successful", res)
	}
}

func Login(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input services.LoginInput
		if !bindJSON(c, &input) {
			return
		}

		res, err := auth.Login(c.Request.Context(), input)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, "Login successful", res)
	}
}
