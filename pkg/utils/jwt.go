package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/chachabrian/haulbook-backend/internal/models"
)

// TokenClaims is what the API trusts about a caller after token validation.
type TokenClaims struct {
	UserID string
	Email  string
	Role   models.Role
}

func GenerateToken(user *models.User, secret string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"id":    user.ID,
		"email": user.Email,
		"role":  string(user.Role),
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ValidateToken(tokenString, secret string) (*TokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}
	id, _ := claims["id"].(string)
	role, _ := claims["role"].(string)
	email, _ := claims["email"].(string)
	if id == "" || !models.Role(role).Valid() {
		return nil, errors.New("invalid token claims")
	}
	return &TokenClaims{UserID: id, Email: email, Role: models.Role(role)}, nil
}
