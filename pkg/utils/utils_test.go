package utils

import (
	"math"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chachabrian/haulbook-backend/internal/models"
)

func TestValidCoordinates(t *testing.T) {
	tests := []struct {
		lat, lng float64
		want     bool
	}{
		{0, 0, true},
		{90, 180, true},
		{-90, -180, true},
		{90.0001, 0, false},
		{0, -180.5, false},
		{math.NaN(), 0, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidCoordinates(tt.lat, tt.lng), "lat=%v lng=%v", tt.lat, tt.lng)
	}
}

func TestHaversineDistance(t *testing.T) {
	// Bengaluru MG Road to Whitefield is roughly 16km.
	d := HaversineDistance(12.9756, 77.6066, 12.9698, 77.7500)
	assert.InDelta(t, 15.5, d, 1.0)
	assert.Zero(t, HaversineDistance(1, 1, 1, 1))
}

func TestEstimateFare(t *testing.T) {
	short := EstimateFare(models.ServiceBike, 12.9756, 77.6066, 12.9757, 77.6067)
	assert.Equal(t, FareRates[models.ServiceBike].MinimumFare, short.Total)

	long := EstimateFare(models.ServiceTruck, 12.9756, 77.6066, 12.9698, 77.7500)
	rate := FareRates[models.ServiceTruck]
	assert.InDelta(t, rate.BaseFare+long.DistanceKm*rate.RatePerKm, long.Total, 0.5)

	unknown := EstimateFare(models.ServiceType("BOAT"), 12.9756, 77.6066, 12.9698, 77.7500)
	assert.Equal(t, long.Total, unknown.Total)
}

func TestGenerateBookingNumber(t *testing.T) {
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	n := GenerateBookingNumber(at)
	assert.Regexp(t, regexp.MustCompile(`^BK260304050607[A-Z2-9]{4}$`), n)
	assert.NotEqual(t, n, GenerateBookingNumber(at))
}

func TestTokenRoundTrip(t *testing.T) {
	user := &models.User{ID: models.NewID(), Email: "d@haulbook.local", Role: models.RoleDriver}
	token, err := GenerateToken(user, "secret", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleDriver, claims.Role)

	_, err = ValidateToken(token, "other")
	assert.Error(t, err)

	expired, err := GenerateToken(user, "secret", -time.Minute)
	require.NoError(t, err)
	_, err = ValidateToken(expired, "secret")
	assert.Error(t, err)
}
