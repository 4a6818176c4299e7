package utils

import (
	"math"

	"github.com/chachabrian/haulbook-backend/internal/models"
)

// FareRate is the price card for one service type.
type FareRate struct {
	BaseFare    float64 `json:"baseFare"`
	RatePerKm   float64 `json:"ratePerKm"`
	MinimumFare float64 `json:"minimumFare"`
}

// FareEstimate contains the calculated fare and breakdown
type FareEstimate struct {
	DistanceKm   float64 `json:"distanceKm"`
	BaseFare     float64 `json:"baseFare"`
	DistanceFare float64 `json:"distanceFare"`
	Total        float64 `json:"total"`
}

var FareRates = map[models.ServiceType]FareRate{
	models.ServiceBike:          {BaseFare: 30, RatePerKm: 10, MinimumFare: 50},
	models.ServiceTruck:         {BaseFare: 200, RatePerKm: 35, MinimumFare: 350},
	models.ServicePackersMovers: {BaseFare: 1500, RatePerKm: 60, MinimumFare: 2500},
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// EstimateFare prices a trip between two points for the given service type.
// Unknown service types are priced as trucks.
func EstimateFare(service models.ServiceType, pickupLat, pickupLng, dropLat, dropLng float64) FareEstimate {
	rate, ok := FareRates[service]
	if !ok {
		rate = FareRates[models.ServiceTruck]
	}

	distance := HaversineDistance(pickupLat, pickupLng, dropLat, dropLng)
	distanceFare := distance * rate.RatePerKm
	total := rate.BaseFare + distanceFare
	if total < rate.MinimumFare {
		total = rate.MinimumFare
	}

	return FareEstimate{
		DistanceKm:   round2(distance),
		BaseFare:     rate.BaseFare,
		DistanceFare: round2(distanceFare),
		Total:        round2(total),
	}
}
