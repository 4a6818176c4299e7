package models

import (
	"time"

	"gorm.io/gorm"
)

// Trip is the operational leg of an assigned booking, one per booking.
type Trip struct {
	ID              string     `json:"id" gorm:"type:uuid;primaryKey"`
	BookingID       string     `json:"bookingId" gorm:"type:uuid;uniqueIndex;not null"`
	DriverProfileID string     `json:"driverProfileId" gorm:"type:uuid;not null;index"`
	VehicleID       string     `json:"vehicleId" gorm:"type:uuid;not null"`
	Status          TripStatus `json:"status" gorm:"type:varchar(16);not null"`
	StartTime       *time.Time `json:"startTime,omitempty"`
	EndTime         *time.Time `json:"endTime,omitempty"`
	EndLatitude     *float64   `json:"endLatitude,omitempty"`
	EndLongitude    *float64   `json:"endLongitude,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

func (Trip) TableName() string {
	return "trips"
}

func (t *Trip) BeforeCreate(*gorm.DB) error {
	t.Prepare()
	return nil
}

func (t *Trip) Prepare() {
	ensureID(&t.ID)
}
