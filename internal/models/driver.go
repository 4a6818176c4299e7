package models

import (
	"time"

	"gorm.io/gorm"
)

// DriverProfile is a driver's operational record, one per driver user.
type DriverProfile struct {
	ID                 string     `json:"id" gorm:"type:uuid;primaryKey"`
	UserID             string     `json:"userId" gorm:"type:uuid;uniqueIndex;not null"`
	LicenseNumber      string     `json:"licenseNumber" gorm:"not null"`
	City               string     `json:"city"`
	IsVerified         bool       `json:"isVerified" gorm:"not null;default:false"`
	IsOnline           bool       `json:"isOnline" gorm:"not null;default:false"`
	CurrentLatitude    *float64   `json:"currentLatitude,omitempty"`
	CurrentLongitude   *float64   `json:"currentLongitude,omitempty"`
	LastLocationUpdate *time.Time `json:"lastLocationUpdate,omitempty"`
	User               *User      `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Vehicles           []Vehicle  `json:"vehicles,omitempty" gorm:"foreignKey:DriverProfileID"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

func (DriverProfile) TableName() string {
	return "driver_profiles"
}

func (d *DriverProfile) BeforeCreate(*gorm.DB) error {
	d.Prepare()
	return nil
}

func (d *DriverProfile) Prepare() {
	ensureID(&d.ID)
}

// Vehicle belongs to one driver; its verification is independent of the driver's.
type Vehicle struct {
	ID              string    `json:"id" gorm:"type:uuid;primaryKey"`
	DriverProfileID string    `json:"driverProfileId" gorm:"type:uuid;not null;index"`
	VehicleNumber   string    `json:"vehicleNumber" gorm:"uniqueIndex;not null"`
	VehicleType     string    `json:"vehicleType" gorm:"not null"`
	Name            string    `json:"name"`
	CapacityKg      float64   `json:"capacityKg"`
	IsVerified      bool      `json:"isVerified" gorm:"not null;default:false"`
	IsActive        bool      `json:"isActive" gorm:"not null;default:true"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func (Vehicle) TableName() string {
	return "vehicles"
}

func (v *Vehicle) BeforeCreate(*gorm.DB) error {
	v.Prepare()
	return nil
}

func (v *Vehicle) Prepare() {
	ensureID(&v.ID)
}

// Assignable reports whether the vehicle may be bound to a booking.
func (v *Vehicle) Assignable() bool {
	return v.IsActive && v.IsVerified
}
