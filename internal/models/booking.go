package models

import (
	"time"

	"gorm.io/gorm"
)

type ServiceType string

const (
	ServiceBike          ServiceType = "BIKE"
	ServiceTruck         ServiceType = "TRUCK"
	ServicePackersMovers ServiceType = "PACKERS_AND_MOVERS"
)

func (s ServiceType) Valid() bool {
	switch s {
	case ServiceBike, ServiceTruck, ServicePackersMovers:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "CASH"
	PaymentCard   PaymentMethod = "CARD"
	PaymentUPI    PaymentMethod = "UPI"
	PaymentWallet PaymentMethod = "WALLET"
)

func (p PaymentMethod) Valid() bool {
	switch p {
	case PaymentCash, PaymentCard, PaymentUPI, PaymentWallet:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusFailed   PaymentStatus = "FAILED"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

// Booking is a customer's pickup/dropoff request. Status, driver binding and
// lifecycle timestamps are only ever written by the store's transition calls.
type Booking struct {
	ID            string `json:"id" gorm:"type:uuid;primaryKey"`
	BookingNumber string `json:"bookingNumber" gorm:"uniqueIndex;not null"`
	CustomerID    string `json:"customerId" gorm:"type:uuid;not null;index"`
	// DriverID references DriverProfile.ID.
	DriverID *string `json:"driverId" gorm:"type:uuid;index"`

	PickupAddress    string    `json:"pickupAddress" gorm:"not null"`
	PickupLatitude   float64   `json:"pickupLatitude" gorm:"not null"`
	PickupLongitude  float64   `json:"pickupLongitude" gorm:"not null"`
	DropoffAddress   string    `json:"dropoffAddress" gorm:"not null"`
	DropoffLatitude  float64   `json:"dropoffLatitude" gorm:"not null"`
	DropoffLongitude float64   `json:"dropoffLongitude" gorm:"not null"`
	PickupTime       time.Time `json:"pickupTime" gorm:"not null"`

	ServiceType ServiceType `json:"serviceType" gorm:"type:varchar(32);not null"`
	VehicleType string      `json:"vehicleType,omitempty"`
	VehicleName string      `json:"vehicleName,omitempty"`
	Notes       string      `json:"notes,omitempty"`

	DistanceKm    float64       `json:"distanceKm"`
	EstimatedFare float64       `json:"estimatedFare" gorm:"not null"`
	ActualFare    *float64      `json:"actualFare,omitempty"`
	PaymentMethod PaymentMethod `json:"paymentMethod" gorm:"type:varchar(16);not null;default:'CASH'"`
	PaymentStatus PaymentStatus `json:"paymentStatus" gorm:"type:varchar(16);not null;default:'PENDING'"`

	Status       BookingStatus `json:"status" gorm:"type:varchar(32);not null;default:'PENDING';index"`
	CancelReason string        `json:"cancelReason,omitempty"`

	AssignedAt  *time.Time `json:"assignedAt,omitempty"`
	AcceptedAt  *time.Time `json:"acceptedAt,omitempty"`
	ArrivedAt   *time.Time `json:"arrivedAt,omitempty"`
	PickedUpAt  *time.Time `json:"pickedUpAt,omitempty"`
	DeliveredAt *time.Time `json:"deliveredAt,omitempty"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (Booking) TableName() string {
	return "bookings"
}

func (b *Booking) BeforeCreate(*gorm.DB) error {
	b.Prepare()
	return nil
}

func (b *Booking) Prepare() {
	ensureID(&b.ID)
	if b.Status == "" {
		b.Status = StatusPending
	}
	if b.PaymentMethod == "" {
		b.PaymentMethod = PaymentCash
	}
	if b.PaymentStatus == "" {
		b.PaymentStatus = PaymentStatusPending
	}
}

// AssignedTo reports whether the booking is currently bound to the given driver profile.
func (b *Booking) AssignedTo(driverProfileID string) bool {
	return b.DriverID != nil && *b.DriverID == driverProfileID
}
