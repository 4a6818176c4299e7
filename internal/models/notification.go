package models

import (
	"time"

	"gorm.io/gorm"
)

type NotificationType string

const (
	NotificationBookingCreated NotificationType = "BOOKING_CREATED"
	NotificationBookingStatus  NotificationType = "BOOKING_STATUS"
)

// Notification is an append-only in-app message. Only IsRead ever changes.
type Notification struct {
	ID        string           `json:"id" gorm:"type:uuid;primaryKey"`
	UserID    string           `json:"userId" gorm:"type:uuid;not null;index"`
	BookingID *string          `json:"bookingId,omitempty" gorm:"type:uuid;index"`
	Type      NotificationType `json:"type" gorm:"type:varchar(32);not null"`
	Title     string           `json:"title" gorm:"not null"`
	Message   string           `json:"message" gorm:"not null"`
	IsRead    bool             `json:"isRead" gorm:"not null;default:false"`
	CreatedAt time.Time        `json:"createdAt"`
}

func (Notification) TableName() string {
	return "notifications"
}

func (n *Notification) BeforeCreate(*gorm.DB) error {
	n.Prepare()
	return nil
}

func (n *Notification) Prepare() {
	ensureID(&n.ID)
}
