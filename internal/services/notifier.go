package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chachabrian/haulbook-backend/internal/models"
	"github.com/chachabrian/haulbook-backend/internal/store"
	"github.com/chachabrian/haulbook-backend/pkg/logger"
)

// Notifier receives lifecycle events after the booking write has committed.
// Implementations never report failure back to the caller.
type Notifier interface {
	BookingCreated(ctx context.Context, b *models.Booking)
	// StatusChanged is called once per committed transition. driverUserID is the
	// user behind the driver bound before or after the change, empty when none.
	StatusChanged(ctx context.Context, b *models.Booking, from models.BookingStatus, driverUserID string)
	SupportRequest(ctx context.Context, req SupportRequest)
}

type SupportRequest struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required,email"`
	Subject string `json:"subject" binding:"required"`
	Message string `json:"message" binding:"required"`
}

type Mailer interface {
	Send(ctx context.Context, to []string, subject, html string) error
}

type Pusher interface {
	Push(ctx context.Context, token string, payload NotificationPayload) error
}

type EventPublisher interface {
	PublishBookingEvent(ctx context.Context, e BookingEvent) error
}

// RealtimeSender delivers a typed message to every open connection of a user.
type RealtimeSender interface {
	SendToUser(userID, msgType string, data interface{})
}

// BookingEvent is the broker payload for booking lifecycle changes.
type BookingEvent struct {
	Event         string               `json:"event"`
	BookingID     string               `json:"bookingId"`
	BookingNumber string               `json:"bookingNumber"`
	CustomerID    string               `json:"customerId"`
	DriverID      *string              `json:"driverId,omitempty"`
	From          models.BookingStatus `json:"from,omitempty"`
	Status        models.BookingStatus `json:"status"`
	OccurredAt    time.Time            `json:"occurredAt"`
}

// RoutingKey is booking.created for new bookings and booking.<status> otherwise.
func (e BookingEvent) RoutingKey() string {
	if e.Event == eventBookingCreated {
		return "booking.created"
	}
	return "booking." + strings.ToLower(string(e.Status))
}

const (
	eventBookingCreated = "booking_created"
	eventStatusChanged  = "booking_status_changed"
)

type DispatcherConfig struct {
	EmailTimeout time.Duration
	// FallbackAdminEmails are used when no admin users exist yet.
	FallbackAdminEmails []string
}

// Dispatcher fans lifecycle events out to notification rows, websocket,
// push, broker and email. Rows and websocket are written inline; the network
// sinks run in tracked goroutines that Drain waits for.
type Dispatcher struct {
	notifications store.NotificationStore
	users         store.UserStore
	log           logger.ILogger
	cfg           DispatcherConfig

	mailer    Mailer
	pusher    Pusher
	publisher EventPublisher
	realtime  RealtimeSender

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

var _ Notifier = (*Dispatcher)(nil)

func NewDispatcher(notifications store.NotificationStore, users store.UserStore, log logger.ILogger, cfg DispatcherConfig) *Dispatcher {
	if cfg.EmailTimeout <= 0 {
		cfg.EmailTimeout = 5 * time.Second
	}
	return &Dispatcher{
		notifications: notifications,
		users:         users,
		log:           log,
		cfg:           cfg,
	}
}

func (d *Dispatcher) WithMailer(m Mailer) *Dispatcher {
	d.mailer = m
	return d
}

func (d *Dispatcher) WithPusher(p Pusher) *Dispatcher {
	d.pusher = p
	return d
}

func (d *Dispatcher) WithPublisher(p EventPublisher) *Dispatcher {
	d.publisher = p
	return d
}

func (d *Dispatcher) WithRealtime(r RealtimeSender) *Dispatcher {
	d.realtime = r
	return d
}

// Drain stops accepting async work and waits for in-flight sends or ctx.
func (d *Dispatcher) Drain(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) async(name string, timeout time.Duration, fn func(ctx context.Context) error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.log.Warning("dispatcher closed, dropping send", logger.String("sink", name))
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			d.log.Warning("notification dispatch failed", logger.String("sink", name), logger.Error(err))
		}
	}()
}

type recipient struct {
	userID string
	title  string
	body   string
}

func (d *Dispatcher) BookingCreated(ctx context.Context, b *models.Booking) {
	admins, err := d.users.ListUsersByRole(ctx, models.RoleAdmin, models.RoleSuperAdmin)
	if err != nil {
		d.log.Error("failed to load admins for booking notification", logger.String("bookingId", b.ID), logger.Error(err))
	}

	recipients := []recipient{{
		userID: b.CustomerID,
		title:  "Booking placed",
		body:   fmt.Sprintf("Your booking %s has been placed and is awaiting a driver.", b.BookingNumber),
	}}
	adminEmails := make([]string, 0, len(admins))
	for _, a := range admins {
		recipients = append(recipients, recipient{
			userID: a.ID,
			title:  "New booking",
			body:   fmt.Sprintf("Booking %s needs a driver: %s to %s.", b.BookingNumber, b.PickupAddress, b.DropoffAddress),
		})
		adminEmails = append(adminEmails, a.Email)
	}
	if len(adminEmails) == 0 {
		adminEmails = d.cfg.FallbackAdminEmails
	}

	d.deliver(ctx, b, models.NotificationBookingCreated, recipients)
	d.publish(b, eventBookingCreated, "")

	if d.mailer != nil && len(adminEmails) > 0 {
		subject, html := bookingCreatedEmail(b)
		d.async("email", d.cfg.EmailTimeout, func(ctx context.Context) error {
			return d.mailer.Send(ctx, adminEmails, subject, html)
		})
	}
}

func (d *Dispatcher) StatusChanged(ctx context.Context, b *models.Booking, from models.BookingStatus, driverUserID string) {
	customerMsg, driverMsg := statusMessages(b)
	recipients := []recipient{{userID: b.CustomerID, title: customerMsg[0], body: customerMsg[1]}}
	if driverUserID != "" && driverMsg[0] != "" {
		recipients = append(recipients, recipient{userID: driverUserID, title: driverMsg[0], body: driverMsg[1]})
	}

	d.deliver(ctx, b, models.NotificationBookingStatus, recipients)
	d.publish(b, eventStatusChanged, from)
}

func (d *Dispatcher) SupportRequest(_ context.Context, req SupportRequest) {
	if d.mailer == nil || len(d.cfg.FallbackAdminEmails) == 0 {
		d.log.Warning("support request received but no admin mailbox configured", logger.String("from", req.Email))
		return
	}
	subject, html := supportEmail(req)
	to := d.cfg.FallbackAdminEmails
	d.async("email", d.cfg.EmailTimeout, func(ctx context.Context) error {
		return d.mailer.Send(ctx, to, subject, html)
	})
}

// deliver persists one row per recipient, then pushes over websocket and FCM.
func (d *Dispatcher) deliver(ctx context.Context, b *models.Booking, typ models.NotificationType, recipients []recipient) {
	bookingID := b.ID
	rows := make([]models.Notification, 0, len(recipients))
	for _, r := range recipients {
		rows = append(rows, models.Notification{
			UserID:    r.userID,
			BookingID: &bookingID,
			Type:      typ,
			Title:     r.title,
			Message:   r.body,
		})
	}
	if err := d.notifications.CreateNotifications(ctx, rows); err != nil {
		d.log.Error("failed to store notifications", logger.String("bookingId", b.ID), logger.Error(err))
	}

	for i, r := range recipients {
		if d.realtime != nil {
			d.realtime.SendToUser(r.userID, "notification", rows[i])
			d.realtime.SendToUser(r.userID, "booking_update", b)
		}
		if d.pusher != nil {
			d.push(ctx, r, b)
		}
	}
}

func (d *Dispatcher) push(ctx context.Context, r recipient, b *models.Booking) {
	user, err := d.users.GetUser(ctx, r.userID)
	if err != nil {
		d.log.Warning("push skipped, user lookup failed", logger.String("userId", r.userID), logger.Error(err))
		return
	}
	if user.FCMToken == "" {
		return
	}
	payload := NotificationPayload{
		Title: r.title,
		Body:  r.body,
		Data: map[string]interface{}{
			"type":          "booking_status",
			"bookingId":     b.ID,
			"bookingNumber": b.BookingNumber,
			"status":        string(b.Status),
		},
		Tag: b.ID,
	}
	token := user.FCMToken
	d.async("fcm", 10*time.Second, func(ctx context.Context) error {
		return d.pusher.Push(ctx, token, payload)
	})
}

func (d *Dispatcher) publish(b *models.Booking, event string, from models.BookingStatus) {
	if d.publisher == nil {
		return
	}
	e := BookingEvent{
		Event:         event,
		BookingID:     b.ID,
		BookingNumber: b.BookingNumber,
		CustomerID:    b.CustomerID,
		DriverID:      b.DriverID,
		From:          from,
		Status:        b.Status,
		OccurredAt:    time.Now().UTC(),
	}
	d.async("amqp", 5*time.Second, func(ctx context.Context) error {
		return d.publisher.PublishBookingEvent(ctx, e)
	})
}

// statusMessages returns {title, body} for the customer and the driver.
// An empty driver title means the driver is not told.
func statusMessages(b *models.Booking) (customer, driver [2]string) {
	n := b.BookingNumber
	switch b.Status {
	case models.StatusDriverAssigned:
		customer = [2]string{"Driver assigned", fmt.Sprintf("A driver has been assigned to booking %s.", n)}
		driver = [2]string{"New assignment", fmt.Sprintf("You have been assigned booking %s. Pickup: %s.", n, b.PickupAddress)}
	case models.StatusDriverArrived:
		customer = [2]string{"Driver arrived", fmt.Sprintf("Your driver has arrived at the pickup for booking %s.", n)}
	case models.StatusInProgress:
		customer = [2]string{"Trip started", fmt.Sprintf("Booking %s is on its way to %s.", n, b.DropoffAddress)}
	case models.StatusCompleted:
		fare := b.EstimatedFare
		if b.ActualFare != nil {
			fare = *b.ActualFare
		}
		customer = [2]string{"Delivered", fmt.Sprintf("Booking %s is complete. Total fare: %.2f.", n, fare)}
		driver = [2]string{"Trip completed", fmt.Sprintf("Booking %s is complete.", n)}
	case models.StatusCancelled:
		customer = [2]string{"Booking cancelled", fmt.Sprintf("Booking %s has been cancelled.", n)}
		driver = [2]string{"Assignment cancelled", fmt.Sprintf("Booking %s has been cancelled.", n)}
	default:
		customer = [2]string{"Booking updated", fmt.Sprintf("Booking %s is now %s.", n, b.Status)}
	}
	return customer, driver
}
