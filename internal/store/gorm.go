package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/chachabrian/haulbook-backend/internal/apperr"
	"github.com/chachabrian/haulbook-backend/internal/models"
)

// GormStore is the relational Store. The database must be opened with
// gorm.Config{TranslateError: true} so unique violations surface as
// gorm.ErrDuplicatedKey.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

var _ Store = (*GormStore)(nil)

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// validID reports whether id can be compared against a uuid column. Postgres
// rejects anything else with 22P02 instead of matching no row, so callers
// short-circuit to their not-found sentinel.
func validID(ids ...string) bool {
	for _, id := range ids {
		if len(id) != 36 {
			return false
		}
		if _, err := uuid.Parse(id); err != nil {
			return false
		}
	}
	return true
}

func notFound(err error, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}

func duplicate(err error, sentinel error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return sentinel
	}
	return err
}

// Bookings

func (s *GormStore) CreateBooking(ctx context.Context, b *models.Booking) error {
	return duplicate(s.db.WithContext(ctx).Create(b).Error, ErrDuplicate)
}

func (s *GormStore) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	if !validID(id) {
		return nil, apperr.ErrBookingNotFound
	}
	var b models.Booking
	if err := s.db.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		return nil, notFound(err, apperr.ErrBookingNotFound)
	}
	return &b, nil
}

func (s *GormStore) ListBookings(ctx context.Context, f BookingFilter) ([]models.Booking, int64, error) {
	if (f.CustomerID != "" && !validID(f.CustomerID)) || (f.DriverID != "" && !validID(f.DriverID)) {
		return []models.Booking{}, 0, nil
	}
	q := s.db.WithContext(ctx).Model(&models.Booking{})
	if f.CustomerID != "" {
		q = q.Where("customer_id = ?", f.CustomerID)
	}
	if f.DriverID != "" {
		q = q.Where("driver_id = ?", f.DriverID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := f.Page.Normalize()
	var bookings []models.Booking
	if err := q.Order("created_at DESC").Offset(page.Offset()).Limit(page.Limit).Find(&bookings).Error; err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

func bookingUpdates(t Transition, now time.Time) map[string]interface{} {
	u := map[string]interface{}{
		"status":     t.To,
		"updated_at": now,
	}
	c := t.Booking
	if c.AssignDriverID != nil {
		u["driver_id"] = *c.AssignDriverID
		u["accepted_at"] = nil
	}
	if c.ClearDriver {
		u["driver_id"] = nil
		u["accepted_at"] = nil
	}
	if c.ActualFare != nil {
		u["actual_fare"] = *c.ActualFare
	}
	if c.CancelReason != "" {
		u["cancel_reason"] = c.CancelReason
	}
	stamps := map[string]*time.Time{
		"assigned_at":  c.AssignedAt,
		"arrived_at":   c.ArrivedAt,
		"picked_up_at": c.PickedUpAt,
		"delivered_at": c.DeliveredAt,
		"cancelled_at": c.CancelledAt,
	}
	for col, at := range stamps {
		if at != nil {
			u[col] = *at
		}
	}
	return u
}

func (s *GormStore) ApplyTransition(ctx context.Context, t Transition) (*models.Booking, error) {
	if !validID(t.BookingID) {
		return nil, apperr.ErrBookingNotFound
	}
	if t.ExpectDriverID != nil && !validID(*t.ExpectDriverID) {
		return nil, apperr.ErrStateConflict
	}
	now := time.Now().UTC()
	var out models.Booking

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&models.Booking{}).Where("id = ? AND status = ?", t.BookingID, t.From)
		if t.ExpectDriverID != nil {
			q = q.Where("driver_id = ?", *t.ExpectDriverID)
		}
		res := q.Updates(bookingUpdates(t, now))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.Booking{}).Where("id = ?", t.BookingID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return apperr.ErrBookingNotFound
			}
			return apperr.ErrStateConflict
		}

		if err := applyTrip(tx, t, now); err != nil {
			return err
		}
		return tx.First(&out, "id = ?", t.BookingID).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func applyTrip(tx *gorm.DB, t Transition, now time.Time) error {
	status, projected := models.TripStatusFor(t.To)

	if trip := t.Trip.Ensure; trip != nil {
		trip.BookingID = t.BookingID
		trip.Status = status
		trip.StartTime = t.Trip.StartTime
		trip.EndTime = nil
		trip.EndLatitude = nil
		trip.EndLongitude = nil
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "booking_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"driver_profile_id", "vehicle_id", "status",
				"start_time", "end_time", "end_latitude", "end_longitude", "updated_at",
			}),
		}).Create(trip).Error
		if err != nil {
			return err
		}
	}

	if !projected {
		return nil
	}
	u := map[string]interface{}{"status": status, "updated_at": now}
	if t.Trip.StartTime != nil {
		u["start_time"] = *t.Trip.StartTime
	}
	if t.Trip.EndTime != nil {
		u["end_time"] = *t.Trip.EndTime
	}
	return tx.Model(&models.Trip{}).Where("booking_id = ?", t.BookingID).Updates(u).Error
}

func (s *GormStore) MarkAccepted(ctx context.Context, bookingID, driverID string, at time.Time) (*models.Booking, error) {
	if !validID(bookingID) {
		return nil, apperr.ErrBookingNotFound
	}
	if !validID(driverID) {
		return nil, apperr.ErrStateConflict
	}
	var out models.Booking
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Booking{}).
			Where("id = ? AND status = ? AND driver_id = ? AND accepted_at IS NULL",
				bookingID, models.StatusDriverAssigned, driverID).
			Updates(map[string]interface{}{"accepted_at": at, "updated_at": at})
		if res.Error != nil {
			return res.Error
		}
		if err := tx.First(&out, "id = ?", bookingID).Error; err != nil {
			return notFound(err, apperr.ErrBookingNotFound)
		}
		if res.RowsAffected == 0 && (out.Status != models.StatusDriverAssigned || !out.AssignedTo(driverID)) {
			return apperr.ErrStateConflict
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *GormStore) GetTrip(ctx context.Context, bookingID string) (*models.Trip, error) {
	if !validID(bookingID) {
		return nil, apperr.ErrTripNotFound
	}
	var t models.Trip
	if err := s.db.WithContext(ctx).First(&t, "booking_id = ?", bookingID).Error; err != nil {
		return nil, notFound(err, apperr.ErrTripNotFound)
	}
	return &t, nil
}

func (s *GormStore) UpdateTripPosition(ctx context.Context, bookingID string, lat, lon float64) error {
	if !validID(bookingID) {
		return apperr.ErrTripNotFound
	}
	res := s.db.WithContext(ctx).Model(&models.Trip{}).Where("booking_id = ?", bookingID).
		Updates(map[string]interface{}{"end_latitude": lat, "end_longitude": lon, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrTripNotFound
	}
	return nil
}

// Drivers and vehicles

func (s *GormStore) CreateDriverProfile(ctx context.Context, d *models.DriverProfile) error {
	return duplicate(s.db.WithContext(ctx).Omit("User", "Vehicles").Create(d).Error, apperr.ErrDriverProfileExists)
}

func (s *GormStore) GetDriverProfile(ctx context.Context, id string) (*models.DriverProfile, error) {
	if !validID(id) {
		return nil, apperr.ErrDriverNotFound
	}
	var d models.DriverProfile
	if err := s.db.WithContext(ctx).Preload("Vehicles").First(&d, "id = ?", id).Error; err != nil {
		return nil, notFound(err, apperr.ErrDriverNotFound)
	}
	return &d, nil
}

func (s *GormStore) GetDriverProfileByUser(ctx context.Context, userID string) (*models.DriverProfile, error) {
	if !validID(userID) {
		return nil, apperr.ErrDriverNotFound
	}
	var d models.DriverProfile
	if err := s.db.WithContext(ctx).Preload("Vehicles").First(&d, "user_id = ?", userID).Error; err != nil {
		return nil, notFound(err, apperr.ErrDriverNotFound)
	}
	return &d, nil
}

func (s *GormStore) ListDriverProfiles(ctx context.Context, p Page) ([]models.DriverProfile, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.DriverProfile{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	p = p.Normalize()
	var out []models.DriverProfile
	err := s.db.WithContext(ctx).Preload("User").Preload("Vehicles").
		Order("created_at DESC").Offset(p.Offset()).Limit(p.Limit).Find(&out).Error
	return out, total, err
}

func (s *GormStore) updateDriver(ctx context.Context, id string, updates map[string]interface{}) (*models.DriverProfile, error) {
	if !validID(id) {
		return nil, apperr.ErrDriverNotFound
	}
	res := s.db.WithContext(ctx).Model(&models.DriverProfile{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, apperr.ErrDriverNotFound
	}
	return s.GetDriverProfile(ctx, id)
}

func (s *GormStore) SetDriverVerified(ctx context.Context, id string, verified bool) (*models.DriverProfile, error) {
	return s.updateDriver(ctx, id, map[string]interface{}{"is_verified": verified, "updated_at": time.Now().UTC()})
}

func (s *GormStore) SetDriverOnline(ctx context.Context, id string, online bool) (*models.DriverProfile, error) {
	return s.updateDriver(ctx, id, map[string]interface{}{"is_online": online, "updated_at": time.Now().UTC()})
}

func (s *GormStore) UpdateDriverPosition(ctx context.Context, id string, lat, lon float64, at time.Time) error {
	if !validID(id) {
		return apperr.ErrDriverNotFound
	}
	res := s.db.WithContext(ctx).Model(&models.DriverProfile{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"current_latitude":     lat,
			"current_longitude":    lon,
			"last_location_update": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrDriverNotFound
	}
	return nil
}

func (s *GormStore) CreateVehicle(ctx context.Context, v *models.Vehicle) error {
	return duplicate(s.db.WithContext(ctx).Create(v).Error, apperr.ErrVehicleNumberTaken)
}

func (s *GormStore) GetVehicle(ctx context.Context, id string) (*models.Vehicle, error) {
	if !validID(id) {
		return nil, apperr.ErrVehicleNotFound
	}
	var v models.Vehicle
	if err := s.db.WithContext(ctx).First(&v, "id = ?", id).Error; err != nil {
		return nil, notFound(err, apperr.ErrVehicleNotFound)
	}
	return &v, nil
}

func (s *GormStore) ListVehicles(ctx context.Context, driverProfileID string) ([]models.Vehicle, error) {
	if !validID(driverProfileID) {
		return []models.Vehicle{}, nil
	}
	var out []models.Vehicle
	err := s.db.WithContext(ctx).Where("driver_profile_id = ?", driverProfileID).
		Order("created_at ASC").Find(&out).Error
	return out, err
}

func (s *GormStore) UpdateVehicleFlags(ctx context.Context, id string, verified, active *bool) (*models.Vehicle, error) {
	if !validID(id) {
		return nil, apperr.ErrVehicleNotFound
	}
	u := map[string]interface{}{"updated_at": time.Now().UTC()}
	if verified != nil {
		u["is_verified"] = *verified
	}
	if active != nil {
		u["is_active"] = *active
	}
	res := s.db.WithContext(ctx).Model(&models.Vehicle{}).Where("id = ?", id).Updates(u)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, apperr.ErrVehicleNotFound
	}
	return s.GetVehicle(ctx, id)
}

// Users

func (s *GormStore) CreateUser(ctx context.Context, u *models.User) error {
	return duplicate(s.db.WithContext(ctx).Create(u).Error, apperr.ErrEmailTaken)
}

func (s *GormStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	if !validID(id) {
		return nil, apperr.ErrUserNotFound
	}
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, notFound(err, apperr.ErrUserNotFound)
	}
	return &u, nil
}

func (s *GormStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, "email = ?", email).Error; err != nil {
		return nil, notFound(err, apperr.ErrUserNotFound)
	}
	return &u, nil
}

func (s *GormStore) ListUsersByRole(ctx context.Context, roles ...models.Role) ([]models.User, error) {
	var out []models.User
	err := s.db.WithContext(ctx).Where("role IN ? AND is_active = ?", roles, true).Find(&out).Error
	return out, err
}

func (s *GormStore) SetFCMToken(ctx context.Context, userID, token string) error {
	if !validID(userID) {
		return apperr.ErrUserNotFound
	}
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("fcm_token", token)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrUserNotFound
	}
	return nil
}

// Notifications

func (s *GormStore) CreateNotifications(ctx context.Context, ns []models.Notification) error {
	if len(ns) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&ns).Error
}

func (s *GormStore) ListNotifications(ctx context.Context, userID string, unreadOnly bool, p Page) ([]models.Notification, int64, error) {
	if !validID(userID) {
		return []models.Notification{}, 0, nil
	}
	q := s.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	p = p.Normalize()
	var out []models.Notification
	err := q.Order("created_at DESC").Offset(p.Offset()).Limit(p.Limit).Find(&out).Error
	return out, total, err
}

func (s *GormStore) MarkNotificationRead(ctx context.Context, userID, id string) error {
	if !validID(userID, id) {
		return apperr.ErrNotificationMissing
	}
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotificationMissing
	}
	return nil
}

func (s *GormStore) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	if !validID(userID) {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).Update("is_read", true)
	return res.RowsAffected, res.Error
}
