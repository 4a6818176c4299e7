package database

import (
	"github.com/chachabrian/haulbook-backend/internal/models"
	"gorm.io/gorm"
)

// constraints are applied after AutoMigrate. Each is dropped and re-added so
// edits here take effect on existing databases.
var constraints = []struct {
	table string
	name  string
	check string
}{
	{
		table: "bookings",
		name:  "bookings_status_check",
		check: `status IN ('PENDING','CONFIRMED','DRIVER_ASSIGNED','DRIVER_ARRIVED','IN_PROGRESS','COMPLETED','CANCELLED','FAILED')`,
	},
	{
		table: "bookings",
		name:  "bookings_driver_binding_check",
		check: `(driver_id IS NOT NULL) = (status IN ('DRIVER_ASSIGNED','DRIVER_ARRIVED','IN_PROGRESS','COMPLETED'))`,
	},
	{
		table: "trips",
		name:  "trips_status_check",
		check: `status IN ('STARTED','IN_PROGRESS','COMPLETED','CANCELLED','RELEASED')`,
	},
	{
		table: "users",
		name:  "users_role_check",
		check: `role IN ('CUSTOMER','DRIVER','ADMIN','SUPER_ADMIN')`,
	},
}

func RunMigrations(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.DriverProfile{},
		&models.Vehicle{},
		&models.Booking{},
		&models.Trip{},
		&models.Notification{},
	)
	if err != nil {
		return err
	}

	for _, c := range constraints {
		if err := db.Exec(`ALTER TABLE ` + c.table + ` DROP CONSTRAINT IF EXISTS ` + c.name).Error; err != nil {
			return err
		}
		if err := db.Exec(`ALTER TABLE ` + c.table + ` ADD CONSTRAINT ` + c.name + ` CHECK (` + c.check + `)`).Error; err != nil {
			return err
		}
	}

	// Case-insensitive lookups on login hit this index.
	return db.Exec(`CREATE INDEX IF NOT EXISTS idx_users_email_lower ON users (LOWER(email))`).Error
}
