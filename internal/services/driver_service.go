package services

import (
	"context"
	"strings"

	"github.com/chachabrian/haulbook-backend/internal/apperr"
	"github.com/chachabrian/haulbook-backend/internal/models"
	"github.com/chachabrian/haulbook-backend/internal/store"
	"github.com/chachabrian/haulbook-backend/pkg/logger"
)

type DriverProfileInput struct {
	LicenseNumber string `json:"licenseNumber" binding:"required"`
	City          string `json:"city"`
}

type VehicleInput struct {
	VehicleNumber string  `json:"vehicleNumber" binding:"required"`
	VehicleType   string  `json:"vehicleType" binding:"required"`
	Name          string  `json:"name"`
	CapacityKg    float64 `json:"capacityKg" binding:"gte=0"`
}

// DriverService covers driver and vehicle onboarding plus admin verification.
type DriverService struct {
	store store.Store
	log   logger.ILogger
}

func NewDriverService(st store.Store, log logger.ILogger) *DriverService {
	return &DriverService{store: st, log: log}
}

func (s *DriverService) CreateProfile(ctx context.Context, userID string, in DriverProfileInput) (*models.DriverProfile, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role != models.RoleDriver {
		return nil, apperr.Forbidden("only driver accounts can create a driver profile")
	}

	p := &models.DriverProfile{
		UserID:        userID,
		LicenseNumber: strings.TrimSpace(in.LicenseNumber),
		City:          strings.TrimSpace(in.City),
	}
	if err := s.store.CreateDriverProfile(ctx, p); err != nil {
		return nil, err
	}
	s.log.Info("driver profile created", logger.String("driverId", p.ID), logger.String("userId", userID))
	return s.store.GetDriverProfile(ctx, p.ID)
}

func (s *DriverService) Profile(ctx context.Context, userID string) (*models.DriverProfile, error) {
	return s.store.GetDriverProfileByUser(ctx, userID)
}

func (s *DriverService) SetOnline(ctx context.Context, userID string, online bool) (*models.DriverProfile, error) {
	p, err := s.store.GetDriverProfileByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.store.SetDriverOnline(ctx, p.ID, online)
}

// AddVehicle registers a vehicle. It is active but unverified until an admin approves it.
func (s *DriverService) AddVehicle(ctx context.Context, userID string, in VehicleInput) (*models.Vehicle, error) {
	p, err := s.store.GetDriverProfileByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	v := &models.Vehicle{
		DriverProfileID: p.ID,
		VehicleNumber:   strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(in.VehicleNumber), " ", "")),
		VehicleType:     strings.TrimSpace(in.VehicleType),
		Name:            strings.TrimSpace(in.Name),
		CapacityKg:      in.CapacityKg,
		IsActive:        true,
	}
	if v.VehicleNumber == "" {
		return nil, apperr.Validation("vehicleNumber is required")
	}
	if err := s.store.CreateVehicle(ctx, v); err != nil {
		return nil, err
	}
	s.log.Info("vehicle registered", logger.String("vehicleId", v.ID), logger.String("driverId", p.ID))
	return v, nil
}

func (s *DriverService) Vehicles(ctx context.Context, userID string) ([]models.Vehicle, error) {
	p, err := s.store.GetDriverProfileByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.store.ListVehicles(ctx, p.ID)
}

func (s *DriverService) ListDrivers(ctx context.Context, page store.Page) ([]models.DriverProfile, int64, error) {
	return s.store.ListDriverProfiles(ctx, page)
}

func (s *DriverService) VerifyDriver(ctx context.Context, driverID string, verified bool) (*models.DriverProfile, error) {
	p, err := s.store.SetDriverVerified(ctx, driverID, verified)
	if err != nil {
		return nil, err
	}
	s.log.Info("driver verification changed", logger.String("driverId", driverID), logger.Bool("verified", verified))
	return p, nil
}

func (s *DriverService) UpdateVehicle(ctx context.Context, vehicleID string, verified, active *bool) (*models.Vehicle, error) {
	if verified == nil && active == nil {
		return nil, apperr.Validation("isVerified or isActive is required")
	}
	return s.store.UpdateVehicleFlags(ctx, vehicleID, verified, active)
}
