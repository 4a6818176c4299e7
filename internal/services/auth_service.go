package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/chachabrian/haulbook-backend/internal/apperr"
	"github.com/chachabrian/haulbook-backend/internal/models"
	"github.com/chachabrian/haulbook-backend/internal/store"
	"github.com/chachabrian/haulbook-backend/pkg/logger"
	"github.com/chachabrian/haulbook-backend/pkg/utils"
)

type RegisterInput struct {
	Name     string      `json:"name" binding:"required"`
	Email    string      `json:"email" binding:"required,email"`
	Phone    string      `json:"phone"`
	Password string      `json:"password" binding:"required,min=8"`
	Role     models.Role `json:"role"`
}

type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type AuthService struct {
	users  store.UserStore
	secret string
	ttl    time.Duration
	log    logger.ILogger
}

func NewAuthService(users store.UserStore, secret string, ttl time.Duration, log logger.ILogger) *AuthService {
	return &AuthService{users: users, secret: secret, ttl: ttl, log: log}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a customer or driver account. Admin accounts are never
// self-registered.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	role := in.Role
	if role == "" {
		role = models.RoleCustomer
	}
	if role != models.RoleCustomer && role != models.RoleDriver {
		return nil, apperr.Validation("role must be CUSTOMER or DRIVER")
	}

	user := &models.User{
		Name:     strings.TrimSpace(in.Name),
		Email:    normalizeEmail(in.Email),
		Phone:    strings.TrimSpace(in.Phone),
		Role:     role,
		IsActive: true,
	}
	if err := user.SetPassword(in.Password); err != nil {
		return nil, apperr.Internal(err)
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	s.log.Info("user registered", logger.String("userId", user.ID), logger.String("role", string(role)))
	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(in.Email))
	if errors.Is(err, apperr.ErrUserNotFound) {
		return nil, apperr.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive || user.CheckPassword(in.Password) != nil {
		return nil, apperr.ErrInvalidCredentials
	}
	return s.issue(user)
}

func (s *AuthService) Profile(ctx context.Context, userID string) (*models.User, error) {
	return s.users.GetUser(ctx, userID)
}

// SeedSuperAdmin creates the bootstrap SUPER_ADMIN when no user has that email yet.
func (s *AuthService) SeedSuperAdmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	email = normalizeEmail(email)
	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, apperr.ErrUserNotFound) {
		return err
	}

	admin := &models.User{Name: "Super Admin", Email: email, Role: models.RoleSuperAdmin, IsActive: true}
	if err := admin.SetPassword(password); err != nil {
		return err
	}
	if err := s.users.CreateUser(ctx, admin); err != nil && !errors.Is(err, apperr.ErrEmailTaken) {
		return err
	}
	s.log.Info("seeded super admin", logger.String("email", email))
	return nil
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	token, err := utils.GenerateToken(user, s.secret, s.ttl)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &AuthResult{Token: token, User: user}, nil
}
