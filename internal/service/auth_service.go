package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/display-support/internal/auth"
	"github.com/spec-kit/display-support/internal/domain"
	"github.com/spec-kit/display-support/internal/repository"
	apperrors "github.com/spec-kit/display-support/pkg/util/errorutil"
)

// AuthService authenticates staff members against the staff directory.
type AuthService struct {
	staff    repository.StaffRepository
	tokenMgr *auth.TokenManager
	logger   *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(staff repository.StaffRepository, tokens *auth.TokenManager, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{staff: staff, tokenMgr: tokens, logger: logger}
}

// LoginStaff verifies credentials and issues a bearer token.
func (s *AuthService) LoginStaff(ctx context.Context, email, password string) (*domain.StaffMember, string, time.Time, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, "", time.Time{}, apperrors.NewInvalidInput("email and password required", nil)
	}

	staff, err := s.staff.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrStaffNotFound) {
			return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}
	if !staff.Active {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("account disabled")
	}
	if err := auth.ComparePassword(staff.PasswordHash, password); err != nil {
		s.logger.Info("staff login rejected", zap.String("staff_id", staff.ID))
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}

	token, exp, err := s.tokenMgr.GenerateToken(staff)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}
	s.logger.Info("staff logged in", zap.String("staff_id", staff.ID))
	return staff, token, exp, nil
}

// TokenManager exposes token manager for middleware wiring.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
