package businessflow

import (
	"context"
	"crypto/subtle"

	"github.com/amirphl/Kitsune-CRM/app/dto"
	"github.com/amirphl/Kitsune-CRM/app/services"
	"github.com/amirphl/Kitsune-CRM/config"
	"github.com/amirphl/Kitsune-CRM/models"
	"github.com/amirphl/Kitsune-CRM/repository"
	"github.com/amirphl/Kitsune-CRM/utils"
	"golang.org/x/crypto/bcrypt"
)

// dashboardUserID identifies the single configured dashboard credential in
// JWT claims and audit entries.
const dashboardUserID uint = 1

// LoginFlow handles dashboard authentication
type LoginFlow interface {
	Login(ctx context.Context, req *dto.LoginRequest, metadata *ClientMetadata) (*dto.LoginResponse, error)
	Refresh(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.LoginResponse, error)
}

// LoginFlowImpl implements LoginFlow against the configured admin credential
type LoginFlowImpl struct {
	adminCfg     *config.AdminConfig
	tokenService services.TokenService
	auditRepo    repository.AuditLogRepository
}

// NewLoginFlow creates a new login flow
func NewLoginFlow(adminCfg *config.AdminConfig, tokenService services.TokenService, auditRepo repository.AuditLogRepository) LoginFlow {
	return &LoginFlowImpl{
		adminCfg:     adminCfg,
		tokenService: tokenService,
		auditRepo:    auditRepo,
	}
}

// Login validates the dashboard credential and issues a token pair
func (s *LoginFlowImpl) Login(ctx context.Context, req *dto.LoginRequest, metadata *ClientMetadata) (*dto.LoginResponse, error) {
	emailMatches := subtle.ConstantTimeCompare([]byte(req.Email), []byte(s.adminCfg.Email)) == 1
	passwordErr := bcrypt.CompareHashAndPassword([]byte(s.adminCfg.PasswordHash), []byte(req.Password))

	if !emailMatches || passwordErr != nil {
		recordAudit(ctx, s.auditRepo, models.AuditActionLoginFailed, "dashboard login rejected", metadata, false, utils.ToPtr("invalid credentials"))
		return nil, NewBusinessError("UNAUTHORIZED", "Invalid email or password", ErrIncorrectCredentials)
	}

	accessToken, refreshToken, err := s.tokenService.GenerateTokens(dashboardUserID)
	if err != nil {
		return nil, NewBusinessError("TOKEN_GENERATION_FAILED", "Failed to generate tokens", err)
	}

	recordAudit(ctx, s.auditRepo, models.AuditActionLoginSuccessful, "dashboard login", metadata, true, nil)

	return &dto.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    utils.AccessTokenTTLSeconds,
		TokenType:    "Bearer",
	}, nil
}

// Refresh exchanges a refresh token for a new pair
func (s *LoginFlowImpl) Refresh(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.LoginResponse, error) {
	accessToken, refreshToken, err := s.tokenService.RefreshToken(req.RefreshToken)
	if err != nil {
		return nil, NewBusinessError("UNAUTHORIZED", "Invalid refresh token", err)
	}

	return &dto.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    utils.AccessTokenTTLSeconds,
		TokenType:    "Bearer",
	}, nil
}
