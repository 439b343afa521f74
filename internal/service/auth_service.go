package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/crm-service/internal/auth"
	"github.com/spec-kit/crm-service/internal/config"
	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/repository"
	apperrors "github.com/spec-kit/crm-service/pkg/util/errorutil"
)

// AuthService coordinates registration and login flows.
type AuthService struct {
	users      repository.UserRepository
	companies  repository.CompanyRepository
	tokenMgr   *auth.TokenManager
	limiter    *auth.LoginLimiter
	logger     *zap.Logger
	bcryptCost int
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	UserRepo    repository.UserRepository
	CompanyRepo repository.CompanyRepository
	Limiter     *auth.LoginLimiter
	Logger      *zap.Logger
}

// RegisterInput creates an identity directly. Only admins reach it, so it is
// the one place a company id is taken from a request body.
type RegisterInput struct {
	Name       string
	Email      string
	Password   string
	Role       domain.Role
	Department domain.Department
	CompanyID  string
}

// LoginResult is a signed token for an authenticated identity.
type LoginResult struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	return &AuthService{
		users:      deps.UserRepo,
		companies:  deps.CompanyRepo,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		limiter:    deps.Limiter,
		logger:     orNopLogger(deps.Logger).Named("auth"),
		bcryptCost: cfg.Auth.BcryptCost,
	}
}

// Register creates an active identity of any role.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = normalizeEmail(input.Email)
	if input.Name == "" || input.Email == "" || input.Password == "" || input.Role == "" {
		return nil, apperrors.NewValidationError("name, email, password and role are required", nil)
	}
	if !input.Role.Valid() {
		return nil, invalidField("role")
	}
	if input.Department != "" && !input.Department.Valid() {
		return nil, invalidField("department")
	}
	if input.CompanyID != "" {
		if !isUUID(input.CompanyID) {
			return nil, apperrors.NewValidationError("Invalid companyId", nil)
		}
		if _, err := s.companies.GetByID(ctx, input.CompanyID); err != nil {
			return nil, storeError(err, "Company")
		}
	}
	if _, err := s.users.GetByEmail(ctx, input.Email); err == nil {
		return nil, apperrors.NewConflict("Email already in use", nil)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	user := &domain.User{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: hash,
		Role:         input.Role,
		Department:   input.Department,
		CompanyID:    input.CompanyID,
		Status:       domain.UserStatusActive,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("Email already in use", nil)
		}
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// LoginBusinessManager authenticates a company's business manager.
func (s *AuthService) LoginBusinessManager(ctx context.Context, ip, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)
	if err := s.throttle(ctx, ip, email); err != nil {
		return nil, err
	}
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && user.Role != domain.RoleBusinessManager) {
		return nil, apperrors.NewNotFound("Business Manager", nil)
	}
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !user.IsActive() {
		return nil, apperrors.NewForbidden("Account not active or not approved yet")
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("Invalid credentials")
	}
	return s.issue(ctx, ip, user)
}

// Login authenticates any active identity.
func (s *AuthService) Login(ctx context.Context, ip, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)
	if err := s.throttle(ctx, ip, email); err != nil {
		return nil, err
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, storeError(err, "User")
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("Invalid password")
	}
	if !user.IsActive() {
		return nil, apperrors.NewForbidden("Account is inactive")
	}
	return s.issue(ctx, ip, user)
}

// EnsureAdmin creates the configured administrator when it does not exist yet.
func (s *AuthService) EnsureAdmin(ctx context.Context, cfg config.AdminConfig) error {
	email := normalizeEmail(cfg.Email)
	if email == "" || cfg.Password == "" {
		return nil
	}
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		name = "Administrator"
	}
	_, err := s.Register(ctx, RegisterInput{Name: name, Email: email, Password: cfg.Password, Role: domain.RoleAdmin})
	if apperrors.IsCode(err, "CONFLICT") {
		return nil
	}
	if err == nil {
		s.logger.Info("admin account created", zap.String("email", email))
	}
	return err
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) throttle(ctx context.Context, ip, email string) error {
	ok, err := s.limiter.Allow(ctx, ip, email)
	if err != nil {
		// fail open
		s.logger.Warn("login limiter unavailable", zap.Error(err))
		return nil
	}
	if !ok {
		return apperrors.NewTooManyRequests("Too many login attempts, please try again later")
	}
	return nil
}

func (s *AuthService) issue(ctx context.Context, ip string, user *domain.User) (*LoginResult, error) {
	token, exp, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if err := s.limiter.Reset(ctx, ip, user.Email); err != nil {
		s.logger.Warn("login limiter reset failed", zap.Error(err))
	}
	return &LoginResult{User: user, Token: token, ExpiresAt: exp}, nil
}
