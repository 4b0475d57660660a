package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/protocol-service/internal/auth"
	"github.com/spec-kit/protocol-service/internal/config"
	"github.com/spec-kit/protocol-service/internal/domain"
	"github.com/spec-kit/protocol-service/internal/repository"
	"github.com/spec-kit/protocol-service/pkg/util"
)

// AuthService issues bearer tokens for drivers and back-office actors.
type AuthService struct {
	accounts repository.AccountRepository
	tokens   *auth.TokenManager
	cfg      config.AuthConfig
}

// NewAuthService constructs the service.
func NewAuthService(cfg config.AuthConfig, accounts repository.AccountRepository) *AuthService {
	return &AuthService{
		accounts: accounts,
		tokens:   auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		cfg:      cfg,
	}
}

// LoginResult carries the issued token and the authenticated actor.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Actor     domain.Actor
}

// Login verifies credentials and issues a token with the role claim.
func (s *AuthService) Login(ctx context.Context, login, password string) (*LoginResult, error) {
	account, err := s.accounts.GetByLogin(ctx, login)
	if err != nil {
		if util.IsCode(err, "NOT_FOUND") {
			return nil, util.NewUnauthorized("invalid credentials")
		}
		return nil, err
	}
	if !account.IsActive {
		return nil, util.NewUnauthorized("account disabled")
	}
	if err := auth.ComparePassword(account.PasswordHash, password); err != nil {
		return nil, util.NewUnauthorized("invalid credentials")
	}

	token, expiresAt, err := s.tokens.GenerateToken(account.ID, account.Role)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		Actor:     domain.ActorFromAccount(account),
	}, nil
}

// RegisterAccountInput describes a new account to provision.
type RegisterAccountInput struct {
	Login    string
	Name     string
	Password string
	Role     domain.ActorRole
	Unit     string
	Phone    string
}

// RegisterAccount provisions a new actor account. Only admins may call
// it; there is no self-service signup for field drivers.
func (s *AuthService) RegisterAccount(ctx context.Context, actor domain.Actor, input RegisterAccountInput) (*domain.Account, error) {
	if !actor.CanAdminister() {
		return nil, util.NewForbidden("admin role required")
	}

	details := map[string]any{}
	if strings.TrimSpace(input.Login) == "" {
		details["login"] = "is required"
	}
	if strings.TrimSpace(input.Name) == "" {
		details["name"] = "is required"
	}
	if len(input.Password) < 8 {
		details["password"] = "must be at least 8 characters"
	}
	if !domain.ValidActorRole(input.Role) {
		details["role"] = "must be one of: driver, validator, dispatcher, admin"
	}
	if len(details) > 0 {
		return nil, util.NewValidationError("account has missing or invalid fields", details)
	}

	if _, err := s.accounts.GetByLogin(ctx, input.Login); err == nil {
		return nil, util.NewConflict("login already taken", map[string]any{"login": input.Login})
	} else if !util.IsCode(err, "NOT_FOUND") {
		return nil, err
	}

	hash, err := auth.HashPassword(input.Password, s.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	account := &domain.Account{
		ID:           uuid.NewString(),
		Login:        strings.TrimSpace(input.Login),
		Name:         strings.TrimSpace(input.Name),
		Role:         input.Role,
		Unit:         input.Unit,
		Phone:        input.Phone,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// EnsureBootstrapAdmin creates the initial admin account when the
// configured login does not exist yet. Without it a fresh deployment
// has no account that can reach the provisioning endpoint.
func (s *AuthService) EnsureBootstrapAdmin(ctx context.Context, login, password string) error {
	if strings.TrimSpace(login) == "" || password == "" {
		return nil
	}
	if _, err := s.accounts.GetByLogin(ctx, login); err == nil {
		return nil
	} else if !util.IsCode(err, "NOT_FOUND") {
		return err
	}

	hash, err := auth.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return err
	}
	return s.accounts.Create(ctx, &domain.Account{
		ID:           uuid.NewString(),
		Login:        strings.TrimSpace(login),
		Name:         "Administrator",
		Role:         domain.RoleAdmin,
		PasswordHash: hash,
		IsActive:     true,
	})
}

// TokenManager exposes the manager for middleware wiring.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokens
}
