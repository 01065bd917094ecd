package service

import (
	"context"
	"time"

	"garagebook/internal/auth"
	"garagebook/internal/config"
	"garagebook/internal/domain"

	"github.com/rs/zerolog"
)

type tokenIssuer interface {
	Issue(email string) (string, error)
}

// AuthService checks the single admin credential pair and issues tokens.
type AuthService struct {
	cfg     config.AuthConfig
	tokens  tokenIssuer
	limiter domain.AttemptLimiter
	limit   int
	window  time.Duration
	logger  *zerolog.Logger
}

func NewAuthService(cfg config.AuthConfig, tokens tokenIssuer, limiter domain.AttemptLimiter, logger *zerolog.Logger) *AuthService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &AuthService{
		cfg:     cfg,
		tokens:  tokens,
		limiter: limiter,
		limit:   cfg.LoginAttempts,
		window:  time.Duration(cfg.LoginWindowSeconds) * time.Second,
		logger:  logger,
	}
}

// Login returns a signed token for valid admin credentials. clientKey
// identifies the caller for attempt limiting, usually the client IP.
func (s *AuthService) Login(ctx context.Context, email, password, clientKey string) (string, error) {
	if s.limiter != nil && s.limit > 0 {
		allowed, err := s.limiter.Allow(ctx, "login:"+clientKey, s.limit, s.window)
		if err != nil {
			// limiter outage must not lock the admin out
			s.logger.Warn().Err(err).Msg("Login attempt limiter unavailable")
		} else if !allowed {
			s.logger.Warn().Str("client", clientKey).Msg("Too many login attempts")
			return "", ErrTooManyAttempts
		}
	}

	if !s.checkCredentials(email, password) {
		s.logger.Warn().Str("client", clientKey).Msg("Invalid admin credentials")
		return "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(s.cfg.AdminEmail)
	if err != nil {
		return "", err
	}
	s.logger.Info().Str("client", clientKey).Msg("Admin logged in")
	return token, nil
}

func (s *AuthService) checkCredentials(email, password string) bool {
	emailOK := auth.ConstantTimeEqual(email, s.cfg.AdminEmail)

	var passwordOK bool
	if s.cfg.AdminPasswordHash != "" {
		passwordOK = auth.CheckPassword(s.cfg.AdminPasswordHash, password)
	} else {
		passwordOK = s.cfg.AdminPassword != "" && auth.ConstantTimeEqual(password, s.cfg.AdminPassword)
	}

	return emailOK && passwordOK
}
