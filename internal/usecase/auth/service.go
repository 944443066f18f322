package auth

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"city-pulse/internal/config"
	"city-pulse/internal/pkg/jwt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotConfigured      = errors.New("operator auth not configured")
)

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AuthContext identifies the caller at the HTTP boundary. Authorization is
// a boundary concern only; orchestration never sees it.
type AuthContext struct {
	Operator string
}

type Usecase interface {
	Login(name, password string) (TokenPair, error)
	Refresh(refreshToken string) (TokenPair, error)
}

// Service authenticates the configured operator and issues HMAC tokens.
type Service struct {
	cfg config.AuthConfig
	jwt jwt.Service
}

func NewService(cfg config.AuthConfig, jwtSvc jwt.Service) *Service {
	return &Service{cfg: cfg, jwt: jwtSvc}
}

func (s *Service) Login(name, password string) (TokenPair, error) {
	if s == nil || s.jwt == nil {
		return TokenPair{}, ErrNotConfigured
	}
	if s.cfg.OperatorName == "" || s.cfg.OperatorPasswordHash == "" {
		return TokenPair{}, ErrNotConfigured
	}

	name = strings.TrimSpace(name)
	if name == "" || password == "" {
		return TokenPair{}, ErrInvalidCredentials
	}
	if !strings.EqualFold(name, s.cfg.OperatorName) {
		return TokenPair{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.cfg.OperatorPasswordHash), []byte(password)); err != nil {
		return TokenPair{}, ErrInvalidCredentials
	}

	return s.issue(name)
}

func (s *Service) Refresh(refreshToken string) (TokenPair, error) {
	if s == nil || s.jwt == nil {
		return TokenPair{}, ErrNotConfigured
	}
	claims, err := s.jwt.ValidateToken(refreshToken)
	if err != nil {
		return TokenPair{}, ErrInvalidCredentials
	}
	if claims.TokenType != jwt.TokenTypeRefresh {
		return TokenPair{}, ErrInvalidCredentials
	}
	return s.issue(claims.Operator)
}

func (s *Service) issue(operator string) (TokenPair, error) {
	access, err := s.jwt.GenerateAccessToken(operator)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.jwt.GenerateRefreshToken(operator)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
