package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/minndara/site-admin/internal/model"
	"github.com/minndara/site-admin/pkg/auth"
	"github.com/minndara/site-admin/pkg/logger"
	"github.com/minndara/site-admin/pkg/security"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotAllowed         = errors.New("user is not authorised for the panel")
	ErrTokenRevoked       = errors.New("session has been closed")
)

// IdentityProvider verifies an email and password pair.
type IdentityProvider interface {
	SignIn(ctx context.Context, email, password string) (*model.Identity, error)
}

type User struct {
	UID          string
	Email        string
	PasswordHash string
}

// StaticProvider signs in against a fixed list of users with bcrypt hashes.
type StaticProvider struct {
	users  map[string]User
	hasher security.PasswordHasher
}

func NewStaticProvider(users []User, hasher security.PasswordHasher) *StaticProvider {
	p := &StaticProvider{users: make(map[string]User, len(users)), hasher: hasher}
	for _, u := range users {
		p.users[normalizeEmail(u.Email)] = u
	}
	return p
}

func (p *StaticProvider) SignIn(_ context.Context, email, password string) (*model.Identity, error) {
	u, ok := p.users[normalizeEmail(email)]
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if err := p.hasher.Compare(u.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	uid := u.UID
	if uid == "" {
		uid = normalizeEmail(u.Email)
	}
	return &model.Identity{UID: uid, Email: u.Email}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type Servicer interface {
	Login(ctx context.Context, email, password string) (*model.TokenResponse, error)
	Logout(ctx context.Context, token string) error
	ValidateToken(ctx context.Context, token string) (*model.TokenClaims, error)
}

type Service struct {
	provider IdentityProvider
	jwtSvc   auth.JWTService
	allowed  map[string]struct{}
	revoked  *cache.Cache
	logger   *logger.Logger
}

// NewService builds the panel sign-in service. Only emails on allowed may
// hold a session; an empty list admits nobody.
func NewService(provider IdentityProvider, jwtSvc auth.JWTService, allowed []string, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	s := &Service{
		provider: provider,
		jwtSvc:   jwtSvc,
		allowed:  make(map[string]struct{}, len(allowed)),
		revoked:  cache.New(cache.NoExpiration, 10*time.Minute),
		logger:   log,
	}
	for _, email := range allowed {
		s.allowed[normalizeEmail(email)] = struct{}{}
	}
	return s
}

func (s *Service) IsAllowed(email string) bool {
	_, ok := s.allowed[normalizeEmail(email)]
	return ok
}

func (s *Service) Login(ctx context.Context, email, password string) (*model.TokenResponse, error) {
	identity, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			s.logger.Warn("failed sign-in", "email", normalizeEmail(email))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to sign in: %w", err)
	}

	if !s.IsAllowed(identity.Email) {
		s.logger.Warn("sign-in rejected by allow-list", "email", identity.Email)
		return nil, ErrNotAllowed
	}

	token, expiresAt, err := s.jwtSvc.GenerateAccessToken(identity)
	if err != nil {
		return nil, err
	}

	s.logger.Info("operator signed in", "email", identity.Email)
	return &model.TokenResponse{AccessToken: token, ExpiresAt: expiresAt, Email: identity.Email}, nil
}

// Logout revokes the token until it would have expired anyway.
func (s *Service) Logout(_ context.Context, token string) error {
	claims, err := s.jwtSvc.ValidateToken(token)
	if err != nil {
		return err
	}
	ttl := cache.DefaultExpiration
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
		if ttl <= 0 {
			return nil
		}
	}
	s.revoked.Set(claims.ID, struct{}{}, ttl)
	return nil
}

// ValidateToken checks the signature and re-checks the allow-list, so
// removing an email ends its sessions.
func (s *Service) ValidateToken(_ context.Context, token string) (*model.TokenClaims, error) {
	claims, err := s.jwtSvc.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	if _, revoked := s.revoked.Get(claims.ID); revoked {
		return nil, ErrTokenRevoked
	}
	if !s.IsAllowed(claims.Email) {
		return nil, ErrNotAllowed
	}
	return claims, nil
}
