package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/krishi-prebook/internal/application"
	domain "github.com/Zhima-Mochi/krishi-prebook/internal/domain/identity"
	"github.com/Zhima-Mochi/krishi-prebook/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const identityService = "identity-service"

type Hasher interface {
	Hash(plain string) ([]byte, error)
	Compare(hash []byte, plain string) error
}

type Service struct {
	users    domain.Repository
	sessions domain.SessionStore
	hasher   Hasher
	ids      application.IDGenerator
	now      application.Clock
	in       application.Instruments
}

func NewService(
	users domain.Repository,
	sessions domain.SessionStore,
	hasher Hasher,
	ids application.IDGenerator,
	tel observability.Observability,
) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		ids:      ids,
		now:      time.Now,
		in:       application.NewInstruments(tel, identityService),
	}
}

// Session is a signed-in user together with the bearer token that identifies them.
type Session struct {
	User  *domain.User
	Token string
}

func (s *Service) Register(ctx context.Context, reg domain.Registration) (_ *Session, err error) {
	ctx, call := s.in.Begin(ctx, "Register", "identity.register")
	defer func() { call.End(err) }()

	reg = reg.Normalize()
	if err := reg.Validate(); err != nil {
		call.Status("VALIDATION_FAILED")
		return nil, err
	}

	hash, err := s.hasher.Hash(reg.Password)
	if err != nil {
		call.Status("HASH_FAILED")
		return nil, fmt.Errorf("identity: hash password: %w", err)
	}

	user := &domain.User{
		ID:           s.ids.NewID(),
		Name:         reg.Name,
		Email:        reg.Email,
		Phone:        reg.Phone,
		Address:      reg.Address,
		Pincode:      reg.Pincode,
		Role:         reg.Role,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.Insert(ctx, user); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			call.Status("EMAIL_TAKEN")
		} else {
			call.Status("REPO_INSERT_FAILED")
		}
		return nil, err
	}
	call.Span().SetAttributes(attribute.String("user.id", user.ID), attribute.String("user.role", string(user.Role)))

	return s.openSession(ctx, user)
}

func (s *Service) Login(ctx context.Context, email, password string) (_ *Session, err error) {
	ctx, call := s.in.Begin(ctx, "Login", "identity.login")
	defer func() { call.End(err) }()

	reg := domain.Registration{Email: email}.Normalize()
	user, err := s.users.FindByEmail(ctx, reg.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			call.Status("UNKNOWN_EMAIL")
			return nil, domain.ErrInvalidCredentials
		}
		call.Status("REPO_LOOKUP_FAILED")
		return nil, err
	}
	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		call.Status("BAD_PASSWORD")
		return nil, domain.ErrInvalidCredentials
	}
	return s.openSession(ctx, user)
}

func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Revoke(ctx, token)
}

// Authenticate resolves a bearer token to its user.
func (s *Service) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, domain.ErrUnauthenticated
	}
	userID, err := s.sessions.Lookup(ctx, token)
	if err != nil {
		return nil, domain.ErrUnauthenticated
	}
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthenticated
		}
		return nil, err
	}
	return user, nil
}

func (s *Service) openSession(ctx context.Context, user *domain.User) (*Session, error) {
	token := s.ids.NewID()
	if err := s.sessions.Put(ctx, token, user.ID); err != nil {
		return nil, fmt.Errorf("identity: open session: %w", err)
	}
	return &Session{User: user, Token: token}, nil
}
