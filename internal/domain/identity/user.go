package identity

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strings"
	"time"
)

var (
	ErrUnauthenticated     = errors.New("identity: not signed in")
	ErrForbidden           = errors.New("identity: not allowed for this role")
	ErrInvalidCredentials  = errors.New("identity: invalid credentials")
	ErrEmailTaken          = errors.New("identity: email already registered")
	ErrNotFound            = errors.New("identity: user not found")
	ErrInvalidRegistration = errors.New("identity: invalid registration")
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleSeller   Role = "seller"
)

type User struct {
	ID           string
	Name         string
	Email        string
	Phone        string
	Address      string
	Pincode      string
	Role         Role
	PasswordHash []byte
	CreatedAt    time.Time
}

func (u *User) IsSeller() bool { return u != nil && u.Role == RoleSeller }

func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	clone := *u
	clone.PasswordHash = append([]byte(nil), u.PasswordHash...)
	return &clone
}

type Registration struct {
	Name     string
	Email    string
	Phone    string
	Address  string
	Pincode  string
	Password string
	Role     Role
}

// ValidationError carries per-field messages, keyed by the form field name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k, v := range e.Fields {
		keys = append(keys, k+": "+v)
	}
	sort.Strings(keys)
	return "identity: invalid registration: " + strings.Join(keys, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidRegistration }

var (
	emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)
	phonePattern = regexp.MustCompile(`^\d{10}$`)
)

const minPasswordLength = 8

// Normalize trims input and defaults the role to customer.
func (r Registration) Normalize() Registration {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Phone = strings.TrimSpace(r.Phone)
	if r.Role == "" {
		r.Role = RoleCustomer
	}
	return r
}

func (r Registration) Validate() error {
	fields := map[string]string{}
	if r.Name == "" {
		fields["name"] = "Name is required"
	}
	switch {
	case r.Email == "":
		fields["email"] = "Email is required"
	case !emailPattern.MatchString(r.Email):
		fields["email"] = "Please enter a valid email"
	}
	if r.Phone != "" && !phonePattern.MatchString(r.Phone) {
		fields["phone"] = "Please enter a valid 10-digit phone number"
	}
	switch {
	case r.Password == "":
		fields["password"] = "Password is required"
	case len(r.Password) < minPasswordLength:
		fields["password"] = "Password must be at least 8 characters"
	}
	if r.Role != RoleCustomer && r.Role != RoleSeller {
		fields["role"] = "Role must be customer or seller"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

type Repository interface {
	Insert(ctx context.Context, u *User) error
	Get(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
}

// SessionStore maps bearer tokens to user IDs.
type SessionStore interface {
	Put(ctx context.Context, token, userID string) error
	Lookup(ctx context.Context, token string) (string, error)
	Revoke(ctx context.Context, token string) error
}
