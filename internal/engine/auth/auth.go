// Package auth registers and signs in site accounts and issues the bearer
// tokens that gate the scheduling form.
package auth

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"draughtsman/internal/domain"
	"draughtsman/internal/metrics"
	"draughtsman/internal/repo"
	"draughtsman/internal/schema"
)

const (
	MessageRegistered    = "Account created successfully! You are now signed in."
	MessageLoggedIn      = "Signed in successfully."
	MessageEmailTaken    = "An account with this email already exists."
	MessageBadLogin      = "Invalid email or password."
	MessageInvalid       = "Invalid form data."
	MessageFailed        = "Failed to submit your request. Please try again later."
	defaultTokenTTL      = 24 * time.Hour
	passwordField        = "password"
	confirmPasswordField = "confirmPassword"
)

var (
	ErrEmailTaken         = repo.ErrEmailTaken
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNoSecret           = errors.New("jwt secret not configured")
)

// Users is the account store.
type Users interface {
	InsertUser(ctx context.Context, u domain.User) error
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
}

// Principal is the identity carried by a verified token.
type Principal struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

type Service struct {
	Users   Users
	Secret  string
	TTL     time.Duration
	Now     func() time.Time
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	// Cost is the bcrypt cost; zero means bcrypt.DefaultCost.
	Cost int
}

type claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

func (s Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s Service) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// Register validates raw against the registration schema, stores the account
// and signs it in.
func (s Service) Register(ctx context.Context, raw map[string]string) domain.AuthResult {
	res := schema.Registration.Validate(raw)
	if !res.Valid() {
		s.Metrics.IncrementRegistration("rejected")
		return rejected(res)
	}
	if strings.TrimSpace(s.Secret) == "" {
		// Without a signing key the account could never sign in.
		s.Metrics.IncrementRegistration("failed")
		s.logger().Error("register refused", zap.Error(ErrNoSecret))
		return failed(MessageFailed)
	}
	reg := domain.RegistrationFromValues(res.Values)
	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.cost())
	if err != nil {
		s.Metrics.IncrementRegistration("failed")
		s.logger().Error("hash password failed", zap.Error(err))
		return failed(MessageFailed)
	}
	u := domain.User{
		ID:           uuid.NewString(),
		Email:        reg.Email,
		FullName:     reg.FullName,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC().Format(repo.TimeLayout),
	}
	if err := s.Users.InsertUser(ctx, u); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			s.Metrics.IncrementRegistration("duplicate")
			return domain.AuthResult{FormResult: domain.FormResult{
				Success: false,
				Message: MessageEmailTaken,
				Fields:  withoutPasswords(raw),
				Issues:  []string{MessageEmailTaken},
			}}
		}
		s.Metrics.IncrementRegistration("failed")
		s.logger().Error("store user failed", zap.Error(err))
		return failed(MessageFailed)
	}
	token, err := s.IssueToken(u)
	if err != nil {
		s.Metrics.IncrementRegistration("failed")
		s.logger().Error("issue token failed", zap.Error(err))
		return failed(MessageFailed)
	}
	s.Metrics.IncrementRegistration("ok")
	s.logger().Info("account registered", zap.String("user_id", u.ID))
	return domain.AuthResult{FormResult: domain.FormResult{Success: true, Message: MessageRegistered}, Token: token}
}

// Login checks the credentials in raw and returns a token on success. Unknown
// e-mail and wrong password give the same answer.
func (s Service) Login(ctx context.Context, raw map[string]string) domain.AuthResult {
	res := schema.Login.Validate(raw)
	if !res.Valid() {
		s.Metrics.IncrementLogin("rejected")
		return rejected(res)
	}
	email := strings.ToLower(strings.TrimSpace(res.Values["email"]))
	u, err := s.Users.GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			s.Metrics.IncrementLogin("failed")
			s.logger().Error("load user failed", zap.Error(err))
			return failed(MessageFailed)
		}
		s.Metrics.IncrementLogin("denied")
		return failed(MessageBadLogin)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(res.Values[passwordField])); err != nil {
		s.Metrics.IncrementLogin("denied")
		return failed(MessageBadLogin)
	}
	token, err := s.IssueToken(u)
	if err != nil {
		s.Metrics.IncrementLogin("failed")
		s.logger().Error("issue token failed", zap.Error(err))
		return failed(MessageFailed)
	}
	s.Metrics.IncrementLogin("ok")
	return domain.AuthResult{FormResult: domain.FormResult{Success: true, Message: MessageLoggedIn}, Token: token}
}

// IssueToken signs an HS256 token for u.
func (s Service) IssueToken(u domain.User) (string, error) {
	if strings.TrimSpace(s.Secret) == "" {
		return "", ErrNoSecret
	}
	ttl := s.TTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	now := s.now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: u.Email,
		Name:  u.FullName,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(s.Secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses token and returns its principal.
func (s Service) Verify(token string) (Principal, error) {
	if strings.TrimSpace(s.Secret) == "" {
		return Principal{}, ErrNoSecret
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	c := &claims{}
	parsed, err := parser.ParseWithClaims(token, c, func(t *jwt.Token) (any, error) {
		return []byte(s.Secret), nil
	})
	if err != nil {
		return Principal{}, err
	}
	if !parsed.Valid {
		return Principal{}, ErrInvalidCredentials
	}
	if c.Subject == "" {
		return Principal{}, errors.New("subject claim required")
	}
	return Principal{UserID: c.Subject, Email: c.Email, Name: c.Name}, nil
}

func (s Service) cost() int {
	if s.Cost > 0 {
		return s.Cost
	}
	return bcrypt.DefaultCost
}

func rejected(res schema.Result) domain.AuthResult {
	return domain.AuthResult{FormResult: domain.FormResult{
		Success: false,
		Message: MessageInvalid,
		Fields:  withoutPasswords(res.Raw),
		Issues:  res.Messages(),
	}}
}

func failed(msg string) domain.AuthResult {
	return domain.AuthResult{FormResult: domain.FormResult{Success: false, Message: msg}}
}

// withoutPasswords copies raw minus secret fields so they are never echoed.
func withoutPasswords(raw map[string]string) map[string]string {
	if raw == nil {
		return nil
	}
	out := maps.Clone(raw)
	delete(out, passwordField)
	delete(out, confirmPasswordField)
	return out
}
