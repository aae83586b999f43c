package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/chainedmetrics/kpimarkets/internal/domain"
)

// Claims are the JWT claims issued on login.
type Claims struct {
	Email string `json:"email"`
	Admin bool   `json:"admin"`
	jwt.RegisteredClaims
}

// Notifier is the slice of the notification system services depend on.
// *notify.Notifier satisfies it.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// AuthService handles registration, login, JWT issuance, and access requests
// from the public site.
type AuthService struct {
	users      domain.UserStore
	access     domain.AccessRequestStore
	notifier   Notifier
	jwtSecret  []byte
	tokenTTL   time.Duration
	bcryptCost int
	logger     *slog.Logger
}

// NewAuthService creates an AuthService. notifier may be nil when no
// channels are configured.
func NewAuthService(
	users domain.UserStore,
	access domain.AccessRequestStore,
	notifier Notifier,
	jwtSecret string,
	tokenTTL time.Duration,
	bcryptCost int,
	logger *slog.Logger,
) *AuthService {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{
		users:      users,
		access:     access,
		notifier:   notifier,
		jwtSecret:  []byte(jwtSecret),
		tokenTTL:   tokenTTL,
		bcryptCost: bcryptCost,
		logger:     logger.With(slog.String("component", "auth")),
	}
}

// Register creates a new user account with a bcrypt-hashed password.
func (s *AuthService) Register(ctx context.Context, email, password, firstName, lastName string) (domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return domain.User{}, fmt.Errorf("%w: invalid email %q", domain.ErrInvalidInput, email)
	}
	if len(password) < 8 {
		return domain.User{}, fmt.Errorf("%w: password must be at least 8 characters", domain.ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("auth: hash password: %w", err)
	}

	u := domain.User{
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    firstName,
		LastName:     lastName,
		Active:       true,
	}
	id, err := s.users.Create(ctx, u)
	if err != nil {
		return domain.User{}, err
	}
	u.ID = id

	s.logger.InfoContext(ctx, "user registered", slog.String("email", email))
	return u, nil
}

// Login verifies credentials and returns a signed JWT plus the user record.
// Bad credentials and unknown users both map to ErrUnauthorized so the
// response does not reveal which accounts exist.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.User{}, domain.ErrUnauthorized
		}
		return "", domain.User{}, err
	}
	if !u.Active {
		return "", domain.User{}, domain.ErrUserInactive
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", domain.User{}, domain.ErrUnauthorized
	}

	token, err := s.issueToken(u)
	if err != nil {
		return "", domain.User{}, err
	}

	s.logger.InfoContext(ctx, "user logged in", slog.String("email", email))
	return token, u, nil
}

// ParseToken validates a JWT and returns its claims.
func (s *AuthService) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, domain.ErrUnauthorized
	}
	return claims, nil
}

// RequestAccess records an access request and alerts the operators.
func (s *AuthService) RequestAccess(ctx context.Context, r domain.AccessRequest) (int64, error) {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	if r.Email == "" || !strings.Contains(r.Email, "@") {
		return 0, fmt.Errorf("%w: invalid email %q", domain.ErrInvalidInput, r.Email)
	}

	id, err := s.access.Create(ctx, r)
	if err != nil {
		return 0, err
	}

	if s.notifier != nil {
		msg := fmt.Sprintf("%s <%s> (%s) requested access: %s", r.FullName, r.Email, r.Company, r.Reason)
		if err := s.notifier.Notify(ctx, "access_requested", "New access request", msg); err != nil {
			s.logger.WarnContext(ctx, "access request notification failed",
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "access requested", slog.String("email", r.Email))
	return id, nil
}

func (s *AuthService) issueToken(u domain.User) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: u.Email,
		Admin: u.Admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}
