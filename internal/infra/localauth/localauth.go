// Package localauth provides an in-memory identity provider for local
// development. It mirrors the hosted provider's behavior closely enough
// to exercise the full sign-up/sign-in/verify path without network
// access: bcrypt-hashed passwords, lockout after repeated failures, and
// HS256 tokens the shared verification path accepts.
package localauth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/sidu-provider/portal-api/internal/domain"
)

const (
	maxFailedAttempts = 5
	tokenTTL          = time.Hour
)

type localUser struct {
	uid            string
	email          string
	passwordHash   []byte
	failedAttempts int
}

// Provider is an in-memory identity provider. Safe for concurrent use.
type Provider struct {
	mu     sync.Mutex
	users  map[string]*localUser
	secret []byte
	logger *zap.Logger
}

// New creates an empty local provider signing tokens with secret.
func New(secret string, logger *zap.Logger) *Provider {
	return &Provider{
		users:  make(map[string]*localUser),
		secret: []byte(secret),
		logger: logger,
	}
}

// SignUp registers a new local identity with the same input policy the
// hosted provider enforces.
func (p *Provider) SignUp(ctx context.Context, email, password string) (*domain.Identity, error) {
	if !strings.Contains(email, "@") {
		return nil, &domain.ErrCredential{Field: "email", Message: "invalid email address"}
	}
	if len(password) < 8 {
		return nil, &domain.ErrCredential{Field: "password", Message: "password must be at least 8 characters"}
	}

	key := strings.ToLower(email)

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.users[key]; exists {
		return nil, &domain.ErrCredential{Field: "email", Message: "email is already registered"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, &domain.ErrAuth{Cause: domain.AuthProviderUnavailable, Message: "hash password: " + err.Error()}
	}

	u := &localUser{
		uid:          uuid.New().String(),
		email:        email,
		passwordHash: hash,
	}
	p.users[key] = u

	p.logger.Info("localauth: user registered", zap.String("uid", u.uid))
	return &domain.Identity{UID: u.uid, Email: u.email}, nil
}

// SignIn checks credentials and issues a session. Five consecutive
// failures lock the account until a successful sign-in resets the
// counter.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*domain.ProviderSession, error) {
	key := strings.ToLower(email)

	p.mu.Lock()
	defer p.mu.Unlock()

	u, exists := p.users[key]
	if !exists {
		return nil, &domain.ErrAuth{Cause: domain.AuthInvalidCredentials, Message: "invalid email or password"}
	}
	if u.failedAttempts >= maxFailedAttempts {
		return nil, &domain.ErrAuth{Cause: domain.AuthTooManyAttempts, Message: "account temporarily locked"}
	}

	if err := bcrypt.CompareHashAndPassword(u.passwordHash, []byte(password)); err != nil {
		u.failedAttempts++
		return nil, &domain.ErrAuth{Cause: domain.AuthInvalidCredentials, Message: "invalid email or password"}
	}
	u.failedAttempts = 0

	token, err := p.issueToken(u)
	if err != nil {
		return nil, &domain.ErrAuth{Cause: domain.AuthProviderUnavailable, Message: "sign token: " + err.Error()}
	}

	return &domain.ProviderSession{
		Identity:    domain.Identity{UID: u.uid, Email: u.email},
		AccessToken: token,
		ExpiresIn:   int(tokenTTL.Seconds()),
	}, nil
}

// FederatedAuthURL is not available locally.
func (p *Provider) FederatedAuthURL(provider, redirectTo string) (string, error) {
	return "", &domain.ErrAuth{Cause: domain.AuthProviderUnavailable, Message: "federated sign-in is not available in local mode"}
}

// ExchangeCode is not available locally.
func (p *Provider) ExchangeCode(ctx context.Context, code, codeVerifier string) (*domain.ProviderSession, error) {
	return nil, &domain.ErrAuth{Cause: domain.AuthProviderUnavailable, Message: "federated sign-in is not available in local mode"}
}

// SignOut is a no-op; local tokens expire on their own.
func (p *Provider) SignOut(ctx context.Context, accessToken string) error {
	return nil
}

// VerifyToken validates a locally issued HS256 token.
func (p *Provider) VerifyToken(token string) (*domain.Identity, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, &domain.ErrAuth{Cause: domain.AuthInvalidCredentials, Message: "unexpected signing method"}
		}
		return p.secret, nil
	}, jwt.WithAudience("authenticated"), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return nil, &domain.ErrAuth{Cause: domain.AuthInvalidCredentials, Message: "invalid or expired token"}
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, &domain.ErrAuth{Cause: domain.AuthInvalidCredentials, Message: "malformed claims"}
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, &domain.ErrAuth{Cause: domain.AuthInvalidCredentials, Message: "token missing subject"}
	}
	email, _ := claims["email"].(string)

	return &domain.Identity{UID: sub, Email: email}, nil
}

func (p *Provider) issueToken(u *localUser) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   u.uid,
		"email": u.email,
		"aud":   "authenticated",
		"iat":   now.Unix(),
		"exp":   now.Add(tokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}
