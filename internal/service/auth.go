package service

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/sidu-provider/portal-api/internal/domain"
	"github.com/sidu-provider/portal-api/internal/infra/observability"
	"github.com/sidu-provider/portal-api/internal/port"
	"github.com/sidu-provider/portal-api/internal/session"
)

var tracer = otel.Tracer("service/portal")

// Auth orchestrates the identity provider, the user profile store and
// the session tracker. Profile writes are side effects of auth events:
// their failure is logged but never blocks a successful sign-in.
type Auth struct {
	identity   port.IdentityProvider
	store      port.RecordStore
	tracker    *session.Tracker
	tokenCache port.Cache[*domain.Identity]
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewAuth creates the auth service with all dependencies injected.
func NewAuth(
	identity port.IdentityProvider,
	store port.RecordStore,
	tracker *session.Tracker,
	tokenCache port.Cache[*domain.Identity],
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Auth {
	return &Auth{
		identity:   identity,
		store:      store,
		tracker:    tracker,
		tokenCache: tokenCache,
		metrics:    metrics,
		logger:     logger,
	}
}

// SignUp registers a new identity and creates its profile record.
func (a *Auth) SignUp(ctx context.Context, email, password string) (*domain.Identity, error) {
	ctx, span := tracer.Start(ctx, "Auth.SignUp")
	defer span.End()

	email = strings.TrimSpace(email)
	if email == "" {
		return nil, &domain.ErrValidation{Field: "email", Message: "email is required"}
	}
	if password == "" {
		return nil, &domain.ErrValidation{Field: "password", Message: "password is required"}
	}

	identity, err := a.identity.SignUp(ctx, email, password)
	if err != nil {
		a.metrics.IncrExternalError("identity")
		return nil, err
	}
	span.SetAttributes(attribute.String("user.uid", identity.UID))

	if err := a.store.CreateUserProfile(ctx, identity.UID, identity.Email); err != nil {
		// The identity exists either way; the profile is recreated on
		// the next sign-in.
		a.logger.Error("signup: profile creation failed",
			zap.String("uid", identity.UID),
			zap.Error(err),
		)
		a.metrics.IncrExternalError("records")
	}

	a.logger.Info("user signed up", zap.String("uid", identity.UID))
	return identity, nil
}

// SignIn authenticates credentials, refreshes the profile record and
// marks the session authenticated.
func (a *Auth) SignIn(ctx context.Context, email, password string) (*domain.ProviderSession, error) {
	ctx, span := tracer.Start(ctx, "Auth.SignIn")
	defer span.End()

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, &domain.ErrValidation{Field: "credentials", Message: "email and password are required"}
	}

	sess, err := a.identity.SignIn(ctx, email, password)
	if err != nil {
		a.metrics.IncrExternalError("identity")
		return nil, err
	}
	span.SetAttributes(attribute.String("user.uid", sess.UID))

	a.ensureProfile(ctx, &sess.Identity)
	a.tracker.SetAuthenticated(sess.UID)

	a.logger.Info("user signed in", zap.String("uid", sess.UID))
	return sess, nil
}

// FederatedStart returns the authorize URL for an OAuth provider.
func (a *Auth) FederatedStart(provider, redirectTo string) (string, error) {
	return a.identity.FederatedAuthURL(provider, redirectTo)
}

// FederatedExchange completes a federated sign-in. First-time OAuth
// users get their profile record created here.
func (a *Auth) FederatedExchange(ctx context.Context, code, codeVerifier string) (*domain.ProviderSession, error) {
	ctx, span := tracer.Start(ctx, "Auth.FederatedExchange")
	defer span.End()

	if code == "" {
		return nil, &domain.ErrValidation{Field: "code", Message: "authorization code is required"}
	}

	sess, err := a.identity.ExchangeCode(ctx, code, codeVerifier)
	if err != nil {
		a.metrics.IncrExternalError("identity")
		return nil, err
	}
	span.SetAttributes(attribute.String("user.uid", sess.UID))

	a.ensureProfile(ctx, &sess.Identity)
	a.tracker.SetAuthenticated(sess.UID)

	a.logger.Info("user signed in via federated provider", zap.String("uid", sess.UID))
	return sess, nil
}

// SignOut clears the session. The upstream revocation is best effort:
// local state is cleared and nil returned even when the provider call
// fails, so the user is never stuck signed in.
func (a *Auth) SignOut(ctx context.Context, accessToken string) error {
	ctx, span := tracer.Start(ctx, "Auth.SignOut")
	defer span.End()

	uid := ""
	if identity, err := a.identity.VerifyToken(accessToken); err == nil {
		uid = identity.UID
	}

	if err := a.identity.SignOut(ctx, accessToken); err != nil {
		a.logger.Warn("signout: upstream revocation failed", zap.Error(err))
		a.metrics.IncrExternalError("identity")
	}

	a.tokenCache.Delete(tokenCacheKey(accessToken))
	a.tracker.SetUnauthenticated(uid)

	a.logger.Info("user signed out", zap.String("uid", uid))
	return nil
}

// Verify validates an access token, caching positive results so
// protected routes cost one HMAC check at most.
func (a *Auth) Verify(token string) (*domain.Identity, error) {
	key := tokenCacheKey(token)
	if cached, ok := a.tokenCache.Get(key); ok {
		a.metrics.IncrCacheHit("token")
		return cached, nil
	}
	a.metrics.IncrCacheMiss("token")

	identity, err := a.identity.VerifyToken(token)
	if err != nil {
		return nil, err
	}
	a.tokenCache.Set(key, identity)
	return identity, nil
}

// Session reports the tracker's current snapshot.
func (a *Auth) Session() session.Snapshot {
	return a.tracker.Current()
}

// ensureProfile creates the profile on first sign-in or touches
// last_login on a repeat one. Never fatal.
func (a *Auth) ensureProfile(ctx context.Context, identity *domain.Identity) {
	_, err := a.store.GetUserProfile(ctx, identity.UID)
	switch {
	case err == nil:
		if err := a.store.TouchLastLogin(ctx, identity.UID); err != nil {
			a.logger.Warn("signin: last_login update failed",
				zap.String("uid", identity.UID),
				zap.Error(err),
			)
		}
	case isNotFound(err):
		if err := a.store.CreateUserProfile(ctx, identity.UID, identity.Email); err != nil {
			a.logger.Error("signin: profile creation failed",
				zap.String("uid", identity.UID),
				zap.Error(err),
			)
			a.metrics.IncrExternalError("records")
		}
	default:
		a.logger.Warn("signin: profile lookup failed",
			zap.String("uid", identity.UID),
			zap.Error(err),
		)
		a.metrics.IncrExternalError("records")
	}
}

func isNotFound(err error) bool {
	var nf *domain.ErrNotFound
	return errors.As(err, &nf)
}

func tokenCacheKey(token string) string {
	return "token:" + token
}
