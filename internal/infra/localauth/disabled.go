package localauth

import (
	"context"

	"github.com/sidu-provider/portal-api/internal/domain"
)

// Disabled is the identity provider used when no real provider is
// configured. Every operation fails with provider_unavailable so the
// server can start degraded instead of crashing on missing settings.
type Disabled struct{}

func unavailable() *domain.ErrAuth {
	return &domain.ErrAuth{Cause: domain.AuthProviderUnavailable, Message: "identity provider is not configured"}
}

func (Disabled) SignUp(ctx context.Context, email, password string) (*domain.Identity, error) {
	return nil, unavailable()
}

func (Disabled) SignIn(ctx context.Context, email, password string) (*domain.ProviderSession, error) {
	return nil, unavailable()
}

func (Disabled) FederatedAuthURL(provider, redirectTo string) (string, error) {
	return "", unavailable()
}

func (Disabled) ExchangeCode(ctx context.Context, code, codeVerifier string) (*domain.ProviderSession, error) {
	return nil, unavailable()
}

func (Disabled) SignOut(ctx context.Context, accessToken string) error {
	return unavailable()
}

func (Disabled) VerifyToken(token string) (*domain.Identity, error) {
	return nil, unavailable()
}
