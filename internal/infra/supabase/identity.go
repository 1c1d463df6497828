package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sidu-provider/portal-api/internal/domain"
	"github.com/sidu-provider/portal-api/internal/infra/resilience"
)

// federatedProviders is the allowlist of OAuth providers the portal
// offers on its sign-in page.
var federatedProviders = map[string]bool{
	"google":   true,
	"facebook": true,
}

// IdentityClient wraps the Supabase GoTrue auth API. Sign-up and
// sign-in go over the network; token verification is local against the
// project JWT secret so protected routes never block on the provider.
type IdentityClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	jwtSecret  []byte
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	logger     *zap.Logger
}

// NewIdentityClient creates a GoTrue client using the anon API key.
func NewIdentityClient(httpClient *http.Client, baseURL, apiKey, jwtSecret string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *IdentityClient {
	return &IdentityClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
		jwtSecret:  []byte(jwtSecret),
		cb:         cb,
		cfg:        cfg,
		logger:     logger,
	}
}

// gotrueUser is the user object embedded in GoTrue responses.
type gotrueUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// gotrueSession is a successful token response.
type gotrueSession struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	ExpiresIn    int        `json:"expires_in"`
	User         gotrueUser `json:"user"`
}

// gotrueError is GoTrue's error envelope. Field names vary by endpoint
// and version, so all candidates are collected.
type gotrueError struct {
	Code             string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (e *gotrueError) text() string {
	for _, s := range []string{e.Msg, e.Message, e.ErrorDescription, e.Error} {
		if s != "" {
			return s
		}
	}
	return "authentication failed"
}

// SignUp registers a new email/password identity.
func (c *IdentityClient) SignUp(ctx context.Context, email, password string) (*domain.Identity, error) {
	ctx, span := tracer.Start(ctx, "GoTrue.SignUp")
	defer span.End()

	var identity *domain.Identity
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, status, err := c.doAuth(ctx, "signup", "", map[string]any{
				"email":    email,
				"password": password,
			})
			if err != nil {
				return err
			}
			if status >= 400 {
				return resilience.Permanent(c.classifySignUpError(status, body))
			}

			// Depending on confirmation settings GoTrue returns either
			// the bare user or a full session.
			var sess gotrueSession
			if err := json.Unmarshal(body, &sess); err != nil {
				return fmt.Errorf("decode signup response: %w", err)
			}
			user := sess.User
			if user.ID == "" {
				if err := json.Unmarshal(body, &user); err != nil {
					return fmt.Errorf("decode signup user: %w", err)
				}
			}
			identity = &domain.Identity{UID: user.ID, Email: user.Email}
			return nil
		})
	})
	if err != nil {
		return nil, c.wrapAuthErr(err)
	}
	return identity, nil
}

// SignIn exchanges email/password for a session via the password grant.
func (c *IdentityClient) SignIn(ctx context.Context, email, password string) (*domain.ProviderSession, error) {
	ctx, span := tracer.Start(ctx, "GoTrue.SignIn")
	defer span.End()

	var session *domain.ProviderSession
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, status, err := c.doAuth(ctx, "token", "grant_type=password", map[string]any{
				"email":    email,
				"password": password,
			})
			if err != nil {
				return err
			}
			if status >= 400 {
				return resilience.Permanent(classifyTokenError(status, body))
			}

			var sess gotrueSession
			if err := json.Unmarshal(body, &sess); err != nil {
				return fmt.Errorf("decode token response: %w", err)
			}
			session = &domain.ProviderSession{
				Identity:     domain.Identity{UID: sess.User.ID, Email: sess.User.Email},
				AccessToken:  sess.AccessToken,
				RefreshToken: sess.RefreshToken,
				ExpiresIn:    sess.ExpiresIn,
			}
			return nil
		})
	})
	if err != nil {
		return nil, c.wrapAuthErr(err)
	}
	return session, nil
}

// FederatedAuthURL builds the GoTrue authorize URL the browser is sent
// to for an OAuth provider. No network call involved.
func (c *IdentityClient) FederatedAuthURL(provider, redirectTo string) (string, error) {
	if !federatedProviders[provider] {
		return "", &domain.ErrValidation{Field: "provider", Message: "unsupported federated provider"}
	}

	q := url.Values{}
	q.Set("provider", provider)
	q.Set("flow_type", "pkce")
	if redirectTo != "" {
		q.Set("redirect_to", redirectTo)
	}
	return fmt.Sprintf("%s/auth/v1/authorize?%s", c.baseURL, q.Encode()), nil
}

// ExchangeCode completes the federated flow by trading the callback
// code for a session. A user closing the consent screen surfaces as
// access_denied, which maps to the cancelled cause.
func (c *IdentityClient) ExchangeCode(ctx context.Context, code, codeVerifier string) (*domain.ProviderSession, error) {
	ctx, span := tracer.Start(ctx, "GoTrue.ExchangeCode")
	defer span.End()

	var session *domain.ProviderSession
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, status, err := c.doAuth(ctx, "token", "grant_type=pkce", map[string]any{
				"auth_code":     code,
				"code_verifier": codeVerifier,
			})
			if err != nil {
				return err
			}
			if status >= 400 {
				var ge gotrueError
				_ = json.Unmarshal(body, &ge)
				if strings.Contains(strings.ToLower(ge.text()), "access_denied") ||
					strings.Contains(strings.ToLower(ge.Error), "access_denied") {
					return resilience.Permanent(&domain.ErrAuth{
						Cause:   domain.AuthProviderCancelled,
						Message: "federated sign-in was cancelled",
					})
				}
				return resilience.Permanent(classifyTokenError(status, body))
			}

			var sess gotrueSession
			if err := json.Unmarshal(body, &sess); err != nil {
				return fmt.Errorf("decode exchange response: %w", err)
			}
			session = &domain.ProviderSession{
				Identity:     domain.Identity{UID: sess.User.ID, Email: sess.User.Email},
				AccessToken:  sess.AccessToken,
				RefreshToken: sess.RefreshToken,
				ExpiresIn:    sess.ExpiresIn,
			}
			return nil
		})
	})
	if err != nil {
		return nil, c.wrapAuthErr(err)
	}
	return session, nil
}

// SignOut revokes the session upstream. Errors are returned but the
// caller clears local state regardless.
func (c *IdentityClient) SignOut(ctx context.Context, accessToken string) error {
	ctx, span := tracer.Start(ctx, "GoTrue.SignOut")
	defer span.End()

	_, status, err := c.doAuth(ctx, "logout", "", nil, withBearer(accessToken))
	if err != nil {
		return err
	}
	if status >= 400 {
		return fmt.Errorf("gotrue logout returned %d", status)
	}
	return nil
}

// VerifyToken validates an access token locally against the project
// JWT secret. This is what keeps protected navigation synchronous.
func (c *IdentityClient) VerifyToken(token string) (*domain.Identity, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.jwtSecret, nil
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

type authOption func(*http.Request)

func withBearer(token string) authOption {
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	}
}

// doAuth executes a GoTrue request. Network and decode failures are
// returned as errors; HTTP-level failures come back as status + body so
// callers can classify them.
func (c *IdentityClient) doAuth(ctx context.Context, endpoint, query string, payload map[string]any, opts ...authOption) ([]byte, int, error) {
	u := fmt.Sprintf("%s/auth/v1/%s", c.baseURL, endpoint)
	if query != "" {
		u += "?" + query
	}

	var reqBody io.Reader
	if payload != nil {
		jsonBody, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, err
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, reqBody)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	for _, opt := range opts {
		opt(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("gotrue: request failed",
			zap.String("endpoint", endpoint),
			zap.Error(err),
		)
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}

	if resp.StatusCode >= 400 {
		c.logger.Warn("gotrue: non-2xx response",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
		)
	} else {
		c.logger.Debug("gotrue: request OK",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
		)
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("gotrue.status", resp.StatusCode))

	return body, resp.StatusCode, nil
}

// classifySignUpError maps GoTrue sign-up failures to the credential
// error taxonomy. Unknown 4xx bodies fall back to the raw message.
func (c *IdentityClient) classifySignUpError(status int, body []byte) error {
	var ge gotrueError
	_ = json.Unmarshal(body, &ge)
	text := ge.text()
	lower := strings.ToLower(text)

	switch {
	case status == http.StatusTooManyRequests:
		return &domain.ErrAuth{Cause: domain.AuthTooManyAttempts, Message: text}
	case strings.Contains(lower, "already registered") || ge.Code == "user_already_exists" || ge.Code == "email_exists":
		return &domain.ErrCredential{Field: "email", Message: "email is already registered"}
	case strings.Contains(lower, "password"):
		return &domain.ErrCredential{Field: "password", Message: text}
	case strings.Contains(lower, "email"):
		return &domain.ErrCredential{Field: "email", Message: text}
	default:
		return &domain.ErrCredential{Field: "email", Message: text}
	}
}

// classifyTokenError maps GoTrue token-grant failures to auth causes.
func classifyTokenError(status int, body []byte) error {
	var ge gotrueError
	_ = json.Unmarshal(body, &ge)
	text := ge.text()

	if status == http.StatusTooManyRequests {
		return &domain.ErrAuth{Cause: domain.AuthTooManyAttempts, Message: text}
	}
	return &domain.ErrAuth{Cause: domain.AuthInvalidCredentials, Message: text}
}

// wrapAuthErr normalizes breaker/retry wrapping: typed errors pass
// through untouched, everything else is a network-class failure.
func (c *IdentityClient) wrapAuthErr(err error) error {
	var authErr *domain.ErrAuth
	if errors.As(err, &authErr) {
		return authErr
	}
	var credErr *domain.ErrCredential
	if errors.As(err, &credErr) {
		return credErr
	}
	var valErr *domain.ErrValidation
	if errors.As(err, &valErr) {
		return valErr
	}
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return &domain.ErrAuth{Cause: domain.AuthNetworkFailure, Message: "identity provider circuit open"}
	}
	return &domain.ErrAuth{Cause: domain.AuthNetworkFailure, Message: err.Error()}
}
