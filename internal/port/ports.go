// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the service layer
// from the hosted identity/record providers so the concrete SDKs stay
// swappable and mockable.
package port

import (
	"context"
	"io"
	"time"

	"github.com/sidu-provider/portal-api/internal/domain"
)

// IdentityProvider wraps the hosted authentication service.
type IdentityProvider interface {
	// SignUp registers a new identity. Email/password policy is enforced
	// by the provider; violations surface as *domain.ErrCredential.
	SignUp(ctx context.Context, email, password string) (*domain.Identity, error)

	// SignIn exchanges credentials for a session. Failures surface as
	// *domain.ErrAuth classified by cause.
	SignIn(ctx context.Context, email, password string) (*domain.ProviderSession, error)

	// FederatedAuthURL returns the provider authorize URL for an OAuth
	// provider (e.g. "google"). The SPA redirects the browser there.
	FederatedAuthURL(provider, redirectTo string) (string, error)

	// ExchangeCode completes the federated flow by exchanging the
	// callback code for a session.
	ExchangeCode(ctx context.Context, code, codeVerifier string) (*domain.ProviderSession, error)

	// SignOut revokes the session upstream. Callers treat failure as
	// non-fatal: the local session is cleared regardless.
	SignOut(ctx context.Context, accessToken string) error

	// VerifyToken validates an access token locally (no network call)
	// and returns the identity it was issued to.
	VerifyToken(token string) (*domain.Identity, error)
}

// RecordStore wraps the hosted document database. All list operations
// return the whole matching set filtered by equality on user id; there is
// no pagination and no automatic retry beyond the shared resilience layer.
type RecordStore interface {
	// User profiles
	CreateUserProfile(ctx context.Context, uid, email string) error
	GetUserProfile(ctx context.Context, uid string) (*domain.UserProfile, error)
	UpdateUserProfile(ctx context.Context, uid string, updates map[string]any) error
	TouchLastLogin(ctx context.Context, uid string) error

	// Shipments
	ListShipments(ctx context.Context, userID string) ([]domain.Shipment, error)
	CreateShipment(ctx context.Context, s *domain.Shipment) (string, error)
	// AppendTrackingEvent appends to the ordered event sequence and
	// overwrites the current status field. Last-write-wins; no
	// optimistic-concurrency check.
	AppendTrackingEvent(ctx context.Context, shipmentID string, ev domain.TrackingEvent) error

	// Documents
	ListDocuments(ctx context.Context, userID string) ([]domain.Document, error)
	CreateDocument(ctx context.Context, d *domain.Document) (string, error)
	SetDocumentStatus(ctx context.Context, documentID string, status domain.DocumentStatus) error

	// Notifications
	ListNotifications(ctx context.Context, userID string) ([]domain.Notification, error)
	CreateNotification(ctx context.Context, userID, message string) (string, error)
	MarkNotificationRead(ctx context.Context, notificationID string) error

	// Contact form
	CreateContactMessage(ctx context.Context, m *domain.ContactMessage) (string, error)
}

// ObjectStore holds uploaded document files.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
