package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sidu-provider/portal-api/internal/domain"
	"github.com/sidu-provider/portal-api/internal/infra/cache"
	"github.com/sidu-provider/portal-api/internal/infra/observability"
	"github.com/sidu-provider/portal-api/internal/service"
	"github.com/sidu-provider/portal-api/internal/session"
)

// ============================================================
// Fakes shared across the service tests
// ============================================================

type fakeIdentity struct {
	users      map[string]string // email -> uid
	nextUID    int
	signOutErr error
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{users: make(map[string]string)}
}

func (f *fakeIdentity) SignUp(ctx context.Context, email, password string) (*domain.Identity, error) {
	if _, ok := f.users[email]; ok {
		return nil, &domain.ErrCredential{Field: "email", Message: "email is already registered"}
	}
	f.nextUID++
	uid := fmt.Sprintf("uid-%d", f.nextUID)
	f.users[email] = uid
	return &domain.Identity{UID: uid, Email: email}, nil
}

func (f *fakeIdentity) SignIn(ctx context.Context, email, password string) (*domain.ProviderSession, error) {
	uid, ok := f.users[email]
	if !ok {
		return nil, &domain.ErrAuth{Cause: domain.AuthInvalidCredentials}
	}
	return &domain.ProviderSession{
		Identity:    domain.Identity{UID: uid, Email: email},
		AccessToken: "token-" + uid,
		ExpiresIn:   3600,
	}, nil
}

func (f *fakeIdentity) FederatedAuthURL(provider, redirectTo string) (string, error) {
	return "https://auth.example.com/authorize?provider=" + provider, nil
}

func (f *fakeIdentity) ExchangeCode(ctx context.Context, code, codeVerifier string) (*domain.ProviderSession, error) {
	if code == "denied" {
		return nil, &domain.ErrAuth{Cause: domain.AuthProviderCancelled}
	}
	email := code + "@oauth.example.com"
	uid, ok := f.users[email]
	if !ok {
		f.nextUID++
		uid = fmt.Sprintf("uid-%d", f.nextUID)
		f.users[email] = uid
	}
	return &domain.ProviderSession{
		Identity:    domain.Identity{UID: uid, Email: email},
		AccessToken: "token-" + uid,
		ExpiresIn:   3600,
	}, nil
}

func (f *fakeIdentity) SignOut(ctx context.Context, accessToken string) error {
	return f.signOutErr
}

func (f *fakeIdentity) VerifyToken(token string) (*domain.Identity, error) {
	for email, uid := range f.users {
		if token == "token-"+uid {
			return &domain.Identity{UID: uid, Email: email}, nil
		}
	}
	return nil, &domain.ErrAuth{Cause: domain.AuthInvalidCredentials}
}

// recordStore is an in-memory record store with error injection.
type recordStore struct {
	profiles      map[string]*domain.UserProfile
	shipments     map[string][]domain.Shipment
	documents     map[string][]domain.Document
	notifications map[string][]domain.Notification
	contacts      []domain.ContactMessage

	createProfileCalls int
	touchCalls         int
	listErr            error
	createDocErr       error
}

func newRecordStore() *recordStore {
	return &recordStore{
		profiles:      make(map[string]*domain.UserProfile),
		shipments:     make(map[string][]domain.Shipment),
		documents:     make(map[string][]domain.Document),
		notifications: make(map[string][]domain.Notification),
	}
}

func (s *recordStore) CreateUserProfile(ctx context.Context, uid, email string) error {
	s.createProfileCalls++
	now := time.Now()
	s.profiles[uid] = &domain.UserProfile{
		UID:         uid,
		Email:       email,
		CreatedAt:   now,
		LastLogin:   now,
		Preferences: domain.DefaultPreferences(),
	}
	return nil
}

func (s *recordStore) GetUserProfile(ctx context.Context, uid string) (*domain.UserProfile, error) {
	p, ok := s.profiles[uid]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "user", ID: uid}
	}
	cp := *p
	return &cp, nil
}

func (s *recordStore) UpdateUserProfile(ctx context.Context, uid string, updates map[string]any) error {
	p, ok := s.profiles[uid]
	if !ok {
		return &domain.ErrNotFound{Resource: "user", ID: uid}
	}
	if v, ok := updates["email_notifications"].(bool); ok {
		p.Preferences.EmailNotifications = v
	}
	if v, ok := updates["sms_alerts"].(bool); ok {
		p.Preferences.SMSAlerts = v
	}
	if v, ok := updates["two_factor_auth"].(bool); ok {
		p.Preferences.TwoFactorAuth = v
	}
	return nil
}

func (s *recordStore) TouchLastLogin(ctx context.Context, uid string) error {
	s.touchCalls++
	if p, ok := s.profiles[uid]; ok {
		p.LastLogin = time.Now()
	}
	return nil
}

func (s *recordStore) ListShipments(ctx context.Context, userID string) ([]domain.Shipment, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.shipments[userID], nil
}

func (s *recordStore) CreateShipment(ctx context.Context, sh *domain.Shipment) (string, error) {
	if sh.ID == "" {
		sh.ID = fmt.Sprintf("shp-%d", len(s.shipments[sh.UserID])+1)
	}
	s.shipments[sh.UserID] = append(s.shipments[sh.UserID], *sh)
	return sh.ID, nil
}

func (s *recordStore) AppendTrackingEvent(ctx context.Context, shipmentID string, ev domain.TrackingEvent) error {
	for uid, list := range s.shipments {
		for i := range list {
			if list[i].ID == shipmentID {
				list[i].TrackingEvents = append(list[i].TrackingEvents, ev)
				list[i].Status = ev.Status
				s.shipments[uid] = list
				return nil
			}
		}
	}
	return &domain.ErrNotFound{Resource: "shipment", ID: shipmentID}
}

func (s *recordStore) ListDocuments(ctx context.Context, userID string) ([]domain.Document, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.documents[userID], nil
}

func (s *recordStore) CreateDocument(ctx context.Context, d *domain.Document) (string, error) {
	if s.createDocErr != nil {
		return "", s.createDocErr
	}
	if d.ID == "" {
		d.ID = fmt.Sprintf("doc-%d", len(s.documents[d.UserID])+1)
	}
	s.documents[d.UserID] = append(s.documents[d.UserID], *d)
	return d.ID, nil
}

func (s *recordStore) SetDocumentStatus(ctx context.Context, documentID string, status domain.DocumentStatus) error {
	for uid, list := range s.documents {
		for i := range list {
			if list[i].ID == documentID {
				list[i].Status = status
				s.documents[uid] = list
				return nil
			}
		}
	}
	return &domain.ErrNotFound{Resource: "document", ID: documentID}
}

func (s *recordStore) ListNotifications(ctx context.Context, userID string) ([]domain.Notification, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.notifications[userID], nil
}

func (s *recordStore) CreateNotification(ctx context.Context, userID, message string) (string, error) {
	id := fmt.Sprintf("ntf-%s-%d", userID, len(s.notifications[userID])+1)
	s.notifications[userID] = append(s.notifications[userID], domain.Notification{
		ID:      id,
		UserID:  userID,
		Message: message,
	})
	return id, nil
}

func (s *recordStore) MarkNotificationRead(ctx context.Context, notificationID string) error {
	for uid, list := range s.notifications {
		for i := range list {
			if list[i].ID == notificationID {
				list[i].Read = true
				s.notifications[uid] = list
				return nil
			}
		}
	}
	return &domain.ErrNotFound{Resource: "notification", ID: notificationID}
}

func (s *recordStore) CreateContactMessage(ctx context.Context, m *domain.ContactMessage) (string, error) {
	s.contacts = append(s.contacts, *m)
	return fmt.Sprintf("msg-%d", len(s.contacts)), nil
}

func newAuth(identity *fakeIdentity, store *recordStore, tracker *session.Tracker) *service.Auth {
	tokenCache := cache.New[*domain.Identity](time.Minute)
	return service.NewAuth(identity, store, tracker, tokenCache, observability.NewMetrics(), zap.NewNop())
}

// ============================================================
// Tests
// ============================================================

func TestSignUpThenSignIn_SameUID(t *testing.T) {
	identity := newFakeIdentity()
	store := newRecordStore()
	tracker := session.NewTracker()
	auth := newAuth(identity, store, tracker)
	ctx := context.Background()

	registered, err := auth.SignUp(ctx, "user@example.com", "password123")
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}

	sess, err := auth.SignIn(ctx, "user@example.com", "password123")
	if err != nil {
		t.Fatalf("signin failed: %v", err)
	}
	if sess.UID != registered.UID {
		t.Errorf("expected uid %s, got %s", registered.UID, sess.UID)
	}
	if tracker.Current().State != session.StateAuthenticated {
		t.Errorf("expected authenticated tracker, got %s", tracker.Current().State)
	}
}

func TestSignUp_CreatesProfileOnce(t *testing.T) {
	identity := newFakeIdentity()
	store := newRecordStore()
	auth := newAuth(identity, store, session.NewTracker())
	ctx := context.Background()

	if _, err := auth.SignUp(ctx, "user@example.com", "password123"); err != nil {
		t.Fatalf("signup failed: %v", err)
	}
	if store.createProfileCalls != 1 {
		t.Fatalf("expected 1 profile creation, got %d", store.createProfileCalls)
	}

	// A repeat sign-in touches last_login instead of recreating
	if _, err := auth.SignIn(ctx, "user@example.com", "password123"); err != nil {
		t.Fatalf("signin failed: %v", err)
	}
	if store.createProfileCalls != 1 {
		t.Errorf("expected still 1 profile creation, got %d", store.createProfileCalls)
	}
	if store.touchCalls != 1 {
		t.Errorf("expected 1 last_login touch, got %d", store.touchCalls)
	}
}

func TestSignIn_ValidatesInput(t *testing.T) {
	auth := newAuth(newFakeIdentity(), newRecordStore(), session.NewTracker())

	_, err := auth.SignIn(context.Background(), "", "")
	var valErr *domain.ErrValidation
	if !errors.As(err, &valErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestFederatedExchange_CreatesProfileForNewUser(t *testing.T) {
	identity := newFakeIdentity()
	store := newRecordStore()
	tracker := session.NewTracker()
	auth := newAuth(identity, store, tracker)
	ctx := context.Background()

	sess, err := auth.FederatedExchange(ctx, "good-code", "verifier")
	if err != nil {
		t.Fatalf("exchange failed: %v", err)
	}
	if _, err := store.GetUserProfile(ctx, sess.UID); err != nil {
		t.Errorf("expected profile to exist after federated login: %v", err)
	}
	if tracker.Current().State != session.StateAuthenticated {
		t.Errorf("expected authenticated tracker")
	}
}

func TestFederatedExchange_CancelledSurfacesCause(t *testing.T) {
	auth := newAuth(newFakeIdentity(), newRecordStore(), session.NewTracker())

	_, err := auth.FederatedExchange(context.Background(), "denied", "")
	var authErr *domain.ErrAuth
	if !errors.As(err, &authErr) || authErr.Cause != domain.AuthProviderCancelled {
		t.Fatalf("expected provider_cancelled, got %v", err)
	}
}

func TestSignOut_AlwaysSucceeds(t *testing.T) {
	identity := newFakeIdentity()
	store := newRecordStore()
	tracker := session.NewTracker()
	auth := newAuth(identity, store, tracker)
	ctx := context.Background()

	auth.SignUp(ctx, "user@example.com", "password123")
	sess, _ := auth.SignIn(ctx, "user@example.com", "password123")

	// Upstream revocation failure must not surface to the caller
	identity.signOutErr = errors.New("provider down")

	if err := auth.SignOut(ctx, sess.AccessToken); err != nil {
		t.Fatalf("expected signout to succeed, got %v", err)
	}
	if tracker.Current().State != session.StateUnauthenticated {
		t.Errorf("expected unauthenticated tracker, got %s", tracker.Current().State)
	}
}

func TestVerify_CachesPositiveResults(t *testing.T) {
	identity := newFakeIdentity()
	auth := newAuth(identity, newRecordStore(), session.NewTracker())
	ctx := context.Background()

	auth.SignUp(ctx, "user@example.com", "password123")
	sess, _ := auth.SignIn(ctx, "user@example.com", "password123")

	first, err := auth.Verify(sess.AccessToken)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	// Invalidate the provider: a cached token must still verify
	identity.users = map[string]string{}

	second, err := auth.Verify(sess.AccessToken)
	if err != nil {
		t.Fatalf("expected cached verify to succeed, got %v", err)
	}
	if second.UID != first.UID {
		t.Errorf("expected uid %s, got %s", first.UID, second.UID)
	}
}

func TestVerify_RejectsBadToken(t *testing.T) {
	auth := newAuth(newFakeIdentity(), newRecordStore(), session.NewTracker())

	_, err := auth.Verify("bogus")
	var authErr *domain.ErrAuth
	if !errors.As(err, &authErr) {
		t.Fatalf("expected auth error, got %v", err)
	}
}
