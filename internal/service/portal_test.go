package service_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sidu-provider/portal-api/internal/domain"
	"github.com/sidu-provider/portal-api/internal/infra/cache"
	"github.com/sidu-provider/portal-api/internal/infra/observability"
	"github.com/sidu-provider/portal-api/internal/port"
	"github.com/sidu-provider/portal-api/internal/service"
)

// memObjects implements port.ObjectStore in memory.
type memObjects struct {
	objects map[string][]byte
	putErr  error
}

func newMemObjects() *memObjects {
	return &memObjects{objects: make(map[string][]byte)}
}

func (m *memObjects) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if m.putErr != nil {
		return m.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[key] = data
	return nil
}

func (m *memObjects) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return "https://storage.example.com/" + key, nil
}

func (m *memObjects) Delete(ctx context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func newPortal(store port.RecordStore, objects port.ObjectStore, opsUserID string) *service.Portal {
	profileCache := cache.New[*domain.UserProfile](time.Minute)
	return service.NewPortal(store, objects, profileCache, time.Hour, opsUserID, observability.NewMetrics(), zap.NewNop())
}

func seedUser(store *recordStore, uid string) {
	store.CreateUserProfile(context.Background(), uid, uid+"@example.com")
}

// ============================================================
// Dashboard
// ============================================================

func TestDashboard_CountersAndBadges(t *testing.T) {
	store := newRecordStore()
	ctx := context.Background()
	seedUser(store, "uid-1")

	store.CreateShipment(ctx, &domain.Shipment{UserID: "uid-1", Status: domain.ShipmentInTransit})
	store.CreateShipment(ctx, &domain.Shipment{UserID: "uid-1", Status: domain.ShipmentCustoms})
	store.CreateShipment(ctx, &domain.Shipment{UserID: "uid-1", Status: domain.ShipmentDelivered})
	store.CreateDocument(ctx, &domain.Document{UserID: "uid-1", Status: domain.DocumentPending})
	store.CreateDocument(ctx, &domain.Document{UserID: "uid-1", Status: domain.DocumentApproved})
	store.CreateNotification(ctx, "uid-1", "hello")

	p := newPortal(store, newMemObjects(), "")
	resp, err := p.Dashboard(ctx, "uid-1")
	if err != nil {
		t.Fatalf("dashboard failed: %v", err)
	}
	if resp.Fallback {
		t.Fatal("expected live data, got fallback")
	}

	c := resp.Counters
	if c.ActiveShipments != 2 || c.InTransit != 1 || c.CustomsClearance != 1 || c.Delivered != 1 {
		t.Errorf("unexpected shipment counters: %+v", c)
	}
	if c.PendingDocuments != 1 || c.ApprovedDocuments != 1 {
		t.Errorf("unexpected document counters: %+v", c)
	}
	if c.UnreadNotifications != 1 {
		t.Errorf("expected 1 unread notification, got %d", c.UnreadNotifications)
	}

	for _, s := range resp.Shipments {
		if s.Badge != s.Status.Badge() {
			t.Errorf("shipment badge mismatch for %s", s.Status)
		}
	}
	for _, d := range resp.Documents {
		if d.Badge != d.Status.Badge() {
			t.Errorf("document badge mismatch for %s", d.Status)
		}
	}
}

func TestDashboard_FallsBackOnStoreFailure(t *testing.T) {
	store := newRecordStore()
	store.listErr = &domain.ErrRecordService{Op: "shipments.list", Err: errors.New("connection refused")}

	p := newPortal(store, newMemObjects(), "")
	resp, err := p.Dashboard(context.Background(), "uid-1")
	if err != nil {
		t.Fatalf("expected fallback, got error: %v", err)
	}
	if !resp.Fallback {
		t.Fatal("expected fallback flag to be set")
	}
	if len(resp.Shipments) == 0 || len(resp.Documents) == 0 {
		t.Error("expected placeholder records in fallback payload")
	}
}

func TestDashboard_UnavailableStoreServesFallback(t *testing.T) {
	p := newPortal(service.UnavailableStore{Key: "SUPABASE_URL"}, nil, "")

	resp, err := p.Dashboard(context.Background(), "uid-1")
	if err != nil {
		t.Fatalf("expected fallback, got error: %v", err)
	}
	if !resp.Fallback {
		t.Fatal("expected fallback flag to be set")
	}
}

// ============================================================
// Per-user isolation
// ============================================================

func TestLists_AreScopedPerUser(t *testing.T) {
	store := newRecordStore()
	ctx := context.Background()

	store.CreateShipment(ctx, &domain.Shipment{UserID: "uid-1", Status: domain.ShipmentInTransit})
	store.CreateShipment(ctx, &domain.Shipment{UserID: "uid-2", Status: domain.ShipmentProcessing})
	store.CreateNotification(ctx, "uid-1", "only for one")

	p := newPortal(store, newMemObjects(), "")

	shipments, err := p.Shipments(ctx, "uid-1")
	if err != nil {
		t.Fatalf("shipments failed: %v", err)
	}
	if len(shipments) != 1 || shipments[0].UserID != "uid-1" {
		t.Errorf("expected only uid-1 shipments, got %+v", shipments)
	}

	other, err := p.Notifications(ctx, "uid-2")
	if err != nil {
		t.Fatalf("notifications failed: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("expected no notifications for uid-2, got %d", len(other))
	}
}

// ============================================================
// Documents
// ============================================================

func TestUploadDocument_EntersPending(t *testing.T) {
	store := newRecordStore()
	objects := newMemObjects()
	p := newPortal(store, objects, "")
	ctx := context.Background()

	content := []byte("%PDF-1.4 test")
	view, err := p.UploadDocument(ctx, "uid-1", "Bill of Lading.pdf", int64(len(content)), "application/pdf", bytes.NewReader(content), "")
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if view.Status != domain.DocumentPending {
		t.Errorf("expected Pending, got %s", view.Status)
	}
	if view.Badge != domain.BadgeWarning {
		t.Errorf("expected warning badge, got %s", view.Badge)
	}
	if !strings.HasPrefix(view.ObjectKey, "uid-1/") {
		t.Errorf("expected key scoped to user, got %s", view.ObjectKey)
	}
	if _, ok := objects.objects[view.ObjectKey]; !ok {
		t.Error("expected object to be stored")
	}

	docs, err := p.Documents(ctx, "uid-1")
	if err != nil {
		t.Fatalf("documents failed: %v", err)
	}
	if len(docs) != 1 || docs[0].Status != domain.DocumentPending {
		t.Errorf("expected uploaded document to list as Pending, got %+v", docs)
	}
}

func TestUploadDocument_CleansUpOnRecordFailure(t *testing.T) {
	store := newRecordStore()
	store.createDocErr = &domain.ErrRecordService{Op: "documents.create", Err: errors.New("write failed")}
	objects := newMemObjects()
	p := newPortal(store, objects, "")

	content := []byte("data")
	_, err := p.UploadDocument(context.Background(), "uid-1", "x.pdf", int64(len(content)), "application/pdf", bytes.NewReader(content), "")
	if err == nil {
		t.Fatal("expected upload to fail")
	}
	if len(objects.objects) != 0 {
		t.Error("expected orphaned object to be deleted")
	}
}

func TestUploadDocument_NoObjectStoreConfigured(t *testing.T) {
	p := newPortal(newRecordStore(), nil, "")

	_, err := p.UploadDocument(context.Background(), "uid-1", "x.pdf", 4, "application/pdf", strings.NewReader("data"), "")
	var cfgErr *domain.ErrConfiguration
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestUploadDocument_RejectsOversize(t *testing.T) {
	p := newPortal(newRecordStore(), newMemObjects(), "")

	_, err := p.UploadDocument(context.Background(), "uid-1", "x.pdf", 20<<20, "application/pdf", strings.NewReader(""), "")
	var valErr *domain.ErrValidation
	if !errors.As(err, &valErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

// ============================================================
// Notifications
// ============================================================

func TestMarkNotificationRead_IsIdempotent(t *testing.T) {
	store := newRecordStore()
	ctx := context.Background()
	id, _ := store.CreateNotification(ctx, "uid-1", "hello")

	p := newPortal(store, newMemObjects(), "")

	if err := p.MarkNotificationRead(ctx, "uid-1", id); err != nil {
		t.Fatalf("first mark failed: %v", err)
	}
	if err := p.MarkNotificationRead(ctx, "uid-1", id); err != nil {
		t.Fatalf("second mark failed: %v", err)
	}

	notifications, _ := p.Notifications(ctx, "uid-1")
	if !notifications[0].Read {
		t.Error("expected notification to be read")
	}
}

func TestMarkNotificationRead_RejectsForeignNotification(t *testing.T) {
	store := newRecordStore()
	ctx := context.Background()
	id, _ := store.CreateNotification(ctx, "uid-1", "private")

	p := newPortal(store, newMemObjects(), "")

	err := p.MarkNotificationRead(ctx, "uid-2", id)
	var nf *domain.ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected not found for foreign notification, got %v", err)
	}
}

// ============================================================
// Preferences
// ============================================================

func TestUpdatePreferences_PartialUpdate(t *testing.T) {
	store := newRecordStore()
	ctx := context.Background()
	seedUser(store, "uid-1")

	p := newPortal(store, newMemObjects(), "")

	on := true
	profile, err := p.UpdatePreferences(ctx, "uid-1", &domain.UpdatePreferencesRequest{SMSAlerts: &on})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if !profile.Preferences.SMSAlerts {
		t.Error("expected sms alerts on")
	}
	// Defaults untouched
	if !profile.Preferences.EmailNotifications {
		t.Error("expected email notifications to remain on")
	}
	if profile.Preferences.TwoFactorAuth {
		t.Error("expected two factor to remain off")
	}
}

func TestUpdatePreferences_RejectsEmptyUpdate(t *testing.T) {
	store := newRecordStore()
	seedUser(store, "uid-1")
	p := newPortal(store, newMemObjects(), "")

	_, err := p.UpdatePreferences(context.Background(), "uid-1", &domain.UpdatePreferencesRequest{})
	var valErr *domain.ErrValidation
	if !errors.As(err, &valErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

// ============================================================
// Contact form
// ============================================================

func TestSubmitContact_StoresAndNotifiesOps(t *testing.T) {
	store := newRecordStore()
	p := newPortal(store, newMemObjects(), "ops-uid")

	id, err := p.SubmitContact(context.Background(), &domain.ContactRequest{
		Name:    "Jan Kowalski",
		Email:   "jan@example.com",
		Service: "Sea Freight",
		Message: "Requesting a quote for a 40ft container",
	})
	if err != nil {
		t.Fatalf("contact failed: %v", err)
	}
	if id == "" {
		t.Fatal("expected a message id")
	}
	if len(store.contacts) != 1 {
		t.Fatalf("expected 1 stored message, got %d", len(store.contacts))
	}
	if len(store.notifications["ops-uid"]) != 1 {
		t.Errorf("expected ops notification, got %d", len(store.notifications["ops-uid"]))
	}
}

func TestSubmitContact_ValidatesInput(t *testing.T) {
	p := newPortal(newRecordStore(), newMemObjects(), "")

	cases := []domain.ContactRequest{
		{Email: "a@b.com", Message: "hi"},
		{Name: "A", Email: "not-an-email", Message: "hi"},
		{Name: "A", Email: "a@b.com"},
	}
	for i, req := range cases {
		_, err := p.SubmitContact(context.Background(), &req)
		var valErr *domain.ErrValidation
		if !errors.As(err, &valErr) {
			t.Errorf("case %d: expected validation error, got %v", i, err)
		}
	}
}
