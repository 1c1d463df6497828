package events_test

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/sidu-provider/portal-api/internal/domain"
	"github.com/sidu-provider/portal-api/internal/infra/events"
)

// fakeStore records the store calls the handlers make.
type fakeStore struct {
	shipments      []domain.Shipment
	trackingEvents map[string][]domain.TrackingEvent
	docStatuses    map[string]domain.DocumentStatus
	notifications  []domain.Notification
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		trackingEvents: make(map[string][]domain.TrackingEvent),
		docStatuses:    make(map[string]domain.DocumentStatus),
	}
}

func (f *fakeStore) CreateUserProfile(ctx context.Context, uid, email string) error { return nil }
func (f *fakeStore) GetUserProfile(ctx context.Context, uid string) (*domain.UserProfile, error) {
	return nil, &domain.ErrNotFound{Resource: "user", ID: uid}
}
func (f *fakeStore) UpdateUserProfile(ctx context.Context, uid string, updates map[string]any) error {
	return nil
}
func (f *fakeStore) TouchLastLogin(ctx context.Context, uid string) error { return nil }

func (f *fakeStore) ListShipments(ctx context.Context, userID string) ([]domain.Shipment, error) {
	return f.shipments, nil
}
func (f *fakeStore) CreateShipment(ctx context.Context, s *domain.Shipment) (string, error) {
	if s.ID == "" {
		s.ID = "shp-1"
	}
	f.shipments = append(f.shipments, *s)
	return s.ID, nil
}
func (f *fakeStore) AppendTrackingEvent(ctx context.Context, shipmentID string, ev domain.TrackingEvent) error {
	f.trackingEvents[shipmentID] = append(f.trackingEvents[shipmentID], ev)
	return nil
}

func (f *fakeStore) ListDocuments(ctx context.Context, userID string) ([]domain.Document, error) {
	return nil, nil
}
func (f *fakeStore) CreateDocument(ctx context.Context, d *domain.Document) (string, error) {
	return "doc-1", nil
}
func (f *fakeStore) SetDocumentStatus(ctx context.Context, documentID string, status domain.DocumentStatus) error {
	f.docStatuses[documentID] = status
	return nil
}

func (f *fakeStore) ListNotifications(ctx context.Context, userID string) ([]domain.Notification, error) {
	return f.notifications, nil
}
func (f *fakeStore) CreateNotification(ctx context.Context, userID, message string) (string, error) {
	f.notifications = append(f.notifications, domain.Notification{
		ID:      "ntf-1",
		UserID:  userID,
		Message: message,
	})
	return "ntf-1", nil
}
func (f *fakeStore) MarkNotificationRead(ctx context.Context, notificationID string) error {
	return nil
}
func (f *fakeStore) CreateContactMessage(ctx context.Context, m *domain.ContactMessage) (string, error) {
	return "msg-1", nil
}

func TestHandleShipmentEvent_Created(t *testing.T) {
	store := newFakeStore()
	h := events.NewHandlers(store, zap.NewNop())

	payload := []byte(`{
		"type": "shipment.created",
		"shipment": {
			"user_id": "uid-1",
			"origin": "Shanghai, China",
			"destination": "Rotterdam, Netherlands",
			"status": "In Transit",
			"eta": "2026-09-15",
			"freight_type": "Sea Freight",
			"carrier": "Maersk"
		}
	}`)

	if err := h.HandleShipmentEvent(context.Background(), payload); err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if len(store.shipments) != 1 {
		t.Fatalf("expected 1 shipment, got %d", len(store.shipments))
	}
	s := store.shipments[0]
	if s.UserID != "uid-1" || s.Status != domain.ShipmentInTransit || s.Type != domain.FreightSea {
		t.Errorf("unexpected shipment: %+v", s)
	}
}

func TestHandleShipmentEvent_CreatedDefaultsToProcessing(t *testing.T) {
	store := newFakeStore()
	h := events.NewHandlers(store, zap.NewNop())

	payload := []byte(`{"type": "shipment.created", "shipment": {"user_id": "uid-1", "origin": "A", "destination": "B"}}`)
	if err := h.HandleShipmentEvent(context.Background(), payload); err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if store.shipments[0].Status != domain.ShipmentProcessing {
		t.Errorf("expected Processing, got %s", store.shipments[0].Status)
	}
}

func TestHandleShipmentEvent_StatusChanged(t *testing.T) {
	store := newFakeStore()
	h := events.NewHandlers(store, zap.NewNop())

	payload := []byte(`{
		"type": "shipment.status_changed",
		"shipment_id": "shp-9",
		"event": {
			"status": "Customs Clearance",
			"description": "Arrived at port of entry",
			"location": "Rotterdam",
			"timestamp": "2026-08-20T10:00:00Z"
		}
	}`)

	if err := h.HandleShipmentEvent(context.Background(), payload); err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	evs := store.trackingEvents["shp-9"]
	if len(evs) != 1 {
		t.Fatalf("expected 1 tracking event, got %d", len(evs))
	}
	if evs[0].Status != domain.ShipmentCustoms || evs[0].Location != "Rotterdam" {
		t.Errorf("unexpected event: %+v", evs[0])
	}
}

func TestHandleShipmentEvent_RejectsUnknownStatus(t *testing.T) {
	store := newFakeStore()
	h := events.NewHandlers(store, zap.NewNop())

	payload := []byte(`{"type": "shipment.status_changed", "shipment_id": "shp-9", "event": {"status": "Teleported"}}`)
	if err := h.HandleShipmentEvent(context.Background(), payload); err == nil {
		t.Fatal("expected error for unknown status")
	}
	if len(store.trackingEvents) != 0 {
		t.Error("expected no tracking events written")
	}
}

func TestHandleShipmentEvent_RejectsUnknownType(t *testing.T) {
	h := events.NewHandlers(newFakeStore(), zap.NewNop())

	payload := []byte(`{"type": "shipment.vanished"}`)
	if err := h.HandleShipmentEvent(context.Background(), payload); err == nil {
		t.Fatal("expected error for unknown event type")
	}
}

func TestHandleDocumentReview_SetsStatusAndNotifies(t *testing.T) {
	store := newFakeStore()
	h := events.NewHandlers(store, zap.NewNop())

	payload := []byte(`{
		"document_id": "doc-7",
		"status": "Approved",
		"user_id": "uid-1",
		"document_name": "Commercial Invoice.pdf"
	}`)

	if err := h.HandleDocumentReview(context.Background(), payload); err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if store.docStatuses["doc-7"] != domain.DocumentApproved {
		t.Errorf("expected Approved, got %s", store.docStatuses["doc-7"])
	}
	if len(store.notifications) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(store.notifications))
	}
	if store.notifications[0].UserID != "uid-1" {
		t.Errorf("unexpected notification target: %s", store.notifications[0].UserID)
	}
}

func TestHandleDocumentReview_RejectsUnknownStatus(t *testing.T) {
	store := newFakeStore()
	h := events.NewHandlers(store, zap.NewNop())

	payload := []byte(`{"document_id": "doc-7", "status": "Maybe"}`)
	if err := h.HandleDocumentReview(context.Background(), payload); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestHandleNotification(t *testing.T) {
	store := newFakeStore()
	h := events.NewHandlers(store, zap.NewNop())

	payload := []byte(`{"user_id": "uid-1", "message": "Your shipment has cleared customs"}`)
	if err := h.HandleNotification(context.Background(), payload); err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if len(store.notifications) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(store.notifications))
	}
}

func TestHandleNotification_RequiresFields(t *testing.T) {
	h := events.NewHandlers(newFakeStore(), zap.NewNop())

	if err := h.HandleNotification(context.Background(), []byte(`{"user_id": "uid-1"}`)); err == nil {
		t.Fatal("expected error for missing message")
	}
}
