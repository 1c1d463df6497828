package service

import (
	"context"

	"github.com/sidu-provider/portal-api/internal/domain"
)

// fallbackDashboard returns the static placeholder dashboard shown when
// the record store is unreachable. The data is deliberately generic
// sample freight so an outage degrades to a demo view instead of an
// error page.
func fallbackDashboard() *domain.DashboardResponse {
	shipments := []domain.Shipment{
		{
			ID:          "SIDU-2391",
			Origin:      "Shanghai, China",
			Destination: "Rotterdam, Netherlands",
			Status:      domain.ShipmentInTransit,
			ETA:         "2026-09-12",
			Type:        domain.FreightSea,
			Carrier:     "SIDU Ocean Line",
		},
		{
			ID:          "SIDU-2384",
			Origin:      "Frankfurt, Germany",
			Destination: "Chicago, USA",
			Status:      domain.ShipmentCustoms,
			ETA:         "2026-09-02",
			Type:        domain.FreightAir,
			Carrier:     "SIDU Air Cargo",
		},
		{
			ID:          "SIDU-2377",
			Origin:      "Warsaw, Poland",
			Destination: "Madrid, Spain",
			Status:      domain.ShipmentDelivered,
			ETA:         "2026-08-21",
			Type:        domain.FreightRoad,
			Carrier:     "SIDU Road Express",
		},
	}

	documents := []domain.Document{
		{
			ID:     "DOC-1044",
			Name:   "Commercial Invoice.pdf",
			Status: domain.DocumentApproved,
			Date:   "2026-08-18",
			Size:   "245.0 KB",
		},
		{
			ID:     "DOC-1045",
			Name:   "Packing List.pdf",
			Status: domain.DocumentPending,
			Date:   "2026-08-24",
			Size:   "180.5 KB",
		},
		{
			ID:     "DOC-1046",
			Name:   "Certificate of Origin.pdf",
			Status: domain.DocumentNeedsRevision,
			Date:   "2026-08-25",
			Size:   "92.3 KB",
		},
	}

	notifications := []domain.Notification{
		{
			ID:      "NTF-301",
			Message: "Shipment SIDU-2391 departed Shanghai",
			Time:    "2 hours ago",
		},
		{
			ID:      "NTF-302",
			Message: "Packing List.pdf is awaiting review",
			Time:    "1 day ago",
		},
	}

	resp := buildDashboard(shipments, documents, notifications)
	resp.Fallback = true
	return resp
}

// UnavailableStore is the record store used when no backend is
// configured. Every operation fails with a record service error
// wrapping the missing setting, so handlers report 503 and the
// dashboard serves its fallback payload.
type UnavailableStore struct {
	Key string // the missing configuration key
}

func (u UnavailableStore) err(op string) error {
	return &domain.ErrRecordService{Op: op, Err: &domain.ErrConfiguration{Key: u.Key}}
}

func (u UnavailableStore) CreateUserProfile(ctx context.Context, uid, email string) error {
	return u.err("users.create")
}

func (u UnavailableStore) GetUserProfile(ctx context.Context, uid string) (*domain.UserProfile, error) {
	return nil, u.err("users.get")
}

func (u UnavailableStore) UpdateUserProfile(ctx context.Context, uid string, updates map[string]any) error {
	return u.err("users.update")
}

func (u UnavailableStore) TouchLastLogin(ctx context.Context, uid string) error {
	return u.err("users.touch_last_login")
}

func (u UnavailableStore) ListShipments(ctx context.Context, userID string) ([]domain.Shipment, error) {
	return nil, u.err("shipments.list")
}

func (u UnavailableStore) CreateShipment(ctx context.Context, s *domain.Shipment) (string, error) {
	return "", u.err("shipments.create")
}

func (u UnavailableStore) AppendTrackingEvent(ctx context.Context, shipmentID string, ev domain.TrackingEvent) error {
	return u.err("shipments.append_event")
}

func (u UnavailableStore) ListDocuments(ctx context.Context, userID string) ([]domain.Document, error) {
	return nil, u.err("documents.list")
}

func (u UnavailableStore) CreateDocument(ctx context.Context, d *domain.Document) (string, error) {
	return "", u.err("documents.create")
}

func (u UnavailableStore) SetDocumentStatus(ctx context.Context, documentID string, status domain.DocumentStatus) error {
	return u.err("documents.set_status")
}

func (u UnavailableStore) ListNotifications(ctx context.Context, userID string) ([]domain.Notification, error) {
	return nil, u.err("notifications.list")
}

func (u UnavailableStore) CreateNotification(ctx context.Context, userID, message string) (string, error) {
	return "", u.err("notifications.create")
}

func (u UnavailableStore) MarkNotificationRead(ctx context.Context, notificationID string) error {
	return u.err("notifications.mark_read")
}

func (u UnavailableStore) CreateContactMessage(ctx context.Context, m *domain.ContactMessage) (string, error) {
	return "", u.err("contact_messages.create")
}
