package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/sidu-provider/portal-api/internal/domain"
	"github.com/sidu-provider/portal-api/internal/infra/resilience"
)

// ============================================================
// Shipment store: the "shipments" table
// ============================================================

// supabaseShipment maps shipment table columns. Tracking events live in
// a jsonb column ordered oldest first.
type supabaseShipment struct {
	ID             string                 `json:"id"`
	UserID         string                 `json:"user_id"`
	Origin         string                 `json:"origin"`
	Destination    string                 `json:"destination"`
	Status         string                 `json:"status"`
	ETA            string                 `json:"eta"`
	Type           string                 `json:"type"`
	Carrier        string                 `json:"carrier"`
	TrackingEvents []domain.TrackingEvent `json:"tracking_events"`
	CreatedAt      string                 `json:"created_at"`
	UpdatedAt      string                 `json:"updated_at"`
}

func (s *supabaseShipment) toDomain() domain.Shipment {
	return domain.Shipment{
		ID:             s.ID,
		UserID:         s.UserID,
		Origin:         s.Origin,
		Destination:    s.Destination,
		Status:         domain.ShipmentStatus(s.Status),
		ETA:            s.ETA,
		Type:           domain.FreightType(s.Type),
		Carrier:        s.Carrier,
		TrackingEvents: s.TrackingEvents,
		CreatedAt:      parseTimestamp(s.CreatedAt),
		UpdatedAt:      parseTimestamp(s.UpdatedAt),
	}
}

// ListShipments returns all shipments for a user, newest first.
func (c *Client) ListShipments(ctx context.Context, userID string) ([]domain.Shipment, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListShipments")
	defer span.End()
	span.SetAttributes(attribute.String("user.uid", userID))

	var shipments []domain.Shipment
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("shipments?user_id=eq.%s&order=created_at.desc", userID)
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}
			if body == nil || string(body) == "[]" {
				shipments = []domain.Shipment{}
				return nil
			}

			var rows []supabaseShipment
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("decode shipments: %w", err)
			}
			shipments = make([]domain.Shipment, 0, len(rows))
			for i := range rows {
				shipments = append(shipments, rows[i].toDomain())
			}
			return nil
		})
	})
	if err != nil {
		return nil, &domain.ErrRecordService{Op: "shipments.list", Err: err}
	}
	return shipments, nil
}

// CreateShipment inserts a shipment row. Invoked by external events,
// never directly by the portal UI.
func (c *Client) CreateShipment(ctx context.Context, s *domain.Shipment) (string, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateShipment")
	defer span.End()
	span.SetAttributes(attribute.String("user.uid", s.UserID))

	id := s.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC().Format(time.RFC3339)

	events := s.TrackingEvents
	if events == nil {
		events = []domain.TrackingEvent{}
	}

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			_, err := c.doPost(ctx, "shipments", map[string]any{
				"id":              id,
				"user_id":         s.UserID,
				"origin":          s.Origin,
				"destination":     s.Destination,
				"status":          string(s.Status),
				"eta":             s.ETA,
				"type":            string(s.Type),
				"carrier":         s.Carrier,
				"tracking_events": events,
				"created_at":      now,
				"updated_at":      now,
			})
			return err
		})
	})
	if err != nil {
		return "", &domain.ErrRecordService{Op: "shipments.create", Err: err}
	}
	return id, nil
}

// AppendTrackingEvent appends to the event history and overwrites the
// current status. Read-modify-write with last-write-wins; concurrent
// status updates for the same shipment are not expected from a single
// consumer.
func (c *Client) AppendTrackingEvent(ctx context.Context, shipmentID string, ev domain.TrackingEvent) error {
	ctx, span := tracer.Start(ctx, "Supabase.AppendTrackingEvent")
	defer span.End()
	span.SetAttributes(attribute.String("shipment.id", shipmentID))

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("shipments?id=eq.%s&limit=1", shipmentID)
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}
			if body == nil || string(body) == "[]" {
				return resilience.Permanent(&domain.ErrNotFound{Resource: "shipment", ID: shipmentID})
			}

			var rows []supabaseShipment
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("decode shipments: %w", err)
			}
			if len(rows) == 0 {
				return resilience.Permanent(&domain.ErrNotFound{Resource: "shipment", ID: shipmentID})
			}

			events := append(rows[0].TrackingEvents, ev)
			return c.doPatch(ctx, fmt.Sprintf("shipments?id=eq.%s", shipmentID), map[string]any{
				"status":          string(ev.Status),
				"tracking_events": events,
				"updated_at":      time.Now().UTC().Format(time.RFC3339),
			})
		})
	})
	if err != nil {
		return wrapStoreErr("shipments.append_event", err)
	}
	return nil
}
