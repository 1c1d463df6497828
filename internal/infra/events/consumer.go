// Package events ingests external logistics events from RabbitMQ.
// Shipments, tracking updates, document reviews and customer
// notifications are all created by upstream operations systems; the
// portal only consumes them and writes the results to the record store.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/sidu-provider/portal-api/internal/domain"
	"github.com/sidu-provider/portal-api/internal/port"
)

const (
	QueueShipmentEvents  = "shipment_events"
	QueueDocumentReviews = "document_reviews"
	QueueNotifications   = "client_notifications"
)

// metricsRecorder is the slice of observability.Metrics the consumer needs.
type metricsRecorder interface {
	IncrEventConsumed(queue string)
	IncrExternalError(service string)
}

// Handlers applies event payloads to the record store. Split from the
// broker plumbing so payload handling stays testable without an AMQP
// connection.
type Handlers struct {
	store  port.RecordStore
	logger *zap.Logger
}

// NewHandlers creates the payload handlers.
func NewHandlers(store port.RecordStore, logger *zap.Logger) *Handlers {
	return &Handlers{store: store, logger: logger}
}

// Consumer reads from the portal queues and dispatches to Handlers.
type Consumer struct {
	*Handlers
	conn    *amqp.Connection
	ch      *amqp.Channel
	metrics metricsRecorder
}

// NewConsumer dials RabbitMQ and declares the portal queues.
func NewConsumer(url string, store port.RecordStore, metrics metricsRecorder, logger *zap.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	for _, q := range []string{QueueShipmentEvents, QueueDocumentReviews, QueueNotifications} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("declare queue %s: %w", q, err)
		}
	}

	return &Consumer{
		Handlers: NewHandlers(store, logger),
		conn:     conn,
		ch:       ch,
		metrics:  metrics,
	}, nil
}

// Run consumes all queues until ctx is cancelled, then closes the
// connection and waits for in-flight handlers.
func (c *Consumer) Run(ctx context.Context) error {
	handlers := map[string]func(context.Context, []byte) error{
		QueueShipmentEvents:  c.HandleShipmentEvent,
		QueueDocumentReviews: c.HandleDocumentReview,
		QueueNotifications:   c.HandleNotification,
	}

	var wg sync.WaitGroup
	for queue, handler := range handlers {
		deliveries, err := c.ch.Consume(queue, "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("consume %s: %w", queue, err)
		}

		wg.Add(1)
		go func(queue string, deliveries <-chan amqp.Delivery, handler func(context.Context, []byte) error) {
			defer wg.Done()
			c.work(ctx, queue, deliveries, handler)
		}(queue, deliveries, handler)
	}

	<-ctx.Done()
	c.ch.Close()
	c.conn.Close()
	wg.Wait()
	return nil
}

func (c *Consumer) work(ctx context.Context, queue string, deliveries <-chan amqp.Delivery, handler func(context.Context, []byte) error) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			if err := handler(ctx, d.Body); err != nil {
				c.logger.Error("events: handler failed",
					zap.String("queue", queue),
					zap.Error(err),
				)
				c.metrics.IncrExternalError("events/" + queue)
				// Bad payloads are dropped, not redelivered forever.
				d.Nack(false, false)
				continue
			}
			c.metrics.IncrEventConsumed(queue)
			d.Ack(false)
		}
	}
}

// ============================================================
// Payloads and handlers
// ============================================================

// ShipmentEvent is the shipment_events payload. Type selects between
// creating a shipment and appending a tracking update.
type ShipmentEvent struct {
	Type     string `json:"type"` // shipment.created | shipment.status_changed
	Shipment *struct {
		ID          string `json:"id"`
		UserID      string `json:"user_id"`
		Origin      string `json:"origin"`
		Destination string `json:"destination"`
		Status      string `json:"status"`
		ETA         string `json:"eta"`
		FreightType string `json:"freight_type"`
		Carrier     string `json:"carrier"`
	} `json:"shipment,omitempty"`
	ShipmentID string `json:"shipment_id,omitempty"`
	Event      *struct {
		Status      string `json:"status"`
		Description string `json:"description"`
		Location    string `json:"location"`
		Timestamp   string `json:"timestamp"`
	} `json:"event,omitempty"`
}

// HandleShipmentEvent applies one shipment_events message.
func (h *Handlers) HandleShipmentEvent(ctx context.Context, body []byte) error {
	var ev ShipmentEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("decode shipment event: %w", err)
	}

	switch ev.Type {
	case "shipment.created":
		if ev.Shipment == nil || ev.Shipment.UserID == "" {
			return fmt.Errorf("shipment.created missing shipment payload")
		}
		status := domain.ShipmentStatus(ev.Shipment.Status)
		if ev.Shipment.Status == "" {
			status = domain.ShipmentProcessing
		}
		if !domain.ValidShipmentStatus(status) {
			return fmt.Errorf("unknown shipment status %q", ev.Shipment.Status)
		}

		id, err := h.store.CreateShipment(ctx, &domain.Shipment{
			ID:          ev.Shipment.ID,
			UserID:      ev.Shipment.UserID,
			Origin:      ev.Shipment.Origin,
			Destination: ev.Shipment.Destination,
			Status:      status,
			ETA:         ev.Shipment.ETA,
			Type:        domain.FreightType(ev.Shipment.FreightType),
			Carrier:     ev.Shipment.Carrier,
		})
		if err != nil {
			return err
		}
		h.logger.Info("events: shipment created",
			zap.String("shipment_id", id),
			zap.String("user_id", ev.Shipment.UserID),
		)
		return nil

	case "shipment.status_changed":
		if ev.ShipmentID == "" || ev.Event == nil {
			return fmt.Errorf("shipment.status_changed missing shipment_id or event")
		}
		status := domain.ShipmentStatus(ev.Event.Status)
		if !domain.ValidShipmentStatus(status) {
			return fmt.Errorf("unknown shipment status %q", ev.Event.Status)
		}

		ts := time.Now().UTC()
		if ev.Event.Timestamp != "" {
			if parsed, err := time.Parse(time.RFC3339, ev.Event.Timestamp); err == nil {
				ts = parsed
			}
		}
		return h.store.AppendTrackingEvent(ctx, ev.ShipmentID, domain.TrackingEvent{
			Status:      status,
			Description: ev.Event.Description,
			Location:    ev.Event.Location,
			Timestamp:   ts,
		})

	default:
		return fmt.Errorf("unknown shipment event type %q", ev.Type)
	}
}

// DocumentReview is the document_reviews payload. When UserID is set a
// notification about the decision is created alongside the status change.
type DocumentReview struct {
	DocumentID   string `json:"document_id"`
	Status       string `json:"status"`
	UserID       string `json:"user_id,omitempty"`
	DocumentName string `json:"document_name,omitempty"`
}

// HandleDocumentReview applies one document review decision.
func (h *Handlers) HandleDocumentReview(ctx context.Context, body []byte) error {
	var rev DocumentReview
	if err := json.Unmarshal(body, &rev); err != nil {
		return fmt.Errorf("decode document review: %w", err)
	}
	if rev.DocumentID == "" {
		return fmt.Errorf("document review missing document_id")
	}
	status := domain.DocumentStatus(rev.Status)
	if !domain.ValidDocumentStatus(status) {
		return fmt.Errorf("unknown document status %q", rev.Status)
	}

	if err := h.store.SetDocumentStatus(ctx, rev.DocumentID, status); err != nil {
		return err
	}

	if rev.UserID != "" {
		name := rev.DocumentName
		if name == "" {
			name = "Your document"
		}
		msg := fmt.Sprintf("%s review result: %s", name, status)
		if _, err := h.store.CreateNotification(ctx, rev.UserID, msg); err != nil {
			// Status already applied; a lost notification is not worth
			// redelivering the whole message.
			h.logger.Warn("events: review notification failed",
				zap.String("document_id", rev.DocumentID),
				zap.Error(err),
			)
		}
	}
	return nil
}

// NotificationEvent is the client_notifications payload.
type NotificationEvent struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// HandleNotification creates one notification for a user.
func (h *Handlers) HandleNotification(ctx context.Context, body []byte) error {
	var ev NotificationEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("decode notification event: %w", err)
	}
	if ev.UserID == "" || ev.Message == "" {
		return fmt.Errorf("notification event missing user_id or message")
	}

	_, err := h.store.CreateNotification(ctx, ev.UserID, ev.Message)
	return err
}
