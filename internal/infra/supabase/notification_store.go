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
// Notification store: "notifications" and "contact_messages" tables
// ============================================================

type supabaseNotification struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Message   string `json:"message"`
	Time      string `json:"time"`
	Read      bool   `json:"read"`
	CreatedAt string `json:"created_at"`
}

func (n *supabaseNotification) toDomain() domain.Notification {
	return domain.Notification{
		ID:        n.ID,
		UserID:    n.UserID,
		Message:   n.Message,
		Time:      n.Time,
		Read:      n.Read,
		CreatedAt: parseTimestamp(n.CreatedAt),
	}
}

// ListNotifications returns all notifications for a user, newest first.
func (c *Client) ListNotifications(ctx context.Context, userID string) ([]domain.Notification, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListNotifications")
	defer span.End()
	span.SetAttributes(attribute.String("user.uid", userID))

	var notifications []domain.Notification
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("notifications?user_id=eq.%s&order=created_at.desc", userID)
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}
			if body == nil || string(body) == "[]" {
				notifications = []domain.Notification{}
				return nil
			}

			var rows []supabaseNotification
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("decode notifications: %w", err)
			}
			notifications = make([]domain.Notification, 0, len(rows))
			for i := range rows {
				notifications = append(notifications, rows[i].toDomain())
			}
			return nil
		})
	})
	if err != nil {
		return nil, &domain.ErrRecordService{Op: "notifications.list", Err: err}
	}
	return notifications, nil
}

// CreateNotification inserts an unread notification for a user.
func (c *Client) CreateNotification(ctx context.Context, userID, message string) (string, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateNotification")
	defer span.End()
	span.SetAttributes(attribute.String("user.uid", userID))

	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			_, err := c.doPost(ctx, "notifications", map[string]any{
				"id":         id,
				"user_id":    userID,
				"message":    message,
				"time":       now.Format("Jan 2, 2006 15:04"),
				"read":       false,
				"created_at": now.Format(time.RFC3339),
			})
			return err
		})
	})
	if err != nil {
		return "", &domain.ErrRecordService{Op: "notifications.create", Err: err}
	}
	return id, nil
}

// MarkNotificationRead sets read=true. Patching an already-read row is
// a no-op, which keeps the operation idempotent.
func (c *Client) MarkNotificationRead(ctx context.Context, notificationID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.MarkNotificationRead")
	defer span.End()
	span.SetAttributes(attribute.String("notification.id", notificationID))

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("notifications?id=eq.%s", notificationID)
			return c.doPatch(ctx, path, map[string]any{"read": true})
		})
	})
	if err != nil {
		return &domain.ErrRecordService{Op: "notifications.mark_read", Err: err}
	}
	return nil
}

// CreateContactMessage stores a public contact-form submission.
func (c *Client) CreateContactMessage(ctx context.Context, m *domain.ContactMessage) (string, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateContactMessage")
	defer span.End()

	id := uuid.New().String()

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			_, err := c.doPost(ctx, "contact_messages", map[string]any{
				"id":         id,
				"name":       m.Name,
				"email":      m.Email,
				"phone":      m.Phone,
				"service":    m.Service,
				"message":    m.Message,
				"created_at": time.Now().UTC().Format(time.RFC3339),
			})
			return err
		})
	})
	if err != nil {
		return "", &domain.ErrRecordService{Op: "contact_messages.create", Err: err}
	}
	return id, nil
}
