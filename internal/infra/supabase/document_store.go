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
// Document store: the "documents" table
// ============================================================

type supabaseDocument struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	Date       string `json:"date"`
	Size       string `json:"size"`
	URL        string `json:"url"`
	ObjectKey  string `json:"object_key"`
	ShipmentID string `json:"shipment_id"`
	CreatedAt  string `json:"created_at"`
}

func (d *supabaseDocument) toDomain() domain.Document {
	return domain.Document{
		ID:         d.ID,
		UserID:     d.UserID,
		Name:       d.Name,
		Status:     domain.DocumentStatus(d.Status),
		Date:       d.Date,
		Size:       d.Size,
		URL:        d.URL,
		ObjectKey:  d.ObjectKey,
		ShipmentID: d.ShipmentID,
		CreatedAt:  parseTimestamp(d.CreatedAt),
	}
}

// ListDocuments returns all documents for a user, newest first.
func (c *Client) ListDocuments(ctx context.Context, userID string) ([]domain.Document, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListDocuments")
	defer span.End()
	span.SetAttributes(attribute.String("user.uid", userID))

	var documents []domain.Document
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("documents?user_id=eq.%s&order=created_at.desc", userID)
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}
			if body == nil || string(body) == "[]" {
				documents = []domain.Document{}
				return nil
			}

			var rows []supabaseDocument
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("decode documents: %w", err)
			}
			documents = make([]domain.Document, 0, len(rows))
			for i := range rows {
				documents = append(documents, rows[i].toDomain())
			}
			return nil
		})
	})
	if err != nil {
		return nil, &domain.ErrRecordService{Op: "documents.list", Err: err}
	}
	return documents, nil
}

// CreateDocument inserts a document row. Uploads always enter Pending.
func (c *Client) CreateDocument(ctx context.Context, d *domain.Document) (string, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateDocument")
	defer span.End()
	span.SetAttributes(attribute.String("user.uid", d.UserID))

	id := d.ID
	if id == "" {
		id = uuid.New().String()
	}

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			_, err := c.doPost(ctx, "documents", map[string]any{
				"id":          id,
				"user_id":     d.UserID,
				"name":        d.Name,
				"status":      string(d.Status),
				"date":        d.Date,
				"size":        d.Size,
				"url":         d.URL,
				"object_key":  d.ObjectKey,
				"shipment_id": d.ShipmentID,
				"created_at":  time.Now().UTC().Format(time.RFC3339),
			})
			return err
		})
	})
	if err != nil {
		return "", &domain.ErrRecordService{Op: "documents.create", Err: err}
	}
	return id, nil
}

// SetDocumentStatus records a review decision from an external event.
func (c *Client) SetDocumentStatus(ctx context.Context, documentID string, status domain.DocumentStatus) error {
	ctx, span := tracer.Start(ctx, "Supabase.SetDocumentStatus")
	defer span.End()
	span.SetAttributes(
		attribute.String("document.id", documentID),
		attribute.String("document.status", string(status)),
	)

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("documents?id=eq.%s", documentID)
			return c.doPatch(ctx, path, map[string]any{"status": string(status)})
		})
	})
	if err != nil {
		return &domain.ErrRecordService{Op: "documents.set_status", Err: err}
	}
	return nil
}
