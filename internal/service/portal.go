package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sidu-provider/portal-api/internal/domain"
	"github.com/sidu-provider/portal-api/internal/infra/observability"
	"github.com/sidu-provider/portal-api/internal/port"
)

// maxUploadSize caps document uploads at 15 MB.
const maxUploadSize = 15 << 20

// Portal serves the customer dashboard: shipments, documents,
// notifications, preferences and the public contact form.
type Portal struct {
	store        port.RecordStore
	objects      port.ObjectStore
	profileCache port.Cache[*domain.UserProfile]
	urlTTL       time.Duration
	opsUserID    string
	metrics      *observability.Metrics
	logger       *zap.Logger
}

// NewPortal creates the portal service. objects may be nil when no
// object storage is configured; uploads then fail with a
// configuration error instead of panicking.
func NewPortal(
	store port.RecordStore,
	objects port.ObjectStore,
	profileCache port.Cache[*domain.UserProfile],
	urlTTL time.Duration,
	opsUserID string,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Portal {
	return &Portal{
		store:        store,
		objects:      objects,
		profileCache: profileCache,
		urlTTL:       urlTTL,
		opsUserID:    opsUserID,
		metrics:      metrics,
		logger:       logger,
	}
}

// Dashboard aggregates shipments, documents and notifications with one
// concurrent fan-out. If any fetch fails the whole response degrades to
// placeholder data flagged with fallback=true, so the page renders
// through a record store outage.
func (p *Portal) Dashboard(ctx context.Context, uid string) (*domain.DashboardResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "Portal.Dashboard")
	defer span.End()
	span.SetAttributes(attribute.String("user.uid", uid))

	start := time.Now()
	defer func() {
		p.metrics.RecordRequestDuration("dashboard", time.Since(start))
	}()

	var (
		shipments     []domain.Shipment
		documents     []domain.Document
		notifications []domain.Notification
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := p.store.ListShipments(gCtx, uid)
		if err != nil {
			return fmt.Errorf("shipments fetch: %w", err)
		}
		shipments = s
		return nil
	})
	g.Go(func() error {
		d, err := p.store.ListDocuments(gCtx, uid)
		if err != nil {
			return fmt.Errorf("documents fetch: %w", err)
		}
		documents = d
		return nil
	})
	g.Go(func() error {
		n, err := p.store.ListNotifications(gCtx, uid)
		if err != nil {
			return fmt.Errorf("notifications fetch: %w", err)
		}
		notifications = n
		return nil
	})

	if err := g.Wait(); err != nil {
		p.logger.Warn("dashboard: serving fallback data",
			zap.String("uid", uid),
			zap.Error(err),
		)
		p.metrics.IncrExternalError("records")
		p.metrics.IncrDashboardFallback()
		span.SetAttributes(attribute.Bool("dashboard.fallback", true))
		return fallbackDashboard(), nil
	}

	resp := buildDashboard(shipments, documents, notifications)
	return resp, nil
}

// buildDashboard derives counters and badge views from the raw records.
func buildDashboard(shipments []domain.Shipment, documents []domain.Document, notifications []domain.Notification) *domain.DashboardResponse {
	var counters domain.DashboardCounters

	shipmentViews := make([]domain.ShipmentView, 0, len(shipments))
	for _, s := range shipments {
		switch s.Status {
		case domain.ShipmentInTransit:
			counters.InTransit++
		case domain.ShipmentCustoms:
			counters.CustomsClearance++
		case domain.ShipmentDelivered:
			counters.Delivered++
		}
		if s.Status != domain.ShipmentDelivered {
			counters.ActiveShipments++
		}
		shipmentViews = append(shipmentViews, domain.ShipmentView{Shipment: s, Badge: s.Status.Badge()})
	}

	documentViews := make([]domain.DocumentView, 0, len(documents))
	for _, d := range documents {
		switch d.Status {
		case domain.DocumentPending:
			counters.PendingDocuments++
		case domain.DocumentApproved:
			counters.ApprovedDocuments++
		}
		documentViews = append(documentViews, domain.DocumentView{Document: d, Badge: d.Status.Badge()})
	}

	if notifications == nil {
		notifications = []domain.Notification{}
	}
	for _, n := range notifications {
		if !n.Read {
			counters.UnreadNotifications++
		}
	}

	return &domain.DashboardResponse{
		Counters:      counters,
		Shipments:     shipmentViews,
		Documents:     documentViews,
		Notifications: notifications,
	}
}

// Shipments lists a user's shipments with badge classes.
func (p *Portal) Shipments(ctx context.Context, uid string) ([]domain.ShipmentView, error) {
	ctx, span := tracer.Start(ctx, "Portal.Shipments")
	defer span.End()

	shipments, err := p.store.ListShipments(ctx, uid)
	if err != nil {
		p.metrics.IncrExternalError("records")
		return nil, err
	}
	views := make([]domain.ShipmentView, 0, len(shipments))
	for _, s := range shipments {
		views = append(views, domain.ShipmentView{Shipment: s, Badge: s.Status.Badge()})
	}
	return views, nil
}

// Documents lists a user's documents with badge classes.
func (p *Portal) Documents(ctx context.Context, uid string) ([]domain.DocumentView, error) {
	ctx, span := tracer.Start(ctx, "Portal.Documents")
	defer span.End()

	documents, err := p.store.ListDocuments(ctx, uid)
	if err != nil {
		p.metrics.IncrExternalError("records")
		return nil, err
	}
	views := make([]domain.DocumentView, 0, len(documents))
	for _, d := range documents {
		views = append(views, domain.DocumentView{Document: d, Badge: d.Status.Badge()})
	}
	return views, nil
}

// Notifications lists a user's notifications.
func (p *Portal) Notifications(ctx context.Context, uid string) ([]domain.Notification, error) {
	ctx, span := tracer.Start(ctx, "Portal.Notifications")
	defer span.End()

	notifications, err := p.store.ListNotifications(ctx, uid)
	if err != nil {
		p.metrics.IncrExternalError("records")
		return nil, err
	}
	return notifications, nil
}

// UploadDocument streams a file into object storage and records it as a
// Pending document. The stored object outlives request cancellation
// only if both the upload and the record write succeed.
func (p *Portal) UploadDocument(ctx context.Context, uid, filename string, size int64, contentType string, r io.Reader, shipmentID string) (*domain.DocumentView, error) {
	ctx, span := tracer.Start(ctx, "Portal.UploadDocument")
	defer span.End()
	span.SetAttributes(attribute.String("user.uid", uid))

	if p.objects == nil {
		return nil, &domain.ErrConfiguration{Key: "MINIO_ENDPOINT"}
	}
	filename = path.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." {
		return nil, &domain.ErrValidation{Field: "file", Message: "filename is required"}
	}
	if size <= 0 || size > maxUploadSize {
		return nil, &domain.ErrValidation{Field: "file", Message: "file must be between 1 byte and 15 MB"}
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := fmt.Sprintf("%s/%s-%s", uid, uuid.New().String(), filename)
	if err := p.objects.Put(ctx, key, r, size, contentType); err != nil {
		p.metrics.IncrExternalError("objectstore")
		return nil, &domain.ErrRecordService{Op: "documents.upload", Err: err}
	}

	url, err := p.objects.PresignGet(ctx, key, p.urlTTL)
	if err != nil {
		p.metrics.IncrExternalError("objectstore")
		return nil, &domain.ErrRecordService{Op: "documents.presign", Err: err}
	}

	now := time.Now().UTC()
	doc := &domain.Document{
		UserID:     uid,
		Name:       filename,
		Status:     domain.DocumentPending,
		Date:       now.Format("2006-01-02"),
		Size:       humanSize(size),
		URL:        url,
		ObjectKey:  key,
		ShipmentID: shipmentID,
		CreatedAt:  now,
	}
	id, err := p.store.CreateDocument(ctx, doc)
	if err != nil {
		// Roll back the orphaned object so storage stays consistent
		// with the record store.
		if delErr := p.objects.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			p.logger.Error("upload: orphan cleanup failed",
				zap.String("key", key),
				zap.Error(delErr),
			)
		}
		p.metrics.IncrExternalError("records")
		return nil, err
	}
	doc.ID = id

	p.metrics.IncrDocumentUploaded()
	p.logger.Info("document uploaded",
		zap.String("uid", uid),
		zap.String("document_id", id),
		zap.String("name", filename),
	)
	return &domain.DocumentView{Document: *doc, Badge: doc.Status.Badge()}, nil
}

// MarkNotificationRead marks one of the user's own notifications read.
// Marking an already-read notification succeeds without change.
func (p *Portal) MarkNotificationRead(ctx context.Context, uid, notificationID string) error {
	ctx, span := tracer.Start(ctx, "Portal.MarkNotificationRead")
	defer span.End()

	// Ownership check: users can only touch their own notifications.
	notifications, err := p.store.ListNotifications(ctx, uid)
	if err != nil {
		p.metrics.IncrExternalError("records")
		return err
	}
	owned := false
	for _, n := range notifications {
		if n.ID == notificationID {
			owned = true
			break
		}
	}
	if !owned {
		return &domain.ErrNotFound{Resource: "notification", ID: notificationID}
	}

	if err := p.store.MarkNotificationRead(ctx, notificationID); err != nil {
		p.metrics.IncrExternalError("records")
		return err
	}
	return nil
}

// Profile returns the user's profile record, cached briefly.
func (p *Portal) Profile(ctx context.Context, uid string) (*domain.UserProfile, error) {
	ctx, span := tracer.Start(ctx, "Portal.Profile")
	defer span.End()

	cacheKey := "profile:" + uid
	if cached, ok := p.profileCache.Get(cacheKey); ok {
		p.metrics.IncrCacheHit("profile")
		return cached, nil
	}
	p.metrics.IncrCacheMiss("profile")

	profile, err := p.store.GetUserProfile(ctx, uid)
	if err != nil {
		return nil, err
	}
	p.profileCache.Set(cacheKey, profile)
	return profile, nil
}

// UpdatePreferences applies a partial preferences update and returns
// the fresh profile. Omitted fields are left unchanged.
func (p *Portal) UpdatePreferences(ctx context.Context, uid string, req *domain.UpdatePreferencesRequest) (*domain.UserProfile, error) {
	ctx, span := tracer.Start(ctx, "Portal.UpdatePreferences")
	defer span.End()

	updates := map[string]any{}
	if req.EmailNotifications != nil {
		updates["email_notifications"] = *req.EmailNotifications
	}
	if req.SMSAlerts != nil {
		updates["sms_alerts"] = *req.SMSAlerts
	}
	if req.TwoFactorAuth != nil {
		updates["two_factor_auth"] = *req.TwoFactorAuth
	}
	if len(updates) == 0 {
		return nil, &domain.ErrValidation{Field: "preferences", Message: "no preference fields provided"}
	}

	if err := p.store.UpdateUserProfile(ctx, uid, updates); err != nil {
		p.metrics.IncrExternalError("records")
		return nil, err
	}
	p.profileCache.Delete("profile:" + uid)

	return p.Profile(ctx, uid)
}

// SubmitContact stores a public contact-form submission and pings the
// ops inbox when one is configured.
func (p *Portal) SubmitContact(ctx context.Context, req *domain.ContactRequest) (string, error) {
	ctx, span := tracer.Start(ctx, "Portal.SubmitContact")
	defer span.End()

	if strings.TrimSpace(req.Name) == "" {
		return "", &domain.ErrValidation{Field: "name", Message: "name is required"}
	}
	if !strings.Contains(req.Email, "@") {
		return "", &domain.ErrValidation{Field: "email", Message: "a valid email is required"}
	}
	if strings.TrimSpace(req.Message) == "" {
		return "", &domain.ErrValidation{Field: "message", Message: "message is required"}
	}

	id, err := p.store.CreateContactMessage(ctx, &domain.ContactMessage{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Service: req.Service,
		Message: req.Message,
	})
	if err != nil {
		p.metrics.IncrExternalError("records")
		return "", err
	}

	if p.opsUserID != "" {
		msg := fmt.Sprintf("New inquiry from %s (%s)", req.Name, req.Email)
		if _, err := p.store.CreateNotification(ctx, p.opsUserID, msg); err != nil {
			p.logger.Warn("contact: ops notification failed", zap.Error(err))
		}
	}

	p.logger.Info("contact message received", zap.String("message_id", id))
	return id, nil
}

// humanSize renders a byte count the way the documents table shows it.
func humanSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/float64(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
