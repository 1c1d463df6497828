package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/sidu-provider/portal-api/internal/content"
	"github.com/sidu-provider/portal-api/internal/domain"
	"github.com/sidu-provider/portal-api/internal/infra/observability"
	"github.com/sidu-provider/portal-api/internal/service"
	"github.com/sidu-provider/portal-api/internal/session"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
// Routes follow the API contract of the SIDU Provider portal frontend.
func NewRouter(authSvc *service.Auth, portalSvc *service.Portal, site *content.Site, metrics *observability.Metrics, allowedOrigins []string, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(requestCounterMiddleware(metrics))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(portalSvc, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// =============================================
		// 1. Public marketing site
		// GET  /v1/content
		// POST /v1/contact
		// =============================================
		r.Get("/content", contentHandler(site))
		r.Post("/contact", contactHandler(portalSvc, logger))

		// =============================================
		// 2. Authentication
		// =============================================
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", signUpHandler(authSvc, logger))
			r.Post("/signin", signInHandler(authSvc, logger))
			r.Get("/federated/{provider}", federatedStartHandler(authSvc, logger))
			r.Post("/federated/exchange", federatedExchangeHandler(authSvc, logger))
			r.Post("/signout", signOutHandler(authSvc, logger))
		})

		// =============================================
		// 3. Session state
		// GET /v1/session
		// =============================================
		r.Get("/session", sessionHandler(authSvc))

		// =============================================
		// 4. Metrics summary
		// GET /v1/metrics/summary
		// =============================================
		r.Get("/metrics/summary", metricsSummaryHandler(metrics))

		// =============================================
		// 5. Customer dashboard (token required)
		// =============================================
		r.Route("/me", func(r chi.Router) {
			r.Use(AuthMiddleware(authSvc, logger))

			r.Get("/profile", profileHandler(portalSvc, logger))
			r.Patch("/preferences", updatePreferencesHandler(portalSvc, logger))
			r.Get("/dashboard", dashboardHandler(portalSvc, logger))
			r.Get("/shipments", shipmentsHandler(portalSvc, logger))
			r.Get("/documents", documentsHandler(portalSvc, logger))
			r.Post("/documents", uploadDocumentHandler(portalSvc, logger))
			r.Get("/notifications", notificationsHandler(portalSvc, logger))
			r.Post("/notifications/{notificationId}/read", markNotificationReadHandler(portalSvc, logger))
		})
	})

	return r
}

// requestCounterMiddleware counts responses by status class.
func requestCounterMiddleware(metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			metrics.IncrRequest(strconv.Itoa(ww.Status()/100) + "xx")
		})
	}
}

// ============================================================
// 1. Marketing site
// ============================================================

func contentHandler(site *content.Site) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, site)
	}
}

func contactHandler(portalSvc *service.Portal, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/contact")
		defer span.End()

		var req domain.ContactRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		id, err := portalSvc.SubmitContact(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{
			"id":      id,
			"message": "inquiry received",
		})
	}
}

// ============================================================
// 2. Authentication
// ============================================================

func signUpHandler(authSvc *service.Auth, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/signup")
		defer span.End()

		var req domain.SignUpRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		identity, err := authSvc.SignUp(ctx, req.Email, req.Password)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, identity)
	}
}

func signInHandler(authSvc *service.Auth, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/signin")
		defer span.End()

		var req domain.SignInRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		sess, err := authSvc.SignIn(ctx, req.Email, req.Password)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, sessionResponseFrom(sess))
	}
}

func federatedStartHandler(authSvc *service.Auth, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "GET /v1/auth/federated/{provider}")
		defer span.End()

		provider := chi.URLParam(r, "provider")
		redirectTo := r.URL.Query().Get("redirect_to")

		authorizeURL, err := authSvc.FederatedStart(provider, redirectTo)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.FederatedStartResponse{
			Provider:     provider,
			AuthorizeURL: authorizeURL,
		})
	}
}

func federatedExchangeHandler(authSvc *service.Auth, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/federated/exchange")
		defer span.End()

		var req domain.FederatedExchangeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		sess, err := authSvc.FederatedExchange(ctx, req.Code, req.CodeVerifier)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, sessionResponseFrom(sess))
	}
}

// signOutHandler never fails: local state is cleared even when the
// provider call cannot be made, so the client always ends signed out.
func signOutHandler(authSvc *service.Auth, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/signout")
		defer span.End()

		token := bearerToken(r)
		if err := authSvc.SignOut(ctx, token); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "signed out"})
	}
}

func bearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	return ""
}

func sessionResponseFrom(sess *domain.ProviderSession) domain.SessionResponse {
	return domain.SessionResponse{
		UID:          sess.UID,
		Email:        sess.Email,
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
		ExpiresIn:    sess.ExpiresIn,
	}
}

// ============================================================
// 3. Session state
// ============================================================

type sessionStateResponse struct {
	State session.State `json:"state"`
	UID   string        `json:"uid,omitempty"`
}

func sessionHandler(authSvc *service.Auth) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot := authSvc.Session()
		writeJSON(w, http.StatusOK, sessionStateResponse{
			State: snapshot.State,
			UID:   snapshot.UID,
		})
	}
}

// ============================================================
// 4. Metrics & health
// ============================================================

func metricsSummaryHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.Snapshot())
	}
}

func healthzHandler(portalSvc *service.Portal, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "portal-api", Status: "healthy", LatencyMs: 0, LastChecked: now},
		}

		start := time.Now()
		_, err := portalSvc.Notifications(ctx, "health-check")
		latency := time.Since(start).Milliseconds()
		status := "healthy"
		if err != nil {
			status = "degraded"
		}
		services = append(services, domain.ServiceHealth{
			Name: "records", Status: status, LatencyMs: latency, LastChecked: now,
		})

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// ============================================================
// 5. Customer dashboard
// ============================================================

func profileHandler(portalSvc *service.Portal, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/me/profile")
		defer span.End()

		profile, err := portalSvc.Profile(ctx, UIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}

func updatePreferencesHandler(portalSvc *service.Portal, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/me/preferences")
		defer span.End()

		var req domain.UpdatePreferencesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		profile, err := portalSvc.UpdatePreferences(ctx, UIDFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}

func dashboardHandler(portalSvc *service.Portal, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/me/dashboard")
		defer span.End()

		resp, err := portalSvc.Dashboard(ctx, UIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func shipmentsHandler(portalSvc *service.Portal, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/me/shipments")
		defer span.End()

		shipments, err := portalSvc.Shipments(ctx, UIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, shipments)
	}
}

func documentsHandler(portalSvc *service.Portal, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/me/documents")
		defer span.End()

		documents, err := portalSvc.Documents(ctx, UIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, documents)
	}
}

// uploadDocumentHandler accepts multipart form uploads. Fields:
// "file" (required) and "shipmentId" (optional link to a shipment).
func uploadDocumentHandler(portalSvc *service.Portal, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/me/documents")
		defer span.End()

		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
			return
		}
		defer file.Close()

		doc, err := portalSvc.UploadDocument(ctx, UIDFromContext(ctx),
			header.Filename, header.Size, header.Header.Get("Content-Type"),
			file, r.FormValue("shipmentId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, doc)
	}
}

func notificationsHandler(portalSvc *service.Portal, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/me/notifications")
		defer span.End()

		notifications, err := portalSvc.Notifications(ctx, UIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, notifications)
	}
}

func markNotificationReadHandler(portalSvc *service.Portal, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/me/notifications/{notificationId}/read")
		defer span.End()

		id := chi.URLParam(r, "notificationId")
		if err := portalSvc.MarkNotificationRead(ctx, UIDFromContext(ctx), id); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "notification marked read"})
	}
}
