package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/sidu-provider/portal-api/internal/domain"
	"github.com/sidu-provider/portal-api/internal/infra/resilience"
)

// ============================================================
// User profile store: the "users" table, keyed by auth uid
// ============================================================

// supabaseUser maps the users table columns to the domain profile.
type supabaseUser struct {
	UID                string `json:"uid"`
	Email              string `json:"email"`
	DisplayName        string `json:"display_name"`
	CreatedAt          string `json:"created_at"`
	LastLogin          string `json:"last_login"`
	EmailNotifications bool   `json:"email_notifications"`
	SMSAlerts          bool   `json:"sms_alerts"`
	TwoFactorAuth      bool   `json:"two_factor_auth"`
}

func (u *supabaseUser) toDomain() *domain.UserProfile {
	return &domain.UserProfile{
		UID:         u.UID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		CreatedAt:   parseTimestamp(u.CreatedAt),
		LastLogin:   parseTimestamp(u.LastLogin),
		Preferences: domain.Preferences{
			EmailNotifications: u.EmailNotifications,
			SMSAlerts:          u.SMSAlerts,
			TwoFactorAuth:      u.TwoFactorAuth,
		},
	}
}

// CreateUserProfile inserts the per-user record at sign-up time with
// default preferences.
func (c *Client) CreateUserProfile(ctx context.Context, uid, email string) error {
	ctx, span := tracer.Start(ctx, "Supabase.CreateUserProfile")
	defer span.End()
	span.SetAttributes(attribute.String("user.uid", uid))

	prefs := domain.DefaultPreferences()
	now := time.Now().UTC().Format(time.RFC3339)

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			_, err := c.doPost(ctx, "users", map[string]any{
				"uid":                 uid,
				"email":               email,
				"created_at":          now,
				"last_login":          now,
				"email_notifications": prefs.EmailNotifications,
				"sms_alerts":          prefs.SMSAlerts,
				"two_factor_auth":     prefs.TwoFactorAuth,
			})
			return err
		})
	})
	if err != nil {
		return &domain.ErrRecordService{Op: "users.create", Err: err}
	}
	return nil
}

// GetUserProfile fetches the profile for uid.
func (c *Client) GetUserProfile(ctx context.Context, uid string) (*domain.UserProfile, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetUserProfile")
	defer span.End()
	span.SetAttributes(attribute.String("user.uid", uid))

	var profile *domain.UserProfile
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("users?uid=eq.%s&limit=1", uid)
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}
			if body == nil || string(body) == "[]" {
				return resilience.Permanent(&domain.ErrNotFound{Resource: "user", ID: uid})
			}

			var rows []supabaseUser
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("decode users: %w", err)
			}
			if len(rows) == 0 {
				return resilience.Permanent(&domain.ErrNotFound{Resource: "user", ID: uid})
			}
			profile = rows[0].toDomain()
			return nil
		})
	})
	if err != nil {
		return nil, wrapStoreErr("users.get", err)
	}
	return profile, nil
}

// UpdateUserProfile patches arbitrary columns on the user row. Callers
// build the update map from validated input only.
func (c *Client) UpdateUserProfile(ctx context.Context, uid string, updates map[string]any) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateUserProfile")
	defer span.End()
	span.SetAttributes(attribute.String("user.uid", uid))

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("users?uid=eq.%s", uid)
			return c.doPatch(ctx, path, updates)
		})
	})
	if err != nil {
		return &domain.ErrRecordService{Op: "users.update", Err: err}
	}
	return nil
}

// TouchLastLogin advances last_login to now. Called on every sign-in.
func (c *Client) TouchLastLogin(ctx context.Context, uid string) error {
	ctx, span := tracer.Start(ctx, "Supabase.TouchLastLogin")
	defer span.End()

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("users?uid=eq.%s", uid)
			return c.doPatch(ctx, path, map[string]any{
				"last_login": time.Now().UTC().Format(time.RFC3339),
			})
		})
	})
	if err != nil {
		return &domain.ErrRecordService{Op: "users.touch_last_login", Err: err}
	}
	return nil
}

// wrapStoreErr keeps not-found errors typed through the resilience
// wrapping and converts everything else into a record service error.
func wrapStoreErr(op string, err error) error {
	var nf *domain.ErrNotFound
	if errors.As(err, &nf) {
		return nf
	}
	return &domain.ErrRecordService{Op: op, Err: err}
}

// parseTimestamp parses the formats PostgREST emits for timestamptz.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.999999", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
