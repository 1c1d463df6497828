package domain

import "time"

// ============================================================
// Identity
// ============================================================

// Identity is the provider-issued identity: an opaque unique id plus the
// email it was registered with. The hosted identity provider owns it; this
// codebase only carries it around.
type Identity struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
}

// ProviderSession is what the identity provider hands back on a successful
// sign-in: the identity plus the tokens the client uses from then on.
type ProviderSession struct {
	Identity
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// ============================================================
// User profile
// ============================================================

// Preferences are the per-user notification settings.
type Preferences struct {
	EmailNotifications bool `json:"email_notifications"`
	SMSAlerts          bool `json:"sms_alerts"`
	TwoFactorAuth      bool `json:"two_factor_auth"`
}

// DefaultPreferences returns the preferences set on profile creation.
func DefaultPreferences() Preferences {
	return Preferences{EmailNotifications: true}
}

// UserProfile is the per-user record created at sign-up (or first federated
// login). One-to-one with Identity; last_login is touched on every sign-in.
type UserProfile struct {
	UID         string      `json:"uid"`
	Email       string      `json:"email"`
	DisplayName string      `json:"display_name,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	LastLogin   time.Time   `json:"last_login"`
	Preferences Preferences `json:"preferences"`
}

// ============================================================
// Shipments
// ============================================================

// ShipmentStatus is the canonical shipment lifecycle enum.
type ShipmentStatus string

const (
	ShipmentProcessing ShipmentStatus = "Processing"
	ShipmentInTransit  ShipmentStatus = "In Transit"
	ShipmentCustoms    ShipmentStatus = "Customs Clearance"
	ShipmentDelivered  ShipmentStatus = "Delivered"
)

// FreightType is the transport mode of a shipment.
type FreightType string

const (
	FreightSea  FreightType = "Sea Freight"
	FreightAir  FreightType = "Air Freight"
	FreightRoad FreightType = "Road Freight"
)

// TrackingEvent is one entry in a shipment's ordered event history.
type TrackingEvent struct {
	Status      ShipmentStatus `json:"status"`
	Description string         `json:"description"`
	Location    string         `json:"location,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// Shipment is a freight consignment belonging to one user. Shipments are
// created by external events, never through the portal UI; the portal
// reads them.
type Shipment struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	Origin         string          `json:"origin"`
	Destination    string          `json:"destination"`
	Status         ShipmentStatus  `json:"status"`
	ETA            string          `json:"eta"`
	Type           FreightType     `json:"type"`
	Carrier        string          `json:"carrier,omitempty"`
	TrackingEvents []TrackingEvent `json:"tracking_events,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ============================================================
// Documents
// ============================================================

// DocumentStatus is the canonical document review enum.
type DocumentStatus string

const (
	DocumentPending       DocumentStatus = "Pending"
	DocumentApproved      DocumentStatus = "Approved"
	DocumentNeedsRevision DocumentStatus = "Needs Revision"
)

// Document is an uploaded customs/shipping document. Uploads enter as
// Pending; status transitions are driven by external review events.
type Document struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	Name       string         `json:"name"`
	Status     DocumentStatus `json:"status"`
	Date       string         `json:"date"`
	Size       string         `json:"size,omitempty"`
	URL        string         `json:"url"`
	ObjectKey  string         `json:"object_key,omitempty"`
	ShipmentID string         `json:"shipment_id,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// ============================================================
// Notifications
// ============================================================

// Notification is a per-user message created by external events. The read
// flag is the only field the user mutates, and marking read is idempotent.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Message   string    `json:"message"`
	Time      string    `json:"time"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// ============================================================
// Contact messages (marketing site inquiry form)
// ============================================================

// ContactMessage is a submission from the public contact form.
type ContactMessage struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Service   string    `json:"service,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
