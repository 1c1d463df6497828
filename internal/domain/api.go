package domain

// ============================================================
// Auth request / response types (matches the portal SPA contract)
// ============================================================

// SignUpRequest is the body for POST /v1/auth/signup.
type SignUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignInRequest is the body for POST /v1/auth/signin.
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse is returned from sign-in and federated code exchange.
type SessionResponse struct {
	UID          string `json:"uid"`
	Email        string `json:"email"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresIn    int    `json:"expiresIn"`
}

// FederatedStartResponse carries the provider authorize URL the SPA
// redirects to. The server-side analogue of the sign-in popup.
type FederatedStartResponse struct {
	Provider     string `json:"provider"`
	AuthorizeURL string `json:"authorizeUrl"`
}

// FederatedExchangeRequest is the body for POST /v1/auth/federated/exchange.
type FederatedExchangeRequest struct {
	Code         string `json:"code"`
	CodeVerifier string `json:"codeVerifier,omitempty"`
}

// UpdatePreferencesRequest is the body for PATCH /v1/me/preferences.
// Pointers so an omitted field means "leave unchanged".
type UpdatePreferencesRequest struct {
	EmailNotifications *bool `json:"emailNotifications,omitempty"`
	SMSAlerts          *bool `json:"smsAlerts,omitempty"`
	TwoFactorAuth      *bool `json:"twoFactorAuth,omitempty"`
}

// ============================================================
// Dashboard
// ============================================================

// ShipmentView is a shipment plus its derived badge class.
type ShipmentView struct {
	Shipment
	Badge BadgeClass `json:"badge"`
}

// DocumentView is a document plus its derived badge class.
type DocumentView struct {
	Document
	Badge BadgeClass `json:"badge"`
}

// DashboardCounters are the headline numbers at the top of the dashboard.
type DashboardCounters struct {
	ActiveShipments     int `json:"activeShipments"`
	InTransit           int `json:"inTransit"`
	CustomsClearance    int `json:"customsClearance"`
	Delivered           int `json:"delivered"`
	PendingDocuments    int `json:"pendingDocuments"`
	ApprovedDocuments   int `json:"approvedDocuments"`
	UnreadNotifications int `json:"unreadNotifications"`
}

// DashboardResponse is the aggregate payload for GET /v1/me/dashboard.
// Fallback is true when the record store was unreachable and the payload
// holds static placeholder data instead of real records.
type DashboardResponse struct {
	Counters      DashboardCounters `json:"counters"`
	Shipments     []ShipmentView    `json:"shipments"`
	Documents     []DocumentView    `json:"documents"`
	Notifications []Notification    `json:"notifications"`
	Fallback      bool              `json:"fallback"`
}

// ContactRequest is the body for POST /v1/contact.
type ContactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Service string `json:"service,omitempty"`
	Message string `json:"message"`
}

// SuccessResponse is a generic message envelope.
type SuccessResponse struct {
	Message string `json:"message"`
}

// ============================================================
// Health
// ============================================================

// ServiceHealth describes one dependency in the health report.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latency_ms"`
	LastChecked string `json:"last_checked"`
}

// HealthStatus is the aggregate payload for GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"`
	Services []ServiceHealth `json:"services"`
}
