package domain

// PortalMetrics is a point-in-time summary of service health counters,
// served at GET /v1/metrics/summary for ops dashboards that do not
// scrape Prometheus directly.
type PortalMetrics struct {
	TotalRequests      int64   `json:"totalRequests"`
	ErrorRate          float64 `json:"errorRate"`
	TokenCacheHitRate  float64 `json:"tokenCacheHitRate"`
	DashboardFallbacks int64   `json:"dashboardFallbacks"`
	DocumentsUploaded  int64   `json:"documentsUploaded"`
	Period             string  `json:"period"`
}
