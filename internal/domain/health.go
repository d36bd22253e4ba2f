package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
	Detail      string `json:"detail,omitempty"`
}

// AssistantMetrics is returned by GET /metrics/assistente.
type AssistantMetrics struct {
	TotalConsultas    int64            `json:"totalConsultas"`
	AvgLatencyMs      float64          `json:"avgLatencyMs"`
	ErrorRate         float64          `json:"errorRate"`
	FallbackRate      float64          `json:"fallbackRate"`
	AvgTokensPerCall  float64          `json:"avgTokensPerCall"`
	SnapshotHitRate   float64          `json:"snapshotHitRate"`
	LLMCacheHitRate   float64          `json:"llmCacheHitRate"`
	IntentsByKind     map[string]int64 `json:"intentsByKind"`
	MutationsByEntity map[string]int64 `json:"mutationsByEntity"`
	Period            string           `json:"period"`
}

// ListResponse wraps list results of the read endpoints.
type ListResponse[T any] struct {
	Data  []T `json:"data"`
	Total int `json:"total"`
	Limit int `json:"limit"`
}

// MessageResponse wraps a mutation acknowledgement.
type MessageResponse struct {
	ID       int64  `json:"id,omitempty"`
	Mensagem string `json:"mensagem"`
}
