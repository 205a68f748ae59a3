package api

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	// Status is "ok" once a reading is live, "empty" otherwise.
	Status       string `json:"status"`
	ReadingCount int    `json:"reading_count"`
	LatestKey    string `json:"latest_key,omitempty"`
	LatestAt     string `json:"latest_at,omitempty"` // RFC3339
}

// ReadingResponse is one reading in GET /api/v1/readings,
// GET /api/v1/readings/{key} or GET /api/v1/latest.
type ReadingResponse struct {
	Key        string  `json:"key"`
	BPM        float64 `json:"bpm"`
	Timestamp  string  `json:"timestamp"`
	AgentID    string  `json:"agent_id,omitempty"`
	ReceivedAt string  `json:"received_at"` // RFC3339
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}

// StreamResponse is the data pushed to /ws/stream clients on every tick.
type StreamResponse struct {
	Latest       *ReadingResponse `json:"latest"` // null until a reading is live
	ReadingCount int              `json:"reading_count"`
	GeneratedAt  string           `json:"generated_at"` // RFC3339
}
