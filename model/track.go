package model

// Track is one music-track record discovered by the agent.
// Optional fields stay nil when the agent omits them and are forwarded as null.
type Track struct {
	Artist    string  `json:"artist"`
	Title     string  `json:"title"`
	Genre     *string `json:"genre"`
	SourceURL *string `json:"source_url"` // not checked for URL shape
	Note      *string `json:"note"`
}

// SendTracksRequest is the body of POST /send-tracks.
type SendTracksRequest struct {
	Tracks []Track `json:"tracks"`
}

// SendTracksResponse summarises a forwarded batch.
type SendTracksResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	TracksSent int    `json:"tracks_sent"`
	Timestamp  string `json:"timestamp"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status             string `json:"status"`
	Timestamp          string `json:"timestamp"`
	MusicAppConfigured bool   `json:"music_app_configured"`
}

// ErrorResponse carries a human readable failure for 5xx replies.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// DeliverySource tags every batch forwarded to the music app.
const DeliverySource = "ai_music_discovery"

// DeliveryPayload is the JSON body POSTed to the music app.
type DeliveryPayload struct {
	Tracks    []Track `json:"tracks"`
	Source    string  `json:"source"`
	Timestamp string  `json:"timestamp"`
}

// StringPtr returns nil for an empty string, otherwise a pointer to s.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
