package domain

import "time"

// Export is a downloadable artifact capturing one completed analysis: the
// question, the answer, the reasoning trace if any, the model parameters,
// and the exact chunk list the model saw. Artifacts are transient and are
// deleted by a background sweep once ExpiresAt passes.
type Export struct {
	ID        string         `json:"id"`
	Question  string         `json:"question"`
	Answer    string         `json:"answer"`
	Reasoning string         `json:"reasoning,omitempty"`
	Model     string         `json:"model"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Chunks    []Chunk        `json:"chunks"`
	CreatedAt time.Time      `json:"created_at"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// Expired reports whether the artifact has passed its retention window.
func (e *Export) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}
