package domain

import (
	"strings"
	"time"
)

// GenerationStatus tracks one transformation through its lifecycle.
// pending -> processing -> completed | failed. The terminal states are
// never left once reached.
type GenerationStatus string

const (
	StatusPending    GenerationStatus = "pending"
	StatusProcessing GenerationStatus = "processing"
	StatusCompleted  GenerationStatus = "completed"
	StatusFailed     GenerationStatus = "failed"
)

// Style selects one of the fixed transformation presets.
type Style string

const (
	StyleModern    Style = "modern"
	StyleChibi     Style = "chibi"
	StyleGhibli    Style = "ghibli"
	StyleCyberpunk Style = "cyberpunk"
)

// ParseStyle validates a style value. Empty input defaults to modern.
func ParseStyle(value string) (Style, bool) {
	switch Style(strings.ToLower(strings.TrimSpace(value))) {
	case "":
		return StyleModern, true
	case StyleModern:
		return StyleModern, true
	case StyleChibi:
		return StyleChibi, true
	case StyleGhibli:
		return StyleGhibli, true
	case StyleCyberpunk:
		return StyleCyberpunk, true
	default:
		return "", false
	}
}

// Session is an anonymous client identity keyed by an opaque token the
// client generated and holds. Created lazily on first upload, never
// mutated afterwards.
type Session struct {
	ID           string    `json:"id"`
	SessionToken string    `json:"session_token"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Generation is one requested photo -> avatar transformation.
// AvatarURL and CompletedAt are set exactly when status is completed.
type Generation struct {
	ID               string           `json:"id"`
	SessionID        string           `json:"session_id"`
	OriginalPhotoURL string           `json:"original_photo_url"`
	AvatarURL        *string          `json:"avatar_url"`
	Style            Style            `json:"style"`
	Status           GenerationStatus `json:"status"`
	PromptUsed       *string          `json:"prompt_used"`
	CreatedAt        time.Time        `json:"created_at"`
	CompletedAt      *time.Time       `json:"completed_at"`
}
