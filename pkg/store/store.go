package store

import (
	"time"

	"animeavatar/pkg/domain"
)

// Store defines persistence operations for sessions and generations.
type Store interface {
	// sessions
	GetSessionByToken(token string) (domain.Session, bool, error)
	CreateSession(domain.Session) error

	// generations
	CreateGeneration(domain.Generation) error
	GetGeneration(id string) (domain.Generation, bool, error)
	SetGenerationStatus(id string, status domain.GenerationStatus) error
	MarkProcessing(id string, prompt string) error
	CompleteGeneration(id string, avatarURL string, completedAt time.Time) error
	ListGenerationsBySession(sessionID string, limit, offset int) ([]domain.Generation, error)
}
