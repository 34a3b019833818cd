package store

import (
	"time"

	"animeavatar/pkg/domain"
)

// GORM models used for persistence.
type SessionModel struct {
	ID           string    `gorm:"primaryKey"`
	SessionToken string    `gorm:"uniqueIndex;not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

func (SessionModel) TableName() string { return "sessions" }

type GenerationModel struct {
	ID               string `gorm:"primaryKey"`
	SessionID        string `gorm:"not null;index"`
	OriginalPhotoURL string `gorm:"not null"`
	AvatarURL        *string
	Style            string `gorm:"not null"`
	Status           string `gorm:"not null"`
	PromptUsed       *string
	CreatedAt        time.Time `gorm:"not null;index"`
	CompletedAt      *time.Time
}

func (GenerationModel) TableName() string { return "generations" }

func sessionToModel(s domain.Session) SessionModel {
	return SessionModel{
		ID:           s.ID,
		SessionToken: s.SessionToken,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

func sessionFromModel(m SessionModel) domain.Session {
	return domain.Session{
		ID:           m.ID,
		SessionToken: m.SessionToken,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func generationToModel(g domain.Generation) GenerationModel {
	return GenerationModel{
		ID:               g.ID,
		SessionID:        g.SessionID,
		OriginalPhotoURL: g.OriginalPhotoURL,
		AvatarURL:        g.AvatarURL,
		Style:            string(g.Style),
		Status:           string(g.Status),
		PromptUsed:       g.PromptUsed,
		CreatedAt:        g.CreatedAt,
		CompletedAt:      g.CompletedAt,
	}
}

func generationFromModel(m GenerationModel) domain.Generation {
	return domain.Generation{
		ID:               m.ID,
		SessionID:        m.SessionID,
		OriginalPhotoURL: m.OriginalPhotoURL,
		AvatarURL:        m.AvatarURL,
		Style:            domain.Style(m.Style),
		Status:           domain.GenerationStatus(m.Status),
		PromptUsed:       m.PromptUsed,
		CreatedAt:        m.CreatedAt,
		CompletedAt:      m.CompletedAt,
	}
}
