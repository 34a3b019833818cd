package store

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"animeavatar/pkg/domain"
)

const migrateLockID int64 = 48291537

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations under an advisory
// lock so concurrent replicas do not race the schema.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", migrateLockID).Error; err != nil {
			return fmt.Errorf("acquire migration lock: %w", err)
		}
		if err := tx.AutoMigrate(&SessionModel{}, &GenerationModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

// GetSessionByToken looks up a session by its opaque client token.
func (s *GormStore) GetSessionByToken(token string) (domain.Session, bool, error) {
	var model SessionModel
	if err := s.db.Where("session_token = ?", token).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Session{}, false, nil
		}
		return domain.Session{}, false, err
	}
	return sessionFromModel(model), true, nil
}

// CreateSession inserts a new session row.
func (s *GormStore) CreateSession(session domain.Session) error {
	model := sessionToModel(session)
	return s.db.Create(&model).Error
}

// CreateGeneration inserts a new generation row.
func (s *GormStore) CreateGeneration(g domain.Generation) error {
	model := generationToModel(g)
	return s.db.Create(&model).Error
}

// GetGeneration retrieves a generation by ID.
func (s *GormStore) GetGeneration(id string) (domain.Generation, bool, error) {
	var model GenerationModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Generation{}, false, nil
		}
		return domain.Generation{}, false, err
	}
	return generationFromModel(model), true, nil
}

// SetGenerationStatus performs a point status update. Last writer wins;
// there is no compare-and-swap here.
func (s *GormStore) SetGenerationStatus(id string, status domain.GenerationStatus) error {
	return s.db.Model(&GenerationModel{}).
		Where("id = ?", id).
		Update("status", string(status)).Error
}

// MarkProcessing advances a generation to processing and records the
// prompt that will be sent.
func (s *GormStore) MarkProcessing(id string, prompt string) error {
	return s.db.Model(&GenerationModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":      string(domain.StatusProcessing),
			"prompt_used": prompt,
		}).Error
}

// CompleteGeneration marks a generation completed with its avatar URL.
func (s *GormStore) CompleteGeneration(id string, avatarURL string, completedAt time.Time) error {
	return s.db.Model(&GenerationModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       string(domain.StatusCompleted),
			"avatar_url":   avatarURL,
			"completed_at": completedAt,
		}).Error
}

// ListGenerationsBySession returns a session's generations newest-first.
func (s *GormStore) ListGenerationsBySession(sessionID string, limit, offset int) ([]domain.Generation, error) {
	var models []GenerationModel
	if err := s.db.Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Generation, 0, len(models))
	for _, m := range models {
		res = append(res, generationFromModel(m))
	}
	return res, nil
}
