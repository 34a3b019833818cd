package app

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"animeavatar/internal/util"
	"animeavatar/pkg/ai"
	"animeavatar/pkg/domain"
	"animeavatar/pkg/storage"
	"animeavatar/pkg/store"
)

const (
	defaultMaxUploadBytes  = 10 << 20
	defaultGenerateTimeout = 60 * time.Second
	defaultHistoryLimit    = 20
)

// extensions for the upload allow-list. Anything else is rejected
// before any storage write happens.
var allowedContentTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

// Config wires the orchestrator's collaborators. Any of them may be nil
// when the corresponding backend is unconfigured; the affected
// operations then fail with ErrNotConfigured instead of crashing.
type Config struct {
	Store           store.Store
	Photos          storage.ObjectStore
	Avatars         storage.ObjectStore
	Transformer     ai.Transformer
	MaxUploadBytes  int64
	GenerateTimeout time.Duration
}

// App orchestrates the upload -> generate -> persist pipeline.
type App struct {
	store           store.Store
	photos          storage.ObjectStore
	avatars         storage.ObjectStore
	transformer     ai.Transformer
	maxUploadBytes  int64
	generateTimeout time.Duration
}

// New constructs the orchestrator.
func New(cfg Config) *App {
	maxUploadBytes := cfg.MaxUploadBytes
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	generateTimeout := cfg.GenerateTimeout
	if generateTimeout <= 0 {
		generateTimeout = defaultGenerateTimeout
	}
	return &App{
		store:           cfg.Store,
		photos:          cfg.Photos,
		avatars:         cfg.Avatars,
		transformer:     cfg.Transformer,
		maxUploadBytes:  maxUploadBytes,
		generateTimeout: generateTimeout,
	}
}

// UploadInput is a raw image payload plus its session and style.
type UploadInput struct {
	Data         []byte
	ContentType  string
	SessionToken string
	Style        domain.Style
}

// UploadResult identifies the created generation and where the original
// photo landed.
type UploadResult struct {
	GenerationID string
	PhotoURL     string
}

// Upload validates the payload, stores the original photo, and records
// a pending generation. Validation happens before any side effect. A
// blob left orphaned by a failed record insert is accepted and only
// logged.
func (a *App) Upload(ctx context.Context, in UploadInput) (UploadResult, error) {
	if a.store == nil || a.photos == nil {
		return UploadResult{}, fmt.Errorf("%w: storage backend", ErrNotConfigured)
	}
	if in.SessionToken == "" {
		return UploadResult{}, fmt.Errorf("%w: session token required", ErrValidation)
	}
	ext, ok := allowedContentTypes[strings.ToLower(strings.TrimSpace(in.ContentType))]
	if !ok {
		return UploadResult{}, fmt.Errorf("%w: unsupported content type %q", ErrValidation, in.ContentType)
	}
	if int64(len(in.Data)) > a.maxUploadBytes {
		return UploadResult{}, fmt.Errorf("%w: file too large (max %d bytes)", ErrValidation, a.maxUploadBytes)
	}
	if len(in.Data) == 0 {
		return UploadResult{}, fmt.Errorf("%w: empty file", ErrValidation)
	}

	session, err := a.resolveSession(in.SessionToken)
	if err != nil {
		return UploadResult{}, err
	}

	key := fmt.Sprintf("%s/%s.%s", session.ID, util.NewID(), ext)
	if err := a.photos.Put(ctx, key, in.Data, in.ContentType); err != nil {
		return UploadResult{}, fmt.Errorf("%w: store photo: %v", ErrPersistence, err)
	}
	photoURL := a.photos.PublicURL(key)

	generation := domain.Generation{
		ID:               util.NewID(),
		SessionID:        session.ID,
		OriginalPhotoURL: photoURL,
		Style:            in.Style,
		Status:           domain.StatusPending,
		CreatedAt:        time.Now().UTC(),
	}
	if err := a.store.CreateGeneration(generation); err != nil {
		// The stored photo is now unreferenced; harmless dead storage.
		util.LoggerFromContext(ctx).Warn("generation insert failed after photo upload",
			"key", key, "err", err)
		return UploadResult{}, fmt.Errorf("%w: create generation: %v", ErrPersistence, err)
	}
	return UploadResult{GenerationID: generation.ID, PhotoURL: photoURL}, nil
}

// resolveSession finds the session for a token or lazily creates it.
func (a *App) resolveSession(token string) (domain.Session, error) {
	session, ok, err := a.store.GetSessionByToken(token)
	if err != nil {
		return domain.Session{}, fmt.Errorf("%w: lookup session: %v", ErrPersistence, err)
	}
	if ok {
		return session, nil
	}
	now := time.Now().UTC()
	session = domain.Session{
		ID:           util.NewID(),
		SessionToken: token,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.CreateSession(session); err != nil {
		return domain.Session{}, fmt.Errorf("%w: create session: %v", ErrPersistence, err)
	}
	return session, nil
}

// GenerateInput references a pending generation and carries the image
// to transform, base64-encoded (optionally as a data URI).
type GenerateInput struct {
	GenerationID string
	ImageBase64  string
	Style        domain.Style
}

// Generate runs the transform pipeline for one generation: mark
// processing, invoke the provider, persist the result, mark completed
// or failed. The whole call is bounded by the configured deadline.
func (a *App) Generate(ctx context.Context, in GenerateInput) (string, error) {
	if a.store == nil {
		return "", fmt.Errorf("%w: record store", ErrNotConfigured)
	}
	if a.transformer == nil {
		return "", fmt.Errorf("%w: transform provider", ErrNotConfigured)
	}
	if in.GenerationID == "" || in.ImageBase64 == "" {
		return "", fmt.Errorf("%w: generationId and imageBase64 required", ErrValidation)
	}
	ctx, cancel := context.WithTimeout(ctx, a.generateTimeout)
	defer cancel()
	logger := util.LoggerFromContext(ctx)

	generation, ok, err := a.store.GetGeneration(in.GenerationID)
	if err != nil {
		return "", fmt.Errorf("%w: lookup generation: %v", ErrPersistence, err)
	}
	if !ok {
		return "", fmt.Errorf("%w: generation %s", ErrNotFound, in.GenerationID)
	}

	image, mimeType, err := decodeImagePayload(in.ImageBase64)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrValidation, err)
	}

	// Advisory transition; a failed write here must not block the
	// transform. A crash past this point can leave the row in
	// processing forever; there is no reconciliation sweep.
	prompt := ai.PromptFor(in.Style)
	if err := a.store.MarkProcessing(generation.ID, prompt); err != nil {
		logger.Warn("mark processing failed", "generation_id", generation.ID, "err", err)
	}

	result, err := a.transformer.Transform(ctx, image, mimeType, in.Style)
	if err != nil {
		// Record the terminal state first so history reflects the
		// failure even if this response is lost.
		if markErr := a.store.SetGenerationStatus(generation.ID, domain.StatusFailed); markErr != nil {
			logger.Warn("mark failed failed", "generation_id", generation.ID, "err", markErr)
		}
		return "", err
	}

	avatarURL := a.persistAvatar(ctx, generation, result)
	return avatarURL, nil
}

// persistAvatar stores the transformed image and completes the
// generation. If the blob write fails the caller still gets a usable
// image: the result is inlined as a data URI instead of failing the
// whole operation.
func (a *App) persistAvatar(ctx context.Context, generation domain.Generation, result ai.Result) string {
	logger := util.LoggerFromContext(ctx)
	now := time.Now().UTC()

	if a.avatars != nil {
		key := fmt.Sprintf("%s/%s.png", generation.SessionID, util.NewID())
		err := a.avatars.Put(ctx, key, result.Data, "image/png")
		if err == nil {
			avatarURL := a.avatars.PublicURL(key)
			if err := a.store.CompleteGeneration(generation.ID, avatarURL, now); err != nil {
				logger.Warn("complete generation failed", "generation_id", generation.ID, "err", err)
			}
			return avatarURL
		}
		logger.Warn("avatar upload failed, falling back to inline result",
			"generation_id", generation.ID, "err", err)
	}

	avatarURL := fmt.Sprintf("data:%s;base64,%s", result.MimeType, base64.StdEncoding.EncodeToString(result.Data))
	if err := a.store.CompleteGeneration(generation.ID, avatarURL, now); err != nil {
		logger.Warn("complete generation failed", "generation_id", generation.ID, "err", err)
	}
	return avatarURL
}

// History returns a session's generations newest-first. An unknown
// token is a client with no history, not an error.
func (a *App) History(ctx context.Context, sessionToken string, limit, offset int) ([]domain.Generation, error) {
	if a.store == nil {
		return nil, fmt.Errorf("%w: record store", ErrNotConfigured)
	}
	if sessionToken == "" {
		return nil, fmt.Errorf("%w: session token required", ErrValidation)
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}
	session, ok, err := a.store.GetSessionByToken(sessionToken)
	if err != nil {
		return nil, fmt.Errorf("%w: lookup session: %v", ErrPersistence, err)
	}
	if !ok {
		return []domain.Generation{}, nil
	}
	generations, err := a.store.ListGenerationsBySession(session.ID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list generations: %v", ErrPersistence, err)
	}
	return generations, nil
}

// decodeImagePayload accepts raw base64 or a full data URI and returns
// the image bytes plus the declared mime type.
func decodeImagePayload(payload string) ([]byte, string, error) {
	mimeType := "image/jpeg"
	if strings.HasPrefix(payload, "data:") {
		meta, rest, ok := strings.Cut(strings.TrimPrefix(payload, "data:"), ",")
		if !ok {
			return nil, "", fmt.Errorf("malformed data URI")
		}
		if mt := strings.TrimSuffix(meta, ";base64"); mt != "" {
			mimeType = mt
		}
		payload = rest
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("empty image")
	}
	return data, mimeType, nil
}
