package ai

import (
	"context"
	"errors"
	"fmt"

	"animeavatar/pkg/domain"
)

// Result is the normalized output of a transform: raw image bytes plus
// the mime type the provider declared for them. Providers that answer
// with URLs or data URIs resolve them to bytes before returning.
type Result struct {
	Data     []byte
	MimeType string
}

// Transformer turns a photo into a styled avatar image.
// All providers (Gemini direct, OpenAI-compatible gateway) implement
// this interface; the orchestrator never branches on vendor.
type Transformer interface {
	Transform(ctx context.Context, image []byte, mimeType string, style domain.Style) (Result, error)
}

// ErrNoResult indicates the provider answered successfully but the
// response carried no extractable image.
var ErrNoResult = errors.New("no image in provider response")

// ProviderError carries a transform provider's failure status and
// message. Calls are never retried; the orchestrator marks the
// generation failed and surfaces the error.
type ProviderError struct {
	Status  int
	Message string
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("provider error (status %d)", e.Status)
	}
	return fmt.Sprintf("provider error (status %d): %s", e.Status, e.Message)
}
