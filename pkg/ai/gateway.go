package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"animeavatar/pkg/domain"
)

// GatewayTransformer routes the transform through an OpenAI-compatible
// /v1/chat/completions endpoint (OpenRouter, LiteLLM, self-hosted
// gateways). The photo travels as a data-URI image_url part. Gateways
// differ in how they return the image: some attach it as a structured
// image part on the message, others paste a plain URL into the text
// content. Structured extraction is attempted first; scanning the text
// for the first URL-shaped substring is the documented fallback.
type GatewayTransformer struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewGatewayTransformer builds the gateway provider. baseURL should
// include the /v1 prefix, e.g. "https://openrouter.ai/api/v1".
func NewGatewayTransformer(baseURL, apiKey, model string) (*GatewayTransformer, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("gateway base URL required")
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("gateway api key required")
	}
	return &GatewayTransformer{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   strings.TrimSpace(model),
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}, nil
}

// Transform implements Transformer via the chat completions API.
func (g *GatewayTransformer) Transform(ctx context.Context, image []byte, mimeType string, style domain.Style) (Result, error) {
	if g.model == "" {
		return Result{}, fmt.Errorf("gateway model required")
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	dataURI := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))
	reqBody := gwChatRequest{
		Model: g.model,
		Messages: []gwMessage{
			{
				Role: "user",
				Content: []gwContentPart{
					{Type: "text", Text: PromptFor(style)},
					{Type: "image_url", ImageURL: &gwImageURL{URL: dataURI}},
				},
			},
		},
		Modalities: []string{"image", "text"},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return Result{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp gwErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return Result{}, &ProviderError{Status: resp.StatusCode, Message: errResp.Error.Message}
	}

	var chatResp gwChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return Result{}, fmt.Errorf("gateway decode: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return Result{}, ErrNoResult
	}
	msg := chatResp.Choices[0].Message

	// Structured image attachments first.
	for _, img := range msg.Images {
		if img.ImageURL != nil && img.ImageURL.URL != "" {
			return g.resolve(ctx, img.ImageURL.URL)
		}
	}
	// Fallback: the first URL-shaped substring in the text content.
	if url := firstURL(msg.Content.text()); url != "" {
		return g.resolve(ctx, url)
	}
	return Result{}, ErrNoResult
}

// resolve normalizes a data URI or remote URL to bytes + mime.
func (g *GatewayTransformer) resolve(ctx context.Context, url string) (Result, error) {
	if strings.HasPrefix(url, "data:") {
		return decodeDataURI(url)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, err
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("fetch result image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return Result{}, &ProviderError{Status: resp.StatusCode, Message: "result image fetch failed"}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return Result{}, fmt.Errorf("read result image: %w", err)
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" || !strings.HasPrefix(mime, "image/") {
		mime = "image/png"
	}
	return Result{Data: data, MimeType: mime}, nil
}

func decodeDataURI(uri string) (Result, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return Result{}, fmt.Errorf("not a data URI")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return Result{}, fmt.Errorf("malformed data URI")
	}
	mime := strings.TrimSuffix(meta, ";base64")
	if mime == "" {
		mime = "image/png"
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Result{}, fmt.Errorf("decode data URI: %w", err)
	}
	return Result{Data: data, MimeType: mime}, nil
}

var urlPattern = regexp.MustCompile(`https?://[^\s"'<>)\]]+`)

func firstURL(text string) string {
	return urlPattern.FindString(text)
}

// Gateway request/response types. Content is polymorphic on the wire:
// requests send part arrays, responses usually answer with a plain
// string.

type gwImageURL struct {
	URL string `json:"url"`
}

type gwContentPart struct {
	Type     string      `json:"type"`
	Text     string      `json:"text,omitempty"`
	ImageURL *gwImageURL `json:"image_url,omitempty"`
}

type gwContent struct {
	raw   string
	parts []gwContentPart
}

func (c *gwContent) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &c.raw); err == nil {
		return nil
	}
	return json.Unmarshal(data, &c.parts)
}

func (c gwContent) text() string {
	if c.raw != "" {
		return c.raw
	}
	var b strings.Builder
	for _, part := range c.parts {
		b.WriteString(part.Text)
	}
	return b.String()
}

type gwMessage struct {
	Role    string          `json:"role"`
	Content []gwContentPart `json:"content"`
}

type gwChatRequest struct {
	Model      string      `json:"model"`
	Messages   []gwMessage `json:"messages"`
	Modalities []string    `json:"modalities,omitempty"`
}

type gwResponseMessage struct {
	Role    string           `json:"role"`
	Content gwContent        `json:"content"`
	Images  []gwResponseItem `json:"images,omitempty"`
}

type gwResponseItem struct {
	Type     string      `json:"type"`
	ImageURL *gwImageURL `json:"image_url,omitempty"`
}

type gwChatResponse struct {
	Choices []struct {
		Message gwResponseMessage `json:"message"`
	} `json:"choices"`
}

type gwErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}
