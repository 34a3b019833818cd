package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"animeavatar/pkg/domain"
)

func newGatewayForTest(t *testing.T, handler http.HandlerFunc) *GatewayTransformer {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	g, err := NewGatewayTransformer(srv.URL+"/v1", "test-key", "test-model")
	if err != nil {
		t.Fatalf("new gateway transformer: %v", err)
	}
	return g
}

func TestGatewayTransformStructuredImage(t *testing.T) {
	avatar := []byte("avatar-bytes")
	dataURI := "data:image/png;base64," + base64.StdEncoding.EncodeToString(avatar)
	var gotBody gwChatRequest
	g := newGatewayForTest(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected auth header: %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{
					"role":    "assistant",
					"content": "here you go",
					"images": []map[string]any{{
						"type":      "image_url",
						"image_url": map[string]string{"url": dataURI},
					}},
				},
			}},
		})
	})

	result, err := g.Transform(context.Background(), []byte("photo"), "image/jpeg", domain.StyleChibi)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if string(result.Data) != string(avatar) {
		t.Fatalf("unexpected result bytes: %q", result.Data)
	}
	if result.MimeType != "image/png" {
		t.Fatalf("mime = %q, want image/png", result.MimeType)
	}

	// Request carries a text part with the chibi prompt and the photo
	// as a data-URI image part.
	parts := gotBody.Messages[0].Content
	if len(parts) != 2 {
		t.Fatalf("expected 2 content parts, got %d", len(parts))
	}
	if !strings.Contains(parts[0].Text, "chibi") {
		t.Fatalf("prompt does not match chibi template: %q", parts[0].Text)
	}
	if parts[1].ImageURL == nil || !strings.HasPrefix(parts[1].ImageURL.URL, "data:image/jpeg;base64,") {
		t.Fatal("request missing data-URI photo part")
	}
}

func TestGatewayTransformTextURLFallback(t *testing.T) {
	avatar := []byte("avatar-from-url")
	imageSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/webp")
		_, _ = w.Write(avatar)
	}))
	defer imageSrv.Close()

	g := newGatewayForTest(t, func(w http.ResponseWriter, r *http.Request) {
		// No structured image field, only a URL buried in prose.
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{
					"role":    "assistant",
					"content": "Your avatar is ready: " + imageSrv.URL + "/out.webp enjoy!",
				},
			}},
		})
	})

	result, err := g.Transform(context.Background(), []byte("photo"), "image/jpeg", domain.StyleModern)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if string(result.Data) != string(avatar) {
		t.Fatalf("unexpected result bytes: %q", result.Data)
	}
	if result.MimeType != "image/webp" {
		t.Fatalf("mime = %q, want image/webp", result.MimeType)
	}
}

func TestGatewayTransformStructuredPreferredOverText(t *testing.T) {
	structured := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("structured"))
	g := newGatewayForTest(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{
					"role":    "assistant",
					"content": "see https://example.invalid/should-not-be-fetched.png",
					"images": []map[string]any{{
						"type":      "image_url",
						"image_url": map[string]string{"url": structured},
					}},
				},
			}},
		})
	})

	result, err := g.Transform(context.Background(), []byte("photo"), "image/jpeg", domain.StyleModern)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if string(result.Data) != "structured" {
		t.Fatalf("structured attachment should win, got %q", result.Data)
	}
}

func TestGatewayTransformNoImage(t *testing.T) {
	g := newGatewayForTest(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{
					"role":    "assistant",
					"content": "I cannot produce images",
				},
			}},
		})
	})

	_, err := g.Transform(context.Background(), []byte("photo"), "image/jpeg", domain.StyleModern)
	if !errors.Is(err, ErrNoResult) {
		t.Fatalf("expected ErrNoResult, got %v", err)
	}
}

func TestGatewayTransformProviderError(t *testing.T) {
	g := newGatewayForTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "model overloaded", "type": "server_error"},
		})
	})

	_, err := g.Transform(context.Background(), []byte("photo"), "image/jpeg", domain.StyleModern)
	var providerErr *ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if providerErr.Status != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", providerErr.Status)
	}
}

func TestNewGatewayTransformerRequiresConfig(t *testing.T) {
	if _, err := NewGatewayTransformer("", "key", "model"); err == nil {
		t.Fatal("expected error for empty base URL")
	}
	if _, err := NewGatewayTransformer("https://gw.example.com/v1", "", "model"); err == nil {
		t.Fatal("expected error for empty api key")
	}
}

func TestFirstURL(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"plain text, no links", ""},
		{"result: https://cdn.example.com/a.png done", "https://cdn.example.com/a.png"},
		{"(http://x.test/img.jpg)", "http://x.test/img.jpg"},
		{"two https://a.test/1.png and https://b.test/2.png", "https://a.test/1.png"},
	}
	for _, tc := range tests {
		if got := firstURL(tc.text); got != tc.want {
			t.Fatalf("firstURL(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}
