package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"animeavatar/internal/app"
	"animeavatar/internal/ratelimit"
	"animeavatar/pkg/ai"
	"animeavatar/pkg/domain"
	"animeavatar/pkg/store"
)

type fakeObjectStore struct {
	putErr error
}

func (f *fakeObjectStore) Put(context.Context, string, []byte, string) error { return f.putErr }

func (f *fakeObjectStore) PublicURL(key string) string {
	return "https://cdn.example.com/bucket/" + key
}

type fakeTransformer struct {
	err error
}

func (f *fakeTransformer) Transform(context.Context, []byte, string, domain.Style) (ai.Result, error) {
	if f.err != nil {
		return ai.Result{}, f.err
	}
	return ai.Result{Data: []byte("avatar"), MimeType: "image/png"}, nil
}

func newTestServer(t *testing.T, transformer ai.Transformer) (*httptest.Server, *store.MemoryStore) {
	t.Helper()
	memStore := store.NewMemoryStore()
	appCore := app.New(app.Config{
		Store:       memStore,
		Photos:      &fakeObjectStore{},
		Avatars:     &fakeObjectStore{},
		Transformer: transformer,
	})
	srv := httptest.NewServer(New(Config{App: appCore}).Router())
	t.Cleanup(srv.Close)
	return srv, memStore
}

func uploadPhoto(t *testing.T, url, token, style string) uploadResponse {
	t.Helper()
	resp := doUpload(t, url, token, style, "image/jpeg", bytes.Repeat([]byte{0xff}, 1024))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload status = %d", resp.StatusCode)
	}
	var body uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	return body
}

func doUpload(t *testing.T, url, token, style, contentType string, data []byte) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="photo.jpg"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if token != "" {
		_ = writer.WriteField("sessionToken", token)
	}
	if style != "" {
		_ = writer.WriteField("style", style)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	resp, err := http.Post(url+"/upload", writer.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("post upload: %v", err)
	}
	return resp
}

func TestUploadEndpointHappyPath(t *testing.T) {
	srv, memStore := newTestServer(t, &fakeTransformer{})

	body := uploadPhoto(t, srv.URL, "tok-1", "chibi")
	if !body.Success {
		t.Fatalf("expected success, got %+v", body)
	}
	if body.GenerationID == "" || body.PhotoURL == "" {
		t.Fatalf("missing fields in response: %+v", body)
	}
	generation, ok, _ := memStore.GetGeneration(body.GenerationID)
	if !ok {
		t.Fatal("generation not recorded")
	}
	if generation.Status != domain.StatusPending {
		t.Fatalf("status = %q, want pending", generation.Status)
	}
}

func TestUploadEndpointValidation(t *testing.T) {
	srv, _ := newTestServer(t, &fakeTransformer{})

	// Missing session token.
	resp := doUpload(t, srv.URL, "", "modern", "image/jpeg", []byte("x"))
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing token expected 400, got %d", resp.StatusCode)
	}

	// Unsupported content type.
	resp = doUpload(t, srv.URL, "tok-1", "modern", "image/gif", []byte("x"))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("gif expected 400, got %d", resp.StatusCode)
	}
	var body errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Success || body.Error == "" {
		t.Fatalf("expected structured error body, got %+v", body)
	}
}

func TestUploadEndpointStorageUnconfigured(t *testing.T) {
	appCore := app.New(app.Config{}) // nothing wired
	srv := httptest.NewServer(New(Config{App: appCore}).Router())
	defer srv.Close()

	resp := doUpload(t, srv.URL, "tok-1", "modern", "image/jpeg", []byte("x"))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

func postGenerate(t *testing.T, url string, payload map[string]string) *http.Response {
	t.Helper()
	body, _ := json.Marshal(payload)
	resp, err := http.Post(url+"/generate", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post generate: %v", err)
	}
	return resp
}

func TestGenerateEndpointSuccess(t *testing.T) {
	srv, memStore := newTestServer(t, &fakeTransformer{})
	uploaded := uploadPhoto(t, srv.URL, "tok-1", "modern")

	resp := postGenerate(t, srv.URL, map[string]string{
		"generationId": uploaded.GenerationID,
		"imageBase64":  "data:image/jpeg;base64,/9j/4AAQSkZJRg==",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("generate status = %d", resp.StatusCode)
	}
	var body generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success || !strings.HasSuffix(body.AvatarURL, ".png") {
		t.Fatalf("unexpected response: %+v", body)
	}

	generation, _, _ := memStore.GetGeneration(uploaded.GenerationID)
	if generation.Status != domain.StatusCompleted {
		t.Fatalf("status = %q, want completed", generation.Status)
	}
	if generation.CompletedAt == nil {
		t.Fatal("completed_at should be set")
	}
}

func TestGenerateEndpointMissingFields(t *testing.T) {
	srv, _ := newTestServer(t, &fakeTransformer{})
	resp := postGenerate(t, srv.URL, map[string]string{"generationId": "g1"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestGenerateEndpointUnknownGeneration(t *testing.T) {
	srv, _ := newTestServer(t, &fakeTransformer{})
	resp := postGenerate(t, srv.URL, map[string]string{
		"generationId": "missing",
		"imageBase64":  "aGVsbG8=",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestGenerateFailureVisibleInHistory(t *testing.T) {
	srv, _ := newTestServer(t, &fakeTransformer{err: fmt.Errorf("provider unreachable")})
	uploaded := uploadPhoto(t, srv.URL, "tok-1", "modern")

	resp := postGenerate(t, srv.URL, map[string]string{
		"generationId": uploaded.GenerationID,
		"imageBase64":  "aGVsbG8=",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}

	histResp, err := http.Get(srv.URL + "/history?sessionToken=tok-1")
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	defer histResp.Body.Close()
	var hist historyResponse
	if err := json.NewDecoder(histResp.Body).Decode(&hist); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(hist.Generations) != 1 {
		t.Fatalf("expected 1 generation, got %d", len(hist.Generations))
	}
	if hist.Generations[0].Status != domain.StatusFailed {
		t.Fatalf("status = %q, want failed", hist.Generations[0].Status)
	}
}

func TestHistoryEndpointUnknownTokenIsEmptySuccess(t *testing.T) {
	srv, _ := newTestServer(t, &fakeTransformer{})
	resp, err := http.Get(srv.URL + "/history?sessionToken=nobody")
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success {
		t.Fatal("expected success for unknown token")
	}
	if body.Generations == nil || len(body.Generations) != 0 {
		t.Fatalf("expected empty generations array, got %v", body.Generations)
	}
}

func TestGenerateEndpointRateLimited(t *testing.T) {
	redis := miniredis.RunT(t)
	limiter, err := ratelimit.NewRedisFixedWindowLimiter(redis.Addr(), "", "test:ratelimit", 1, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}

	memStore := store.NewMemoryStore()
	appCore := app.New(app.Config{
		Store:       memStore,
		Photos:      &fakeObjectStore{},
		Avatars:     &fakeObjectStore{},
		Transformer: &fakeTransformer{},
	})
	srv := httptest.NewServer(New(Config{App: appCore, Limiter: limiter}).Router())
	defer srv.Close()

	uploaded := uploadPhoto(t, srv.URL, "tok-1", "modern")
	payload := map[string]string{
		"generationId": uploaded.GenerationID,
		"imageBase64":  "aGVsbG8=",
	}
	resp := postGenerate(t, srv.URL, payload)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first generate expected 200, got %d", resp.StatusCode)
	}
	resp = postGenerate(t, srv.URL, payload)
	resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second generate expected 429, got %d", resp.StatusCode)
	}
}
