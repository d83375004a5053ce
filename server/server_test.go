package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"songrelay/config"
	"songrelay/core/manifest"
	"songrelay/core/mcptool"
	"songrelay/core/musicapp"
	"songrelay/core/relay"
	"songrelay/model"
)

type downstreamStub struct {
	*httptest.Server
	calls    atomic.Int32
	lastBody atomic.Value
	lastAuth atomic.Value
}

func newDownstream(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *downstreamStub {
	t.Helper()
	stub := &downstreamStub{}
	stub.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stub.calls.Add(1)
		body, _ := io.ReadAll(r.Body)
		stub.lastBody.Store(body)
		stub.lastAuth.Store(r.Header.Get("Authorization"))
		handler(w, r)
	}))
	t.Cleanup(stub.Close)
	return stub
}

func statusHandler(status int) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(status) }
}

func newTestRouter(t *testing.T, downstreamURL, apiKey string, timeout time.Duration) http.Handler {
	t.Helper()
	cfg := &config.Config{
		MusicAppURL:     downstreamURL,
		MusicAppAPIKey:  apiKey,
		MusicAppTimeout: timeout,
		Host:            "127.0.0.1",
		Port:            8000,
	}
	svc := relay.NewService(musicapp.NewClient(cfg.MusicAppURL, cfg.MusicAppAPIKey, cfg.MusicAppTimeout))
	return NewRouter(NewAPIHandler(cfg, svc), mcptool.Handler(mcptool.NewServer(svc, Version)))
}

func postTracks(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/send-tracks", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return v
}

func TestSendTracksSuccess(t *testing.T) {
	downstream := newDownstream(t, statusHandler(http.StatusOK))
	router := newTestRouter(t, downstream.URL, "", time.Second)

	rec := postTracks(t, router, `{"tracks":[{"artist":"Boards of Canada","title":"Roygbiv"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	resp := decode[model.SendTracksResponse](t, rec)
	if !resp.Success || resp.TracksSent != 1 {
		t.Fatalf("response = %+v", resp)
	}
	if resp.Message != "Successfully sent 1 tracks to your music app" {
		t.Fatalf("message = %q", resp.Message)
	}
	if _, err := time.Parse(time.RFC3339Nano, resp.Timestamp); err != nil {
		t.Fatalf("timestamp %q is not ISO-8601: %v", resp.Timestamp, err)
	}
	if downstream.calls.Load() != 1 {
		t.Fatalf("downstream calls = %d", downstream.calls.Load())
	}

	var payload model.DeliveryPayload
	if err := json.Unmarshal(downstream.lastBody.Load().([]byte), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Source != "ai_music_discovery" || len(payload.Tracks) != 1 || payload.Tracks[0].Artist != "Boards of Canada" {
		t.Fatalf("payload = %+v", payload)
	}
	if downstream.lastAuth.Load().(string) != "" {
		t.Fatal("authorization header should be omitted without a key")
	}
}

func TestSendTracksCountsMatchInput(t *testing.T) {
	downstream := newDownstream(t, statusHandler(http.StatusNoContent))
	router := newTestRouter(t, downstream.URL, "token-123", time.Second)

	for _, n := range []int{0, 1, 5} {
		tracks := make([]model.Track, n)
		for i := range tracks {
			tracks[i] = model.Track{Artist: "artist", Title: "title"}
		}
		body, _ := json.Marshal(model.SendTracksRequest{Tracks: tracks})
		rec := postTracks(t, router, string(body))
		if rec.Code != http.StatusOK {
			t.Fatalf("n=%d: status = %d", n, rec.Code)
		}
		if resp := decode[model.SendTracksResponse](t, rec); !resp.Success || resp.TracksSent != n {
			t.Fatalf("n=%d: response = %+v", n, resp)
		}
		if auth := downstream.lastAuth.Load().(string); auth != "Bearer token-123" {
			t.Fatalf("authorization = %q", auth)
		}
	}
	if downstream.calls.Load() != 3 {
		t.Fatalf("downstream calls = %d, want 3 (empty batch is still forwarded)", downstream.calls.Load())
	}
}

func TestSendTracksDownstreamError(t *testing.T) {
	downstream := newDownstream(t, statusHandler(http.StatusInternalServerError))
	router := newTestRouter(t, downstream.URL, "", time.Second)

	rec := postTracks(t, router, `{"tracks":[{"artist":"a","title":"b"}]}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), `"success":true`) {
		t.Fatal("failure must never report success")
	}
	resp := decode[model.ErrorResponse](t, rec)
	if !strings.HasPrefix(resp.Detail, "Failed to send tracks to music app:") || !strings.Contains(resp.Detail, "500") {
		t.Fatalf("detail = %q", resp.Detail)
	}
}

func TestSendTracksDownstreamRedirectIsFailure(t *testing.T) {
	downstream := newDownstream(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Redirect(w, r, "/login", http.StatusFound)
	})
	router := newTestRouter(t, downstream.URL, "", time.Second)

	rec := postTracks(t, router, `{"tracks":[{"artist":"a","title":"b"}]}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	resp := decode[model.ErrorResponse](t, rec)
	if !strings.HasPrefix(resp.Detail, "Failed to send tracks to music app:") || !strings.Contains(resp.Detail, "302") {
		t.Fatalf("detail = %q", resp.Detail)
	}
	if downstream.calls.Load() != 1 {
		t.Fatalf("downstream calls = %d, want 1", downstream.calls.Load())
	}
}

func TestSendTracksDownstreamTimeout(t *testing.T) {
	release := make(chan struct{})
	downstream := newDownstream(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	t.Cleanup(func() { close(release) })
	router := newTestRouter(t, downstream.URL, "", 100*time.Millisecond)

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() { done <- postTracks(t, router, `{"tracks":[{"artist":"a","title":"b"}]}`) }()

	select {
	case rec := <-done:
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d", rec.Code)
		}
		if detail := decode[model.ErrorResponse](t, rec).Detail; !strings.Contains(detail, "Failed to send tracks to music app") {
			t.Fatalf("detail = %q", detail)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("send-tracks hung past the delivery timeout")
	}
}

func TestSendTracksValidationNeverForwards(t *testing.T) {
	downstream := newDownstream(t, statusHandler(http.StatusOK))
	router := newTestRouter(t, downstream.URL, "", time.Second)

	bodies := []string{
		`{"tracks":[{"title":"Roygbiv"}]}`,
		`{"tracks":[{"artist":"Boards of Canada"}]}`,
		`{"tracks":[{"artist":"a","title":"b"},{"artist":"c"}]}`,
		`{}`,
		`not json`,
	}
	for _, body := range bodies {
		rec := postTracks(t, router, body)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("body %s: status = %d", body, rec.Code)
		}
		resp := decode[model.ValidationErrorResponse](t, rec)
		if len(resp.Detail) == 0 {
			t.Fatalf("body %s: empty detail", body)
		}
	}
	if downstream.calls.Load() != 0 {
		t.Fatalf("downstream calls = %d, want 0", downstream.calls.Load())
	}
}

func TestSendTracksUnexpectedError(t *testing.T) {
	cfg := &config.Config{MusicAppURL: "http://unused"}
	router := NewRouter(NewAPIHandler(cfg, relay.NewService(nil)), nil)

	rec := postTracks(t, router, `{"tracks":[]}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if detail := decode[model.ErrorResponse](t, rec).Detail; !strings.HasPrefix(detail, "Unexpected error:") {
		t.Fatalf("detail = %q", detail)
	}
}

func TestSendTracksBodyTooLarge(t *testing.T) {
	downstream := newDownstream(t, statusHandler(http.StatusOK))
	router := newTestRouter(t, downstream.URL, "", time.Second)

	big := `{"tracks":[{"artist":"` + strings.Repeat("a", maxBodyBytes) + `","title":"b"}]}`
	if rec := postTracks(t, router, big); rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d", rec.Code)
	}
	if downstream.calls.Load() != 0 {
		t.Fatal("oversized body must not be forwarded")
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{url: "http://localhost:3000/api/tracks", want: true},
		{url: "x", want: true},
		{url: "", want: false},
	}
	for _, tc := range tests {
		router := newTestRouter(t, tc.url, "", time.Second)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		resp := decode[model.HealthResponse](t, rec)
		if resp.Status != "healthy" || resp.MusicAppConfigured != tc.want {
			t.Fatalf("url %q: response = %+v", tc.url, resp)
		}
		if _, err := time.Parse(time.RFC3339Nano, resp.Timestamp); err != nil {
			t.Fatalf("timestamp %q: %v", resp.Timestamp, err)
		}
	}
}

func TestManifestRoute(t *testing.T) {
	router := newTestRouter(t, "http://unused", "", time.Second)

	var first []byte
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/.well-known/mcp.json", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Fatalf("content-type = %q", ct)
		}
		if first == nil {
			first = rec.Body.Bytes()
			continue
		}
		if !bytes.Equal(first, rec.Body.Bytes()) {
			t.Fatal("manifest bytes changed between calls")
		}
	}
	if !bytes.Equal(first, manifest.JSON()) {
		t.Fatal("route does not serve the static manifest")
	}
}

func TestCORS(t *testing.T) {
	router := newTestRouter(t, "http://unused", "", time.Second)

	for _, path := range []string{"/send-tracks", "/health", "/.well-known/mcp.json"} {
		req := httptest.NewRequest(http.MethodOptions, path, nil)
		req.Header.Set("Origin", "https://agent.example")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "content-type, x-custom")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("%s preflight status = %d", path, rec.Code)
		}
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Fatalf("%s allow-origin = %q", path, got)
		}
		if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "content-type, x-custom" {
			t.Fatalf("%s allow-headers = %q", path, got)
		}
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("simple requests must carry CORS headers too")
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatal("expected a request id on the response")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	router := newTestRouter(t, "http://unused", "", time.Second)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/send-tracks", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRecoverMiddleware(t *testing.T) {
	h := recoverMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/send-tracks", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d", rec.Code)
		}
		if detail := decode[model.ErrorResponse](t, rec).Detail; detail != "Unexpected error: kaboom" {
			t.Fatalf("detail = %q", detail)
		}
	}
}
