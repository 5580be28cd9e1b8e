package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/starford/cardring/internal/apperr"
	"github.com/starford/cardring/internal/hostopen"
	"github.com/starford/cardring/internal/models"
	"github.com/starford/cardring/internal/scene"
	"github.com/starford/cardring/internal/scrapbox"
	"github.com/starford/cardring/internal/sse"
	"github.com/starford/cardring/internal/texture"
)

type fakeFetcher struct{}

func (fakeFetcher) ProjectPages(_ context.Context, project string) ([]models.PageSummary, error) {
	switch project {
	case "demo":
		return []models.PageSummary{{Title: "A", Image: "https://img.test/a.png"}, {Title: "B"}, {Title: "C"}, {Title: "D"}}, nil
	case "down":
		return nil, errors.New("connection refused")
	}
	return nil, apperr.ErrNotFound
}

func (fakeFetcher) PageDetail(_ context.Context, _, title string) (*models.PageDetail, error) {
	switch strings.ToLower(title) {
	case "a":
		return &models.PageDetail{Title: "A", Links: []string{"B"}, Related: []string{"C"}}, nil
	case "b", "c", "d":
		return &models.PageDetail{Title: strings.ToUpper(title)}, nil
	}
	return nil, apperr.ErrNotFound
}

func (fakeFetcher) ImageDataURI(_ context.Context, url string) string {
	if url == "https://img.test/a.png" {
		return "data:image/png;base64,AAAA"
	}
	return texture.Placeholder
}

type recordingOpener struct {
	mu     sync.Mutex
	opened []string
}

func (o *recordingOpener) run(_ context.Context, target string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opened = append(o.opened, target)
	return nil
}

// testEnv builds the full router over a fake fetcher. An empty token means
// auth is disabled.
func testEnv(t *testing.T, token string) (http.Handler, *recordingOpener) {
	t.Helper()

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	broker := sse.NewBroker(0)
	t.Cleanup(broker.Close)

	params := scene.DefaultParams()
	params.PreviewFrames = 5
	reg := scene.NewRegistry(fakeFetcher{}, scene.RegistryConfig{
		Params:      params,
		FPS:         200,
		Concurrency: 2,
		Sink:        broker.Sink,
	}, logger)
	t.Cleanup(reg.Close)

	staticDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(staticDir, "app.js"), []byte("const ring = 1;"), 0o644); err != nil {
		t.Fatal(err)
	}

	opener := &recordingOpener{}
	router := NewRouter(RouterConfig{
		Fetcher:     fakeFetcher{},
		Opener:      hostopen.NewWithRunner(opener.run),
		Scenes:      reg,
		Broker:      broker,
		AuthEnabled: token != "",
		Token:       token,
		StaticDir:   staticDir,
	})
	return router, opener
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, rd)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestProjectData(t *testing.T) {
	router, _ := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/projectData?project=demo", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp ProjectDataResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Pages) != 4 || resp.Pages[0].Title != "A" {
		t.Errorf("pages = %+v", resp.Pages)
	}

	if w := do(t, router, http.MethodGet, "/projectData", nil); w.Code != http.StatusBadRequest {
		t.Errorf("missing project = %d, want 400", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/projectData?project=nope", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown project = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/projectData?project=down", nil); w.Code != http.StatusBadGateway {
		t.Errorf("upstream failure = %d, want 502", w.Code)
	}
}

func TestPageData(t *testing.T) {
	router, _ := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/pageData?project=demo&page=A", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var raw map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &raw)
	related, _ := raw["relatedPages"].(map[string]any)
	hop, _ := related["links1hop"].([]any)
	if len(hop) != 1 || hop[0].(map[string]any)["title"] != "C" {
		t.Errorf("relatedPages = %v", raw["relatedPages"])
	}

	w = do(t, router, http.MethodGet, "/pageData?project=demo&page=B", nil)
	if !strings.Contains(w.Body.String(), `"links":[]`) {
		t.Errorf("page without links should carry an empty list: %s", w.Body.String())
	}
	if w := do(t, router, http.MethodGet, "/pageData?project=demo", nil); w.Code != http.StatusBadRequest {
		t.Errorf("missing page = %d, want 400", w.Code)
	}
}

func TestURL2Base64(t *testing.T) {
	router, _ := testEnv(t, "")

	tests := []struct {
		target string
		want   string
	}{
		{"/url2base64?url=https%3A%2F%2Fimg.test%2Fa.png", "data:image/png;base64,AAAA"},
		{"/url2base64?url=https%3A%2F%2Fimg.test%2Fmissing.png", texture.Placeholder},
		{"/url2base64", texture.Placeholder},
	}
	for _, tt := range tests {
		w := do(t, router, http.MethodGet, tt.target, nil)
		if w.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", tt.target, w.Code)
		}
		if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain") {
			t.Errorf("%s content type = %q", tt.target, w.Header().Get("Content-Type"))
		}
		if w.Body.String() != tt.want {
			t.Errorf("%s body = %q, want %q", tt.target, w.Body.String(), tt.want)
		}
	}
}

func TestURL2Base64_LocalHostsBlocked(t *testing.T) {
	var hits atomic.Int32
	img := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
	}))
	t.Cleanup(img.Close)

	client := scrapbox.New(img.URL, scrapbox.WithLogger(slog.New(slog.NewJSONHandler(io.Discard, nil))))
	router := NewRouter(RouterConfig{Fetcher: client})

	for _, u := range []string{img.URL + "/", img.URL + "/a.png", "http://169.254.169.254/latest/meta-data/"} {
		w := do(t, router, http.MethodGet, "/url2base64?url="+url.QueryEscape(u), nil)
		if w.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", u, w.Code)
		}
		if w.Body.String() != texture.Placeholder {
			t.Errorf("%s body = %q, want placeholder", u, w.Body.String())
		}
	}
	if n := hits.Load(); n != 0 {
		t.Errorf("local image server hit %d times", n)
	}
}

func TestOpen(t *testing.T) {
	router, opener := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/open?url=https%3A%2F%2Fscrapbox.io%2Fhelp-jp", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("open = %d, body = %s", w.Code, w.Body.String())
	}
	if len(opener.opened) != 1 || opener.opened[0] != "https://scrapbox.io/help-jp" {
		t.Errorf("opened = %v", opener.opened)
	}

	w = do(t, router, http.MethodGet, "/open?url=file%3A%2F%2F%2Fetc%2Fpasswd", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("file url = %d, want 400", w.Code)
	}
	if len(opener.opened) != 1 {
		t.Errorf("invalid url was opened: %v", opener.opened)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	router, _ := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/open?url=http%3A%2F%2Fexample.com", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("authed open = %d, want 204", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	router, opener := testEnv(t, "secret123")

	for _, target := range []string{"/open?url=http%3A%2F%2Fexample.com", "/api/scenes/demo"} {
		w := do(t, router, http.MethodGet, target, nil)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("unauthed %s = %d, want 401", target, w.Code)
		}
	}
	if len(opener.opened) != 0 {
		t.Errorf("opened without auth: %v", opener.opened)
	}

	// The proxy stays public.
	if w := do(t, router, http.MethodGet, "/projectData?project=demo", nil); w.Code != http.StatusOK {
		t.Errorf("proxy behind auth: %d", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	router, _ := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/api/scenes/demo", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestStaticFiles(t *testing.T) {
	router, _ := testEnv(t, "secret123")

	w := do(t, router, http.MethodGet, "/app.js", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "ring") {
		t.Fatalf("static = %d %q", w.Code, w.Body.String())
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("missing CORS header: %v", w.Header())
	}
	if w.Header().Get("Access-Control-Allow-Methods") != "GET" {
		t.Errorf("missing CORS methods: %v", w.Header())
	}
}

func waitIdle(t *testing.T, router http.Handler) scene.Frame {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		w := do(t, router, http.MethodGet, "/api/scenes/demo", nil)
		var f scene.Frame
		_ = json.Unmarshal(w.Body.Bytes(), &f)
		if f.FramesRemaining == 0 {
			return f
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("scene never went idle")
	return scene.Frame{}
}

func TestScene_SelectFlow(t *testing.T) {
	router, _ := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/api/scenes/demo", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get = %d, body = %s", w.Code, w.Body.String())
	}
	var f scene.Frame
	_ = json.Unmarshal(w.Body.Bytes(), &f)
	if len(f.Cards) != 4 || f.Cards[0].Texture == "" {
		t.Fatalf("cards = %+v", f.Cards)
	}

	w = do(t, router, http.MethodPost, "/api/scenes/demo/select", SelectRequest{Title: "a"})
	if w.Code != http.StatusOK {
		t.Fatalf("select = %d, body = %s", w.Code, w.Body.String())
	}
	var sel SelectResponse
	_ = json.Unmarshal(w.Body.Bytes(), &sel)
	if !sel.Started || sel.Scene.Selected != "a" || sel.Scene.FramesRemaining == 0 {
		t.Errorf("select response = %+v", sel)
	}

	final := waitIdle(t, router)
	if len(final.Lines) != 2 {
		t.Errorf("lines = %d, want 2 (explicit and related link)", len(final.Lines))
	}
}

func TestScene_Errors(t *testing.T) {
	router, _ := testEnv(t, "")

	if w := do(t, router, http.MethodPost, "/api/scenes/demo/select", SelectRequest{Title: "zzz"}); w.Code != http.StatusNotFound {
		t.Errorf("unknown card = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/api/scenes/demo/select", map[string]string{}); w.Code != http.StatusBadRequest {
		t.Errorf("missing title = %d, want 400", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/api/scenes/nope", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown project = %d, want 404", w.Code)
	}

	if w := do(t, router, http.MethodPost, "/api/scenes/demo/spin", nil); w.Code != http.StatusAccepted {
		t.Fatalf("spin = %d", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/api/scenes/demo/rotate", RotateRequest{Radians: 1}); w.Code != http.StatusConflict {
		t.Errorf("rotate while spinning = %d, want 409", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/api/scenes/demo/lift", LiftRequest{DY: 0.1}); w.Code != http.StatusConflict {
		t.Errorf("lift while spinning = %d, want 409", w.Code)
	}
}

func TestScene_LiftAndCamera(t *testing.T) {
	router, _ := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/api/scenes/demo/lift", LiftRequest{DY: 0.5})
	if w.Code != http.StatusOK {
		t.Fatalf("lift = %d, body = %s", w.Code, w.Body.String())
	}
	var f scene.Frame
	_ = json.Unmarshal(w.Body.Bytes(), &f)
	for _, c := range f.Cards {
		if c.Position[1] != 0.5 {
			t.Errorf("card %s y = %v, want 0.5", c.Title, c.Position[1])
		}
	}

	w = do(t, router, http.MethodPost, "/api/scenes/demo/camera", CameraRequest{X: 0, Y: 1.6, Z: 0})
	if w.Code != http.StatusOK {
		t.Fatalf("camera = %d", w.Code)
	}
	var cam CameraResponse
	_ = json.Unmarshal(w.Body.Bytes(), &cam)
	if cam.Spun {
		t.Error("single camera sample started a spin")
	}
}

func TestScene_EventsStream(t *testing.T) {
	router, _ := testEnv(t, "")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/scenes/demo/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("events = %d", w.Code)
	}
	if !strings.HasPrefix(w.Body.String(), "event: scene.frame\n") {
		t.Errorf("stream does not open with a frame: %q", w.Body.String())
	}
}
