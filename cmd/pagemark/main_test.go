package main

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/example/pagemark/internal/annotation"
	"github.com/example/pagemark/internal/appstate"
	"github.com/example/pagemark/internal/capture"
	"github.com/example/pagemark/internal/config"
	"github.com/example/pagemark/internal/delegate"
	"github.com/example/pagemark/internal/draw"
	"github.com/example/pagemark/internal/overlay"
	"github.com/example/pagemark/internal/theme"
)

type nopSurface struct{ visible bool }

func (s *nopSurface) Render([]draw.Shape) {}
func (s *nopSurface) Visible() bool { return s.visible }
func (s *nopSurface) SetVisible(v bool) { s.visible = v }
func (s *nopSurface) Close() error { return nil }

type fixedRenderer struct {
	src  capture.AnnotationSource
	seen *[]annotation.Annotation
}

func (f fixedRenderer) Capture(context.Context) (capture.Result, error) {
	*f.seen = f.src.Annotations()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.SetRGBA(1, 1, color.RGBA{R: 0xff, A: 0xff})
	return capture.Encode(img)
}

// fakeSession swaps newSessionFn for a page-less session and returns the
// annotations the renderer saw.
func fakeSession(t *testing.T) *[]annotation.Annotation {
	t.Helper()
	seen := &[]annotation.Annotation{}
	orig := newSessionFn
	newSessionFn = func(ctx context.Context, r *root, opts sessionOptions) (*session, error) {
		ctl := overlay.New(
			overlay.WithSurfaceFactory(func() (overlay.Surface, error) {
				var surf overlay.Surface = &nopSurface{}
				if opts.wrap != nil {
					surf = opts.wrap(surf)
				}
				return surf, nil
			}),
			overlay.WithRendererFactory(func(_ []capture.Chrome, src capture.AnnotationSource) (capture.Renderer, error) {
				return fixedRenderer{src: src, seen: seen}, nil
			}),
		)
		return &session{
			ctl:        ctl,
			meta:       delegate.Meta{URL: opts.url, Title: "Home", Viewport: annotation.Viewport{Width: 1280, Height: 800}},
			screenshot: func(context.Context) (image.Image, error) { return image.NewRGBA(image.Rect(0, 0, 4, 4)), nil },
			close:      ctl.Destroy,
		}, nil
	}
	t.Cleanup(func() { newSessionFn = orig })
	return seen
}

func testRoot(t *testing.T) *root {
	t.Helper()
	cfg := config.New()
	cfg.SaveDir = t.TempDir()
	return &root{program: "pagemark", config: cfg}
}

func TestCaptureRunPlaysMarksAndSaves(t *testing.T) {
	seen := fakeSession(t)
	r := testRoot(t)
	out := filepath.Join(t.TempDir(), "shot.png")
	cmd, err := parseCaptureCmd([]string{
		"-output", out,
		"-mark", "circle 100 100 200 180",
		"-mark", "arrow 10 10 90 40 @#00ff00",
		"-mark", "text 30 40 check this",
		"-mark", "circle 0 0 2 2",
		"http://localhost:3000/",
	}, r)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := cmd.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(*seen) != 3 {
		t.Fatalf("expected three annotations, got %+v", *seen)
	}
	if (*seen)[1].Color != "#00ff00" || (*seen)[2].Text != "check this" {
		t.Fatalf("unexpected annotations %+v", *seen)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.HasPrefix(string(data), "\x89PNG") {
		t.Fatalf("output is not a PNG")
	}
}

func TestCaptureDelegatesSnapshot(t *testing.T) {
	fakeSession(t)
	var got annotation.Snapshot
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if err := json.NewDecoder(req.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"id":"snap-1","routed":true}`))
	}))
	defer srv.Close()

	r := testRoot(t)
	r.config.Endpoint = srv.URL
	cmd, err := parseCaptureCmd([]string{"-delegate", "-mark", "arrow 10 10 90 40", "http://localhost:3000/page"}, r)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := cmd.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got.URL != "http://localhost:3000/page" || got.Title != "Home" || len(got.Annotations) != 1 {
		t.Fatalf("unexpected snapshot %+v", got)
	}
	if !strings.HasPrefix(got.ScreenshotDataURL, "data:image/png;base64,") {
		t.Fatalf("unexpected data url %.30s", got.ScreenshotDataURL)
	}
	entries, err := os.ReadDir(r.config.SaveDir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one capture in save_dir, got %v (%v)", entries, err)
	}
}

func TestAnnotateRunOpensWindow(t *testing.T) {
	fakeSession(t)
	var opened *appstate.AppState
	orig := runWindowFn
	runWindowFn = func(app *appstate.AppState) { opened = app }
	t.Cleanup(func() { runWindowFn = orig })

	r := testRoot(t)
	r.activeTheme = theme.Default()
	a, err := parseAnnotateCmd([]string{"-tool", "arrow", "http://localhost:3000/"}, r)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := a.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	if opened == nil {
		t.Fatalf("window was not opened")
	}
	if !strings.HasPrefix(opened.Title, "Pagemark - Home - http://localhost:3000/") || opened.Tool != annotation.ToolArrow {
		t.Fatalf("unexpected window state %q %q", opened.Title, opened.Tool)
	}
}

func TestAnnotateSaveAndCopyActions(t *testing.T) {
	fakeSession(t)
	var copied []byte
	origCopy := copyFn
	copyFn = func(b []byte) error { copied = b; return nil }
	t.Cleanup(func() { copyFn = origCopy })

	r := testRoot(t)
	a, err := parseAnnotateCmd([]string{"http://localhost:3000/"}, r)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	s, err := newSessionFn(context.Background(), r, sessionOptions{url: a.url})
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	defer s.close()

	msg, err := a.saveAction(s)(context.Background())
	if err != nil || !strings.HasPrefix(msg, "saved "+r.config.SaveDir) {
		t.Fatalf("save: %q %v", msg, err)
	}
	if _, err := a.copyAction(s)(context.Background()); err != nil {
		t.Fatalf("copy: %v", err)
	}
	if !strings.HasPrefix(string(copied), "\x89PNG") {
		t.Fatalf("clipboard did not receive a PNG")
	}
	if _, err := a.delegateAction(s)(context.Background()); err == nil {
		t.Fatalf("delegate without endpoint should fail")
	}
}

func TestAnnotateRejectsBadColor(t *testing.T) {
	if _, err := parseAnnotateCmd([]string{"-color", "red", "http://x/"}, testRoot(t)); err == nil {
		t.Fatalf("expected color error")
	}
}

func TestSaveCaptureTimestampedName(t *testing.T) {
	dir := t.TempDir()
	res := capture.Result{PNG: []byte("\x89PNG")}
	now := time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC)
	path, err := saveCapture(res, "", dir, now)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if want := filepath.Join(dir, "pagemark-20240309-140506.png"); path != want {
		t.Fatalf("got %q want %q", path, want)
	}
}

func TestServeHandlerStoresSnapshots(t *testing.T) {
	r := testRoot(t)
	dir := t.TempDir()
	s, err := parseServeCmd([]string{"-db", filepath.Join(dir, "inbox.db"), "-dir", filepath.Join(dir, "shots")}, r)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	h, closeStore, err := s.newInboxHandler(context.Background())
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	defer closeStore()
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/snapshots")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
}

func TestCaptureDelegateRequiresEndpoint(t *testing.T) {
	r := testRoot(t)
	if _, err := parseCaptureCmd([]string{"-delegate", "http://x/"}, r); err == nil || !strings.Contains(err.Error(), "endpoint") {
		t.Fatalf("expected endpoint error, got %v", err)
	}
}

func TestCaptureRejectsBadMark(t *testing.T) {
	r := testRoot(t)
	_, err := parseCaptureCmd([]string{"-mark", "square 1 2 3 4", "http://x/"}, r)
	if err == nil || !strings.Contains(err.Error(), "square") {
		t.Fatalf("expected mark error, got %v", err)
	}
}

func TestCaptureSessionErrorIsWrapped(t *testing.T) {
	orig := newSessionFn
	sentinel := errors.New("chrome missing")
	newSessionFn = func(context.Context, *root, sessionOptions) (*session, error) { return nil, sentinel }
	t.Cleanup(func() { newSessionFn = orig })

	cmd, err := parseCaptureCmd([]string{"http://x/"}, testRoot(t))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := cmd.Run(); !errors.Is(err, sentinel) || !strings.Contains(err.Error(), "capture http://x/") {
		t.Fatalf("expected wrapped session error, got %v", err)
	}
}

func TestRootWithoutCommandIsUsageError(t *testing.T) {
	err := newRoot().Run(nil)
	var uerr *UsageError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected usage error, got %v", err)
	}
	if msg := uerr.Error(); !strings.Contains(msg, "Usage: pagemark") || !strings.Contains(msg, "-endpoint") {
		t.Fatalf("unexpected help text:\n%s", msg)
	}
}

func TestResolveThemePrefersConfigSection(t *testing.T) {
	cfg, err := config.Parse(strings.NewReader("theme = mine\n[theme.mine]\nBackground = #010203\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := resolveTheme(cfg); got.Background != (color.RGBA{1, 2, 3, 255}) {
		t.Fatalf("expected config theme, got %+v", got.Background)
	}
	cfg.Theme = "dark"
	if got := resolveTheme(cfg); got.Name != "dark" {
		t.Fatalf("expected embedded dark theme, got %q", got.Name)
	}
}

func TestConfigSaveWritesRC(t *testing.T) {
	r := testRoot(t)
	r.config.Endpoint = "http://localhost:8787/api/snapshots"
	c, err := parseConfigCmd([]string{"save"}, r)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	path := filepath.Join(t.TempDir(), "nested", "config.rc")
	if err := c.saveTo(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	back, err := config.Parse(f)
	if err != nil {
		t.Fatalf("parse saved config: %v", err)
	}
	if back.Endpoint != r.config.Endpoint {
		t.Fatalf("endpoint not saved: %q", back.Endpoint)
	}
}

func TestWindowTitle(t *testing.T) {
	got := windowTitle(titleOptions{URL: "http://localhost:3000/", Title: " Home ", Strategy: "svg"})
	if !strings.HasPrefix(got, "Pagemark - Home - http://localhost:3000/ - svg renderer") {
		t.Fatalf("unexpected title %q", got)
	}
}
