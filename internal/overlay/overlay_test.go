package overlay

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/mobile/event/mouse"

	"github.com/example/pagemark/internal/annotation"
	"github.com/example/pagemark/internal/capture"
	"github.com/example/pagemark/internal/draw"
)

type fakeSurface struct {
	visible bool
	closed  bool
	shapes  []draw.Shape
}

func (s *fakeSurface) Render(shapes []draw.Shape) { s.shapes = shapes }
func (s *fakeSurface) Visible() bool              { return s.visible }
func (s *fakeSurface) SetVisible(v bool)          { s.visible = v }

func (s *fakeSurface) Close() error {
	s.closed = true
	return nil
}

type fakeChrome struct{ visible bool }

func (c *fakeChrome) Visible() bool     { return c.visible }
func (c *fakeChrome) SetVisible(v bool) { c.visible = v }

type recordingRenderer struct {
	chrome []capture.Chrome
	src    capture.AnnotationSource
	err    error
}

func (r *recordingRenderer) Capture(context.Context) (capture.Result, error) {
	for _, c := range r.chrome {
		c.SetVisible(false)
	}
	defer func() {
		for _, c := range r.chrome {
			c.SetVisible(true)
		}
	}()
	if r.err != nil {
		return capture.Result{}, &capture.Error{Op: "rasterize", Err: r.err}
	}
	return capture.Result{DataURL: "data:image/png;base64,"}, nil
}

func drag(c *Controller, x0, y0, x1, y1 float32) {
	c.HandleMouse(mouse.Event{X: x0, Y: y0, Button: mouse.ButtonLeft, Direction: mouse.DirPress})
	c.HandleMouse(mouse.Event{X: x1, Y: y1, Direction: mouse.DirNone})
	c.HandleMouse(mouse.Event{X: x1, Y: y1, Button: mouse.ButtonLeft, Direction: mouse.DirRelease})
}

func newTestController(t *testing.T, opts ...Option) (*Controller, *int, *fakeSurface) {
	t.Helper()
	created := 0
	surf := &fakeSurface{}
	opts = append([]Option{WithSurfaceFactory(func() (Surface, error) {
		created++
		return surf, nil
	})}, opts...)
	return New(opts...), &created, surf
}

func TestShowCreatesSurfaceOnce(t *testing.T) {
	c, created, surf := newTestController(t)
	if err := c.Show(annotation.ToolCircle); err != nil {
		t.Fatalf("show: %v", err)
	}
	c.Hide()
	if surf.visible || c.Visible() {
		t.Fatalf("hide should make surface invisible")
	}
	if err := c.Show(annotation.ToolArrow); err != nil {
		t.Fatalf("show again: %v", err)
	}
	if *created != 1 {
		t.Fatalf("expected surface to be reused, created %d", *created)
	}
	if !surf.visible || c.Tool() != annotation.ToolArrow {
		t.Fatalf("expected visible arrow overlay")
	}
}

func TestHiddenOverlayIgnoresEventsAndKeepsAnnotations(t *testing.T) {
	c, _, _ := newTestController(t)
	drag(c, 0, 0, 50, 50)
	if c.AnnotationCount() != 0 {
		t.Fatalf("overlay must ignore events before show")
	}
	c.Show(annotation.ToolCircle)
	drag(c, 0, 0, 50, 50)
	c.Hide()
	drag(c, 0, 0, 80, 80)
	if c.AnnotationCount() != 1 {
		t.Fatalf("expected one annotation, got %d", c.AnnotationCount())
	}
}

func TestColorUndoClear(t *testing.T) {
	c, _, surf := newTestController(t, WithColor("#123456"))
	c.Show(annotation.ToolArrow)
	drag(c, 0, 0, 40, 40)
	c.SetColor("#abcdef")
	drag(c, 0, 0, 60, 60)
	got := c.Annotations()
	if got[0].Color != "#123456" || got[1].Color != "#abcdef" {
		t.Fatalf("unexpected colors %+v", got)
	}
	if !c.Undo() || c.AnnotationCount() != 1 || len(surf.shapes) != 1 {
		t.Fatalf("undo did not remove the latest annotation")
	}
	c.Clear()
	if c.AnnotationCount() != 0 || len(surf.shapes) != 0 {
		t.Fatalf("clear left state behind")
	}
}

func TestDestroyIsIrreversible(t *testing.T) {
	c, _, surf := newTestController(t, WithRendererFactory(func([]capture.Chrome, capture.AnnotationSource) (capture.Renderer, error) {
		return &recordingRenderer{}, nil
	}))
	c.Show(annotation.ToolCircle)
	drag(c, 0, 0, 50, 50)
	if err := c.Destroy(); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if !surf.closed || len(surf.shapes) != 0 {
		t.Fatalf("surface not discarded")
	}
	if err := c.Destroy(); err != nil {
		t.Fatalf("second destroy should be a no-op: %v", err)
	}
	if err := c.Show(annotation.ToolCircle); !errors.Is(err, ErrDestroyed) {
		t.Fatalf("expected ErrDestroyed from show, got %v", err)
	}
	if _, err := c.CaptureScreenshot(context.Background()); !errors.Is(err, ErrDestroyed) {
		t.Fatalf("expected ErrDestroyed from capture, got %v", err)
	}
	if c.AnnotationCount() != 0 || c.Undo() || c.HandleMouse(mouse.Event{Direction: mouse.DirPress}) {
		t.Fatalf("destroyed overlay must be inert")
	}
}

func TestCaptureHandsChromeAndAnnotationsToRenderer(t *testing.T) {
	panel := &fakeChrome{visible: true}
	var rec *recordingRenderer
	c, _, surf := newTestController(t,
		WithChrome(panel),
		WithRendererFactory(func(chrome []capture.Chrome, src capture.AnnotationSource) (capture.Renderer, error) {
			rec = &recordingRenderer{chrome: chrome, src: src}
			return rec, nil
		}))
	c.Show(annotation.ToolCircle)
	drag(c, 100, 100, 200, 180)
	if _, err := c.CaptureScreenshot(context.Background()); err != nil {
		t.Fatalf("capture: %v", err)
	}
	if len(rec.chrome) != 2 || rec.chrome[0] != capture.Chrome(surf) || rec.chrome[1] != capture.Chrome(panel) {
		t.Fatalf("unexpected chrome %+v", rec.chrome)
	}
	if anns := rec.src.Annotations(); len(anns) != 1 || anns[0].Width != 100 {
		t.Fatalf("unexpected annotations %+v", anns)
	}
	if !surf.visible || !panel.visible {
		t.Fatalf("chrome not restored")
	}
}

func TestCaptureErrors(t *testing.T) {
	c, _, _ := newTestController(t)
	if _, err := c.CaptureScreenshot(context.Background()); !errors.Is(err, capture.ErrCapture) {
		t.Fatalf("expected capture error without renderer, got %v", err)
	}
	boom := errors.New("boom")
	c, _, _ = newTestController(t, WithRendererFactory(func([]capture.Chrome, capture.AnnotationSource) (capture.Renderer, error) {
		return &recordingRenderer{err: boom}, nil
	}))
	if _, err := c.CaptureScreenshot(context.Background()); !errors.Is(err, capture.ErrCapture) || !errors.Is(err, boom) {
		t.Fatalf("expected wrapped capture error, got %v", err)
	}
}

func TestShowWithoutFactoryFails(t *testing.T) {
	if err := New().Show(annotation.ToolCircle); err == nil {
		t.Fatalf("expected error without surface factory")
	}
}
