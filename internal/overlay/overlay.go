// Package overlay owns the lifecycle of the drawing surface that sits on top
// of a page: showing and hiding it, switching tools and colors, and handing
// the page plus annotations to a capture renderer.
package overlay

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"golang.org/x/mobile/event/key"
	"golang.org/x/mobile/event/mouse"

	"github.com/example/pagemark/internal/annotation"
	"github.com/example/pagemark/internal/capture"
	"github.com/example/pagemark/internal/draw"
)

// ErrDestroyed is returned by operations on a destroyed Controller.
var ErrDestroyed = errors.New("overlay destroyed")

// Surface is the visual layer the engine projects onto. It is also chrome:
// it must be hidden while a capture runs.
type Surface interface {
	draw.Surface
	capture.Chrome
	Close() error
}

// SurfaceFactory creates the surface on first Show.
type SurfaceFactory func() (Surface, error)

// RendererFactory builds a renderer for one capture. chrome lists every
// element to hide; src supplies the annotations.
type RendererFactory func(chrome []capture.Chrome, src capture.AnnotationSource) (capture.Renderer, error)

// Option configures a Controller.
type Option func(*Controller)

// WithSurfaceFactory sets how the surface is created.
func WithSurfaceFactory(f SurfaceFactory) Option {
	return func(c *Controller) { c.newSurface = f }
}

// WithRendererFactory sets how capture renderers are built.
func WithRendererFactory(f RendererFactory) Option {
	return func(c *Controller) { c.newRenderer = f }
}

// WithParams overrides the geometry constants.
func WithParams(p annotation.Params) Option {
	return func(c *Controller) { c.params = p }
}

// WithColor sets the initial annotation color.
func WithColor(color string) Option {
	return func(c *Controller) { c.color = color }
}

// WithLogger sets the logger used for lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithChrome registers host UI, such as a tool panel, that must be hidden
// during capture in addition to the surface.
func WithChrome(ch ...capture.Chrome) Option {
	return func(c *Controller) { c.chrome = append(c.chrome, ch...) }
}

// WithHitTest reports points that belong to host UI; presses there never
// start a gesture.
func WithHitTest(f func(image.Point) bool) Option {
	return func(c *Controller) { c.hitTest = f }
}

// Controller is the single owner of an engine and its surface. Calls are
// expected from one goroutine.
type Controller struct {
	newSurface  SurfaceFactory
	newRenderer RendererFactory
	params      annotation.Params
	color       string
	logger      *slog.Logger
	chrome      []capture.Chrome
	hitTest     func(image.Point) bool

	engine    *draw.Engine
	surface   Surface
	visible   bool
	destroyed bool
}

// New returns a hidden controller. The surface is not created until Show.
func New(opts ...Option) *Controller {
	c := &Controller{color: annotation.DefaultColor}
	for _, o := range opts {
		o(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.engine = draw.New(draw.Options{
		Params:   c.params,
		Color:    c.color,
		IsChrome: c.hitTest,
	})
	c.engine.Disable()
	return c
}

// Show makes the surface visible, creating it on first use, and activates
// tool.
func (c *Controller) Show(tool annotation.Tool) error {
	if c.destroyed {
		return ErrDestroyed
	}
	if c.surface == nil {
		if c.newSurface == nil {
			return fmt.Errorf("overlay: no surface factory")
		}
		s, err := c.newSurface()
		if err != nil {
			return fmt.Errorf("overlay: create surface: %w", err)
		}
		c.surface = s
		c.engine.SetSurface(s)
		c.logger.Debug("overlay: surface created")
	}
	c.surface.SetVisible(true)
	c.visible = true
	c.engine.Enable()
	c.engine.SetTool(tool)
	return nil
}

// Hide makes the surface invisible and stops processing events.
// Annotations are kept.
func (c *Controller) Hide() {
	if c.destroyed {
		return
	}
	c.engine.Disable()
	if c.surface != nil {
		c.surface.SetVisible(false)
	}
	c.visible = false
}

// Visible reports whether the overlay is shown.
func (c *Controller) Visible() bool { return c.visible }

// Destroyed reports whether Destroy has been called.
func (c *Controller) Destroyed() bool { return c.destroyed }

// Tool returns the active tool.
func (c *Controller) Tool() annotation.Tool {
	if c.destroyed {
		return ""
	}
	return c.engine.Tool()
}

// Color returns the color for new annotations.
func (c *Controller) Color() string {
	if c.destroyed {
		return ""
	}
	return c.engine.Color()
}

// Params returns the geometry constants in use.
func (c *Controller) Params() annotation.Params { return c.engine.Params() }

// SetColor changes the color of annotations created afterwards.
func (c *Controller) SetColor(color string) {
	if c.destroyed {
		return
	}
	c.engine.SetColor(color)
}

// SetTool switches tools without changing visibility.
func (c *Controller) SetTool(tool annotation.Tool) {
	if c.destroyed {
		return
	}
	c.engine.SetTool(tool)
}

// Clear removes every annotation.
func (c *Controller) Clear() {
	if c.destroyed {
		return
	}
	c.engine.Clear()
}

// Undo removes the most recent annotation.
func (c *Controller) Undo() bool {
	if c.destroyed {
		return false
	}
	return c.engine.Undo()
}

// Annotations returns a copy of the committed annotations.
func (c *Controller) Annotations() []annotation.Annotation {
	if c.destroyed {
		return []annotation.Annotation{}
	}
	return c.engine.Annotations()
}

// AnnotationCount returns the number of committed annotations.
func (c *Controller) AnnotationCount() int {
	if c.destroyed {
		return 0
	}
	return c.engine.Count()
}

// HandleMouse forwards a pointer event to the engine.
func (c *Controller) HandleMouse(e mouse.Event) bool {
	if c.destroyed {
		return false
	}
	return c.engine.HandleMouse(e)
}

// HandleKey forwards a key event to the engine.
func (c *Controller) HandleKey(e key.Event) bool {
	if c.destroyed {
		return false
	}
	return c.engine.HandleKey(e)
}

// Blur commits an open text entry.
func (c *Controller) Blur() {
	if c.destroyed {
		return
	}
	c.engine.Blur()
}

// Editing reports whether a text entry is open.
func (c *Controller) Editing() bool {
	return !c.destroyed && c.engine.Editing()
}

// Destroy tears the overlay down. It is irreversible; later calls are
// no-ops.
func (c *Controller) Destroy() error {
	if c.destroyed {
		return nil
	}
	c.destroyed = true
	c.visible = false
	c.engine.Disable()
	c.engine.Clear()
	var err error
	if c.surface != nil {
		c.engine.SetSurface(nil)
		if cerr := c.surface.Close(); cerr != nil {
			err = fmt.Errorf("overlay: close surface: %w", cerr)
		}
		c.surface = nil
	}
	c.logger.Debug("overlay: destroyed")
	return err
}

// CaptureScreenshot renders the page and annotations with the configured
// renderer. The surface and registered chrome are hidden during the
// capture and restored afterwards.
func (c *Controller) CaptureScreenshot(ctx context.Context) (capture.Result, error) {
	if c.destroyed {
		return capture.Result{}, ErrDestroyed
	}
	if c.newRenderer == nil {
		return capture.Result{}, &capture.Error{Op: "renderer", Err: errors.New("no renderer configured")}
	}
	chrome := make([]capture.Chrome, 0, len(c.chrome)+1)
	if c.surface != nil {
		chrome = append(chrome, c.surface)
	}
	chrome = append(chrome, c.chrome...)
	r, err := c.newRenderer(chrome, c)
	if err != nil {
		return capture.Result{}, &capture.Error{Op: "renderer", Err: err}
	}
	res, err := r.Capture(ctx)
	if err != nil {
		c.logger.Warn("overlay: capture failed", "error", err)
		return capture.Result{}, err
	}
	c.logger.Debug("overlay: captured", "annotations", c.engine.Count())
	return res, nil
}
