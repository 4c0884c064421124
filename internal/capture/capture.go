// Package capture renders the visible part of a page, together with the
// annotations drawn over it, into a single raster image.
package capture

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"strings"

	"github.com/example/pagemark/internal/annotation"
	"github.com/example/pagemark/internal/styles"
)

// ErrCapture is matched by every error returned from Renderer.Capture.
var ErrCapture = errors.New("capture failed")

// Error describes which capture step failed.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("capture %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrCapture }

// Result is a finished capture.
type Result struct {
	Image   image.Image
	PNG     []byte
	DataURL string
}

// Renderer produces a Result from the current page state.
type Renderer interface {
	Capture(ctx context.Context) (Result, error)
}

// Document is the live page being captured.
type Document interface {
	styles.SheetSource
	// Markup returns a serialized copy of the document element.
	Markup(ctx context.Context) (string, error)
	// Viewport returns the visible size and current scroll offset.
	Viewport(ctx context.Context) (annotation.Viewport, annotation.Scroll, error)
	// Screenshot returns the viewport as painted by the host.
	Screenshot(ctx context.Context) (image.Image, error)
}

// Chrome is a piece of the tool's own UI that must not appear in a capture.
type Chrome interface {
	Visible() bool
	SetVisible(bool)
}

// AnnotationSource supplies the annotations to draw.
type AnnotationSource interface {
	Annotations() []annotation.Annotation
}

// AnnotationList is a fixed AnnotationSource.
type AnnotationList []annotation.Annotation

func (l AnnotationList) Annotations() []annotation.Annotation { return annotation.Clone(l) }

// Rasterizer turns a composed SVG document into pixels.
type Rasterizer interface {
	Rasterize(ctx context.Context, svg string, vp annotation.Viewport) (image.Image, error)
}

// Strategy selects a Renderer implementation.
type Strategy string

const (
	// StrategySVG re-renders a structural copy of the page inside an SVG
	// foreignObject with the annotations as vector elements.
	StrategySVG Strategy = "svg"
	// StrategyComposite paints the annotations over a host screenshot.
	StrategyComposite Strategy = "composite"
)

// ParseStrategy converts a configuration value into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategySVG:
		return StrategySVG, nil
	case StrategyComposite, "screenshot":
		return StrategyComposite, nil
	}
	return "", fmt.Errorf("unknown capture strategy %q", s)
}

// Options wires a Renderer to its collaborators.
type Options struct {
	Document    Document
	Chrome      []Chrome
	Annotations AnnotationSource
	Rasterizer  Rasterizer
	Styles      *styles.Collector
	Params      annotation.Params
	Logger      *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o Options) annotations() []annotation.Annotation {
	if o.Annotations == nil {
		return []annotation.Annotation{}
	}
	return o.Annotations.Annotations()
}

// NewRenderer builds the renderer for strategy s.
func NewRenderer(s Strategy, opts Options) (Renderer, error) {
	if opts.Document == nil {
		return nil, fmt.Errorf("capture: document required")
	}
	opts.Params = opts.Params.Normalize()
	switch s {
	case StrategySVG, "":
		if opts.Rasterizer == nil {
			return nil, fmt.Errorf("capture: svg strategy requires a rasterizer")
		}
		if opts.Styles == nil {
			opts.Styles = styles.NewCollector(opts.Logger)
		}
		return &SVGRenderer{opts: opts}, nil
	case StrategyComposite:
		return &CompositeRenderer{opts: opts}, nil
	}
	return nil, fmt.Errorf("capture: unknown strategy %q", s)
}

// hideChrome hides every chrome element and returns a func restoring each
// one to the visibility it had before.
func hideChrome(chrome []Chrome) func() {
	prev := make([]bool, len(chrome))
	for i, c := range chrome {
		if c == nil {
			continue
		}
		prev[i] = c.Visible()
		c.SetVisible(false)
	}
	return func() {
		for i, c := range chrome {
			if c == nil {
				continue
			}
			c.SetVisible(prev[i])
		}
	}
}

// Encode wraps img as PNG bytes and a base64 data URL.
func Encode(img image.Image) (Result, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Result{}, err
	}
	return Result{
		Image:   img,
		PNG:     buf.Bytes(),
		DataURL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

// DecodeDataURL returns the bytes of a base64 image data URL.
func DecodeDataURL(s string) (mime string, data []byte, err error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", nil, fmt.Errorf("not a data url")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("malformed data url")
	}
	mime, enc, _ := strings.Cut(meta, ";")
	if enc != "base64" {
		return "", nil, fmt.Errorf("data url is not base64 encoded")
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode data url: %w", err)
	}
	return mime, data, nil
}
