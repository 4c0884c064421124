package capture

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/example/pagemark/internal/annotation"
)

var newFontSourceFn = func() (*text.FontSource, error) {
	return text.NewFontSource(goregular.TTF)
}

// CompositeRenderer captures by painting annotations over a screenshot.
type CompositeRenderer struct {
	opts Options
}

// Capture implements Renderer with the same chrome discipline as
// SVGRenderer.
func (r *CompositeRenderer) Capture(ctx context.Context) (Result, error) {
	start := time.Now()
	restore := hideChrome(r.opts.Chrome)
	defer restore()

	shot, err := r.opts.Document.Screenshot(ctx)
	if err != nil {
		return Result{}, &Error{Op: "screenshot", Err: err}
	}
	img, err := Paint(shot, r.opts.annotations(), r.opts.Params)
	if err != nil {
		return Result{}, &Error{Op: "paint", Err: err}
	}
	res, err := Encode(img)
	if err != nil {
		return Result{}, &Error{Op: "encode", Err: err}
	}
	r.opts.logger().Debug("capture: composite", "bytes", len(res.PNG), "took", time.Since(start))
	return res, nil
}

// Paint draws anns over a copy of base using anti-aliased vector paths.
func Paint(base image.Image, anns []annotation.Annotation, p annotation.Params) (image.Image, error) {
	p = p.Normalize()
	dc := gg.NewContextForImage(base)
	defer dc.Close()
	var face text.Face
	for _, a := range anns {
		dc.SetHexColor(a.Color)
		dc.SetLineWidth(p.StrokeWidth)
		switch a.Tool {
		case annotation.ToolCircle:
			dc.DrawEllipse(a.X+a.Width/2, a.Y+a.Height/2, a.Width/2, a.Height/2)
			if err := dc.Stroke(); err != nil {
				return nil, fmt.Errorf("annotation %d: %w", a.ID, err)
			}
		case annotation.ToolArrow:
			dc.SetLineCap(gg.LineCapRound)
			dc.DrawLine(a.X, a.Y, a.EndX, a.EndY)
			if err := dc.Stroke(); err != nil {
				return nil, fmt.Errorf("annotation %d: %w", a.ID, err)
			}
			lx, ly, rx, ry := p.ArrowHead(a.X, a.Y, a.EndX, a.EndY)
			dc.MoveTo(a.EndX, a.EndY)
			dc.LineTo(lx, ly)
			dc.LineTo(rx, ry)
			dc.ClosePath()
			if err := dc.Fill(); err != nil {
				return nil, fmt.Errorf("annotation %d: %w", a.ID, err)
			}
		case annotation.ToolText:
			if face == nil {
				src, err := newFontSourceFn()
				if err != nil {
					return nil, fmt.Errorf("load font: %w", err)
				}
				face = src.Face(p.FontSize)
				dc.SetFont(face)
			}
			x, y, _, h := TextBox(a, p)
			tw, _ := dc.MeasureString(a.Text)
			dc.SetRGBA(1, 1, 1, 0.9)
			dc.DrawRectangle(x, y, tw+2*p.TextPadding, h)
			if err := dc.Fill(); err != nil {
				return nil, fmt.Errorf("annotation %d: %w", a.ID, err)
			}
			dc.SetHexColor(a.Color)
			dc.DrawString(a.Text, x+p.TextPadding, TextBaseline(a, p))
		}
	}
	return dc.Image(), nil
}
