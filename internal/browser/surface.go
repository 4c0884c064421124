package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/example/pagemark/internal/annotation"
	"github.com/example/pagemark/internal/capture"
	"github.com/example/pagemark/internal/draw"
)

// OverlayID is the element id of the in-page overlay.
const OverlayID = "pagemark-overlay"

const arrowMarkerID = "pagemark-arrowhead"

// mountJS creates the overlay once. The arrowhead marker lives in its defs
// and survives every redraw.
const mountJS = `(id, marker, length) => {
	let svg = document.getElementById(id);
	if (svg) return true;
	svg = document.createElementNS("http://www.w3.org/2000/svg", "svg");
	svg.id = id;
	svg.setAttribute("` + capture.ToolAttr + `", "overlay");
	svg.style.cssText = "position:fixed;left:0;top:0;width:100vw;height:100vh;pointer-events:none;z-index:2147483647";
	svg.innerHTML = '<defs><marker id="' + marker + '" markerWidth="' + length + '" markerHeight="' + length +
		'" refX="' + length + '" refY="' + (length / 2) + '" orient="auto" markerUnits="userSpaceOnUse">' +
		'<path d="M0,0 L' + length + ',' + (length / 2) + ' L0,' + length + ' z" fill="context-stroke"/></marker></defs>' +
		'<g class="pagemark-shapes"></g>';
	document.documentElement.appendChild(svg);
	return true;
}`

const renderJS = `(id, markup) => {
	const svg = document.getElementById(id);
	if (!svg) return false;
	svg.querySelector("g.pagemark-shapes").innerHTML = markup;
	return true;
}`

// PageSurface draws shapes into an SVG element injected into the page.
// It is marked with the tool attribute so captures strip it.
type PageSurface struct {
	page    *Page
	params  annotation.Params
	timeout time.Duration
	logger  *slog.Logger
	visible bool
}

// NewSurface mounts the overlay into p.
func NewSurface(ctx context.Context, p *Page, params annotation.Params) (*PageSurface, error) {
	params = params.Normalize()
	s := &PageSurface{page: p, params: params, timeout: 5 * time.Second, logger: p.logger, visible: true}
	if _, err := p.page.Context(ctx).Eval(mountJS, OverlayID, arrowMarkerID, params.ArrowHeadLength); err != nil {
		return nil, fmt.Errorf("browser: mount overlay: %w", err)
	}
	return s, nil
}

func (s *PageSurface) eval(js string, args ...any) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	_, err := s.page.page.Context(ctx).Eval(js, args...)
	return err
}

// Render replaces the overlay content with shapes.
func (s *PageSurface) Render(shapes []draw.Shape) {
	if err := s.eval(renderJS, OverlayID, OverlayMarkup(shapes, s.params)); err != nil {
		s.logger.Warn("browser: render overlay", "error", err)
	}
}

// Visible reports the last visibility set.
func (s *PageSurface) Visible() bool { return s.visible }

// SetVisible shows or hides the overlay element.
func (s *PageSurface) SetVisible(v bool) {
	display := "none"
	if v {
		display = "block"
	}
	if err := s.eval(`(id, d) => { const el = document.getElementById(id); if (el) el.style.display = d; }`, OverlayID, display); err != nil {
		s.logger.Warn("browser: toggle overlay", "error", err)
		return
	}
	s.visible = v
}

// Close removes the overlay from the page.
func (s *PageSurface) Close() error {
	if err := s.eval(`(id) => { const el = document.getElementById(id); if (el) el.remove(); }`, OverlayID); err != nil {
		return fmt.Errorf("browser: remove overlay: %w", err)
	}
	return nil
}

// OverlayMarkup renders shapes as SVG children of the overlay. Arrows
// reference the persistent arrowhead marker.
func OverlayMarkup(shapes []draw.Shape, p annotation.Params) string {
	var b strings.Builder
	sw := f(p.StrokeWidth)
	for _, s := range shapes {
		color := html.EscapeString(s.Color)
		opacity := ""
		if s.Live {
			opacity = ` opacity="0.8"`
		}
		switch s.Kind {
		case draw.ShapeEllipse:
			cx, cy := s.Center()
			rx, ry := s.Radii()
			fmt.Fprintf(&b, `<ellipse cx="%s" cy="%s" rx="%s" ry="%s" fill="none" stroke="%s" stroke-width="%s"%s/>`,
				f(cx), f(cy), f(rx), f(ry), color, sw, opacity)
		case draw.ShapeArrow:
			fmt.Fprintf(&b, `<line x1="%s" y1="%s" x2="%s" y2="%s" stroke="%s" stroke-width="%s" marker-end="url(#%s)"%s/>`,
				f(s.X), f(s.Y), f(s.EndX), f(s.EndY), color, sw, arrowMarkerID, opacity)
		case draw.ShapeText, draw.ShapeTextEntry:
			a := annotation.Annotation{X: s.X, Y: s.Y, Text: s.Text}
			x, y, w, h := capture.TextBox(a, p)
			dash := ""
			if s.Kind == draw.ShapeTextEntry {
				dash = ` stroke-dasharray="4 2"`
				if w < 4*p.FontSize {
					w = 4 * p.FontSize
				}
			}
			fmt.Fprintf(&b, `<rect x="%s" y="%s" width="%s" height="%s" rx="3" fill="#ffffff" fill-opacity="0.9" stroke="%s"%s/>`,
				f(x), f(y), f(w), f(h), color, dash)
			fmt.Fprintf(&b, `<text x="%s" y="%s" fill="%s" font-family="sans-serif" font-size="%s">%s</text>`,
				f(x+p.TextPadding), f(capture.TextBaseline(a, p)), color, f(p.FontSize), html.EscapeString(s.Text))
		}
	}
	return b.String()
}

func f(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// PanelChrome hides a host panel, located by CSS selector, during capture.
type PanelChrome struct {
	page     *Page
	selector string
	visible  bool
}

// NewPanelChrome returns chrome for the first element matching selector.
func NewPanelChrome(p *Page, selector string) *PanelChrome {
	return &PanelChrome{page: p, selector: selector, visible: true}
}

func (c *PanelChrome) Visible() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := c.page.page.Context(ctx).Eval(`(sel) => {
		const el = document.querySelector(sel);
		return !!el && el.style.visibility !== "hidden";
	}`, c.selector)
	if err != nil {
		c.page.logger.Debug("browser: panel visibility", "selector", c.selector, "error", err)
		return c.visible
	}
	return res.Value.Bool()
}

func (c *PanelChrome) SetVisible(v bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	vis := "hidden"
	if v {
		vis = ""
	}
	if _, err := c.page.page.Context(ctx).Eval(`(sel, vis) => {
		const el = document.querySelector(sel);
		if (el) el.style.visibility = vis;
	}`, c.selector, vis); err != nil {
		c.page.logger.Debug("browser: panel toggle", "selector", c.selector, "error", err)
		return
	}
	c.visible = v
}
