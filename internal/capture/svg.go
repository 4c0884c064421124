package capture

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/example/pagemark/internal/annotation"
)

// Element is one SVG element of an annotation's rendering.
type Element struct {
	Tag   string
	Attrs [][2]string
	Text  string
}

func (e Element) attr(key string) string {
	for _, kv := range e.Attrs {
		if kv[0] == key {
			return kv[1]
		}
	}
	return ""
}

// Primitive groups the elements that draw one annotation.
type Primitive struct {
	ID       int
	Tool     annotation.Tool
	Elements []Element
}

// Primitives converts annotations to vector primitives, one group per
// annotation in the same order.
func Primitives(anns []annotation.Annotation, p annotation.Params) []Primitive {
	p = p.Normalize()
	sw := num(p.StrokeWidth)
	out := make([]Primitive, 0, len(anns))
	for _, a := range anns {
		prim := Primitive{ID: a.ID, Tool: a.Tool}
		switch a.Tool {
		case annotation.ToolCircle:
			prim.Elements = []Element{{Tag: "ellipse", Attrs: [][2]string{
				{"cx", num(a.X + a.Width/2)},
				{"cy", num(a.Y + a.Height/2)},
				{"rx", num(a.Width / 2)},
				{"ry", num(a.Height / 2)},
				{"fill", "none"},
				{"stroke", a.Color},
				{"stroke-width", sw},
			}}}
		case annotation.ToolArrow:
			lx, ly, rx, ry := p.ArrowHead(a.X, a.Y, a.EndX, a.EndY)
			prim.Elements = []Element{
				{Tag: "line", Attrs: [][2]string{
					{"x1", num(a.X)},
					{"y1", num(a.Y)},
					{"x2", num(a.EndX)},
					{"y2", num(a.EndY)},
					{"stroke", a.Color},
					{"stroke-width", sw},
					{"stroke-linecap", "round"},
				}},
				{Tag: "polygon", Attrs: [][2]string{
					{"points", fmt.Sprintf("%s,%s %s,%s %s,%s", num(a.EndX), num(a.EndY), num(lx), num(ly), num(rx), num(ry))},
					{"fill", a.Color},
				}},
			}
		case annotation.ToolText:
			x, y, w, h := TextBox(a, p)
			prim.Elements = []Element{
				{Tag: "rect", Attrs: [][2]string{
					{"x", num(x)},
					{"y", num(y)},
					{"width", num(w)},
					{"height", num(h)},
					{"rx", "3"},
					{"fill", "#ffffff"},
					{"fill-opacity", "0.9"},
					{"stroke", a.Color},
				}},
				{Tag: "text", Text: a.Text, Attrs: [][2]string{
					{"x", num(x + p.TextPadding)},
					{"y", num(TextBaseline(a, p))},
					{"fill", a.Color},
					{"font-family", "sans-serif"},
					{"font-size", num(p.FontSize)},
				}},
			}
		}
		out = append(out, prim)
	}
	return out
}

// TextBox returns the background box of a text annotation. The width is an
// estimate from the glyph count since no font metrics are available.
func TextBox(a annotation.Annotation, p annotation.Params) (x, y, w, h float64) {
	w = float64(len([]rune(a.Text)))*p.FontSize*0.6 + 2*p.TextPadding
	h = p.FontSize + 2*p.TextPadding
	return a.X, a.Y, w, h
}

// TextBaseline returns the baseline y of a text annotation.
func TextBaseline(a annotation.Annotation, p annotation.Params) float64 {
	return a.Y + p.TextPadding + p.FontSize*0.8
}

// Compose builds an SVG document of the viewport: the markup inside a
// foreignObject shifted by the scroll offset, then the annotation groups.
func Compose(markup, css string, vp annotation.Viewport, scroll annotation.Scroll, prims []Primitive) string {
	var b strings.Builder
	w, h := strconv.Itoa(vp.Width), strconv.Itoa(vp.Height)
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s" viewBox="0 0 %s %s">`, w, h, w, h)
	fmt.Fprintf(&b, `<g transform="translate(%s,%s)">`, num(-scroll.X), num(-scroll.Y))
	fmt.Fprintf(&b, `<foreignObject x="0" y="0" width="%s" height="%s">`,
		num(float64(vp.Width)+scroll.X), num(float64(vp.Height)+scroll.Y))
	fmt.Fprintf(&b, `<div xmlns="%s">`, xhtmlNS)
	if css != "" {
		b.WriteString("<style><![CDATA[")
		b.WriteString(strings.ReplaceAll(css, "]]>", "]]]]><![CDATA[>"))
		b.WriteString("]]></style>")
	}
	b.WriteString(markup)
	b.WriteString(`</div></foreignObject></g>`)
	for _, prim := range prims {
		fmt.Fprintf(&b, `<g data-annotation="%d" data-tool="%s">`, prim.ID, prim.Tool)
		for _, el := range prim.Elements {
			writeElement(&b, el)
		}
		b.WriteString(`</g>`)
	}
	b.WriteString(`</svg>`)
	return b.String()
}

func writeElement(b *strings.Builder, el Element) {
	b.WriteByte('<')
	b.WriteString(el.Tag)
	for _, kv := range el.Attrs {
		fmt.Fprintf(b, ` %s="%s"`, kv[0], html.EscapeString(kv[1]))
	}
	if el.Text == "" {
		b.WriteString("/>")
		return
	}
	b.WriteByte('>')
	b.WriteString(html.EscapeString(el.Text))
	fmt.Fprintf(b, "</%s>", el.Tag)
}

func num(v float64) string {
	if v == 0 {
		v = 0
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// SVGRenderer captures by re-rendering a structural copy of the page.
type SVGRenderer struct {
	opts Options
}

// Capture implements Renderer. Chrome is hidden for the duration of the
// call and restored whether or not it succeeds.
func (r *SVGRenderer) Capture(ctx context.Context) (Result, error) {
	start := time.Now()
	restore := hideChrome(r.opts.Chrome)
	defer restore()

	doc := r.opts.Document
	raw, err := doc.Markup(ctx)
	if err != nil {
		return Result{}, &Error{Op: "markup", Err: err}
	}
	markup, err := StripMarkup(raw)
	if err != nil {
		return Result{}, &Error{Op: "markup", Err: err}
	}
	vp, scroll, err := doc.Viewport(ctx)
	if err != nil {
		return Result{}, &Error{Op: "viewport", Err: err}
	}
	if vp.Width <= 0 || vp.Height <= 0 {
		return Result{}, &Error{Op: "viewport", Err: fmt.Errorf("empty viewport %dx%d", vp.Width, vp.Height)}
	}
	css := r.opts.Styles.Collect(ctx, doc)
	svg := Compose(markup, css, vp, scroll, Primitives(r.opts.annotations(), r.opts.Params))
	img, err := r.opts.Rasterizer.Rasterize(ctx, svg, vp)
	if err != nil {
		return Result{}, &Error{Op: "rasterize", Err: err}
	}
	res, err := Encode(img)
	if err != nil {
		return Result{}, &Error{Op: "encode", Err: err}
	}
	r.opts.logger().Debug("capture: svg", "width", vp.Width, "height", vp.Height, "bytes", len(res.PNG), "took", time.Since(start))
	return res, nil
}
