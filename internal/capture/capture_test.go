package capture

import (
	"context"
	"encoding/xml"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"io"
	"strings"
	"testing"

	"github.com/example/pagemark/internal/annotation"
	"github.com/example/pagemark/internal/styles"
)

type fakeDocument struct {
	markup    string
	markupErr error
	vp        annotation.Viewport
	scroll    annotation.Scroll
	sheets    []styles.Sheet
	shot      image.Image
	shotErr   error
}

func (f *fakeDocument) Markup(context.Context) (string, error) { return f.markup, f.markupErr }

func (f *fakeDocument) Viewport(context.Context) (annotation.Viewport, annotation.Scroll, error) {
	return f.vp, f.scroll, nil
}

func (f *fakeDocument) StyleSheets(context.Context) ([]styles.Sheet, error) { return f.sheets, nil }

func (f *fakeDocument) Screenshot(context.Context) (image.Image, error) { return f.shot, f.shotErr }

type fakeChrome struct{ visible bool }

func (c *fakeChrome) Visible() bool     { return c.visible }
func (c *fakeChrome) SetVisible(v bool) { c.visible = v }

type fakeRasterizer struct {
	svg    string
	err    error
	onCall func()
	calls  int
}

func (f *fakeRasterizer) Rasterize(_ context.Context, svg string, vp annotation.Viewport) (image.Image, error) {
	f.calls++
	f.svg = svg
	if f.onCall != nil {
		f.onCall()
	}
	if f.err != nil {
		return nil, f.err
	}
	return image.NewRGBA(image.Rect(0, 0, vp.Width, vp.Height)), nil
}

const page = `<!DOCTYPE html><html class="app"><head><title>t</title><script>alert(1)</script></head>
<body><h1>Hello</h1><svg data-pagemark="overlay"><ellipse/></svg><div data-pagemark="panel">tools</div><p>kept</p></body></html>`

func sampleAnnotations() AnnotationList {
	return AnnotationList{
		{ID: 1, Tool: annotation.ToolCircle, X: 100, Y: 100, Width: 100, Height: 80, Color: "#ff0000"},
		{ID: 2, Tool: annotation.ToolArrow, X: 10, Y: 10, EndX: 90, EndY: 10, Color: "#00ff00"},
		{ID: 3, Tool: annotation.ToolText, X: 20, Y: 30, Text: "a < b", Color: "#0000ff"},
	}
}

func TestSVGCaptureRestoresChromeOnSuccess(t *testing.T) {
	overlay := &fakeChrome{visible: true}
	panel := &fakeChrome{visible: false}
	raster := &fakeRasterizer{}
	raster.onCall = func() {
		if overlay.visible || panel.visible {
			t.Errorf("chrome visible during rasterization")
		}
	}
	doc := &fakeDocument{markup: page, vp: annotation.Viewport{Width: 320, Height: 200}, scroll: annotation.Scroll{Y: 120},
		sheets: []styles.Sheet{{Rules: []string{"h1 { color: teal; }"}}}}
	r, err := NewRenderer(StrategySVG, Options{Document: doc, Chrome: []Chrome{overlay, panel}, Annotations: sampleAnnotations(), Rasterizer: raster})
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	res, err := r.Capture(context.Background())
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if !overlay.visible || panel.visible {
		t.Fatalf("chrome visibility not restored: overlay=%v panel=%v", overlay.visible, panel.visible)
	}
	if !strings.HasPrefix(res.DataURL, "data:image/png;base64,") || len(res.PNG) == 0 {
		t.Fatalf("unexpected result %.30s", res.DataURL)
	}
	for _, want := range []string{"translate(0,-120)", "h1 { color: teal; }", "<h1>Hello</h1>", `data-annotation="3"`, "a &lt; b"} {
		if !strings.Contains(raster.svg, want) {
			t.Errorf("svg missing %q", want)
		}
	}
	for _, unwanted := range []string{"alert(1)", "tools", "data-pagemark"} {
		if strings.Contains(raster.svg, unwanted) {
			t.Errorf("svg still contains %q", unwanted)
		}
	}
}

func TestSVGCaptureRestoresChromeOnFailure(t *testing.T) {
	overlay := &fakeChrome{visible: true}
	rasterErr := errors.New("gpu lost")
	doc := &fakeDocument{markup: page, vp: annotation.Viewport{Width: 10, Height: 10}}
	r, err := NewRenderer(StrategySVG, Options{Document: doc, Chrome: []Chrome{overlay}, Rasterizer: &fakeRasterizer{err: rasterErr}})
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	_, err = r.Capture(context.Background())
	if !errors.Is(err, ErrCapture) || !errors.Is(err, rasterErr) {
		t.Fatalf("expected capture error wrapping %v, got %v", rasterErr, err)
	}
	var ce *Error
	if !errors.As(err, &ce) || ce.Op != "rasterize" {
		t.Fatalf("expected rasterize op, got %v", err)
	}
	if !overlay.visible {
		t.Fatalf("chrome not restored after failure")
	}
}

func TestSVGCaptureMarkupFailure(t *testing.T) {
	overlay := &fakeChrome{visible: true}
	raster := &fakeRasterizer{}
	doc := &fakeDocument{markupErr: errors.New("detached"), vp: annotation.Viewport{Width: 10, Height: 10}}
	r, _ := NewRenderer(StrategySVG, Options{Document: doc, Chrome: []Chrome{overlay}, Rasterizer: raster})
	if _, err := r.Capture(context.Background()); !errors.Is(err, ErrCapture) {
		t.Fatalf("expected capture error, got %v", err)
	}
	if raster.calls != 0 || !overlay.visible {
		t.Fatalf("unexpected state after markup failure")
	}
}

func TestNewRendererRequirements(t *testing.T) {
	if _, err := NewRenderer(StrategySVG, Options{}); err == nil {
		t.Fatalf("expected error without document")
	}
	if _, err := NewRenderer(StrategySVG, Options{Document: &fakeDocument{}}); err == nil {
		t.Fatalf("expected error without rasterizer")
	}
	if _, err := NewRenderer(StrategyComposite, Options{Document: &fakeDocument{}}); err != nil {
		t.Fatalf("composite needs no rasterizer: %v", err)
	}
	if _, err := ParseStrategy("vector"); err == nil {
		t.Fatalf("expected error for unknown strategy")
	}
}

func TestPrimitivesOnePerAnnotation(t *testing.T) {
	anns := sampleAnnotations()
	prims := Primitives(anns, annotation.DefaultParams())
	if len(prims) != len(anns) {
		t.Fatalf("expected %d primitives, got %d", len(anns), len(prims))
	}
	for i, p := range prims {
		if p.ID != anns[i].ID || p.Tool != anns[i].Tool {
			t.Fatalf("primitive %d out of order: %+v", i, p)
		}
	}
	if got := prims[0].Elements[0]; got.Tag != "ellipse" || got.attr("cx") != "150" || got.attr("ry") != "40" {
		t.Fatalf("unexpected ellipse %+v", got)
	}
	arrow := prims[1].Elements
	if len(arrow) != 2 || arrow[0].Tag != "line" || arrow[1].Tag != "polygon" {
		t.Fatalf("unexpected arrow %+v", arrow)
	}
	if !strings.HasPrefix(arrow[1].attr("points"), "90,10 ") {
		t.Fatalf("arrowhead tip must sit at the end point: %q", arrow[1].attr("points"))
	}
	text := prims[2].Elements
	if len(text) != 2 || text[0].Tag != "rect" || text[1].Text != "a < b" {
		t.Fatalf("unexpected text %+v", text)
	}
	if len(Primitives(nil, annotation.DefaultParams())) != 0 {
		t.Fatalf("expected no primitives for no annotations")
	}
}

func TestStripMarkup(t *testing.T) {
	out, err := StripMarkup(page)
	if err != nil {
		t.Fatalf("strip: %v", err)
	}
	if !strings.HasPrefix(out, `<html class="app" xmlns="http://www.w3.org/1999/xhtml" xmlns:xlink="http://www.w3.org/1999/xlink">`) {
		t.Fatalf("unexpected root %q", out)
	}
	if strings.Contains(out, "script") || strings.Contains(out, "data-pagemark") || !strings.Contains(out, "<p>kept</p>") {
		t.Fatalf("unexpected markup %q", out)
	}
}

// wellFormed decodes doc with a strict XML decoder and fails on syntax
// errors or prefixes that were never declared.
func wellFormed(t *testing.T, doc string) {
	t.Helper()
	d := xml.NewDecoder(strings.NewReader(doc))
	for {
		tok, err := d.Token()
		if err == io.EOF {
			return
		}
		if err != nil {
			t.Fatalf("not well-formed: %v\n%s", err, doc)
		}
		el, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if !strings.HasPrefix(el.Name.Space, "http") {
			t.Fatalf("element %s has undeclared namespace %q", el.Name.Local, el.Name.Space)
		}
		for _, a := range el.Attr {
			if a.Name.Space != "" && !strings.HasPrefix(a.Name.Space, "http") {
				t.Fatalf("attribute %s:%s has undeclared prefix", a.Name.Space, a.Name.Local)
			}
		}
	}
}

func TestComposeRealWorldMarkupIsWellFormed(t *testing.T) {
	cases := []struct {
		name string
		src  string
	}{
		{"noscript pixel", `<html><body><noscript><img src="https://t.example/p.gif?a=1&b=2" height="1"></noscript><p>x</p></body></html>`},
		{"css nesting", `<html><head><style>.a { color: red; &:hover { color: blue } } p > b { x: "]]>" }</style></head><body><b>1 < 2 && 3</b></body></html>`},
		{"svg xlink", `<html><body><svg viewBox="0 0 10 10"><use xlink:href="#i"></use><foreignObject><div>in</div></foreignObject></svg></body></html>`},
		{"void elements", `<html><body><br><hr><input value="a&quot;b" disabled><img alt='x'></body></html>`},
		{"framework attrs", `<html><body><div :class="c" @click="go()" v-on:keyup="k" x:y="1" data-ok="1">t</div><fb:like></fb:like></body></html>`},
		{"comments and templates", `<html><body><!-- a -- b --><template><p>hidden</template><iframe src="x">fallback <b></iframe><p>ok</p></body></html>`},
		{"control chars", "<html><body><p>a\x01b\x0bc</p></body></html>"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			markup, err := StripMarkup(tc.src)
			if err != nil {
				t.Fatalf("strip: %v", err)
			}
			svg := Compose(markup, "p::after { content: '<&>' }", annotation.Viewport{Width: 100, Height: 100}, annotation.Scroll{}, Primitives(sampleAnnotations(), annotation.DefaultParams()))
			wellFormed(t, svg)
		})
	}
}

func TestStripMarkupDropsInertContent(t *testing.T) {
	out, err := StripMarkup(`<html><body><noscript><img src="p.gif"></noscript><template><i>t</i></template><div :class="c" data-ok="1">kept</div></body></html>`)
	if err != nil {
		t.Fatalf("strip: %v", err)
	}
	if strings.Contains(out, "p.gif") || strings.Contains(out, "<i>") || strings.Contains(out, ":class") {
		t.Fatalf("inert content left behind: %q", out)
	}
	if !strings.Contains(out, `<div data-ok="1">kept</div>`) {
		t.Fatalf("expected div to survive: %q", out)
	}
}

func TestCompositeCapturePaintsOverScreenshot(t *testing.T) {
	base := image.NewRGBA(image.Rect(0, 0, 200, 200))
	draw.Draw(base, base.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	overlay := &fakeChrome{visible: true}
	doc := &fakeDocument{shot: base}
	anns := AnnotationList{{ID: 1, Tool: annotation.ToolCircle, X: 50, Y: 50, Width: 100, Height: 80, Color: "#ff0000"}}
	r, err := NewRenderer(StrategyComposite, Options{Document: doc, Chrome: []Chrome{overlay}, Annotations: anns})
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	res, err := r.Capture(context.Background())
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if !overlay.visible {
		t.Fatalf("chrome not restored")
	}
	edge := color.RGBAModel.Convert(res.Image.At(149, 90)).(color.RGBA)
	if edge.R < 200 || edge.G > 128 {
		t.Fatalf("expected red outline at ellipse edge, got %+v", edge)
	}
	center := color.RGBAModel.Convert(res.Image.At(100, 90)).(color.RGBA)
	if center.R != 255 || center.G != 255 || center.B != 255 {
		t.Fatalf("ellipse interior should stay untouched, got %+v", center)
	}
	if c := color.RGBAModel.Convert(base.At(149, 90)).(color.RGBA); c.G != 255 {
		t.Fatalf("screenshot must not be modified in place")
	}
}

func TestCompositeCaptureScreenshotFailure(t *testing.T) {
	overlay := &fakeChrome{visible: true}
	r, _ := NewRenderer(StrategyComposite, Options{Document: &fakeDocument{shotErr: errors.New("closed")}, Chrome: []Chrome{overlay}})
	_, err := r.Capture(context.Background())
	var ce *Error
	if !errors.As(err, &ce) || ce.Op != "screenshot" || !overlay.visible {
		t.Fatalf("unexpected result %v visible=%v", err, overlay.visible)
	}
}

func TestDecodeDataURL(t *testing.T) {
	res, err := Encode(image.NewRGBA(image.Rect(0, 0, 2, 2)))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	mime, data, err := DecodeDataURL(res.DataURL)
	if err != nil || mime != "image/png" || len(data) != len(res.PNG) {
		t.Fatalf("unexpected decode %q %d %v", mime, len(data), err)
	}
	if _, _, err := DecodeDataURL("data:image/png,raw"); err == nil {
		t.Fatalf("expected error for non base64 url")
	}
}
