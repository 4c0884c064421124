package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/example/pagemark/internal/annotation"
	"github.com/example/pagemark/internal/styles"
)

// Page is a live tab. It implements capture.Document.
type Page struct {
	page   *rod.Page
	logger *slog.Logger
}

// Rod exposes the underlying page.
func (p *Page) Rod() *rod.Page { return p.page }

// Close closes the tab.
func (p *Page) Close() error { return p.page.Close() }

// Info returns the page URL and title.
func (p *Page) Info(ctx context.Context) (url, title string, err error) {
	var v struct {
		URL   string `json:"url"`
		Title string `json:"title"`
	}
	if err := p.evalJSON(ctx, `() => JSON.stringify({url: location.href, title: document.title})`, &v); err != nil {
		return "", "", fmt.Errorf("browser: page info: %w", err)
	}
	return v.URL, v.Title, nil
}

// Markup serializes the document element.
func (p *Page) Markup(ctx context.Context) (string, error) {
	res, err := p.page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return "", fmt.Errorf("browser: get markup: %w", err)
	}
	return res.Value.Str(), nil
}

const viewportJS = `() => JSON.stringify({
	width: window.innerWidth,
	height: window.innerHeight,
	x: window.scrollX,
	y: window.scrollY
})`

type viewportJSON struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// Viewport returns the visible size and scroll offset.
func (p *Page) Viewport(ctx context.Context) (annotation.Viewport, annotation.Scroll, error) {
	var v viewportJSON
	if err := p.evalJSON(ctx, viewportJS, &v); err != nil {
		return annotation.Viewport{}, annotation.Scroll{}, fmt.Errorf("browser: viewport: %w", err)
	}
	return annotation.Viewport{Width: v.Width, Height: v.Height}, annotation.Scroll{X: v.X, Y: v.Y}, nil
}

const styleSheetsJS = `() => JSON.stringify(Array.from(document.styleSheets).map(s => {
	try {
		return {href: s.href || "", rules: Array.from(s.cssRules).map(r => r.cssText), blocked: false};
	} catch (e) {
		return {href: s.href || "", rules: [], blocked: true};
	}
}))`

type sheetJSON struct {
	Href    string   `json:"href"`
	Rules   []string `json:"rules"`
	Blocked bool     `json:"blocked"`
}

// StyleSheets lists the document's sheets. Sheets whose rules the page may
// not read are reported as blocked. When the CSSOM cannot be queried the
// sheets are read from the serialized markup instead.
func (p *Page) StyleSheets(ctx context.Context) ([]styles.Sheet, error) {
	res, err := p.page.Context(ctx).Eval(styleSheetsJS)
	if err == nil {
		return decodeSheets(res.Value.Str())
	}
	p.logger.Debug("browser: cssom unavailable, parsing markup", "error", err)
	markup, merr := p.Markup(ctx)
	if merr != nil {
		return nil, fmt.Errorf("browser: style sheets: %w", err)
	}
	base, _, _ := p.Info(ctx)
	return styles.HTMLSource{Markup: markup, Base: base}.StyleSheets(ctx)
}

func decodeSheets(raw string) ([]styles.Sheet, error) {
	var in []sheetJSON
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		return nil, fmt.Errorf("decode sheets: %w", err)
	}
	out := make([]styles.Sheet, 0, len(in))
	for _, s := range in {
		out = append(out, styles.Sheet{Href: s.Href, Rules: s.Rules, Blocked: s.Blocked})
	}
	return out, nil
}

// Screenshot captures the viewport as painted.
func (p *Page) Screenshot(ctx context.Context) (image.Image, error) {
	return screenshot(ctx, p.page)
}

func screenshot(ctx context.Context, page *rod.Page) (image.Image, error) {
	data, err := page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("browser: screenshot: %w", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("browser: decode screenshot: %w", err)
	}
	return img, nil
}

func (p *Page) evalJSON(ctx context.Context, js string, v any, args ...any) error {
	res, err := p.page.Context(ctx).Eval(js, args...)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(res.Value.Str()), v)
}
