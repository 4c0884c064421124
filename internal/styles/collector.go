// Package styles gathers the CSS that applies to a page so a structural copy
// of its markup can be rendered outside the page.
package styles

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Sheet is one stylesheet attached to a document. Blocked sheets are those
// whose rules cannot be read in place, typically cross-origin links.
type Sheet struct {
	Href    string
	Rules   []string
	Blocked bool
}

// SheetSource enumerates the stylesheets of a document in document order.
type SheetSource interface {
	StyleSheets(ctx context.Context) ([]Sheet, error)
}

// SheetSourceFunc adapts a function to SheetSource.
type SheetSourceFunc func(ctx context.Context) ([]Sheet, error)

func (f SheetSourceFunc) StyleSheets(ctx context.Context) ([]Sheet, error) { return f(ctx) }

// MaxSheetBytes bounds the body read from a fetched stylesheet.
const MaxSheetBytes = 2 << 20

// ErrSheetTooLarge reports a fetched sheet over the size bound. Such a sheet
// is skipped whole rather than cut mid-rule.
var ErrSheetTooLarge = errors.New("stylesheet too large")

// Collector concatenates stylesheet text. It never fails: unreadable sheets
// are skipped and the result is whatever could be gathered.
type Collector struct {
	Client *http.Client
	Logger *slog.Logger
	// MaxBytes overrides MaxSheetBytes when positive.
	MaxBytes int64
}

// NewCollector returns a Collector with a bounded HTTP client.
func NewCollector(logger *slog.Logger) *Collector {
	return &Collector{
		Client: &http.Client{Timeout: 10 * time.Second},
		Logger: logger,
	}
}

func (c *Collector) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c *Collector) client() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	return http.DefaultClient
}

// Collect returns the text of every reachable rule, sheet by sheet in
// document order.
func (c *Collector) Collect(ctx context.Context, src SheetSource) string {
	if src == nil {
		return ""
	}
	sheets, err := src.StyleSheets(ctx)
	if err != nil {
		c.logger().Debug("styles: enumerate sheets", "error", err)
		return ""
	}
	var b strings.Builder
	for _, s := range sheets {
		if !s.Blocked {
			for _, r := range s.Rules {
				b.WriteString(r)
				b.WriteByte('\n')
			}
			continue
		}
		if s.Href == "" {
			continue
		}
		text, err := c.fetch(ctx, s.Href)
		if err != nil {
			c.logger().Debug("styles: skip sheet", "href", s.Href, "error", err)
			continue
		}
		b.WriteString(text)
		b.WriteByte('\n')
	}
	return b.String()
}

func (c *Collector) fetch(ctx context.Context, href string) (string, error) {
	u, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("parse href: %w", err)
	}
	if !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("unsupported href %q", href)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/css")
	resp, err := c.client().Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	limit := c.MaxBytes
	if limit <= 0 {
		limit = MaxSheetBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > limit {
		return "", fmt.Errorf("%w: over %d bytes", ErrSheetTooLarge, limit)
	}
	return string(body), nil
}
