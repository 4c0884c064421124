package styles

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HTMLSource reads stylesheets from static markup. Inline <style> blocks
// become readable sheets; <link rel=stylesheet> elements become blocked
// sheets whose href is resolved against Base.
type HTMLSource struct {
	Markup string
	Base   string
}

// StyleSheets parses the markup and returns its sheets in document order.
func (h HTMLSource) StyleSheets(ctx context.Context) ([]Sheet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := html.Parse(strings.NewReader(h.Markup))
	if err != nil {
		return nil, fmt.Errorf("parse markup: %w", err)
	}
	var base *url.URL
	if h.Base != "" {
		if base, err = url.Parse(h.Base); err != nil {
			return nil, fmt.Errorf("parse base url: %w", err)
		}
	}
	var sheets []Sheet
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Style:
				sheets = append(sheets, Sheet{Rules: []string{textOf(n)}})
				return
			case atom.Link:
				if isStylesheet(n) {
					sheets = append(sheets, Sheet{Href: resolve(base, attr(n, "href")), Blocked: true})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return sheets, nil
}

func isStylesheet(n *html.Node) bool {
	for _, rel := range strings.Fields(strings.ToLower(attr(n, "rel"))) {
		if rel == "stylesheet" {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return strings.TrimSpace(b.String())
}

func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil {
		if ref.IsAbs() {
			return ref.String()
		}
		return ""
	}
	return base.ResolveReference(ref).String()
}
