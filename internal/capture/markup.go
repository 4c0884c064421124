package capture

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ToolAttr marks elements that belong to the annotation tool itself.
const ToolAttr = "data-pagemark"

const xhtmlNS = "http://www.w3.org/1999/xhtml"

// StripMarkup parses a serialized document, removes scripts and every
// element carrying ToolAttr, and re-serializes the document element as
// well-formed XHTML that an SVG foreignObject can hold.
func StripMarkup(markup string) (string, error) {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return "", fmt.Errorf("parse markup: %w", err)
	}
	prune(doc)
	root := doc.FirstChild
	for root != nil && !(root.Type == html.ElementNode && root.DataAtom == atom.Html) {
		root = root.NextSibling
	}
	if root == nil {
		return "", fmt.Errorf("markup has no document element")
	}
	var buf bytes.Buffer
	writeXHTML(&buf, root, "", true)
	return buf.String(), nil
}

func prune(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode && (c.DataAtom == atom.Script || hasAttr(c, ToolAttr)) {
			n.RemoveChild(c)
		} else {
			prune(c)
		}
		c = next
	}
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}
