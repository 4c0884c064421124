package capture

import (
	"bytes"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	svgNS   = "http://www.w3.org/2000/svg"
	mathNS  = "http://www.w3.org/1998/Math/MathML"
	xlinkNS = "http://www.w3.org/1999/xlink"
)

// foreignNS maps the parser's namespace names to XML namespace URIs.
var foreignNS = map[string]string{
	"":     xhtmlNS,
	"svg":  svgNS,
	"math": mathNS,
}

// dropped elements carry fallback or inert content that the parser keeps as
// raw text; none of it is painted.
var dropped = map[atom.Atom]bool{
	atom.Noscript: true,
	atom.Template: true,
	atom.Noembed:  true,
	atom.Noframes: true,
	atom.Iframe:   true,
	atom.Object:   true,
}

// writeXHTML serializes n as well-formed XML. Every element is closed,
// style text is wrapped in CDATA, comments are omitted and attributes that
// are not valid XML names, or whose prefix has no declaration, are skipped.
func writeXHTML(b *bytes.Buffer, n *html.Node, parentNS string, root bool) {
	switch n.Type {
	case html.TextNode:
		writeText(b, n.Data)
		return
	case html.DocumentNode:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			writeXHTML(b, c, parentNS, root)
		}
		return
	case html.ElementNode:
	default:
		return
	}
	if n.Namespace == "" && dropped[n.DataAtom] {
		return
	}
	if !isXMLName(n.Data) || strings.Contains(n.Data, ":") {
		return
	}
	ns, ok := foreignNS[n.Namespace]
	if !ok {
		return
	}

	b.WriteByte('<')
	b.WriteString(n.Data)
	seen := map[string]bool{}
	for _, a := range n.Attr {
		name, ok := xmlAttrName(a)
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		b.WriteByte(' ')
		b.WriteString(name)
		b.WriteString(`="`)
		writeText(b, a.Val)
		b.WriteByte('"')
	}
	if root || ns != parentNS {
		b.WriteString(` xmlns="`)
		b.WriteString(ns)
		b.WriteByte('"')
	}
	if root {
		b.WriteString(` xmlns:xlink="` + xlinkNS + `"`)
	}
	if n.FirstChild == nil {
		b.WriteString("/>")
		return
	}
	b.WriteByte('>')
	if n.DataAtom == atom.Style {
		var css strings.Builder
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				css.WriteString(c.Data)
			}
		}
		writeCDATA(b, css.String())
	} else {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			writeXHTML(b, c, ns, false)
		}
	}
	b.WriteString("</")
	b.WriteString(n.Data)
	b.WriteByte('>')
}

// xmlAttrName returns the serialized name of a, or false when it cannot be
// written into an XML document as is.
func xmlAttrName(a html.Attribute) (string, bool) {
	switch a.Namespace {
	case "":
		if a.Key == "xmlns" || strings.HasPrefix(a.Key, "xmlns:") || !isXMLName(a.Key) || strings.Contains(a.Key, ":") {
			return "", false
		}
		return a.Key, true
	case "xlink", "xml":
		if !isXMLName(a.Key) {
			return "", false
		}
		return a.Namespace + ":" + a.Key, true
	}
	return "", false
}

func writeCDATA(b *bytes.Buffer, s string) {
	b.WriteString("<![CDATA[")
	b.WriteString(strings.ReplaceAll(xmlChars(s), "]]>", "]]]]><![CDATA[>"))
	b.WriteString("]]>")
}

func writeText(b *bytes.Buffer, s string) {
	for _, r := range xmlChars(s) {
		switch r {
		case '&':
			b.WriteString("&amp;")
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '"':
			b.WriteString("&quot;")
		default:
			b.WriteRune(r)
		}
	}
}

// xmlChars drops runes outside the XML 1.0 Char production.
func xmlChars(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			return r
		case r < 0x20, r == utf8.RuneError, r >= 0xfffe && r <= 0xffff, r >= 0xd800 && r <= 0xdfff:
			return -1
		}
		return r
	}, s)
}

// isXMLName reports whether s is a plain XML name. Colons are allowed so the
// caller can decide about prefixes.
func isXMLName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r == ':' || unicode.IsLetter(r):
		case i > 0 && (r == '-' || r == '.' || unicode.IsDigit(r)):
		default:
			return false
		}
	}
	return true
}
