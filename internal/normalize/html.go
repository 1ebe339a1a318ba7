package normalize

import (
	"io"
	"strings"

	"golang.org/x/net/html"

	asmerrors "asmlsp/internal/errors"
	"asmlsp/internal/schema"
)

// htmlExtractor reads semi-structured pages where every record is an element
// whose class names the document kind and fields are descendants tagged
// with field classes.
type htmlExtractor struct{}

func (htmlExtractor) Extract(r io.Reader, src Source) (schema.Records, error) {
	var out schema.Records
	doc, err := html.Parse(r)
	if err != nil {
		return out, asmerrors.NewParseError(src.Path, 0, "malformed HTML", err)
	}

	kind := string(src.Kind)
	var firstErr error
	var traverse func(n *html.Node, arch, asm string)
	traverse = func(n *html.Node, arch, asm string) {
		if firstErr != nil {
			return
		}
		if n.Type == html.ElementNode {
			if v := attr(n, "data-arch"); v != "" {
				arch = v
			}
			if v := attr(n, "data-assembler"); v != "" {
				asm = v
			}
			if hasClass(n, kind) {
				e := htmlEntry(n, kind)
				if len(e.arches) == 0 && arch != "" {
					e.arches = []string{arch}
				}
				if e.assembler == "" {
					e.assembler = asm
				}
				firstErr = e.build(src, &out)
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c, arch, asm)
		}
	}
	traverse(doc, "", "")
	return out, firstErr
}

// htmlEntry collects the field descendants of an entry node, stopping at
// nested entries.
func htmlEntry(n *html.Node, kind string) *entry {
	e := &entry{}
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		for ; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			if hasClass(c, kind) {
				continue
			}
			if htmlField(e, c) {
				continue
			}
			walk(c.FirstChild)
		}
	}
	walk(n.FirstChild)
	return e
}

// htmlField stores c into e if it carries a field class and reports whether
// it did.
func htmlField(e *entry, c *html.Node) bool {
	text := textContent(c)
	switch {
	case hasClass(c, "name"):
		e.name = text
	case hasClass(c, "summary"):
		e.summary = text
	case hasClass(c, "description"):
		e.description = text
	case hasClass(c, "syntax"):
		e.forms = append(e.forms, rawForm{assembler: attr(c, "data-assembler"), syntax: text})
	case hasClass(c, "flags"):
		e.flags = text
	case hasClass(c, "alias"):
		e.aliases = append(e.aliases, text)
	case hasClass(c, "class"):
		e.class = text
	case hasClass(c, "width"):
		e.width = text
	case hasClass(c, "example"):
		e.examples = append(e.examples, text)
	case hasClass(c, "signature"):
		e.signature = text
	case hasClass(c, "url"):
		if href := attr(c, "href"); href != "" {
			e.url = href
		} else {
			e.url = text
		}
	default:
		return false
	}
	return true
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return strings.TrimSpace(sb.String())
}
