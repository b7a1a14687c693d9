package pageagent

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// MaxTextLength is the cutoff, in characters, for extracted page text.
const MaxTextLength = 5000

// Structural elements whose whole subtree is left out of the page text.
var excludedTags = map[atom.Atom]bool{
	atom.Script: true,
	atom.Style:  true,
	atom.Nav:    true,
	atom.Footer: true,
	atom.Header: true,
	atom.Aside:  true,
}

// Elements that start a new line when text is rendered.
var blockTags = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Blockquote: true, atom.Br: true,
	atom.Dd: true, atom.Div: true, atom.Dl: true, atom.Dt: true,
	atom.Figcaption: true, atom.Figure: true, atom.Form: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Hr: true, atom.Li: true, atom.Main: true, atom.Ol: true, atom.P: true,
	atom.Pre: true, atom.Section: true, atom.Table: true, atom.Td: true, atom.Th: true,
	atom.Tr: true, atom.Ul: true,
}

// PageText returns the whitespace-collapsed text of the document body with
// excluded elements removed, cut to MaxTextLength characters.
func PageText(doc *html.Node) string {
	body := findElement(doc, atom.Body)
	if body == nil {
		return ""
	}

	var sb strings.Builder
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		renderText(c, &sb)
	}

	return truncate(collapseWhitespace(sb.String()), MaxTextLength)
}

func renderText(n *html.Node, sb *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		return
	case html.ElementNode:
		if excludedTags[n.DataAtom] {
			return
		}
	default:
		return
	}

	block := blockTags[n.DataAtom]
	if block {
		sb.WriteByte('\n')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderText(c, sb)
	}
	if block {
		sb.WriteByte('\n')
	}
}

// documentTitle follows document.title: the first <title>, whitespace
// collapsed.
func documentTitle(doc *html.Node) string {
	title := findElement(doc, atom.Title)
	if title == nil {
		return ""
	}

	var sb strings.Builder
	for c := title.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return collapseWhitespace(sb.String())
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate keeps the first n characters, with no regard for word boundaries.
func truncate(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
