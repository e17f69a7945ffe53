// Package markup turns markdown source into the plain display text that
// narration is aligned against.
package markup

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

// Text is rendered display text plus its block structure.
type Text struct {
	// DisplayText has blocks separated by blank lines. List items and
	// headers sit on their own lines.
	DisplayText string
	Paragraphs  []string
	Headers     []string
}

// Renderer extracts display text with a reusable goldmark parser.
type Renderer struct {
	md goldmark.Markdown
}

// NewRenderer creates a renderer.
func NewRenderer() *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithParserOptions(
				parser.WithAutoHeadingID(),
			),
		),
	}
}

var defaultRenderer = NewRenderer()

// Render renders source with the default renderer.
func Render(source []byte) Text {
	return defaultRenderer.Render(source)
}

// Render extracts the speakable text of source. Code blocks, raw HTML and
// thematic breaks are not narrated and are dropped.
func (r *Renderer) Render(source []byte) Text {
	doc := r.md.Parser().Parse(text.NewReader(source))

	w := &walker{src: source}
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		w.block(n)
	}

	return Text{
		DisplayText: strings.Join(w.blocks, "\n\n"),
		Paragraphs:  w.paragraphs,
		Headers:     w.headers,
	}
}

type walker struct {
	src        []byte
	blocks     []string
	paragraphs []string
	headers    []string
}

func (w *walker) block(n ast.Node) {
	switch n := n.(type) {
	case *ast.Heading:
		if t := w.inline(n); t != "" {
			w.headers = append(w.headers, t)
			w.blocks = append(w.blocks, t)
		}
	case *ast.Paragraph, *ast.TextBlock:
		w.paragraph(w.inline(n))
	case *ast.List:
		w.paragraph(strings.Join(w.items(n), "\n"))
	case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock, *ast.ThematicBreak:
		// not narrated
	default:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			w.block(c)
		}
	}
}

func (w *walker) paragraph(t string) {
	if t == "" {
		return
	}
	w.paragraphs = append(w.paragraphs, t)
	w.blocks = append(w.blocks, t)
}

// items returns one line per list item, nested lists included.
func (w *walker) items(list ast.Node) []string {
	var lines []string
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		var parts []string
		for c := item.FirstChild(); c != nil; c = c.NextSibling() {
			if sub, ok := c.(*ast.List); ok {
				if len(parts) > 0 {
					lines = append(lines, strings.Join(parts, " "))
					parts = nil
				}
				lines = append(lines, w.items(sub)...)
				continue
			}
			if t := w.inline(c); t != "" {
				parts = append(parts, t)
			}
		}
		if len(parts) > 0 {
			lines = append(lines, strings.Join(parts, " "))
		}
	}
	return lines
}

// inline flattens the inline children of n. Soft line breaks become
// spaces, hard breaks stay line breaks, and runs of spaces collapse.
func (w *walker) inline(n ast.Node) string {
	var b strings.Builder
	w.collect(n, &b)

	lines := strings.Split(b.String(), "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.Join(strings.Fields(l), " "); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

func (w *walker) collect(n ast.Node, b *strings.Builder) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch c := c.(type) {
		case *ast.Text:
			b.Write(c.Segment.Value(w.src))
			switch {
			case c.HardLineBreak():
				b.WriteByte('\n')
			case c.SoftLineBreak():
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(c.Value)
		case *ast.AutoLink:
			b.Write(c.Label(w.src))
		case *ast.RawHTML:
		default:
			w.collect(c, b)
		}
	}
}
