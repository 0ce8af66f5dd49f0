// Package markdown renders file previews with goldmark, GFM extensions and
// chroma syntax highlighting.
package markdown

import (
	"bytes"
	"strings"
	"unicode/utf8"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
)

// summaryLen is the maximum length of Preview.Summary in runes.
const summaryLen = 160

// TOCItem represents a table of contents entry
type TOCItem struct {
	Level  int    `json:"level"`
	Title  string `json:"title"`
	Anchor string `json:"anchor"`
}

// Preview is a rendered document and the metadata extracted from it
type Preview struct {
	HTML    string    `json:"html"`
	TOC     []TOCItem `json:"toc"`
	Title   string    `json:"title"`
	Summary string    `json:"summary"`
}

// Renderer turns markdown source into previews
type Renderer struct {
	md goldmark.Markdown
}

// NewRenderer creates a renderer with GFM and highlighting enabled
func NewRenderer() *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Typographer,
			highlighting.NewHighlighting(
				highlighting.WithStyle("monokai"),
				highlighting.WithFormatOptions(
					chromahtml.WithClasses(true),
				),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithXHTML(),
		),
	)

	return &Renderer{md: md}
}

// Render parses source once and renders HTML, headings and summary from
// the same tree.
func (r *Renderer) Render(source []byte) (*Preview, error) {
	doc := r.md.Parser().Parse(text.NewReader(source))

	var buf bytes.Buffer
	if err := r.md.Renderer().Render(&buf, source, doc); err != nil {
		return nil, err
	}

	p := &Preview{HTML: buf.String()}
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := n.(type) {
		case *ast.Heading:
			item := TOCItem{Level: n.Level, Title: plainText(n, source)}
			if id, ok := n.AttributeString("id"); ok {
				if b, ok := id.([]byte); ok {
					item.Anchor = string(b)
				}
			}
			p.TOC = append(p.TOC, item)
			return ast.WalkSkipChildren, nil
		case *ast.Paragraph:
			if p.Summary == "" {
				p.Summary = truncate(plainText(n, source), summaryLen)
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}

	if len(p.TOC) > 0 {
		p.Title = p.TOC[0].Title
	}
	return p, nil
}

// plainText collects the text below n with whitespace collapsed.
func plainText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch c := c.(type) {
		case *ast.Text:
			buf.Write(c.Segment.Value(source))
			if c.SoftLineBreak() || c.HardLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(c.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.Join(strings.Fields(buf.String()), " ")
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n])) + "…"
}
