// Package markdown exports a document tree as Markdown and renders Markdown
// to a standalone HTML preview page.
package markdown

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"

	"github.com/dgallion1/pdf2epub/internal/doctree"
)

// Write renders doc as Markdown. Chapters become level-1 headings in
// reading order and the document's own headings are pushed down one level.
func Write(w io.Writer, doc *doctree.Document) error {
	var buf bytes.Buffer
	for _, sc := range doc.Spine() {
		fmt.Fprintf(&buf, "# %s\n\n", escapeInline(sc.Title))
		for _, n := range sc.Elements {
			writeNode(&buf, n)
		}
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// Bytes is Write into a byte slice.
func Bytes(doc *doctree.Document) []byte {
	var buf bytes.Buffer
	_ = Write(&buf, doc)
	return buf.Bytes()
}

func writeNode(buf *bytes.Buffer, n doctree.Node) {
	switch n.Type {
	case doctree.NodeHeading:
		level := min(max(n.Level, 1)+1, 6)
		fmt.Fprintf(buf, "%s %s\n\n", strings.Repeat("#", level), escapeInline(n.Text))
	case doctree.NodeParagraph:
		if n.Style == doctree.StyleCaption {
			fmt.Fprintf(buf, "*%s*\n\n", escapeInline(n.Text))
		} else {
			fmt.Fprintf(buf, "%s\n\n", escapeBlock(n.Text))
		}
	case doctree.NodeList:
		for i, item := range n.Items {
			if n.Ordered {
				fmt.Fprintf(buf, "%d. %s\n", i+1, escapeInline(item))
			} else {
				fmt.Fprintf(buf, "- %s\n", escapeInline(item))
			}
		}
		buf.WriteByte('\n')
	case doctree.NodeBlockquote:
		fmt.Fprintf(buf, "> %s\n\n", escapeInline(n.Text))
	case doctree.NodeFigure:
		fmt.Fprintf(buf, "![%s](<%s>)\n\n", escapeInline(n.Caption), n.Src)
		if n.Caption != "" {
			fmt.Fprintf(buf, "*%s*\n\n", escapeInline(n.Caption))
		}
	}
}

var inlineEscaper = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`",
	"[", `\[`, "]", `\]`, "<", `\<`, ">", `\>`, "&", `\&`,
)

func escapeInline(s string) string {
	return inlineEscaper.Replace(strings.Join(strings.Fields(s), " "))
}

// escapeBlock also neutralizes characters that would open a block
// construct at the start of a paragraph.
func escapeBlock(s string) string {
	s = escapeInline(s)
	if s == "" {
		return s
	}
	switch s[0] {
	case '#', '-', '+', '=', '|', '~':
		return `\` + s
	}
	if i := strings.IndexAny(s, ".)"); i > 0 && i < 10 && isDigits(s[:i]) {
		return s[:i] + `\` + s[i:]
	}
	return s
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

var md = goldmark.New(goldmark.WithRendererOptions(html.WithXHTML()))

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8"/>
<title>{{.Title}}</title>
<style>{{.CSS}}</style>
</head>
<body>
{{.Body}}
</body>
</html>
`))

// ToHTML converts Markdown into a standalone HTML page.
func ToHTML(title string, css []byte, src []byte) ([]byte, error) {
	var body bytes.Buffer
	if err := md.Convert(src, &body); err != nil {
		return nil, fmt.Errorf("convert markdown: %w", err)
	}
	var page bytes.Buffer
	err := pageTmpl.Execute(&page, struct {
		Title string
		CSS   template.CSS
		Body  template.HTML
	}{title, template.CSS(css), template.HTML(body.String())})
	if err != nil {
		return nil, fmt.Errorf("render page: %w", err)
	}
	return page.Bytes(), nil
}

// Heading is a heading found in Markdown source.
type Heading struct {
	Level int
	Text  string
}

// Headings lists the headings of src in order.
func Headings(src []byte) []Heading {
	doc := md.Parser().Parse(text.NewReader(src))
	var out []Heading
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok {
			continue
		}
		out = append(out, Heading{Level: h.Level, Text: plainText(h, src)})
	}
	return out
}

func plainText(n ast.Node, src []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(src))
			if t.SoftLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return sb.String()
}
