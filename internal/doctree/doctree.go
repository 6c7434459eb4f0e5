// Package doctree defines the document tree produced by the AST builder and
// consumed by the renderer, the Markdown exporter and the preview server.
package doctree

import (
	"encoding/json"
	"fmt"
)

// NodeType tags the variant held by a Node.
type NodeType string

const (
	NodeHeading    NodeType = "heading"
	NodeParagraph  NodeType = "paragraph"
	NodeList       NodeType = "list"
	NodeBlockquote NodeType = "blockquote"
	NodeFigure     NodeType = "figure"
)

// StyleCaption marks a paragraph built from a caption with no figure.
const StyleCaption = "caption"

// Node is one block of chapter content. Only the fields of its Type are
// meaningful; the JSON form carries exactly those fields plus page_number.
type Node struct {
	Type    NodeType
	Level   int      // heading
	Text    string   // heading, paragraph, blockquote
	Style   string   // paragraph
	Items   []string // list
	Ordered bool     // list
	Src     string   // figure
	Caption string   // figure
	Page    int
}

func Heading(level int, text string, page int) Node {
	return Node{Type: NodeHeading, Level: level, Text: text, Page: page}
}

func Paragraph(text string, page int) Node {
	return Node{Type: NodeParagraph, Text: text, Page: page}
}

func CaptionParagraph(text string, page int) Node {
	return Node{Type: NodeParagraph, Text: text, Style: StyleCaption, Page: page}
}

func List(page int, items ...string) Node {
	return Node{Type: NodeList, Items: append([]string{}, items...), Page: page}
}

func Blockquote(text string, page int) Node {
	return Node{Type: NodeBlockquote, Text: text, Page: page}
}

func Figure(src, caption string, page int) Node {
	return Node{Type: NodeFigure, Src: src, Caption: caption, Page: page}
}

type headingJSON struct {
	Type  NodeType `json:"type"`
	Level int      `json:"level"`
	Text  string   `json:"text"`
	Page  int      `json:"page_number"`
}

type paragraphJSON struct {
	Type  NodeType `json:"type"`
	Style string   `json:"style,omitempty"`
	Text  string   `json:"text"`
	Page  int      `json:"page_number"`
}

type listJSON struct {
	Type    NodeType `json:"type"`
	Items   []string `json:"items"`
	Ordered bool     `json:"ordered"`
	Page    int      `json:"page_number"`
}

type blockquoteJSON struct {
	Type NodeType `json:"type"`
	Text string   `json:"text"`
	Page int      `json:"page_number"`
}

type figureJSON struct {
	Type    NodeType `json:"type"`
	Src     string   `json:"src"`
	Caption string   `json:"caption"`
	Page    int      `json:"page_number"`
}

func (n Node) MarshalJSON() ([]byte, error) {
	switch n.Type {
	case NodeHeading:
		return json.Marshal(headingJSON{n.Type, n.Level, n.Text, n.Page})
	case NodeParagraph:
		return json.Marshal(paragraphJSON{n.Type, n.Style, n.Text, n.Page})
	case NodeList:
		items := n.Items
		if items == nil {
			items = []string{}
		}
		return json.Marshal(listJSON{n.Type, items, n.Ordered, n.Page})
	case NodeBlockquote:
		return json.Marshal(blockquoteJSON{n.Type, n.Text, n.Page})
	case NodeFigure:
		return json.Marshal(figureJSON{n.Type, n.Src, n.Caption, n.Page})
	default:
		return nil, fmt.Errorf("doctree: cannot encode node type %q", n.Type)
	}
}

func (n *Node) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type    NodeType `json:"type"`
		Level   int      `json:"level"`
		Text    string   `json:"text"`
		Style   string   `json:"style"`
		Items   []string `json:"items"`
		Ordered bool     `json:"ordered"`
		Src     string   `json:"src"`
		Caption string   `json:"caption"`
		Page    int      `json:"page_number"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*n = Node{Type: raw.Type, Page: raw.Page}
	switch raw.Type {
	case NodeHeading:
		n.Level, n.Text = raw.Level, raw.Text
	case NodeParagraph:
		n.Text, n.Style = raw.Text, raw.Style
	case NodeList:
		n.Items, n.Ordered = raw.Items, raw.Ordered
	case NodeBlockquote:
		n.Text = raw.Text
	case NodeFigure:
		n.Src, n.Caption = raw.Src, raw.Caption
	default:
		return fmt.Errorf("doctree: unknown node type %q", raw.Type)
	}
	return nil
}

// Chapter is a titled run of nodes in reading order.
type Chapter struct {
	Title    string `json:"title"`
	Elements []Node `json:"elements"`
}

// TOCEntry is one outline entry resolved to a zero-based page range.
type TOCEntry struct {
	Title string `json:"title"`
	Level int    `json:"level"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Metadata describes the book and its source PDF.
type Metadata struct {
	Title      string      `json:"title,omitempty"`
	Author     string      `json:"author,omitempty"`
	Language   string      `json:"language,omitempty"`
	PageSize   *[2]float64 `json:"page_size"`
	Rotation   *int        `json:"rotation"`
	TotalPages int         `json:"total_pages"`
}

// Footnote is reserved; footnotes are always written as an empty array.
type Footnote struct {
	Text string `json:"text"`
	Page int    `json:"page_number"`
}

// Document is the root of the tree. Every chapter lives in exactly one of
// Frontmatter, Chapters or Backmatter.
type Document struct {
	Metadata    Metadata   `json:"metadata"`
	TOC         []TOCEntry `json:"toc"`
	Frontmatter []Chapter  `json:"frontmatter"`
	Chapters    []Chapter  `json:"chapters"`
	Backmatter  []Chapter  `json:"backmatter"`
	Footnotes   []Footnote `json:"footnotes"`
}

// Section names a partition bucket.
type Section string

const (
	SectionFront Section = "frontmatter"
	SectionMain  Section = "chapters"
	SectionBack  Section = "backmatter"
)

// SpineChapter is a chapter with its position in reading order.
type SpineChapter struct {
	Index   int
	Section Section
	*Chapter
}

// Spine returns frontmatter, chapters and backmatter in reading order.
func (d *Document) Spine() []SpineChapter {
	out := make([]SpineChapter, 0, len(d.Frontmatter)+len(d.Chapters)+len(d.Backmatter))
	add := func(s Section, chs []Chapter) {
		for i := range chs {
			out = append(out, SpineChapter{Index: len(out), Section: s, Chapter: &chs[i]})
		}
	}
	add(SectionFront, d.Frontmatter)
	add(SectionMain, d.Chapters)
	add(SectionBack, d.Backmatter)
	return out
}

// Normalize replaces nil slices so the JSON form always carries arrays.
func (d *Document) Normalize() {
	if d.TOC == nil {
		d.TOC = []TOCEntry{}
	}
	if d.Frontmatter == nil {
		d.Frontmatter = []Chapter{}
	}
	if d.Chapters == nil {
		d.Chapters = []Chapter{}
	}
	if d.Backmatter == nil {
		d.Backmatter = []Chapter{}
	}
	if d.Footnotes == nil {
		d.Footnotes = []Footnote{}
	}
	for _, sc := range d.Spine() {
		if sc.Elements == nil {
			sc.Elements = []Node{}
		}
	}
}
