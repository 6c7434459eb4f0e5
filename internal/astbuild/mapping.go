package astbuild

import (
	"github.com/dgallion1/pdf2epub/internal/doctree"
	"github.com/dgallion1/pdf2epub/internal/layout"
)

// Skipped records an element dropped because its label is not recognized.
type Skipped struct {
	ID    string
	Label string
}

// MapNodes converts merged elements into chapter nodes. Page furniture is
// dropped, list items are grouped into lists and captions are attached to
// the figure immediately before them.
func MapNodes(elements []layout.Element) ([]doctree.Node, []Skipped) {
	nodes := make([]doctree.Node, 0, len(elements))
	var skipped []Skipped

	lastIs := func(t doctree.NodeType) bool {
		return len(nodes) > 0 && nodes[len(nodes)-1].Type == t
	}

	for _, el := range elements {
		label := el.Label()
		if label.Kind.Furniture() {
			continue
		}
		page := el.Page()
		switch label.Kind {
		case layout.KindMainTitle, layout.KindHeading:
			nodes = append(nodes, doctree.Heading(label.Level, el.Text, page))
		case layout.KindParagraph:
			nodes = append(nodes, doctree.Paragraph(el.Text, page))
		case layout.KindListItem:
			if !lastIs(doctree.NodeList) {
				nodes = append(nodes, doctree.List(page))
			}
			list := &nodes[len(nodes)-1]
			list.Items = append(list.Items, el.Text)
		case layout.KindBlockquote:
			nodes = append(nodes, doctree.Blockquote(el.Text, page))
		case layout.KindFigure:
			nodes = append(nodes, doctree.Figure(el.Src, el.Caption, page))
		case layout.KindCaption:
			if lastIs(doctree.NodeFigure) {
				nodes[len(nodes)-1].Caption = el.Text
			} else {
				nodes = append(nodes, doctree.CaptionParagraph(el.Text, page))
			}
		case layout.KindUnknown:
			skipped = append(skipped, Skipped{ID: el.ID, Label: label.Raw})
		}
	}
	return nodes, skipped
}
