package layout

import (
	"strconv"
	"strings"
)

// Kind is the finite set of semantic roles a classifier label maps onto.
type Kind int

const (
	KindUnknown Kind = iota
	KindRunningHeader
	KindPageNumber
	KindHeader
	KindFooter
	KindMainTitle
	KindHeading
	KindParagraph
	KindListItem
	KindBlockquote
	KindFigure
	KindCaption
)

var kindNames = map[Kind]string{
	KindUnknown:       "unknown",
	KindRunningHeader: "running_header",
	KindPageNumber:    "page_number",
	KindHeader:        "header",
	KindFooter:        "footer",
	KindMainTitle:     "main_title",
	KindHeading:       "heading",
	KindParagraph:     "paragraph",
	KindListItem:      "list_item",
	KindBlockquote:    "blockquote",
	KindFigure:        "figure",
	KindCaption:       "caption",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Furniture reports whether elements of this kind are page furniture
// (running headers, folios) rather than content.
func (k Kind) Furniture() bool {
	switch k {
	case KindRunningHeader, KindPageNumber, KindHeader, KindFooter:
		return true
	}
	return false
}

// DefaultHeadingLevel applies to heading labels without a numeric suffix.
const DefaultHeadingLevel = 2

// Label is a parsed classifier label.
type Label struct {
	Kind  Kind
	Level int    // heading level; 1 for main_title, 0 for non-headings
	Raw   string // label as predicted
}

// ParseLabel maps a raw predicted label onto the label enumeration.
// Any label containing "heading" is a heading whose level is taken from a
// trailing "_N" suffix, defaulting to DefaultHeadingLevel.
func ParseLabel(raw string) Label {
	l := Label{Raw: raw}
	switch raw {
	case "running_header":
		l.Kind = KindRunningHeader
	case "page_number":
		l.Kind = KindPageNumber
	case "header":
		l.Kind = KindHeader
	case "footer":
		l.Kind = KindFooter
	case "main_title":
		l.Kind = KindMainTitle
		l.Level = 1
	case "paragraph":
		l.Kind = KindParagraph
	case "list_item":
		l.Kind = KindListItem
	case "blockquote":
		l.Kind = KindBlockquote
	case "figure":
		l.Kind = KindFigure
	case "caption":
		l.Kind = KindCaption
	default:
		if strings.Contains(raw, "heading") {
			l.Kind = KindHeading
			l.Level = headingLevel(raw)
		}
	}
	return l
}

func headingLevel(raw string) int {
	i := strings.LastIndexByte(raw, '_')
	if i < 0 || i == len(raw)-1 {
		return DefaultHeadingLevel
	}
	n, err := strconv.Atoi(raw[i+1:])
	if err != nil {
		return DefaultHeadingLevel
	}
	return n
}
