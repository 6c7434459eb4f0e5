package astbuild

import (
	"strings"

	"github.com/dgallion1/pdf2epub/internal/layout"
)

const labelParagraph = "paragraph"

// MergeParagraphs joins each run of consecutive paragraph elements into one
// paragraph. The merged element keeps the id, and so the page, of the last
// run in the group. Other elements pass through unchanged.
func MergeParagraphs(elements []layout.Element) []layout.Element {
	out := make([]layout.Element, 0, len(elements))
	var (
		sb      strings.Builder
		last    layout.Element
		pending bool
	)
	flush := func() {
		if !pending {
			return
		}
		last.Text = strings.TrimSpace(sb.String())
		out = append(out, last)
		sb.Reset()
		pending = false
	}

	for _, el := range elements {
		if el.Type != labelParagraph {
			flush()
			out = append(out, el)
			continue
		}
		sb.WriteString(el.Text)
		sb.WriteByte(' ')
		last = el
		pending = true
	}
	flush()
	return out
}
