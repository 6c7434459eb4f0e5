package classifier

import (
	"fmt"
	"sort"

	"github.com/dgallion1/pdf2epub/internal/jsonio"
	"github.com/dgallion1/pdf2epub/internal/layout"
)

type labeledDocument struct {
	DocumentAnalysis struct {
		Pages []struct {
			Elements []layout.Element `json:"elements"`
		} `json:"pages"`
	} `json:"document_analysis"`
}

// LoadLabeled reads the hand-labeled training file and flattens it into
// elements. Page geometry is approximated by the largest bbox extent on
// each page; documents are visited in name order.
func LoadLabeled(path string) ([]layout.Element, error) {
	var docs map[string]labeledDocument
	if err := jsonio.ReadJSON(path, &docs); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(docs))
	for name := range docs {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []layout.Element
	for _, name := range names {
		for pi, page := range docs[name].DocumentAnalysis.Pages {
			width, height := 1.0, 1.0
			if len(page.Elements) > 0 {
				width, height = page.Elements[0].BBox[2], page.Elements[0].BBox[3]
				for _, el := range page.Elements[1:] {
					width = max(width, el.BBox[2])
					height = max(height, el.BBox[3])
				}
			}
			for ei, el := range page.Elements {
				if el.Type == "" {
					return nil, fmt.Errorf("%s: page %d element %d (%s) has no type", name, pi+1, ei, el.ID)
				}
				el.PageWidth = width
				el.PageHeight = height
				el.DocName = name
				out = append(out, el)
			}
		}
	}
	return out, nil
}
