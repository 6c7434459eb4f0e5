package astbuild

import (
	"github.com/dgallion1/pdf2epub/internal/doctree"
	"github.com/dgallion1/pdf2epub/internal/layout"
)

// OutlineToRanges converts outline entries into zero-based page ranges.
// Entry i starts at page-1 and ends at the next entry's page-2, or at
// totalPages-1 for the last entry.
func OutlineToRanges(outline []layout.OutlineEntry, totalPages int) []doctree.TOCEntry {
	toc := make([]doctree.TOCEntry, len(outline))
	for i, e := range outline {
		end := totalPages - 1
		if i+1 < len(outline) {
			end = outline[i+1].Page - 2
		}
		toc[i] = doctree.TOCEntry{Title: e.Title, Level: e.Level, Start: e.Page - 1, End: end}
	}
	return toc
}

// Contains reports whether a one-based page falls in the range, using the
// rule start < page <= end+1.
func Contains(r doctree.TOCEntry, page int) bool {
	return r.Start < page && page <= r.End+1
}

// Overlap records an element that matched more than one range.
type Overlap struct {
	ID     string
	Page   int
	Ranges []int // indices of every matching range; the first one wins
}

// Segmentation is the result of assigning elements to chapter ranges.
type Segmentation struct {
	Chapters   [][]layout.Element // parallel to the ranges
	Overlaps   []Overlap
	Unassigned []string // ids of elements no range accepted
}

// Segment assigns each element to the first range containing its page,
// preserving the elements' relative order within each chapter.
func Segment(ranges []doctree.TOCEntry, elements []layout.Element) Segmentation {
	seg := Segmentation{Chapters: make([][]layout.Element, len(ranges))}
	for _, el := range elements {
		page := el.Page()
		var hits []int
		for i, r := range ranges {
			if Contains(r, page) {
				hits = append(hits, i)
			}
		}
		switch len(hits) {
		case 0:
			seg.Unassigned = append(seg.Unassigned, el.ID)
			continue
		case 1:
		default:
			seg.Overlaps = append(seg.Overlaps, Overlap{ID: el.ID, Page: page, Ranges: hits})
		}
		seg.Chapters[hits[0]] = append(seg.Chapters[hits[0]], el)
	}
	return seg
}
