package astbuild

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/dgallion1/pdf2epub/internal/doctree"
)

var (
	frontTitles = titleSet("cover", "copyright", "contents")
	backTitles  = titleSet("index", "endnotes", "glossary of names", "bibliography")
)

func titleSet(titles ...string) map[string]bool {
	m := make(map[string]bool, len(titles))
	for _, t := range titles {
		m[foldTitle(t)] = true
	}
	return m
}

// foldTitle trims and case-folds a title. A Caser is stateful, so each
// call gets its own.
func foldTitle(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// SectionFor decides which bucket the chapter at idx of n belongs to.
// The front rule is checked first, so a lone chapter is frontmatter.
func SectionFor(idx, n int, title string) doctree.Section {
	t := foldTitle(title)
	switch {
	case idx == 0 || frontTitles[t]:
		return doctree.SectionFront
	case idx == n-1 || backTitles[t]:
		return doctree.SectionBack
	default:
		return doctree.SectionMain
	}
}

// Partition distributes chapters into frontmatter, main chapters and
// backmatter, preserving their order within each bucket.
func Partition(d *doctree.Document, chapters []doctree.Chapter) {
	d.Frontmatter = []doctree.Chapter{}
	d.Chapters = []doctree.Chapter{}
	d.Backmatter = []doctree.Chapter{}
	for i, ch := range chapters {
		switch SectionFor(i, len(chapters), ch.Title) {
		case doctree.SectionFront:
			d.Frontmatter = append(d.Frontmatter, ch)
		case doctree.SectionBack:
			d.Backmatter = append(d.Backmatter, ch)
		default:
			d.Chapters = append(d.Chapters, ch)
		}
	}
}
