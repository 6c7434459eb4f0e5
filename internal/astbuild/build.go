// Package astbuild assembles classified layout elements into a document
// tree: outline ranges, chapter segmentation, paragraph merging, label to
// node mapping and front/main/back partitioning.
package astbuild

import (
	"github.com/rs/zerolog"

	"github.com/dgallion1/pdf2epub/internal/doctree"
	"github.com/dgallion1/pdf2epub/internal/layout"
)

// Input is everything the builder needs.
type Input struct {
	Outline    []layout.OutlineEntry
	TotalPages int
	Elements   []layout.Element
	Metadata   doctree.Metadata
}

// Stats summarizes a build for logging.
type Stats struct {
	Chapters   int `json:"chapters"`
	Elements   int `json:"elements"`
	Nodes      int `json:"nodes"`
	Overlaps   int `json:"overlaps"`
	Unassigned int `json:"unassigned"`
	Skipped    int `json:"skipped"`
}

// Builder turns classified elements into a Document.
type Builder struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Builder {
	return &Builder{log: log.With().Str("component", "astbuild").Logger()}
}

// Build assembles the document. Recoverable anomalies (overlapping ranges,
// unassigned elements, unknown labels) are logged and counted, never fatal.
func (b *Builder) Build(in Input) (*doctree.Document, Stats) {
	st := Stats{Elements: len(in.Elements)}
	toc := OutlineToRanges(in.Outline, in.TotalPages)
	seg := Segment(toc, in.Elements)

	for _, o := range seg.Overlaps {
		b.log.Warn().Str("id", o.ID).Int("page", o.Page).Ints("ranges", o.Ranges).
			Msg("element matches several chapter ranges, keeping first")
	}
	if len(seg.Unassigned) > 0 {
		b.log.Warn().Int("count", len(seg.Unassigned)).Strs("sample", sample(seg.Unassigned, 5)).
			Msg("elements outside every chapter range")
	}

	chapters := make([]doctree.Chapter, len(toc))
	for i, r := range toc {
		nodes, skipped := MapNodes(MergeParagraphs(seg.Chapters[i]))
		for _, s := range skipped {
			b.log.Warn().Str("id", s.ID).Str("label", s.Label).Msg("unhandled element type, skipping")
		}
		chapters[i] = doctree.Chapter{Title: r.Title, Elements: nodes}
		st.Skipped += len(skipped)
		st.Nodes += len(nodes)
	}

	doc := &doctree.Document{
		Metadata:  in.Metadata,
		TOC:       toc,
		Footnotes: []doctree.Footnote{},
	}
	doc.Metadata.TotalPages = in.TotalPages
	Partition(doc, chapters)
	doc.Normalize()

	st.Chapters = len(chapters)
	st.Overlaps = len(seg.Overlaps)
	st.Unassigned = len(seg.Unassigned)
	b.log.Info().Int("chapters", st.Chapters).Int("front", len(doc.Frontmatter)).
		Int("main", len(doc.Chapters)).Int("back", len(doc.Backmatter)).
		Int("nodes", st.Nodes).Msg("document assembled")
	return doc, st
}

func sample(ids []string, n int) []string {
	if len(ids) <= n {
		return ids
	}
	return ids[:n]
}
