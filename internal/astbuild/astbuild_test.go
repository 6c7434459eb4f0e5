package astbuild

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/pdf2epub/internal/doctree"
	"github.com/dgallion1/pdf2epub/internal/layout"
)

func el(page, ord int, typ, text string) layout.Element {
	return layout.Element{ID: layout.TextID(page, ord), Type: typ, Text: text}
}

func outline(entries ...layout.OutlineEntry) []layout.OutlineEntry { return entries }

func entry(title string, page int) layout.OutlineEntry {
	return layout.OutlineEntry{Level: 1, Title: title, Page: page}
}

func TestOutlineToRanges(t *testing.T) {
	toc := OutlineToRanges(outline(entry("A", 1), entry("B", 3), entry("C", 7)), 10)
	require.Len(t, toc, 3)

	assert.Equal(t, doctree.TOCEntry{Title: "A", Level: 1, Start: 0, End: 1}, toc[0])
	assert.Equal(t, doctree.TOCEntry{Title: "B", Level: 1, Start: 2, End: 5}, toc[1])
	assert.Equal(t, doctree.TOCEntry{Title: "C", Level: 1, Start: 6, End: 9}, toc[2])

	for i := 0; i+1 < len(toc); i++ {
		assert.Equal(t, toc[i+1].Start+1-2, toc[i].End, "end is the next start page minus two")
	}
	assert.Equal(t, 9, toc[len(toc)-1].End)
}

func TestContainsBoundaries(t *testing.T) {
	r := doctree.TOCEntry{Start: 2, End: 5}
	assert.False(t, Contains(r, 2), "page equal to start")
	assert.True(t, Contains(r, 3))
	assert.True(t, Contains(r, 5), "page equal to end")
	assert.True(t, Contains(r, 6), "page equal to end+1")
	assert.False(t, Contains(r, 7), "page equal to end+2")
}

func TestSegmentKeepsOrderAndCountsUnassigned(t *testing.T) {
	toc := OutlineToRanges(outline(entry("A", 2), entry("B", 4)), 5)
	els := []layout.Element{
		el(1, 0, "paragraph", "before"),
		el(3, 1, "paragraph", "a2"),
		el(2, 2, "paragraph", "a1"),
		el(5, 3, "paragraph", "b"),
		{ID: "bogus", Type: "paragraph"},
	}
	seg := Segment(toc, els)

	require.Len(t, seg.Chapters, 2)
	assert.Equal(t, []string{"a2", "a1"}, texts(seg.Chapters[0]))
	assert.Equal(t, []string{"b"}, texts(seg.Chapters[1]))
	assert.Equal(t, []string{"p1_b0", "bogus"}, seg.Unassigned)
	assert.Empty(t, seg.Overlaps)
}

func TestSegmentFirstMatchWinsOnOverlap(t *testing.T) {
	// out-of-order outline: A covers pages 1-4, C covers pages 2-6
	toc := OutlineToRanges(outline(entry("A", 1), entry("B", 5), entry("C", 2)), 6)
	seg := Segment(toc, []layout.Element{el(3, 0, "paragraph", "x")})

	assert.Equal(t, []string{"x"}, texts(seg.Chapters[0]))
	assert.Empty(t, seg.Chapters[2])
	require.Len(t, seg.Overlaps, 1)
	assert.Equal(t, []int{0, 2}, seg.Overlaps[0].Ranges)
}

func texts(els []layout.Element) []string {
	out := make([]string, len(els))
	for i, e := range els {
		out[i] = e.Text
	}
	return out
}

func TestMergeParagraphs(t *testing.T) {
	merged := MergeParagraphs([]layout.Element{
		el(1, 0, "paragraph", " Hello"),
		el(1, 1, "paragraph", "world "),
		el(1, 2, "heading_1", "Title"),
		el(2, 3, "paragraph", "tail"),
		el(3, 4, "paragraph", "end"),
	})
	require.Len(t, merged, 3)
	assert.Equal(t, "Hello world", merged[0].Text)
	assert.Equal(t, "p1_b1", merged[0].ID)
	assert.Equal(t, "Title", merged[1].Text)
	assert.Equal(t, "tail end", merged[2].Text, "pending merge flushed at chapter end")
	assert.Equal(t, 3, merged[2].Page(), "page of last constituent")
}

func TestMergeParagraphsIdempotent(t *testing.T) {
	once := MergeParagraphs([]layout.Element{el(1, 0, "paragraph", "  one  two ")})
	twice := MergeParagraphs(once)
	assert.Equal(t, once, twice)
	assert.Equal(t, "one  two", twice[0].Text)
}

func TestMapNodesListGrouping(t *testing.T) {
	nodes, skipped := MapNodes([]layout.Element{
		el(1, 0, "list_item", "a"),
		el(1, 1, "list_item", "b"),
		el(1, 2, "paragraph", "p"),
		el(1, 3, "list_item", "c"),
	})
	assert.Empty(t, skipped)
	require.Len(t, nodes, 3)
	assert.Equal(t, doctree.NodeList, nodes[0].Type)
	assert.Equal(t, []string{"a", "b"}, nodes[0].Items)
	assert.Equal(t, doctree.NodeParagraph, nodes[1].Type)
	assert.Equal(t, []string{"c"}, nodes[2].Items)
	assert.False(t, nodes[2].Ordered)
}

func TestMapNodesCaptions(t *testing.T) {
	fig := layout.Element{ID: layout.ImageID(2, 5), Type: "figure", Src: "img/page2_img0.png"}
	nodes, _ := MapNodes([]layout.Element{
		el(1, 0, "caption", "orphan"),
		fig,
		el(2, 6, "caption", "Figure 1"),
	})
	require.Len(t, nodes, 2)
	assert.Equal(t, doctree.CaptionParagraph("orphan", 1), nodes[0])
	assert.Equal(t, doctree.Figure("img/page2_img0.png", "Figure 1", 2), nodes[1])
}

func TestMapNodesHeadingsFurnitureAndUnknown(t *testing.T) {
	nodes, skipped := MapNodes([]layout.Element{
		el(1, 0, "running_header", "Book"),
		el(1, 1, "main_title", "Book"),
		el(1, 2, "heading_3", "Deep"),
		el(1, 3, "sub_heading", "Sub"),
		el(1, 4, "page_number", "1"),
		el(1, 5, "table", "?"),
		el(1, 6, "blockquote", "q"),
		el(1, 7, "footer", "f"),
		el(1, 8, "header", "h"),
	})
	require.Len(t, nodes, 4)
	assert.Equal(t, doctree.Heading(1, "Book", 1), nodes[0])
	assert.Equal(t, 3, nodes[1].Level)
	assert.Equal(t, layout.DefaultHeadingLevel, nodes[2].Level)
	assert.Equal(t, doctree.Blockquote("q", 1), nodes[3])
	assert.Equal(t, []Skipped{{ID: "p1_b5", Label: "table"}}, skipped)
}

func TestPartition(t *testing.T) {
	var d doctree.Document
	Partition(&d, chapters("Cover", "Chapter 1", "Index"))
	assert.Equal(t, []string{"Cover"}, titles(d.Frontmatter))
	assert.Equal(t, []string{"Chapter 1"}, titles(d.Chapters))
	assert.Equal(t, []string{"Index"}, titles(d.Backmatter))
}

func TestPartitionNamedSections(t *testing.T) {
	var d doctree.Document
	Partition(&d, chapters("Title Page", " CONTENTS ", "One", "Bibliography", "Two", "Afterword"))
	assert.Equal(t, []string{"Title Page", " CONTENTS "}, titles(d.Frontmatter))
	assert.Equal(t, []string{"One", "Two"}, titles(d.Chapters))
	assert.Equal(t, []string{"Bibliography", "Afterword"}, titles(d.Backmatter))
}

func TestPartitionSingleChapterIsFrontmatter(t *testing.T) {
	var d doctree.Document
	Partition(&d, chapters("Only"))
	assert.Equal(t, []string{"Only"}, titles(d.Frontmatter))
	assert.Empty(t, d.Chapters)
	assert.Empty(t, d.Backmatter)
}

func chapters(ts ...string) []doctree.Chapter {
	out := make([]doctree.Chapter, len(ts))
	for i, t := range ts {
		out[i] = doctree.Chapter{Title: t}
	}
	return out
}

func titles(chs []doctree.Chapter) []string {
	out := []string{}
	for _, c := range chs {
		out = append(out, c.Title)
	}
	return out
}

func TestBuildEndToEnd(t *testing.T) {
	b := New(zerolog.Nop())
	doc, st := b.Build(Input{
		Outline:    outline(entry("Cover", 1), entry("Chapter 1", 2), entry("Index", 5)),
		TotalPages: 6,
		Elements: []layout.Element{
			el(1, 0, "main_title", "My Book"),
			el(3, 1, "paragraph", "Body text."),
			el(5, 2, "paragraph", "Index entry"),
		},
		Metadata: doctree.Metadata{Title: "My Book"},
	})

	require.Len(t, doc.Frontmatter, 1)
	require.Len(t, doc.Chapters, 1)
	require.Len(t, doc.Backmatter, 1)

	assert.Equal(t, []doctree.Node{doctree.Heading(1, "My Book", 1)}, doc.Frontmatter[0].Elements)
	assert.Equal(t, []doctree.Node{doctree.Paragraph("Body text.", 3)}, doc.Chapters[0].Elements)
	assert.Equal(t, []doctree.Node{doctree.Paragraph("Index entry", 5)}, doc.Backmatter[0].Elements)

	assert.Equal(t, 6, doc.Metadata.TotalPages)
	assert.Equal(t, "My Book", doc.Metadata.Title)
	assert.Len(t, doc.TOC, 3)
	assert.NotNil(t, doc.Footnotes)
	assert.Equal(t, Stats{Chapters: 3, Elements: 3, Nodes: 3}, st)
}
