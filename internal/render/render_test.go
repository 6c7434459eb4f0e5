package render

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"image"
	"image/png"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/pdf2epub/internal/doctree"
)

type container struct {
	RootFiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

type opfPackage struct {
	Metadata struct {
		Titles      []string `xml:"http://purl.org/dc/elements/1.1/ title"`
		Languages   []string `xml:"http://purl.org/dc/elements/1.1/ language"`
		Identifiers []string `xml:"http://purl.org/dc/elements/1.1/ identifier"`
		Creators    []string `xml:"http://purl.org/dc/elements/1.1/ creator"`
	} `xml:"metadata"`
	Manifest struct {
		Items []struct {
			ID         string `xml:"id,attr"`
			Href       string `xml:"href,attr"`
			MediaType  string `xml:"media-type,attr"`
			Properties string `xml:"properties,attr"`
		} `xml:"item"`
	} `xml:"manifest"`
	Spine struct {
		ItemRefs []struct {
			IDRef string `xml:"idref,attr"`
		} `xml:"itemref"`
	} `xml:"spine"`
}

type epubView struct {
	files  map[string]string
	opfDir string
	pkg    opfPackage
}

func openEPUB(t *testing.T, p string) *epubView {
	t.Helper()
	zr, err := zip.OpenReader(p)
	require.NoError(t, err)
	defer zr.Close()

	v := &epubView{files: map[string]string{}}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		v.files[f.Name] = string(data)
	}

	var c container
	require.NoError(t, xml.Unmarshal([]byte(v.files["META-INF/container.xml"]), &c))
	require.NotEmpty(t, c.RootFiles)
	opf := c.RootFiles[0].FullPath
	v.opfDir = path.Dir(opf)
	require.NoError(t, xml.Unmarshal([]byte(v.files[opf]), &v.pkg))
	return v
}

// spine returns the base names of the chapter documents in spine order.
func (v *epubView) spine() []string {
	hrefs := map[string]string{}
	for _, it := range v.pkg.Manifest.Items {
		hrefs[it.ID] = it.Href
	}
	var out []string
	for _, ref := range v.pkg.Spine.ItemRefs {
		base := path.Base(hrefs[ref.IDRef])
		if strings.HasPrefix(base, "chapter_") {
			out = append(out, base)
		}
	}
	return out
}

func (v *epubView) file(suffix string) (string, bool) {
	for name, data := range v.files {
		if strings.HasSuffix(name, suffix) {
			return data, true
		}
	}
	return "", false
}

func (v *epubView) nav() string {
	for _, it := range v.pkg.Manifest.Items {
		if strings.Contains(it.Properties, "nav") {
			return v.files[path.Join(v.opfDir, it.Href)]
		}
	}
	return ""
}

func writePNG(t *testing.T, p string) {
	t.Helper()
	f, err := os.Create(p)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, image.NewGray(image.Rect(0, 0, 4, 4))))
}

func sampleDoc(img string) *doctree.Document {
	return &doctree.Document{
		Metadata: doctree.Metadata{Title: "Sample Book", Author: "A. Writer", TotalPages: 6},
		Frontmatter: []doctree.Chapter{
			{Title: "Cover", Elements: []doctree.Node{doctree.Heading(1, "Sample Book", 1)}},
		},
		Chapters: []doctree.Chapter{
			{Title: "Empty Chapter"},
			{Title: "Chapter One", Elements: []doctree.Node{
				doctree.Heading(2, "Chapter One", 2),
				doctree.Paragraph("It was a dark & stormy night.", 2),
				doctree.List(3, "first", "second"),
				doctree.Figure(img, "A drawing", 3),
				doctree.CaptionParagraph("loose caption", 3),
			}},
		},
		Backmatter: []doctree.Chapter{
			{Title: "Index", Elements: []doctree.Node{doctree.Blockquote("see also", 5)}},
		},
	}
}

func TestWriteSkipsEmptyChaptersInSpineAndTOC(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "page3_img0.png")
	writePNG(t, img)

	r, err := New(Options{}, zerolog.Nop())
	require.NoError(t, err)
	out := filepath.Join(dir, "out", "book.epub")
	res, err := r.Write(context.Background(), sampleDoc(img), out)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Images)
	require.Len(t, res.Sections, 3)

	v := openEPUB(t, out)
	assert.Equal(t, []string{"chapter_0.xhtml", "chapter_2.xhtml", "chapter_3.xhtml"}, v.spine())

	nav := v.nav()
	require.NotEmpty(t, nav)
	assert.Contains(t, nav, "Chapter One")
	assert.Contains(t, nav, "Index")
	assert.NotContains(t, nav, "Empty Chapter")

	assert.Equal(t, []string{"Sample Book"}, v.pkg.Metadata.Titles)
	assert.Equal(t, []string{"en"}, v.pkg.Metadata.Languages)
	assert.Contains(t, v.pkg.Metadata.Creators, "A. Writer")
	require.NotEmpty(t, v.pkg.Metadata.Identifiers)
	assert.True(t, strings.HasPrefix(v.pkg.Metadata.Identifiers[0], "urn:uuid:"))

	ch, ok := v.file("chapter_2.xhtml")
	require.True(t, ok)
	assert.Contains(t, ch, "<h2>Chapter One</h2>")
	assert.Contains(t, ch, `<p class="caption">loose caption</p>`)
	assert.Contains(t, ch, "<li>second</li>")
	assert.Contains(t, ch, "images/page3_img0.png")
	assert.NotContains(t, ch, img, "image reference is rewritten to the packaged copy")

	_, ok = v.file("page3_img0.png")
	assert.True(t, ok, "image is packaged")
	_, ok = v.file(".css")
	assert.True(t, ok, "stylesheet is packaged")
}

func TestWriteLeavesMissingImageReference(t *testing.T) {
	dir := t.TempDir()
	r, err := New(Options{}, zerolog.Nop())
	require.NoError(t, err)

	doc := &doctree.Document{Frontmatter: []doctree.Chapter{{
		Title:    "Only",
		Elements: []doctree.Node{doctree.Figure("missing/fig.png", "", 1)},
	}}}
	out := filepath.Join(dir, "book.epub")
	res, err := r.Write(context.Background(), doc, out)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Images)

	ch, ok := openEPUB(t, out).file("chapter_0.xhtml")
	require.True(t, ok)
	assert.Contains(t, ch, "missing/fig.png")
}

func TestWriteEmbedsImageUnderSpacedDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "my book", "imágenes")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	img := filepath.Join(dir, "page3_img0.png")
	writePNG(t, img)

	r, err := New(Options{}, zerolog.Nop())
	require.NoError(t, err)
	out := filepath.Join(t.TempDir(), "book.epub")
	res, err := r.Write(context.Background(), sampleDoc(img), out)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Images)

	ch, ok := openEPUB(t, out).file("chapter_2.xhtml")
	require.True(t, ok)
	assert.Contains(t, ch, "images/page3_img0.png")
	assert.NotContains(t, ch, "my%20book")
}

func TestLocateUnescapesRelativePaths(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "out dir"), 0o755))
	writePNG(t, filepath.Join(base, "out dir", "a.png"))

	got, ok := locate("out%20dir/a.png", base)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(base, "out dir", "a.png"), got)

	_, ok = locate("out%20dir/missing.png", base)
	assert.False(t, ok)
}

func TestWriteNoChapters(t *testing.T) {
	r, err := New(Options{}, zerolog.Nop())
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "book.epub")
	doc := &doctree.Document{Frontmatter: []doctree.Chapter{{Title: "Cover"}}, Chapters: []doctree.Chapter{{Title: "Empty"}}}
	_, err = r.Write(context.Background(), doc, out)
	assert.ErrorIs(t, err, ErrNoChapters)
	assert.NoFileExists(t, out)
}

func TestBlankRenderedChapterIsSkipped(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, TemplateName), []byte("{{range .Elements}} {{end}}\n"), 0o644))

	r, err := New(Options{TemplateDir: dir}, zerolog.Nop())
	require.NoError(t, err)

	doc := &doctree.Document{Chapters: []doctree.Chapter{{Title: "One", Elements: []doctree.Node{doctree.Paragraph("x", 1)}}}}
	_, err = r.Write(context.Background(), doc, filepath.Join(dir, "book.epub"))
	assert.ErrorIs(t, err, ErrNoChapters)
}

func TestTemplateDirOverridesIndividually(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, StyleName), []byte("p { color: red; }"), 0o644))

	r, err := New(Options{TemplateDir: dir}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "p { color: red; }", string(r.CSS()))

	body, err := r.RenderChapter(&doctree.Chapter{Elements: []doctree.Node{doctree.Heading(9, "Deep", 1)}})
	require.NoError(t, err)
	assert.Contains(t, body, "<h6>Deep</h6>", "embedded template with clamped level")
}

func TestMetadataPrecedence(t *testing.T) {
	r, err := New(Options{Title: "Configured", Identifier: "isbn:123"}, zerolog.Nop())
	require.NoError(t, err)

	m, err := r.metadata(&doctree.Document{Metadata: doctree.Metadata{Title: "From AST", Language: "de"}})
	require.NoError(t, err)
	assert.Equal(t, "Configured", m.Title)
	assert.Equal(t, "de", m.Language)
	assert.Equal(t, "isbn:123", m.Identifier)

	r, err = New(Options{}, zerolog.Nop())
	require.NoError(t, err)
	m, err = r.metadata(&doctree.Document{})
	require.NoError(t, err)
	assert.Equal(t, DefaultTitle, m.Title)
	assert.Equal(t, DefaultLanguage, m.Language)
}

func TestIdentifierIsStable(t *testing.T) {
	a, err := Identifier(sampleDoc("x.png"))
	require.NoError(t, err)
	b, err := Identifier(sampleDoc("x.png"))
	require.NoError(t, err)
	c, err := Identifier(sampleDoc("y.png"))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
