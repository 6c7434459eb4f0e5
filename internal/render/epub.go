package render

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	epub "github.com/go-shiori/go-epub"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/dgallion1/pdf2epub/internal/doctree"
	"github.com/dgallion1/pdf2epub/internal/jsonio"
)

// Identifier derives a stable urn:uuid from the document content, so
// rendering the same AST twice yields the same book identifier.
func Identifier(doc *doctree.Document) (string, error) {
	sum, err := doctree.ContentHash(doc)
	if err != nil {
		return "", err
	}
	return "urn:uuid:" + uuid.NewSHA1(uuid.NameSpaceURL, sum[:]).String(), nil
}

// book wraps the EPUB under construction with the scratch directory its
// stylesheet is staged in.
type book struct {
	e       *epub.Epub
	scratch string
	cssPath string
	images  map[string]string // source path -> internal path
	names   map[string]bool
	log     zerolog.Logger
}

func newBook(meta bookMeta, css []byte, log zerolog.Logger) (*book, error) {
	e, err := epub.NewEpub(meta.Title)
	if err != nil {
		return nil, fmt.Errorf("new epub: %w", err)
	}
	e.SetLang(meta.Language)
	e.SetIdentifier(meta.Identifier)
	if meta.Author != "" {
		e.SetAuthor(meta.Author)
	}

	scratch, err := os.MkdirTemp("", "pdf2epub-render-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	b := &book{e: e, scratch: scratch, images: map[string]string{}, names: map[string]bool{}, log: log}

	src := filepath.Join(scratch, StyleName)
	if err := os.WriteFile(src, css, 0o644); err != nil {
		b.Close()
		return nil, fmt.Errorf("stage stylesheet: %w", err)
	}
	if b.cssPath, err = e.AddCSS(src, "main.css"); err != nil {
		b.Close()
		return nil, fmt.Errorf("add stylesheet: %w", err)
	}
	return b, nil
}

func (b *book) Close() {
	os.RemoveAll(b.scratch)
}

func (b *book) addSection(s Section) error {
	if _, err := b.e.AddSection(s.Body, s.Title, s.Filename, b.cssPath); err != nil {
		return fmt.Errorf("add section %s: %w", s.Filename, err)
	}
	return nil
}

// write packages the book into path through a temp file.
func (b *book) write(path string) error {
	f, err := jsonio.Create(path)
	if err != nil {
		return err
	}
	if _, err := b.e.WriteTo(f); err != nil {
		f.Abort()
		return fmt.Errorf("write epub: %w", err)
	}
	return f.Commit()
}

// embedImages adds every image referenced by an <img src> in body to the
// package and points the reference at the packaged copy. Images that cannot
// be found are left pointing at their original path.
func (b *book) embedImages(body, base string) (string, int) {
	if !strings.Contains(body, "<img") {
		return body, 0
	}
	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(body), ctx)
	if err != nil {
		b.log.Warn().Err(err).Msg("cannot parse chapter markup, images not embedded")
		return body, 0
	}

	added := 0
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Img {
			for i, a := range n.Attr {
				if a.Key != "src" {
					continue
				}
				if internal, ok := b.image(a.Val, base); ok {
					n.Attr[i].Val = internal
					added++
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	var buf bytes.Buffer
	for _, n := range nodes {
		walk(n)
		if err := html.Render(&buf, n); err != nil {
			b.log.Warn().Err(err).Msg("cannot serialize chapter markup, images not embedded")
			return body, 0
		}
	}
	return buf.String(), added
}

func (b *book) image(src, base string) (string, bool) {
	if src == "" {
		return "", false
	}
	if internal, ok := b.images[src]; ok {
		return internal, true
	}
	path, ok := locate(src, base)
	if !ok {
		b.log.Warn().Str("src", src).Msg("image file not found, leaving reference unchanged")
		return "", false
	}

	name := filepath.Base(path)
	for i := 1; b.names[name]; i++ {
		name = fmt.Sprintf("%d_%s", i, filepath.Base(path))
	}
	internal, err := b.e.AddImage(path, name)
	if err != nil {
		b.log.Warn().Err(err).Str("src", src).Msg("cannot add image, leaving reference unchanged")
		return "", false
	}
	b.names[name] = true
	b.images[src] = internal
	return internal, true
}

// locate finds the file an img src refers to. Template escaping
// percent-encodes the path, so the unescaped form is tried as well.
func locate(src, base string) (string, bool) {
	names := []string{src}
	if un, err := url.PathUnescape(src); err == nil && un != src {
		names = append(names, un)
	}
	var candidates []string
	for _, n := range names {
		candidates = append(candidates, n)
		if base != "" && !filepath.IsAbs(n) {
			candidates = append(candidates, filepath.Join(base, n))
		}
	}
	for _, c := range candidates {
		if st, err := os.Stat(c); err == nil && st.Mode().IsRegular() {
			return c, true
		}
	}
	return "", false
}
