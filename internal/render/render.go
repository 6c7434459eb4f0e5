// Package render turns a document tree into an EPUB: one XHTML document per
// non-empty chapter, a stylesheet, referenced images, a linear spine and a
// flat table of contents.
package render

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dgallion1/pdf2epub/internal/doctree"
)

const (
	TemplateName = "main.xhtml.tmpl"
	StyleName    = "style.css"

	DefaultTitle    = "Untitled Book"
	DefaultLanguage = "en"
)

// ErrNoChapters means every chapter was empty, so there is nothing to write.
var ErrNoChapters = errors.New("no content to add to the EPUB")

//go:embed templates/main.xhtml.tmpl templates/style.css
var defaults embed.FS

// Options configures a Renderer.
type Options struct {
	// TemplateDir may hold main.xhtml.tmpl and style.css overriding the
	// built-in ones. Missing files fall back individually.
	TemplateDir string
	Title       string
	Author      string
	Language    string
	Identifier  string
	// ImageBase resolves relative image paths that do not exist as given.
	ImageBase string
}

// Renderer renders chapters and packages EPUBs.
type Renderer struct {
	opts Options
	tmpl *template.Template
	css  []byte
	log  zerolog.Logger
}

func New(opts Options, log zerolog.Logger) (*Renderer, error) {
	log = log.With().Str("component", "render").Logger()

	src, from, err := asset(opts.TemplateDir, TemplateName)
	if err != nil {
		return nil, err
	}
	tmpl, err := template.New(TemplateName).Funcs(template.FuncMap{
		"clampLevel": clampLevel,
	}).Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", from, err)
	}
	log.Debug().Str("template", from).Msg("loaded chapter template")

	css, from, err := asset(opts.TemplateDir, StyleName)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("stylesheet", from).Msg("loaded stylesheet")

	return &Renderer{opts: opts, tmpl: tmpl, css: css, log: log}, nil
}

// asset reads name from dir, falling back to the embedded default.
func asset(dir, name string) ([]byte, string, error) {
	if dir != "" {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err == nil {
			return data, path, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, "", fmt.Errorf("read %s: %w", path, err)
		}
	}
	data, err := defaults.ReadFile("templates/" + name)
	if err != nil {
		return nil, "", fmt.Errorf("read embedded %s: %w", name, err)
	}
	return data, "embedded:" + name, nil
}

func clampLevel(level int) int {
	return min(max(level, 1), 6)
}

// CSS returns the stylesheet in use.
func (r *Renderer) CSS() []byte { return r.css }

// RenderChapter renders a chapter's nodes into an XHTML body fragment.
func (r *Renderer) RenderChapter(ch *doctree.Chapter) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, ch); err != nil {
		return "", fmt.Errorf("render chapter %q: %w", ch.Title, err)
	}
	return buf.String(), nil
}

// Section is a chapter that made it into the book.
type Section struct {
	Index    int    // position in frontmatter ++ chapters ++ backmatter
	Title    string
	Filename string
	Body     string
}

// Sections renders every chapter in reading order and drops, with a
// warning, those with no elements or blank markup.
func (r *Renderer) Sections(doc *doctree.Document) ([]Section, error) {
	var out []Section
	for _, sc := range doc.Spine() {
		if len(sc.Elements) == 0 {
			r.log.Warn().Int("index", sc.Index).Str("title", sc.Title).Msg("skipping empty chapter")
			continue
		}
		body, err := r.RenderChapter(sc.Chapter)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(body) == "" {
			r.log.Warn().Int("index", sc.Index).Str("title", sc.Title).Msg("skipping chapter with empty rendered content")
			continue
		}
		out = append(out, Section{
			Index:    sc.Index,
			Title:    sc.Title,
			Filename: fmt.Sprintf("chapter_%d.xhtml", sc.Index),
			Body:     body,
		})
	}
	return out, nil
}

// Result describes a written EPUB.
type Result struct {
	Path       string
	Identifier string
	Sections   []Section
	Images     int
}

// Write renders doc and writes the EPUB to path. Nothing is written when no
// chapter survives.
func (r *Renderer) Write(ctx context.Context, doc *doctree.Document, path string) (*Result, error) {
	sections, err := r.Sections(doc)
	if err != nil {
		return nil, err
	}
	if len(sections) == 0 {
		return nil, ErrNoChapters
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	meta, err := r.metadata(doc)
	if err != nil {
		return nil, err
	}
	book, err := newBook(meta, r.css, r.log)
	if err != nil {
		return nil, err
	}
	defer book.Close()

	res := &Result{Path: path, Identifier: meta.Identifier}
	for i := range sections {
		body, n := book.embedImages(sections[i].Body, r.opts.ImageBase)
		res.Images += n
		sections[i].Body = body
		if err := book.addSection(sections[i]); err != nil {
			return nil, err
		}
	}
	if err := book.write(path); err != nil {
		return nil, err
	}
	res.Sections = sections
	r.log.Info().Str("path", path).Int("chapters", len(sections)).Int("images", res.Images).Msg("EPUB written")
	return res, nil
}

// bookMeta is the package metadata after defaults are applied.
type bookMeta struct {
	Title      string
	Author     string
	Language   string
	Identifier string
}

// metadata prefers configured values, then the document's own, then defaults.
func (r *Renderer) metadata(doc *doctree.Document) (bookMeta, error) {
	m := bookMeta{
		Title:      firstNonEmpty(r.opts.Title, doc.Metadata.Title, DefaultTitle),
		Author:     firstNonEmpty(r.opts.Author, doc.Metadata.Author),
		Language:   firstNonEmpty(r.opts.Language, doc.Metadata.Language, DefaultLanguage),
		Identifier: r.opts.Identifier,
	}
	if m.Identifier == "" {
		id, err := Identifier(doc)
		if err != nil {
			return m, err
		}
		m.Identifier = id
	}
	return m, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
