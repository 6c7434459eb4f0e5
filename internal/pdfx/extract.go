// Package pdfx reads a PDF into the outline and per-page records consumed by
// the rest of the pipeline: positioned text runs, page geometry and images.
package pdfx

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"
	"golang.org/x/text/unicode/norm"

	"github.com/dgallion1/pdf2epub/internal/layout"
)

// US Letter, used when a page has no usable MediaBox.
var defaultFrame = Frame{X0: 0, Y0: 0, X1: 612, Y1: 792}

// Options controls extraction.
type Options struct {
	// ImageDir receives page{n}_img{k}.png files. Empty disables images.
	ImageDir string
	// PdftotextFallback recovers text of pages the pdf library cannot
	// decode by shelling out to pdftotext, as a single page-wide run.
	PdftotextFallback bool
}

// Result is the extracted content of one PDF.
type Result struct {
	Outline []layout.OutlineEntry
	Pages   []layout.PageRecord
}

// Stats counts what an extraction produced.
func (r *Result) Stats() (pages, runs, images int) {
	for _, p := range r.Pages {
		runs += len(p.TextRuns)
		images += len(p.Images)
	}
	return len(r.Pages), runs, images
}

// Extractor reads PDFs.
type Extractor struct {
	opts Options
	log  zerolog.Logger
}

func New(opts Options, log zerolog.Logger) *Extractor {
	return &Extractor{opts: opts, log: log.With().Str("component", "pdfx").Logger()}
}

// Extract reads the outline and every page of the PDF at path. Pages that
// cannot be decoded yield empty records and a warning.
func (e *Extractor) Extract(ctx context.Context, path string) (*Result, error) {
	f, r, err := pdflib.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	res := &Result{Outline: e.outline(r)}
	n := r.NumPage()
	res.Pages = make([]layout.PageRecord, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res.Pages = append(res.Pages, e.page(ctx, r, path, i))
	}
	return res, nil
}

func (e *Extractor) outline(r *pdflib.Reader) (out []layout.OutlineEntry) {
	defer func() {
		if rec := recover(); rec != nil {
			e.log.Warn().Interface("panic", rec).Msg("outline unreadable, continuing without it")
			out = []layout.OutlineEntry{}
		}
	}()
	return readOutline(r, e.log)
}

func (e *Extractor) page(ctx context.Context, r *pdflib.Reader, path string, num int) layout.PageRecord {
	p := r.Page(num)
	frame := pageFrame(p.V)
	rec := layout.NewPageRecord(layout.PageMeta{
		Number:   num,
		Width:    frame.Width(),
		Height:   frame.Height(),
		Rotation: pageRotation(p.V),
	})
	if p.V.IsNull() {
		e.log.Warn().Int("page", num).Msg("page object missing")
		return rec
	}

	runs, err := pageRuns(p, frame)
	if err != nil {
		e.log.Warn().Err(err).Int("page", num).Msg("page content unreadable")
		if e.opts.PdftotextFallback {
			runs = e.fallbackRuns(ctx, path, num, frame)
		}
	}
	if runs != nil {
		rec.TextRuns = runs
	}

	if e.opts.ImageDir != "" {
		rec.Images = e.pageImages(p, num)
	}
	return rec
}

func pageRuns(p pdflib.Page, frame Frame) (runs []layout.TextRun, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decode content stream: %v", r)
		}
	}()
	return GroupRuns(p.Content().Text, frame), nil
}

func (e *Extractor) pageImages(p pdflib.Page, num int) (out []layout.ImageRecord) {
	out = []layout.ImageRecord{}
	defer func() {
		if r := recover(); r != nil {
			e.log.Warn().Int("page", num).Interface("panic", r).Msg("page resources unreadable, skipping images")
		}
	}()
	xobjs, names := imageXObjects(p)
	for _, name := range names {
		ri, err := decodeImage(xobjs.Key(name))
		if err != nil {
			e.log.Warn().Err(err).Int("page", num).Str("xobject", name).Msg("skipping image")
			continue
		}
		img, err := ri.ToImage()
		if err != nil {
			e.log.Warn().Err(err).Int("page", num).Str("xobject", name).Msg("skipping image")
			continue
		}
		file := imageName(num, len(out))
		path, err := writePNG(e.opts.ImageDir, file, img)
		if err != nil {
			e.log.Warn().Err(err).Int("page", num).Str("xobject", name).Msg("skipping image")
			continue
		}
		out = append(out, imageRecord(file, path, ri))
	}
	return out
}

// fallbackRuns asks pdftotext for the page's text.
func (e *Extractor) fallbackRuns(ctx context.Context, path string, num int, frame Frame) []layout.TextRun {
	page := fmt.Sprint(num)
	out, err := exec.CommandContext(ctx, "pdftotext", "-layout", "-f", page, "-l", page, path, "-").Output()
	if err != nil {
		e.log.Warn().Err(err).Int("page", num).Msg("pdftotext fallback failed")
		return nil
	}
	text := strings.Join(strings.Fields(norm.NFC.String(string(out))), " ")
	if text == "" {
		return nil
	}
	return []layout.TextRun{{
		Text: text,
		Font: "pdftotext",
		BBox: layout.BBox{0, 0, frame.Width(), frame.Height()},
	}}
}

// inherited looks key up on the page and then its Pages ancestors.
func inherited(page pdflib.Value, key string) pdflib.Value {
	for v, depth := page, 0; !v.IsNull() && depth < 64; v, depth = v.Key("Parent"), depth+1 {
		if val := v.Key(key); !val.IsNull() {
			return val
		}
	}
	return pdflib.Value{}
}

func pageFrame(page pdflib.Value) Frame {
	box := inherited(page, "MediaBox")
	if box.Kind() != pdflib.Array || box.Len() < 4 {
		return defaultFrame
	}
	x0, y0 := box.Index(0).Float64(), box.Index(1).Float64()
	x1, y1 := box.Index(2).Float64(), box.Index(3).Float64()
	f := Frame{X0: min(x0, x1), Y0: min(y0, y1), X1: max(x0, x1), Y1: max(y0, y1)}
	if f.Width() <= 0 || f.Height() <= 0 {
		return defaultFrame
	}
	return f
}

func pageRotation(page pdflib.Value) int {
	rot := int(inherited(page, "Rotate").Int64()) % 360
	if rot < 0 {
		rot += 360
	}
	return rot
}
