// Package pipeline wires the stage entry points (extract, train, predict,
// build-ast, render, export-md) to an explicit configuration and runs them
// sequentially.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dgallion1/pdf2epub/internal/astbuild"
	"github.com/dgallion1/pdf2epub/internal/classifier"
	"github.com/dgallion1/pdf2epub/internal/config"
	"github.com/dgallion1/pdf2epub/internal/doctree"
	"github.com/dgallion1/pdf2epub/internal/features"
	"github.com/dgallion1/pdf2epub/internal/jsonio"
	"github.com/dgallion1/pdf2epub/internal/layout"
	"github.com/dgallion1/pdf2epub/internal/markdown"
	"github.com/dgallion1/pdf2epub/internal/pdfx"
	"github.com/dgallion1/pdf2epub/internal/render"
)

var (
	// ErrMissingInput means a stage's input file does not exist. The stage
	// aborts before writing anything.
	ErrMissingInput = errors.New("missing input file")

	// ErrNoElements means the raw extraction holds no text runs to classify.
	ErrNoElements = errors.New("no elements to predict")
)

// Stages runs pipeline stages against one configuration.
type Stages struct {
	cfg config.Config
	log zerolog.Logger

	// Classifier overrides the artifacts at ModelPath and ScalerPath.
	Classifier *classifier.Pipeline
}

func New(cfg config.Config, log zerolog.Logger) *Stages {
	return &Stages{cfg: cfg, log: log}
}

func (s *Stages) stageLog(name string) zerolog.Logger {
	return s.log.With().Str("stage", name).Logger()
}

func requireFile(path, what string) error {
	st, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s %s: %w", what, path, ErrMissingInput)
	}
	if err != nil {
		return fmt.Errorf("%s %s: %w", what, path, err)
	}
	if st.IsDir() {
		return fmt.Errorf("%s %s is a directory", what, path)
	}
	return nil
}

// Extract reads the PDF and writes the outline and raw extraction files.
func (s *Stages) Extract(ctx context.Context) error {
	log := s.stageLog("extract")
	if err := requireFile(s.cfg.PDFPath, "pdf"); err != nil {
		return err
	}
	hash, err := FileHashHex(s.cfg.PDFPath)
	if err != nil {
		return err
	}
	log.Info().Str("pdf", s.cfg.PDFPath).Str("sha256", hash).Msg("extracting")

	opts := pdfx.Options{PdftotextFallback: s.cfg.Extract.PdftotextFallback}
	if s.cfg.Extract.Images {
		opts.ImageDir = s.cfg.ImageDir
	}
	res, err := pdfx.New(opts, log).Extract(ctx, s.cfg.PDFPath)
	if err != nil {
		return err
	}

	outline, err := jsonio.StageJSON(s.cfg.OutlinePath, res.Outline)
	if err != nil {
		return err
	}
	defer outline.Abort()

	w, err := jsonio.NewLineWriter(s.cfg.RawExtractionPath)
	if err != nil {
		return err
	}
	if err := w.Write(layout.OutlineRecord{Type: layout.RecordOutline, Data: res.Outline}); err != nil {
		w.Abort()
		return err
	}
	for _, p := range res.Pages {
		if err := w.Write(p); err != nil {
			w.Abort()
			return err
		}
	}
	lines := w.Count()
	if err := w.Commit(); err != nil {
		return err
	}
	if err := outline.Commit(); err != nil {
		return err
	}

	pages, runs, images := res.Stats()
	log.Info().Int("pages", pages).Int("runs", runs).Int("images", images).
		Int("outline_entries", len(res.Outline)).Int("lines", lines).Str("path", s.cfg.RawExtractionPath).Msg("raw extraction written")
	return nil
}

// Train fits the layout classifier on the labeled data and writes the
// model and scaler artifacts.
func (s *Stages) Train(ctx context.Context) error {
	log := s.stageLog("train")
	if err := requireFile(s.cfg.LabeledDataPath, "labeled data"); err != nil {
		return err
	}
	elements, err := classifier.LoadLabeled(s.cfg.LabeledDataPath)
	if err != nil {
		return err
	}
	log.Info().Int("elements", len(elements)).Msg("loaded labeled data")

	res, err := classifier.Train(elements, classifier.TrainOptions{
		TestSize:      s.cfg.Train.TestSize,
		Seed:          s.cfg.Train.Seed,
		Neighbors:     s.cfg.Train.Neighbors,
		MinClassCount: s.cfg.Train.MinClassCount,
	})
	if err != nil {
		return err
	}

	dist := zerolog.Dict()
	for _, lc := range res.Distribution {
		dist.Int(lc.Label, lc.Count)
	}
	log.Info().Dict("labels", dist).Strs("dropped", res.Dropped).Msg("label distribution")
	log.Info().Strs("classes", res.Model.Classes()).Int("train", res.TrainRows).Int("test", res.TestRows).
		Float64("accuracy", res.Report.Accuracy).Msg("evaluation")
	for _, line := range strings.Split(strings.TrimRight(res.Report.String(), "\n"), "\n") {
		log.Debug().Msg(line)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := classifier.SaveModel(s.cfg.ModelPath, res.Model); err != nil {
		return err
	}
	if err := classifier.SaveScaler(s.cfg.ScalerPath, res.Scaler); err != nil {
		return err
	}
	log.Info().Str("model", s.cfg.ModelPath).Str("scaler", s.cfg.ScalerPath).Msg("artifacts saved")
	return nil
}

func (s *Stages) loadClassifier() (classifier.Pipeline, error) {
	if s.Classifier != nil {
		return *s.Classifier, nil
	}
	if err := requireFile(s.cfg.ModelPath, "model"); err != nil {
		return classifier.Pipeline{}, err
	}
	if err := requireFile(s.cfg.ScalerPath, "scaler"); err != nil {
		return classifier.Pipeline{}, err
	}
	model, err := classifier.LoadModel(s.cfg.ModelPath)
	if err != nil {
		return classifier.Pipeline{}, err
	}
	scaler, err := classifier.LoadScaler(s.cfg.ScalerPath)
	if err != nil {
		return classifier.Pipeline{}, err
	}
	return classifier.Pipeline{Scaler: scaler, Model: model}, nil
}

type rawLine struct {
	Type string `json:"type"`
}

// readPages streams the page records of a raw extraction file.
func readPages(path string, fn func(layout.PageRecord) error) error {
	return jsonio.ReadLines(path, func(n int, line []byte) error {
		var head rawLine
		if err := json.Unmarshal(line, &head); err != nil {
			return fmt.Errorf("%s:%d: %w", path, n, err)
		}
		if head.Type != layout.RecordPage {
			return nil
		}
		var p layout.PageRecord
		if err := json.Unmarshal(line, &p); err != nil {
			return fmt.Errorf("%s:%d: %w", path, n, err)
		}
		return fn(p)
	})
}

// elementsFromPages builds layout elements from page records: one per text
// run, then optionally one figure per image. Ordinals count across the
// whole document.
func elementsFromPages(pages []layout.PageRecord, figures bool) (text []int, all []layout.Element) {
	for _, p := range pages {
		w, h := p.Meta.Width, p.Meta.Height
		if w <= 0 {
			w = 1
		}
		if h <= 0 {
			h = 1
		}
		for _, run := range p.TextRuns {
			text = append(text, len(all))
			all = append(all, layout.Element{
				ID:         layout.TextID(p.Meta.Number, len(all)),
				Text:       run.Text,
				BBox:       run.BBox,
				PageWidth:  w,
				PageHeight: h,
			})
		}
		if !figures {
			continue
		}
		for _, img := range p.Images {
			all = append(all, layout.Element{
				ID:   layout.ImageID(p.Meta.Number, len(all)),
				Type: layout.KindFigure.String(),
				Src:  img.Path,
			})
		}
	}
	return text, all
}

// Predict classifies every text run of the raw extraction and writes the
// predicted layout file.
func (s *Stages) Predict(ctx context.Context) error {
	log := s.stageLog("predict")
	clf, err := s.loadClassifier()
	if err != nil {
		return err
	}
	if err := requireFile(s.cfg.RawExtractionPath, "raw extraction"); err != nil {
		return err
	}

	var pages []layout.PageRecord
	if err := readPages(s.cfg.RawExtractionPath, func(p layout.PageRecord) error {
		pages = append(pages, p)
		return nil
	}); err != nil {
		return err
	}
	textIdx, elements := elementsFromPages(pages, s.cfg.Predict.Figures)
	if len(textIdx) == 0 {
		return ErrNoElements
	}

	rows := make([][]float64, len(textIdx))
	for i, idx := range textIdx {
		rows[i] = features.Featurize(elements[idx]).Vector()
	}
	labels, err := clf.Predict(rows)
	if err != nil {
		return fmt.Errorf("predict: %w", err)
	}
	if len(labels) != len(rows) {
		return fmt.Errorf("predict: model returned %d labels for %d rows", len(labels), len(rows))
	}
	for i, idx := range textIdx {
		elements[idx].Type = labels[i]
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	w, err := jsonio.NewLineWriter(s.cfg.PredictedLayoutPath)
	if err != nil {
		return err
	}
	for _, el := range elements {
		if err := w.Write(el); err != nil {
			w.Abort()
			return err
		}
	}
	lines := w.Count()
	if err := w.Commit(); err != nil {
		return err
	}
	log.Info().Int("pages", len(pages)).Int("lines", lines).Int("text", len(textIdx)).
		Int("figures", len(elements)-len(textIdx)).Str("path", s.cfg.PredictedLayoutPath).Msg("predicted layout written")
	return nil
}

// BuildAST assembles the document tree from the outline, the raw extraction
// page count and the predicted layout.
func (s *Stages) BuildAST(ctx context.Context) error {
	log := s.stageLog("build-ast")
	for _, in := range []struct{ path, what string }{
		{s.cfg.OutlinePath, "outline"},
		{s.cfg.RawExtractionPath, "raw extraction"},
		{s.cfg.PredictedLayoutPath, "predicted layout"},
	} {
		if err := requireFile(in.path, in.what); err != nil {
			return err
		}
	}

	var outline []layout.OutlineEntry
	if err := jsonio.ReadJSON(s.cfg.OutlinePath, &outline); err != nil {
		return err
	}

	meta := doctree.Metadata{
		Title:    s.cfg.Book.Title,
		Author:   s.cfg.Book.Author,
		Language: s.cfg.Book.Language,
	}
	totalPages := 0
	if err := readPages(s.cfg.RawExtractionPath, func(p layout.PageRecord) error {
		totalPages++
		if totalPages == 1 {
			meta.PageSize = &[2]float64{p.Meta.Width, p.Meta.Height}
			rot := p.Meta.Rotation
			meta.Rotation = &rot
		}
		return nil
	}); err != nil {
		return err
	}

	var elements []layout.Element
	malformed := 0
	if err := jsonio.ReadLines(s.cfg.PredictedLayoutPath, func(n int, line []byte) error {
		var el layout.Element
		if err := json.Unmarshal(line, &el); err != nil {
			return fmt.Errorf("%s:%d: %w", s.cfg.PredictedLayoutPath, n, err)
		}
		if _, ok := layout.ParsePageID(el.ID); !ok {
			malformed++
			log.Debug().Str("id", el.ID).Msg("malformed element id, page 0")
		}
		elements = append(elements, el)
		return nil
	}); err != nil {
		return err
	}
	if malformed > 0 {
		log.Warn().Int("count", malformed).Msg("elements with malformed ids")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	doc, stats := astbuild.New(log).Build(astbuild.Input{
		Outline:    outline,
		TotalPages: totalPages,
		Elements:   elements,
		Metadata:   meta,
	})
	if err := doctree.Save(s.cfg.ASTPath, doc); err != nil {
		return err
	}
	hash, err := doctree.ContentHashHex(doc)
	if err != nil {
		return err
	}
	log.Info().Str("sha256", hash).Int("total_pages", totalPages).Int("unassigned", stats.Unassigned).
		Int("skipped", stats.Skipped).Str("path", s.cfg.ASTPath).Msg("AST saved")
	return nil
}

func (s *Stages) loadAST() (*doctree.Document, error) {
	if err := requireFile(s.cfg.ASTPath, "ast"); err != nil {
		return nil, err
	}
	return doctree.Load(s.cfg.ASTPath)
}

// NewRenderer builds a renderer from the configuration.
func NewRenderer(cfg config.Config, log zerolog.Logger) (*render.Renderer, error) {
	return render.New(render.Options{
		TemplateDir: cfg.TemplateDir,
		Title:       cfg.Book.Title,
		Author:      cfg.Book.Author,
		Language:    cfg.Book.Language,
		Identifier:  cfg.Book.Identifier,
		ImageBase:   cfg.BaseDir,
	}, log)
}

// Render writes the EPUB.
func (s *Stages) Render(ctx context.Context) error {
	log := s.stageLog("render")
	doc, err := s.loadAST()
	if err != nil {
		return err
	}
	r, err := NewRenderer(s.cfg, log)
	if err != nil {
		return err
	}
	_, err = r.Write(ctx, doc, s.cfg.EPUBPath)
	return err
}

// ExportMarkdown writes the AST as Markdown and, with withHTML, an HTML
// preview next to it.
func (s *Stages) ExportMarkdown(ctx context.Context, withHTML bool) error {
	log := s.stageLog("export-md")
	doc, err := s.loadAST()
	if err != nil {
		return err
	}
	md := markdown.Bytes(doc)
	if err := jsonio.WriteFile(s.cfg.MarkdownPath, md); err != nil {
		return err
	}
	log.Info().Str("path", s.cfg.MarkdownPath).Int("bytes", len(md)).
		Int("headings", len(markdown.Headings(md))).Msg("markdown written")
	if !withHTML {
		return nil
	}

	r, err := NewRenderer(s.cfg, log)
	if err != nil {
		return err
	}
	title := doc.Metadata.Title
	if title == "" {
		title = render.DefaultTitle
	}
	page, err := markdown.ToHTML(title, r.CSS(), md)
	if err != nil {
		return err
	}
	htmlPath := strings.TrimSuffix(s.cfg.MarkdownPath, filepath.Ext(s.cfg.MarkdownPath)) + ".html"
	if err := jsonio.WriteFile(htmlPath, page); err != nil {
		return err
	}
	log.Info().Str("path", htmlPath).Msg("html preview written")
	return ctx.Err()
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}

// NeedsTraining reports whether a full run should train first: an artifact
// is missing and labeled data is available.
func (s *Stages) NeedsTraining() bool {
	if s.Classifier != nil {
		return false
	}
	missing := !fileExists(s.cfg.ModelPath) || !fileExists(s.cfg.ScalerPath)
	return missing && fileExists(s.cfg.LabeledDataPath)
}

// Plan lists the stages of a full run.
func (s *Stages) Plan() []Stage {
	stages := []Stage{{Name: "extract", Run: s.Extract}}
	if s.NeedsTraining() {
		stages = append(stages, Stage{Name: "train", Run: s.Train})
	}
	return append(stages,
		Stage{Name: "predict", Run: s.Predict},
		Stage{Name: "build-ast", Run: s.BuildAST},
		Stage{Name: "render", Run: s.Render},
	)
}
