// Package config holds the explicit configuration passed into every stage.
//
// Values come from defaults, an optional YAML or TOML file, PDF2EPUB_*
// environment variables and finally command-line overrides, in that order.
// Paths left empty are derived from BaseDir, InputDir and OutputDir.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PDF2EPUB_"

type Config struct {
	BaseDir   string `yaml:"baseDir" toml:"baseDir"`
	InputDir  string `yaml:"inputDir" toml:"inputDir"`
	OutputDir string `yaml:"outputDir" toml:"outputDir"`

	PDFPath             string `yaml:"pdfPath" toml:"pdfPath"`
	LabeledDataPath     string `yaml:"labeledDataPath" toml:"labeledDataPath"`
	RawExtractionPath   string `yaml:"rawExtractionPath" toml:"rawExtractionPath"`
	OutlinePath         string `yaml:"outlinePath" toml:"outlinePath"`
	PredictedLayoutPath string `yaml:"predictedLayoutPath" toml:"predictedLayoutPath"`
	ASTPath             string `yaml:"astPath" toml:"astPath"`
	EPUBPath            string `yaml:"epubPath" toml:"epubPath"`
	ModelPath           string `yaml:"modelPath" toml:"modelPath"`
	ScalerPath          string `yaml:"scalerPath" toml:"scalerPath"`
	TemplateDir         string `yaml:"templateDir" toml:"templateDir"`
	ImageDir            string `yaml:"imageDir" toml:"imageDir"`
	MarkdownPath        string `yaml:"markdownPath" toml:"markdownPath"`

	Book    Book    `yaml:"book" toml:"book"`
	Extract Extract `yaml:"extract" toml:"extract"`
	Train   Train   `yaml:"train" toml:"train"`
	Predict Predict `yaml:"predict" toml:"predict"`
	Serve   Serve   `yaml:"serve" toml:"serve"`
}

// Book is EPUB metadata. Empty fields fall back to renderer defaults.
type Book struct {
	Title      string `yaml:"title" toml:"title"`
	Author     string `yaml:"author" toml:"author"`
	Language   string `yaml:"language" toml:"language"`
	Identifier string `yaml:"identifier" toml:"identifier"`
}

type Extract struct {
	Images            bool `yaml:"images" toml:"images"`
	PdftotextFallback bool `yaml:"pdftotextFallback" toml:"pdftotextFallback"`
}

type Train struct {
	TestSize      float64 `yaml:"testSize" toml:"testSize"`
	Seed          uint64  `yaml:"seed" toml:"seed"`
	Neighbors     int     `yaml:"neighbors" toml:"neighbors"`
	MinClassCount int     `yaml:"minClassCount" toml:"minClassCount"`
}

type Predict struct {
	// Figures appends one figure element per extracted image.
	Figures bool `yaml:"figures" toml:"figures"`
}

type Serve struct {
	Addr string `yaml:"addr" toml:"addr"`
}

// Default returns the built-in configuration before path derivation.
func Default() Config {
	return Config{
		BaseDir: ".",
		Extract: Extract{Images: true},
		Train:   Train{TestSize: 0.25, Seed: 42, Neighbors: 5, MinClassCount: 1},
		Predict: Predict{Figures: true},
		Serve:   Serve{Addr: "127.0.0.1:8090"},
	}
}

// Load builds the configuration from defaults, the optional file at path,
// the environment and overrides, then derives any unset paths.
func Load(path string, overrides ...func(*Config)) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.decodeFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	for _, o := range overrides {
		o(&cfg)
	}
	cfg.Resolve()
	return cfg, nil
}

func (c *Config) decodeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(c); err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(c); err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
	default:
		return fmt.Errorf("config %s: unsupported extension %q (want .yaml, .yml or .toml)", path, ext)
	}
	return nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"BASE_DIR":              &c.BaseDir,
		"INPUT_DIR":             &c.InputDir,
		"OUTPUT_DIR":            &c.OutputDir,
		"PDF":                   &c.PDFPath,
		"LABELED_DATA":          &c.LabeledDataPath,
		"RAW_EXTRACTION_PATH":   &c.RawExtractionPath,
		"OUTLINE_PATH":          &c.OutlinePath,
		"PREDICTED_LAYOUT_PATH": &c.PredictedLayoutPath,
		"AST_PATH":              &c.ASTPath,
		"EPUB_PATH":             &c.EPUBPath,
		"MODEL_PATH":            &c.ModelPath,
		"SCALER_PATH":           &c.ScalerPath,
		"TEMPLATE_DIR":          &c.TemplateDir,
		"IMAGE_DIR":             &c.ImageDir,
		"MARKDOWN_PATH":         &c.MarkdownPath,
		"TITLE":                 &c.Book.Title,
		"AUTHOR":                &c.Book.Author,
		"LANGUAGE":              &c.Book.Language,
		"IDENTIFIER":            &c.Book.Identifier,
		"SERVE_ADDR":            &c.Serve.Addr,
	}
	for key, dst := range strs {
		*dst = envOr(EnvPrefix+key, *dst)
	}

	var err error
	if c.Train.TestSize, err = envFloat(EnvPrefix+"TEST_SIZE", c.Train.TestSize); err != nil {
		return err
	}
	if c.Train.Seed, err = envUint(EnvPrefix+"SEED", c.Train.Seed); err != nil {
		return err
	}
	if c.Train.Neighbors, err = envInt(EnvPrefix+"NEIGHBORS", c.Train.Neighbors); err != nil {
		return err
	}
	if c.Train.MinClassCount, err = envInt(EnvPrefix+"MIN_CLASS_COUNT", c.Train.MinClassCount); err != nil {
		return err
	}
	if c.Extract.Images, err = envBool(EnvPrefix+"EXTRACT_IMAGES", c.Extract.Images); err != nil {
		return err
	}
	if c.Extract.PdftotextFallback, err = envBool(EnvPrefix+"PDFTOTEXT_FALLBACK", c.Extract.PdftotextFallback); err != nil {
		return err
	}
	if c.Predict.Figures, err = envBool(EnvPrefix+"PREDICT_FIGURES", c.Predict.Figures); err != nil {
		return err
	}
	return nil
}

// Resolve fills every empty path from the directory layout:
// BaseDir/data/input, BaseDir/data/output and BaseDir/templates.
func (c *Config) Resolve() {
	if c.BaseDir == "" {
		c.BaseDir = "."
	}
	dataDir := filepath.Join(c.BaseDir, "data")
	orDefault(&c.InputDir, filepath.Join(dataDir, "input"))
	orDefault(&c.OutputDir, filepath.Join(dataDir, "output"))

	orDefault(&c.PDFPath, filepath.Join(c.InputDir, "book.pdf"))
	orDefault(&c.LabeledDataPath, filepath.Join(dataDir, "labeled_document_data.json"))
	orDefault(&c.RawExtractionPath, filepath.Join(c.OutputDir, "raw_extraction.jsonl"))
	orDefault(&c.OutlinePath, filepath.Join(c.OutputDir, "outline.json"))
	orDefault(&c.PredictedLayoutPath, filepath.Join(c.OutputDir, "predicted_layout.jsonl"))
	orDefault(&c.ASTPath, filepath.Join(c.OutputDir, "ast.json"))
	orDefault(&c.EPUBPath, filepath.Join(c.OutputDir, "book.epub"))
	orDefault(&c.ModelPath, filepath.Join(c.OutputDir, "layout_model.msgpack"))
	orDefault(&c.ScalerPath, filepath.Join(c.OutputDir, "scaler.msgpack"))
	orDefault(&c.TemplateDir, filepath.Join(c.BaseDir, "templates"))
	orDefault(&c.ImageDir, filepath.Join(c.OutputDir, "images"))
	orDefault(&c.MarkdownPath, filepath.Join(c.OutputDir, "book.md"))
}

// Validate checks option ranges.
func (c Config) Validate() error {
	if c.Train.TestSize < 0 || c.Train.TestSize >= 1 {
		return fmt.Errorf("train.testSize must be in [0, 1), got %v", c.Train.TestSize)
	}
	if c.Train.Neighbors <= 0 {
		return fmt.Errorf("train.neighbors must be positive, got %d", c.Train.Neighbors)
	}
	if c.Train.MinClassCount < 0 {
		return fmt.Errorf("train.minClassCount must not be negative, got %d", c.Train.MinClassCount)
	}
	if c.Serve.Addr == "" {
		return fmt.Errorf("serve.addr is required")
	}
	return nil
}

func orDefault(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envUint(key string, fallback uint64) (uint64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func envBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
