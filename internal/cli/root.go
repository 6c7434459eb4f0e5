// Package cli is the pdf2epub command tree.
package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dgallion1/pdf2epub/internal/config"
	"github.com/dgallion1/pdf2epub/internal/pipeline"
)

// version is set at build time with -ldflags "-X .../internal/cli.version=...".
var version = "dev"

var (
	cfgFile   string
	verbose   bool
	baseDir   string
	outputDir string
	pdfPath   string

	baseLogger = zerolog.Nop()
	logger     zerolog.Logger
	cfg        config.Config
)

var rootCmd = &cobra.Command{
	Use:   "pdf2epub",
	Short: "Convert a PDF into a structured EPUB",
	Long: `pdf2epub extracts text runs and the outline from a PDF, classifies each run
with a trained layout model, assembles a document tree split into chapters and
packages it as an EPUB. Each stage reads and writes files under the output
directory, so stages can be run one at a time or all at once with "run".`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "c", "", "config file (.yaml, .yml or .toml)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	pf.StringVar(&baseDir, "base-dir", "", "project root holding data/ and templates/")
	pf.StringVar(&outputDir, "output-dir", "", "directory for intermediate files and the EPUB")
	pf.StringVar(&pdfPath, "pdf", "", "input PDF")
}

// SetLogger sets the logger commands write to.
func SetLogger(l zerolog.Logger) {
	baseLogger = l
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func setup(cmd *cobra.Command, _ []string) error {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	logger = baseLogger.Level(level)

	loaded, err := config.Load(cfgFile, func(c *config.Config) {
		if baseDir != "" {
			c.BaseDir = baseDir
		}
		if outputDir != "" {
			c.OutputDir = outputDir
		}
		if pdfPath != "" {
			c.PDFPath = pdfPath
		}
	}, commandOverrides(cmd))
	if err != nil {
		return err
	}
	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cfg = loaded
	logger.Debug().Str("config", cfgFile).Str("output_dir", cfg.OutputDir).Msg("configuration loaded")
	return nil
}

// commandOverrides applies the flags of the command being run.
func commandOverrides(cmd *cobra.Command) func(*config.Config) {
	return func(c *config.Config) {
		flags := cmd.Flags()
		if flags.Changed("labeled") {
			c.LabeledDataPath = labeledPath
		}
		if flags.Changed("epub") {
			c.EPUBPath = epubPath
		}
		if flags.Changed("ast") {
			c.ASTPath = astPath
		}
		if flags.Changed("markdown") {
			c.MarkdownPath = markdownPath
		}
		if flags.Changed("addr") {
			c.Serve.Addr = serveAddr
		}
	}
}

// runStages runs stages through a Runner so every command logs the same
// transitions.
func runStages(cmd *cobra.Command, stages ...pipeline.Stage) error {
	_, err := pipeline.NewRunner(logger).Run(cmd.Context(), stages...)
	return err
}
