package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dgallion1/pdf2epub/internal/pipeline"
)

var (
	labeledPath  string
	epubPath     string
	astPath      string
	markdownPath string
	withHTML     bool
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract the outline, text runs and images from the PDF",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		s := pipeline.New(cfg, logger)
		return runStages(cmd, pipeline.Stage{Name: "extract", Run: s.Extract})
	},
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the layout classifier on labeled data",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		s := pipeline.New(cfg, logger)
		return runStages(cmd, pipeline.Stage{Name: "train", Run: s.Train})
	},
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Label every extracted text run",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		s := pipeline.New(cfg, logger)
		return runStages(cmd, pipeline.Stage{Name: "predict", Run: s.Predict})
	},
}

var buildASTCmd = &cobra.Command{
	Use:   "build-ast",
	Short: "Assemble the document tree from the outline and predicted layout",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		s := pipeline.New(cfg, logger)
		return runStages(cmd, pipeline.Stage{Name: "build-ast", Run: s.BuildAST})
	},
}

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Package the document tree as an EPUB",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		s := pipeline.New(cfg, logger)
		return runStages(cmd, pipeline.Stage{Name: "render", Run: s.Render})
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every stage in order",
	Long: `Runs extract, predict, build-ast and render in one process. Train runs
first when the model or scaler is missing and labeled data is available.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		s := pipeline.New(cfg, logger)
		return runStages(cmd, s.Plan()...)
	},
}

var exportMDCmd = &cobra.Command{
	Use:   "export-md",
	Short: "Write the document tree as Markdown",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		s := pipeline.New(cfg, logger)
		return runStages(cmd, pipeline.Stage{
			Name: "export-md",
			Run:  func(ctx context.Context) error { return s.ExportMarkdown(ctx, withHTML) },
		})
	},
}

func init() {
	trainCmd.Flags().StringVar(&labeledPath, "labeled", "", "labeled training data")
	renderCmd.Flags().StringVar(&epubPath, "epub", "", "output EPUB")
	renderCmd.Flags().StringVar(&astPath, "ast", "", "input AST")
	runCmd.Flags().StringVar(&epubPath, "epub", "", "output EPUB")
	exportMDCmd.Flags().StringVar(&astPath, "ast", "", "input AST")
	exportMDCmd.Flags().StringVar(&markdownPath, "markdown", "", "output Markdown file")
	exportMDCmd.Flags().BoolVar(&withHTML, "html", false, "also write an HTML preview next to the Markdown")

	rootCmd.AddCommand(extractCmd, trainCmd, predictCmd, buildASTCmd, renderCmd, runCmd, exportMDCmd)
}
