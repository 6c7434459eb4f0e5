package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dgallion1/pdf2epub/internal/api"
	"github.com/dgallion1/pdf2epub/internal/pipeline"
)

var (
	serveAddr string
	watch     bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a browsable preview of the document tree",
	Long: `Serves the AST as JSON, each chapter as XHTML and the whole book as an HTML
page. With --watch the AST file is reloaded whenever build-ast rewrites it.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from serve.addr)")
	serveCmd.Flags().StringVar(&astPath, "ast", "", "input AST")
	serveCmd.Flags().BoolVarP(&watch, "watch", "w", false, "reload the AST when it changes")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	r, err := pipeline.NewRenderer(cfg, logger)
	if err != nil {
		return err
	}
	srv, err := api.NewServer(cfg.ASTPath, r, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	if watch {
		w, err := api.NewWatcher(cfg.ASTPath, srv.Reload, logger)
		if err != nil {
			return err
		}
		go func() {
			if err := w.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("watcher stopped")
			}
		}()
	}
	return srv.ListenAndServe(ctx, cfg.Serve.Addr)
}
