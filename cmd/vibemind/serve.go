package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"vibe-mind/internal/app"
	"vibe-mind/internal/report"
)

var (
	serveAddr        string
	summarizeMaxWord int
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize [file]",
	Short: "Shorten a markdown report to a word budget",
	Long: `Keeps the title block, caps every "## " section at 50 words and, if the
result is still over budget, truncates the whole text. Reads stdin when the
file is "-".`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			data []byte
			err  error
		)
		if args[0] == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			return err
		}

		md := report.Summarize(string(data), summarizeMaxWord)
		if err := printMarkdown(cmd.OutOrStdout(), md); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%d -> %d words\n", report.WordCount(string(data)), report.WordCount(md))
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := app.New(cfg, logger, app.Options{Index: true})
		if err != nil {
			return err
		}
		defer a.Close()
		return a.Serve(ctx, serveAddr)
	},
}

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the Telegram bot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := app.New(cfg, logger, app.Options{RequireModel: true, Index: true})
		if err != nil {
			return err
		}
		defer a.Close()
		return a.RunBot(ctx)
	},
}

func init() {
	summarizeCmd.Flags().IntVarP(&summarizeMaxWord, "max-words", "n", 500, "Word budget")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: WEB_ADDR)")
}
