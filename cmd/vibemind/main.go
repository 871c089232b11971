package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"vibe-mind/internal/app"
	"vibe-mind/internal/config"
)

var (
	// Global flags
	verbose    bool
	outputDir  string
	timeout    time.Duration
	plainWrite bool

	cfg    config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "vibemind",
	Short: "Turn UI screenshots into design handoffs and builder prompts",
	Long: `vibemind analyzes a UI screenshot through a designer profile and produces a
structured design handoff, a ready-to-paste implementation prompt, a profile
report or a platform-specific prompt for v0, Lovable and Magic Patterns.

Configuration comes from .env, the YAML file named by VIBEMIND_CONFIG and the
environment, in that order.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		if verbose {
			cfg.LogLevel = "debug"
		}
		if outputDir != "" {
			cfg.OutputDir = outputDir
		}

		// Logs go to stderr so rendered output on stdout stays pipeable.
		var w io.Writer = os.Stderr
		switch cmd.Name() {
		case "analyze", "summarize":
			if !verbose {
				w = io.Discard
			}
		}
		logger = app.NewLogger(cfg, w)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output", "o", "", "Directory for saved reports (default: OUTPUT_DIR)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Operation timeout")
	rootCmd.PersistentFlags().BoolVar(&plainWrite, "plain", false, "Print markdown without terminal styling")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(profilesCmd)
	rootCmd.AddCommand(platformsCmd)
	rootCmd.AddCommand(summarizeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(botCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
