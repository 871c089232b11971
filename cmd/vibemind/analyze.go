package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"vibe-mind/internal/app"
	"vibe-mind/internal/handoff"
	"vibe-mind/internal/pipeline"
	"vibe-mind/internal/report"
)

var (
	analyzeProfile  string
	analyzePlatform string
	analyzeMode     string
	analyzeScenario string
	analyzeMessage  string
	analyzeMaxWords int
	analyzeSave     bool
	analyzeSteps    bool
	analyzeQuestion string
	analyzeAll      bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [image]",
	Short: "Analyze a screenshot and print the handoff or prompt",
	Long: `Loads an image from a URL, data URI, local path or base64 payload, runs it
through the selected designer profile and prints the result in the chosen mode.

Modes:
  json      the structured design handoff (default)
  prompt    a ready-to-paste implementation prompt
  report    the profile's handoff report
  platform  the platform-specific prompt, optionally for --scenario

Example:
  vibemind analyze shot.png --profile ux_researcher --mode prompt --save
  vibemind analyze shot.png --steps
  vibemind analyze shot.png --all-platforms --scenario b_feed`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeProfile, "profile", "p", "product_designer", "Designer profile key")
	analyzeCmd.Flags().StringVar(&analyzePlatform, "platform", "v0", "Target platform key")
	analyzeCmd.Flags().StringVarP(&analyzeMode, "mode", "m", "json", "Output mode: json, prompt, report or platform")
	analyzeCmd.Flags().StringVar(&analyzeScenario, "scenario", "", "Platform scenario for platform mode")
	analyzeCmd.Flags().StringVar(&analyzeMessage, "context", "", "Project context passed to the model")
	analyzeCmd.Flags().IntVar(&analyzeMaxWords, "max-words", 0, "Summarize report output to this many words")
	analyzeCmd.Flags().BoolVar(&analyzeSave, "save", false, "Write results to the output directory and index them")
	analyzeCmd.Flags().BoolVar(&analyzeSteps, "steps", false, "Ask the profile's analysis steps one by one")
	analyzeCmd.Flags().StringVar(&analyzeQuestion, "question", "", "Ask a single custom question instead of the analysis steps")
	analyzeCmd.Flags().BoolVar(&analyzeAll, "all-platforms", false, "Generate a prompt for every registered platform")
	analyzeCmd.MarkFlagsMutuallyExclusive("steps", "all-platforms")
	analyzeCmd.MarkFlagsMutuallyExclusive("question", "all-platforms")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	mode, err := pipeline.ParseMode(analyzeMode)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	a, err := app.New(cfg, logger, app.Options{RequireModel: true, Index: analyzeSave})
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	image := args[0]

	switch {
	case analyzeSteps || analyzeQuestion != "":
		return runSteps(ctx, a, out, image)
	case analyzeAll:
		return runAllPlatforms(ctx, a, out, image)
	}

	res, err := a.Pipeline.Analyze(ctx, analyzeRequest(image))
	if err != nil {
		return err
	}

	rendered, err := a.Pipeline.Render(res, mode, pipeline.RenderOptions{
		Scenario: analyzeScenario,
		MaxWords: analyzeMaxWords,
	})
	if err != nil {
		return err
	}

	if mode == pipeline.ModeJSON {
		fmt.Fprintln(out, rendered)
	} else if err := printMarkdown(out, rendered); err != nil {
		return err
	}
	for _, w := range res.Warnings {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
	}

	if !analyzeSave {
		return nil
	}
	path, err := a.Files.SaveHandoff(res.Handoff)
	if err != nil {
		return err
	}
	record(ctx, a, res.Handoff, "handoff", path)
	fmt.Fprintln(cmd.ErrOrStderr(), "saved", path)

	if mode != pipeline.ModeJSON {
		mdPath, err := a.Files.SaveMarkdown(string(mode)+"_output", rendered)
		if err != nil {
			return err
		}
		record(ctx, a, res.Handoff, string(mode), mdPath)
		fmt.Fprintln(cmd.ErrOrStderr(), "saved", mdPath)
	}
	return nil
}

func runSteps(ctx context.Context, a *app.App, out io.Writer, image string) error {
	steps, prof, err := a.Pipeline.AnalyzeSteps(ctx, pipeline.StepsRequest{
		Image:      image,
		ProfileKey: analyzeProfile,
		Question:   analyzeQuestion,
	})
	if err != nil {
		return err
	}

	md, err := report.ProfileReport(prof, steps)
	if err != nil {
		return err
	}
	if analyzeMaxWords > 0 {
		md = report.Summarize(md, analyzeMaxWords)
	}
	if err := printMarkdown(out, md); err != nil {
		return err
	}

	if analyzeSave {
		path, err := a.Files.SaveMarkdown("profile_report", md)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "saved", path)
	}
	return nil
}

func runAllPlatforms(ctx context.Context, a *app.App, out io.Writer, image string) error {
	prompts, res, err := a.Pipeline.GenerateAllPlatforms(ctx, analyzeRequest(image), analyzeScenario)
	if err != nil {
		return err
	}

	names := a.Pipeline.PlatformNames()
	var b strings.Builder
	for _, key := range a.Platforms.Keys() {
		name := names[key]
		if name == "" {
			name = key
		}
		fmt.Fprintf(&b, "# %s\n\n%s\n\n---\n\n", name, prompts[key])
	}
	if err := printMarkdown(out, strings.TrimSuffix(b.String(), "---\n\n")); err != nil {
		return err
	}

	if !analyzeSave {
		return nil
	}
	path, err := a.Files.SaveHandoff(res.Handoff)
	if err != nil {
		return err
	}
	record(ctx, a, res.Handoff, "handoff", path)

	paths, err := a.Files.SavePlatformPrompts(prompts)
	for key, p := range paths {
		record(ctx, a, res.Handoff, "platform_"+key, p)
		fmt.Fprintln(os.Stderr, "saved", p)
	}
	return err
}

// analyzeRequest builds the pipeline request from the analyze flags.
func analyzeRequest(image string) pipeline.Request {
	return pipeline.Request{
		Image:       image,
		ProfileKey:  analyzeProfile,
		PlatformKey: analyzePlatform,
		Context:     messageContext(analyzeMessage),
	}
}

func messageContext(msg string) map[string]any {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return nil
	}
	return map[string]any{"message": msg}
}

func record(ctx context.Context, a *app.App, h handoff.Handoff, kind, path string) {
	if a.Index == nil {
		return
	}
	if err := a.Index.Record(ctx, h, kind, path); err != nil {
		logger.Warn("could not index report", "kind", kind, "err", err)
	}
}
