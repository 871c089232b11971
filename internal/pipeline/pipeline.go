// Package pipeline runs an image through color extraction, the vision model,
// response parsing and handoff assembly, and renders the outcome.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"vibe-mind/internal/analysis"
	"vibe-mind/internal/handoff"
	"vibe-mind/internal/imaging"
	"vibe-mind/internal/palette"
	"vibe-mind/internal/platform"
	"vibe-mind/internal/profile"
	"vibe-mind/internal/registry"
	"vibe-mind/internal/report"
	"vibe-mind/internal/vision"
)

var (
	ErrNoProfiles = errors.New("no designer profiles loaded")
	ErrNoModel    = errors.New("vision model is not configured")
)

const uploadedImageLabel = "uploaded_image"

type Options struct {
	Profiles     *profile.Registry
	Platforms    *platform.Registry
	Model        vision.Model
	Loader       *imaging.Loader
	Logger       *slog.Logger
	MaxDimension int
	ColorCount   int
	ColorSeed    uint64
	Now          func() time.Time
}

type Pipeline struct {
	profiles  *profile.Registry
	platforms *platform.Registry
	model     vision.Model
	loader    *imaging.Loader
	synth     *report.Synthesizer
	logger    *slog.Logger
	maxDim    int
	colors    palette.Options
	now       func() time.Time
}

func New(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	loader := opts.Loader
	if loader == nil {
		loader = imaging.NewLoader(imaging.Options{})
	}
	maxDim := opts.MaxDimension
	if maxDim <= 0 {
		maxDim = imaging.DefaultMaxDimension
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Pipeline{
		profiles:  opts.Profiles,
		platforms: opts.Platforms,
		model:     opts.Model,
		loader:    loader,
		synth:     report.NewSynthesizer(report.SynthesizerOptions{Platforms: opts.Platforms, Logger: logger}),
		logger:    logger,
		maxDim:    maxDim,
		colors:    palette.Options{Count: opts.ColorCount, Seed: opts.ColorSeed},
		now:       now,
	}
}

type Request struct {
	// Image is a URL, data URI, local path or base64 payload.
	Image string
	// Label is recorded as the handoff image_url. It defaults to Image, or
	// "uploaded_image" for inline payloads.
	Label       string
	ProfileKey  string
	PlatformKey string
	Context     map[string]any
}

type Result struct {
	Handoff     handoff.Handoff
	Analysis    analysis.Result
	Profile     profile.Profile
	ProfileKey  string
	PlatformKey string
	Platform    platform.Config
	Warnings    []string
}

// ResolveProfile looks a profile up by key. With fallback set, an unknown key
// resolves to the first profile instead of failing.
func (p *Pipeline) ResolveProfile(key string, fallback bool) (string, profile.Profile, error) {
	if p.profiles == nil || p.profiles.Len() == 0 {
		return "", profile.Profile{}, ErrNoProfiles
	}
	if !fallback {
		prof, err := p.profiles.Get(key)
		return key, prof, err
	}
	return p.profiles.Resolve(key)
}

// resolvePlatform falls back to the first registered platform. With no
// platforms at all the requested key is used with an empty config.
func (p *Pipeline) resolvePlatform(key string) (string, platform.Config) {
	if p.platforms == nil {
		return key, platform.Config{}
	}
	used, cfg, err := p.platforms.Resolve(key)
	if err != nil {
		p.logger.Warn("no platform configurations loaded", "platform", key)
		return key, platform.Config{}
	}
	return used, cfg
}

// Analyze never fails because of the model: network errors, bad status codes
// and empty answers produce a handoff with zero confidence. Errors are
// returned for unknown profiles and unreadable images.
func (p *Pipeline) Analyze(ctx context.Context, req Request) (Result, error) {
	profileKey, prof, err := p.ResolveProfile(req.ProfileKey, false)
	if err != nil {
		return Result{}, err
	}
	platformKey, cfg := p.resolvePlatform(req.PlatformKey)

	img, err := p.loader.Load(ctx, req.Image)
	if err != nil {
		return Result{}, fmt.Errorf("load image: %w", err)
	}
	img = imaging.Resize(img, p.maxDim)

	var (
		colors []palette.Color
		parsed analysis.Result
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		colors = palette.Extract(img, p.colors)
		return nil
	})
	g.Go(func() error {
		dataURL, err := imaging.EncodeDataURL(img)
		if err != nil {
			return fmt.Errorf("encode image: %w", err)
		}
		parsed = p.callModel(gctx, vision.Request{
			SystemPrompt: prof.SystemPrompt(),
			Prompt:       vision.BuildPrompt(prof, cfg, platformKey, req.Context),
			ImageDataURL: dataURL,
		})
		return nil
	})
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	h := handoff.Assemble(handoff.Input{
		Analysis:    parsed,
		Colors:      colors,
		Profile:     prof,
		PlatformKey: platformKey,
		ImageRef:    imageLabel(req),
		Now:         p.now(),
	})
	warnings := handoff.Validate(h)

	p.logger.Info("analysis complete",
		"profile", profileKey,
		"platform", platformKey,
		"colors", len(colors),
		"components", len(h.Components),
		"confidence", h.ConfidenceScore,
		"fallback", parsed.Fallback,
		"warnings", len(warnings),
	)

	return Result{
		Handoff:     h,
		Analysis:    parsed,
		Profile:     prof,
		ProfileKey:  profileKey,
		PlatformKey: platformKey,
		Platform:    cfg,
		Warnings:    warnings,
	}, nil
}

func (p *Pipeline) callModel(ctx context.Context, req vision.Request) analysis.Result {
	if p.model == nil {
		return analysis.Failure(ErrNoModel)
	}
	text, err := p.model.Analyze(ctx, req)
	if err != nil {
		p.logger.Error("vision model call failed", "error", err)
		return analysis.Failure(err)
	}
	return analysis.Parse(text)
}

func imageLabel(req Request) string {
	if req.Label != "" {
		return req.Label
	}
	if strings.HasPrefix(strings.TrimSpace(req.Image), "data:") {
		return uploadedImageLabel
	}
	if len(req.Image) > 512 && !strings.Contains(req.Image, "://") {
		return uploadedImageLabel
	}
	return req.Image
}

type StepsRequest struct {
	Image      string
	Label      string
	ProfileKey string
	// Question replaces the profile's analysis steps when set.
	Question string
}

// AnalyzeSteps asks the model each of the profile's analysis steps in order.
// A model failure stops the run and is recorded in Steps.Error.
func (p *Pipeline) AnalyzeSteps(ctx context.Context, req StepsRequest) (report.Steps, profile.Profile, error) {
	_, prof, err := p.ResolveProfile(req.ProfileKey, false)
	if err != nil {
		return report.Steps{}, profile.Profile{}, err
	}

	img, err := p.loader.Load(ctx, req.Image)
	if err != nil {
		return report.Steps{}, prof, fmt.Errorf("load image: %w", err)
	}
	dataURL, err := imaging.EncodeDataURL(imaging.Resize(img, p.maxDim))
	if err != nil {
		return report.Steps{}, prof, fmt.Errorf("encode image: %w", err)
	}

	questions := prof.AnalysisSteps
	if q := strings.TrimSpace(req.Question); q != "" {
		questions = []string{q}
	}

	steps := report.Steps{
		ImageURL:   imageLabel(Request{Image: req.Image, Label: req.Label}),
		CustomText: req.Question,
		Timestamp:  p.now(),
	}
	if p.model == nil {
		steps.Error = ErrNoModel.Error()
		return steps, prof, nil
	}

	for i, q := range questions {
		p.logger.Info("analysis step", "profile", prof.Name, "step", i+1, "of", len(questions))
		text, err := p.model.Analyze(ctx, vision.Request{
			SystemPrompt: prof.SystemPrompt(),
			Prompt:       q,
			ImageDataURL: dataURL,
		})
		if err != nil {
			p.logger.Error("analysis step failed", "step", i+1, "error", err)
			steps.Error = err.Error()
			steps.Results = nil
			return steps, prof, nil
		}
		steps.Results = append(steps.Results, report.StepResult{
			Key:      fmt.Sprintf("analysis_%d", i+1),
			Question: q,
			Result:   text,
		})
	}
	return steps, prof, nil
}

// GenerateAllPlatforms analyzes the image once and synthesizes a prompt for
// every registered platform. A platform that fails to render maps to an
// "Error: ..." string rather than failing the whole run.
func (p *Pipeline) GenerateAllPlatforms(ctx context.Context, req Request, scenario string) (map[string]string, Result, error) {
	res, err := p.Analyze(ctx, req)
	if err != nil {
		return nil, Result{}, err
	}
	if p.platforms == nil {
		return map[string]string{}, res, nil
	}

	keys := p.platforms.Keys()
	prompts := make([]string, len(keys))
	var g errgroup.Group
	for i, key := range keys {
		g.Go(func() error {
			out, err := p.synth.Platform(key, scenario, res.Analysis, res.Handoff.DominantColors)
			if err != nil {
				p.logger.Error("platform prompt failed", "platform", key, "error", err)
				out = "Error: " + err.Error()
			}
			prompts[i] = out
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]string, len(keys))
	for i, key := range keys {
		out[key] = prompts[i]
	}
	return out, res, nil
}

// PlatformNames maps platform keys to display names.
func (p *Pipeline) PlatformNames() map[string]string {
	out := map[string]string{}
	if p.platforms == nil {
		return out
	}
	for key, cfg := range p.platforms.All() {
		out[key] = cfg.PlatformName
	}
	return out
}

// IsNotFound reports whether err means a profile or platform key is unknown.
func IsNotFound(err error) bool {
	return errors.Is(err, registry.ErrNotFound) || errors.Is(err, ErrNoProfiles)
}
