package pipeline

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vibe-mind/internal/imaging"
	"vibe-mind/internal/platform"
	"vibe-mind/internal/profile"
	"vibe-mind/internal/registry"
	"vibe-mind/internal/report"
	"vibe-mind/internal/vision"
)

type fakeModel struct {
	mu      sync.Mutex
	replies []string
	err     error
	calls   []vision.Request
}

func (f *fakeModel) Analyze(_ context.Context, req vision.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return "", f.err
	}
	reply := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return reply, nil
}

func solidPNG(t *testing.T, c color.Color) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 40, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func writeConfigs(t *testing.T, logger *slog.Logger) (*profile.Registry, *platform.Registry) {
	t.Helper()
	root := t.TempDir()
	profiles := filepath.Join(root, "profiles")
	platforms := filepath.Join(root, "platforms")
	require.NoError(t, os.MkdirAll(profiles, 0o755))
	require.NoError(t, os.MkdirAll(platforms, 0o755))

	files := map[string]string{
		filepath.Join(profiles, "product_designer.json"): `{"name":"Product Designer","description":"Ships UI",
			"analysis_steps":["Describe this image","List the components"],
			"report_template":"# {profile_name}\n\n## Overview\n{overview}\n\n## Components\n{components}\n",
			"template_mapping":{"analysis_1":"overview","analysis_2":"components"}}`,
		filepath.Join(platforms, "v0.json"): `{"platform_name":"V0","strategy":{"keywords":["shadcn"],"approach":"Components"},
			"scenarios":{"enterprise_dashboard":{"prompt":"Build a dashboard"}}}`,
		filepath.Join(platforms, "lovable.json"): `{"platform_name":"Lovable","strategy":{"approach":"Flows"},
			"scenarios":{"enterprise_dashboard":{"prompt":"Build an app","user_roles":["admin"]}}}`,
	}
	for path, body := range files {
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}

	pr := profile.NewRegistry(profiles, logger)
	require.NoError(t, pr.Reload())
	pl := platform.NewRegistry(platforms, logger)
	require.NoError(t, pl.Reload())
	return pr, pl
}

func newPipeline(t *testing.T, m vision.Model, logger *slog.Logger) *Pipeline {
	t.Helper()
	pr, pl := writeConfigs(t, logger)
	return New(Options{
		Profiles:  pr,
		Platforms: pl,
		Model:     m,
		Logger:    logger,
		Now:       func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
	})
}

const loginJSON = `{"layout_analysis":"A login form","confidence_score":0.9,"components_identified":[{"type":"button","description":"Submit"}],"implementation_prompt":"Build a login form"}`

func TestAnalyze_LoginForm(t *testing.T) {
	m := &fakeModel{replies: []string{"Sure!\n" + loginJSON}}
	p := newPipeline(t, m, nil)

	res, err := p.Analyze(context.Background(), Request{
		Image:       solidPNG(t, color.NRGBA{R: 200, G: 30, B: 30, A: 255}),
		ProfileKey:  "product_designer",
		PlatformKey: "v0",
		Context:     map[string]any{"industry": "banking"},
	})
	require.NoError(t, err)

	h := res.Handoff
	require.Len(t, h.Components, 1)
	assert.Equal(t, "button", h.Components[0].Type)
	assert.Equal(t, 0.9, h.ConfidenceScore)
	assert.Equal(t, "v0", h.PlatformTarget)
	assert.Equal(t, "uploaded_image", h.ImageURL)
	require.Len(t, h.DominantColors, 1)
	assert.Equal(t, "#c81e1e", h.DominantColors[0].Hex)
	assert.Equal(t, 1.0, h.DominantColors[0].Confidence)
	assert.Empty(t, res.Warnings)

	require.Len(t, m.calls, 1)
	assert.Contains(t, m.calls[0].SystemPrompt, "You are an expert Product Designer")
	assert.Contains(t, m.calls[0].Prompt, "for V0 platform")
	assert.Contains(t, m.calls[0].Prompt, `"industry": "banking"`)
	assert.True(t, strings.HasPrefix(m.calls[0].ImageDataURL, "data:image/jpeg;base64,"))
}

func TestAnalyze_PlainTextFallback(t *testing.T) {
	p := newPipeline(t, &fakeModel{replies: []string{"I see a dashboard with charts."}}, nil)

	res, err := p.Analyze(context.Background(), Request{
		Image:      solidPNG(t, color.NRGBA{R: 20, G: 40, B: 200, A: 255}),
		ProfileKey: "product_designer",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Handoff.UncertainFlags)
	assert.Equal(t, "I see a dashboard with charts.", res.Handoff.PromptForPlatform)
	assert.True(t, res.Analysis.Fallback)
}

func TestAnalyze_UnknownPlatformFallsBack(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	p := newPipeline(t, &fakeModel{replies: []string{loginJSON}}, logger)

	res, err := p.Analyze(context.Background(), Request{
		Image:       solidPNG(t, color.Black),
		ProfileKey:  "product_designer",
		PlatformKey: "bolt",
	})
	require.NoError(t, err)
	assert.Equal(t, "lovable", res.PlatformKey)
	assert.Equal(t, "lovable", res.Handoff.PlatformTarget)
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "requested=bolt")
}

func TestAnalyze_WhiteImageHasNoColors(t *testing.T) {
	p := newPipeline(t, &fakeModel{replies: []string{loginJSON}}, nil)

	res, err := p.Analyze(context.Background(), Request{
		Image:      solidPNG(t, color.White),
		ProfileKey: "product_designer",
	})
	require.NoError(t, err)
	assert.Empty(t, res.Handoff.DominantColors)
	primary, _ := res.Handoff.Colors()
	assert.Equal(t, "#000000", primary)
	assert.Contains(t, res.Warnings, "No colors extracted")
}

func TestAnalyze_ModelFailureIsDegraded(t *testing.T) {
	p := newPipeline(t, &fakeModel{err: errors.New("gemini API 503 Service Unavailable")}, nil)

	res, err := p.Analyze(context.Background(), Request{
		Image:      solidPNG(t, color.Black),
		ProfileKey: "product_designer",
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Handoff.ConfidenceScore)
	require.Len(t, res.Handoff.UncertainFlags, 1)
	assert.Contains(t, res.Handoff.UncertainFlags[0], "API Error: gemini API 503")

	p = newPipeline(t, nil, nil)
	res, err = p.Analyze(context.Background(), Request{Image: solidPNG(t, color.Black), ProfileKey: "product_designer"})
	require.NoError(t, err)
	assert.Contains(t, res.Handoff.UncertainFlags[0], ErrNoModel.Error())
}

func TestAnalyze_InputErrors(t *testing.T) {
	p := newPipeline(t, &fakeModel{replies: []string{loginJSON}}, nil)

	_, err := p.Analyze(context.Background(), Request{Image: solidPNG(t, color.Black), ProfileKey: "ghost"})
	assert.ErrorIs(t, err, registry.ErrNotFound)
	assert.True(t, IsNotFound(err))

	_, err = p.Analyze(context.Background(), Request{Image: "  ", ProfileKey: "product_designer"})
	assert.ErrorIs(t, err, imaging.ErrEmptyReference)

	empty := New(Options{Profiles: profile.NewRegistry(t.TempDir(), nil)})
	_, err = empty.Analyze(context.Background(), Request{Image: solidPNG(t, color.Black)})
	assert.ErrorIs(t, err, ErrNoProfiles)
}

func TestResolveProfile_Fallback(t *testing.T) {
	p := newPipeline(t, nil, nil)
	key, prof, err := p.ResolveProfile("ghost", true)
	require.NoError(t, err)
	assert.Equal(t, "product_designer", key)
	assert.Equal(t, "Product Designer", prof.Name)
}

func TestAnalyzeSteps(t *testing.T) {
	m := &fakeModel{replies: []string{"A settings page", "Toggle, Save button"}}
	p := newPipeline(t, m, nil)

	steps, prof, err := p.AnalyzeSteps(context.Background(), StepsRequest{
		Image:      solidPNG(t, color.Black),
		Label:      "settings.png",
		ProfileKey: "product_designer",
	})
	require.NoError(t, err)
	require.Len(t, steps.Results, 2)
	assert.Equal(t, "analysis_2", steps.Results[1].Key)
	assert.Equal(t, "List the components", steps.Results[1].Question)
	assert.Equal(t, []string{"Describe this image", "List the components"}, []string{m.calls[0].Prompt, m.calls[1].Prompt})

	md, err := report.ProfileReport(prof, steps)
	require.NoError(t, err)
	assert.Equal(t, "# Product Designer\n\n## Overview\nA settings page\n\n## Components\nToggle, Save button\n", md)
}

func TestAnalyzeSteps_CustomQuestionAndFailure(t *testing.T) {
	m := &fakeModel{replies: []string{"Blue"}}
	p := newPipeline(t, m, nil)

	steps, _, err := p.AnalyzeSteps(context.Background(), StepsRequest{
		Image:      solidPNG(t, color.Black),
		ProfileKey: "product_designer",
		Question:   "What color is the header?",
	})
	require.NoError(t, err)
	require.Len(t, steps.Results, 1)
	assert.Equal(t, "What color is the header?", steps.Results[0].Question)

	p = newPipeline(t, &fakeModel{err: errors.New("timeout")}, nil)
	steps, _, err = p.AnalyzeSteps(context.Background(), StepsRequest{Image: solidPNG(t, color.Black), ProfileKey: "product_designer"})
	require.NoError(t, err)
	assert.Equal(t, "timeout", steps.Error)
	assert.Empty(t, steps.Results)
}

func TestRender(t *testing.T) {
	p := newPipeline(t, &fakeModel{replies: []string{loginJSON}}, nil)
	res, err := p.Analyze(context.Background(), Request{
		Image:       solidPNG(t, color.NRGBA{R: 10, G: 120, B: 60, A: 255}),
		ProfileKey:  "product_designer",
		PlatformKey: "v0",
	})
	require.NoError(t, err)

	out, err := p.Render(res, ModeJSON, RenderOptions{})
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "Product Designer", decoded["designer_profile"])

	out, err = p.Render(res, ModePrompt, RenderOptions{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "# V0 Implementation Prompt\n"))
	assert.Contains(t, out, "- button: Submit")

	out, err = p.Render(res, ModeReport, RenderOptions{MaxWords: 300})
	require.NoError(t, err)
	assert.Contains(t, out, "# Product Designer Analysis Report")

	out, err = p.Render(res, ModePlatform, RenderOptions{Scenario: "enterprise_dashboard"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Build a dashboard\n\nComponent specifications:\n- button: Submit"))

	_, err = p.Render(res, Mode("pdf"), RenderOptions{})
	assert.Error(t, err)
}

func TestRender_PlatformModeWithoutRegistry(t *testing.T) {
	p := New(Options{})

	_, err := p.Render(Result{PlatformKey: "v0"}, ModePlatform, RenderOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, registry.ErrNotFound)
	assert.True(t, IsNotFound(err))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" Prompt ")
	require.NoError(t, err)
	assert.Equal(t, ModePrompt, m)

	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeJSON, m)

	_, err = ParseMode("yaml")
	assert.Error(t, err)
}

func TestGenerateAllPlatforms(t *testing.T) {
	m := &fakeModel{replies: []string{loginJSON}}
	p := newPipeline(t, m, nil)

	prompts, res, err := p.GenerateAllPlatforms(context.Background(), Request{
		Image:      solidPNG(t, color.Black),
		ProfileKey: "product_designer",
	}, "enterprise_dashboard")
	require.NoError(t, err)
	require.Len(t, m.calls, 1)
	assert.Equal(t, 0.9, res.Handoff.ConfidenceScore)

	require.Len(t, prompts, 2)
	assert.True(t, strings.HasPrefix(prompts["v0"], "Build a dashboard"))
	assert.Contains(t, prompts["lovable"], "- Primary users: admin")
	assert.Equal(t, map[string]string{"lovable": "Lovable", "v0": "V0"}, p.PlatformNames())
}
