// Package vision talks to vision-capable language models. Every provider
// takes a system prompt, an instruction and one image, and returns free text.
package vision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

var (
	ErrEmptyResponse = errors.New("model returned no text")
	ErrNoAPIKey      = errors.New("model API key is not set")
)

const (
	defaultTemperature = 0.1
	defaultMaxTokens   = 2000
)

type Request struct {
	SystemPrompt string
	Prompt       string
	// ImageDataURL is a data:image/...;base64, URI.
	ImageDataURL string
	Temperature  float64
	MaxTokens    int
}

func (r Request) withDefaults() Request {
	if r.Temperature <= 0 {
		r.Temperature = defaultTemperature
	}
	if r.MaxTokens <= 0 {
		r.MaxTokens = defaultMaxTokens
	}
	return r
}

type Model interface {
	Analyze(ctx context.Context, req Request) (string, error)
}

type Config struct {
	Provider   string
	APIKey     string
	BaseURL    string
	APIVersion string
	Model      string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// New returns the client for cfg.Provider: "gemini" (default) or "openai".
func New(cfg Config) (Model, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNoAPIKey
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "gemini":
		return NewGemini(GeminiOptions{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			APIVersion: cfg.APIVersion,
			Model:      cfg.Model,
			HTTPClient: cfg.HTTPClient,
			Logger:     cfg.Logger,
		}), nil
	case "openai":
		return NewOpenAI(OpenAIOptions{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			HTTPClient: cfg.HTTPClient,
			Logger:     cfg.Logger,
		}), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}

func splitDataURL(dataURL, fallbackMime string) (mime, data string) {
	dataURL = strings.TrimSpace(dataURL)
	mime = fallbackMime
	if m := dataURLRegex.FindStringSubmatch(dataURL); len(m) == 2 {
		mime = m[1]
	}
	if idx := strings.IndexByte(dataURL, ','); idx >= 0 {
		return mime, dataURL[idx+1:]
	}
	return mime, dataURL
}
