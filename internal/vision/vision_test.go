package vision

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vibe-mind/internal/platform"
	"vibe-mind/internal/profile"
)

const pixel = "data:image/png;base64,iVBORw0KGgo="

func TestGemini_Analyze(t *testing.T) {
	bodies := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "key-1", r.Header.Get("x-goog-api-key"))
		body, _ := io.ReadAll(r.Body)
		bodies <- body
		io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"{\"layout_analysis\":"},{"text":"\"grid\"}"}]}}]}`)
	}))
	defer srv.Close()

	c := NewGemini(GeminiOptions{APIKey: "key-1", BaseURL: srv.URL, Model: "gemini-test", HTTPClient: srv.Client()})
	text, err := c.Analyze(context.Background(), Request{SystemPrompt: "persona", Prompt: "look", ImageDataURL: pixel})
	require.NoError(t, err)
	assert.Equal(t, `{"layout_analysis":"grid"}`, text)

	var got map[string]any
	require.NoError(t, json.Unmarshal(<-bodies, &got))
	parts := got["contents"].([]any)[0].(map[string]any)["parts"].([]any)
	assert.Equal(t, "look", parts[0].(map[string]any)["text"])
	inline := parts[1].(map[string]any)["inlineData"].(map[string]any)
	assert.Equal(t, "image/png", inline["mimeType"])
	assert.Equal(t, "iVBORw0KGgo=", inline["data"])

	cfg := got["generationConfig"].(map[string]any)
	assert.Equal(t, 0.1, cfg["temperature"])
	assert.Equal(t, float64(2000), cfg["maxOutputTokens"])
	sys := got["systemInstruction"].(map[string]any)["parts"].([]any)[0].(map[string]any)
	assert.Equal(t, "persona", sys["text"])
}

func TestGemini_RetriesWithoutMimeType(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), "responseMimeType") {
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, `Invalid JSON payload received. Unknown name "responseMimeType"`)
			return
		}
		io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"plain answer"}]}}]}`)
	}))
	defer srv.Close()

	c := NewGemini(GeminiOptions{APIKey: "k", BaseURL: srv.URL, HTTPClient: srv.Client()})
	text, err := c.Analyze(context.Background(), Request{Prompt: "look"})
	require.NoError(t, err)
	assert.Equal(t, "plain answer", text)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGemini_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "blocked") {
			io.WriteString(w, `{"candidates":[],"promptFeedback":{"blockReason":"SAFETY"}}`)
			return
		}
		if strings.Contains(r.URL.Path, "empty") {
			io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"  "}]}}]}`)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, "boom")
	}))
	defer srv.Close()

	for model, check := range map[string]func(error){
		"blocked": func(err error) {
			assert.ErrorIs(t, err, ErrEmptyResponse)
			assert.Contains(t, err.Error(), "SAFETY")
		},
		"empty": func(err error) { assert.ErrorIs(t, err, ErrEmptyResponse) },
		"broken": func(err error) {
			assert.NotErrorIs(t, err, ErrEmptyResponse)
			assert.Contains(t, err.Error(), "500")
			assert.Contains(t, err.Error(), "boom")
		},
	} {
		c := NewGemini(GeminiOptions{APIKey: "k", BaseURL: srv.URL, Model: model, HTTPClient: srv.Client()})
		_, err := c.Analyze(context.Background(), Request{Prompt: "look"})
		require.Error(t, err, model)
		check(err)
	}
}

func TestOpenAI_Analyze(t *testing.T) {
	bodies := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("authorization"))
		body, _ := io.ReadAll(r.Body)
		bodies <- body
		io.WriteString(w, `{"choices":[{"message":{"content":"I see a dashboard with charts."}}],"usage":{"prompt_tokens":10,"completion_tokens":7}}`)
	}))
	defer srv.Close()

	c := NewOpenAI(OpenAIOptions{APIKey: "sk-test", BaseURL: srv.URL, HTTPClient: srv.Client()})
	text, err := c.Analyze(context.Background(), Request{SystemPrompt: "persona", Prompt: "look", ImageDataURL: pixel})
	require.NoError(t, err)
	assert.Equal(t, "I see a dashboard with charts.", text)

	body := <-bodies
	var got chatRequest
	var raw map[string]any
	require.NoError(t, json.Unmarshal(body, &got))
	require.NoError(t, json.Unmarshal(body, &raw))
	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.Equal(t, 2000, got.MaxTokens)
	assert.Equal(t, 0.1, got.Temperature)
	msgs := raw["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "persona", msgs[0].(map[string]any)["content"])
	user := msgs[1].(map[string]any)["content"].([]any)
	assert.Equal(t, pixel, user[1].(map[string]any)["image_url"].(map[string]any)["url"])
}

func TestOpenAI_EmptyAndErrors(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
		io.WriteString(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	c := NewOpenAI(OpenAIOptions{APIKey: "k", BaseURL: srv.URL, HTTPClient: srv.Client()})
	_, err := c.Analyze(context.Background(), Request{Prompt: "x"})
	assert.ErrorIs(t, err, ErrEmptyResponse)

	status.Store(http.StatusUnauthorized)
	_, err = c.Analyze(context.Background(), Request{Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestNew(t *testing.T) {
	m, err := New(Config{Provider: "openai", APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, m)

	m, err = New(Config{APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &GeminiClient{}, m)

	_, err = New(Config{Provider: "gemini"})
	assert.ErrorIs(t, err, ErrNoAPIKey)

	_, err = New(Config{Provider: "claude", APIKey: "k"})
	assert.Error(t, err)
}

func TestBuildPrompt(t *testing.T) {
	p := profile.Profile{Name: "Product Designer"}
	cfg := platform.Config{
		PlatformName: "V0",
		Strategy: platform.Strategy{
			Approach: "Component-first",
			Keywords: []string{"k1", "k2", "k3", "k4", "k5", "k6", "k7", "k8", "k9", "k10", "k11"},
		},
	}
	out := BuildPrompt(p, cfg, "v0", map[string]any{"industry": "fintech"})

	assert.True(t, strings.HasPrefix(out, "Analyze this UI/UX design image as a Product Designer for V0 platform.\n\n"))
	assert.Contains(t, out, "Project Context: {\n  \"industry\": \"fintech\"\n}")
	assert.Contains(t, out, "Platform-Specific Focus: Component-first\n")
	assert.Contains(t, out, "Key Terms to Use: k1, k2, k3, k4, k5, k6, k7, k8, k9, k10\n")
	assert.Contains(t, out, "- confidence_score (0-1)\n")
	assert.Contains(t, out, "- uncertain_elements (array of strings)\n")
	assert.Contains(t, out, "7. **Platform Implementation Prompt**: Detailed prompt optimized for V0")

	out = BuildPrompt(p, platform.Config{}, "lovable", nil)
	assert.Contains(t, out, "for lovable platform.")
	assert.NotContains(t, out, "Project Context")
}
