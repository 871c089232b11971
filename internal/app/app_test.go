package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vibe-mind/internal/config"
	"vibe-mind/internal/profile"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.ProfilesDir = filepath.Join(root, "profiles")
	cfg.PlatformsDir = filepath.Join(root, "platforms")
	cfg.OutputDir = filepath.Join(root, "output")
	cfg.IndexPath = filepath.Join(root, "output", "index.db")

	require.NoError(t, os.MkdirAll(cfg.ProfilesDir, 0o755))
	require.NoError(t, os.MkdirAll(cfg.PlatformsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.ProfilesDir, "product_designer.json"),
		[]byte(`{"name":"Product Designer","description":"Ships UI","analysis_steps":["Describe the layout"]}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.PlatformsDir, "v0.json"),
		[]byte(`{"platform_name":"V0"}`), 0o644))
	return cfg
}

func TestNew_WithoutVisionKey(t *testing.T) {
	cfg := testConfig(t)

	a, err := New(cfg, nil, Options{Index: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.Nil(t, a.Model)
	assert.NotNil(t, a.Index)
	assert.Equal(t, 1, a.Profiles.Len())
	assert.Equal(t, 1, a.Platforms.Len())

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["vision_configured"])
	assert.EqualValues(t, 1, body["profiles_loaded"])
}

func TestNew_RequireModel(t *testing.T) {
	cfg := testConfig(t)

	_, err := New(cfg, nil, Options{RequireModel: true})
	require.Error(t, err)

	cfg.GeminiAPIKey = "key"
	a, err := New(cfg, nil, Options{RequireModel: true})
	require.NoError(t, err)
	assert.NotNil(t, a.Model)
	assert.Nil(t, a.Index)
	assert.NoError(t, a.Close())
}

func TestNew_MissingConfigDirIsEmpty(t *testing.T) {
	cfg := testConfig(t)
	cfg.PlatformsDir = filepath.Join(t.TempDir(), "missing")

	a, err := New(cfg, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, a.Platforms.Len())
}

func TestNew_UnreadableConfigDir(t *testing.T) {
	cfg := testConfig(t)
	notDir := filepath.Join(t.TempDir(), "platforms.json")
	require.NoError(t, os.WriteFile(notDir, []byte("{}"), 0o644))
	cfg.PlatformsDir = notDir

	_, err := New(cfg, nil, Options{})
	assert.ErrorContains(t, err, "load configurations")
}

func TestWatchConfigs_DisabledReturnsImmediately(t *testing.T) {
	cfg := testConfig(t)
	cfg.WatchConfigs = false
	a, err := New(cfg, nil, Options{})
	require.NoError(t, err)

	assert.NoError(t, a.WatchConfigs(context.Background()))
}

func TestNewLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Default()
	cfg.LogLevel = "warn"
	logger := NewLogger(cfg, &buf)

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"k":"v"`)
}

func TestServe_KeepsRunningWhenWatchFails(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(cfg, nil, Options{})
	require.NoError(t, err)
	a.Config.WatchConfigs = true
	a.Config.ProfilesDir = filepath.Join(t.TempDir(), "missing")
	a.Profiles = profile.NewRegistry(a.Config.ProfilesDir, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx, "127.0.0.1:0") }()

	select {
	case err := <-done:
		t.Fatalf("server stopped early: %v", err)
	case <-time.After(300 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
