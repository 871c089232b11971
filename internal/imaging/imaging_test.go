package imaging

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 200, G: 10, B: 10, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestLoader_Sources(t *testing.T) {
	raw := pngBytes(t, 6, 4)
	b64 := base64.StdEncoding.EncodeToString(raw)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("content-type", "image/png")
		_, _ = w.Write(raw)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "shot.png")
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	loader := NewLoader(Options{HTTPClient: srv.Client()})
	ctx := context.Background()

	for name, ref := range map[string]string{
		"url":      srv.URL + "/shot.png",
		"data uri": "data:image/png;base64," + b64,
		"path":     path,
		"base64":   b64,
	} {
		t.Run(name, func(t *testing.T) {
			img, err := loader.Load(ctx, ref)
			require.NoError(t, err)
			assert.Equal(t, 6, img.Bounds().Dx())
			assert.Equal(t, 4, img.Bounds().Dy())
		})
	}

	_, err := loader.Load(ctx, srv.URL+"/missing.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestLoader_BadInput(t *testing.T) {
	loader := NewLoader(Options{})
	ctx := context.Background()

	_, err := loader.Load(ctx, "   ")
	assert.ErrorIs(t, err, ErrEmptyReference)

	_, err = loader.Load(ctx, "not an image at all!")
	assert.ErrorIs(t, err, ErrUnsupportedImage)

	_, err = loader.Load(ctx, "data:image/png;base64,"+base64.StdEncoding.EncodeToString([]byte("garbage")))
	assert.ErrorIs(t, err, ErrUnsupportedImage)
}

func TestResize(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 1024, 256))
	out := Resize(img, 512)
	assert.Equal(t, 512, out.Bounds().Dx())
	assert.Equal(t, 128, out.Bounds().Dy())

	tall := image.NewNRGBA(image.Rect(0, 0, 300, 900))
	out = Resize(tall, 512)
	assert.Equal(t, 170, out.Bounds().Dx())
	assert.Equal(t, 512, out.Bounds().Dy())

	small := image.NewNRGBA(image.Rect(0, 0, 100, 50))
	assert.Same(t, small, Resize(small, 512))
}

func TestEncodeDataURL(t *testing.T) {
	img, err := Decode(pngBytes(t, 8, 8))
	require.NoError(t, err)

	uri, err := EncodeDataURL(img)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(uri, "data:image/jpeg;base64,"))

	mime, payload := SplitDataURL(uri)
	assert.Equal(t, "image/jpeg", mime)

	back, err := base64.StdEncoding.DecodeString(payload)
	require.NoError(t, err)
	decoded, err := Decode(back)
	require.NoError(t, err)
	assert.Equal(t, 8, decoded.Bounds().Dx())
}
