package imaging

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	DefaultMaxDimension = 512
	jpegQuality         = 85
	maxDownloadBytes    = 25 << 20
)

var (
	ErrEmptyReference   = errors.New("image reference is empty")
	ErrUnsupportedImage = errors.New("unsupported image data")
)

var dataURLRegex = regexp.MustCompile(`^data:([^;,]+)?(;[^,]*)?,`)

type Options struct {
	HTTPClient *http.Client
}

type Loader struct {
	httpClient *http.Client
}

func NewLoader(opts Options) *Loader {
	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &Loader{httpClient: client}
}

// Load resolves ref as an http(s) URL, a data URI, a local path or, failing
// those, a bare base64 payload, and decodes it.
func (l *Loader) Load(ctx context.Context, ref string) (image.Image, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, ErrEmptyReference
	}

	if strings.HasPrefix(ref, "data:") {
		data, err := decodeDataURL(ref)
		if err != nil {
			return nil, err
		}
		return Decode(data)
	}

	if u, err := url.Parse(ref); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		data, err := l.fetch(ctx, ref)
		if err != nil {
			return nil, err
		}
		return Decode(data)
	}

	if info, err := os.Stat(ref); err == nil && !info.IsDir() {
		data, err := os.ReadFile(ref)
		if err != nil {
			return nil, fmt.Errorf("read image %s: %w", ref, err)
		}
		return Decode(data)
	}

	data, err := base64.StdEncoding.DecodeString(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: not a url, file or base64 payload", ErrUnsupportedImage)
	}
	return Decode(data)
}

func (l *Loader) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch image %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return data, nil
}

func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyReference
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return img, nil
}

func decodeDataURL(value string) ([]byte, error) {
	if !dataURLRegex.MatchString(value) {
		return nil, fmt.Errorf("%w: malformed data uri", ErrUnsupportedImage)
	}
	payload := value[strings.IndexByte(value, ',')+1:]
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: decode base64: %v", ErrUnsupportedImage, err)
	}
	return data, nil
}

// Resize scales img so that its longer side is at most maxDim, keeping the
// aspect ratio. Images already within bounds are returned as is.
func Resize(img image.Image, maxDim int) image.Image {
	if maxDim <= 0 {
		maxDim = DefaultMaxDimension
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if max(w, h) <= maxDim {
		return img
	}

	var nw, nh int
	if w > h {
		nw = maxDim
		nh = int(float64(h) * float64(maxDim) / float64(w))
	} else {
		nh = maxDim
		nw = int(float64(w) * float64(maxDim) / float64(h))
	}
	nw = max(nw, 1)
	nh = max(nh, 1)

	dst := image.NewNRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// EncodeDataURL flattens transparency onto white and returns a JPEG data URI.
func EncodeDataURL(img image.Image) (string, error) {
	b := img.Bounds()
	flat := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(flat, flat.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(flat, flat.Bounds(), img, b.Min, draw.Over)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, flat, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", fmt.Errorf("encode jpeg: %w", err)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// SplitDataURL returns the mime type and base64 payload of a data URI.
func SplitDataURL(value string) (string, string) {
	mime := "image/jpeg"
	if m := dataURLRegex.FindStringSubmatch(value); len(m) > 1 && m[1] != "" {
		mime = m[1]
	}
	if idx := strings.IndexByte(value, ','); idx >= 0 {
		return mime, value[idx+1:]
	}
	return mime, value
}
