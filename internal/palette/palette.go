// Package palette extracts the dominant colors of an image with k-means clustering.
package palette

import (
	"image"
	"image/color"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/lucasb-eyer/go-colorful"
)

type Color struct {
	Hex        string   `json:"hex"`
	RGB        [3]uint8 `json:"rgb"`
	Name       string   `json:"name"`
	Confidence float64  `json:"confidence"`
}

type Options struct {
	Count      int
	MaxSamples int
	// NearWhite drops pixels whose channel sum is at or above this value.
	NearWhite int
	Seed      uint64
}

const (
	defaultCount      = 5
	defaultMaxSamples = 10000
	defaultNearWhite  = 750
	defaultSeed       = 42

	maxIterations = 50
	restarts      = 4
)

type point [3]float64

func (o Options) withDefaults() Options {
	if o.Count <= 0 {
		o.Count = defaultCount
	}
	if o.MaxSamples <= 0 {
		o.MaxSamples = defaultMaxSamples
	}
	if o.NearWhite <= 0 {
		o.NearWhite = defaultNearWhite
	}
	if o.Seed == 0 {
		o.Seed = defaultSeed
	}
	return o
}

// Extract returns at most opts.Count colors ordered by descending confidence.
// Confidence is the share of sampled pixels assigned to the cluster. An image
// without qualifying pixels yields an empty slice.
func Extract(img image.Image, opts Options) []Color {
	opts = opts.withDefaults()
	if img == nil {
		return []Color{}
	}

	pixels := collect(img, opts.NearWhite)
	if len(pixels) == 0 {
		return []Color{}
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	if len(pixels) > opts.MaxSamples {
		pixels = sample(pixels, opts.MaxSamples, rng)
	}

	k := min(opts.Count, len(pixels))
	centroids, counts := bestKMeans(pixels, k, rng)

	total := float64(len(pixels))
	out := make([]Color, 0, k)
	for i, c := range centroids {
		if counts[i] == 0 {
			continue
		}
		rgb := [3]uint8{toChannel(c[0]), toChannel(c[1]), toChannel(c[2])}
		out = append(out, Color{
			Hex:        Hex(rgb),
			RGB:        rgb,
			Name:       Name(rgb),
			Confidence: float64(counts[i]) / total,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	capTotal(out)
	return out
}

// capTotal keeps the summed confidences at or below 1 when float rounding of
// the per-cluster shares overshoots. The excess comes off the smallest share.
func capTotal(colors []Color) {
	if len(colors) == 0 {
		return
	}
	for TotalConfidence(colors) > 1 {
		last := len(colors) - 1
		colors[last].Confidence = math.Nextafter(colors[last].Confidence, 0)
	}
}

// TotalConfidence sums the confidences in slice order.
func TotalConfidence(colors []Color) float64 {
	var sum float64
	for _, c := range colors {
		sum += c.Confidence
	}
	return sum
}

func toColorful(rgb [3]uint8) colorful.Color {
	return colorful.Color{R: float64(rgb[0]) / 255, G: float64(rgb[1]) / 255, B: float64(rgb[2]) / 255}
}

func Hex(rgb [3]uint8) string {
	return toColorful(rgb).Hex()
}

// Name buckets a color into a gray family or one of eight hue bands.
func Name(rgb [3]uint8) string {
	h, s, v := toColorful(rgb).Hsv()

	if s < 0.2 {
		switch {
		case v < 0.3:
			return "dark gray"
		case v > 0.8:
			return "light gray"
		default:
			return "gray"
		}
	}

	switch {
	case h < 15 || h >= 345:
		return "red"
	case h < 45:
		return "orange"
	case h < 75:
		return "yellow"
	case h < 165:
		return "green"
	case h < 195:
		return "cyan"
	case h < 255:
		return "blue"
	case h < 285:
		return "purple"
	default:
		return "pink"
	}
}

func collect(img image.Image, nearWhite int) []point {
	bounds := img.Bounds()
	out := make([]point, 0, bounds.Dx()*bounds.Dy())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if int(c.R)+int(c.G)+int(c.B) >= nearWhite {
				continue
			}
			out = append(out, point{float64(c.R), float64(c.G), float64(c.B)})
		}
	}
	return out
}

// sample is a partial Fisher-Yates shuffle; it reorders pixels in place.
func sample(pixels []point, n int, rng *rand.Rand) []point {
	for i := 0; i < n; i++ {
		j := i + rng.IntN(len(pixels)-i)
		pixels[i], pixels[j] = pixels[j], pixels[i]
	}
	return pixels[:n]
}

func bestKMeans(points []point, k int, rng *rand.Rand) ([]point, []int) {
	var (
		bestCentroids []point
		bestCounts    []int
		bestInertia   = math.Inf(1)
	)
	for i := 0; i < restarts; i++ {
		centroids, counts, inertia := kmeans(points, k, rng)
		if inertia < bestInertia {
			bestCentroids, bestCounts, bestInertia = centroids, counts, inertia
		}
	}
	return bestCentroids, bestCounts
}

func kmeans(points []point, k int, rng *rand.Rand) ([]point, []int, float64) {
	centroids := seedCentroids(points, k, rng)
	labels := make([]int, len(points))
	for i := range labels {
		labels[i] = -1
	}

	for iter := 0; iter < maxIterations; iter++ {
		changed := false
		for i, p := range points {
			nearest, _ := nearestCentroid(p, centroids)
			if labels[i] != nearest {
				labels[i] = nearest
				changed = true
			}
		}
		if !changed {
			break
		}

		sums := make([]point, k)
		counts := make([]int, k)
		for i, p := range points {
			l := labels[i]
			sums[l][0] += p[0]
			sums[l][1] += p[1]
			sums[l][2] += p[2]
			counts[l]++
		}
		for c := range centroids {
			if counts[c] == 0 {
				continue
			}
			n := float64(counts[c])
			centroids[c] = point{sums[c][0] / n, sums[c][1] / n, sums[c][2] / n}
		}
	}

	counts := make([]int, k)
	var inertia float64
	for i, p := range points {
		counts[labels[i]]++
		inertia += sqDist(p, centroids[labels[i]])
	}
	return centroids, counts, inertia
}

// seedCentroids is k-means++ initialisation.
func seedCentroids(points []point, k int, rng *rand.Rand) []point {
	centroids := make([]point, 0, k)
	centroids = append(centroids, points[rng.IntN(len(points))])

	dist := make([]float64, len(points))
	for i, p := range points {
		dist[i] = sqDist(p, centroids[0])
	}

	for len(centroids) < k {
		var sum float64
		for _, d := range dist {
			sum += d
		}

		next := rng.IntN(len(points))
		if sum > 0 {
			target := rng.Float64() * sum
			for i, d := range dist {
				target -= d
				if target <= 0 {
					next = i
					break
				}
			}
		}

		c := points[next]
		centroids = append(centroids, c)
		for i, p := range points {
			if d := sqDist(p, c); d < dist[i] {
				dist[i] = d
			}
		}
	}
	return centroids
}

func nearestCentroid(p point, centroids []point) (int, float64) {
	best, bestDist := 0, math.Inf(1)
	for i, c := range centroids {
		if d := sqDist(p, c); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, bestDist
}

func sqDist(a, b point) float64 {
	dr := a[0] - b[0]
	dg := a[1] - b[1]
	db := a[2] - b[2]
	return dr*dr + dg*dg + db*db
}

func toChannel(v float64) uint8 {
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
