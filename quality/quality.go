// Package quality scores document images against readability heuristics and
// recommends whether the pipeline should proceed with them.
package quality

import (
	"fmt"
	"image"
	"log/slog"
	"math"

	"go-kyc-verifier/images"
	"go-kyc-verifier/models"
)

// Config holds the quality gate thresholds. Zero values are filled with the
// defaults below.
type Config struct {
	MinImageWidth  int     `json:"min_image_width,omitempty"`
	MinImageHeight int     `json:"min_image_height,omitempty"`
	BlurThreshold  float64 `json:"blur_threshold,omitempty"`
	MinBrightness  float64 `json:"min_brightness,omitempty"`
	MaxBrightness  float64 `json:"max_brightness,omitempty"`
	MinContrast    float64 `json:"min_contrast,omitempty"`

	QualityThresholdProceed float64 `json:"quality_threshold_proceed,omitempty"`
	QualityThresholdCaution float64 `json:"quality_threshold_caution,omitempty"`
}

// ApplyDefaults fills unset thresholds.
func (c *Config) ApplyDefaults() {
	if c.MinImageWidth == 0 {
		c.MinImageWidth = 800
	}
	if c.MinImageHeight == 0 {
		c.MinImageHeight = 600
	}
	if c.BlurThreshold == 0 {
		c.BlurThreshold = 100
	}
	if c.MinBrightness == 0 {
		c.MinBrightness = 50
	}
	if c.MaxBrightness == 0 {
		c.MaxBrightness = 200
	}
	if c.MinContrast == 0 {
		c.MinContrast = 30
	}
	if c.QualityThresholdProceed == 0 {
		c.QualityThresholdProceed = 0.8
	}
	if c.QualityThresholdCaution == 0 {
		c.QualityThresholdCaution = 0.4
	}
}

const (
	// Images smaller than this on either side are rejected outright,
	// independent of the configured minimum resolution.
	absoluteMinDimension = 300

	// Edge detector hysteresis thresholds and the minimum edge density that
	// counts as "probably contains text".
	edgeLowThreshold   = 100
	edgeHighThreshold  = 200
	minTextEdgeDensity = 2.0

	checkCount = 5
)

// Gate evaluates document image quality. It is a pure function of the image
// and its configuration and is safe for concurrent use.
type Gate struct {
	cfg Config
}

// NewGate creates a quality gate with defaults applied to cfg.
func NewGate(cfg Config) *Gate {
	cfg.ApplyDefaults()
	return &Gate{cfg: cfg}
}

// Evaluate loads the image at path and runs the five quality checks over it.
// Undecodable or extremely small images hard-fail without running the checks.
func (g *Gate) Evaluate(path string) models.QualityAssessment {
	img, err := images.DecodeFile(path)
	if err != nil {
		slog.Debug("Quality gate failed to load image", "path", path, "error", err)
		return models.QualityAssessment{
			Quality:           models.QualityBad,
			RiskScore:         0.0,
			Signals:           []string{"Image could not be loaded"},
			RecommendedAction: models.ActionReject,
		}
	}

	gray := newGrayImage(img)
	if gray.width < absoluteMinDimension || gray.height < absoluteMinDimension {
		return models.QualityAssessment{
			Quality:           models.QualityBad,
			RiskScore:         0.0,
			Signals:           []string{"Extremely low resolution"},
			RecommendedAction: models.ActionReject,
		}
	}

	checks := []func(*grayImage) (bool, string){
		g.checkResolution,
		g.checkBlur,
		g.checkBrightness,
		g.checkContrast,
		g.checkTextLikelihood,
	}

	passed := 0
	signals := []string{}
	for _, check := range checks {
		ok, msg := check(gray)
		if ok {
			passed++
		} else {
			signals = append(signals, msg)
		}
	}

	riskScore := round2(float64(passed) / checkCount)

	var tier models.QualityTier
	var action models.RecommendedAction
	switch {
	case riskScore >= g.cfg.QualityThresholdProceed:
		tier = models.QualityGood
		action = models.ActionProceed
	case riskScore >= g.cfg.QualityThresholdCaution:
		tier = models.QualityRisky
		action = models.ActionCaution
	default:
		tier = models.QualityBad
		action = models.ActionReject
	}

	return models.QualityAssessment{
		Quality:           tier,
		RiskScore:         riskScore,
		Signals:           signals,
		RecommendedAction: action,
	}
}

func (g *Gate) checkResolution(img *grayImage) (bool, string) {
	if img.width < g.cfg.MinImageWidth || img.height < g.cfg.MinImageHeight {
		return false, fmt.Sprintf("Low resolution (%dx%d)", img.width, img.height)
	}
	return true, ""
}

func (g *Gate) checkBlur(img *grayImage) (bool, string) {
	score := img.laplacianVariance()
	if score < g.cfg.BlurThreshold {
		return false, fmt.Sprintf("Blur detected (score=%.1f)", score)
	}
	return true, ""
}

func (g *Gate) checkBrightness(img *grayImage) (bool, string) {
	mean := img.mean()
	if mean < g.cfg.MinBrightness {
		return false, fmt.Sprintf("Too dark (mean=%.1f)", mean)
	}
	if mean > g.cfg.MaxBrightness {
		return false, fmt.Sprintf("Too bright (mean=%.1f)", mean)
	}
	return true, ""
}

func (g *Gate) checkContrast(img *grayImage) (bool, string) {
	std := img.stddev()
	if std < g.cfg.MinContrast {
		return false, fmt.Sprintf("Low contrast (std=%.1f)", std)
	}
	return true, ""
}

// checkTextLikelihood estimates whether the image contains readable text by
// measuring edge density, as a cheap proxy rather than OCR confidence.
func (g *Gate) checkTextLikelihood(img *grayImage) (bool, string) {
	density := img.edgeDensity(edgeLowThreshold, edgeHighThreshold)
	if density < minTextEdgeDensity {
		return false, "Low text likelihood"
	}
	return true, ""
}

// grayImage is a float grayscale buffer the heuristics operate on.
type grayImage struct {
	width  int
	height int
	pix    []float64
}

func newGrayImage(img image.Image) *grayImage {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	g := &grayImage{width: w, height: h, pix: make([]float64, w*h)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, gr, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			// ITU-R BT.601 luma, 16-bit channels scaled back to 0..255.
			g.pix[y*w+x] = (0.299*float64(r) + 0.587*float64(gr) + 0.114*float64(b)) / 257.0
		}
	}
	return g
}

func (g *grayImage) at(x, y int) float64 {
	return g.pix[y*g.width+x]
}

func (g *grayImage) mean() float64 {
	var sum float64
	for _, v := range g.pix {
		sum += v
	}
	return sum / float64(len(g.pix))
}

func (g *grayImage) stddev() float64 {
	mean := g.mean()
	var sum float64
	for _, v := range g.pix {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(g.pix)))
}

// laplacianVariance applies the 4-neighbor Laplacian kernel over the interior
// pixels and returns the variance of the response. Low variance means the
// image has few sharp transitions and is probably blurry.
func (g *grayImage) laplacianVariance() float64 {
	if g.width < 3 || g.height < 3 {
		return 0
	}
	n := (g.width - 2) * (g.height - 2)
	responses := make([]float64, 0, n)
	var sum float64
	for y := 1; y < g.height-1; y++ {
		for x := 1; x < g.width-1; x++ {
			l := g.at(x, y-1) + g.at(x, y+1) + g.at(x-1, y) + g.at(x+1, y) - 4*g.at(x, y)
			responses = append(responses, l)
			sum += l
		}
	}
	mean := sum / float64(n)
	var varSum float64
	for _, l := range responses {
		d := l - mean
		varSum += d * d
	}
	return varSum / float64(n)
}

// edgeDensity runs a Sobel gradient with double-threshold hysteresis: strong
// edges pass outright, weak edges only survive next to a strong one. The
// returned density is scaled as if edges were 255-valued pixels, so it is
// comparable to the mean of a binary edge map.
func (g *grayImage) edgeDensity(low, high float64) float64 {
	if g.width < 3 || g.height < 3 {
		return 0
	}
	const (
		edgeNone = iota
		edgeWeak
		edgeStrong
	)
	marks := make([]uint8, g.width*g.height)
	for y := 1; y < g.height-1; y++ {
		for x := 1; x < g.width-1; x++ {
			gx := g.at(x+1, y-1) + 2*g.at(x+1, y) + g.at(x+1, y+1) -
				g.at(x-1, y-1) - 2*g.at(x-1, y) - g.at(x-1, y+1)
			gy := g.at(x-1, y+1) + 2*g.at(x, y+1) + g.at(x+1, y+1) -
				g.at(x-1, y-1) - 2*g.at(x, y-1) - g.at(x+1, y-1)
			mag := math.Hypot(gx, gy)
			switch {
			case mag >= high:
				marks[y*g.width+x] = edgeStrong
			case mag >= low:
				marks[y*g.width+x] = edgeWeak
			}
		}
	}

	edges := 0
	for y := 1; y < g.height-1; y++ {
		for x := 1; x < g.width-1; x++ {
			switch marks[y*g.width+x] {
			case edgeStrong:
				edges++
			case edgeWeak:
				if hasStrongNeighbor(marks, g.width, x, y) {
					edges++
				}
			}
		}
	}
	return 255.0 * float64(edges) / float64(g.width*g.height)
}

func hasStrongNeighbor(marks []uint8, width, x, y int) bool {
	const edgeStrong = 2
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			if marks[(y+dy)*width+(x+dx)] == edgeStrong {
				return true
			}
		}
	}
	return false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
