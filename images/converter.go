// Package images normalizes uploaded document files into plain JPEG images
// that the rest of the pipeline can rely on.
package images

import (
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	// Register the decoders for every accepted upload format.
	_ "image/gif"
	_ "image/png"

	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Accepted upload extensions. HEIC and PDF uploads are not convertible here
// and are rejected before the pipeline runs.
var supportedExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

const (
	jpegQuality = 95

	// Uploads larger than this on either side are downscaled before the
	// quality gate sees them.
	maxDimension = 3000
)

// Converter turns a raw uploaded file into one or more normalized JPEGs.
type Converter interface {
	Convert(inputPath, outputDir string) ([]string, error)
}

// JPEGConverter is the production Converter.
type JPEGConverter struct{}

// NewJPEGConverter creates a converter that writes quality-95 JPEG files.
func NewJPEGConverter() *JPEGConverter {
	return &JPEGConverter{}
}

// Convert decodes the input file, normalizes it, and writes it as a JPEG in
// outputDir. It returns the list of produced image paths; uploads are assumed
// single-page, so the list currently always has one entry.
func (c *JPEGConverter) Convert(inputPath, outputDir string) ([]string, error) {
	ext := strings.ToLower(filepath.Ext(inputPath))
	if !supportedExts[ext] {
		return nil, fmt.Errorf("unsupported file type: %s", ext)
	}

	img, err := DecodeFile(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", ext, err)
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	img = capSize(img, maxDimension)

	outPath := filepath.Join(outputDir, uuid.NewString()+".jpg")
	out, err := os.Create(outPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	defer out.Close()

	if err := jpeg.Encode(out, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}

	bounds := img.Bounds()
	slog.Debug("Converted upload to JPEG", "input", filepath.Base(inputPath), "output", filepath.Base(outPath), "width", bounds.Dx(), "height", bounds.Dy())
	return []string{outPath}, nil
}

// DecodeFile opens and decodes an image file using every registered decoder.
func DecodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// capSize downscales img so neither side exceeds limit, keeping aspect ratio.
// Smaller images pass through untouched.
func capSize(src image.Image, limit int) image.Image {
	bw := src.Bounds().Dx()
	bh := src.Bounds().Dy()
	if bw <= limit && bh <= limit {
		return src
	}

	scale := math.Min(float64(limit)/float64(bw), float64(limit)/float64(bh))
	w := int(math.Max(1, math.Round(float64(bw)*scale)))
	h := int(math.Max(1, math.Round(float64(bh)*scale)))

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	// CatmullRom = high quality, good for photos and document text.
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)
	return dst
}
