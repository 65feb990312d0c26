// Package imagetool fetches a generated artifact and re-encodes it for
// download. Pure I/O; the orchestration core never depends on it.
package imagetool

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"time"

	"github.com/chai2010/webp"
	"github.com/nfnt/resize"
)

// Format is a supported download encoding.
type Format string

const (
	FormatWebP Format = "webp"
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"

	webpQuality = 90
	jpegQuality = 92
)

// ContentType returns the MIME type for a format.
func (f Format) ContentType() string {
	switch f {
	case FormatWebP:
		return "image/webp"
	case FormatJPEG:
		return "image/jpeg"
	default:
		return "image/png"
	}
}

// ParseFormat validates a user-supplied format string, defaulting to png.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "png":
		return FormatPNG, nil
	case "webp":
		return FormatWebP, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	default:
		return "", fmt.Errorf("unsupported format %q", s)
	}
}

// Converter downloads and re-encodes artifacts.
type Converter struct {
	httpClient *http.Client
}

// NewConverter creates a converter with a download-sized timeout.
func NewConverter() *Converter {
	return &Converter{httpClient: &http.Client{Timeout: 2 * time.Minute}}
}

// Fetch downloads the artifact and re-encodes it in the requested format.
// A non-zero width scales the image down proportionally; upscaling is the
// backend's job, not ours, so larger widths are ignored.
func (c *Converter) Fetch(ctx context.Context, url string, format Format, width int) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download artifact: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("artifact download returned status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	return Convert(data, format, width)
}

// Convert re-encodes raw image bytes in the requested format, optionally
// scaled down to the given width.
func Convert(data []byte, format Format, width int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode artifact: %w", err)
	}

	if width > 0 && width < img.Bounds().Dx() {
		img = resize.Resize(uint(width), 0, img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	switch format {
	case FormatWebP:
		if err := webp.Encode(&buf, img, &webp.Options{Quality: webpQuality}); err != nil {
			return nil, fmt.Errorf("failed to encode webp: %w", err)
		}
	case FormatJPEG:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, fmt.Errorf("failed to encode jpeg: %w", err)
		}
	default:
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("failed to encode png: %w", err)
		}
	}
	return buf.Bytes(), nil
}
