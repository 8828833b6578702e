// Package media prepares task images for upload and for AI vision input.
package media

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"regexp"
	"strings"

	// Decoders for the formats Jira attachments usually come in
	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Compression settings for inlined and vision images
const (
	MaxWidth    = 800
	JPEGQuality = 70
)

// ErrEmptyImage is returned for zero-length input
var ErrEmptyImage = errors.New("empty image")

// Compress decodes an image, scales it down to at most MaxWidth pixels
// wide and re-encodes it as JPEG
func Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width > MaxWidth {
		height = int(float64(height) * float64(MaxWidth) / float64(width))
		if height < 1 {
			height = 1
		}
		width = MaxWidth
	}

	// Flatten onto white so transparent PNGs do not turn black
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// DataURI wraps JPEG bytes in a data URI
func DataURI(jpegData []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpegData)
}

// CompressToDataURI is Compress followed by DataURI
func CompressToDataURI(data []byte) (string, error) {
	out, err := Compress(data)
	if err != nil {
		return "", err
	}
	return DataURI(out), nil
}

// DecodeDataURI returns the payload of a base64 data URI, or of a bare
// base64 string
func DecodeDataURI(uri string) ([]byte, error) {
	payload := uri
	if i := strings.IndexByte(uri, ','); i >= 0 && strings.HasPrefix(uri, "data:") {
		payload = uri[i+1:]
	}
	return base64.StdEncoding.DecodeString(payload)
}

var imgSrc = regexp.MustCompile(`<img[^>]+src=["']([^"']+)["']`)

// ImageSources returns the src attribute of every img tag, in order
func ImageSources(html string) []string {
	var out []string
	for _, m := range imgSrc.FindAllStringSubmatch(html, -1) {
		out = append(out, m[1])
	}
	return out
}
