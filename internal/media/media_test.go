package media

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestCompressScalesWideImages(t *testing.T) {
	out, err := Compress(pngBytes(t, 1600, 400))
	require.NoError(t, err)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 800, cfg.Width)
	assert.Equal(t, 200, cfg.Height)
}

func TestCompressKeepsSmallImages(t *testing.T) {
	out, err := Compress(pngBytes(t, 120, 80))
	require.NoError(t, err)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 120, cfg.Width)
	assert.Equal(t, 80, cfg.Height)
}

func TestCompressErrors(t *testing.T) {
	_, err := Compress(nil)
	assert.ErrorIs(t, err, ErrEmptyImage)

	_, err = Compress([]byte("not an image"))
	assert.Error(t, err)
}

func TestDataURIRoundTrip(t *testing.T) {
	uri := DataURI([]byte("jpeg"))
	assert.True(t, strings.HasPrefix(uri, "data:image/jpeg;base64,"))

	data, err := DecodeDataURI(uri)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(data))
}

func TestImageSources(t *testing.T) {
	html := `<p><img src="/rest/api/3/attachment/1" alt="a"/> text <img alt="b" src='https://cdn/x.png'></p>`
	assert.Equal(t, []string{"/rest/api/3/attachment/1", "https://cdn/x.png"}, ImageSources(html))
	assert.Empty(t, ImageSources("<p>no images</p>"))
}

func TestDownloadAllKeepsOrderAndSkipsFailures(t *testing.T) {
	sources := []Source{{Name: "a.png", URL: "a"}, {Name: "b.png", URL: "b"}, {Name: "c.png", URL: "c"}}
	fetch := func(ctx context.Context, url string) ([]byte, error) {
		if url == "b" {
			return nil, errors.New("boom")
		}
		return []byte(url), nil
	}

	files := DownloadAll(context.Background(), sources, fetch, 2, nil)
	require.Len(t, files, 2)
	assert.Equal(t, "a.png", files[0].Name)
	assert.Equal(t, "c.png", files[1].Name)
}

func TestUploadAllCountsSuccesses(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	files := []File{{Name: "1"}, {Name: "2"}, {Name: "3"}, {Name: "4"}, {Name: "5"}}

	count := UploadAll(context.Background(), files, func(ctx context.Context, f File) error {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			cur := maxInFlight.Load()
			if n <= cur || maxInFlight.CompareAndSwap(cur, n) {
				break
			}
		}
		if f.Name == "3" {
			return errors.New("rejected")
		}
		return nil
	}, UploadWorkers, nil)

	assert.Equal(t, 4, count)
	assert.LessOrEqual(t, maxInFlight.Load(), int32(UploadWorkers))
}

func TestInlineImages(t *testing.T) {
	img := pngBytes(t, 10, 10)
	html := `<p><img src="/ok"/><img src="/broken"/><img src="data:image/png;base64,AAAA"/></p>`

	var calls []string
	out := InlineImages(context.Background(), html, func(ctx context.Context, url string) ([]byte, error) {
		calls = append(calls, url)
		if url == "/broken" {
			return nil, errors.New("404")
		}
		return img, nil
	}, nil)

	assert.Equal(t, []string{"/ok", "/broken"}, calls)
	assert.NotContains(t, out, `src="/ok"`)
	assert.Contains(t, out, `src="data:image/jpeg;base64,`)
	assert.Contains(t, out, `src="/broken"`)
}
