package media

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Worker limits for attachment transfers
const (
	DownloadWorkers = 5
	UploadWorkers   = 3
)

// Fetcher downloads the resource at url
type Fetcher func(ctx context.Context, url string) ([]byte, error)

// File is a downloaded attachment
type File struct {
	Name string
	Data []byte
}

// Source is an attachment to download
type Source struct {
	Name string
	URL  string
}

// DownloadAll fetches sources with at most workers concurrent downloads.
// Failed downloads are logged and left out; input order is kept.
func DownloadAll(ctx context.Context, sources []Source, fetch Fetcher, workers int, logger *slog.Logger) []File {
	if workers <= 0 {
		workers = DownloadWorkers
	}
	results := make([]*File, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, src := range sources {
		g.Go(func() error {
			data, err := fetch(gctx, src.URL)
			if err != nil {
				if logger != nil {
					logger.Warn("image download failed", "file", src.Name, "error", err)
				}
				return nil
			}
			if len(data) == 0 {
				return nil
			}
			results[i] = &File{Name: src.Name, Data: data}
			return nil
		})
	}
	_ = g.Wait()

	files := make([]File, 0, len(sources))
	for _, f := range results {
		if f != nil {
			files = append(files, *f)
		}
	}
	return files
}

// UploadAll runs upload for every file with at most workers in flight and
// returns how many succeeded
func UploadAll(ctx context.Context, files []File, upload func(context.Context, File) error, workers int, logger *slog.Logger) int {
	if workers <= 0 {
		workers = UploadWorkers
	}
	ok := make([]bool, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, f := range files {
		g.Go(func() error {
			if err := upload(gctx, f); err != nil {
				if logger != nil {
					logger.Warn("attachment upload failed", "file", f.Name, "error", err)
				}
				return nil
			}
			ok[i] = true
			return nil
		})
	}
	_ = g.Wait()

	count := 0
	for _, v := range ok {
		if v {
			count++
		}
	}
	return count
}

// InlineImages replaces every non-data img src in html with a compressed
// data URI. Images that cannot be fetched or decoded keep their URL.
func InlineImages(ctx context.Context, html string, fetch Fetcher, logger *slog.Logger) string {
	seen := make(map[string]bool)
	for _, src := range ImageSources(html) {
		if seen[src] || strings.HasPrefix(src, "data:") {
			continue
		}
		seen[src] = true

		data, err := fetch(ctx, src)
		if err != nil {
			if logger != nil {
				logger.Warn("inline image download failed", "src", src, "error", err)
			}
			continue
		}
		uri, err := CompressToDataURI(data)
		if err != nil {
			if logger != nil {
				logger.Warn("inline image not decodable", "src", src, "error", err)
			}
			continue
		}
		html = strings.ReplaceAll(html, src, uri)
	}
	return html
}
