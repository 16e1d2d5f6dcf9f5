// Package sitemap turns a sitemap document into the ordered list of URLs a
// run will process. Both <urlset> and <sitemapindex> roots are accepted; only
// the <loc> values are read.
package sitemap

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/autonews-pipeline/internal/article"
)

// Fetcher retrieves sitemap documents.
type Fetcher struct {
	fetcher article.Fetcher
	logger  *zap.Logger
}

// New constructs a Fetcher over an HTTP page fetcher.
func New(fetcher article.Fetcher, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{fetcher: fetcher, logger: logger}
}

// URLs downloads the sitemap and returns every <loc> in document order.
// An unreachable sitemap or a non-2xx response is an error.
func (f *Fetcher) URLs(ctx context.Context, sitemapURL string) ([]string, error) {
	page, err := f.fetcher.Fetch(ctx, sitemapURL)
	if err != nil {
		return nil, fmt.Errorf("fetch sitemap %s: %w", sitemapURL, err)
	}
	urls := Parse(page.Body)
	f.logger.Info("sitemap loaded",
		zap.String("url", sitemapURL),
		zap.Int("urls", len(urls)),
		zap.Int("bytes", len(page.Body)),
	)
	return urls, nil
}

// Parse collects the trimmed text of every <loc> element regardless of
// namespace. Blank values are skipped. Malformed XML ends the scan and the
// locations read so far are returned.
func Parse(body []byte) []string {
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.Strict = false
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}

	var (
		urls  []string
		inLoc bool
		buf   strings.Builder
	)
	for {
		tok, err := dec.Token()
		if err != nil {
			// EOF or a syntax error; a truncated <loc> is dropped.
			return urls
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "loc" {
				inLoc = true
				buf.Reset()
			}
		case xml.CharData:
			if inLoc {
				buf.Write(t)
			}
		case xml.EndElement:
			if t.Name.Local == "loc" && inLoc {
				inLoc = false
				if loc := strings.TrimSpace(buf.String()); loc != "" {
					urls = append(urls, loc)
				}
			}
		}
	}
}

// Limit truncates urls to at most n entries. n <= 0 keeps everything.
func Limit(urls []string, n int) []string {
	if n <= 0 || n >= len(urls) {
		return urls
	}
	return urls[:n]
}
