// Package images picks the lead image of an article, downloads it, and hands
// it to a store under a deterministic name. Every failure degrades to "no
// image"; nothing here aborts an article.
package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/autonews-pipeline/internal/metrics"
)

// ErrNotImage reports a response that is not a 2xx image.
var ErrNotImage = errors.New("response is not an image")

// ErrTooSmall reports a downloaded body below the minimum size.
var ErrTooSmall = errors.New("image below minimum size")

// Store persists image bytes under a name, refusing to replace an existing
// entry with an error matching os.ErrExist.
type Store interface {
	Put(ctx context.Context, name, contentType string, data []byte) (string, error)
}

// HostWaiter throttles requests per host.
type HostWaiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Clock supplies the timestamp embedded in file names.
type Clock interface {
	Now() time.Time
}

// Config tunes probing and download limits.
type Config struct {
	MinBytes        int
	MaxBytes        int64
	ProbeTimeout    time.Duration
	DownloadTimeout time.Duration
	UserAgent       string
}

// Resolver turns image candidates into a stored file name.
type Resolver struct {
	cfg     Config
	client  *http.Client
	store   Store
	clock   Clock
	limiter HostWaiter
	logger  *zap.Logger
}

// New constructs a Resolver. client, limiter and logger may be nil.
func New(cfg Config, client *http.Client, store Store, clock Clock, limiter HostWaiter, logger *zap.Logger) *Resolver {
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 10 * time.Second
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = 15 * time.Second
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 20 << 20
	}
	return &Resolver{
		cfg:     cfg,
		client:  client,
		store:   store,
		clock:   clock,
		limiter: limiter,
		logger:  logger,
	}
}

// Resolve probes candidates in order and downloads the first one that looks
// like an image. It returns the stored file name, or nil when no image could
// be obtained. Only the first valid candidate is downloaded.
func (r *Resolver) Resolve(ctx context.Context, candidates []string, title, category string) *string {
	if len(candidates) == 0 {
		metrics.ObserveImage("none")
		return nil
	}
	for _, candidate := range candidates {
		if ctx.Err() != nil {
			return nil
		}
		if !r.Probe(ctx, candidate) {
			continue
		}
		name, err := r.Download(ctx, candidate, title, category)
		if err != nil {
			r.logger.Debug("image download failed", zap.String("image_url", candidate), zap.Error(err))
			return nil
		}
		r.logger.Debug("image stored", zap.String("image_url", candidate), zap.String("filename", name))
		return &name
	}
	metrics.ObserveImage("no_valid_candidate")
	return nil
}

// Probe reports whether url answers a HEAD request with a 2xx image response.
func (r *Resolver) Probe(ctx context.Context, url string) bool {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ProbeTimeout)
	defer cancel()

	resp, err := r.do(ctx, http.MethodHead, url)
	if err != nil {
		metrics.ObserveFetch("image_probe", 0)
		r.logger.Debug("image probe failed", zap.String("image_url", url), zap.Error(err))
		return false
	}
	defer resp.Body.Close() //nolint:errcheck // HEAD bodies are empty
	metrics.ObserveFetch("image_probe", resp.StatusCode)
	return isImageResponse(resp)
}

// Download fetches url and stores it. It returns the file name on success.
func (r *Resolver) Download(ctx context.Context, url, title, category string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.DownloadTimeout)
	defer cancel()

	resp, err := r.do(ctx, http.MethodGet, url)
	if err != nil {
		metrics.ObserveFetch("image", 0)
		metrics.ObserveImage("download_failed")
		return "", err
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body
	metrics.ObserveFetch("image", resp.StatusCode)
	if !isImageResponse(resp) {
		metrics.ObserveImage("download_failed")
		return "", fmt.Errorf("%w: status %d, content-type %q", ErrNotImage, resp.StatusCode, resp.Header.Get("Content-Type"))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, r.cfg.MaxBytes+1))
	if err != nil {
		metrics.ObserveImage("download_failed")
		return "", fmt.Errorf("read image body: %w", err)
	}
	if int64(len(data)) > r.cfg.MaxBytes {
		metrics.ObserveImage("download_failed")
		return "", fmt.Errorf("image exceeds %d bytes", r.cfg.MaxBytes)
	}
	if len(data) < r.cfg.MinBytes {
		metrics.ObserveImage("too_small")
		return "", fmt.Errorf("%w: %d bytes", ErrTooSmall, len(data))
	}

	ext := Extension(url)
	base := strings.TrimSuffix(Filename(title, category, r.now(), ext), ext)
	contentType := resp.Header.Get("Content-Type")
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		name := base + ext
		if attempt > 0 {
			name = base + "_" + strconv.Itoa(attempt+1) + ext
		}
		_, err := r.store.Put(ctx, name, contentType, data)
		if err == nil {
			metrics.ObserveImage("stored")
			return name, nil
		}
		if !errors.Is(err, os.ErrExist) {
			metrics.ObserveImage("store_failed")
			return "", fmt.Errorf("store image: %w", err)
		}
	}
	metrics.ObserveImage("store_failed")
	return "", fmt.Errorf("store image %s: %w", base+ext, os.ErrExist)
}

const maxNameAttempts = 5

func (r *Resolver) do(ctx context.Context, method, url string) (*http.Response, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx, url); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}
	if r.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", r.cfg.UserAgent)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	return resp, nil
}

func (r *Resolver) now() time.Time {
	if r.clock == nil {
		return time.Now()
	}
	return r.clock.Now()
}

func isImageResponse(resp *http.Response) bool {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false
	}
	ct := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Type")))
	return strings.HasPrefix(ct, "image/")
}

var extensions = []string{".jpg", ".jpeg", ".png", ".webp", ".gif"}

// Extension picks a file extension from the URL path, defaulting to ".jpg".
func Extension(rawURL string) string {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		path = u.Path
	}
	path = strings.ToLower(path)
	for _, ext := range extensions {
		if strings.Contains(path, ext) {
			return ext
		}
	}
	return ".jpg"
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9]`)

const maxTitleRunes = 50

// Filename builds "{category}_{title}_{unix seconds}{ext}" with every
// character outside [A-Za-z0-9] replaced by an underscore.
func Filename(title, category string, now time.Time, ext string) string {
	safeCategory := "general"
	if category != "" {
		safeCategory = unsafeChars.ReplaceAllString(category, "_")
	}
	safeTitle := "article"
	if title != "" {
		runes := []rune(title)
		if len(runes) > maxTitleRunes {
			runes = runes[:maxTitleRunes]
		}
		safeTitle = unsafeChars.ReplaceAllString(string(runes), "_")
	}
	return fmt.Sprintf("%s_%s_%d%s", safeCategory, safeTitle, now.Unix(), ext)
}
