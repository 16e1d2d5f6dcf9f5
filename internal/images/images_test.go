package images

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/autonews-pipeline/internal/storage/memory"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type imageServer struct {
	*httptest.Server
	gets atomic.Int32
}

func newImageServer(t *testing.T) *imageServer {
	t.Helper()
	s := &imageServer{}
	big := bytes.Repeat([]byte{0xFF}, 2048)
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			s.gets.Add(1)
		}
		switch {
		case strings.HasPrefix(r.URL.Path, "/big"):
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(big)
		case strings.HasPrefix(r.URL.Path, "/small"):
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write([]byte("tiny"))
		case strings.HasPrefix(r.URL.Path, "/html"):
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write(big)
		case strings.HasPrefix(r.URL.Path, "/headonly"):
			if r.Method == http.MethodHead {
				w.Header().Set("Content-Type", "image/gif")
				return
			}
			http.Error(w, "nope", http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(s.Close)
	return s
}

var testNow = time.Unix(1700000000, 0)

func newResolver(store Store) *Resolver {
	return New(Config{MinBytes: 1000}, nil, store, fixedClock{testNow}, nil, nil)
}

func TestResolveFirstValidCandidate(t *testing.T) {
	t.Parallel()

	srv := newImageServer(t)
	store := memory.NewImageStore()
	r := newResolver(store)

	got := r.Resolve(context.Background(), []string{
		srv.URL + "/missing.jpg",
		srv.URL + "/html",
		srv.URL + "/big.png",
		srv.URL + "/big-second.png",
	}, "Breaking News!", "World")

	require.NotNil(t, got)
	require.Equal(t, "World_Breaking_News__1700000000.png", *got)
	require.Equal(t, 1, store.Len())
	require.Equal(t, int32(1), srv.gets.Load())
}

func TestResolveTooSmallIsNotStored(t *testing.T) {
	t.Parallel()

	srv := newImageServer(t)
	store := memory.NewImageStore()
	r := newResolver(store)

	got := r.Resolve(context.Background(), []string{srv.URL + "/small.jpg", srv.URL + "/big.png"}, "t", "c")
	require.Nil(t, got)
	require.Zero(t, store.Len())
	// The first valid candidate is the only one downloaded.
	require.Equal(t, int32(1), srv.gets.Load())
}

func TestResolveDownloadFailureStops(t *testing.T) {
	t.Parallel()

	srv := newImageServer(t)
	store := memory.NewImageStore()
	r := newResolver(store)

	got := r.Resolve(context.Background(), []string{srv.URL + "/headonly.gif", srv.URL + "/big.png"}, "t", "c")
	require.Nil(t, got)
	require.Zero(t, store.Len())
}

func TestResolveNoCandidates(t *testing.T) {
	t.Parallel()

	require.Nil(t, newResolver(memory.NewImageStore()).Resolve(context.Background(), nil, "t", "c"))
}

func TestResolveUnreachableHost(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	require.Nil(t, newResolver(memory.NewImageStore()).Resolve(context.Background(), []string{url + "/a.jpg"}, "t", "c"))
}

func TestDownloadNameCollisionGetsSuffix(t *testing.T) {
	t.Parallel()

	srv := newImageServer(t)
	store := memory.NewImageStore()
	r := newResolver(store)

	first, err := r.Download(context.Background(), srv.URL+"/big.png", "Same", "Local")
	require.NoError(t, err)
	second, err := r.Download(context.Background(), srv.URL+"/big.png", "Same", "Local")
	require.NoError(t, err)

	require.Equal(t, "Local_Same_1700000000.png", first)
	require.Equal(t, "Local_Same_1700000000_2.png", second)
}

func TestDownloadStoreError(t *testing.T) {
	t.Parallel()

	srv := newImageServer(t)
	store := memory.NewImageStore()
	store.FailWith(errors.New("disk full"))

	_, err := newResolver(store).Download(context.Background(), srv.URL+"/big.png", "t", "c")
	require.ErrorContains(t, err, "disk full")
}

func TestDownloadRejectsNonImage(t *testing.T) {
	t.Parallel()

	srv := newImageServer(t)
	_, err := newResolver(memory.NewImageStore()).Download(context.Background(), srv.URL+"/html", "t", "c")
	require.ErrorIs(t, err, ErrNotImage)
}

func TestExtension(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"https://x.com/a/photo.JPG":       ".jpg",
		"https://x.com/a/photo.jpeg?w=10": ".jpeg",
		"https://x.com/a/photo.png":       ".png",
		"https://x.com/a/photo.webp":      ".webp",
		"https://x.com/a/anim.gif":        ".gif",
		"https://x.com/image?format=png":  ".jpg",
		"https://x.com/a/photo.png.jpg":   ".jpg",
		"https://x.com/uploads/2024/img":  ".jpg",
	}
	for in, want := range tests {
		require.Equal(t, want, Extension(in), in)
	}
}

func TestFilename(t *testing.T) {
	t.Parallel()

	require.Equal(t, "general_article_1700000000.jpg", Filename("", "", testNow, ".jpg"))
	require.Equal(t, "Politics_a_b_c_1700000000.png", Filename("a b-c", "Politics", testNow, ".png"))

	arabic := strings.Repeat("خ", 60)
	name := Filename(arabic, "World", testNow, ".jpg")
	require.Equal(t, "World_"+strings.Repeat("_", 50)+"_1700000000.jpg", name)
}
