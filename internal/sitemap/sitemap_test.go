package sitemap

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/autonews-pipeline/internal/article"
)

type fakeFetcher struct {
	body []byte
	err  error
	got  string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (article.Page, error) {
	f.got = url
	if f.err != nil {
		return article.Page{}, f.err
	}
	return article.Page{URL: url, StatusCode: 200, Body: f.body}, nil
}

func TestParseURLSetPreservesOrder(t *testing.T) {
	t.Parallel()

	body := []byte(`<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc> https://news.example.com/b </loc><lastmod>2024-01-02</lastmod></url>
  <url><loc>https://news.example.com/a</loc></url>
  <url><loc>   </loc></url>
  <url><loc>https://news.example.com/c</loc></url>
</urlset>`)

	require.Equal(t, []string{
		"https://news.example.com/b",
		"https://news.example.com/a",
		"https://news.example.com/c",
	}, Parse(body))
}

func TestParseSitemapIndex(t *testing.T) {
	t.Parallel()

	body := []byte(`<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>https://news.example.com/sitemap-1.xml</loc></sitemap>
  <sitemap><loc>https://news.example.com/sitemap-2.xml</loc></sitemap>
</sitemapindex>`)

	require.Equal(t, []string{
		"https://news.example.com/sitemap-1.xml",
		"https://news.example.com/sitemap-2.xml",
	}, Parse(body))
}

func TestParseNonUTF8Declaration(t *testing.T) {
	t.Parallel()

	body := []byte(`<?xml version="1.0" encoding="windows-1256"?><urlset><url><loc>https://news.example.com/x</loc></url></urlset>`)
	require.Equal(t, []string{"https://news.example.com/x"}, Parse(body))
}

func TestParseMalformedKeepsPrefix(t *testing.T) {
	t.Parallel()

	body := []byte(`<urlset><url><loc>https://news.example.com/1</loc></url><url><loc>https://news.exa`)
	require.Equal(t, []string{"https://news.example.com/1"}, Parse(body))
}

func TestParseEmptyAndGarbage(t *testing.T) {
	t.Parallel()

	require.Empty(t, Parse(nil))
	require.Empty(t, Parse([]byte("not xml at all")))
	require.Empty(t, Parse([]byte("<urlset></urlset>")))
}

func TestURLsFetchesAndParses(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{body: []byte(`<urlset><url><loc>https://a</loc></url></urlset>`)}
	urls, err := New(f, nil).URLs(context.Background(), "https://news.example.com/sitemap.xml")
	require.NoError(t, err)
	require.Equal(t, []string{"https://a"}, urls)
	require.Equal(t, "https://news.example.com/sitemap.xml", f.got)
}

func TestURLsFetchError(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{err: errors.New("connection refused")}
	_, err := New(f, nil).URLs(context.Background(), "https://news.example.com/sitemap.xml")
	require.ErrorContains(t, err, "connection refused")
}

func TestLimit(t *testing.T) {
	t.Parallel()

	urls := []string{"a", "b", "c"}
	require.Equal(t, urls, Limit(urls, 0))
	require.Equal(t, []string{"a", "b"}, Limit(urls, 2))
	require.Equal(t, urls, Limit(urls, 10))
}
