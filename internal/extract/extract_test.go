package extract

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, page string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	require.NoError(t, err)
	return doc
}

func TestTitlePriority(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		page string
		want string
	}{
		{
			name: "entry title wins over plain h1",
			page: `<h1>Site</h1><h1 class="entry-title"> Breaking   <span>news</span> </h1>`,
			want: "Breaking news",
		},
		{
			name: "empty h1 falls through to h2 entry title",
			page: `<h1> </h1><h2 class="entry-title">Second</h2>`,
			want: "Second",
		},
		{
			name: "og title",
			page: `<head><meta property="og:title" content="From OG"><title>Doc</title></head>`,
			want: "From OG",
		},
		{
			name: "document title fallback",
			page: `<head><title> Doc title </title></head><body></body>`,
			want: "Doc title",
		},
		{
			name: "advertisement label stripped",
			page: `<h1>عنوان الخبر إعلان</h1>`,
			want: "عنوان الخبر",
		},
		{
			name: "nothing",
			page: `<div>no headings</div>`,
			want: "",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, New(Options{}).Title(parse(t, tc.page)))
		})
	}
}

func TestDate(t *testing.T) {
	t.Parallel()

	e := New(Options{})
	require.Equal(t, "2024-03-01T10:00:00Z",
		e.Date(parse(t, `<time datetime="2024-03-01T10:00:00Z">March 1</time>`)))
	require.Equal(t, "March 1, 2024",
		e.Date(parse(t, `<time> March 1,  2024 </time>`)))
	require.Equal(t, "2024-03-02",
		e.Date(parse(t, `<meta property="article:published_time" content="2024-03-02">`)))
	require.Equal(t, "yesterday",
		e.Date(parse(t, `<meta property="date" content="yesterday">`)))
	require.Equal(t, "", e.Date(parse(t, `<p>undated</p>`)))
}

func TestBodyContainerAndFallback(t *testing.T) {
	t.Parallel()

	e := New(Options{})

	page := `<div class="entry-content"><p>First   line</p><script>var x=1;</script><p>Second</p></div><p>outside</p>`
	require.Equal(t, "First line Second", e.Body(parse(t, page)))

	page = `<div class="post-content">  </div><article><p>From article</p></article>`
	require.Equal(t, "From article", e.Body(parse(t, page)))

	page = `<div><p>One</p><p>Two</p></div>`
	require.Equal(t, "One Two", e.Body(parse(t, page)))

	require.Equal(t, "", e.Body(parse(t, `<div>nothing here</div><span>really</span>`)))
}

func TestImageCandidates(t *testing.T) {
	t.Parallel()

	page := `<html><head>
<meta property="og:image" content="/og.jpg">
<meta name="twitter:image" href="//cdn.example.com/tw.png">
</head><body>
<img class="wp-post-image" src="https://cdn.example.com/hero.jpg">
<div class="entry-content">
  <img src="/wp-content/uploads/inline.webp" width="800" height="600">
  <img src="/tiny.gif" width="16" height="16">
  <img src="/wide.gif" width="900" height="16">
  <img src="/bogus.gif" width="auto" height="10">
  <img src="">
</div>
<figure><img src="https://cdn.example.com/hero.jpg"></figure>
</body></html>`

	got := New(Options{}).ImageCandidates(parse(t, page), "https://news.example.com/2024/story")
	require.Equal(t, []string{
		"https://cdn.example.com/hero.jpg",
		"https://news.example.com/wp-content/uploads/inline.webp",
		"https://news.example.com/wide.gif",
		"https://news.example.com/bogus.gif",
		"https://news.example.com/og.jpg",
		"https://cdn.example.com/tw.png",
	}, got)
}

func TestImageCandidatesCustomThreshold(t *testing.T) {
	t.Parallel()

	page := `<figure><img src="a.jpg" width="100" height="100"></figure>`
	e := New(Options{MinImageWidth: 50, MinImageHeight: 50})
	require.Equal(t, []string{"https://news.example.com/dir/a.jpg"},
		e.ImageCandidates(parse(t, page), "https://news.example.com/dir/page"))
}

func TestExtractMalformedNeverPanics(t *testing.T) {
	t.Parallel()

	doc := parse(t, `<html><h1>Broken <b>title<div class="entry-content"><p>body`)
	fields := New(Options{}).Extract(doc, "::not a url")
	require.True(t, strings.HasPrefix(fields.Title, "Broken title"))
	require.NotEmpty(t, fields.Body)
	require.Empty(t, fields.ImageCandidates)

	empty := New(Options{}).Extract(nil, "")
	require.Equal(t, Fields{}, empty)
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	require.Equal(t, "a b c", Normalize("  a\n\tb   c "))
	require.Equal(t, "", Normalize("إعلان"))
	require.Equal(t, "خبر", Normalize("خبر\nإعلان"))
	require.Equal(t, "كلمةإعلان", Normalize("كلمةإعلان"))
	require.Equal(t, "إعلان في الوسط", Normalize("إعلان في الوسط"))
}

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	base := "https://news.example.com/a/b.html"
	require.Equal(t, "https://cdn.example.com/x.jpg", NormalizeURL("//cdn.example.com/x.jpg", base))
	require.Equal(t, "http://other.example.com/y.png", NormalizeURL("http://other.example.com/y.png", base))
	require.Equal(t, "https://news.example.com/img/z.gif", NormalizeURL("/img/z.gif", base))
	require.Equal(t, "https://news.example.com/a/rel.jpg", NormalizeURL("rel.jpg", base))
}
