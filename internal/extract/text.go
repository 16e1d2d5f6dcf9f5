package extract

import (
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// advertisementLabel is the Arabic "Advertisement" marker some sites append to
// titles and bodies.
const advertisementLabel = "إعلان"

// Normalize collapses whitespace runs to single spaces, trims, and removes a
// trailing standalone advertisement label.
func Normalize(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if !strings.HasSuffix(s, advertisementLabel) {
		return s
	}
	head := strings.TrimSuffix(s, advertisementLabel)
	if r, _ := utf8.DecodeLastRuneInString(head); head != "" && isWordRune(r) {
		return s
	}
	return strings.TrimSpace(head)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

// NormalizeURL makes src absolute: protocol-relative URLs get https, URLs
// already starting with "http" are kept, everything else resolves against base.
func NormalizeURL(src, base string) string {
	src = strings.TrimSpace(src)
	switch {
	case strings.HasPrefix(src, "//"):
		return "https:" + src
	case strings.HasPrefix(src, "http"):
		return src
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return src
	}
	ref, err := url.Parse(src)
	if err != nil {
		return src
	}
	return baseURL.ResolveReference(ref).String()
}

// joinText concatenates the trimmed text nodes under the selection, separated
// by sep. Script and style content is skipped.
func joinText(s *goquery.Selection, sep string) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript", "template":
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return strings.Join(parts, sep)
}
