package util

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gosimple/slug"
	"github.com/microcosm-cc/bluemonday"
)

var (
	htmlPolicy = newHTMLPolicy()

	// Letters (including accented Spanish ones), digits, whitespace and ' , . : ? -
	disallowedText = regexp.MustCompile(`[^a-zA-Z0-9\s',.:?\-ÁÉÍÓÚáéíóúÑñÜü]`)
)

func newHTMLPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"p", "h1", "h2", "ul", "ol", "li", "sub", "sup", "blockquote",
		"pre", "a", "img", "video", "span", "strong", "em", "u", "s", "br",
	)
	p.AllowAttrs("href", "title").OnElements("a")
	p.AllowURLSchemes("http", "https")
	p.RequireParseableURLs(true)
	return p
}

// SanitizeHTML keeps the rich-text subset used by post bodies and comments
// and strips every other tag and attribute.
func SanitizeHTML(content string) string {
	return htmlPolicy.Sanitize(content)
}

// SanitizeText strips all markup and drops characters outside the plain
// text alphabet. Used for titles, descriptions and keywords.
func SanitizeText(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err == nil {
		s = doc.Text()
	}
	return strings.TrimSpace(disallowedText.ReplaceAllString(s, ""))
}

// Slugify derives a URL slug from a title.
func Slugify(title string) string {
	return slug.Make(title)
}
