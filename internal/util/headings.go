package util

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/zfogg/blog/backend/internal/models"
)

// ExtractHeadings builds a table of contents from the h1-h6 elements of an
// HTML body, in document order. Empty headings are skipped.
func ExtractHeadings(content string) []models.Heading {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil
	}

	var headings []models.Heading
	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, sel *goquery.Selection) {
		title := strings.Join(strings.Fields(sel.Text()), " ")
		if title == "" {
			return
		}
		tag := goquery.NodeName(sel)
		headings = append(headings, models.Heading{
			Title: title,
			Slug:  Slugify(title),
			Level: int(tag[1] - '0'),
			Order: len(headings) + 1,
		})
	})
	return headings
}
