// Package extract turns rendered HTML into structured link observations.
package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"linkwatch/internal/model"
)

// titleSelectors are tried in order; the first match wins and the document
// <title> is the terminal fallback.
var titleSelectors = []string{
	"h1.post-title span",
}

// dateStrategy extracts a publication date from the document, returning
// ("", false) when the page doesn't match.
type dateStrategy func(doc *goquery.Document) (string, bool)

// dateStrategies is an overwrite-on-match chain: every strategy is evaluated
// and a later match replaces an earlier one, so the list is ordered from
// lowest to highest priority. This is the opposite of title resolution and
// intentional: on pages matching several strategies the last listed one
// governs the final value.
var dateStrategies = []dateStrategy{
	selectorText("div.mob\\:pl-5.mob\\:mb-10 > p", 1),
	timeDatetime,
	topheadDate,
	selectorText("span.updated", 0),
	selectorText("p.post-meta span.tie-date", 0),
	selectorText("div.date", 0),
	selectorText("div.jeg_meta_date a", 0),
	selectorText("article#js-post-420640 dd", 0),
	selectorText("span.posts-date", 0),
}

// Extractor scans rendered pages for links whose href contains any of the
// configured brand tokens.
type Extractor struct {
	tokens []string
}

// NewExtractor creates an extractor for the given brand tokens.
func NewExtractor(tokens []string) *Extractor {
	return &Extractor{tokens: tokens}
}

// Extract parses one page and produces its article observation plus one row
// per qualifying link. Pages with no qualifying link produce exactly one row
// with a nil target link, so "we looked and found nothing" survives the
// snapshot round trip.
func (e *Extractor) Extract(articleURL, html string) (model.Article, []model.LinkObservation, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return model.Article{}, nil, fmt.Errorf("parse html for %s: %w", articleURL, err)
	}

	article := model.Article{
		URL:             articleURL,
		Title:           extractTitle(doc),
		PublicationDate: extractPublicationDate(doc),
	}

	rows := e.scanLinks(doc, article)
	return article, rows, nil
}

func (e *Extractor) scanLinks(doc *goquery.Document, article model.Article) []model.LinkObservation {
	var rows []model.LinkObservation
	seen := make(map[string]bool)

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if !e.matches(href) {
			return
		}
		// A page reports each literal link at most once.
		if seen[href] {
			return
		}
		seen[href] = true

		rows = append(rows, model.LinkObservation{
			ArticleURL:      article.URL,
			Title:           article.Title,
			PublicationDate: article.PublicationDate,
			TargetLink:      model.String(href),
			Nofollow:        model.Bool(isNofollow(s)),
			AnchorText:      model.String(strings.TrimSpace(s.Text())),
		})
	})

	if len(rows) == 0 {
		rows = append(rows, model.LinkObservation{
			ArticleURL:      article.URL,
			Title:           article.Title,
			PublicationDate: article.PublicationDate,
		})
	}
	return rows
}

func (e *Extractor) matches(href string) bool {
	for _, token := range e.tokens {
		if strings.Contains(href, token) {
			return true
		}
	}
	return false
}

// isNofollow checks the rel token set; a missing rel attribute means the link
// passes ranking credit.
func isNofollow(s *goquery.Selection) bool {
	rel, ok := s.Attr("rel")
	if !ok {
		return false
	}
	for _, token := range strings.Fields(rel) {
		if token == "nofollow" {
			return true
		}
	}
	return false
}

func extractTitle(doc *goquery.Document) string {
	for _, selector := range titleSelectors {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			return sel.Text()
		}
	}
	return doc.Find("title").First().Text()
}

func extractPublicationDate(doc *goquery.Document) *string {
	var result *string
	for _, strategy := range dateStrategies {
		if date, ok := strategy(doc); ok {
			result = model.String(date)
		}
	}
	return result
}

// selectorText matches when the selector yields more elements than index and
// returns the trimmed text of the element at that index.
func selectorText(selector string, index int) dateStrategy {
	return func(doc *goquery.Document) (string, bool) {
		sel := doc.Find(selector)
		if sel.Length() <= index {
			return "", false
		}
		return strings.TrimSpace(sel.Eq(index).Text()), true
	}
}

// timeDatetime reads the datetime attribute of the first <time> element.
func timeDatetime(doc *goquery.Document) (string, bool) {
	sel := doc.Find("time").First()
	if sel.Length() == 0 {
		return "", false
	}
	datetime, ok := sel.Attr("datetime")
	if !ok {
		return "", false
	}
	return datetime, true
}

// topheadDate strips the "On:" prefix some forum skins put in front of the date.
func topheadDate(doc *goquery.Document) (string, bool) {
	sel := doc.Find("span.tophead").First()
	if sel.Length() == 0 {
		return "", false
	}
	return strings.TrimSpace(strings.ReplaceAll(sel.Text(), "On:", "")), true
}
