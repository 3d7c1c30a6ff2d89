// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package scrape

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	// MaxReviews caps the reviews kept per page.
	MaxReviews = 5
	// NoReviews is reported when a page yields no review text.
	NoReviews = "No reviews found."
	// TitleKey holds the product title inside the specs map.
	TitleKey = "Product Title"
	// UnknownTitle is used when no title element exists.
	UnknownTitle = "N/A"

	genericSpecItems = 10
)

// Page is what an extractor pulls from one product page.
type Page struct {
	Specs    map[string]string
	Features []string
	Reviews  []string
}

// Extractor pulls a Page out of a parsed document.
type Extractor func(doc *goquery.Document) Page

// ExtractorFor picks the extractor for a host.
func ExtractorFor(host string) Extractor {
	host = strings.ToLower(host)
	switch {
	case strings.Contains(host, "amazon"):
		return extractAmazon
	case strings.Contains(host, "flipkart"):
		return extractFlipkart
	default:
		return extractGeneric
	}
}

func extractAmazon(doc *goquery.Document) Page {
	p := newPage(doc.Find("span#productTitle").First())

	doc.Find("table#productDetails_techSpec_section_1 tr").Each(func(_ int, row *goquery.Selection) {
		th, td := row.Find("th").First(), row.Find("td").First()
		if th.Length() > 0 && td.Length() > 0 {
			p.addSpec(text(th), text(td))
		}
	})
	doc.Find("#feature-bullets ul li span").Each(func(_ int, s *goquery.Selection) {
		p.addFeature(text(s))
	})
	doc.Find(".review-text-content span").Each(func(_ int, s *goquery.Selection) {
		p.addReview(text(s))
	})
	return p
}

func extractFlipkart(doc *goquery.Document) Page {
	p := newPage(doc.Find("span.B_NuCI").First())

	doc.Find("table._14cfVK tr").Each(func(_ int, row *goquery.Selection) {
		tds := row.ChildrenFiltered("td")
		if tds.Length() == 2 {
			p.addSpec(text(tds.Eq(0)), text(tds.Eq(1)))
		}
	})
	doc.Find("div._2418kt ul li").Each(func(_ int, s *goquery.Selection) {
		p.addFeature(text(s))
	})
	doc.Find("div.t-ZTKy div").Each(func(_ int, s *goquery.Selection) {
		p.addReview(text(s))
	})
	return p
}

func extractGeneric(doc *goquery.Document) Page {
	p := newPage(doc.Find("h1, h2").First())

	doc.Find("li").FilterFunction(func(i int, _ *goquery.Selection) bool {
		return i < genericSpecItems
	}).Each(func(_ int, li *goquery.Selection) {
		if key, value, ok := strings.Cut(text(li), ":"); ok {
			p.addSpec(key, value)
		}
	})

	// Outermost review containers only; nested ones repeat their parent's text.
	doc.Find("[class]").FilterFunction(reviewClass).Each(func(_ int, s *goquery.Selection) {
		if s.Parents().FilterFunction(reviewClass).Length() > 0 {
			return
		}
		p.addReview(text(s))
	})
	return p
}

func reviewClass(_ int, s *goquery.Selection) bool {
	class, _ := s.Attr("class")
	return strings.Contains(strings.ToLower(class), "review")
}

// text returns the visible text of s with runs of whitespace collapsed.
func text(s *goquery.Selection) string {
	s = s.Clone()
	s.Find("script, style").Remove()
	return strings.Join(strings.Fields(s.Text()), " ")
}

func newPage(title *goquery.Selection) Page {
	p := Page{Specs: map[string]string{TitleKey: UnknownTitle}}
	if t := text(title); t != "" {
		p.Specs[TitleKey] = t
	}
	return p
}

func (p *Page) addSpec(key, value string) {
	key = strings.TrimSpace(key)
	if key == "" {
		return
	}
	p.Specs[key] = strings.TrimSpace(value)
}

func (p *Page) addFeature(feature string) {
	if feature = strings.TrimSpace(feature); feature != "" {
		p.Features = append(p.Features, feature)
	}
}

func (p *Page) addReview(review string) {
	review = strings.TrimSpace(review)
	if review == "" || len(p.Reviews) >= MaxReviews {
		return
	}
	for _, r := range p.Reviews {
		if r == review {
			return
		}
	}
	p.Reviews = append(p.Reviews, review)
}
