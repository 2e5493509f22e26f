package parser

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-books-catalog/models"
)

const (
	categorySelector = "div.side_categories ul.nav-list > li > ul > li > a"
	bookLinkSelector = "article.product_pod h3 a"
	nextPageSelector = "li.next a"
	headingSelector  = "div.page-header h1"
)

// ExtractCategoryLinks returns the categories listed in the side navigation,
// in document order. The top-level "Books" entry groups every category and
// is not returned.
func ExtractCategoryLinks(pageURL, html string) ([]models.Category, error) {
	base, doc, err := load(pageURL, html)
	if err != nil {
		return nil, err
	}

	var (
		categories []models.Category
		seen       = make(map[string]struct{})
	)
	doc.Find(categorySelector).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		name := strings.TrimSpace(sel.Text())
		if !ok || name == "" {
			return
		}
		abs, err := resolve(base, href)
		if err != nil {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		categories = append(categories, models.Category{Name: name, URL: abs})
	})

	if len(categories) == 0 {
		return nil, missing(pageURL, "categories")
	}
	return categories, nil
}

// ExtractBookLinksAndNextPage returns the detail URL of every book tile in
// document order and the absolute URL of the next listing page, which is
// empty on the last page.
func ExtractBookLinksAndNextPage(pageURL, html string) ([]string, string, error) {
	base, doc, err := load(pageURL, html)
	if err != nil {
		return nil, "", err
	}
	links, next := bookLinks(base, doc)
	return links, next, nil
}

// ExtractListingPage parses a listing page of category. A category known only
// by URL takes its name from the page heading.
func ExtractListingPage(pageURL, html string, category models.Category) (*models.ListingPage, error) {
	base, doc, err := load(pageURL, html)
	if err != nil {
		return nil, err
	}
	if category.Name == "" {
		category.Name = strings.TrimSpace(doc.Find(headingSelector).First().Text())
	}
	if category.URL == "" {
		category.URL = pageURL
	}
	links, next := bookLinks(base, doc)
	return &models.ListingPage{
		Category: category,
		URL:      pageURL,
		NextURL:  next,
		BookURLs: links,
	}, nil
}

func bookLinks(base *url.URL, doc *goquery.Document) ([]string, string) {
	links := make([]string, 0, 20)
	doc.Find(bookLinkSelector).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		abs, err := resolve(base, href)
		if err != nil {
			return
		}
		links = append(links, abs)
	})

	next := ""
	if href, ok := doc.Find(nextPageSelector).First().Attr("href"); ok && strings.TrimSpace(href) != "" {
		if abs, err := resolve(base, href); err == nil {
			next = abs
		}
	}
	return links, next
}

func load(pageURL, html string) (*url.URL, *goquery.Document, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, nil, &ExtractionError{URL: pageURL, Field: "page url", Err: err}
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, nil, &ExtractionError{URL: pageURL, Field: "document", Err: err}
	}
	return base, doc, nil
}

func resolve(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("parse href %q: %w", href, err)
	}
	abs := base.ResolveReference(ref)
	abs.Fragment = ""
	return abs.String(), nil
}
