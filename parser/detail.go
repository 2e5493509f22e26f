package parser

import (
	"net/url"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/aluiziolira/go-books-catalog/models"
)

const (
	titleXPath        = `//div[contains(@class,"product_main")]/h1`
	priceXPath        = `//div[contains(@class,"product_main")]/p[contains(@class,"price_color")]`
	availabilityXPath = `//div[contains(@class,"product_main")]/p[contains(@class,"availability")]`
	ratingXPath       = `//div[contains(@class,"product_main")]/p[contains(@class,"star-rating")]`
	infoRowXPath      = `//table[contains(@class,"table-striped")]//tr`
	descriptionXPath  = `//div[@id="product_description"]/following-sibling::p[1]`
	imageXPath        = `//div[@id="product_gallery"]//img`
	breadcrumbXPath   = `//ul[contains(@class,"breadcrumb")]/li/a`
)

// Product information table headings.
const (
	infoUPC          = "UPC"
	infoPriceInclTax = "Price (incl. tax)"
	infoPriceExclTax = "Price (excl. tax)"
	infoAvailability = "Availability"
)

// UnknownCategory names books whose category cannot be determined.
const UnknownCategory = "Unknown"

// ExtractBookRecord parses a book detail page. Values are returned as shown
// on the page; the pipeline normalises prices, availability and ratings.
// categoryName overrides the breadcrumb when non-empty.
func ExtractBookRecord(pageURL, htmlText, categoryName string) (*models.BookRecord, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, &ExtractionError{URL: pageURL, Field: "page url", Err: err}
	}
	doc, err := htmlquery.Parse(strings.NewReader(htmlText))
	if err != nil {
		return nil, &ExtractionError{URL: pageURL, Field: "document", Err: err}
	}

	info := productInfo(doc)
	rec := &models.BookRecord{
		ProductURL: pageURL,
		Category:   strings.TrimSpace(categoryName),
	}

	if rec.Title = nodeText(htmlquery.FindOne(doc, titleXPath)); rec.Title == "" {
		return nil, missing(pageURL, "title")
	}
	if rec.UPC = info[infoUPC]; rec.UPC == "" {
		return nil, missing(pageURL, "upc")
	}

	rec.Price = info[infoPriceInclTax]
	if rec.Price == "" {
		rec.Price = nodeText(htmlquery.FindOne(doc, priceXPath))
	}
	if rec.Price == "" {
		return nil, missing(pageURL, "price")
	}
	rec.PriceExclTax = info[infoPriceExclTax]

	rec.Availability = info[infoAvailability]
	if rec.Availability == "" {
		rec.Availability = nodeText(htmlquery.FindOne(doc, availabilityXPath))
	}
	if rec.Availability == "" {
		return nil, missing(pageURL, "availability")
	}

	if rec.RatingText = ratingWord(htmlquery.FindOne(doc, ratingXPath)); rec.RatingText == "" {
		return nil, missing(pageURL, "rating")
	}

	rec.Description = nodeText(htmlquery.FindOne(doc, descriptionXPath))

	if img := htmlquery.FindOne(doc, imageXPath); img != nil {
		if src := strings.TrimSpace(htmlquery.SelectAttr(img, "src")); src != "" {
			if abs, err := resolve(base, src); err == nil {
				rec.ImageURL = abs
			}
		}
	}

	if rec.Category == "" {
		rec.Category = breadcrumbCategory(doc)
	}

	return rec, nil
}

// productInfo maps each heading of the product information table to its
// cell text.
func productInfo(doc *html.Node) map[string]string {
	info := make(map[string]string)
	for _, row := range htmlquery.Find(doc, infoRowXPath) {
		key := nodeText(htmlquery.FindOne(row, "./th"))
		if key == "" {
			continue
		}
		info[key] = nodeText(htmlquery.FindOne(row, "./td"))
	}
	return info
}

// ratingWord returns the rating from a class list like "star-rating Three".
func ratingWord(n *html.Node) string {
	if n == nil {
		return ""
	}
	for _, class := range strings.Fields(htmlquery.SelectAttr(n, "class")) {
		if class != "star-rating" {
			return class
		}
	}
	return ""
}

// breadcrumbCategory reads Home > Books > Category > Title.
func breadcrumbCategory(doc *html.Node) string {
	crumbs := htmlquery.Find(doc, breadcrumbXPath)
	if len(crumbs) < 3 {
		return UnknownCategory
	}
	if name := nodeText(crumbs[len(crumbs)-1]); name != "" {
		return name
	}
	return UnknownCategory
}

func nodeText(n *html.Node) string {
	if n == nil {
		return ""
	}
	return strings.TrimSpace(htmlquery.InnerText(n))
}
