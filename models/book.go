// Package models defines data structures for the scraper.
package models

import "time"

// Mode selects where a traversal starts.
type Mode string

const (
	ModeBook     Mode = "book"
	ModeCategory Mode = "category"
	ModeSite     Mode = "site"
)

// Scope is the starting point of one run.
type Scope struct {
	Mode Mode
	URL  string
}

// Category is a site-defined grouping with its own listing-page chain.
type Category struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ListingPage is one page of a category's book grid.
type ListingPage struct {
	Category Category
	URL      string
	NextURL  string
	BookURLs []string
}

// HasNext reports whether the pager links to another page.
func (lp *ListingPage) HasNext() bool {
	return lp.NextURL != ""
}

// BookRecord represents one book parsed from its detail page.
type BookRecord struct {
	Title         string    `csv:"title" json:"title"`
	Price         string    `csv:"price" json:"price"`
	PriceExclTax  string    `csv:"price_excl_tax" json:"price_excl_tax"`
	Availability  string    `csv:"availability" json:"availability"`
	Stock         int       `csv:"stock" json:"stock"`
	RatingText    string    `csv:"rating" json:"rating"`
	RatingNumeric int       `csv:"rating_numeric" json:"rating_numeric"`
	Description   string    `csv:"description" json:"description"`
	UPC           string    `csv:"upc" json:"upc"`
	Category      string    `csv:"category" json:"category"`
	ImageURL      string    `csv:"image_url" json:"image_url"`
	ImagePath     string    `csv:"image_path" json:"image_path"`
	ProductURL    string    `csv:"product_page_url" json:"product_page_url"`
	ScrapedAt     time.Time `csv:"scraped_at" json:"scraped_at"`
}

// RunResult holds the overall result of a scraping run
type RunResult struct {
	RunID        string
	Scope        Scope
	StartTime    time.Time
	EndTime      time.Time
	TotalCount   int
	ImageCount   int
	ErrorCount   int
	FailedURLs   []string
	ErrorsByType map[string]int
	RetryCount   int
	RequestCount int
	PageCount    int
}

// Duration returns the wall time of the run.
func (r *RunResult) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}
