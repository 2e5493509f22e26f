// Package parser extracts categories, listing links and book records from
// catalogue pages, and normalises the extracted values.
package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/aluiziolira/go-books-catalog/models"
)

var (
	stockPattern  = regexp.MustCompile(`\d+`)
	unsafeNameRun = regexp.MustCompile(`[^A-Za-z0-9_-]+`)
)

// ValidateRecord ensures the extractor captured the required fields.
func ValidateRecord(r *models.BookRecord) error {
	if r == nil {
		return fmt.Errorf("record is nil")
	}
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("record missing title")
	}
	if strings.TrimSpace(r.UPC) == "" {
		return fmt.Errorf("record missing upc for %s", r.Title)
	}
	if strings.TrimSpace(r.Price) == "" {
		return fmt.Errorf("record missing price for %s", r.Title)
	}
	if strings.TrimSpace(r.RatingText) == "" {
		return fmt.Errorf("record missing rating for %s", r.Title)
	}
	return nil
}

// NormalizePrice removes the currency symbol and surrounding whitespace.
// Pages decoded as Latin-1 render the pound sign as "Â£", so both forms go.
func NormalizePrice(price string) string {
	price = strings.ReplaceAll(price, "Â", "")
	price = strings.ReplaceAll(price, "£", "")
	return strings.TrimSpace(price)
}

// NormalizeAvailability collapses the whitespace around the availability text.
func NormalizeAvailability(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// ParseStock returns the number of copies named in an availability string
// such as "In stock (22 available)", or 0 when none is given.
func ParseStock(availability string) int {
	match := stockPattern.FindString(availability)
	if match == "" {
		return 0
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0
	}
	return n
}

// RatingToNumeric converts the textual rating to a numeric scale.
func RatingToNumeric(rating string) int {
	switch strings.TrimSpace(rating) {
	case "Zero":
		return 0
	case "One":
		return 1
	case "Two":
		return 2
	case "Three":
		return 3
	case "Four":
		return 4
	case "Five":
		return 5
	default:
		return 0
	}
}

// SanitizeName turns s into a filesystem-safe name made of letters, digits,
// underscores and dashes.
func SanitizeName(s string) string {
	cleaned := strings.Trim(unsafeNameRun.ReplaceAllString(s, "_"), "_")
	if cleaned == "" {
		return "file"
	}
	return cleaned
}
