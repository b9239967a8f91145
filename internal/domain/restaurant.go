package domain

import (
	"context"
	"fmt"
	"strings"
)

// PriceLevel follows the Places API 0–4 scale.
type PriceLevel int

const (
	PriceFree PriceLevel = iota
	PriceInexpensive
	PriceModerate
	PriceExpensive
	PriceVeryExpensive
)

// ParsePriceLevel returns the level and whether it is on the scale.
func ParsePriceLevel(n int) (PriceLevel, bool) {
	if n < int(PriceFree) || n > int(PriceVeryExpensive) {
		return 0, false
	}
	return PriceLevel(n), true
}

func (p PriceLevel) String() string {
	if p == PriceFree {
		return "Price level: free"
	}
	return "Price level: " + strings.Repeat("$", int(p))
}

// Photo references a place photo.
type Photo struct {
	Reference        string   `json:"reference"`
	HTMLAttributions []string `json:"html_attributions,omitempty"`
	Width            int      `json:"width"`
	Height           int      `json:"height"`
}

// Restaurant is a nearby place returned by a search.
type Restaurant struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Coordinates Coordinates `json:"coordinates"`
	PriceLevel  *PriceLevel `json:"price_level,omitempty"`
	Rating      *float64    `json:"rating,omitempty"`
	ReviewCount *int        `json:"review_count,omitempty"`
	Address     string      `json:"address,omitempty"`
	Website     string      `json:"website,omitempty"`
	Photo       *Photo      `json:"photo,omitempty"`
}

// RatingSummary renders rating and review count, e.g. "4.5 stars • 120 reviews".
func (r Restaurant) RatingSummary() string {
	var parts []string
	if r.Rating != nil {
		parts = append(parts, fmt.Sprintf("%.1f stars", *r.Rating))
	}
	if r.ReviewCount != nil {
		parts = append(parts, fmt.Sprintf("%d reviews", *r.ReviewCount))
	}
	if len(parts) == 0 {
		return "Unrated"
	}
	return strings.Join(parts, " • ")
}

// SearchResults packages the outcome of one nearby search.
type SearchResults struct {
	Origin      Fix          `json:"origin"`
	Terms       *string      `json:"terms,omitempty"`
	Restaurants []Restaurant `json:"restaurants"`
}

// SearchBackend runs a nearby search around a coordinate. Failures propagate
// as-is.
type SearchBackend interface {
	PerformSearch(ctx context.Context, at Coordinates, terms *string) (SearchResults, error)
}
