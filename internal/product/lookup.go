package product

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a query yields no verifiable product.
var ErrNotFound = errors.New("no matching products found")

// Candidate is a product suggestion surfaced to the user. Price, when
// present, is non-negative; CanonicalURL, when present, is an absolute
// http(s) URL. Anything unverifiable is stripped before a Candidate is
// returned.
type Candidate struct {
	Title        string   `json:"title"`
	Price        *float64 `json:"price,omitempty"`
	ImageURL     string   `json:"image_url,omitempty"`
	CanonicalURL string   `json:"url,omitempty"`
}

// Lookup finds product candidates for a free-text query or a product
// URL. Implementations must return ErrNotFound instead of propagating
// invalid or unverifiable results.
type Lookup interface {
	Search(ctx context.Context, query string) ([]Candidate, error)
}
