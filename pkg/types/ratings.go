package types

import "strconv"

// Ratings counts reviews per star value ("1".."5").
type Ratings map[string]int

// Add records one review with the given star value.
func (r Ratings) Add(stars int) {
	r[strconv.Itoa(stars)]++
}

// NewRatings returns a distribution with every star value present.
func NewRatings() Ratings {
	return Ratings{"1": 0, "2": 0, "3": 0, "4": 0, "5": 0}
}

// RatingSummary is the live review aggregate attached to a product.
type RatingSummary struct {
	Rating      float64 `json:"rating"`
	ReviewCount int     `json:"reviewCount"`
}
