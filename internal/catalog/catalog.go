// Package catalog filters and orders the car collection for listing pages.
package catalog

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"rentacar/internal/models"
)

type SortKey string

const (
	SortPopular   SortKey = "popular"
	SortPriceLow  SortKey = "price-low"
	SortPriceHigh SortKey = "price-high"
	SortRating    SortKey = "rating"
	SortNewest    SortKey = "newest"
)

// ParseSortKey maps unknown or empty keys to SortPopular.
func ParseSortKey(s string) SortKey {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case SortPriceLow, SortPriceHigh, SortRating, SortNewest:
		return k
	}
	return SortPopular
}

// Filter is a conjunction of predicates; zero fields match everything.
type Filter struct {
	Search       string
	Type         models.CarType
	Brand        string
	Transmission models.Transmission
	Fuel         models.Fuel
	Seats        int
	MinPrice     int64
	MaxPrice     int64
	Location     string
	Sort         SortKey
}

// ParseFilter decodes the listing page query string. Malformed numbers are
// treated as absent.
func ParseFilter(q url.Values) Filter {
	f := Filter{
		Search:       strings.TrimSpace(q.Get("search")),
		Type:         models.CarType(strings.TrimSpace(q.Get("type"))),
		Brand:        strings.TrimSpace(q.Get("brand")),
		Transmission: models.Transmission(strings.TrimSpace(q.Get("transmission"))),
		Fuel:         models.Fuel(strings.TrimSpace(q.Get("fuel"))),
		Seats:        int(parsePositive(q.Get("seats"))),
		MinPrice:     parsePositive(q.Get("minPrice")),
		MaxPrice:     parsePositive(q.Get("maxPrice")),
		Location:     strings.TrimSpace(q.Get("location")),
		Sort:         ParseSortKey(q.Get("sort")),
	}
	if t, ok := models.ParseTransmission(string(f.Transmission)); ok {
		f.Transmission = t
	}
	if fu, ok := models.ParseFuel(string(f.Fuel)); ok {
		f.Fuel = fu
	}
	return f
}

func parsePositive(s string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// ActiveCount is the number of predicates in use, counting a non-default sort.
func (f Filter) ActiveCount() int {
	n := 0
	for _, set := range []bool{
		f.Search != "",
		f.Type != "",
		f.Brand != "",
		f.Transmission != "",
		f.Fuel != "",
		f.Seats > 0,
		f.MinPrice > 0,
		f.MaxPrice > 0,
		f.Location != "",
		f.Sort != "" && f.Sort != SortPopular,
	} {
		if set {
			n++
		}
	}
	return n
}

// Match reports whether a single car satisfies every predicate.
func (f Filter) Match(c *models.Car) bool {
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(c.Name), needle) &&
			!strings.Contains(strings.ToLower(c.Brand), needle) {
			return false
		}
	}
	if f.Type != "" && !strings.EqualFold(string(c.Type), string(f.Type)) {
		return false
	}
	if f.Brand != "" && c.Brand != f.Brand {
		return false
	}
	if f.Transmission != "" && c.Transmission != f.Transmission {
		return false
	}
	if f.Fuel != "" && c.Fuel != f.Fuel {
		return false
	}
	if f.Seats > 0 && c.Seats < f.Seats {
		return false
	}
	if f.MinPrice > 0 && c.PricePerDay < f.MinPrice {
		return false
	}
	if f.MaxPrice > 0 && c.PricePerDay > f.MaxPrice {
		return false
	}
	if f.Location != "" && c.Location != f.Location {
		return false
	}
	return true
}

// Apply returns the matching cars in the requested order. The result is a
// new slice; cars is never reordered.
func Apply(cars []*models.Car, f Filter) []*models.Car {
	out := make([]*models.Car, 0, len(cars))
	for _, c := range cars {
		if c != nil && f.Match(c) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, less(out, ParseSortKey(string(f.Sort))))
	return out
}

func less(cars []*models.Car, key SortKey) func(i, j int) bool {
	switch key {
	case SortPriceLow:
		return func(i, j int) bool { return cars[i].PricePerDay < cars[j].PricePerDay }
	case SortPriceHigh:
		return func(i, j int) bool { return cars[i].PricePerDay > cars[j].PricePerDay }
	case SortRating:
		return func(i, j int) bool { return cars[i].Rating > cars[j].Rating }
	case SortNewest:
		return func(i, j int) bool { return cars[i].Year > cars[j].Year }
	default:
		return func(i, j int) bool { return cars[i].Reviews > cars[j].Reviews }
	}
}

// Brands lists the distinct brands in alphabetical order.
func Brands(cars []*models.Car) []string {
	seen := make(map[string]struct{}, len(cars))
	brands := make([]string, 0, len(cars))
	for _, c := range cars {
		if c == nil || c.Brand == "" {
			continue
		}
		if _, ok := seen[c.Brand]; ok {
			continue
		}
		seen[c.Brand] = struct{}{}
		brands = append(brands, c.Brand)
	}
	sort.Strings(brands)
	return brands
}
