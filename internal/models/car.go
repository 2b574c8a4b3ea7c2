package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type CarType string

const (
	CarTypeSedan     CarType = "Sedan"
	CarTypeSUV       CarType = "SUV"
	CarTypeMPV       CarType = "MPV"
	CarTypeHatchback CarType = "Hatchback"
	CarTypeSport     CarType = "Sport"
	CarTypeElectric  CarType = "Electric"
)

type Transmission string

const (
	TransmissionAutomatic Transmission = "Automatic"
	TransmissionManual    Transmission = "Manual"
)

type Fuel string

const (
	FuelBensin   Fuel = "Bensin"
	FuelDiesel   Fuel = "Diesel"
	FuelElectric Fuel = "Electric"
	FuelHybrid   Fuel = "Hybrid"
)

var (
	carTypes      = []CarType{CarTypeSedan, CarTypeSUV, CarTypeMPV, CarTypeHatchback, CarTypeSport, CarTypeElectric}
	transmissions = []Transmission{TransmissionAutomatic, TransmissionManual}
	fuels         = []Fuel{FuelBensin, FuelDiesel, FuelElectric, FuelHybrid}
)

// Car is a rentable vehicle from the catalog. Prices are whole rupiah.
type Car struct {
	ID            int64        `json:"id" yaml:"id"`
	Name          string       `json:"name" yaml:"name"`
	Brand         string       `json:"brand" yaml:"brand"`
	Type          CarType      `json:"type" yaml:"type"`
	Year          int          `json:"year" yaml:"year"`
	Transmission  Transmission `json:"transmission" yaml:"transmission"`
	Fuel          Fuel         `json:"fuel" yaml:"fuel"`
	Seats         int          `json:"seats" yaml:"seats"`
	PricePerDay   int64        `json:"price_per_day" yaml:"price_per_day"`
	PricePerWeek  int64        `json:"price_per_week" yaml:"price_per_week"`
	PricePerMonth int64        `json:"price_per_month" yaml:"price_per_month"`
	Rating        float64      `json:"rating" yaml:"rating"`
	Reviews       int          `json:"reviews" yaml:"reviews"`
	Available     bool         `json:"available" yaml:"available"`
	Featured      bool         `json:"featured" yaml:"featured"`
	Images        []string     `json:"images" yaml:"images"`
	Features      []string     `json:"features" yaml:"features"`
	Description   string       `json:"description" yaml:"description"`
	Location      string       `json:"location" yaml:"location"`
	CreatedAt     time.Time    `json:"created_at" yaml:"-"`
	UpdatedAt     time.Time    `json:"updated_at" yaml:"-"`
}

// CarSummary is the slice of a car joined into booking listings.
type CarSummary struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Brand       string   `json:"brand"`
	Images      []string `json:"images"`
	PricePerDay int64    `json:"price_per_day"`
}

func (c *Car) Summary() CarSummary {
	return CarSummary{
		ID:          c.ID,
		Name:        c.Name,
		Brand:       c.Brand,
		Images:      append([]string(nil), c.Images...),
		PricePerDay: c.PricePerDay,
	}
}

func ParseCarType(s string) (CarType, bool) {
	for _, t := range carTypes {
		if strings.EqualFold(string(t), strings.TrimSpace(s)) {
			return t, true
		}
	}
	return "", false
}

func ParseTransmission(s string) (Transmission, bool) {
	for _, t := range transmissions {
		if strings.EqualFold(string(t), strings.TrimSpace(s)) {
			return t, true
		}
	}
	return "", false
}

func ParseFuel(s string) (Fuel, bool) {
	for _, f := range fuels {
		if strings.EqualFold(string(f), strings.TrimSpace(s)) {
			return f, true
		}
	}
	return "", false
}

// Normalize coerces enumerations to their canonical spelling, trims text
// fields and drops duplicate feature tags keeping the first occurrence.
func (c *Car) Normalize() {
	c.Name = strings.TrimSpace(c.Name)
	c.Brand = strings.TrimSpace(c.Brand)
	c.Location = strings.TrimSpace(c.Location)
	if t, ok := ParseCarType(string(c.Type)); ok {
		c.Type = t
	}
	if t, ok := ParseTransmission(string(c.Transmission)); ok {
		c.Transmission = t
	}
	if f, ok := ParseFuel(string(c.Fuel)); ok {
		c.Fuel = f
	}

	seen := make(map[string]bool, len(c.Features))
	features := make([]string, 0, len(c.Features))
	for _, f := range c.Features {
		f = strings.TrimSpace(f)
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		features = append(features, f)
	}
	c.Features = features

	if c.Images == nil {
		c.Images = []string{}
	}
}

// Validate checks a normalized car record.
func (c *Car) Validate() error {
	var errs []error
	if c.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if c.Brand == "" {
		errs = append(errs, errors.New("brand is required"))
	}
	if _, ok := ParseCarType(string(c.Type)); !ok {
		errs = append(errs, fmt.Errorf("unknown car type %q", c.Type))
	}
	if _, ok := ParseTransmission(string(c.Transmission)); !ok {
		errs = append(errs, fmt.Errorf("unknown transmission %q", c.Transmission))
	}
	if _, ok := ParseFuel(string(c.Fuel)); !ok {
		errs = append(errs, fmt.Errorf("unknown fuel %q", c.Fuel))
	}
	if c.Seats <= 0 {
		errs = append(errs, errors.New("seats must be positive"))
	}
	if c.PricePerDay <= 0 {
		errs = append(errs, errors.New("price_per_day must be positive"))
	}
	if c.PricePerWeek < 0 || c.PricePerMonth < 0 {
		errs = append(errs, errors.New("weekly and monthly prices must not be negative"))
	}
	if c.Rating < 0 || c.Rating > 5 {
		errs = append(errs, errors.New("rating must be between 0 and 5"))
	}
	if c.Reviews < 0 {
		errs = append(errs, errors.New("reviews must not be negative"))
	}
	return errors.Join(errs...)
}
