package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrDistanceOutOfRange = errors.New("distance outside pricing bands")

// PricingBand charges Fee for any distance up to and including UpToKm.
type PricingBand struct {
	UpToKm decimal.Decimal `json:"up_to_km"`
	Fee    decimal.Decimal `json:"fee"`
}

// PricingBandInput is the raw shape of a band in a config file.
type PricingBandInput struct {
	UpToKm string `mapstructure:"up_to_km"`
	Fee    string `mapstructure:"fee"`
}

// DefaultPricingBands returns the delivery fee table used when none is configured.
func DefaultPricingBands() []PricingBand {
	return []PricingBand{
		{UpToKm: decimal.NewFromInt(3), Fee: decimal.NewFromInt(8000)},
		{UpToKm: decimal.NewFromInt(7), Fee: decimal.NewFromInt(14000)},
		{UpToKm: decimal.NewFromInt(15), Fee: decimal.NewFromInt(25000)},
		{UpToKm: decimal.NewFromInt(30), Fee: decimal.NewFromInt(40000)},
	}
}

// ParsePricingBands converts raw bands and sorts them by distance.
func ParsePricingBands(inputs []PricingBandInput) ([]PricingBand, error) {
	bands := make([]PricingBand, 0, len(inputs))
	for index, input := range inputs {
		upTo, err := decimal.NewFromString(strings.TrimSpace(input.UpToKm))
		if err != nil {
			return nil, fmt.Errorf("%w: band %d up_to_km: %v", ErrInvalidConfig, index, err)
		}
		fee, err := decimal.NewFromString(strings.TrimSpace(input.Fee))
		if err != nil {
			return nil, fmt.Errorf("%w: band %d fee: %v", ErrInvalidConfig, index, err)
		}
		bands = append(bands, PricingBand{UpToKm: upTo, Fee: fee})
	}
	sort.SliceStable(bands, func(left, right int) bool {
		return bands[left].UpToKm.LessThan(bands[right].UpToKm)
	})
	if err := validateBands(bands); err != nil {
		return nil, err
	}
	return bands, nil
}

func validateBands(bands []PricingBand) error {
	for index, band := range bands {
		if !band.UpToKm.IsPositive() {
			return fmt.Errorf("%w: band %d distance must be positive", ErrInvalidConfig, index)
		}
		if band.Fee.IsNegative() {
			return fmt.Errorf("%w: band %d fee must not be negative", ErrInvalidConfig, index)
		}
		if index > 0 && !bands[index-1].UpToKm.LessThan(band.UpToKm) {
			return fmt.Errorf("%w: bands must have increasing distances", ErrInvalidConfig)
		}
	}
	return nil
}

// Quote returns the fee of the first band covering distanceKm.
func Quote(bands []PricingBand, distanceKm decimal.Decimal) (decimal.Decimal, error) {
	if distanceKm.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %s km", ErrDistanceOutOfRange, distanceKm)
	}
	for _, band := range bands {
		if distanceKm.LessThanOrEqual(band.UpToKm) {
			return band.Fee, nil
		}
	}
	return decimal.Zero, fmt.Errorf("%w: %s km", ErrDistanceOutOfRange, distanceKm)
}
