package custody

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const coordinateDecimals = 7

// ParseCoordinate converts a decimal degree string such as "-33.8688" into its
// fixed-point form. More than seven fractional digits are rejected.
func ParseCoordinate(value string) (Coordinate, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCoordinate, value)
	}
	scaled := d.Shift(coordinateDecimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("%w: %q has more than %d decimals", ErrInvalidCoordinate, value, coordinateDecimals)
	}
	limit := decimal.NewFromInt(int64(MaxLongitude))
	if scaled.Abs().GreaterThan(limit) {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidCoordinate, value)
	}
	return Coordinate(scaled.IntPart()), nil
}

// String renders the coordinate in decimal degrees.
func (c Coordinate) String() string {
	return decimal.New(int64(c), -coordinateDecimals).String()
}
