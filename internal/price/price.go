// Package price converts between copper amounts and the gold/silver/copper
// notation used by the trading post.
package price

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	CopperPerSilver = 100
	CopperPerGold   = 100 * CopperPerSilver
)

// ErrInvalidPriceFormat is returned for input that is not <g>g<s>s<c>c.
var ErrInvalidPriceFormat = errors.New("invalid price format (use e.g. 1g23s45c, 50s, 100c, 2g)")

var pricePattern = regexp.MustCompile(`^(?:(\d+)g)?(?:(\d+)s)?(?:(\d+)c)?$`)

// Parse converts "1g23s45c" style input into copper. Each unit is optional but
// at least one must be present, and units must appear in g, s, c order.
func Parse(input string) (int64, error) {
	s := strings.ToLower(strings.TrimSpace(input))
	if s == "" {
		return 0, ErrInvalidPriceFormat
	}

	m := pricePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPriceFormat, input)
	}

	var total int64
	for i, mult := range []int64{CopperPerGold, CopperPerSilver, 1} {
		part := m[i+1]
		if part == "" {
			continue
		}
		n, err := strconv.ParseInt(part, 10, 64)
		if err != nil || n > (math.MaxInt64-total)/mult {
			return 0, fmt.Errorf("%w: %q", ErrInvalidPriceFormat, input)
		}
		total += n * mult
	}
	return total, nil
}

// Format renders copper as XgYYsZZc.
func Format(copper int64) string {
	sign := ""
	if copper < 0 {
		sign = "-"
		copper = -copper
	}
	gold := copper / CopperPerGold
	silver := (copper % CopperPerGold) / CopperPerSilver
	rest := copper % CopperPerSilver
	return fmt.Sprintf("%s%dg%02ds%02dc", sign, gold, silver, rest)
}

// PercentChange returns the signed change from previous to current with two
// decimals, or "N/A" when there is no previous observation.
func PercentChange(current, previous int64) string {
	if previous == 0 {
		return "N/A"
	}
	change := decimal.NewFromInt(current - previous).
		Div(decimal.NewFromInt(previous)).
		Mul(decimal.NewFromInt(100))
	sign := ""
	if change.Sign() >= 0 {
		sign = "+"
	}
	return sign + change.StringFixed(2) + "%"
}
