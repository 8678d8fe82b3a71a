// Package extract turns raw listing pages into validated prices: an ordered
// chain of extraction methods per source, and a locale-aware normalizer that
// decides whether a candidate string is a plausible price.
package extract

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Default plausibility bounds for consumer monitor prices.
var (
	DefaultMinPrice = decimal.NewFromInt(100)
	DefaultMaxPrice = decimal.NewFromInt(10000)
)

// Normalizer parses locale-ambiguous numeric text. Accepted values lie
// strictly between Min and Max.
type Normalizer struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// NewNormalizer returns a Normalizer with the given exclusive bounds.
func NewNormalizer(minPrice, maxPrice decimal.Decimal) Normalizer {
	return Normalizer{Min: minPrice, Max: maxPrice}
}

// DefaultNormalizer uses DefaultMinPrice and DefaultMaxPrice.
func DefaultNormalizer() Normalizer {
	return NewNormalizer(DefaultMinPrice, DefaultMaxPrice)
}

// Normalize returns the decimal value of text, or false when text holds no
// number or the number is outside the bounds.
//
// When both ',' and '.' occur, whichever appears last is the decimal
// separator and the other is dropped as a thousands separator. A lone ','
// is a decimal comma.
func (n Normalizer) Normalize(text string) (decimal.Decimal, bool) {
	cleaned := Clean(text)
	if cleaned == "" {
		return decimal.Decimal{}, false
	}

	v, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, false
	}
	if !v.IsPositive() || !v.GreaterThan(n.Min) || !v.LessThan(n.Max) {
		return decimal.Decimal{}, false
	}
	return v, true
}

// Clean reduces text to digits and a single '.' decimal separator following
// the rules documented on Normalize. The result may still be unparsable
// (e.g. "1.2.3"); Normalize rejects those.
func Clean(text string) string {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == ',' || r == '.' {
			return r
		}
		return -1
	}, text)

	comma := strings.LastIndex(cleaned, ",")
	dot := strings.LastIndex(cleaned, ".")
	switch {
	case comma >= 0 && dot >= 0:
		if comma > dot {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case comma >= 0:
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	}
	return cleaned
}
