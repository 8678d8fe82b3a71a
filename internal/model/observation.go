package model

import "github.com/shopspring/decimal"

// Observation is the outcome of one extraction attempt for a (product, source)
// pair. A zero Observation is Unavailable.
type Observation struct {
	Price  decimal.Decimal
	Found  bool
	Method string // extraction method that produced Price
}

// Found returns an observation carrying a validated price.
func Found(price decimal.Decimal, method string) Observation {
	return Observation{Price: price, Found: true, Method: method}
}

// Unavailable returns the "no valid price this cycle" observation.
func Unavailable() Observation {
	return Observation{}
}

// String renders the price with two decimals, or "unavailable".
func (o Observation) String() string {
	if !o.Found {
		return "unavailable"
	}
	return o.Price.StringFixed(2)
}
