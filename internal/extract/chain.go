package extract

import "github.com/shopspring/decimal"

// Chain is an ordered list of extraction methods. Upstream markup changes
// often, so sources list their most precise method first and fall back to
// more permissive ones.
type Chain []Method

// Extract runs the methods in order and returns the first candidate that
// passes n. Methods after the winner are not invoked.
func (c Chain) Extract(p *Payload, n Normalizer) (decimal.Decimal, string, bool) {
	if p.Empty() {
		return decimal.Decimal{}, "", false
	}
	for _, m := range c {
		raw, ok := m.Func(p)
		if !ok {
			continue
		}
		if v, ok := n.Normalize(raw); ok {
			return v, m.Name, true
		}
	}
	return decimal.Decimal{}, "", false
}
