package model

import (
	"github.com/shopspring/decimal"
)

// SourceLocator describes where a source lists a product. Target is either a
// full URL or a search query that the source expands into its search URL.
type SourceLocator struct {
	Target string
	Render bool // page needs script execution to show a price
}

// SourceBinding ties a source identifier to the locator used for one product.
type SourceBinding struct {
	Source  string
	Locator SourceLocator
}

// ProductSpec is one monitored product. Sources are kept in declaration order
// so every cycle visits them in the same sequence.
type ProductSpec struct {
	Name       string
	FloorPrice decimal.Decimal
	Sources    []SourceBinding
}
