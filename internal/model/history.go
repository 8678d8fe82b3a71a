package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// HistoryKey identifies one history entry.
type HistoryKey struct {
	Product string
	Source  string
}

// String returns the persisted form "<product>_<source>".
func (k HistoryKey) String() string {
	return k.Product + "_" + k.Source
}

// ParseHistoryKey splits a persisted key at its last underscore. Source
// identifiers never contain underscores, product names may.
func ParseHistoryKey(s string) (HistoryKey, error) {
	i := strings.LastIndex(s, "_")
	if i <= 0 || i == len(s)-1 {
		return HistoryKey{}, fmt.Errorf("malformed history key %q", s)
	}
	return HistoryKey{Product: s[:i], Source: s[i+1:]}, nil
}

// Snapshot maps each (product, source) pair to its last successfully observed price.
type Snapshot map[HistoryKey]decimal.Decimal

// Clone returns an independent copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
