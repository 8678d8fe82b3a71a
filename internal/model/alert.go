package model

import "github.com/shopspring/decimal"

// AlertKind distinguishes the two notification conditions.
type AlertKind string

const (
	AlertPriceChanged AlertKind = "PRICE_CHANGED"
	AlertFloorReached AlertKind = "FLOOR_REACHED"
)

// AlertEvent is a notification produced by the alert engine.
// PriceChanged uses Old and New; FloorReached uses New (the current price) and Floor.
type AlertEvent struct {
	Kind    AlertKind       `json:"kind"`
	Product string          `json:"product"`
	Source  string          `json:"source"`
	Old     decimal.Decimal `json:"old"`
	New     decimal.Decimal `json:"new"`
	Floor   decimal.Decimal `json:"floor"`
}

// PriceChanged builds a change event.
func PriceChanged(product, source string, old, current decimal.Decimal) AlertEvent {
	return AlertEvent{Kind: AlertPriceChanged, Product: product, Source: source, Old: old, New: current}
}

// FloorReached builds a floor event.
func FloorReached(product, source string, price, floor decimal.Decimal) AlertEvent {
	return AlertEvent{Kind: AlertFloorReached, Product: product, Source: source, New: price, Floor: floor}
}
