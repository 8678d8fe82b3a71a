// Package alert decides which notifications a new price observation deserves.
package alert

import (
	"fmt"

	"github.com/shopspring/decimal"

	"PriceSentinel/internal/model"
)

// FloorMode controls how often FloorReached fires for a price that stays at
// or below the floor.
type FloorMode string

const (
	// FloorEveryCycle emits FloorReached on every cycle the price is at or
	// below the floor.
	FloorEveryCycle FloorMode = "every_cycle"
	// FloorOnCrossing emits FloorReached only when the price was not already
	// at or below the floor in the previous snapshot.
	FloorOnCrossing FloorMode = "on_crossing"
)

// ParseFloorMode maps a config value to a FloorMode. Empty means the default.
func ParseFloorMode(s string) (FloorMode, error) {
	switch FloorMode(s) {
	case "", FloorEveryCycle:
		return FloorEveryCycle, nil
	case FloorOnCrossing:
		return FloorOnCrossing, nil
	default:
		return "", fmt.Errorf("unknown floor mode %q", s)
	}
}

// Input is everything the engine needs for one (product, source) pair.
type Input struct {
	Product     string
	Source      string
	Floor       decimal.Decimal
	Prior       decimal.Decimal
	HasPrior    bool
	Observation model.Observation
}

// Engine evaluates observations against history and floors.
type Engine struct {
	FloorMode FloorMode
}

// NewEngine returns an engine using mode.
func NewEngine(mode FloorMode) Engine {
	return Engine{FloorMode: mode}
}

// Evaluate returns the events for in. PriceChanged, when present, comes
// before FloorReached.
func (e Engine) Evaluate(in Input) []model.AlertEvent {
	obs := in.Observation
	if !obs.Found {
		return nil
	}

	var events []model.AlertEvent
	if in.HasPrior && !obs.Price.Equal(in.Prior) {
		events = append(events, model.PriceChanged(in.Product, in.Source, in.Prior, obs.Price))
	}
	if obs.Price.LessThanOrEqual(in.Floor) && e.floorDue(in) {
		events = append(events, model.FloorReached(in.Product, in.Source, obs.Price, in.Floor))
	}
	return events
}

func (e Engine) floorDue(in Input) bool {
	if e.FloorMode != FloorOnCrossing {
		return true
	}
	return !in.HasPrior || in.Prior.GreaterThan(in.Floor)
}

// Step evaluates obs for (product, source) against snap and records a found
// price in snap. Unavailable observations leave snap untouched.
func (e Engine) Step(snap model.Snapshot, product model.ProductSpec, source string, obs model.Observation) []model.AlertEvent {
	key := model.HistoryKey{Product: product.Name, Source: source}
	prior, hasPrior := snap[key]

	events := e.Evaluate(Input{
		Product:     product.Name,
		Source:      source,
		Floor:       product.FloorPrice,
		Prior:       prior,
		HasPrior:    hasPrior,
		Observation: obs,
	})
	if obs.Found {
		snap[key] = obs.Price
	}
	return events
}
