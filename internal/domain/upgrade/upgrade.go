// Package upgrade defines the purchasable upgrade kinds and their catalog.
// This package is PURE and must NOT import any infrastructure packages.
package upgrade

import "math"

// Kind identifies an upgrade in the catalog. Kinds stay open strings so a
// catalog file can introduce new ones.
type Kind string

const (
	KindClickPower  Kind = "clickPower"
	KindAutoClicker Kind = "autoClicker"
	KindGrandma     Kind = "grandma"
)

// Effect is the variant tag that decides what a purchase does.
type Effect string

const (
	EffectClick     Effect = "click"     // raises the click yield
	EffectGenerator Effect = "generator" // adds passive generation
)

// Valid reports whether e is a known effect.
func (e Effect) Valid() bool {
	return e == EffectClick || e == EffectGenerator
}

// Upgrade is one entry of the catalog together with its purchase progress.
type Upgrade struct {
	Kind            Kind    `json:"kind" yaml:"kind"`
	Name            string  `json:"name" yaml:"name"`
	Effect          Effect  `json:"effect" yaml:"effect"`
	Cost            int64   `json:"cost" yaml:"cost"`
	PriceMultiplier float64 `json:"priceMultiplier" yaml:"priceMultiplier"`

	// Click effect.
	Level     int64 `json:"level,omitempty" yaml:"level,omitempty"`
	Increment int64 `json:"increment,omitempty" yaml:"increment,omitempty"`

	// Generator effect.
	Owned       int64   `json:"owned,omitempty" yaml:"owned,omitempty"`
	RatePerUnit float64 `json:"ratePerUnit,omitempty" yaml:"ratePerUnit,omitempty"`
}

// Count returns the number of purchases made so far, whatever the effect.
func (u Upgrade) Count() int64 {
	if u.Effect == EffectClick {
		return u.Level
	}
	return u.Owned
}

// Rate returns the passive generation this upgrade contributes per second.
func (u Upgrade) Rate() float64 {
	if u.Effect != EffectGenerator {
		return 0
	}
	return float64(u.Owned) * u.RatePerUnit
}

// MaxCost is the ceiling price growth saturates at.
const MaxCost = math.MaxInt64

// NextCost applies one step of price growth. The floor is taken at every
// step, so repeated purchases compound on the floored value. Costs that would
// leave the int64 range stay at MaxCost.
func NextCost(cost int64, multiplier float64) int64 {
	next := math.Floor(float64(cost) * multiplier)
	// float64(MaxCost) rounds up to 2^63, which int64 cannot hold.
	if !(next < float64(MaxCost)) {
		return MaxCost
	}
	// Rounding near 2^53 and above can land below the current cost.
	if n := int64(next); n > cost {
		return n
	}
	return cost
}
