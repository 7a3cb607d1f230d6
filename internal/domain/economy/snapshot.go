package economy

import (
	"math"
	"strconv"

	"github.com/MRamiBalles/CookieClicker/internal/domain/upgrade"
)

// Snapshot is the read-only view handed to presentation after each change.
type Snapshot struct {
	Currency        float64       `json:"currency"`
	DisplayCurrency int64         `json:"displayCurrency"`
	PassiveRate     float64       `json:"passiveRate"`
	DisplayRate     string        `json:"displayRate"`
	ClickYield      int64         `json:"clickYield"`
	Upgrades        []UpgradeView `json:"upgrades"`

	// Seq orders snapshots of one game. A consumer that already holds a
	// higher Seq can drop this one. Zero means unsequenced.
	Seq uint64 `json:"seq"`
}

// UpgradeView is one purchase control.
type UpgradeView struct {
	Kind       upgrade.Kind   `json:"kind"`
	Name       string         `json:"name"`
	Effect     upgrade.Effect `json:"effect"`
	Cost       int64          `json:"cost"`
	Count      int64          `json:"count"`
	Affordable bool           `json:"affordable"`
}

// ClickAck acknowledges a click with the amount it granted.
type ClickAck struct {
	Amount int64 `json:"amount"`
}

// Snapshot captures the state for display.
func (s *State) Snapshot() Snapshot {
	views := make([]UpgradeView, 0, len(s.Upgrades))
	for _, u := range s.Upgrades {
		views = append(views, UpgradeView{
			Kind:       u.Kind,
			Name:       u.Name,
			Effect:     u.Effect,
			Cost:       u.Cost,
			Count:      u.Count(),
			Affordable: s.Currency >= float64(u.Cost),
		})
	}
	return Snapshot{
		Currency:        s.Currency,
		DisplayCurrency: int64(math.Floor(s.Currency)),
		PassiveRate:     s.PassiveRate,
		DisplayRate:     strconv.FormatFloat(s.PassiveRate, 'f', 1, 64),
		ClickYield:      s.ClickYield,
		Upgrades:        views,
	}
}

// Upgrade returns the view for a kind.
func (sn Snapshot) Upgrade(kind upgrade.Kind) (UpgradeView, bool) {
	for _, v := range sn.Upgrades {
		if v.Kind == kind {
			return v, true
		}
	}
	return UpgradeView{}, false
}
