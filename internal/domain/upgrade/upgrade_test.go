package upgrade

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	require.NoError(t, c.Validate())
	assert.Equal(t, []Kind{KindClickPower, KindAutoClicker, KindGrandma}, c.Kinds())

	click, ok := c.Get(KindClickPower)
	require.True(t, ok)
	assert.Equal(t, int64(10), click.Cost)
	assert.Equal(t, int64(1), click.Increment)

	grandma, ok := c.Get(KindGrandma)
	require.True(t, ok)
	assert.Equal(t, int64(100), grandma.Cost)
	assert.Equal(t, 5.0, grandma.RatePerUnit)

	_, ok = c.Get("not_a_real_kind")
	assert.False(t, ok)
}

func TestNextCostCompoundsOnFlooredValue(t *testing.T) {
	assert.Equal(t, int64(15), NextCost(10, 1.5))
	assert.Equal(t, int64(22), NextCost(15, 1.5))
	assert.Equal(t, int64(33), NextCost(22, 1.5))
	assert.Equal(t, int64(75), NextCost(50, 1.5))

	// Closed form would give floor(10*1.5^3) = 33 as well, but at n=4 the
	// two policies diverge: floor(33*1.5)=49 versus floor(50.625)=50.
	assert.Equal(t, int64(49), NextCost(33, 1.5))
}

func TestNextCostMonotonic(t *testing.T) {
	cost := int64(1)
	for i := 0; i < 60; i++ {
		next := NextCost(cost, 1.15)
		require.GreaterOrEqual(t, next, cost)
		cost = next
	}
}

func TestNextCostSaturates(t *testing.T) {
	assert.Equal(t, int64(MaxCost), NextCost(7_000_000_000_000_000_000, 1.5))
	assert.Equal(t, int64(MaxCost), NextCost(MaxCost, 1.5))
	assert.Equal(t, int64(MaxCost), NextCost(MaxCost, 1.0000001))

	cost := int64(10)
	for i := 0; i < 200; i++ {
		next := NextCost(cost, 1.5)
		require.GreaterOrEqual(t, next, cost, "step %d", i)
		require.Positive(t, next)
		cost = next
	}
	assert.Equal(t, int64(MaxCost), cost)
}

func TestCountAndRate(t *testing.T) {
	click := Upgrade{Effect: EffectClick, Level: 3, Owned: 9}
	assert.Equal(t, int64(3), click.Count())
	assert.Zero(t, click.Rate())

	gen := Upgrade{Effect: EffectGenerator, Owned: 4, RatePerUnit: 2.5}
	assert.Equal(t, int64(4), gen.Count())
	assert.Equal(t, 10.0, gen.Rate())
}

func TestValidateRejectsBadEntries(t *testing.T) {
	tests := []struct {
		name string
		c    Catalog
	}{
		{"empty", Catalog{}},
		{"missing kind", Catalog{{Effect: EffectClick, Cost: 1, PriceMultiplier: 2}}},
		{"duplicate", Catalog{
			{Kind: "a", Effect: EffectClick, Cost: 1, PriceMultiplier: 2},
			{Kind: "a", Effect: EffectGenerator, Cost: 1, PriceMultiplier: 2},
		}},
		{"bad effect", Catalog{{Kind: "a", Effect: "magic", Cost: 1, PriceMultiplier: 2}}},
		{"negative cost", Catalog{{Kind: "a", Effect: EffectClick, Cost: -1, PriceMultiplier: 2}}},
		{"flat multiplier", Catalog{{Kind: "a", Effect: EffectClick, Cost: 1, PriceMultiplier: 1}}},
		{"negative rate", Catalog{{Kind: "a", Effect: EffectGenerator, Cost: 1, PriceMultiplier: 2, RatePerUnit: -1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.c.Validate())
		})
	}
}

func TestParseCatalog(t *testing.T) {
	data := []byte(`
upgrades:
  - kind: clickPower
    name: Click Power
    effect: click
    cost: 10
    priceMultiplier: 1.5
    increment: 2
  - kind: farm
    name: Farm
    effect: generator
    cost: 1100
    priceMultiplier: 1.15
    ratePerUnit: 8
`)
	c, err := ParseCatalog(data)
	require.NoError(t, err)
	require.Len(t, c, 2)
	assert.Equal(t, Kind("farm"), c[1].Kind)
	assert.Equal(t, 8.0, c[1].RatePerUnit)
	assert.Equal(t, int64(2), c[0].Increment)

	_, err = ParseCatalog([]byte("upgrades: [ {kind: x, effect: click, cost: 1, priceMultiplier: 0.5} ]"))
	assert.Error(t, err)

	_, err = ParseCatalog([]byte("upgrades: {"))
	assert.Error(t, err)
}

func TestLoadCatalog(t *testing.T) {
	c, err := LoadCatalog("")
	require.NoError(t, err)
	assert.Equal(t, DefaultCatalog(), c)

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("upgrades:\n  - {kind: cursor, effect: generator, cost: 15, priceMultiplier: 1.15, ratePerUnit: 0.1}\n"), 0o644))
	c, err = LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, []Kind{"cursor"}, c.Kinds())

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestCloneIsIndependent(t *testing.T) {
	c := DefaultCatalog()
	d := c.Clone()
	d[0].Cost = 999
	assert.Equal(t, int64(10), c[0].Cost)
}
