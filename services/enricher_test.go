package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drinklog/models"
)

func TestEnricherVolumeAndAlcohol(t *testing.T) {
	e := NewEnricher(defaultRules(t), newTestLogger())

	tests := []struct {
		drink, place string
		volume       float64
		alcohol      float64
		category     string
	}{
		{"Cerveza", "Casa Madrid", 0.3, 0.015, "beer"},
		{"Cerveza", "Casa Malaga", 0.2, 0.01, "beer"},
		{"Cerveza", "Bar Manolo", 0.33, 0.0165, "beer"},
		{"Cerveza Sin", "Madrid", 0.33, 0.0165, "beer"},
		{"Vino Tinto", "Madrid Centro", 0.15, 0.018, "wine"},
		{"Cava", "Casa Madrid", 0.15, 0.018, "wine"},
		{"Vermu", "Malaga", 0.2, 0.03, "vermouth"},
		{"Gintonic", "Kali", 0.4, 0.048, "cocktail"},
		{"Rebujito", "Feria Malaga", 0.4, 0.048, "cocktail"},
		{"Cafe", "Madrid", 0, 0, ""},
		{"", "", 0, 0, ""},
	}

	for _, tt := range tests {
		volume, category := e.Volume(tt.drink, tt.place)
		assert.InDelta(t, tt.volume, volume, 1e-9, "Volume(%q, %q)", tt.drink, tt.place)
		assert.Equal(t, tt.category, category, "category of %q", tt.drink)
		assert.InDelta(t, tt.alcohol, AlcoholLiters(volume, e.ABV(tt.drink)), 1e-9,
			"alcohol of (%q, %q)", tt.drink, tt.place)
	}
}

func TestAlcoholLitersRoundsToFourPlaces(t *testing.T) {
	assert.Equal(t, 0.0165, AlcoholLiters(0.33, 0.05))
	assert.Equal(t, 0.0123, AlcoholLiters(0.1234567, 0.1))
	assert.Equal(t, 0.0, AlcoholLiters(0, 0.12))
}

func TestEnrichCountsUnmatchedAndKeepsInput(t *testing.T) {
	e := NewEnricher(defaultRules(t), newTestLogger())
	clean := []models.CleanEntry{
		{Drink: "Cerveza", Place: "Casa Madrid", Price: decimal.NewFromInt(3), Location: "Madrid"},
		{Drink: "Agua", Place: "Casa Madrid", Price: decimal.Zero, Location: "Madrid"},
	}

	enriched, stats := e.Enrich(clean)
	require.Len(t, enriched, 2)
	assert.Equal(t, 2, stats.Rows)
	assert.Equal(t, 1, stats.UnmatchedDrinks)
	assert.Equal(t, clean[0], enriched[0].CleanEntry)
	assert.Zero(t, enriched[1].VolumeLiters)
	assert.Zero(t, enriched[1].AlcoholLiters)

	for _, en := range enriched {
		assert.GreaterOrEqual(t, en.VolumeLiters, 0.0)
		assert.GreaterOrEqual(t, en.AlcoholLiters, 0.0)
	}
}

func TestEnricherIsDeterministic(t *testing.T) {
	e := NewEnricher(defaultRules(t), newTestLogger())
	for i := 0; i < 5; i++ {
		v, c := e.Volume("Cerveza", "Casa Madrid")
		assert.Equal(t, 0.3, v)
		assert.Equal(t, "beer", c)
	}
}
