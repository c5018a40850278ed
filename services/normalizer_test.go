package services

import (
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drinklog/config"
	"drinklog/models"
	"drinklog/utils"
)

func newTestLogger() *utils.Logger { return utils.NewLoggerTo(io.Discard, utils.LevelError) }

func defaultRules(t *testing.T) *config.Rules {
	t.Helper()
	rules, err := config.DefaultRules()
	require.NoError(t, err)
	return rules
}

func newTestNormalizer(t *testing.T, opts NormalizerOptions) *Normalizer {
	t.Helper()
	if opts.DefaultYear == 0 {
		opts.DefaultYear = 2025
	}
	if opts.DatePolicy == "" {
		opts.DatePolicy = models.DatePolicyKeep
	}
	if opts.PricePolicy == "" {
		opts.PricePolicy = models.PricePolicyFail
	}
	return NewNormalizer(defaultRules(t), opts, newTestLogger())
}

func TestParseDateSlashFormatRoundTrips(t *testing.T) {
	n := newTestNormalizer(t, NormalizerOptions{})

	for _, want := range []time.Time{
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
	} {
		got := n.ParseDate(want.Format("02/01/2006"))
		day, ok := got.Time()
		require.True(t, ok, "date %s should parse", want)
		assert.True(t, want.Equal(day), "got %s want %s", day, want)
		assert.Equal(t, want.Format(models.DateLayout), got.String())
	}

	got := n.ParseDate(" 7/3/2025 ")
	assert.Equal(t, "2025-03-07", got.String())
}

func TestParseDateDayMonthUsesDefaultYear(t *testing.T) {
	n := newTestNormalizer(t, NormalizerOptions{DefaultYear: 2023})

	tests := []struct {
		raw  string
		want string
	}{
		{"14-feb", "2023-02-14"},
		{"07-MAR", "2023-03-07"},
		{"1-enero", "2023-01-01"},
		{"30-dic", "2023-12-30"},
		{"3-oct-2024", "2024-10-03"},
	}
	for _, tt := range tests {
		got := n.ParseDate(tt.raw)
		assert.True(t, got.IsParsed(), "ParseDate(%q) should parse", tt.raw)
		assert.Equal(t, tt.want, got.String(), "ParseDate(%q)", tt.raw)
	}
}

func TestParseDateFallsBackToUnparsed(t *testing.T) {
	n := newTestNormalizer(t, NormalizerOptions{})

	for _, raw := range []string{"", "yesterday", "14-xyz", "31-feb", "2025-01-01", "32/01/2025", "5-fe"} {
		got := n.ParseDate(raw)
		assert.False(t, got.IsParsed(), "ParseDate(%q) should not parse", raw)
		assert.Equal(t, raw, got.String())
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"3,50€", "3.50"},
		{"?", "0"},
		{"", "0"},
		{"0", "0"},
		{"12.00", "12.00"},
		{" 4€ ", "4"},
		{"2,50", "2.50"},
		{"1?5", "15"},
		{"�3", "3"},
	}
	for _, tt := range tests {
		got, err := ParsePrice(tt.raw)
		require.NoError(t, err, "ParsePrice(%q)", tt.raw)
		assert.True(t, got.Equal(decimal.RequireFromString(tt.want)),
			"ParsePrice(%q) = %s; want %s", tt.raw, got, tt.want)
	}
}

func TestParsePriceMalformed(t *testing.T) {
	for _, raw := range []string{"free", "3,50,00", "-2", "€€ abc"} {
		_, err := ParsePrice(raw)
		var mpe *MalformedPriceError
		require.ErrorAs(t, err, &mpe, "ParsePrice(%q)", raw)
		assert.Equal(t, raw, mpe.Raw)
	}
}

func TestNormalizeText(t *testing.T) {
	n := newTestNormalizer(t, NormalizerOptions{})

	tests := []struct {
		raw  string
		want string
	}{
		{"", ""},
		{"   ", ""},
		{"  cerveza ", "Cerveza"},
		{"vino tinto", "Vino Tinto"},
		{"VERMÚ", "Vermu"},
		{"vermu", "Vermu"},
		{"caf�", "Cafe"},
		{"berganti�os", "Bergantinos"},
		{"MAHOU", "Mahou"},
		{"casa madrid", "Casa Madrid"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, n.NormalizeText(tt.raw), "NormalizeText(%q)", tt.raw)
	}
}

func TestTitleCaseWordBoundaries(t *testing.T) {
	// Letters after an apostrophe continue the word; a hyphen starts a new one.
	assert.Equal(t, "O'neill", titleCase("o'neill"))
	assert.Equal(t, "O'neill", titleCase("O'NEILL"))
	assert.Equal(t, "Gin-Tonic", titleCase("gin-tonic"))
	assert.Equal(t, "Bar De Pepe", titleCase("bar de pepe"))
}

func TestNormalizeTextIsIdempotent(t *testing.T) {
	n := newTestNormalizer(t, NormalizerOptions{})

	for _, raw := range []string{"cerveza", "VINO TINTO", "gin-tonic", "caf�", "vermú", "bar de pepe", "Estrella Galicia", "O'neill"} {
		once := n.NormalizeText(raw)
		assert.Equal(t, once, n.NormalizeText(once), "NormalizeText not idempotent for %q", raw)
	}
}

func TestNormalizeBrand(t *testing.T) {
	n := newTestNormalizer(t, NormalizerOptions{})

	assert.Equal(t, "Estrella Galicia", n.NormalizeBrand(n.NormalizeText("estrella")))
	assert.Equal(t, "Estrella Galicia", n.NormalizeBrand("ESTRELLA"))
	assert.Equal(t, "Estrella Damm", n.NormalizeBrand(n.NormalizeText("estrella damm")))
	assert.Equal(t, "Mahou", n.NormalizeBrand("Mahou"))
}

func TestInferLocation(t *testing.T) {
	n := newTestNormalizer(t, NormalizerOptions{})

	tests := []struct {
		place string
		want  models.Region
	}{
		{"Casa Malaga", "Malaga"},
		{"Casa Madrid", "Madrid"},
		{"Madrid Centro", "Madrid"},
		{"Bar El Rompeolas", "Malaga"},
		{"Playa Manilva", "Manilva"},
		{"Roque Nublo", "Canarias"},
		{"Casa Laura", "Moralzarzal"},
		{"Monasterio El Escorial", "El Escorial"},
		{"Málaga Centro", "Malaga"},
		{"Feria Jerez", "Jerez"},
		{"Toronto", "Madrid"},
		{"", "Madrid"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, n.InferLocation(tt.place), "InferLocation(%q)", tt.place)
	}
}

func TestInferLocationIsTotal(t *testing.T) {
	rules := defaultRules(t)
	n := newTestNormalizer(t, NormalizerOptions{})
	coords := rules.Coordinates()

	for _, place := range []string{"Kali", "Anywhere", "Casa Teresa", "Granada Albaicin", "zzz", "Cordoba"} {
		region := n.InferLocation(place)
		assert.Contains(t, coords, string(region), "region %q for %q has no coordinates", region, place)
		assert.Equal(t, region, n.InferLocation(place))
	}
}

func TestNormalizeKeepsUnparsedDates(t *testing.T) {
	n := newTestNormalizer(t, NormalizerOptions{})
	raw := []models.RawEntry{
		{Row: 1, Date: "01/01/2025", Drink: "cerveza", Place: "madrid", Price: "3"},
		{Row: 2, Date: "someday", Drink: "cerveza", Place: "madrid", Price: "3"},
	}

	clean, stats, err := n.Normalize(raw)
	require.NoError(t, err)
	require.Len(t, clean, 2)
	assert.Equal(t, 1, stats.UnparsedDates)
	assert.False(t, clean[1].Date.IsParsed())
	assert.Equal(t, "someday", clean[1].Date.String())
}

func TestNormalizeFailsOnUnparsedDateUnderFailPolicy(t *testing.T) {
	n := newTestNormalizer(t, NormalizerOptions{DatePolicy: models.DatePolicyFail})
	raw := []models.RawEntry{{Row: 4, Date: "someday", Price: "1"}}

	_, _, err := n.Normalize(raw)
	var ude *UnparsedDateError
	require.ErrorAs(t, err, &ude)
	assert.Equal(t, 4, ude.Row)
}

func TestNormalizePricePolicies(t *testing.T) {
	raw := []models.RawEntry{
		{Row: 1, Date: "01/01/2025", Drink: "cerveza", Price: "2"},
		{Row: 2, Date: "02/01/2025", Drink: "cerveza", Price: "gratis"},
	}

	t.Run("fail", func(t *testing.T) {
		n := newTestNormalizer(t, NormalizerOptions{PricePolicy: models.PricePolicyFail})
		_, _, err := n.Normalize(raw)
		var mpe *MalformedPriceError
		require.ErrorAs(t, err, &mpe)
		assert.Equal(t, 2, mpe.Row)
		assert.Equal(t, "gratis", mpe.Raw)
	})

	t.Run("zero", func(t *testing.T) {
		n := newTestNormalizer(t, NormalizerOptions{PricePolicy: models.PricePolicyZero})
		clean, stats, err := n.Normalize(raw)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.CoercedPrices)
		assert.True(t, clean[1].Price.IsZero())
	})
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	n := newTestNormalizer(t, NormalizerOptions{})
	raw := []models.RawEntry{{Row: 1, Date: "14-feb", Drink: " cerveza ", Brand: "estrella", Place: "malaga", Price: "2,50"}}
	before := raw[0]

	_, _, err := n.Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, before, raw[0])
}
