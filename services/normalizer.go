package services

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"drinklog/config"
	"drinklog/models"
	"drinklog/utils"
)

var (
	// dayMonthRegexp captures "14-feb", "07-Marzo" and "3-oct-2024"
	dayMonthRegexp = regexp.MustCompile(`^(\d{1,2})-(\p{L}+)\.?(?:-(\d{4}))?$`)
	// priceNoise strips placeholder glyphs for unreadable characters and the currency symbol
	priceNoise = strings.NewReplacer("?", "", "\uFFFD", "", "€", "")
)

// NormalizerOptions carries the settings the Normalizer needs besides rules.
type NormalizerOptions struct {
	DefaultYear int
	DatePolicy  models.DatePolicy
	PricePolicy models.PricePolicy
}

type locationRule struct {
	region   models.Region
	keywords []string
}

// Normalizer transforms RawEntries into typed CleanEntries with a region.
type Normalizer struct {
	logger *utils.Logger
	opts   NormalizerOptions

	months        map[string]time.Month
	textAliases   map[string]string
	brandAliases  map[string]string
	locations     []locationRule
	defaultRegion models.Region
}

// NewNormalizer compiles the rule tables. Rules are expected to have passed
// config validation.
func NewNormalizer(rules *config.Rules, opts NormalizerOptions, logger *utils.Logger) *Normalizer {
	n := &Normalizer{
		logger:        logger,
		opts:          opts,
		months:        make(map[string]time.Month, len(rules.Months)),
		textAliases:   rules.TextAliases,
		brandAliases:  rules.BrandAliases,
		locations:     make([]locationRule, 0, len(rules.Locations)),
		defaultRegion: models.Region(rules.DefaultRegion),
	}
	for i, m := range rules.Months {
		n.months[foldText(m)] = time.Month(i + 1)
	}
	for _, l := range rules.Locations {
		n.locations = append(n.locations, locationRule{
			region:   models.Region(l.Region),
			keywords: foldAll(l.Keywords),
		})
	}
	return n
}

// Normalize processes raw entries and returns a new table of clean entries.
// Under the fail policies the first bad date or price aborts with a typed
// error; otherwise fallback rows are kept and counted.
func (n *Normalizer) Normalize(raw []models.RawEntry) ([]models.CleanEntry, models.NormalizeStats, error) {
	stats := models.NormalizeStats{Rows: len(raw)}
	result := make([]models.CleanEntry, 0, len(raw))

	for _, r := range raw {
		date := n.ParseDate(r.Date)
		if !date.IsParsed() {
			if n.opts.DatePolicy == models.DatePolicyFail {
				return nil, stats, &UnparsedDateError{Row: r.Row, Raw: r.Date}
			}
			stats.UnparsedDates++
			n.logger.Warn("[normalizer] Row %d: date %q kept unparsed", r.Row, r.Date)
		}

		price, err := ParsePrice(r.Price)
		if err != nil {
			var mpe *MalformedPriceError
			if errors.As(err, &mpe) {
				mpe.Row = r.Row
			}
			if n.opts.PricePolicy != models.PricePolicyZero {
				return nil, stats, err
			}
			stats.CoercedPrices++
			n.logger.Warn("[normalizer] %v, using 0.00", err)
			price = decimal.Zero
		}

		place := n.NormalizeText(r.Place)
		result = append(result, models.CleanEntry{
			Date:     date,
			Drink:    n.NormalizeText(r.Drink),
			Brand:    n.NormalizeBrand(n.NormalizeText(r.Brand)),
			Place:    place,
			Price:    price,
			Location: n.InferLocation(place),
		})
	}

	n.logger.Info("[normalizer] Normalized %d rows (unparsed dates: %d, coerced prices: %d)",
		len(result), stats.UnparsedDates, stats.CoercedPrices)
	return result, stats, nil
}

// ParseDate accepts "D/M/YYYY" and "DD-<month>[-YYYY]", where the month is
// matched on its first three letters and the year defaults to the configured
// one. Anything else, including impossible days, comes back unparsed.
func (n *Normalizer) ParseDate(raw string) models.EntryDate {
	s := strings.TrimSpace(raw)

	if t, err := time.Parse("2/1/2006", s); err == nil {
		return models.ParsedDate(t)
	}

	m := dayMonthRegexp.FindStringSubmatch(strings.ToLower(s))
	if m == nil {
		return models.UnparsedDate(raw)
	}

	day, _ := strconv.Atoi(m[1])
	word := []rune(foldText(m[2]))
	if len(word) < 3 {
		return models.UnparsedDate(raw)
	}
	month, ok := n.months[string(word[:3])]
	if !ok {
		return models.UnparsedDate(raw)
	}

	year := n.opts.DefaultYear
	if m[3] != "" {
		year, _ = strconv.Atoi(m[3])
	}

	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || t.Month() != month {
		return models.UnparsedDate(raw)
	}
	return models.ParsedDate(t)
}

// ParsePrice strips currency noise, accepts a comma decimal separator and
// maps empty or zero input to 0.00. Anything else non-numeric or negative is
// a *MalformedPriceError.
func ParsePrice(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(priceNoise.Replace(raw))
	s = strings.ReplaceAll(s, ",", ".")
	if s == "" || s == "0" {
		return decimal.Zero, nil
	}

	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero, &MalformedPriceError{Raw: raw}
	}
	return d, nil
}

// NormalizeText trims s and returns its alias when the lowercased text is in
// the alias table, or its title-cased form otherwise.
func (n *Normalizer) NormalizeText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if alias, ok := n.textAliases[strings.ToLower(s)]; ok {
		return alias
	}
	return titleCase(s)
}

// NormalizeBrand maps brand aliases such as "estrella" to their canonical name.
func (n *Normalizer) NormalizeBrand(brand string) string {
	if canonical, ok := n.brandAliases[strings.ToLower(brand)]; ok {
		return canonical
	}
	return brand
}

// InferLocation returns the region of the first rule with a keyword found in
// place, or the default region.
func (n *Normalizer) InferLocation(place string) models.Region {
	p := foldText(place)
	for _, rule := range n.locations {
		if containsAny(p, rule.keywords) {
			return rule.region
		}
	}
	return n.defaultRegion
}
