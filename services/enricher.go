package services

import (
	"math"

	"drinklog/config"
	"drinklog/models"
	"drinklog/utils"
)

type placeVolume struct {
	keywords []string
	liters   float64
}

type volumeRule struct {
	category string
	keywords []string
	liters   float64
	places   []placeVolume
}

type abvRule struct {
	category string
	keywords []string
	abv      float64
}

// Enricher derives serving volume and pure-alcohol content per row. Volume
// and ABV come from two separately ordered rule lists; only volume looks at
// the place.
type Enricher struct {
	logger  *utils.Logger
	volumes []volumeRule
	abv     []abvRule
}

// NewEnricher compiles the volume and ABV rule tables.
func NewEnricher(rules *config.Rules, logger *utils.Logger) *Enricher {
	e := &Enricher{logger: logger}
	for _, v := range rules.Volumes {
		vr := volumeRule{category: v.Category, keywords: foldAll(v.Keywords), liters: v.Liters}
		for _, p := range v.Places {
			vr.places = append(vr.places, placeVolume{keywords: foldAll(p.Keywords), liters: p.Liters})
		}
		e.volumes = append(e.volumes, vr)
	}
	for _, a := range rules.Alcohol {
		e.abv = append(e.abv, abvRule{category: a.Category, keywords: foldAll(a.Keywords), abv: a.ABV})
	}
	return e
}

// Enrich returns a new table with volume and alcohol filled in. Drinks that
// match no volume rule contribute 0 L and are counted.
func (e *Enricher) Enrich(clean []models.CleanEntry) ([]models.EnrichedEntry, models.EnrichStats) {
	stats := models.EnrichStats{Rows: len(clean)}
	result := make([]models.EnrichedEntry, 0, len(clean))
	unknown := make(map[string]int)

	for _, c := range clean {
		volume, category := e.Volume(c.Drink, c.Place)
		if category == "" {
			stats.UnmatchedDrinks++
			unknown[c.Drink]++
		}
		result = append(result, models.EnrichedEntry{
			CleanEntry:    c,
			Category:      category,
			VolumeLiters:  volume,
			AlcoholLiters: AlcoholLiters(volume, e.ABV(c.Drink)),
		})
	}

	for drink, n := range unknown {
		e.logger.Debug("[enricher] No volume rule for drink %q (%d rows)", drink, n)
	}
	e.logger.Info("[enricher] Enriched %d rows (unmatched drinks: %d)", len(result), stats.UnmatchedDrinks)
	return result, stats
}

// Volume returns the serving size in liters and the matched category, or
// 0 and "" when no rule matches.
func (e *Enricher) Volume(drink, place string) (float64, string) {
	d := foldText(drink)
	for _, rule := range e.volumes {
		if !containsAny(d, rule.keywords) {
			continue
		}
		p := foldText(place)
		for _, pv := range rule.places {
			if containsAny(p, pv.keywords) {
				return pv.liters, rule.category
			}
		}
		return rule.liters, rule.category
	}
	return 0, ""
}

// ABV returns the assumed alcohol-by-volume fraction of drink, 0 when unknown.
func (e *Enricher) ABV(drink string) float64 {
	d := foldText(drink)
	for _, rule := range e.abv {
		if containsAny(d, rule.keywords) {
			return rule.abv
		}
	}
	return 0
}

// AlcoholLiters is volume × abv rounded to 4 decimal places.
func AlcoholLiters(volume, abv float64) float64 {
	return round4(volume * abv)
}

func round4(f float64) float64 {
	return math.Round(f*1e4) / 1e4
}
