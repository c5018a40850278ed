package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the ISO calendar form every parsed date is written in.
const DateLayout = "2006-01-02"

// RawEntry holds one unprocessed row of the consumption log exactly as read
// from the input file. Row is the 1-based data row number used in errors.
type RawEntry struct {
	Row   int
	Date  string
	Drink string
	Brand string
	Place string
	Price string
}

// Region is a canonical location tag. Valid values are the keys of the
// configured coordinate table.
type Region string

// EntryDate is either a parsed calendar date or the original text that could
// not be parsed. The zero value is an unparsed empty string.
type EntryDate struct {
	day    time.Time
	raw    string
	parsed bool
}

// ParsedDate wraps a calendar date, dropping any time-of-day component.
func ParsedDate(t time.Time) EntryDate {
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return EntryDate{day: day, raw: day.Format(DateLayout), parsed: true}
}

// UnparsedDate keeps text that matched no known date shape.
func UnparsedDate(raw string) EntryDate {
	return EntryDate{raw: raw}
}

// Time returns the calendar date and whether the value was parsed.
func (d EntryDate) Time() (time.Time, bool) {
	return d.day, d.parsed
}

func (d EntryDate) IsParsed() bool { return d.parsed }

// Raw returns the original text for unparsed dates and the ISO form otherwise.
func (d EntryDate) Raw() string { return d.raw }

func (d EntryDate) String() string {
	if d.parsed {
		return d.day.Format(DateLayout)
	}
	return d.raw
}

// CleanEntry is a normalized log row with an inferred region.
type CleanEntry struct {
	Date     EntryDate
	Drink    string
	Brand    string
	Place    string
	Price    decimal.Decimal
	Location Region
}

// EnrichedEntry adds the derived serving volume and pure-alcohol content.
// Category is the matched volume rule, empty when the drink is unknown. It is
// not persisted.
type EnrichedEntry struct {
	CleanEntry
	Category      string
	VolumeLiters  float64
	AlcoholLiters float64
}
