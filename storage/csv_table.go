package storage

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"drinklog/models"
)

// Delimiter separates fields in every table this program reads or writes.
const Delimiter = ';'

// Column names of the stage tables. Later stages only append columns.
// DATE_PARSED records whether DATE was parsed by the Normalizer; tables
// without it are still read, with ISO text taken as parsed.
var (
	RawColumns      = []string{"DATE", "DRINK", "BRAND", "PLACE", "PRICE"}
	CleanColumns    = append(append([]string(nil), RawColumns...), "LOCATION", "DATE_PARSED")
	EnrichedColumns = append(append([]string(nil), CleanColumns...), "VOLUME_L", "ALCOHOL_L")
)

const dateParsedColumn = "DATE_PARSED"

// requiredColumns drops the optional DATE_PARSED column from cols.
func requiredColumns(cols []string) []string {
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		if c != dateParsedColumn {
			out = append(out, c)
		}
	}
	return out
}

// MissingColumnError reports a required header absent from an input table.
type MissingColumnError struct {
	Path   string
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("csv: %s: missing column %q", e.Path, e.Column)
}

// table is a decoded CSV file with columns located by header name.
type table struct {
	path  string
	index map[string]int
	rows  [][]string
}

func readTable(path string, required []string) (*table, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("csv: read %s: %w", path, err)
	}
	b = bytes.TrimPrefix(b, []byte("\xef\xbb\xbf"))

	r := csv.NewReader(bytes.NewReader(b))
	r.Comma = Delimiter
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("csv: %s: empty file", path)
	}
	if err != nil {
		return nil, fmt.Errorf("csv: %s: read header: %w", path, err)
	}

	t := &table{path: path, index: make(map[string]int, len(header))}
	for i, h := range header {
		t.index[strings.ToUpper(strings.TrimSpace(h))] = i
	}
	for _, col := range required {
		if _, ok := t.index[col]; !ok {
			return nil, &MissingColumnError{Path: path, Column: col}
		}
	}

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: %s: %w", path, err)
		}
		if blank(rec) {
			continue
		}
		t.rows = append(t.rows, rec)
	}
	return t, nil
}

// get returns the named field of row, "" when the row is short.
func (t *table) get(row []string, col string) string {
	i := t.index[col]
	if i >= len(row) {
		return ""
	}
	return row[i]
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// ReadRaw loads the raw consumption log.
func ReadRaw(path string) ([]models.RawEntry, error) {
	t, err := readTable(path, RawColumns)
	if err != nil {
		return nil, err
	}
	out := make([]models.RawEntry, 0, len(t.rows))
	for i, row := range t.rows {
		out = append(out, models.RawEntry{
			Row:   i + 1,
			Date:  t.get(row, "DATE"),
			Drink: t.get(row, "DRINK"),
			Brand: t.get(row, "BRAND"),
			Place: t.get(row, "PLACE"),
			Price: t.get(row, "PRICE"),
		})
	}
	return out, nil
}

// ReadClean loads a table written by WriteClean.
func ReadClean(path string) ([]models.CleanEntry, error) {
	t, err := readTable(path, requiredColumns(CleanColumns))
	if err != nil {
		return nil, err
	}
	out := make([]models.CleanEntry, 0, len(t.rows))
	for i, row := range t.rows {
		c, err := t.clean(row)
		if err != nil {
			return nil, fmt.Errorf("csv: %s: row %d: %w", path, i+1, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// ReadEnriched loads a table written by WriteEnriched.
func ReadEnriched(path string) ([]models.EnrichedEntry, error) {
	t, err := readTable(path, requiredColumns(EnrichedColumns))
	if err != nil {
		return nil, err
	}
	out := make([]models.EnrichedEntry, 0, len(t.rows))
	for i, row := range t.rows {
		c, err := t.clean(row)
		if err != nil {
			return nil, fmt.Errorf("csv: %s: row %d: %w", path, i+1, err)
		}
		volume, err := parseFloatField(t.get(row, "VOLUME_L"))
		if err != nil {
			return nil, fmt.Errorf("csv: %s: row %d: VOLUME_L: %w", path, i+1, err)
		}
		alcohol, err := parseFloatField(t.get(row, "ALCOHOL_L"))
		if err != nil {
			return nil, fmt.Errorf("csv: %s: row %d: ALCOHOL_L: %w", path, i+1, err)
		}
		out = append(out, models.EnrichedEntry{CleanEntry: c, VolumeLiters: volume, AlcoholLiters: alcohol})
	}
	return out, nil
}

func (t *table) clean(row []string) (models.CleanEntry, error) {
	price := decimal.Zero
	if p := strings.TrimSpace(t.get(row, "PRICE")); p != "" {
		d, err := decimal.NewFromString(p)
		if err != nil {
			return models.CleanEntry{}, fmt.Errorf("PRICE: %w", err)
		}
		price = d
	}
	date := ParseStoredDate(t.get(row, "DATE"))
	if _, ok := t.index[dateParsedColumn]; ok {
		if flag := strings.TrimSpace(t.get(row, dateParsedColumn)); flag != "" {
			parsed, err := strconv.ParseBool(flag)
			if err != nil {
				return models.CleanEntry{}, fmt.Errorf("%s: %w", dateParsedColumn, err)
			}
			date = StoredDate(t.get(row, "DATE"), parsed)
		}
	}
	return models.CleanEntry{
		Date:     date,
		Drink:    t.get(row, "DRINK"),
		Brand:    t.get(row, "BRAND"),
		Place:    t.get(row, "PLACE"),
		Price:    price,
		Location: models.Region(t.get(row, "LOCATION")),
	}, nil
}

// ParseStoredDate reads back a date whose parsed flag was not stored: ISO
// dates are parsed, anything else stays unparsed.
func ParseStoredDate(s string) models.EntryDate {
	return StoredDate(s, true)
}

// StoredDate rebuilds a date from its stored text and parsed flag. A date
// flagged unparsed stays unparsed even when its text looks like ISO.
func StoredDate(s string, parsed bool) models.EntryDate {
	if parsed {
		if t, err := time.Parse(models.DateLayout, strings.TrimSpace(s)); err == nil {
			return models.ParsedDate(t)
		}
	}
	return models.UnparsedDate(s)
}

func parseFloatField(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// WriteClean writes the Normalizer output.
func WriteClean(path string, entries []models.CleanEntry) error {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, cleanRecord(e))
	}
	return writeTable(path, CleanColumns, rows)
}

// WriteEnriched writes the Enricher output.
func WriteEnriched(path string, entries []models.EnrichedEntry) error {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, append(cleanRecord(e.CleanEntry),
			formatFloat(e.VolumeLiters),
			formatFloat(e.AlcoholLiters),
		))
	}
	return writeTable(path, EnrichedColumns, rows)
}

func cleanRecord(e models.CleanEntry) []string {
	return []string{
		e.Date.String(),
		e.Drink,
		e.Brand,
		e.Place,
		e.Price.String(),
		string(e.Location),
		strconv.FormatBool(e.Date.IsParsed()),
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// writeTable encodes header and rows and replaces path atomically.
func writeTable(path string, header []string, rows [][]string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = Delimiter
	if err := w.Write(header); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("csv: write rows: %w", err)
	}
	if err := WriteFileAtomic(path, buf.Bytes()); err != nil {
		return fmt.Errorf("csv: %w", err)
	}
	return nil
}
