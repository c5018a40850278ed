package services

import (
	"errors"
	"fmt"
)

// ErrNoRows is returned when a stage receives an empty table.
var ErrNoRows = errors.New("no rows")

// MalformedPriceError reports a price that is still not a non-negative number
// after stripping currency noise.
type MalformedPriceError struct {
	Row int
	Raw string
}

func (e *MalformedPriceError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("row %d: malformed price %q", e.Row, e.Raw)
	}
	return fmt.Sprintf("malformed price %q", e.Raw)
}

// UnparsedDateError reports a date matching no known shape when the date
// policy is fail.
type UnparsedDateError struct {
	Row int
	Raw string
}

func (e *UnparsedDateError) Error() string {
	return fmt.Sprintf("row %d: unparsed date %q", e.Row, e.Raw)
}
