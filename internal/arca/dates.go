package arca

import (
	"fmt"
	"time"
)

// dateLayout is the portal's date format, dd/mm/yyyy.
const dateLayout = "02/01/2006"

// DateRange is an inclusive desde/hasta pair in portal format.
type DateRange struct {
	Desde string
	Hasta string
}

// Validate checks both dates parse and that Desde does not come after Hasta.
func (r DateRange) Validate() error {
	desde, err := time.Parse(dateLayout, r.Desde)
	if err != nil {
		return fmt.Errorf("fecha desde %q: use dd/mm/yyyy", r.Desde)
	}
	hasta, err := time.Parse(dateLayout, r.Hasta)
	if err != nil {
		return fmt.Errorf("fecha hasta %q: use dd/mm/yyyy", r.Hasta)
	}
	if desde.After(hasta) {
		return fmt.Errorf("fecha desde %s is after fecha hasta %s", r.Desde, r.Hasta)
	}
	return nil
}

// CalendarID converts a dd/mm/yyyy date to the yyyy-mm-dd form the portal's
// calendar widget uses in day-cell class names.
func CalendarID(date string) (string, error) {
	t, err := time.Parse(dateLayout, date)
	if err != nil {
		return "", fmt.Errorf("date %q: use dd/mm/yyyy", date)
	}
	return t.Format("2006-01-02"), nil
}
