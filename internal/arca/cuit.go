package arca

import "fmt"

var cuitCoefficients = [10]int{5, 4, 3, 2, 7, 6, 5, 4, 3, 2}

// ValidateCUIT checks an 11-digit CUIT including its mod-11 check digit.
func ValidateCUIT(cuit string) error {
	if len(cuit) != 11 {
		return fmt.Errorf("CUIT %q: want 11 digits, got %d", cuit, len(cuit))
	}
	sum := 0
	for i := 0; i < 10; i++ {
		d := cuit[i]
		if d < '0' || d > '9' {
			return fmt.Errorf("CUIT %q: non-digit at position %d", cuit, i)
		}
		sum += int(d-'0') * cuitCoefficients[i]
	}
	last := cuit[10]
	if last < '0' || last > '9' {
		return fmt.Errorf("CUIT %q: non-digit check position", cuit)
	}

	check := 11 - sum%11
	switch check {
	case 11:
		check = 0
	case 10:
		check = 9
	}
	if check != int(last-'0') {
		return fmt.Errorf("CUIT %q: check digit mismatch", cuit)
	}
	return nil
}

// FormatCUIT renders a bare CUIT the way the portal displays it,
// XX-XXXXXXXX-X. The input must already be valid.
func FormatCUIT(cuit string) string {
	if len(cuit) != 11 {
		return cuit
	}
	return cuit[:2] + "-" + cuit[2:10] + "-" + cuit[10:]
}
