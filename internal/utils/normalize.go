package utils

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	floatPhoneRe = regexp.MustCompile(`^\+?\d+\.0+$`)
	digitsOnlyRe = regexp.MustCompile(`\D`)
)

// NormalizePlate returns the join key for a plate: trimmed and uppercased.
func NormalizePlate(plate string) string {
	return strings.ToUpper(strings.TrimSpace(plate))
}

// FoldHeader prepares a raw spreadsheet header for comparison: trimmed,
// uppercased, accents removed and inner whitespace collapsed.
func FoldHeader(header string) string {
	s := strings.TrimSpace(header)
	s = StripDiacritics(s)
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.ToUpper(s)
}

// StripDiacritics removes combining marks after NFD decomposition, so
// "Vehículo" becomes "Vehiculo".
func StripDiacritics(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return norm.NFC.String(b.String())
}

// NormalizePhone keeps only digits. A nine digit number is treated as
// domestic and gets countryCode prepended. Spreadsheet cells that were
// stored as floats ("612345678.0") lose their decimal part first.
func NormalizePhone(phone, countryCode string) string {
	s := strings.TrimSpace(phone)
	if floatPhoneRe.MatchString(s) {
		s = s[:strings.Index(s, ".")]
	}
	digits := digitsOnlyRe.ReplaceAllString(s, "")
	if len(digits) == 9 {
		return countryCode + digits
	}
	return digits
}
