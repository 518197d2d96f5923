package validate

import "strings"

var panStripper = strings.NewReplacer(" ", "", "\t", "", "-", "")

// NormalizePAN removes the spaces and dashes customers type into card numbers.
func NormalizePAN(s string) string { return panStripper.Replace(s) }

// IsValidCardNumber reports whether s is an all-digit number passing the Luhn check.
func IsValidCardNumber(s string) bool {
	s = NormalizePAN(s)
	if s == "" {
		return false
	}
	sum := 0
	for i := 0; i < len(s); i++ {
		c := s[len(s)-1-i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if i%2 == 1 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	return sum%10 == 0
}

// MaskPAN keeps the BIN and the last four digits.
func MaskPAN(s string) string {
	s = NormalizePAN(s)
	if len(s) < 10 {
		return strings.Repeat("*", len(s))
	}
	return s[:6] + strings.Repeat("*", len(s)-10) + s[len(s)-4:]
}
