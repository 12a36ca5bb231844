package observability

import "strings"

// MaskCard hides all but the last four digits of a card number for logging.
// Separators are dropped. Values too short to identify are fully masked.
func MaskCard(number string) string {
	var digits []rune
	for _, r := range number {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) < 8 {
		return strings.Repeat("*", len(digits))
	}
	return strings.Repeat("*", len(digits)-4) + string(digits[len(digits)-4:])
}

// MaskSecret fully redacts a value while signaling whether it was set.
func MaskSecret(s string) string {
	if s == "" {
		return "<unset>"
	}
	return "<redacted>"
}
