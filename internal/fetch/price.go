package fetch

import (
	"strconv"
	"strings"
)

// CleanPrice strips currency symbols, thousands separators and surrounding
// text from a scraped price string and parses the remainder as a float.
// Returns ok=false when nothing parseable is left.
func CleanPrice(raw string) (float64, bool) {
	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	s := strings.Trim(b.String(), ".")
	if s == "" {
		return 0, false
	}
	// A second dot means the first ones were thousands separators
	// (e.g. "1.299.99" from "1.299,99" markets); keep only the last.
	if strings.Count(s, ".") > 1 {
		last := strings.LastIndex(s, ".")
		s = strings.ReplaceAll(s[:last], ".", "") + s[last:]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
