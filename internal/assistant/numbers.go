package assistant

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	numberRe = regexp.MustCompile(`\d+(?:[.,]\d+)*`)
	intRe    = regexp.MustCompile(`\d+`)
)

// parseDecimal reads a number written the Brazilian way ("1.250,90", "R$ 99,90")
// or the plain way ("1250.90").
func parseDecimal(s string) (float64, bool) {
	s = strings.TrimSpace(strings.NewReplacer("R$", "", "r$", "", " ", "").Replace(s))
	if s == "" {
		return 0, false
	}
	hasDot, hasComma := strings.Contains(s, "."), strings.Contains(s, ",")
	switch {
	case hasDot && hasComma:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case hasComma:
		s = strings.Replace(s, ",", ".", 1)
	case hasDot && thousandsOnly(s):
		s = strings.ReplaceAll(s, ".", "")
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

// thousandsOnly reports whether every dot in s separates a group of three
// digits, as in "1.250" or "12.000.000".
func thousandsOnly(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) < 2 {
		return false
	}
	for _, p := range parts[1:] {
		if len(p) != 3 {
			return false
		}
	}
	return true
}

// firstNumber returns the first decimal number found in s.
func firstNumber(s string) (float64, bool) {
	m := numberRe.FindString(s)
	if m == "" {
		return 0, false
	}
	return parseDecimal(m)
}

func firstInt(s string) (int, bool) {
	m := intRe.FindString(s)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	return n, err == nil
}

// formatBRL renders n as "R$ 1.250,90".
func formatBRL(n float64) string {
	neg := n < 0
	if neg {
		n = -n
	}
	cents := int64(math.Round(n * 100))
	whole := strconv.FormatInt(cents/100, 10)
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	out := "R$ " + b.String() + "," + leftPad2(cents%100)
	if neg {
		return "-" + out
	}
	return out
}

func leftPad2(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}
