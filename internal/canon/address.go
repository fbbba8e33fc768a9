package canon

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var reTrailingSep = regexp.MustCompile(`[\s,;]+$`)

// GeocodeQuery builds the free-text geocoder query for a street address,
// appending the locality suffix unless the address already ends with it.
func GeocodeQuery(address, suffix string) string {
	a := reTrailingSep.ReplaceAllString(collapseSpaces(address), "")
	s := strings.Trim(collapseSpaces(suffix), " ,")
	if a == "" {
		return ""
	}
	if s == "" || strings.HasSuffix(strings.ToUpper(a), strings.ToUpper(s)) {
		return a
	}
	return a + ", " + s
}

// Identifier renders a block or lot value as text. The store hands these back
// as strings or numbers depending on the column type; numbers keep their
// shortest exact form so 100 and "100" compare equal.
func Identifier(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return collapseSpaces(t)
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return formatNumber(f)
		}
		return strings.TrimSpace(t.String())
	case float64:
		return formatNumber(t)
	case float32:
		return formatNumber(float64(t))
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return ""
	}
}

// SameIdentifier compares two block or lot values ignoring case, spacing and
// leading zeros on purely numeric values.
func SameIdentifier(a, b string) bool {
	a, b = strings.ToUpper(collapseSpaces(a)), strings.ToUpper(collapseSpaces(b))
	if a == b {
		return true
	}
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	return errA == nil && errB == nil && fa == fb
}

func formatNumber(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
