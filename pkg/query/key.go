package query

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Key names one cacheable fetch. Elements are compared by their text form,
// in order: nil is "null", floats always carry a fraction ("1.0", "1.0E7"),
// everything else uses fmt.Sprint.
type Key []any

const (
	keySeparator     = ":"
	lastQueryTimeSfx = "_lastQueryTime"
)

// StorageKey digests k into the persistor key for its cached value.
func StorageKey(k Key) string {
	parts := make([]string, len(k))
	for i, part := range k {
		parts[i] = keyPart(part)
	}
	sum := md5.Sum([]byte(strings.Join(parts, keySeparator)))
	return hex.EncodeToString(sum[:])
}

// timestampKey is the sibling entry holding the last successful fetch time.
func timestampKey(storageKey string) string {
	return storageKey + lastQueryTimeSfx
}

func keyPart(part any) string {
	switch v := part.(type) {
	case nil:
		return "null"
	case float64:
		return formatFloat(v, 64)
	case float32:
		return formatFloat(float64(v), 32)
	default:
		return fmt.Sprint(v)
	}
}

// formatFloat renders f with a decimal point, switching to E notation
// outside [1e-3, 1e7).
func formatFloat(f float64, bitSize int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}

	abs := math.Abs(f)
	if f == 0 || (abs >= 1e-3 && abs < 1e7) {
		s := strconv.FormatFloat(f, 'f', -1, bitSize)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	}

	mantissa, exp, _ := strings.Cut(strconv.FormatFloat(f, 'E', -1, bitSize), "E")
	if !strings.Contains(mantissa, ".") {
		mantissa += ".0"
	}
	sign := ""
	if strings.HasPrefix(exp, "-") {
		sign = "-"
	}
	exp = strings.TrimLeft(exp, "+-0")
	return mantissa + "E" + sign + exp
}
