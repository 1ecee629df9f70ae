package classify

import (
	"strconv"
	"strings"
)

// FormatProbability prints the shortest decimal that round-trips through
// float32, always with a fractional part: 0.93, 1.0, 5e-05.
func FormatProbability(p float32) string {
	s := strconv.FormatFloat(float64(p), 'g', -1, 32)
	if !strings.ContainsAny(s, ".eEn") {
		s += ".0"
	}
	return s
}
