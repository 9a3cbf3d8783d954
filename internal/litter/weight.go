package litter

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// ErrNoWeight is returned when a text carries no "<number> lb(s)" reading.
var ErrNoWeight = errors.New("no weight found in text")

var reWeight = regexp.MustCompile(`(?i)([-+]?\d+(?:\.\d+)?)\s*(?:lbs|lb)\b`)

// ParseWeight returns the first "<number> lb" or "<number> lbs" value in text.
//
// The number may sit anywhere in the string and may be signed or decimal.
// Numbers followed by other units ("3 kg", "12 lbf") do not match.
func ParseWeight(text string) (float64, error) {
	m := reWeight.FindStringSubmatch(text)
	if len(m) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrNoWeight, text)
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrNoWeight, text, err)
	}
	return v, nil
}
