package parse

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidCone is returned for text that is not a pyrometric cone.
var ErrInvalidCone = errors.New("invalid cone")

var coneRe = regexp.MustCompile(`(?i)^(?:cone|c|\^)?\s*(0?)(\d{1,2})$`)

// Cone normalizes a pyrometric cone designation such as "Cone 06", "^6" or
// "c10" to its bare form ("06", "6", "10"). Cones with a leading zero run
// from 022 to 01; the others from 1 to 14. Empty input returns "".
func Cone(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", nil
	}

	m := coneRe.FindStringSubmatch(s)
	if m == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidCone, raw)
	}

	n, err := strconv.Atoi(m[2])
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidCone, raw)
	}

	if m[1] == "0" {
		if n < 1 || n > 22 {
			return "", fmt.Errorf("%w: %q out of range 022-01", ErrInvalidCone, raw)
		}
		return fmt.Sprintf("0%d", n), nil
	}
	if n < 1 || n > 14 {
		return "", fmt.Errorf("%w: %q out of range 1-14", ErrInvalidCone, raw)
	}
	return strconv.Itoa(n), nil
}
