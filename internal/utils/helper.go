package utils

import (
	"fmt"
	"strconv"
)

// ParseBoundedInt reads an optional integer query value. Empty input yields
// def; anything outside [min, max] is an error.
func ParseBoundedInt(raw string, def, min, max int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%q no es un número entero", raw)
	}
	if n < min || n > max {
		return 0, fmt.Errorf("el valor debe estar entre %d y %d", min, max)
	}
	return n, nil
}
