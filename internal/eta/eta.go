// Package eta reads the free-form display figures drivers carry
// ("3 min", "R15", "2.1 km") so match strategies can rank them.
package eta

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Minutes parses values such as "3 min", "5 minutes", "1 hour" or "45s".
// A bare number is taken as minutes.
func Minutes(s string) (float64, error) {
	num, unit, err := split(s)
	if err != nil {
		return 0, err
	}
	switch unit {
	case "", "m", "min", "mins", "minute", "minutes":
		return num, nil
	case "s", "sec", "secs", "second", "seconds":
		return num / 60, nil
	case "h", "hr", "hrs", "hour", "hours":
		return num * 60, nil
	}
	return 0, fmt.Errorf("unknown time unit in %q", s)
}

// Seconds is Minutes scaled to seconds.
func Seconds(s string) (float64, error) {
	m, err := Minutes(s)
	return m * 60, err
}

// Rands parses prices such as "R15" or "R 12.50".
func Rands(s string) (float64, error) {
	t := strings.TrimSpace(s)
	t = strings.TrimPrefix(strings.TrimPrefix(t, "R"), "r")
	t = strings.ReplaceAll(strings.TrimSpace(t), ",", ".")
	v, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid price %q", s)
	}
	return v, nil
}

// Kilometres parses "2.1 km" or "800 m".
func Kilometres(s string) (float64, error) {
	num, unit, err := split(s)
	if err != nil {
		return 0, err
	}
	switch unit {
	case "", "km", "kms":
		return num, nil
	case "m":
		return num / 1000, nil
	}
	return 0, fmt.Errorf("unknown distance unit in %q", s)
}

func split(s string) (float64, string, error) {
	t := strings.TrimSpace(strings.ToLower(s))
	i := strings.IndexFunc(t, func(r rune) bool { return !(unicode.IsDigit(r) || r == '.') })
	numPart, unit := t, ""
	if i >= 0 {
		numPart, unit = t[:i], strings.TrimSpace(t[i:])
	}
	v, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return 0, "", fmt.Errorf("invalid figure %q", s)
	}
	return v, unit, nil
}
