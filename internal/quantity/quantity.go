// Package quantity converts the quantity strings found on container and node
// resource specs into canonical integer units: millicores for CPU and bytes for
// memory.
package quantity

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Family is the unit family of a quantity.
type Family string

const (
	CPU    Family = "cpu"
	Memory Family = "memory"
)

var (
	ErrEmpty    = errors.New("empty quantity")
	ErrNegative = errors.New("negative quantity")
	ErrOverflow = errors.New("quantity overflows int64")
)

// ParseError is returned when a raw quantity string can not be converted.
type ParseError struct {
	Family Family
	Raw    string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid %s quantity %q: %v", e.Family, e.Raw, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// memorySuffixes is checked in order. "M" is a binary mebibyte, the same as "Mi".
var memorySuffixes = []struct {
	suffix     string
	multiplier int64
}{
	{"Ki", 1 << 10},
	{"Mi", 1 << 20},
	{"M", 1 << 20},
	{"Gi", 1 << 30},
}

// Quantity is a parsed, non-negative value in canonical units.
type Quantity struct {
	Family Family
	Value  int64
}

// New parses raw according to family.
func New(family Family, raw string) (Quantity, error) {
	var (
		v   int64
		err error
	)
	switch family {
	case CPU:
		v, err = ParseCPU(raw)
	case Memory:
		v, err = ParseMemory(raw)
	default:
		return Quantity{}, fmt.Errorf("unknown quantity family %q", family)
	}
	if err != nil {
		return Quantity{}, err
	}
	return Quantity{Family: family, Value: v}, nil
}

// ParseCPU returns raw in millicores. A trailing "m" means the prefix already is
// millicores, anything else is a decimal number of cores. Fractional millicores
// are truncated.
func ParseCPU(raw string) (int64, error) {
	if raw == "" {
		return 0, &ParseError{Family: CPU, Raw: raw, Err: ErrEmpty}
	}

	if prefix, ok := strings.CutSuffix(raw, "m"); ok {
		v, err := strconv.ParseInt(prefix, 10, 64)
		if err != nil {
			return 0, &ParseError{Family: CPU, Raw: raw, Err: err}
		}
		if v < 0 {
			return 0, &ParseError{Family: CPU, Raw: raw, Err: ErrNegative}
		}
		return v, nil
	}

	cores, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &ParseError{Family: CPU, Raw: raw, Err: err}
	}
	if math.IsNaN(cores) || math.IsInf(cores, 0) {
		return 0, &ParseError{Family: CPU, Raw: raw, Err: strconv.ErrRange}
	}
	if cores < 0 {
		return 0, &ParseError{Family: CPU, Raw: raw, Err: ErrNegative}
	}
	milli := cores * 1000
	if milli >= math.MaxInt64 {
		return 0, &ParseError{Family: CPU, Raw: raw, Err: ErrOverflow}
	}
	return int64(milli), nil
}

// ParseMemory returns raw in bytes. Recognized suffixes are Ki, Mi, M and Gi;
// without one of them the whole string must be a plain byte count.
func ParseMemory(raw string) (int64, error) {
	if raw == "" {
		return 0, &ParseError{Family: Memory, Raw: raw, Err: ErrEmpty}
	}

	number, multiplier := raw, int64(1)
	for _, s := range memorySuffixes {
		if prefix, ok := strings.CutSuffix(raw, s.suffix); ok {
			number, multiplier = prefix, s.multiplier
			break
		}
	}

	v, err := strconv.ParseInt(number, 10, 64)
	if err != nil {
		return 0, &ParseError{Family: Memory, Raw: raw, Err: err}
	}
	if v < 0 {
		return 0, &ParseError{Family: Memory, Raw: raw, Err: ErrNegative}
	}
	if v > math.MaxInt64/multiplier {
		return 0, &ParseError{Family: Memory, Raw: raw, Err: ErrOverflow}
	}
	return v * multiplier, nil
}
