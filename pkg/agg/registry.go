package agg

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/sveljko/pgmedian/pkg/ordbuf"
)

// Timestamp layouts accepted by the built-in timestamp parsers, tried in
// order.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// TypeInfo describes how a declared type maps onto the accumulator: the
// value class it compares under and how to parse a textual representation
// of it.
type TypeInfo struct {
	Class ordbuf.ValueClass
	Parse func(raw string) (Datum, error)
}

// The registration table mapping declared type names to value classes. It is
// populated once at startup with the built-in types; hosts may add aliases.
var registry = struct {
	mu    sync.RWMutex
	types map[string]TypeInfo
}{types: map[string]TypeInfo{}}

// RegisterType adds or replaces a declared type mapping.
func RegisterType(name string, info TypeInfo) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	registry.types[name] = info
}

// ClassOf returns the value class for a declared type name, or
// ErrUnsupportedType when the name is not registered.
func ClassOf(name string) (ordbuf.ValueClass, error) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	info, ok := registry.types[name]
	if !ok {
		return ordbuf.ClassUnset, fmt.Errorf("%w: %q", ErrUnsupportedType, name)
	}

	return info.Class, nil
}

// ParseDatum parses a textual value according to the declared type.
// ErrUnsupportedType when the type is not registered.
func ParseDatum(typeName, raw string) (Datum, error) {
	registry.mu.RLock()
	info, ok := registry.types[typeName]
	registry.mu.RUnlock()

	if !ok {
		return NullDatum(), fmt.Errorf("%w: %q", ErrUnsupportedType, typeName)
	}

	return info.Parse(raw)
}

func parseIntDatum(bits int) func(string) (Datum, error) {
	return func(raw string) (Datum, error) {
		v, err := strconv.ParseInt(raw, 10, bits)
		if err != nil {
			return NullDatum(), fmt.Errorf("parse integer %q: %w", raw, err)
		}

		return Int64Datum(v), nil
	}
}

func parseTimestampDatum(raw string) (Datum, error) {
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return TimestampDatum(t), nil
		}
	}

	return NullDatum(), fmt.Errorf("parse timestamp %q: unrecognized layout", raw)
}

func parseTextDatum(raw string) (Datum, error) {
	return TextDatum(raw), nil
}

func init() {
	numeral16 := TypeInfo{Class: ordbuf.ClassNumeral, Parse: parseIntDatum(16)}
	numeral32 := TypeInfo{Class: ordbuf.ClassNumeral, Parse: parseIntDatum(32)}
	numeral64 := TypeInfo{Class: ordbuf.ClassNumeral, Parse: parseIntDatum(64)}
	timePoint := TypeInfo{Class: ordbuf.ClassNumeral, Parse: parseTimestampDatum}
	text := TypeInfo{Class: ordbuf.ClassText, Parse: parseTextDatum}

	RegisterType("smallint", numeral16)
	RegisterType("int2", numeral16)
	RegisterType("integer", numeral32)
	RegisterType("int4", numeral32)
	RegisterType("bigint", numeral64)
	RegisterType("int8", numeral64)
	RegisterType("timestamp", timePoint)
	RegisterType("timestamptz", timePoint)
	RegisterType("text", text)
}
