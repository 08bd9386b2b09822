// Package ordbuf implements an order-preserving growable buffer for
// incremental order-statistic aggregation.
//
// The buffer keeps every inserted element sorted at all times, supports
// removal of arbitrary values while preserving order, and reads the median
// out by index in O(1). Insert and remove are O(n) linear scans with a block
// shift; this scales fine while the data fits comfortably in memory and is
// the structure's documented limitation for very large inputs. A paged
// layout would cut the shift cost, at the price of slower iteration.
//
// Each buffer holds elements of exactly one value class, fixed by the first
// insertion: 64-bit signed integers (which also cover integer-encoded time
// points) or owned byte strings compared under a caller-supplied collation.
package ordbuf

import (
	"bytes"
	"cmp"
	"strconv"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// ValueClass selects the representation and comparison strategy of a Value.
type ValueClass uint8

const (
	// ClassUnset marks a zero Value or a buffer that has not seen an
	// insertion yet.
	ClassUnset ValueClass = iota

	// ClassNumeral is the 64-bit signed integer class.
	ClassNumeral

	// ClassText is the owned byte string class.
	ClassText
)

// String returns the class name for diagnostics.
func (c ValueClass) String() string {
	switch c {
	case ClassNumeral:
		return "numeral"
	case ClassText:
		return "text"
	default:
		return "unset"
	}
}

// Collation identifies the text comparison order. The zero value, "C" and
// "POSIX" mean raw byte order; anything else is interpreted as a BCP-47
// language tag and compared with the x/text collator for that tag.
// The collation is supplied on every comparison call and is never stored in
// an element.
type Collation string

// CollationByte is the raw byte-order collation.
const CollationByte Collation = ""

// byteOrder reports whether the collation means plain byte comparison.
func (c Collation) byteOrder() bool {
	return c == "" || c == "C" || c == "POSIX"
}

// Value is a tagged variant over the two element representations.
// Text values own their byte content.
type Value struct {
	text  []byte
	num   int64
	class ValueClass
}

// Numeral returns a numeral Value.
func Numeral(v int64) Value {
	return Value{num: v, class: ClassNumeral}
}

// Text returns a text Value owning a copy of s.
func Text(s string) Value {
	return Value{text: []byte(s), class: ClassText}
}

// TextBytes returns a text Value owning a copy of b.
func TextBytes(b []byte) Value {
	return Value{text: bytes.Clone(b), class: ClassText}
}

// Class returns the value class tag.
func (v Value) Class() ValueClass {
	return v.class
}

// Int64 returns the numeral content. Calling it on a non-numeral Value is a
// programmer error.
func (v Value) Int64() int64 {
	if v.class != ClassNumeral {
		panic("ordbuf: Int64 called on a " + v.class.String() + " value")
	}

	return v.num
}

// Text returns the text content as a string. Calling it on a non-text Value
// is a programmer error.
func (v Value) Text() string {
	if v.class != ClassText {
		panic("ordbuf: Text called on a " + v.class.String() + " value")
	}

	return string(v.text)
}

// String renders the value for diagnostics.
func (v Value) String() string {
	switch v.class {
	case ClassNumeral:
		return strconv.FormatInt(v.num, 10)
	case ClassText:
		return strconv.Quote(string(v.text))
	default:
		return "<unset>"
	}
}

// Compare orders two values of the same class: negative when a < b, zero
// when equal, positive when a > b. Comparing values of different classes is
// a programmer error; the calling glue fixes the class per aggregation.
func Compare(a, b Value, coll Collation) int {
	if a.class != b.class {
		panic("ordbuf: cannot compare " + a.class.String() + " with " + b.class.String())
	}

	switch a.class {
	case ClassNumeral:
		return cmp.Compare(a.num, b.num)
	case ClassText:
		return compareText(a.text, b.text, coll)
	default:
		panic("ordbuf: cannot compare values of the unset class")
	}
}

func compareText(a, b []byte, coll Collation) int {
	if coll.byteOrder() {
		return bytes.Compare(a, b)
	}

	return collatorFor(coll).Compare(a, b)
}

// Collators are cached per tag: building one walks the CLDR tables and is
// far too slow to repeat on every comparison.
var (
	collatorMu  sync.Mutex
	collatorTab = map[Collation]*collate.Collator{}
)

func collatorFor(coll Collation) *collate.Collator {
	collatorMu.Lock()
	defer collatorMu.Unlock()

	c, ok := collatorTab[coll]
	if !ok {
		c = collate.New(language.Make(string(coll)))
		collatorTab[coll] = c
	}

	return c
}
