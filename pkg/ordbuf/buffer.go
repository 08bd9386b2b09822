package ordbuf

import (
	"errors"
	"fmt"
	"math"
)

// initialCapacity is the number of element slots allocated on creation.
const initialCapacity = 64

// growNumerator and growDenominator define the 3/2 capacity growth factor.
const (
	growNumerator   = 3
	growDenominator = 2
)

var (
	// ErrCapacityOverflow is returned when the capacity growth arithmetic
	// would wrap, i.e. the buffer reached its addressable maximum.
	ErrCapacityOverflow = errors.New("ordbuf: capacity growth overflows")

	// ErrValueNotFound is returned by Remove when no equal element exists.
	// The caller guarantees remove-of-insert ordering, so a miss means its
	// bookkeeping diverged from the buffer and the running result can no
	// longer be trusted.
	ErrValueNotFound = errors.New("ordbuf: value not found")

	// ErrClassMismatch is returned when an operation supplies a value whose
	// class differs from the class fixed at the buffer's first insertion.
	ErrClassMismatch = errors.New("ordbuf: value class mismatch")
)

// Buffer is a growable sequence of same-class elements kept sorted ascending
// at all times. A Buffer is owned by exactly one logical aggregation and is
// not safe for concurrent use.
type Buffer struct {
	// elems holds the first Len() elements of the Cap() allocated slots.
	// Invariant: elems[i] <= elems[i+1] under the active comparator.
	elems []Value

	// class is fixed by the first insertion and never changes afterwards.
	class ValueClass
}

// New creates an empty buffer with the initial capacity and no class fixed.
func New() *Buffer {
	return &Buffer{elems: make([]Value, 0, initialCapacity)}
}

// Len returns the number of stored elements.
func (b *Buffer) Len() int {
	return len(b.elems)
}

// Cap returns the number of allocated element slots.
func (b *Buffer) Cap() int {
	return cap(b.elems)
}

// Class returns the value class fixed at the first insertion, or ClassUnset
// before any insertion.
func (b *Buffer) Class() ValueClass {
	return b.class
}

// At returns the element at index i, 0 <= i < Len().
func (b *Buffer) At(i int) Value {
	return b.elems[i]
}

// Reserve grows the storage so that at least n element slots are allocated.
// Contents are preserved; the storage may be relocated. Capacity never
// shrinks.
func (b *Buffer) Reserve(n int) error {
	if n <= cap(b.elems) {
		return nil
	}

	grown := make([]Value, len(b.elems), n)
	copy(grown, b.elems)
	b.elems = grown

	return nil
}

// grow applies the 3/2 growth policy when the next insertion would exceed
// capacity.
func (b *Buffer) grow() error {
	if len(b.elems) < cap(b.elems) {
		return nil
	}

	if cap(b.elems) > math.MaxInt/growNumerator {
		return fmt.Errorf("%w: capacity %d", ErrCapacityOverflow, cap(b.elems))
	}

	return b.Reserve(cap(b.elems) * growNumerator / growDenominator)
}

// Insert places x at its sorted position: before the first element that is
// not less than x. Equal values therefore land before existing equals.
// The first insertion fixes the buffer's value class.
func (b *Buffer) Insert(x Value, coll Collation) error {
	if x.class == ClassUnset {
		return fmt.Errorf("%w: cannot insert an unset value", ErrClassMismatch)
	}

	if b.class == ClassUnset {
		b.class = x.class
	}

	if x.class != b.class {
		return fmt.Errorf("%w: %s into a %s buffer", ErrClassMismatch, x.class, b.class)
	}

	err := b.grow()
	if err != nil {
		return err
	}

	at := len(b.elems)

	for i := range b.elems {
		if Compare(b.elems[i], x, coll) >= 0 {
			at = i

			break
		}
	}

	b.elems = b.elems[:len(b.elems)+1]
	copy(b.elems[at+1:], b.elems[at:])
	b.elems[at] = x

	return nil
}

// Remove deletes the first element equal to x, shifting the whole remaining
// suffix left by one. Returns ErrValueNotFound when no equal element exists;
// the caller must treat that as fatal rather than ignore it, as it indicates
// the running aggregate is corrupt.
func (b *Buffer) Remove(x Value, coll Collation) error {
	if x.class != b.class {
		return fmt.Errorf("%w: remove %s from a %s buffer", ErrClassMismatch, x.class, b.class)
	}

	for i := range b.elems {
		if Compare(b.elems[i], x, coll) == 0 {
			last := len(b.elems) - 1

			copy(b.elems[i:], b.elems[i+1:])
			b.elems[last] = Value{} // release text bytes
			b.elems = b.elems[:last]

			return nil
		}
	}

	return fmt.Errorf("%w: %s", ErrValueNotFound, x)
}

// Median returns the element at index Len()/2 - for even counts the upper
// of the two middle elements, never an average. The second result is false
// when the buffer is empty, which callers must surface as "no median".
func (b *Buffer) Median() (Value, bool) {
	if len(b.elems) == 0 {
		return Value{}, false
	}

	return b.elems[len(b.elems)/2], true
}
