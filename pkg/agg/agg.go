// Package agg maps host aggregate calling conventions onto the ordered
// buffer: per-row transfer, per-row inverse transfer for values leaving a
// sliding window, and a non-mutating finalize read-out.
//
// The conventions mirror an aggregate-execution engine: null inputs pass
// through as identity, the accumulator is created lazily on the first
// non-null value, every mutating call returns the authoritative state
// handle, and all entry points require a valid aggregate context. Every
// error is fatal for the enclosing aggregation; nothing is retried.
package agg

import (
	"errors"
	"fmt"
	"time"

	"github.com/sveljko/pgmedian/pkg/ordbuf"
)

var (
	// ErrNoAggregateContext is returned when an entry point is invoked
	// outside a valid aggregate context.
	ErrNoAggregateContext = errors.New("agg: called outside an aggregate context")

	// ErrUnsupportedType is returned when the declared input type does not
	// map to a known value class.
	ErrUnsupportedType = errors.New("agg: unsupported declared type")
)

// Context carries the per-aggregation facts fixed by the host: the declared
// type of the aggregated expression and the collation in effect. The value
// class is resolved from the declared type on the first transfer and stays
// fixed for the context's lifetime.
type Context struct {
	typeName  string
	collation ordbuf.Collation
	class     ordbuf.ValueClass
	resolved  bool
}

// NewContext creates an aggregate context for the given declared type name
// and collation. The type name is validated lazily, at the first transfer.
func NewContext(typeName string, collation ordbuf.Collation) *Context {
	return &Context{typeName: typeName, collation: collation}
}

// TypeName returns the declared type this context was created for.
func (c *Context) TypeName() string {
	return c.typeName
}

// Collation returns the collation in effect for this aggregation.
func (c *Context) Collation() ordbuf.Collation {
	return c.collation
}

// resolveClass maps the declared type to its value class, once.
func (c *Context) resolveClass() (ordbuf.ValueClass, error) {
	if c.resolved {
		return c.class, nil
	}

	class, err := ClassOf(c.typeName)
	if err != nil {
		return ordbuf.ClassUnset, err
	}

	c.class = class
	c.resolved = true

	return class, nil
}

// Datum is a nullable input or result value.
type Datum struct {
	value ordbuf.Value
	valid bool
}

// NullDatum returns the null datum.
func NullDatum() Datum {
	return Datum{}
}

// Int16Datum wraps a smallint input, widened to the numeral class.
func Int16Datum(v int16) Datum {
	return Int64Datum(int64(v))
}

// Int32Datum wraps an integer input, widened to the numeral class.
func Int32Datum(v int32) Datum {
	return Int64Datum(int64(v))
}

// Int64Datum wraps a bigint input.
func Int64Datum(v int64) Datum {
	return Datum{value: ordbuf.Numeral(v), valid: true}
}

// TimestampDatum wraps a time point, encoded as microseconds since the Unix
// epoch so it orders exactly like a numeral.
func TimestampDatum(t time.Time) Datum {
	return Int64Datum(t.UnixMicro())
}

// TextDatum wraps a text input.
func TextDatum(s string) Datum {
	return Datum{value: ordbuf.Text(s), valid: true}
}

// IsNull reports whether the datum is null.
func (d Datum) IsNull() bool {
	return !d.valid
}

// Value returns the underlying value. Calling it on a null datum is a
// programmer error.
func (d Datum) Value() ordbuf.Value {
	if !d.valid {
		panic("agg: Value called on a null datum")
	}

	return d.value
}

// String renders the datum for diagnostics and plain output.
func (d Datum) String() string {
	if !d.valid {
		return "NULL"
	}

	return d.value.String()
}

// State is the accumulator handle owned by one logical aggregation. A nil
// *State means the aggregation has not seen a non-null value yet.
type State struct {
	buf *ordbuf.Buffer
}

// Buffer exposes the underlying ordered buffer, for snapshotting and
// inspection.
func (s *State) Buffer() *ordbuf.Buffer {
	return s.buf
}

// Len returns the number of accumulated values; zero for an absent state.
func (s *State) Len() int {
	if s == nil {
		return 0
	}

	return s.buf.Len()
}

// Transfer is called once per input row. A null value passes the state
// through unchanged; the first non-null value creates the accumulator.
// The returned handle is authoritative from then on.
func Transfer(ctx *Context, st *State, d Datum) (*State, error) {
	if ctx == nil {
		return st, fmt.Errorf("%w: transfer", ErrNoAggregateContext)
	}

	if d.IsNull() {
		return st, nil
	}

	class, err := ctx.resolveClass()
	if err != nil {
		return st, err
	}

	if d.value.Class() != class {
		return st, fmt.Errorf("%w: %s datum for declared type %q",
			ordbuf.ErrClassMismatch, d.value.Class(), ctx.typeName)
	}

	if st == nil {
		st = &State{buf: ordbuf.New()}
	}

	err = st.buf.Insert(d.value, ctx.collation)
	if err != nil {
		return st, err
	}

	return st, nil
}

// InverseTransfer is called once per row leaving a sliding window; it mirrors
// Transfer but removes. The host guarantees a prior Transfer established the
// state, so a remove miss is surfaced, never ignored.
func InverseTransfer(ctx *Context, st *State, d Datum) (*State, error) {
	if ctx == nil {
		return st, fmt.Errorf("%w: inverse transfer", ErrNoAggregateContext)
	}

	if d.IsNull() {
		return st, nil
	}

	class, err := ctx.resolveClass()
	if err != nil {
		return st, err
	}

	if d.value.Class() != class {
		return st, fmt.Errorf("%w: %s datum for declared type %q",
			ordbuf.ErrClassMismatch, d.value.Class(), ctx.typeName)
	}

	if st == nil {
		return st, fmt.Errorf("%w: %s", ordbuf.ErrValueNotFound, d.value)
	}

	err = st.buf.Remove(d.value, ctx.collation)
	if err != nil {
		return st, err
	}

	return st, nil
}

// Finalize reads the current median out of the state. It does not mutate and
// may be called repeatedly. The result is null for an absent or empty state.
func Finalize(ctx *Context, st *State) (Datum, error) {
	if ctx == nil {
		return NullDatum(), fmt.Errorf("%w: finalize", ErrNoAggregateContext)
	}

	if st == nil {
		return NullDatum(), nil
	}

	med, ok := st.buf.Median()
	if !ok {
		return NullDatum(), nil
	}

	return Datum{value: med, valid: true}, nil
}
