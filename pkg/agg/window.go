package agg

import (
	"errors"
	"fmt"
)

// ErrInvalidWindowSize is returned when a window is created with a size
// below one.
var ErrInvalidWindowSize = errors.New("agg: window size must be at least 1")

// Window drives the moving-aggregate calling convention over a fixed-size
// sliding window: once the window is full, each new row pairs an inverse
// transfer of the oldest row with a transfer of the new one. Null rows
// occupy window positions like any other row; both transfer directions
// treat them as identity.
type Window struct {
	ctx  *Context
	st   *State
	ring []Datum
	size int
}

// NewWindow creates a sliding window of the given size over ctx.
func NewWindow(ctx *Context, size int) (*Window, error) {
	if ctx == nil {
		return nil, fmt.Errorf("%w: window", ErrNoAggregateContext)
	}

	if size < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWindowSize, size)
	}

	return &Window{ctx: ctx, size: size}, nil
}

// Push slides the window forward by one row: evicts the oldest row when the
// window is full, then accumulates d.
func (w *Window) Push(d Datum) error {
	if len(w.ring) == w.size {
		st, err := InverseTransfer(w.ctx, w.st, w.ring[0])
		if err != nil {
			return err
		}

		w.st = st
		w.ring = append(w.ring[:0], w.ring[1:]...)
	}

	st, err := Transfer(w.ctx, w.st, d)
	if err != nil {
		return err
	}

	w.st = st
	w.ring = append(w.ring, d)

	return nil
}

// Oldest returns the row next in line for eviction; false when the window is
// empty.
func (w *Window) Oldest() (Datum, bool) {
	if len(w.ring) == 0 {
		return NullDatum(), false
	}

	return w.ring[0], true
}

// Len returns the number of rows currently inside the window.
func (w *Window) Len() int {
	return len(w.ring)
}

// Median reads the current window median; null while the window holds only
// null rows or nothing at all.
func (w *Window) Median() (Datum, error) {
	return Finalize(w.ctx, w.st)
}

// State exposes the underlying accumulator handle.
func (w *Window) State() *State {
	return w.st
}
