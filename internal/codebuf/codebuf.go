// Package codebuf holds a mutable instruction buffer together with every
// offset that must stay valid when bytes are spliced into it.
package codebuf

import (
	"errors"
	"fmt"
)

// ErrBadOffset is returned for insert positions or marks outside the buffer.
var ErrBadOffset = errors.New("offset out of range")

// Anchor is anything that carries an offset into a Buffer.
type Anchor interface {
	Offset() int
	SetOffset(int)
}

// Shifter is notified of every insertion into a Buffer.
type Shifter interface {
	Shift(at, length int)
}

// Registry tracks a set of anchors and applies the insertion rule to all of
// them: after inserting length bytes at position at, every offset greater
// than at moves forward by length. Offsets at or before at do not move.
type Registry[T Anchor] struct {
	items []T
}

// Add registers an anchor and returns its id.
func (r *Registry[T]) Add(a T) int {
	r.items = append(r.items, a)
	return len(r.items) - 1
}

// Get returns the anchor registered under id.
func (r *Registry[T]) Get(id int) (T, bool) {
	var zero T
	if id < 0 || id >= len(r.items) {
		return zero, false
	}
	return r.items[id], true
}

// Len returns the number of tracked anchors.
func (r *Registry[T]) Len() int {
	return len(r.items)
}

// Items returns the tracked anchors in registration order.
func (r *Registry[T]) Items() []T {
	return r.items
}

// Shift implements Shifter.
func (r *Registry[T]) Shift(at, length int) {
	for _, a := range r.items {
		if off := a.Offset(); off > at {
			a.SetOffset(off + length)
		}
	}
}

// mark is a bare tracked offset.
type mark struct {
	pos int
}

func (m *mark) Offset() int     { return m.pos }
func (m *mark) SetOffset(p int) { m.pos = p }

// Buffer is an instruction buffer that keeps marks and registered shifters
// in sync with insertions.
type Buffer struct {
	code     []byte
	marks    Registry[*mark]
	shifters []Shifter
}

// New wraps code. The slice is copied.
func New(code []byte) *Buffer {
	b := &Buffer{code: append([]byte(nil), code...)}
	b.shifters = append(b.shifters, &b.marks)
	return b
}

// Bytes returns the current contents. Callers must not modify it.
func (b *Buffer) Bytes() []byte {
	return b.code
}

// Len returns the current buffer length.
func (b *Buffer) Len() int {
	return len(b.code)
}

// Track registers s to be shifted on every insertion.
func (b *Buffer) Track(s Shifter) {
	b.shifters = append(b.shifters, s)
}

// Mark starts tracking offset and returns the mark id.
func (b *Buffer) Mark(offset int) int {
	return b.marks.Add(&mark{pos: offset})
}

// Resolve returns the current offset of a mark.
func (b *Buffer) Resolve(id int) (int, error) {
	m, ok := b.marks.Get(id)
	if !ok {
		return 0, fmt.Errorf("mark %d: %w", id, ErrBadOffset)
	}
	return m.pos, nil
}

// Insert splices data into the buffer at position at and shifts every
// tracked offset. Branch operands inside the code are not relocated.
func (b *Buffer) Insert(at int, data []byte) error {
	if at < 0 || at > len(b.code) {
		return fmt.Errorf("insert at %d (len %d): %w", at, len(b.code), ErrBadOffset)
	}
	if len(data) == 0 {
		return nil
	}
	code := make([]byte, 0, len(b.code)+len(data))
	code = append(code, b.code[:at]...)
	code = append(code, data...)
	code = append(code, b.code[at:]...)
	b.code = code

	for _, s := range b.shifters {
		s.Shift(at, len(data))
	}
	return nil
}
