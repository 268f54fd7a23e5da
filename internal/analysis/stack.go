package analysis

import (
	"errors"
	"fmt"
	"strings"

	"stackscope/internal/disasm"
)

// ErrStackUnderflow is returned when a pop needs more slots than the stack holds.
var ErrStackUnderflow = errors.New("stack underflow")

// ElementKind tags the provenance of a stack value.
type ElementKind uint8

const (
	Unknown ElementKind = iota
	FromLocal
	TrackedArray
	Placeholder
	Constant
)

func (k ElementKind) String() string {
	switch k {
	case Unknown:
		return "unknown"
	case FromLocal:
		return "local"
	case TrackedArray:
		return "array"
	case Placeholder:
		return "top"
	case Constant:
		return "const"
	}
	return "invalid"
}

// Element is one stack slot. Only the fields of its Kind are meaningful:
// Var for FromLocal, Array and Elements for TrackedArray, Value for Constant.
//
// Elements is shared between copies and never written in place; updates
// replace the slice.
type Element struct {
	Kind     ElementKind
	Var      int
	Array    int
	Elements []Element
	Value    int
}

func UnknownValue() Element       { return Element{Kind: Unknown} }
func LocalValue(id int) Element   { return Element{Kind: FromLocal, Var: id} }
func ConstantValue(v int) Element { return Element{Kind: Constant, Value: v} }

// ArrayValue returns a tracked array of n unknown elements. id identifies
// the allocation so that every copy of the reference sees the same stores.
func ArrayValue(id, n int) Element {
	return Element{Kind: TrackedArray, Array: id, Elements: make([]Element, n)}
}

func (e Element) String() string {
	switch e.Kind {
	case FromLocal:
		return fmt.Sprintf("local#%d", e.Var)
	case TrackedArray:
		parts := make([]string, len(e.Elements))
		for i, el := range e.Elements {
			parts[i] = el.String()
		}
		return fmt.Sprintf("array@%d{%s}", e.Array, strings.Join(parts, ", "))
	case Placeholder:
		return "top"
	case Constant:
		return fmt.Sprintf("%d", e.Value)
	}
	return "?"
}

// Stack is a symbolic operand stack. A category 2 value occupies two slots:
// the value and a Placeholder above it.
type Stack struct {
	slots []Element // bottom first
}

// NewStack returns a stack holding elems, bottom first.
func NewStack(elems ...Element) *Stack {
	return &Stack{slots: append([]Element(nil), elems...)}
}

// Push adds a one-slot value.
func (s *Stack) Push(e Element) {
	s.slots = append(s.slots, e)
}

// Push2 adds a two-slot value.
func (s *Stack) Push2(e Element) {
	s.slots = append(s.slots, e, Element{Kind: Placeholder})
}

// PushWidth pushes e as a value of width w. A zero width pushes nothing.
func (s *Stack) PushWidth(e Element, w disasm.Width) {
	switch w {
	case disasm.Single:
		s.Push(e)
	case disasm.Double:
		s.Push2(e)
	}
}

// Pop removes and returns the top slot.
func (s *Stack) Pop() (Element, error) {
	n := len(s.slots)
	if n == 0 {
		return Element{}, fmt.Errorf("pop on empty stack: %w", ErrStackUnderflow)
	}
	e := s.slots[n-1]
	s.slots = s.slots[:n-1]
	return e, nil
}

// Pop2 removes the top two slots and returns the lower one, which holds the
// value of a category 2 entry.
func (s *Stack) Pop2() (Element, error) {
	n := len(s.slots)
	if n < 2 {
		return Element{}, fmt.Errorf("pop2 on %d slots: %w", n, ErrStackUnderflow)
	}
	e := s.slots[n-2]
	s.slots = s.slots[:n-2]
	return e, nil
}

// PopWidth pops a value of width w.
func (s *Stack) PopWidth(w disasm.Width) (Element, error) {
	if w == disasm.Double {
		return s.Pop2()
	}
	return s.Pop()
}

// PopSlots removes n slots and returns them bottom first.
func (s *Stack) PopSlots(n int) ([]Element, error) {
	if n > len(s.slots) {
		return nil, fmt.Errorf("pop %d slots of %d: %w", n, len(s.slots), ErrStackUnderflow)
	}
	out := append([]Element(nil), s.slots[len(s.slots)-n:]...)
	s.slots = s.slots[:len(s.slots)-n]
	return out, nil
}

// PushSlots pushes raw slots, bottom first.
func (s *Stack) PushSlots(slots ...Element) {
	s.slots = append(s.slots, slots...)
}

// Peek returns the slot depth positions below the top.
func (s *Stack) Peek(depth int) (Element, bool) {
	i := len(s.slots) - 1 - depth
	if depth < 0 || i < 0 {
		return Element{}, false
	}
	return s.slots[i], true
}

// Slots returns the number of occupied slots.
func (s *Stack) Slots() int {
	return len(s.slots)
}

// Elements returns the slots top first.
func (s *Stack) Elements() []Element {
	out := make([]Element, len(s.slots))
	for i, e := range s.slots {
		out[len(s.slots)-1-i] = e
	}
	return out
}

// Copy returns an independent snapshot.
func (s *Stack) Copy() *Stack {
	return &Stack{slots: append([]Element(nil), s.slots...)}
}

// Kinds returns the slot kinds top first; two stacks with equal kinds have
// the same shape.
func (s *Stack) Kinds() []ElementKind {
	out := make([]ElementKind, 0, len(s.slots))
	for i := len(s.slots) - 1; i >= 0; i-- {
		out = append(out, s.slots[i].Kind)
	}
	return out
}

// StoreElement records value at index of every reference to tracked array id.
func (s *Stack) StoreElement(id, index int, value Element) {
	for i, e := range s.slots {
		if e.Kind != TrackedArray || e.Array != id || index < 0 || index >= len(e.Elements) {
			continue
		}
		elems := append([]Element(nil), e.Elements...)
		elems[index] = value
		s.slots[i].Elements = elems
	}
}

// String renders the stack top first: [top, 1, local#2].
func (s *Stack) String() string {
	return s.Format(nil)
}

// Format renders the stack top first, naming FromLocal values through vars
// when it is not nil.
func (s *Stack) Format(vars *LocalVariables) string {
	parts := make([]string, 0, len(s.slots))
	for i := len(s.slots) - 1; i >= 0; i-- {
		parts = append(parts, formatElement(s.slots[i], vars))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatElement(e Element, vars *LocalVariables) string {
	switch e.Kind {
	case FromLocal:
		if v, ok := vars.Get(e.Var); ok {
			return v.Name
		}
	case TrackedArray:
		parts := make([]string, len(e.Elements))
		for i, el := range e.Elements {
			parts[i] = formatElement(el, vars)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return e.String()
}
