package analysis

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestStackPushPop(t *testing.T) {
	s := NewStack()
	s.Push(ConstantValue(1))
	s.Push2(LocalValue(3))
	if s.Slots() != 3 {
		t.Fatalf("Slots = %d, want 3", s.Slots())
	}
	if diff := cmp.Diff([]ElementKind{Placeholder, FromLocal, Constant}, s.Kinds()); diff != "" {
		t.Errorf("kinds mismatch (-want +got):\n%s", diff)
	}

	v, err := s.Pop2()
	if err != nil {
		t.Fatal(err)
	}
	if v.Kind != FromLocal || v.Var != 3 {
		t.Errorf("Pop2 = %v, want local#3", v)
	}
	if v, _ = s.Pop(); v.Value != 1 {
		t.Errorf("Pop = %v, want 1", v)
	}

	if _, err := s.Pop(); !errors.Is(err, ErrStackUnderflow) {
		t.Errorf("Pop on empty: %v", err)
	}
	s.Push(UnknownValue())
	if _, err := s.Pop2(); !errors.Is(err, ErrStackUnderflow) {
		t.Errorf("Pop2 on one slot: %v", err)
	}
	if s.Slots() != 1 {
		t.Errorf("failed Pop2 must not change the stack, have %d slots", s.Slots())
	}
}

func TestStackCopyIsIndependent(t *testing.T) {
	s := NewStack(ArrayValue(7, 2))
	s.Push(ArrayValue(7, 2))
	snapshot := s.Copy()

	s.StoreElement(7, 1, LocalValue(0))
	s.Push(UnknownValue())

	if snapshot.Slots() != 2 {
		t.Errorf("snapshot slots = %d, want 2", snapshot.Slots())
	}
	top, _ := snapshot.Peek(0)
	if top.Elements[1].Kind != Unknown {
		t.Errorf("snapshot element changed: %v", top)
	}

	for depth := 1; depth <= 2; depth++ {
		e, _ := s.Peek(depth)
		if e.Elements[1].Kind != FromLocal {
			t.Errorf("reference at depth %d not updated: %v", depth, e)
		}
	}
}

func TestStackFormat(t *testing.T) {
	vars, err := NewLocalVariables("m(I)V", true, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	s := NewStack(LocalValue(0), ConstantValue(4))
	s.Push2(UnknownValue())
	if got := s.String(); got != "[top, ?, 4, local#0]" {
		t.Errorf("String = %q", got)
	}
	if got := s.Format(vars); got != "[top, ?, 4, local#0]" {
		t.Errorf("Format with empty table = %q", got)
	}
}
