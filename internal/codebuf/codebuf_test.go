package codebuf

import (
	"bytes"
	"errors"
	"testing"
)

func TestMarksShiftOnInsert(t *testing.T) {
	tests := []struct {
		name   string
		mark   int
		at     int
		length int
		want   int
	}{
		{name: "after insertion point", mark: 50, at: 20, length: 4, want: 54},
		{name: "before insertion point", mark: 10, at: 20, length: 4, want: 10},
		{name: "exactly at insertion point", mark: 20, at: 20, length: 4, want: 20},
		{name: "one past insertion point", mark: 21, at: 20, length: 3, want: 24},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New(make([]byte, 64))
			id := b.Mark(tt.mark)
			if err := b.Insert(tt.at, make([]byte, tt.length)); err != nil {
				t.Fatal(err)
			}
			got, err := b.Resolve(id)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Resolve() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestInsertSplicesBytes(t *testing.T) {
	b := New([]byte{1, 2, 3, 4})
	if err := b.Insert(2, []byte{9, 9}); err != nil {
		t.Fatal(err)
	}
	if want := []byte{1, 2, 9, 9, 3, 4}; !bytes.Equal(b.Bytes(), want) {
		t.Errorf("Bytes() = %v, want %v", b.Bytes(), want)
	}
	if b.Len() != 6 {
		t.Errorf("Len() = %d, want 6", b.Len())
	}

	if err := b.Insert(6, []byte{7}); err != nil {
		t.Fatalf("append at end: %v", err)
	}
	if err := b.Insert(8, []byte{7}); !errors.Is(err, ErrBadOffset) {
		t.Errorf("Insert past end error = %v, want ErrBadOffset", err)
	}
}

type anchor struct{ pos int }

func (a *anchor) Offset() int     { return a.pos }
func (a *anchor) SetOffset(p int) { a.pos = p }

func TestRegistryAndMarksShareRule(t *testing.T) {
	b := New(make([]byte, 32))
	var reg Registry[*anchor]
	for _, p := range []int{0, 5, 6, 30} {
		reg.Add(&anchor{pos: p})
	}
	b.Track(&reg)
	m := b.Mark(6)

	if err := b.Insert(5, []byte{0, 0, 0}); err != nil {
		t.Fatal(err)
	}

	var got []int
	for _, a := range reg.Items() {
		got = append(got, a.pos)
	}
	want := []int{0, 5, 9, 33}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("registry offsets = %v, want %v", got, want)
		}
	}
	if pos, _ := b.Resolve(m); pos != 9 {
		t.Errorf("mark = %d, want 9 (same rule as registry)", pos)
	}
	if _, err := b.Resolve(42); !errors.Is(err, ErrBadOffset) {
		t.Errorf("Resolve unknown mark error = %v, want ErrBadOffset", err)
	}
}
