package disasm

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEffectSlots(t *testing.T) {
	tests := []struct {
		code   byte
		popped int
		pushed int
	}{
		{0x03, 0, 1}, // iconst_0
		{0x09, 0, 2}, // lconst_0
		{0x1e, 0, 2}, // lload_0
		{0x2f, 2, 2}, // laload
		{0x50, 4, 0}, // lastore
		{0x58, 2, 0}, // pop2
		{0x5c, 2, 4}, // dup2
		{0x5e, 4, 6}, // dup2_x2
		{0x61, 4, 2}, // ladd
		{0x79, 3, 2}, // lshl
		{0x85, 1, 2}, // i2l
		{0x94, 4, 1}, // lcmp
		{0x9f, 2, 0}, // if_icmpeq
		{0xa7, 0, 0}, // goto
		{0xad, 2, 0}, // lreturn
		{0xbe, 1, 1}, // arraylength
	}

	for _, tt := range tests {
		op, ok := Lookup(tt.code)
		if !ok {
			t.Fatalf("opcode 0x%02x not registered", tt.code)
		}
		popped, pushed := op.Effect.Slots()
		if popped != tt.popped || pushed != tt.pushed {
			t.Errorf("%s: slots = (%d, %d), want (%d, %d)", op.Name, popped, pushed, tt.popped, tt.pushed)
		}
	}
}

func TestRegistryIsConsistent(t *testing.T) {
	for i := range table {
		op := &table[i]
		got, ok := Lookup(op.Code)
		if !ok || got != op {
			t.Errorf("Lookup(0x%02x) does not return %s", op.Code, op.Name)
		}
		if op.Kind == Branch && len(op.Operands) != 1 {
			t.Errorf("%s: branch must carry exactly one offset operand", op.Name)
		}
		if op.Kind == Invoke && !op.Effect.Dynamic {
			t.Errorf("%s: invocation effect must be descriptor driven", op.Name)
		}
	}
	if _, ok := Lookup(0xcb); ok {
		t.Error("0xcb must be unassigned")
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		code []byte
		at   int
		want string
		len  int
	}{
		{name: "bipush negative", code: []byte{0x10, 0xff}, want: "bipush -1", len: 2},
		{name: "sipush", code: []byte{0x11, 0x01, 0x00}, want: "sipush 256", len: 3},
		{name: "branch target absolute", code: []byte{0x00, 0x99, 0x00, 0x05}, at: 1, want: "ifeq 6", len: 3},
		{name: "backward goto", code: []byte{0x00, 0x00, 0xa7, 0xff, 0xfe}, at: 2, want: "goto 0", len: 3},
		{name: "wide iload", code: []byte{0xc4, 0x15, 0x01, 0x00}, want: "wide iload 256", len: 4},
		{name: "wide iinc", code: []byte{0xc4, 0x84, 0x00, 0x02, 0xff, 0xff}, want: "wide iinc 2 -1", len: 6},
		{name: "invokeinterface", code: []byte{0xb9, 0x00, 0x07, 0x02, 0x00}, want: "invokeinterface 7 2 0", len: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := Decode(tt.code, tt.at)
			if err != nil {
				t.Fatal(err)
			}
			if in.String() != tt.want {
				t.Errorf("String() = %q, want %q", in.String(), tt.want)
			}
			if in.Len != tt.len {
				t.Errorf("Len = %d, want %d", in.Len, tt.len)
			}
		})
	}
}

func TestDecodeSwitches(t *testing.T) {
	// iconst_0; tableswitch (pad 2) default=+20 low=1 high=2 [+24, +28]
	table := []byte{
		0x03, 0xaa, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x14,
		0x00, 0x00, 0x00, 0x01,
		0x00, 0x00, 0x00, 0x02,
		0x00, 0x00, 0x00, 0x18,
		0x00, 0x00, 0x00, 0x1c,
	}
	in, err := Decode(table, 1)
	if err != nil {
		t.Fatal(err)
	}
	want := &SwitchTable{Default: 20, Keys: []int{1, 2}, Offsets: []int{24, 28}}
	if diff := cmp.Diff(want, in.Switch); diff != "" {
		t.Errorf("tableswitch mismatch (-want +got):\n%s", diff)
	}
	if in.Len != 23 {
		t.Errorf("tableswitch Len = %d, want 23", in.Len)
	}

	// lookupswitch at 0 (pad 3) default=+16 npairs=1 {7: +12}
	lookup := []byte{
		0xab, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x10,
		0x00, 0x00, 0x00, 0x01,
		0x00, 0x00, 0x00, 0x07,
		0x00, 0x00, 0x00, 0x0c,
	}
	in, err = Decode(lookup, 0)
	if err != nil {
		t.Fatal(err)
	}
	want = &SwitchTable{Default: 16, Keys: []int{7}, Offsets: []int{12}}
	if diff := cmp.Diff(want, in.Switch); diff != "" {
		t.Errorf("lookupswitch mismatch (-want +got):\n%s", diff)
	}
	if in.Next() != len(lookup) {
		t.Errorf("lookupswitch Next = %d, want %d", in.Next(), len(lookup))
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		code []byte
	}{
		{name: "unknown opcode", code: []byte{0xcb}},
		{name: "truncated sipush", code: []byte{0x11, 0x01}},
		{name: "wide of add", code: []byte{0xc4, 0x60}},
		{name: "truncated tableswitch", code: []byte{0xaa, 0x00, 0x00, 0x00, 0x00}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.code, 0); !errors.Is(err, ErrMalformed) {
				t.Errorf("Decode error = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestIterator(t *testing.T) {
	// iconst_0; ifeq +7; iconst_1; goto +4; iconst_2; ireturn
	code := []byte{0x03, 0x99, 0x00, 0x07, 0x04, 0xa7, 0x00, 0x04, 0x05, 0xac}
	var offsets, lookahead []int
	var names []string
	for it := NewIterator(code); it.HasNext(); {
		lookahead = append(lookahead, it.LookAhead())
		in, err := it.Next()
		if err != nil {
			t.Fatal(err)
		}
		offsets = append(offsets, in.Offset)
		names = append(names, in.Name())
	}
	if diff := cmp.Diff([]int{0, 1, 4, 5, 8, 9}, offsets); diff != "" {
		t.Errorf("offsets mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(offsets, lookahead); diff != "" {
		t.Errorf("LookAhead mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"iconst_0", "ifeq", "iconst_1", "goto", "iconst_2", "ireturn"}, names); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}

	// iconst_0; sipush with one operand byte
	it := NewIterator([]byte{0x03, 0x11, 0x00})
	if _, err := it.Next(); err != nil {
		t.Fatal(err)
	}
	if _, err := it.Next(); !errors.Is(err, ErrMalformed) {
		t.Errorf("truncated Next error = %v, want ErrMalformed", err)
	}
	if it.LookAhead() != 1 {
		t.Errorf("failed Next moved the iterator to %d", it.LookAhead())
	}

	end := NewIterator(nil)
	if end.HasNext() || end.LookAhead() != -1 {
		t.Error("iterator at end must report no next instruction")
	}
}
