// Package disasm decodes JVM method bytecode into a common instruction
// representation used by the stack analyzer and the listing views.
package disasm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed reports operand bytes that do not match the opcode layout.
var ErrMalformed = errors.New("malformed instruction")

// SwitchTable holds the decoded jump table of a tableswitch or lookupswitch.
// Offsets are relative to the switch instruction.
type SwitchTable struct {
	Default int
	Keys    []int
	Offsets []int
}

// Inst is a decoded instruction.
type Inst struct {
	Offset   int     // offset of the opcode byte
	Len      int     // encoded length, including any wide prefix
	Opcode   *Opcode // for wide instructions, the modified opcode
	Operands []int
	Wide     bool
	Switch   *SwitchTable
}

// Name returns the mnemonic, prefixed with "wide" for widened instructions.
func (in Inst) Name() string {
	if in.Wide {
		return "wide " + in.Opcode.Name
	}
	return in.Opcode.Name
}

// Next returns the offset of the following instruction.
func (in Inst) Next() int {
	return in.Offset + in.Len
}

// String renders the instruction as "mnemonic operands".
func (in Inst) String() string {
	var b strings.Builder
	b.WriteString(in.Name())
	switch {
	case in.Switch != nil:
		fmt.Fprintf(&b, " default:%d", in.Offset+in.Switch.Default)
		for i, k := range in.Switch.Keys {
			fmt.Fprintf(&b, " %d:%d", k, in.Offset+in.Switch.Offsets[i])
		}
	case in.Opcode.Kind == Branch:
		fmt.Fprintf(&b, " %d", in.Offset+in.Operands[0])
	default:
		for _, v := range in.Operands {
			fmt.Fprintf(&b, " %d", v)
		}
	}
	return b.String()
}

// Decode decodes the instruction starting at offset.
func Decode(code []byte, offset int) (Inst, error) {
	if offset < 0 || offset >= len(code) {
		return Inst{}, fmt.Errorf("offset %d outside code of length %d: %w", offset, len(code), ErrMalformed)
	}
	op, ok := Lookup(code[offset])
	if !ok {
		return Inst{}, fmt.Errorf("unknown opcode 0x%02x at %d: %w", code[offset], offset, ErrMalformed)
	}

	switch op.Code {
	case OpWide:
		return decodeWide(code, offset)
	case OpTableswitch:
		return decodeTableswitch(code, offset, op)
	case OpLookupswitch:
		return decodeLookupswitch(code, offset, op)
	}

	in := Inst{Offset: offset, Len: op.Len(), Opcode: op}
	pos := offset + 1
	for _, kind := range op.Operands {
		v, err := readOperand(code, pos, kind)
		if err != nil {
			return Inst{}, fmt.Errorf("%s at %d: %w", op.Name, offset, err)
		}
		in.Operands = append(in.Operands, v)
		pos += kind.Size()
	}
	return in, nil
}

func readOperand(code []byte, pos int, kind Operand) (int, error) {
	if pos+kind.Size() > len(code) {
		return 0, fmt.Errorf("truncated operand at %d: %w", pos, ErrMalformed)
	}
	switch kind {
	case U1:
		return int(code[pos]), nil
	case S1:
		return int(int8(code[pos])), nil
	case U2:
		return int(binary.BigEndian.Uint16(code[pos:])), nil
	case S2:
		return int(int16(binary.BigEndian.Uint16(code[pos:]))), nil
	case S4:
		return int(int32(binary.BigEndian.Uint32(code[pos:]))), nil
	}
	return 0, fmt.Errorf("operand kind %d: %w", kind, ErrMalformed)
}

// decodeWide handles the wide prefix: a 16-bit local index for loads,
// stores and ret, plus a 16-bit increment for iinc.
func decodeWide(code []byte, offset int) (Inst, error) {
	if offset+1 >= len(code) {
		return Inst{}, fmt.Errorf("wide at %d: truncated: %w", offset, ErrMalformed)
	}
	inner, ok := Lookup(code[offset+1])
	if !ok {
		return Inst{}, fmt.Errorf("wide at %d: unknown opcode 0x%02x: %w", offset, code[offset+1], ErrMalformed)
	}
	in := Inst{Offset: offset, Opcode: inner, Wide: true}
	switch {
	case inner.Code == OpIinc:
		idx, err := readOperand(code, offset+2, U2)
		if err != nil {
			return Inst{}, err
		}
		inc, err := readOperand(code, offset+4, S2)
		if err != nil {
			return Inst{}, err
		}
		in.Operands = []int{idx, inc}
		in.Len = 6
	case isLocalAccess(inner.Code):
		idx, err := readOperand(code, offset+2, U2)
		if err != nil {
			return Inst{}, err
		}
		in.Operands = []int{idx}
		in.Len = 4
	default:
		return Inst{}, fmt.Errorf("wide at %d cannot modify %s: %w", offset, inner.Name, ErrMalformed)
	}
	return in, nil
}

// isLocalAccess reports the opcodes carrying a one-byte local index.
func isLocalAccess(code byte) bool {
	return (code >= 0x15 && code <= 0x19) || (code >= 0x36 && code <= 0x3a) || code == 0xa9
}

// switchBase returns the first offset after the 4-byte alignment padding.
func switchBase(offset int) int {
	pos := offset + 1
	for pos%4 != 0 {
		pos++
	}
	return pos
}

func readInts(code []byte, pos, n int) ([]int, error) {
	if n < 0 || pos+4*n > len(code) {
		return nil, fmt.Errorf("switch table at %d exceeds code: %w", pos, ErrMalformed)
	}
	out := make([]int, n)
	for i := range out {
		out[i] = int(int32(binary.BigEndian.Uint32(code[pos+4*i:])))
	}
	return out, nil
}

func decodeTableswitch(code []byte, offset int, op *Opcode) (Inst, error) {
	pos := switchBase(offset)
	head, err := readInts(code, pos, 3)
	if err != nil {
		return Inst{}, err
	}
	low, high := head[1], head[2]
	if high < low {
		return Inst{}, fmt.Errorf("tableswitch at %d: low %d > high %d: %w", offset, low, high, ErrMalformed)
	}
	n := high - low + 1
	offsets, err := readInts(code, pos+12, n)
	if err != nil {
		return Inst{}, err
	}
	keys := make([]int, n)
	for i := range keys {
		keys[i] = low + i
	}
	return Inst{
		Offset: offset,
		Len:    pos + 12 + 4*n - offset,
		Opcode: op,
		Switch: &SwitchTable{Default: head[0], Keys: keys, Offsets: offsets},
	}, nil
}

func decodeLookupswitch(code []byte, offset int, op *Opcode) (Inst, error) {
	pos := switchBase(offset)
	head, err := readInts(code, pos, 2)
	if err != nil {
		return Inst{}, err
	}
	npairs := head[1]
	if npairs < 0 {
		return Inst{}, fmt.Errorf("lookupswitch at %d: negative npairs: %w", offset, ErrMalformed)
	}
	pairs, err := readInts(code, pos+8, 2*npairs)
	if err != nil {
		return Inst{}, err
	}
	st := &SwitchTable{Default: head[0]}
	for i := 0; i < npairs; i++ {
		st.Keys = append(st.Keys, pairs[2*i])
		st.Offsets = append(st.Offsets, pairs[2*i+1])
	}
	return Inst{
		Offset: offset,
		Len:    pos + 8 + 8*npairs - offset,
		Opcode: op,
		Switch: st,
	}, nil
}

// Iterator steps through the instructions of a code buffer.
type Iterator struct {
	code []byte
	pos  int
}

// NewIterator returns an iterator positioned at offset 0.
func NewIterator(code []byte) *Iterator {
	return &Iterator{code: code}
}

// HasNext reports whether another instruction follows.
func (it *Iterator) HasNext() bool {
	return it.pos < len(it.code)
}

// Next decodes the instruction at the current position and advances.
func (it *Iterator) Next() (Inst, error) {
	in, err := Decode(it.code, it.pos)
	if err != nil {
		return Inst{}, err
	}
	it.pos = in.Next()
	return in, nil
}

// LookAhead returns the offset of the instruction Next would decode, or -1.
func (it *Iterator) LookAhead() int {
	if !it.HasNext() {
		return -1
	}
	return it.pos
}
