package analysis

import (
	"fmt"

	"stackscope/internal/disasm"
)

func decodePlain(ctx *Context, in disasm.Inst) (*PlainOp, error) {
	op := &PlainOp{baseOp: baseOp{inst: in}, Effect: in.Opcode.Effect}
	code := in.Opcode.Code

	switch {
	case isLoad(code):
		slot := loadSlot(in)
		if v, ok := ctx.Vars.Find(slot, in.Offset); ok {
			op.Var = v
		}

	case code >= disasm.OpGetstatic && code <= disasm.OpPutfield:
		ref, err := ctx.memberRef(in)
		if err != nil {
			return nil, err
		}
		typ, err := ParseType(ref.Descriptor)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", ref, err)
		}
		op.Field = &ref
		w := []disasm.Width{typ.Width()}
		switch code {
		case disasm.OpGetstatic:
			op.Effect = disasm.Effect{Push: w}
		case disasm.OpPutstatic:
			op.Effect = disasm.Effect{Pop: w}
		case disasm.OpGetfield:
			op.Effect = disasm.Effect{Pop: []disasm.Width{disasm.Single}, Push: w}
		case disasm.OpPutfield:
			op.Effect = disasm.Effect{Pop: append(w, disasm.Single)}
		}

	case code == disasm.OpMultianewarray:
		dims := in.Operands[1]
		if dims < 1 {
			return nil, fmt.Errorf("multianewarray with %d dimensions: %w", dims, disasm.ErrMalformed)
		}
		pop := make([]disasm.Width, dims)
		for i := range pop {
			pop[i] = disasm.Single
		}
		op.Effect = disasm.Effect{Pop: pop, Push: []disasm.Width{disasm.Single}}
	}
	return op, nil
}

func isLoad(code byte) bool {
	return (code >= disasm.OpIload && code <= disasm.OpAload) || (code >= disasm.OpIload0 && code <= disasm.OpAload3)
}

func loadSlot(in disasm.Inst) int {
	if code := in.Opcode.Code; code >= disasm.OpIload0 {
		return int(code-disasm.OpIload0) % 4
	}
	return in.Operands[0]
}

// Simulate implements Op.
func (o *PlainOp) Simulate(s *Stack) error {
	code := o.inst.Opcode.Code
	switch {
	case isLoad(code):
		v := UnknownValue()
		if o.Var != nil {
			v = LocalValue(o.Var.ID)
		}
		s.PushWidth(v, o.Effect.Push[0])
		return nil

	case code >= disasm.OpIconstM1 && code <= disasm.OpIconst5:
		s.Push(ConstantValue(int(code) - 3))
		return nil

	case code == disasm.OpBipush || code == disasm.OpSipush:
		s.Push(ConstantValue(o.inst.Operands[0]))
		return nil

	case code >= disasm.OpDup && code <= disasm.OpSwap:
		return o.shuffle(s)

	case code == disasm.OpCheckcast:
		v, err := s.Pop()
		if err != nil {
			return err
		}
		s.Push(v)
		return nil

	case code == disasm.OpNewarray || code == disasm.OpAnewarray:
		count, err := s.Pop()
		if err != nil {
			return err
		}
		if count.Kind == Constant && count.Value >= 0 && count.Value <= MaxTrackedArrayLength {
			s.Push(ArrayValue(o.inst.Offset, count.Value))
		} else {
			s.Push(UnknownValue())
		}
		return nil

	case code >= disasm.OpIastore && code <= disasm.OpSastore:
		value, err := s.PopWidth(o.Effect.Pop[0])
		if err != nil {
			return err
		}
		index, err := s.Pop()
		if err != nil {
			return err
		}
		array, err := s.Pop()
		if err != nil {
			return err
		}
		if array.Kind == TrackedArray && index.Kind == Constant {
			s.StoreElement(array.Array, index.Value, value)
		}
		return nil
	}
	return apply(s, o.Effect)
}

// shuffle implements the dup family and swap on raw slots, so category 2
// values move together with their placeholder.
func (o *PlainOp) shuffle(s *Stack) error {
	code := o.inst.Opcode.Code
	if code == disasm.OpSwap {
		slots, err := s.PopSlots(2)
		if err != nil {
			return err
		}
		s.PushSlots(slots[1], slots[0])
		return nil
	}

	copied := 1
	if code >= disasm.OpDup2 {
		copied = 2
	}
	slots, err := s.PopSlots(len(o.Effect.Pop))
	if err != nil {
		return err
	}
	s.PushSlots(slots[len(slots)-copied:]...)
	s.PushSlots(slots...)
	return nil
}
