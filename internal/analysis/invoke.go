package analysis

import (
	"fmt"

	"stackscope/internal/classfile"
	"stackscope/internal/disasm"
)

func (c *Context) memberRef(in disasm.Inst) (classfile.MemberRef, error) {
	index := in.Operands[0]
	if c.Pool == nil {
		return classfile.MemberRef{}, fmt.Errorf("%s #%d: no constant pool: %w", in.Name(), index, ErrUnresolvedReference)
	}
	ref, err := c.Pool.MemberRef(uint16(index))
	if err != nil {
		return classfile.MemberRef{}, fmt.Errorf("%s #%d: %w: %w", in.Name(), index, ErrUnresolvedReference, err)
	}
	return ref, nil
}

func decodeInvoke(ctx *Context, in disasm.Inst) (*InvokeOp, error) {
	ref, err := ctx.memberRef(in)
	if err != nil {
		return nil, err
	}
	mt, err := ParseMethodDescriptor(ref.Descriptor)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", in.Name(), ref, err)
	}
	code := in.Opcode.Code
	return &InvokeOp{
		baseOp:   baseOp{inst: in},
		Ref:      ref,
		Params:   mt.Params,
		Return:   mt.Return,
		Receiver: code != disasm.OpInvokestatic && code != disasm.OpInvokedynamic,
	}, nil
}

// Pops returns the parameter widths in pop order: last declared first.
func (o *InvokeOp) Pops() []disasm.Width {
	out := make([]disasm.Width, 0, len(o.Params))
	for i := len(o.Params) - 1; i >= 0; i-- {
		out = append(out, o.Params[i].Width())
	}
	return out
}

// Simulate implements Op: parameters are popped last declared first, then
// the receiver, and the return value is pushed as one unknown value.
func (o *InvokeOp) Simulate(s *Stack) error {
	for _, w := range o.Pops() {
		if _, err := s.PopWidth(w); err != nil {
			return err
		}
	}
	if o.Receiver {
		if _, err := s.Pop(); err != nil {
			return err
		}
	}
	s.PushWidth(UnknownValue(), o.Return.Width())
	return nil
}
