package analysis

import (
	"errors"
	"fmt"

	"stackscope/internal/classfile"
	"stackscope/internal/disasm"
)

// ErrUnresolvedReference is returned when a constant pool reference or the
// signature it names cannot be resolved.
var ErrUnresolvedReference = errors.New("unresolved reference")

// ConstantPool resolves member references of the analyzed class.
type ConstantPool interface {
	MemberRef(index uint16) (classfile.MemberRef, error)
}

// Context is what decoding needs beyond the instruction bytes.
type Context struct {
	Method string
	Vars   *LocalVariables
	Pool   ConstantPool
}

// Op is a decoded instruction that can simulate its stack effect. The set of
// implementations is closed: *PlainOp, *BranchOp, *SwitchOp, *ExitOp and
// *InvokeOp.
type Op interface {
	Inst() disasm.Inst
	Simulate(s *Stack) error
	op()
}

type baseOp struct {
	inst disasm.Inst
}

func (b *baseOp) Inst() disasm.Inst { return b.inst }
func (b *baseOp) op()               {}

// apply pops and pushes the widths of a fixed effect, pushing unknown values.
func apply(s *Stack, e disasm.Effect) error {
	for _, w := range e.Pop {
		if _, err := s.PopWidth(w); err != nil {
			return err
		}
	}
	for _, w := range e.Push {
		s.PushWidth(UnknownValue(), w)
	}
	return nil
}

// PlainOp is an instruction that always continues with the next one.
type PlainOp struct {
	baseOp
	Effect disasm.Effect  // fixed widths; field access and multianewarray resolved at decode
	Var    *LocalVariable // loads: the variable read, if declared
	Field  *classfile.MemberRef
}

// BranchOp transfers control to Target, and to the next instruction too
// when Conditional. Subroutine marks jsr and jsr_w.
type BranchOp struct {
	baseOp
	Target      int
	Conditional bool
	Subroutine  bool
}

// SwitchOp transfers control to one of Targets or Default. Targets are
// absolute and follow the key order of the table.
type SwitchOp struct {
	baseOp
	Keys    []int
	Targets []int
	Default int
}

// ExitOp leaves the method or subroutine: returns, athrow and ret.
type ExitOp struct {
	baseOp
}

// InvokeOp is a method invocation. Params and Return come from the
// descriptor of Ref; Receiver is false for invokestatic and invokedynamic.
type InvokeOp struct {
	baseOp
	Ref      classfile.MemberRef
	Params   []*Type
	Return   *Type
	Receiver bool
}

// Decode builds the Op for a decoded instruction.
func Decode(ctx *Context, in disasm.Inst) (Op, error) {
	base := baseOp{inst: in}
	switch in.Opcode.Kind {
	case disasm.Plain:
		return decodePlain(ctx, in)
	case disasm.Branch:
		return &BranchOp{
			baseOp:      base,
			Target:      in.Offset + in.Operands[0],
			Conditional: in.Opcode.Conditional,
			Subroutine:  in.Opcode.Subroutine,
		}, nil
	case disasm.Switch:
		if in.Switch == nil {
			return nil, fmt.Errorf("%s without jump table: %w", in.Name(), disasm.ErrMalformed)
		}
		op := &SwitchOp{baseOp: base, Keys: in.Switch.Keys, Default: in.Offset + in.Switch.Default}
		for _, rel := range in.Switch.Offsets {
			op.Targets = append(op.Targets, in.Offset+rel)
		}
		return op, nil
	case disasm.Exit:
		return &ExitOp{baseOp: base}, nil
	case disasm.Invoke:
		return decodeInvoke(ctx, in)
	}
	return nil, fmt.Errorf("opcode %s has kind %s: %w", in.Name(), in.Opcode.Kind, disasm.ErrMalformed)
}

// Simulate implements Op.
func (o *BranchOp) Simulate(s *Stack) error {
	return apply(s, o.inst.Opcode.Effect)
}

// Simulate implements Op.
func (o *SwitchOp) Simulate(s *Stack) error {
	return apply(s, o.inst.Opcode.Effect)
}

// Simulate implements Op. A ret pops nothing: its operand is a local variable.
func (o *ExitOp) Simulate(s *Stack) error {
	return apply(s, o.inst.Opcode.Effect)
}
