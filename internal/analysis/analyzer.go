package analysis

import (
	"fmt"
	"strconv"
	"strings"

	"stackscope/internal/codebuf"
	"stackscope/internal/disasm"
	"stackscope/internal/logging"
)

// AnalysisError aborts the analysis of a method. Stack is the stack before
// the failing instruction; Trace lists the control transfers that led to it.
type AnalysisError struct {
	Method string
	Offset int
	Opcode string
	Stack  string
	Trace  []int
	Err    error
}

func (e *AnalysisError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "analyze %s at %d", e.Method, e.Offset)
	if e.Opcode != "" {
		fmt.Fprintf(&b, " (%s)", e.Opcode)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	if e.Stack != "" {
		fmt.Fprintf(&b, "; stack %s", e.Stack)
	}
	if len(e.Trace) > 0 {
		parts := make([]string, len(e.Trace))
		for i, off := range e.Trace {
			parts[i] = strconv.Itoa(off)
		}
		fmt.Fprintf(&b, "; walk %s", strings.Join(parts, " -> "))
	}
	return b.String()
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// step is one control transfer on the path to a task. Tasks share the steps
// of their common prefix.
type step struct {
	off  int
	prev *step
}

// offsets returns the transfers from the entry of the walk up to s.
func (s *step) offsets() []int {
	n := 0
	for p := s; p != nil; p = p.prev {
		n++
	}
	if n == 0 {
		return nil
	}
	out := make([]int, n)
	for p := s; p != nil; p = p.prev {
		n--
		out[n] = p.off
	}
	return out
}

// task is a pending walk: the offset to resume at and the incoming stack.
type task struct {
	offset int
	stack  *Stack
	trace  *step
}

// Analyzer computes the frames of one method. It is not safe for concurrent
// use; analyze different methods with different analyzers.
type Analyzer struct {
	method *Method
	buf    *codebuf.Buffer
	ctx    *Context
	frames *Frames
}

// NewAnalyzer returns an analyzer over a private copy of m's code.
func NewAnalyzer(m *Method) *Analyzer {
	return &Analyzer{method: m, buf: codebuf.New(m.Code), ctx: m.context()}
}

// Buffer returns the code buffer the frames are anchored to.
func (a *Analyzer) Buffer() *codebuf.Buffer {
	return a.buf
}

// Analyze walks every path from the method entry and from every exception
// handler. The first walk to reach an instruction fixes its stacks; later
// arrivals stop there without merging. Repeated calls return the same table.
func (a *Analyzer) Analyze() (*Frames, error) {
	if a.frames != nil {
		return a.frames, nil
	}

	code := a.buf.Bytes()
	var insts []disasm.Inst
	for it := disasm.NewIterator(code); it.HasNext(); {
		pos := it.LookAhead()
		in, err := it.Next()
		if err != nil {
			name := ""
			if op, ok := disasm.Lookup(code[pos]); ok {
				name = op.Name
			}
			return nil, a.fail(pos, name, nil, nil, err)
		}
		insts = append(insts, in)
	}
	frames := newFrames(a.method, a.buf, insts)

	// LIFO: the entry is walked first, then handlers in table order.
	work := make([]task, 0, len(a.method.Handlers)+1)
	for i := len(a.method.Handlers) - 1; i >= 0; i-- {
		work = append(work, task{offset: a.method.Handlers[i], stack: NewStack(UnknownValue())})
	}
	work = append(work, task{offset: 0, stack: NewStack()})

	for len(work) > 0 {
		t := work[len(work)-1]
		work = work[:len(work)-1]
		if logging.IsDebug() {
			debugLogger().Debug("walk", "method", a.method.String(), "offset", t.offset, "stack", t.stack.String())
		}
		next, err := a.walk(frames, t)
		if err != nil {
			return nil, err
		}
		work = append(work, next...)
	}

	a.frames = frames
	return frames, nil
}

// walk follows straight-line code from t until it leaves the method, hits a
// visited instruction or transfers control. It returns the successor walks
// in push order: the last one is walked next.
func (a *Analyzer) walk(frames *Frames, t task) ([]task, error) {
	stack := t.stack
	for off := t.offset; ; {
		f, ok := frames.At(off)
		if !ok {
			return nil, a.fail(off, "", stack, t.trace, fmt.Errorf("no instruction starts at %d: %w", off, disasm.ErrMalformed))
		}
		if f.Reachable {
			return nil, nil
		}

		op, err := Decode(a.ctx, f.Inst)
		if err != nil {
			return nil, a.fail(off, f.Inst.Name(), stack, t.trace, err)
		}
		before := stack.Copy()
		if err := op.Simulate(stack); err != nil {
			return nil, a.fail(off, f.Inst.Name(), before, t.trace, err)
		}
		f.visit(op, before, stack.Copy())

		switch o := op.(type) {
		case *ExitOp:
			return nil, nil

		case *BranchOp:
			trace := &step{off: off, prev: t.trace}
			target := task{offset: o.Target, stack: stack.Copy(), trace: trace}
			switch {
			case o.Subroutine:
				// ret resumes after the jsr with the stack the call started from.
				return []task{{offset: f.Inst.Next(), stack: before.Copy(), trace: trace}, target}, nil
			case o.Conditional:
				return []task{{offset: f.Inst.Next(), stack: stack.Copy(), trace: trace}, target}, nil
			}
			return []task{target}, nil

		case *SwitchOp:
			trace := &step{off: off, prev: t.trace}
			next := []task{{offset: o.Default, stack: stack.Copy(), trace: trace}}
			for i := len(o.Targets) - 1; i >= 0; i-- {
				next = append(next, task{offset: o.Targets[i], stack: stack.Copy(), trace: trace})
			}
			return next, nil

		case *PlainOp, *InvokeOp:
			off = f.Inst.Next()
			if off >= len(a.buf.Bytes()) {
				return nil, a.fail(f.offset, f.Inst.Name(), stack, t.trace, fmt.Errorf("execution falls off the end of the code: %w", disasm.ErrMalformed))
			}

		default:
			return nil, a.fail(off, f.Inst.Name(), stack, t.trace, fmt.Errorf("unhandled op %T: %w", op, disasm.ErrMalformed))
		}
	}
}

func (a *Analyzer) fail(offset int, opcode string, stack *Stack, trace *step, err error) *AnalysisError {
	e := &AnalysisError{Method: a.method.String(), Offset: offset, Opcode: opcode, Trace: trace.offsets(), Err: err}
	if stack != nil {
		e.Stack = stack.Format(a.method.Vars)
	}
	return e
}

// Analyze is shorthand for NewAnalyzer(m).Analyze().
func Analyze(m *Method) (*Frames, error) {
	return NewAnalyzer(m).Analyze()
}
