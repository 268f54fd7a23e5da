package analysis

import (
	"fmt"
	"sort"

	"stackscope/internal/codebuf"
	"stackscope/internal/disasm"
)

// Frame is the analysis result for one instruction start. Unreachable
// frames carry no Op and no stacks.
type Frame struct {
	offset    int
	Inst      disasm.Inst // as decoded before any insertion
	Op        Op
	Before    *Stack
	After     *Stack
	Reachable bool
	method    *Method
}

// Offset returns the current offset of the frame in its method's buffer.
func (f *Frame) Offset() int { return f.offset }

// SetOffset implements codebuf.Anchor.
func (f *Frame) SetOffset(off int) { f.offset = off }

// Method returns the method the frame belongs to.
func (f *Frame) Method() *Method { return f.method }

func (f *Frame) String() string {
	text := f.Inst.String()
	switch op := f.Op.(type) {
	case *InvokeOp:
		text = f.Inst.Name() + " " + op.Ref.String()
	case *PlainOp:
		if op.Field != nil {
			text = f.Inst.Name() + " " + op.Field.String()
		} else if op.Var != nil {
			text += " (" + op.Var.Name + ")"
		}
	}
	if !f.Reachable {
		return fmt.Sprintf("%6d  %-*s ; unreachable", f.offset, listingWidth, text)
	}
	vars := f.method.Vars
	return fmt.Sprintf("%6d  %-*s ; %s -> %s", f.offset, listingWidth, text, f.Before.Format(vars), f.After.Format(vars))
}

func (f *Frame) visit(op Op, before, after *Stack) {
	f.Op = op
	f.Before = before
	f.After = after
	f.Reachable = true
}

// Frames is the frame table of one analyzed method, ordered by offset. It
// stays addressable after insertions into the method's buffer: every frame
// follows the buffer's offset rule.
type Frames struct {
	method  *Method
	buf     *codebuf.Buffer
	all     []*Frame
	anchors codebuf.Registry[*Frame]
}

func newFrames(m *Method, buf *codebuf.Buffer, insts []disasm.Inst) *Frames {
	fs := &Frames{method: m, buf: buf, all: make([]*Frame, 0, len(insts))}
	for _, in := range insts {
		f := &Frame{offset: in.Offset, Inst: in, method: m}
		fs.all = append(fs.all, f)
		fs.anchors.Add(f)
	}
	buf.Track(&fs.anchors)
	return fs
}

// Method returns the analyzed method.
func (fs *Frames) Method() *Method { return fs.method }

// Buffer returns the code buffer the frames are anchored to.
func (fs *Frames) Buffer() *codebuf.Buffer { return fs.buf }

// Len returns the number of instruction starts.
func (fs *Frames) Len() int { return len(fs.all) }

// All returns every frame in offset order, reachable or not.
func (fs *Frames) All() []*Frame { return fs.all }

// Reachable returns the visited frames in offset order.
func (fs *Frames) Reachable() []*Frame {
	out := make([]*Frame, 0, len(fs.all))
	for _, f := range fs.all {
		if f.Reachable {
			out = append(out, f)
		}
	}
	return out
}

// At returns the frame starting at offset.
func (fs *Frames) At(offset int) (*Frame, bool) {
	i := sort.Search(len(fs.all), func(i int) bool { return fs.all[i].offset >= offset })
	if i < len(fs.all) && fs.all[i].offset == offset {
		return fs.all[i], true
	}
	return nil, false
}

// following returns the instruction frame after f, reachable or not.
func (fs *Frames) following(f *Frame) *Frame {
	i := sort.Search(len(fs.all), func(i int) bool { return fs.all[i].offset > f.offset })
	if i < len(fs.all) {
		return fs.all[i]
	}
	return nil
}

// Iterator walks the reachable frames in offset order.
func (fs *Frames) Iterator() *FrameIterator {
	return &FrameIterator{frames: fs, list: fs.Reachable(), i: -1}
}

// FrameIterator iterates reachable frames with one frame of lookahead and
// can splice code relative to the current frame.
type FrameIterator struct {
	frames *Frames
	list   []*Frame
	i      int
}

func (it *FrameIterator) HasNext() bool {
	return it.i+1 < len(it.list)
}

// Next advances and returns the current frame, or nil past the end.
func (it *FrameIterator) Next() *Frame {
	if !it.HasNext() {
		return nil
	}
	it.i++
	return it.list[it.i]
}

func (it *FrameIterator) IsFirst() bool {
	return it.i == 0
}

func (it *FrameIterator) IsLast() bool {
	return !it.HasNext()
}

// LookAhead returns the frame Next would return, or nil.
func (it *FrameIterator) LookAhead() *Frame {
	if !it.HasNext() {
		return nil
	}
	return it.list[it.i+1]
}

// Insert splices code before or after the current frame. Before inserts at
// the frame's offset; after inserts at the next instruction's offset, or at
// the end of the code. The frame found at the insertion point keeps its
// offset, so the inserted bytes become the head of its range and jumps to it
// run them first. Before the first call to Next, code goes to offset 0.
func (it *FrameIterator) Insert(code []byte, after bool) error {
	at := 0
	if it.i >= 0 {
		cur := it.list[it.i]
		switch {
		case !after:
			at = cur.offset
		case it.frames.following(cur) != nil:
			at = it.frames.following(cur).offset
		default:
			at = it.frames.buf.Len()
		}
	}
	return it.frames.buf.Insert(at, code)
}
