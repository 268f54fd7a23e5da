// Package classfiletest assembles small class file images for tests.
package classfiletest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

type Handler struct {
	Start, End, Handler int
	CatchType           string // internal name; empty for finally
}

type Local struct {
	Name, Descriptor string
	Start, Length    int
	Slot             int
}

type Method struct {
	Access     uint16
	Name       string
	Descriptor string
	MaxStack   uint16
	MaxLocals  uint16
	Code       []byte // nil: no Code attribute
	Handlers   []Handler
	Locals     []Local
}

type method struct {
	access, name, desc uint16
	code               []byte
}

// Builder accumulates constant pool entries and methods. Entries are
// deduplicated, so the same reference always yields the same index.
type Builder struct {
	pool    bytes.Buffer
	count   uint16
	index   map[string]uint16
	this    uint16
	super   uint16
	methods []method
}

// New starts a public class with the given internal name extending java/lang/Object.
func New(name string) *Builder {
	b := &Builder{count: 1, index: map[string]uint16{}}
	b.this = b.Class(name)
	b.super = b.Class("java/lang/Object")
	return b
}

func (b *Builder) add(key string, width uint16, write func(w *bytes.Buffer)) uint16 {
	if idx, ok := b.index[key]; ok {
		return idx
	}
	idx := b.count
	write(&b.pool)
	b.count += width
	b.index[key] = idx
	return idx
}

func (b *Builder) Utf8(s string) uint16 {
	return b.add("utf8:"+s, 1, func(w *bytes.Buffer) {
		w.WriteByte(1)
		binary.Write(w, binary.BigEndian, uint16(len(s)))
		w.WriteString(s)
	})
}

func (b *Builder) Class(name string) uint16 {
	n := b.Utf8(name)
	return b.add("class:"+name, 1, func(w *bytes.Buffer) {
		w.WriteByte(7)
		binary.Write(w, binary.BigEndian, n)
	})
}

func (b *Builder) String(s string) uint16 {
	n := b.Utf8(s)
	return b.add("string:"+s, 1, func(w *bytes.Buffer) {
		w.WriteByte(8)
		binary.Write(w, binary.BigEndian, n)
	})
}

func (b *Builder) Integer(v int32) uint16 {
	return b.add(fmt.Sprintf("int:%d", v), 1, func(w *bytes.Buffer) {
		w.WriteByte(3)
		binary.Write(w, binary.BigEndian, v)
	})
}

// Long takes two pool slots.
func (b *Builder) Long(v int64) uint16 {
	return b.add(fmt.Sprintf("long:%d", v), 2, func(w *bytes.Buffer) {
		w.WriteByte(5)
		binary.Write(w, binary.BigEndian, v)
	})
}

// Double takes two pool slots.
func (b *Builder) Double(v float64) uint16 {
	return b.add(fmt.Sprintf("double:%v", v), 2, func(w *bytes.Buffer) {
		w.WriteByte(6)
		binary.Write(w, binary.BigEndian, math.Float64bits(v))
	})
}

func (b *Builder) NameAndType(name, desc string) uint16 {
	n, d := b.Utf8(name), b.Utf8(desc)
	return b.add("nat:"+name+":"+desc, 1, func(w *bytes.Buffer) {
		w.WriteByte(12)
		binary.Write(w, binary.BigEndian, n)
		binary.Write(w, binary.BigEndian, d)
	})
}

func (b *Builder) ref(tag byte, class, name, desc string) uint16 {
	c, nt := b.Class(class), b.NameAndType(name, desc)
	return b.add(fmt.Sprintf("ref%d:%s.%s:%s", tag, class, name, desc), 1, func(w *bytes.Buffer) {
		w.WriteByte(tag)
		binary.Write(w, binary.BigEndian, c)
		binary.Write(w, binary.BigEndian, nt)
	})
}

func (b *Builder) Fieldref(class, name, desc string) uint16 {
	return b.ref(9, class, name, desc)
}

func (b *Builder) Methodref(class, name, desc string) uint16 {
	return b.ref(10, class, name, desc)
}

func (b *Builder) InterfaceMethodref(class, name, desc string) uint16 {
	return b.ref(11, class, name, desc)
}

// InvokeDynamic adds a call site entry with bootstrap method index 0.
func (b *Builder) InvokeDynamic(name, desc string) uint16 {
	nt := b.NameAndType(name, desc)
	return b.add("indy:"+name+":"+desc, 1, func(w *bytes.Buffer) {
		w.WriteByte(18)
		binary.Write(w, binary.BigEndian, uint16(0))
		binary.Write(w, binary.BigEndian, nt)
	})
}

// Method appends a method. Pool entries it needs are added immediately.
func (b *Builder) Method(m Method) *Builder {
	out := method{access: m.Access, name: b.Utf8(m.Name), desc: b.Utf8(m.Descriptor)}
	if m.Code != nil {
		out.code = b.codeAttribute(m)
	}
	b.methods = append(b.methods, out)
	return b
}

func (b *Builder) codeAttribute(m Method) []byte {
	var body bytes.Buffer
	be := func(v any) { binary.Write(&body, binary.BigEndian, v) }
	be(m.MaxStack)
	be(m.MaxLocals)
	be(uint32(len(m.Code)))
	body.Write(m.Code)
	be(uint16(len(m.Handlers)))
	for _, h := range m.Handlers {
		var catch uint16
		if h.CatchType != "" {
			catch = b.Class(h.CatchType)
		}
		be(uint16(h.Start))
		be(uint16(h.End))
		be(uint16(h.Handler))
		be(catch)
	}
	if len(m.Locals) == 0 {
		be(uint16(0))
	} else {
		be(uint16(1))
		be(b.Utf8("LocalVariableTable"))
		be(uint32(2 + 10*len(m.Locals)))
		be(uint16(len(m.Locals)))
		for _, l := range m.Locals {
			be(uint16(l.Start))
			be(uint16(l.Length))
			be(b.Utf8(l.Name))
			be(b.Utf8(l.Descriptor))
			be(uint16(l.Slot))
		}
	}

	var attr bytes.Buffer
	binary.Write(&attr, binary.BigEndian, b.Utf8("Code"))
	binary.Write(&attr, binary.BigEndian, uint32(body.Len()))
	attr.Write(body.Bytes())
	return attr.Bytes()
}

// Bytes renders the class file image.
func (b *Builder) Bytes() []byte {
	var out bytes.Buffer
	be := func(v any) { binary.Write(&out, binary.BigEndian, v) }
	be(uint32(0xCAFEBABE))
	be(uint16(0))
	be(uint16(52))
	be(b.count)
	out.Write(b.pool.Bytes())
	be(uint16(0x0021))
	be(b.this)
	be(b.super)
	be(uint16(0)) // interfaces
	be(uint16(0)) // fields
	be(uint16(len(b.methods)))
	for _, m := range b.methods {
		be(m.access)
		be(m.name)
		be(m.desc)
		if m.code == nil {
			be(uint16(0))
			continue
		}
		be(uint16(1))
		out.Write(m.code)
	}
	be(uint16(0)) // class attributes
	return out.Bytes()
}
