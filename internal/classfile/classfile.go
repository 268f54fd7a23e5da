// Package classfile reads JVM class files: the constant pool, methods and
// the Code attribute tables the stack analyzer consumes.
package classfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var (
	ErrNotClassFile = errors.New("not a class file")
	ErrBadIndex     = errors.New("bad constant pool index")
)

const magic = 0xCAFEBABE

// Access flags.
const (
	AccPublic    = 0x0001
	AccPrivate   = 0x0002
	AccProtected = 0x0004
	AccStatic    = 0x0008
	AccFinal     = 0x0010
	AccVarargs   = 0x0080
	AccNative    = 0x0100
	AccAbstract  = 0x0400
)

type Class struct {
	Path         string
	MinorVersion uint16
	MajorVersion uint16
	Pool         ConstPool
	Access       uint16
	Name         string // dotted, e.g. com.example.Foo
	Super        string
	Interfaces   []string
	Methods      []*Method
}

type Method struct {
	Access     uint16
	Name       string
	Descriptor string
	Code       *Code // nil for abstract and native methods
}

// Static reports whether the method has no receiver.
func (m *Method) Static() bool {
	return m.Access&AccStatic != 0
}

// Varargs reports whether the method was declared with a trailing varargs parameter.
func (m *Method) Varargs() bool {
	return m.Access&AccVarargs != 0
}

func (m *Method) String() string {
	return m.Name + m.Descriptor
}

// Code is the Code attribute of a method.
type Code struct {
	MaxStack       uint16
	MaxLocals      uint16
	Bytes          []byte
	Handlers       []ExceptionHandler
	LocalVariables []LocalVariableEntry
}

// HandlerStarts returns the handler entry offsets in exception table order.
func (c *Code) HandlerStarts() []int {
	out := make([]int, 0, len(c.Handlers))
	for _, h := range c.Handlers {
		out = append(out, h.Handler)
	}
	return out
}

type ExceptionHandler struct {
	Start     int
	End       int
	Handler   int
	CatchType string // empty for finally blocks
}

// LocalVariableEntry is one row of the LocalVariableTable attribute. Index is
// the row position in the table; Slot is the local variable array index.
type LocalVariableEntry struct {
	Index      int
	Name       string
	Descriptor string
	Start      int
	Length     int
	Slot       int
}

// Method returns the first method with the given name, and descriptor when
// descriptor is not empty.
func (c *Class) Method(name, descriptor string) (*Method, bool) {
	for _, m := range c.Methods {
		if m.Name == name && (descriptor == "" || m.Descriptor == descriptor) {
			return m, true
		}
	}
	return nil, false
}

// Open reads and parses the class file at path.
func Open(path string) (*Class, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read class: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c.Path = path
	return c, nil
}

// Parse decodes a class file image.
func Parse(data []byte) (*Class, error) {
	r := &reader{data: data}
	if r.u4() != magic {
		return nil, ErrNotClassFile
	}
	c := &Class{}
	c.MinorVersion = r.u2()
	c.MajorVersion = r.u2()
	c.Pool = r.constPool()
	if r.err != nil {
		return nil, r.err
	}
	c.Access = r.u2()
	var err error
	if c.Name, err = c.Pool.ClassName(r.u2()); err != nil {
		return nil, fmt.Errorf("this_class: %w", err)
	}
	c.Name = strings.ReplaceAll(c.Name, "/", ".")
	if super := r.u2(); super != 0 {
		if c.Super, err = c.Pool.ClassName(super); err != nil {
			return nil, fmt.Errorf("super_class: %w", err)
		}
		c.Super = strings.ReplaceAll(c.Super, "/", ".")
	}
	for n := r.u2(); n > 0 && r.err == nil; n-- {
		name, err := c.Pool.ClassName(r.u2())
		if err != nil {
			return nil, fmt.Errorf("interface: %w", err)
		}
		c.Interfaces = append(c.Interfaces, strings.ReplaceAll(name, "/", "."))
	}

	// Fields carry nothing the analyzer needs.
	for n := r.u2(); n > 0 && r.err == nil; n-- {
		r.skip(6)
		r.skipAttributes()
	}

	for n := r.u2(); n > 0 && r.err == nil; n-- {
		m, err := r.method(c.Pool)
		if err != nil {
			return nil, err
		}
		c.Methods = append(c.Methods, m)
	}
	if r.err != nil {
		return nil, r.err
	}
	return c, nil
}

type reader struct {
	data []byte
	pos  int
	err  error
}

func (r *reader) bytes(n int) []byte {
	if r.err == nil && (n < 0 || r.pos+n > len(r.data)) {
		r.err = fmt.Errorf("truncated at %d: %w", r.pos, io.ErrUnexpectedEOF)
	}
	if r.err != nil {
		// Zeroes, sized for the fixed-width readers.
		return make([]byte, min(max(n, 0), 8))
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *reader) skip(n int)   { r.bytes(n) }
func (r *reader) u1() uint8    { return r.bytes(1)[0] }
func (r *reader) u2() uint16   { return binary.BigEndian.Uint16(r.bytes(2)) }
func (r *reader) u4() uint32   { return binary.BigEndian.Uint32(r.bytes(4)) }
func (r *reader) u8() uint64   { return binary.BigEndian.Uint64(r.bytes(8)) }
func (r *reader) fail(e error) { r.err = e }

func (r *reader) constPool() ConstPool {
	count := r.u2()
	cp := make(ConstPool, count)
	for i := 1; i < int(count) && r.err == nil; i++ {
		c := Const{Tag: Tag(r.u1())}
		switch c.Tag {
		case TagUtf8:
			c.String = decodeModifiedUTF8(r.bytes(int(r.u2())))
		case TagInteger:
			c.Value = int64(int32(r.u4()))
		case TagFloat:
			c.Value = int64(r.u4())
		case TagLong, TagDouble:
			c.Value = int64(r.u8())
		case TagClass, TagModule, TagPackage:
			c.NameIndex = r.u2()
		case TagString:
			c.StringIndex = r.u2()
		case TagMethodType:
			c.DescIndex = r.u2()
		case TagFieldref, TagMethodref, TagInterfaceMethodref:
			c.ClassIndex = r.u2()
			c.NameAndTypeIndex = r.u2()
		case TagNameAndType:
			c.NameIndex = r.u2()
			c.DescIndex = r.u2()
		case TagMethodHandle:
			c.RefKind = r.u1()
			c.RefIndex = r.u2()
		case TagDynamic, TagInvokeDynamic:
			c.BootstrapIndex = r.u2()
			c.NameAndTypeIndex = r.u2()
		default:
			r.fail(fmt.Errorf("constant %d: unknown tag %d: %w", i, c.Tag, ErrNotClassFile))
		}
		cp[i] = c
		if c.Tag == TagLong || c.Tag == TagDouble {
			i++
		}
	}
	return cp
}

func (r *reader) skipAttributes() {
	for n := r.u2(); n > 0 && r.err == nil; n-- {
		r.skip(2)
		r.skip(int(r.u4()))
	}
}

func (r *reader) method(cp ConstPool) (*Method, error) {
	m := &Method{Access: r.u2()}
	nameIdx, descIdx := r.u2(), r.u2()
	if r.err != nil {
		return nil, r.err
	}
	var err error
	if m.Name, err = cp.Utf8(nameIdx); err != nil {
		return nil, fmt.Errorf("method name: %w", err)
	}
	if m.Descriptor, err = cp.Utf8(descIdx); err != nil {
		return nil, fmt.Errorf("method %s descriptor: %w", m.Name, err)
	}
	for n := r.u2(); n > 0 && r.err == nil; n-- {
		name, err := cp.Utf8(r.u2())
		if err != nil {
			return nil, fmt.Errorf("method %s attribute: %w", m.Name, err)
		}
		body := r.bytes(int(r.u4()))
		if name != "Code" || r.err != nil {
			continue
		}
		if m.Code, err = parseCode(body, cp); err != nil {
			return nil, fmt.Errorf("method %s%s: %w", m.Name, m.Descriptor, err)
		}
	}
	return m, r.err
}

func parseCode(body []byte, cp ConstPool) (*Code, error) {
	r := &reader{data: body}
	code := &Code{MaxStack: r.u2(), MaxLocals: r.u2()}
	code.Bytes = append([]byte(nil), r.bytes(int(r.u4()))...)

	for n := r.u2(); n > 0 && r.err == nil; n-- {
		h := ExceptionHandler{Start: int(r.u2()), End: int(r.u2()), Handler: int(r.u2())}
		if catch := r.u2(); catch != 0 && r.err == nil {
			name, err := cp.ClassName(catch)
			if err != nil {
				return nil, fmt.Errorf("catch type: %w", err)
			}
			h.CatchType = strings.ReplaceAll(name, "/", ".")
		}
		code.Handlers = append(code.Handlers, h)
	}

	for n := r.u2(); n > 0 && r.err == nil; n-- {
		name, err := cp.Utf8(r.u2())
		if err != nil {
			return nil, fmt.Errorf("code attribute: %w", err)
		}
		attr := r.bytes(int(r.u4()))
		if name != "LocalVariableTable" || r.err != nil {
			continue
		}
		vars, err := parseLocalVariables(attr, cp, len(code.LocalVariables))
		if err != nil {
			return nil, err
		}
		code.LocalVariables = append(code.LocalVariables, vars...)
	}
	return code, r.err
}

// parseLocalVariables decodes a LocalVariableTable. A method may carry several
// of these attributes; base numbers the rows continuously across them.
func parseLocalVariables(body []byte, cp ConstPool, base int) ([]LocalVariableEntry, error) {
	r := &reader{data: body}
	n := int(r.u2())
	out := make([]LocalVariableEntry, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		e := LocalVariableEntry{Index: base + i, Start: int(r.u2()), Length: int(r.u2())}
		nameIdx, descIdx := r.u2(), r.u2()
		e.Slot = int(r.u2())
		if r.err != nil {
			break
		}
		var err error
		if e.Name, err = cp.Utf8(nameIdx); err != nil {
			return nil, fmt.Errorf("local variable %d name: %w", i, err)
		}
		if e.Descriptor, err = cp.Utf8(descIdx); err != nil {
			return nil, fmt.Errorf("local variable %s descriptor: %w", e.Name, err)
		}
		out = append(out, e)
	}
	return out, r.err
}

// decodeModifiedUTF8 converts the JVM's modified UTF-8 to a Go string. Only
// the encoded NUL (0xC0 0x80) differs for the identifiers we read.
func decodeModifiedUTF8(b []byte) string {
	s := string(b)
	if strings.Contains(s, "\xc0\x80") {
		s = strings.ReplaceAll(s, "\xc0\x80", "\x00")
	}
	return s
}
