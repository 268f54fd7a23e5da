package analysis

import (
	"errors"
	"fmt"

	"stackscope/internal/classfile"
)

// ErrNoCode is returned for abstract and native methods.
var ErrNoCode = errors.New("method has no code")

// Method is everything the analyzer reads from the class file for one method.
type Method struct {
	Class      string
	Name       string
	Descriptor string
	Static     bool
	Type       *MethodType
	Code       []byte
	Handlers   []int // handler entry offsets, exception table order
	Pool       ConstantPool
	Vars       *LocalVariables
}

// NewMethod prepares m of class c for analysis.
func NewMethod(c *classfile.Class, m *classfile.Method) (*Method, error) {
	if m.Code == nil {
		return nil, fmt.Errorf("%s.%s: %w", c.Name, m, ErrNoCode)
	}
	mt, err := ParseMethodDescriptor(m.Descriptor)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", c.Name, m, err)
	}
	out := &Method{
		Class:      c.Name,
		Name:       m.Name,
		Descriptor: m.Descriptor,
		Static:     m.Static(),
		Type:       mt,
		Code:       m.Code.Bytes,
		Handlers:   m.Code.HandlerStarts(),
		Pool:       c.Pool,
	}
	out.Vars, err = NewLocalVariables(out.String(), out.Static, len(mt.Params), m.Code.LocalVariables)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", out, err)
	}
	return out, nil
}

func (m *Method) String() string {
	if m.Class == "" {
		return m.Name + m.Descriptor
	}
	return m.Class + "." + m.Name + m.Descriptor
}

func (m *Method) context() *Context {
	return &Context{Method: m.String(), Vars: m.Vars, Pool: m.Pool}
}
