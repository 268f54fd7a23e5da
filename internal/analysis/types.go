package analysis

import (
	"errors"
	"fmt"
	"strings"

	"stackscope/internal/disasm"
)

// ErrBadSignature is returned for descriptors that match no primitive or
// class signature.
var ErrBadSignature = errors.New("unparsable type signature")

var primitiveSymbols = map[byte]string{
	'V': "void",
	'Z': "boolean",
	'B': "byte",
	'C': "char",
	'S': "short",
	'I': "int",
	'J': "long",
	'F': "float",
	'D': "double",
}

// Type is a decoded field type.
//
// Examples: "I" -> int, "[[J" -> long[][] (BaseName long, Dimensions 2),
// "Ljava/lang/String;" -> java.lang.String.
type Type struct {
	Signature  string
	Name       string // including one "[]" per dimension
	BaseName   string
	Primitive  bool
	Dimensions int
}

// IsArray reports whether the type has at least one array dimension.
func (t *Type) IsArray() bool {
	return t.Dimensions > 0
}

// Width returns the number of stack slots a value of this type occupies,
// or 0 for void.
func (t *Type) Width() disasm.Width {
	if t.Dimensions > 0 || !t.Primitive {
		return disasm.Single
	}
	switch t.BaseName {
	case "void":
		return 0
	case "long", "double":
		return disasm.Double
	}
	return disasm.Single
}

func (t *Type) String() string {
	return t.Name
}

// ParseType decodes a field descriptor or field signature. Generic type
// arguments are dropped.
func ParseType(sig string) (*Type, error) {
	end, err := scanField(sig, 0)
	if err != nil {
		return nil, err
	}
	if end != len(sig) {
		return nil, fmt.Errorf("%q: trailing characters: %w", sig, ErrBadSignature)
	}

	dims := strings.IndexFunc(sig, func(r rune) bool { return r != '[' })
	t := &Type{Signature: sig, Dimensions: dims}
	elem := sig[dims:]
	if elem[0] == 'L' {
		t.BaseName = className(elem[1 : len(elem)-1])
	} else {
		t.BaseName = primitiveSymbols[elem[0]]
		t.Primitive = true
	}
	t.Name = t.BaseName + strings.Repeat("[]", dims)
	return t, nil
}

// scanField returns the end of the field type starting at i.
func scanField(sig string, i int) (int, error) {
	start := i
	for i < len(sig) && sig[i] == '[' {
		i++
	}
	if i >= len(sig) {
		return 0, fmt.Errorf("%q: missing element type: %w", sig, ErrBadSignature)
	}
	switch c := sig[i]; {
	case c == 'L':
		depth := 0
		for j := i + 1; j < len(sig); j++ {
			switch sig[j] {
			case '<':
				depth++
			case '>':
				depth--
			case ';':
				if depth == 0 {
					if j == i+1 {
						return 0, fmt.Errorf("%q: empty class name: %w", sig, ErrBadSignature)
					}
					return j + 1, nil
				}
			}
		}
		return 0, fmt.Errorf("%q: unterminated class name: %w", sig, ErrBadSignature)
	case c == 'V' && i > start:
		return 0, fmt.Errorf("%q: array of void: %w", sig, ErrBadSignature)
	default:
		if _, ok := primitiveSymbols[c]; !ok {
			return 0, fmt.Errorf("%q: unknown type symbol %q: %w", sig, c, ErrBadSignature)
		}
		return i + 1, nil
	}
}

// className converts an internal name with optional type arguments to the
// dotted form: java/util/Map<TK;TV;>.Entry -> java.util.Map.Entry
func className(internal string) string {
	var b strings.Builder
	depth := 0
	for i := 0; i < len(internal); i++ {
		switch c := internal[i]; {
		case c == '<':
			depth++
		case c == '>':
			depth--
		case depth > 0:
		case c == '/':
			b.WriteByte('.')
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// MethodType is a decoded method descriptor.
type MethodType struct {
	Descriptor string
	Params     []*Type
	Return     *Type
}

// ParamSlots returns the stack slots taken by the declared parameters.
func (m *MethodType) ParamSlots() int {
	n := 0
	for _, p := range m.Params {
		n += int(p.Width())
	}
	return n
}

// ParseMethodDescriptor decodes "(params)return".
func ParseMethodDescriptor(desc string) (*MethodType, error) {
	if !strings.HasPrefix(desc, "(") {
		return nil, fmt.Errorf("%q: missing '(': %w", desc, ErrBadSignature)
	}
	m := &MethodType{Descriptor: desc}
	i := 1
	for i < len(desc) && desc[i] != ')' {
		end, err := scanField(desc, i)
		if err != nil {
			return nil, err
		}
		if desc[i] == 'V' {
			return nil, fmt.Errorf("%q: void parameter: %w", desc, ErrBadSignature)
		}
		p, err := ParseType(desc[i:end])
		if err != nil {
			return nil, err
		}
		m.Params = append(m.Params, p)
		i = end
	}
	if i >= len(desc) {
		return nil, fmt.Errorf("%q: missing ')': %w", desc, ErrBadSignature)
	}
	ret, err := ParseType(desc[i+1:])
	if err != nil {
		return nil, err
	}
	m.Return = ret
	return m, nil
}
