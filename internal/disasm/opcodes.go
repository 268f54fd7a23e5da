package disasm

// Kind is the control-flow category of an opcode.
type Kind uint8

const (
	Plain Kind = iota
	Branch
	Switch
	Invoke
	Exit
)

func (k Kind) String() string {
	switch k {
	case Plain:
		return "plain"
	case Branch:
		return "branch"
	case Switch:
		return "switch"
	case Invoke:
		return "invoke"
	case Exit:
		return "exit"
	}
	return "unknown"
}

// Width is the number of operand stack slots a value occupies.
type Width uint8

const (
	Single Width = 1
	Double Width = 2
)

// Operand describes the encoding of one immediate operand.
type Operand uint8

const (
	U1 Operand = iota + 1 // unsigned byte
	S1                    // signed byte
	U2                    // unsigned big-endian short
	S2                    // signed big-endian short
	S4                    // signed big-endian int
)

// Size returns the encoded size of the operand in bytes.
func (o Operand) Size() int {
	switch o {
	case U1, S1:
		return 1
	case U2, S2:
		return 2
	case S4:
		return 4
	}
	return 0
}

// Effect is the fixed stack effect of an opcode. Pop lists the widths
// removed, top of stack first; Push lists the widths added, deepest first.
// Dynamic effects depend on operands or the constant pool.
type Effect struct {
	Pop     []Width
	Push    []Width
	Dynamic bool
}

// Slots returns the net number of slots popped and pushed.
func (e Effect) Slots() (popped, pushed int) {
	for _, w := range e.Pop {
		popped += int(w)
	}
	for _, w := range e.Push {
		pushed += int(w)
	}
	return popped, pushed
}

// Opcode is the static descriptor of one instruction byte.
type Opcode struct {
	Code        byte
	Name        string
	Kind        Kind
	Operands    []Operand
	Variable    bool // tableswitch, lookupswitch, wide
	Conditional bool // branch may fall through
	Subroutine  bool // jsr, jsr_w
	Effect      Effect
}

// Len returns the fixed instruction length, or 0 for variable-length opcodes.
func (o *Opcode) Len() int {
	if o.Variable {
		return 0
	}
	n := 1
	for _, op := range o.Operands {
		n += op.Size()
	}
	return n
}

var (
	w1    = []Width{Single}
	w2    = []Width{Double}
	w11   = []Width{Single, Single}
	w22   = []Width{Double, Double}
	w12   = []Width{Single, Double}
	w111  = []Width{Single, Single, Single}
	w211  = []Width{Double, Single, Single}
	w1111 = []Width{Single, Single, Single, Single}
	w5    = []Width{Single, Single, Single, Single, Single}
	w6    = []Width{Single, Single, Single, Single, Single, Single}

	u1      = []Operand{U1}
	s1      = []Operand{S1}
	u2      = []Operand{U2}
	s2      = []Operand{S2}
	s4      = []Operand{S4}
	iincOps = []Operand{U1, S1}
	u2u1u1  = []Operand{U2, U1, U1}
	u2u1    = []Operand{U2, U1}
)

func fx(pop, push []Width) Effect { return Effect{Pop: pop, Push: push} }

var dynamic = Effect{Dynamic: true}

var table = []Opcode{
	{Code: 0x00, Name: "nop"},
	{Code: 0x01, Name: "aconst_null", Effect: fx(nil, w1)},
	{Code: 0x02, Name: "iconst_m1", Effect: fx(nil, w1)},
	{Code: 0x03, Name: "iconst_0", Effect: fx(nil, w1)},
	{Code: 0x04, Name: "iconst_1", Effect: fx(nil, w1)},
	{Code: 0x05, Name: "iconst_2", Effect: fx(nil, w1)},
	{Code: 0x06, Name: "iconst_3", Effect: fx(nil, w1)},
	{Code: 0x07, Name: "iconst_4", Effect: fx(nil, w1)},
	{Code: 0x08, Name: "iconst_5", Effect: fx(nil, w1)},
	{Code: 0x09, Name: "lconst_0", Effect: fx(nil, w2)},
	{Code: 0x0a, Name: "lconst_1", Effect: fx(nil, w2)},
	{Code: 0x0b, Name: "fconst_0", Effect: fx(nil, w1)},
	{Code: 0x0c, Name: "fconst_1", Effect: fx(nil, w1)},
	{Code: 0x0d, Name: "fconst_2", Effect: fx(nil, w1)},
	{Code: 0x0e, Name: "dconst_0", Effect: fx(nil, w2)},
	{Code: 0x0f, Name: "dconst_1", Effect: fx(nil, w2)},
	{Code: 0x10, Name: "bipush", Operands: s1, Effect: fx(nil, w1)},
	{Code: 0x11, Name: "sipush", Operands: s2, Effect: fx(nil, w1)},
	{Code: 0x12, Name: "ldc", Operands: u1, Effect: fx(nil, w1)},
	{Code: 0x13, Name: "ldc_w", Operands: u2, Effect: fx(nil, w1)},
	{Code: 0x14, Name: "ldc2_w", Operands: u2, Effect: fx(nil, w2)},

	{Code: 0x15, Name: "iload", Operands: u1, Effect: fx(nil, w1)},
	{Code: 0x16, Name: "lload", Operands: u1, Effect: fx(nil, w2)},
	{Code: 0x17, Name: "fload", Operands: u1, Effect: fx(nil, w1)},
	{Code: 0x18, Name: "dload", Operands: u1, Effect: fx(nil, w2)},
	{Code: 0x19, Name: "aload", Operands: u1, Effect: fx(nil, w1)},
	{Code: 0x1a, Name: "iload_0", Effect: fx(nil, w1)},
	{Code: 0x1b, Name: "iload_1", Effect: fx(nil, w1)},
	{Code: 0x1c, Name: "iload_2", Effect: fx(nil, w1)},
	{Code: 0x1d, Name: "iload_3", Effect: fx(nil, w1)},
	{Code: 0x1e, Name: "lload_0", Effect: fx(nil, w2)},
	{Code: 0x1f, Name: "lload_1", Effect: fx(nil, w2)},
	{Code: 0x20, Name: "lload_2", Effect: fx(nil, w2)},
	{Code: 0x21, Name: "lload_3", Effect: fx(nil, w2)},
	{Code: 0x22, Name: "fload_0", Effect: fx(nil, w1)},
	{Code: 0x23, Name: "fload_1", Effect: fx(nil, w1)},
	{Code: 0x24, Name: "fload_2", Effect: fx(nil, w1)},
	{Code: 0x25, Name: "fload_3", Effect: fx(nil, w1)},
	{Code: 0x26, Name: "dload_0", Effect: fx(nil, w2)},
	{Code: 0x27, Name: "dload_1", Effect: fx(nil, w2)},
	{Code: 0x28, Name: "dload_2", Effect: fx(nil, w2)},
	{Code: 0x29, Name: "dload_3", Effect: fx(nil, w2)},
	{Code: 0x2a, Name: "aload_0", Effect: fx(nil, w1)},
	{Code: 0x2b, Name: "aload_1", Effect: fx(nil, w1)},
	{Code: 0x2c, Name: "aload_2", Effect: fx(nil, w1)},
	{Code: 0x2d, Name: "aload_3", Effect: fx(nil, w1)},

	{Code: 0x2e, Name: "iaload", Effect: fx(w11, w1)},
	{Code: 0x2f, Name: "laload", Effect: fx(w11, w2)},
	{Code: 0x30, Name: "faload", Effect: fx(w11, w1)},
	{Code: 0x31, Name: "daload", Effect: fx(w11, w2)},
	{Code: 0x32, Name: "aaload", Effect: fx(w11, w1)},
	{Code: 0x33, Name: "baload", Effect: fx(w11, w1)},
	{Code: 0x34, Name: "caload", Effect: fx(w11, w1)},
	{Code: 0x35, Name: "saload", Effect: fx(w11, w1)},

	{Code: 0x36, Name: "istore", Operands: u1, Effect: fx(w1, nil)},
	{Code: 0x37, Name: "lstore", Operands: u1, Effect: fx(w2, nil)},
	{Code: 0x38, Name: "fstore", Operands: u1, Effect: fx(w1, nil)},
	{Code: 0x39, Name: "dstore", Operands: u1, Effect: fx(w2, nil)},
	{Code: 0x3a, Name: "astore", Operands: u1, Effect: fx(w1, nil)},
	{Code: 0x3b, Name: "istore_0", Effect: fx(w1, nil)},
	{Code: 0x3c, Name: "istore_1", Effect: fx(w1, nil)},
	{Code: 0x3d, Name: "istore_2", Effect: fx(w1, nil)},
	{Code: 0x3e, Name: "istore_3", Effect: fx(w1, nil)},
	{Code: 0x3f, Name: "lstore_0", Effect: fx(w2, nil)},
	{Code: 0x40, Name: "lstore_1", Effect: fx(w2, nil)},
	{Code: 0x41, Name: "lstore_2", Effect: fx(w2, nil)},
	{Code: 0x42, Name: "lstore_3", Effect: fx(w2, nil)},
	{Code: 0x43, Name: "fstore_0", Effect: fx(w1, nil)},
	{Code: 0x44, Name: "fstore_1", Effect: fx(w1, nil)},
	{Code: 0x45, Name: "fstore_2", Effect: fx(w1, nil)},
	{Code: 0x46, Name: "fstore_3", Effect: fx(w1, nil)},
	{Code: 0x47, Name: "dstore_0", Effect: fx(w2, nil)},
	{Code: 0x48, Name: "dstore_1", Effect: fx(w2, nil)},
	{Code: 0x49, Name: "dstore_2", Effect: fx(w2, nil)},
	{Code: 0x4a, Name: "dstore_3", Effect: fx(w2, nil)},
	{Code: 0x4b, Name: "astore_0", Effect: fx(w1, nil)},
	{Code: 0x4c, Name: "astore_1", Effect: fx(w1, nil)},
	{Code: 0x4d, Name: "astore_2", Effect: fx(w1, nil)},
	{Code: 0x4e, Name: "astore_3", Effect: fx(w1, nil)},

	{Code: 0x4f, Name: "iastore", Effect: fx(w111, nil)},
	{Code: 0x50, Name: "lastore", Effect: fx(w211, nil)},
	{Code: 0x51, Name: "fastore", Effect: fx(w111, nil)},
	{Code: 0x52, Name: "dastore", Effect: fx(w211, nil)},
	{Code: 0x53, Name: "aastore", Effect: fx(w111, nil)},
	{Code: 0x54, Name: "bastore", Effect: fx(w111, nil)},
	{Code: 0x55, Name: "castore", Effect: fx(w111, nil)},
	{Code: 0x56, Name: "sastore", Effect: fx(w111, nil)},

	{Code: 0x57, Name: "pop", Effect: fx(w1, nil)},
	{Code: 0x58, Name: "pop2", Effect: fx(w11, nil)},
	{Code: 0x59, Name: "dup", Effect: fx(w1, w11)},
	{Code: 0x5a, Name: "dup_x1", Effect: fx(w11, w111)},
	{Code: 0x5b, Name: "dup_x2", Effect: fx(w111, w1111)},
	{Code: 0x5c, Name: "dup2", Effect: fx(w11, w1111)},
	{Code: 0x5d, Name: "dup2_x1", Effect: fx(w111, w5)},
	{Code: 0x5e, Name: "dup2_x2", Effect: fx(w1111, w6)},
	{Code: 0x5f, Name: "swap", Effect: fx(w11, w11)},

	{Code: 0x60, Name: "iadd", Effect: fx(w11, w1)},
	{Code: 0x61, Name: "ladd", Effect: fx(w22, w2)},
	{Code: 0x62, Name: "fadd", Effect: fx(w11, w1)},
	{Code: 0x63, Name: "dadd", Effect: fx(w22, w2)},
	{Code: 0x64, Name: "isub", Effect: fx(w11, w1)},
	{Code: 0x65, Name: "lsub", Effect: fx(w22, w2)},
	{Code: 0x66, Name: "fsub", Effect: fx(w11, w1)},
	{Code: 0x67, Name: "dsub", Effect: fx(w22, w2)},
	{Code: 0x68, Name: "imul", Effect: fx(w11, w1)},
	{Code: 0x69, Name: "lmul", Effect: fx(w22, w2)},
	{Code: 0x6a, Name: "fmul", Effect: fx(w11, w1)},
	{Code: 0x6b, Name: "dmul", Effect: fx(w22, w2)},
	{Code: 0x6c, Name: "idiv", Effect: fx(w11, w1)},
	{Code: 0x6d, Name: "ldiv", Effect: fx(w22, w2)},
	{Code: 0x6e, Name: "fdiv", Effect: fx(w11, w1)},
	{Code: 0x6f, Name: "ddiv", Effect: fx(w22, w2)},
	{Code: 0x70, Name: "irem", Effect: fx(w11, w1)},
	{Code: 0x71, Name: "lrem", Effect: fx(w22, w2)},
	{Code: 0x72, Name: "frem", Effect: fx(w11, w1)},
	{Code: 0x73, Name: "drem", Effect: fx(w22, w2)},
	{Code: 0x74, Name: "ineg", Effect: fx(w1, w1)},
	{Code: 0x75, Name: "lneg", Effect: fx(w2, w2)},
	{Code: 0x76, Name: "fneg", Effect: fx(w1, w1)},
	{Code: 0x77, Name: "dneg", Effect: fx(w2, w2)},
	{Code: 0x78, Name: "ishl", Effect: fx(w11, w1)},
	{Code: 0x79, Name: "lshl", Effect: fx(w12, w2)},
	{Code: 0x7a, Name: "ishr", Effect: fx(w11, w1)},
	{Code: 0x7b, Name: "lshr", Effect: fx(w12, w2)},
	{Code: 0x7c, Name: "iushr", Effect: fx(w11, w1)},
	{Code: 0x7d, Name: "lushr", Effect: fx(w12, w2)},
	{Code: 0x7e, Name: "iand", Effect: fx(w11, w1)},
	{Code: 0x7f, Name: "land", Effect: fx(w22, w2)},
	{Code: 0x80, Name: "ior", Effect: fx(w11, w1)},
	{Code: 0x81, Name: "lor", Effect: fx(w22, w2)},
	{Code: 0x82, Name: "ixor", Effect: fx(w11, w1)},
	{Code: 0x83, Name: "lxor", Effect: fx(w22, w2)},
	{Code: 0x84, Name: "iinc", Operands: iincOps},

	{Code: 0x85, Name: "i2l", Effect: fx(w1, w2)},
	{Code: 0x86, Name: "i2f", Effect: fx(w1, w1)},
	{Code: 0x87, Name: "i2d", Effect: fx(w1, w2)},
	{Code: 0x88, Name: "l2i", Effect: fx(w2, w1)},
	{Code: 0x89, Name: "l2f", Effect: fx(w2, w1)},
	{Code: 0x8a, Name: "l2d", Effect: fx(w2, w2)},
	{Code: 0x8b, Name: "f2i", Effect: fx(w1, w1)},
	{Code: 0x8c, Name: "f2l", Effect: fx(w1, w2)},
	{Code: 0x8d, Name: "f2d", Effect: fx(w1, w2)},
	{Code: 0x8e, Name: "d2i", Effect: fx(w2, w1)},
	{Code: 0x8f, Name: "d2l", Effect: fx(w2, w2)},
	{Code: 0x90, Name: "d2f", Effect: fx(w2, w1)},
	{Code: 0x91, Name: "i2b", Effect: fx(w1, w1)},
	{Code: 0x92, Name: "i2c", Effect: fx(w1, w1)},
	{Code: 0x93, Name: "i2s", Effect: fx(w1, w1)},
	{Code: 0x94, Name: "lcmp", Effect: fx(w22, w1)},
	{Code: 0x95, Name: "fcmpl", Effect: fx(w11, w1)},
	{Code: 0x96, Name: "fcmpg", Effect: fx(w11, w1)},
	{Code: 0x97, Name: "dcmpl", Effect: fx(w22, w1)},
	{Code: 0x98, Name: "dcmpg", Effect: fx(w22, w1)},

	{Code: 0x99, Name: "ifeq", Kind: Branch, Operands: s2, Conditional: true, Effect: fx(w1, nil)},
	{Code: 0x9a, Name: "ifne", Kind: Branch, Operands: s2, Conditional: true, Effect: fx(w1, nil)},
	{Code: 0x9b, Name: "iflt", Kind: Branch, Operands: s2, Conditional: true, Effect: fx(w1, nil)},
	{Code: 0x9c, Name: "ifge", Kind: Branch, Operands: s2, Conditional: true, Effect: fx(w1, nil)},
	{Code: 0x9d, Name: "ifgt", Kind: Branch, Operands: s2, Conditional: true, Effect: fx(w1, nil)},
	{Code: 0x9e, Name: "ifle", Kind: Branch, Operands: s2, Conditional: true, Effect: fx(w1, nil)},
	{Code: 0x9f, Name: "if_icmpeq", Kind: Branch, Operands: s2, Conditional: true, Effect: fx(w11, nil)},
	{Code: 0xa0, Name: "if_icmpne", Kind: Branch, Operands: s2, Conditional: true, Effect: fx(w11, nil)},
	{Code: 0xa1, Name: "if_icmplt", Kind: Branch, Operands: s2, Conditional: true, Effect: fx(w11, nil)},
	{Code: 0xa2, Name: "if_icmpge", Kind: Branch, Operands: s2, Conditional: true, Effect: fx(w11, nil)},
	{Code: 0xa3, Name: "if_icmpgt", Kind: Branch, Operands: s2, Conditional: true, Effect: fx(w11, nil)},
	{Code: 0xa4, Name: "if_icmple", Kind: Branch, Operands: s2, Conditional: true, Effect: fx(w11, nil)},
	{Code: 0xa5, Name: "if_acmpeq", Kind: Branch, Operands: s2, Conditional: true, Effect: fx(w11, nil)},
	{Code: 0xa6, Name: "if_acmpne", Kind: Branch, Operands: s2, Conditional: true, Effect: fx(w11, nil)},
	{Code: 0xa7, Name: "goto", Kind: Branch, Operands: s2},
	{Code: 0xa8, Name: "jsr", Kind: Branch, Operands: s2, Subroutine: true, Effect: fx(nil, w1)},
	{Code: 0xa9, Name: "ret", Kind: Exit, Operands: u1},
	{Code: 0xaa, Name: "tableswitch", Kind: Switch, Variable: true, Effect: fx(w1, nil)},
	{Code: 0xab, Name: "lookupswitch", Kind: Switch, Variable: true, Effect: fx(w1, nil)},
	{Code: 0xac, Name: "ireturn", Kind: Exit, Effect: fx(w1, nil)},
	{Code: 0xad, Name: "lreturn", Kind: Exit, Effect: fx(w2, nil)},
	{Code: 0xae, Name: "freturn", Kind: Exit, Effect: fx(w1, nil)},
	{Code: 0xaf, Name: "dreturn", Kind: Exit, Effect: fx(w2, nil)},
	{Code: 0xb0, Name: "areturn", Kind: Exit, Effect: fx(w1, nil)},
	{Code: 0xb1, Name: "return", Kind: Exit},

	{Code: 0xb2, Name: "getstatic", Operands: u2, Effect: dynamic},
	{Code: 0xb3, Name: "putstatic", Operands: u2, Effect: dynamic},
	{Code: 0xb4, Name: "getfield", Operands: u2, Effect: dynamic},
	{Code: 0xb5, Name: "putfield", Operands: u2, Effect: dynamic},
	{Code: 0xb6, Name: "invokevirtual", Kind: Invoke, Operands: u2, Effect: dynamic},
	{Code: 0xb7, Name: "invokespecial", Kind: Invoke, Operands: u2, Effect: dynamic},
	{Code: 0xb8, Name: "invokestatic", Kind: Invoke, Operands: u2, Effect: dynamic},
	{Code: 0xb9, Name: "invokeinterface", Kind: Invoke, Operands: u2u1u1, Effect: dynamic},
	{Code: 0xba, Name: "invokedynamic", Kind: Invoke, Operands: u2u1u1, Effect: dynamic},
	{Code: 0xbb, Name: "new", Operands: u2, Effect: fx(nil, w1)},
	{Code: 0xbc, Name: "newarray", Operands: u1, Effect: fx(w1, w1)},
	{Code: 0xbd, Name: "anewarray", Operands: u2, Effect: fx(w1, w1)},
	{Code: 0xbe, Name: "arraylength", Effect: fx(w1, w1)},
	{Code: 0xbf, Name: "athrow", Kind: Exit, Effect: fx(w1, nil)},
	{Code: 0xc0, Name: "checkcast", Operands: u2, Effect: fx(w1, w1)},
	{Code: 0xc1, Name: "instanceof", Operands: u2, Effect: fx(w1, w1)},
	{Code: 0xc2, Name: "monitorenter", Effect: fx(w1, nil)},
	{Code: 0xc3, Name: "monitorexit", Effect: fx(w1, nil)},
	{Code: 0xc4, Name: "wide", Variable: true},
	{Code: 0xc5, Name: "multianewarray", Operands: u2u1, Effect: dynamic},
	{Code: 0xc6, Name: "ifnull", Kind: Branch, Operands: s2, Conditional: true, Effect: fx(w1, nil)},
	{Code: 0xc7, Name: "ifnonnull", Kind: Branch, Operands: s2, Conditional: true, Effect: fx(w1, nil)},
	{Code: 0xc8, Name: "goto_w", Kind: Branch, Operands: s4},
	{Code: 0xc9, Name: "jsr_w", Kind: Branch, Operands: s4, Subroutine: true, Effect: fx(nil, w1)},
	{Code: 0xca, Name: "breakpoint"},
	{Code: 0xfe, Name: "impdep1"},
	{Code: 0xff, Name: "impdep2"},
}

var registry [256]*Opcode

func init() {
	for i := range table {
		registry[table[i].Code] = &table[i]
	}
}

// Lookup returns the descriptor for an opcode byte.
func Lookup(code byte) (*Opcode, bool) {
	op := registry[code]
	return op, op != nil
}

// Opcode bytes the analyzer handles specially.
const (
	OpAconstNull     = 0x01
	OpIconstM1       = 0x02
	OpIconst5        = 0x08
	OpBipush         = 0x10
	OpSipush         = 0x11
	OpIload          = 0x15
	OpAload          = 0x19
	OpIload0         = 0x1a
	OpAload3         = 0x2d
	OpIastore        = 0x4f
	OpLastore        = 0x50
	OpSastore        = 0x56
	OpDup            = 0x59
	OpDupX1          = 0x5a
	OpDupX2          = 0x5b
	OpDup2           = 0x5c
	OpDup2X1         = 0x5d
	OpDup2X2         = 0x5e
	OpSwap           = 0x5f
	OpGetstatic      = 0xb2
	OpPutstatic      = 0xb3
	OpGetfield       = 0xb4
	OpPutfield       = 0xb5
	OpInvokestatic   = 0xb8
	OpInvokedynamic  = 0xba
	OpNewarray       = 0xbc
	OpAnewarray      = 0xbd
	OpCheckcast      = 0xc0
	OpWide           = 0xc4
	OpMultianewarray = 0xc5
	OpIinc           = 0x84
	OpTableswitch    = 0xaa
	OpLookupswitch   = 0xab
)
