package analysis

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"stackscope/internal/classfile"
	"stackscope/internal/classfile/classfiletest"
)

func u2(v uint16) (byte, byte) { return byte(v >> 8), byte(v) }

// loadMethod parses the built class and prepares its only method.
func loadMethod(t *testing.T, b *classfiletest.Builder, name string) *Method {
	t.Helper()
	c, err := classfile.Parse(b.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	cm, ok := c.Method(name, "")
	if !ok {
		t.Fatalf("method %s not found", name)
	}
	m, err := NewMethod(c, cm)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

// varargsClass builds
//
//	static void run(int count, String label, Object extra) {
//	    Fmt.format(count, label, new Object[]{label, extra});
//	}
func varargsClass() *classfiletest.Builder {
	b := classfiletest.New("com/example/Caller")
	objHi, objLo := u2(b.Class("java/lang/Object"))
	fmtHi, fmtLo := u2(b.Methodref("com/example/Fmt", "format", "(ILjava/lang/String;[Ljava/lang/Object;)V"))
	code := []byte{
		0x1a,               // iload_0
		0x2b,               // aload_1
		0x05,               // iconst_2
		0xbd, objHi, objLo, // anewarray Object
		0x59,               // dup
		0x03,               // iconst_0
		0x2b,               // aload_1
		0x53,               // aastore
		0x59,               // dup
		0x04,               // iconst_1
		0x2c,               // aload_2
		0x53,               // aastore
		0xb8, fmtHi, fmtLo, // invokestatic Fmt.format
		0xb1,               // return
	}
	b.Method(classfiletest.Method{
		Access:     classfile.AccStatic,
		Name:       "run",
		Descriptor: "(ILjava/lang/String;Ljava/lang/Object;)V",
		MaxStack:   6,
		MaxLocals:  3,
		Code:       code,
		Locals: []classfiletest.Local{
			{Name: "count", Descriptor: "I", Length: len(code), Slot: 0},
			{Name: "label", Descriptor: "Ljava/lang/String;", Length: len(code), Slot: 1},
			{Name: "extra", Descriptor: "Ljava/lang/Object;", Length: len(code), Slot: 2},
		},
	})
	return b
}

func TestResolveVarargs(t *testing.T) {
	m := loadMethod(t, varargsClass(), "run")
	frames := analyze(t, m)
	call, ok := frames.At(14)
	if !ok {
		t.Fatal("no frame at the call")
	}

	mp, err := ResolveParameters(call)
	if err != nil {
		t.Fatal(err)
	}
	if len(mp.Params) != 3 {
		t.Fatalf("params = %d, want 3", len(mp.Params))
	}
	if mp.Params[0].Type == nil || mp.Params[0].Type.Name != "int" {
		t.Errorf("first argument type = %v, want int", mp.Params[0].Type)
	}
	if mp.Params[2].Named() || mp.Params[2].Value.Kind != TrackedArray {
		t.Errorf("array argument = %+v", mp.Params[2])
	}

	merged := mp.Merge()
	var names []string
	for _, p := range merged {
		names = append(names, p.Name)
	}
	if diff := cmp.Diff([]string{"count", "label", "label", "extra"}, names); diff != "" {
		t.Errorf("merged mismatch (-want +got):\n%s", diff)
	}
	if len(mp.Params) != 3 || len(mp.Varargs) != 2 {
		t.Errorf("Merge modified its inputs: %d params, %d varargs", len(mp.Params), len(mp.Varargs))
	}

	plain, err := ResolveParameterNames(call, false)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"count", "label", ""}, plain); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
	unpacked, err := ResolveParameterNames(call, true)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(names, unpacked); diff != "" {
		t.Errorf("unpacked names mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveWideAndReceiver(t *testing.T) {
	b := classfiletest.New("com/example/Sink")
	hi, lo := u2(b.Methodref("com/example/Sink", "put", "(JLjava/lang/String;)J"))
	// this.put(big, name) with long big in slots 1-2 and name in slot 3
	code := []byte{0x2a, 0x1f, 0x2d, 0xb6, hi, lo, 0x58, 0xb1}
	b.Method(classfiletest.Method{
		Name:       "send",
		Descriptor: "(JLjava/lang/String;)V",
		MaxStack:   4,
		MaxLocals:  4,
		Code:       code,
		Locals: []classfiletest.Local{
			{Name: "this", Descriptor: "Lcom/example/Sink;", Length: len(code), Slot: 0},
			{Name: "big", Descriptor: "J", Length: len(code), Slot: 1},
			{Name: "name", Descriptor: "Ljava/lang/String;", Length: len(code), Slot: 3},
		},
	})
	m := loadMethod(t, b, "send")
	if v, _ := m.Vars.Get(1); !v.Parameter {
		t.Error("big must be flagged as a parameter")
	}

	frames := analyze(t, m)
	call, _ := frames.At(3)
	if call.Before.Slots() != 4 || call.After.Slots() != 2 {
		t.Errorf("invokevirtual slots %d -> %d, want 4 -> 2", call.Before.Slots(), call.After.Slots())
	}
	names, err := ResolveParameterNames(call, true)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"big", "name"}, names); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveParametersNotInvocation(t *testing.T) {
	frames := analyze(t, staticMethod(branchy))
	f, _ := frames.At(0)
	if _, err := ResolveParameters(f); !errors.Is(err, ErrNotInvocation) {
		t.Errorf("error = %v, want ErrNotInvocation", err)
	}
}

func TestMergeWithoutVarargs(t *testing.T) {
	mp := MethodParams{Params: []MethodParam{{Name: "a"}, {Name: "b"}}}
	got := mp.Merge()
	got[0].Name = "changed"
	if mp.Params[0].Name != "a" {
		t.Error("Merge must copy the parameters")
	}

	empty := MethodParams{Varargs: []MethodParam{}}
	if len(empty.Merge()) != 0 {
		t.Error("no declared parameters means nothing to merge")
	}
}

func TestFindingsAndDetectorChain(t *testing.T) {
	frames := analyze(t, loadMethod(t, varargsClass(), "run"))
	findings, err := Findings(frames)
	if err != nil {
		t.Fatal(err)
	}
	if len(findings) != 1 {
		t.Fatalf("got %d findings, want 1", len(findings))
	}
	f := findings[0]
	if f.Target() != "com.example.Fmt.format" || f.Offset != 14 || f.Caller != "com.example.Caller.run(ILjava/lang/String;Ljava/lang/Object;)V" {
		t.Errorf("finding = %+v", f)
	}
	if diff := cmp.Diff([]string{"label", "extra"}, f.Varargs); diff != "" {
		t.Errorf("varargs mismatch (-want +got):\n%s", diff)
	}

	if out := NewDetectorChain().Detect(findings); len(out) != 1 || out[0].Comment != "" {
		t.Errorf("empty chain changed the findings: %+v", out)
	}

	chain := NewDetectorChain(
		nil,
		DetectorFunc(func(in []CallFinding) []CallFinding {
			for i := range in {
				in[i].Comment = FormatCall(in[i].Name, in[i].Args)
			}
			return in
		}),
		DetectorFunc(func(in []CallFinding) []CallFinding {
			return append(in, CallFinding{Name: "synthetic"})
		}),
	)
	if len(chain) != 2 {
		t.Fatalf("chain has %d detectors, want 2", len(chain))
	}
	out := chain.Detect(findings)
	if len(out) != 2 || out[0].Comment != "format(count, label, _)" {
		t.Errorf("chain output = %+v", out)
	}
}
