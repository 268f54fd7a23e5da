package cmd

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"stackscope/internal/classfile"
	"stackscope/internal/classfile/classfiletest"
)

// callerClass builds a class with a varargs call, a method that fails to
// analyze and an abstract method.
func callerClass() []byte {
	b := classfiletest.New("com/example/Caller")
	obj := b.Class("java/lang/Object")
	fmtRef := b.Methodref("com/example/Fmt", "format", "(ILjava/lang/String;[Ljava/lang/Object;)V")
	code := []byte{
		0x1a, 0x2b, 0x05,
		0xbd, byte(obj >> 8), byte(obj),
		0x59, 0x03, 0x2b, 0x53,
		0x59, 0x04, 0x2c, 0x53,
		0xb8, byte(fmtRef >> 8), byte(fmtRef),
		0xb1,
	}
	b.Method(classfiletest.Method{
		Access:     classfile.AccStatic | classfile.AccVarargs,
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
	b.Method(classfiletest.Method{
		Access:     classfile.AccStatic,
		Name:       "broken",
		Descriptor: "()V",
		MaxStack:   1,
		Code:       []byte{0x57, 0xb1},
	})
	b.Method(classfiletest.Method{
		Access:     classfile.AccAbstract,
		Name:       "hook",
		Descriptor: "()V",
	})
	return b.Bytes()
}

func writeClass(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Caller.class")
	if err := os.WriteFile(path, callerClass(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeJar(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.jar")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, name := range []string{"META-INF/MANIFEST.MF", "com/example/Caller.class"} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		data := []byte("Manifest-Version: 1.0\n")
		if strings.HasSuffix(name, ".class") {
			data = callerClass()
		}
		if _, err := w.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func methodTitles(r *Report) []string {
	var out []string
	for _, m := range r.Methods {
		out = append(out, m.Name)
	}
	return out
}

func TestBuildReport(t *testing.T) {
	for _, input := range []struct {
		name string
		path func(*testing.T) string
	}{
		{"class", writeClass},
		{"jar", writeJar},
	} {
		t.Run(input.name, func(t *testing.T) {
			r, err := BuildReport(context.Background(), input.path(t), Config{Workers: 2}, true)
			if err != nil {
				t.Fatal(err)
			}
			if r.Classes != 1 || len(r.Digest) != 64 {
				t.Errorf("classes = %d, digest = %q", r.Classes, r.Digest)
			}
			if diff := cmp.Diff([]string{"run", "broken"}, methodTitles(r)); diff != "" {
				t.Errorf("methods mismatch (-want +got):\n%s", diff)
			}

			run := r.Methods[0]
			if run.Instructions != 14 || run.Reachable != 14 || len(run.Listing) != 14 {
				t.Errorf("run: %d instructions, %d reachable, %d listing lines", run.Instructions, run.Reachable, len(run.Listing))
			}
			if !run.Varargs {
				t.Error("run is declared varargs")
			}
			if len(run.Calls) != 1 || run.Calls[0].Comment != "format(count, label, label, extra)" {
				t.Errorf("run calls = %+v", run.Calls)
			}

			broken := r.Methods[1]
			if broken.Varargs {
				t.Error("broken is not varargs")
			}
			if !strings.Contains(broken.Error, "stack underflow") {
				t.Errorf("broken error = %q", broken.Error)
			}
			if r.Calls() != 1 || r.Failed() != 1 {
				t.Errorf("calls = %d, failed = %d", r.Calls(), r.Failed())
			}
		})
	}
}

func TestBuildReportSelection(t *testing.T) {
	path := writeClass(t)

	r, err := BuildReport(context.Background(), path, Config{Methods: []string{"com.example.Caller.run"}, Detect: []string{"other"}}, false)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"run"}, methodTitles(r)); diff != "" {
		t.Errorf("methods mismatch (-want +got):\n%s", diff)
	}
	if c := r.Methods[0].Calls[0]; c.Comment != "" || r.Methods[0].Listing != nil {
		t.Errorf("unselected call annotated or listing kept: %+v", r.Methods[0])
	}

	if _, err := BuildReport(context.Background(), filepath.Join(t.TempDir(), "none.class"), Config{}, false); err == nil {
		t.Error("missing input must fail")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := BuildReport(ctx, path, Config{}, false); err == nil {
		t.Error("cancelled context must fail")
	}
}

func TestReportOutput(t *testing.T) {
	r, err := BuildReport(context.Background(), writeClass(t), Config{Workers: 1}, false)
	if err != nil {
		t.Fatal(err)
	}

	var jsonBuf bytes.Buffer
	if err := writeJSON(&jsonBuf, r); err != nil {
		t.Fatal(err)
	}
	var fromJSON struct {
		Methods []struct {
			Name  string `json:"name"`
			Calls []struct {
				Merged  []string `json:"merged"`
				Comment string   `json:"comment"`
			} `json:"calls"`
		} `json:"methods"`
	}
	if err := json.Unmarshal(jsonBuf.Bytes(), &fromJSON); err != nil {
		t.Fatal(err)
	}
	if got := fromJSON.Methods[0].Calls[0].Merged; !cmp.Equal(got, []string{"count", "label", "label", "extra"}) {
		t.Errorf("json merged = %v", got)
	}

	var yamlBuf bytes.Buffer
	if err := writeYAML(&yamlBuf, r); err != nil {
		t.Fatal(err)
	}
	var fromYAML map[string]any
	if err := yaml.Unmarshal(yamlBuf.Bytes(), &fromYAML); err != nil {
		t.Fatal(err)
	}
	if fromYAML["classes"] != 1 {
		t.Errorf("yaml classes = %v", fromYAML["classes"])
	}

	md := summaryMarkdown(r, false)
	for _, want := range []string{"# stackscope", "1 classes, 2 methods, 1 calls, 1 failed", "`format(count, label, label, extra)`", "> "} {
		if !strings.Contains(md, want) {
			t.Errorf("summary lacks %q:\n%s", want, md)
		}
	}

	t.Setenv("STACKSCOPE_NO_COLOR", "1")
	var plain bytes.Buffer
	writePlain(&plain, r, false)
	if !strings.Contains(plain.String(), "    14  format(count, label, label, extra)") {
		t.Errorf("plain output:\n%s", plain.String())
	}
}

func TestRunCommand(t *testing.T) {
	t.Setenv("STACKSCOPE_NO_COLOR", "1")
	path := writeClass(t)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"run", path, "run"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})
	if err := rootCmd.Execute(); err != nil {
		t.Fatal(err)
	}
	want := "com.example.Caller.run(ILjava/lang/String;Ljava/lang/Object;)V\t14\tformat(count, label, label, extra)\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}

func TestRunCommandClosesDebugLog(t *testing.T) {
	if _, err := os.Stat("/proc/self/fd"); err != nil {
		t.Skip("needs /proc/self/fd")
	}
	t.Setenv("STACKSCOPE_NO_COLOR", "1")
	t.Setenv("STACKSCOPE_LOG_LEVEL", "debug")
	t.Setenv("STACKSCOPE_LOG_TO_FILE", "1")
	path := writeClass(t)
	dir := t.TempDir()
	t.Chdir(dir)

	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"run", path, "run"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})
	if err := rootCmd.Execute(); err != nil {
		t.Fatal(err)
	}

	logs, _ := filepath.Glob(filepath.Join(dir, "stackscope-*-debug.log"))
	if len(logs) == 0 {
		t.Fatal("no debug log written")
	}
	real, err := filepath.EvalSymlinks(dir)
	if err != nil {
		t.Fatal(err)
	}
	fds, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		t.Fatal(err)
	}
	for _, fd := range fds {
		target, err := os.Readlink(filepath.Join("/proc/self/fd", fd.Name()))
		if err == nil && strings.HasPrefix(target, real) {
			t.Errorf("%s still open after the command returned", target)
		}
	}
}
