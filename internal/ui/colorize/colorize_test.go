package colorize

import (
	"regexp"
	"strings"
	"testing"
)

var ansi = regexp.MustCompile("\x1b\\[[0-9;]*m")

func TestLineKeepsText(t *testing.T) {
	t.Setenv("STACKSCOPE_NO_COLOR", "")
	lines := []string{
		"     0  iload_0 (count)                  ; [] -> [count]",
		"    14  invokestatic com.example.Fmt.format(I[Ljava/lang/Object;)V ; [{label, extra}, count] -> []",
		"     3  nop                              ; unreachable",
	}
	for _, l := range lines {
		got := Line(l)
		if !strings.Contains(got, "\x1b[") {
			t.Errorf("no colors in %q", got)
		}
		if plain := ansi.ReplaceAllString(got, ""); plain != l {
			t.Errorf("text changed:\n got %q\nwant %q", plain, l)
		}
	}
}

func TestNoColor(t *testing.T) {
	t.Setenv("STACKSCOPE_NO_COLOR", "1")
	in := []string{"     0  return                           ; [] -> []", "     1  nop"}
	if got := Listing(in); got != strings.Join(in, "\n") {
		t.Errorf("Listing = %q", got)
	}
}
