package detectors

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"stackscope/internal/analysis"
)

func TestArgNames(t *testing.T) {
	findings := []analysis.CallFinding{
		{Owner: "com.example.Fmt", Name: "format", Args: []string{"count", "label", ""}, Merged: []string{"count", "label", "label", "extra"}},
		{Owner: "com.example.Log", Name: "info", Args: []string{"", "msg"}},
		{Owner: "java.lang.Object", Name: "<init>", Args: []string{}},
	}

	tests := []struct {
		name      string
		selectors []string
		comments  []string
	}{
		{
			name:      "bare name",
			selectors: []string{"format"},
			comments:  []string{"format(count, label, label, extra)", "", ""},
		},
		{
			name:      "qualified name",
			selectors: []string{" com.example.Log.info ", ""},
			comments:  []string{"", "info(_, msg)", ""},
		},
		{
			name:     "no selectors match everything",
			comments: []string{"format(count, label, label, extra)", "info(_, msg)", "<init>()"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := append([]analysis.CallFinding(nil), findings...)
			out := NewArgNames(tt.selectors...).Detect(in)
			var got []string
			for _, f := range out {
				got = append(got, f.Comment)
			}
			if diff := cmp.Diff(tt.comments, got); diff != "" {
				t.Errorf("comments mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestArgNamesMetadata(t *testing.T) {
	in := []analysis.CallFinding{{
		Name:     "info",
		Args:     []string{"", "msg"},
		Metadata: map[string]any{"source": "test"},
	}}
	out := NewArgNames().Detect(in)

	want := map[string]any{"source": "test", "bound": 1, "arity": 2, "variadic": false}
	if diff := cmp.Diff(want, out[0].Metadata); diff != "" {
		t.Errorf("metadata mismatch (-want +got):\n%s", diff)
	}
	if len(in[0].Metadata) != 1 {
		t.Error("input metadata must not be modified")
	}
}
