package analysis

import (
	"fmt"
	"strings"
)

// CallFinding is a method invocation found in an analyzed method, with its
// arguments reconstructed from the simulated stack.
type CallFinding struct {
	Offset     int    `json:"offset" yaml:"offset"`
	Caller     string `json:"caller" yaml:"caller"`
	Owner      string `json:"owner,omitempty" yaml:"owner,omitempty"`
	Name       string `json:"name" yaml:"name"`
	Descriptor string `json:"descriptor" yaml:"descriptor"`

	// Args are the declared arguments, "" when unbound. Varargs holds the
	// elements of a trailing tracked array and Merged the arguments with
	// that array unpacked.
	Args    []string `json:"args" yaml:"args"`
	Varargs []string `json:"varargs,omitempty" yaml:"varargs,omitempty"`
	Merged  []string `json:"merged,omitempty" yaml:"merged,omitempty"`

	Comment  string         `json:"comment,omitempty" yaml:"comment,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Params   MethodParams   `json:"-" yaml:"-"`
}

// Target returns Owner.Name, or Name alone for call sites without an owner.
func (c CallFinding) Target() string {
	if c.Owner == "" {
		return c.Name
	}
	return c.Owner + "." + c.Name
}

// Findings returns one finding per reachable invocation, in offset order.
func Findings(frames *Frames) ([]CallFinding, error) {
	var out []CallFinding
	for _, f := range frames.Reachable() {
		op, ok := f.Op.(*InvokeOp)
		if !ok {
			continue
		}
		mp, err := ResolveParameters(f)
		if err != nil {
			return nil, err
		}
		finding := CallFinding{
			Offset:     f.Offset(),
			Caller:     frames.Method().String(),
			Owner:      op.Ref.Class,
			Name:       op.Ref.Name,
			Descriptor: op.Ref.Descriptor,
			Args:       paramNames(mp.Params),
			Params:     mp,
		}
		if mp.Varargs != nil {
			finding.Varargs = paramNames(mp.Varargs)
			finding.Merged = paramNames(mp.Merge())
		}
		out = append(out, finding)
	}
	return out, nil
}

func paramNames(params []MethodParam) []string {
	out := make([]string, len(params))
	for i, p := range params {
		out[i] = p.Name
	}
	return out
}

// Listing renders every frame of the table, one line per instruction.
func Listing(frames *Frames) []string {
	out := make([]string, 0, frames.Len())
	for _, f := range frames.All() {
		out = append(out, f.String())
	}
	return out
}

// FormatCall renders a call with its argument names; unbound arguments
// print as "_".
func FormatCall(name string, args []string) string {
	parts := make([]string, len(args))
	for i, a := range args {
		if a == "" {
			a = "_"
		}
		parts[i] = a
	}
	return fmt.Sprintf("%s(%s)", name, strings.Join(parts, ", "))
}
