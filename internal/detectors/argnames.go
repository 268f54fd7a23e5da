// Package detectors enriches call findings produced by the analyzer.
package detectors

import (
	"strings"

	"stackscope/internal/analysis"
)

// ArgNames annotates calls to selected methods with the names of the local
// variables passed to them, for example format(count, label, extra).
//
// A selector is either a bare method name ("format") or a qualified one
// ("com.example.Fmt.format"). An empty selector list matches every call.
type ArgNames struct {
	selectors []string
}

// NewArgNames returns a detector for the given selectors.
func NewArgNames(selectors ...string) *ArgNames {
	var s []string
	for _, sel := range selectors {
		if sel = strings.TrimSpace(sel); sel != "" {
			s = append(s, sel)
		}
	}
	return &ArgNames{selectors: s}
}

func (d *ArgNames) matches(f analysis.CallFinding) bool {
	if len(d.selectors) == 0 {
		return true
	}
	for _, sel := range d.selectors {
		if sel == f.Name || sel == f.Target() {
			return true
		}
	}
	return false
}

// Detect implements analysis.Detector. Findings are returned in order;
// matching ones get a Comment and argument metadata.
func (d *ArgNames) Detect(findings []analysis.CallFinding) []analysis.CallFinding {
	result := make([]analysis.CallFinding, 0, len(findings))
	for _, finding := range findings {
		if !d.matches(finding) {
			result = append(result, finding)
			continue
		}

		args := finding.Args
		if finding.Merged != nil {
			args = finding.Merged
		}
		bound := 0
		for _, a := range args {
			if a != "" {
				bound++
			}
		}

		meta := make(map[string]any, len(finding.Metadata)+3)
		for k, v := range finding.Metadata {
			meta[k] = v
		}
		meta["bound"] = bound
		meta["arity"] = len(args)
		meta["variadic"] = finding.Merged != nil

		finding.Metadata = meta
		finding.Comment = analysis.FormatCall(finding.Name, args)
		result = append(result, finding)
	}
	return result
}
