package analysis

// Detector annotates the calls found in one method, usually by filling
// Comment or Metadata on the calls it recognizes. It may drop or append
// findings. Detectors are shared by the workers of a report and must not
// keep per-method state.
type Detector interface {
	Detect(findings []CallFinding) []CallFinding
}

// DetectorChain applies its detectors in order, feeding each the findings
// returned by the one before. An empty chain returns its input.
type DetectorChain []Detector

// NewDetectorChain builds a chain from detectors, leaving out nil ones.
func NewDetectorChain(detectors ...Detector) DetectorChain {
	chain := make(DetectorChain, 0, len(detectors))
	for _, d := range detectors {
		if d != nil {
			chain = append(chain, d)
		}
	}
	return chain
}

func (c DetectorChain) Detect(findings []CallFinding) []CallFinding {
	for _, d := range c {
		findings = d.Detect(findings)
	}
	return findings
}

// DetectorFunc is a Detector backed by a function.
type DetectorFunc func(findings []CallFinding) []CallFinding

func (f DetectorFunc) Detect(findings []CallFinding) []CallFinding {
	return f(findings)
}
