package cmd

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	pathpkg "path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"stackscope/internal/analysis"
	"stackscope/internal/classfile"
	"stackscope/internal/detectors"
)

// MethodReport is the analysis outcome of one method.
type MethodReport struct {
	Class        string                 `json:"class" yaml:"class"`
	Name         string                 `json:"name" yaml:"name"`
	Descriptor   string                 `json:"descriptor" yaml:"descriptor"`
	Varargs      bool                   `json:"varargs,omitempty" yaml:"varargs,omitempty"`
	Instructions int                    `json:"instructions" yaml:"instructions"`
	Reachable    int                    `json:"reachable" yaml:"reachable"`
	Calls        []analysis.CallFinding `json:"calls,omitempty" yaml:"calls,omitempty"`
	Listing      []string               `json:"listing,omitempty" yaml:"listing,omitempty"`
	Error        string                 `json:"error,omitempty" yaml:"error,omitempty"`
}

// Title is Class.Name followed by the descriptor.
func (m MethodReport) Title() string {
	return m.Class + "." + m.Name + m.Descriptor
}

// Report is the result of analyzing one class file or archive.
type Report struct {
	Path    string         `json:"path" yaml:"path"`
	Digest  string         `json:"digest" yaml:"digest"`
	Classes int            `json:"classes" yaml:"classes"`
	Methods []MethodReport `json:"methods" yaml:"methods"`
}

// Calls counts the call findings of all methods.
func (r *Report) Calls() int {
	n := 0
	for _, m := range r.Methods {
		n += len(m.Calls)
	}
	return n
}

// Failed counts the methods whose analysis failed.
func (r *Report) Failed() int {
	n := 0
	for _, m := range r.Methods {
		if m.Error != "" {
			n++
		}
	}
	return n
}

func isArchive(path string) bool {
	switch strings.ToLower(pathpkg.Ext(path)) {
	case ".jar", ".zip", ".war", ".ear":
		return true
	}
	return false
}

func loadClasses(path string) ([]*classfile.Class, error) {
	if isArchive(path) {
		return classfile.ReadJar(path)
	}
	c, err := classfile.Open(path)
	if err != nil {
		return nil, err
	}
	return []*classfile.Class{c}, nil
}

func digestFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to calculate digest: %w", err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

type job struct {
	class  *classfile.Class
	method *classfile.Method
}

// BuildReport analyzes every selected method of the classes in path, up to
// cfg.Workers at a time. A method that fails to analyze is reported with its
// error; only I/O and class-file errors fail the whole report.
func BuildReport(ctx context.Context, path string, cfg Config, listing bool) (*Report, error) {
	digest, err := digestFile(path)
	if err != nil {
		return nil, err
	}
	classes, err := loadClasses(path)
	if err != nil {
		return nil, err
	}

	var jobs []job
	for _, c := range classes {
		for _, m := range c.Methods {
			if !cfg.wants(c.Name, m.Name) {
				continue
			}
			jobs = append(jobs, job{class: c, method: m})
		}
	}
	slog.Debug("Analyzing", "path", path, "classes", len(classes), "methods", len(jobs), "workers", cfg.workers())

	chain := analysis.NewDetectorChain(detectors.NewArgNames(cfg.Detect...))
	reports := make([]MethodReport, len(jobs))
	analyzed := make([]bool, len(jobs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.workers())
	for i, j := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			reports[i], analyzed[i] = analyzeMethod(j, chain, listing)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	kept := reports[:0]
	for i, mr := range reports {
		if analyzed[i] {
			kept = append(kept, mr)
		}
	}

	return &Report{
		Path:    path,
		Digest:  digest,
		Classes: len(classes),
		Methods: kept,
	}, nil
}

// analyzeMethod reports false for methods without code.
func analyzeMethod(j job, chain analysis.Detector, listing bool) (MethodReport, bool) {
	mr := MethodReport{
		Class:      j.class.Name,
		Name:       j.method.Name,
		Descriptor: j.method.Descriptor,
		Varargs:    j.method.Varargs(),
	}
	fail := func(err error) (MethodReport, bool) {
		slog.Debug("Analysis failed", "method", mr.Title(), "error", err)
		mr.Error = err.Error()
		return mr, true
	}

	m, err := analysis.NewMethod(j.class, j.method)
	if errors.Is(err, analysis.ErrNoCode) {
		return mr, false
	}
	if err != nil {
		return fail(err)
	}
	frames, err := analysis.Analyze(m)
	if err != nil {
		return fail(err)
	}
	mr.Instructions = frames.Len()
	mr.Reachable = len(frames.Reachable())

	findings, err := analysis.Findings(frames)
	if err != nil {
		return fail(err)
	}
	mr.Calls = chain.Detect(findings)
	if listing {
		mr.Listing = analysis.Listing(frames)
	}
	return mr, true
}
