package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"stackscope/internal/ui/colorize"
)

func writeJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return nil
}

func writeYAML(w io.Writer, r *Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return enc.Close()
}

// summaryMarkdown renders the report header and the annotated calls of
// every method. Listings are added when full is set.
func summaryMarkdown(r *Report, full bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# stackscope\n\n```\n; %s\n; %s\n; %d classes, %d methods, %d calls",
		r.Path, r.Digest, r.Classes, len(r.Methods), r.Calls())
	if n := r.Failed(); n > 0 {
		fmt.Fprintf(&b, ", %d failed", n)
	}
	b.WriteString("\n```\n")

	for _, m := range r.Methods {
		if len(m.Calls) == 0 && m.Error == "" && !full {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n\n", escapeMarkdown(m.Title()))
		if m.Error != "" {
			fmt.Fprintf(&b, "> %s\n\n", escapeMarkdown(m.Error))
		}
		for _, c := range m.Calls {
			fmt.Fprintf(&b, "- `%d` %s", c.Offset, escapeMarkdown(c.Target()))
			if c.Comment != "" {
				fmt.Fprintf(&b, " `%s`", strings.ReplaceAll(c.Comment, "`", "'"))
			}
			b.WriteString("\n")
		}
		if full && len(m.Listing) > 0 {
			fmt.Fprintf(&b, "\n```\n%s\n```\n", strings.Join(m.Listing, "\n"))
		}
	}
	return b.String()
}

// writePlain prints the report without markdown rendering, for pipes.
func writePlain(w io.Writer, r *Report, full bool) {
	fmt.Fprintf(w, "; %s\n; %s\n; %d classes, %d methods, %d calls, %d failed\n",
		r.Path, r.Digest, r.Classes, len(r.Methods), r.Calls(), r.Failed())
	for _, m := range r.Methods {
		if len(m.Calls) == 0 && m.Error == "" && !full {
			continue
		}
		fmt.Fprintf(w, "\n%s\n", m.Title())
		if m.Error != "" {
			fmt.Fprintf(w, "  error: %s\n", m.Error)
		}
		if full {
			fmt.Fprintln(w, colorize.Listing(m.Listing))
			continue
		}
		for _, c := range m.Calls {
			line := c.Target()
			if c.Comment != "" {
				line = c.Comment
			}
			fmt.Fprintf(w, "%6d  %s\n", c.Offset, line)
		}
	}
}

func escapeMarkdown(s string) string {
	return strings.NewReplacer("<", "\\<", ">", "\\>", "_", "\\_", "*", "\\*").Replace(s)
}
