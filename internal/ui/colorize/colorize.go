// Package colorize highlights analyzer listings for the terminal.
package colorize

import (
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/styles"
)

// Listing lines look like
//
//	    14  invokestatic com.example.Fmt.format(I)V ; [count] -> []
//	    17  iload_0 (count)                  ; unreachable
var listingLexer = chroma.MustNewLexer(
	&chroma.Config{
		Name:      "JVM listing",
		Aliases:   []string{"jvm-listing"},
		EnsureNL:  true,
		MimeTypes: []string{"text/x-jvm-listing"},
	},
	func() chroma.Rules {
		return chroma.Rules{
			"root": {
				{Pattern: `^(\s*)(\d+)(\s+)([a-z][a-z0-9_]*)`, Type: chroma.ByGroups(chroma.Text, chroma.NameLabel, chroma.Text, chroma.Keyword)},
				{Pattern: `;[^\n]*`, Type: chroma.Comment},
				{Pattern: `\([^)\n]*\)`, Type: chroma.NameVariable},
				{Pattern: `-?\d+\b`, Type: chroma.LiteralNumberInteger},
				{Pattern: `[A-Za-z_$<][\w$<>]*(?:[./][\w$<>]+)*`, Type: chroma.NameFunction},
				{Pattern: `[\[\]{},]`, Type: chroma.Punctuation},
				{Pattern: `\s+`, Type: chroma.Text},
				{Pattern: `.`, Type: chroma.Text},
			},
		}
	},
)

// Enabled reports whether output may carry ANSI colors. STACKSCOPE_NO_COLOR
// turns them off.
func Enabled() bool {
	return os.Getenv("STACKSCOPE_NO_COLOR") == ""
}

func listingStyle() *chroma.Style {
	for _, name := range []string{"listing-dark", "dracula"} {
		if style := styles.Get(name); style != nil && style.Name == name {
			return style
		}
	}
	return styles.Fallback
}

func terminalFormatter() chroma.Formatter {
	for _, name := range []string{"terminal16m", "terminal256"} {
		if f := formatters.Get(name); f != nil {
			return f
		}
	}
	return formatters.Fallback
}

// Line highlights one listing line. The line is returned unchanged when
// colors are disabled or tokenizing fails.
func Line(line string) string {
	if !Enabled() {
		return line
	}
	it, err := listingLexer.Tokenise(nil, line)
	if err != nil {
		return line
	}
	var b strings.Builder
	if err := terminalFormatter().Format(&b, listingStyle(), it); err != nil {
		return line
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Listing highlights every line and joins them.
func Listing(lines []string) string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = Line(l)
	}
	return strings.Join(out, "\n")
}
