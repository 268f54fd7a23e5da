package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [file] [method...]",
	Short: "Print the annotated calls of some methods",
	Long: `Analyze the named methods and print one line per call:
the caller, the call offset and the call with its argument names.
Without method names every method is analyzed.`,
	Example: `
# Calls made by Caller.run
stackscope run Caller.class run

# Only calls to format, anywhere in a jar
stackscope run --detect format app.jar
  `,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup(cmd)
		if err != nil {
			return err
		}
		defer teardown()
		if len(args) > 1 {
			cfg.Methods = append(cfg.Methods, args[1:]...)
		}

		absPath, err := resolveInput(args[0])
		if err != nil {
			return err
		}
		slog.Info("Running analysis", "file", absPath, "methods", cfg.Methods)

		r, err := BuildReport(cmd.Context(), absPath, cfg, false)
		if err != nil {
			return err
		}
		detecting := len(cfg.Detect) > 0
		out := cmd.OutOrStdout()
		for _, m := range r.Methods {
			if m.Error != "" {
				fmt.Fprintf(out, "%s: error: %s\n", m.Title(), m.Error)
				continue
			}
			for _, c := range m.Calls {
				if detecting && c.Comment == "" {
					continue
				}
				call := c.Comment
				if call == "" {
					call = c.Target()
				}
				fmt.Fprintf(out, "%s\t%d\t%s\n", m.Title(), c.Offset, call)
			}
		}
		return nil
	},
}
