// Package cmd implements the stackscope command line.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	pathpkg "path/filepath"
	"runtime/pprof"

	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"stackscope/internal/analysis"
	"stackscope/internal/stackscope/log"
	"stackscope/internal/stackscope/styles"
)

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (default ./stackscope.toml)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Debug")
	rootCmd.PersistentFlags().String("log-file", "", "Write logs to file instead of stderr")
	rootCmd.PersistentFlags().StringSliceP("method", "m", nil, "Only analyze these methods (name or Class.name)")
	rootCmd.PersistentFlags().StringSlice("detect", nil, "Annotate calls to these methods with argument names")
	rootCmd.PersistentFlags().IntP("workers", "w", 0, "Methods analyzed in parallel (0: one per CPU)")

	rootCmd.Flags().BoolP("help", "h", false, "Help")
	rootCmd.Flags().BoolP("no-tui", "n", false, "Show summary without TUI")
	rootCmd.Flags().BoolP("full", "f", false, "Show the annotated listing of every method (use with --no-tui)")
	rootCmd.Flags().BoolP("json", "j", false, "Output the report as JSON")
	rootCmd.Flags().BoolP("yaml", "y", false, "Output the report as YAML")
	rootCmd.Flags().String("cpuprofile", "", "Write CPU profile to file")
	rootCmd.Flags().String("memprofile", "", "Write memory profile to file")

	rootCmd.AddCommand(runCmd)
}

// setup loads the config, applies the command line over it and installs
// the loggers.
func setup(cmd *cobra.Command) (Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := LoadConfig(path)
	if err != nil {
		return Config{}, err
	}
	cfg.applyFlags(cmd)
	if cfg.NoColor {
		os.Setenv("STACKSCOPE_NO_COLOR", "1")
	}
	if cfg.Debug && os.Getenv("STACKSCOPE_LOG_LEVEL") == "" {
		os.Setenv("STACKSCOPE_LOG_LEVEL", "debug")
	}
	if err := log.Setup(cfg.LogFile, cfg.Debug); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// teardown closes the log files opened while the command ran.
func teardown() {
	if err := analysis.CloseDebugLog(); err != nil {
		slog.Warn("Failed to close debug log", "error", err)
	}
	if err := log.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "could not close log file: %v\n", err)
	}
}

func resolveInput(file string) (string, error) {
	absPath, err := pathpkg.Abs(file)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	if _, err := os.Stat(absPath); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("file not found: %s", file)
		}
		return "", fmt.Errorf("cannot access file: %w", err)
	}
	return absPath, nil
}

var rootCmd = &cobra.Command{
	Use:   "stackscope [file]",
	Short: "Symbolic operand-stack analysis of JVM bytecode",
	Long: `Stackscope walks the bytecode of every method in a class file or jar,
simulating the operand stack along each reachable path. Method calls are
reported with the local variables passed as their arguments, variadic
arrays unpacked.`,
	Example: `
# Browse a jar interactively
stackscope app.jar

# Annotated calls to format, as JSON
stackscope --json --detect format app.jar

# Listing of one method without the TUI
stackscope -n -f -m com.example.Caller.run Caller.class
  `,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cpuprofile, _ := cmd.Flags().GetString("cpuprofile")
		if cpuprofile != "" {
			f, err := os.Create(cpuprofile)
			if err != nil {
				return fmt.Errorf("could not create CPU profile: %w", err)
			}
			defer f.Close()
			if err := pprof.StartCPUProfile(f); err != nil {
				return fmt.Errorf("could not start CPU profile: %w", err)
			}
			defer pprof.StopCPUProfile()
		}

		memprofile, _ := cmd.Flags().GetString("memprofile")
		if memprofile != "" {
			defer func() {
				f, err := os.Create(memprofile)
				if err != nil {
					fmt.Fprintf(os.Stderr, "could not create memory profile: %v\n", err)
					return
				}
				defer f.Close()
				if err := pprof.WriteHeapProfile(f); err != nil {
					fmt.Fprintf(os.Stderr, "could not write memory profile: %v\n", err)
				}
			}()
		}

		cfg, err := setup(cmd)
		if err != nil {
			return err
		}
		defer teardown()

		absPath, err := resolveInput(args[0])
		if err != nil {
			return err
		}

		noTUI, _ := cmd.Flags().GetBool("no-tui")
		full, _ := cmd.Flags().GetBool("full")
		jsonOutput, _ := cmd.Flags().GetBool("json")
		yamlOutput, _ := cmd.Flags().GetBool("yaml")
		if jsonOutput && yamlOutput {
			return fmt.Errorf("--json and --yaml are mutually exclusive")
		}

		// --full implies --no-tui, and so does a pipe
		if full || !term.IsTerminal(os.Stdout.Fd()) {
			noTUI = true
		}
		if noTUI {
			os.Setenv("STACKSCOPE_NO_COLOR", "1")
		}

		out := cmd.OutOrStdout()
		switch {
		case jsonOutput, yamlOutput:
			r, err := BuildReport(cmd.Context(), absPath, cfg, full)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(out, r)
			}
			return writeYAML(out, r)

		case noTUI:
			r, err := BuildReport(cmd.Context(), absPath, cfg, full)
			if err != nil {
				return err
			}
			if term.IsTerminal(os.Stdout.Fd()) {
				fmt.Fprint(out, styles.Render(summaryMarkdown(r, full), 100))
			} else {
				writePlain(out, r, full)
			}
			return nil
		}

		program := tea.NewProgram(
			newModel(cmd.Context(), absPath, cfg),
			tea.WithAltScreen(),
			tea.WithContext(cmd.Context()),
		)
		if _, err := program.Run(); err != nil {
			slog.Error("TUI run error", "error", err)
			return fmt.Errorf("TUI error: %w", err)
		}
		return nil
	},
}

// Execute runs the root command. Fang's rendering is skipped for pipes and
// non-interactive runs.
func Execute() {
	plain := false
	for _, arg := range os.Args[1:] {
		switch arg {
		case "--no-tui", "-n", "--full", "-f", "--json", "-j", "--yaml", "-y":
			plain = true
		}
	}
	if !plain && !term.IsTerminal(os.Stdout.Fd()) {
		plain = true
	}

	if plain {
		if err := rootCmd.Execute(); err != nil {
			os.Exit(1)
		}
		return
	}
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}
