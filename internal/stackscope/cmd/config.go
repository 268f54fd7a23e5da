package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
)

// DefaultConfigFile is read from the working directory when --config is
// not given.
const DefaultConfigFile = "stackscope.toml"

// Config is the stackscope configuration. Flags override file values.
type Config struct {
	Debug   bool     `toml:"debug" json:"debug" jsonschema:"title=Debug,description=Enable debug logging"`
	LogFile string   `toml:"log_file" json:"logFile,omitempty" jsonschema:"title=Log File,description=Write command logs to this file instead of stderr"`
	Workers int      `toml:"workers" json:"workers,omitempty" jsonschema:"title=Workers,description=Methods analyzed in parallel; 0 means one per CPU,minimum=0"`
	Methods []string `toml:"methods" json:"methods,omitempty" jsonschema:"title=Methods,description=Only analyze these methods; a name or Class.name"`
	Detect  []string `toml:"detect" json:"detect,omitempty" jsonschema:"title=Detect,description=Annotate calls to these methods with argument names; empty means every call"`
	NoColor bool     `toml:"no_color" json:"noColor,omitempty" jsonschema:"title=No Color,description=Disable colored listings"`
}

// LoadConfig reads the TOML file at path. An empty path reads
// DefaultConfigFile if it exists and returns the zero Config otherwise.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		path = DefaultConfigFile
	}

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	if cfg.Workers < 0 {
		return Config{}, fmt.Errorf("config %s: workers must not be negative", path)
	}
	return cfg, nil
}

// applyFlags overrides cfg with the flags set on the command line.
func (c *Config) applyFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("debug") {
		c.Debug, _ = flags.GetBool("debug")
	}
	if flags.Changed("log-file") {
		c.LogFile, _ = flags.GetString("log-file")
	}
	if flags.Changed("workers") {
		c.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("method") {
		c.Methods, _ = flags.GetStringSlice("method")
	}
	if flags.Changed("detect") {
		c.Detect, _ = flags.GetStringSlice("detect")
	}
}

func (c Config) workers() int {
	if c.Workers <= 0 {
		return runtime.NumCPU()
	}
	return c.Workers
}

// wants reports whether a method of class is selected by c.Methods.
func (c Config) wants(class, name string) bool {
	if len(c.Methods) == 0 {
		return true
	}
	for _, sel := range c.Methods {
		if sel == name || sel == class+"."+name {
			return true
		}
	}
	return false
}
