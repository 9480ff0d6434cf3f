package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"
)

// Build variables - set by ldflags during build.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:], afero.NewOsFs(), os.Stderr))
}

// run parses args, loads the configuration and performs one analyzer pass.
// It returns the process exit code.
func run(args []string, fs afero.Fs, stderr io.Writer) int {
	var configPath string
	var showVersion bool

	flags := pflag.NewFlagSet("loglatency", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&configPath, "config", "", "config file (JSON, INI or YAML); defaults are used when empty")
	flags.BoolVar(&showVersion, "version", false, "print version information")
	if err := flags.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return exitOK
		}
		return exitUsage
	}

	if showVersion {
		fmt.Fprintf(stderr, "loglatency - nginx latency report\n")
		fmt.Fprintf(stderr, "  Version:    %s\n", version)
		fmt.Fprintf(stderr, "  Commit:     %s\n", commit)
		fmt.Fprintf(stderr, "  Built:      %s\n", buildTime)
		fmt.Fprintf(stderr, "  Go version: %s\n", goVersion)
		return exitOK
	}

	cfg, used, err := loadConfig(fs, configPath)
	if err != nil {
		return configFailure(stderr, err)
	}

	return analyze(fs, cfg, configPath, used, stderr)
}
