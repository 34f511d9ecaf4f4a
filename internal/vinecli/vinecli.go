// Package vinecli parses command-line arguments for the vine binary,
// following the teacher's internal/cli.Parse idiom: a flag.FlagSet with a
// custom Usage, returning a populated Config, a "should exit cleanly"
// flag, and an *ExitError carrying a process exit code.
package vinecli

import (
	"flag"
	"fmt"
	"io"
	"strings"
)

// ExitError carries the process exit code a caller should use after a
// parse failure.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string { return e.Message }

// Config is the fully-validated result of parsing the command line.
type Config struct {
	HCLPath    string
	Workers    int
	LogLevel   string
	LogFormat  string
	EventsAddr string
}

// Parse processes args. It returns a populated Config, a boolean
// indicating the program should exit cleanly (e.g. -h was given), or an
// *ExitError.
func Parse(args []string, output io.Writer) (*Config, bool, error) {
	flagSet := flag.NewFlagSet("vine", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
vine - a two-level dependency-graph executor.

Usage:
  vine [options]

Without -hcl, runs the built-in demonstration graph.

Options:
`)
		flagSet.PrintDefaults()
	}

	hclFlag := flagSet.String("hcl", "", "Path to an HCL file declaring stages and machines. If empty, runs the built-in demo.")
	workersFlag := flagSet.Int("workers", 0, "Upper bound on the worker pool size; the pool has min(runtime.NumCPU(), this) workers. 0 means runtime.NumCPU(), bounded by VINE_MAX_THREADS if set.")
	logLevelFlag := flagSet.String("log-level", "info", "Log level: 'debug', 'info', 'warn', or 'error'.")
	logFormatFlag := flagSet.String("log-format", "text", "Log format: 'text' or 'json'.")
	eventsAddrFlag := flagSet.String("events-addr", "", "Address to serve the websocket event stream on, e.g. ':8089'. Empty disables it.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	if *workersFlag < 0 {
		return nil, false, &ExitError{Code: 2, Message: "-workers must be >= 0"}
	}

	return &Config{
		HCLPath:    *hclFlag,
		Workers:    *workersFlag,
		LogLevel:   logLevel,
		LogFormat:  logFormat,
		EventsAddr: *eventsAddrFlag,
	}, false, nil
}
