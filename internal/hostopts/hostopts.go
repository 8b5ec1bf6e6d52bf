// Package hostopts parses the command line into an Options value. It
// intentionally avoids the flag package's "-name value" conventions in
// favour of the original host's "--name=value" argument grammar.
package hostopts

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrHelp is returned by Parse when -h or --help is present; the caller
// is expected to print usage and exit zero rather than treat this as a
// failure.
var ErrHelp = errors.New("hostopts: help requested")

// Options holds every setting the driver needs to construct and run a
// VirtualMachine.
type Options struct {
	BankPaths [4]string
	Turbo     bool
	LogLevel  slog.Level
}

// DefaultBankPaths mirrors the original host's fallback bank images: a
// ZEXALL test ROM in bank 0, empty RAM behind it.
var DefaultBankPaths = [4]string{
	"assets/zexall.rom",
	"assets/bank1.rom",
	"assets/bank2.rom",
	"assets/bank3.rom",
}

// Default returns the options a bare invocation with no flags produces.
func Default() Options {
	return Options{
		BankPaths: DefaultBankPaths,
		LogLevel:  slog.LevelInfo,
	}
}

// Parse interprets argv (excluding argv[0]) into Options. An unknown or
// malformed argument is reported as a ConfigError.
func Parse(argv []string) (Options, error) {
	opts := Default()

	for _, arg := range argv {
		switch {
		case arg == "-h" || arg == "--help":
			return opts, ErrHelp
		case arg == "--turbo":
			opts.Turbo = true
		case arg == "--zexall":
			opts.BankPaths[0] = "assets/zexall.rom"
		case arg == "--basic":
			opts.BankPaths[0] = "assets/basic.rom"
		case arg == "--bank0" || arg == "--bank1" || arg == "--bank2" || arg == "--bank3" || arg == "--log-level":
			// A value flag given without "=value".
			return opts, &ConfigError{Arg: arg}
		case argIs(arg, "--bank0"):
			opts.BankPaths[0] = argVal(arg)
		case argIs(arg, "--bank1"):
			opts.BankPaths[1] = argVal(arg)
		case argIs(arg, "--bank2"):
			opts.BankPaths[2] = argVal(arg)
		case argIs(arg, "--bank3"):
			opts.BankPaths[3] = argVal(arg)
		case argIs(arg, "--log-level"):
			level, err := parseLevel(argVal(arg))
			if err != nil {
				return opts, &ConfigError{Arg: arg}
			}
			opts.LogLevel = level
		default:
			return opts, &ConfigError{Arg: arg}
		}
	}

	return opts, nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("hostopts: unknown log level %q", s)
	}
}

// argIs reports whether argument names flag name, with or without a
// trailing "=value".
func argIs(argument, name string) bool {
	if equ := strings.IndexByte(argument, '='); equ >= 0 {
		return argument[:equ] == name
	}
	return argument == name
}

// argVal extracts the value half of a "--name=value" argument. An
// argument with no '=' yields the empty string.
func argVal(argument string) string {
	if equ := strings.IndexByte(argument, '='); equ >= 0 {
		return argument[equ+1:]
	}
	return ""
}

// ConfigError reports an argument Parse could not interpret.
type ConfigError struct {
	Arg string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("hostopts: invalid argument %q", e.Arg)
}

// Usage returns the help text printed for -h/--help.
func Usage(progName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Usage: %s [OPTIONS...]\n\n", progName)
	b.WriteString("Options:\n\n")
	b.WriteString("  -h, --help                display this help and exit\n\n")
	b.WriteString("  --zexall                  sets bank0 := assets/zexall.rom\n")
	b.WriteString("  --basic                   sets bank0 := assets/basic.rom\n")
	b.WriteString("  --bank0=FILE               specifies ram bank #0 (16kB)\n")
	b.WriteString("  --bank1=FILE               specifies ram bank #1 (16kB)\n")
	b.WriteString("  --bank2=FILE               specifies ram bank #2 (16kB)\n")
	b.WriteString("  --bank3=FILE               specifies ram bank #3 (16kB)\n\n")
	b.WriteString("  --turbo                    run without frame pacing\n")
	b.WriteString("  --log-level=LEVEL          debug, info, warn, or error (default info)\n")
	return b.String()
}
