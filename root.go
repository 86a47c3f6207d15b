package main

// Notes on program structure
// --------------------------
//
// taskhttp uses subcommands to invoke specific functionalities of the program.
// Each subcommand is implemented by a function named after the command, in a
// file of the same name (e.g. the "serve" command is implemented by the serve
// function in serve.go).
//
// The usage message for each command is declared by a constant starting with
// the command name and followed by the suffix "Usage". For example, the usage
// message for the "serve" command is declared by the constant serveUsage.
//
// Commands write to the package-level stdout and stderr writers so that tests
// can capture their output.

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/stealthrocket/taskhttp/internal/config"
	"github.com/stealthrocket/taskhttp/internal/print/human"
	"github.com/stealthrocket/taskhttp/internal/print/jsonprint"
	"github.com/stealthrocket/taskhttp/internal/print/textprint"
	"github.com/stealthrocket/taskhttp/internal/print/yamlprint"
	"github.com/stealthrocket/taskhttp/internal/stream"
)

const rootUsage = `taskhttp - HTTP server with one goroutine per connection

   taskhttp accepts HTTP connections and serves each of them on its own
   goroutine. The /tasks endpoint lists every goroutine alive in the server.

Example:

   $ taskhttp serve &
   $ taskhttp tasks
   ID  NAME
   1   main.main
   ...

For a list of commands available, run 'taskhttp help'.`

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// configPath is set by the -c/--config option of commands that accept it.
var configPath human.Path

// root is the taskhttp entrypoint.
func root(ctx context.Context, args ...string) int {
	configPath = ""

	if len(args) == 0 {
		fmt.Fprintln(stdout, rootUsage)
		return 0
	}

	cmd, args := args[0], args[1:]

	var err error
	switch cmd {
	case "config":
		err = configCmd(ctx, args)
	case "describe":
		err = describe(ctx, args)
	case "help", "-h", "--help":
		err = help(ctx, args)
	case "serve":
		err = serve(ctx, args)
	case "tasks":
		err = tasks(ctx, args)
	case "version":
		err = version(ctx, args)
	default:
		err = unknown(ctx, cmd)
	}

	var code exitCode
	var use usage
	switch {
	case err == nil:
		return 0
	case errors.As(err, &code):
		return int(code)
	case errors.As(err, &use):
		fmt.Fprintf(stderr, "%s\n", use)
		return 2
	default:
		fmt.Fprintf(stderr, "ERR: taskhttp %s: %s\n", cmd, err)
		return 1
	}
}

// exitCode is an error type returned from command functions to indicate the
// exit code that should be returned by the program.
type exitCode int

func (e exitCode) Error() string {
	return fmt.Sprintf("exit: %d", e)
}

// usage is an error type returned from command functions to indicate a usage
// error.
//
// Usage errors cause the program to exit with status code 2.
type usage string

func usageError(msg string, args ...any) error {
	return usage(fmt.Sprintf(msg, args...))
}

func (e usage) Error() string {
	return string(e)
}

func setEnum[T ~string](enum *T, typ string, value string, options ...string) error {
	for _, option := range options {
		if option == value {
			*enum = T(option)
			return nil
		}
	}
	return fmt.Errorf("unsupported %s: %q (not one of %s)", typ, value, strings.Join(options, ", "))
}

type outputFormat string

func (o outputFormat) String() string {
	return string(o)
}

func (o *outputFormat) Set(value string) error {
	return setEnum(o, "output format", value, "text", "json", "yaml")
}

// newWriter returns the stream writer printing values in the output format.
// Text output is a table written when the writer is closed.
func newWriter[T any](w io.Writer, output outputFormat, opts ...textprint.TableOption[T]) stream.WriteCloser[T] {
	switch output {
	case "json":
		return jsonprint.NewWriter[T](w)
	case "yaml":
		return yamlprint.NewWriter[T](w)
	default:
		return textprint.NewTableWriter[T](w, opts...)
	}
}

func loadConfig() (*config.Config, error) {
	return config.LoadConfig(configPath)
}

func newFlagSet(cmd, usage string) *flag.FlagSet {
	usage = strings.TrimSpace(usage)
	flagSet := flag.NewFlagSet(cmd, flag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.Usage = func() { fmt.Fprintln(stdout, usage) }
	customVar(flagSet, &configPath, "c", "config")
	return flagSet
}

// parseFlags is a greedy parser which consumes all options known to f and
// returns the remaining arguments.
//
// Asking for help returns exitCode(0) after printing the usage message, other
// parsing errors return exitCode(2).
func parseFlags(f *flag.FlagSet, args []string) ([]string, error) {
	var unknownArgs []string
	for {
		if err := f.Parse(args); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				return nil, exitCode(0)
			}
			return nil, exitCode(2)
		}
		if args = f.Args(); len(args) == 0 {
			return unknownArgs, nil
		}
		i := indexOption(args)
		if i < 0 {
			i = len(args)
		} else if args[i] == "-" {
			i++
		}
		if i == 0 {
			i = 1
		}
		unknownArgs = append(unknownArgs, args[:i]...)
		args = args[i:]
	}
}

func indexOption(args []string) int {
	for i, arg := range args {
		if strings.HasPrefix(arg, "-") {
			return i
		}
	}
	return -1
}

func boolVar(f *flag.FlagSet, dst *bool, name string, alias ...string) {
	f.BoolVar(dst, name, *dst, "")
	for _, name := range alias {
		f.BoolVar(dst, name, *dst, "")
	}
}

func stringVar(f *flag.FlagSet, dst *string, name string, alias ...string) {
	f.StringVar(dst, name, *dst, "")
	for _, name := range alias {
		f.StringVar(dst, name, *dst, "")
	}
}

func intVar(f *flag.FlagSet, dst *int, name string, alias ...string) {
	f.IntVar(dst, name, *dst, "")
	for _, name := range alias {
		f.IntVar(dst, name, *dst, "")
	}
}

func customVar(f *flag.FlagSet, dst flag.Value, name string, alias ...string) {
	f.Var(dst, name, "")
	for _, name := range alias {
		f.Var(dst, name, "")
	}
}
