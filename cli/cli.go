// Package cli implements the zkpdf command-line interface.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/georgepadayatti/zkpdf/claim"
	"github.com/georgepadayatti/zkpdf/config"
)

// Version information
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// Exit codes. ExitNegative reports a well-formed result that failed: an
// invalid signature or a claim that did not hold.
const (
	ExitOK       = 0
	ExitError    = 1
	ExitNegative = 2
)

// osExit is a variable for os.Exit to allow testing
var osExit = os.Exit

// Output streams, replaced in tests.
var (
	stdin  io.Reader = os.Stdin
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// errNegative is returned by commands whose result was negative.
var errNegative = errors.New("negative result")

type command struct {
	name    string
	summary string
	run     func(args []string) error
}

func commands() []command {
	return []command{
		{"extract", "Extract the text of a PDF file", ExtractCommand},
		{"verify", "Verify the digital signature of a PDF file", VerifyCommand},
		{"claim", "Check that text occurs at an offset of a signed page", ClaimCommand},
		{"commit", "Derive the public commitment of a text claim", CommitCommand},
		{"sign", "Sign a PDF file with an RSA certificate", SignCommand},
		{"serve", "Serve the zkpdf tools over MCP on stdio", ServeCommand},
		{"version", "Show version information", VersionCommand},
	}
}

// Run executes the CLI with the given arguments.
// This is the main entry point for the CLI.
func Run(args []string) {
	if len(args) < 2 {
		Usage()
		osExit(ExitError)
		return
	}

	name := args[1]
	switch name {
	case "help", "-h", "--help":
		Usage()
		return
	}
	for _, cmd := range commands() {
		if cmd.name != name {
			continue
		}
		err := cmd.run(args[2:])
		switch {
		case err == nil:
		case errors.Is(err, errNegative):
			osExit(ExitNegative)
		case errors.Is(err, pflag.ErrHelp):
		default:
			fmt.Fprintf(stderr, "Error: %v\n", err)
			osExit(ExitError)
		}
		return
	}
	fmt.Fprintf(stderr, "Unknown command: %s\n\n", name)
	Usage()
	osExit(ExitError)
}

// Usage prints the CLI usage information.
func Usage() {
	fmt.Fprintf(stderr, "zkpdf - signed PDF text claims\n\n")
	fmt.Fprintf(stderr, "Usage: zkpdf <command> [options] <args>\n\n")
	fmt.Fprintln(stderr, "Commands:")
	for _, cmd := range commands() {
		fmt.Fprintf(stderr, "  %-8s %s\n", cmd.name, cmd.summary)
	}
	fmt.Fprintln(stderr, "  help     Show this help message")
	fmt.Fprintln(stderr, "")
	fmt.Fprintln(stderr, "Use 'zkpdf <command> -h' for command-specific help")
	fmt.Fprintln(stderr, "")
	fmt.Fprintln(stderr, "Examples:")
	fmt.Fprintln(stderr, "  zkpdf extract --page 0 document.pdf")
	fmt.Fprintln(stderr, "  zkpdf claim --page 0 --substring \"Total: 100\" --offset 42 document.pdf")
	fmt.Fprintln(stderr, "  zkpdf sign --p12 signer.p12 input.pdf output.pdf")
}

// VersionCommand prints version information.
func VersionCommand(args []string) error {
	fmt.Fprintf(stdout, "zkpdf version %s\n", Version)
	fmt.Fprintf(stdout, "Build time: %s\n", BuildTime)
	return nil
}

// newFlagSet creates a command flag set carrying the configuration flags.
func newFlagSet(name, usage string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	config.RegisterFlags(fs)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: zkpdf %s %s\n\nOptions:\n", name, usage)
		fs.PrintDefaults()
	}
	return fs
}

// env is the configuration and logger of one command invocation.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	closer io.Closer
}

func setup(fs *pflag.FlagSet) (*env, error) {
	cfg, err := config.Load(fs)
	if err != nil {
		return nil, err
	}
	cfg.Server.Version = Version
	logger, closer, err := cfg.Logging.NewLogger()
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: logger, closer: closer}, nil
}

func (e *env) Close() error {
	return e.closer.Close()
}

func (e *env) session(data []byte) *claim.Session {
	return claim.NewSession(data,
		claim.WithLimits(e.cfg.Limits),
		claim.WithLogger(e.logger))
}

// parse parses args and checks the number of positional arguments.
func parse(fs *pflag.FlagSet, args []string, positional int) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != positional {
		fs.Usage()
		return fmt.Errorf("%s: expected %d argument(s), got %d", fs.Name(), positional, fs.NArg())
	}
	return nil
}

// readInput reads a file, or standard input for "-".
func readInput(path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read standard input: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	return data, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// writeJSON writes v to stdout, indented when stdout is a terminal or
// pretty is set.
func writeJSON(v any, pretty bool) error {
	enc := json.NewEncoder(stdout)
	if pretty || isTerminal(stdout) {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
