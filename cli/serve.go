package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/georgepadayatti/zkpdf/tools"
)

// ServeCommand implements the 'serve' command. Logs must not go to
// stdout, which carries the protocol.
func ServeCommand(args []string) error {
	fs := newFlagSet("serve", "[options]")
	if err := parse(fs, args, 0); err != nil {
		return err
	}

	e, err := setup(fs)
	if err != nil {
		return err
	}
	defer e.Close()
	if e.cfg.Logging.Output == "stdout" {
		e.logger.Warn("log output stdout conflicts with the stdio transport, logging to stderr")
		e.cfg.Logging.Output = "stderr"
		logger, closer, err := e.cfg.Logging.NewLogger()
		if err != nil {
			return err
		}
		e.logger, e.closer = logger, closer
	}

	server, err := tools.NewServer(e.cfg, e.logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return server.Serve(ctx, stdin, stdout)
}
