// Package cli — static.go implements the "kakao-skill-sanity static" command.
//
// The static command serves the files of a directory over HTTP with no
// concurrency: one request is handled at a time, in arrival order. It is
// the debugging mode for poking at a deployment's files with curl, not a
// production server.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sangho-coder/kakao-skill-sanity/internal/model"
	"github.com/sangho-coder/kakao-skill-sanity/internal/port"
	"github.com/sangho-coder/kakao-skill-sanity/internal/static"
)

// staticFlags holds the flag values for the static command.
type staticFlags struct {
	// dir is the directory served as the document root.
	// Defaults to the current working directory.
	dir string
}

// NewStaticCommand creates the "static" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewStaticCommand() *cobra.Command {
	flags := &staticFlags{}

	cmd := &cobra.Command{
		Use:   "static",
		Short: "Serve a directory over HTTP, one request at a time",
		Long: `Serve the files of a directory over HTTP.

The server binds to the port given by the PORT environment variable,
falling back to 8080 when PORT is unset. Existing files are returned
with status 200, missing paths with 404. Requests are handled strictly
one at a time — a slow client stalls everyone behind it. This mode is
for debugging, not production traffic.

Examples:
  kakao-skill-sanity static
  PORT=9000 kakao-skill-sanity static --dir ./public`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatic(flags)
		},
	}

	cmd.Flags().StringVar(&flags.dir, "dir", "",
		"Directory to serve (default: current directory)")

	return cmd
}

// runStatic resolves the port and document root, then blocks in the
// file server's serve loop until a termination signal arrives.
func runStatic(flags *staticFlags) error {
	// PORT is optional for this command; unset falls back to the default.
	listenPort, err := port.Resolve(false)
	if err != nil {
		return err
	}

	root := flags.dir
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return model.WrapCLIError(model.ExitGeneralError,
				"failed to determine current directory", err)
		}
		root = cwd
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return model.NewCLIError(model.ExitConfigError,
			"document root "+root+" is not a directory")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	VerboseLog("Serving %s on port %d", root, listenPort)

	srv := static.New(root, listenPort, logger)
	return srv.Run(ctx)
}
