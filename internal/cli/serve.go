// Package cli — serve.go implements the "kakao-skill-sanity serve" command.
//
// The serve command runs the managed webhook gateway: the HTTP server that
// answers Kakao skill requests by relaying utterances to the Chatling
// upstream. It is the production serving mode and the only mode that
// treats an unset PORT as a fatal configuration error.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sangho-coder/kakao-skill-sanity/internal/config"
	"github.com/sangho-coder/kakao-skill-sanity/internal/gateway"
	"github.com/sangho-coder/kakao-skill-sanity/internal/model"
	"github.com/sangho-coder/kakao-skill-sanity/internal/port"
)

// serveFlags holds the flag values for the serve command.
type serveFlags struct {
	// configDir is the directory searched for a skill.yaml / skill.jsonc
	// configuration file. Defaults to the current working directory.
	configDir string
}

// NewServeCommand creates the "serve" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewServeCommand() *cobra.Command {
	flags := &serveFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the managed Kakao skill webhook gateway",
		Long: `Run the managed webhook gateway that answers Kakao skill requests.

The gateway binds to the port given by the PORT environment variable.
PORT is required for this command — an unset or malformed value is a
fatal configuration error, because in the target deployment the platform
always provides it.

Upstream settings (API key, chatbot URL, model id) come from the
environment and an optional skill.yaml / skill.jsonc file.

Examples:
  PORT=8080 kakao-skill-sanity serve
  PORT=8080 CHATLING_API_KEY=... CHATLING_MODEL_ID=43144 kakao-skill-sanity serve`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(flags)
		},
	}

	cmd.Flags().StringVar(&flags.configDir, "config-dir", ".",
		"Directory searched for a skill.yaml / skill.jsonc file")

	return cmd
}

// runServe is the main logic function for the serve command. It resolves
// the port, loads configuration, wires up structured logging, and blocks
// in the gateway's serve loop until a termination signal arrives.
func runServe(flags *serveFlags) error {
	// PORT is required in gateway mode. Resolve fails with a config
	// error on unset or malformed values.
	listenPort, err := port.Resolve(true)
	if err != nil {
		return err
	}

	settings, err := config.Load(flags.configDir)
	if err != nil {
		return model.WrapCLIError(model.ExitConfigError,
			"failed to load configuration", err)
	}

	VerboseLog("Resolved port %d, upstream %s", listenPort, settings.Upstream.URL)

	// Two JSON log streams, matching the split a process supervisor
	// expects: access records on stdout, application logs on stderr.
	accessLogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	// SIGINT/SIGTERM cancel the context, which triggers the gateway's
	// graceful shutdown path.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := gateway.New(settings, listenPort, accessLogger, logger)
	return srv.Run(ctx)
}
