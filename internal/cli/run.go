// Package cli — run.go implements the "kakao-skill-sanity run" command.
//
// The run command launches an arbitrary entry-point program with PORT
// injected into its environment. Two modes are supported:
//
//   - local (default): the program is exec'd as a child process with
//     stdio passed through, and its exit code becomes the CLI's exit code
//   - container (--image): the program runs inside a Docker container
//     created with the skill.* label set, so "ps" and "stop" can manage
//     it afterwards
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sangho-coder/kakao-skill-sanity/internal/docker"
	"github.com/sangho-coder/kakao-skill-sanity/internal/launcher"
	"github.com/sangho-coder/kakao-skill-sanity/internal/model"
	"github.com/sangho-coder/kakao-skill-sanity/internal/port"
)

// runCmdFlags holds the flag values for the run command.
type runCmdFlags struct {
	// image selects container mode: the entry point runs inside a
	// container created from this Docker image instead of as a local
	// child process.
	image string

	// name is the launch name used for the container and its labels.
	// Required in container mode; unused in local mode.
	name string

	// hostPort is the host port published for the container port in
	// container mode. Zero means "same as the container port".
	hostPort int
}

// NewRunCommand creates the "run" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewRunCommand() *cobra.Command {
	flags := &runCmdFlags{}

	cmd := &cobra.Command{
		Use:   "run [flags] [entrypoint [args...]]",
		Short: "Launch an entry-point program with PORT injected",
		Long: `Launch an entry-point program with the resolved port exported as PORT.

If PORT is unset in the environment, port 8080 is used. The program's
standard streams are passed through untouched and its exit code becomes
this command's exit code.

With --image, the entry point runs inside a Docker container instead.
The container publishes the port on the host and carries labels that let
"ps" and "stop" manage it later. When no entry point is given in
container mode, the image's default command is used.

Examples:
  kakao-skill-sanity run gunicorn app:app
  PORT=5000 kakao-skill-sanity run python app.py
  kakao-skill-sanity run --image myapp:latest --name staging-bot
  kakao-skill-sanity run --image python:3.12-slim --name dev --host-port 18080 python app.py`,

		Args: cobra.ArbitraryArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd.Context(), flags, args)
		},
	}

	cmd.Flags().StringVar(&flags.image, "image", "",
		"Run the entry point in a container created from this image")
	cmd.Flags().StringVar(&flags.name, "name", "",
		"Launch name for the container (required with --image)")
	cmd.Flags().IntVar(&flags.hostPort, "host-port", 0,
		"Host port to publish in container mode (default: same as PORT)")

	return cmd
}

// runRun dispatches between local and container mode.
func runRun(ctx context.Context, flags *runCmdFlags, args []string) error {
	// PORT is optional for this command; unset falls back to the default.
	listenPort, err := port.Resolve(false)
	if err != nil {
		return err
	}

	if flags.image != "" {
		return runInContainer(ctx, flags, args, listenPort)
	}
	return runLocal(ctx, args, listenPort)
}

// runLocal executes the entry point as a local child process and exits
// the CLI with the program's own exit code.
func runLocal(ctx context.Context, args []string, listenPort int) error {
	if len(args) == 0 {
		return model.NewCLIError(model.ExitConfigError,
			"no entry point specified: pass a program to run, or use --image")
	}

	opts := launcher.Options{
		Entrypoint: args[0],
		Args:       args[1:],
		Port:       listenPort,
	}

	VerboseLog("Launching %q with PORT=%d", opts.Entrypoint, listenPort)

	code, err := launcher.Run(ctx, opts)
	if err != nil {
		return err
	}
	if code != 0 {
		// The program ran and exited non-zero. Its code is the result —
		// no extra error message, the program already wrote its own
		// output to the passed-through streams.
		os.Exit(code)
	}
	return nil
}

// runInContainer creates and starts a labeled container for the launch.
func runInContainer(ctx context.Context, flags *runCmdFlags, args []string, listenPort int) error {
	if flags.name == "" {
		return model.NewCLIError(model.ExitConfigError,
			"--name is required with --image")
	}
	if err := model.ValidateName(flags.name); err != nil {
		return model.WrapCLIError(model.ExitConfigError,
			fmt.Sprintf("invalid launch name %q", flags.name), err)
	}

	scanner := port.NewScanner()
	hostPort := flags.hostPort
	if hostPort != 0 {
		// An explicitly requested host port is taken at face value:
		// fail before touching Docker if it is already in use.
		if err := scanner.EnsureAvailable(hostPort); err != nil {
			return err
		}
	} else {
		// No host port requested — prefer the container port, walk
		// upward if it is taken.
		free, err := scanner.FindAvailable(listenPort, listenPort+100, "tcp")
		if err != nil {
			return model.WrapCLIError(model.ExitPortUnavailable,
				"no free host port to publish", err)
		}
		hostPort = free
		if hostPort != listenPort {
			VerboseLog("Host port %d is in use, publishing on %d instead", listenPort, hostPort)
		}
	}

	cli, err := docker.NewClient()
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	if err := cli.Ping(ctx); err != nil {
		return err
	}
	VerboseLog("Connected to Docker daemon")

	// Rejoin the entry point into a single string for the label and the
	// container command. Matches the whitespace-split convention
	// CreateAndStart applies. Empty means "use the image default".
	entrypoint := strings.Join(args, " ")

	info := &model.LaunchInfo{
		Name:       flags.name,
		Variant:    model.VariantEntrypoint,
		Image:      flags.image,
		Entrypoint: entrypoint,
		Port:       listenPort,
		HostPort:   hostPort,
		CreatedAt:  time.Now(),
	}

	containerID, err := docker.CreateAndStart(ctx, cli, info)
	if err != nil {
		return err
	}

	printRunResult(info, containerID)
	return nil
}

// printRunResult outputs the container-mode result in text or JSON format.
func printRunResult(info *model.LaunchInfo, containerID string) {
	if IsJSONOutput() {
		result := map[string]interface{}{
			"name":        info.Name,
			"image":       info.Image,
			"containerId": containerID,
			"port":        info.Port,
			"hostPort":    info.HostPort,
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
		return
	}

	fmt.Printf("Started launch %q from image %s (container %.12s)\n",
		info.Name, info.Image, containerID)
	fmt.Printf("Listening on container port %d, published on host port %d\n",
		info.Port, info.HostPort)
}
