// Package cli — stop.go implements the "kakao-skill-sanity stop" command.
//
// The stop command gracefully stops all containers belonging to a named
// launch, using the same grace period the gateway applies to its own
// shutdown. With --rm the stopped containers are also removed, which
// erases the launch entirely since labels are the only persistence.
package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sangho-coder/kakao-skill-sanity/internal/docker"
	"github.com/sangho-coder/kakao-skill-sanity/internal/model"
)

// stopFlags holds the flag values for the stop command.
type stopFlags struct {
	// remove also removes the containers after stopping them.
	remove bool
}

// NewStopCommand creates the "stop" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewStopCommand() *cobra.Command {
	flags := &stopFlags{}

	cmd := &cobra.Command{
		Use:   "stop <name>",
		Short: "Stop a containerized launch",
		Long: `Stop all containers belonging to the named launch.

Each container's main process receives SIGTERM and gets a grace period
to exit before Docker escalates to SIGKILL. Stopped containers are kept
unless --rm is given, so the launch still appears in "ps" output.

Examples:
  kakao-skill-sanity stop staging-bot
  kakao-skill-sanity stop --rm staging-bot`,

		// Exactly one positional argument (launch name) is required.
		Args: cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			return runStop(cmd.Context(), flags, args[0])
		},
	}

	cmd.Flags().BoolVar(&flags.remove, "rm", false,
		"Remove the containers after stopping them")

	return cmd
}

// runStop is the main logic function for the stop command. It finds the
// named launch from container labels and stops each of its containers.
func runStop(ctx context.Context, flags *stopFlags, launchName string) error {
	cli, err := docker.NewClient()
	if err != nil {
		return err // NewClient already returns CLIError with ExitDockerNotRunning
	}
	defer func() { _ = cli.Close() }()

	VerboseLog("Connected to Docker daemon")

	containers, err := findLaunch(ctx, cli, launchName)
	if err != nil {
		return err
	}

	VerboseLog("Found launch %q with %d container(s)", launchName, len(containers))

	for _, c := range containers {
		VerboseLog("Stopping container %s (%.12s)...", c.ContainerName, c.ContainerID)
		if err := docker.StopContainer(ctx, cli, c.ContainerID); err != nil {
			return model.WrapCLIError(model.ExitGeneralError,
				fmt.Sprintf("failed to stop container %q", c.ContainerName), err)
		}

		if flags.remove {
			VerboseLog("Removing container %s...", c.ContainerName)
			if err := docker.RemoveContainer(ctx, cli, c.ContainerID, false); err != nil {
				return model.WrapCLIError(model.ExitGeneralError,
					fmt.Sprintf("failed to remove container %q", c.ContainerName), err)
			}
		}
	}

	printStopResult(launchName, len(containers), flags.remove)
	return nil
}

// printStopResult outputs the stop command result in text or JSON format.
func printStopResult(launchName string, containerCount int, removed bool) {
	action := "stopped"
	if removed {
		action = "removed"
	}

	if IsJSONOutput() {
		result := map[string]interface{}{
			"name":           launchName,
			"action":         action,
			"containerCount": containerCount,
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
		return
	}

	fmt.Printf("%s launch %q (%d container(s))\n",
		capitalize(action), launchName, containerCount)
}

// capitalize upper-cases the first byte of an ASCII word for display.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}

// findLaunch looks up a launch by name from Docker container labels.
// Returns the containers belonging to it, or a CLIError with
// ExitLaunchNotFound when no container carries the name.
func findLaunch(ctx context.Context, cli *docker.Client, launchName string) ([]model.ContainerInfo, error) {
	allContainers, err := docker.ListManagedContainers(ctx, cli)
	if err != nil {
		return nil, err
	}

	groups := docker.GroupByLaunch(allContainers)

	containers, ok := groups[launchName]
	if !ok || len(containers) == 0 {
		return nil, model.NewCLIError(model.ExitLaunchNotFound,
			fmt.Sprintf("launch %q not found", launchName))
	}

	return containers, nil
}
