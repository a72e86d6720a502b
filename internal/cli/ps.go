// Package cli — ps.go implements the "kakao-skill-sanity ps" command.
//
// The ps command displays all containerized launches by querying Docker
// for containers with the "skill.managed-by=kakao-skill-sanity" label.
// Containers are grouped by launch name and presented as a text table or
// JSON array, depending on the --json flag.
//
// An optional --running flag restricts output to launches with at least
// one running container.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/sangho-coder/kakao-skill-sanity/internal/docker"
	"github.com/sangho-coder/kakao-skill-sanity/internal/model"
)

// psFlags holds the flag values for the ps command.
type psFlags struct {
	// running restricts output to launches that are currently running.
	running bool
}

// NewPsCommand creates the "ps" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewPsCommand() *cobra.Command {
	flags := &psFlags{}

	cmd := &cobra.Command{
		Use:   "ps",
		Short: "List containerized launches",
		Long: `List all containerized launches and their status.

Each launch is shown with its name, mode, image, port mapping, and
whether any of its containers are running. State is read entirely from
Docker container labels — there is no local state file.

Examples:
  kakao-skill-sanity ps
  kakao-skill-sanity ps --running
  kakao-skill-sanity ps --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runPs(cmd.Context(), flags)
		},
	}

	cmd.Flags().BoolVar(&flags.running, "running", false,
		"Show only launches with a running container")

	return cmd
}

// runPs is the main logic function for the ps command. It connects to
// Docker, discovers launches from container labels, applies the filter,
// and outputs results in the appropriate format.
func runPs(ctx context.Context, flags *psFlags) error {
	cli, err := docker.NewClient()
	if err != nil {
		return err // NewClient already returns CLIError with ExitDockerNotRunning
	}
	defer func() { _ = cli.Close() }()

	VerboseLog("Connected to Docker daemon")

	containers, err := docker.ListManagedContainers(ctx, cli)
	if err != nil {
		return err // ListManagedContainers already returns CLIError
	}
	VerboseLog("Found %d managed containers", len(containers))

	groups := docker.GroupByLaunch(containers)

	var launches []*model.LaunchInfo
	for launchName, containerGroup := range groups {
		info, err := docker.BuildLaunchInfo(launchName, containerGroup)
		if err != nil {
			// A single corrupted launch should not prevent listing
			// the others.
			VerboseLog("Warning: skipping launch %q: %v", launchName, err)
			continue
		}
		launches = append(launches, info)
	}

	// Sort alphabetically by name for stable output.
	sort.Slice(launches, func(i, j int) bool {
		return launches[i].Name < launches[j].Name
	})

	if flags.running {
		filtered := make([]*model.LaunchInfo, 0, len(launches))
		for _, l := range launches {
			if l.Running() {
				filtered = append(filtered, l)
			}
		}
		launches = filtered
	}

	printPsResult(launches)
	return nil
}

// printPsResult outputs the launch list in text or JSON format,
// depending on the global --json flag.
func printPsResult(launches []*model.LaunchInfo) {
	if IsJSONOutput() {
		printPsResultJSON(launches)
	} else {
		printPsResultText(launches)
	}
}

// psLaunchJSON is the JSON output structure for a single launch.
type psLaunchJSON struct {
	Name       string `json:"name"`
	Variant    string `json:"variant"`
	Image      string `json:"image"`
	Entrypoint string `json:"entrypoint,omitempty"`
	Port       int    `json:"port"`
	HostPort   int    `json:"hostPort"`
	Running    bool   `json:"running"`
	Containers int    `json:"containers"`
	CreatedAt  string `json:"createdAt"`
}

// printPsResultJSON outputs the launch list as structured JSON.
// The top-level key is "launches" containing an array of launch objects.
func printPsResultJSON(launches []*model.LaunchInfo) {
	type resultJSON struct {
		Launches []psLaunchJSON `json:"launches"`
	}

	result := resultJSON{
		// Use an empty slice instead of nil so JSON output shows []
		// rather than null when no launches are found.
		Launches: make([]psLaunchJSON, 0, len(launches)),
	}

	for _, l := range launches {
		result.Launches = append(result.Launches, psLaunchJSON{
			Name:       l.Name,
			Variant:    l.Variant.String(),
			Image:      l.Image,
			Entrypoint: l.Entrypoint,
			Port:       l.Port,
			HostPort:   l.HostPort,
			Running:    l.Running(),
			Containers: len(l.Containers),
			CreatedAt:  l.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	data, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(data))
}

// printPsResultText outputs the launch list as a human-readable text
// table with aligned columns.
//
// The table format is:
//
//	NAME           MODE         IMAGE              PORTS          STATUS
//	staging-bot    entrypoint   myapp:latest       8080→18080     running
//	old-demo       static       nginx:alpine       8080→8080      stopped
func printPsResultText(launches []*model.LaunchInfo) {
	if len(launches) == 0 {
		fmt.Println("No launches found.")
		return
	}

	fmt.Printf("%-20s %-12s %-24s %-14s %s\n",
		"NAME", "MODE", "IMAGE", "PORTS", "STATUS")

	for _, l := range launches {
		status := "stopped"
		if l.Running() {
			status = "running"
		}

		fmt.Printf("%-20s %-12s %-24s %-14s %s\n",
			l.Name,
			l.Variant.String(),
			l.Image,
			FormatPortMapping(l.Port, l.HostPort),
			status,
		)
	}
}

// FormatPortMapping renders a container→host port pair for table output.
// Identical ports collapse to a single number.
//
// Exported for testing purposes (tested in ps_test.go).
//
// Example:
//
//	FormatPortMapping(8080, 18080) → "8080→18080"
//	FormatPortMapping(8080, 8080)  → "8080"
func FormatPortMapping(containerPort, hostPort int) string {
	if containerPort == hostPort {
		return fmt.Sprintf("%d", containerPort)
	}
	return fmt.Sprintf("%d→%d", containerPort, hostPort)
}
