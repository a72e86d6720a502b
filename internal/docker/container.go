// container.go implements Docker container lifecycle operations for the
// containerized launch mode. It provides functions for creating, listing,
// stopping, and removing containers that carry the skill.* label set.
//
// All managed containers are identified by the "skill.managed-by" label,
// which enables filtering them from unrelated containers on the same host.
package docker

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	// types.Container is the struct returned by ContainerList.
	"github.com/docker/docker/api/types"

	// container package provides Config, ListOptions, StopOptions,
	// RemoveOptions for Docker container operations.
	"github.com/docker/docker/api/types/container"

	// filters package provides Args type for building Docker API query filters.
	"github.com/docker/docker/api/types/filters"

	// nat provides the port map types the Docker API expects for
	// publishing container ports on the host.
	"github.com/docker/go-connections/nat"

	"github.com/sangho-coder/kakao-skill-sanity/internal/model"
)

// stopGraceSeconds is how long a container's main process gets to exit
// after SIGTERM before Docker kills it. Matches the grace period the
// locally-run gateway uses for its own shutdown.
const stopGraceSeconds = 10

// ListManagedContainers queries the Docker daemon for all containers that
// have the "skill.managed-by=kakao-skill-sanity" label. It returns a slice
// of ContainerInfo representing each managed container, including stopped
// ones.
//
// This function is the primary entry point for discovering what launches
// currently exist. All state is derived from Docker labels rather than
// any external database, so "ps" and "stop" work across CLI invocations.
func ListManagedContainers(ctx context.Context, cli *Client) ([]model.ContainerInfo, error) {
	// Filter server-side on the management label. This is more efficient
	// than listing all containers and filtering in Go.
	filterArgs := filters.NewArgs(
		filters.Arg("label", LabelManagedBy+"="+ManagedByValue),
	)

	// The All flag ensures we also get stopped/exited containers, not
	// just running ones — a launch may have exited but still needs to
	// show up in "ps" output until it is removed.
	containers, err := cli.Inner().ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filterArgs,
	})
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerNotRunning,
			"failed to list Docker containers",
			err,
		)
	}

	// Convert Docker API structs to our domain model so the rest of the
	// application stays decoupled from the Docker SDK types.
	result := make([]model.ContainerInfo, 0, len(containers))
	for _, c := range containers {
		result = append(result, containerToInfo(c))
	}

	return result, nil
}

// containerToInfo converts a Docker API Container struct to our domain
// model ContainerInfo. Pure mapping, no side effects.
//
// The Docker API returns container names with a leading "/" prefix
// (e.g., "/my-container"), which is stripped for cleaner CLI output.
// The State field from the Docker API is a short string like "running",
// "exited", or "created".
func containerToInfo(c types.Container) model.ContainerInfo {
	name := ""
	if len(c.Names) > 0 {
		name = strings.TrimPrefix(c.Names[0], "/")
	}

	return model.ContainerInfo{
		ContainerID:   c.ID,
		ContainerName: name,
		Status:        c.State,
		Labels:        c.Labels,
	}
}

// GroupByLaunch groups a slice of ContainerInfo by their "skill.name"
// label value. The "ps" command uses this to display containers organized
// by launch.
//
// Containers without a "skill.name" label are silently skipped, since
// they cannot be attributed to any launch. This should not happen in
// practice because ListManagedContainers already filters on the
// management label.
func GroupByLaunch(containers []model.ContainerInfo) map[string][]model.ContainerInfo {
	groups := make(map[string][]model.ContainerInfo)

	for _, c := range containers {
		launchName, ok := c.Labels[LabelName]
		if !ok || launchName == "" {
			continue
		}
		groups[launchName] = append(groups[launchName], c)
	}

	return groups
}

// BuildLaunchInfo constructs a LaunchInfo domain object from a group of
// containers that belong to the same launch.
//
// It uses ParseLabels on the first container's labels to extract the
// launch metadata. All containers in the same launch carry identical
// skill.* labels, so the first one is sufficient.
//
// Returns an error if the containers slice is empty or label parsing fails.
func BuildLaunchInfo(launchName string, containers []model.ContainerInfo) (*model.LaunchInfo, error) {
	if len(containers) == 0 {
		return nil, fmt.Errorf("cannot build launch %q: no containers provided", launchName)
	}

	info, err := ParseLabels(containers[0].Labels)
	if err != nil {
		return nil, fmt.Errorf("failed to parse labels for launch %q: %w", launchName, err)
	}

	// Attach the containers so callers can inspect runtime state
	// (e.g., "ps --json" output, or Running()).
	info.Containers = containers

	return info, nil
}

// CreateAndStart creates and starts a container for the given launch using
// the Docker SDK. The container gets:
//
//   - the full skill.* label set from BuildLabels, so ps/stop can
//     rediscover it later
//   - PORT=<info.Port> and PYTHONUNBUFFERED=1 in its environment, matching
//     what the local entrypoint launcher injects
//   - info.Port published on the host as info.HostPort (TCP)
//   - info.Entrypoint (whitespace-split) as the container command, when
//     set; otherwise the image default is used
//
// The container is named after the launch. Returns the container ID on
// success.
func CreateAndStart(ctx context.Context, cli *Client, info *model.LaunchInfo) (string, error) {
	binding := model.PortBinding{
		ContainerPort: info.Port,
		HostPort:      info.HostPort,
		Protocol:      "tcp",
	}
	if err := binding.Validate(); err != nil {
		return "", model.WrapCLIError(
			model.ExitConfigError,
			fmt.Sprintf("invalid port mapping for launch %q", info.Name),
			err,
		)
	}

	containerPort, err := nat.NewPort(binding.Protocol, strconv.Itoa(binding.ContainerPort))
	if err != nil {
		return "", model.WrapCLIError(
			model.ExitConfigError,
			fmt.Sprintf("invalid container port %d", info.Port),
			err,
		)
	}

	cfg := &container.Config{
		Image:  info.Image,
		Labels: BuildLabels(info),
		Env: []string{
			"PORT=" + strconv.Itoa(info.Port),
			"PYTHONUNBUFFERED=1",
		},
		ExposedPorts: nat.PortSet{containerPort: struct{}{}},
	}

	// A non-empty entrypoint overrides the image command. Whitespace
	// splitting is intentionally simple; quoted arguments are not
	// supported, same as the local launch mode.
	if info.Entrypoint != "" {
		cfg.Cmd = strings.Fields(info.Entrypoint)
	}

	hostCfg := &container.HostConfig{
		PortBindings: nat.PortMap{
			containerPort: []nat.PortBinding{
				{HostIP: "0.0.0.0", HostPort: strconv.Itoa(binding.HostPort)},
			},
		},
	}

	created, err := cli.Inner().ContainerCreate(ctx, cfg, hostCfg, nil, nil, info.Name)
	if err != nil {
		return "", model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to create container for launch %q", info.Name),
			err,
		)
	}

	if err := cli.Inner().ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		// Creation succeeded but start failed — remove the half-created
		// container so a retry with the same name does not collide.
		_ = cli.Inner().ContainerRemove(ctx, created.ID, container.RemoveOptions{Force: true})
		return "", model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to start container for launch %q", info.Name),
			err,
		)
	}

	return created.ID, nil
}

// StopContainer stops a running container by its ID. It sends SIGTERM to
// the container's main process and waits up to stopGraceSeconds before
// Docker escalates to SIGKILL.
func StopContainer(ctx context.Context, cli *Client, containerID string) error {
	grace := stopGraceSeconds
	err := cli.Inner().ContainerStop(ctx, containerID, container.StopOptions{
		Timeout: &grace,
	})
	if err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to stop container %q", containerID),
			err,
		)
	}
	return nil
}

// RemoveContainer removes a container by its ID. The container must be
// stopped first unless force is true, in which case Docker kills it
// before removal.
func RemoveContainer(ctx context.Context, cli *Client, containerID string, force bool) error {
	err := cli.Inner().ContainerRemove(ctx, containerID, container.RemoveOptions{
		Force: force,
	})
	if err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to remove container %q", containerID),
			err,
		)
	}
	return nil
}
