// Package model defines the domain types for the kakao-skill-sanity CLI.
//
// All entities in this package represent the small set of data structures
// shared between the launch commands. These types are used throughout the
// application for passing data between components.
//
// Key design decision: launch state for containerized entry points is
// persisted via Docker container labels, so LaunchInfo is a transient
// representation reconstructed from Docker API queries at runtime.
package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// LaunchVariant identifies which of the three serving strategies a process
// was started with. The variant is selected by the CLI subcommand, never
// at runtime, matching the build-time selection in the original container
// images this tool replaces.
type LaunchVariant string

const (
	// VariantGateway is the managed webhook gateway (the "serve" command).
	// One process, a bounded number of concurrent requests, explicit
	// request timeout, keep-alive and graceful shutdown windows.
	VariantGateway LaunchVariant = "gateway"

	// VariantEntrypoint delegates serving to an arbitrary entry-point
	// program (the "run" command). Its concurrency model is whatever the
	// program itself implements.
	VariantEntrypoint LaunchVariant = "entrypoint"

	// VariantStatic is the single-threaded static file server
	// (the "static" command). Requests are served strictly one at a time.
	VariantStatic LaunchVariant = "static"
)

// String returns the string representation of LaunchVariant.
// This method satisfies the fmt.Stringer interface, enabling
// human-readable output in CLI commands and logging.
func (v LaunchVariant) String() string {
	return string(v)
}

// IsValid checks whether the LaunchVariant value is one of the
// predefined valid variants.
func (v LaunchVariant) IsValid() bool {
	switch v {
	case VariantGateway, VariantEntrypoint, VariantStatic:
		return true
	default:
		return false
	}
}

// ParseLaunchVariant converts a string to a LaunchVariant.
// Returns an error if the string does not match any valid variant.
func ParseLaunchVariant(s string) (LaunchVariant, error) {
	variant := LaunchVariant(strings.ToLower(s))
	if !variant.IsValid() {
		return "", fmt.Errorf("invalid launch variant: %q (valid: gateway, entrypoint, static)", s)
	}
	return variant, nil
}

// LaunchInfo represents a containerized launch — an entry-point program
// started inside a container via "run --image". This is the primary
// aggregate entity reconstructed by the "ps" command.
//
// All fields are rebuilt at runtime from Docker container labels
// (see the label schema in internal/docker/label.go). There is no
// persistent state file on disk.
type LaunchInfo struct {
	// Name is the unique identifier for this launch.
	// Must contain only alphanumeric characters and hyphens.
	Name string `json:"name"`

	// Variant records which serving strategy the container runs.
	Variant LaunchVariant `json:"variant"`

	// Image is the container image the entry point runs in.
	Image string `json:"image"`

	// Entrypoint is the program executed inside the container.
	// Empty when the image's own default entry point is used.
	Entrypoint string `json:"entrypoint,omitempty"`

	// Port is the TCP port the process binds inside the container.
	Port int `json:"port"`

	// HostPort is the port published on the host machine.
	HostPort int `json:"hostPort"`

	// Containers holds information about the Docker containers belonging
	// to this launch. Normally exactly one.
	Containers []ContainerInfo `json:"containers,omitempty"`

	// CreatedAt is the timestamp when this launch was created.
	CreatedAt time.Time `json:"createdAt"`
}

// Running reports whether any container belonging to this launch is
// currently in the "running" state. A launch with only exited containers
// can still be listed and stopped/removed.
func (l *LaunchInfo) Running() bool {
	for _, c := range l.Containers {
		if c.Status == "running" {
			return true
		}
	}
	return false
}

// nameRegex validates launch names: alphanumeric + hyphens only,
// must start and end with alphanumeric.
var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9-]*[a-zA-Z0-9]$|^[a-zA-Z0-9]$`)

// ValidateName checks if the given name is a valid launch name.
// Valid names contain only alphanumeric characters and hyphens,
// and must start/end with an alphanumeric character.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("launch name must not be empty")
	}
	if !nameRegex.MatchString(name) {
		return fmt.Errorf("invalid launch name %q: must contain only alphanumeric characters and hyphens, and start/end with alphanumeric", name)
	}
	return nil
}

// PortBinding represents the mapping between the port the serving process
// binds inside a container and the port published on the host.
type PortBinding struct {
	// ContainerPort is the port number inside the container (1-65535).
	ContainerPort int `json:"containerPort"`

	// HostPort is the port number on the host machine (1-65535).
	HostPort int `json:"hostPort"`

	// Protocol is the network protocol for the port mapping.
	// Defaults to "tcp".
	Protocol string `json:"protocol"`
}

// Validate checks whether the PortBinding has valid field values.
// It verifies port number ranges and protocol values.
func (p *PortBinding) Validate() error {
	if p.ContainerPort < 1 || p.ContainerPort > 65535 {
		return fmt.Errorf("port binding: container port %d out of range (1-65535)", p.ContainerPort)
	}
	if p.HostPort < 1 || p.HostPort > 65535 {
		return fmt.Errorf("port binding: host port %d out of range (1-65535)", p.HostPort)
	}
	if p.Protocol == "" {
		p.Protocol = "tcp"
	}
	if p.Protocol != "tcp" && p.Protocol != "udp" {
		return fmt.Errorf("port binding: invalid protocol %q (valid: tcp, udp)", p.Protocol)
	}
	return nil
}

// String returns a human-readable representation of the port binding.
// Format: "containerPort → hostPort/protocol"
func (p *PortBinding) String() string {
	proto := p.Protocol
	if proto == "" {
		proto = "tcp"
	}
	return fmt.Sprintf("%d → %d/%s", p.ContainerPort, p.HostPort, proto)
}

// ContainerInfo holds runtime information about a Docker container.
// This data is fetched dynamically from the Docker API, not persisted.
type ContainerInfo struct {
	// ContainerID is the unique Docker container identifier (SHA-256 hash prefix).
	ContainerID string `json:"containerId"`

	// ContainerName is the human-readable Docker container name.
	ContainerName string `json:"containerName"`

	// Status is the Docker container status (e.g., "running", "exited", "created").
	Status string `json:"status"`

	// Labels is the full set of Docker labels on the container.
	// Includes skill management labels (skill.* prefix).
	Labels map[string]string `json:"labels,omitempty"`
}

// ExitCode defines standard CLI exit codes. These codes allow scripts and
// container orchestration layers to programmatically determine the outcome
// of a command.
//
// Note: the "run" command propagates the entry-point program's own exit
// code, so any code may surface from it in addition to the ones below.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitConfigError indicates invalid or missing configuration,
	// including an unset PORT for the serve command.
	ExitConfigError ExitCode = 2

	// ExitDockerNotRunning indicates the Docker daemon is not accessible.
	ExitDockerNotRunning ExitCode = 3

	// ExitPortUnavailable indicates the configured port could not be bound.
	ExitPortUnavailable ExitCode = 4

	// ExitLaunchNotFound indicates the specified launch does not exist.
	ExitLaunchNotFound ExitCode = 5

	// ExitEntrypointFailed indicates the entry-point program could not be
	// started at all (not found, not executable). Once started, its own
	// exit code is propagated instead.
	ExitEntrypointFailed ExitCode = 6
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
// This follows Go's error wrapping convention introduced in Go 1.13.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
