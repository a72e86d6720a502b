package docker

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sangho-coder/kakao-skill-sanity/internal/model"
)

// Label key constants define the Docker label keys used to persist launch
// metadata on containers. These labels serve as the sole persistence
// mechanism — there is no external state file.
//
// All keys share the "skill." prefix to namespace them and avoid
// collisions with labels set by other tools (Docker Compose, VS Code, etc.).
const (
	// LabelPrefix is the common prefix for all launch labels. Using a
	// consistent prefix enables efficient label-based filtering when
	// listing containers via the Docker API.
	LabelPrefix = "skill."

	// LabelManagedBy identifies containers created by this CLI. This is
	// the primary label used for filtering and discovery.
	// Key: "skill.managed-by", Value: always "kakao-skill-sanity".
	LabelManagedBy = LabelPrefix + "managed-by"

	// LabelName stores the launch's unique identifier.
	// Key: "skill.name", Value: launch name (e.g., "staging-bot").
	LabelName = LabelPrefix + "name"

	// LabelVariant stores which launch mode created the container.
	// Key: "skill.variant", Value: one of "gateway", "entrypoint", "static".
	LabelVariant = LabelPrefix + "variant"

	// LabelImage stores the Docker image reference the container runs.
	// Key: "skill.image", Value: image reference (e.g., "myapp:latest").
	LabelImage = LabelPrefix + "image"

	// LabelEntrypoint stores the command executed inside the container,
	// when the launch overrides the image's own entrypoint. May be empty.
	// Key: "skill.entrypoint", Value: command string.
	LabelEntrypoint = LabelPrefix + "entrypoint"

	// LabelPort stores the port the serving process listens on inside the
	// container; the same value is injected as the PORT environment variable.
	// Key: "skill.port", Value: decimal port number.
	LabelPort = LabelPrefix + "port"

	// LabelHostPort stores the host port published for the container port.
	// Key: "skill.host-port", Value: decimal port number.
	LabelHostPort = LabelPrefix + "host-port"

	// LabelCreatedAt stores the ISO-8601 timestamp of launch creation.
	// Key: "skill.created-at", Value: RFC3339 formatted timestamp.
	LabelCreatedAt = LabelPrefix + "created-at"
)

// ManagedByValue is the constant value for the LabelManagedBy label.
// All containers created by this CLI are tagged with this value,
// enabling discovery via Docker API label filters.
const ManagedByValue = "kakao-skill-sanity"

// BuildLabels constructs a Docker label map from a LaunchInfo. The labels
// are applied at container creation and allow full reconstruction of the
// LaunchInfo from container inspection alone.
func BuildLabels(info *model.LaunchInfo) map[string]string {
	return map[string]string{
		LabelManagedBy:  ManagedByValue,
		LabelName:       info.Name,
		LabelVariant:    info.Variant.String(),
		LabelImage:      info.Image,
		LabelEntrypoint: info.Entrypoint,
		LabelPort:       strconv.Itoa(info.Port),
		LabelHostPort:   strconv.Itoa(info.HostPort),
		// time.RFC3339 produces ISO-8601 compatible timestamps like
		// "2026-08-26T10:00:00Z". Using UTC ensures consistency
		// regardless of the host machine's timezone.
		LabelCreatedAt: info.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// ParseLabels reconstructs a LaunchInfo from Docker container labels.
// This is the inverse of BuildLabels and is used when listing or
// inspecting containers to rebuild the domain model.
//
// Required labels: managed-by, name, variant, image, port, host-port,
// created-at. The entrypoint label is optional because image-default
// launches do not override the entrypoint.
//
// Note: Containers is NOT reconstructed from labels because it is
// determined at runtime from Docker container state.
func ParseLabels(labels map[string]string) (*model.LaunchInfo, error) {
	// Check all required labels at once rather than failing on the first
	// missing one, so the error message can list every missing label.
	requiredKeys := []string{
		LabelManagedBy,
		LabelName,
		LabelVariant,
		LabelImage,
		LabelPort,
		LabelHostPort,
		LabelCreatedAt,
	}

	var missing []string
	for _, key := range requiredKeys {
		if _, ok := labels[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required Docker labels: %s", strings.Join(missing, ", "))
	}

	if labels[LabelManagedBy] != ManagedByValue {
		return nil, fmt.Errorf(
			"label %s has unexpected value %q (expected %q)",
			LabelManagedBy, labels[LabelManagedBy], ManagedByValue,
		)
	}

	variant, err := model.ParseLaunchVariant(labels[LabelVariant])
	if err != nil {
		return nil, fmt.Errorf("invalid label %s: %w", LabelVariant, err)
	}

	port, err := strconv.Atoi(labels[LabelPort])
	if err != nil {
		return nil, fmt.Errorf("invalid label %s=%q: %w", LabelPort, labels[LabelPort], err)
	}

	hostPort, err := strconv.Atoi(labels[LabelHostPort])
	if err != nil {
		return nil, fmt.Errorf("invalid label %s=%q: %w", LabelHostPort, labels[LabelHostPort], err)
	}

	// time.RFC3339 is Go's constant for the ISO-8601 / RFC-3339 format.
	createdAt, err := time.Parse(time.RFC3339, labels[LabelCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("invalid label %s: %w", LabelCreatedAt, err)
	}

	return &model.LaunchInfo{
		Name:       labels[LabelName],
		Variant:    variant,
		Image:      labels[LabelImage],
		Entrypoint: labels[LabelEntrypoint],
		Port:       port,
		HostPort:   hostPort,
		CreatedAt:  createdAt,
	}, nil
}

// FilterLabels returns a label filter map suitable for use with the Docker
// API's container listing endpoint. The returned map filters for containers
// that have the LabelManagedBy label set to ManagedByValue, effectively
// listing only containers created by this CLI.
func FilterLabels() map[string]string {
	return map[string]string{
		LabelManagedBy: ManagedByValue,
	}
}
