package port

import (
	"fmt"
	"os"
	"strconv"

	"github.com/sangho-coder/kakao-skill-sanity/internal/model"
)

const (
	// EnvPort is the environment variable every launch variant reads its
	// TCP bind port from. The name matches the convention used by most
	// container platforms (Cloud Run, Heroku, etc.), which inject PORT
	// into the runtime environment.
	EnvPort = "PORT"

	// DefaultPort is the fallback used by the entrypoint and static
	// variants when PORT is unset. The gateway variant has no fallback —
	// a missing PORT there is a fatal configuration error.
	DefaultPort = 8080

	// maxPort is the highest valid TCP/UDP port number (2^16 - 1).
	maxPort = 65535
)

// Parse converts a port string to an integer and validates the range.
// A port is acceptable when it parses as a base-10 integer in [1, 65535].
// Port 0 is rejected: the serving contract requires a predictable,
// externally-known bind port, so OS-assigned ephemeral ports are not
// allowed.
func Parse(s string) (int, error) {
	p, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("port %q is not an integer: %w", s, err)
	}
	if p < 1 || p > maxPort {
		return 0, fmt.Errorf("port %d out of range (1-%d)", p, maxPort)
	}
	return p, nil
}

// Resolve determines the bind port from the PORT environment variable.
//
// When required is true (gateway variant), an unset or empty PORT is a
// fatal configuration error — the process must fail before binding,
// mirroring how the original deployment failed when the process manager
// received an empty bind argument.
//
// When required is false (entrypoint and static variants), an unset PORT
// falls back to DefaultPort. A PORT that is set but malformed is always
// an error, regardless of the required flag: silently ignoring a bad
// value would bind a different port than the operator asked for.
//
// All errors are model.CLIError values with ExitConfigError so the CLI
// layer exits with a distinct configuration-failure code.
func Resolve(required bool) (int, error) {
	raw, ok := os.LookupEnv(EnvPort)
	if !ok || raw == "" {
		if required {
			return 0, model.NewCLIError(model.ExitConfigError,
				fmt.Sprintf("%s environment variable is not set", EnvPort))
		}
		return DefaultPort, nil
	}

	p, err := Parse(raw)
	if err != nil {
		return 0, model.WrapCLIError(model.ExitConfigError,
			fmt.Sprintf("invalid %s value", EnvPort), err)
	}
	return p, nil
}
