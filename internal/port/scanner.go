package port

import (
	"fmt"
	"net"

	"github.com/sangho-coder/kakao-skill-sanity/internal/model"
)

// Scanner checks whether specific ports are available on the host machine.
//
// It uses the operating system's network stack (net.Listen / net.ListenPacket)
// to determine if a port is free. This is the most reliable method because it
// asks the OS directly, rather than parsing /proc/net/* or relying on external
// commands like `lsof` or `ss` which may require elevated permissions.
//
// The struct is currently stateless, but is defined as a struct (rather than
// bare functions) so that future options (e.g., bind address, timeout) can be
// added without breaking the API.
type Scanner struct{}

// NewScanner creates a new Scanner instance.
// Currently no configuration is needed, but this constructor follows Go
// convention and allows future expansion (e.g., custom bind address).
func NewScanner() *Scanner {
	return &Scanner{}
}

// IsAvailable checks whether a single port is free on the host machine.
//
// For TCP, it attempts net.Listen("tcp", ":port"). For UDP, it attempts
// net.ListenPacket("udp", ":port"). If the listen/bind succeeds, the port
// is available — the listener is immediately closed via defer.
//
// We bind to all interfaces (":port" rather than "127.0.0.1:port") because
// every launch variant serves on 0.0.0.0, so the probe has to cover the
// same address space to avoid false positives.
//
// Returns true if the port is free, false if it is already in use or the
// protocol is not recognized (fail safe).
func (s *Scanner) IsAvailable(port int, protocol string) bool {
	addr := fmt.Sprintf(":%d", port)

	switch protocol {
	case "tcp":
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			return false
		}
		// Close immediately — we only needed to test availability,
		// not actually accept connections.
		defer func() { _ = listener.Close() }()
		return true

	case "udp":
		// UDP is connectionless, so ListenPacket (which returns a
		// PacketConn) is used instead of Listen.
		conn, err := net.ListenPacket("udp", addr)
		if err != nil {
			return false
		}
		defer func() { _ = conn.Close() }()
		return true

	default:
		return false
	}
}

// EnsureAvailable verifies the given TCP port can be bound before a launch
// commits to it. Probing up front turns "address already in use" halfway
// through startup into an immediate, clearly attributed failure with exit
// code ExitPortUnavailable.
//
// There is an unavoidable window between the probe and the real bind in
// which another process could grab the port; the real bind still reports
// its own error in that case. The probe exists for the common path where
// the conflict is already present at start time.
func (s *Scanner) EnsureAvailable(port int) error {
	if !s.IsAvailable(port, "tcp") {
		return model.NewCLIError(model.ExitPortUnavailable,
			fmt.Sprintf("port %d is already in use", port))
	}
	return nil
}

// FindAvailable scans a port range [startPort, endPort] (inclusive) and
// returns the first port that is available for the given protocol.
//
// The search is sequential from startPort upward. This deterministic
// ordering means the same free port will be selected consistently, which
// helps with reproducibility in testing. The "run --image" path uses it
// to pick a host port when the requested one is taken.
func (s *Scanner) FindAvailable(startPort, endPort int, protocol string) (int, error) {
	for port := startPort; port <= endPort; port++ {
		if s.IsAvailable(port, protocol) {
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available %s port found in range %d-%d", protocol, startPort, endPort)
}
