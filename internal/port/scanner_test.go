package port

import (
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sangho-coder/kakao-skill-sanity/internal/model"
)

// TestIsAvailable_FreePort verifies that IsAvailable returns true for a
// port that no process is currently using. We use FindAvailable to get a
// port we know is free, rather than hardcoding a port number that might
// be in use on some CI machines.
func TestIsAvailable_FreePort(t *testing.T) {
	scanner := NewScanner()

	freePort, err := scanner.FindAvailable(50000, 50100, "tcp")
	require.NoError(t, err, "should find at least one free port in 50000-50100")

	assert.True(t, scanner.IsAvailable(freePort, "tcp"), "port %d should be available", freePort)
}

// TestIsAvailable_UsedPort verifies that IsAvailable returns false when a
// port is already bound by another listener.
//
// The test starts its own TCP listener on an OS-assigned port (":0" lets
// the OS pick a free port, avoiding flakiness from hardcoded ports), then
// checks the same port.
func TestIsAvailable_UsedPort(t *testing.T) {
	listener, err := net.Listen("tcp", ":0")
	require.NoError(t, err, "failed to start test listener")
	defer func() { _ = listener.Close() }()

	// Extract the actual port the OS assigned to our listener.
	tcpAddr, ok := listener.Addr().(*net.TCPAddr)
	require.True(t, ok)
	port := tcpAddr.Port

	scanner := NewScanner()
	assert.False(t, scanner.IsAvailable(port, "tcp"),
		"port %d should be in use (we have a listener on it)", port)
}

// TestIsAvailable_UDP verifies UDP port scanning works correctly.
// We start a UDP listener and confirm IsAvailable reports it as used.
func TestIsAvailable_UDP(t *testing.T) {
	conn, err := net.ListenPacket("udp", ":0")
	require.NoError(t, err, "failed to start test UDP listener")
	defer func() { _ = conn.Close() }()

	udpAddr, ok := conn.LocalAddr().(*net.UDPAddr)
	require.True(t, ok)
	port := udpAddr.Port

	scanner := NewScanner()
	assert.False(t, scanner.IsAvailable(port, "udp"), "UDP port %d should be in use", port)
}

// TestIsAvailable_UnknownProtocol verifies that an unrecognized protocol
// string causes IsAvailable to return false (fail-safe behavior).
func TestIsAvailable_UnknownProtocol(t *testing.T) {
	scanner := NewScanner()
	assert.False(t, scanner.IsAvailable(50000, "sctp"),
		"unknown protocol should return false (fail-safe)")
}

// TestEnsureAvailable_Free verifies that a free port passes the pre-bind
// check without error.
func TestEnsureAvailable_Free(t *testing.T) {
	scanner := NewScanner()

	freePort, err := scanner.FindAvailable(50000, 50100, "tcp")
	require.NoError(t, err)

	assert.NoError(t, scanner.EnsureAvailable(freePort))
}

// TestEnsureAvailable_Taken verifies that an occupied port fails the
// pre-bind check with ExitPortUnavailable, so the CLI reports a distinct
// exit code for port conflicts.
func TestEnsureAvailable_Taken(t *testing.T) {
	listener, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer func() { _ = listener.Close() }()

	tcpAddr, ok := listener.Addr().(*net.TCPAddr)
	require.True(t, ok)

	scanner := NewScanner()
	err = scanner.EnsureAvailable(tcpAddr.Port)
	require.Error(t, err)

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitPortUnavailable, cliErr.Code)
}

// TestFindAvailable verifies that FindAvailable returns a port within the
// requested range that is actually free.
func TestFindAvailable(t *testing.T) {
	scanner := NewScanner()

	port, err := scanner.FindAvailable(50000, 50100, "tcp")
	require.NoError(t, err, "should find an available port in range 50000-50100")

	assert.GreaterOrEqual(t, port, 50000)
	assert.LessOrEqual(t, port, 50100)
	assert.True(t, scanner.IsAvailable(port, "tcp"))
}

// TestFindAvailable_NoneAvailable verifies that FindAvailable returns an
// error when every port in the range is occupied. We create a tiny 3-port
// range and bind listeners to all of them.
func TestFindAvailable_NoneAvailable(t *testing.T) {
	scanner := NewScanner()

	// Find three consecutive free ports to occupy. If the host is so busy
	// that this fails, skip rather than report a false negative.
	start, err := scanner.FindAvailable(51000, 51900, "tcp")
	require.NoError(t, err)

	var listeners []net.Listener
	for p := start; p < start+3; p++ {
		l, err := net.Listen("tcp", fmt.Sprintf(":%d", p))
		if err != nil {
			t.Skipf("could not occupy port %d for the test: %v", p, err)
		}
		listeners = append(listeners, l)
	}
	defer func() {
		for _, l := range listeners {
			_ = l.Close()
		}
	}()

	_, err = scanner.FindAvailable(start, start+2, "tcp")
	assert.Error(t, err, "all ports in the range are occupied")
}
