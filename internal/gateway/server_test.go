package gateway

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sangho-coder/kakao-skill-sanity/internal/config"
	"github.com/sangho-coder/kakao-skill-sanity/internal/model"
	"github.com/sangho-coder/kakao-skill-sanity/internal/port"
)

// TestRun_BindAndShutdown starts the server on a free port, verifies it
// answers health checks, then cancels the context and verifies a clean
// shutdown. This covers the NOT_STARTED → RUNNING transition and the
// graceful stop in one pass.
func TestRun_BindAndShutdown(t *testing.T) {
	scanner := port.NewScanner()
	freePort, err := scanner.FindAvailable(52000, 52900, "tcp")
	require.NoError(t, err)

	server := New(config.Defaults(), freePort, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() {
		runErr <- server.Run(ctx)
	}()

	// Poll until the server answers — bounded startup time.
	url := fmt.Sprintf("http://127.0.0.1:%d/healthz", freePort)
	require.Eventually(t, func() bool {
		res, err := http.Get(url)
		if err != nil {
			return false
		}
		defer func() { _ = res.Body.Close() }()
		return res.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond, "server should start listening")

	// Cancel and expect a clean return well within the grace window.
	cancel()
	select {
	case err := <-runErr:
		assert.NoError(t, err)
	case <-time.After(shutdownGrace + 5*time.Second):
		t.Fatal("server did not shut down")
	}
}

// TestRun_PortTaken verifies that a port conflict is reported as a
// CLIError with ExitPortUnavailable before any serving starts.
func TestRun_PortTaken(t *testing.T) {
	scanner := port.NewScanner()
	freePort, err := scanner.FindAvailable(53000, 53900, "tcp")
	require.NoError(t, err)

	// Occupy the port with a throwaway server.
	blocker := New(config.Defaults(), freePort, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	blockerErr := make(chan error, 1)
	go func() { blockerErr <- blocker.Run(ctx) }()

	require.Eventually(t, func() bool {
		return !scanner.IsAvailable(freePort, "tcp")
	}, 5*time.Second, 50*time.Millisecond)

	// The second server must fail fast with the port-conflict exit code.
	second := New(config.Defaults(), freePort, nil, nil)
	err = second.Run(context.Background())
	require.Error(t, err)

	var cliErr *model.CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, model.ExitPortUnavailable, cliErr.Code)

	cancel()
	<-blockerErr
}
