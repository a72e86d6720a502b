package launcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/sangho-coder/kakao-skill-sanity/internal/model"
)

// Options configures an entry-point launch.
type Options struct {
	// Entrypoint is the program to execute. Resolved via PATH when not
	// an explicit path.
	Entrypoint string

	// Args are passed to the entry point verbatim.
	Args []string

	// Port is exported to the program as PORT. The program is expected
	// to bind it, but the launcher cannot and does not verify that.
	Port int

	// Dir is the working directory for the program. Empty means inherit
	// the launcher's working directory.
	Dir string
}

// BuildEnv returns base with PORT and PYTHONUNBUFFERED applied.
//
// Any existing PORT entry is replaced rather than shadowed: while most
// runtimes take the last duplicate entry, that behavior is not universal,
// and a duplicated variable makes debugging with `ps e` miserable.
// PYTHONUNBUFFERED=1 forces line-by-line flushing of the child's output
// streams so log lines reach the container runtime as they happen —
// harmless for non-Python entry points.
func BuildEnv(base []string, port int) []string {
	env := make([]string, 0, len(base)+2)
	for _, kv := range base {
		if strings.HasPrefix(kv, "PORT=") || strings.HasPrefix(kv, "PYTHONUNBUFFERED=") {
			continue
		}
		env = append(env, kv)
	}
	env = append(env, "PORT="+strconv.Itoa(port))
	env = append(env, "PYTHONUNBUFFERED=1")
	return env
}

// Run executes the entry point and blocks until it exits, returning the
// program's exit code.
//
// Exit code semantics: the launcher has no exit codes of its own once the
// program starts — whatever the program exits with is returned verbatim.
// Only a failure to start at all (program not found, not executable)
// produces a launcher error, with ExitEntrypointFailed.
//
// SIGINT and SIGTERM received by the launcher are forwarded to the
// program so the orchestration layer's stop semantics reach the process
// actually serving traffic.
func Run(ctx context.Context, opts Options) (int, error) {
	if opts.Entrypoint == "" {
		return 0, model.NewCLIError(model.ExitConfigError, "no entry point specified")
	}

	cmd := exec.CommandContext(ctx, opts.Entrypoint, opts.Args...)
	cmd.Dir = opts.Dir
	cmd.Env = BuildEnv(os.Environ(), opts.Port)

	// Pass the standard streams straight through. The launcher adds no
	// framing of its own — the program's output is the process output.
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return 0, model.WrapCLIError(model.ExitEntrypointFailed,
			fmt.Sprintf("failed to start entry point %q", opts.Entrypoint), err)
	}

	// Forward termination signals to the child for as long as it runs.
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	for {
		select {
		case sig := <-signals:
			// Best-effort forward; the child may already be exiting.
			_ = cmd.Process.Signal(sig)

		case err := <-done:
			if err == nil {
				return 0, nil
			}
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				// The program ran and exited non-zero. Propagate its
				// code, don't wrap.
				code := exitErr.ExitCode()
				if code < 0 {
					// Killed by a signal — follow the shell convention
					// of 128+signal so the orchestration layer can tell
					// signal deaths from ordinary failures.
					if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
						code = 128 + int(status.Signal())
					} else {
						code = 1
					}
				}
				return code, nil
			}
			return 0, fmt.Errorf("entry point wait failed: %w", err)
		}
	}
}
