// Package launcher implements the entry-point execution variant — the
// "run" command's local mode.
//
// The launcher's job is deliberately thin: put PORT (defaulted to 8080)
// and PYTHONUNBUFFERED=1 into the environment, hand stdin/stdout/stderr
// straight through, forward termination signals, and propagate the
// program's own exit code. Everything about how the program serves —
// concurrency, timeouts, routes — belongs to the program, not to the
// launcher.
package launcher
