// Package cli — ps_test.go contains unit tests for the pure formatting
// functions used by the ps and stop commands.
//
// These tests verify data transformation logic without requiring a Docker
// daemon or any external dependencies.
package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestFormatPortMapping verifies that FormatPortMapping renders
// container→host port pairs and collapses identical ports.
func TestFormatPortMapping(t *testing.T) {
	tests := []struct {
		name          string
		containerPort int
		hostPort      int
		want          string
	}{
		{
			name:          "different ports show mapping",
			containerPort: 8080,
			hostPort:      18080,
			want:          "8080→18080",
		},
		{
			name:          "identical ports collapse",
			containerPort: 8080,
			hostPort:      8080,
			want:          "8080",
		},
		{
			name:          "low port published high",
			containerPort: 80,
			hostPort:      8080,
			want:          "80→8080",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatPortMapping(tt.containerPort, tt.hostPort)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestCapitalize verifies the display helper used by the stop command.
func TestCapitalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "stopped", in: "stopped", want: "Stopped"},
		{name: "removed", in: "removed", want: "Removed"},
		{name: "empty string", in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := capitalize(tt.in)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestNewRootCommand_Subcommands verifies that every serving mode and
// management command is registered on the root command.
func TestNewRootCommand_Subcommands(t *testing.T) {
	root := NewRootCommand()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}

	assert.Contains(t, names, "serve")
	assert.Contains(t, names, "run")
	assert.Contains(t, names, "static")
	assert.Contains(t, names, "ps")
	assert.Contains(t, names, "stop")
}
