// Package docker wraps the Docker Engine SDK for the containerized launch
// mode of the "run" command.
//
// When an entry point is launched with --image, the resulting container
// is tagged with skill.* labels that fully describe the launch (name,
// variant, image, ports, creation time). The labels are the only
// persistence mechanism: "ps" and "stop" reconstruct launches purely from
// Docker API queries, so there is no state file to lose or corrupt.
package docker
