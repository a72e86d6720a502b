// Package config loads gateway configuration from environment variables
// and optional skill.yaml / skill.jsonc files.
//
// The precedence order is: built-in defaults, then the config file (if one
// exists), then environment variables. Environment variables win because
// container platforms inject deployment-specific values (API keys, upstream
// URLs) through the environment, and those must override whatever was baked
// into the image alongside the config file.
//
// YAML files are parsed with gopkg.in/yaml.v3; .json/.jsonc files are
// stripped of comments with github.com/tidwall/jsonc before parsing with
// the standard encoding/json library.
package config
