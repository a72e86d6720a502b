package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Environment variable names read by Load. They match the variables the
// original deployment wired into the container environment, so an existing
// deployment can switch to this binary without changing its manifests.
const (
	// EnvAPIKey holds the bearer token for the upstream chat API.
	// When empty, webhook requests are answered with the fallback text
	// without any upstream call.
	EnvAPIKey = "CHATLING_API_KEY"

	// EnvUpstreamURL holds the upstream chat endpoint URL.
	EnvUpstreamURL = "CHATLING_URL"

	// EnvModelID holds the numeric AI model id required by the v2 API.
	EnvModelID = "CHATLING_MODEL_ID"

	// EnvTimeout holds the upstream call budget in seconds (float).
	EnvTimeout = "CHATLING_TIMEOUT"

	// EnvRedisAddr holds the optional redis address for the reply cache.
	// When empty, the cache is disabled.
	EnvRedisAddr = "REDIS_ADDR"

	// EnvCacheTTL holds the reply cache TTL in seconds (integer).
	EnvCacheTTL = "CACHE_TTL_SECONDS"
)

// Defaults applied before any file or environment values.
const (
	// DefaultUpstreamURL is a placeholder endpoint with the chatbot id
	// baked in. Deployments are expected to override it; the default only
	// prevents an empty URL from producing confusing dial errors.
	DefaultUpstreamURL = "https://api.chatling.ai/v2/chatbots/9226872959/ai/kb/chat"

	// DefaultTimeoutSeconds is the upstream call budget. The Kakao skill
	// platform enforces a hard 5-second response deadline; 4.2 seconds
	// leaves headroom for request parsing and response serialization.
	DefaultTimeoutSeconds = 4.2

	// DefaultCacheTTLSeconds is how long a cached upstream reply stays
	// valid when the reply cache is enabled.
	DefaultCacheTTLSeconds = 300
)

// configFileNames lists the file names probed by Find, in priority order.
// YAML is listed first because it is the documented format; the JSONC
// variants exist for deployments that keep all their config in JSON.
var configFileNames = []string{
	"skill.yaml",
	"skill.yml",
	"skill.jsonc",
	"skill.json",
}

// Settings holds the full gateway configuration after defaults, file
// values, and environment overrides have been merged.
//
// Both yaml and json struct tags are present because the same struct is
// unmarshaled from either format depending on the config file extension.
type Settings struct {
	// Upstream configures the chat API the webhook proxies utterances to.
	Upstream UpstreamSettings `yaml:"upstream" json:"upstream"`

	// Cache configures the optional redis-backed reply cache.
	Cache CacheSettings `yaml:"cache" json:"cache"`
}

// UpstreamSettings configures the upstream chat API client.
type UpstreamSettings struct {
	// URL is the chat endpoint. The v2 API path encodes the chatbot id.
	URL string `yaml:"url" json:"url"`

	// APIKey is the bearer token. Never logged; /diag only reports
	// whether it is set.
	APIKey string `yaml:"api_key" json:"apiKey"`

	// ModelID is the numeric AI model id the v2 API requires in every
	// request body. Zero means "not configured", which short-circuits
	// upstream calls the same way a missing API key does.
	ModelID int `yaml:"model_id" json:"modelId"`

	// TimeoutSeconds is the upstream call budget in seconds. Fractional
	// values are allowed (the default is 4.2).
	TimeoutSeconds float64 `yaml:"timeout_seconds" json:"timeoutSeconds"`
}

// CacheSettings configures the redis reply cache. The cache is enabled
// only when RedisAddr is non-empty.
type CacheSettings struct {
	// RedisAddr is the host:port of the redis server.
	RedisAddr string `yaml:"redis_addr" json:"redisAddr"`

	// TTLSeconds is how long a cached reply stays valid.
	TTLSeconds int `yaml:"ttl_seconds" json:"ttlSeconds"`
}

// Defaults returns a Settings value populated with the built-in defaults.
// This is the base that file values and environment overrides are merged
// onto.
func Defaults() Settings {
	return Settings{
		Upstream: UpstreamSettings{
			URL:            DefaultUpstreamURL,
			TimeoutSeconds: DefaultTimeoutSeconds,
		},
		Cache: CacheSettings{
			TTLSeconds: DefaultCacheTTLSeconds,
		},
	}
}

// Find probes dir for a config file, returning the path of the first one
// that exists. Returns an empty path (and nil error) when no config file
// is present — a file is optional, the gateway runs on defaults plus
// environment variables alone.
func Find(dir string) (string, error) {
	for _, name := range configFileNames {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", fmt.Errorf("failed to stat %s: %w", path, err)
		}
		if info.IsDir() {
			// A directory named skill.yaml is a misconfiguration worth
			// reporting rather than silently skipping.
			return "", fmt.Errorf("%s is a directory, expected a file", path)
		}
		return path, nil
	}
	return "", nil
}

// LoadFile reads and parses a config file into Settings, merging the file
// values on top of the built-in defaults. The file format is selected by
// extension: .yaml/.yml use the YAML parser, everything else is treated
// as JSONC (comments and trailing commas are stripped before parsing).
func LoadFile(path string) (Settings, error) {
	settings := Defaults()

	// os.ReadFile is preferred over os.Open+io.ReadAll because it handles
	// the open-read-close lifecycle in a single call.
	data, err := os.ReadFile(path)
	if err != nil {
		return settings, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &settings); err != nil {
			return settings, fmt.Errorf("failed to parse YAML config %s: %w", path, err)
		}
	default:
		// Strip JSONC comments (// and /* */) and trailing commas before
		// parsing. Hand-maintained JSON config files frequently carry
		// comments, same as devcontainer.json in its ecosystem.
		cleanJSON := jsonc.ToJSON(data)
		if err := json.Unmarshal(cleanJSON, &settings); err != nil {
			return settings, fmt.Errorf("failed to parse JSON config %s: %w", path, err)
		}
	}

	return settings, nil
}

// ApplyEnv overrides settings with values from the process environment.
//
// Values are trimmed of surrounding whitespace because deployment UIs and
// .env files frequently introduce trailing spaces or newlines that would
// otherwise corrupt bearer tokens and URLs.
//
// A malformed CHATLING_MODEL_ID leaves the model id unset rather than
// failing startup: the original deployment tolerated this the same way,
// degrading to the fallback answer path instead of refusing to serve
// health checks. Malformed numeric values for the other variables are
// ignored in the same spirit.
func ApplyEnv(settings *Settings) {
	if v := strings.TrimSpace(os.Getenv(EnvAPIKey)); v != "" {
		settings.Upstream.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvUpstreamURL)); v != "" {
		settings.Upstream.URL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvModelID)); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			settings.Upstream.ModelID = id
		} else {
			settings.Upstream.ModelID = 0
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvTimeout)); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
			settings.Upstream.TimeoutSeconds = secs
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvRedisAddr)); v != "" {
		settings.Cache.RedisAddr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvCacheTTL)); v != "" {
		if ttl, err := strconv.Atoi(v); err == nil && ttl > 0 {
			settings.Cache.TTLSeconds = ttl
		}
	}
}

// Load assembles the effective configuration: defaults, then the first
// config file found in dir (if any), then environment overrides.
//
// An unreadable or malformed config file is a hard error — starting with
// half-applied configuration would be worse than not starting at all.
// A missing file is fine.
func Load(dir string) (Settings, error) {
	path, err := Find(dir)
	if err != nil {
		return Defaults(), err
	}

	settings := Defaults()
	if path != "" {
		settings, err = LoadFile(path)
		if err != nil {
			return settings, err
		}
	}

	ApplyEnv(&settings)
	return settings, nil
}
