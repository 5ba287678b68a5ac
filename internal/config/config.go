// Package config loads the service configuration from defaults, an optional
// config file and the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/amaumene/debridstream/internal/constants"
	"github.com/amaumene/debridstream/pkg/hosters"
	"github.com/spf13/viper"
)

const envPrefix = "DEBRIDSTREAM"

// legacyEnv maps the bare variable names the service has always read.
var legacyEnv = map[string]string{
	"port":              "PORT",
	"database_dir":      "DATABASE_DIR",
	"log_level":         "LOG_LEVEL",
	"log_format":        "LOG_FORMAT",
	"log_file":          "LOG_FILE",
	"alldebrid_api_key": "ALLDEBRID_API_KEY",
	"tmdb_api_key":      "TMDB_API_KEY",
}

type Config struct {
	Port        string
	DatabaseDir string

	LogLevel  string
	LogFormat string
	LogFile   string

	AllDebridAPIKey string
	TMDBAPIKey      string

	Search    SearchConfig
	Providers ProvidersConfig
	Debrid    DebridConfig
	Transcode TranscodeConfig
	Proxy     ProxyConfig
	Cleanup   CleanupConfig
	Catalog   CatalogConfig
}

type SearchConfig struct {
	Timeout       time.Duration
	MaxResults    int
	CacheTTL      time.Duration
	CacheSize     int
	SweepInterval time.Duration
}

type ProvidersConfig struct {
	Enabled     []string
	MinInterval map[string]time.Duration
	Mirrors     map[string][]string
	// DirectLinkSearchPath is the search path of the direct-link index, "%s" is the query.
	DirectLinkSearchPath string
}

type DebridConfig struct {
	Retries int
	Backoff time.Duration
	Agent   string
	BaseURL string
}

type TranscodeConfig struct {
	Enabled       bool
	Mode          string
	Dir           string
	FFmpeg        string
	Workers       int
	Retention     time.Duration
	FailedGrace   time.Duration
	HLSContainers []string
}

type ProxyConfig struct {
	AllowedHosts  []string
	HeaderTimeout time.Duration
}

type CleanupConfig struct {
	Schedule  string
	Retention time.Duration
}

type CatalogConfig struct {
	TTL time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", constants.DefaultPort)
	v.SetDefault("database_dir", ".")
	v.SetDefault("log_level", constants.DefaultLogLevel)
	v.SetDefault("log_format", "text")

	v.SetDefault("search.timeout", constants.SearchTimeout)
	v.SetDefault("search.max_results", constants.DefaultMaxResults)
	v.SetDefault("search.cache_ttl", constants.SearchCacheTTL)
	v.SetDefault("search.cache_size", constants.DefaultSearchCacheSize)
	v.SetDefault("search.sweep_interval", constants.CacheSweepInterval)

	v.SetDefault("providers.enabled", constants.AllProviders)
	v.SetDefault("providers.directlinks_search_path", "/?s=%s")

	v.SetDefault("debrid.retries", constants.DebridRetries)
	v.SetDefault("debrid.backoff", constants.DebridBackoff)
	v.SetDefault("debrid.agent", "debridstream")

	v.SetDefault("transcode.enabled", true)
	v.SetDefault("transcode.mode", "remux")
	v.SetDefault("transcode.dir", filepath.Join(os.TempDir(), constants.AppName))
	v.SetDefault("transcode.ffmpeg", "ffmpeg")
	v.SetDefault("transcode.workers", constants.DefaultTranscodeWorkers)
	v.SetDefault("transcode.retention", constants.TranscodeRetention)
	v.SetDefault("transcode.failed_grace", constants.TranscodeFailedKeep)
	v.SetDefault("transcode.hls_containers", []string{".mkv"})

	v.SetDefault("proxy.allowed_hosts", append(append([]string{}, constants.DebridCDNHosts...), hosters.Supported...))
	v.SetDefault("proxy.header_timeout", constants.ProxyHeaderTimeout)

	v.SetDefault("cleanup.schedule", "@every 1h")
	v.SetDefault("cleanup.retention", constants.CleanupRetention)

	v.SetDefault("catalog.ttl", constants.CatalogTTL)
}

// Load reads defaults, then configFile when given, then the environment.
// DEBRIDSTREAM_SEARCH_TIMEOUT overrides search.timeout, and the bare legacy
// names (PORT, LOG_LEVEL, ...) are honored as well.
func Load(configFile string) (*Config, error) {
	return load(viper.New(), configFile)
}

func load(v *viper.Viper, configFile string) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, envPrefix+"_"+strings.ToUpper(key), env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	cfg := &Config{
		Port:            v.GetString("port"),
		DatabaseDir:     v.GetString("database_dir"),
		LogLevel:        strings.ToLower(v.GetString("log_level")),
		LogFormat:       strings.ToLower(v.GetString("log_format")),
		LogFile:         v.GetString("log_file"),
		AllDebridAPIKey: v.GetString("alldebrid_api_key"),
		TMDBAPIKey:      v.GetString("tmdb_api_key"),
		Search: SearchConfig{
			Timeout:       v.GetDuration("search.timeout"),
			MaxResults:    v.GetInt("search.max_results"),
			CacheTTL:      v.GetDuration("search.cache_ttl"),
			CacheSize:     v.GetInt("search.cache_size"),
			SweepInterval: v.GetDuration("search.sweep_interval"),
		},
		Providers: ProvidersConfig{
			Enabled:              lowerAll(stringSlice(v, "providers.enabled")),
			MinInterval:          map[string]time.Duration{},
			Mirrors:              map[string][]string{},
			DirectLinkSearchPath: v.GetString("providers.directlinks_search_path"),
		},
		Debrid: DebridConfig{
			Retries: v.GetInt("debrid.retries"),
			Backoff: v.GetDuration("debrid.backoff"),
			Agent:   v.GetString("debrid.agent"),
			BaseURL: v.GetString("debrid.base_url"),
		},
		Transcode: TranscodeConfig{
			Enabled:       v.GetBool("transcode.enabled"),
			Mode:          strings.ToLower(v.GetString("transcode.mode")),
			Dir:           v.GetString("transcode.dir"),
			FFmpeg:        v.GetString("transcode.ffmpeg"),
			Workers:       v.GetInt("transcode.workers"),
			Retention:     v.GetDuration("transcode.retention"),
			FailedGrace:   v.GetDuration("transcode.failed_grace"),
			HLSContainers: normalizeExtensions(stringSlice(v, "transcode.hls_containers")),
		},
		Proxy: ProxyConfig{
			AllowedHosts:  lowerAll(stringSlice(v, "proxy.allowed_hosts")),
			HeaderTimeout: v.GetDuration("proxy.header_timeout"),
		},
		Cleanup: CleanupConfig{
			Schedule:  v.GetString("cleanup.schedule"),
			Retention: v.GetDuration("cleanup.retention"),
		},
		Catalog: CatalogConfig{
			TTL: v.GetDuration("catalog.ttl"),
		},
	}

	for _, name := range constants.AllProviders {
		cfg.Providers.MinInterval[name] = constants.ProviderMinInterval
		if key := "providers.min_interval." + name; v.IsSet(key) {
			cfg.Providers.MinInterval[name] = v.GetDuration(key)
		}
		if mirrors := stringSlice(v, "providers.mirrors."+name); len(mirrors) > 0 {
			cfg.Providers.Mirrors[name] = mirrors
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate rejects values the services cannot run with.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	positive := map[string]time.Duration{
		"search.timeout":         c.Search.Timeout,
		"search.cache_ttl":       c.Search.CacheTTL,
		"search.sweep_interval":  c.Search.SweepInterval,
		"debrid.backoff":         c.Debrid.Backoff,
		"transcode.retention":    c.Transcode.Retention,
		"transcode.failed_grace": c.Transcode.FailedGrace,
		"proxy.header_timeout":   c.Proxy.HeaderTimeout,
		"cleanup.retention":      c.Cleanup.Retention,
		"catalog.ttl":            c.Catalog.TTL,
	}
	for key, d := range positive {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", key, d)
		}
	}
	if c.Search.MaxResults <= 0 || c.Search.CacheSize <= 0 {
		return fmt.Errorf("search.max_results and search.cache_size must be positive")
	}
	if c.Debrid.Retries < 0 {
		return fmt.Errorf("debrid.retries must not be negative")
	}
	if c.Transcode.Workers <= 0 {
		return fmt.Errorf("transcode.workers must be positive")
	}
	if c.Transcode.Mode != "remux" && c.Transcode.Mode != "transcode" {
		return fmt.Errorf("transcode.mode must be remux or transcode, got %q", c.Transcode.Mode)
	}
	for _, name := range c.Providers.Enabled {
		if !knownProvider(name) {
			return fmt.Errorf("unknown provider %q", name)
		}
	}
	for name, d := range c.Providers.MinInterval {
		if d < 0 {
			return fmt.Errorf("providers.min_interval.%s must not be negative", name)
		}
	}
	return nil
}

// ProviderEnabled reports whether name is in providers.enabled.
func (c *Config) ProviderEnabled(name string) bool {
	for _, p := range c.Providers.Enabled {
		if p == name {
			return true
		}
	}
	return false
}

func knownProvider(name string) bool {
	for _, p := range constants.AllProviders {
		if p == name {
			return true
		}
	}
	return false
}

// stringSlice accepts lists from files and comma or space separated
// environment values.
func stringSlice(v *viper.Viper, key string) []string {
	if s, ok := v.Get(key).(string); ok {
		return strings.FieldsFunc(s, func(r rune) bool { return r == ',' || unicode.IsSpace(r) })
	}
	return v.GetStringSlice(key)
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func normalizeExtensions(in []string) []string {
	out := lowerAll(in)
	for i, ext := range out {
		if !strings.HasPrefix(ext, ".") {
			out[i] = "." + ext
		}
	}
	return out
}
