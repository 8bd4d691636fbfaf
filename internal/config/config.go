package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultAPIVersion   = "v1"
	DefaultTickInterval = 60 * time.Second
	DefaultAPITimeout   = 30 * time.Second
	DefaultLogLevel     = "info"
	DefaultReportTTL    = 24 * time.Hour
)

type Config struct {
	// Scheduler API
	Endpoint   string        // ex: "http://127.0.0.1:4646"
	APIVersion string        // path segment, ex: "v1"
	Token      string        // optional ACL bearer token
	APITimeout time.Duration // open/read/write timeout for each call

	// Loop
	TickInterval            time.Duration // wait between cycles
	Oneshot                 bool          // run one cycle then exit
	SkipEmptyServiceRestart bool          // disable the empty-service sweep
	StrictOrphanLookup      bool          // only a 404 allocation lookup marks a registration as orphan

	// Logging
	LogLevel    string // "debug" | "info" | "warn" | "error"
	PrettyLog   bool   // true => zap dev (color), false => zap prod (JSON)
	VerboseMode bool   // dump full request/response bodies at debug level

	// Status server (continuous mode only, empty = disabled)
	ListenAddr   string   // ex: ":9464"
	AllowedCIDRs []string // IPs/CIDRs allowed on /status and /metrics, empty = everyone

	// Report sink (empty addr = disabled)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	ReportTTL     time.Duration
}

// fileConfig mirrors Config for the optional YAML file. Env always wins over it.
type fileConfig struct {
	Endpoint                string   `yaml:"endpoint"`
	APIVersion              string   `yaml:"api_version"`
	Token                   string   `yaml:"token"`
	APITimeout              int      `yaml:"api_timeout"`
	TickInterval            int      `yaml:"tick_interval"`
	Oneshot                 *bool    `yaml:"oneshot"`
	SkipEmptyServiceRestart *bool    `yaml:"skip_empty_service_restart"`
	StrictOrphanLookup      *bool    `yaml:"strict_orphan_lookup"`
	LogLevel                string   `yaml:"log_level"`
	PrettyLog               *bool    `yaml:"pretty_log"`
	VerboseMode             *bool    `yaml:"verbose_mode"`
	ListenAddr              string   `yaml:"listen_addr"`
	AllowedCIDRs            []string `yaml:"allowed_cidrs"`
	Redis                   struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"report_ttl"`
	} `yaml:"redis"`
}

// Load builds the configuration from the optional YAML file named by
// NOMAD_RECONCILER_CONFIG and the environment, then validates it.
func Load() (*Config, error) {
	cfg := defaults()

	if path := getenv("NOMAD_RECONCILER_CONFIG", ""); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		APIVersion:   DefaultAPIVersion,
		APITimeout:   DefaultAPITimeout,
		TickInterval: DefaultTickInterval,
		LogLevel:     DefaultLogLevel,
		ReportTTL:    DefaultReportTTL,
	}
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &Error{Key: "NOMAD_RECONCILER_CONFIG", Value: path, Reason: "cannot read config file", Err: err}
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return &Error{Key: "NOMAD_RECONCILER_CONFIG", Value: path, Reason: "invalid yaml", Err: err}
	}

	setString(&c.Endpoint, fc.Endpoint)
	setString(&c.APIVersion, fc.APIVersion)
	setString(&c.Token, fc.Token)
	setString(&c.LogLevel, fc.LogLevel)
	setString(&c.ListenAddr, fc.ListenAddr)
	setString(&c.RedisAddr, fc.Redis.Addr)
	setString(&c.RedisPassword, fc.Redis.Password)
	if fc.APITimeout > 0 {
		c.APITimeout = time.Duration(fc.APITimeout) * time.Second
	}
	if fc.TickInterval > 0 {
		c.TickInterval = time.Duration(fc.TickInterval) * time.Second
	}
	if len(fc.AllowedCIDRs) > 0 {
		c.AllowedCIDRs = fc.AllowedCIDRs
	}
	setBool(&c.Oneshot, fc.Oneshot)
	setBool(&c.SkipEmptyServiceRestart, fc.SkipEmptyServiceRestart)
	setBool(&c.StrictOrphanLookup, fc.StrictOrphanLookup)
	setBool(&c.PrettyLog, fc.PrettyLog)
	setBool(&c.VerboseMode, fc.VerboseMode)
	if fc.Redis.DB > 0 {
		c.RedisDB = fc.Redis.DB
	}
	if fc.Redis.TTL != "" {
		if d, err := time.ParseDuration(fc.Redis.TTL); err == nil {
			c.ReportTTL = d
		}
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Endpoint = strings.TrimRight(getenv("NOMAD_ENDPOINT", c.Endpoint), "/")
	c.APIVersion = getenv("NOMAD_VERSION", c.APIVersion)
	c.Token = getenv("NOMAD_TOKEN", c.Token)
	c.APITimeout = mustSeconds("NOMAD_API_TIMEOUT", c.APITimeout)

	c.TickInterval = mustSeconds("NOMAD_RUNNER_INTERVAL", c.TickInterval)
	c.Oneshot = mustBool("ONESHOT", c.Oneshot)
	c.SkipEmptyServiceRestart = mustBool("NOMAD_IGNORE_RESTART_EMPTY_SERVICES", c.SkipEmptyServiceRestart)
	c.StrictOrphanLookup = mustBool("NOMAD_STRICT_ORPHAN_LOOKUP", c.StrictOrphanLookup)

	c.LogLevel = getenv("LOGGER_LEVEL", c.LogLevel)
	c.PrettyLog = mustBool("PRETTY_LOG", c.PrettyLog)
	c.VerboseMode = mustBool("VERBOSE_MODE", c.VerboseMode)

	c.ListenAddr = getenv("NOMAD_RECONCILER_LISTEN_ADDR", c.ListenAddr)
	c.AllowedCIDRs = getenvList("NOMAD_RECONCILER_ALLOWED_CIDRS", c.AllowedCIDRs)

	c.RedisAddr = getenv("NOMAD_RECONCILER_REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getenv("NOMAD_RECONCILER_REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = getenvInt("NOMAD_RECONCILER_REDIS_DB", c.RedisDB)
	c.ReportTTL = mustDuration("NOMAD_RECONCILER_REPORT_TTL", c.ReportTTL)
}

// Validate checks the settings that cannot fall back to a default.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return &Error{Key: "NOMAD_ENDPOINT", Reason: "missing required setting"}
	}
	if err := ValidateEndpoint(c.Endpoint); err != nil {
		return &Error{Key: "NOMAD_ENDPOINT", Value: c.Endpoint, Reason: "invalid endpoint", Err: err}
	}
	if c.APIVersion == "" {
		return &Error{Key: "NOMAD_VERSION", Reason: "must not be empty"}
	}
	if c.TickInterval <= 0 {
		return &Error{Key: "NOMAD_RUNNER_INTERVAL", Value: c.TickInterval.String(), Reason: "must be > 0"}
	}
	if c.APITimeout <= 0 {
		return &Error{Key: "NOMAD_API_TIMEOUT", Value: c.APITimeout.String(), Reason: "must be > 0"}
	}
	return nil
}

// ValidateEndpoint accepts absolute http(s) URLs with a host.
func ValidateEndpoint(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

// HasToken reports whether a non-empty ACL token was configured.
func (c *Config) HasToken() bool { return c.Token != "" }

// Redacted returns a copy safe to log.
func (c *Config) Redacted() Config {
	cp := *c
	if cp.Token != "" {
		cp.Token = "***REDACTED***"
	}
	if cp.RedisPassword != "" {
		cp.RedisPassword = "***REDACTED***"
	}
	return cp
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

// mustSeconds reads a plain integer as seconds, falling back to Go duration syntax ("90s").
func mustSeconds(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return time.Duration(i) * time.Second
		}
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
