package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultListen    = "127.0.0.1:8080"
	defaultFeedPath  = "/calendar.ics"
	defaultProdID    = "-//schoolcal//School Calendar Feed//EN"
	defaultUIDDomain = "schoolcal.local"
	defaultLogLevel  = "info"
)

// UpstreamConfig describes the school's JSON calendar endpoint.
type UpstreamConfig struct {
	// URL is the events endpoint.
	URL string `yaml:"url" json:"url" validate:"required,url,startswith=http"`
	// Params are fixed query parameters identifying the calendar/view.
	Params map[string]string `yaml:"params" json:"params"`

	StartParam     string `yaml:"start_param" json:"start_param" validate:"required"`
	EndParam       string `yaml:"end_param" json:"end_param" validate:"required"`
	CacheBustParam string `yaml:"cache_bust_param" json:"cache_bust_param" validate:"required"`

	// TimeoutSeconds bounds one upstream request; 0 means no client timeout.
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds" validate:"gte=0"`
}

// Timeout returns TimeoutSeconds as a duration.
func (u UpstreamConfig) Timeout() time.Duration {
	return time.Duration(u.TimeoutSeconds) * time.Second
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the feed endpoint.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen" validate:"required,hostname_port"`

	// FeedPath is the path the iCalendar feed is served on.
	FeedPath string `yaml:"feed_path" json:"feed_path" validate:"required,startswith=/,ne=/health"`

	// CalendarName, if set, is published as X-WR-CALNAME.
	CalendarName string `yaml:"calendar_name" json:"calendar_name"`

	ProdID    string `yaml:"prod_id" json:"prod_id" validate:"required"`
	UIDDomain string `yaml:"uid_domain" json:"uid_domain" validate:"required"`

	// LogLevel is one of debug, info, error.
	LogLevel string `yaml:"log_level" json:"log_level" validate:"oneof=debug info error"`

	// ProbeCron is a cron schedule (e.g. "*/30 * * * *") for the upstream
	// probe. Empty disables probing.
	ProbeCron string `yaml:"probe_cron" json:"probe_cron"`

	Upstream UpstreamConfig `yaml:"upstream" json:"upstream"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration. The upstream
// URL is a placeholder and must be replaced before the service is useful.
func DefaultConfig() *Config {
	return &Config{
		Listen:    defaultListen,
		FeedPath:  defaultFeedPath,
		ProdID:    defaultProdID,
		UIDDomain: defaultUIDDomain,
		LogLevel:  defaultLogLevel,
		Upstream: UpstreamConfig{
			URL:            "https://calendar.example.edu/api/events",
			Params:         map[string]string{},
			StartParam:     "start",
			EndParam:       "end",
			CacheBustParam: "_",
		},
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.FeedPath == "" {
		c.FeedPath = defaultFeedPath
	}
	if c.ProdID == "" {
		c.ProdID = defaultProdID
	}
	if c.UIDDomain == "" {
		c.UIDDomain = defaultUIDDomain
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.Upstream.Params == nil {
		c.Upstream.Params = map[string]string{}
	}
	if c.Upstream.StartParam == "" {
		c.Upstream.StartParam = "start"
	}
	if c.Upstream.EndParam == "" {
		c.Upstream.EndParam = "end"
	}
	if c.Upstream.CacheBustParam == "" {
		c.Upstream.CacheBustParam = "_"
	}
	// Empty credentials disable auth rather than lock everyone out.
	if c.BasicAuth != nil && (c.BasicAuth.Username == "" || c.BasicAuth.Password == "") {
		c.BasicAuth = nil
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is read, normalized and validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the given configuration atomically (temp file + rename) with
// 0600 permissions, creating the parent directory if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".schoolcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}
