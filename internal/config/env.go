package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Environment variables that override file settings.
const (
	EnvListen      = "SCHOOLCAL_LISTEN"
	EnvUpstreamURL = "SCHOOLCAL_UPSTREAM_URL"
	EnvLogLevel    = "SCHOOLCAL_LOG_LEVEL"
	EnvUIDDomain   = "SCHOOLCAL_UID_DOMAIN"
)

var validate = validator.New()

// ApplyEnv overrides cfg from envFile (if it exists) and then from the
// process environment, which wins. A missing envFile is not an error.
func (c *Config) ApplyEnv(envFile string) error {
	fileEnv := map[string]string{}
	if envFile != "" {
		m, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			fileEnv = m
		case errors.Is(err, fs.ErrNotExist):
			// optional
		default:
			return fmt.Errorf("read env file %s: %w", envFile, err)
		}
	}

	lookup := func(key string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return fileEnv[key]
	}

	if v := lookup(EnvListen); v != "" {
		c.Listen = v
	}
	if v := lookup(EnvUpstreamURL); v != "" {
		c.Upstream.URL = v
	}
	if v := lookup(EnvLogLevel); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	if v := lookup(EnvUIDDomain); v != "" {
		c.UIDDomain = v
	}
	return nil
}

// Validate checks field constraints declared in struct tags.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
