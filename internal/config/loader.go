package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable trackload reads.
const EnvPrefix = "TRACKLOAD"

// Keys shared by the viper overlay, the cobra flags and the environment.
// TRACKLOAD_EMAIL maps to KeyEmail, TRACKLOAD_REUSE_SESSION to KeyReuseSession.
const (
	KeyName                  = "name"
	KeyHost                  = "host"
	KeyEmail                 = "email"
	KeyPassword              = "password"
	KeyExecutor              = "executor"
	KeyStages                = "stages"
	KeyVUs                   = "vus"
	KeyDuration              = "duration"
	KeyGracefulStop          = "graceful-stop"
	KeyReuseSession          = "reuse-session"
	KeySessionTTL            = "session-ttl"
	KeyContinueOnAuthFailure = "continue-on-auth-failure"
	KeyPointUUID             = "point-uuid"
	KeyUserID                = "user-id"
	KeyTimeout               = "timeout"
	KeyInsecure              = "insecure"
	KeyNoConnectionReuse     = "no-connection-reuse"
	KeyLogLevel              = "log-level"
	KeyLogFormat             = "log-format"
	KeyMetricsAddr           = "metrics-addr"
)

// LoadFile reads a YAML or JSON configuration file on top of Default().
//
// The format is determined by extension (.json is JSON, anything else YAML).
// Fields absent from the file keep their default values.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseConfig(data, path)
}

// ParseConfig parses configuration data on top of Default().
func ParseConfig(data []byte, path string) (*Config, error) {
	cfg := Default()

	// Stages in a file replace the defaults rather than merging with them.
	cfg.Load.Stages = nil

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	if len(cfg.Load.Stages) == 0 && cfg.Load.Executor == ExecutorRampingVUs {
		cfg.Load.Stages = Default().Load.Stages
	}

	return cfg, nil
}

// NewViper returns a viper instance reading TRACKLOAD_* environment variables.
// Callers bind their command-line flags to it before calling Load.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}

// Load builds the effective configuration: defaults, then the file at path
// (if non-empty), then whatever the environment and flags in v set.
func Load(path string, v *viper.Viper) (*Config, error) {
	var cfg *Config
	if path != "" {
		var err error
		if cfg, err = LoadFile(path); err != nil {
			return nil, err
		}
	} else {
		cfg = Default()
	}

	if v != nil {
		if err := Overlay(cfg, v); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Overlay applies every key set in v (by env var or by a changed flag) onto cfg.
func Overlay(cfg *Config, v *viper.Viper) error {
	setString := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	setBool := func(key string, dst *bool) {
		if v.IsSet(key) {
			*dst = v.GetBool(key)
		}
	}
	setDuration := func(key string, dst *Duration) error {
		if !v.IsSet(key) {
			return nil
		}
		d, err := ParseDurationString(v.GetString(key))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = Duration(d)
		return nil
	}

	setString(KeyName, &cfg.Name)
	setString(KeyHost, &cfg.Target.Host)
	setString(KeyEmail, &cfg.Credentials.Email)
	setString(KeyPassword, &cfg.Credentials.Password)
	setString(KeyPointUUID, &cfg.Point.UUID)
	setString(KeyLogLevel, &cfg.Log.Level)
	setString(KeyLogFormat, &cfg.Log.Format)
	setString(KeyMetricsAddr, &cfg.Metrics.Addr)

	setBool(KeyReuseSession, &cfg.Session.Reuse)
	setBool(KeyContinueOnAuthFailure, &cfg.Session.ContinueOnFailure)
	setBool(KeyInsecure, &cfg.HTTP.InsecureSkipVerify)
	setBool(KeyNoConnectionReuse, &cfg.Load.NoConnectionReuse)

	if v.IsSet(KeyUserID) {
		cfg.Point.UserID = v.GetInt64(KeyUserID)
	}

	for key, dst := range map[string]*Duration{
		KeySessionTTL:   &cfg.Session.TTL,
		KeyTimeout:      &cfg.HTTP.Timeout,
		KeyGracefulStop: &cfg.Load.GracefulStop,
		KeyDuration:     &cfg.Load.Duration,
	} {
		if err := setDuration(key, dst); err != nil {
			return err
		}
	}

	// Load shape: explicit stages win, then a VU count, then an explicit executor.
	switch {
	case v.IsSet(KeyStages) && v.GetString(KeyStages) != "":
		stages, err := ParseStages(v.GetString(KeyStages))
		if err != nil {
			return fmt.Errorf("invalid stages format: %w", err)
		}
		cfg.Load.Executor = ExecutorRampingVUs
		cfg.Load.Stages = stages
	case v.IsSet(KeyVUs) && v.GetInt(KeyVUs) > 0:
		cfg.Load.Executor = ExecutorConstantVUs
		cfg.Load.VUs = v.GetInt(KeyVUs)
		if cfg.Load.Duration == 0 {
			cfg.Load.Duration = Duration(30 * time.Second)
		}
	}
	setString(KeyExecutor, &cfg.Load.Executor)

	return nil
}
