// Package config loads service configuration from defaults, an optional YAML
// file and the environment, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
}

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Data     DataConfig     `koanf:"data"`
	Analysis AnalysisConfig `koanf:"analysis"`
	Logging  LoggingConfig  `koanf:"logging"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_requests" validate:"min=0"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	UploadDir       string        `koanf:"upload_dir"`
	MaxUploadBytes  int64         `koanf:"max_upload_bytes" validate:"gt=0"`
}

// DataConfig selects where the dataset snapshot is read from.
type DataConfig struct {
	// Driver is csv, postgres or sqlite3.
	Driver string `koanf:"driver" validate:"oneof=csv postgres sqlite3"`
	Path   string `koanf:"path" validate:"required_if=Driver csv"`
	DSN    string `koanf:"dsn" validate:"required_unless=Driver csv"`
	Table  string `koanf:"table" validate:"required_unless=Driver csv"`
}

type AnalysisConfig struct {
	FocusColumn         string   `koanf:"focus_column" validate:"required"`
	DecompositionPeriod int      `koanf:"decomposition_period" validate:"min=1"`
	CorrelationColumns  []string `koanf:"correlation_columns" validate:"min=1"`
	InteractiveColumns  []string `koanf:"interactive_columns" validate:"min=1"`
}

type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8001,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			CORSOrigins:     []string{"http://localhost:3000", "http://127.0.0.1:3000"},
			RateLimitReqs:   120,
			RateLimitWindow: time.Minute,
			UploadDir:       "./uploads",
			MaxUploadBytes:  100 << 20,
		},
		Data: DataConfig{
			Driver: "csv",
			Path:   "air_quality_all.csv",
			Table:  "air_quality",
		},
		Analysis: AnalysisConfig{
			FocusColumn:         "PM10",
			DecompositionPeriod: 24,
			CorrelationColumns:  []string{"PM10", "NO2", "SO2", "CO", "O3", "TEMP", "PRES", "DEWP"},
			InteractiveColumns:  []string{"PM10", "NO2", "PM2.5", "O3"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration: struct defaults, then the YAML file if one
// is found, then environment variables.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := splitListFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	return validator.New(validator.WithRequiredStructEnabled()).Struct(c)
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var envMappings = map[string]string{
	"port":                 "server.port",
	"server_host":          "server.host",
	"server_port":          "server.port",
	"cors_origins":         "server.cors_origins",
	"rate_limit_requests":  "server.rate_limit_requests",
	"rate_limit_window":    "server.rate_limit_window",
	"upload_dir":           "server.upload_dir",
	"data_driver":          "data.driver",
	"data_path":            "data.path",
	"data_dsn":             "data.dsn",
	"data_table":           "data.table",
	"focus_column":         "analysis.focus_column",
	"decomposition_period": "analysis.decomposition_period",
	"correlation_columns":  "analysis.correlation_columns",
	"interactive_columns":  "analysis.interactive_columns",
	"log_level":            "logging.level",
	"log_format":           "logging.format",
	"log_caller":           "logging.caller",
}

// envTransformFunc maps recognised variables to config keys. Everything else
// is dropped so unrelated environment does not leak into the config.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

var listPaths = []string{
	"server.cors_origins",
	"analysis.correlation_columns",
	"analysis.interactive_columns",
}

// splitListFields turns comma separated env values into slices.
func splitListFields(k *koanf.Koanf) error {
	for _, path := range listPaths {
		s, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		var parts []string
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}
