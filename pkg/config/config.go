package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/brook-video/brook/pkg/telemetry"
	"github.com/brook-video/brook/pkg/webrtc_ext"
)

// SFU configuration.
type Config struct {
	// The address and port to serve HTTP on, e.g. ":8080".
	Listen string `yaml:"listen"`
	// WebRTC configuration (ICE servers, NAT mapping, UDP port range).
	WebRTC webrtc_ext.Config `yaml:"webrtc"`
	// Telemetry (tracing) configuration. Tracing is off when empty.
	Telemetry telemetry.Config `yaml:"telemetry"`
	// Starting from which level to log stuff.
	LogLevel string `yaml:"log"`
}

// Default returns the configuration used when no config is provided at all.
func Default() *Config {
	return &Config{
		Listen:   ":8080",
		LogLevel: "info",
	}
}

// Tries to load a config from the `CONFIG` environment variable.
// If the environment variable is not set, tries to load a config from the
// provided path to the config file (YAML). Returns an error if the config
// could not be loaded.
func LoadConfig(path string) (*Config, error) {
	config, err := LoadConfigFromEnv()
	if err != nil {
		if !errors.Is(err, ErrNoConfigEnvVar) {
			return nil, err
		}

		return LoadConfigFromPath(path)
	}

	return config, nil
}

// ErrNoConfigEnvVar is returned when the CONFIG environment variable is not set.
var ErrNoConfigEnvVar = errors.New("environment variable not set or invalid")

// Tries to load the config from environment variable (`CONFIG`).
func LoadConfigFromEnv() (*Config, error) {
	configEnv := os.Getenv("CONFIG")
	if configEnv == "" {
		return nil, ErrNoConfigEnvVar
	}

	logrus.Info("loading config from environment")

	return LoadConfigFromString(configEnv)
}

// Tries to load a config from the provided path. A missing file is not an
// error, every setting has a workable default.
func LoadConfigFromPath(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logrus.WithField("path", path).Info("no config file, using defaults")
			return Default(), nil
		}

		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	logrus.WithField("path", path).Info("loading config")

	return LoadConfigFromString(string(file))
}

// Load config from the provided string.
// Returns an error if the string is not a valid YAML.
func LoadConfigFromString(configString string) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal([]byte(configString), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML file: %w", err)
	}

	if config.Listen == "" {
		config.Listen = ":8080"
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}

	if min, max := config.WebRTC.PortRange.Min, config.WebRTC.PortRange.Max; max != 0 && min > max {
		return nil, fmt.Errorf("invalid webrtc port range: min %d > max %d", min, max)
	}

	return &config, nil
}
