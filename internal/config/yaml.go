// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"audioviz/internal/log"
)

// DefaultPath is looked up in the working directory when no path is given.
const DefaultPath = "config.yaml"

// LoadConfig loads configuration from the YAML file at path. If path is
// empty, DefaultPath is used when it exists and the built-in defaults
// otherwise. ENV_* overrides are applied last, then the result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat(DefaultPath); err == nil {
			path = DefaultPath
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat %s: %w", DefaultPath, err)
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		log.Debugf("configuration: Loaded %s", path)
	}

	if err := cfg.applyEnvOverrides(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// applyEnvOverrides applies ENV_* variables on top of the file values.
// Malformed values are errors rather than being silently ignored.
func (c *Config) applyEnvOverrides(lookup func(string) (string, bool)) error {
	var errs []error

	str := func(name string, dst *string) {
		if val, ok := lookup(name); ok {
			*dst = val
			log.Debugf("configuration: Overriding %s from env: %s", name, val)
		}
	}
	boolean := func(name string, dst *bool) {
		if val, ok := lookup(name); ok {
			b, err := strconv.ParseBool(val)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = b
			log.Debugf("configuration: Overriding %s from env: %v", name, b)
		}
	}
	integer := func(name string, dst *int) {
		if val, ok := lookup(name); ok {
			n, err := strconv.Atoi(val)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = n
			log.Debugf("configuration: Overriding %s from env: %d", name, n)
		}
	}
	duration := func(name string, dst *time.Duration) {
		if val, ok := lookup(name); ok {
			d, err := time.ParseDuration(val)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = d
			log.Debugf("configuration: Overriding %s from env: %s", name, d)
		}
	}

	boolean("ENV_DEBUG", &c.Debug)
	str("ENV_LOG_LEVEL", &c.LogLevel)

	str("ENV_AUDIO_BACKEND", &c.Audio.Backend)
	integer("ENV_INPUT_DEVICE", &c.Audio.InputDevice)
	str("ENV_DEVICE_NAME", &c.Audio.DeviceName)
	boolean("ENV_MONITOR", &c.Audio.Monitor)
	str("ENV_WAV_FILE", &c.Audio.WAVFile)

	integer("ENV_FFT_RESOLUTION", &c.Analysis.FFTResolution)
	integer("ENV_RESOLUTION", &c.Analysis.Resolution)

	duration("ENV_TICK_INTERVAL", &c.Render.TickInterval)
	str("ENV_WEBSOCKET_ADDR", &c.Render.WebSocketAddr)
	boolean("ENV_UDP_ENABLED", &c.Render.UDPEnabled)
	str("ENV_UDP_TARGET_ADDRESS", &c.Render.UDPTargetAddress)

	boolean("ENV_METRICS_ENABLED", &c.Metrics.Enabled)
	str("ENV_METRICS_ADDR", &c.Metrics.ListenAddr)

	return errors.Join(errs...)
}
