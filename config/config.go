/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/tomoncle/bedrock/database"
	"github.com/tomoncle/bedrock/utils"
)

var ErrMissingSetting = errors.New("missing configuration value")

// Config is the root of the YAML document.
type Config struct {
	AppSettings       map[string]string `yaml:"app_settings"`
	ConnectionStrings map[string]string `yaml:"connection_strings"`
	Database          database.Config   `yaml:"database"`
	Logging           Logging           `yaml:"logging"`
}

// Logging configures the named loggers in utils.
type Logging struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"CONSOLE_LOG_FORMAT"` // text or json
}

// Apply sets the level of every registered logger and the output format
// of loggers created afterwards. Empty values are left alone.
func (l Logging) Apply() {
	if l.Format != "" {
		utils.ConfigureConsoleLogFormat(l.Format)
	}
	if l.Level != "" {
		utils.ConfigureLogLevel(l.Level)
	}
}

// environment holds the variables that extend or replace file values.
// APP_SETTINGS="key:value,key2:value2"
// CONNECTION_STRINGS="name=dsn;name2=dsn2"
type environment struct {
	AppSettings       map[string]string `env:"APP_SETTINGS"`
	ConnectionStrings map[string]string `env:"CONNECTION_STRINGS" envSeparator:";" envKeyValSeparator:"="`
}

// Default returns an empty configuration with the database defaults.
func Default() *Config {
	return &Config{
		AppSettings:       map[string]string{},
		ConnectionStrings: map[string]string{},
		Database:          *database.DefaultConfig(),
	}
}

// Load reads the YAML file at path and applies environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML on top of Default and applies environment overrides.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var e environment
	if err := env.Parse(&e); err != nil {
		return fmt.Errorf("failed to apply environment overrides: %w", err)
	}
	if c.AppSettings == nil {
		c.AppSettings = map[string]string{}
	}
	if c.ConnectionStrings == nil {
		c.ConnectionStrings = map[string]string{}
	}
	for k, v := range e.AppSettings {
		c.AppSettings[k] = v
	}
	for k, v := range e.ConnectionStrings {
		c.ConnectionStrings[k] = v
	}

	if err := database.OverrideFromEnv(&c.Database.ConnectionConfig); err != nil {
		return err
	}
	if err := env.Parse(&c.Database.DataMigrateConfig); err != nil {
		return fmt.Errorf("failed to apply migration environment overrides: %w", err)
	}
	if err := env.Parse(&c.Logging); err != nil {
		return fmt.Errorf("failed to apply logging environment overrides: %w", err)
	}
	return nil
}

// AppSetting returns the named app setting.
func (c *Config) AppSetting(key string) (string, bool) {
	v, ok := c.AppSettings[key]
	return v, ok
}

// AppSettingOr returns the named app setting or def when it is not set.
func (c *Config) AppSettingOr(key, def string) string {
	if v, ok := c.AppSettings[key]; ok {
		return v
	}
	return def
}

// ConnectionString returns the named connection string, or
// ErrMissingSetting.
func (c *Config) ConnectionString(name string) (string, error) {
	v, ok := c.ConnectionStrings[name]
	if !ok || v == "" {
		return "", fmt.Errorf("%w: connection string %q", ErrMissingSetting, name)
	}
	return v, nil
}
