// Copyright 2026 FluxBus
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"fluxbus/platform/bus"
)

// Config is the runtime configuration, read from the environment.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string
	CORSOrigins []string
	StaticPath  string
}

// ConfigFromEnv reads configuration with defaults suitable for local
// development. DATABASE_URL and REDIS_URL are optional; when empty the
// audit archive and registry mirror are not wired.
func ConfigFromEnv() Config {
	return Config{
		Port:        getEnv("PORT", "5010"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		CORSOrigins: splitOrigins(getEnv("CORS_ORIGINS", "*")),
		StaticPath:  os.Getenv("ESB_CONFIG_FILE"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitOrigins(raw string) []string {
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			origins = append(origins, p)
		}
	}
	return origins
}

// StaticConfig is the optional YAML file of registrations applied at
// startup, repopulating the registry the way services re-register after
// a restart.
type StaticConfig struct {
	Services []struct {
		Name     string `yaml:"name"`
		Endpoint string `yaml:"endpoint"`
	} `yaml:"services"`
	Transformers []struct {
		From   string `yaml:"from"`
		To     string `yaml:"to"`
		Preset string `yaml:"preset"`
	} `yaml:"transformers"`
}

// LoadStaticConfig parses the YAML file at path. Malformed YAML or
// invalid entries are startup failures, not warnings.
func LoadStaticConfig(path string) (*StaticConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg StaticConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	for i, svc := range cfg.Services {
		if svc.Name == "" || svc.Endpoint == "" {
			return nil, fmt.Errorf("config file %s: services[%d] is missing name or endpoint", path, i)
		}
	}
	for i, tr := range cfg.Transformers {
		if tr.From == "" || tr.To == "" {
			return nil, fmt.Errorf("config file %s: transformers[%d] is missing from or to", path, i)
		}
		if _, ok := bus.Preset(tr.Preset); !ok {
			return nil, fmt.Errorf("config file %s: transformers[%d] names unknown preset %q (known: %s)",
				path, i, tr.Preset, strings.Join(bus.PresetNames(), ", "))
		}
	}
	return &cfg, nil
}

// Apply registers the file's services and transformer presets on the
// router.
func (c *StaticConfig) Apply(router *bus.Router) {
	for _, svc := range c.Services {
		router.Services().Register(svc.Name, svc.Endpoint)
	}
	for _, tr := range c.Transformers {
		fn, _ := bus.Preset(tr.Preset)
		router.Transformers().Register(tr.From, tr.To, fn)
	}
}
