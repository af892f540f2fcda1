/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package controller

import (
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	yaml "gopkg.in/yaml.v2"
)

// Config specifies controller run options
type Config struct {
	RedundantPaths int           `yaml:"redundant_paths"`
	PlanInterval   time.Duration `yaml:"plan_interval"`
	FlowPriority   uint16        `yaml:"flow_priority"`
	FlowCookie     uint64        `yaml:"flow_cookie"`
	HostTTL        time.Duration `yaml:"host_ttl"`
	MonitoringPort int           `yaml:"monitoring_port"`
}

// DefaultConfig returns Config initialized with default values
func DefaultConfig() *Config {
	return &Config{
		RedundantPaths: 3,
		PlanInterval:   5 * time.Second,
		FlowPriority:   10,
		MonitoringPort: 4270,
	}
}

// Validate config is sane
func (c *Config) Validate() error {
	if c.RedundantPaths < 1 {
		return fmt.Errorf("redundant_paths must be at least 1")
	}
	if c.PlanInterval <= 0 {
		return fmt.Errorf("plan_interval must be greater than zero")
	}
	if c.HostTTL < 0 {
		return fmt.Errorf("host_ttl must be 0 or positive")
	}
	if c.HostTTL > 0 && c.HostTTL < c.PlanInterval {
		log.Warningf("host_ttl %v is shorter than plan_interval %v, hosts may be evicted between cycles", c.HostTTL, c.PlanInterval)
	}
	if c.MonitoringPort < 0 {
		return fmt.Errorf("monitoring_port must be 0 or positive")
	}
	return nil
}

// ReadConfig reads config from the file
func ReadConfig(path string) (*Config, error) {
	c := DefaultConfig()
	cData, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	err = yaml.UnmarshalStrict(cData, c)
	if err != nil {
		return nil, err
	}

	return c, nil
}

// PrepareConfig reads config from cfgPath (if set), applies CLI overrides for flags present in setFlags and validates the result
func PrepareConfig(cfgPath string, redundantPaths int, planInterval time.Duration, hostTTL time.Duration, monitoringPort int, setFlags map[string]bool) (*Config, error) {
	cfg := DefaultConfig()
	var err error
	warn := func(name string) {
		log.Warningf("overriding %s from CLI flag", name)
	}
	if cfgPath != "" {
		cfg, err = ReadConfig(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("reading config from %q: %w", cfgPath, err)
		}
	}
	if setFlags["paths"] {
		warn("redundant_paths")
		cfg.RedundantPaths = redundantPaths
	}
	if setFlags["interval"] {
		warn("plan_interval")
		cfg.PlanInterval = planInterval
	}
	if setFlags["hostttl"] {
		warn("host_ttl")
		cfg.HostTTL = hostTTL
	}
	if setFlags["monitoringport"] {
		warn("monitoring_port")
		cfg.MonitoringPort = monitoringPort
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	log.Debugf("config: %+v", cfg)
	return cfg, nil
}
