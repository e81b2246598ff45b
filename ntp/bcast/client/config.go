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

package client

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-ini/ini"
	log "github.com/sirupsen/logrus"
	yaml "gopkg.in/yaml.v2"

	"github.com/facebook/ntpbcast/ntp/bcast/frame"
	"github.com/facebook/ntpbcast/wallclock"
)

// MaxSleep is the longest time we sleep without checking the clock
const MaxSleep = 32767 * time.Second

// Config specifies ntpbcast run options
type Config struct {
	Iface                    string
	ZoneFile                 string
	Hertz                    int
	Port                     int
	BufferCount              int
	AttachFilter             bool
	FreeRunning              bool
	Step                     bool
	MaxSleep                 time.Duration
	AnnounceThreshold        time.Duration
	MonitoringPort           int
	MetricsAggregationWindow time.Duration
	LogFile                  string
}

// DefaultConfig returns Config initialized with default values
func DefaultConfig() *Config {
	return &Config{
		Iface:                    "eth0",
		ZoneFile:                 "/etc/localtime",
		Hertz:                    wallclock.DefaultHertz,
		Port:                     frame.DefaultPort,
		BufferCount:              frame.DefaultBufferCount,
		AttachFilter:             true,
		MaxSleep:                 MaxSleep,
		AnnounceThreshold:        time.Second,
		MonitoringPort:           4270,
		MetricsAggregationWindow: time.Minute,
	}
}

// Validate config is sane
func (c *Config) Validate() error {
	if c.Iface == "" {
		return fmt.Errorf("iface must be specified")
	}
	if c.Hertz < 1 || c.Hertz > 1000 {
		return fmt.Errorf("hertz must be between 1 and 1000")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if c.BufferCount <= 0 {
		return fmt.Errorf("buffercount must be greater than zero")
	}
	if c.MaxSleep <= 0 || c.MaxSleep > MaxSleep {
		return fmt.Errorf("maxsleep must be greater than zero and at most %v", MaxSleep)
	}
	if c.AnnounceThreshold < 0 {
		return fmt.Errorf("announcethreshold must be 0 or positive")
	}
	// corrections are compared in whole seconds
	if c.AnnounceThreshold%time.Second != 0 {
		return fmt.Errorf("announcethreshold must be a whole number of seconds")
	}
	if c.MonitoringPort < 0 {
		return fmt.Errorf("monitoringport must be 0 or positive")
	}
	if c.MetricsAggregationWindow <= 0 {
		return fmt.Errorf("metricsaggregationwindow must be greater than zero")
	}
	if c.FreeRunning && c.Step {
		log.Warning("step has no effect in free running mode")
	}
	return nil
}

// ReadConfig reads config from the file. Format is picked by extension:
// .toml, .ini, anything else is yaml
func ReadConfig(path string) (*Config, error) {
	c := DefaultConfig()
	cData, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(cData, c)
	case ".ini":
		err = readINI(cData, c)
	default:
		err = yaml.UnmarshalStrict(cData, c)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// readINI maps keys of the default section, names are case insensitive
func readINI(data []byte, c *Config) error {
	f, err := ini.InsensitiveLoad(data)
	if err != nil {
		return err
	}
	f.NameMapper = strings.ToLower
	return f.Section("").MapTo(c)
}

// PrepareConfig prepares final version of config based on defaults, CLI flags and on-disk config, and validates resulting config
func PrepareConfig(cfgPath string, flags *Config, setFlags map[string]bool) (*Config, error) {
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
	if setFlags["iface"] {
		warn("iface")
		cfg.Iface = flags.Iface
	}
	if setFlags["zonefile"] {
		warn("zonefile")
		cfg.ZoneFile = flags.ZoneFile
	}
	if setFlags["hertz"] {
		warn("hertz")
		cfg.Hertz = flags.Hertz
	}
	if setFlags["port"] {
		warn("port")
		cfg.Port = flags.Port
	}
	if setFlags["freerunning"] {
		warn("freerunning")
		cfg.FreeRunning = flags.FreeRunning
	}
	if setFlags["step"] {
		warn("step")
		cfg.Step = flags.Step
	}
	if setFlags["monitoringport"] {
		warn("monitoringport")
		cfg.MonitoringPort = flags.MonitoringPort
	}
	if setFlags["logfile"] {
		warn("logfile")
		cfg.LogFile = flags.LogFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	log.Debugf("config: %+v", cfg)
	return cfg, nil
}
