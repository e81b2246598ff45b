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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, data string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))
	return path
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig("/does/not/exist")
	require.Error(t, err)
}

func TestReadConfigDefaults(t *testing.T) {
	cfg, err := ReadConfig(writeConfig(t, "ntpbcast.yaml", ""))
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
	require.NoError(t, cfg.Validate())
}

func TestReadConfig(t *testing.T) {
	path := writeConfig(t, "ntpbcast.yaml", `iface: eth1
zonefile: /usr/share/zoneinfo/Europe/Amsterdam
hertz: 50
port: 1123
buffercount: 16
attachfilter: false
freerunning: true
maxsleep: 1h
announcethreshold: 5s
monitoringport: 9999
logfile: /var/log/ntpbcast.log
`)
	cfg, err := ReadConfig(path)
	require.NoError(t, err)
	want := DefaultConfig()
	want.Iface = "eth1"
	want.ZoneFile = "/usr/share/zoneinfo/Europe/Amsterdam"
	want.Hertz = 50
	want.Port = 1123
	want.BufferCount = 16
	want.AttachFilter = false
	want.FreeRunning = true
	want.MaxSleep = time.Hour
	want.AnnounceThreshold = 5 * time.Second
	want.MonitoringPort = 9999
	want.LogFile = "/var/log/ntpbcast.log"
	require.Equal(t, want, cfg)
}

func TestReadConfigStrict(t *testing.T) {
	_, err := ReadConfig(writeConfig(t, "ntpbcast.yaml", "ifcae: eth1\n"))
	require.Error(t, err)
}

func TestReadConfigTOML(t *testing.T) {
	path := writeConfig(t, "ntpbcast.toml", `iface = "eth2"
hertz = 100
step = true
maxsleep = "10m"
`)
	cfg, err := ReadConfig(path)
	require.NoError(t, err)
	want := DefaultConfig()
	want.Iface = "eth2"
	want.Hertz = 100
	want.Step = true
	want.MaxSleep = 10 * time.Minute
	require.Equal(t, want, cfg)
}

func TestReadConfigINI(t *testing.T) {
	path := writeConfig(t, "ntpbcast.ini", `iface = eth3
ZoneFile = /etc/zone
monitoringport = 0
announcethreshold = 2s
`)
	cfg, err := ReadConfig(path)
	require.NoError(t, err)
	want := DefaultConfig()
	want.Iface = "eth3"
	want.ZoneFile = "/etc/zone"
	want.MonitoringPort = 0
	want.AnnounceThreshold = 2 * time.Second
	require.Equal(t, want, cfg)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"iface", func(c *Config) { c.Iface = "" }},
		{"hertz", func(c *Config) { c.Hertz = 0 }},
		{"hertz too big", func(c *Config) { c.Hertz = 1001 }},
		{"port", func(c *Config) { c.Port = 65536 }},
		{"buffers", func(c *Config) { c.BufferCount = 0 }},
		{"sleep", func(c *Config) { c.MaxSleep = 0 }},
		{"sleep too long", func(c *Config) { c.MaxSleep = MaxSleep + time.Second }},
		{"threshold", func(c *Config) { c.AnnounceThreshold = -time.Second }},
		{"threshold fraction", func(c *Config) { c.AnnounceThreshold = 1500 * time.Millisecond }},
		{"monitoring", func(c *Config) { c.MonitoringPort = -1 }},
		{"window", func(c *Config) { c.MetricsAggregationWindow = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.modify(c)
			require.Error(t, c.Validate())
		})
	}
}

func TestPrepareConfig(t *testing.T) {
	path := writeConfig(t, "ntpbcast.yaml", "iface: eth1\nhertz: 50\n")
	flags := DefaultConfig()
	flags.Iface = "eth7"
	flags.Hertz = 100
	flags.Port = 1123

	// only explicitly set flags override the file
	cfg, err := PrepareConfig(path, flags, map[string]bool{"iface": true, "port": true})
	require.NoError(t, err)
	require.Equal(t, "eth7", cfg.Iface)
	require.Equal(t, 50, cfg.Hertz)
	require.Equal(t, 1123, cfg.Port)

	cfg, err = PrepareConfig("", flags, map[string]bool{"hertz": true})
	require.NoError(t, err)
	require.Equal(t, "eth0", cfg.Iface)
	require.Equal(t, 100, cfg.Hertz)

	flags.Hertz = 0
	_, err = PrepareConfig("", flags, map[string]bool{"hertz": true})
	require.Error(t, err)
}
