package tohost

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testConfig = `---
control:
  port: 4800
capture:
  path: /tmp/tohost.pcap
hooks:
  - name: notify
    command: ["logger", "-t", "tohost"]
stages:
  - name: to-host
    device: eth0
    quiet: true
    allow_nonexistent: true
    up_call: hook.notify up
    down_call: log eth0 went away
    sources: [veth0]
  - name: sniff
    device: "02:00:00:00:00:01"
    sniffers: true
  - name: ns
    sink: netstack
`

func TestParseConfig(t *testing.T) {
	config, err := ParseConfig([]byte(testConfig))
	require.NoError(t, err)

	require.Equal(t, Address, config.Control.Address)
	require.Equal(t, uint16(4800), config.Control.Port)
	require.Equal(t, uint32(Snaplen), config.Capture.Snaplen)
	require.Equal(t, []string{"logger", "-t", "tohost"}, config.Hooks[0].Command)

	require.Len(t, config.Stages, 3)
	require.Equal(t, StageConfig{
		Name:             "to-host",
		Device:           "eth0",
		Quiet:            true,
		AllowNonexistent: true,
		UpCall:           "hook.notify up",
		DownCall:         "log eth0 went away",
		Sink:             SinkKindTap,
		Sources:          []string{"veth0"},
	}, config.Stages[0])
	require.True(t, config.Stages[1].Sniffers)
	require.Equal(t, SinkKindNetstack, config.Stages[2].Sink)
}

func TestParseConfigInvalid(t *testing.T) {
	cases := map[string]string{
		"not-yaml":           "stages: [",
		"no-stage-name":      "stages: [{device: eth0}]",
		"duplicate-stage":    "stages: [{name: a}, {name: a}]",
		"unknown-sink":       "stages: [{name: a, sink: carrier-pigeon}]",
		"sniffers-no-path":   "stages: [{name: a, sniffers: true}]",
		"nonexistent-no-dev": "stages: [{name: a, allow_nonexistent: true}]",
		"hook-no-name":       "hooks: [{command: [/bin/true]}]",
		"hook-no-command":    "hooks: [{name: a}]",
		"duplicate-hook":     "hooks: [{name: a, command: [/bin/true]}, {name: a, command: [/bin/true]}]",
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConfig([]byte(raw))
			require.ErrorIs(t, err, ErrConfig)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tohost.yaml")

	_, err := LoadConfig(path)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o600))

	config, err := LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, config.Stages, 3)
}

func TestConfigsEqual(t *testing.T) {
	a, err := ParseConfig([]byte(testConfig))
	require.NoError(t, err)

	b, err := ParseConfig([]byte(testConfig))
	require.NoError(t, err)

	require.True(t, configsEqual(a, b))

	b.Stages[0].Quiet = false

	require.False(t, configsEqual(a, b))
}
