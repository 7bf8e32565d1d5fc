package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultConfig(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)

	require.Equal(t, "127.0.0.1:3552", cfg.Relay.NodeAddress)
	require.Equal(t, DefaultQueueSize, cfg.Relay.QueueSize)
	require.Equal(t, DefaultAPIPort, cfg.API.Port)
	require.False(t, cfg.MQTT.Enabled)

	_, err = os.Stat(filepath.Join(dir, DefaultConfigFile))
	require.NoError(t, err)
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)

	cfg.Relay.NodeAddress = "198.51.100.7:3552"
	cfg.SetMatch(MatchConfig{
		ID:   42,
		Name: "tournament finals",
		Node: NodeConfig{ID: 7, Name: "eu-1", Location: "Frankfurt", Country: "DE"},
		Slots: []SlotConfig{
			{ID: 1, Name: "grubby", Team: 0, Race: "Orc"},
			{ID: 2, Name: "moon", Team: 1, Race: "Night Elf"},
		},
		LocalSlot: 1,
	})
	require.NoError(t, cfg.Save())

	reloaded, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, "198.51.100.7:3552", reloaded.GetRelay().NodeAddress)

	match := reloaded.GetMatch()
	require.Equal(t, uint32(42), match.ID)
	require.Len(t, match.Slots, 2)
	require.Equal(t, "moon", match.Slots[1].Name)
	require.Equal(t, uint8(1), match.LocalSlot)
}

func TestLoadRejectsMalformedConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte("{not json"), 0644))

	_, err := Load(dir)
	require.Error(t, err)
}

func TestValidateDefaults(t *testing.T) {
	cfg := Default()
	res := Validate(cfg)
	require.True(t, res.IsValid())
	// empty roster is only a warning
	require.NotEmpty(t, res.Warnings)
}

func TestValidateNodeAddress(t *testing.T) {
	cfg := Default()
	cfg.Relay.NodeAddress = ""
	res := Validate(cfg)
	require.False(t, res.IsValid())

	cfg.Relay.NodeAddress = "no-port"
	res = Validate(cfg)
	require.False(t, res.IsValid())
}

func TestValidateRoster(t *testing.T) {
	cfg := Default()
	cfg.Match = MatchConfig{
		ID: 1,
		Slots: []SlotConfig{
			{ID: 1, Name: "a"},
			{ID: 1, Name: "b"},
		},
		LocalSlot: 3,
	}

	res := Validate(cfg)
	require.False(t, res.IsValid())
	require.Len(t, res.Errors, 2) // duplicate slot id + local slot not in roster
}

func TestValidateMQTTRequiresBroker(t *testing.T) {
	cfg := Default()
	cfg.MQTT.Enabled = true
	cfg.MQTT.BrokerURL = ""

	res := Validate(cfg)
	require.False(t, res.IsValid())
}
