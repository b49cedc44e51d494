package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_LoadMissingFileReturnsDefault(t *testing.T) {
	s, err := NewStore(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)

	cfg, err := s.Load()
	require.NoError(t, err)
	assert.Len(t, cfg.Venues, 4)
	assert.Equal(t, 24*60*60, cfg.GlobalSettings.MaxOrderAgeSeconds)
}

func TestStore_SaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	s, err := NewStore(path)
	require.NoError(t, err)

	cfg := New()
	cfg.AddVenue(VenueConfig{VenueID: "kraken", DisplayName: "Kraken", PermissionLevel: "read_write", Enabled: true})
	cfg.ActiveStrategy = "arbitrage"
	cfg.StrategyParams["symbol"] = "BTC/USDT"

	require.NoError(t, s.Save(cfg))

	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "arbitrage", loaded.ActiveStrategy)

	v, ok := loaded.Venue("kraken")
	require.True(t, ok)
	assert.Equal(t, "read_write", v.PermissionLevel)
}

func TestBotConfig_AddVenueReplacesExisting(t *testing.T) {
	cfg := &BotConfig{}
	cfg.AddVenue(VenueConfig{VenueID: "kraken", DisplayName: "Kraken"})
	cfg.AddVenue(VenueConfig{VenueID: "kraken", DisplayName: "Kraken Pro"})

	require.Len(t, cfg.Venues, 1)
	assert.Equal(t, "Kraken Pro", cfg.Venues[0].DisplayName)
}

func TestBotConfig_RemoveVenue(t *testing.T) {
	cfg := &BotConfig{Venues: DefaultVenues()}
	ok := cfg.RemoveVenue("kraken")
	assert.True(t, ok)

	_, found := cfg.Venue("kraken")
	assert.False(t, found)

	assert.False(t, cfg.RemoveVenue("nonexistent"))
}

func TestToVenueConfig_NormalizesPermissionLevel(t *testing.T) {
	v := VenueConfig{VenueID: "kraken", PermissionLevel: "read_write_withdraw"}
	vc := v.ToVenueConfig()
	assert.Equal(t, "read_write_withdraw", vc.PermissionLevel.String())
}
