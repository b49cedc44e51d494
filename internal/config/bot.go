// Package config holds the bot's persisted configuration: known venues,
// the active strategy selection, and global settings. Ground on original
// config.py's TradingBotConfig/ExchangeConfig, rewritten as JSON (not
// YAML, to match the control plane's JSON body format from spec section
// 6) with atomic-rewrite-on-save per the same module's save()/load() pair.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sawpanic/tradebot/internal/venue"
)

// VenueConfig is the on-disk shape of one venue's identity, credentials
// and permission grant. It mirrors venue.Config but keeps its own copy so
// the wire/file format doesn't silently change if venue.Config gains
// runtime-only fields.
type VenueConfig struct {
	VenueID         string            `json:"venue_id"`
	DisplayName     string            `json:"display_name"`
	APIKey          string            `json:"api_key"`
	APISecret       string            `json:"api_secret"`
	Password        *string           `json:"password,omitempty"`
	PermissionLevel string            `json:"permission_level"`
	Enabled         bool              `json:"enabled"`
	TestMode        bool              `json:"test_mode"`
	Extra           map[string]string `json:"extra,omitempty"`
}

// ToVenueConfig converts the persisted shape to venue.Config, normalizing
// the permission-level string into its typed enum.
func (v VenueConfig) ToVenueConfig() venue.Config {
	cfg := venue.Config{
		VenueID:          v.VenueID,
		DisplayName:      v.DisplayName,
		APIKey:           v.APIKey,
		APISecret:        v.APISecret,
		Password:         v.Password,
		PermissionLevelS: v.PermissionLevel,
		Enabled:          v.Enabled,
		TestMode:         v.TestMode,
		Extra:            v.Extra,
	}
	cfg.Normalize()
	return cfg
}

// FromVenueConfig builds the persisted shape from a live venue.Config.
func FromVenueConfig(cfg venue.Config) VenueConfig {
	return VenueConfig{
		VenueID:         cfg.VenueID,
		DisplayName:     cfg.DisplayName,
		APIKey:          cfg.APIKey,
		APISecret:       cfg.APISecret,
		Password:        cfg.Password,
		PermissionLevel: cfg.PermissionLevel.String(),
		Enabled:         cfg.Enabled,
		TestMode:        cfg.TestMode,
		Extra:           cfg.Extra,
	}
}

// GlobalSettings carries the bot-wide defaults from original config.py's
// TradingBotConfig.global_settings dict, given fixed Go fields instead of
// an untyped map so callers get compile-time field names.
type GlobalSettings struct {
	LogLevel                  string  `json:"log_level"`
	MaxOrderAgeSeconds         int     `json:"max_order_age_seconds"`
	DefaultOrderRefreshTime    int     `json:"default_order_refresh_time"`
	DefaultOrderAmount         float64 `json:"default_order_amount"`
	DefaultMarket              string  `json:"default_market"`
	DefaultLeverage            int     `json:"default_leverage"`
	DefaultPositionMode        string  `json:"default_position_mode"`
	DefaultSlippageTolerance   float64 `json:"default_slippage_tolerance"`
}

// DefaultGlobalSettings matches original config.py's inline default dict.
func DefaultGlobalSettings() GlobalSettings {
	return GlobalSettings{
		LogLevel:                 "info",
		MaxOrderAgeSeconds:       24 * 60 * 60,
		DefaultOrderRefreshTime:  60,
		DefaultOrderAmount:       0.01,
		DefaultMarket:            "BTC/USDT",
		DefaultLeverage:          1,
		DefaultPositionMode:      "one-way",
		DefaultSlippageTolerance: 0.01,
	}
}

// BotConfig is the full persisted root object from spec section 6:
// {exchanges, active_strategy, strategy_params, global_settings}.
type BotConfig struct {
	Venues         []VenueConfig          `json:"exchanges"`
	ActiveStrategy string                 `json:"active_strategy,omitempty"`
	StrategyParams map[string]any         `json:"strategy_params"`
	GlobalSettings GlobalSettings         `json:"global_settings"`
}

// DefaultVenues mirrors original config.py's DEFAULT_EXCHANGES seed list.
func DefaultVenues() []VenueConfig {
	seed := []struct {
		id, name string
	}{
		{"xeggex", "XeggeX"},
		{"kraken", "Kraken"},
		{"binance", "Binance"},
		{"tradeogre", "TradeOgre"},
	}
	out := make([]VenueConfig, 0, len(seed))
	for _, s := range seed {
		out = append(out, VenueConfig{
			VenueID:         s.id,
			DisplayName:     s.name,
			PermissionLevel: "read_only",
			Enabled:         true,
		})
	}
	return out
}

// New returns a fresh configuration seeded with the default venue list and
// global settings, matching original initialize_default_config's
// fallback path when no file exists yet.
func New() *BotConfig {
	return &BotConfig{
		Venues:         DefaultVenues(),
		StrategyParams: make(map[string]any),
		GlobalSettings: DefaultGlobalSettings(),
	}
}

// AddVenue inserts or replaces a venue configuration by venue_id.
func (c *BotConfig) AddVenue(v VenueConfig) {
	for i, existing := range c.Venues {
		if existing.VenueID == v.VenueID {
			c.Venues[i] = v
			return
		}
	}
	c.Venues = append(c.Venues, v)
}

// RemoveVenue deletes a venue configuration by venue_id, reporting whether
// one was found.
func (c *BotConfig) RemoveVenue(venueID string) bool {
	for i, v := range c.Venues {
		if v.VenueID == venueID {
			c.Venues = append(c.Venues[:i], c.Venues[i+1:]...)
			return true
		}
	}
	return false
}

// Venue looks up one venue configuration by id.
func (c *BotConfig) Venue(venueID string) (VenueConfig, bool) {
	for _, v := range c.Venues {
		if v.VenueID == venueID {
			return v, true
		}
	}
	return VenueConfig{}, false
}

// Store persists and retrieves a BotConfig from a single JSON file,
// rewriting it atomically (temp file + rename) on every Save, ground on
// the teacher's care around not leaving a half-written file behind on
// crash mid-write (internal/persistence/postgres write-ahead discipline,
// applied here to the filesystem instead of a database).
type Store struct {
	path string
}

// NewStore binds a Store to a file path, creating its parent directory if
// necessary.
func NewStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create config dir: %w", err)
		}
	}
	return &Store{path: path}, nil
}

// Load reads the configuration file, returning a fresh default
// configuration if it does not yet exist.
func (s *Store) Load() (*BotConfig, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg BotConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.StrategyParams == nil {
		cfg.StrategyParams = make(map[string]any)
	}
	return &cfg, nil
}

// Save writes the configuration as indented JSON, via a temp file in the
// same directory followed by an atomic rename, so a reader never observes
// a partially written file.
func (s *Store) Save(cfg *BotConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".config-*.json.tmp")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp config: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename config into place: %w", err)
	}
	return nil
}
