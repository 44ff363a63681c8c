// Package config handles application configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/joho/godotenv"
)

const (
	appName        = "murmur"
	configFileName = "config.json"
)

// General holds application-level settings.
type General struct {
	LaunchAtStartup bool `json:"launch_at_startup"`
	CheckUpdates    bool `json:"check_updates"`
	FirstRun        bool `json:"first_run"`
}

// Audio holds capture settings. The pipeline always runs 16 kHz mono
// internally; SampleRate is the rate requested from the device.
type Audio struct {
	SampleRate  int     `json:"sample_rate"`
	InputDevice string  `json:"input_device"` // empty = system default
	Gain        float64 `json:"gain"`
	MaxSeconds  int     `json:"max_seconds"` // recording buffer capacity
}

// Transcription selects and tunes the speech-to-text engine.
type Transcription struct {
	Engine    string `json:"engine"`     // local, openai
	Model     string `json:"model"`      // tiny, base, small, medium, large-v3, turbo
	Language  string `json:"language"`   // empty = auto-detect
	Device    string `json:"device"`     // auto, cuda, cpu
	Precision string `json:"precision"`  // auto, float16, int8
	ServerURL string `json:"server_url"` // existing whisper-server; empty = spawn one
}

// Hotkey configures the activation combo.
type Hotkey struct {
	Combo      string `json:"combo"`
	Toggle     bool   `json:"toggle"` // tap to start/stop instead of hold
	MinHoldMs  int    `json:"min_hold_ms"`
	DebounceMs int    `json:"debounce_ms"`
}

// Feedback configures audible cues and the silence monitor.
type Feedback struct {
	SoundEnabled bool    `json:"sound_enabled"`
	SoundVolume  float64 `json:"sound_volume"` // 0.0 to 1.0

	SilenceWarnSec     int `json:"silence_warn_sec"`      // 0 disables the warning
	SilenceAutoStopSec int `json:"silence_auto_stop_sec"` // toggle mode only; 0 disables
}

// History configures the transcript store.
type History struct {
	Enabled       bool `json:"enabled"`
	RetentionDays int  `json:"retention_days"`
	MaxEntries    int  `json:"max_entries"`
}

// Config is the persisted application configuration.
type Config struct {
	General       General       `json:"general"`
	Audio         Audio         `json:"audio"`
	Transcription Transcription `json:"transcription"`
	Hotkey        Hotkey        `json:"hotkey"`
	Feedback      Feedback      `json:"feedback"`
	History       History       `json:"history"`

	path string
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		General: General{
			CheckUpdates: true,
			FirstRun:     true,
		},
		Audio: Audio{
			SampleRate: 16000,
			Gain:       1.0,
			MaxSeconds: 30,
		},
		Transcription: Transcription{
			Engine:    "local",
			Model:     "turbo",
			Language:  "en",
			Device:    "auto",
			Precision: "auto",
		},
		Hotkey: Hotkey{
			Combo:      "ctrl+alt+space",
			MinHoldMs:  150,
			DebounceMs: 300,
		},
		Feedback: Feedback{
			SoundEnabled:       true,
			SoundVolume:        0.5,
			SilenceWarnSec:     8,
			SilenceAutoStopSec: 30,
		},
		History: History{
			Enabled:       true,
			RetentionDays: 30,
			MaxEntries:    10000,
		},
	}
}

// Load reads the config file from the user config directory.
// A missing or corrupted file yields the defaults.
func Load() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, fmt.Errorf("get config path: %w", err)
	}
	return LoadFrom(path)
}

// LoadFrom reads the config from an explicit path.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()
	cfg.path = path

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Unmarshal over the defaults so absent fields keep their default
	// values. A corrupted file falls back to defaults rather than
	// refusing to start.
	if err := json.Unmarshal(data, cfg); err != nil {
		fresh := Default()
		fresh.path = path
		return fresh, nil
	}

	return cfg, nil
}

// Save persists the configuration to disk.
func (c *Config) Save() error {
	path := c.path
	if path == "" {
		var err error
		path, err = configPath()
		if err != nil {
			return fmt.Errorf("get config path: %w", err)
		}
		c.path = path
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// Path reports where the config was loaded from or will be saved to.
func (c *Config) Path() string {
	return c.path
}

// OpenAIKey resolves the OpenAI API key from a .env file next to the
// working directory or from the environment.
func OpenAIKey() string {
	_ = godotenv.Load()
	return os.Getenv("OPENAI_API_KEY")
}

// DataDir returns the platform data directory (history database).
func DataDir() (string, error) {
	if runtime.GOOS == "linux" {
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, appName), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".local", "share", appName), nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appName), nil
}

// ModelDir returns the cache directory for downloaded models.
func ModelDir() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appName, "models"), nil
}

func configPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get user config dir: %w", err)
	}
	return filepath.Join(dir, appName, configFileName), nil
}
