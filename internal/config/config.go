package config

import (
	"os"
	"path/filepath"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"

	"github.com/TimelordUK/mtrace/pkg/logformat"
)

// Config holds all application configuration
type Config struct {
	Theme       ThemeConfig      `toml:"theme"`
	LogLevels   LogLevelConfig   `toml:"log_levels"`
	Keybindings KeybindingConfig `toml:"keybindings"`
	Display     DisplayConfig    `toml:"display"`
	Logging     LoggingConfig    `toml:"logging"`
	Settings    SettingsConfig   `toml:"settings"`
	Ingest      IngestConfig     `toml:"ingest"`
}

// ThemeConfig defines color schemes
type ThemeConfig struct {
	Name          string         `toml:"name"`
	LineNumbers   string         `toml:"line_numbers"`
	StatusBar     string         `toml:"status_bar"`
	StatusBarText string         `toml:"status_bar_text"`
	ActiveTab     string         `toml:"active_tab"`
	InactiveTab   string         `toml:"inactive_tab"`
	Highlight     string         `toml:"highlight"`
	Warning       string         `toml:"warning"`
	Levels        LogLevelColors `toml:"levels"`
}

// LogLevelColors defines colors for each log level
type LogLevelColors struct {
	Trace string `toml:"trace"`
	Debug string `toml:"debug"`
	Info  string `toml:"info"`
	Warn  string `toml:"warn"`
	Error string `toml:"error"`
	Fatal string `toml:"fatal"`
}

// LogLevelConfig defines log level detection patterns for text logs
type LogLevelConfig struct {
	TracePatterns []string `toml:"trace_patterns"`
	DebugPatterns []string `toml:"debug_patterns"`
	InfoPatterns  []string `toml:"info_patterns"`
	WarnPatterns  []string `toml:"warn_patterns"`
	ErrorPatterns []string `toml:"error_patterns"`
	FatalPatterns []string `toml:"fatal_patterns"`
}

// Patterns converts the configured patterns for the level detector
func (c *LogLevelConfig) Patterns() logformat.Patterns {
	return logformat.Patterns{
		logformat.LevelTrace: c.TracePatterns,
		logformat.LevelDebug: c.DebugPatterns,
		logformat.LevelInfo:  c.InfoPatterns,
		logformat.LevelWarn:  c.WarnPatterns,
		logformat.LevelError: c.ErrorPatterns,
		logformat.LevelFatal: c.FatalPatterns,
	}
}

// KeybindingConfig allows customizing keybindings
type KeybindingConfig struct {
	Quit       []string `toml:"quit"`
	NextEntry  []string `toml:"next_entry"`
	PrevEntry  []string `toml:"prev_entry"`
	NextTab    []string `toml:"next_tab"`
	PrevTab    []string `toml:"prev_tab"`
	PageUp     []string `toml:"page_up"`
	PageDown   []string `toml:"page_down"`
	Top        []string `toml:"top"`
	Bottom     []string `toml:"bottom"`
	Filter     []string `toml:"filter"`
	Goto       []string `toml:"goto"`
	DarkMode   []string `toml:"dark_mode"`
	SavePreset []string `toml:"save_preset"`
	LoadPreset []string `toml:"load_preset"`
}

// DisplayConfig holds display options
type DisplayConfig struct {
	ShowLineNumbers bool `toml:"show_line_numbers"`
	// WindowHeight is the number of entries a viewer keeps materialised
	WindowHeight int    `toml:"window_height"`
	DarkMode     bool   `toml:"dark_mode"`
	ChromaStyle  string `toml:"chroma_style"`
	// Timezone overrides the zone used to display real timestamps
	Timezone string `toml:"timezone"`
}

// Location resolves the configured timezone; empty means UTC
func (d *DisplayConfig) Location() (*time.Location, error) {
	if d.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(d.Timezone)
}

// LoggingConfig controls diagnostic logging
type LoggingConfig struct {
	Level string `toml:"level"`
	// File receives log output; empty means stderr
	File string `toml:"file"`
}

// SettingsConfig locates the settings store
type SettingsConfig struct {
	// Path of the SQLite settings database; empty keeps settings in memory
	Path string `toml:"path"`
}

// IngestConfig bounds file ingestion
type IngestConfig struct {
	MaxArchiveDepth int `toml:"max_archive_depth"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Theme: ThemeConfig{
			Name:          "subtle",
			LineNumbers:   "240", // Dark gray
			StatusBar:     "236", // Darker gray background
			StatusBarText: "252", // Light gray text
			ActiveTab:     "39",
			InactiveTab:   "244",
			Highlight:     "226", // Yellow
			Warning:       "214",
			Levels: LogLevelColors{
				Trace: "240",
				Debug: "244",
				Info:  "250",
				Warn:  "214",
				Error: "167",
				Fatal: "196",
			},
		},
		LogLevels: LogLevelConfig{
			TracePatterns: []string{"[TRC]", "[TRACE]", "TRACE", " V "},
			DebugPatterns: []string{"[DBG]", "[DEBUG]", "DEBUG", " D "},
			InfoPatterns:  []string{"[INF]", "[INFO]", "INFO", " I "},
			WarnPatterns:  []string{"[WRN]", "[WARN]", "[WARNING]", "WARN", " W "},
			ErrorPatterns: []string{"[ERR]", "[ERROR]", "ERROR", " E "},
			FatalPatterns: []string{"[FTL]", "[FATAL]", "FATAL", "CRITICAL", " F "},
		},
		Keybindings: KeybindingConfig{
			Quit:       []string{"q", "ctrl+c"},
			NextEntry:  []string{"j", "down"},
			PrevEntry:  []string{"k", "up"},
			NextTab:    []string{"tab", "l"},
			PrevTab:    []string{"shift+tab", "h"},
			PageUp:     []string{"b", "pgup", "ctrl+u"},
			PageDown:   []string{"f", "pgdown", "ctrl+d", " "},
			Top:        []string{"g", "home"},
			Bottom:     []string{"G", "end"},
			Filter:     []string{"/"},
			Goto:       []string{":"},
			DarkMode:   []string{"d"},
			SavePreset: []string{"S"},
			LoadPreset: []string{"L"},
		},
		Display: DisplayConfig{
			ShowLineNumbers: true,
			WindowHeight:    200,
			DarkMode:        true,
			ChromaStyle:     "monokai",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Ingest: IngestConfig{
			MaxArchiveDepth: 3,
		},
	}
}

// Load loads config from the default path, falling back to defaults
func Load() (*Config, error) {
	return LoadFrom(getConfigPath())
}

// LoadFrom loads config from path. A missing file yields the defaults.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save saves config to the default path
func Save(cfg *Config) error {
	return SaveTo(cfg, getConfigPath())
}

// SaveTo saves config to path
func SaveTo(cfg *Config, path string) error {
	if path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// getConfigDir returns the mtrace configuration directory
func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "mtrace")
	}

	home, err := homedir.Dir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".config", "mtrace")
}

func getConfigPath() string {
	dir := getConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.toml")
}

// GetConfigPath exports the config path for user reference
func GetConfigPath() string {
	return getConfigPath()
}

// DefaultSettingsPath is where the settings database lives when enabled
func DefaultSettingsPath() string {
	dir := getConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "settings.db")
}
