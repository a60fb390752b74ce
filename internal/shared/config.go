package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
//
// Secret-bearing fields (API keys, tokens, daemon API keys) are read and
// written as plain text in the TOML file; no encryption is applied.
type Config struct {
	Credentials    CredentialsConfig    `toml:"credentials"`
	MediaLibrary   MediaLibraryConfig   `toml:"media_library"`
	TransferDaemon TransferDaemonConfig `toml:"transfer_daemon"`
	Fingerprint    FingerprintConfig    `toml:"fingerprint"`
	Pipeline       PipelineConfig       `toml:"pipeline"`
	Database       DatabaseConfig       `toml:"database"`
	Server         ServerConfig         `toml:"server"`
}

// CredentialsConfig contains external-catalog credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
	YouTube YouTubeConfig `toml:"youtube"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	AccessToken  string `toml:"access_token,omitempty"`
	RefreshToken string `toml:"refresh_token,omitempty"`
}

// YouTubeConfig contains YouTube Music ingestion settings.
type YouTubeConfig struct {
	APIKey      string `toml:"api_key"`
	ProxyURL    string `toml:"proxy_url"`
	HeadersPath string `toml:"headers_path"`
}

// MediaLibraryConfig selects and configures the local-library backend (C4).
// Exactly one of Plex/Jellyfin/Navidrome is active, chosen by Backend.
type MediaLibraryConfig struct {
	Backend   string          `toml:"backend"` // "plex" | "jellyfin" | "navidrome"
	Plex      PlexConfig      `toml:"plex"`
	Jellyfin  JellyfinConfig  `toml:"jellyfin"`
	Navidrome NavidromeConfig `toml:"navidrome"`
}

type PlexConfig struct {
	BaseURL      string `toml:"base_url"`
	Token        string `toml:"token"`
	MusicLibrary string `toml:"music_library"` // section name
}

type JellyfinConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
	UserID  string `toml:"user_id"`
}

type NavidromeConfig struct {
	BaseURL  string `toml:"base_url"`
	Username string `toml:"username"`
	Password string `toml:"password"`
}

// TransferDaemonConfig configures the slskd P2P transfer daemon client (C9).
type TransferDaemonConfig struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	DownloadDir    string `toml:"download_dir"`
	PollIntervalMS int    `toml:"poll_interval_ms"`
}

// FingerprintConfig configures the Chromaprint/AcoustID verifier (C10).
type FingerprintConfig struct {
	Enabled     bool   `toml:"enabled"`
	FpcalcPath  string `toml:"fpcalc_path"` // empty: auto-resolve/auto-download
	AcoustIDKey string `toml:"acoustid_key"`
	MinScore    float64 `toml:"min_score"`
}

// PipelineConfig tunes the orchestrator's worker counts and thresholds.
type PipelineConfig struct {
	AnalysisWorkers      int     `toml:"analysis_workers"`
	ResolveWorkers       int     `toml:"resolve_workers"`
	AcceptThreshold      float64 `toml:"accept_threshold"`
	ReviewThreshold      float64 `toml:"review_threshold"`
	MaxRetries           int     `toml:"max_retries"`
	ScanDebounceMS       int     `toml:"scan_debounce_ms"`
	ConcurrentDownloads  int     `toml:"concurrent_downloads"`  // C8 supervisor slot count, default 3
	QueueStallSeconds    int     `toml:"queue_stall_seconds"`   // default 90
	QualityPreference    string  `toml:"quality_preference"`    // "flac" | "320+ mp3" | "256+ mp3" | "any"
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings for the status/metrics endpoint.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

func (s SpotifyConfig) Map() map[string]string {
	return map[string]string{
		"client_id":     s.ClientID,
		"client_secret": s.ClientSecret,
		"redirect_uri":  s.RedirectURI,
	}
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Expands ~ in file paths to the user's home directory. If a .env file is
// present in the current working directory, it is loaded first so config values referencing
// environment variables (e.g. via shell expansion upstream of this call)
// see the same process environment the rest of the CLI does.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load(ExpandPath(".env"))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.Credentials.YouTube.HeadersPath = ExpandPath(config.Credentials.YouTube.HeadersPath)
	config.Database.Path = ExpandPath(config.Database.Path)
	config.TransferDaemon.DownloadDir = ExpandPath(config.TransferDaemon.DownloadDir)
	config.Fingerprint.FpcalcPath = ExpandPath(config.Fingerprint.FpcalcPath)

	if config.Pipeline.AnalysisWorkers <= 0 {
		config.Pipeline.AnalysisWorkers = 4
	}
	if config.Pipeline.ResolveWorkers <= 0 {
		config.Pipeline.ResolveWorkers = 4
	}
	if config.Pipeline.AcceptThreshold <= 0 {
		config.Pipeline.AcceptThreshold = 0.85
	}
	if config.Pipeline.ReviewThreshold <= 0 {
		config.Pipeline.ReviewThreshold = 0.65
	}
	if config.Pipeline.MaxRetries <= 0 {
		config.Pipeline.MaxRetries = 3
	}
	if config.TransferDaemon.PollIntervalMS <= 0 {
		config.TransferDaemon.PollIntervalMS = 2000
	}
	if config.Pipeline.ConcurrentDownloads <= 0 {
		config.Pipeline.ConcurrentDownloads = 3
	}
	if config.Pipeline.QueueStallSeconds <= 0 {
		config.Pipeline.QueueStallSeconds = 90
	}
	if config.Pipeline.QualityPreference == "" {
		config.Pipeline.QualityPreference = "any"
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, err)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig writes a Config struct to a TOML file at the specified path.
func SaveConfig(path string, config *Config) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open config file for writing: %w", err)
	}
	defer file.Close()

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}
