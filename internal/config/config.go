// file: internal/config/config.go
// version: 2.0.0
// guid: 7b8c9d0e-1f2a-3b4c-5d6e-7f8a9b0c1d2e

package config

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// ServerConfig mirrors internal/server.ServerConfig; duplicated here
// (rather than imported) to keep internal/config free of a dependency
// on internal/server, the way the teacher keeps internal/config free of
// internal/server imports.
type ServerConfig struct {
	Host              string `json:"host"`
	Port              string `json:"port"`
	ReadTimeout       string `json:"read_timeout"`
	WriteTimeout      string `json:"write_timeout"`
	IdleTimeout       string `json:"idle_timeout"`
	BasicAuthUsername string `json:"basic_auth_username"`
	BasicAuthPassHash string `json:"basic_auth_pass_hash"`
	RateLimitPerMin   int    `json:"rate_limit_per_minute"`
}

// TranscodeConfig holds the encoder invocation defaults (spec §4.9).
type TranscodeConfig struct {
	AACBitrateKbps int    `json:"aac_bitrate_kbps"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	FFmpegPath     string `json:"ffmpeg_path"`
}

// ChecksumConfig selects the device's signing scheme and carries its
// device-bound secrets (spec §4.4). Keys are stored hex-encoded in the
// config file and on disk, never raw.
type ChecksumConfig struct {
	Scheme     string `json:"scheme"` // "none", "hash58", "hash72", "both"
	HMACKeyHex string `json:"hmac_key_hex"`
	IVHex      string `json:"iv_hex"`
	NonceHex   string `json:"nonce_hex"`
}

// WriteBackConfig controls the optional PC-file play-count/rating
// write-back (spec §4.10 "Play count write-back to PC").
type WriteBackConfig struct {
	Enabled bool `json:"enabled"`
}

// Config holds application configuration.
type Config struct {
	// Core paths
	MountPoint         string `json:"mount_point"`
	PCLibraryRoot      string `json:"pc_library_root"`
	MappingPath        string `json:"mapping_path"`
	SyncLogPath        string `json:"sync_log_path"`
	TranscodeCacheDir  string `json:"transcode_cache_dir"`
	SearchIndexDir     string `json:"search_index_dir"`
	ItunesDBPath       string `json:"itunesdb_path"`
	ArtworkDBPath      string `json:"artworkdb_path"`
	PrefsBinPath       string `json:"prefs_bin_path"`
	PrefsPlistPath     string `json:"prefs_plist_path"`
	SetupComplete      bool   `json:"setup_complete"`

	// Device identity, spec §4.10 "foreign sync detection"
	LibraryLinkID uint64 `json:"library_link_id"`
	SyncUsername  string `json:"sync_username"`
	SyncHostname  string `json:"sync_hostname"`

	// Scanning
	AutoScanEnabled         bool     `json:"auto_scan_enabled"`
	AutoScanDebounceSeconds int      `json:"auto_scan_debounce_seconds"`
	SupportedExtensions     []string `json:"supported_extensions"`
	ExcludePatterns         []string `json:"exclude_patterns"`

	// Fingerprinting
	FingerprintBinaryPath string `json:"fingerprint_binary_path"`

	// Checksum / transcode / write-back
	Checksum  ChecksumConfig  `json:"checksum"`
	Transcode TranscodeConfig `json:"transcode"`
	WriteBack WriteBackConfig `json:"write_back"`

	// Performance
	WorkerCount             int `json:"worker_count"`
	OperationTimeoutMinutes int `json:"operation_timeout_minutes"`

	// API limits
	APIRateLimitPerMinute int  `json:"api_rate_limit_per_minute"`
	JSONBodyLimitMB       int  `json:"json_body_limit_mb"`
	EnableAuth            bool `json:"enable_auth"`

	// Logging
	LogLevel  string `json:"log_level"`  // 'debug', 'info', 'warn', 'error'
	LogFormat string `json:"log_format"` // 'text' or 'json'

	// Status/progress HTTP API
	Server ServerConfig `json:"server"`
}

var AppConfig Config

// defaultLibraryLinkID derives a stable per-host library-owner id the
// same way the original implementation does (`generate_library_id` in
// SyncEngine/itunes_prefs.py): sha256("iOpenPod:"+hostname), keeping the
// first 8 bytes as a big-endian uint64. Two runs on the same machine
// always agree, and a zero result (empty/unreadable hostname) is left
// to collide with the device's own zero "never synced" sentinel rather
// than guessed at further.
func defaultLibraryLinkID() uint64 {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		return 0
	}
	sum := sha256.Sum256([]byte("iOpenPod:" + hostname))
	return binary.BigEndian.Uint64(sum[:8])
}

// libraryLinkID returns the configured library_link_id, or a
// hostname-derived default when it is unset (0 is not a value an
// operator would deliberately choose: it is the device's own "never
// synced" sentinel, spec §4.10 "protect from iTunes").
func libraryLinkID() uint64 {
	if id := uint64(viper.GetInt64("library_link_id")); id != 0 {
		return id
	}
	return defaultLibraryLinkID()
}

// InitConfig initializes the application configuration.
func InitConfig() {
	viper.SetDefault("mount_point", "")
	viper.SetDefault("pc_library_root", "")
	viper.SetDefault("mapping_path", "iOpenPod.json")
	viper.SetDefault("sync_log_path", "ipodsync.sqlite")
	viper.SetDefault("transcode_cache_dir", "transcode-cache")
	viper.SetDefault("search_index_dir", "search-index.bleve")
	viper.SetDefault("itunesdb_path", "iPod_Control/iTunes/iTunesDB")
	viper.SetDefault("artworkdb_path", "iPod_Control/Artwork/ArtworkDB")
	viper.SetDefault("prefs_bin_path", "iPod_Control/iTunes/iTunesPrefs")
	viper.SetDefault("prefs_plist_path", "iPod_Control/iTunes/iTunesPrefs.plist")
	viper.SetDefault("setup_complete", false)

	viper.SetDefault("library_link_id", 0)
	viper.SetDefault("sync_username", "")
	viper.SetDefault("sync_hostname", "")

	viper.SetDefault("auto_scan_enabled", false)
	viper.SetDefault("auto_scan_debounce_seconds", 30)
	viper.SetDefault("supported_extensions", []string{
		".mp3", ".m4a", ".m4b", ".aac", ".aiff", ".wav",
	})
	viper.SetDefault("exclude_patterns", []string{})

	viper.SetDefault("fingerprint_binary_path", "fpcalc")

	viper.SetDefault("checksum.scheme", "none")
	viper.SetDefault("checksum.hmac_key_hex", "")
	viper.SetDefault("checksum.iv_hex", "")
	viper.SetDefault("checksum.nonce_hex", "")

	viper.SetDefault("transcode.aac_bitrate_kbps", 256)
	viper.SetDefault("transcode.timeout_seconds", 300)
	viper.SetDefault("transcode.ffmpeg_path", "ffmpeg")

	viper.SetDefault("write_back.enabled", false)

	viper.SetDefault("worker_count", 0)
	viper.SetDefault("operation_timeout_minutes", 30)

	viper.SetDefault("api_rate_limit_per_minute", 120)
	viper.SetDefault("json_body_limit_mb", 1)
	viper.SetDefault("enable_auth", false)

	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "text")

	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", "8787")
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "15s")
	viper.SetDefault("server.idle_timeout", "60s")
	viper.SetDefault("server.basic_auth_username", "")
	viper.SetDefault("server.basic_auth_pass_hash", "")
	viper.SetDefault("server.rate_limit_per_minute", 120)

	supportedExtensions := []string{".mp3", ".m4a", ".m4b", ".aac", ".aiff", ".wav"}
	if viper.IsSet("supported_extensions") {
		supportedExtensions = viper.GetStringSlice("supported_extensions")
	}

	AppConfig = Config{
		MountPoint:        viper.GetString("mount_point"),
		PCLibraryRoot:     viper.GetString("pc_library_root"),
		MappingPath:       viper.GetString("mapping_path"),
		SyncLogPath:       viper.GetString("sync_log_path"),
		TranscodeCacheDir: viper.GetString("transcode_cache_dir"),
		SearchIndexDir:    viper.GetString("search_index_dir"),
		ItunesDBPath:      viper.GetString("itunesdb_path"),
		ArtworkDBPath:     viper.GetString("artworkdb_path"),
		PrefsBinPath:      viper.GetString("prefs_bin_path"),
		PrefsPlistPath:    viper.GetString("prefs_plist_path"),
		SetupComplete:     viper.GetBool("setup_complete"),

		LibraryLinkID: libraryLinkID(),
		SyncUsername:  viper.GetString("sync_username"),
		SyncHostname:  viper.GetString("sync_hostname"),

		AutoScanEnabled:         viper.GetBool("auto_scan_enabled"),
		AutoScanDebounceSeconds: viper.GetInt("auto_scan_debounce_seconds"),
		SupportedExtensions:     supportedExtensions,
		ExcludePatterns:         viper.GetStringSlice("exclude_patterns"),

		FingerprintBinaryPath: viper.GetString("fingerprint_binary_path"),

		Checksum: ChecksumConfig{
			Scheme:     viper.GetString("checksum.scheme"),
			HMACKeyHex: viper.GetString("checksum.hmac_key_hex"),
			IVHex:      viper.GetString("checksum.iv_hex"),
			NonceHex:   viper.GetString("checksum.nonce_hex"),
		},
		Transcode: TranscodeConfig{
			AACBitrateKbps: viper.GetInt("transcode.aac_bitrate_kbps"),
			TimeoutSeconds: viper.GetInt("transcode.timeout_seconds"),
			FFmpegPath:     viper.GetString("transcode.ffmpeg_path"),
		},
		WriteBack: WriteBackConfig{
			Enabled: viper.GetBool("write_back.enabled"),
		},

		WorkerCount:             viper.GetInt("worker_count"),
		OperationTimeoutMinutes: viper.GetInt("operation_timeout_minutes"),

		APIRateLimitPerMinute: viper.GetInt("api_rate_limit_per_minute"),
		JSONBodyLimitMB:       viper.GetInt("json_body_limit_mb"),
		EnableAuth:            viper.GetBool("enable_auth"),

		LogLevel:  viper.GetString("log_level"),
		LogFormat: viper.GetString("log_format"),

		Server: ServerConfig{
			Host:              viper.GetString("server.host"),
			Port:              viper.GetString("server.port"),
			ReadTimeout:       viper.GetString("server.read_timeout"),
			WriteTimeout:      viper.GetString("server.write_timeout"),
			IdleTimeout:       viper.GetString("server.idle_timeout"),
			BasicAuthUsername: viper.GetString("server.basic_auth_username"),
			BasicAuthPassHash: viper.GetString("server.basic_auth_pass_hash"),
			RateLimitPerMin:   viper.GetInt("server.rate_limit_per_minute"),
		},
	}
}

// HMACKeyBytes decodes the configured hex-encoded HMAC key, returning
// nil (not an error) when unset, matching checksum.HashKeys' zero value.
func (c ChecksumConfig) HMACKeyBytes() ([]byte, error) { return decodeHexOrEmpty(c.HMACKeyHex) }

// IVBytes decodes the configured hex-encoded HASH72 IV.
func (c ChecksumConfig) IVBytes() ([]byte, error) { return decodeHexOrEmpty(c.IVHex) }

// NonceBytes decodes the configured hex-encoded HASH72 nonce.
func (c ChecksumConfig) NonceBytes() ([]byte, error) { return decodeHexOrEmpty(c.NonceHex) }

func decodeHexOrEmpty(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return hex.DecodeString(s)
}

func validateParentDirExists(path string, field string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	parent := filepath.Dir(path)
	info, err := os.Stat(parent)
	if err != nil {
		return fmt.Errorf("%s parent directory %q does not exist", field, parent)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s parent path %q is not a directory", field, parent)
	}
	return nil
}

// Validate performs structural checks on runtime configuration values.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}

	var errs []string

	if strings.TrimSpace(c.MountPoint) == "" {
		errs = append(errs, "mount_point must be set")
	} else if info, err := os.Stat(c.MountPoint); err != nil || !info.IsDir() {
		errs = append(errs, fmt.Sprintf("mount_point %q is not a directory", c.MountPoint))
	}

	if strings.TrimSpace(c.PCLibraryRoot) != "" {
		if info, err := os.Stat(c.PCLibraryRoot); err != nil || !info.IsDir() {
			errs = append(errs, fmt.Sprintf("pc_library_root %q is not a directory", c.PCLibraryRoot))
		}
	}

	if err := validateParentDirExists(c.SyncLogPath, "sync_log_path"); err != nil {
		errs = append(errs, err.Error())
	}

	switch c.Checksum.Scheme {
	case "none", "hash58", "hash72", "both", "":
	default:
		errs = append(errs, "checksum.scheme must be one of: none, hash58, hash72, both")
	}
	if _, err := c.Checksum.HMACKeyBytes(); err != nil {
		errs = append(errs, "checksum.hmac_key_hex is not valid hex")
	}
	if _, err := c.Checksum.IVBytes(); err != nil {
		errs = append(errs, "checksum.iv_hex is not valid hex")
	}
	if _, err := c.Checksum.NonceBytes(); err != nil {
		errs = append(errs, "checksum.nonce_hex is not valid hex")
	}

	if c.WorkerCount < 0 {
		errs = append(errs, "worker_count must be >= 0")
	}
	if c.AutoScanDebounceSeconds < 0 {
		errs = append(errs, "auto_scan_debounce_seconds must be >= 0")
	}
	if c.OperationTimeoutMinutes < 0 {
		errs = append(errs, "operation_timeout_minutes must be >= 0")
	}
	if c.APIRateLimitPerMinute < 0 {
		errs = append(errs, "api_rate_limit_per_minute must be >= 0")
	}
	if c.JSONBodyLimitMB < 0 {
		errs = append(errs, "json_body_limit_mb must be >= 0")
	}
	if c.Transcode.AACBitrateKbps <= 0 {
		errs = append(errs, "transcode.aac_bitrate_kbps must be > 0")
	}
	if c.Transcode.TimeoutSeconds <= 0 {
		errs = append(errs, "transcode.timeout_seconds must be > 0")
	}

	for _, ext := range c.SupportedExtensions {
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			errs = append(errs, fmt.Sprintf("supported extension %q must start with '.'", ext))
			break
		}
	}

	if c.Server.BasicAuthPassHash != "" && strings.TrimSpace(c.Server.BasicAuthUsername) == "" {
		errs = append(errs, "server.basic_auth_username must be set when server.basic_auth_pass_hash is set")
	}
	if c.Server.RateLimitPerMin < 0 {
		errs = append(errs, "server.rate_limit_per_minute must be >= 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ResetToDefaults resets AppConfig to factory defaults, keeping the
// paths the caller has already pointed at a real device and library.
func ResetToDefaults() {
	mountPoint := AppConfig.MountPoint
	pcLibraryRoot := AppConfig.PCLibraryRoot

	AppConfig = Config{
		MountPoint:        mountPoint,
		PCLibraryRoot:     pcLibraryRoot,
		LibraryLinkID:     defaultLibraryLinkID(),
		MappingPath:       "iOpenPod.json",
		SyncLogPath:       "ipodsync.sqlite",
		TranscodeCacheDir: "transcode-cache",
		SearchIndexDir:    "search-index.bleve",
		ItunesDBPath:      "iPod_Control/iTunes/iTunesDB",
		ArtworkDBPath:     "iPod_Control/Artwork/ArtworkDB",
		PrefsBinPath:      "iPod_Control/iTunes/iTunesPrefs",
		PrefsPlistPath:    "iPod_Control/iTunes/iTunesPrefs.plist",
		SetupComplete:     false,

		AutoScanEnabled:         false,
		AutoScanDebounceSeconds: 30,
		SupportedExtensions:     []string{".mp3", ".m4a", ".m4b", ".aac", ".aiff", ".wav"},
		ExcludePatterns:         []string{},

		FingerprintBinaryPath: "fpcalc",

		Checksum: ChecksumConfig{Scheme: "none"},
		Transcode: TranscodeConfig{
			AACBitrateKbps: 256,
			TimeoutSeconds: 300,
			FFmpegPath:     "ffmpeg",
		},

		WorkerCount:             0,
		OperationTimeoutMinutes: 30,

		APIRateLimitPerMinute: 120,
		JSONBodyLimitMB:       1,
		EnableAuth:            false,

		LogLevel:  "info",
		LogFormat: "text",

		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            "8787",
			ReadTimeout:     "15s",
			WriteTimeout:    "15s",
			IdleTimeout:     "60s",
			RateLimitPerMin: 120,
		},
	}
}
