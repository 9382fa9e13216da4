// file: internal/config/config_test.go
// version: 2.0.0
// guid: b2c3d4e5-f6a7-8b9c-0d1e-2f3a4b5c6d7e

package config

import (
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func TestInitConfigDefaults(t *testing.T) {
	viper.Reset()
	InitConfig()

	if AppConfig.MappingPath != "iOpenPod.json" {
		t.Errorf("expected default mapping_path, got %q", AppConfig.MappingPath)
	}
	if AppConfig.SyncLogPath != "ipodsync.sqlite" {
		t.Errorf("expected default sync_log_path, got %q", AppConfig.SyncLogPath)
	}
	if AppConfig.WorkerCount != 0 {
		t.Errorf("expected worker_count 0 (auto), got %d", AppConfig.WorkerCount)
	}
	if AppConfig.AutoScanDebounceSeconds != 30 {
		t.Errorf("expected auto_scan_debounce_seconds 30, got %d", AppConfig.AutoScanDebounceSeconds)
	}
}

func TestInitConfigTranscodeDefaults(t *testing.T) {
	viper.Reset()
	InitConfig()

	if AppConfig.Transcode.AACBitrateKbps != 256 {
		t.Errorf("expected aac_bitrate_kbps 256, got %d", AppConfig.Transcode.AACBitrateKbps)
	}
	if AppConfig.Transcode.TimeoutSeconds != 300 {
		t.Errorf("expected timeout_seconds 300, got %d", AppConfig.Transcode.TimeoutSeconds)
	}
	if AppConfig.Transcode.FFmpegPath != "ffmpeg" {
		t.Errorf("expected ffmpeg_path 'ffmpeg', got %q", AppConfig.Transcode.FFmpegPath)
	}
}

func TestInitConfigChecksumDefaults(t *testing.T) {
	viper.Reset()
	InitConfig()

	if AppConfig.Checksum.Scheme != "none" {
		t.Errorf("expected checksum.scheme 'none', got %q", AppConfig.Checksum.Scheme)
	}
}

func TestInitConfigServerDefaults(t *testing.T) {
	viper.Reset()
	InitConfig()

	if AppConfig.Server.Host != "127.0.0.1" {
		t.Errorf("expected server.host 127.0.0.1, got %q", AppConfig.Server.Host)
	}
	if AppConfig.Server.Port != "8787" {
		t.Errorf("expected server.port 8787, got %q", AppConfig.Server.Port)
	}
	if AppConfig.Server.RateLimitPerMin != 120 {
		t.Errorf("expected server.rate_limit_per_minute 120, got %d", AppConfig.Server.RateLimitPerMin)
	}
}

func TestInitConfigSupportedExtensionsDefault(t *testing.T) {
	viper.Reset()
	InitConfig()

	want := []string{".mp3", ".m4a", ".m4b", ".aac", ".aiff", ".wav"}
	if len(AppConfig.SupportedExtensions) != len(want) {
		t.Fatalf("expected %d extensions, got %v", len(want), AppConfig.SupportedExtensions)
	}
	for i, ext := range want {
		if AppConfig.SupportedExtensions[i] != ext {
			t.Errorf("expected extension %d to be %q, got %q", i, ext, AppConfig.SupportedExtensions[i])
		}
	}
}

func TestChecksumConfigKeyDecoding(t *testing.T) {
	c := ChecksumConfig{HMACKeyHex: "0102030a", IVHex: "", NonceHex: "zz"}

	key, err := c.HMACKeyBytes()
	if err != nil {
		t.Fatalf("unexpected error decoding hmac key: %v", err)
	}
	if len(key) != 4 {
		t.Errorf("expected 4 decoded bytes, got %d", len(key))
	}

	iv, err := c.IVBytes()
	if err != nil || iv != nil {
		t.Errorf("expected nil iv with no error for empty hex, got %v, %v", iv, err)
	}

	if _, err := c.NonceBytes(); err == nil {
		t.Error("expected error decoding invalid hex nonce")
	}
}

func TestValidateRequiresMountPoint(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Error("expected error when mount_point is unset")
	}
}

func TestValidateAcceptsExistingMountPoint(t *testing.T) {
	dir := t.TempDir()
	c := Config{
		MountPoint:          dir,
		Transcode:           TranscodeConfig{AACBitrateKbps: 256, TimeoutSeconds: 300},
		SupportedExtensions: []string{".mp3"},
	}
	if err := c.Validate(); err != nil {
		t.Errorf("expected valid config, got error: %v", err)
	}
}

func TestValidateRejectsBadChecksumScheme(t *testing.T) {
	dir := t.TempDir()
	c := Config{
		MountPoint: dir,
		Checksum:   ChecksumConfig{Scheme: "bogus"},
		Transcode:  TranscodeConfig{AACBitrateKbps: 256, TimeoutSeconds: 300},
	}
	if err := c.Validate(); err == nil {
		t.Error("expected error for invalid checksum scheme")
	}
}

func TestValidateRejectsInvalidHexKeys(t *testing.T) {
	dir := t.TempDir()
	c := Config{
		MountPoint: dir,
		Checksum:   ChecksumConfig{Scheme: "hash58", HMACKeyHex: "not-hex"},
		Transcode:  TranscodeConfig{AACBitrateKbps: 256, TimeoutSeconds: 300},
	}
	if err := c.Validate(); err == nil {
		t.Error("expected error for invalid hmac_key_hex")
	}
}

func TestValidateRejectsNegativeWorkerCount(t *testing.T) {
	dir := t.TempDir()
	c := Config{
		MountPoint:  dir,
		WorkerCount: -1,
		Transcode:   TranscodeConfig{AACBitrateKbps: 256, TimeoutSeconds: 300},
	}
	if err := c.Validate(); err == nil {
		t.Error("expected error for negative worker_count")
	}
}

func TestValidateRejectsExtensionWithoutDot(t *testing.T) {
	dir := t.TempDir()
	c := Config{
		MountPoint:          dir,
		Transcode:           TranscodeConfig{AACBitrateKbps: 256, TimeoutSeconds: 300},
		SupportedExtensions: []string{"mp3"},
	}
	if err := c.Validate(); err == nil {
		t.Error("expected error for extension missing leading dot")
	}
}

func TestValidateRequiresUsernameWithPassHash(t *testing.T) {
	dir := t.TempDir()
	c := Config{
		MountPoint: dir,
		Transcode:  TranscodeConfig{AACBitrateKbps: 256, TimeoutSeconds: 300},
		Server:     ServerConfig{BasicAuthPassHash: "$2a$..."},
	}
	if err := c.Validate(); err == nil {
		t.Error("expected error when pass hash is set without a username")
	}
}

func TestValidateRejectsUnwritableSyncLogParent(t *testing.T) {
	dir := t.TempDir()
	c := Config{
		MountPoint:  dir,
		SyncLogPath: filepath.Join(dir, "missing-subdir", "log.sqlite"),
		Transcode:   TranscodeConfig{AACBitrateKbps: 256, TimeoutSeconds: 300},
	}
	if err := c.Validate(); err == nil {
		t.Error("expected error when sync_log_path parent does not exist")
	}
}

func TestResetToDefaultsKeepsPaths(t *testing.T) {
	AppConfig = Config{MountPoint: "/mnt/ipod", PCLibraryRoot: "/home/user/Music"}
	ResetToDefaults()

	if AppConfig.MountPoint != "/mnt/ipod" {
		t.Errorf("expected mount_point preserved, got %q", AppConfig.MountPoint)
	}
	if AppConfig.PCLibraryRoot != "/home/user/Music" {
		t.Errorf("expected pc_library_root preserved, got %q", AppConfig.PCLibraryRoot)
	}
	if AppConfig.Transcode.AACBitrateKbps != 256 {
		t.Errorf("expected transcode defaults restored, got %d", AppConfig.Transcode.AACBitrateKbps)
	}
	if AppConfig.Checksum.Scheme != "none" {
		t.Errorf("expected checksum scheme reset to 'none', got %q", AppConfig.Checksum.Scheme)
	}
}

func TestDefaultLibraryLinkIDIsStablePerHost(t *testing.T) {
	a := defaultLibraryLinkID()
	b := defaultLibraryLinkID()
	if a != b {
		t.Errorf("expected defaultLibraryLinkID to be deterministic, got %d then %d", a, b)
	}
	if a == 0 {
		t.Error("expected a non-zero derived library link id on a machine with a hostname")
	}
}

func TestInitConfigDerivesLibraryLinkIDWhenUnset(t *testing.T) {
	viper.Reset()
	InitConfig()

	if AppConfig.LibraryLinkID == 0 {
		t.Error("expected library_link_id to default to the hostname-derived id, not 0")
	}
	if AppConfig.LibraryLinkID != defaultLibraryLinkID() {
		t.Errorf("expected derived default, got %d", AppConfig.LibraryLinkID)
	}
}

func TestInitConfigHonorsExplicitLibraryLinkID(t *testing.T) {
	viper.Reset()
	viper.Set("library_link_id", int64(42))
	InitConfig()

	if AppConfig.LibraryLinkID != 42 {
		t.Errorf("expected explicit library_link_id to win, got %d", AppConfig.LibraryLinkID)
	}
}

func TestResetToDefaultsDerivesLibraryLinkID(t *testing.T) {
	AppConfig = Config{MountPoint: "/mnt/ipod"}
	ResetToDefaults()

	if AppConfig.LibraryLinkID != defaultLibraryLinkID() {
		t.Errorf("expected ResetToDefaults to derive library_link_id, got %d", AppConfig.LibraryLinkID)
	}
}
