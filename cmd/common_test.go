// file: cmd/common_test.go
// version: 1.0.0
// guid: 1e2d3c4b-5a69-7887-96a5-b4c3d2e1f0a9

package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jdfalk/ipodsync/internal/checksum"
	"github.com/jdfalk/ipodsync/internal/config"
)

func withAppConfig(t *testing.T, mutate func(*config.Config)) {
	t.Helper()
	orig := config.AppConfig
	t.Cleanup(func() { config.AppConfig = orig })
	config.AppConfig = config.Config{}
	mutate(&config.AppConfig)
}

func TestRequireMountPoint(t *testing.T) {
	withAppConfig(t, func(c *config.Config) { c.MountPoint = "" })
	if err := requireMountPoint(); err == nil {
		t.Fatal("expected error for empty mount point")
	}

	tempDir := t.TempDir()
	withAppConfig(t, func(c *config.Config) { c.MountPoint = tempDir })
	if err := requireMountPoint(); err != nil {
		t.Fatalf("expected no error for valid directory, got %v", err)
	}

	withAppConfig(t, func(c *config.Config) { c.MountPoint = filepath.Join(tempDir, "missing") })
	if err := requireMountPoint(); err == nil {
		t.Fatal("expected error for nonexistent mount point")
	}
}

func TestRequirePCLibrary(t *testing.T) {
	withAppConfig(t, func(c *config.Config) { c.PCLibraryRoot = "" })
	if err := requirePCLibrary(); err == nil {
		t.Fatal("expected error for empty pc library root")
	}

	tempDir := t.TempDir()
	withAppConfig(t, func(c *config.Config) { c.PCLibraryRoot = tempDir })
	if err := requirePCLibrary(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestDevicePath(t *testing.T) {
	withAppConfig(t, func(c *config.Config) { c.MountPoint = "/Volumes/IPOD" })

	if got := devicePath(""); got != "" {
		t.Errorf("devicePath(\"\") = %q, want empty", got)
	}
	if got := devicePath("/abs/path"); got != "/abs/path" {
		t.Errorf("devicePath(absolute) = %q, want passthrough", got)
	}
	want := "/Volumes/IPOD" + string(os.PathSeparator) + "iPod_Control/iTunes/iTunesDB"
	if got := devicePath("iPod_Control/iTunes/iTunesDB"); got != want {
		t.Errorf("devicePath(relative) = %q, want %q", got, want)
	}
}

func TestChecksumScheme(t *testing.T) {
	cases := map[string]checksum.Scheme{
		"none":    checksum.SchemeNone,
		"hash58":  checksum.SchemeHash58,
		"hash72":  checksum.SchemeHash72,
		"both":    checksum.SchemeBoth,
		"unknown": checksum.SchemeNone,
		"":        checksum.SchemeNone,
	}
	for scheme, want := range cases {
		withAppConfig(t, func(c *config.Config) { c.Checksum.Scheme = scheme })
		if got := checksumScheme(); got != want {
			t.Errorf("checksumScheme(%q) = %v, want %v", scheme, got, want)
		}
	}
}

func TestChecksumKeysDecodesHex(t *testing.T) {
	withAppConfig(t, func(c *config.Config) {
		c.Checksum.HMACKeyHex = "deadbeef"
		c.Checksum.IVHex = "00112233445566778899aabbccddeeff"
		c.Checksum.NonceHex = "aabbccdd"
	})

	keys, err := checksumKeys()
	if err != nil {
		t.Fatalf("checksumKeys failed: %v", err)
	}
	if len(keys.HMACKey) != 4 {
		t.Errorf("expected 4-byte HMAC key, got %d bytes", len(keys.HMACKey))
	}
	if len(keys.Nonce) != 4 {
		t.Errorf("expected 4-byte nonce, got %d bytes", len(keys.Nonce))
	}
}

func TestChecksumKeysRejectsInvalidHex(t *testing.T) {
	withAppConfig(t, func(c *config.Config) { c.Checksum.HMACKeyHex = "not-hex" })
	if _, err := checksumKeys(); err == nil {
		t.Fatal("expected error for invalid hex")
	}
}

func TestTranscodeOptionsAppliesOverrides(t *testing.T) {
	withAppConfig(t, func(c *config.Config) {
		c.Transcode.AACBitrateKbps = 192
		c.Transcode.TimeoutSeconds = 120
		c.Transcode.FFmpegPath = "/usr/local/bin/ffmpeg"
	})

	opts := transcodeOptions()
	if opts.AACBitrateKbps != 192 {
		t.Errorf("AACBitrateKbps = %d, want 192", opts.AACBitrateKbps)
	}
	if opts.BinaryPath != "/usr/local/bin/ffmpeg" {
		t.Errorf("BinaryPath = %q, want override", opts.BinaryPath)
	}
}

func TestTranscodeOptionsFallsBackToDefaults(t *testing.T) {
	withAppConfig(t, func(c *config.Config) {})

	defaults := transcodeOptions()
	if defaults.AACBitrateKbps == 0 {
		t.Error("expected non-zero default AAC bitrate")
	}
}

func TestWriteBackOptions(t *testing.T) {
	withAppConfig(t, func(c *config.Config) { c.WriteBack.Enabled = true })
	if !writeBackOptions().Enabled {
		t.Error("expected write-back enabled to propagate")
	}
}
