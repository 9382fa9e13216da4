// file: cmd/common.go
// version: 1.0.0
// guid: 1a2b3c4d-5e6f-7a8b-9c0d-1e2f3a4b5c6d

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jdfalk/ipodsync/internal/checksum"
	"github.com/jdfalk/ipodsync/internal/config"
	"github.com/jdfalk/ipodsync/internal/differ"
	"github.com/jdfalk/ipodsync/internal/fingerprint"
	"github.com/jdfalk/ipodsync/internal/itunesdb"
	"github.com/jdfalk/ipodsync/internal/mapping"
	"github.com/jdfalk/ipodsync/internal/pclibrary"
	"github.com/jdfalk/ipodsync/internal/transcoder"
)

// requireMountPoint fails fast with a helpful message instead of letting
// a later stage fail on a missing path.
func requireMountPoint() error {
	if config.AppConfig.MountPoint == "" {
		return fmt.Errorf("--mount (or mount_point in config) is required")
	}
	if info, err := os.Stat(config.AppConfig.MountPoint); err != nil || !info.IsDir() {
		return fmt.Errorf("mount point %q is not a directory", config.AppConfig.MountPoint)
	}
	return nil
}

func requirePCLibrary() error {
	if config.AppConfig.PCLibraryRoot == "" {
		return fmt.Errorf("--pc-library (or pc_library_root in config) is required")
	}
	if info, err := os.Stat(config.AppConfig.PCLibraryRoot); err != nil || !info.IsDir() {
		return fmt.Errorf("pc library root %q is not a directory", config.AppConfig.PCLibraryRoot)
	}
	return nil
}

func newFingerprintComputer() fingerprint.Computer {
	return fingerprint.NewChromaprintAdapter(config.AppConfig.FingerprintBinaryPath)
}

func scanPCLibrary() ([]differ.PCTrack, []error) {
	scanner := pclibrary.NewScanner(config.AppConfig.PCLibraryRoot, newFingerprintComputer())
	return scanner.Scan(context.Background())
}

// loadDeviceDatabase reads and parses the on-device iTunesDB.
func loadDeviceDatabase() (*itunesdb.Database, []byte, error) {
	raw, err := os.ReadFile(devicePath(config.AppConfig.ItunesDBPath))
	if err != nil {
		return nil, nil, fmt.Errorf("reading iTunesDB: %w", err)
	}
	db, err := itunesdb.ReadDatabase(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing iTunesDB: %w", err)
	}
	return db, raw, nil
}

func loadMappingStore() (*mapping.Store, error) {
	store, err := mapping.Load(devicePath(config.AppConfig.MappingPath))
	if err != nil {
		return nil, fmt.Errorf("loading mapping store: %w", err)
	}
	return store, nil
}

func devicePath(relOrAbs string) string {
	if relOrAbs == "" {
		return relOrAbs
	}
	if os.IsPathSeparator(relOrAbs[0]) {
		return relOrAbs
	}
	return config.AppConfig.MountPoint + string(os.PathSeparator) + relOrAbs
}

func checksumScheme() checksum.Scheme {
	switch config.AppConfig.Checksum.Scheme {
	case "hash58":
		return checksum.SchemeHash58
	case "hash72":
		return checksum.SchemeHash72
	case "both":
		return checksum.SchemeBoth
	default:
		return checksum.SchemeNone
	}
}

func checksumKeys() (checksum.HashKeys, error) {
	hmacKey, err := config.AppConfig.Checksum.HMACKeyBytes()
	if err != nil {
		return checksum.HashKeys{}, fmt.Errorf("decoding checksum.hmac_key_hex: %w", err)
	}
	iv, err := config.AppConfig.Checksum.IVBytes()
	if err != nil {
		return checksum.HashKeys{}, fmt.Errorf("decoding checksum.iv_hex: %w", err)
	}
	nonce, err := config.AppConfig.Checksum.NonceBytes()
	if err != nil {
		return checksum.HashKeys{}, fmt.Errorf("decoding checksum.nonce_hex: %w", err)
	}
	return checksum.HashKeys{HMACKey: hmacKey, IV: iv, Nonce: nonce}, nil
}

func transcodeOptions() transcoder.Options {
	opts := transcoder.DefaultOptions()
	if config.AppConfig.Transcode.AACBitrateKbps > 0 {
		opts.AACBitrateKbps = config.AppConfig.Transcode.AACBitrateKbps
	}
	if config.AppConfig.Transcode.TimeoutSeconds > 0 {
		opts.Timeout = time.Duration(config.AppConfig.Transcode.TimeoutSeconds) * time.Second
	}
	if config.AppConfig.Transcode.FFmpegPath != "" {
		opts.BinaryPath = config.AppConfig.Transcode.FFmpegPath
	}
	return opts
}

func writeBackOptions() pclibrary.WriteBackOptions {
	return pclibrary.WriteBackOptions{Enabled: config.AppConfig.WriteBack.Enabled}
}
