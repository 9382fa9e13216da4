// Package transcoder defines the transcoding contract (spec §4.9): the
// source→target format mapping driven by native playability, and the
// external-encoder collaborator interface. Actual transcoding is
// delegated to an FFmpeg-equivalent binary (spec §1 Non-goal), invoked
// through an os/exec adapter.
package transcoder

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ErrTranscodeFailed wraps any non-zero-exit or timeout failure from the
// external encoder (spec §7 TranscodeFailed).
var ErrTranscodeFailed = errors.New("transcoder: transcode failed")

// Action says what an incoming file needs before it can land on the
// device (spec §4.9 table).
type Action int

const (
	// ActionCopy means the source is already natively playable; no
	// transcode is needed, the file is copied as-is.
	ActionCopy Action = iota
	// ActionALAC means the source is lossless and must become ALAC/M4A.
	ActionALAC
	// ActionAAC means the source is lossy and must become AAC/M4A.
	ActionAAC
)

func (a Action) String() string {
	switch a {
	case ActionCopy:
		return "copy"
	case ActionALAC:
		return "alac"
	case ActionAAC:
		return "aac"
	default:
		return "unknown"
	}
}

// nativeExtensions are already playable on the device and never transcoded.
var nativeExtensions = map[string]bool{
	"mp3": true, "m4a": true, "m4p": true, "aac": true,
}

// losslessExtensions require ALAC/M4A (lossless → lossless).
var losslessExtensions = map[string]bool{
	"flac": true, "wav": true, "aif": true, "aiff": true,
}

// PlanFor returns the action required for a source file extension
// (without the leading dot, case-insensitive), per spec §4.9's table.
// Anything not recognized falls back to ActionAAC, matching the
// reference implementation's conservative default for unknown lossy
// formats.
func PlanFor(ext string) Action {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	switch {
	case nativeExtensions[ext]:
		return ActionCopy
	case losslessExtensions[ext]:
		return ActionALAC
	default:
		return ActionAAC
	}
}

// TargetExtension returns the file extension the action produces.
func (a Action) TargetExtension(sourceExt string) string {
	if a == ActionCopy {
		return strings.ToLower(strings.TrimPrefix(sourceExt, "."))
	}
	return "m4a"
}

// Options configures one transcode invocation.
type Options struct {
	// AACBitrateKbps is used only for ActionAAC; default 256 kbps per
	// spec §4.9.
	AACBitrateKbps int
	// Timeout bounds the external encoder's runtime (spec §4.10
	// "per-file timeout", default 300s).
	Timeout time.Duration
	// BinaryPath overrides the encoder binary looked up on PATH; empty
	// uses "ffmpeg".
	BinaryPath string
}

// DefaultOptions returns the spec's defaults: 256 kbps AAC, 300s timeout.
func DefaultOptions() Options {
	return Options{AACBitrateKbps: 256, Timeout: 300 * time.Second}
}

// Encoder runs an external transcoder process for one (source, action)
// pair and reports the output file path.
type Encoder interface {
	Transcode(ctx context.Context, sourcePath, destDir string, action Action, opts Options) (outputPath string, err error)
}

// FFmpegEncoder shells out to an FFmpeg-compatible binary.
type FFmpegEncoder struct{}

func (FFmpegEncoder) binary(opts Options) string {
	if opts.BinaryPath != "" {
		return opts.BinaryPath
	}
	return "ffmpeg"
}

// Transcode invokes the encoder with a per-file timeout, producing
// outputPath = destDir/<source basename without ext>.<target ext>.
// Metadata tags not preserved by the encoder are expected to be copied
// post-hoc by the caller via the tagging library (spec §4.9).
func (f FFmpegEncoder) Transcode(ctx context.Context, sourcePath, destDir string, action Action, opts Options) (string, error) {
	if action == ActionCopy {
		return "", fmt.Errorf("transcoder: ActionCopy does not invoke the encoder")
	}
	bin := f.binary(opts)
	if _, err := exec.LookPath(bin); err != nil {
		return "", fmt.Errorf("%w: encoder binary %s not found: %v", ErrTranscodeFailed, bin, err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultOptions().Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	base := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	targetExt := action.TargetExtension(filepath.Ext(sourcePath))
	outputPath := filepath.Join(destDir, base+"."+targetExt)

	args := []string{"-y", "-i", sourcePath}
	switch action {
	case ActionALAC:
		args = append(args, "-c:a", "alac")
	case ActionAAC:
		bitrate := opts.AACBitrateKbps
		if bitrate <= 0 {
			bitrate = DefaultOptions().AACBitrateKbps
		}
		args = append(args, "-c:a", "aac", "-b:a", fmt.Sprintf("%dk", bitrate))
	}
	args = append(args, outputPath)

	cmd := exec.CommandContext(ctx, bin, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %s timed out after %s", ErrTranscodeFailed, bin, timeout)
		}
		return "", fmt.Errorf("%w: %s: %s", ErrTranscodeFailed, err, strings.TrimSpace(string(out)))
	}
	return outputPath, nil
}
