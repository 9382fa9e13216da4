package transcoder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlanFor(t *testing.T) {
	cases := map[string]Action{
		"mp3":  ActionCopy,
		"M4A":  ActionCopy,
		"m4p":  ActionCopy,
		"aac":  ActionCopy,
		"flac": ActionALAC,
		"wav":  ActionALAC,
		"aiff": ActionALAC,
		"ogg":  ActionAAC,
		"opus": ActionAAC,
		"wma":  ActionAAC,
	}
	for ext, want := range cases {
		require.Equal(t, want, PlanFor(ext), ext)
	}
}

func TestTargetExtension(t *testing.T) {
	require.Equal(t, "mp3", ActionCopy.TargetExtension(".mp3"))
	require.Equal(t, "m4a", ActionALAC.TargetExtension(".flac"))
	require.Equal(t, "m4a", ActionAAC.TargetExtension(".ogg"))
}

func TestFFmpegEncoderCopyActionRejected(t *testing.T) {
	var f FFmpegEncoder
	_, err := f.Transcode(context.Background(), "a.mp3", t.TempDir(), ActionCopy, DefaultOptions())
	require.Error(t, err)
}

func TestFFmpegEncoderMissingBinary(t *testing.T) {
	f := FFmpegEncoder{}
	opts := DefaultOptions()
	opts.BinaryPath = "no-such-ffmpeg-binary-xyz"
	_, err := f.Transcode(context.Background(), "a.flac", t.TempDir(), ActionALAC, opts)
	require.ErrorIs(t, err, ErrTranscodeFailed)
}
