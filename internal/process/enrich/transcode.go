package enrich

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/core/errors"
)

// CanonicalEncoding describes the audio format sent to the transcription API.
const CanonicalEncoding = "mp3/16kHz/mono"

const maxToolOutput = 512

// FFmpeg transcodes audio with the ffmpeg binary.
type FFmpeg struct {
	Path string
}

// ToMP3 converts in to mono 16kHz 128k mp3 at out.
func (f FFmpeg) ToMP3(ctx context.Context, in, out string) error {
	bin := f.Path
	if bin == "" {
		bin = "ffmpeg"
	}

	//nolint:gosec // binary path comes from configuration, arguments are generated temp paths
	cmd := exec.CommandContext(ctx, bin,
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", in,
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "libmp3lame",
		"-b:a", "128k",
		"-f", "mp3",
		out,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %v: %s", errors.ErrTranscode, err, truncate(strings.TrimSpace(string(output)), maxToolOutput))
	}

	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n] + "..."
}
