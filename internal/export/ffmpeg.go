package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
)

// FramePattern is the file name pattern frames must be written with.
const FramePattern = "frame_%06d.png"

var ErrUnsupportedFormat = errors.New("invalid format: must be mp4, gif, or webm")

// Formats lists the container formats the encoder produces.
var Formats = []string{"mp4", "gif", "webm"}

// ContentType returns the MIME type for an encoded format.
func ContentType(format string) string {
	switch format {
	case "mp4":
		return "video/mp4"
	case "gif":
		return "image/gif"
	case "webm":
		return "video/webm"
	}
	return "application/octet-stream"
}

// FFmpeg encodes numbered PNG frames into a video with the ffmpeg binary.
type FFmpeg struct {
	path string
}

func NewFFmpeg(path string) *FFmpeg {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpeg{path: path}
}

// Available reports whether the ffmpeg binary can be found.
func (f *FFmpeg) Available() error {
	if _, err := exec.LookPath(f.path); err != nil {
		return fmt.Errorf("ffmpeg not available: %w", err)
	}
	return nil
}

// Encode turns dir/FramePattern into out.
func (f *FFmpeg) Encode(ctx context.Context, dir string, fps int, format, out string) error {
	input := filepath.Join(dir, FramePattern)
	rate := strconv.Itoa(fps)

	switch format {
	case "mp4":
		return f.run(ctx,
			"-framerate", rate,
			"-i", input,
			"-c:v", "libx264",
			"-pix_fmt", "yuv420p",
			"-crf", "18",
			"-preset", "fast",
			"-movflags", "+faststart",
			out,
		)

	case "gif":
		// Two-pass GIF: generate palette then apply
		palette := filepath.Join(dir, "palette.png")
		if err := f.run(ctx,
			"-framerate", rate,
			"-i", input,
			"-vf", "palettegen=stats_mode=diff",
			palette,
		); err != nil {
			return err
		}
		return f.run(ctx,
			"-framerate", rate,
			"-i", input,
			"-i", palette,
			"-lavfi", "paletteuse=dither=bayer:bayer_scale=5:diff_mode=rectangle",
			out,
		)

	case "webm":
		return f.run(ctx,
			"-framerate", rate,
			"-i", input,
			"-c:v", "libvpx-vp9",
			"-crf", "30",
			"-b:v", "0",
			"-pix_fmt", "yuv420p",
			out,
		)
	}
	return ErrUnsupportedFormat
}

func (f *FFmpeg) run(ctx context.Context, args ...string) error {
	// -y overwrites output without prompting
	cmd := exec.CommandContext(ctx, f.path, append([]string{"-y"}, args...)...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%v: %s", err, stderr.String())
	}
	return nil
}
