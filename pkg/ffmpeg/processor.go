package ffmpeg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrBitrateTooLow is returned by Compress when the video is too long to fit
// the size budget at the minimum acceptable video bitrate.
var ErrBitrateTooLow = errors.New("target bitrate below minimum")

// CommandRunner executes external commands.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec and returns stdout.
type ExecRunner struct{}

// Run executes name with args. On failure the error carries stderr.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return out, fmt.Errorf("%s: %w: %s", name, err, lastLine(exitErr.Stderr))
		}
		return out, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

func lastLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Config configures the processor.
type Config struct {
	FFmpegPath      string
	FFprobePath     string
	AudioKbps       int
	MinVideoKbps    int
	CompressTimeout time.Duration
	FrameTimeout    time.Duration
	FrameMaxSize    int
}

// Processor probes, compresses and samples video files using ffmpeg.
type Processor struct {
	runner CommandRunner
	cfg    Config
}

// NewProcessor creates a new processor. Zero config values fall back to defaults.
func NewProcessor(runner CommandRunner, cfg Config) *Processor {
	if runner == nil {
		runner = ExecRunner{}
	}
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	if cfg.AudioKbps <= 0 {
		cfg.AudioKbps = 128
	}
	if cfg.MinVideoKbps <= 0 {
		cfg.MinVideoKbps = 150
	}
	if cfg.CompressTimeout <= 0 {
		cfg.CompressTimeout = 120 * time.Second
	}
	if cfg.FrameTimeout <= 0 {
		cfg.FrameTimeout = 10 * time.Second
	}
	if cfg.FrameMaxSize <= 0 {
		cfg.FrameMaxSize = 512
	}
	return &Processor{runner: runner, cfg: cfg}
}

// Available reports whether both ffmpeg and ffprobe can be found.
func (p *Processor) Available() bool {
	if _, err := exec.LookPath(p.cfg.FFmpegPath); err != nil {
		return false
	}
	_, err := exec.LookPath(p.cfg.FFprobePath)
	return err == nil
}

// VideoInfo contains metadata about a video file.
type VideoInfo struct {
	Duration float64 // seconds
	Width    int
	Height   int
	HasAudio bool
	FileSize int64
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
}

// Probe reads duration, dimensions and size of a video file.
func (p *Processor) Probe(ctx context.Context, videoPath string) (*VideoInfo, error) {
	stat, err := os.Stat(videoPath)
	if err != nil {
		return nil, fmt.Errorf("stat video: %w", err)
	}

	out, err := p.runner.Run(ctx, p.cfg.FFprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		videoPath,
	)
	if err != nil {
		return nil, fmt.Errorf("ffprobe: %w", err)
	}

	var parsed probeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	info := &VideoInfo{FileSize: stat.Size()}
	if parsed.Format.Duration != "" {
		if d, err := strconv.ParseFloat(parsed.Format.Duration, 64); err == nil {
			info.Duration = d
		}
	}
	for _, s := range parsed.Streams {
		switch s.CodecType {
		case "audio":
			info.HasAudio = true
		case "video":
			if info.Width == 0 {
				info.Width = s.Width
				info.Height = s.Height
			}
		}
	}

	if info.Duration <= 0 {
		return nil, fmt.Errorf("ffprobe: no duration for %s", filepath.Base(videoPath))
	}
	return info, nil
}

// TargetVideoKbps returns the video bitrate that fits targetBytes over
// durationSec once the audio allocation is subtracted.
func TargetVideoKbps(targetBytes int64, durationSec float64, audioKbps int) int {
	if durationSec <= 0 {
		return 0
	}
	total := float64(targetBytes) * 8 / 1000 / durationSec
	return int(total) - audioKbps
}

// Compress re-encodes videoPath once so the result fits targetBytes and
// returns the path of the new file, placed next to the source. It returns
// ErrBitrateTooLow without running ffmpeg when the budget cannot be met.
func (p *Processor) Compress(ctx context.Context, videoPath string, targetBytes int64) (string, error) {
	info, err := p.Probe(ctx, videoPath)
	if err != nil {
		return "", err
	}

	videoKbps := TargetVideoKbps(targetBytes, info.Duration, p.cfg.AudioKbps)
	if videoKbps < p.cfg.MinVideoKbps {
		return "", fmt.Errorf("%w: %dk for %.0fs", ErrBitrateTooLow, videoKbps, info.Duration)
	}

	outPath := strings.TrimSuffix(videoPath, filepath.Ext(videoPath)) + ".compressed.mp4"

	ctx, cancel := context.WithTimeout(ctx, p.cfg.CompressTimeout)
	defer cancel()

	_, err = p.runner.Run(ctx, p.cfg.FFmpegPath,
		"-y",
		"-i", videoPath,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-b:v", fmt.Sprintf("%dk", videoKbps),
		"-maxrate", fmt.Sprintf("%dk", videoKbps),
		"-bufsize", fmt.Sprintf("%dk", videoKbps*2),
		"-c:a", "aac",
		"-b:a", fmt.Sprintf("%dk", p.cfg.AudioKbps),
		"-movflags", "+faststart",
		outPath,
	)
	if err != nil {
		os.Remove(outPath)
		return "", fmt.Errorf("ffmpeg compress: %w", err)
	}

	return outPath, nil
}

// ExtractFrame writes one JPEG taken at the temporal midpoint of the video,
// scaled so neither side exceeds the configured maximum, and returns its path.
func (p *Processor) ExtractFrame(ctx context.Context, videoPath string) (string, error) {
	info, err := p.Probe(ctx, videoPath)
	if err != nil {
		return "", err
	}

	outPath := strings.TrimSuffix(videoPath, filepath.Ext(videoPath)) + ".frame.jpg"
	size := p.cfg.FrameMaxSize

	ctx, cancel := context.WithTimeout(ctx, p.cfg.FrameTimeout)
	defer cancel()

	_, err = p.runner.Run(ctx, p.cfg.FFmpegPath,
		"-y",
		"-ss", strconv.FormatFloat(info.Duration/2, 'f', 3, 64),
		"-i", videoPath,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale='min(%d,iw)':'min(%d,ih)':force_original_aspect_ratio=decrease", size, size),
		"-q:v", "3",
		outPath,
	)
	if err != nil {
		os.Remove(outPath)
		return "", fmt.Errorf("ffmpeg frame: %w", err)
	}

	return outPath, nil
}
