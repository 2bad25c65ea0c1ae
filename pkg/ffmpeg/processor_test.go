package ffmpeg

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type call struct {
	name string
	args []string
}

// fakeRunner answers ffprobe with a canned JSON document and, for ffmpeg,
// creates the output file named by the last argument.
type fakeRunner struct {
	probeJSON string
	probeErr  error
	ffmpegErr error
	calls     []call
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, call{name: name, args: args})
	switch name {
	case "ffprobe":
		if f.probeErr != nil {
			return nil, f.probeErr
		}
		return []byte(f.probeJSON), nil
	case "ffmpeg":
		out := args[len(args)-1]
		if err := os.WriteFile(out, []byte("encoded"), 0644); err != nil {
			return nil, err
		}
		return nil, f.ffmpegErr
	}
	return nil, errors.New("unexpected command " + name)
}

func (f *fakeRunner) ffmpegCalls() []call {
	var out []call
	for _, c := range f.calls {
		if c.name == "ffmpeg" {
			out = append(out, c)
		}
	}
	return out
}

func probeJSON(duration string) string {
	return `{"format":{"duration":"` + duration + `"},"streams":[` +
		`{"codec_type":"video","width":1080,"height":1920},{"codec_type":"audio"}]}`
}

func writeVideo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "youtube_abc.mp4")
	if err := os.WriteFile(path, make([]byte, 1024), 0644); err != nil {
		t.Fatalf("write video: %v", err)
	}
	return path
}

func argAfter(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func TestTargetVideoKbps(t *testing.T) {
	tests := []struct {
		name     string
		target   int64
		duration float64
		want     int
	}{
		{"one minute", 50331648, 60, 6582},
		{"ten minutes", 50331648, 600, 543},
		{"very long", 50331648, 3000, 6},
		{"zero duration", 50331648, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TargetVideoKbps(tt.target, tt.duration, 128); got != tt.want {
				t.Errorf("TargetVideoKbps() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestProbe(t *testing.T) {
	runner := &fakeRunner{probeJSON: probeJSON("12.5")}
	p := NewProcessor(runner, Config{})
	path := writeVideo(t)

	info, err := p.Probe(context.Background(), path)
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if info.Duration != 12.5 {
		t.Errorf("Duration = %v, want 12.5", info.Duration)
	}
	if info.Width != 1080 || info.Height != 1920 {
		t.Errorf("dimensions = %dx%d, want 1080x1920", info.Width, info.Height)
	}
	if !info.HasAudio {
		t.Error("HasAudio should be true")
	}
	if info.FileSize != 1024 {
		t.Errorf("FileSize = %d, want 1024", info.FileSize)
	}
}

func TestProbe_Errors(t *testing.T) {
	path := writeVideo(t)

	p := NewProcessor(&fakeRunner{probeErr: errors.New("boom")}, Config{})
	if _, err := p.Probe(context.Background(), path); err == nil {
		t.Error("expected error when ffprobe fails")
	}

	p = NewProcessor(&fakeRunner{probeJSON: `{"format":{}}`}, Config{})
	if _, err := p.Probe(context.Background(), path); err == nil {
		t.Error("expected error when duration is missing")
	}

	p = NewProcessor(&fakeRunner{probeJSON: probeJSON("1")}, Config{})
	if _, err := p.Probe(context.Background(), filepath.Join(t.TempDir(), "missing.mp4")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestCompress(t *testing.T) {
	runner := &fakeRunner{probeJSON: probeJSON("60")}
	p := NewProcessor(runner, Config{})
	path := writeVideo(t)

	out, err := p.Compress(context.Background(), path, 50331648)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	if !strings.HasSuffix(out, "youtube_abc.compressed.mp4") {
		t.Errorf("output path = %q", out)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("compressed file should exist: %v", err)
	}

	calls := runner.ffmpegCalls()
	if len(calls) != 1 {
		t.Fatalf("ffmpeg called %d times, want exactly 1", len(calls))
	}
	if got := argAfter(calls[0].args, "-b:v"); got != "6582k" {
		t.Errorf("-b:v = %q, want 6582k", got)
	}
	if got := argAfter(calls[0].args, "-b:a"); got != "128k" {
		t.Errorf("-b:a = %q, want 128k", got)
	}
}

func TestCompress_BitrateTooLow(t *testing.T) {
	runner := &fakeRunner{probeJSON: probeJSON("3000")}
	p := NewProcessor(runner, Config{})

	_, err := p.Compress(context.Background(), writeVideo(t), 50331648)
	if !errors.Is(err, ErrBitrateTooLow) {
		t.Fatalf("error = %v, want ErrBitrateTooLow", err)
	}
	if n := len(runner.ffmpegCalls()); n != 0 {
		t.Errorf("ffmpeg called %d times, want 0", n)
	}
}

func TestCompress_FailureRemovesOutput(t *testing.T) {
	runner := &fakeRunner{probeJSON: probeJSON("60"), ffmpegErr: errors.New("encoder exploded")}
	p := NewProcessor(runner, Config{})
	path := writeVideo(t)

	if _, err := p.Compress(context.Background(), path, 50331648); err == nil {
		t.Fatal("expected error")
	}

	partial := strings.TrimSuffix(path, ".mp4") + ".compressed.mp4"
	if _, err := os.Stat(partial); !os.IsNotExist(err) {
		t.Error("partial output should be removed on failure")
	}
}

func TestExtractFrame(t *testing.T) {
	runner := &fakeRunner{probeJSON: probeJSON("30")}
	p := NewProcessor(runner, Config{FrameMaxSize: 512})
	path := writeVideo(t)

	out, err := p.ExtractFrame(context.Background(), path)
	if err != nil {
		t.Fatalf("ExtractFrame failed: %v", err)
	}
	if filepath.Ext(out) != ".jpg" {
		t.Errorf("frame path = %q, want .jpg", out)
	}

	calls := runner.ffmpegCalls()
	if len(calls) != 1 {
		t.Fatalf("ffmpeg called %d times, want 1", len(calls))
	}
	if got := argAfter(calls[0].args, "-ss"); got != "15.000" {
		t.Errorf("-ss = %q, want midpoint 15.000", got)
	}
	if got := argAfter(calls[0].args, "-vf"); !strings.Contains(got, "min(512,iw)") || !strings.Contains(got, "force_original_aspect_ratio=decrease") {
		t.Errorf("-vf = %q, want bounded aspect-preserving scale", got)
	}
}

func TestNewProcessor_Defaults(t *testing.T) {
	p := NewProcessor(nil, Config{})

	if _, ok := p.runner.(ExecRunner); !ok {
		t.Errorf("default runner = %T, want ExecRunner", p.runner)
	}
	if p.cfg.AudioKbps != 128 || p.cfg.MinVideoKbps != 150 || p.cfg.FrameMaxSize != 512 {
		t.Errorf("unexpected defaults: %+v", p.cfg)
	}
}
