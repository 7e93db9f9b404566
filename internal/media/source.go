package media

import (
	"context"
	"fmt"
	"image"
	"io"
	"os/exec"

	"github.com/rs/zerolog"

	"github.com/voxline/reframe/internal/config"
)

// Source decodes a video file into a sequence of RGBA frames through an
// ffmpeg rawvideo pipe. Random access for sparse sampling is served by
// one-shot seeking decodes; the planning pass itself reads sequentially.
type Source struct {
	logger     zerolog.Logger
	ffmpegPath string
	path       string
	info       *VideoInfo
	frameLen   int

	cmd    *exec.Cmd
	stdout io.ReadCloser
}

// OpenSource probes a video file and prepares it for decoding.
func OpenSource(ctx context.Context, logger zerolog.Logger, cfg config.FFmpegConfig, path string) (*Source, error) {
	ffmpegPath, err := exec.LookPath(cfg.BinaryPath)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}
	ffprobePath, err := exec.LookPath(cfg.ProbePath)
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found in PATH: %w", err)
	}

	info, err := Probe(ctx, ffprobePath, path)
	if err != nil {
		return nil, err
	}

	return &Source{
		logger:     logger.With().Str("component", "source").Logger(),
		ffmpegPath: ffmpegPath,
		path:       path,
		info:       info,
		frameLen:   info.Width * info.Height * 4,
	}, nil
}

// Info returns the probed metadata.
func (s *Source) Info() VideoInfo {
	return *s.info
}

// FrameAt decodes the single frame at the given index. It is independent of
// the sequential read position and is intended for sparse sampling. Returns
// io.EOF when the index is past the end of the stream.
func (s *Source) FrameAt(ctx context.Context, index int) (*image.RGBA, error) {
	seconds := float64(index) / s.info.FPS

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-ss", fmt.Sprintf("%.6f", seconds),
		"-i", s.path,
		"-frames:v", "1",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"pipe:1",
	}

	cmd := exec.CommandContext(ctx, s.ffmpegPath, args...)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("frame decode at index %d failed: %w", index, err)
	}
	if len(out) < s.frameLen {
		return nil, io.EOF
	}

	return s.wrapFrame(out[:s.frameLen]), nil
}

// LeadingFrames decodes up to n frames from the start of the stream in a
// single pass, without seeking. Used for sparse sampling when the container
// does not report a frame count and timestamp-based seeks would rely on a
// guessed frame rate. A stream shorter than n returns what it has.
func (s *Source) LeadingFrames(ctx context.Context, n int) ([]*image.RGBA, error) {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", s.path,
		"-frames:v", fmt.Sprintf("%d", n),
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"pipe:1",
	}

	cmd := exec.CommandContext(ctx, s.ffmpegPath, args...)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("leading frame decode failed: %w", err)
	}

	frames := make([]*image.RGBA, 0, n)
	for off := 0; off+s.frameLen <= len(out) && len(frames) < n; off += s.frameLen {
		frames = append(frames, s.wrapFrame(out[off:off+s.frameLen]))
	}
	return frames, nil
}

// Start launches the sequential decode pipe. Must be called before ReadNext.
func (s *Source) Start(ctx context.Context) error {
	if s.cmd != nil {
		return fmt.Errorf("source already started")
	}

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", s.path,
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"pipe:1",
	}

	cmd := exec.CommandContext(ctx, s.ffmpegPath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start decoder: %w", err)
	}

	s.logger.Debug().Str("input", s.path).Msg("decoder started")
	s.cmd = cmd
	s.stdout = stdout
	return nil
}

// ReadNext reads the next frame from the sequential pipe. Returns io.EOF
// when the stream is exhausted.
func (s *Source) ReadNext() (*image.RGBA, error) {
	if s.cmd == nil {
		return nil, fmt.Errorf("source not started")
	}

	buf := make([]byte, s.frameLen)
	if _, err := io.ReadFull(s.stdout, buf); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("frame read failed: %w", err)
	}

	return s.wrapFrame(buf), nil
}

// Close tears down the decode pipe. Safe to call at any point; a decoder
// still running is killed rather than drained.
func (s *Source) Close() error {
	if s.cmd == nil {
		return nil
	}
	_ = s.stdout.Close()
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.cmd.Wait()
	s.cmd = nil
	s.stdout = nil
	s.logger.Debug().Msg("decoder closed")
	return nil
}

func (s *Source) wrapFrame(pix []byte) *image.RGBA {
	return &image.RGBA{
		Pix:    pix,
		Stride: s.info.Width * 4,
		Rect:   image.Rect(0, 0, s.info.Width, s.info.Height),
	}
}
