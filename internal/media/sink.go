package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os/exec"

	"github.com/rs/zerolog"

	"github.com/voxline/reframe/internal/config"
	"github.com/voxline/reframe/internal/geometry"
)

// stderrTailBytes bounds how much encoder diagnostic text is surfaced in
// errors.
const stderrTailBytes = 500

// SinkError reports an encoder failure together with how many frames were
// delivered before it and the tail of the encoder's diagnostic output.
type SinkError struct {
	Frames int
	Detail string
	Err    error
}

func (e *SinkError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("encoder failed after %d frames: %v: %s", e.Frames, e.Err, e.Detail)
	}
	return fmt.Sprintf("encoder failed after %d frames: %v", e.Frames, e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}

// Sink encodes fixed-size RGBA frames to an output file through an ffmpeg
// rawvideo stdin pipe. Frames must be written in order and match the target
// dimensions exactly; the encoder misbehaves on mismatched sizes.
type Sink struct {
	logger zerolog.Logger
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr bytes.Buffer

	width, height int
	frames        int
	closed        bool
}

// OpenSink starts an encoder process writing to outPath.
func OpenSink(ctx context.Context, logger zerolog.Logger, cfg config.FFmpegConfig, outPath string, target geometry.Target, fps float64) (*Sink, error) {
	ffmpegPath, err := exec.LookPath(cfg.BinaryPath)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", "rawvideo",
		"-vcodec", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", target.Width, target.Height),
		"-r", fmt.Sprintf("%g", fps),
		"-i", "-",
		"-c:v", "libx264",
		"-preset", cfg.Preset,
		"-crf", fmt.Sprintf("%d", cfg.CRF),
		"-threads", fmt.Sprintf("%d", cfg.Threads),
		"-pix_fmt", "yuv420p",
		"-reset_timestamps", "1",
		outPath,
	}

	k := &Sink{
		logger: logger.With().Str("component", "sink").Logger(),
		width:  target.Width,
		height: target.Height,
	}

	cmd := exec.CommandContext(ctx, ffmpegPath, args...)
	cmd.Stderr = &k.stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, &SinkError{Err: fmt.Errorf("failed to start encoder: %w", err)}
	}

	k.logger.Debug().
		Str("output", outPath).
		Int("width", target.Width).
		Int("height", target.Height).
		Float64("fps", fps).
		Msg("encoder started")

	k.cmd = cmd
	k.stdin = stdin
	return k, nil
}

// WriteFrame delivers one frame to the encoder. The frame must be exactly
// the sink's target size.
func (k *Sink) WriteFrame(img *image.RGBA) error {
	if b := img.Bounds(); b.Dx() != k.width || b.Dy() != k.height {
		return fmt.Errorf("frame size %dx%d does not match sink %dx%d",
			b.Dx(), b.Dy(), k.width, k.height)
	}

	if err := k.writePixels(img); err != nil {
		// A broken pipe means the encoder died; collect its exit state
		// so the diagnostic tail is available.
		_ = k.stdin.Close()
		waitErr := k.cmd.Wait()
		k.closed = true
		if waitErr == nil {
			waitErr = err
		}
		return &SinkError{Frames: k.frames, Detail: k.stderrTail(), Err: waitErr}
	}

	k.frames++
	return nil
}

func (k *Sink) writePixels(img *image.RGBA) error {
	rowLen := k.width * 4
	if img.Stride == rowLen && img.Rect.Min == (image.Point{}) {
		_, err := k.stdin.Write(img.Pix[:rowLen*k.height])
		return err
	}
	for y := 0; y < k.height; y++ {
		off := img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y+y)
		if _, err := k.stdin.Write(img.Pix[off : off+rowLen]); err != nil {
			return err
		}
	}
	return nil
}

// FramesWritten returns how many frames were accepted by the encoder.
func (k *Sink) FramesWritten() int {
	return k.frames
}

// Close finishes the stream and waits for the encoder to exit. A non-zero
// exit surfaces as a SinkError carrying the diagnostic tail.
func (k *Sink) Close() error {
	if k.closed {
		return nil
	}
	k.closed = true

	_ = k.stdin.Close()
	if err := k.cmd.Wait(); err != nil {
		return &SinkError{Frames: k.frames, Detail: k.stderrTail(), Err: err}
	}

	k.logger.Debug().Int("frames", k.frames).Msg("encoder finished")
	return nil
}

// Abort kills the encoder without waiting for a clean finish. Used when the
// run is being torn down because of an earlier fatal error.
func (k *Sink) Abort() {
	if k.closed {
		return
	}
	k.closed = true
	_ = k.stdin.Close()
	if k.cmd.Process != nil {
		_ = k.cmd.Process.Kill()
	}
	_ = k.cmd.Wait()
}

func (k *Sink) stderrTail() string {
	out := k.stderr.Bytes()
	if len(out) > stderrTailBytes {
		out = out[len(out)-stderrTailBytes:]
	}
	return string(bytes.TrimSpace(out))
}
