// Package pipeline orchestrates a single reframing run: probe, mode
// selection, one forward planning pass, encode. Processing is strictly
// sequential per frame; the only concurrency is the ffmpeg decoder and
// encoder processes on either side of the pass.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/rs/zerolog"

	"github.com/voxline/reframe/internal/config"
	"github.com/voxline/reframe/internal/detect"
	"github.com/voxline/reframe/internal/geometry"
	"github.com/voxline/reframe/internal/media"
	"github.com/voxline/reframe/internal/planner"
)

// Pipeline runs reframing passes.
type Pipeline struct {
	logger zerolog.Logger
	cfg    *config.Config
}

// New creates a pipeline instance.
func New(logger zerolog.Logger, cfg *config.Config) *Pipeline {
	return &Pipeline{
		logger: logger.With().Str("component", "pipeline").Logger(),
		cfg:    cfg,
	}
}

// CropOptions configures a reframing run.
type CropOptions struct {
	Input  string
	Output string
	// Mode is auto, face or screen. Auto samples the video to decide.
	Mode string
}

// Result summarizes a completed run.
type Result struct {
	Mode          planner.Mode
	Passthrough   bool
	Target        geometry.Target
	FramesWritten int
	Info          media.VideoInfo
}

// ProgressFunc is called after every encoded frame with the running count.
type ProgressFunc func(framesWritten int)

// Probe returns the resolved metadata for a video without planning anything.
func (p *Pipeline) Probe(ctx context.Context, input string) (*media.VideoInfo, error) {
	src, err := media.OpenSource(ctx, p.logger, p.cfg.FFmpeg, input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInputUnreadable, err)
	}
	defer src.Close()
	info := src.Info()
	return &info, nil
}

// DetectMode runs mode selection only and reports the decision.
func (p *Pipeline) DetectMode(ctx context.Context, input string) (planner.Selection, *media.VideoInfo, error) {
	src, err := media.OpenSource(ctx, p.logger, p.cfg.FFmpeg, input)
	if err != nil {
		return planner.Selection{}, nil, fmt.Errorf("%w: %v", ErrInputUnreadable, err)
	}
	defer src.Close()

	info := src.Info()
	selection := p.selectMode(ctx, src, info)
	return selection, &info, nil
}

// Crop plans and encodes a vertically reframed rendition of the input.
func (p *Pipeline) Crop(ctx context.Context, opts CropOptions, progress ProgressFunc) (*Result, error) {
	src, err := media.OpenSource(ctx, p.logger, p.cfg.FFmpeg, opts.Input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInputUnreadable, err)
	}
	defer src.Close()

	info := src.Info()
	if info.Width < 2 || info.Height < 2 {
		return nil, fmt.Errorf("%w: source is %dx%d", ErrInvalidDimensions, info.Width, info.Height)
	}

	target := geometry.FitPortrait(info.Width, info.Height)
	if !target.Valid() {
		return nil, fmt.Errorf("%w: computed target is %dx%d", ErrInvalidDimensions, target.Width, target.Height)
	}

	p.logger.Info().
		Str("input", opts.Input).
		Int("width", info.Width).
		Int("height", info.Height).
		Float64("fps", info.FPS).
		Int("frames", info.FrameCount).
		Int("target_width", target.Width).
		Int("target_height", target.Height).
		Msg("starting reframe")

	mode, err := p.resolveMode(ctx, src, opts.Mode, info)
	if err != nil {
		return nil, err
	}

	result := &Result{Mode: mode, Target: target, Info: info}

	switch {
	case mode == planner.ModeFace && info.Width <= target.Width:
		// Nothing to track when the source is already no wider than the
		// crop; the detector is never touched.
		result.Passthrough = true
		err = p.runPassthrough(ctx, src, opts.Output, target, info, result, progress)
	case mode == planner.ModeFace:
		err = p.runFace(ctx, src, opts.Output, target, info, result, progress)
	default:
		err = p.runScreen(ctx, src, opts.Output, target, info, result, progress)
	}
	if err != nil {
		return nil, err
	}

	p.logger.Info().
		Stringer("mode", result.Mode).
		Int("frames", result.FramesWritten).
		Str("output", opts.Output).
		Msg("reframe complete")

	return result, nil
}

// resolveMode honors an explicit mode override or samples the video.
func (p *Pipeline) resolveMode(ctx context.Context, src *media.Source, mode string, info media.VideoInfo) (planner.Mode, error) {
	switch mode {
	case "", "auto":
		return p.selectMode(ctx, src, info).Mode, nil
	default:
		if m, ok := planner.ParseMode(mode); ok {
			return m, nil
		}
		return 0, fmt.Errorf("unknown mode %q (want auto, face or screen)", mode)
	}
}

// selectMode opens a detector scoped to the sampling phase; the face pass
// acquires its own instance later so resources never outlive their use.
func (p *Pipeline) selectMode(ctx context.Context, src *media.Source, info media.VideoInfo) planner.Selection {
	detector, err := detect.Open(p.logger, p.cfg.Detector)
	if err != nil {
		if !errors.Is(err, detect.ErrUnavailable) {
			p.logger.Warn().Err(err).Msg("detector init failed, falling back to screen mode")
		}
		return planner.SelectMode(ctx, p.logger, nil, src, info.FrameCount, p.cfg.Tuning)
	}
	defer detector.Close()

	return planner.SelectMode(ctx, p.logger, detector, src, info.FrameCount, p.cfg.Tuning)
}

func (p *Pipeline) runPassthrough(ctx context.Context, src *media.Source, output string, target geometry.Target, info media.VideoInfo, result *Result, progress ProgressFunc) error {
	sink, err := media.OpenSink(ctx, p.logger, p.cfg.FFmpeg, output, target, info.FPS)
	if err != nil {
		return err
	}

	render := func(frame *image.RGBA) *image.RGBA {
		return planner.Passthrough(frame, target)
	}
	return p.stream(ctx, src, sink, render, 0, result, progress)
}

func (p *Pipeline) runFace(ctx context.Context, src *media.Source, output string, target geometry.Target, info media.VideoInfo, result *Result, progress ProgressFunc) error {
	detector, err := detect.Open(p.logger, p.cfg.Detector)
	if err != nil {
		if errors.Is(err, detect.ErrUnavailable) {
			return fmt.Errorf("%w: %v", ErrDetectorUnavailable, err)
		}
		return err
	}
	defer detector.Close()

	sink, err := media.OpenSink(ctx, p.logger, p.cfg.FFmpeg, output, target, info.FPS)
	if err != nil {
		return err
	}

	fp := planner.NewFacePlanner(p.logger, detector, p.cfg.Tuning, info.Width, info.Height, info.FPS, target)
	render := func(frame *image.RGBA) *image.RGBA {
		rect := fp.Plan(frame)
		return planner.RenderCrop(frame, rect, target)
	}
	return p.stream(ctx, src, sink, render, 0, result, progress)
}

func (p *Pipeline) runScreen(ctx context.Context, src *media.Source, output string, target geometry.Target, info media.VideoInfo, result *Result, progress ProgressFunc) error {
	sink, err := media.OpenSink(ctx, p.logger, p.cfg.FFmpeg, output, target, info.FPS)
	if err != nil {
		return err
	}

	sp := planner.NewScreenPlanner(p.logger, p.cfg.Tuning, info.Width, info.Height, info.FPS, target)
	// A known frame count caps the pass; decoders occasionally emit more
	// frames than the container declares.
	return p.stream(ctx, src, sink, sp.Plan, info.FrameCount, result, progress)
}

// stream drives the single forward pass: read, plan/render, encode, in
// strict frame order. A sink failure stops pulling frames immediately; the
// deferred detector and source teardown in the callers runs before the
// error surfaces.
func (p *Pipeline) stream(ctx context.Context, src *media.Source, sink *media.Sink, render func(*image.RGBA) *image.RGBA, maxFrames int, result *Result, progress ProgressFunc) error {
	if err := src.Start(ctx); err != nil {
		sink.Abort()
		return fmt.Errorf("%w: %v", ErrInputUnreadable, err)
	}

	for {
		if maxFrames > 0 && sink.FramesWritten() >= maxFrames {
			break
		}

		frame, err := src.ReadNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			sink.Abort()
			return fmt.Errorf("decode failed: %w", err)
		}

		if err := sink.WriteFrame(render(frame)); err != nil {
			result.FramesWritten = sink.FramesWritten()
			return err
		}

		result.FramesWritten = sink.FramesWritten()
		if progress != nil {
			progress(result.FramesWritten)
		}
	}

	err := sink.Close()
	result.FramesWritten = sink.FramesWritten()
	return err
}
