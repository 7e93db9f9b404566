package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/voxline/reframe/internal/config"
	"github.com/voxline/reframe/internal/logging"
	"github.com/voxline/reframe/internal/pipeline"
	"github.com/voxline/reframe/pkg/util"
)

var (
	cfgFile string
	verbose bool

	cropOutput string
	cropMode   string
)

func main() {
	ctx := context.Background()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "reframe",
	Short: "reframe - automatic 9:16 reframing of landscape video",
	Long:  "Converts landscape video to vertical 9:16 by planning a smooth crop path that follows faces, or on-screen motion when no face is present.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logging
		logging.Init(verbose)

		// Load config
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		// Store config in context
		ctx := config.WithConfig(cmd.Context(), cfg)
		cmd.SetContext(ctx)

		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./reframe.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	cropCmd.Flags().StringVarP(&cropOutput, "output", "o", "", "output video path (required)")
	cropCmd.Flags().StringVar(&cropMode, "mode", "auto", "planning mode: auto, face or screen")
	_ = cropCmd.MarkFlagRequired("output")

	rootCmd.AddCommand(cropCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(detectCmd)
}

var cropCmd = &cobra.Command{
	Use:   "crop [input video]",
	Short: "Reframe a landscape video to a vertical 9:16 rendition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		pipe := pipeline.New(log.Logger, cfg)

		if dir := filepath.Dir(cropOutput); dir != "." {
			if err := util.EnsureDir(dir); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		// Probe up front so the progress bar knows the frame total;
		// an unknown count renders as a spinner. Verbose runs skip the
		// bar, debug events would tear it apart.
		info, err := pipe.Probe(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		var bar *progressbar.ProgressBar
		var progress pipeline.ProgressFunc
		if !verbose {
			barTotal := info.FrameCount
			if barTotal <= 0 {
				barTotal = -1
			}
			bar = progressbar.NewOptions(barTotal,
				progressbar.OptionSetDescription("Reframing"),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
			)
			progress = func(written int) {
				_ = bar.Set(written)
			}
		}

		opts := pipeline.CropOptions{
			Input:  args[0],
			Output: cropOutput,
			Mode:   cropMode,
		}

		result, err := pipe.Crop(cmd.Context(), opts, progress)
		if bar != nil {
			_ = bar.Finish()
			fmt.Fprintln(os.Stderr)
		}
		if err != nil {
			return err
		}

		logger := logging.WithComponent("cli")
		logger.Info().
			Stringer("mode", result.Mode).
			Bool("passthrough", result.Passthrough).
			Int("frames", result.FramesWritten).
			Int("width", result.Target.Width).
			Int("height", result.Target.Height).
			Str("output", cropOutput).
			Msg("done")

		return nil
	},
}

var probeCmd = &cobra.Command{
	Use:   "probe [input video]",
	Short: "Print resolved video metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		pipe := pipeline.New(log.Logger, cfg)

		info, err := pipe.Probe(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("file:     %s\n", info.FilePath)
		fmt.Printf("codec:    %s\n", info.VideoCodec)
		fmt.Printf("size:     %dx%d\n", info.Width, info.Height)
		fmt.Printf("fps:      %.3f\n", info.FPS)
		fmt.Printf("frames:   %d\n", info.FrameCount)
		fmt.Printf("duration: %s\n", info.Duration)

		return nil
	},
}

var detectCmd = &cobra.Command{
	Use:   "detect [input video]",
	Short: "Report which planning mode the video would get",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		pipe := pipeline.New(log.Logger, cfg)

		selection, info, err := pipe.DetectMode(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		logger := logging.WithComponent("cli")
		logger.Info().
			Stringer("mode", selection.Mode).
			Int("samples_with_faces", len(selection.FaceCenters)).
			Ints("face_centers", selection.FaceCenters).
			Int("width", info.Width).
			Int("height", info.Height).
			Msg("mode selection")

		return nil
	},
}
