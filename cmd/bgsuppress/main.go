package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"bgsuppress/internal/logger"
	"bgsuppress/pkg/config"
	"bgsuppress/pkg/intensity"
	"bgsuppress/pkg/marker"
	"bgsuppress/pkg/metrics"
	"bgsuppress/pkg/pipeline"
	"bgsuppress/pkg/source"
	"bgsuppress/pkg/visualization"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "bgsuppress.yaml", "YAML configuration file (optional)")
	initConfig := flag.Bool("init-config", false, "Write a default configuration file to -config and exit")
	inputDir := flag.String("input", "", "Directory containing the frame images")
	outputDir := flag.String("output", "", "Directory to write mask images to")
	save := flag.Bool("save", false, "Write one mask image per analysed frame")
	windowSize := flag.Int("window", pipeline.DefaultWindowSize, "Number of frames in the sliding window")
	threshold := flag.Float64("threshold", marker.DefaultThreshold, "Z-score above which a pixel is marked")
	policy := flag.String("policy", "average", "Intensity policy: average or single-channel")
	depth := flag.String("depth", "full", "Processing depth: full or decode-only")
	format := flag.String("format", "png", "Mask image format: png or bmp")
	mode := flag.String("mode", "mask", "Mask output: mask or overlay")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	logJSON := flag.Bool("log-json", false, "Log JSON lines instead of console output")
	metricsFile := flag.String("metrics-file", "", "Write run metrics in Prometheus text format to this file")
	flag.Parse()

	if *initConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Explicit flags override the file
	var flagErr error
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "input":
			cfg.Input.Dir = *inputDir
		case "output":
			cfg.Output.Dir = *outputDir
			cfg.Output.Save = true
		case "save":
			cfg.Output.Save = *save
		case "window":
			cfg.Analysis.WindowSize = *windowSize
		case "threshold":
			cfg.Analysis.Threshold = *threshold
		case "policy":
			p, err := intensity.ParsePolicy(*policy)
			flagErr = errors.Join(flagErr, err)
			cfg.Analysis.Policy = p
		case "depth":
			d, err := pipeline.ParseDepth(*depth)
			flagErr = errors.Join(flagErr, err)
			cfg.Analysis.Depth = d
		case "format":
			cfg.Output.Format = *format
		case "mode":
			cfg.Output.Mode = *mode
		case "log-level":
			cfg.Log.Level = *logLevel
		case "log-json":
			cfg.Log.JSON = *logJSON
		case "metrics-file":
			cfg.Metrics.File = *metricsFile
		}
	})
	if flagErr != nil {
		fmt.Fprintf(os.Stderr, "%v\n", flagErr)
		flag.Usage()
		os.Exit(2)
	}
	if cfg.Input.Dir == "" {
		flag.Usage()
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	os.Exit(run(cfg))
}

func run(cfg *config.Config) int {
	level, _ := logger.ParseLevel(cfg.Log.Level)
	base, runID := logger.WithRun(logger.New(os.Stderr, level, cfg.Log.JSON))
	log := logger.Component(base, "cli")

	src, err := source.OpenDir(cfg.Input.Dir)
	if err != nil {
		log.Error().Err(err).Str("dir", cfg.Input.Dir).Msg("failed to open input")
		return 1
	}

	var sink visualization.Sink = visualization.Discard{}
	if cfg.Output.Save {
		format, _ := visualization.ParseFormat(cfg.Output.Format)
		mode, _ := visualization.ParseMode(cfg.Output.Mode)
		dirSink, err := visualization.NewDirSink(cfg.Output.Dir, format, mode)
		if err != nil {
			log.Error().Err(err).Str("dir", cfg.Output.Dir).Msg("failed to prepare output")
			return 1
		}
		sink = dirSink
	}

	driver, err := pipeline.NewDriver(cfg.Params(), src, sink)
	if err != nil {
		log.Error().Err(err).Msg("invalid parameters")
		return 1
	}
	driver.SetLogger(base)

	var recorder *metrics.Recorder
	if cfg.Metrics.File != "" {
		recorder = metrics.NewRecorder()
		driver.SetMetrics(recorder)
	}
	if cfg.Params().Depth == pipeline.FullStatistics && cfg.Params().Policy != intensity.Average {
		log.Warn().Stringer("policy", cfg.Params().Policy).Msg("statistics are normally computed on average intensity")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, runErr := driver.Run(ctx)

	if err := recorder.WriteTextfile(cfg.Metrics.File); err != nil {
		log.Warn().Err(err).Str("file", cfg.Metrics.File).Msg("failed to write metrics")
	}

	printSummary(runID, cfg, summary)

	if runErr != nil {
		log.Error().Err(runErr).Stringer("state", summary.State).Msg("analysis aborted")
		return 1
	}
	return 0
}

func printSummary(runID string, cfg *config.Config, s *pipeline.Summary) {
	fmt.Printf("\nRun %s\n", runID)
	fmt.Printf("=======================================\n")
	fmt.Printf("Input directory:   %s\n", cfg.Input.Dir)
	fmt.Printf("Window / threshold: %d frames / %.2f sigma\n", cfg.Analysis.WindowSize, cfg.Analysis.Threshold)
	fmt.Printf("Frames listed:     %d\n", s.Frames)
	fmt.Printf("Frames converted:  %d\n", s.Converted)
	fmt.Printf("Frames analysed:   %d\n", s.Analysed)
	fmt.Printf("Frames skipped:    %d\n", len(s.Skipped))
	for _, sk := range s.Skipped {
		fmt.Printf("  - %s: %v\n", sk.Name, sk.Err)
	}
	fmt.Printf("Marked pixels:     %d (mean %.4f%% per frame)\n", s.MarkedPixels, 100*s.MeanMarkedRatio)
	if s.SinkErrors > 0 {
		fmt.Printf("Mask write errors: %d\n", s.SinkErrors)
	}
	fmt.Printf("Elapsed:           %.3f seconds\n", s.Elapsed.Seconds())
	if cfg.Output.Save {
		fmt.Printf("Masks saved to:    %s\n", cfg.Output.Dir)
	}
}
