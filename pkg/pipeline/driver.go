// Package pipeline drives a frame sequence through intensity conversion, the
// sliding window, window statistics and deviation marking.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"bgsuppress/internal/logger"
	"bgsuppress/internal/models"
	"bgsuppress/pkg/intensity"
	"bgsuppress/pkg/marker"
	"bgsuppress/pkg/metrics"
	"bgsuppress/pkg/source"
	"bgsuppress/pkg/stats"
	"bgsuppress/pkg/visualization"
	"bgsuppress/pkg/window"
)

// DefaultWindowSize is the number of frames the background is estimated from.
const DefaultWindowSize = 5

// ErrInvalidParams is returned by Validate and NewDriver for unusable parameters.
var ErrInvalidParams = errors.New("pipeline: invalid parameters")

// Params holds the analysis parameters
type Params struct {
	// WindowSize is the capacity of the sliding window in frames
	WindowSize int

	// Threshold is the z-score above which a pixel is marked
	Threshold float64

	// Policy is how colour pixels are reduced to intensity
	Policy intensity.Policy

	// Depth selects decode-only or full statistics processing
	Depth Depth
}

// DefaultParams returns the parameters used when nothing is configured
func DefaultParams() *Params {
	return &Params{
		WindowSize: DefaultWindowSize,
		Threshold:  marker.DefaultThreshold,
		Policy:     intensity.Average,
		Depth:      FullStatistics,
	}
}

// Validate checks that the parameters describe a runnable analysis
func (p *Params) Validate() error {
	if p.WindowSize <= 0 {
		return fmt.Errorf("%w: window size must be positive, got %d", ErrInvalidParams, p.WindowSize)
	}
	if !(p.Threshold > 0) || math.IsInf(p.Threshold, 1) {
		return fmt.Errorf("%w: threshold must be a positive number, got %v", ErrInvalidParams, p.Threshold)
	}
	if _, err := p.Policy.MarshalText(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	if _, err := p.Depth.MarshalText(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return nil
}

// Observer is called on every state transition with the index and name of
// the frame being processed (-1 and "" outside the frame loop)
type Observer func(state State, index int, name string)

// SkippedFrame records a frame that could not be decoded
type SkippedFrame struct {
	Index int
	Name  string
	Err   error
}

// Summary describes a finished or aborted run
type Summary struct {
	// Frames is the number of names the source offered
	Frames int

	// Converted counts frames decoded and converted to intensity
	Converted int

	// Analysed counts frames that went through statistics and marking
	Analysed int

	// Skipped lists frames dropped because of decode failures
	Skipped []SkippedFrame

	// MarkedPixels is the total number of marked pixels over all frames
	MarkedPixels int

	// MeanMarkedRatio is the average fraction of marked pixels per analysed frame
	MeanMarkedRatio float64

	// SinkErrors counts masks the sink failed to consume
	SinkErrors int

	// Elapsed is the wall time of the run
	Elapsed time.Duration

	// State is Done for completed runs and the failing stage otherwise
	State State
}

// Driver runs the analysis over every frame of a source, one frame at a time
type Driver struct {
	params   *Params
	src      source.Source
	sink     visualization.Sink
	log      zerolog.Logger
	metrics  *metrics.Recorder
	observer Observer

	state State
	mask  []uint8
}

// NewDriver creates a driver for the given source. A nil sink discards masks.
func NewDriver(params *Params, src source.Source, sink visualization.Sink) (*Driver, error) {
	if params == nil {
		params = DefaultParams()
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, fmt.Errorf("%w: no frame source", ErrInvalidParams)
	}
	if sink == nil {
		sink = visualization.Discard{}
	}

	return &Driver{
		params: params,
		src:    src,
		sink:   sink,
		log:    zerolog.Nop(),
		state:  Idle,
	}, nil
}

// SetLogger sets the logger used for progress and skipped frames
func (d *Driver) SetLogger(l zerolog.Logger) {
	d.log = logger.Component(l, "pipeline")
}

// SetMetrics sets the recorder updated for every frame
func (d *Driver) SetMetrics(m *metrics.Recorder) {
	d.metrics = m
}

// SetObserver sets a callback invoked on every state transition
func (d *Driver) SetObserver(o Observer) {
	d.observer = o
}

// State returns the state of the last transition
func (d *Driver) State() State {
	return d.state
}

func (d *Driver) enter(s State, index int, name string) {
	d.state = s
	if d.observer != nil {
		d.observer(s, index, name)
	}
}

// Run processes every frame of the source in order. Frames that fail to
// decode are logged and skipped. A frame whose dimensions differ from the
// window aborts the run. Cancelling ctx stops the run before the next frame.
//
// Each run starts from an empty window.
func (d *Driver) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	names := d.src.Names()
	summary := &Summary{Frames: len(names)}
	defer func() {
		summary.Elapsed = time.Since(start)
		summary.State = d.state
	}()

	win, err := window.New(d.params.WindowSize)
	if err != nil {
		return summary, err
	}
	acc := stats.NewAccumulator()
	var ratios []float64

	d.enter(Idle, -1, "")
	d.log.Info().
		Int("frames", len(names)).
		Int("window", d.params.WindowSize).
		Float64("threshold", d.params.Threshold).
		Stringer("policy", d.params.Policy).
		Stringer("depth", d.params.Depth).
		Msg("starting analysis")

	for i, name := range names {
		if err := ctx.Err(); err != nil {
			d.log.Warn().Err(err).Int("index", i).Msg("run cancelled")
			return summary, err
		}
		frameStart := time.Now()

		frame, err := d.load(ctx, i, name)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				d.log.Warn().Err(err).Int("index", i).Msg("run cancelled")
				return summary, ctxErr
			}
			summary.Skipped = append(summary.Skipped, SkippedFrame{Index: i, Name: name, Err: err})
			d.metrics.FrameSkipped()
			d.log.Warn().Err(err).Int("index", i).Str("frame", name).Msg("skipping frame")
			continue
		}
		summary.Converted++

		if d.params.Depth == FullStatistics {
			if err := d.analyse(win, acc, frame, summary, &ratios); err != nil {
				return summary, err
			}
		}
		d.metrics.FrameProcessed(time.Since(frameStart))
	}

	if len(ratios) > 0 {
		summary.MeanMarkedRatio = stat.Mean(ratios, nil)
	}
	d.enter(Done, -1, "")
	d.log.Info().
		Int("converted", summary.Converted).
		Int("analysed", summary.Analysed).
		Int("skipped", len(summary.Skipped)).
		Int("marked_pixels", summary.MarkedPixels).
		Dur("elapsed", time.Since(start)).
		Msg("analysis finished")

	return summary, nil
}

// load decodes one frame and converts it into a new intensity frame
func (d *Driver) load(ctx context.Context, i int, name string) (*models.Frame, error) {
	d.enter(Loading, i, name)
	raw, err := d.src.Load(ctx, name)
	if err != nil {
		return nil, err
	}

	d.enter(Converting, i, name)
	return intensity.Frame(raw, d.params.Policy, i, name)
}

// analyse pushes frame into the window, recomputes the statistics and marks
// the newest frame. All of this completes before the next frame is loaded.
func (d *Driver) analyse(win *window.Window, acc *stats.Accumulator, frame *models.Frame, summary *Summary, ratios *[]float64) error {
	i, name := frame.Index, frame.Name

	d.enter(WindowUpdate, i, name)
	if _, err := win.Push(frame); err != nil {
		d.log.Error().Err(err).Int("index", i).Str("frame", name).Msg("frame rejected by window")
		return fmt.Errorf("frame %s: %w", name, err)
	}

	d.enter(StatsCompute, i, name)
	res, err := acc.Compute(win)
	if err != nil {
		return fmt.Errorf("frame %s: %w", name, err)
	}

	d.enter(Marking, i, name)
	current := win.Current()
	var marked int
	d.mask, marked, err = marker.MarkInto(d.mask, current.Pixels, res.Mean, res.Std, d.params.Threshold)
	if err != nil {
		return fmt.Errorf("frame %s: %w", name, err)
	}

	mask := &models.Mask{
		Bits:   d.mask,
		Width:  current.Width,
		Height: current.Height,
		Index:  i,
		Name:   name,
		Marked: marked,
	}
	summary.Analysed++
	summary.MarkedPixels += marked
	*ratios = append(*ratios, mask.Ratio())
	d.metrics.FrameMarked(marked, len(mask.Bits), win.Size())

	d.log.Debug().
		Int("index", i).
		Str("frame", name).
		Int("window", win.Size()).
		Int("marked", marked).
		Msg("frame analysed")

	if err := d.sink.Consume(mask, current); err != nil {
		summary.SinkErrors++
		d.metrics.SinkError()
		d.log.Warn().Err(err).Int("index", i).Str("frame", name).Msg("failed to write mask")
	}

	return nil
}
