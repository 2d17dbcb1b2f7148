// Package metrics exposes per-run counters for the analysis pipeline.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder collects pipeline metrics in its own registry. A nil *Recorder is
// valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	framesProcessed prometheus.Counter
	framesSkipped   prometheus.Counter
	sinkErrors      prometheus.Counter
	pixelsMarked    prometheus.Counter
	windowFrames    prometheus.Gauge
	markedRatio     prometheus.Gauge
	frameTime       prometheus.Histogram
}

// NewRecorder creates a recorder with all metrics registered
func NewRecorder() *Recorder {
	r := &Recorder{registry: prometheus.NewRegistry()}

	r.framesProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bgsuppress_frames_processed_total",
		Help: "Total frames decoded and converted",
	})
	r.framesSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bgsuppress_frames_skipped_total",
		Help: "Total frames skipped because they could not be decoded",
	})
	r.sinkErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bgsuppress_sink_errors_total",
		Help: "Total masks the output sink failed to consume",
	})
	r.pixelsMarked = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bgsuppress_pixels_marked_total",
		Help: "Total pixels marked as deviating",
	})
	r.windowFrames = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bgsuppress_window_frames",
		Help: "Number of frames in the sliding window",
	})
	r.markedRatio = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bgsuppress_last_frame_marked_ratio",
		Help: "Fraction of pixels marked in the last analysed frame",
	})
	r.frameTime = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "bgsuppress_frame_processing_seconds",
		Help:    "Time spent processing one frame",
		Buckets: prometheus.DefBuckets,
	})

	r.registry.MustRegister(
		r.framesProcessed,
		r.framesSkipped,
		r.sinkErrors,
		r.pixelsMarked,
		r.windowFrames,
		r.markedRatio,
		r.frameTime,
	)

	return r
}

// Registry returns the registry holding the recorder's metrics
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// FrameProcessed counts a decoded frame and observes how long it took
func (r *Recorder) FrameProcessed(d time.Duration) {
	if r == nil {
		return
	}
	r.framesProcessed.Inc()
	r.frameTime.Observe(d.Seconds())
}

// FrameSkipped counts a frame that could not be decoded
func (r *Recorder) FrameSkipped() {
	if r == nil {
		return
	}
	r.framesSkipped.Inc()
}

// SinkError counts a failed sink write
func (r *Recorder) SinkError() {
	if r == nil {
		return
	}
	r.sinkErrors.Inc()
}

// FrameMarked records the mask result of an analysed frame
func (r *Recorder) FrameMarked(marked, total, windowSize int) {
	if r == nil {
		return
	}
	r.pixelsMarked.Add(float64(marked))
	r.windowFrames.Set(float64(windowSize))
	if total > 0 {
		r.markedRatio.Set(float64(marked) / float64(total))
	}
}

// WriteTextfile writes all metrics in the text exposition format, suitable
// for the node exporter textfile collector
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("error writing metrics file: %w", err)
	}
	return nil
}
