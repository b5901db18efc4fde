package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/yorubaocr/pkg/history"
	"github.com/cyclopcam/yorubaocr/pkg/idgen"
	"github.com/cyclopcam/yorubaocr/pkg/logprefix"
	"github.com/cyclopcam/yorubaocr/pkg/nn"
	"github.com/cyclopcam/yorubaocr/pkg/nnrunner"
	"github.com/cyclopcam/yorubaocr/pkg/perfstats"
	"github.com/cyclopcam/yorubaocr/pkg/resize"
	"github.com/cyclopcam/yorubaocr/pkg/rgba"
)

// Package orchestrator drives a single prediction cycle:
// permission -> pick -> resize -> decode -> normalize -> infer -> display.
//
// Only one cycle is ever shown. Every cycle takes a new generation number, and any
// state change from a cycle whose generation is no longer the latest is thrown away.
// Old cycles are not cancelled. They run to completion, and their callers get ErrSuperseded.

type Config struct {
	ResizeFormat resize.Format // Intermediate format between resize and decode. Zero value is JPEG.
	HistorySize  int           // Number of resolved cycles to remember. Zero means history.DefaultSize.
	Strict       bool          // Re-panic after recovering a panic inside the pipeline. For development.
}

// Dependencies of the orchestrator. Library, Camera, and Releaser may be nil.
type Deps struct {
	Resizer     resize.Resizer
	Decoder     rgba.Decoder
	Model       Model
	Permissions Permissions
	Library     Picker
	Camera      Picker
	Releaser    Releaser
}

type Orchestrator struct {
	log     logs.Log
	config  Config
	deps    Deps
	gen     idgen.Generation
	history *history.History
	stats   *perfstats.PerfStats

	lock     sync.Mutex
	snapshot Snapshot
	watchers map[chan Snapshot]struct{}
}

func New(log logs.Log, deps Deps, config Config) *Orchestrator {
	if deps.Decoder == nil {
		deps.Decoder = rgba.ImageDecoder{}
	}
	if deps.Permissions == nil {
		deps.Permissions = StaticPermissions{}
	}
	return &Orchestrator{
		log:      logprefix.New(log, "Orchestrator"),
		config:   config,
		deps:     deps,
		history:  history.New(config.HistorySize),
		stats:    perfstats.New(),
		watchers: map[chan Snapshot]struct{}{},
	}
}

// Return a copy of the current observable state
func (o *Orchestrator) Snapshot() Snapshot {
	o.lock.Lock()
	defer o.lock.Unlock()
	return o.copySnapshot()
}

// Return the resolved cycles, newest first
func (o *Orchestrator) History() []history.Entry {
	return o.history.List()
}

// Return accumulated stage timings
func (o *Orchestrator) Stats() *perfstats.PerfStats {
	return o.stats
}

// Ask for media library permission, let the user pick an image, and predict it
func (o *Orchestrator) SelectImage(ctx context.Context) (*Result, error) {
	if o.deps.Library == nil {
		return nil, fmt.Errorf("No media library configured")
	}
	return o.Select(ctx, PermissionMediaLibrary, o.deps.Library)
}

// Ask for camera permission, let the user take a photo, and predict it
func (o *Orchestrator) CapturePhoto(ctx context.Context) (*Result, error) {
	if o.deps.Camera == nil {
		return nil, fmt.Errorf("No camera configured")
	}
	return o.Select(ctx, PermissionCamera, o.deps.Camera)
}

// Select is the general form of SelectImage and CapturePhoto, for adapters that
// create a picker per request.
//
// Returns ErrUserCancelled if the user dismissed the picker, and ErrSuperseded if a newer
// cycle started before this one finished. Any other outcome, including failures, is a Result.
func (o *Orchestrator) Select(ctx context.Context, permission Permission, picker Picker) (*Result, error) {
	gen := o.gen.Next()
	if !o.transition(gen, StateSelecting, nil) {
		return nil, ErrSuperseded
	}

	granted, err := o.deps.Permissions.Request(ctx, permission)
	if err != nil || !granted {
		// Denial discards the held image as well
		return o.resolve(gen, "", time.Now(), perfstats.StageTimings{}, &PermissionDeniedError{Permission: permission, Cause: err}, nn.InferenceOutput{})
	}

	uri, err := picker.Pick(ctx)
	if errors.Is(err, ErrUserCancelled) {
		o.reset(gen)
		if !o.gen.IsCurrent(gen) {
			return nil, ErrSuperseded
		}
		return nil, ErrUserCancelled
	} else if err != nil {
		o.log.Warnf("Picking %v image failed: %v", permission, err)
		return o.resolve(gen, "", time.Now(), perfstats.StageTimings{}, err, nn.InferenceOutput{})
	}

	return o.run(ctx, gen, uri, true)
}

// Predict runs a cycle on an image that the caller already holds
func (o *Orchestrator) Predict(ctx context.Context, uri string) (*Result, error) {
	return o.run(ctx, o.gen.Next(), uri, false)
}

// Run another cycle on the current source image
func (o *Orchestrator) RetryPredict(ctx context.Context) (*Result, error) {
	o.lock.Lock()
	uri := o.snapshot.Source
	o.lock.Unlock()
	if uri == "" {
		return nil, ErrNoImage
	}
	return o.run(ctx, o.gen.Next(), uri, false)
}

// Discard the source image and result, and return to Idle.
// Any cycle in flight is superseded.
func (o *Orchestrator) Clear() {
	gen := o.gen.Next()
	o.lock.Lock()
	old := o.snapshot.Source
	o.snapshot = Snapshot{State: StateIdle, Generation: gen}
	o.publish()
	o.lock.Unlock()
	o.release(old)
	o.log.Infof("Cleared")
}

// Move to a new in-flight state. Returns false if gen has been superseded.
// If source is not nil, it replaces the held source image, and the previous result is discarded.
func (o *Orchestrator) transition(gen uint64, state State, source *string) bool {
	o.lock.Lock()
	if !o.gen.IsCurrent(gen) {
		o.lock.Unlock()
		return false
	}
	old := o.snapshot.Source
	o.snapshot.State = state
	o.snapshot.Generation = gen
	if source != nil {
		o.snapshot.Source = *source
		o.snapshot.Result = nil
		o.snapshot.Timings = perfstats.StageTimings{}
	}
	o.publish()
	o.lock.Unlock()

	if source != nil && old != *source {
		o.release(old)
	}
	return true
}

// Return to Idle after a cancelled pick
func (o *Orchestrator) reset(gen uint64) {
	o.lock.Lock()
	if !o.gen.IsCurrent(gen) {
		o.lock.Unlock()
		return
	}
	old := o.snapshot.Source
	o.snapshot = Snapshot{State: StateIdle, Generation: gen}
	o.publish()
	o.lock.Unlock()
	o.release(old)
	o.log.Debugf("Pick cancelled")
}

// picked is true when uri came from a picker during this cycle, so the orchestrator owns it
// even if it never becomes the held source image.
func (o *Orchestrator) run(ctx context.Context, gen uint64, uri string, picked bool) (result *Result, err error) {
	start := time.Now()
	timings := perfstats.StageTimings{}

	defer func() {
		if r := recover(); r != nil {
			o.log.Criticalf("Panic in prediction pipeline for %v: %v\n%v", uri, r, string(debug.Stack()))
			result, err = o.resolve(gen, uri, start, timings, fmt.Errorf("%w: %v", errInternal, r), nn.InferenceOutput{})
			if o.config.Strict {
				panic(r)
			}
		}
	}()

	if !o.transition(gen, StatePreprocessing, &uri) {
		if picked {
			o.discard(uri)
		}
		return nil, ErrSuperseded
	}

	tensor, err := o.preprocess(ctx, uri, &timings)
	if err != nil {
		return o.resolve(gen, uri, start, timings, err, nn.InferenceOutput{})
	}

	if o.deps.Model == nil || o.deps.Model.State() != nnrunner.StateLoaded {
		return o.resolve(gen, uri, start, timings, nnrunner.ErrModelNotReady, nn.InferenceOutput{})
	}

	if !o.transition(gen, StateInferring, nil) {
		return nil, ErrSuperseded
	}

	var output nn.InferenceOutput
	err = timings.Time(perfstats.StageInference, func() error {
		var runErr error
		output, runErr = o.deps.Model.Run(ctx, tensor)
		return runErr
	})
	return o.resolve(gen, uri, start, timings, err, output)
}

// Resize, decode, and normalize the source image
func (o *Orchestrator) preprocess(ctx context.Context, uri string, timings *perfstats.StageTimings) (nn.InputTensor, error) {
	var resized *resize.Result
	err := timings.Time(perfstats.StageResize, func() error {
		var err error
		resized, err = o.deps.Resizer.Resize(ctx, uri, resize.Options{
			Width:  nn.InputWidth,
			Height: nn.InputHeight,
			Base64: true,
			Format: o.config.ResizeFormat,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	var pixels rgba.RawPixelBuffer
	err = timings.Time(perfstats.StageDecode, func() error {
		var err error
		pixels, err = o.deps.Decoder.DecodeBase64(resized.Base64)
		return err
	})
	if err != nil {
		return nil, err
	}

	var tensor nn.InputTensor
	err = timings.Time(perfstats.StageNormalize, func() error {
		var err error
		tensor, err = nn.Normalize(pixels)
		return err
	})
	return tensor, err
}

// Publish the outcome of a cycle, if it is still the latest.
// source is the image that the cycle was working on, or empty if no image is held.
func (o *Orchestrator) resolve(gen uint64, source string, start time.Time, timings perfstats.StageTimings, err error, output nn.InferenceOutput) (*Result, error) {
	timings.Total = time.Since(start)

	result := &Result{}
	if err != nil {
		result.Err = err
		result.Message = userMessage(err)
	} else {
		result.Text = displayText(output)
	}

	o.lock.Lock()
	if !o.gen.IsCurrent(gen) {
		o.lock.Unlock()
		o.log.Debugf("Discarding result of superseded generation %v (%v)", gen, result)
		return nil, ErrSuperseded
	}
	old := o.snapshot.Source
	o.snapshot.State = StateResolved
	o.snapshot.Source = source
	o.snapshot.Result = result
	o.snapshot.Generation = gen
	o.snapshot.Timings = timings
	o.publish()
	o.lock.Unlock()

	if old != source {
		o.release(old)
	}

	o.history.Add(history.Entry{
		Generation: gen,
		Source:     source,
		Text:       result.Text,
		Error:      result.Message,
		At:         time.Now(),
	})
	o.stats.Add(timings)

	if err != nil {
		o.log.Errorf("Prediction %v failed (%v): %v", gen, result.Message, err)
	} else {
		o.log.Infof("Prediction %v: %v", gen, result.Text)
	}
	o.log.Debugf("Timings %v: %v", gen, timings)
	return result, nil
}

func (o *Orchestrator) release(uri string) {
	if uri == "" || o.deps.Releaser == nil {
		return
	}
	if err := o.deps.Releaser.Delete(context.Background(), uri); err != nil {
		o.log.Warnf("Failed to release %v: %v", uri, err)
	}
}

// Release an image that was picked by a superseded cycle, unless it is the held source
func (o *Orchestrator) discard(uri string) {
	o.lock.Lock()
	held := o.snapshot.Source == uri
	o.lock.Unlock()
	if !held {
		o.release(uri)
	}
}

// Must be called with o.lock held
func (o *Orchestrator) copySnapshot() Snapshot {
	s := o.snapshot
	if s.Result != nil {
		r := *s.Result
		s.Result = &r
	}
	return s
}
