package nnrunner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/yorubaocr/pkg/logprefix"
	"github.com/cyclopcam/yorubaocr/pkg/nn"
)

// Package nnrunner owns the lifetime of the single model that the application uses.
// There is no global model. The owner creates a Handle, loads it once at startup,
// and passes it to whoever needs to run inference.

type State int

const (
	StateUnloaded State = iota
	StateLoading
	StateLoaded
	StateError
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateError:
		return "error"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	for st := StateUnloaded; st <= StateError; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("Unknown model state '%v'", string(b))
}

// ErrModelNotReady is returned by Run when the model is not in the loaded state
var ErrModelNotReady = errors.New("Model not ready")

// ErrInvalidTransition is returned by Load when the handle is not unloaded
var ErrInvalidTransition = errors.New("Model can only be loaded from the unloaded state")

// InferenceError wraps any failure of the engine, or malformed engine output
type InferenceError struct {
	Cause error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("Inference failed: %v", e.Cause)
}

func (e *InferenceError) Unwrap() error {
	return e.Cause
}

// Loader creates an engine from a model asset
type Loader func(ctx context.Context, asset nn.ModelAsset) (nn.Engine, error)

// Handle is the owned, injectable model handle.
// State transitions are unloaded -> loading -> loaded|error.
// loaded and error are terminal for Load. Unload returns the handle to unloaded.
type Handle struct {
	log    logs.Log
	asset  nn.ModelAsset
	loader Loader

	lock   sync.Mutex
	state  State
	err    error
	engine nn.Engine
	done   chan struct{} // Closed when the current load finishes

	// Run holds a read lock for the duration of inference, so that Unload
	// doesn't close the engine underneath it.
	inflight sync.RWMutex
}

func NewHandle(log logs.Log, asset nn.ModelAsset, loader Loader) *Handle {
	return &Handle{
		log:    logprefix.New(log, "Model"),
		asset:  asset,
		loader: loader,
	}
}

func (h *Handle) Asset() nn.ModelAsset {
	return h.asset
}

func (h *Handle) State() State {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.state
}

// Err returns the load error, if State() is StateError
func (h *Handle) Err() error {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.err
}

// Returns the engine's model config, or nil if the model is not loaded
func (h *Handle) Config() *nn.ModelConfig {
	h.lock.Lock()
	defer h.lock.Unlock()
	if h.engine == nil {
		return nil
	}
	return h.engine.Config()
}

func (h *Handle) begin() (chan struct{}, error) {
	h.lock.Lock()
	defer h.lock.Unlock()
	if h.state != StateUnloaded {
		return nil, fmt.Errorf("%w (state is %v)", ErrInvalidTransition, h.state)
	}
	h.state = StateLoading
	h.err = nil
	h.done = make(chan struct{})
	return h.done, nil
}

func (h *Handle) load(ctx context.Context, done chan struct{}) error {
	defer close(done)
	start := time.Now()
	h.log.Infof("Loading %v", h.asset)
	engine, err := h.loader(ctx, h.asset)
	if err == nil {
		if engine == nil {
			err = fmt.Errorf("Loader returned no engine")
		} else if engine.Config() == nil {
			engine.Close()
			engine = nil
			err = fmt.Errorf("Engine has no model config")
		} else if cfgErr := engine.Config().Validate(); cfgErr != nil {
			engine.Close()
			engine = nil
			err = cfgErr
		}
	}

	h.lock.Lock()
	defer h.lock.Unlock()
	if err != nil {
		h.state = StateError
		h.err = fmt.Errorf("Failed to load model %v: %w", h.asset, err)
		h.log.Errorf("%v", h.err)
		return h.err
	}
	h.state = StateLoaded
	h.engine = engine
	h.log.Infof("Loaded %v in %.0f ms", h.asset, time.Since(start).Seconds()*1000)
	return nil
}

// Load the model, and block until it is loaded or has failed
func (h *Handle) Load(ctx context.Context) error {
	done, err := h.begin()
	if err != nil {
		return err
	}
	return h.load(ctx, done)
}

// LoadAsync starts loading the model on a background goroutine.
// The state is already StateLoading when this function returns (unless the handle was not unloaded).
func (h *Handle) LoadAsync(ctx context.Context) error {
	done, err := h.begin()
	if err != nil {
		return err
	}
	go h.load(ctx, done)
	return nil
}

// Wait until any in-progress load has finished, and return the resulting state.
// If ctx expires first, the current state is returned along with the context error.
func (h *Handle) Wait(ctx context.Context) (State, error) {
	h.lock.Lock()
	done := h.done
	h.lock.Unlock()
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return h.State(), ctx.Err()
		}
	}
	return h.State(), nil
}

// Run the model on a single input tensor
func (h *Handle) Run(ctx context.Context, input nn.InputTensor) (nn.InferenceOutput, error) {
	h.inflight.RLock()
	defer h.inflight.RUnlock()

	h.lock.Lock()
	engine := h.engine
	ready := h.state == StateLoaded
	h.lock.Unlock()
	if !ready || engine == nil {
		return nn.InferenceOutput{}, ErrModelNotReady
	}

	if err := input.Validate(); err != nil {
		return nn.InferenceOutput{}, &InferenceError{Cause: err}
	}
	output, err := engine.Run(ctx, input)
	if err != nil {
		return nn.InferenceOutput{}, &InferenceError{Cause: err}
	}
	if err := output.Validate(); err != nil {
		return nn.InferenceOutput{}, &InferenceError{Cause: err}
	}
	if cfg := engine.Config(); output.Kind == nn.OutputKindValues && cfg.OutputSize > 0 && len(output.Values) != cfg.OutputSize {
		return nn.InferenceOutput{}, &InferenceError{Cause: fmt.Errorf("Expected %v output values, but model produced %v", cfg.OutputSize, len(output.Values))}
	}
	return output, nil
}

// Unload closes the engine and returns the handle to the unloaded state.
// If a load is in progress, we wait for it to finish first.
func (h *Handle) Unload() {
	h.Wait(context.Background())

	h.inflight.Lock()
	defer h.inflight.Unlock()

	h.lock.Lock()
	defer h.lock.Unlock()
	if h.engine != nil {
		h.engine.Close()
		h.engine = nil
		h.log.Infof("Unloaded %v", h.asset)
	}
	h.state = StateUnloaded
	h.err = nil
	h.done = nil
}
