package nnrunner

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chewxy/math32"
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/yorubaocr/pkg/nn"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	config *nn.ModelConfig
	output nn.InferenceOutput
	err    error
	runs   atomic.Int32
	closed atomic.Bool
}

func (f *fakeEngine) Close()                  { f.closed.Store(true) }
func (f *fakeEngine) Config() *nn.ModelConfig { return f.config }
func (f *fakeEngine) Run(ctx context.Context, input nn.InputTensor) (nn.InferenceOutput, error) {
	f.runs.Add(1)
	return f.output, f.err
}

func loaderFor(engine nn.Engine, err error) Loader {
	return func(ctx context.Context, asset nn.ModelAsset) (nn.Engine, error) {
		return engine, err
	}
}

func validTensor() nn.InputTensor {
	return make(nn.InputTensor, nn.InputTensorSize)
}

func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	engine := &fakeEngine{config: nn.NewModelConfig(2), output: nn.ValuesOutput([]float32{0.75, 0.25})}
	h := NewHandle(logs.NewTestingLog(t), nn.ModelAsset{Path: "yoruba.onnx"}, loaderFor(engine, nil))
	require.Equal(t, StateUnloaded, h.State())

	_, err := h.Run(ctx, validTensor())
	require.ErrorIs(t, err, ErrModelNotReady)
	require.EqualValues(t, 0, engine.runs.Load())

	require.NoError(t, h.Load(ctx))
	require.Equal(t, StateLoaded, h.State())
	require.NoError(t, h.Err())
	require.Equal(t, 2, h.Config().OutputSize)

	// Loaded is terminal for Load
	require.ErrorIs(t, h.Load(ctx), ErrInvalidTransition)

	out, err := h.Run(ctx, validTensor())
	require.NoError(t, err)
	top, ok := out.Top()
	require.True(t, ok)
	require.Equal(t, "0.75", top)

	h.Unload()
	require.True(t, engine.closed.Load())
	require.Equal(t, StateUnloaded, h.State())
	_, err = h.Run(ctx, validTensor())
	require.ErrorIs(t, err, ErrModelNotReady)
}

func TestLoadFailure(t *testing.T) {
	ctx := context.Background()
	h := NewHandle(logs.NewTestingLog(t), nn.ModelAsset{Path: "missing.onnx"}, loaderFor(nil, errors.New("file not found")))
	require.Error(t, h.Load(ctx))
	require.Equal(t, StateError, h.State())
	require.ErrorContains(t, h.Err(), "file not found")

	// Error is terminal for Load
	require.ErrorIs(t, h.Load(ctx), ErrInvalidTransition)
	_, err := h.Run(ctx, validTensor())
	require.ErrorIs(t, err, ErrModelNotReady)

	// But the owner can restart explicitly
	h.Unload()
	require.Equal(t, StateUnloaded, h.State())
}

func TestLoadRejectsIncompatibleModel(t *testing.T) {
	cfg := nn.NewModelConfig(2)
	cfg.Width = 64
	engine := &fakeEngine{config: cfg}
	h := NewHandle(logs.NewTestingLog(t), nn.ModelAsset{Path: "big.onnx"}, loaderFor(engine, nil))
	require.Error(t, h.Load(context.Background()))
	require.Equal(t, StateError, h.State())
	require.True(t, engine.closed.Load())
}

func TestLoadAsync(t *testing.T) {
	release := make(chan struct{})
	engine := &fakeEngine{config: nn.NewModelConfig(1), output: nn.LabelsOutput("Ìjèmí")}
	loader := func(ctx context.Context, asset nn.ModelAsset) (nn.Engine, error) {
		<-release
		return engine, nil
	}
	h := NewHandle(logs.NewTestingLog(t), nn.ModelAsset{Path: "slow.onnx"}, loader)
	require.NoError(t, h.LoadAsync(context.Background()))
	require.Equal(t, StateLoading, h.State())

	_, err := h.Run(context.Background(), validTensor())
	require.ErrorIs(t, err, ErrModelNotReady)

	shortCtx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	state, err := h.Wait(shortCtx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, StateLoading, state)

	close(release)
	state, err = h.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, StateLoaded, state)
}

func TestRunErrors(t *testing.T) {
	ctx := context.Background()
	engine := &fakeEngine{config: nn.NewModelConfig(2)}
	h := NewHandle(logs.NewTestingLog(t), nn.ModelAsset{Path: "yoruba.onnx"}, loaderFor(engine, nil))
	require.NoError(t, h.Load(ctx))

	var ierr *InferenceError

	// Wrong tensor length never reaches the engine
	_, err := h.Run(ctx, make(nn.InputTensor, 10))
	require.True(t, errors.As(err, &ierr))
	require.EqualValues(t, 0, engine.runs.Load())

	engine.err = errors.New("device lost")
	_, err = h.Run(ctx, validTensor())
	require.True(t, errors.As(err, &ierr))
	require.ErrorContains(t, err, "device lost")

	engine.err = nil
	engine.output = nn.ValuesOutput([]float32{math32.NaN(), 0})
	_, err = h.Run(ctx, validTensor())
	require.True(t, errors.As(err, &ierr))

	engine.output = nn.ValuesOutput([]float32{1, 2, 3})
	_, err = h.Run(ctx, validTensor())
	require.True(t, errors.As(err, &ierr))

	engine.output = nn.ValuesOutput([]float32{1, 2})
	_, err = h.Run(ctx, validTensor())
	require.NoError(t, err)
}

func TestStateString(t *testing.T) {
	b, err := StateLoaded.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "loaded", string(b))
	require.Equal(t, "error", StateError.String())

	var st State
	require.NoError(t, st.UnmarshalText([]byte("loading")))
	require.Equal(t, StateLoading, st)
	require.Error(t, st.UnmarshalText([]byte("sleeping")))
}

func TestLoaderContractViolations(t *testing.T) {
	ctx := context.Background()

	h := NewHandle(logs.NewTestingLog(t), nn.ModelAsset{Path: "yoruba.onnx"}, loaderFor(nil, nil))
	require.NoError(t, h.LoadAsync(ctx))
	state, err := h.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, StateError, state)
	require.ErrorContains(t, h.Err(), "no engine")

	engine := &fakeEngine{}
	h = NewHandle(logs.NewTestingLog(t), nn.ModelAsset{Path: "yoruba.onnx"}, loaderFor(engine, nil))
	require.Error(t, h.Load(ctx))
	require.Equal(t, StateError, h.State())
	require.True(t, engine.closed.Load())
	_, err = h.Run(ctx, validTensor())
	require.ErrorIs(t, err, ErrModelNotReady)
}
