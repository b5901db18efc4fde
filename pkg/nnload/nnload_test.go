package nnload

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/yorubaocr/pkg/nn"
	"github.com/stretchr/testify/require"
)

func TestLoadModelErrors(t *testing.T) {
	log := logs.NewTestingLog(t)
	dir := t.TempDir()

	_, err := LoadModel(log, filepath.Join(dir, "missing.onnx"), nn.ThreadingModeSingle)
	require.True(t, os.IsNotExist(err))

	// Model without a config
	model := filepath.Join(dir, "yoruba.onnx")
	require.NoError(t, os.WriteFile(model, []byte("x"), 0644))
	_, err = LoadModel(log, model, nn.ThreadingModeSingle)
	require.Error(t, err)

	// Unknown extension
	other := filepath.Join(dir, "yoruba.tflite")
	require.NoError(t, os.WriteFile(other, []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "yoruba.json"), []byte(`{"width":32,"height":32,"inputName":"input","outputName":"output","outputSize":10}`), 0644))
	_, err = LoadModel(log, other, nn.ThreadingModeSingle)
	require.ErrorContains(t, err, "Unrecognized")
}

func TestLoaderHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Loader(logs.NewTestingLog(t))(ctx, nn.ModelAsset{Path: "x.onnx"})
	require.ErrorIs(t, err, context.Canceled)
}

type stubEngine struct {
	config *nn.ModelConfig
}

func (e *stubEngine) Close()                  {}
func (e *stubEngine) Config() *nn.ModelConfig { return e.config }
func (e *stubEngine) Run(ctx context.Context, input nn.InputTensor) (nn.InferenceOutput, error) {
	return nn.LabelsOutput("Ìjèmí"), nil
}

func TestRegisterEngine(t *testing.T) {
	RegisterEngine(".STUB", func(log logs.Log, modelPath string, config *nn.ModelConfig, threadingMode nn.ThreadingMode) (nn.Engine, error) {
		return &stubEngine{config: config}, nil
	})
	require.Contains(t, Extensions(), ".onnx")
	require.Contains(t, Extensions(), ".stub")

	dir := t.TempDir()
	model := filepath.Join(dir, "yoruba.stub")
	require.NoError(t, os.WriteFile(model, []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "yoruba.json"), []byte(`{"width":32,"height":32,"inputName":"input","outputName":"output","outputSize":1}`), 0644))

	engine, err := LoadModel(logs.NewTestingLog(t), model, nn.ThreadingModeSingle)
	require.NoError(t, err)
	require.Equal(t, 1, engine.Config().OutputSize)
}

func TestInitRuntimeSkipsOtherEngines(t *testing.T) {
	shutdown, err := InitRuntime("models/yor.traineddata", "/nonexistent/libonnxruntime.so")
	require.NoError(t, err)
	shutdown()
}
