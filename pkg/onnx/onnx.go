package onnx

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/yorubaocr/pkg/nn"
	ort "github.com/yalue/onnxruntime_go"
)

// Package onnx runs models through the ONNX Runtime shared library.

var envLock sync.Mutex
var envRefCount int

// Initialize the ONNX Runtime environment.
// sharedLibPath may be empty, in which case the platform default library name is used.
// Every successful call must be paired with a call to Shutdown.
func Initialize(sharedLibPath string) error {
	envLock.Lock()
	defer envLock.Unlock()
	if envRefCount == 0 {
		if sharedLibPath != "" {
			ort.SetSharedLibraryPath(sharedLibPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("Failed to initialize ONNX Runtime: %w", err)
		}
	}
	envRefCount++
	return nil
}

func Shutdown() {
	envLock.Lock()
	defer envLock.Unlock()
	if envRefCount == 0 {
		return
	}
	envRefCount--
	if envRefCount == 0 {
		ort.DestroyEnvironment()
	}
}

// Engine is an nn.Engine backed by a fixed-shape ONNX Runtime session.
// The input and output tensors are allocated once, so only one inference can run at a time.
type Engine struct {
	log    logs.Log
	config *nn.ModelConfig

	lock    sync.Mutex // Guards session and tensors during Run
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

// Satisfied by *ort.SessionOptions
type threadSetter interface {
	SetIntraOpNumThreads(n int) error
	SetInterOpNumThreads(n int) error
}

func setThreads(options threadSetter, threadingMode nn.ThreadingMode) error {
	nThreads := 1
	if threadingMode == nn.ThreadingModeParallel {
		nThreads = runtime.NumCPU()
	}
	if err := options.SetIntraOpNumThreads(nThreads); err != nil {
		return fmt.Errorf("Error setting intra-op threads to %v: %w", nThreads, err)
	}
	if err := options.SetInterOpNumThreads(nThreads); err != nil {
		return fmt.Errorf("Error setting inter-op threads to %v: %w", nThreads, err)
	}
	return nil
}

// Create a new engine. Initialize must have been called first.
func NewEngine(log logs.Log, modelPath string, config *nn.ModelConfig, threadingMode nn.ThreadingMode) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("Error creating session options: %w", err)
	}
	defer options.Destroy()

	if err := setThreads(options, threadingMode); err != nil {
		return nil, err
	}

	inputShape := ort.NewShape(nn.InputTensor(nil).Shape()...)
	outputShape := ort.NewShape(1, int64(config.OutputSize))

	input, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("Error creating input tensor: %w", err)
	}

	output, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("Error creating output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{config.InputName},
		[]string{config.OutputName},
		[]ort.ArbitraryTensor{input},
		[]ort.ArbitraryTensor{output},
		options,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("Error creating session for %v: %w", modelPath, err)
	}

	log.Infof("ONNX model %v ready (%v threads, output size %v, cpu %v)", modelPath, nThreads, config.OutputSize, cpuFeatures())

	return &Engine{
		log:     log,
		config:  config,
		session: session,
		input:   input,
		output:  output,
	}, nil
}

func (e *Engine) Close() {
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.session != nil {
		e.session.Destroy()
		e.session = nil
	}
	if e.input != nil {
		e.input.Destroy()
		e.input = nil
	}
	if e.output != nil {
		e.output.Destroy()
		e.output = nil
	}
}

func (e *Engine) Config() *nn.ModelConfig {
	return e.config
}

func (e *Engine) Run(ctx context.Context, input nn.InputTensor) (nn.InferenceOutput, error) {
	if len(input) != nn.InputTensorSize {
		return nn.InferenceOutput{}, fmt.Errorf("Input tensor has %v elements, expected %v", len(input), nn.InputTensorSize)
	}

	e.lock.Lock()
	defer e.lock.Unlock()

	// The session itself can't be interrupted, so this is our only chance to bail out
	if err := ctx.Err(); err != nil {
		return nn.InferenceOutput{}, err
	}
	if e.session == nil {
		return nn.InferenceOutput{}, fmt.Errorf("Engine is closed")
	}

	copy(e.input.GetData(), input)
	if err := e.session.Run(); err != nil {
		return nn.InferenceOutput{}, err
	}

	// The output tensor is reused on the next run, so we must copy it out
	src := e.output.GetData()
	values := make([]float32, len(src))
	copy(values, src)
	return nn.ValuesOutput(values), nil
}
