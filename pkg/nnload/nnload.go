package nnload

// Package nnload wraps up our 'nn' interface layer, and has concrete references to our
// neural network implementations (ONNX Runtime, and optionally Tesseract), so that you can just
// call one function to load a model, and not need to know about the implementation details.

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/yorubaocr/pkg/nn"
	"github.com/cyclopcam/yorubaocr/pkg/nnrunner"
	"github.com/cyclopcam/yorubaocr/pkg/onnx"
)

// EngineFactory creates an engine for a model file, once its config has been loaded
type EngineFactory func(log logs.Log, modelPath string, config *nn.ModelConfig, threadingMode nn.ThreadingMode) (nn.Engine, error)

var factoriesLock sync.Mutex
var factories = map[string]EngineFactory{
	".onnx": func(log logs.Log, modelPath string, config *nn.ModelConfig, threadingMode nn.ThreadingMode) (nn.Engine, error) {
		return onnx.NewEngine(log, modelPath, config, threadingMode)
	},
}

// RegisterEngine makes models with the file extension 'ext' (eg ".onnx") loadable
func RegisterEngine(ext string, factory EngineFactory) {
	factoriesLock.Lock()
	defer factoriesLock.Unlock()
	factories[strings.ToLower(ext)] = factory
}

// Extensions returns the model file extensions that we can load, sorted
func Extensions() []string {
	factoriesLock.Lock()
	defer factoriesLock.Unlock()
	exts := make([]string, 0, len(factories))
	for ext := range factories {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// LoadModel loads a neural network from disk.
// The engine is chosen from the file extension, and the model config is read from
// the JSON file next to it (eg yoruba.onnx + yoruba.json).
func LoadModel(log logs.Log, modelPath string, threadingMode nn.ThreadingMode) (nn.Engine, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, err
	}

	config, err := nn.LoadModelConfig(nn.ConfigFilename(modelPath))
	if err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(modelPath))
	factoriesLock.Lock()
	factory := factories[ext]
	factoriesLock.Unlock()
	if factory == nil {
		return nil, fmt.Errorf("Unrecognized NN model type %v (supported: %v)", modelPath, strings.Join(Extensions(), ", "))
	}
	return factory(log, modelPath, config, threadingMode)
}

// InitRuntime initializes the shared library that modelPath's engine needs, if any.
// onnxLibrary is the ONNX Runtime library path, or empty for the platform default.
// Call the returned function at shutdown.
func InitRuntime(modelPath, onnxLibrary string) (func(), error) {
	if strings.ToLower(filepath.Ext(modelPath)) != ".onnx" {
		return func() {}, nil
	}
	if err := onnx.Initialize(onnxLibrary); err != nil {
		return nil, err
	}
	return onnx.Shutdown, nil
}

// Loader returns an nnrunner.Loader that loads model assets from disk.
// The asset's own threading mode is used.
func Loader(log logs.Log) nnrunner.Loader {
	return func(ctx context.Context, asset nn.ModelAsset) (nn.Engine, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return LoadModel(log, asset.Path, asset.ThreadingMode)
	}
}
