package nn

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Package nn is a Neural Network interface layer
// To load a model, use the nnload package.

type ThreadingMode int

const (
	ThreadingModeSingle   ThreadingMode = iota // Force the NN library to run inference on a single thread
	ThreadingModeParallel                      // Allow the NN library to run multiple threads while executing a model
)

// ModelConfig is saved in a JSON file along with the weights of the NN model
type ModelConfig struct {
	Architecture string   `json:"architecture"` // eg "yoruba-ocr-cnn"
	Width        int      `json:"width"`        // eg 32
	Height       int      `json:"height"`       // eg 32
	InputName    string   `json:"inputName"`    // Name of the input tensor inside the model file, eg "input"
	OutputName   string   `json:"outputName"`   // Name of the output tensor inside the model file, eg "output"
	OutputSize   int      `json:"outputSize"`   // Number of float32 elements in the output tensor
	Labels       []string `json:"labels"`       // Optional. Only used by engines whose models emit label indices directly.
}

// Return a config for our fixed 32x32 input, with the given output size
func NewModelConfig(outputSize int) *ModelConfig {
	return &ModelConfig{
		Width:      InputWidth,
		Height:     InputHeight,
		InputName:  "input",
		OutputName: "output",
		OutputSize: outputSize,
	}
}

// Return an error if the config is not compatible with our preprocessing pipeline
func (c *ModelConfig) Validate() error {
	if c.Width != InputWidth || c.Height != InputHeight {
		return fmt.Errorf("Model input size %vx%v is not supported (must be %vx%v)", c.Width, c.Height, InputWidth, InputHeight)
	}
	if c.OutputSize <= 0 {
		return fmt.Errorf("Model output size must be positive, but is %v", c.OutputSize)
	}
	if c.InputName == "" || c.OutputName == "" {
		return fmt.Errorf("Model input and output tensor names must be specified")
	}
	return nil
}

// Load model config from a JSON file
func LoadModelConfig(filename string) (*ModelConfig, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	config := &ModelConfig{}
	err = json.Unmarshal(b, config)
	if err != nil {
		return nil, fmt.Errorf("Error parsing model config %v: %w", filename, err)
	}
	return config, nil
}

// ConfigFilename returns the JSON sidecar of a model file.
// eg "models/yoruba.onnx" -> "models/yoruba.json"
func ConfigFilename(modelFilename string) string {
	ext := filepath.Ext(modelFilename)
	return strings.TrimSuffix(modelFilename, ext) + ".json"
}

// ModelAsset is a model file bundled with the application, which is loaded once at startup
type ModelAsset struct {
	Path          string
	ThreadingMode ThreadingMode
}

func (a ModelAsset) String() string {
	return a.Path
}
