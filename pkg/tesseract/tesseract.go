//go:build tesseract

package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/yorubaocr/pkg/nn"
	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

// Engine is an nn.Engine that reads a single line of text with Tesseract.
// Its output is always labels: one per recognized line.
type Engine struct {
	log    logs.Log
	config *nn.ModelConfig

	lock   sync.Mutex // A gosseract client is not safe for concurrent use
	client *gosseract.Client
}

// NewEngine loads a Tesseract language model.
// modelPath is the .traineddata file. Its directory is used as the tessdata prefix, and its
// base name as the language (eg models/yor.traineddata -> language "yor").
func NewEngine(log logs.Log, modelPath string, config *nn.ModelConfig) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	lang := strings.TrimSuffix(filepath.Base(modelPath), filepath.Ext(modelPath))

	client := gosseract.NewClient()
	if err := client.SetTessdataPrefix(filepath.Dir(modelPath)); err != nil {
		client.Close()
		return nil, fmt.Errorf("Error setting tessdata prefix: %w", err)
	}
	if err := client.SetLanguage(lang); err != nil {
		client.Close()
		return nil, fmt.Errorf("Error setting language %v: %w", lang, err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_LINE); err != nil {
		client.Close()
		return nil, fmt.Errorf("Error setting page segmentation mode: %w", err)
	}

	log.Infof("Tesseract %v model %v ready (language %v)", gosseract.Version(), modelPath, lang)

	return &Engine{
		log:    log,
		config: config,
		client: client,
	}, nil
}

func (e *Engine) Close() {
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.client != nil {
		e.client.Close()
		e.client = nil
	}
}

func (e *Engine) Config() *nn.ModelConfig {
	return e.config
}

func (e *Engine) Run(ctx context.Context, input nn.InputTensor) (nn.InferenceOutput, error) {
	if err := ctx.Err(); err != nil {
		return nn.InferenceOutput{}, err
	}
	img, err := TensorImage(input, Upscale)
	if err != nil {
		return nn.InferenceOutput{}, err
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nn.InferenceOutput{}, err
	}

	e.lock.Lock()
	defer e.lock.Unlock()
	if e.client == nil {
		return nn.InferenceOutput{}, fmt.Errorf("Engine is closed")
	}
	if err := e.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nn.InferenceOutput{}, fmt.Errorf("Error setting image: %w", err)
	}
	text, err := e.client.Text()
	if err != nil {
		return nn.InferenceOutput{}, fmt.Errorf("Error recognizing text: %w", err)
	}
	return nn.LabelsOutput(Lines(text)...), nil
}
