//go:build tesseract

package nnload

import (
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/yorubaocr/pkg/nn"
	"github.com/cyclopcam/yorubaocr/pkg/tesseract"
)

func init() {
	RegisterEngine(".traineddata", func(log logs.Log, modelPath string, config *nn.ModelConfig, threadingMode nn.ThreadingMode) (nn.Engine, error) {
		return tesseract.NewEngine(log, modelPath, config)
	})
}
