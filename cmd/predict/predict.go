package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/yorubaocr/pkg/nn"
	"github.com/cyclopcam/yorubaocr/pkg/nnload"
	"github.com/cyclopcam/yorubaocr/pkg/nnrunner"
	"github.com/cyclopcam/yorubaocr/pkg/orchestrator"
	"github.com/cyclopcam/yorubaocr/pkg/resize"
	"github.com/cyclopcam/yorubaocr/pkg/storage"
)

func check(err error) {
	if err != nil {
		panic(err)
	}
}

type prediction struct {
	Image string `json:"image"`
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
}

func main() {
	parser := argparse.NewParser("predict", "Predict the Yoruba text in one or more images")
	inputs := parser.StringList("i", "input", &argparse.Options{Help: "Input image file (may be repeated)", Required: true})
	modelFile := parser.String("n", "model", &argparse.Options{Help: fmt.Sprintf("Path to NN model file (%v), with .json config next to it", strings.Join(nnload.Extensions(), ", ")), Required: true})
	onnxLib := parser.String("", "onnxlib", &argparse.Options{Help: "Path to the ONNX Runtime shared library", Default: ""})
	backend := parser.Selector("", "resize", resize.Scalers(), &argparse.Options{Help: "Resize backend", Default: resize.DefaultBackend})
	lossless := parser.Flag("", "png", &argparse.Options{Help: "Use PNG instead of JPEG between resize and decode", Default: false})
	single := parser.Flag("", "single", &argparse.Options{Help: "Run inference on a single thread", Default: false})
	output := parser.String("o", "output", &argparse.Options{Help: "Write results as JSON to this file", Default: ""})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, err := logs.NewLog()
	check(err)
	defer logger.Close()

	shutdownRuntime, err := nnload.InitRuntime(*modelFile, *onnxLib)
	check(err)
	defer shutdownRuntime()

	threading := nn.ThreadingModeParallel
	if *single {
		threading = nn.ThreadingModeSingle
	}

	ctx := context.Background()
	model := nnrunner.NewHandle(logger, nn.ModelAsset{Path: *modelFile, ThreadingMode: threading}, nnload.Loader(logger))
	check(model.Load(ctx))
	defer model.Unload()

	resizer, err := resize.NewImageResizer(logger, storage.NewResolver(nil), *backend)
	check(err)

	format := resize.FormatJPEG
	if *lossless {
		format = resize.FormatPNG
	}
	orc := orchestrator.New(logger, orchestrator.Deps{
		Resizer: resizer,
		Model:   model,
	}, orchestrator.Config{ResizeFormat: format})

	results := []prediction{}
	for _, input := range *inputs {
		res, err := orc.Predict(ctx, input)
		check(err)
		p := prediction{Image: input}
		if res.IsError() {
			p.Error = res.Message
		} else {
			p.Text = res.Text
		}
		results = append(results, p)
		fmt.Printf("%v: %v\n", input, res)
	}

	if *output != "" {
		f, err := os.Create(*output)
		check(err)
		defer f.Close()
		encoder := json.NewEncoder(f)
		encoder.SetIndent("", "  ")
		check(encoder.Encode(results))
	}
}
