package resize

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"sort"
	"sync"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/yorubaocr/pkg/storage"
	"github.com/disintegration/imaging"
)

// Package resize scales an arbitrary source image down to the model's input resolution.
// The output is an encoded image (JPEG by default), optionally as base64, which is then
// handed to the decoder. This mirrors the contract of a platform image manipulation service.

type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png" // Lossless. Useful when exact pixel values matter.
)

const DefaultJPEGQuality = 95

// Options for a single resize
type Options struct {
	Width   int
	Height  int
	Base64  bool   // Request base64-encoded output in Result.Base64
	Format  Format // Zero value means JPEG
	Quality int    // JPEG quality. Zero value means DefaultJPEGQuality.
}

// Result of a resize
type Result struct {
	Width   int
	Height  int
	Format  Format
	Encoded []byte // The encoded image
	Base64  string // Only populated if Options.Base64 was true
}

// ResizeError wraps any failure to read, decode, scale, or encode the source image
type ResizeError struct {
	URI   string
	Cause error
}

func (e *ResizeError) Error() string {
	return fmt.Sprintf("Failed to resize %v: %v", e.URI, e.Cause)
}

func (e *ResizeError) Unwrap() error {
	return e.Cause
}

// Resizer scales the image behind a URI
type Resizer interface {
	Resize(ctx context.Context, uri string, opt Options) (*Result, error)
}

// A Scaler performs the actual resampling.
// The returned image must be exactly width x height.
type Scaler func(src image.Image, width, height int) (image.Image, error)

var scalersLock sync.Mutex
var scalers = map[string]Scaler{}

// Register a scaler under a name, so that it can be selected from configuration.
// Backends that need cgo register themselves from files with build tags.
func RegisterScaler(name string, scaler Scaler) {
	scalersLock.Lock()
	defer scalersLock.Unlock()
	scalers[name] = scaler
}

// Return the names of all registered scalers
func Scalers() []string {
	scalersLock.Lock()
	defer scalersLock.Unlock()
	names := []string{}
	for k := range scalers {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func lookupScaler(name string) (Scaler, bool) {
	scalersLock.Lock()
	defer scalersLock.Unlock()
	s, ok := scalers[name]
	return s, ok
}

// ImageResizer reads source images through an Opener, and scales them with a named Scaler
type ImageResizer struct {
	log     logs.Log
	opener  storage.Opener
	backend string
	scaler  Scaler
}

// Create a new resizer. backend is one of Scalers(), eg "linear" or "lanczos".
// An empty backend selects DefaultBackend.
func NewImageResizer(log logs.Log, opener storage.Opener, backend string) (*ImageResizer, error) {
	if backend == "" {
		backend = DefaultBackend
	}
	scaler, ok := lookupScaler(backend)
	if !ok {
		return nil, fmt.Errorf("Unknown resize backend '%v'. Valid backends are %v", backend, Scalers())
	}
	return &ImageResizer{
		log:     log,
		opener:  opener,
		backend: backend,
		scaler:  scaler,
	}, nil
}

func (r *ImageResizer) Backend() string {
	return r.backend
}

func (r *ImageResizer) Resize(ctx context.Context, uri string, opt Options) (*Result, error) {
	if opt.Width <= 0 || opt.Height <= 0 {
		return nil, &ResizeError{URI: uri, Cause: fmt.Errorf("Invalid target size %vx%v", opt.Width, opt.Height)}
	}
	raw, err := storage.ReadAll(ctx, r.opener, uri)
	if err != nil {
		return nil, &ResizeError{URI: uri, Cause: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, &ResizeError{URI: uri, Cause: err}
	}
	scaled, err := r.scaler(src, opt.Width, opt.Height)
	if err != nil {
		return nil, &ResizeError{URI: uri, Cause: err}
	}
	if b := scaled.Bounds(); b.Dx() != opt.Width || b.Dy() != opt.Height {
		// A misbehaving scaler is a programming error, but we report it like any other failure
		return nil, &ResizeError{URI: uri, Cause: fmt.Errorf("Backend %v produced %vx%v instead of %vx%v", r.backend, b.Dx(), b.Dy(), opt.Width, opt.Height)}
	}
	r.log.Debugf("Resized %v from %vx%v to %vx%v (%v)", uri, src.Bounds().Dx(), src.Bounds().Dy(), opt.Width, opt.Height, r.backend)
	return encode(scaled, opt)
}

func encode(img image.Image, opt Options) (*Result, error) {
	format := opt.Format
	if format == "" {
		format = FormatJPEG
	}
	quality := opt.Quality
	if quality == 0 {
		quality = DefaultJPEGQuality
	}
	var imgFormat imaging.Format
	switch format {
	case FormatJPEG:
		imgFormat = imaging.JPEG
	case FormatPNG:
		imgFormat = imaging.PNG
	default:
		return nil, fmt.Errorf("Unsupported output format '%v'", format)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imgFormat, imaging.JPEGQuality(quality)); err != nil {
		return nil, err
	}
	res := &Result{
		Width:   img.Bounds().Dx(),
		Height:  img.Bounds().Dy(),
		Format:  format,
		Encoded: buf.Bytes(),
	}
	if opt.Base64 {
		res.Base64 = base64.StdEncoding.EncodeToString(res.Encoded)
	}
	return res, nil
}
