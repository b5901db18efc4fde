package orchestrator

import (
	"context"
	"fmt"

	"github.com/cyclopcam/yorubaocr/pkg/nn"
	"github.com/cyclopcam/yorubaocr/pkg/nnrunner"
	"github.com/cyclopcam/yorubaocr/pkg/perfstats"
)

type State int

const (
	StateIdle          State = iota // No image, no result
	StateSelecting                  // Waiting for permission, or for the user to pick an image
	StatePreprocessing              // Resize, decode, normalize
	StateInferring                  // Model is running
	StateResolved                   // Result (or error) is available
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSelecting:
		return "selecting"
	case StatePreprocessing:
		return "preprocessing"
	case StateInferring:
		return "inferring"
	case StateResolved:
		return "resolved"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	for st := StateIdle; st <= StateResolved; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("Unknown state '%v'", string(b))
}

type Permission int

const (
	PermissionMediaLibrary Permission = iota
	PermissionCamera
)

func (p Permission) String() string {
	switch p {
	case PermissionMediaLibrary:
		return "media-library"
	case PermissionCamera:
		return "camera"
	}
	return fmt.Sprintf("Permission(%d)", int(p))
}

// Permissions asks the platform (or the user) for access to a resource
type Permissions interface {
	Request(ctx context.Context, p Permission) (bool, error)
}

// StaticPermissions grants a fixed set of permissions, typically from configuration
type StaticPermissions struct {
	MediaLibrary bool
	Camera       bool
}

func (s StaticPermissions) Request(ctx context.Context, p Permission) (bool, error) {
	switch p {
	case PermissionMediaLibrary:
		return s.MediaLibrary, nil
	case PermissionCamera:
		return s.Camera, nil
	}
	return false, nil
}

// Picker lets the user choose an image (from a library, or by taking a photo).
// It returns the URI of the image, or ErrUserCancelled.
type Picker interface {
	Pick(ctx context.Context) (string, error)
}

type PickerFunc func(ctx context.Context) (string, error)

func (f PickerFunc) Pick(ctx context.Context) (string, error) {
	return f(ctx)
}

// Model is the part of nnrunner.Handle that the orchestrator needs
type Model interface {
	State() nnrunner.State
	Run(ctx context.Context, input nn.InputTensor) (nn.InferenceOutput, error)
}

// Releaser is told when a source image is no longer held, so that it can free the image.
type Releaser interface {
	Delete(ctx context.Context, uri string) error
}

// Result of a prediction cycle.
// Either Text is populated (success), or Err and Message are (failure).
type Result struct {
	Text    string `json:"text,omitempty"`
	Message string `json:"error,omitempty"` // User facing error message
	Err     error  `json:"-"`
}

func (r *Result) IsError() bool {
	return r.Err != nil
}

// Display text, whether the result is a success or an error
func (r *Result) String() string {
	if r.Err != nil {
		return r.Message
	}
	return r.Text
}

// Snapshot is the observable state of the orchestrator
type Snapshot struct {
	State      State                  `json:"state"`
	Source     string                 `json:"source,omitempty"` // URI of the source image, if one is held
	Result     *Result                `json:"result,omitempty"`
	Generation uint64                 `json:"generation"`
	Timings    perfstats.StageTimings `json:"timings"`
}
