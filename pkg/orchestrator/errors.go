package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/cyclopcam/yorubaocr/pkg/nn"
	"github.com/cyclopcam/yorubaocr/pkg/nnrunner"
)

// ErrUserCancelled is returned by a Picker when the user dismissed the picker without choosing an image.
// It is not a failure. The orchestrator silently returns to Idle.
var ErrUserCancelled = errors.New("User cancelled")

// ErrSuperseded is returned to the caller of a prediction cycle that was overtaken by a newer one.
// The newer cycle owns the observable state. Nothing from the superseded cycle is shown.
var ErrSuperseded = errors.New("Prediction superseded by a newer request")

// ErrNoImage is returned by RetryPredict when there is no source image to retry
var ErrNoImage = errors.New("No image to predict")

// Returned when a panic inside a pipeline stage was recovered
var errInternal = errors.New("Internal error")

// PermissionDeniedError means the user (or configuration) refused access to the camera or media library
type PermissionDeniedError struct {
	Permission Permission
	Cause      error // Optional. Set if the permission request itself failed.
}

func (e *PermissionDeniedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("Permission %v denied: %v", e.Permission, e.Cause)
	}
	return fmt.Sprintf("Permission %v denied", e.Permission)
}

func (e *PermissionDeniedError) Unwrap() error {
	return e.Cause
}

// User facing messages
const (
	MsgPermissionDenied   = "permission denied"
	MsgModelNotLoaded     = "model not loaded"
	MsgProcessingFailed   = "failed to process the image"
	MsgDimensionMismatch  = "unexpected image dimensions, expected 32x32"
	MsgInferenceFailed    = "inference failed"
	MsgCancelled          = "prediction cancelled"
	MsgInternalError      = "internal error"
	MsgNoPredictionResult = "No prediction result"
	predictionPrefix      = "Prediction: "
)

// Map a pipeline error onto the message that we show the user
func userMessage(err error) string {
	var permErr *PermissionDeniedError
	var inferErr *nnrunner.InferenceError
	switch {
	case errors.As(err, &permErr):
		return MsgPermissionDenied
	case errors.Is(err, nnrunner.ErrModelNotReady):
		return MsgModelNotLoaded
	case errors.Is(err, nn.ErrDimensionMismatch):
		return MsgDimensionMismatch
	case errors.As(err, &inferErr):
		return MsgInferenceFailed
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return MsgCancelled
	case errors.Is(err, errInternal):
		return MsgInternalError
	default:
		// DecodeError, ResizeError, IO errors from the picker
		return MsgProcessingFailed
	}
}

// Render the display string for a model output
func displayText(out nn.InferenceOutput) string {
	top, ok := out.Top()
	if !ok {
		return MsgNoPredictionResult
	}
	return predictionPrefix + top
}
