package nn

import "context"

// Engine is a loaded model that can execute inference.
// Engines are opaque black boxes. We only depend on this contract.
type Engine interface {
	// Close releases the model (you MUST call this when finished, because it's usually a C++ object underneath)
	Close()

	// Run executes the model on a single input tensor.
	// Implementations may serialize calls internally.
	Run(ctx context.Context, input InputTensor) (InferenceOutput, error)

	// Model Config.
	// Callers assume that ModelConfig will remain constant, so don't change it
	// once the engine has been created.
	Config() *ModelConfig
}
