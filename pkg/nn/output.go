package nn

import (
	"fmt"
	"strconv"

	"github.com/chewxy/math32"
)

type OutputKind int

const (
	OutputKindValues OutputKind = iota // Raw float32 output tensor
	OutputKindLabels                   // Text that the model (or its runner) has already decoded
)

// InferenceOutput is the result of a single model run.
// It is either a list of values or a list of labels, never both.
//
// Decoding rule: the first element is the top prediction, and it is shown to the user
// in its natural string form. We deliberately do not apply softmax, argmax, or a label table,
// because the model's output contract does not define one.
type InferenceOutput struct {
	Kind   OutputKind
	Values []float32
	Labels []string
}

func ValuesOutput(values []float32) InferenceOutput {
	return InferenceOutput{Kind: OutputKindValues, Values: values}
}

func LabelsOutput(labels ...string) InferenceOutput {
	return InferenceOutput{Kind: OutputKindLabels, Labels: labels}
}

func (o InferenceOutput) Len() int {
	if o.Kind == OutputKindLabels {
		return len(o.Labels)
	}
	return len(o.Values)
}

// Top returns the display form of the first element, and false if the output is empty
func (o InferenceOutput) Top() (string, bool) {
	if o.Len() == 0 {
		return "", false
	}
	if o.Kind == OutputKindLabels {
		return o.Labels[0], true
	}
	return strconv.FormatFloat(float64(o.Values[0]), 'g', -1, 32), true
}

// Validate rejects malformed output, such as NaN or infinite values
func (o InferenceOutput) Validate() error {
	switch o.Kind {
	case OutputKindLabels:
		if o.Values != nil {
			return fmt.Errorf("Label output must not contain values")
		}
	case OutputKindValues:
		if o.Labels != nil {
			return fmt.Errorf("Value output must not contain labels")
		}
		for i, v := range o.Values {
			if math32.IsNaN(v) || math32.IsInf(v, 0) {
				return fmt.Errorf("Output element %v is not a finite number (%v)", i, v)
			}
		}
	default:
		return fmt.Errorf("Unknown output kind %v", o.Kind)
	}
	return nil
}
