package training

import (
	"fmt"
	"math"
)

// Loss computes a scalar objective over per-sample logits and targets and
// the gradient of that objective with respect to the logits.
type Loss interface {
	Forward(logits, targets []float64) (float64, error)
	Backward(logits, targets []float64) ([]float64, error)
}

// BCEWithLogitsLoss is binary cross-entropy applied directly to logits.
// Working in logit space keeps the computation stable for large |x|:
// loss(x, y) = max(x, 0) - x*y + log(1 + exp(-|x|)).
type BCEWithLogitsLoss struct{}

// NewBCEWithLogitsLoss creates the loss with mean reduction.
func NewBCEWithLogitsLoss() *BCEWithLogitsLoss {
	return &BCEWithLogitsLoss{}
}

// Forward computes the mean BCE over the batch.
func (l *BCEWithLogitsLoss) Forward(logits, targets []float64) (float64, error) {
	if len(logits) != len(targets) {
		return 0, fmt.Errorf("training: %d logits vs %d targets", len(logits), len(targets))
	}
	if len(logits) == 0 {
		return 0, fmt.Errorf("training: loss over empty batch")
	}

	sum := 0.0
	for i, x := range logits {
		sum += math.Max(x, 0) - x*targets[i] + math.Log1p(math.Exp(-math.Abs(x)))
	}
	return sum / float64(len(logits)), nil
}

// Backward returns dL/dlogits = (sigmoid(x) - y) / N.
func (l *BCEWithLogitsLoss) Backward(logits, targets []float64) ([]float64, error) {
	if len(logits) != len(targets) {
		return nil, fmt.Errorf("training: %d logits vs %d targets", len(logits), len(targets))
	}

	n := float64(len(logits))
	grad := make([]float64, len(logits))
	for i, x := range logits {
		grad[i] = (sigmoid(x) - targets[i]) / n
	}
	return grad, nil
}

// sigmoid is computed branch-wise to avoid overflow in exp.
func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1.0 / (1.0 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1.0 + e)
}
