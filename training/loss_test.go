package training

import (
	"math"
	"testing"
)

func TestBCEWithLogitsForward(t *testing.T) {
	loss := NewBCEWithLogitsLoss()

	tests := []struct {
		name     string
		logits   []float64
		targets  []float64
		expected float64
	}{
		{
			name:     "zero logit is ln(2) either way",
			logits:   []float64{0, 0},
			targets:  []float64{0, 1},
			expected: math.Ln2,
		},
		{
			name:     "confident correct predictions",
			logits:   []float64{20, -20},
			targets:  []float64{1, 0},
			expected: 0,
		},
		{
			name:     "single sample against formula",
			logits:   []float64{1.5},
			targets:  []float64{1},
			expected: math.Log1p(math.Exp(-1.5)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := loss.Forward(tt.logits, tt.targets)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("Expected loss %f, got %f", tt.expected, got)
			}
		})
	}
}

func TestBCEWithLogitsStability(t *testing.T) {
	loss := NewBCEWithLogitsLoss()

	// Naive -y*log(sigmoid(x)) overflows here; the logit-space form must not.
	got, err := loss.Forward([]float64{500, -500}, []float64{0, 1})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if math.IsNaN(got) || math.IsInf(got, 0) {
		t.Fatalf("Expected finite loss for extreme logits, got %f", got)
	}
	if math.Abs(got-500) > 1e-9 {
		t.Errorf("Expected loss 500 for fully wrong extreme logits, got %f", got)
	}
}

func TestBCEWithLogitsBackward(t *testing.T) {
	loss := NewBCEWithLogitsLoss()
	logits := []float64{0.7, -1.2, 2.5, -0.1}
	targets := []float64{1, 0, 0, 1}

	grad, err := loss.Backward(logits, targets)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// Central finite differences on the forward pass.
	const h = 1e-6
	for i := range logits {
		shifted := make([]float64, len(logits))
		copy(shifted, logits)

		shifted[i] = logits[i] + h
		plus, _ := loss.Forward(shifted, targets)
		shifted[i] = logits[i] - h
		minus, _ := loss.Forward(shifted, targets)

		numeric := (plus - minus) / (2 * h)
		if math.Abs(grad[i]-numeric) > 1e-6 {
			t.Errorf("Gradient %d: analytic %f vs numeric %f", i, grad[i], numeric)
		}
	}
}

func TestBCEWithLogitsShapeMismatch(t *testing.T) {
	loss := NewBCEWithLogitsLoss()

	if _, err := loss.Forward([]float64{1, 2}, []float64{1}); err == nil {
		t.Error("Expected error for mismatched lengths in Forward")
	}
	if _, err := loss.Backward([]float64{1}, []float64{1, 0}); err == nil {
		t.Error("Expected error for mismatched lengths in Backward")
	}
	if _, err := loss.Forward(nil, nil); err == nil {
		t.Error("Expected error for empty batch")
	}
}

func TestSigmoid(t *testing.T) {
	if got := sigmoid(0); math.Abs(got-0.5) > 1e-12 {
		t.Errorf("sigmoid(0) = %f, want 0.5", got)
	}
	if got := sigmoid(1000); got != 1 {
		t.Errorf("sigmoid(1000) = %f, want 1", got)
	}
	if got := sigmoid(-1000); got != 0 {
		t.Errorf("sigmoid(-1000) = %f, want 0", got)
	}
	// Symmetry: sigmoid(-x) = 1 - sigmoid(x).
	if a, b := sigmoid(-2.5), 1-sigmoid(2.5); math.Abs(a-b) > 1e-12 {
		t.Errorf("Symmetry violated: %f vs %f", a, b)
	}
}
