package metrics

import (
	"errors"
	"math"
	"testing"
)

const tolerance = 1e-9

func TestROCAUCPerfectSeparation(t *testing.T) {
	labels := []float64{1, 0, 1, 0}
	scores := []float64{0.9, 0.1, 0.8, 0.2}

	auc, err := ROCAUC(labels, scores)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if math.Abs(auc-1.0) > tolerance {
		t.Errorf("Expected AUC 1.0 for perfect separation, got %f", auc)
	}
}

func TestROCAUCWorstCase(t *testing.T) {
	labels := []float64{0, 1}
	scores := []float64{0.9, 0.1}

	auc, err := ROCAUC(labels, scores)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if math.Abs(auc) > tolerance {
		t.Errorf("Expected AUC 0.0 for inverted ranking, got %f", auc)
	}
}

func TestROCAUCRandomRanking(t *testing.T) {
	// Two concordant and two discordant pairs: AUC = 0.5.
	labels := []float64{1, 0, 1, 0}
	scores := []float64{0.8, 0.7, 0.3, 0.2}

	auc, err := ROCAUC(labels, scores)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if math.Abs(auc-0.5) > tolerance {
		t.Errorf("Expected AUC 0.5, got %f", auc)
	}
}

func TestROCAUCTiedScores(t *testing.T) {
	// All scores identical: every threshold step is diagonal, AUC = 0.5.
	labels := []float64{1, 0, 1, 0}
	scores := []float64{0.5, 0.5, 0.5, 0.5}

	auc, err := ROCAUC(labels, scores)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if math.Abs(auc-0.5) > tolerance {
		t.Errorf("Expected AUC 0.5 for fully tied scores, got %f", auc)
	}
}

func TestROCAUCSingleClass(t *testing.T) {
	tests := []struct {
		name   string
		labels []float64
	}{
		{"AllPositive", []float64{1, 1, 1, 1}},
		{"AllNegative", []float64{0, 0, 0, 0}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := ROCAUC(test.labels, []float64{0.1, 0.2, 0.3, 0.4})
			if !errors.Is(err, ErrSingleClass) {
				t.Errorf("Expected ErrSingleClass, got %v", err)
			}
		})
	}
}

func TestROCAUCEmpty(t *testing.T) {
	if _, err := ROCAUC(nil, nil); err == nil {
		t.Error("Expected error for empty input")
	}
}

func TestROCAUCLengthMismatch(t *testing.T) {
	if _, err := ROCAUC([]float64{1, 0}, []float64{0.5}); err == nil {
		t.Error("Expected error for mismatched lengths")
	}
}

func TestAccuracyThresholdAtZero(t *testing.T) {
	labels := []float64{1, 0, 1, 0}
	logits := []float64{2.0, -1.0, 0.5, -0.5}

	acc, err := Accuracy(labels, logits)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if math.Abs(acc-1.0) > tolerance {
		t.Errorf("Expected accuracy 1.0, got %f", acc)
	}
}

func TestAccuracyZeroLogitIsNegative(t *testing.T) {
	// The decision rule is logit > 0; exactly zero predicts the negative class.
	acc, err := Accuracy([]float64{0}, []float64{0})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if math.Abs(acc-1.0) > tolerance {
		t.Errorf("Expected accuracy 1.0, got %f", acc)
	}
}

func TestBinaryConfusionMatrix(t *testing.T) {
	var cm BinaryConfusionMatrix

	logits := []float64{0.8, -0.3, 1.2, -0.9, -0.1}
	labels := []float64{1, 0, 1, 0, 1}

	if err := cm.Update(logits, labels); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// pred [1,0,1,0,0] vs true [1,0,1,0,1]
	if cm.Matrix[1][1] != 2 {
		t.Errorf("TP: expected 2, got %d", cm.Matrix[1][1])
	}
	if cm.Matrix[0][0] != 2 {
		t.Errorf("TN: expected 2, got %d", cm.Matrix[0][0])
	}
	if cm.Matrix[1][0] != 1 {
		t.Errorf("FN: expected 1, got %d", cm.Matrix[1][0])
	}
	if cm.Matrix[0][1] != 0 {
		t.Errorf("FP: expected 0, got %d", cm.Matrix[0][1])
	}

	if math.Abs(cm.Accuracy()-0.8) > tolerance {
		t.Errorf("Accuracy: expected 0.8, got %f", cm.Accuracy())
	}
	if math.Abs(cm.Precision()-1.0) > tolerance {
		t.Errorf("Precision: expected 1.0, got %f", cm.Precision())
	}
	if math.Abs(cm.Recall()-2.0/3.0) > tolerance {
		t.Errorf("Recall: expected 2/3, got %f", cm.Recall())
	}

	cm.Reset()
	if cm.TotalSamples != 0 || cm.Matrix[1][1] != 0 {
		t.Error("Expected empty matrix after reset")
	}
}
