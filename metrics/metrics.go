// Package metrics provides the scalar evaluation metrics used by the
// jet-tagging training loop: ROC-AUC over an epoch's accumulated
// (label, score) pairs, threshold-at-zero binary accuracy, and a
// binary confusion matrix for run summaries.
package metrics

import (
	"errors"
	"fmt"
	"sort"
)

// ErrSingleClass is returned when ROC-AUC is requested for data that
// contains only one label class. The curve is undefined in that case and
// callers must handle it explicitly rather than receive a fallback value.
var ErrSingleClass = errors.New("metrics: ROC-AUC undefined for single-class data")

// ROCAUC computes the area under the ROC curve for binary labels (0 or 1)
// and real-valued scores. Higher scores must indicate the positive class.
// Tied scores are grouped so the result does not depend on input order.
func ROCAUC(labels, scores []float64) (float64, error) {
	if len(labels) != len(scores) {
		return 0, fmt.Errorf("metrics: labels/scores length mismatch: %d vs %d", len(labels), len(scores))
	}
	if len(labels) == 0 {
		return 0, errors.New("metrics: ROC-AUC requires at least one sample")
	}

	type pair struct {
		score float64
		label float64
	}

	pairs := make([]pair, len(labels))
	totalPos := 0
	totalNeg := 0
	for i := range labels {
		pairs[i] = pair{score: scores[i], label: labels[i]}
		if labels[i] == 1 {
			totalPos++
		} else {
			totalNeg++
		}
	}

	if totalPos == 0 || totalNeg == 0 {
		return 0, ErrSingleClass
	}

	// Sort by score (descending)
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].score > pairs[j].score
	})

	// Walk the curve with the trapezoidal rule, processing runs of tied
	// scores as a single threshold step.
	var area float64
	tp, fp := 0, 0
	prevTP, prevFP := 0, 0

	i := 0
	for i < len(pairs) {
		j := i
		for j < len(pairs) && pairs[j].score == pairs[i].score {
			if pairs[j].label == 1 {
				tp++
			} else {
				fp++
			}
			j++
		}
		area += float64(fp-prevFP) * float64(tp+prevTP) / 2.0
		prevTP, prevFP = tp, fp
		i = j
	}

	return area / (float64(totalPos) * float64(totalNeg)), nil
}

// Accuracy computes the fraction of samples whose predicted label matches
// the true label. Predictions are raw logits; the decision threshold is
// fixed at zero, which matches probability 0.5 after a sigmoid.
func Accuracy(labels, logits []float64) (float64, error) {
	if len(labels) != len(logits) {
		return 0, fmt.Errorf("metrics: labels/logits length mismatch: %d vs %d", len(labels), len(logits))
	}
	if len(labels) == 0 {
		return 0, errors.New("metrics: accuracy requires at least one sample")
	}

	correct := 0
	for i, logit := range logits {
		pred := 0.0
		if logit > 0 {
			pred = 1.0
		}
		if pred == labels[i] {
			correct++
		}
	}

	return float64(correct) / float64(len(labels)), nil
}

// BinaryConfusionMatrix accumulates threshold-at-zero binary classification
// outcomes across batches.
type BinaryConfusionMatrix struct {
	// Matrix[true][predicted]
	Matrix       [2][2]int
	TotalSamples int
}

// Update adds one batch of (logit, label) outcomes to the matrix.
func (cm *BinaryConfusionMatrix) Update(logits, labels []float64) error {
	if len(logits) != len(labels) {
		return fmt.Errorf("metrics: logits/labels length mismatch: %d vs %d", len(logits), len(labels))
	}

	for i, logit := range logits {
		pred := 0
		if logit > 0 {
			pred = 1
		}
		truth := 0
		if labels[i] == 1 {
			truth = 1
		}
		cm.Matrix[truth][pred]++
		cm.TotalSamples++
	}
	return nil
}

// Reset clears all counts.
func (cm *BinaryConfusionMatrix) Reset() {
	cm.Matrix = [2][2]int{}
	cm.TotalSamples = 0
}

// Accuracy returns overall classification accuracy.
func (cm *BinaryConfusionMatrix) Accuracy() float64 {
	if cm.TotalSamples == 0 {
		return 0
	}
	return float64(cm.Matrix[0][0]+cm.Matrix[1][1]) / float64(cm.TotalSamples)
}

// Precision returns TP / (TP + FP), or 0 when nothing was predicted positive.
func (cm *BinaryConfusionMatrix) Precision() float64 {
	tp := float64(cm.Matrix[1][1])
	fp := float64(cm.Matrix[0][1])
	if tp+fp == 0 {
		return 0
	}
	return tp / (tp + fp)
}

// Recall returns TP / (TP + FN), or 0 when there are no actual positives.
func (cm *BinaryConfusionMatrix) Recall() float64 {
	tp := float64(cm.Matrix[1][1])
	fn := float64(cm.Matrix[1][0])
	if tp+fn == 0 {
		return 0
	}
	return tp / (tp + fn)
}

// F1 returns the harmonic mean of precision and recall.
func (cm *BinaryConfusionMatrix) F1() float64 {
	p := cm.Precision()
	r := cm.Recall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}
