package training

import (
	"fmt"

	"github.com/hepqml/jettag/dataset"
	"github.com/hepqml/jettag/metrics"
	"github.com/hepqml/jettag/model"
)

// BatchEvaluator runs one batch through the wrapped model and turns the
// raw logits into loss, accuracy, and buffered (label, score) pairs. The
// input mode is fixed at construction; a batch of the wrong shape is an
// error, never a silent reinterpretation.
type BatchEvaluator struct {
	mode  dataset.InputMode
	graph model.GraphModel
	flat  model.FlatModel
	loss  Loss
}

// NewGraphEvaluator wraps a graph model.
func NewGraphEvaluator(m model.GraphModel) *BatchEvaluator {
	return &BatchEvaluator{mode: dataset.ModeGraph, graph: m, loss: NewBCEWithLogitsLoss()}
}

// NewFlatEvaluator wraps a flat model.
func NewFlatEvaluator(m model.FlatModel) *BatchEvaluator {
	return &BatchEvaluator{mode: dataset.ModeFlat, flat: m, loss: NewBCEWithLogitsLoss()}
}

// Mode returns the batch shape this evaluator accepts.
func (e *BatchEvaluator) Mode() dataset.InputMode { return e.mode }

// Parameters returns the wrapped model's trainable parameters.
func (e *BatchEvaluator) Parameters() []*model.Param {
	if e.mode == dataset.ModeGraph {
		return e.graph.Parameters()
	}
	return e.flat.Parameters()
}

// Evaluate scores one batch. It appends (labels, sigmoid(logits)) to buf,
// and in training mode backpropagates the loss gradient through the model,
// accumulating parameter gradients. Returns the batch loss and accuracy.
func (e *BatchEvaluator) Evaluate(batch *dataset.Batch, buf *metrics.EpochBuffer, train bool) (float64, float64, error) {
	if batch.Mode != e.mode {
		return 0, 0, fmt.Errorf("training: evaluator expects %s batches, got %s", e.mode, batch.Mode)
	}

	var logits []float64
	switch e.mode {
	case dataset.ModeGraph:
		logits = e.graph.Forward(batch.X, batch.Edges, batch.Graph, batch.NumGraphs)
	case dataset.ModeFlat:
		logits = e.flat.Forward(batch.X)
	}

	if len(logits) != len(batch.Labels) {
		return 0, 0, fmt.Errorf("training: model produced %d logits for %d labels", len(logits), len(batch.Labels))
	}

	loss, err := e.loss.Forward(logits, batch.Labels)
	if err != nil {
		return 0, 0, err
	}
	acc, err := metrics.Accuracy(batch.Labels, logits)
	if err != nil {
		return 0, 0, err
	}

	scores := make([]float64, len(logits))
	for i, x := range logits {
		scores[i] = sigmoid(x)
	}
	if err := buf.Append(batch.Labels, scores); err != nil {
		return 0, 0, err
	}

	if train {
		dLogits, err := e.loss.Backward(logits, batch.Labels)
		if err != nil {
			return 0, 0, err
		}
		switch e.mode {
		case dataset.ModeGraph:
			e.graph.Backward(dLogits)
		case dataset.ModeFlat:
			e.flat.Backward(dLogits)
		}
	}

	return loss, acc, nil
}
