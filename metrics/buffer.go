package metrics

import "fmt"

// EpochBuffer accumulates true labels and predicted scores across the
// batches of one phase-epoch. It is owned by a single epoch controller,
// appended to once per batch, consumed exactly once at phase end, then
// discarded. It is not safe for concurrent use; batches within a phase
// are processed strictly sequentially.
type EpochBuffer struct {
	labels []float64
	scores []float64
}

// NewEpochBuffer returns an empty buffer.
func NewEpochBuffer() *EpochBuffer {
	return &EpochBuffer{}
}

// Reset empties both sequences.
func (b *EpochBuffer) Reset() {
	b.labels = b.labels[:0]
	b.scores = b.scores[:0]
}

// Append adds one batch of (label, score) pairs in batch order. When the
// two inputs differ in length the buffer is left unmodified.
func (b *EpochBuffer) Append(labels, scores []float64) error {
	if len(labels) != len(scores) {
		return fmt.Errorf("metrics: append length mismatch: %d labels vs %d scores", len(labels), len(scores))
	}
	b.labels = append(b.labels, labels...)
	b.scores = append(b.scores, scores...)
	return nil
}

// Len returns the number of accumulated samples.
func (b *EpochBuffer) Len() int {
	return len(b.labels)
}

// Aggregate computes ROC-AUC over everything appended so far. An empty
// buffer or single-class contents is an error, never a default value.
func (b *EpochBuffer) Aggregate() (float64, error) {
	return ROCAUC(b.labels, b.scores)
}
