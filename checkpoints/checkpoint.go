// Package checkpoints saves and restores training runs. A checkpoint
// carries the run identity, the optimizer-facing training state, and all
// named weight tensors. Two encodings are supported: readable JSON and a
// compact protobuf wire format; Load detects the encoding from the file
// contents.
package checkpoints

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/hepqml/jettag/model"
)

// Format specifies the checkpoint encoding.
type Format int

const (
	FormatJSON Format = iota
	FormatBinary
)

// WeightTensor is one named flat parameter tensor.
type WeightTensor struct {
	Name string    `json:"name"`
	Data []float64 `json:"data"`
}

// TrainingState carries the loop position needed to resume.
type TrainingState struct {
	Epoch        int     `json:"epoch"`
	GlobalStep   int     `json:"global_step"`
	LearningRate float64 `json:"learning_rate"`
}

// Checkpoint is a complete snapshot of a training run.
type Checkpoint struct {
	Project string         `json:"project"`
	RunID   string         `json:"run_id"`
	State   TrainingState  `json:"training_state"`
	Weights []WeightTensor `json:"weights"`
	SavedAt time.Time      `json:"saved_at"`
}

// FromParams snapshots the given parameters. Data is copied, so the
// checkpoint stays stable while training continues.
func FromParams(project, runID string, state TrainingState, params []*model.Param) *Checkpoint {
	ckpt := &Checkpoint{
		Project: project,
		RunID:   runID,
		State:   state,
		SavedAt: time.Now(),
	}
	for _, p := range params {
		data := make([]float64, len(p.Data))
		copy(data, p.Data)
		ckpt.Weights = append(ckpt.Weights, WeightTensor{Name: p.Name, Data: data})
	}
	return ckpt
}

// ApplyWeights restores the checkpoint's tensors into the given
// parameters, matching by name. Every parameter must be present in the
// checkpoint with the same size.
func (c *Checkpoint) ApplyWeights(params []*model.Param) error {
	byName := make(map[string]*WeightTensor, len(c.Weights))
	for i := range c.Weights {
		byName[c.Weights[i].Name] = &c.Weights[i]
	}

	for _, p := range params {
		w, ok := byName[p.Name]
		if !ok {
			return fmt.Errorf("checkpoints: no tensor %q in checkpoint", p.Name)
		}
		if len(w.Data) != len(p.Data) {
			return fmt.Errorf("checkpoints: tensor %q has %d values, parameter needs %d", p.Name, len(w.Data), len(p.Data))
		}
		copy(p.Data, w.Data)
	}
	return nil
}

// Save writes the checkpoint to path in the given format.
func (c *Checkpoint) Save(path string, format Format) error {
	var data []byte
	var err error
	switch format {
	case FormatJSON:
		data, err = json.MarshalIndent(c, "", "  ")
		if err != nil {
			return fmt.Errorf("checkpoints: marshal: %w", err)
		}
	case FormatBinary:
		data = c.marshalWire()
	default:
		return fmt.Errorf("checkpoints: unknown format %d", format)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("checkpoints: write %s: %w", path, err)
	}
	return nil
}

// Load reads a checkpoint, detecting JSON by its leading brace and
// falling back to the wire format otherwise.
func Load(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("checkpoints: read %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("checkpoints: %s is empty", path)
	}

	if data[0] == '{' {
		var ckpt Checkpoint
		if err := json.Unmarshal(data, &ckpt); err != nil {
			return nil, fmt.Errorf("checkpoints: parse %s: %w", path, err)
		}
		return &ckpt, nil
	}

	ckpt, err := unmarshalWire(data)
	if err != nil {
		return nil, fmt.Errorf("checkpoints: parse %s: %w", path, err)
	}
	return ckpt, nil
}
