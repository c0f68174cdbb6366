package training

import "fmt"

// Phase identifies which pass of the loop a batch belongs to. Each phase
// owns its own metric buffer and lifecycle state.
type Phase int

const (
	PhaseTrain Phase = iota
	PhaseValid
	PhaseTest
)

func (p Phase) String() string {
	switch p {
	case PhaseTrain:
		return "train"
	case PhaseValid:
		return "valid"
	case PhaseTest:
		return "test"
	default:
		return fmt.Sprintf("unknown(%d)", int(p))
	}
}

// lossKey and accKey name the per-step scalars for a phase.
func (p Phase) lossKey() string { return p.String() + "_loss" }
func (p Phase) accKey() string  { return p.String() + "_acc" }

// rocKey names the epoch-level ROC-AUC scalar. The validation key is
// "val_roc_auc" while its step metrics use "valid_", matching the run
// histories downstream tooling already parses.
func (p Phase) rocKey() string {
	switch p {
	case PhaseTrain:
		return "train_roc_auc"
	case PhaseValid:
		return "val_roc_auc"
	case PhaseTest:
		return "test_roc_auc"
	default:
		return fmt.Sprintf("unknown(%d)_roc_auc", int(p))
	}
}
