package dataset

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// PreprocessMode selects the particle feature transform.
type PreprocessMode string

const (
	// PreprocessRaw uses (pt, delta_eta, delta_phi) as-is.
	PreprocessRaw PreprocessMode = ""
	// PreprocessNormalize replaces pt with arctan(pt / fatjet_pt),
	// bounding the first feature like the angular ones.
	PreprocessNormalize PreprocessMode = "normalize"
)

// NumFeatures is the per-particle feature width.
const NumFeatures = 3

// featureRow writes the transformed features of one particle.
func featureRow(ev Event, p Particle, mode PreprocessMode) [NumFeatures]float64 {
	f1 := p.Pt
	if mode == PreprocessNormalize {
		f1 = math.Atan(p.Pt / ev.FatJetPt)
	}
	return [NumFeatures]float64{f1, p.DeltaEta, p.DeltaPhi}
}

// InputMode tags how a batch is shaped.
type InputMode int

const (
	// ModeGraph batches carry node features, an edge index and a
	// batch-assignment vector.
	ModeGraph InputMode = iota
	// ModeFlat batches carry one padded feature row per sample.
	ModeFlat
)

func (m InputMode) String() string {
	switch m {
	case ModeGraph:
		return "graph"
	case ModeFlat:
		return "flat"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// Batch is one collated unit of work for the evaluator. Labels always has
// one entry per sample (per graph in graph mode, per row in flat mode).
type Batch struct {
	Mode InputMode

	// X is [totalNodes x NumFeatures] in graph mode and
	// [batch x paddedFeatures] in flat mode.
	X *mat.Dense

	// Graph-mode structure. Edges index into X's rows; Graph maps each
	// node row to its graph index in [0, NumGraphs).
	Edges     [][2]int
	Graph     []int
	NumGraphs int

	Labels []float64
}

// sample is one labeled jet before collation.
type sample struct {
	features [][NumFeatures]float64
	label    float64
}

// GraphDataset holds labeled jets for graph-mode batching.
type GraphDataset struct {
	samples []sample
}

// NewGraphDataset labels signal events 1 and background events 0 and
// applies the preprocessing mode.
func NewGraphDataset(sig, bkg Events, mode PreprocessMode) *GraphDataset {
	ds := &GraphDataset{}
	for _, ev := range sig {
		ds.samples = append(ds.samples, makeSample(ev, mode, 1))
	}
	for _, ev := range bkg {
		ds.samples = append(ds.samples, makeSample(ev, mode, 0))
	}
	return ds
}

// Len returns the number of jets.
func (ds *GraphDataset) Len() int { return len(ds.samples) }

// FlatDataset holds labeled jets zero-padded to a fixed particle count.
type FlatDataset struct {
	samples []sample
	maxPtcs int
}

// NewFlatDataset pads every jet to maxPtcs particles. maxPtcs must cover
// the largest jet in both channels.
func NewFlatDataset(sig, bkg Events, mode PreprocessMode, maxPtcs int) (*FlatDataset, error) {
	ds := &FlatDataset{maxPtcs: maxPtcs}
	for _, set := range []struct {
		events Events
		label  float64
	}{{sig, 1}, {bkg, 0}} {
		for _, ev := range set.events {
			if len(ev.Particles) > maxPtcs {
				return nil, fmt.Errorf("dataset: event has %d particles, pad width is %d", len(ev.Particles), maxPtcs)
			}
			ds.samples = append(ds.samples, makeSample(ev, mode, set.label))
		}
	}
	return ds, nil
}

// Len returns the number of jets.
func (ds *FlatDataset) Len() int { return len(ds.samples) }

// Width returns the flattened padded feature width.
func (ds *FlatDataset) Width() int { return ds.maxPtcs * NumFeatures }

func makeSample(ev Event, mode PreprocessMode, label float64) sample {
	features := make([][NumFeatures]float64, len(ev.Particles))
	for i, p := range ev.Particles {
		features[i] = featureRow(ev, p, mode)
	}
	return sample{features: features, label: label}
}
