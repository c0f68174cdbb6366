package dataset

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Loader provides batching and per-epoch shuffling over a graph or flat
// dataset. Batches are produced strictly sequentially; Reset starts a new
// epoch and Next returns nil when the epoch is exhausted.
type Loader struct {
	graphDS *GraphDataset
	flatDS  *FlatDataset

	batchSize int
	shuffle   bool
	rng       *rand.Rand
	indices   []int
	position  int
}

// NewGraphLoader creates a loader producing ModeGraph batches.
func NewGraphLoader(ds *GraphDataset, batchSize int, shuffle bool, seed int64) (*Loader, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("dataset: batch size must be > 0 (got %d)", batchSize)
	}
	l := &Loader{graphDS: ds, batchSize: batchSize, shuffle: shuffle, rng: rand.New(rand.NewSource(seed))}
	l.indices = make([]int, ds.Len())
	for i := range l.indices {
		l.indices[i] = i
	}
	return l, nil
}

// NewFlatLoader creates a loader producing ModeFlat batches.
func NewFlatLoader(ds *FlatDataset, batchSize int, shuffle bool, seed int64) (*Loader, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("dataset: batch size must be > 0 (got %d)", batchSize)
	}
	l := &Loader{flatDS: ds, batchSize: batchSize, shuffle: shuffle, rng: rand.New(rand.NewSource(seed))}
	l.indices = make([]int, ds.Len())
	for i := range l.indices {
		l.indices[i] = i
	}
	return l, nil
}

// Mode returns the batch shape this loader produces.
func (l *Loader) Mode() InputMode {
	if l.graphDS != nil {
		return ModeGraph
	}
	return ModeFlat
}

// Len returns the number of batches per epoch.
func (l *Loader) Len() int {
	return (len(l.indices) + l.batchSize - 1) / l.batchSize
}

// NumSamples returns the dataset size.
func (l *Loader) NumSamples() int { return len(l.indices) }

// Reset starts a new epoch, reshuffling if enabled.
func (l *Loader) Reset() {
	l.position = 0
	if l.shuffle {
		l.rng.Shuffle(len(l.indices), func(i, j int) {
			l.indices[i], l.indices[j] = l.indices[j], l.indices[i]
		})
	}
}

// Next returns the next batch, or nil when the epoch is complete.
func (l *Loader) Next() (*Batch, error) {
	if l.position >= len(l.indices) {
		return nil, nil
	}
	end := l.position + l.batchSize
	if end > len(l.indices) {
		end = len(l.indices)
	}
	batchIdx := l.indices[l.position:end]
	l.position = end

	if l.graphDS != nil {
		return l.collateGraph(batchIdx)
	}
	return l.collateFlat(batchIdx)
}

// collateGraph concatenates node features, builds the fully connected
// edge index (self-loops included) with node offsets, and fills the
// batch-assignment vector.
func (l *Loader) collateGraph(batchIdx []int) (*Batch, error) {
	totalNodes := 0
	for _, idx := range batchIdx {
		totalNodes += len(l.graphDS.samples[idx].features)
	}

	x := mat.NewDense(totalNodes, NumFeatures, nil)
	var edges [][2]int
	graph := make([]int, 0, totalNodes)
	labels := make([]float64, 0, len(batchIdx))

	base := 0
	for g, idx := range batchIdx {
		s := l.graphDS.samples[idx]
		n := len(s.features)
		for i := 0; i < n; i++ {
			x.SetRow(base+i, s.features[i][:])
			graph = append(graph, g)
			for j := 0; j < n; j++ {
				edges = append(edges, [2]int{base + i, base + j})
			}
		}
		labels = append(labels, s.label)
		base += n
	}

	b := &Batch{
		Mode:      ModeGraph,
		X:         x,
		Edges:     edges,
		Graph:     graph,
		NumGraphs: len(batchIdx),
		Labels:    labels,
	}
	if len(b.Labels) != b.NumGraphs {
		return nil, fmt.Errorf("dataset: %d labels for %d graphs", len(b.Labels), b.NumGraphs)
	}
	return b, nil
}

// collateFlat stacks zero-padded flattened feature rows.
func (l *Loader) collateFlat(batchIdx []int) (*Batch, error) {
	width := l.flatDS.Width()
	x := mat.NewDense(len(batchIdx), width, nil)
	labels := make([]float64, len(batchIdx))

	for r, idx := range batchIdx {
		s := l.flatDS.samples[idx]
		row := make([]float64, width)
		for i, f := range s.features {
			copy(row[i*NumFeatures:(i+1)*NumFeatures], f[:])
		}
		x.SetRow(r, row)
		labels[r] = s.label
	}

	return &Batch{
		Mode:      ModeFlat,
		X:         x,
		NumGraphs: len(batchIdx),
		Labels:    labels,
	}, nil
}
