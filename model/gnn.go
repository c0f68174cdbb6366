package model

import (
	"gonum.org/v1/gonum/mat"
)

// GraphTwoPC is the two-particle-correlation graph network: a shared
// message function phi runs over every directed edge on the concatenated
// features of its endpoints, messages are sum-aggregated at the edge's
// first node, node outputs are globally add-pooled per graph, and an MLP
// head maps each pooled vector to one logit.
type GraphTwoPC struct {
	phi  EdgeModel
	head *ClassicalMLP

	// cached batch structure for backward
	edges     [][2]int
	graph     []int
	numNodes  int
	numGraphs int
	phiOut    int
}

// NewGraphTwoPC wires a message function and a readout head. phi must map
// rows of width 2F (two concatenated node feature vectors) to rows of
// width phiOut; the head maps phiOut to a single logit.
func NewGraphTwoPC(phi EdgeModel, phiOut int, head *ClassicalMLP) *GraphTwoPC {
	return &GraphTwoPC{phi: phi, head: head, phiOut: phiOut}
}

// NewClassical2PC builds the fully classical variant: an MLP message
// function over 2*gnnIn features and an MLP head.
func NewClassical2PC(gnnIn, gnnOut, gnnHidden, gnnLayers, mlpHidden, mlpLayers int) *GraphTwoPC {
	phi := NewClassicalMLP("phi", 2*gnnIn, gnnOut, gnnHidden, gnnLayers)
	head := NewClassicalMLP("head", gnnOut, 1, mlpHidden, mlpLayers)
	return NewGraphTwoPC(phi, gnnOut, head)
}

// NewQuantumAngle2PC builds the quantum variant: a quantum MLP message
// function over 2F qubits (angle-embedded endpoint features) and a linear
// head over its measured expectations.
func NewQuantumAngle2PC(qubits, layers, reupload int, measure []int) *GraphTwoPC {
	phi := NewQuantumMLP("phi", qubits, layers, reupload, measure)
	head := NewClassicalMLP("head", len(measure), 1, 0, 0)
	return NewGraphTwoPC(phi, len(measure), head)
}

// NewQuantumElementwiseAngle2PC is NewQuantumAngle2PC with a trainable
// per-feature rescaling in front of the angle embedding.
func NewQuantumElementwiseAngle2PC(qubits, layers, reupload int, measure []int) *GraphTwoPC {
	phi := NewSequential(
		NewElementwiseLinear("pre", qubits),
		NewQuantumMLP("phi", qubits, layers, reupload, measure),
	)
	head := NewClassicalMLP("head", len(measure), 1, 0, 0)
	return NewGraphTwoPC(phi, len(measure), head)
}

// Forward maps a node feature matrix [numNodes x F] with edge index and
// graph-assignment vector to one logit per graph.
func (g *GraphTwoPC) Forward(x *mat.Dense, edges [][2]int, graph []int, numGraphs int) []float64 {
	numNodes, features := x.Dims()
	g.edges = edges
	g.graph = graph
	g.numNodes = numNodes
	g.numGraphs = numGraphs

	// Per-edge inputs: [x_i ; x_j] for edge (i, j).
	edgeFeat := mat.NewDense(len(edges), 2*features, nil)
	for e, edge := range edges {
		for f := 0; f < features; f++ {
			edgeFeat.Set(e, f, x.At(edge[0], f))
			edgeFeat.Set(e, features+f, x.At(edge[1], f))
		}
	}

	messages := g.phi.Forward(edgeFeat) // [numEdges x phiOut]

	// Sum-aggregate messages at each edge's first node, then add-pool per graph.
	pooled := mat.NewDense(numGraphs, g.phiOut, nil)
	for e, edge := range edges {
		target := graph[edge[0]]
		for f := 0; f < g.phiOut; f++ {
			pooled.Set(target, f, pooled.At(target, f)+messages.At(e, f))
		}
	}

	logits := g.head.Forward(pooled) // [numGraphs x 1]
	out := make([]float64, numGraphs)
	for i := range out {
		out[i] = logits.At(i, 0)
	}
	return out
}

// Backward accumulates gradients for the head and phi from per-graph
// logit gradients.
func (g *GraphTwoPC) Backward(dLogits []float64) {
	dOut := mat.NewDense(g.numGraphs, 1, nil)
	for i, d := range dLogits {
		dOut.Set(i, 0, d)
	}

	dPooled := g.head.Backward(dOut) // [numGraphs x phiOut]

	// Pooling and aggregation are sums, so each message receives the
	// gradient of its destination graph unchanged.
	dMessages := mat.NewDense(len(g.edges), g.phiOut, nil)
	for e, edge := range g.edges {
		target := g.graph[edge[0]]
		for f := 0; f < g.phiOut; f++ {
			dMessages.Set(e, f, dPooled.At(target, f))
		}
	}

	g.phi.Backward(dMessages)
}

// Parameters returns phi and head parameters.
func (g *GraphTwoPC) Parameters() []*Param {
	return append(g.phi.Parameters(), g.head.Parameters()...)
}

// FlatMLP wraps a row-wise network over padded, flattened jet features,
// producing one logit per sample.
type FlatMLP struct {
	net EdgeModel
}

// NewFlatMLP builds a classical MLP from `in` flattened features to one logit.
func NewFlatMLP(in, hidden, numLayers int) *FlatMLP {
	return &FlatMLP{net: NewClassicalMLP("flat", in, 1, hidden, numLayers)}
}

// NewQuantumFlat builds the quantum flat-input variant: angle-embedded
// padded features through a quantum MLP, then a linear readout over its
// measured expectations. The number of qubits equals the padded feature
// width, so this is only practical for small jets.
func NewQuantumFlat(qubits, layers, reupload int, measure []int) *FlatMLP {
	return &FlatMLP{net: NewSequential(
		NewQuantumMLP("flat", qubits, layers, reupload, measure),
		NewLinear("flat.head", len(measure), 1),
	)}
}

// Forward maps a [batch x features] matrix to one logit per sample.
func (m *FlatMLP) Forward(x *mat.Dense) []float64 {
	logits := m.net.Forward(x)
	rows, _ := logits.Dims()
	out := make([]float64, rows)
	for i := range out {
		out[i] = logits.At(i, 0)
	}
	return out
}

// Backward accumulates gradients from per-sample logit gradients.
func (m *FlatMLP) Backward(dLogits []float64) {
	dOut := mat.NewDense(len(dLogits), 1, nil)
	for i, d := range dLogits {
		dOut.Set(i, 0, d)
	}
	m.net.Backward(dOut)
}

// Parameters returns the network parameters.
func (m *FlatMLP) Parameters() []*Param {
	return m.net.Parameters()
}
