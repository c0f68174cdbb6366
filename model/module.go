// Package model provides the differentiable building blocks of the
// jet-tagging classifiers: classical MLPs, a two-particle-correlation
// message-passing GNN, and a quantum MLP backed by a small statevector
// simulator. Blocks compute gradients manually; Backward must be called
// with the output gradient of the most recent Forward on the same batch.
package model

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Global random source for deterministic initialization
var globalRng *rand.Rand = rand.New(rand.NewSource(1))

// SetRandomSeed sets the global random seed for deterministic weight initialization
func SetRandomSeed(seed int64) {
	globalRng = rand.New(rand.NewSource(seed))
}

// Param is a named trainable parameter. Data and Grad are parallel flat
// slices; optimizers update Data in place from Grad.
type Param struct {
	Name string
	Data []float64
	Grad []float64
}

// NewParam creates a zero-valued parameter of the given size.
func NewParam(name string, size int) *Param {
	return &Param{
		Name: name,
		Data: make([]float64, size),
		Grad: make([]float64, size),
	}
}

// ZeroGrad resets the gradient to zero.
func (p *Param) ZeroGrad() {
	for i := range p.Grad {
		p.Grad[i] = 0
	}
}

// Module is anything holding trainable parameters.
type Module interface {
	Parameters() []*Param
}

// GraphModel scores batched graphs: one logit per graph. Backward
// accumulates parameter gradients from per-graph logit gradients and
// must follow the most recent Forward.
type GraphModel interface {
	Module
	Forward(x *mat.Dense, edges [][2]int, graph []int, numGraphs int) []float64
	Backward(dLogits []float64)
}

// FlatModel scores padded flat samples: one logit per row.
type FlatModel interface {
	Module
	Forward(x *mat.Dense) []float64
	Backward(dLogits []float64)
}

// EdgeModel maps a feature matrix to an output matrix row-for-row and
// backpropagates an output gradient to an input gradient. The per-edge
// message function of the GNN and the stages of a Sequential satisfy it.
type EdgeModel interface {
	Module
	Forward(x *mat.Dense) *mat.Dense
	Backward(dy *mat.Dense) *mat.Dense
}

// Sequential chains EdgeModels: Forward front to back, Backward in reverse.
type Sequential struct {
	stages []EdgeModel
}

// NewSequential creates a Sequential from the given stages.
func NewSequential(stages ...EdgeModel) *Sequential {
	return &Sequential{stages: stages}
}

// Forward runs all stages in order.
func (s *Sequential) Forward(x *mat.Dense) *mat.Dense {
	for _, stage := range s.stages {
		x = stage.Forward(x)
	}
	return x
}

// Backward propagates the output gradient through all stages in reverse.
func (s *Sequential) Backward(dy *mat.Dense) *mat.Dense {
	for i := len(s.stages) - 1; i >= 0; i-- {
		dy = s.stages[i].Backward(dy)
	}
	return dy
}

// Parameters returns the parameters of all stages.
func (s *Sequential) Parameters() []*Param {
	var params []*Param
	for _, stage := range s.stages {
		params = append(params, stage.Parameters()...)
	}
	return params
}

// xavierInit fills data with Xavier/Glorot uniform values:
// U(-sqrt(6/(fanIn+fanOut)), sqrt(6/(fanIn+fanOut))).
func xavierInit(data []float64, fanIn, fanOut int) {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))
	for i := range data {
		data[i] = (globalRng.Float64()*2.0 - 1.0) * bound
	}
}
