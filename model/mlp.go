package model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Linear implements a fully connected layer: y = xW + b
type Linear struct {
	weight *Param // [in x out], row-major
	bias   *Param // [out]
	in     int
	out    int

	input *mat.Dense // cached for backward
}

// NewLinear creates a Linear layer with Xavier-initialized weights and
// zero bias.
func NewLinear(name string, in, out int) *Linear {
	l := &Linear{
		weight: NewParam(name+".weight", in*out),
		bias:   NewParam(name+".bias", out),
		in:     in,
		out:    out,
	}
	xavierInit(l.weight.Data, in, out)
	return l
}

func (l *Linear) weightMat() *mat.Dense {
	return mat.NewDense(l.in, l.out, l.weight.Data)
}

// Forward computes y = xW + b for a batch of rows.
func (l *Linear) Forward(x *mat.Dense) *mat.Dense {
	l.input = x

	rows, _ := x.Dims()
	y := mat.NewDense(rows, l.out, nil)
	y.Mul(x, l.weightMat())
	for i := 0; i < rows; i++ {
		for j := 0; j < l.out; j++ {
			y.Set(i, j, y.At(i, j)+l.bias.Data[j])
		}
	}
	return y
}

// Backward accumulates dW = x^T dy and db = colsum(dy), returning dx = dy W^T.
func (l *Linear) Backward(dy *mat.Dense) *mat.Dense {
	rows, _ := dy.Dims()

	var dw mat.Dense
	dw.Mul(l.input.T(), dy)
	gw := mat.NewDense(l.in, l.out, l.weight.Grad)
	gw.Add(gw, &dw)

	for i := 0; i < rows; i++ {
		for j := 0; j < l.out; j++ {
			l.bias.Grad[j] += dy.At(i, j)
		}
	}

	dx := mat.NewDense(rows, l.in, nil)
	dx.Mul(dy, l.weightMat().T())
	return dx
}

// Parameters returns the weight and bias.
func (l *Linear) Parameters() []*Param {
	return []*Param{l.weight, l.bias}
}

// ReLU applies max(0, x) elementwise.
type ReLU struct {
	input *mat.Dense
}

// Forward applies the activation.
func (r *ReLU) Forward(x *mat.Dense) *mat.Dense {
	r.input = x
	rows, cols := x.Dims()
	y := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if v := x.At(i, j); v > 0 {
				y.Set(i, j, v)
			}
		}
	}
	return y
}

// Backward masks the output gradient where the input was non-positive.
func (r *ReLU) Backward(dy *mat.Dense) *mat.Dense {
	rows, cols := dy.Dims()
	dx := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if r.input.At(i, j) > 0 {
				dx.Set(i, j, dy.At(i, j))
			}
		}
	}
	return dx
}

// Parameters returns nil; ReLU has no trainable state.
func (r *ReLU) Parameters() []*Param { return nil }

// ClassicalMLP stacks Linear layers with ReLU activations between them.
// numLayers counts hidden layers; with numLayers == 0 (or no hidden width)
// it degenerates to a single Linear mapping in to out.
type ClassicalMLP struct {
	seq *Sequential
}

// NewClassicalMLP builds the stack in -> hidden (xnumLayers) -> out.
func NewClassicalMLP(name string, in, out, hidden, numLayers int) *ClassicalMLP {
	var stages []EdgeModel
	if numLayers <= 0 || hidden <= 0 {
		stages = append(stages, NewLinear(fmt.Sprintf("%s.0", name), in, out))
	} else {
		stages = append(stages, NewLinear(fmt.Sprintf("%s.0", name), in, hidden), &ReLU{})
		for i := 1; i < numLayers; i++ {
			stages = append(stages, NewLinear(fmt.Sprintf("%s.%d", name, i), hidden, hidden), &ReLU{})
		}
		stages = append(stages, NewLinear(fmt.Sprintf("%s.%d", name, numLayers), hidden, out))
	}
	return &ClassicalMLP{seq: NewSequential(stages...)}
}

// Forward runs the stack on a batch of rows.
func (m *ClassicalMLP) Forward(x *mat.Dense) *mat.Dense {
	return m.seq.Forward(x)
}

// Backward propagates the output gradient, accumulating layer gradients.
func (m *ClassicalMLP) Backward(dy *mat.Dense) *mat.Dense {
	return m.seq.Backward(dy)
}

// Parameters returns all layer parameters.
func (m *ClassicalMLP) Parameters() []*Param {
	return m.seq.Parameters()
}

// ElementwiseLinear applies a per-feature scale and shift: y_j = w_j*x_j + b_j.
// Scales start at one and shifts at zero so it begins as the identity.
type ElementwiseLinear struct {
	scale *Param
	shift *Param
	n     int

	input *mat.Dense
}

// NewElementwiseLinear creates an identity-initialized elementwise layer.
func NewElementwiseLinear(name string, features int) *ElementwiseLinear {
	e := &ElementwiseLinear{
		scale: NewParam(name+".scale", features),
		shift: NewParam(name+".shift", features),
		n:     features,
	}
	for i := range e.scale.Data {
		e.scale.Data[i] = 1
	}
	return e
}

// Forward applies the scale and shift per column.
func (e *ElementwiseLinear) Forward(x *mat.Dense) *mat.Dense {
	e.input = x
	rows, _ := x.Dims()
	y := mat.NewDense(rows, e.n, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < e.n; j++ {
			y.Set(i, j, e.scale.Data[j]*x.At(i, j)+e.shift.Data[j])
		}
	}
	return y
}

// Backward accumulates scale/shift gradients and returns dx.
func (e *ElementwiseLinear) Backward(dy *mat.Dense) *mat.Dense {
	rows, _ := dy.Dims()
	dx := mat.NewDense(rows, e.n, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < e.n; j++ {
			g := dy.At(i, j)
			e.scale.Grad[j] += g * e.input.At(i, j)
			e.shift.Grad[j] += g
			dx.Set(i, j, g*e.scale.Data[j])
		}
	}
	return dx
}

// Parameters returns the scale and shift.
func (e *ElementwiseLinear) Parameters() []*Param {
	return []*Param{e.scale, e.shift}
}
