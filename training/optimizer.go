package training

import (
	"math"

	"github.com/hepqml/jettag/model"
)

// Optimizer interface defines the methods that all optimizers must implement
type Optimizer interface {
	Step()            // Updates model parameters based on gradients
	ZeroGrad()        // Resets gradients to zero for all parameters
	GetLR() float64   // Gets current learning rate
	SetLR(lr float64) // Sets learning rate
}

// SGD implements stochastic gradient descent with optional momentum and
// weight decay.
type SGD struct {
	parameters   []*model.Param
	learningRate float64
	momentum     float64
	weightDecay  float64
	velocities   map[*model.Param][]float64
}

// NewSGD creates a new SGD optimizer over the given parameters.
func NewSGD(parameters []*model.Param, lr, momentum, weightDecay float64) *SGD {
	sgd := &SGD{
		parameters:   parameters,
		learningRate: lr,
		momentum:     momentum,
		weightDecay:  weightDecay,
		velocities:   make(map[*model.Param][]float64),
	}
	if momentum > 0 {
		for _, p := range parameters {
			sgd.velocities[p] = make([]float64, len(p.Data))
		}
	}
	return sgd
}

// Step performs a single optimization step.
func (sgd *SGD) Step() {
	for _, p := range sgd.parameters {
		for i := range p.Data {
			g := p.Grad[i]
			if sgd.weightDecay > 0 {
				g += sgd.weightDecay * p.Data[i]
			}
			if sgd.momentum > 0 {
				v := sgd.velocities[p]
				v[i] = sgd.momentum*v[i] + g
				g = v[i]
			}
			p.Data[i] -= sgd.learningRate * g
		}
	}
}

// ZeroGrad resets all parameter gradients to zero.
func (sgd *SGD) ZeroGrad() {
	for _, p := range sgd.parameters {
		p.ZeroGrad()
	}
}

// GetLR returns the current learning rate.
func (sgd *SGD) GetLR() float64 { return sgd.learningRate }

// SetLR sets the learning rate.
func (sgd *SGD) SetLR(lr float64) { sgd.learningRate = lr }

// Adam implements the Adam optimizer with bias correction.
type Adam struct {
	parameters   []*model.Param
	learningRate float64
	beta1        float64
	beta2        float64
	epsilon      float64
	weightDecay  float64

	m    map[*model.Param][]float64 // first moment estimates
	v    map[*model.Param][]float64 // second moment estimates
	step int
}

// NewAdam creates a new Adam optimizer with the standard defaults for any
// hyperparameter passed as zero (beta1 0.9, beta2 0.999, epsilon 1e-8).
func NewAdam(parameters []*model.Param, lr, beta1, beta2, epsilon float64) *Adam {
	if beta1 == 0 {
		beta1 = 0.9
	}
	if beta2 == 0 {
		beta2 = 0.999
	}
	if epsilon == 0 {
		epsilon = 1e-8
	}
	adam := &Adam{
		parameters:   parameters,
		learningRate: lr,
		beta1:        beta1,
		beta2:        beta2,
		epsilon:      epsilon,
		m:            make(map[*model.Param][]float64),
		v:            make(map[*model.Param][]float64),
	}
	for _, p := range parameters {
		adam.m[p] = make([]float64, len(p.Data))
		adam.v[p] = make([]float64, len(p.Data))
	}
	return adam
}

// Step performs a single optimization step with bias-corrected moments.
func (adam *Adam) Step() {
	adam.step++
	bc1 := 1.0 - math.Pow(adam.beta1, float64(adam.step))
	bc2 := 1.0 - math.Pow(adam.beta2, float64(adam.step))

	for _, p := range adam.parameters {
		m := adam.m[p]
		v := adam.v[p]
		for i := range p.Data {
			g := p.Grad[i]
			if adam.weightDecay > 0 {
				g += adam.weightDecay * p.Data[i]
			}
			m[i] = adam.beta1*m[i] + (1.0-adam.beta1)*g
			v[i] = adam.beta2*v[i] + (1.0-adam.beta2)*g*g

			mHat := m[i] / bc1
			vHat := v[i] / bc2
			p.Data[i] -= adam.learningRate * mHat / (math.Sqrt(vHat) + adam.epsilon)
		}
	}
}

// ZeroGrad resets all parameter gradients to zero.
func (adam *Adam) ZeroGrad() {
	for _, p := range adam.parameters {
		p.ZeroGrad()
	}
}

// GetLR returns the current learning rate.
func (adam *Adam) GetLR() float64 { return adam.learningRate }

// SetLR sets the learning rate.
func (adam *Adam) SetLR(lr float64) { adam.learningRate = lr }
