package model

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// statevector simulates an n-qubit register. Qubit q maps to bit q of the
// amplitude index.
type statevector struct {
	n    int
	amps []complex128
}

func newStatevector(n int) *statevector {
	s := &statevector{n: n, amps: make([]complex128, 1<<n)}
	s.amps[0] = 1
	return s
}

// ry applies a Y-rotation by theta to qubit q.
func (s *statevector) ry(q int, theta float64) {
	c := complex(math.Cos(theta/2), 0)
	sn := complex(math.Sin(theta/2), 0)
	bit := 1 << q
	for i := range s.amps {
		if i&bit != 0 {
			continue
		}
		a0, a1 := s.amps[i], s.amps[i|bit]
		s.amps[i] = c*a0 - sn*a1
		s.amps[i|bit] = sn*a0 + c*a1
	}
}

// rz applies a Z-rotation by theta to qubit q.
func (s *statevector) rz(q int, theta float64) {
	p0 := cmplx.Exp(complex(0, -theta/2))
	p1 := cmplx.Exp(complex(0, theta/2))
	bit := 1 << q
	for i := range s.amps {
		if i&bit == 0 {
			s.amps[i] *= p0
		} else {
			s.amps[i] *= p1
		}
	}
}

// cnot applies a controlled-X with the given control and target qubits.
func (s *statevector) cnot(control, target int) {
	cb := 1 << control
	tb := 1 << target
	for i := range s.amps {
		if i&cb != 0 && i&tb == 0 {
			s.amps[i], s.amps[i|tb] = s.amps[i|tb], s.amps[i]
		}
	}
}

// expZ returns the Pauli-Z expectation value of qubit q.
func (s *statevector) expZ(q int) float64 {
	bit := 1 << q
	var exp float64
	for i, a := range s.amps {
		p := real(a)*real(a) + imag(a)*imag(a)
		if i&bit == 0 {
			exp += p
		} else {
			exp -= p
		}
	}
	return exp
}

// QuantumMLP is a variational circuit used as a differentiable block.
// Each data re-upload block angle-embeds the input features as RY
// rotations, then applies `layers` rounds of per-qubit RY+RZ rotations
// followed by a CNOT ring entangler. Outputs are Pauli-Z expectations of
// the measured qubits. Gradients for both weights and inputs are exact
// parameter-shift values, so the block composes with classical layers on
// either side.
type QuantumMLP struct {
	qubits   int
	layers   int
	reupload int
	measure  []int
	weights  *Param

	input *mat.Dense // cached for backward
}

// NewQuantumMLP creates a circuit over `qubits` qubits. Input rows must
// have exactly `qubits` features; reupload counts additional embedding
// blocks beyond the first.
func NewQuantumMLP(name string, qubits, layers, reupload int, measure []int) *QuantumMLP {
	q := &QuantumMLP{
		qubits:   qubits,
		layers:   layers,
		reupload: reupload,
		measure:  measure,
		weights:  NewParam(name+".theta", (reupload+1)*layers*qubits*2),
	}
	for i := range q.weights.Data {
		q.weights.Data[i] = (globalRng.Float64()*2.0 - 1.0) * math.Pi
	}
	return q
}

// evaluate runs the circuit for one sample. A single angle occurrence may
// be shifted by delta: weight index wi, or the embedding of qubit eq in
// re-upload block eb. Pass -1 to leave weights respectively embeddings
// unshifted. Occurrences are shifted individually because the
// parameter-shift rule applies per gate, not per shared parameter.
func (q *QuantumMLP) evaluate(row []float64, eb, eq, wi int, delta float64) []float64 {
	st := newStatevector(q.qubits)
	w := q.weights.Data
	widx := 0

	for b := 0; b <= q.reupload; b++ {
		for qb := 0; qb < q.qubits; qb++ {
			angle := row[qb]
			if b == eb && qb == eq {
				angle += delta
			}
			st.ry(qb, angle)
		}
		for l := 0; l < q.layers; l++ {
			for qb := 0; qb < q.qubits; qb++ {
				ay := w[widx]
				if widx == wi {
					ay += delta
				}
				widx++
				az := w[widx]
				if widx == wi {
					az += delta
				}
				widx++
				st.ry(qb, ay)
				st.rz(qb, az)
			}
			if q.qubits > 1 {
				for qb := 0; qb < q.qubits; qb++ {
					st.cnot(qb, (qb+1)%q.qubits)
				}
			}
		}
	}

	out := make([]float64, len(q.measure))
	for i, m := range q.measure {
		out[i] = st.expZ(m)
	}
	return out
}

// Forward maps [batch x qubits] angle rows to [batch x len(measure)]
// expectation values.
func (q *QuantumMLP) Forward(x *mat.Dense) *mat.Dense {
	q.input = x
	rows, _ := x.Dims()
	y := mat.NewDense(rows, len(q.measure), nil)
	for i := 0; i < rows; i++ {
		out := q.evaluate(mat.Row(nil, i, x), -1, -1, -1, 0)
		y.SetRow(i, out)
	}
	return y
}

// Backward accumulates weight gradients and returns input gradients via
// the parameter-shift rule: d<Z>/dtheta = (<Z>(theta+pi/2) - <Z>(theta-pi/2))/2.
func (q *QuantumMLP) Backward(dy *mat.Dense) *mat.Dense {
	rows, _ := dy.Dims()
	dx := mat.NewDense(rows, q.qubits, nil)
	const shift = math.Pi / 2

	for i := 0; i < rows; i++ {
		row := mat.Row(nil, i, q.input)

		for wi := range q.weights.Data {
			plus := q.evaluate(row, -1, -1, wi, shift)
			minus := q.evaluate(row, -1, -1, wi, -shift)
			var g float64
			for m := range q.measure {
				g += dy.At(i, m) * (plus[m] - minus[m]) / 2
			}
			q.weights.Grad[wi] += g
		}

		// Each input feature appears once per re-upload block; its
		// gradient is the sum over the per-occurrence shifts.
		for qb := 0; qb < q.qubits; qb++ {
			var g float64
			for b := 0; b <= q.reupload; b++ {
				plus := q.evaluate(row, b, qb, -1, shift)
				minus := q.evaluate(row, b, qb, -1, -shift)
				for m := range q.measure {
					g += dy.At(i, m) * (plus[m] - minus[m]) / 2
				}
			}
			dx.Set(i, qb, g)
		}
	}
	return dx
}

// Parameters returns the rotation angles.
func (q *QuantumMLP) Parameters() []*Param {
	return []*Param{q.weights}
}
