package model

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// weightedSum is the scalar test loss L = sum_ij c_ij * y_ij; its output
// gradient is just c.
func weightedSum(y, c *mat.Dense) float64 {
	rows, cols := y.Dims()
	var sum float64
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			sum += c.At(i, j) * y.At(i, j)
		}
	}
	return sum
}

// checkParamGradients compares accumulated analytic gradients against
// central finite differences of the forward pass.
func checkParamGradients(t *testing.T, m EdgeModel, x, c *mat.Dense, eps, tol float64) {
	t.Helper()

	for _, p := range m.Parameters() {
		p.ZeroGrad()
	}
	y := m.Forward(x)
	m.Backward(c)

	for _, p := range m.Parameters() {
		for i := range p.Data {
			orig := p.Data[i]

			p.Data[i] = orig + eps
			lp := weightedSum(m.Forward(x), c)
			p.Data[i] = orig - eps
			lm := weightedSum(m.Forward(x), c)
			p.Data[i] = orig

			numeric := (lp - lm) / (2 * eps)
			if math.Abs(numeric-p.Grad[i]) > tol {
				t.Errorf("%s[%d]: analytic grad %f, numeric %f", p.Name, i, p.Grad[i], numeric)
			}
		}
	}
	_ = y
}

// checkInputGradients compares the returned dx against finite differences
// over the input entries.
func checkInputGradients(t *testing.T, m EdgeModel, x, c *mat.Dense, eps, tol float64) {
	t.Helper()

	m.Forward(x)
	dx := m.Backward(c)

	rows, cols := x.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			orig := x.At(i, j)

			x.Set(i, j, orig+eps)
			lp := weightedSum(m.Forward(x), c)
			x.Set(i, j, orig-eps)
			lm := weightedSum(m.Forward(x), c)
			x.Set(i, j, orig)

			numeric := (lp - lm) / (2 * eps)
			if math.Abs(numeric-dx.At(i, j)) > tol {
				t.Errorf("dx[%d][%d]: analytic %f, numeric %f", i, j, dx.At(i, j), numeric)
			}
		}
	}
}

func randomDense(rows, cols int, rng *rand.Rand) *mat.Dense {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = rng.Float64()*2 - 1
	}
	return mat.NewDense(rows, cols, data)
}

func TestLinearForward(t *testing.T) {
	l := NewLinear("lin", 2, 1)
	copy(l.weight.Data, []float64{0.5, -1.0})
	copy(l.bias.Data, []float64{0.25})

	x := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	y := l.Forward(x)

	want := []float64{0.5 - 2.0 + 0.25, 1.5 - 4.0 + 0.25}
	for i, w := range want {
		if math.Abs(y.At(i, 0)-w) > 1e-12 {
			t.Errorf("Row %d: expected %f, got %f", i, w, y.At(i, 0))
		}
	}
}

func TestLinearGradients(t *testing.T) {
	SetRandomSeed(11)
	rng := rand.New(rand.NewSource(12))

	l := NewLinear("lin", 3, 2)
	x := randomDense(4, 3, rng)
	c := randomDense(4, 2, rng)

	checkParamGradients(t, l, x, c, 1e-6, 1e-5)
	checkInputGradients(t, l, x, c, 1e-6, 1e-5)
}

func TestClassicalMLPGradients(t *testing.T) {
	SetRandomSeed(21)
	rng := rand.New(rand.NewSource(22))

	m := NewClassicalMLP("mlp", 3, 2, 4, 2)
	x := randomDense(5, 3, rng)
	c := randomDense(5, 2, rng)

	checkParamGradients(t, m, x, c, 1e-6, 1e-4)
	checkInputGradients(t, m, x, c, 1e-6, 1e-4)
}

func TestClassicalMLPDegeneratesToLinear(t *testing.T) {
	SetRandomSeed(31)
	m := NewClassicalMLP("mlp", 3, 1, 0, 0)
	if got := len(m.Parameters()); got != 2 {
		t.Errorf("Expected 2 parameters for a single linear layer, got %d", got)
	}
}

func TestElementwiseLinearIdentityInit(t *testing.T) {
	e := NewElementwiseLinear("pre", 3)
	x := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	y := e.Forward(x)
	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			if math.Abs(y.At(i, j)-x.At(i, j)) > 1e-12 {
				t.Errorf("Identity init violated at [%d][%d]", i, j)
			}
		}
	}
}

func TestElementwiseLinearGradients(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	e := NewElementwiseLinear("pre", 3)
	x := randomDense(4, 3, rng)
	c := randomDense(4, 3, rng)

	checkParamGradients(t, e, x, c, 1e-6, 1e-5)
	checkInputGradients(t, e, x, c, 1e-6, 1e-5)
}

func TestSetRandomSeedDeterminism(t *testing.T) {
	SetRandomSeed(99)
	a := NewLinear("a", 4, 4)
	SetRandomSeed(99)
	b := NewLinear("b", 4, 4)

	for i := range a.weight.Data {
		if a.weight.Data[i] != b.weight.Data[i] {
			t.Fatal("Expected identical weights for identical seeds")
		}
	}
}
