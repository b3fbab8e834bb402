package coords

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiplyAppliesLeftFirst(t *testing.T) {
	m := Scale(2, 2).Multiply(Translate(10, 0))
	x, y := m.Apply(1, 1)
	assert.Equal(t, 12.0, x)
	assert.Equal(t, 2.0, y)
}

func TestInverse(t *testing.T) {
	m := Matrix{2, 0, 0, 4, 5, 6}
	inv, err := m.Inverse()
	require.NoError(t, err)
	x, y := m.Multiply(inv).Apply(3, 7)
	assert.InDelta(t, 3, x, 1e-9)
	assert.InDelta(t, 7, y, 1e-9)

	_, err = Matrix{1, 2, 2, 4, 0, 0}.Inverse()
	assert.Error(t, err)
}

func TestTransformRectRotated(t *testing.T) {
	rot := Matrix{0, 1, -1, 0, 0, 0}
	r := rot.TransformRect(Rect{X0: 0, Y0: 0, X1: 10, Y1: 5})
	assert.InDelta(t, -5, r.X0, 1e-9)
	assert.InDelta(t, 0, r.Y0, 1e-9)
	assert.InDelta(t, 0, r.X1, 1e-9)
	assert.InDelta(t, 10, r.Y1, 1e-9)
	assert.False(t, r.Empty())
}

func TestNewRectNormalises(t *testing.T) {
	r := NewRect(10, 20, 0, 5)
	assert.Equal(t, Rect{X0: 0, Y0: 5, X1: 10, Y1: 20}, r)
	assert.Equal(t, 10.0, r.Width())
	assert.Equal(t, 15.0, r.Height())
	assert.True(t, Rect{}.Empty())
	assert.False(t, math.IsNaN(r.Width()))
}
