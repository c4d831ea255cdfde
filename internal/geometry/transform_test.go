package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTransform_Empty(t *testing.T) {
	assert.Equal(t, Identity(), ParseTransform(""))
}

func TestParseTransform_Translation(t *testing.T) {
	result := ParseTransform("1 0 0 0 1 0 0 0 1 10.5 20.75 5.25")
	assert.Equal(t, Translation(10.5, 20.75, 5.25), result)
}

func TestParseTransform_ColumnOrder(t *testing.T) {
	// The first three numbers are the first column of the matrix.
	result := ParseTransform("1 2 3 4 5 6 7 8 9 10 11 12")
	expected := Mat4{
		{1, 4, 7, 10},
		{2, 5, 8, 11},
		{3, 6, 9, 12},
		{0, 0, 0, 1},
	}
	assert.Equal(t, expected, result)
}

func TestParseTransform_MalformedCell(t *testing.T) {
	// A cell that does not parse keeps its identity value; the rest of the
	// matrix still loads.
	result := ParseTransform("2 0 0 0 x 0 0 0 2 0 0 0")
	expected := Identity()
	expected[0][0] = 2
	expected[2][2] = 2
	assert.Equal(t, expected, result)
}

func TestParseTransform_ExcessCells(t *testing.T) {
	result := ParseTransform("1 0 0 0 1 0 0 0 1 0 0 0 99 99 99")
	assert.Equal(t, Identity(), result)
}

func TestFormatTransform_RoundTrip(t *testing.T) {
	original := Translation(1.5, -2, 3).Mul(Scaling(2.5))
	parsed := ParseTransform(FormatTransform(original))
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			assert.InDelta(t, original[row][col], parsed[row][col], 1e-6)
		}
	}
}

func TestFormatTransform_Identity(t *testing.T) {
	assert.Equal(t, "1 0 0 0 1 0 0 0 1 0 0 0", FormatTransform(Identity()))
}

func TestMul_AppliesRightFirst(t *testing.T) {
	// Scaling then translating is not translating then scaling.
	scaleThenMove := Translation(10, 0, 0).Mul(Scaling(2))
	v := scaleThenMove.Apply(Vec3{X: 1})
	assert.InDelta(t, 12.0, v.X, 1e-12)

	moveThenScale := Scaling(2).Mul(Translation(10, 0, 0))
	v = moveThenScale.Apply(Vec3{X: 1})
	assert.InDelta(t, 22.0, v.X, 1e-12)
}

func TestInvertedSafe_Invertible(t *testing.T) {
	m := Translation(5, -3, 2).Mul(Scaling(4))
	identity := m.Mul(m.InvertedSafe())
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			assert.InDelta(t, Identity()[row][col], identity[row][col], 1e-9)
		}
	}
}

func TestInvertedSafe_Singular(t *testing.T) {
	// A scale-to-zero matrix has no inverse; the result must still be a
	// usable matrix with no NaN cells.
	inv := Scaling(0).InvertedSafe()
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			require.False(t, math.IsNaN(inv[row][col]))
			require.False(t, math.IsInf(inv[row][col], 0))
		}
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		number   float64
		decimals int
		expected string
	}{
		{3.14159, 2, "3.14"},
		{30.10, 1, "30.1"},
		{42, 4, "42"},
		{0, 4, "0"},
		{-1.5, 4, "-1.5"},
		{0.00001, 4, "0"},
		{1000000, 2, "1000000"},
	}
	for _, test := range tests {
		assert.Equal(t, test.expected, FormatNumber(test.number, test.decimals))
	}
}
