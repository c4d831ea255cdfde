// Package geometry provides the affine transforms and number formatting used
// by the 3MF model document.
package geometry

import (
	"math"
	"strconv"
	"strings"

	"github.com/philipparndt/scene3mf/internal/logger"
)

// Vec3 is a point or direction in model space.
type Vec3 struct {
	X, Y, Z float64
}

// Mat4 is a 4x4 affine transformation matrix. It is stored row-major and
// transforms column vectors, so composing parent and child transforms is
// parent.Mul(child).
type Mat4 [4][4]float64

// Identity returns the identity transform.
func Identity() Mat4 {
	return Mat4{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}
}

// Scaling returns a uniform scaling transform.
func Scaling(factor float64) Mat4 {
	m := Identity()
	m[0][0] = factor
	m[1][1] = factor
	m[2][2] = factor
	return m
}

// Translation returns a translation transform.
func Translation(x, y, z float64) Mat4 {
	m := Identity()
	m[0][3] = x
	m[1][3] = y
	m[2][3] = z
	return m
}

// Mul returns the composition m ∘ other, applying other first.
func (m Mat4) Mul(other Mat4) Mat4 {
	var result Mat4
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			sum := 0.0
			for k := 0; k < 4; k++ {
				sum += m[row][k] * other[k][col]
			}
			result[row][col] = sum
		}
	}
	return result
}

// Apply transforms a point by this matrix.
func (m Mat4) Apply(v Vec3) Vec3 {
	return Vec3{
		X: m[0][0]*v.X + m[0][1]*v.Y + m[0][2]*v.Z + m[0][3],
		Y: m[1][0]*v.X + m[1][1]*v.Y + m[1][2]*v.Z + m[1][3],
		Z: m[2][0]*v.X + m[2][1]*v.Y + m[2][2]*v.Z + m[2][3],
	}
}

// IsIdentity reports whether the matrix is exactly the identity. The writer
// omits transform attributes for identity transforms.
func (m Mat4) IsIdentity() bool {
	return m == Identity()
}

// InvertedSafe returns the inverse of this matrix. If the matrix is not
// invertible, a small epsilon is added to the diagonal first so that a usable
// approximate inverse is produced instead of failing the export.
func (m Mat4) InvertedSafe() Mat4 {
	if inv, ok := m.inverted(); ok {
		return inv
	}
	regularized := m
	for i := 0; i < 4; i++ {
		regularized[i][i] += 1e-8
	}
	if inv, ok := regularized.inverted(); ok {
		return inv
	}
	return Identity()
}

// inverted computes the inverse by Gauss-Jordan elimination with partial
// pivoting.
func (m Mat4) inverted() (Mat4, bool) {
	work := m
	result := Identity()

	for col := 0; col < 4; col++ {
		pivot := col
		for row := col + 1; row < 4; row++ {
			if math.Abs(work[row][col]) > math.Abs(work[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(work[pivot][col]) < 1e-12 {
			return Mat4{}, false
		}
		work[col], work[pivot] = work[pivot], work[col]
		result[col], result[pivot] = result[pivot], result[col]

		scale := work[col][col]
		for k := 0; k < 4; k++ {
			work[col][k] /= scale
			result[col][k] /= scale
		}
		for row := 0; row < 4; row++ {
			if row == col {
				continue
			}
			factor := work[row][col]
			for k := 0; k < 4; k++ {
				work[row][k] -= factor * work[col][k]
				result[row][k] -= factor * result[col][k]
			}
		}
	}
	return result, true
}

// ParseTransform parses the 3MF transform attribute: twelve space-separated
// numbers holding a 3x3 linear part followed by a translation, column by
// column. An empty string is a valid encoding of the identity. A malformed
// cell falls back to the identity value for that cell only; excess cells are
// ignored.
func ParseTransform(text string) Mat4 {
	result := Identity()
	if text == "" {
		return result
	}
	row := -1
	col := 0
	for _, token := range strings.Split(text, " ") {
		row++
		if row > 2 {
			col++
			row = 0
			if col > 3 {
				logger.Sugar.Warnf("transformation matrix contains too many components: %s", text)
				break
			}
		}
		value, err := strconv.ParseFloat(token, 64)
		if err != nil {
			logger.Sugar.Warnf("transformation matrix malformed: %s", text)
			continue
		}
		result[row][col] = value
	}
	return result
}

// FormatTransform serializes a matrix to the 3MF transform attribute format.
// Cells are written with 6 decimals, never in scientific notation.
func FormatTransform(m Mat4) string {
	var b strings.Builder
	for col := 0; col < 4; col++ {
		for row := 0; row < 3; row++ {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(FormatNumber(m[row][col], 6))
		}
	}
	return b.String()
}

// FormatNumber formats a floating point number with a fixed maximum number of
// decimals, never using scientific notation. Trailing zeros and a trailing
// decimal point are stripped; a result that strips to nothing becomes "0".
func FormatNumber(number float64, decimals int) string {
	formatted := strconv.FormatFloat(number, 'f', decimals, 64)
	formatted = strings.TrimRight(formatted, "0")
	formatted = strings.TrimRight(formatted, ".")
	if formatted == "" {
		return "0"
	}
	return formatted
}
