// Package math32 provides float32 vector kernels shared by the index
// implementations. External users should go through the index package.
package math32

import "math"

// Dot calculates the dot product of two vectors.
func Dot(a, b []float32) float32 {
	var ret float32
	for i := range a {
		ret += a[i] * b[i]
	}
	return ret
}

// SquaredL2 calculates the squared L2 distance between two vectors.
func SquaredL2(a, b []float32) float32 {
	var distance float32
	for i := range a {
		d := a[i] - b[i]
		distance += d * d
	}
	return distance
}

// Norm calculates the Euclidean norm of a vector.
func Norm(a []float32) float32 {
	return Sqrt(Dot(a, a))
}

// Sqrt returns the square root of x.
func Sqrt(x float32) float32 {
	return float32(math.Sqrt(float64(x)))
}

// ScaleInPlace multiplies all elements of a by scalar.
//
// Used by distance normalization.
func ScaleInPlace(a []float32, scalar float32) {
	for i := range a {
		a[i] *= scalar
	}
}

// NormalizeInPlace scales a to unit length. Returns false if the vector has
// zero norm and cannot be normalized.
func NormalizeInPlace(a []float32) bool {
	n := Norm(a)
	if n == 0 {
		return false
	}
	ScaleInPlace(a, 1/n)
	return true
}

// IsFinite reports whether every component of a is a finite number
// (neither NaN nor an infinity).
func IsFinite(a []float32) bool {
	for _, v := range a {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return false
		}
	}
	return true
}
