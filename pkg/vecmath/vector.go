// Package vecmath holds the immutable 3-component vector used by the guidance core.
// All operations return new values; nothing here allocates beyond its result.
package vecmath

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ErrDegenerateVector is returned when a zero-length (or non-finite) vector is normalized.
var ErrDegenerateVector = errors.New("degenerate vector: zero length")

// Vector3 is a real 3-vector in a fixed reference frame.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// New returns the vector (x, y, z).
func New(x, y, z float64) Vector3 {
	return Vector3{X: x, Y: y, Z: z}
}

func fromMgl(v mgl64.Vec3) Vector3 {
	return Vector3{X: v[0], Y: v[1], Z: v[2]}
}

func (v Vector3) mgl() mgl64.Vec3 {
	return mgl64.Vec3{v.X, v.Y, v.Z}
}

// Add returns v + o.
func (v Vector3) Add(o Vector3) Vector3 { return fromMgl(v.mgl().Add(o.mgl())) }

// Sub returns v - o.
func (v Vector3) Sub(o Vector3) Vector3 { return fromMgl(v.mgl().Sub(o.mgl())) }

// Scale returns v * k.
func (v Vector3) Scale(k float64) Vector3 { return fromMgl(v.mgl().Mul(k)) }

// Neg returns -v.
func (v Vector3) Neg() Vector3 { return v.Scale(-1) }

// Dot returns the scalar product of v and o.
func (v Vector3) Dot(o Vector3) float64 { return v.mgl().Dot(o.mgl()) }

// Len returns the Euclidean length of v.
func (v Vector3) Len() float64 { return v.mgl().Len() }

// IsFinite reports whether every component is a finite number.
func (v Vector3) IsFinite() bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// Normalize returns v / |v|.
// A zero-length or non-finite vector yields ErrDegenerateVector instead of NaN components.
func (v Vector3) Normalize() (Vector3, error) {
	if !v.IsFinite() {
		return Vector3{}, ErrDegenerateVector
	}
	l := v.Len()
	if l == 0 || math.IsInf(1/l, 0) {
		return Vector3{}, ErrDegenerateVector
	}
	return v.Scale(1 / l), nil
}

// ApproxEqual reports whether all components of v and o differ by at most eps.
func (v Vector3) ApproxEqual(o Vector3, eps float64) bool {
	d := v.mgl().Sub(o.mgl())
	return math.Abs(d[0]) <= eps && math.Abs(d[1]) <= eps && math.Abs(d[2]) <= eps
}

func (v Vector3) String() string {
	return fmt.Sprintf("(%.4f, %.4f, %.4f)", v.X, v.Y, v.Z)
}

// Subtract returns a - b.
func Subtract(a, b Vector3) Vector3 { return a.Sub(b) }

// Reflect returns k·dot(n, d)·n − d.
//
// With k = 2 and a unit n this is the mirror image of d across n; smaller or larger k
// biases the result toward or away from n.
func Reflect(d, n Vector3, k float64) Vector3 {
	return n.Scale(k * n.Dot(d)).Sub(d)
}
