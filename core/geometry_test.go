package core

import (
	"math"
	"testing"
)

const eps = 1e-9

func vecNear(a, b Vec3, tol float64) bool {
	return math.Abs(a.X-b.X) <= tol && math.Abs(a.Y-b.Y) <= tol && math.Abs(a.Z-b.Z) <= tol
}

func TestRotZQuarterTurn(t *testing.T) {
	got := RotZ(math.Pi / 2).Apply(Vec3{X: 1})
	if !vecNear(got, Vec3{Y: 1}, eps) {
		t.Fatalf("RotZ(pi/2)·x = %+v, want +y", got)
	}
}

func TestRotXQuarterTurn(t *testing.T) {
	got := RotX(math.Pi / 2).Apply(Vec3{Y: 1})
	if !vecNear(got, Vec3{Z: 1}, eps) {
		t.Fatalf("RotX(pi/2)·y = %+v, want +z", got)
	}
}

func TestMulAppliesRightToLeft(t *testing.T) {
	// Rz(pi/2)·Rx(pi/2) applied to y: Rx sends y to z, Rz leaves z alone.
	m := RotZ(math.Pi / 2).Mul(RotX(math.Pi / 2))
	got := m.Apply(Vec3{Y: 1})
	if !vecNear(got, Vec3{Z: 1}, eps) {
		t.Fatalf("Rz·Rx·y = %+v, want +z", got)
	}

	// Reversed order: Rz sends y to -x, Rx leaves x alone.
	m = RotX(math.Pi / 2).Mul(RotZ(math.Pi / 2))
	got = m.Apply(Vec3{Y: 1})
	if !vecNear(got, Vec3{X: -1}, eps) {
		t.Fatalf("Rx·Rz·y = %+v, want -x", got)
	}
}

func TestRotationPreservesLength(t *testing.T) {
	r := RotZ(0.3).Mul(RotX(1.1)).Mul(RotZ(-2.4))
	for _, v := range []Vec3{{X: 3, Y: 4}, {Z: -2}, {X: 1, Y: -1, Z: 1}} {
		if got := r.Apply(v).Norm(); math.Abs(got-v.Norm()) > eps {
			t.Fatalf("|R·%+v| = %v, want %v", v, got, v.Norm())
		}
	}
	if got := (Vec3{X: 3, Y: 4}).Sub(Vec3{X: 3}); got != (Vec3{Y: 4}) {
		t.Fatalf("Sub = %+v", got)
	}
}
