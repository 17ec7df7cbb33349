package utils

import (
	"math"
	"testing"
)

func TestNormalizeL2(t *testing.T) {
	x := []float32{3, 4}
	NormalizeL2(x)
	if math.Abs(float64(x[0])-0.6) > 1e-6 || math.Abs(float64(x[1])-0.8) > 1e-6 {
		t.Errorf("got %v", x)
	}
	zero := []float32{0, 0}
	NormalizeL2(zero)
	if zero[0] != 0 || zero[1] != 0 {
		t.Errorf("zero vector changed: %v", zero)
	}
}

func TestL2Norm(t *testing.T) {
	if n := L2Norm([]float32{3, 4}); n != 5 {
		t.Errorf("L2Norm = %f", n)
	}
	if L2Norm(nil) != 0 {
		t.Error("empty norm should be 0")
	}
}
