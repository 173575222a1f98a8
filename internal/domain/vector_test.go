package domain

import (
	"math"
	"testing"
)

func TestFallbackVector_Deterministic(t *testing.T) {
	a := FallbackVector("some chunk text", 64)
	b := FallbackVector("some chunk text", 64)

	if len(a) != 64 {
		t.Fatalf("expected 64 dimensions, got %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("vectors differ at %d: %v != %v", i, a[i], b[i])
		}
	}
}

func TestFallbackVector_DifferentTexts(t *testing.T) {
	a := FallbackVector("first text", 64)
	b := FallbackVector("second text", 64)

	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different texts produced identical fallback vectors")
	}
}

func TestFallbackVector_UnitNorm(t *testing.T) {
	vec := FallbackVector("normalize me", 128)

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if math.Abs(norm-1.0) > 1e-5 {
		t.Errorf("expected unit norm, got %v", norm)
	}
}

func TestFallbackVector_DefaultDimensions(t *testing.T) {
	vec := FallbackVector("text", 0)
	if len(vec) != DefaultDimensions {
		t.Errorf("expected %d dimensions for non-positive dim, got %d", DefaultDimensions, len(vec))
	}
}
