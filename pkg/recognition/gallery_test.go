package recognition

import (
	"math"
	"testing"
)

func TestEuclideanDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 0},
		{"unit", []float32{0, 0}, []float32{0, 1}, 1},
		{"3-4-5", []float32{0, 0}, []float32{3, 4}, 5},
		{"length mismatch", []float32{1}, []float32{1, 2}, math.MaxFloat64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EuclideanDistance(tt.a, tt.b); math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGallery_Nearest(t *testing.T) {
	g := NewGallery([]Entry{
		{Label: 1, Vector: []float32{0, 0}},
		{Label: 1, Vector: []float32{0, 1}},
		{Label: 2, Vector: []float32{10, 10}},
		{Label: 3, Vector: nil},
	})

	if g.Len() != 3 {
		t.Fatalf("empty vectors should be dropped, got %d entries", g.Len())
	}

	label, dist, ok := g.Nearest([]float32{0, 0.9})
	if !ok || label != 1 || math.Abs(dist-0.1) > 1e-6 {
		t.Errorf("got %d/%v/%v, want 1/0.1/true", label, dist, ok)
	}
	label, _, _ = g.Nearest([]float32{9, 9})
	if label != 2 {
		t.Errorf("expected label 2, got %d", label)
	}
}

func TestGallery_Empty(t *testing.T) {
	var nilGallery *Gallery
	if nilGallery.Len() != 0 || len(nilGallery.Labels()) != 0 {
		t.Error("nil gallery should be empty")
	}
	if _, _, ok := NewGallery(nil).Nearest([]float32{1}); ok {
		t.Error("empty gallery should not match")
	}
}

func TestGallery_EncodeDecode(t *testing.T) {
	g := NewGallery([]Entry{
		{Label: 7, Vector: []float32{0.1, 0.2}},
		{Label: 9, Vector: []float32{0.9, 0.8}},
	})

	data, err := g.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	restored, err := DecodeGallery(data)
	if err != nil {
		t.Fatalf("DecodeGallery: %v", err)
	}
	if restored.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", restored.Len())
	}
	if labels := restored.SortedLabels(); len(labels) != 2 || labels[0] != 7 || labels[1] != 9 {
		t.Errorf("unexpected labels %v", labels)
	}

	if _, err := DecodeGallery([]byte("garbage")); err == nil {
		t.Error("expected error for garbage data")
	}
}
