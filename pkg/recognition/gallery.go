package recognition

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"
	"sort"

	"github.com/coder/hnsw"
)

// galleryVersion is bumped when the persisted layout changes.
const galleryVersion = 1

// searchWidth is how many approximate neighbors are re-ranked exactly.
const searchWidth = 8

// Entry is one labeled face descriptor.
type Entry struct {
	Label  int64
	Vector []float32
}

// Gallery is an immutable nearest-neighbor index over labeled descriptors.
// A new Gallery is built for every training run and swapped in whole.
type Gallery struct {
	graph   *hnsw.Graph[int]
	entries []Entry
}

// NewGallery indexes entries. Entries with empty vectors are dropped.
func NewGallery(entries []Entry) *Gallery {
	g := &Gallery{}
	graph := hnsw.NewGraph[int]()
	graph.Distance = hnsw.EuclideanDistance

	for _, e := range entries {
		if len(e.Vector) == 0 {
			continue
		}
		key := len(g.entries)
		g.entries = append(g.entries, e)
		graph.Add(hnsw.MakeNode(key, e.Vector))
	}
	if len(g.entries) > 0 {
		g.graph = graph
	}
	return g
}

// Len returns the number of indexed descriptors.
func (g *Gallery) Len() int {
	if g == nil {
		return 0
	}
	return len(g.entries)
}

// Labels returns the descriptor count per label.
func (g *Gallery) Labels() map[int64]int {
	out := make(map[int64]int)
	if g == nil {
		return out
	}
	for _, e := range g.entries {
		out[e.Label]++
	}
	return out
}

// Nearest returns the label and exact Euclidean distance of the closest
// descriptor. ok is false for an empty gallery.
func (g *Gallery) Nearest(probe []float32) (label int64, distance float64, ok bool) {
	if g.Len() == 0 || g.graph == nil {
		return 0, math.MaxFloat64, false
	}

	k := searchWidth
	if k > len(g.entries) {
		k = len(g.entries)
	}

	best := math.MaxFloat64
	for _, n := range g.graph.Search(probe, k) {
		e := g.entries[n.Key]
		if d := EuclideanDistance(probe, e.Vector); d < best {
			best = d
			label = e.Label
			ok = true
		}
	}
	return label, best, ok
}

type galleryFile struct {
	Version int
	Entries []Entry
}

// MarshalBinary encodes the gallery's entries.
func (g *Gallery) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	f := galleryFile{Version: galleryVersion}
	if g != nil {
		f.Entries = g.entries
	}
	if err := gob.NewEncoder(&buf).Encode(f); err != nil {
		return nil, fmt.Errorf("encode gallery: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeGallery rebuilds a gallery from MarshalBinary output.
func DecodeGallery(data []byte) (*Gallery, error) {
	var f galleryFile
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode gallery: %w", err)
	}
	if f.Version != galleryVersion {
		return nil, fmt.Errorf("decode gallery: unsupported version %d", f.Version)
	}
	return NewGallery(f.Entries), nil
}

// SortedLabels returns the gallery's labels in ascending order.
func (g *Gallery) SortedLabels() []int64 {
	counts := g.Labels()
	labels := make([]int64, 0, len(counts))
	for l := range counts {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })
	return labels
}

// EuclideanDistance calculates the Euclidean distance between two
// descriptors.
func EuclideanDistance(d1, d2 []float32) float64 {
	if len(d1) != len(d2) {
		return math.MaxFloat64
	}

	var sum float64
	for i := range d1 {
		diff := float64(d1[i] - d2[i])
		sum += diff * diff
	}
	return math.Sqrt(sum)
}
