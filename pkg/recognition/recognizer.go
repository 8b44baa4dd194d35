// Package recognition identifies enrolled faces. dlib (via go-face)
// computes 128-dimensional descriptors and five-point landmarks; trained
// descriptors live in an HNSW gallery that is rebuilt on every training
// run and published with an atomic swap.
package recognition

import (
	"errors"
	"fmt"
	"image"
	"os"
	"sync"
	"sync/atomic"

	"github.com/Kagami/go-face"

	"github.com/MrCodeEU/facepunch/pkg/imaging"
	"github.com/MrCodeEU/facepunch/pkg/liveness"
	"github.com/MrCodeEU/facepunch/pkg/logging"
	"github.com/MrCodeEU/facepunch/pkg/storage"
)

// Descriptor is a 128-dimensional face descriptor from dlib.
type Descriptor = face.Descriptor

// ErrNoFaceDetected is returned when no face is found in the image.
var ErrNoFaceDetected = errors.New("no face detected")

// ErrModelNotLoaded is returned when models are not loaded.
var ErrModelNotLoaded = errors.New("recognition models not loaded")

// ErrNotTrained is returned by Predict before any gallery exists.
var ErrNotTrained = errors.New("recognition gallery is empty")

// ErrNoDescriptors is returned when no training sample yields a
// descriptor.
var ErrNoDescriptors = errors.New("no usable training samples")

// FaceEngine is the subset of *face.Recognizer the engine uses.
type FaceEngine interface {
	Recognize(data []byte) ([]face.Face, error)
	Close()
}

// Options configures a Recognizer.
type Options struct {
	// ModelPath is the directory holding the dlib model files.
	ModelPath string
	// Tolerance is the descriptor distance that maps to
	// AcceptanceThreshold on the score scale.
	Tolerance float64
	// AcceptanceThreshold is the score at or above which a prediction is
	// not a match.
	AcceptanceThreshold float64
	// GalleryPath is where trained galleries are persisted. Empty keeps
	// the gallery in memory only.
	GalleryPath string
	Vault       *storage.Vault
}

// Recognizer predicts identities from face crops and trains galleries
// from labeled samples. Predict and Train may run on different
// goroutines: calls into dlib are serialized and the gallery is swapped
// atomically.
type Recognizer struct {
	opts    Options
	factory func(path string) (FaceEngine, error)

	mu     sync.Mutex
	rec    FaceEngine
	loaded bool

	gallery atomic.Pointer[Gallery]
}

// NewRecognizer creates a Recognizer. Models are loaded by LoadModels.
func NewRecognizer(opts Options) *Recognizer {
	if opts.Tolerance <= 0 {
		opts.Tolerance = 0.4
	}
	if opts.AcceptanceThreshold <= 0 {
		opts.AcceptanceThreshold = 100
	}
	return &Recognizer{
		opts: opts,
		factory: func(path string) (FaceEngine, error) {
			return face.NewRecognizer(path)
		},
	}
}

// LoadModels loads the dlib models from Options.ModelPath. The directory
// must contain shape_predictor_5_face_landmarks.dat and
// dlib_face_recognition_resnet_model_v1.dat.
func (r *Recognizer) LoadModels() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loaded {
		return nil
	}

	logging.Infof("Loading face recognition models from: %s", r.opts.ModelPath)

	rec, err := r.factory(r.opts.ModelPath)
	if err != nil {
		return fmt.Errorf("failed to load models: %w", err)
	}

	r.rec = rec
	r.loaded = true

	logging.Info("Face recognition models loaded successfully")
	return nil
}

// IsLoaded returns true if models are loaded.
func (r *Recognizer) IsLoaded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loaded
}

// Close releases the recognizer resources.
func (r *Recognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rec != nil {
		r.rec.Close()
		r.rec = nil
	}
	r.loaded = false
	return nil
}

// LoadGallery restores the persisted gallery. A missing file leaves the
// recognizer untrained without error.
func (r *Recognizer) LoadGallery() error {
	if r.opts.GalleryPath == "" || r.opts.Vault == nil {
		return nil
	}

	data, err := r.opts.Vault.ReadFile(r.opts.GalleryPath)
	if os.IsNotExist(err) {
		logging.Debugf("No gallery at %s, starting untrained", r.opts.GalleryPath)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read gallery: %w", err)
	}

	g, err := DecodeGallery(data)
	if err != nil {
		return err
	}
	r.gallery.Store(g)

	logging.Infof("Loaded gallery with %d descriptors for %d identities", g.Len(), len(g.Labels()))
	return nil
}

// Gallery returns the gallery currently in use, nil before training.
func (r *Recognizer) Gallery() *Gallery {
	return r.gallery.Load()
}

// Trained reports whether a non-empty gallery is loaded.
func (r *Recognizer) Trained() bool {
	return r.gallery.Load().Len() > 0
}

// detect runs dlib over img and returns the largest face.
func (r *Recognizer) detect(img image.Image) (face.Face, error) {
	data, err := imaging.EncodeJPEG(img)
	if err != nil {
		return face.Face{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.loaded {
		return face.Face{}, ErrModelNotLoaded
	}

	faces, err := r.rec.Recognize(data)
	if err != nil {
		return face.Face{}, fmt.Errorf("face detection failed: %w", err)
	}
	if len(faces) == 0 {
		return face.Face{}, ErrNoFaceDetected
	}

	best := faces[0]
	for _, f := range faces[1:] {
		if area(f.Rectangle) > area(best.Rectangle) {
			best = f
		}
	}
	return best, nil
}

func area(r image.Rectangle) int {
	return r.Dx() * r.Dy()
}

// Describe computes the descriptor of the largest face in img.
func (r *Recognizer) Describe(img image.Image) (Descriptor, error) {
	f, err := r.detect(img)
	if err != nil {
		return Descriptor{}, err
	}
	return f.Descriptor, nil
}

// Score maps a descriptor distance onto the acceptance scale, so that a
// distance equal to the tolerance scores exactly the threshold.
func (r *Recognizer) Score(distance float64) float64 {
	return distance * r.opts.AcceptanceThreshold / r.opts.Tolerance
}

// Predict returns the closest identity for a face crop and its score.
// Lower scores are better; callers compare against the acceptance
// threshold.
func (r *Recognizer) Predict(faceImg image.Image) (int64, float64, error) {
	g := r.gallery.Load()
	if g.Len() == 0 {
		return 0, 0, ErrNotTrained
	}

	d, err := r.Describe(faceImg)
	if err != nil {
		return 0, 0, err
	}

	label, dist, ok := g.Nearest(d[:])
	if !ok {
		return 0, 0, ErrNotTrained
	}
	score := r.Score(dist)

	logging.Component("recognition").WithFields(logging.Fields{
		"identity": label,
		"distance": dist,
		"score":    score,
	}).Debug("Prediction")
	return label, score, nil
}

// Train builds a new gallery from samples, persists it and then swaps it
// in. Samples without a detectable face are skipped. On error the current
// gallery stays in place.
func (r *Recognizer) Train(samples []storage.Sample) error {
	if len(samples) == 0 {
		return ErrNoDescriptors
	}

	log := logging.Component("recognition")
	entries := make([]Entry, 0, len(samples))
	skipped := 0
	for _, s := range samples {
		d, err := r.Describe(s.Image)
		if errors.Is(err, ErrModelNotLoaded) {
			return err
		}
		if err != nil {
			skipped++
			continue
		}
		vec := make([]float32, len(d))
		copy(vec, d[:])
		entries = append(entries, Entry{Label: s.IdentityID, Vector: vec})
	}
	if len(entries) == 0 {
		return ErrNoDescriptors
	}

	g := NewGallery(entries)
	if err := r.persist(g); err != nil {
		return err
	}
	r.gallery.Store(g)

	log.WithFields(logging.Fields{
		"descriptors": g.Len(),
		"identities":  len(g.Labels()),
		"skipped":     skipped,
	}).Info("Gallery trained")
	return nil
}

func (r *Recognizer) persist(g *Gallery) error {
	if r.opts.GalleryPath == "" || r.opts.Vault == nil {
		return nil
	}
	data, err := g.MarshalBinary()
	if err != nil {
		return err
	}
	if err := r.opts.Vault.WriteFile(r.opts.GalleryPath, data); err != nil {
		return fmt.Errorf("failed to save gallery: %w", err)
	}
	return nil
}

// Landmarks returns the five dlib landmarks of the largest face in frame.
func (r *Recognizer) Landmarks(frame image.Image) ([]image.Point, error) {
	f, err := r.detect(frame)
	if errors.Is(err, ErrNoFaceDetected) {
		return nil, liveness.ErrNoLandmarks
	}
	if err != nil {
		return nil, err
	}
	if len(f.Shapes) < 5 {
		return nil, liveness.ErrNoLandmarks
	}
	return f.Shapes, nil
}
