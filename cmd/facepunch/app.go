package main

import (
	"fmt"

	"github.com/MrCodeEU/facepunch/pkg/camera"
	"github.com/MrCodeEU/facepunch/pkg/enrollment"
	"github.com/MrCodeEU/facepunch/pkg/liveness"
	"github.com/MrCodeEU/facepunch/pkg/logging"
	"github.com/MrCodeEU/facepunch/pkg/recognition"
	"github.com/MrCodeEU/facepunch/pkg/storage"
	"github.com/MrCodeEU/facepunch/pkg/vision"
)

// app holds the persistent components every command shares.
type app struct {
	store      *storage.Store
	dataset    *storage.Dataset
	recognizer *recognition.Recognizer
}

// openApp opens storage and restores the recognition gallery. Models are
// only loaded when the command needs to describe faces.
func openApp(loadModels bool) (*app, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	vault, err := storage.NewVault(cfg.Storage.EncryptionEnabled)
	if err != nil {
		return nil, fmt.Errorf("init vault: %w", err)
	}

	store, err := storage.OpenStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, err
	}

	dataset, err := storage.NewDataset(cfg.DatasetDir(), vault)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	rec := recognition.NewRecognizer(recognition.Options{
		ModelPath:           cfg.Recognition.ModelPath,
		Tolerance:           cfg.Recognition.Tolerance,
		AcceptanceThreshold: cfg.Recognition.AcceptanceThreshold,
		GalleryPath:         cfg.GalleryPath(),
		Vault:               vault,
	})

	a := &app{store: store, dataset: dataset, recognizer: rec}
	if err := rec.LoadGallery(); err != nil {
		a.Close()
		return nil, err
	}
	if loadModels {
		if err := rec.LoadModels(); err != nil {
			a.Close()
			return nil, fmt.Errorf("%w (run 'facepunch models download')", err)
		}
	}
	return a, nil
}

func (a *app) Close() {
	if err := a.recognizer.Close(); err != nil {
		logging.WithError(err).Warn("Failed to release recognizer")
	}
	if err := a.store.Close(); err != nil {
		logging.WithError(err).Warn("Failed to close database")
	}
}

func (a *app) trainer() *enrollment.Trainer {
	return enrollment.NewTrainer(a.dataset, a.recognizer, a.store)
}

// sensors are the camera-facing components of the kiosk.
type sensors struct {
	cam     *camera.Device
	locator *vision.CascadeLocator
	cues    *vision.CueDetector
}

func openSensors() (*sensors, error) {
	locator, err := vision.NewCascadeLocator(
		cfg.CascadePath(cfg.Detection.FaceCascade),
		cfg.Detection.MinFaceSize,
		cfg.Detection.FacePadding,
	)
	if err != nil {
		return nil, err
	}

	cues, err := vision.NewCueDetector(
		cfg.CascadePath(cfg.Detection.FaceCascade),
		cfg.CascadePath(cfg.Detection.EyeCascade),
		cfg.CascadePath(cfg.Detection.SmileCascade),
		cfg.Detection.MinFaceSize,
	)
	if err != nil {
		_ = locator.Close()
		return nil, err
	}

	cam, err := camera.Open(camera.Options{
		Device: cfg.Camera.Device,
		Width:  cfg.Camera.Width,
		Height: cfg.Camera.Height,
		FPS:    cfg.Camera.FPS,
	})
	if err != nil {
		_ = cues.Close()
		_ = locator.Close()
		return nil, err
	}

	return &sensors{cam: cam, locator: locator, cues: cues}, nil
}

func (s *sensors) extractor(landmarks liveness.LandmarkSource) *liveness.Extractor {
	return liveness.NewExtractor(s.cues, landmarks, liveness.PoseThresholds{
		LeftRatio:  cfg.Liveness.YawLeftRatio,
		RightRatio: cfg.Liveness.YawRightRatio,
	}, cfg.Camera.Mirrored)
}

func (s *sensors) Close() {
	_ = s.cam.Close()
	_ = s.cues.Close()
	_ = s.locator.Close()
}
