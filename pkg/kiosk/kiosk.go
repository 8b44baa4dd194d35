// Package kiosk drives the attendance kiosk frame by frame. It owns the
// verification session, the punch gate and the enrollment collector, and
// turns each camera frame into a FrameOutcome for the front end.
//
// A Kiosk is single-threaded: OnFrame and the caller-facing operations
// must be invoked from the same goroutine. Training is the only background
// work and reports back through a polled result.
package kiosk

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/MrCodeEU/facepunch/pkg/attendance"
	"github.com/MrCodeEU/facepunch/pkg/enrollment"
	"github.com/MrCodeEU/facepunch/pkg/imaging"
	"github.com/MrCodeEU/facepunch/pkg/liveness"
	"github.com/MrCodeEU/facepunch/pkg/logging"
	"github.com/MrCodeEU/facepunch/pkg/verification"
)

// FaceLocator finds the dominant face in a frame.
type FaceLocator interface {
	Locate(frame image.Image) (image.Rectangle, bool, error)
}

// Predictor identifies a face crop. Scores use distance semantics.
type Predictor interface {
	Predict(face image.Image) (identityID int64, score float64, err error)
}

// SignalExtractor reads liveness cues from a frame.
type SignalExtractor interface {
	Extract(frame image.Image) (liveness.Signals, error)
}

// Options wires a Kiosk.
type Options struct {
	Locator   FaceLocator
	Predictor Predictor
	Extractor SignalExtractor
	Machine   *verification.Machine
	Gate      *attendance.Gate
	Collector *enrollment.Collector
	Trainer   *enrollment.Trainer
	// Roster maps identity ids to display names.
	Roster   map[int64]string
	FaceSize int
}

// Kiosk is the frame orchestrator.
type Kiosk struct {
	locator   FaceLocator
	predictor Predictor
	extractor SignalExtractor
	machine   *verification.Machine
	gate      *attendance.Gate
	collector *enrollment.Collector
	trainer   *enrollment.Trainer

	roster   map[int64]string
	faceSize int
	status   string
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Kiosk.
func New(opts Options) (*Kiosk, error) {
	switch {
	case opts.Locator == nil:
		return nil, errors.New("kiosk: locator is required")
	case opts.Predictor == nil:
		return nil, errors.New("kiosk: predictor is required")
	case opts.Extractor == nil:
		return nil, errors.New("kiosk: signal extractor is required")
	case opts.Machine == nil, opts.Gate == nil:
		return nil, errors.New("kiosk: verification machine and gate are required")
	case opts.Collector == nil, opts.Trainer == nil:
		return nil, errors.New("kiosk: enrollment collector and trainer are required")
	}
	if opts.FaceSize <= 0 {
		opts.FaceSize = 150
	}

	roster := make(map[int64]string, len(opts.Roster))
	for id, name := range opts.Roster {
		roster[id] = name
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Kiosk{
		locator:   opts.Locator,
		predictor: opts.Predictor,
		extractor: opts.Extractor,
		machine:   opts.Machine,
		gate:      opts.Gate,
		collector: opts.Collector,
		trainer:   opts.Trainer,
		roster:    roster,
		faceSize:  opts.FaceSize,
		status:    "System ready",
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Close cancels a running training job and waits for it to stop.
func (k *Kiosk) Close() {
	k.cancel()
	k.trainer.Close()
}

// Status returns the current status line.
func (k *Kiosk) Status() string {
	return k.status
}

// Name returns the display name of an identity, or UnknownLabel.
func (k *Kiosk) Name(identityID int64) string {
	if name, ok := k.roster[identityID]; ok {
		return name
	}
	return UnknownLabel
}

// Roster returns a copy of the identity roster.
func (k *Kiosk) Roster() map[int64]string {
	out := make(map[int64]string, len(k.roster))
	for id, name := range k.roster {
		out[id] = name
	}
	return out
}

// OnFrame processes one camera frame.
func (k *Kiosk) OnFrame(frame image.Image) FrameOutcome {
	var out FrameOutcome

	if res, ok := k.trainer.Poll(); ok {
		k.trainingDone(res)
		out.Training = &res
	}

	if _, name, _, ok := k.collector.Progress(); ok {
		st := k.OfferEnrollmentFrame(frame)
		out.Mode = ModeEnroll
		out.Enrollment = &st
		out.Region = st.Region
		out.FaceFound = !st.Region.Empty()
		out.Label = name
		out.Color = ColorEnroll
		out.State = k.machine.State()
		out.Status = k.status
		return out
	}

	k.verify(frame, &out)
	out.Mode = ModeVerify
	if k.trainer.Busy() {
		out.Mode = ModeTraining
	}
	out.Status = k.status
	return out
}

func (k *Kiosk) verify(frame image.Image, out *FrameOutcome) {
	log := logging.Component("kiosk")

	region, found, err := k.locator.Locate(frame)
	if err != nil {
		log.WithError(err).Debug("Face locator failed")
		found = false
	}

	rec := verification.Recognition{FaceFound: found}
	if found {
		out.FaceFound = true
		out.Region = region

		crop, err := imaging.FaceCrop(frame, region, k.faceSize)
		if err != nil {
			log.WithError(err).Debug("Face crop failed")
		} else if id, score, err := k.predictor.Predict(crop); err != nil {
			log.WithError(err).Debug("Prediction failed")
		} else {
			rec.Matched = true
			rec.IdentityID = id
			rec.Score = score
		}
	}

	signals := liveness.None
	if k.machine.NeedsSignals(rec) {
		s, err := k.extractor.Extract(frame)
		if err != nil {
			log.WithError(err).Debug("Liveness cues degraded")
		}
		signals = s
	}

	o := k.machine.Step(rec, signals, k.now())

	out.State = o.State
	out.GateOpen = o.GateOpen
	out.Prompt = o.Prompt
	out.Cooldown = o.Cooldown
	if found {
		switch {
		case o.Confident && o.State == verification.Challenging:
			out.Label = k.Name(rec.IdentityID)
			out.Color = ColorPrompt
		case o.Confident:
			out.Label = k.Name(rec.IdentityID)
			out.Color = ColorMatched
		default:
			out.Label = UnknownLabel
			out.Color = ColorUnknown
		}
	}

	k.updateStatus(o)
}

func (k *Kiosk) updateStatus(o verification.Outcome) {
	switch {
	case o.State == verification.Verified && o.GateOpen:
		k.status = fmt.Sprintf("Verified: %s. Select action.", k.Name(o.IdentityID))
	case o.State == verification.Verified:
		k.status = fmt.Sprintf("Cooldown active (%ds)", attendance.CeilSeconds(o.Cooldown))
	case o.Event == verification.EventChallengeStarted:
		k.status = fmt.Sprintf("Hello %s. Please complete the challenge.", k.Name(o.IdentityID))
	case o.Event == verification.EventExpired:
		k.status = "System ready"
	}
}

// StartEnrollment registers name and switches the kiosk to sample
// collection. Any verification in progress is dropped.
func (k *Kiosk) StartEnrollment(name string) (int64, error) {
	if k.trainer.Busy() {
		return 0, enrollment.ErrTrainingBusy
	}
	id, err := k.collector.Start(name)
	if err != nil {
		return 0, err
	}
	k.machine.Reset()
	k.status = "Look at camera. Capturing samples..."
	return id, nil
}

// OfferEnrollmentFrame feeds one frame to the running enrollment. Reaching
// the sample target hands the samples to the trainer.
func (k *Kiosk) OfferEnrollmentFrame(frame image.Image) enrollment.Status {
	st := k.collector.Offer(frame)
	switch st.State {
	case enrollment.Collected:
		k.status = fmt.Sprintf("Capturing: %d/%d", st.Count, st.Target)
	case enrollment.Rejected:
		k.status = "Face not found!"
	case enrollment.Complete:
		if err := k.startTraining(); err != nil {
			k.status = Message(err)
		}
	}
	return st
}

// FinishEnrollment ends collection early and trains on the samples
// gathered so far.
func (k *Kiosk) FinishEnrollment() error {
	if err := k.startTraining(); err != nil {
		k.status = Message(err)
		return err
	}
	return nil
}

// CancelEnrollment discards the enrollment in progress. The identity
// record stays registered without samples.
func (k *Kiosk) CancelEnrollment() {
	if !k.collector.Active() {
		return
	}
	k.collector.Cancel()
	k.status = "Registration cancelled."
}

func (k *Kiosk) startTraining() error {
	job, err := k.collector.Finish()
	if err != nil {
		return err
	}
	if err := k.trainer.Start(k.ctx, job); err != nil {
		return err
	}
	k.status = "Training model... Please wait."
	return nil
}

// Retrain rebuilds the model from the stored dataset in the background.
func (k *Kiosk) Retrain() error {
	if k.collector.Active() {
		return enrollment.ErrEnrollmentActive
	}
	if err := k.trainer.Start(k.ctx, enrollment.Job{}); err != nil {
		return err
	}
	k.status = "Training model... Please wait."
	return nil
}

func (k *Kiosk) trainingDone(res enrollment.Result) {
	if res.Err != nil {
		logging.Component("kiosk").WithError(res.Err).Error("Training failed")
		k.status = "Training failed. Please try again."
		return
	}

	k.roster = res.Identities
	if res.Job.IdentityID == 0 {
		k.status = "Model retrained."
		return
	}
	k.status = fmt.Sprintf("Registered: %s", res.Job.Name)
}

// CommitPunch records an IN or OUT punch for the verified identity.
func (k *Kiosk) CommitPunch(kind attendance.Kind) (attendance.Committed, error) {
	c, err := k.gate.TryCommit(k.machine, kind)
	if err != nil {
		k.status = Message(err)
		return attendance.Committed{}, err
	}
	k.status = fmt.Sprintf("%s success: %s", c.Kind, k.Name(c.IdentityID))
	return c, nil
}

// SuggestedAction returns the likely next punch for the verified identity.
func (k *Kiosk) SuggestedAction() (attendance.Kind, bool) {
	id, ok := k.machine.VerifiedIdentity()
	if !ok {
		return "", false
	}
	kind, err := k.gate.Suggest(id)
	if err != nil {
		logging.Component("kiosk").WithError(err).Warn("Failed to read last punch")
	}
	return kind, true
}
