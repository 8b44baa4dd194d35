// Package enrollment gathers face samples for a new identity and hands
// them to a background trainer.
package enrollment

import (
	"errors"
	"fmt"
	"image"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/MrCodeEU/facepunch/pkg/imaging"
	"github.com/MrCodeEU/facepunch/pkg/logging"
)

// DefaultTarget is the number of samples collected per enrollment.
const DefaultTarget = 50

var (
	// ErrNoSamples is returned when an enrollment ends without samples.
	ErrNoSamples = errors.New("no face samples collected")
	// ErrEnrollmentActive is returned when starting while another
	// enrollment is in progress.
	ErrEnrollmentActive = errors.New("enrollment already in progress")
	// ErrNoEnrollment is returned when no enrollment is in progress.
	ErrNoEnrollment = errors.New("no enrollment in progress")
	// ErrEmptyName is returned for blank display names.
	ErrEmptyName = errors.New("name must not be empty")
)

// Locator finds the face region in a frame.
type Locator interface {
	Locate(frame image.Image) (image.Rectangle, bool, error)
}

// IdentityCreator registers new identities.
type IdentityCreator interface {
	CreateIdentity(name string) (int64, error)
}

// State is the result of offering one frame.
type State string

const (
	// Idle means no enrollment is collecting; the frame was ignored.
	Idle State = "IDLE"
	// Collected means the frame contributed a sample.
	Collected State = "COLLECTED"
	// Rejected means the frame held no usable face.
	Rejected State = "REJECTED"
	// Complete means the frame contributed the final sample.
	Complete State = "COMPLETE"
)

// Status reports collection progress after a frame.
type Status struct {
	State  State
	Count  int
	Target int
	Region image.Rectangle
}

// Job is a finished collection ready for training. A job with a zero
// IdentityID retrains from the stored dataset only.
type Job struct {
	IdentityID int64
	Name       string
	Samples    []*image.Gray
}

type session struct {
	identityID int64
	name       string
	samples    []*image.Gray
	done       bool
}

// Collector runs one enrollment at a time. It is owned by the frame loop
// and not safe for concurrent use.
type Collector struct {
	locator    Locator
	identities IdentityCreator
	target     int
	faceSize   int
	current    *session
}

// NewCollector creates a Collector gathering target samples of faceSize
// pixels square.
func NewCollector(locator Locator, identities IdentityCreator, target, faceSize int) *Collector {
	if target <= 0 {
		target = DefaultTarget
	}
	return &Collector{
		locator:    locator,
		identities: identities,
		target:     target,
		faceSize:   faceSize,
	}
}

// NormalizeName trims and NFC-normalizes a display name.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(norm.NFC.String(name))
	if name == "" {
		return "", ErrEmptyName
	}
	return name, nil
}

// Active reports whether an enrollment is in progress.
func (c *Collector) Active() bool {
	return c.current != nil
}

// Target returns the number of samples per enrollment.
func (c *Collector) Target() int {
	return c.target
}

// Progress returns the current identity and sample count.
func (c *Collector) Progress() (identityID int64, name string, count int, ok bool) {
	if c.current == nil {
		return 0, "", 0, false
	}
	return c.current.identityID, c.current.name, len(c.current.samples), true
}

// Start registers the identity and begins collecting samples for it.
func (c *Collector) Start(name string) (int64, error) {
	if c.current != nil {
		return 0, ErrEnrollmentActive
	}
	name, err := NormalizeName(name)
	if err != nil {
		return 0, err
	}

	id, err := c.identities.CreateIdentity(name)
	if err != nil {
		return 0, fmt.Errorf("create identity: %w", err)
	}

	c.current = &session{identityID: id, name: name}
	logging.Component("enrollment").WithFields(logging.Fields{
		"identity": id,
		"name":     name,
		"target":   c.target,
	}).Info("Enrollment started")
	return id, nil
}

// Offer adds the frame's face as a sample. Once the target is reached the
// frame reports Complete and later offers are ignored.
func (c *Collector) Offer(frame image.Image) Status {
	if c.current == nil || c.current.done {
		return c.status(Idle, image.Rectangle{})
	}

	region, found, err := c.locator.Locate(frame)
	if err != nil {
		logging.Component("enrollment").WithError(err).Debug("Locator failed")
	}
	if err != nil || !found {
		return c.status(Rejected, image.Rectangle{})
	}

	crop, err := imaging.FaceCrop(frame, region, c.faceSize)
	if err != nil {
		logging.Component("enrollment").WithError(err).Debug("Face crop failed")
		return c.status(Rejected, region)
	}

	c.current.samples = append(c.current.samples, crop)
	if len(c.current.samples) >= c.target {
		c.current.done = true
		return c.status(Complete, region)
	}
	return c.status(Collected, region)
}

func (c *Collector) status(state State, region image.Rectangle) Status {
	s := Status{State: state, Target: c.target, Region: region}
	if c.current != nil {
		s.Count = len(c.current.samples)
	}
	return s
}

// Finish ends the enrollment, returning the samples gathered so far.
func (c *Collector) Finish() (Job, error) {
	if c.current == nil {
		return Job{}, ErrNoEnrollment
	}
	s := c.current
	c.current = nil

	if len(s.samples) == 0 {
		logging.Component("enrollment").WithField("identity", s.identityID).Warn("Enrollment finished without samples")
		return Job{}, ErrNoSamples
	}

	return Job{IdentityID: s.identityID, Name: s.name, Samples: s.samples}, nil
}

// Cancel discards the enrollment in progress.
func (c *Collector) Cancel() {
	if c.current != nil {
		logging.Component("enrollment").WithField("identity", c.current.identityID).Info("Enrollment cancelled")
	}
	c.current = nil
}
