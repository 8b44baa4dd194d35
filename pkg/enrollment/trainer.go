package enrollment

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrCodeEU/facepunch/pkg/logging"
	"github.com/MrCodeEU/facepunch/pkg/storage"
)

// ErrTrainingBusy is returned when a training job is already running or
// its result has not been collected yet.
var ErrTrainingBusy = errors.New("training already in progress")

// SampleStore persists and reloads the sample dataset.
type SampleStore interface {
	Save(identityID int64, samples []*image.Gray) error
	Load() ([]storage.Sample, error)
}

// ModelTrainer rebuilds the recognition model from the full dataset.
type ModelTrainer interface {
	Train(samples []storage.Sample) error
}

// Roster lists enrolled identities.
type Roster interface {
	ListIdentities() (map[int64]string, error)
}

// Result is the single message a training job sends back.
type Result struct {
	Job        Job
	Identities map[int64]string
	Samples    int
	Duration   time.Duration
	Err        error
}

// Trainer runs training jobs on a background goroutine, one at a time.
type Trainer struct {
	samples SampleStore
	model   ModelTrainer
	roster  Roster

	results chan Result
	busy    atomic.Bool
	wg      sync.WaitGroup
}

// NewTrainer creates a Trainer.
func NewTrainer(samples SampleStore, model ModelTrainer, roster Roster) *Trainer {
	return &Trainer{
		samples: samples,
		model:   model,
		roster:  roster,
		results: make(chan Result, 1),
	}
}

// Busy reports whether a job is running or its result is still pending.
func (t *Trainer) Busy() bool {
	return t.busy.Load()
}

// Start launches job. A job carrying an identity must carry samples.
func (t *Trainer) Start(ctx context.Context, job Job) error {
	if job.IdentityID != 0 && len(job.Samples) == 0 {
		return ErrNoSamples
	}
	if !t.busy.CompareAndSwap(false, true) {
		return ErrTrainingBusy
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.results <- t.run(ctx, job)
	}()
	return nil
}

// Poll returns the finished job's result without blocking.
func (t *Trainer) Poll() (Result, bool) {
	select {
	case res := <-t.results:
		t.busy.Store(false)
		return res, true
	default:
		return Result{}, false
	}
}

// Wait blocks until the running job finishes or ctx is done.
func (t *Trainer) Wait(ctx context.Context) (Result, error) {
	select {
	case res := <-t.results:
		t.busy.Store(false)
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Close waits for a running job to finish.
func (t *Trainer) Close() {
	t.wg.Wait()
}

func (t *Trainer) run(ctx context.Context, job Job) Result {
	start := time.Now()
	res := Result{Job: job}
	log := logging.Component("enrollment").WithField("identity", job.IdentityID)

	fail := func(err error) Result {
		res.Err = err
		res.Duration = time.Since(start)
		log.WithError(err).Error("Training failed")
		return res
	}

	if len(job.Samples) > 0 {
		if err := t.samples.Save(job.IdentityID, job.Samples); err != nil {
			return fail(fmt.Errorf("save samples: %w", err))
		}
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	all, err := t.samples.Load()
	if err != nil {
		return fail(fmt.Errorf("load dataset: %w", err))
	}
	if len(all) == 0 {
		return fail(ErrNoSamples)
	}
	res.Samples = len(all)

	if err := t.model.Train(all); err != nil {
		return fail(fmt.Errorf("train model: %w", err))
	}

	roster, err := t.roster.ListIdentities()
	if err != nil {
		return fail(fmt.Errorf("refresh roster: %w", err))
	}
	res.Identities = roster
	res.Duration = time.Since(start)

	log.WithFields(logging.Fields{
		"samples":  res.Samples,
		"duration": res.Duration.Round(time.Millisecond).String(),
	}).Info("Training completed")
	return res
}
