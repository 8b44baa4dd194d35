package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/MrCodeEU/facepunch/pkg/enrollment"
	"github.com/MrCodeEU/facepunch/pkg/logging"
)

var enrollTimeout time.Duration

var enrollCmd = &cobra.Command{
	Use:   "enroll <name>",
	Short: "Register a person from the camera",
	Long: `Capture face samples for a new person and retrain the model.
Look at the camera until the progress bar completes.`,
	Args: cobra.ExactArgs(1),
	RunE: runEnroll,
}

func init() {
	enrollCmd.Flags().DurationVar(&enrollTimeout, "timeout", 2*time.Minute, "Give up after this long")
	rootCmd.AddCommand(enrollCmd)
}

func runEnroll(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, enrollTimeout)
	defer cancel()

	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := openSensors()
	if err != nil {
		return err
	}
	defer s.Close()

	collector := enrollment.NewCollector(s.locator, a.store, cfg.Enrollment.TargetSamples, cfg.Recognition.FaceSize)
	id, err := collector.Start(args[0])
	if err != nil {
		return err
	}
	_, name, _, _ := collector.Progress()
	fmt.Printf("Registering '%s' (id %d). Please look at the camera.\n", name, id)

	bar := progressbar.NewOptions(collector.Target(),
		progressbar.OptionSetDescription("Capturing samples"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionFullWidth(),
	)

	if err := collect(ctx, collector, s.cam, bar); err != nil {
		_ = bar.Close()
		// Keep whatever was captured when the user stops early.
		if ctx.Err() == nil {
			collector.Cancel()
			return err
		}
		logging.Component("enrollment").WithError(err).Warn("Capture interrupted")
	}
	_ = bar.Finish()
	fmt.Println()

	job, err := collector.Finish()
	if err != nil {
		return err
	}

	fmt.Printf("Captured %d samples. Training...\n", len(job.Samples))
	trainer := a.trainer()
	if err := trainer.Start(context.Background(), job); err != nil {
		return err
	}
	res, err := trainer.Wait(context.Background())
	if err != nil {
		return err
	}
	if res.Err != nil {
		return res.Err
	}

	fmt.Printf("Registered '%s' (%d samples in dataset, %s).\n",
		name, res.Samples, res.Duration.Round(time.Millisecond))
	return nil
}

func collect(ctx context.Context, c *enrollment.Collector, src frameSource, bar *progressbar.ProgressBar) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		frame, err := src.Capture()
		if err != nil {
			logging.Component("enrollment").WithError(err).Debug("Frame capture failed")
			sleep(ctx, captureRetryDelay)
			continue
		}

		st := c.Offer(frame.Image)
		switch st.State {
		case enrollment.Collected:
			_ = bar.Set(st.Count)
		case enrollment.Complete:
			_ = bar.Set(st.Count)
			return nil
		case enrollment.Idle:
			return fmt.Errorf("enrollment is not active")
		}
	}
}
