package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrCodeEU/facepunch/pkg/attendance"
	"github.com/MrCodeEU/facepunch/pkg/camera"
	"github.com/MrCodeEU/facepunch/pkg/challenge"
	"github.com/MrCodeEU/facepunch/pkg/enrollment"
	"github.com/MrCodeEU/facepunch/pkg/kiosk"
	"github.com/MrCodeEU/facepunch/pkg/logging"
	"github.com/MrCodeEU/facepunch/pkg/verification"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the attendance kiosk",
	Long: `Run the kiosk loop on the configured camera. Commands are read from
standard input, one per line:

  in | out        punch for the verified person
  enroll <name>   register a new person
  finish          end sample collection early and train
  cancel          abandon the registration in progress
  train           retrain the model from the stored dataset
  quit            exit`,
	Args: cobra.NoArgs,
	RunE: runKiosk,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runKiosk(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	roster, err := a.store.ListIdentities()
	if err != nil {
		return err
	}

	gate := attendance.NewGate(a.store, cfg.Attendance.Cooldown)
	machine := verification.New(verification.Config{
		AcceptanceThreshold: cfg.Recognition.AcceptanceThreshold,
		HysteresisFrames:    cfg.Verification.HysteresisFrames,
		ChallengeTimeout:    cfg.Liveness.ChallengeTimeout,
	}, challenge.NewSequencer(nil, cfg.Liveness.ChallengeSteps), gate)

	k, err := kiosk.New(kiosk.Options{
		Locator:   s.locator,
		Predictor: a.recognizer,
		Extractor: s.extractor(a.recognizer),
		Machine:   machine,
		Gate:      gate,
		Collector: enrollment.NewCollector(s.locator, a.store, cfg.Enrollment.TargetSamples, cfg.Recognition.FaceSize),
		Trainer:   a.trainer(),
		Roster:    roster,
		FaceSize:  cfg.Recognition.FaceSize,
	})
	if err != nil {
		return err
	}
	defer k.Close()

	logging.Component("kiosk").WithFields(logging.Fields{
		"identities":  len(roster),
		"descriptors": a.recognizer.Gallery().Len(),
		"camera":      s.cam.Info().Path,
	}).Info("Kiosk starting")
	if !a.recognizer.Trained() {
		fmt.Println("No faces registered yet. Use 'enroll <name>' to register.")
	}
	fmt.Println("Kiosk running. Type 'in', 'out', 'enroll <name>' or 'quit'.")

	return frameLoop(ctx, s.cam, k.OnFrame, readLines(os.Stdin), func(line string) bool {
		return handleCommand(k, line)
	}, os.Stdout)
}

// captureRetryDelay is the pause after a failed capture.
const captureRetryDelay = 100 * time.Millisecond

// frameSource supplies camera frames.
type frameSource interface {
	Capture() (camera.Frame, error)
}

// frameLoop feeds frames to onFrame and operator lines to handle until ctx
// is done or handle asks to quit. A closed lines channel only disables
// operator input; the kiosk keeps running unattended.
func frameLoop(ctx context.Context, src frameSource, onFrame func(image.Image) kiosk.FrameOutcome,
	lines <-chan string, handle func(string) bool, w io.Writer) error {
	var last string
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			if handle(line) {
				return nil
			}
			last = ""
			continue
		default:
		}

		frame, err := src.Capture()
		if err != nil {
			logging.Component("kiosk").WithError(err).Warn("Frame capture failed")
			sleep(ctx, captureRetryDelay)
			continue
		}

		if line := render(onFrame(frame.Image)); line != last {
			fmt.Fprintln(w, line)
			last = line
		}
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func readLines(f *os.File) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

// handleCommand executes one operator command and reports whether the
// kiosk should exit.
func handleCommand(k *kiosk.Kiosk, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch cmd := strings.ToLower(fields[0]); cmd {
	case "quit", "exit":
		return true

	case "in", "out":
		kind, err := attendance.ParseKind(cmd)
		if err == nil {
			_, err = k.CommitPunch(kind)
		}
		report(k, err)

	case "enroll":
		name := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))
		_, err := k.StartEnrollment(name)
		report(k, err)

	case "finish":
		report(k, k.FinishEnrollment())

	case "cancel":
		k.CancelEnrollment()
		report(k, nil)

	case "train":
		report(k, k.Retrain())

	case "who":
		if kind, ok := k.SuggestedAction(); ok {
			fmt.Printf("Suggested action: %s\n", kind)
		} else {
			fmt.Println("Nobody is verified.")
		}

	default:
		fmt.Printf("Unknown command %q\n", cmd)
	}
	return false
}

func report(k *kiosk.Kiosk, err error) {
	if err != nil && kiosk.Code(err) == kiosk.ErrCodeUnknown {
		logging.Component("kiosk").WithError(err).Error("Command failed")
	}
	var cooldown *attendance.CooldownError
	if errors.As(err, &cooldown) {
		fmt.Println(kiosk.Message(err))
		return
	}
	fmt.Println(k.Status())
}

func render(out kiosk.FrameOutcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s/%s]", out.Mode, out.State)

	switch {
	case out.Enrollment != nil:
		fmt.Fprintf(&b, " %s %d/%d", out.Label, out.Enrollment.Count, out.Enrollment.Target)
	case out.FaceFound:
		fmt.Fprintf(&b, " %s", out.Label)
	}
	if out.Prompt != "" {
		fmt.Fprintf(&b, " | %s", out.Prompt)
	}
	fmt.Fprintf(&b, " | %s", out.Status)
	return b.String()
}
