package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrCodeEU/facepunch/pkg/enrollment"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Retrain the model from the stored dataset",
	Args:  cobra.NoArgs,
	RunE:  runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, args []string) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	trainer := a.trainer()
	if err := trainer.Start(cmd.Context(), enrollment.Job{}); err != nil {
		return err
	}
	res, err := trainer.Wait(context.Background())
	if err != nil {
		return err
	}
	if res.Err != nil {
		return res.Err
	}

	fmt.Printf("Trained on %d samples for %d identities in %s.\n",
		res.Samples, len(a.recognizer.Gallery().Labels()), res.Duration.Round(time.Millisecond))
	return nil
}
