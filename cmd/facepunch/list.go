package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrCodeEU/facepunch/pkg/storage"
)

var historyLimit int

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered people",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var historyCmd = &cobra.Command{
	Use:   "history <id>",
	Short: "Show a person's punches, newest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of punches (0 for all)")
	rootCmd.AddCommand(listCmd, historyCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	identities, err := a.store.Identities()
	if err != nil {
		return err
	}
	if len(identities) == 0 {
		fmt.Println("No one is registered.")
		return nil
	}

	samples, err := a.dataset.Count()
	if err != nil {
		return err
	}
	descriptors := a.recognizer.Gallery().Labels()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSAMPLES\tTRAINED\tREGISTERED")
	for _, ident := range identities {
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%s\n",
			ident.ID, ident.Name, samples[ident.ID], descriptors[ident.ID],
			ident.CreatedAt.Local().Format(time.DateTime))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\nTotal: %d person(s)\n", len(identities))

	if orphans := orphanLabels(a.recognizer.Gallery().SortedLabels(), identities); len(orphans) > 0 {
		fmt.Printf("Warning: the model holds faces for unregistered ids %v. Run 'facepunch train'.\n", orphans)
	}
	return nil
}

// orphanLabels returns the gallery labels with no registered identity, which
// happens when the gallery was trained against a different database.
func orphanLabels(labels []int64, identities []storage.Identity) []int64 {
	known := make(map[int64]bool, len(identities))
	for _, ident := range identities {
		known[ident.ID] = true
	}
	var out []int64
	for _, label := range labels {
		if !known[label] {
			out = append(out, label)
		}
	}
	return out
}

func runHistory(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q", args[0])
	}

	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	ident, err := a.store.Identity(id)
	if err != nil {
		return err
	}
	events, err := a.store.Events(id, historyLimit)
	if err != nil {
		return err
	}

	fmt.Printf("Punches for %s (id %d):\n", ident.Name, ident.ID)
	if len(events) == 0 {
		fmt.Println("  none")
		return nil
	}
	for _, ev := range events {
		fmt.Printf("  %s  %-3s  %s\n", ev.At.Local().Format(time.DateTime), ev.Kind, ev.SessionID)
	}
	return nil
}
