package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"OreChat/internal/journal"

	"github.com/spf13/cobra"
)

var (
	journalLimit int
	journalJSON  bool

	journalCmd = &cobra.Command{
		Use:   "journal",
		Short: "List recent completions recorded by the relay",
		RunE:  runJournal,
	}
)

func init() {
	journalCmd.Flags().IntVar(&journalLimit, "limit", 20, "Number of entries to show")
	journalCmd.Flags().BoolVar(&journalJSON, "json", false, "Print entries as JSON")
}

func runJournal(cmd *cobra.Command, args []string) error {
	if cfg.Relay.JournalPath == "" {
		return fmt.Errorf("journal is disabled (relay.journal_path is empty)")
	}

	j, err := journal.Open(cfg.Relay.JournalPath)
	if err != nil {
		return err
	}
	defer j.Close()

	entries, err := j.Recent(cmd.Context(), journalLimit)
	if err != nil {
		return err
	}

	if journalJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Println("No completions recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tPERSONA\tMODE\tTURNS\tSTATUS\tDURATION\tFINGERPRINT")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%.12s\n",
			e.StartedAt.Local().Format("2006-01-02 15:04:05"),
			e.Persona, e.Mode, e.Turns, e.Status, e.Duration, e.Fingerprint)
	}
	return w.Flush()
}
