package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ryanmello/lilli/internal/conversation"
	"github.com/ryanmello/lilli/internal/state"
	"github.com/ryanmello/lilli/pkg/models"
)

var purgeOlderThan time.Duration

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage stored conversation sessions",
	Long: `List, export, import, and delete the session snapshots kept in the
configured store.`,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store state.SnapshotStore) error {
			summaries, err := store.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing sessions: %w", err)
			}
			return printSessions(cmd.OutOrStdout(), summaries)
		})
	},
}

var sessionsExportCmd = &cobra.Command{
	Use:   "export <session-id>",
	Short: "Print a session snapshot as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store state.SnapshotStore) error {
			snap, err := store.Load(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("loading session: %w", err)
			}
			if snap == nil {
				return fmt.Errorf("session %s not found", args[0])
			}
			data, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling JSON: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", data)
			return nil
		})
	},
}

var sessionsImportCmd = &cobra.Command{
	Use:   "import <session-id> <file|->",
	Short: "Store a session snapshot read from a JSON file or stdin",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var in io.Reader = cmd.InOrStdin()
		if args[1] != "-" {
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}
		return withStore(func(store state.SnapshotStore) error {
			n, err := importSnapshot(cmd.Context(), store, args[0], in)
			if err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), "✓", fmt.Sprintf("Imported %s with %d turns", args[0], n), color.FgGreen)
			return nil
		})
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>...",
	Short: "Delete stored sessions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store state.SnapshotStore) error {
			for _, id := range args {
				if err := store.Delete(cmd.Context(), id); err != nil {
					return fmt.Errorf("deleting %s: %w", id, err)
				}
				printStatus(cmd.OutOrStdout(), "✓", "Deleted "+id, color.FgGreen)
			}
			return nil
		})
	},
}

// purger is implemented by stores that can drop old snapshots in bulk.
type purger interface {
	PurgeOlderThan(ctx context.Context, olderThan time.Duration) (int64, error)
}

var sessionsPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete sessions not updated within --older-than (sqlite store)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store state.SnapshotStore) error {
			p, ok := store.(purger)
			if !ok {
				return fmt.Errorf("the configured store does not support purge; redis expires sessions by TTL")
			}
			n, err := p.PurgeOlderThan(cmd.Context(), purgeOlderThan)
			if err != nil {
				return fmt.Errorf("purging sessions: %w", err)
			}
			printStatus(cmd.OutOrStdout(), "✓", fmt.Sprintf("Purged %d sessions", n), color.FgGreen)
			return nil
		})
	},
}

func init() {
	sessionsPurgeCmd.Flags().DurationVar(&purgeOlderThan, "older-than", 30*24*time.Hour, "Age threshold")

	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsExportCmd)
	sessionsCmd.AddCommand(sessionsImportCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	sessionsCmd.AddCommand(sessionsPurgeCmd)
}

// withStore opens the configured store for the duration of fn.
func withStore(fn func(state.SnapshotStore) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

// importSnapshot decodes a snapshot, checks it restores cleanly into the
// session, and saves it. It returns the number of turns kept.
func importSnapshot(ctx context.Context, store state.SnapshotStore, sessionID string, in io.Reader) (int, error) {
	var snap models.Snapshot
	if err := json.NewDecoder(in).Decode(&snap); err != nil {
		return 0, fmt.Errorf("decoding snapshot: %w", err)
	}
	st, err := conversation.Restore(sessionID, snap)
	if err != nil {
		return 0, err
	}
	restored := st.Snapshot()
	if err := store.Save(ctx, restored); err != nil {
		return 0, fmt.Errorf("saving session: %w", err)
	}
	return len(restored.Turns), nil
}

func printSessions(out io.Writer, summaries []state.Summary) error {
	if len(summaries) == 0 {
		fmt.Fprintln(out, "No sessions found")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "SESSION\tTURNS\tUPDATED\n")
	fmt.Fprintf(w, "-------\t-----\t-------\n")
	for _, s := range summaries {
		fmt.Fprintf(w, "%s\t%d\t%s\n", s.SessionID, s.Turns, s.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	return w.Flush()
}
