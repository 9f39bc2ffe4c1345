package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/wordspider/internal/config"
	"github.com/nao1215/wordspider/internal/database"
	"github.com/nao1215/wordspider/internal/report"
	"github.com/nao1215/wordspider/internal/scope"
	"github.com/spf13/cobra"
)

const historyTimeLayout = "2006-01-02 15:04:05"

// NewHistoryCmd creates the history command and its subcommands.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and compare saved crawls",
		Long: `Every finished or interrupted crawl is saved to a local SQLite database
(disable with 'crawl --no-history'). Sessions are addressed by id; any unique
prefix of an id is accepted.

Examples:
  # List the latest crawls
  wordspider history list

  # Show one crawl and its e-mail addresses
  wordspider history show 3f2a --kind email

  # Compare a crawl with the previous crawl of the same host
  wordspider history diff 3f2a

  # Compare the URLs of two specific crawls
  wordspider history diff 3f2a 9bc1 --kind url`,
	}
	cmd.PersistentFlags().String("db-dir", config.XDGDataDir(), "History database directory")

	cmd.AddCommand(newHistoryListCmd())
	cmd.AddCommand(newHistoryShowCmd())
	cmd.AddCommand(newHistoryDiffCmd())
	cmd.AddCommand(newHistoryRmCmd())
	return cmd
}

func newHistoryListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved crawls, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			host, err := cmd.Flags().GetString("host")
			if err != nil {
				return err
			}
			limit, err := cmd.Flags().GetInt("limit")
			if err != nil {
				return err
			}
			return withHistoryDB(cmd, func(ctx context.Context, db *database.CrawlDB) error {
				sessions, err := db.ListSessions(ctx, normalizeHost(host), limit)
				if err != nil {
					return err
				}
				printSessions(cmd.OutOrStdout(), sessions)
				return nil
			})
		},
	}
	cmd.Flags().String("host", "", "Only list crawls of this host (or URL)")
	cmd.Flags().IntP("limit", "n", 20, "Maximum number of crawls to list (0 = all)")
	return cmd
}

func newHistoryShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show the summary and entries of a saved crawl",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := entryKindFlag(cmd)
			if err != nil {
				return err
			}
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return err
			}
			return withHistoryDB(cmd, func(ctx context.Context, db *database.CrawlDB) error {
				id, err := db.ResolveID(ctx, args[0])
				if err != nil {
					return err
				}
				sess, err := db.GetSession(ctx, id)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				w, err := report.NewWriter(format, out)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Session %s\n\n", sess.ID)
				if _, err := w.Write(sess.Summary); err != nil {
					return err
				}
				if kind == "" {
					return nil
				}

				entries, err := db.Entries(ctx, id, kind)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "\n%s entries (%d):\n", kindTitle(kind), len(entries))
				return report.WriteList(out, entries)
			})
		},
	}
	cmd.Flags().StringP("kind", "k", "", "Also print the entries of this kind: word, email or url")
	cmd.Flags().StringP("format", "f", config.ReportFormatText, "Summary format: text, markdown or json")
	return cmd
}

// DiffResult is the difference between two crawls for one entry kind.
type DiffResult struct {
	Kind     string      `json:"kind"`
	Previous SessionInfo `json:"previous"`
	Current  SessionInfo `json:"current"`
	Added    []string    `json:"added"`
	Removed  []string    `json:"removed"`
}

// SessionInfo identifies a crawl in a DiffResult.
type SessionInfo struct {
	ID        string    `json:"id"`
	Target    string    `json:"target"`
	StartedAt time.Time `json:"started_at"`
	Count     int       `json:"count"`
}

func newHistoryDiffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff <old-id> [new-id]",
		Short: "Show entries added and removed between two crawls",
		Long: `Diff lists the entries found by the newer crawl but not the older one (+)
and the reverse (-). With a single id the crawl is compared with the
previous crawl of the same host.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := entryKindFlag(cmd)
			if err != nil {
				return err
			}
			if kind == "" {
				kind = database.EntryWord
			}
			jsonOutput, err := cmd.Flags().GetBool("json")
			if err != nil {
				return err
			}
			return withHistoryDB(cmd, func(ctx context.Context, db *database.CrawlDB) error {
				result, err := diffSessions(ctx, db, args, kind)
				if err != nil {
					return err
				}
				if jsonOutput {
					encoder := json.NewEncoder(cmd.OutOrStdout())
					encoder.SetIndent("", "  ")
					return encoder.Encode(result)
				}
				printDiff(cmd.OutOrStdout(), result)
				return nil
			})
		},
	}
	cmd.Flags().StringP("kind", "k", string(database.EntryWord), "Entry kind to compare: word, email or url")
	cmd.Flags().BoolP("json", "j", false, "Output the difference in JSON format")
	return cmd
}

func newHistoryRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a saved crawl",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistoryDB(cmd, func(ctx context.Context, db *database.CrawlDB) error {
				id, err := db.ResolveID(ctx, args[0])
				if err != nil {
					return err
				}
				if err := db.DeleteSession(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s\n", id)
				return nil
			})
		},
	}
}

// withHistoryDB opens the database named by --db-dir for the duration of fn.
func withHistoryDB(cmd *cobra.Command, fn func(context.Context, *database.CrawlDB) error) error {
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	db, err := database.Open(dbDir, database.Options{})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, db)
}

// diffSessions resolves the ids in args and compares their entries.
func diffSessions(ctx context.Context, db *database.CrawlDB, args []string, kind database.EntryKind) (*DiffResult, error) {
	oldID, err := db.ResolveID(ctx, args[0])
	if err != nil {
		return nil, err
	}

	var newID string
	if len(args) == 2 {
		if newID, err = db.ResolveID(ctx, args[1]); err != nil {
			return nil, err
		}
	} else {
		// A single id is the newer crawl; compare with the one before it.
		current, err := db.GetSession(ctx, oldID)
		if err != nil {
			return nil, err
		}
		previous, err := db.LatestSession(ctx, current.Host, current.ID)
		if err != nil {
			return nil, err
		}
		newID, oldID = oldID, previous.ID
	}

	prev, err := db.GetSession(ctx, oldID)
	if err != nil {
		return nil, err
	}
	curr, err := db.GetSession(ctx, newID)
	if err != nil {
		return nil, err
	}

	added, removed, err := db.Diff(ctx, oldID, newID, kind)
	if err != nil {
		return nil, err
	}

	return &DiffResult{
		Kind:     string(kind),
		Previous: sessionInfo(&prev.SessionMeta, kind),
		Current:  sessionInfo(&curr.SessionMeta, kind),
		Added:    added,
		Removed:  removed,
	}, nil
}

func sessionInfo(meta *database.SessionMeta, kind database.EntryKind) SessionInfo {
	info := SessionInfo{ID: meta.ID, Target: meta.Target, StartedAt: meta.StartedAt}
	switch kind {
	case database.EntryEmail:
		info.Count = meta.Emails
	case database.EntryURL:
		info.Count = meta.URLs
	default:
		info.Count = meta.Words
	}
	return info
}

func printSessions(out io.Writer, sessions []database.SessionMeta) {
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No saved crawls found.")
		fmt.Fprintln(out, "\nUse 'wordspider crawl <url>' to crawl a website.")
		return
	}

	fmt.Fprintf(out, "  %-8s  %-19s  %-30s  %8s  %6s  %6s\n", "ID", "Started", "Target", "Words", "Emails", "URLs")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 86))
	for _, s := range sessions {
		target := s.Target
		if s.Interrupted {
			target += " (interrupted)"
		}
		fmt.Fprintf(out, "  %-8s  %-19s  %-30s  %8d  %6d  %6d\n",
			shortID(s.ID),
			s.StartedAt.Local().Format(historyTimeLayout),
			target,
			s.Words, s.Emails, s.URLs,
		)
	}
}

func printDiff(out io.Writer, d *DiffResult) {
	fmt.Fprintf(out, "%s diff\n", kindTitle(database.EntryKind(d.Kind)))
	fmt.Fprintln(out, strings.Repeat("=", 60))
	fmt.Fprintf(out, "\nPrevious: %s  %s  %s (%d)\n",
		shortID(d.Previous.ID), d.Previous.StartedAt.Local().Format(historyTimeLayout), d.Previous.Target, d.Previous.Count)
	fmt.Fprintf(out, "Current:  %s  %s  %s (%d)\n",
		shortID(d.Current.ID), d.Current.StartedAt.Local().Format(historyTimeLayout), d.Current.Target, d.Current.Count)
	fmt.Fprintf(out, "Change:   %s\n", formatDelta(d.Current.Count-d.Previous.Count))

	if len(d.Added) == 0 && len(d.Removed) == 0 {
		fmt.Fprintln(out, "\nNo differences.")
		return
	}
	if len(d.Added) > 0 {
		fmt.Fprintf(out, "\nAdded (%d):\n", len(d.Added))
		for _, v := range d.Added {
			fmt.Fprintf(out, "  [+] %s\n", v)
		}
	}
	if len(d.Removed) > 0 {
		fmt.Fprintf(out, "\nRemoved (%d):\n", len(d.Removed))
		for _, v := range d.Removed {
			fmt.Fprintf(out, "  [-] %s\n", v)
		}
	}
}

func entryKindFlag(cmd *cobra.Command) (database.EntryKind, error) {
	raw, err := cmd.Flags().GetString("kind")
	if err != nil {
		return "", err
	}
	switch kind := database.EntryKind(strings.ToLower(strings.TrimSpace(raw))); kind {
	case "":
		return "", nil
	case database.EntryWord, database.EntryEmail, database.EntryURL:
		return kind, nil
	default:
		return "", fmt.Errorf("invalid kind %q: must be word, email or url", raw)
	}
}

func kindTitle(kind database.EntryKind) string {
	switch kind {
	case database.EntryEmail:
		return "E-mail"
	case database.EntryURL:
		return "URL"
	default:
		return "Word"
	}
}

// normalizeHost accepts a bare host or a URL.
func normalizeHost(raw string) string {
	if raw == "" {
		return ""
	}
	if u, err := scope.NormalizeTarget(raw); err == nil {
		return u.Hostname()
	}
	return strings.ToLower(raw)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}
