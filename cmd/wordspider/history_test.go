package main

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/nao1215/wordspider/internal/database"
)

// crawlTwice crawls the test site twice into dbDir and returns the session
// ids, oldest first.
func crawlTwice(t *testing.T, dbDir string) (string, string) {
	t.Helper()
	srv := newTestSite(t)
	profile := emptyProfile(t)

	for range 2 {
		if _, stderr, err := runCLI(t, "crawl", srv.URL, "-q", "--config", profile, "--db-dir", dbDir); err != nil {
			t.Fatalf("crawl failed: %v\n%s", err, stderr)
		}
	}

	db, err := database.Open(dbDir, database.Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	sessions, err := db.ListSessions(context.Background(), "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	return sessions[1].ID, sessions[0].ID
}

func TestHistoryCmd(t *testing.T) {
	t.Parallel()

	dbDir := t.TempDir()
	oldID, newID := crawlTwice(t, dbDir)

	// Subtests share one database file and run in order.

	t.Run("list", func(t *testing.T) {
		stdout, _, err := runCLI(t, "history", "list", "--db-dir", dbDir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, id := range []string{oldID, newID} {
			if !strings.Contains(stdout, shortID(id)) {
				t.Errorf("expected %s in list, got %q", shortID(id), stdout)
			}
		}
	})

	t.Run("list filters by host", func(t *testing.T) {
		stdout, _, err := runCLI(t, "history", "list", "--db-dir", dbDir, "--host", "unknown.example.com")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "No saved crawls") {
			t.Errorf("expected empty list, got %q", stdout)
		}
	})

	t.Run("show with entries", func(t *testing.T) {
		stdout, _, err := runCLI(t, "history", "show", shortID(newID), "--db-dir", dbDir, "--kind", "email")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "WORDSPIDER SUMMARY") {
			t.Errorf("expected summary, got %q", stdout)
		}
		if !strings.Contains(stdout, "admin@example.com") {
			t.Errorf("expected e-mail entries, got %q", stdout)
		}
	})

	t.Run("diff with previous crawl", func(t *testing.T) {
		stdout, _, err := runCLI(t, "history", "diff", newID, "--db-dir", dbDir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "[+] novelty") {
			t.Errorf("expected added word, got %q", stdout)
		}
		if strings.Contains(stdout, "[-]") {
			t.Errorf("expected no removed words, got %q", stdout)
		}
	})

	t.Run("diff as json", func(t *testing.T) {
		stdout, _, err := runCLI(t, "history", "diff", oldID, newID, "--db-dir", dbDir, "--json")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var result DiffResult
		if err := json.Unmarshal([]byte(stdout), &result); err != nil {
			t.Fatalf("invalid json: %v\n%s", err, stdout)
		}
		if result.Previous.ID != oldID || result.Current.ID != newID {
			t.Errorf("unexpected sessions: %+v", result)
		}
		if !slices.Equal(result.Added, []string{"novelty"}) {
			t.Errorf("expected [novelty] added, got %v", result.Added)
		}
		if len(result.Removed) != 0 {
			t.Errorf("expected nothing removed, got %v", result.Removed)
		}
	})

	t.Run("diff of identical url lists", func(t *testing.T) {
		stdout, _, err := runCLI(t, "history", "diff", oldID, newID, "--db-dir", dbDir, "--kind", "url")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "No differences") {
			t.Errorf("expected no differences, got %q", stdout)
		}
	})

	t.Run("invalid kind", func(t *testing.T) {
		_, _, err := runCLI(t, "history", "diff", newID, "--db-dir", dbDir, "--kind", "phone")
		if err == nil || !strings.Contains(err.Error(), "invalid kind") {
			t.Errorf("expected invalid kind error, got %v", err)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		_, _, err := runCLI(t, "history", "show", "zzzz", "--db-dir", dbDir)
		if !errors.Is(err, database.ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}
	})
}

func TestHistoryRm(t *testing.T) {
	t.Parallel()

	dbDir := t.TempDir()
	oldID, newID := crawlTwice(t, dbDir)

	stdout, _, err := runCLI(t, "history", "rm", oldID, "--db-dir", dbDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout, oldID) {
		t.Errorf("expected deleted id in output, got %q", stdout)
	}

	stdout, _, err = runCLI(t, "history", "list", "--db-dir", dbDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(stdout, shortID(oldID)) || !strings.Contains(stdout, shortID(newID)) {
		t.Errorf("unexpected list after delete: %q", stdout)
	}

	// Nothing left to compare with.
	_, _, err = runCLI(t, "history", "diff", newID, "--db-dir", dbDir)
	if !errors.Is(err, database.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestHistoryMissingDatabase(t *testing.T) {
	t.Parallel()

	_, _, err := runCLI(t, "history", "list", "--db-dir", t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "failed to open database") {
		t.Errorf("expected open error, got %v", err)
	}
}

func TestFormatDelta(t *testing.T) {
	t.Parallel()

	tests := map[int]string{3: "+3", 0: "0", -2: "-2"}
	for in, want := range tests {
		if got := formatDelta(in); got != want {
			t.Errorf("formatDelta(%d) = %q, want %q", in, got, want)
		}
	}
}
