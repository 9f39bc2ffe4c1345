package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/wordspider/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *CrawlDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testSession(target string, started time.Time, words ...string) SessionInput {
	return SessionInput{
		Summary: &model.Summary{
			Target:     target,
			Strategy:   "exact",
			StartedAt:  started,
			FinishedAt: started.Add(time.Minute),
			Words:      len(words),
			Emails:     1,
			URLs:       2,
			Domains:    []string{"example.com"},
		},
		Words:  words,
		Emails: []string{"john.doe@example.com"},
		URLs:   []string{target, target + "about"},
	}
}

func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if _, err := os.Stat(filepath.Join(dbDir, FileName)); err != nil {
			t.Errorf("database file was not created: %v", err)
		}
		if db.Path() != filepath.Join(dbDir, FileName) {
			t.Errorf("Path() = %q", db.Path())
		}
	})

	t.Run("CreateIfNotExists=false fails without database", func(t *testing.T) {
		t.Parallel()

		dbDir := t.TempDir()
		_, err := Open(dbDir, Options{CreateIfNotExists: false})
		if err == nil || !strings.Contains(err.Error(), "database not found") {
			t.Errorf("expected 'database not found' error, got %v", err)
		}
		if _, err := os.Stat(filepath.Join(dbDir, FileName)); !os.IsNotExist(err) {
			t.Error("database file must not be created")
		}
	})

	t.Run("CreateIfNotExists=false opens existing database", func(t *testing.T) {
		t.Parallel()

		dbDir := t.TempDir()
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatal(err)
		}
		id, err := db.SaveSession(context.Background(), testSession("https://example.com/", time.Now(), "alpha"))
		if err != nil {
			t.Fatal(err)
		}
		_ = db.Close()

		db, err = Open(dbDir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err != nil {
			t.Fatalf("failed to reopen: %v", err)
		}
		defer db.Close()

		if _, err := db.GetSession(context.Background(), id); err != nil {
			t.Errorf("session lost after reopen: %v", err)
		}
	})
}

func TestDefaultOptions(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	if !opts.CreateIfNotExists || !opts.EnableWAL {
		t.Errorf("unexpected defaults %+v", opts)
	}
}

func TestSaveAndGetSession(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 10, 0, 0, 123, time.UTC)

	in := testSession("https://Example.com/", started, "charlie", "alpha", "bravo", "alpha")
	in.Summary.Interrupted = true

	id, err := db.SaveSession(ctx, in)
	if err != nil {
		t.Fatalf("failed to save: %v", err)
	}
	if len(id) != 36 {
		t.Errorf("expected a UUID, got %q", id)
	}

	t.Run("session metadata and summary", func(t *testing.T) {
		t.Parallel()

		sess, err := db.GetSession(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if sess.Host != "example.com" {
			t.Errorf("Host = %q", sess.Host)
		}
		if !sess.StartedAt.Equal(started) {
			t.Errorf("StartedAt = %v, want %v", sess.StartedAt, started)
		}
		if !sess.Interrupted {
			t.Error("expected interrupted flag")
		}
		if sess.Summary.Target != "https://Example.com/" || sess.Summary.Domains[0] != "example.com" {
			t.Errorf("summary not round-tripped: %+v", sess.Summary)
		}
	})

	t.Run("entries are sorted and unique", func(t *testing.T) {
		t.Parallel()

		words, err := db.Entries(ctx, id, EntryWord)
		if err != nil {
			t.Fatal(err)
		}
		if !slices.Equal(words, []string{"alpha", "bravo", "charlie"}) {
			t.Errorf("words = %v", words)
		}
		emails, err := db.Entries(ctx, id, EntryEmail)
		if err != nil {
			t.Fatal(err)
		}
		if !slices.Equal(emails, []string{"john.doe@example.com"}) {
			t.Errorf("emails = %v", emails)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		t.Parallel()

		if _, err := db.GetSession(ctx, "nope"); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("nil summary is rejected", func(t *testing.T) {
		t.Parallel()

		if _, err := db.SaveSession(ctx, SessionInput{}); err == nil {
			t.Error("expected error")
		}
	})
}

func TestListSessions(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	var ids []string
	for i, target := range []string{"https://example.com/", "https://other.org/", "https://example.com/blog/"} {
		// Sub-second offsets check that ordering does not depend on text length.
		id, err := db.SaveSession(ctx, testSession(target, base.Add(time.Duration(i)*500*time.Millisecond), "word"))
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}

	t.Run("newest first", func(t *testing.T) {
		t.Parallel()

		all, err := db.ListSessions(ctx, "", 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(all) != 3 || all[0].ID != ids[2] || all[2].ID != ids[0] {
			t.Errorf("unexpected order: %+v", all)
		}
	})

	t.Run("filter by host", func(t *testing.T) {
		t.Parallel()

		got, err := db.ListSessions(ctx, "EXAMPLE.com", 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 2 {
			t.Errorf("expected 2 sessions, got %d", len(got))
		}
	})

	t.Run("limit", func(t *testing.T) {
		t.Parallel()

		got, err := db.ListSessions(ctx, "", 1)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0].ID != ids[2] {
			t.Errorf("unexpected %+v", got)
		}
	})

	t.Run("latest earlier session of a host", func(t *testing.T) {
		t.Parallel()

		prev, err := db.LatestSession(ctx, "example.com", ids[2])
		if err != nil {
			t.Fatal(err)
		}
		if prev.ID != ids[0] {
			t.Errorf("LatestSession = %s, want %s", prev.ID, ids[0])
		}
		if _, err := db.LatestSession(ctx, "other.org", ids[1]); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}
	})
}

func TestResolveID(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	id, err := db.SaveSession(ctx, testSession("https://example.com/", time.Now(), "alpha"))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		prefix  string
		wantErr error
	}{
		{name: "full id", prefix: id},
		{name: "short prefix", prefix: id[:8]},
		{name: "upper case prefix", prefix: strings.ToUpper(id[:8])},
		{name: "unknown prefix", prefix: "zzzz", wantErr: ErrSessionNotFound},
		{name: "empty prefix", prefix: " ", wantErr: ErrSessionNotFound},
		{name: "wildcard is literal", prefix: "%", wantErr: ErrSessionNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := db.ResolveID(ctx, tt.prefix)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil || got != id {
				t.Errorf("ResolveID(%q) = %q, %v", tt.prefix, got, err)
			}
		})
	}
}

func TestDiff(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Now()

	oldID, err := db.SaveSession(ctx, testSession("https://example.com/", now, "alpha", "bravo", "charlie"))
	if err != nil {
		t.Fatal(err)
	}
	newID, err := db.SaveSession(ctx, testSession("https://example.com/", now.Add(time.Hour), "bravo", "charlie", "delta", "echo"))
	if err != nil {
		t.Fatal(err)
	}

	added, removed, err := db.Diff(ctx, oldID, newID, EntryWord)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(added, []string{"delta", "echo"}) {
		t.Errorf("added = %v", added)
	}
	if !slices.Equal(removed, []string{"alpha"}) {
		t.Errorf("removed = %v", removed)
	}

	added, removed, err = db.Diff(ctx, oldID, newID, EntryEmail)
	if err != nil {
		t.Fatal(err)
	}
	if len(added) != 0 || len(removed) != 0 {
		t.Errorf("identical e-mail lists should not differ: %v %v", added, removed)
	}
}

func TestDeleteSession(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	id, err := db.SaveSession(ctx, testSession("https://example.com/", time.Now(), "alpha"))
	if err != nil {
		t.Fatal(err)
	}
	if err := db.DeleteSession(ctx, id); err != nil {
		t.Fatal(err)
	}
	if _, err := db.GetSession(ctx, id); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected session to be gone, got %v", err)
	}
	words, err := db.Entries(ctx, id, EntryWord)
	if err != nil {
		t.Fatal(err)
	}
	if len(words) != 0 {
		t.Errorf("entries should cascade, got %v", words)
	}
	if err := db.DeleteSession(ctx, id); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound on second delete, got %v", err)
	}
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	want := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for _, s := range []string{
		formatTimestamp(want),
		"2026-03-01T10:00:00Z",
		"2026-03-01 10:00:00",
	} {
		if got := parseTimestamp(s); !got.Equal(want) {
			t.Errorf("parseTimestamp(%q) = %v", s, got)
		}
	}
	if !parseTimestamp("garbage").IsZero() {
		t.Error("expected zero time for garbage")
	}
}
