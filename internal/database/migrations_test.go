package database

import (
	"errors"
	"strings"
	"testing"
	"testing/fstest"
)

func migrationFS(files map[string]string) fstest.MapFS {
	fsys := fstest.MapFS{}
	for name, body := range files {
		fsys[name] = &fstest.MapFile{Data: []byte(body)}
	}
	return fsys
}

func TestLoadMigrations(t *testing.T) {
	fsys := migrationFS(map[string]string{
		"002_surveys.sql": "CREATE TABLE surveys ();",
		"001_init.sql":    "CREATE TABLE tables ();",
		"README.md":       "ignored",
	})

	got, err := LoadMigrations(fsys)
	if err != nil {
		t.Fatalf("LoadMigrations: %v", err)
	}
	if len(got) != 2 || got[0].Version != 1 || got[1].Version != 2 {
		t.Fatalf("migrations = %+v", got)
	}
	if got[0].Name != "init" || len(got[0].Checksum) != 64 {
		t.Fatalf("first migration = %+v", got[0])
	}
	if got[0].Checksum == got[1].Checksum {
		t.Fatal("different files must have different checksums")
	}
}

func TestLoadMigrations_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		want  string
	}{
		{"no version", map[string]string{"init.sql": ""}, "NNN_name.sql"},
		{"version zero", map[string]string{"000_init.sql": ""}, "start at 1"},
		{"duplicate version", map[string]string{"001_a.sql": "", "01_b.sql": ""}, "share version 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadMigrations(migrationFS(tt.files))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestPlanMigrations(t *testing.T) {
	files, err := LoadMigrations(migrationFS(map[string]string{
		"001_init.sql":    "CREATE TABLE tables ();",
		"002_surveys.sql": "CREATE TABLE surveys ();",
	}))
	if err != nil {
		t.Fatal(err)
	}
	first := AppliedMigration{Version: 1, Name: "init", Checksum: files[0].Checksum}

	t.Run("fresh database", func(t *testing.T) {
		pending, err := PlanMigrations(files, map[int]AppliedMigration{})
		if err != nil || len(pending) != 2 {
			t.Fatalf("pending = %+v, err = %v", pending, err)
		}
	})

	t.Run("partially applied", func(t *testing.T) {
		applied := map[int]AppliedMigration{1: first}
		pending, err := PlanMigrations(files, applied)
		if err != nil || len(pending) != 1 || pending[0].Version != 2 {
			t.Fatalf("pending = %+v, err = %v", pending, err)
		}
		if got := currentVersion(applied); got != 1 {
			t.Fatalf("currentVersion = %d", got)
		}
	})

	t.Run("edited after applying", func(t *testing.T) {
		edited := first
		edited.Checksum = strings.Repeat("0", 64)
		_, err := PlanMigrations(files, map[int]AppliedMigration{1: edited})
		if !errors.Is(err, ErrChecksumMismatch) {
			t.Fatalf("err = %v, want ErrChecksumMismatch", err)
		}
	})

	t.Run("file removed", func(t *testing.T) {
		applied := map[int]AppliedMigration{1: first, 7: {Version: 7, Name: "gone"}}
		if _, err := PlanMigrations(files, applied); err == nil {
			t.Fatal("expected an error for a recorded version without a file")
		}
	})
}
