package storage

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"scoutbot/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	for _, driver := range []string{"", "none", " NONE "} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil || st != nil {
			t.Fatalf("Open(%q) = (%v, %v), want (nil, nil)", driver, st, err)
		}
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(Config{Driver: "redis", Path: "x"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestOpenRequiresPath(t *testing.T) {
	for _, driver := range []string{"file", "sqlite"} {
		if _, err := Open(Config{Driver: driver}, logx.Nop()); err == nil {
			t.Fatalf("%s: expected error without path", driver)
		}
	}
}

func TestStores(t *testing.T) {
	cases := []struct {
		driver string
		file   string
	}{
		{"file", "state.json"},
		{"sqlite", "state.db"},
	}
	for _, tc := range cases {
		t.Run(tc.driver, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", tc.file)
			ctx := context.Background()

			st, err := Open(Config{Driver: tc.driver, Path: path}, logx.Nop())
			if err != nil {
				t.Fatalf("Open: %v", err)
			}

			keys, err := st.LoadSeen(ctx, "news")
			if err != nil || len(keys) != 0 {
				t.Fatalf("LoadSeen empty = (%v, %v)", keys, err)
			}

			if err := st.SaveSeen(ctx, "news", []string{"c", "b", "a", "a"}); err != nil {
				t.Fatalf("SaveSeen: %v", err)
			}
			if err := st.SaveSeen(ctx, "other", []string{"z"}); err != nil {
				t.Fatalf("SaveSeen: %v", err)
			}
			if err := st.SaveSeen(ctx, "news", []string{"d", "c", "b", "a", "a"}); err != nil {
				t.Fatalf("SaveSeen replace: %v", err)
			}
			if err := st.AddRecipients(ctx, []int64{42, 7}); err != nil {
				t.Fatalf("AddRecipients: %v", err)
			}
			if err := st.AddRecipients(ctx, []int64{7, -100}); err != nil {
				t.Fatalf("AddRecipients: %v", err)
			}
			if err := st.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}

			// Reopen and confirm everything survived.
			st, err = Open(Config{Driver: tc.driver, Path: path}, logx.Nop())
			if err != nil {
				t.Fatalf("reopen: %v", err)
			}
			defer st.Close()

			keys, err = st.LoadSeen(ctx, "news")
			if err != nil {
				t.Fatalf("LoadSeen: %v", err)
			}
			if want := []string{"d", "c", "b", "a", "a"}; !slices.Equal(keys, want) {
				t.Fatalf("news keys = %v, want %v", keys, want)
			}
			keys, _ = st.LoadSeen(ctx, "other")
			if !slices.Equal(keys, []string{"z"}) {
				t.Fatalf("other keys = %v", keys)
			}

			ids, err := st.LoadRecipients(ctx)
			if err != nil {
				t.Fatalf("LoadRecipients: %v", err)
			}
			if want := []int64{-100, 7, 42}; !slices.Equal(ids, want) {
				t.Fatalf("recipients = %v, want %v", ids, want)
			}
		})
	}
}

func TestFileStoreCorruptSnapshotStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	keys, err := st.LoadSeen(context.Background(), "news")
	if err != nil || len(keys) != 0 {
		t.Fatalf("LoadSeen = (%v, %v)", keys, err)
	}
}

func TestFileStoreLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if err := st.SaveSeen(context.Background(), "n", []string{"k"}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
}

func TestFileStoreFailedWriteKeepsState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	// A directory in place of the temp file makes every write fail.
	if err := os.Mkdir(path+".tmp", 0o755); err != nil {
		t.Fatal(err)
	}
	if err := st.AddRecipients(ctx, []int64{7}); err == nil {
		t.Fatal("AddRecipients should fail")
	}
	if err := st.SaveSeen(ctx, "n", []string{"k"}); err == nil {
		t.Fatal("SaveSeen should fail")
	}
	if ids, _ := st.LoadRecipients(ctx); len(ids) != 0 {
		t.Fatalf("recipients after failed write = %v", ids)
	}
	if keys, _ := st.LoadSeen(ctx, "n"); len(keys) != 0 {
		t.Fatalf("seen after failed write = %v", keys)
	}

	if err := os.Remove(path + ".tmp"); err != nil {
		t.Fatal(err)
	}
	if err := st.AddRecipients(ctx, []int64{7}); err != nil {
		t.Fatalf("AddRecipients retry: %v", err)
	}
	reopened, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if ids, _ := reopened.LoadRecipients(ctx); !slices.Equal(ids, []int64{7}) {
		t.Fatalf("persisted recipients = %v", ids)
	}
}
