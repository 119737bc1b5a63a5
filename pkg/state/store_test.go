package state

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scraper_state.json")
	return NewStore(path, zerolog.Nop()), path
}

func TestLoad_MissingFile(t *testing.T) {
	store, _ := newTestStore(t)

	if err := store.Load(); err != nil {
		t.Fatalf("Load() with missing file error: %v", err)
	}
	if store.Count() != 0 {
		t.Errorf("Count() = %d, want 0", store.Count())
	}
}

func TestLoad_ExistingFile(t *testing.T) {
	store, path := newTestStore(t)

	content := `{"processed_issues": ["KAFKA-1", "KAFKA-2", "SPARK-9"]}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := store.Load(); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if store.Count() != 3 {
		t.Errorf("Count() = %d, want 3", store.Count())
	}
	if !store.IsDone("KAFKA-1") {
		t.Error("IsDone(KAFKA-1) = false, want true")
	}
	if store.IsDone("KAFKA-3") {
		t.Error("IsDone(KAFKA-3) = true, want false")
	}
}

func TestLoad_CorruptFile(t *testing.T) {
	store, path := newTestStore(t)

	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	err := store.Load()
	if err == nil {
		t.Fatal("Load() with corrupt file: expected error, got nil")
	}

	var corrupt *CorruptStateError
	if !errors.As(err, &corrupt) {
		t.Fatalf("Error type = %T, want *CorruptStateError", err)
	}
	if corrupt.Path != path {
		t.Errorf("CorruptStateError.Path = %q, want %q", corrupt.Path, path)
	}
}

func TestSaveAndReload(t *testing.T) {
	store, path := newTestStore(t)

	store.MarkDone("KAFKA-2")
	store.MarkDone("KAFKA-1")
	if err := store.Save(); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	// Keys are written sorted for stable diffs.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var fs fileState
	if err := json.Unmarshal(data, &fs); err != nil {
		t.Fatalf("Saved file is not valid JSON: %v", err)
	}
	if len(fs.ProcessedIssues) != 2 || fs.ProcessedIssues[0] != "KAFKA-1" {
		t.Errorf("ProcessedIssues = %v, want sorted [KAFKA-1 KAFKA-2]", fs.ProcessedIssues)
	}

	reloaded := NewStore(path, zerolog.Nop())
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Reload error: %v", err)
	}
	if !reloaded.IsDone("KAFKA-1") || !reloaded.IsDone("KAFKA-2") {
		t.Error("Reloaded store is missing marked keys")
	}
}

func TestSave_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "deeper", "state.json")
	store := NewStore(path, zerolog.Nop())

	store.MarkDone("HADOOP-7")
	if err := store.Save(); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("State file not created: %v", err)
	}
}

func TestSave_LeavesNoTempFileBehind(t *testing.T) {
	store, path := newTestStore(t)

	store.MarkDone("KAFKA-1")
	if err := store.Save(); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("Temp file should not exist after successful save")
	}
}

// An interrupted save must never clobber the committed file: the write
// goes to a temp path and only the final rename switches it in.
func TestSave_PriorStateSurvivesAbortedWrite(t *testing.T) {
	store, path := newTestStore(t)

	store.MarkDone("KAFKA-1")
	if err := store.Save(); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	// Simulate a crash mid-write: a half-written temp file next to the
	// committed state.
	if err := os.WriteFile(path+".tmp", []byte(`{"processed_iss`), 0o600); err != nil {
		t.Fatal(err)
	}

	reloaded := NewStore(path, zerolog.Nop())
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Committed state no longer loadable: %v", err)
	}
	if !reloaded.IsDone("KAFKA-1") {
		t.Error("Committed state lost KAFKA-1")
	}
}

func TestMarkedSinceSave(t *testing.T) {
	store, _ := newTestStore(t)

	store.MarkDone("A-1")
	store.MarkDone("A-2")
	store.MarkDone("A-2") // duplicate, not counted
	if got := store.MarkedSinceSave(); got != 2 {
		t.Errorf("MarkedSinceSave() = %d, want 2", got)
	}

	if err := store.Save(); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if got := store.MarkedSinceSave(); got != 0 {
		t.Errorf("MarkedSinceSave() after save = %d, want 0", got)
	}
}

func TestDelete(t *testing.T) {
	store, path := newTestStore(t)

	store.MarkDone("A-1")
	if err := store.Save(); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("State file should be gone after Delete()")
	}

	// Deleting a missing file is not an error.
	if err := store.Delete(); err != nil {
		t.Errorf("Delete() on missing file error: %v", err)
	}
}

func TestConcurrentMarkDone(t *testing.T) {
	store, _ := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := "KAFKA-" + string(rune('A'+n%26)) + string(rune('A'+n/26))
			store.MarkDone(key)
			store.IsDone(key)
		}(i)
	}
	wg.Wait()

	if store.Count() == 0 {
		t.Error("Count() = 0 after concurrent marks")
	}
}
