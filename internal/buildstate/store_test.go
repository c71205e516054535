package buildstate

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsEmpty(t *testing.T) {
	st, err := Load(filepath.Join(t.TempDir(), "nonexistent.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(st.Manifests) != 0 {
		t.Errorf("expected empty manifests, got %d", len(st.Manifests))
	}
}

func TestLoadCorruptFileReturnsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.json")
	if err := os.WriteFile(path, []byte("{invalid json"), 0o644); err != nil {
		t.Fatal(err)
	}

	st, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Manifests == nil || len(st.Manifests) != 0 {
		t.Errorf("expected empty manifests, got %v", st.Manifests)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".depctx", FileName)
	output := filepath.Join(dir, "app.deps.json")
	if err := os.WriteFile(output, []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	now := time.Now().Truncate(time.Second)
	st := emptyState()
	st.Record(output, Entry{Project: "app.yaml", Format: "json", Digest: "blake3-abc", BuiltAt: now})

	if err := st.Save(path); err != nil {
		t.Fatalf("save error: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("expected .tmp file to not exist")
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	entry, ok := loaded.Manifests[output]
	if !ok {
		t.Fatal("manifest not found after round trip")
	}
	if entry.Digest != "blake3-abc" || entry.Format != "json" || entry.Project != "app.yaml" {
		t.Errorf("unexpected entry %+v", entry)
	}
	if entry.Size != 3 {
		t.Errorf("size: got %d, want 3", entry.Size)
	}
	if !entry.BuiltAt.Equal(now) {
		t.Errorf("built_at: got %v, want %v", entry.BuiltAt, now)
	}
}

func TestPruneMissing(t *testing.T) {
	dir := t.TempDir()
	kept := filepath.Join(dir, "kept.deps.json")
	if err := os.WriteFile(kept, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	st := emptyState()
	st.Record(kept, Entry{Digest: "a"})
	st.Record(filepath.Join(dir, "gone.deps.json"), Entry{Digest: "b"})

	if removed := st.PruneMissing(); removed != 1 {
		t.Fatalf("removed %d, want 1", removed)
	}
	if _, ok := st.Manifests[kept]; !ok {
		t.Fatal("existing manifest should be kept")
	}
}
