package buildstate

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// FileName is the state file kept in the workspace metadata directory.
const FileName = "build-state.json"

// Entry records the last manifest written to one output path.
type Entry struct {
	Project string    `json:"project"`
	Format  string    `json:"format"`
	Digest  string    `json:"digest"`
	Size    int64     `json:"size"`
	BuiltAt time.Time `json:"built_at"`
}

// State tracks written manifests across builds for change detection.
type State struct {
	Manifests map[string]Entry `json:"manifests"`
}

// Load reads build state from the given path. A missing or corrupt file
// returns an empty state without error.
func Load(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return emptyState(), nil
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return emptyState(), nil
	}

	if st.Manifests == nil {
		st.Manifests = map[string]Entry{}
	}
	return &st, nil
}

// Save writes the build state atomically to the given path.
func (st *State) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}

// Record stores entry for output, filling Size from the file on disk.
func (st *State) Record(output string, entry Entry) {
	if info, err := os.Stat(output); err == nil {
		entry.Size = info.Size()
	}
	st.Manifests[key(output)] = entry
}

// PruneMissing drops entries whose manifest no longer exists and returns
// how many were removed.
func (st *State) PruneMissing() int {
	removed := 0
	for path := range st.Manifests {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			delete(st.Manifests, path)
			removed++
		}
	}
	return removed
}

func emptyState() *State {
	return &State{
		Manifests: map[string]Entry{},
	}
}

func key(output string) string {
	if abs, err := filepath.Abs(output); err == nil {
		return abs
	}
	return filepath.Clean(output)
}
