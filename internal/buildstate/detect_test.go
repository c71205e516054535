package buildstate

import (
	"os"
	"path/filepath"
	"testing"
)

func recorded(t *testing.T, contents string) (*State, string) {
	t.Helper()
	output := filepath.Join(t.TempDir(), "app.deps.json")
	if err := os.WriteFile(output, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	st := emptyState()
	st.Record(output, Entry{Format: "json", Digest: "blake3-1"})
	return st, output
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(t *testing.T, output string)
		digest string
		format string
		force  bool
		want   Decision
	}{
		{name: "up to date", digest: "blake3-1", format: "json", want: Decision{ActionSkip, ReasonUpToDate}},
		{name: "forced", digest: "blake3-1", format: "json", force: true, want: Decision{ActionWrite, ReasonForced}},
		{name: "content changed", digest: "blake3-2", format: "json", want: Decision{ActionWrite, ReasonContentChanged}},
		{name: "format changed", digest: "blake3-1", format: "cbor", want: Decision{ActionWrite, ReasonFormatChanged}},
		{
			name:   "output missing",
			setup:  func(t *testing.T, output string) { os.Remove(output) },
			digest: "blake3-1", format: "json",
			want: Decision{ActionWrite, ReasonOutputMissing},
		},
		{
			name: "output modified",
			setup: func(t *testing.T, output string) {
				if err := os.WriteFile(output, []byte("edited by hand"), 0o644); err != nil {
					t.Fatal(err)
				}
			},
			digest: "blake3-1", format: "json",
			want: Decision{ActionWrite, ReasonOutputModified},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, output := recorded(t, "{}\n")
			if tt.setup != nil {
				tt.setup(t, output)
			}
			got := Detect(st, output, tt.digest, tt.format, tt.force)
			if got != tt.want {
				t.Errorf("Detect() = %+v, want %+v", got, tt.want)
			}
			if got.Write() != (tt.want.Action == ActionWrite) {
				t.Errorf("Write() = %v", got.Write())
			}
		})
	}
}

func TestDetectNewManifest(t *testing.T) {
	got := Detect(emptyState(), filepath.Join(t.TempDir(), "new.deps.json"), "blake3-1", "json", false)
	if got.Action != ActionWrite || got.Reason != ReasonNew {
		t.Errorf("Detect() = %+v, want write/new", got)
	}
}
