package logx

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"depctx/internal/paths"
)

func TestNewWritesIntoLogsDir(t *testing.T) {
	wp, err := paths.Resolve(t.TempDir(), "")
	if err != nil {
		t.Fatal(err)
	}

	logger, closer, err := New(wp)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Printf("hello %s", "world")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(wp.LogsDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || !strings.HasSuffix(entries[0].Name(), ".log") {
		t.Fatalf("expected one .log file, got %v", entries)
	}
}

func TestTee(t *testing.T) {
	var file, term bytes.Buffer
	base := Discard()
	base.SetOutput(&file)

	Tee(base, &term).Print("both")
	if !strings.Contains(file.String(), "both") || !strings.Contains(term.String(), "both") {
		t.Fatalf("expected output in both writers: %q / %q", file.String(), term.String())
	}

	var only bytes.Buffer
	Tee(nil, &only).Print("solo")
	if !strings.Contains(only.String(), "solo") {
		t.Fatalf("expected output with nil base logger, got %q", only.String())
	}
}
