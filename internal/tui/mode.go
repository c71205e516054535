package tui

import (
	"io"
	"os"
	"runtime"
	"strings"
)

// OutputMode describes how progress output should be rendered.
type OutputMode int

const (
	// ModeTUI redraws a live progress table.
	ModeTUI OutputMode = iota
	// ModePlain writes one line per event.
	ModePlain
	// ModeJSON writes a single JSON document when the command finishes.
	ModeJSON
)

func (m OutputMode) String() string {
	switch m {
	case ModeTUI:
		return "tui"
	case ModePlain:
		return "plain"
	case ModeJSON:
		return "json"
	default:
		return "unknown"
	}
}

// DetectMode picks the output mode for out. CI builds never get the live
// table even when they allocate a terminal.
func DetectMode(out io.Writer, noProgress, jsonOutput, ciBuild bool) OutputMode {
	switch {
	case jsonOutput:
		return ModeJSON
	case noProgress, ciBuild:
		return ModePlain
	}
	if !IsTerminal(out) {
		return ModePlain
	}
	if runtime.GOOS != "windows" {
		term := os.Getenv("TERM")
		if term == "" || strings.EqualFold(term, "dumb") {
			return ModePlain
		}
	}
	return ModeTUI
}

// IsTerminal reports whether w is a character device.
func IsTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := file.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
