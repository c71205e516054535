package tui

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// StatusWriter keeps a single spinner line updated in place. Commands use
// it for short sequential phases where a full table would be noise.
type StatusWriter struct {
	w  io.Writer
	mu sync.Mutex

	message    string
	phaseStart time.Time
	done       chan struct{}
	stopped    bool
}

// NewStatusWriter starts redrawing the status line on w every 100ms.
func NewStatusWriter(w io.Writer) *StatusWriter {
	sw := &StatusWriter{
		w:          w,
		phaseStart: time.Now(),
		done:       make(chan struct{}),
	}
	go sw.loop()
	return sw
}

// Update starts a new phase with its own elapsed timer.
func (sw *StatusWriter) Update(msg string) {
	sw.mu.Lock()
	sw.message = msg
	sw.phaseStart = time.Now()
	sw.mu.Unlock()
}

// Stop clears the line. When final is non-empty it is printed in its place.
func (sw *StatusWriter) Stop(final string) {
	sw.mu.Lock()
	if sw.stopped {
		sw.mu.Unlock()
		return
	}
	sw.stopped = true
	close(sw.done)
	fmt.Fprint(sw.w, "\r\033[K")
	if final != "" {
		fmt.Fprintln(sw.w, final)
	}
	sw.mu.Unlock()
}

func (sw *StatusWriter) loop() {
	tick := 0
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-sw.done:
			return
		case <-ticker.C:
			sw.mu.Lock()
			if sw.stopped {
				sw.mu.Unlock()
				return
			}
			spinner := spinnerFrames[tick%len(spinnerFrames)]
			fmt.Fprintf(sw.w, "\r\033[K%s %s (%s)", spinner, sw.message, formatElapsed(time.Since(sw.phaseStart)))
			sw.mu.Unlock()
			tick++
		}
	}
}

// formatElapsed formats a duration for display in the status line.
func formatElapsed(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < 10*time.Second:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	default:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
}
