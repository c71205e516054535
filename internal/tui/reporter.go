package tui

import (
	"strconv"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"depctx/internal/mirror"
)

const (
	StatusPending     = "pending"
	StatusListing     = "listing"
	StatusDownloading = "downloading"
	StatusRetrying    = "retrying"
	StatusDone        = "done"
	StatusPartial     = "partial"
	StatusFailed      = "failed"
)

// MirrorColumns is the table layout of the mirror progress view.
var MirrorColumns = []Column{
	{Header: "FEED", Width: 28},
	{Header: "STATUS", Width: 11},
	{Header: "LISTED", Width: 6},
	{Header: "DONE", Width: 6},
	{Header: "DUPES", Width: 5},
	{Header: "FAILED", Width: 6},
	{Header: "CURRENT", Width: 36},
}

// NewMirrorModel returns a progress model with one pending row per feed.
func NewMirrorModel(title string, feeds []mirror.Feed) ProgressModel {
	m := NewProgressModel(title, MirrorColumns, StatusDone, StatusPartial, StatusFailed)
	for _, f := range feeds {
		m.AddRow(f.Label(), []string{f.Label(), StatusPending, "-", "0", "0", "0", "-"})
	}
	return m
}

type feedState struct {
	status  string
	listed  int
	done    int
	dupes   int
	failed  int
	current string
}

// MirrorReporter turns mirror events into row updates. It is safe for use
// by concurrently running feeds.
type MirrorReporter struct {
	send  func(tea.Msg)
	mu    sync.Mutex
	feeds map[string]*feedState
}

func NewMirrorReporter(send func(tea.Msg)) *MirrorReporter {
	return &MirrorReporter{send: send, feeds: map[string]*feedState{}}
}

// Report implements mirror.Reporter.
func (r *MirrorReporter) Report(e mirror.Event) {
	r.mu.Lock()
	st, ok := r.feeds[e.Feed]
	if !ok {
		st = &feedState{status: StatusPending}
		r.feeds[e.Feed] = st
	}

	switch e.Kind {
	case mirror.EventListing:
		st.status = StatusListing
	case mirror.EventListed:
		st.listed = e.Count
		st.status = StatusDownloading
	case mirror.EventDownloading:
		st.status = StatusDownloading
		st.current = e.Package.String()
	case mirror.EventDownloaded:
		st.done++
	case mirror.EventRetrying:
		st.status = StatusRetrying
		st.current = e.Package.String() + " (retry " + strconv.Itoa(e.Count) + ")"
	case mirror.EventDuplicate:
		st.dupes++
	case mirror.EventFailed:
		st.failed++
	case mirror.EventFeedDone:
		st.status = StatusDone
		if st.failed > 0 {
			st.status = StatusPartial
		}
		st.current = ""
	case mirror.EventFeedFailed:
		st.status = StatusFailed
		if e.Err != nil {
			st.current = e.Err.Error()
		}
	}
	msg := RowUpdateMsg{Key: e.Feed, Fields: st.fields()}
	r.mu.Unlock()

	r.send(msg)
}

func (s *feedState) fields() map[string]string {
	listed := "-"
	if s.status != StatusPending && s.status != StatusListing {
		listed = strconv.Itoa(s.listed)
	}
	return map[string]string{
		"STATUS":  s.status,
		"LISTED":  listed,
		"DONE":    strconv.Itoa(s.done),
		"DUPES":   strconv.Itoa(s.dupes),
		"FAILED":  strconv.Itoa(s.failed),
		"CURRENT": NonEmptyOrDash(s.current),
	}
}

var _ mirror.Reporter = (*MirrorReporter)(nil)
