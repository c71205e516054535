package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
)

const DefaultSeenCacheSize = 65536

// Feed is a NuGet v3 service index to clone.
type Feed struct {
	Name string
	URL  string
}

// Label is the name shown in progress output.
func (f Feed) Label() string {
	if f.Name != "" {
		return f.Name
	}
	return f.URL
}

type EventKind string

const (
	EventListing     EventKind = "listing"
	EventListed      EventKind = "listed"
	EventDownloading EventKind = "downloading"
	EventDownloaded  EventKind = "downloaded"
	EventRetrying    EventKind = "retrying"
	EventDuplicate   EventKind = "duplicate"
	EventFailed      EventKind = "failed"
	EventFeedDone    EventKind = "done"
	EventFeedFailed  EventKind = "feed-failed"
)

// Event describes progress on a single feed. Package is empty for feed
// level events. Count is the number of packages listed for EventListed and
// the attempt number for EventRetrying.
type Event struct {
	Feed    string
	Kind    EventKind
	Package Package
	Count   int
	Err     error
}

// Reporter receives events from concurrently running feeds.
type Reporter interface {
	Report(Event)
}

type ReporterFunc func(Event)

func (f ReporterFunc) Report(e Event) { f(e) }

type nopReporter struct{}

func (nopReporter) Report(Event) {}

// FeedResult summarises one feed.
type FeedResult struct {
	Feed       Feed
	Listed     int
	Duplicates int
	Report     Report
	Err        error
}

// Result summarises a mirror run.
type Result struct {
	Feeds []FeedResult
}

// Downloaded is the number of packages stored across all feeds.
func (r Result) Downloaded() int {
	n := 0
	for _, f := range r.Feeds {
		n += f.Report.Succeeded
	}
	return n
}

// Failed is the number of packages that could not be stored.
func (r Result) Failed() int {
	n := 0
	for _, f := range r.Feeds {
		n += len(f.Report.Failures)
	}
	return n
}

// Mirror clones feeds into a Sink.
type Mirror struct {
	Sink     Sink
	Pool     Pool
	HTTP     *http.Client
	PageSize int
	// SeenCacheSize bounds the cross-feed duplicate cache.
	SeenCacheSize int
	Reporter      Reporter
	Logger        *log.Logger
}

// Run clones every feed concurrently. A package already stored from another
// feed in this run is skipped; a package whose download failed on one feed
// is still taken from any other feed that lists it. The returned error joins
// every feed and package failure; the Result is complete either way.
func (m *Mirror) Run(ctx context.Context, feeds []Feed) (Result, error) {
	if m.Sink == nil {
		return Result{}, errors.New("mirror sink is required")
	}
	size := m.SeenCacheSize
	if size <= 0 {
		size = DefaultSeenCacheSize
	}
	seen, err := newClaimSet(size)
	if err != nil {
		return Result{}, fmt.Errorf("create seen cache: %w", err)
	}

	result := Result{Feeds: make([]FeedResult, len(feeds))}
	var g errgroup.Group
	for i, feed := range feeds {
		result.Feeds[i].Feed = feed
		g.Go(func() error {
			m.cloneFeed(ctx, feed, seen, &result.Feeds[i])
			return result.Feeds[i].Err
		})
	}
	_ = g.Wait()
	for i := range result.Feeds {
		m.finishFeed(&result.Feeds[i], seen)
	}

	var errs []error
	for _, fr := range result.Feeds {
		if fr.Err != nil {
			errs = append(errs, fmt.Errorf("feed %s: %w", fr.Feed.Label(), fr.Err))
		}
		if err := fr.Report.Err(); err != nil {
			errs = append(errs, fmt.Errorf("feed %s: %w", fr.Feed.Label(), err))
		}
	}
	return result, errors.Join(errs...)
}

func (m *Mirror) cloneFeed(ctx context.Context, feed Feed, seen *claimSet, out *FeedResult) {
	label := feed.Label()
	report := m.reporter()

	client := NewFeedClient(feed.URL, m.HTTP)
	if m.PageSize > 0 {
		client.PageSize = m.PageSize
	}

	report.Report(Event{Feed: label, Kind: EventListing})
	packages, err := client.ListPackages(ctx)
	if err != nil {
		out.Err = err
		m.logf("feed %s: %v", label, err)
		report.Report(Event{Feed: label, Kind: EventFeedFailed, Err: err})
		return
	}
	out.Listed = len(packages)
	report.Report(Event{Feed: label, Kind: EventListed, Count: len(packages)})
	m.logf("feed %s: %d package(s)", label, len(packages))

	jobs := make([]Job, 0, len(packages))
	for _, pkg := range packages {
		if seen.stored(pkg.key()) {
			out.Duplicates++
			report.Report(Event{Feed: label, Kind: EventDuplicate, Package: pkg})
			continue
		}
		jobs = append(jobs, Job{
			Key: pkg.String(),
			Do:  m.downloadJob(client, label, pkg, seen),
		})
	}

	pool := m.Pool
	pool.OnRetry = func(key string, attempt int, err error) {
		m.logf("feed %s: retrying %s (%d): %v", label, key, attempt, err)
		pkg := packageFromKey(key)
		report.Report(Event{Feed: label, Kind: EventRetrying, Package: pkg, Count: attempt, Err: err})
	}
	out.Report = pool.Run(ctx, jobs)
	out.Duplicates += out.Report.Skipped
}

// finishFeed settles a listed feed and reports its outcome. Failures are
// only final once every feed has finished: packages another feed went on to
// store count as duplicates.
func (m *Mirror) finishFeed(fr *FeedResult, seen *claimSet) {
	if fr.Err != nil {
		return
	}
	label := fr.Feed.Label()
	report := m.reporter()

	var kept []Failure
	for _, f := range fr.Report.Failures {
		pkg := packageFromKey(f.Key)
		if seen.stored(pkg.key()) {
			fr.Duplicates++
			report.Report(Event{Feed: label, Kind: EventDuplicate, Package: pkg})
			continue
		}
		kept = append(kept, f)
		m.logf("feed %s: %v", label, f)
		report.Report(Event{Feed: label, Kind: EventFailed, Package: pkg, Err: f.Err})
	}
	fr.Report.Failures = kept
	report.Report(Event{Feed: label, Kind: EventFeedDone, Count: fr.Report.Succeeded})
}

func (m *Mirror) downloadJob(client *FeedClient, label string, pkg Package, seen *claimSet) func(context.Context) error {
	return func(ctx context.Context) (err error) {
		owned, err := seen.acquire(ctx, pkg.key())
		if err != nil {
			return err
		}
		if !owned {
			m.reporter().Report(Event{Feed: label, Kind: EventDuplicate, Package: pkg})
			return ErrSkip
		}
		defer func() { seen.release(pkg.key(), err == nil) }()

		m.reporter().Report(Event{Feed: label, Kind: EventDownloading, Package: pkg})
		body, err := client.Download(ctx, pkg)
		if err != nil {
			return err
		}
		defer body.Close()
		if err = m.Sink.Put(ctx, pkg.FileName(), body); err != nil {
			return err
		}
		m.reporter().Report(Event{Feed: label, Kind: EventDownloaded, Package: pkg})
		return nil
	}
}

// claimSet tracks packages across feeds. A package is claimed by one feed
// while it downloads and only counts as stored once the sink accepted it.
type claimSet struct {
	mu       sync.Mutex
	done     *lru.Cache[string, struct{}]
	inflight map[string]chan struct{}
}

func newClaimSet(size int) (*claimSet, error) {
	done, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, err
	}
	return &claimSet{done: done, inflight: map[string]chan struct{}{}}, nil
}

func (c *claimSet) stored(key string) bool {
	return c.done.Contains(key)
}

// acquire claims key for the caller. It waits while another feed holds the
// claim and returns false once the package has been stored.
func (c *claimSet) acquire(ctx context.Context, key string) (bool, error) {
	for {
		c.mu.Lock()
		if c.done.Contains(key) {
			c.mu.Unlock()
			return false, nil
		}
		wait, busy := c.inflight[key]
		if !busy {
			c.inflight[key] = make(chan struct{})
			c.mu.Unlock()
			return true, nil
		}
		c.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}

func (c *claimSet) release(key string, stored bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if stored {
		c.done.Add(key, struct{}{})
	}
	if wait, ok := c.inflight[key]; ok {
		close(wait)
		delete(c.inflight, key)
	}
}

func (m *Mirror) reporter() Reporter {
	if m.Reporter == nil {
		return nopReporter{}
	}
	return m.Reporter
}

func (m *Mirror) logf(format string, args ...any) {
	if m.Logger != nil {
		m.Logger.Printf(format, args...)
	}
}

// packageFromKey reverses Package.String.
func packageFromKey(key string) Package {
	id, version, _ := strings.Cut(key, " ")
	return Package{ID: id, Version: version}
}

// LogReporter writes one line per package event to w.
func LogReporter(w io.Writer) Reporter {
	var mu sync.Mutex
	return ReporterFunc(func(e Event) {
		var line string
		switch e.Kind {
		case EventListed:
			line = fmt.Sprintf("%s: %d package(s) listed", e.Feed, e.Count)
		case EventDownloading:
			line = fmt.Sprintf("Downloading %s...", e.Package)
		case EventDownloaded:
			line = fmt.Sprintf("Downloaded %s", e.Package)
		case EventRetrying:
			line = fmt.Sprintf("Retrying %s (%d): %v", e.Package, e.Count, e.Err)
		case EventFailed:
			line = fmt.Sprintf("Failed %s: %v", e.Package, e.Err)
		case EventFeedFailed:
			line = fmt.Sprintf("%s: %v", e.Feed, e.Err)
		case EventFeedDone:
			line = fmt.Sprintf("%s: done, %d package(s) downloaded", e.Feed, e.Count)
		default:
			return
		}
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintln(w, line)
	})
}
