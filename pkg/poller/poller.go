// Package poller runs the fetch, compare, store, transcode and dispatch cycle on a fixed interval.
// At most one cycle is in flight; a cycle is never interrupted by shutdown, only the sleep between
// cycles is.
package poller

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/newsrelay/pkg/domain"
	"github.com/umputun/newsrelay/pkg/transcode"
)

//go:generate moq -out mocks/feed_source.go -pkg mocks -skip-ensure -fmt goimports . FeedSource
//go:generate moq -out mocks/snapshot_store.go -pkg mocks -skip-ensure -fmt goimports . SnapshotStore
//go:generate moq -out mocks/dispatcher.go -pkg mocks -skip-ensure -fmt goimports . Dispatcher

// ErrBusy returned by TriggerCycle when another cycle is running
var ErrBusy = errors.New("cycle in progress")

// FeedSource retrieves feed events, newest first
type FeedSource interface {
	Fetch(ctx context.Context, url string) ([]domain.Event, error)
}

// SnapshotStore keeps the last seen headlines snapshot
type SnapshotStore interface {
	Load(ctx context.Context) (domain.Snapshot, error)
	Store(ctx context.Context, s domain.Snapshot) error
}

// Dispatcher delivers a formatted message, possibly in several chunks
type Dispatcher interface {
	Dispatch(ctx context.Context, message string) (sent int, err error)
}

// Params defines poller dependencies and settings
type Params struct {
	Source     FeedSource
	Store      SnapshotStore
	Dispatcher Dispatcher
	FeedURL    string
	Interval   time.Duration
	Preamble   string // MarkdownV2 text put before every message, used as is
}

// Poller checks the feed for changes and relays the newest event
type Poller struct {
	source     FeedSource
	store      SnapshotStore
	dispatcher Dispatcher
	feedURL    string
	interval   time.Duration
	preamble   string

	cycleMu sync.Mutex // one cycle at a time

	mu     sync.RWMutex // protects state and status below
	state  State
	status Status
}

// CycleResult describes a completed cycle
type CycleResult struct {
	Changed  bool   // snapshot differs from the stored one
	Baseline bool   // no usable stored snapshot, current one saved without delivery
	Headline string // headline of the delivered event
	Sent     int    // chunks delivered
	Err      error  // last error of the cycle, if any
}

// Status is a point-in-time view of the poller
type Status struct {
	State        string    `json:"state"`
	FeedURL      string    `json:"feed_url"`
	Interval     string    `json:"interval"`
	Cycles       int       `json:"cycles"`
	Changes      int       `json:"changes"`
	ChunksSent   int       `json:"chunks_sent"`
	Failures     int       `json:"failures"`
	LastCycle    time.Time `json:"last_cycle,omitzero"`
	LastChange   time.Time `json:"last_change,omitzero"`
	LastHeadline string    `json:"last_headline,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
}

// New makes a poller. Interval defaults to 5s.
func New(params Params) *Poller {
	if params.Interval <= 0 {
		params.Interval = 5 * time.Second
	}
	return &Poller{
		source:     params.Source,
		store:      params.Store,
		dispatcher: params.Dispatcher,
		feedURL:    params.FeedURL,
		interval:   params.Interval,
		preamble:   params.Preamble,
		state:      StateIdle,
	}
}

// Run executes cycles until ctx is canceled. The first cycle starts immediately.
// Cancellation cuts the sleep short; a cycle already started is completed.
func (p *Poller) Run(ctx context.Context) error {
	lgr.Printf("[INFO] poller started for %s, interval %v", p.feedURL, p.interval)
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			p.setState(StateIdle)
			lgr.Printf("[INFO] poller stopped")
			return nil
		case <-timer.C:
		}

		p.RunCycle(ctx)
		p.setState(StateSleeping)
		timer.Reset(p.interval)
	}
}

// RunCycle runs one cycle, waiting for a cycle in flight to finish first.
// The cycle is detached from ctx cancellation, fetch and send timeouts bound it.
func (p *Poller) RunCycle(ctx context.Context) CycleResult {
	p.cycleMu.Lock()
	defer p.cycleMu.Unlock()
	return p.cycle(context.WithoutCancel(ctx))
}

// TriggerCycle runs one cycle now, or returns ErrBusy if another one is in flight
func (p *Poller) TriggerCycle(ctx context.Context) (CycleResult, error) {
	if !p.cycleMu.TryLock() {
		return CycleResult{}, ErrBusy
	}
	defer p.cycleMu.Unlock()
	return p.cycle(context.WithoutCancel(ctx)), nil
}

// State returns the current cycle state
func (p *Poller) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Status returns counters and the outcome of the last cycle
func (p *Poller) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	res := p.status
	res.State = p.state.String()
	res.FeedURL = p.feedURL
	res.Interval = p.interval.String()
	return res
}

func (p *Poller) cycle(ctx context.Context) (res CycleResult) {
	defer func() { p.record(res) }()

	p.setState(StateFetching)
	events, err := p.source.Fetch(ctx, p.feedURL)
	if err != nil {
		lgr.Printf("[WARN] failed to fetch feed %s: %v", p.feedURL, err)
		res.Err = err
		return res
	}

	p.setState(StateComparing)
	current := domain.SnapshotFromEvents(events)
	var previous *domain.Snapshot
	stored, err := p.store.Load(ctx)
	switch {
	case err == nil:
		previous = &stored
	case errors.Is(err, domain.ErrSnapshotNotFound):
		lgr.Printf("[INFO] no stored snapshot, saving baseline of %d headlines", current.Len())
	default:
		lgr.Printf("[WARN] failed to load snapshot, saving baseline: %v", err)
	}

	if previous == nil {
		p.setState(StateUpdating)
		res.Baseline = true
		if err := p.store.Store(ctx, current); err != nil {
			lgr.Printf("[WARN] failed to store baseline snapshot: %v", err)
			res.Err = err
		}
		return res
	}

	if !HasChanged(previous, current) {
		p.setState(StateUnchanged)
		lgr.Printf("[DEBUG] feed unchanged, %d headlines", current.Len())
		return res
	}

	res.Changed = true
	lgr.Printf("[INFO] feed changed, %d headlines", current.Len())
	p.setState(StateUpdating)
	if err := p.store.Store(ctx, current); err != nil {
		// delivery still goes ahead, the change may be relayed again next cycle
		lgr.Printf("[WARN] failed to store snapshot: %v", err)
		res.Err = err
	}

	p.setState(StateTranscoding)
	if len(events) == 0 {
		lgr.Printf("[INFO] feed has no events, nothing to deliver")
		return res
	}
	msg := composeMessage(p.preamble, events[0])
	res.Headline = events[0].Headline

	p.setState(StateDispatching)
	sent, err := p.dispatcher.Dispatch(ctx, msg)
	res.Sent = sent
	if err != nil {
		lgr.Printf("[ERROR] failed to deliver %q: %v", events[0].Headline, err)
		res.Err = err
		return res
	}
	lgr.Printf("[INFO] delivered %q in %d chunks", events[0].Headline, sent)
	return res
}

// HasChanged reports whether current differs from previous. A missing previous snapshot
// is not a change, the caller stores a baseline instead of delivering.
func HasChanged(previous *domain.Snapshot, current domain.Snapshot) bool {
	if previous == nil {
		return false
	}
	return !previous.Equal(current)
}

// composeMessage builds the MarkdownV2 message for ev: preamble, bold headline and the
// transcoded body. The preamble is expected to be valid MarkdownV2 already.
func composeMessage(preamble string, ev domain.Event) string {
	var sb strings.Builder
	if preamble != "" {
		sb.WriteString(preamble)
		sb.WriteString("\n\n")
	}
	if ev.Headline != "" {
		sb.WriteString("*")
		sb.WriteString(transcode.Escape(ev.Headline))
		sb.WriteString("*")
	}
	if ev.HasBody() {
		if ev.Headline != "" {
			sb.WriteString("\n")
		}
		sb.WriteString(transcode.Transcode(ev.BodyText()))
	}
	return sb.String()
}

func (p *Poller) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

func (p *Poller) record(res CycleResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.status.Cycles++
	p.status.LastCycle = now
	p.status.ChunksSent += res.Sent
	if res.Changed {
		p.status.Changes++
		p.status.LastChange = now
	}
	if res.Headline != "" {
		p.status.LastHeadline = res.Headline
	}
	if res.Err != nil {
		p.status.Failures++
		p.status.LastError = res.Err.Error()
	}
}
