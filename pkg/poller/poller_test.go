package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/newsrelay/pkg/domain"
	"github.com/umputun/newsrelay/pkg/poller/mocks"
)

func strPtr(s string) *string { return &s }

func testEvents() []domain.Event {
	return []domain.Event{
		{Headline: "Gameplay Patch 7.35d", Body: strPtr("[list][*]Fixed a bug.[/list]")},
		{Headline: "Dota 2 Update", Body: strPtr("old news")},
	}
}

type testDeps struct {
	source     *mocks.FeedSourceMock
	store      *mocks.SnapshotStoreMock
	dispatcher *mocks.DispatcherMock
}

func newTestPoller(events []domain.Event, fetchErr error, stored *domain.Snapshot, loadErr error) (*Poller, testDeps) {
	deps := testDeps{
		source: &mocks.FeedSourceMock{
			FetchFunc: func(ctx context.Context, url string) ([]domain.Event, error) {
				return events, fetchErr
			},
		},
		store: &mocks.SnapshotStoreMock{
			LoadFunc: func(ctx context.Context) (domain.Snapshot, error) {
				if loadErr != nil {
					return domain.Snapshot{}, loadErr
				}
				return *stored, nil
			},
			StoreFunc: func(ctx context.Context, s domain.Snapshot) error { return nil },
		},
		dispatcher: &mocks.DispatcherMock{
			DispatchFunc: func(ctx context.Context, message string) (int, error) { return 1, nil },
		},
	}
	p := New(Params{
		Source:     deps.source,
		Store:      deps.store,
		Dispatcher: deps.dispatcher,
		FeedURL:    "https://example.com/events",
		Interval:   10 * time.Millisecond,
		Preamble:   "_*news*_",
	})
	return p, deps
}

func TestNew(t *testing.T) {
	p := New(Params{FeedURL: "http://example.com"})
	assert.Equal(t, 5*time.Second, p.interval)
	assert.Equal(t, StateIdle, p.State())

	p = New(Params{Interval: time.Minute})
	assert.Equal(t, time.Minute, p.interval)
}

func TestHasChanged(t *testing.T) {
	a := domain.NewSnapshot([]string{"A", "B"})
	tbl := []struct {
		name     string
		previous *domain.Snapshot
		current  domain.Snapshot
		want     bool
	}{
		{name: "no previous", previous: nil, current: a, want: false},
		{name: "same", previous: &a, current: domain.NewSnapshot([]string{"A", "B"}), want: false},
		{name: "new headline", previous: &a, current: domain.NewSnapshot([]string{"C", "A", "B"}), want: true},
		{name: "reordered", previous: &a, current: domain.NewSnapshot([]string{"B", "A"}), want: true},
		{name: "edited", previous: &a, current: domain.NewSnapshot([]string{"A", "B!"}), want: true},
		{name: "empty current", previous: &a, current: domain.NewSnapshot(nil), want: true},
	}
	for _, tt := range tbl {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasChanged(tt.previous, tt.current))
		})
	}
}

func TestPoller_RunCycle(t *testing.T) {
	t.Run("unchanged feed", func(t *testing.T) {
		stored := domain.SnapshotFromEvents(testEvents())
		p, deps := newTestPoller(testEvents(), nil, &stored, nil)

		res := p.RunCycle(context.Background())
		assert.False(t, res.Changed)
		assert.False(t, res.Baseline)
		require.NoError(t, res.Err)
		assert.Len(t, deps.source.FetchCalls(), 1)
		assert.Equal(t, "https://example.com/events", deps.source.FetchCalls()[0].URL)
		assert.Len(t, deps.store.LoadCalls(), 1)
		assert.Empty(t, deps.store.StoreCalls())
		assert.Empty(t, deps.dispatcher.DispatchCalls())
		assert.Equal(t, StateUnchanged, p.State())
	})

	t.Run("first run stores baseline", func(t *testing.T) {
		p, deps := newTestPoller(testEvents(), nil, nil, domain.ErrSnapshotNotFound)

		res := p.RunCycle(context.Background())
		assert.True(t, res.Baseline)
		assert.False(t, res.Changed)
		require.NoError(t, res.Err)
		require.Len(t, deps.store.StoreCalls(), 1)
		assert.Equal(t, []string{"Gameplay Patch 7.35d", "Dota 2 Update"}, deps.store.StoreCalls()[0].S.Headlines())
		assert.Empty(t, deps.dispatcher.DispatchCalls())
	})

	t.Run("unreadable snapshot stores baseline", func(t *testing.T) {
		loadErr := &domain.StorageError{Op: "load", Err: errors.New("corrupted")}
		p, deps := newTestPoller(testEvents(), nil, nil, loadErr)

		res := p.RunCycle(context.Background())
		assert.True(t, res.Baseline)
		assert.Len(t, deps.store.StoreCalls(), 1)
		assert.Empty(t, deps.dispatcher.DispatchCalls())
	})

	t.Run("changed feed delivers newest event", func(t *testing.T) {
		stored := domain.NewSnapshot([]string{"Dota 2 Update"})
		p, deps := newTestPoller(testEvents(), nil, &stored, nil)

		res := p.RunCycle(context.Background())
		assert.True(t, res.Changed)
		assert.Equal(t, 1, res.Sent)
		assert.Equal(t, "Gameplay Patch 7.35d", res.Headline)
		require.NoError(t, res.Err)

		require.Len(t, deps.store.StoreCalls(), 1)
		assert.Equal(t, 2, deps.store.StoreCalls()[0].S.Len())
		require.Len(t, deps.dispatcher.DispatchCalls(), 1)
		assert.Equal(t, "_*news*_\n\n*Gameplay Patch 7\\.35d*\n📌Fixed a bug\\.", deps.dispatcher.DispatchCalls()[0].Message)
		assert.Equal(t, StateDispatching, p.State())
	})

	t.Run("store failure still delivers", func(t *testing.T) {
		stored := domain.NewSnapshot([]string{"Dota 2 Update"})
		p, deps := newTestPoller(testEvents(), nil, &stored, nil)
		storeErr := &domain.StorageError{Op: "store", Err: errors.New("disk full")}
		deps.store.StoreFunc = func(ctx context.Context, s domain.Snapshot) error { return storeErr }

		res := p.RunCycle(context.Background())
		assert.True(t, res.Changed)
		assert.ErrorIs(t, res.Err, storeErr)
		assert.Len(t, deps.store.StoreCalls(), 1)
		assert.Len(t, deps.dispatcher.DispatchCalls(), 1)
	})

	t.Run("fetch error aborts cycle", func(t *testing.T) {
		fetchErr := &domain.FetchError{URL: "https://example.com/events", Err: errors.New("timeout")}
		p, deps := newTestPoller(nil, fetchErr, nil, nil)

		res := p.RunCycle(context.Background())
		var fe *domain.FetchError
		require.ErrorAs(t, res.Err, &fe)
		assert.False(t, res.Changed)
		assert.Empty(t, deps.store.LoadCalls())
		assert.Empty(t, deps.store.StoreCalls())
		assert.Empty(t, deps.dispatcher.DispatchCalls())
	})

	t.Run("parse error aborts cycle", func(t *testing.T) {
		stored := domain.NewSnapshot([]string{"Dota 2 Update"})
		parseErr := &domain.ParseError{Field: "events", Err: errors.New("missing")}
		p, deps := newTestPoller([]domain.Event{}, parseErr, &stored, nil)

		res := p.RunCycle(context.Background())
		var pe *domain.ParseError
		require.ErrorAs(t, res.Err, &pe)
		assert.Empty(t, deps.store.StoreCalls())
		assert.Empty(t, deps.dispatcher.DispatchCalls())
	})

	t.Run("empty event list stores without delivery", func(t *testing.T) {
		stored := domain.NewSnapshot([]string{"Dota 2 Update"})
		p, deps := newTestPoller([]domain.Event{}, nil, &stored, nil)

		res := p.RunCycle(context.Background())
		assert.True(t, res.Changed)
		require.NoError(t, res.Err)
		require.Len(t, deps.store.StoreCalls(), 1)
		assert.Equal(t, 0, deps.store.StoreCalls()[0].S.Len())
		assert.Empty(t, deps.dispatcher.DispatchCalls())
	})

	t.Run("event without body", func(t *testing.T) {
		stored := domain.NewSnapshot([]string{"old"})
		events := []domain.Event{{Headline: "Hotfix (no notes)"}}
		p, deps := newTestPoller(events, nil, &stored, nil)

		res := p.RunCycle(context.Background())
		require.NoError(t, res.Err)
		require.Len(t, deps.dispatcher.DispatchCalls(), 1)
		assert.Equal(t, "_*news*_\n\n*Hotfix \\(no notes\\)*", deps.dispatcher.DispatchCalls()[0].Message)
	})

	t.Run("delivery error is reported", func(t *testing.T) {
		stored := domain.NewSnapshot([]string{"old"})
		p, deps := newTestPoller(testEvents(), nil, &stored, nil)
		deliveryErr := &domain.DeliveryError{Sent: 1, Total: 3, Err: errors.New("too many requests")}
		deps.dispatcher.DispatchFunc = func(ctx context.Context, message string) (int, error) { return 1, deliveryErr }

		res := p.RunCycle(context.Background())
		assert.True(t, res.Changed)
		assert.Equal(t, 1, res.Sent)
		var de *domain.DeliveryError
		require.ErrorAs(t, res.Err, &de)
		assert.Equal(t, 3, de.Total)
		assert.Len(t, deps.dispatcher.DispatchCalls(), 1, "no retry within the cycle")
		assert.Len(t, deps.store.StoreCalls(), 1)

		st := p.Status()
		assert.Equal(t, 1, st.Failures)
		assert.Equal(t, 1, st.ChunksSent)
		assert.Contains(t, st.LastError, "delivery failed after 1 of 3 chunks")
	})

	t.Run("cycle ignores caller cancellation", func(t *testing.T) {
		stored := domain.NewSnapshot([]string{"old"})
		p, deps := newTestPoller(testEvents(), nil, &stored, nil)
		deps.dispatcher.DispatchFunc = func(ctx context.Context, message string) (int, error) {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			return 1, nil
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		res := p.RunCycle(ctx)
		require.NoError(t, res.Err)
		assert.Equal(t, 1, res.Sent)
	})
}

func TestPoller_Status(t *testing.T) {
	stored := domain.NewSnapshot([]string{"old"})
	p, _ := newTestPoller(testEvents(), nil, &stored, nil)

	st := p.Status()
	assert.Equal(t, "idle", st.State)
	assert.Equal(t, "https://example.com/events", st.FeedURL)
	assert.Equal(t, "10ms", st.Interval)
	assert.Zero(t, st.Cycles)
	assert.True(t, st.LastCycle.IsZero())

	p.RunCycle(context.Background())
	st = p.Status()
	assert.Equal(t, 1, st.Cycles)
	assert.Equal(t, 1, st.Changes)
	assert.Equal(t, 1, st.ChunksSent)
	assert.Zero(t, st.Failures)
	assert.Equal(t, "Gameplay Patch 7.35d", st.LastHeadline)
	assert.False(t, st.LastCycle.IsZero())
	assert.False(t, st.LastChange.IsZero())
}

func TestPoller_TriggerCycle(t *testing.T) {
	stored := domain.SnapshotFromEvents(testEvents())
	p, deps := newTestPoller(testEvents(), nil, &stored, nil)

	res, err := p.TriggerCycle(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Changed)

	// hold the cycle inside fetch and trigger another one
	inFetch := make(chan struct{})
	release := make(chan struct{})
	deps.source.FetchFunc = func(ctx context.Context, url string) ([]domain.Event, error) {
		close(inFetch)
		<-release
		return testEvents(), nil
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.RunCycle(context.Background())
	}()

	<-inFetch
	_, err = p.TriggerCycle(context.Background())
	require.ErrorIs(t, err, ErrBusy)
	close(release)
	wg.Wait()

	assert.Len(t, deps.source.FetchCalls(), 2)
}

func TestPoller_Run(t *testing.T) {
	t.Run("runs cycles until canceled", func(t *testing.T) {
		stored := domain.SnapshotFromEvents(testEvents())
		p, deps := newTestPoller(testEvents(), nil, &stored, nil)

		var cycles atomic.Int32
		deps.source.FetchFunc = func(ctx context.Context, url string) ([]domain.Event, error) {
			cycles.Add(1)
			return testEvents(), nil
		}

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error)
		go func() { done <- p.Run(ctx) }()

		require.Eventually(t, func() bool { return cycles.Load() >= 3 }, time.Second, 5*time.Millisecond)
		cancel()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("poller did not stop")
		}
		assert.Equal(t, StateIdle, p.State())
		assert.Empty(t, deps.dispatcher.DispatchCalls())
	})

	t.Run("shutdown cuts sleep short", func(t *testing.T) {
		stored := domain.SnapshotFromEvents(testEvents())
		p, deps := newTestPoller(testEvents(), nil, &stored, nil)
		p.interval = time.Hour

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error)
		go func() { done <- p.Run(ctx) }()

		require.Eventually(t, func() bool { return p.State() == StateSleeping }, time.Second, 5*time.Millisecond)
		cancel()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("poller did not stop")
		}
		assert.Len(t, deps.source.FetchCalls(), 1)
	})

	t.Run("delivers each change once", func(t *testing.T) {
		p, deps := newTestPoller(nil, nil, nil, domain.ErrSnapshotNotFound)

		// in-memory store and a feed gaining one headline on the third fetch
		var mu sync.Mutex
		var saved *domain.Snapshot
		deps.store.LoadFunc = func(ctx context.Context) (domain.Snapshot, error) {
			mu.Lock()
			defer mu.Unlock()
			if saved == nil {
				return domain.Snapshot{}, domain.ErrSnapshotNotFound
			}
			return *saved, nil
		}
		deps.store.StoreFunc = func(ctx context.Context, s domain.Snapshot) error {
			mu.Lock()
			defer mu.Unlock()
			saved = &s
			return nil
		}
		var fetches atomic.Int32
		deps.source.FetchFunc = func(ctx context.Context, url string) ([]domain.Event, error) {
			if fetches.Add(1) < 3 {
				return testEvents()[1:], nil
			}
			return testEvents(), nil
		}

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error)
		go func() { done <- p.Run(ctx) }()
		require.Eventually(t, func() bool { return fetches.Load() >= 5 }, time.Second, 5*time.Millisecond)
		cancel()
		<-done

		require.Len(t, deps.dispatcher.DispatchCalls(), 1)
		assert.Contains(t, deps.dispatcher.DispatchCalls()[0].Message, "*Gameplay Patch 7\\.35d*")
	})
}

func TestComposeMessage(t *testing.T) {
	tbl := []struct {
		name     string
		preamble string
		ev       domain.Event
		want     string
	}{
		{name: "full", preamble: "P", ev: domain.Event{Headline: "A.B", Body: strPtr("x-y")}, want: "P\n\n*A\\.B*\nx\\-y"},
		{name: "no preamble", ev: domain.Event{Headline: "A", Body: strPtr("b")}, want: "*A*\nb"},
		{name: "no body", preamble: "P", ev: domain.Event{Headline: "A"}, want: "P\n\n*A*"},
		{name: "empty body", ev: domain.Event{Headline: "A", Body: strPtr("")}, want: "*A*\n"},
		{name: "no headline", ev: domain.Event{Body: strPtr("b!")}, want: "b\\!"},
		{name: "link in body", ev: domain.Event{Headline: "A", Body: strPtr("[url=https://example.com]Example[/url]")},
			want: "*A*\n[Example](https://example.com)"},
	}
	for _, tt := range tbl {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, composeMessage(tt.preamble, tt.ev))
		})
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "fetching", StateFetching.String())
	assert.Equal(t, "comparing", StateComparing.String())
	assert.Equal(t, "unchanged", StateUnchanged.String())
	assert.Equal(t, "updating", StateUpdating.String())
	assert.Equal(t, "transcoding", StateTranscoding.String())
	assert.Equal(t, "dispatching", StateDispatching.String())
	assert.Equal(t, "sleeping", StateSleeping.String())
	assert.Equal(t, "unknown", State(42).String())
}
