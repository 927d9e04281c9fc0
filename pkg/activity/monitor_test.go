package activity

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worshipwaves/WDweb-sub002/pkg/asset"
	"github.com/worshipwaves/WDweb-sub002/pkg/cache"
	"github.com/worshipwaves/WDweb-sub002/pkg/catalog"
	"github.com/worshipwaves/WDweb-sub002/pkg/idle/idletest"
	"github.com/worshipwaves/WDweb-sub002/pkg/prefetch"
)

type fakeController struct {
	mu      sync.Mutex
	loading bool
	pauses  int
	resumes int
}

func (c *fakeController) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pauses++
}

func (c *fakeController) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resumes++
}

func (c *fakeController) IsLoading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

func (c *fakeController) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pauses, c.resumes
}

func press() Event { return Event{Kind: KindPress} }

func TestMonitorDebounces(t *testing.T) {
	clk := clockwork.NewFakeClock()
	b := NewBroadcaster()
	ctl := &fakeController{}
	m := NewMonitor(b, ctl, clk, DefaultConfig())
	m.Start()
	defer m.Stop()

	b.Publish(press())
	pauses, resumes := ctl.counts()
	assert.Equal(t, 1, pauses)
	assert.Zero(t, resumes)
	assert.False(t, m.Quiet())

	clk.BlockUntil(1)
	clk.Advance(500 * time.Millisecond)
	b.Publish(Event{Kind: KindKey})
	clk.BlockUntil(1)
	clk.Advance(500 * time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	_, resumes = ctl.counts()
	assert.Zero(t, resumes, "burst must keep the window open")

	clk.Advance(500 * time.Millisecond)
	require.Eventually(t, func() bool {
		_, r := ctl.counts()
		return r == 1
	}, 5*time.Second, time.Millisecond)
	assert.True(t, m.Quiet())

	pauses, _ = ctl.counts()
	assert.Equal(t, 2, pauses)
}

func TestMonitorIgnoresMove(t *testing.T) {
	clk := clockwork.NewFakeClock()
	b := NewBroadcaster()
	ctl := &fakeController{}
	m := NewMonitor(b, ctl, clk, DefaultConfig())
	m.Start()
	defer m.Stop()

	b.Publish(Event{Kind: KindMove})
	pauses, _ := ctl.counts()
	assert.Zero(t, pauses)
	assert.True(t, m.Quiet())
}

func TestMonitorDoesNotPauseWhileLoading(t *testing.T) {
	clk := clockwork.NewFakeClock()
	ctl := &fakeController{loading: true}
	m := NewMonitor(NewBroadcaster(), ctl, clk, DefaultConfig())

	m.Handle(Event{Kind: KindScroll})
	pauses, _ := ctl.counts()
	assert.Zero(t, pauses)

	// The quiet window is still armed and resumes afterwards.
	clk.BlockUntil(1)
	clk.Advance(DefaultQuietWindow)
	require.Eventually(t, func() bool {
		_, r := ctl.counts()
		return r == 1
	}, 5*time.Second, time.Millisecond)
}

func TestMonitorCustomKinds(t *testing.T) {
	ctl := &fakeController{}
	m := NewMonitor(NewBroadcaster(), ctl, clockwork.NewFakeClock(), Config{Kinds: []Kind{KindMove}})

	m.Handle(press())
	m.Handle(Event{Kind: KindMove})
	pauses, _ := ctl.counts()
	assert.Equal(t, 1, pauses)
}

func TestMonitorStop(t *testing.T) {
	clk := clockwork.NewFakeClock()
	b := NewBroadcaster()
	ctl := &fakeController{}
	m := NewMonitor(b, ctl, clk, DefaultConfig())
	m.Start()
	m.Start()
	assert.Equal(t, 1, b.Subscribers())

	b.Publish(press())
	m.Stop()
	assert.Zero(t, b.Subscribers())
	assert.True(t, m.Quiet())

	clk.Advance(time.Minute)
	b.Publish(press())
	time.Sleep(20 * time.Millisecond)
	pauses, resumes := ctl.counts()
	assert.Equal(t, 1, pauses)
	assert.Zero(t, resumes)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Press ")
	require.NoError(t, err)
	assert.Equal(t, KindPress, k)

	_, err = ParseKind("hover")
	assert.Error(t, err)
}

// Interaction while an idle request is pending cancels it; once the quiet
// window passes exactly one new request is made.
func TestInteractionWhileScheduled(t *testing.T) {
	items := []catalog.Item{{ID: "walnut", Tag: 1}, {ID: "oak", Tag: 2}}
	cat, err := catalog.New(items, catalog.DefaultTemplate())
	require.NoError(t, err)

	loads := 0
	var mu sync.Mutex
	loader := asset.LoaderFunc(func(_ context.Context, key asset.Key) (*asset.Surface, error) {
		mu.Lock()
		loads++
		mu.Unlock()
		return &asset.Surface{Key: key}, nil
	})

	clk := clockwork.NewFakeClock()
	host := idletest.New()
	c := cache.New(loader, cache.DefaultConfig(), nil)
	sched := prefetch.New(cat, c, host, clk, prefetch.DefaultConfig(), nil)
	defer sched.Stop()

	b := NewBroadcaster()
	m := NewMonitor(b, sched, clk, DefaultConfig())
	m.Start()
	defer m.Stop()

	sched.Start(0)
	require.Equal(t, 1, host.Pending())
	require.Equal(t, prefetch.StateScheduled, sched.State())

	b.Publish(Event{Kind: KindTap})

	assert.Zero(t, host.Pending())
	assert.Equal(t, 1, host.Cancelled())
	assert.Equal(t, prefetch.StatePaused, sched.State())
	assert.False(t, host.FireIdle())

	clk.BlockUntil(1)
	clk.Advance(DefaultQuietWindow)

	require.True(t, host.WaitPending(1, 5*time.Second))
	assert.Equal(t, 2, host.Requests())
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 2, host.Requests())

	mu.Lock()
	assert.Zero(t, loads)
	mu.Unlock()
}
