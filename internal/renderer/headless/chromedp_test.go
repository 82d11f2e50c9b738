package headless

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/pdfchunker/internal/pagination"
)

func TestNewChromedpValidation(t *testing.T) {
	t.Parallel()

	_, err := NewChromedp(Config{}, nil)
	require.Error(t, err)
	_, err = NewChromedp(Config{URL: "http://localhost", MaxTabs: -1}, nil)
	require.Error(t, err)
	_, err = NewChromedp(Config{URL: "http://localhost", RenderQPS: -1}, nil)
	require.Error(t, err)
	_, err = NewChromedp(Config{URL: "http://localhost", WaitUntil: "networkidle5"}, nil)
	require.ErrorContains(t, err, "unsupported wait condition")

	r, err := NewChromedp(Config{URL: "http://localhost", MaxTabs: 3, RenderQPS: 2}, nil)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, 3, cap(r.slots))
	assert.Equal(t, 3, cap(r.idle))
	require.NotNil(t, r.limiter)
}

func TestWithDefaults(t *testing.T) {
	t.Parallel()

	cfg := withDefaults(Config{URL: "http://localhost"})
	assert.Equal(t, 1, cfg.MaxTabs)
	assert.Equal(t, defaultNavigationTimeout, cfg.NavigationTimeout)
	assert.Equal(t, "body", cfg.WaitSelector)
	assert.Equal(t, "load", cfg.WaitUntil)

	cfg = withDefaults(Config{MaxTabs: 4, NavigationTimeout: time.Second, WaitSelector: "#app", WaitUntil: " NetworkIdle2 "})
	assert.Equal(t, 4, cfg.MaxTabs)
	assert.Equal(t, time.Second, cfg.NavigationTimeout)
	assert.Equal(t, "#app", cfg.WaitSelector)
	assert.Equal(t, "networkidle2", cfg.WaitUntil)
}

func TestLifecycleEvents(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"load":             "",
		"domcontentloaded": "DOMContentLoaded",
		"networkidle":      "networkIdle",
		"networkidle0":     "networkIdle",
		"networkidle2":     "networkAlmostIdle",
	}
	for waitUntil, event := range tests {
		got, ok := lifecycleEvents[waitUntil]
		require.True(t, ok, waitUntil)
		assert.Equal(t, event, got, waitUntil)
	}
	assert.Len(t, lifecycleEvents, len(tests))
}

func TestIsRangeExceeded(t *testing.T) {
	t.Parallel()

	assert.False(t, isRangeExceeded(nil))
	assert.True(t, isRangeExceeded(errors.New("Page range exceeds page count (-32000)")))
	assert.True(t, isRangeExceeded(fmt.Errorf("print: %w", errors.New("page range exceeds page count"))))
	assert.False(t, isRangeExceeded(errors.New("Page range syntax error")))
}

func TestPrepareActions(t *testing.T) {
	t.Parallel()

	r := &Renderer{cfg: withDefaults(Config{URL: "http://localhost"})}
	base := len(r.prepareActions())

	r.cfg.UserAgent = "pdfchunker-test"
	r.cfg.PrintMedia = true
	r.cfg.SettleDelay = time.Millisecond
	assert.Equal(t, base+3, len(r.prepareActions()))

	r.cfg.WaitUntil = "domcontentloaded"
	assert.Equal(t, base+3, len(r.prepareActions()), "wait condition swaps the navigation action")
}

func newPoolRenderer(maxTabs int, opened *int32) *Renderer {
	return newSlowPoolRenderer(maxTabs, 0, opened)
}

// newSlowPoolRenderer fakes tabs whose page load takes loadTime.
func newSlowPoolRenderer(maxTabs int, loadTime time.Duration, opened *int32) *Renderer {
	r := &Renderer{
		logger: zap.NewNop(),
		slots:  make(chan struct{}, maxTabs),
		idle:   make(chan *tab, maxTabs),
	}
	r.open = func(ctx context.Context) (*tab, error) {
		select {
		case <-time.After(loadTime):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		atomic.AddInt32(opened, 1)
		tabCtx, cancel := context.WithCancel(context.Background())
		return &tab{ctx: tabCtx, cancel: cancel}, nil
	}
	return r
}

func TestAcquireReusesIdleTabs(t *testing.T) {
	t.Parallel()

	var opened int32
	r := newPoolRenderer(2, &opened)
	ctx := context.Background()

	first, err := r.acquire(ctx)
	require.NoError(t, err)
	r.release(first)
	second, err := r.acquire(ctx)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&opened))
}

func TestAcquireBlocksUntilSlotFrees(t *testing.T) {
	t.Parallel()

	var opened int32
	r := newPoolRenderer(1, &opened)

	held, err := r.acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = r.acquire(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	r.discard(held)
	require.Error(t, held.ctx.Err(), "discarded tab is closed")
	fresh, err := r.acquire(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, held, fresh)
	assert.Equal(t, int32(2), atomic.LoadInt32(&opened))
}

func TestAcquireOpenFailureFreesSlot(t *testing.T) {
	t.Parallel()

	r := &Renderer{slots: make(chan struct{}, 1), idle: make(chan *tab, 1)}
	r.open = func(context.Context) (*tab, error) { return nil, errors.New("no browser") }

	_, err := r.acquire(context.Background())
	require.Error(t, err)
	assert.Len(t, r.slots, 0)
}

func TestPrepareLoadsTabsBeforeRenderDeadline(t *testing.T) {
	t.Parallel()

	var opened int32
	r := newSlowPoolRenderer(2, 60*time.Millisecond, &opened)
	require.NoError(t, r.Prepare(context.Background()))
	assert.Equal(t, int32(2), atomic.LoadInt32(&opened))
	assert.Len(t, r.idle, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	tb, err := r.acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, ctx.Err(), "render deadline still has budget for the print")
	r.release(tb)

	require.NoError(t, r.Prepare(context.Background()))
	assert.Equal(t, int32(2), atomic.LoadInt32(&opened), "prepared tabs are kept")
}

func TestPrepareFailureFreesSlots(t *testing.T) {
	t.Parallel()

	r := &Renderer{logger: zap.NewNop(), slots: make(chan struct{}, 2), idle: make(chan *tab, 2)}
	r.open = func(context.Context) (*tab, error) { return nil, errors.New("navigation failed") }

	err := r.Prepare(context.Background())
	require.ErrorContains(t, err, "navigation failed")
	assert.Len(t, r.slots, 0)
	assert.Len(t, r.idle, 0)
}

func TestPrepareStopsOnCancel(t *testing.T) {
	t.Parallel()

	var opened int32
	r := newSlowPoolRenderer(1, time.Minute, &opened)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := r.Prepare(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, atomic.LoadInt32(&opened))
	assert.Len(t, r.slots, 0)
}

func TestAcquireAfterClose(t *testing.T) {
	t.Parallel()

	r, err := NewChromedp(Config{URL: "http://localhost"}, nil)
	require.NoError(t, err)
	r.Close()
	r.Close()
	_, err = r.acquire(context.Background())
	require.ErrorIs(t, err, errRendererClosed)
	require.ErrorIs(t, r.Prepare(context.Background()), errRendererClosed)
}

func chromeAvailable() bool {
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "headless-shell"} {
		if _, err := exec.LookPath(name); err == nil {
			return true
		}
	}
	return false
}

func TestRenderAgainstLocalPage(t *testing.T) {
	if testing.Short() || !chromeAvailable() {
		t.Skip("chrome not available")
	}

	var body strings.Builder
	body.WriteString("<html><body>")
	for i := 0; i < 300; i++ {
		fmt.Fprintf(&body, "<p>line %d</p>", i)
	}
	body.WriteString("</body></html>")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(body.String()))
	}))
	defer srv.Close()

	r, err := NewChromedp(Config{URL: srv.URL, MaxTabs: 1, Headless: true, PrintMedia: true, WaitUntil: "networkidle0"}, nil)
	require.NoError(t, err)
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	require.NoError(t, r.Prepare(ctx))

	data, err := r.Render(ctx, pagination.Range{Start: 1, End: 1})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "%PDF"))

	_, err = r.Render(ctx, pagination.Range{Start: 900, End: 910})
	require.ErrorIs(t, err, pagination.ErrRangeExceeded)
}
