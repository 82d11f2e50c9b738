// Package headless renders page ranges of a document to PDF using headless Chrome.
package headless

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/pdfchunker/internal/pagination"
)

const (
	defaultNavigationTimeout = 10 * time.Second
	defaultWaitSelector      = "body"
	defaultWaitUntil         = "load"

	freezeAnimationsJS = `(() => {
	const style = document.createElement('style');
	style.textContent = '*{animation:none!important;transition:none!important}';
	document.head.appendChild(style);
	return true;
})()`
)

// Config controls how the browser is launched and how tabs are prepared.
type Config struct {
	URL string
	// MaxTabs bounds the number of open tabs; it should match the worker count.
	MaxTabs           int
	Headless          bool
	ExecPath          string
	UserAgent         string
	PrintMedia        bool
	NavigationTimeout time.Duration
	WaitSelector      string
	// WaitUntil is load, domcontentloaded, networkidle (networkidle0) or
	// networkidle2. Empty means load.
	WaitUntil   string
	SettleDelay time.Duration
	// RenderQPS limits print calls per second across all tabs. Zero disables it.
	RenderQPS float64
}

// lifecycleEvents maps accepted WaitUntil values to the Chrome lifecycle event
// that ends navigation. "load" uses chromedp.Navigate directly.
var lifecycleEvents = map[string]string{
	"load":             "",
	"domcontentloaded": "DOMContentLoaded",
	"networkidle":      "networkIdle",
	"networkidle0":     "networkIdle",
	"networkidle2":     "networkAlmostIdle",
}

var errRendererClosed = errors.New("renderer closed")

type tab struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// Renderer implements pagination.Renderer on top of chromedp. Each worker
// borrows a prepared tab for the duration of one print call.
type Renderer struct {
	cfg     Config
	logger  *zap.Logger
	limiter *rate.Limiter

	slots chan struct{}
	idle  chan *tab
	open  func(ctx context.Context) (*tab, error)

	allocator     context.Context
	allocCancel   context.CancelFunc
	browser       context.Context
	browserCancel context.CancelFunc
	launchOnce    sync.Once
	launchErr     error

	mu     sync.Mutex
	closed bool
}

// NewChromedp creates a renderer. The browser is launched on first use.
func NewChromedp(cfg Config, logger *zap.Logger) (*Renderer, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("target url is required")
	}
	if cfg.MaxTabs < 0 {
		return nil, fmt.Errorf("max tabs must be >= 0")
	}
	if cfg.RenderQPS < 0 {
		return nil, fmt.Errorf("render qps must be >= 0")
	}
	cfg = withDefaults(cfg)
	if _, ok := lifecycleEvents[cfg.WaitUntil]; !ok {
		return nil, fmt.Errorf("unsupported wait condition %q", cfg.WaitUntil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Renderer{
		cfg:    cfg,
		logger: logger,
		slots:  make(chan struct{}, cfg.MaxTabs),
		idle:   make(chan *tab, cfg.MaxTabs),
	}
	if cfg.RenderQPS > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(cfg.RenderQPS), cfg.MaxTabs)
	}
	r.allocator, r.allocCancel = chromedp.NewExecAllocator(context.Background(), allocatorOptions(cfg)...)
	r.browser, r.browserCancel = chromedp.NewContext(r.allocator)
	r.open = r.openTab
	return r, nil
}

func withDefaults(cfg Config) Config {
	if cfg.MaxTabs == 0 {
		cfg.MaxTabs = 1
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = defaultNavigationTimeout
	}
	if strings.TrimSpace(cfg.WaitSelector) == "" {
		cfg.WaitSelector = defaultWaitSelector
	}
	cfg.WaitUntil = strings.ToLower(strings.TrimSpace(cfg.WaitUntil))
	if cfg.WaitUntil == "" {
		cfg.WaitUntil = defaultWaitUntil
	}
	return cfg
}

func allocatorOptions(cfg Config) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}

// Prepare opens and prepares every free tab slot before any print call, so
// page loads are bounded by the navigation timeout rather than a render deadline.
func (r *Renderer) Prepare(ctx context.Context) error {
	if r.isClosed() {
		return errRendererClosed
	}
	n := 0
claim:
	for {
		select {
		case r.slots <- struct{}{}:
			n++
		default:
			break claim
		}
	}

	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			t, err := r.open(ctx)
			if err != nil {
				<-r.slots
				errs[i] = err
				return
			}
			r.release(t)
		}(i)
	}
	wg.Wait()
	if err := errors.Join(errs...); err != nil {
		return err
	}
	r.logger.Info("tabs prepared", zap.Int("tabs", n), zap.String("url", r.cfg.URL))
	return nil
}

// Render prints the requested range of the target page to PDF. A tab that is
// not yet prepared is opened under ctx.
func (r *Renderer) Render(ctx context.Context, rng pagination.Range) ([]byte, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("render rate limit wait: %w", err)
		}
	}
	t, err := r.acquire(ctx)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(t.ctx)
	stop := context.AfterFunc(ctx, cancel)
	var data []byte
	err = chromedp.Run(runCtx, printAction(rng, &data))
	stop()
	cancel()

	switch {
	case err == nil:
		r.release(t)
		return data, nil
	case isRangeExceeded(err):
		r.release(t)
		return nil, fmt.Errorf("print %s: %w", rng, pagination.ErrRangeExceeded)
	default:
		r.discard(t)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("print %s: %w", rng, ctxErr)
		}
		return nil, fmt.Errorf("print %s: %w", rng, err)
	}
}

// Close closes every tab and shuts the browser down.
func (r *Renderer) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	for {
		select {
		case t := <-r.idle:
			t.cancel()
		default:
			r.browserCancel()
			r.allocCancel()
			return
		}
	}
}

// acquire returns an idle tab, or opens a new one while slots remain.
func (r *Renderer) acquire(ctx context.Context) (*tab, error) {
	if r.isClosed() {
		return nil, errRendererClosed
	}

	select {
	case t := <-r.idle:
		return t, nil
	default:
	}

	select {
	case t := <-r.idle:
		return t, nil
	case r.slots <- struct{}{}:
		t, err := r.open(ctx)
		if err != nil {
			<-r.slots
			return nil, err
		}
		return t, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("tab wait canceled: %w", ctx.Err())
	}
}

func (r *Renderer) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *Renderer) release(t *tab) {
	select {
	case r.idle <- t:
	default:
		r.discard(t)
	}
}

func (r *Renderer) discard(t *tab) {
	t.cancel()
	select {
	case <-r.slots:
	default:
	}
}

func (r *Renderer) launch() error {
	r.launchOnce.Do(func() {
		if err := chromedp.Run(r.browser); err != nil {
			r.launchErr = fmt.Errorf("launch browser: %w", err)
		}
	})
	return r.launchErr
}

// openTab creates a tab, navigates to the target and prepares it for printing.
// Cancelling ctx aborts navigation; the tab itself outlives ctx.
func (r *Renderer) openTab(ctx context.Context) (*tab, error) {
	if err := r.launch(); err != nil {
		return nil, err
	}
	tabCtx, tabCancel := chromedp.NewContext(r.browser)
	navCtx, navCancel := context.WithTimeout(tabCtx, r.cfg.NavigationTimeout)
	defer navCancel()
	stop := context.AfterFunc(ctx, navCancel)
	defer stop()

	start := time.Now()
	if err := chromedp.Run(navCtx, r.prepareActions()...); err != nil {
		tabCancel()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("prepare tab for %s: %w", r.cfg.URL, ctxErr)
		}
		return nil, fmt.Errorf("prepare tab for %s: %w", r.cfg.URL, err)
	}
	r.logger.Debug("tab prepared",
		zap.String("url", r.cfg.URL),
		zap.Duration("dur", time.Since(start)),
	)
	return &tab{ctx: tabCtx, cancel: tabCancel}, nil
}

func (r *Renderer) prepareActions() []chromedp.Action {
	actions := []chromedp.Action{}
	if r.cfg.UserAgent != "" {
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			if err := emulation.SetUserAgentOverride(r.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
			return nil
		}))
	}
	actions = append(actions,
		navigateAction(r.cfg.URL, lifecycleEvents[r.cfg.WaitUntil]),
		chromedp.WaitReady(r.cfg.WaitSelector, chromedp.ByQuery),
	)
	if r.cfg.SettleDelay > 0 {
		actions = append(actions, chromedp.Sleep(r.cfg.SettleDelay))
	}
	if r.cfg.PrintMedia {
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			if err := emulation.SetEmulatedMedia().WithMedia("print").Do(ctx); err != nil {
				return fmt.Errorf("emulate print media: %w", err)
			}
			return nil
		}))
	}
	var injected bool
	actions = append(actions, chromedp.Evaluate(freezeAnimationsJS, &injected))
	return actions
}

// navigateAction loads url and returns once the main document reaches the
// given lifecycle event. An empty event waits for load.
func navigateAction(url, event string) chromedp.Action {
	if event == "" {
		return chromedp.Navigate(url)
	}
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := page.SetLifecycleEventsEnabled(true).Do(ctx); err != nil {
			return fmt.Errorf("enable lifecycle events: %w", err)
		}
		fired := make(chan cdp.LoaderID, 32)
		listenCtx, stop := context.WithCancel(ctx)
		defer stop()
		chromedp.ListenTarget(listenCtx, func(ev any) {
			if e, ok := ev.(*page.EventLifecycleEvent); ok && e.Name == event {
				select {
				case fired <- e.LoaderID:
				default:
				}
			}
		})

		_, loaderID, errText, _, err := page.Navigate(url).Do(ctx)
		if err != nil {
			return fmt.Errorf("navigate %s: %w", url, err)
		}
		if errText != "" {
			return fmt.Errorf("navigate %s: %s", url, errText)
		}
		for {
			select {
			case id := <-fired:
				if id == loaderID {
					return nil
				}
			case <-ctx.Done():
				return fmt.Errorf("wait for %s: %w", event, ctx.Err())
			}
		}
	})
}

func printAction(rng pagination.Range, out *[]byte) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		data, _, err := page.PrintToPDF().
			WithPrintBackground(true).
			WithPreferCSSPageSize(true).
			WithPageRanges(rng.String()).
			Do(ctx)
		if err != nil {
			return err
		}
		*out = data
		return nil
	})
}

// isRangeExceeded matches the protocol error Chrome returns when every
// requested page lies past the end of the document.
func isRangeExceeded(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "page range exceeds page count")
}
