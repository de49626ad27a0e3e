package fetch

import (
	"canibuy/pkg/metrics"
	"canibuy/pkg/models"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	cdpfetch "github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

type BrowserOptions struct {
	Headless       bool
	NoSandbox      bool
	ExecPath       string
	UserAgent      string
	NavTimeout     time.Duration
	SettleDelay    time.Duration
	BlockResources bool
	// MaxSessions caps concurrently running browsers across all sources.
	MaxSessions int64
	// DebugDir receives a screenshot and the HTML of failed fetches when set.
	DebugDir string
}

func DefaultBrowserOptions() BrowserOptions {
	return BrowserOptions{
		Headless:       true,
		NoSandbox:      true,
		UserAgent:      defaultUserAgent,
		NavTimeout:     20 * time.Second,
		SettleDelay:    1500 * time.Millisecond,
		BlockResources: true,
		MaxSessions:    3,
	}
}

// Browser fetches pages by driving a fresh headless Chrome per request.
type Browser struct {
	opts    BrowserOptions
	slots   *semaphore.Weighted
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewBrowser(opts BrowserOptions, log *zap.Logger, m *metrics.Metrics) *Browser {
	if opts.MaxSessions < 1 {
		opts.MaxSessions = 1
	}
	if opts.NavTimeout <= 0 {
		opts.NavTimeout = 20 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Browser{
		opts:    opts,
		slots:   semaphore.NewWeighted(opts.MaxSessions),
		log:     log,
		metrics: m,
	}
}

func (b *Browser) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.DisableGPU,
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(b.opts.UserAgent),
	)
	if b.opts.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if b.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(b.opts.ExecPath))
	}
	return opts
}

// session runs fn inside a dedicated browser process. The browser is torn down when fn
// returns, fails, or ctx is cancelled by a caller that stopped waiting.
func (b *Browser) session(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.slots.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("wait for browser slot: %w", err)
	}
	defer b.slots.Release(1)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, b.allocatorOptions()...)
	defer cancelAlloc()

	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	// start the browser outside of any navigation deadline
	if err := chromedp.Run(tabCtx); err != nil {
		return &models.FetchError{URL: "about:blank", Err: fmt.Errorf("start browser: %w", err)}
	}
	b.metrics.BrowserSessionOpened()
	defer b.metrics.BrowserSessionClosed()

	return fn(tabCtx)
}

func (b *Browser) Fetch(ctx context.Context, t Target) (*Page, error) {
	var result *Page
	err := b.session(ctx, func(tabCtx context.Context) error {
		p, err := b.load(tabCtx, t)
		if err != nil {
			b.dumpDebug(tabCtx, t.URL)
			return err
		}
		result = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (b *Browser) load(tabCtx context.Context, t Target) (*Page, error) {
	if b.opts.BlockResources {
		b.blockHeavyResources(tabCtx)
	}

	navCtx, cancel := context.WithTimeout(tabCtx, b.opts.NavTimeout)
	defer cancel()

	b.log.Debug("navigating", zap.String("url", t.URL))
	err := chromedp.Run(navCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
			return err
		}),
		b.enableBlocking(),
		chromedp.Navigate(t.URL),
	)
	if err != nil {
		return nil, b.classify(tabCtx, navCtx, t, err)
	}

	var state string
	if err := chromedp.Run(navCtx, b.waitForContent(t, &state)); err != nil {
		return nil, b.classify(tabCtx, navCtx, t, err)
	}

	var (
		html     string
		location string
		scrolled bool
	)
	err = chromedp.Run(navCtx,
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight); true`, &scrolled),
		chromedp.Sleep(b.opts.SettleDelay),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, b.classify(tabCtx, navCtx, t, err)
	}

	if IsBlocked(html, t.BlockMarkers) {
		return nil, fmt.Errorf("%w: %s", models.ErrBlocked, t.URL)
	}
	b.log.Debug("page loaded", zap.String("url", location), zap.String("state", state))
	return &Page{HTML: html, URL: location, Via: StrategyBrowser}, nil
}

// waitForContent polls until the ready or the empty selector is present.
func (b *Browser) waitForContent(t Target, state *string) chromedp.Action {
	if t.ReadySelector == "" && t.EmptySelector == "" {
		return chromedp.WaitReady("body", chromedp.ByQuery)
	}
	var checks []string
	for _, c := range []struct{ sel, name string }{{t.ReadySelector, "ready"}, {t.EmptySelector, "empty"}} {
		if c.sel == "" {
			continue
		}
		sel, _ := json.Marshal(c.sel)
		checks = append(checks, fmt.Sprintf(`if (document.querySelector(%s)) return %q;`, sel, c.name))
	}
	expr := fmt.Sprintf(`(() => { %s return false; })()`, strings.Join(checks, " "))
	return chromedp.Poll(expr, state,
		chromedp.WithPollingInterval(150*time.Millisecond),
		chromedp.WithPollingTimeout(b.opts.NavTimeout),
	)
}

func (b *Browser) classify(tabCtx, navCtx context.Context, t Target, err error) error {
	if tabCtx.Err() != nil {
		return fmt.Errorf("browser session abandoned: %w", tabCtx.Err())
	}
	if navCtx.Err() != nil || errors.Is(err, chromedp.ErrPollingTimeout) || errors.Is(err, context.DeadlineExceeded) {
		// a challenge page never renders the results selector
		if b.looksBlocked(tabCtx, t) {
			return fmt.Errorf("%w: %s", models.ErrBlocked, t.URL)
		}
		return fmt.Errorf("%w: %s after %s", models.ErrNavigationTimeout, t.URL, b.opts.NavTimeout)
	}
	return &models.FetchError{URL: t.URL, Err: err}
}

func (b *Browser) looksBlocked(tabCtx context.Context, t Target) bool {
	ctx, cancel := context.WithTimeout(tabCtx, 5*time.Second)
	defer cancel()

	var html string
	if err := chromedp.Run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return false
	}
	return IsBlocked(html, t.BlockMarkers)
}

func (b *Browser) enableBlocking() chromedp.Action {
	if !b.opts.BlockResources {
		return chromedp.ActionFunc(func(context.Context) error { return nil })
	}
	return cdpfetch.Enable().WithPatterns([]*cdpfetch.RequestPattern{
		{URLPattern: "*", ResourceType: network.ResourceTypeImage},
		{URLPattern: "*", ResourceType: network.ResourceTypeFont},
		{URLPattern: "*", ResourceType: network.ResourceTypeMedia},
	})
}

// blockHeavyResources fails every request paused by the patterns in enableBlocking.
func (b *Browser) blockHeavyResources(tabCtx context.Context) {
	chromedp.ListenTarget(tabCtx, func(ev any) {
		e, ok := ev.(*cdpfetch.EventRequestPaused)
		if !ok {
			return
		}
		go func() {
			_ = chromedp.Run(tabCtx, cdpfetch.FailRequest(e.RequestID, network.ErrorReasonBlockedByClient))
		}()
	})
}

func (b *Browser) dumpDebug(tabCtx context.Context, target string) {
	if b.opts.DebugDir == "" || tabCtx.Err() != nil {
		return
	}
	debugCtx, cancel := context.WithTimeout(tabCtx, 15*time.Second)
	defer cancel()

	host := "page"
	if u, err := url.Parse(target); err == nil && u.Host != "" {
		host = strings.ReplaceAll(u.Host, ".", "_")
	}
	base := filepath.Join(b.opts.DebugDir, fmt.Sprintf("%s_%d", host, time.Now().UnixMilli()))

	var buf []byte
	if err := chromedp.Run(debugCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
		b.log.Warn("failed to capture screenshot", zap.Error(err))
	} else if err := os.WriteFile(base+".png", buf, 0o644); err != nil {
		b.log.Warn("failed to write screenshot", zap.Error(err))
	}

	var html string
	if err := chromedp.Run(debugCtx, chromedp.Evaluate(`document.documentElement.outerHTML`, &html)); err != nil {
		b.log.Warn("failed to capture HTML", zap.Error(err))
	} else if err := os.WriteFile(base+".html", []byte(html), 0o644); err != nil {
		b.log.Warn("failed to write HTML", zap.Error(err))
	}
	b.log.Info("saved debug snapshot", zap.String("path", base))
}
