package fetch

import (
	"canibuy/pkg/models"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const resultsPage = `<html><head><title>iphone | Jumia Ghana</title></head>
<body><article class="prd"><h3 class="name">iPhone 15</h3></article></body></html>`

const challengePage = `<html><head><title>Just a moment...</title></head>
<body><div id="challenge-form"></div></body></html>`

func TestStatic_Fetch(t *testing.T) {
	var got http.Header
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		fmt.Fprint(w, resultsPage)
	}))
	defer ts.Close()

	s := NewStatic(StaticOptions{Timeout: 5 * time.Second}, zaptest.NewLogger(t))
	page, err := s.Fetch(context.Background(), Target{URL: ts.URL + "/catalog/?q=iphone"})
	require.NoError(t, err)

	assert.Contains(t, page.HTML, "iPhone 15")
	assert.Equal(t, ts.URL+"/catalog/?q=iphone", page.URL)
	assert.Equal(t, StrategyStatic, page.Via)
	assert.Contains(t, got.Get("User-Agent"), "Mozilla/5.0")
	assert.Contains(t, got.Get("Accept"), "text/html")
	assert.NotEmpty(t, got.Get("Accept-Language"))
	assert.Equal(t, "no-cache", got.Get("Cache-Control"))
	assert.Empty(t, got.Get("Cookie"))
}

func TestStatic_FollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, resultsPage)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	page, err := NewStatic(StaticOptions{}, nil).Fetch(context.Background(), Target{URL: ts.URL + "/old"})
	require.NoError(t, err)
	assert.Equal(t, ts.URL+"/new", page.URL)
}

func TestStatic_Non2xx(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "maintenance")
	}))
	defer ts.Close()

	_, err := NewStatic(StaticOptions{}, nil).Fetch(context.Background(), Target{URL: ts.URL})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrFetch)

	var fe *models.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusServiceUnavailable, fe.StatusCode)
}

func TestStatic_NetworkFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()

	_, err := NewStatic(StaticOptions{}, nil).Fetch(context.Background(), Target{URL: url})
	assert.ErrorIs(t, err, models.ErrFetch)
}

func TestStatic_BlockPage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, challengePage)
	}))
	defer ts.Close()

	_, err := NewStatic(StaticOptions{}, nil).Fetch(context.Background(), Target{URL: ts.URL})
	assert.ErrorIs(t, err, models.ErrBlocked)
	assert.NotErrorIs(t, err, models.ErrFetch)
}

func TestIsBlocked(t *testing.T) {
	assert.True(t, IsBlocked(challengePage, nil))
	assert.True(t, IsBlocked(`<html><head><title>Are you a robot?</title></head></html>`, nil))
	assert.True(t, IsBlocked(`<html><body>Please solve the puzzle: jiji-shield</body></html>`, []string{"JIJI-SHIELD"}))
	assert.False(t, IsBlocked(resultsPage, nil))
	assert.False(t, IsBlocked(resultsPage, []string{""}))
}

func TestWithFallback(t *testing.T) {
	blocked := FetcherFunc(func(ctx context.Context, t Target) (*Page, error) {
		return nil, fmt.Errorf("%w: %s", models.ErrBlocked, t.URL)
	})
	var fallbackURL string
	static := FetcherFunc(func(ctx context.Context, t Target) (*Page, error) {
		fallbackURL = t.URL
		return &Page{HTML: resultsPage, URL: t.URL, Via: StrategyStatic}, nil
	})

	f := WithFallback(blocked, static, zaptest.NewLogger(t))
	page, err := f.Fetch(context.Background(), Target{URL: "https://jiji.com.gh/search?query=tv", FallbackURL: "https://m.jiji.com.gh/search?query=tv"})
	require.NoError(t, err)
	assert.Equal(t, "https://m.jiji.com.gh/search?query=tv", fallbackURL)
	assert.Equal(t, StrategyStatic, page.Via)

	// no fallback url configured
	_, err = f.Fetch(context.Background(), Target{URL: "https://jiji.com.gh/search?query=tv"})
	assert.ErrorIs(t, err, models.ErrBlocked)
}

func TestWithFallback_OnlyOnBlock(t *testing.T) {
	timeout := FetcherFunc(func(ctx context.Context, t Target) (*Page, error) {
		return nil, models.ErrNavigationTimeout
	})
	called := false
	static := FetcherFunc(func(ctx context.Context, t Target) (*Page, error) {
		called = true
		return &Page{}, nil
	})

	_, err := WithFallback(timeout, static, nil).Fetch(context.Background(), Target{URL: "a", FallbackURL: "b"})
	assert.ErrorIs(t, err, models.ErrNavigationTimeout)
	assert.False(t, called)
}

func TestWithFallback_BothFail(t *testing.T) {
	blocked := FetcherFunc(func(ctx context.Context, t Target) (*Page, error) {
		return nil, models.ErrBlocked
	})
	failing := FetcherFunc(func(ctx context.Context, t Target) (*Page, error) {
		return nil, &models.FetchError{URL: t.URL, StatusCode: http.StatusNotFound}
	})

	_, err := WithFallback(blocked, failing, nil).Fetch(context.Background(), Target{URL: "a", FallbackURL: "b"})
	assert.ErrorIs(t, err, models.ErrBlocked)
	assert.ErrorIs(t, err, models.ErrFetch)
}

func TestNewBrowser_Defaults(t *testing.T) {
	b := NewBrowser(BrowserOptions{}, nil, nil)
	assert.Equal(t, int64(1), b.opts.MaxSessions)
	assert.Equal(t, 20*time.Second, b.opts.NavTimeout)
	assert.Equal(t, defaultUserAgent, b.opts.UserAgent)

	opts := DefaultBrowserOptions()
	assert.True(t, opts.Headless)
	assert.True(t, opts.BlockResources)
	// six stealth and sizing flags plus no-sandbox
	assert.Len(t, NewBrowser(opts, nil, nil).allocatorOptions(), len(chromedp.DefaultExecAllocatorOptions)+7)
}

func TestBrowser_AbandonedBeforeSlot(t *testing.T) {
	b := NewBrowser(BrowserOptions{MaxSessions: 1}, nil, nil)
	require.True(t, b.slots.TryAcquire(1))
	defer b.slots.Release(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := b.Fetch(ctx, Target{URL: "https://jiji.com.gh"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
