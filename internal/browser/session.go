package browser

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Session is a Driver backed by a real Chromium instance driven over the
// DevTools protocol. A Session owns one browser process and one tab; Close
// releases both.
type Session struct {
	opts        options
	allocCtx    context.Context
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// NewSession launches a Chromium instance and opens a single tab. The
// browser starts eagerly so launch errors surface here rather than on the
// first interaction. The caller must call [Session.Close] when finished.
func NewSession(opts ...Option) (Driver, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if o.chromePath == "" && o.autoDownload {
		path, err := fetchChromium()
		if err != nil {
			return nil, err
		}
		o.chromePath = path
	}

	downloadDir, err := filepath.Abs(o.downloadDir)
	if err != nil {
		return nil, fmt.Errorf("browser: resolving download dir: %w", err)
	}
	o.downloadDir = downloadDir

	allocOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
	}
	if o.headless {
		allocOpts = append(allocOpts, chromedp.Headless)
	}
	if o.chromePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(o.chromePath))
	}
	if o.noSandbox {
		allocOpts = append(allocOpts, chromedp.NoSandbox)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	// Start the browser eagerly so errors surface at creation time.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("browser: starting chromium: %w", err)
	}

	s := &Session{
		opts:        o,
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
	}
	o.log.Debug("browser session started",
		zap.Bool("headless", o.headless),
		zap.String("download_dir", o.downloadDir))
	return s, nil
}

// Close releases all resources held by the Session, including the browser
// process. Close is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.tabCancel()
	s.allocCancel()
	s.opts.log.Debug("browser session closed")
	return nil
}

func (s *Session) checkClosed() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// run executes actions on the tab, bounded by timeout and by cancellation
// of the caller's ctx.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := s.checkClosed(); err != nil {
		return err
	}

	tctx := s.tabCtx
	cancel := context.CancelFunc(func() {})
	if timeout > 0 {
		tctx, cancel = context.WithTimeout(tctx, timeout)
	}
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(tctx, actions...)
}

// Navigate implements [Driver].
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.opts.log.Debug("navigating", zap.String("url", url))
	if err := s.run(ctx, s.opts.navTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrNavigation, url, err)
	}
	return nil
}

// WaitVisible implements [Driver].
func (s *Session) WaitVisible(ctx context.Context, xpath string, timeout time.Duration) error {
	s.opts.log.Debug("waiting for element", zap.String("xpath", xpath), zap.Duration("timeout", timeout))
	if err := s.run(ctx, timeout, chromedp.WaitVisible(xpath, chromedp.BySearch)); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrElementNotFound, xpath, err)
	}
	return nil
}

// Exists implements [Driver].
func (s *Session) Exists(ctx context.Context, xpath string) (bool, error) {
	var nodes []*cdp.Node
	err := s.run(ctx, s.opts.actionTimeout,
		chromedp.Nodes(xpath, &nodes, chromedp.BySearch, chromedp.AtLeast(0)))
	if err != nil {
		return false, fmt.Errorf("browser: querying %s: %w", xpath, err)
	}
	return len(nodes) > 0, nil
}

// Click implements [Driver].
func (s *Session) Click(ctx context.Context, xpath string) error {
	s.opts.log.Debug("clicking", zap.String("xpath", xpath))
	if err := s.run(ctx, s.opts.actionTimeout, chromedp.Click(xpath, chromedp.BySearch)); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrElementNotFound, xpath, err)
	}
	return nil
}

// Fill implements [Driver].
func (s *Session) Fill(ctx context.Context, xpath, value string) error {
	s.opts.log.Debug("filling field", zap.String("xpath", xpath))
	err := s.run(ctx, s.opts.actionTimeout,
		chromedp.WaitVisible(xpath, chromedp.BySearch),
		chromedp.Clear(xpath, chromedp.BySearch),
		chromedp.SendKeys(xpath, value, chromedp.BySearch),
	)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrElementNotFound, xpath, err)
	}
	return nil
}

// ExpectDownload implements [Driver]. It tells the browser to save
// downloads into the configured directory under their DevTools GUID and
// listens for the completion event.
func (s *Session) ExpectDownload(ctx context.Context) (<-chan Download, error) {
	done := make(chan Download, 1)

	lctx, stop := context.WithCancel(s.tabCtx)
	var guid string
	chromedp.ListenTarget(lctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *cdpbrowser.EventDownloadWillBegin:
			guid = e.GUID
			s.opts.log.Debug("download started",
				zap.String("guid", e.GUID),
				zap.String("suggested_name", e.SuggestedFilename))
		case *cdpbrowser.EventDownloadProgress:
			if guid != "" && e.GUID != guid {
				return
			}
			switch e.State {
			case cdpbrowser.DownloadProgressStateCompleted:
				done <- Download{Path: filepath.Join(s.opts.downloadDir, e.GUID)}
				stop()
			case cdpbrowser.DownloadProgressStateCanceled:
				done <- Download{Err: fmt.Errorf("browser: download %s canceled", e.GUID)}
				stop()
			}
		}
	})

	err := s.run(ctx, s.opts.actionTimeout,
		cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllowAndName).
			WithDownloadPath(s.opts.downloadDir).
			WithEventsEnabled(true),
	)
	if err != nil {
		stop()
		return nil, fmt.Errorf("browser: arming download capture: %w", err)
	}
	return done, nil
}

// SetUploadFile implements [Driver]. The DevTools protocol cannot click
// through a native file dialog, so the next chooser is intercepted and its
// backing input answered directly.
func (s *Session) SetUploadFile(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("browser: resolving upload path: %w", err)
	}

	lctx, stop := context.WithCancel(s.tabCtx)
	chromedp.ListenTarget(lctx, func(ev interface{}) {
		e, ok := ev.(*page.EventFileChooserOpened)
		if !ok {
			return
		}
		// The listener must not block; answer the chooser from a goroutine.
		go func() {
			defer stop()
			err := chromedp.Run(s.tabCtx,
				dom.SetFileInputFiles([]string{abs}).WithBackendNodeID(e.BackendNodeID))
			if err != nil {
				s.opts.log.Warn("answering file chooser failed", zap.Error(err))
			}
		}()
	})

	if err := s.run(ctx, s.opts.actionTimeout, page.SetInterceptFileChooserDialog(true)); err != nil {
		stop()
		return fmt.Errorf("browser: intercepting file chooser: %w", err)
	}
	s.opts.log.Debug("file chooser armed", zap.String("path", abs))
	return nil
}

// Cookies implements [Driver].
func (s *Session) Cookies(ctx context.Context) ([]*network.CookieParam, error) {
	var params []*network.CookieParam
	err := s.run(ctx, s.opts.actionTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := storage.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		params = toCookieParams(cookies)
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("browser: reading cookies: %w", err)
	}
	return params, nil
}

// SetCookies implements [Driver].
func (s *Session) SetCookies(ctx context.Context, cookies []*network.CookieParam) error {
	err := s.run(ctx, s.opts.actionTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		return storage.SetCookies(cookies).Do(ctx)
	}))
	if err != nil {
		return fmt.Errorf("browser: setting cookies: %w", err)
	}
	return nil
}

// toCookieParams converts browser-reported cookies into the parameter form
// accepted by SetCookies on a later run.
func toCookieParams(cookies []*network.Cookie) []*network.CookieParam {
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: c.SameSite,
		}
		if c.Expires > 0 {
			t := cdp.TimeSinceEpoch(time.Unix(0, int64(c.Expires*float64(time.Second))))
			p.Expires = &t
		}
		params = append(params, p)
	}
	return params
}
