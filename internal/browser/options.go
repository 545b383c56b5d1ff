package browser

import (
	"time"

	"go.uber.org/zap"
)

// options holds internal configuration for a Session.
type options struct {
	headless      bool
	chromePath    string
	autoDownload  bool
	noSandbox     bool
	downloadDir   string
	navTimeout    time.Duration
	actionTimeout time.Duration
	log           *zap.Logger
}

func defaultOptions() options {
	return options{
		headless:      true,
		downloadDir:   ".",
		navTimeout:    30 * time.Second,
		actionTimeout: 15 * time.Second,
		log:           zap.NewNop(),
	}
}

// Option configures a [Session].
type Option func(*options)

// WithHeadless controls whether the browser runs without a visible window.
// Defaults to true.
func WithHeadless(headless bool) Option {
	return func(o *options) {
		o.headless = headless
	}
}

// WithChromePath sets the path to the Chrome or Chromium executable.
// By default the library searches standard locations automatically.
func WithChromePath(path string) Option {
	return func(o *options) {
		o.chromePath = path
	}
}

// WithAutoDownload fetches a cached Chromium binary when no executable path
// is configured and none is installed locally.
func WithAutoDownload() Option {
	return func(o *options) {
		o.autoDownload = true
	}
}

// WithNoSandbox disables the Chrome sandbox. This is required when running
// as root, for example inside Docker containers.
func WithNoSandbox() Option {
	return func(o *options) {
		o.noSandbox = true
	}
}

// WithDownloadDir sets the directory the browser writes downloads into.
// Defaults to the working directory.
func WithDownloadDir(dir string) Option {
	return func(o *options) {
		o.downloadDir = dir
	}
}

// WithNavigationTimeout bounds a single page load. Defaults to 30 seconds.
func WithNavigationTimeout(d time.Duration) Option {
	return func(o *options) {
		o.navTimeout = d
	}
}

// WithLogger sets the logger used for driver-level debug output.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}
