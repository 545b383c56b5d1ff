// Package browser drives a Chromium instance over the DevTools protocol and
// exposes the small set of page interactions the workflow stages need.
//
// Stage logic depends only on the [Driver] interface; the real implementation
// is [Session]. Tests substitute scripted fakes so stages run without a
// browser process.
package browser

import (
	"context"
	"time"

	"github.com/chromedp/cdproto/network"
)

// Download describes a file the browser finished writing to disk.
type Download struct {
	// Path is the on-disk location of the completed download.
	Path string

	// Err is set when the browser reported the download as canceled or failed.
	Err error
}

// Driver is the page-interaction capability used by the export and upload
// stages. Element descriptors are XPath expressions.
type Driver interface {
	// Navigate loads url in the tab and waits for the load to settle.
	Navigate(ctx context.Context, url string) error

	// WaitVisible blocks until an element matched by xpath is visible, or the
	// timeout elapses.
	WaitVisible(ctx context.Context, xpath string, timeout time.Duration) error

	// Exists reports whether xpath currently matches at least one node.
	Exists(ctx context.Context, xpath string) (bool, error)

	// Click activates the first element matched by xpath.
	Click(ctx context.Context, xpath string) error

	// Fill types value into the element matched by xpath.
	Fill(ctx context.Context, xpath, value string) error

	// ExpectDownload arms download capture. The returned channel yields
	// exactly one Download once the browser finishes writing a file. Arm it
	// before clicking the control that triggers the download.
	ExpectDownload(ctx context.Context) (<-chan Download, error)

	// SetUploadFile arms the next native file-chooser dialog to be answered
	// with path instead of opening a window.
	SetUploadFile(ctx context.Context, path string) error

	// Cookies returns the cookies of the current browser session in a form
	// that can be fed back to SetCookies on a later run.
	Cookies(ctx context.Context) ([]*network.CookieParam, error)

	// SetCookies installs cookies into the browser session.
	SetCookies(ctx context.Context, cookies []*network.CookieParam) error

	// Close releases the browser process. Close is idempotent.
	Close() error
}

// Factory opens a Driver. Stages validate their configuration before
// invoking the factory, so no browser is launched for a run that is doomed
// by a missing setting.
type Factory func(opts ...Option) (Driver, error)
