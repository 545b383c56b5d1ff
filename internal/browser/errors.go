package browser

import "errors"

// Sentinel errors reported by drivers. Stage code matches them with
// [errors.Is] to classify failures.
var (
	// ErrNavigation indicates the target page was unreachable or did not
	// finish loading in time.
	ErrNavigation = errors.New("browser: navigation failed")

	// ErrElementNotFound indicates an expected interactive control never
	// appeared, typically a sign the external page layout changed.
	ErrElementNotFound = errors.New("browser: element not found")

	// ErrDownloadTimeout indicates a download was triggered but no file
	// arrived within the deadline.
	ErrDownloadTimeout = errors.New("browser: download timed out")

	// ErrClosed is returned when attempting to use a closed [Session].
	ErrClosed = errors.New("browser: session is closed")
)
