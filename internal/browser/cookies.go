package browser

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/chromedp/cdproto/network"
)

// LoadCookies reads a saved session-state file written by a previous run.
// A missing file surfaces as [os.ErrNotExist], which callers treat as "no
// saved session" rather than a failure.
func LoadCookies(path string) ([]*network.CookieParam, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("browser: reading cookie file: %w", err)
	}
	var cookies []*network.CookieParam
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("browser: parsing cookie file %s: %w", path, err)
	}
	return cookies, nil
}

// SaveCookies persists session state for reuse by a future run, overwriting
// any previous file. The file holds credentials-equivalent data, so it is
// written owner-readable only.
func SaveCookies(path string, cookies []*network.CookieParam) error {
	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return fmt.Errorf("browser: encoding cookies: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("browser: writing cookie file: %w", err)
	}
	return nil
}
