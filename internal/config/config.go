// Package config builds the process-wide configuration from environment
// variables, read once at startup. Stage logic receives the resulting
// struct by value and never touches the environment itself.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// ErrMissing indicates a required setting was absent from the environment.
var ErrMissing = errors.New("config: missing required setting")

// Config holds every setting the workflow reads. String fields default to
// empty; presence is enforced by the stage that needs the value, so the
// export half remains usable without upload credentials.
type Config struct {
	// OverleafURL is the read-only share link of the source project.
	OverleafURL string

	// SharePointURL is the document library the export is uploaded to.
	SharePointURL string

	// Username and Password authenticate the Microsoft login form. They are
	// typed into the form and never persisted.
	Username string
	Password string

	// CookiesFile optionally points at a saved session-state file. When the
	// file exists it is restored before upload to skip interactive login,
	// and rewritten after a successful login or upload.
	CookiesFile string

	// Headless controls whether the browser runs without a visible window.
	Headless bool

	// LogLevel is the zap level name (debug, info, warn, error).
	LogLevel string

	// RenderTimeout bounds how long the share link may take to render its
	// PDF preview. LaTeX compilation can be slow, hence the generous default.
	RenderTimeout time.Duration

	// DownloadTimeout bounds the wait for the exported file to land on disk.
	DownloadTimeout time.Duration

	// UploadTimeout bounds the wait for the portal to confirm the upload.
	UploadTimeout time.Duration

	// MFATimeout bounds the wait for the portal to accept the session after
	// login. It absorbs a possible verification prompt; satisfying that
	// prompt may require manual intervention in a headful run.
	MFATimeout time.Duration

	// ChromePath overrides the browser executable lookup.
	ChromePath string

	// ChromeAutoDownload fetches a cached Chromium when none is installed.
	ChromeAutoDownload bool
}

// envKeys are the exact variable names read from the environment. The names
// are externally fixed, so they are bound directly instead of prefixed.
var envKeys = []string{
	"OVERLEAF_URL",
	"SHAREPOINT_URL",
	"MICROSOFT_USERNAME",
	"MICROSOFT_PASSWORD",
	"COOKIES_FILE",
	"HEADLESS",
	"LOG_LEVEL",
	"RENDER_TIMEOUT",
	"DOWNLOAD_TIMEOUT",
	"UPLOAD_TIMEOUT",
	"MFA_TIMEOUT",
	"CHROME_PATH",
	"CHROME_AUTO_DOWNLOAD",
}

// Load reads the environment into a Config. Load itself never fails;
// defaults fill any missing value and required settings are checked by
// [Config.ValidateExport] and [Config.ValidateUpload].
func Load() Config {
	v := viper.New()
	for _, key := range envKeys {
		v.MustBindEnv(key)
	}

	v.SetDefault("HEADLESS", true)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("RENDER_TIMEOUT", 61*time.Second)
	v.SetDefault("DOWNLOAD_TIMEOUT", 60*time.Second)
	v.SetDefault("UPLOAD_TIMEOUT", 120*time.Second)
	v.SetDefault("MFA_TIMEOUT", 90*time.Second)
	v.SetDefault("CHROME_AUTO_DOWNLOAD", false)

	return Config{
		OverleafURL:        v.GetString("OVERLEAF_URL"),
		SharePointURL:      v.GetString("SHAREPOINT_URL"),
		Username:           v.GetString("MICROSOFT_USERNAME"),
		Password:           v.GetString("MICROSOFT_PASSWORD"),
		CookiesFile:        v.GetString("COOKIES_FILE"),
		Headless:           v.GetBool("HEADLESS"),
		LogLevel:           v.GetString("LOG_LEVEL"),
		RenderTimeout:      v.GetDuration("RENDER_TIMEOUT"),
		DownloadTimeout:    v.GetDuration("DOWNLOAD_TIMEOUT"),
		UploadTimeout:      v.GetDuration("UPLOAD_TIMEOUT"),
		MFATimeout:         v.GetDuration("MFA_TIMEOUT"),
		ChromePath:         v.GetString("CHROME_PATH"),
		ChromeAutoDownload: v.GetBool("CHROME_AUTO_DOWNLOAD"),
	}
}

// ValidateExport checks the settings the export stage requires.
func (c Config) ValidateExport() error {
	if c.OverleafURL == "" {
		return fmt.Errorf("%w: OVERLEAF_URL", ErrMissing)
	}
	return nil
}

// ValidateUpload checks the settings the upload stage requires.
func (c Config) ValidateUpload() error {
	required := []struct {
		name  string
		value string
	}{
		{"SHAREPOINT_URL", c.SharePointURL},
		{"MICROSOFT_USERNAME", c.Username},
		{"MICROSOFT_PASSWORD", c.Password},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%w: %s", ErrMissing, r.name)
		}
	}
	return nil
}
