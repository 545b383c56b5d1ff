// Package sharepoint uploads a local file to a SharePoint document library
// by driving the portal's web UI, reusing a saved browser session when one
// is available.
package sharepoint

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mycielski/overleaf-to-sharepoint/internal/browser"
	"github.com/mycielski/overleaf-to-sharepoint/internal/config"
)

// Sentinel errors reported by the upload stage.
var (
	// ErrAuthentication indicates the portal rejected the login, or never
	// presented its upload surface after a login attempt.
	ErrAuthentication = errors.New("sharepoint: authentication failed")

	// ErrUploadTimeout indicates the upload was submitted but the portal
	// never confirmed the file in its listing.
	ErrUploadTimeout = errors.New("sharepoint: upload confirmation timed out")
)

// Selectors in the Microsoft login flow and the SharePoint library UI.
const (
	emailXPath      = `//input[@type='email']`
	passwordXPath   = `//input[@type='password']`
	submitXPath     = `//input[@type='submit']`
	uploadIconXPath = `//i[@data-icon-name='upload']`
	filesMenuXPath  = `//li[@role='presentation']//span[contains(text(),'Files')]`
	uploadedXPath   = `//div[contains(text(),'Uploaded')]`
)

// loginStepTimeout bounds the transition between the email and password
// screens of the Microsoft login form.
const loginStepTimeout = 15 * time.Second

// Uploader authenticates to a SharePoint portal and uploads a file.
type Uploader struct {
	cfg  config.Config
	open browser.Factory
	log  *zap.Logger
	now  func() time.Time
}

// Option configures an [Uploader].
type Option func(*Uploader)

// WithClock overrides the clock used to timestamp the uploaded file name.
func WithClock(now func() time.Time) Option {
	return func(u *Uploader) {
		if now != nil {
			u.now = now
		}
	}
}

// New creates an Uploader that opens browsers through the given factory.
func New(cfg config.Config, open browser.Factory, log *zap.Logger, opts ...Option) *Uploader {
	if log == nil {
		log = zap.NewNop()
	}
	u := &Uploader{
		cfg:  cfg,
		open: open,
		log:  log,
		now:  time.Now,
	}
	for _, o := range opts {
		o(u)
	}
	return u
}

// Upload authenticates to the portal and uploads the file at filePath,
// waiting for the portal to confirm it in the listing. Configuration and
// the local file are validated before any browser is launched.
func (u *Uploader) Upload(ctx context.Context, filePath string) error {
	if err := u.cfg.ValidateUpload(); err != nil {
		return fmt.Errorf("sharepoint: %w", err)
	}
	info, err := os.Stat(filePath)
	if err != nil {
		return fmt.Errorf("sharepoint: local file: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("sharepoint: local file %s is empty", filePath)
	}

	drvOpts := []browser.Option{
		browser.WithHeadless(u.cfg.Headless),
		browser.WithLogger(u.log),
	}
	if u.cfg.ChromePath != "" {
		drvOpts = append(drvOpts, browser.WithChromePath(u.cfg.ChromePath))
	}
	if u.cfg.ChromeAutoDownload {
		drvOpts = append(drvOpts, browser.WithAutoDownload())
	}

	drv, err := u.open(drvOpts...)
	if err != nil {
		return fmt.Errorf("sharepoint: opening browser: %w", err)
	}
	defer drv.Close()

	u.restoreSession(ctx, drv)

	u.log.Info("navigating to portal", zap.String("url", u.cfg.SharePointURL))
	if err := drv.Navigate(ctx, u.cfg.SharePointURL); err != nil {
		return fmt.Errorf("sharepoint: %w", err)
	}

	interactive, err := u.needsLogin(ctx, drv)
	if err != nil {
		return fmt.Errorf("sharepoint: %w", err)
	}
	if interactive {
		if err := u.logIn(ctx, drv); err != nil {
			return fmt.Errorf("sharepoint: %w", err)
		}
	} else {
		u.log.Info("no login form present, session accepted")
	}

	// The upload control appearing doubles as proof the session is valid.
	// The wait absorbs a possible verification prompt, which may need a
	// human in a headful run.
	if err := drv.WaitVisible(ctx, uploadIconXPath, u.cfg.MFATimeout); err != nil {
		return fmt.Errorf("sharepoint: portal did not accept the session: %w: %w", ErrAuthentication, err)
	}
	if interactive {
		u.persistSession(ctx, drv)
	}

	staged, cleanup, err := u.stageFile(filePath)
	if err != nil {
		return fmt.Errorf("sharepoint: %w", err)
	}
	defer cleanup()

	if err := drv.Click(ctx, uploadIconXPath); err != nil {
		return fmt.Errorf("sharepoint: upload control: %w", err)
	}
	if err := drv.SetUploadFile(ctx, staged); err != nil {
		return fmt.Errorf("sharepoint: %w", err)
	}
	if err := drv.Click(ctx, filesMenuXPath); err != nil {
		return fmt.Errorf("sharepoint: files menu: %w", err)
	}

	u.log.Info("waiting for upload confirmation",
		zap.String("name", filepath.Base(staged)),
		zap.Duration("timeout", u.cfg.UploadTimeout))
	if err := drv.WaitVisible(ctx, uploadedXPath, u.cfg.UploadTimeout); err != nil {
		return fmt.Errorf("sharepoint: %w: %w", ErrUploadTimeout, err)
	}

	u.persistSession(ctx, drv)
	u.log.Info("upload complete", zap.String("name", filepath.Base(staged)))
	return nil
}

// restoreSession installs cookies from the configured session file, if any.
// Failures fall back to interactive login rather than aborting the stage.
func (u *Uploader) restoreSession(ctx context.Context, drv browser.Driver) {
	if u.cfg.CookiesFile == "" {
		return
	}
	cookies, err := browser.LoadCookies(u.cfg.CookiesFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			u.log.Debug("no saved session", zap.String("path", u.cfg.CookiesFile))
		} else {
			u.log.Warn("ignoring unreadable cookie file",
				zap.String("path", u.cfg.CookiesFile), zap.Error(err))
		}
		return
	}
	if err := drv.SetCookies(ctx, cookies); err != nil {
		u.log.Warn("session restore failed, falling back to login", zap.Error(err))
		return
	}
	u.log.Info("restored saved session", zap.Int("cookies", len(cookies)))
}

// persistSession saves the current cookies for reuse by future runs.
// Failure to persist is logged, not fatal.
func (u *Uploader) persistSession(ctx context.Context, drv browser.Driver) {
	if u.cfg.CookiesFile == "" {
		return
	}
	cookies, err := drv.Cookies(ctx)
	if err != nil {
		u.log.Warn("reading session cookies failed", zap.Error(err))
		return
	}
	if err := browser.SaveCookies(u.cfg.CookiesFile, cookies); err != nil {
		u.log.Warn("saving session cookies failed", zap.Error(err))
		return
	}
	u.log.Info("saved session cookies",
		zap.String("path", u.cfg.CookiesFile), zap.Int("cookies", len(cookies)))
}

// needsLogin reports whether the portal is showing the Microsoft login form.
func (u *Uploader) needsLogin(ctx context.Context, drv browser.Driver) (bool, error) {
	email, err := drv.Exists(ctx, emailXPath)
	if err != nil {
		return false, err
	}
	if email {
		return true, nil
	}
	return drv.Exists(ctx, passwordXPath)
}

// logIn fills the two-step Microsoft login form. The email screen may be
// skipped when the restored session already identifies the account.
func (u *Uploader) logIn(ctx context.Context, drv browser.Driver) error {
	u.log.Info("signing in", zap.String("user", u.cfg.Username))

	email, err := drv.Exists(ctx, emailXPath)
	if err != nil {
		return err
	}
	if email {
		if err := drv.Fill(ctx, emailXPath, u.cfg.Username); err != nil {
			return err
		}
		if err := drv.Click(ctx, submitXPath); err != nil {
			return err
		}
	}

	if err := drv.WaitVisible(ctx, passwordXPath, loginStepTimeout); err != nil {
		return fmt.Errorf("%w: password prompt never appeared: %w", ErrAuthentication, err)
	}
	if err := drv.Fill(ctx, passwordXPath, u.cfg.Password); err != nil {
		return err
	}
	if err := drv.Click(ctx, submitXPath); err != nil {
		return err
	}
	return nil
}

// stageFile copies the document into a temp directory under a timestamped
// name so repeat uploads do not collide in the library listing.
func (u *Uploader) stageFile(path string) (string, func(), error) {
	dir, err := os.MkdirTemp("", "sharepoint-upload-")
	if err != nil {
		return "", nil, fmt.Errorf("staging upload: %w", err)
	}
	cleanup := func() { os.RemoveAll(dir) }

	base := filepath.Base(path)
	ext := filepath.Ext(base)
	name := fmt.Sprintf("%s-%d%s", strings.TrimSuffix(base, ext), u.now().Unix(), ext)
	staged := filepath.Join(dir, name)

	data, err := os.ReadFile(path)
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("staging upload: %w", err)
	}
	if err := os.WriteFile(staged, data, 0o644); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("staging upload: %w", err)
	}
	return staged, cleanup, nil
}
