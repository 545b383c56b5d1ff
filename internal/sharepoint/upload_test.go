package sharepoint_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mycielski/overleaf-to-sharepoint/internal/browser"
	"github.com/mycielski/overleaf-to-sharepoint/internal/config"
	"github.com/mycielski/overleaf-to-sharepoint/internal/sharepoint"
)

// fakePortal scripts the portal UI: whether a login form is shown, whether
// the upload surface appears, and whether the upload gets confirmed.
type fakePortal struct {
	requireLogin  bool // show the Microsoft login form until credentials land
	denyPortal    bool // never show the upload surface
	confirmUpload bool // show the "Uploaded" confirmation after submission

	loginDone   bool
	submits     int
	filesClick  bool
	fills       map[string]string
	clicks      []string
	navigated   []string
	installed   []*network.CookieParam // cookies handed to SetCookies
	sessionSnap []*network.CookieParam // cookies reported back by Cookies
	uploadPath  string
	closed      bool
}

func (d *fakePortal) loginVisible() bool { return d.requireLogin && !d.loginDone }

func (d *fakePortal) Navigate(_ context.Context, url string) error {
	d.navigated = append(d.navigated, url)
	return nil
}

func (d *fakePortal) WaitVisible(_ context.Context, xpath string, _ time.Duration) error {
	switch {
	case strings.Contains(xpath, "password"):
		if d.loginVisible() {
			return nil
		}
	case strings.Contains(xpath, "upload"):
		if !d.denyPortal && !d.loginVisible() {
			return nil
		}
	case strings.Contains(xpath, "Uploaded"):
		if d.confirmUpload && d.uploadPath != "" && d.filesClick {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", browser.ErrElementNotFound, xpath)
}

func (d *fakePortal) Exists(_ context.Context, xpath string) (bool, error) {
	if strings.Contains(xpath, "email") || strings.Contains(xpath, "password") {
		return d.loginVisible(), nil
	}
	return false, nil
}

func (d *fakePortal) Click(_ context.Context, xpath string) error {
	d.clicks = append(d.clicks, xpath)
	switch {
	case strings.Contains(xpath, "submit"):
		d.submits++
		if d.submits >= 2 {
			d.loginDone = true
		}
	case strings.Contains(xpath, "Files"):
		d.filesClick = true
	}
	return nil
}

func (d *fakePortal) Fill(_ context.Context, xpath, value string) error {
	if d.fills == nil {
		d.fills = make(map[string]string)
	}
	d.fills[xpath] = value
	return nil
}

func (d *fakePortal) ExpectDownload(_ context.Context) (<-chan browser.Download, error) {
	return nil, fmt.Errorf("not supported")
}

func (d *fakePortal) SetUploadFile(_ context.Context, path string) error {
	d.uploadPath = path
	return nil
}

func (d *fakePortal) Cookies(_ context.Context) ([]*network.CookieParam, error) {
	return d.sessionSnap, nil
}

func (d *fakePortal) SetCookies(_ context.Context, cookies []*network.CookieParam) error {
	d.installed = cookies
	return nil
}

func (d *fakePortal) Close() error {
	d.closed = true
	return nil
}

func portalFactory(d *fakePortal, opened *bool) browser.Factory {
	return func(_ ...browser.Option) (browser.Driver, error) {
		if opened != nil {
			*opened = true
		}
		return d, nil
	}
}

func portalConfig() config.Config {
	return config.Config{
		SharePointURL: "https://example.sharepoint.com/sites/docs",
		Username:      "user@example.com",
		Password:      "hunter2",
		MFATimeout:    time.Second,
		UploadTimeout: time.Second,
	}
}

func writeDocument(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "document.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 exported"), 0o644))
	return path
}

func TestUploadWithSavedSessionSkipsLogin(t *testing.T) {
	cookiePath := filepath.Join(t.TempDir(), "cookies.json")
	saved := []*network.CookieParam{{Name: "FedAuth", Value: "blob", Domain: "example.sharepoint.com"}}
	require.NoError(t, browser.SaveCookies(cookiePath, saved))

	fake := &fakePortal{
		confirmUpload: true,
		sessionSnap: []*network.CookieParam{
			{Name: "FedAuth", Value: "refreshed", Domain: "example.sharepoint.com"},
			{Name: "rtFa", Value: "new", Domain: ".sharepoint.com"},
		},
	}
	cfg := portalConfig()
	cfg.CookiesFile = cookiePath

	u := sharepoint.New(cfg, portalFactory(fake, nil), zaptest.NewLogger(t))
	require.NoError(t, u.Upload(context.Background(), writeDocument(t)))

	assert.Equal(t, saved, fake.installed, "saved cookies must be restored before navigation")
	assert.Empty(t, fake.fills, "a valid session must skip the login form")

	refreshed, err := browser.LoadCookies(cookiePath)
	require.NoError(t, err)
	assert.Len(t, refreshed, 2, "session file must be refreshed after upload")
	assert.True(t, fake.closed)
}

func TestUploadInteractiveLogin(t *testing.T) {
	cookiePath := filepath.Join(t.TempDir(), "cookies.json")
	fake := &fakePortal{
		requireLogin:  true,
		confirmUpload: true,
		sessionSnap:   []*network.CookieParam{{Name: "FedAuth", Value: "fresh"}},
	}
	cfg := portalConfig()
	cfg.CookiesFile = cookiePath

	u := sharepoint.New(cfg, portalFactory(fake, nil), zaptest.NewLogger(t))
	require.NoError(t, u.Upload(context.Background(), writeDocument(t)))

	assert.Equal(t, "user@example.com", fake.fills[`//input[@type='email']`])
	assert.Equal(t, "hunter2", fake.fills[`//input[@type='password']`])
	assert.Equal(t, 2, fake.submits)

	_, err := browser.LoadCookies(cookiePath)
	assert.NoError(t, err, "cookies must be persisted after an interactive login")
	assert.True(t, fake.closed)
}

func TestUploadMissingConfigSkipsBrowser(t *testing.T) {
	cfg := portalConfig()
	cfg.SharePointURL = ""

	opened := false
	u := sharepoint.New(cfg, portalFactory(&fakePortal{}, &opened), zaptest.NewLogger(t))

	err := u.Upload(context.Background(), writeDocument(t))
	require.ErrorIs(t, err, config.ErrMissing)
	assert.False(t, opened, "no browser may be launched for a misconfigured run")
}

func TestUploadMissingLocalFile(t *testing.T) {
	opened := false
	u := sharepoint.New(portalConfig(), portalFactory(&fakePortal{}, &opened), zaptest.NewLogger(t))

	err := u.Upload(context.Background(), filepath.Join(t.TempDir(), "absent.pdf"))
	require.ErrorIs(t, err, os.ErrNotExist)
	assert.False(t, opened)
}

func TestUploadEmptyLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "document.pdf")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	opened := false
	u := sharepoint.New(portalConfig(), portalFactory(&fakePortal{}, &opened), zaptest.NewLogger(t))

	err := u.Upload(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
	assert.False(t, opened)
}

func TestUploadConfirmationTimeout(t *testing.T) {
	fake := &fakePortal{confirmUpload: false}

	u := sharepoint.New(portalConfig(), portalFactory(fake, nil), zaptest.NewLogger(t))
	err := u.Upload(context.Background(), writeDocument(t))

	require.ErrorIs(t, err, sharepoint.ErrUploadTimeout)
	assert.True(t, fake.closed, "driver must be released on failure")
}

func TestUploadSessionRejected(t *testing.T) {
	fake := &fakePortal{denyPortal: true}

	u := sharepoint.New(portalConfig(), portalFactory(fake, nil), zaptest.NewLogger(t))
	err := u.Upload(context.Background(), writeDocument(t))

	require.ErrorIs(t, err, sharepoint.ErrAuthentication)
	assert.True(t, fake.closed)
}

func TestUploadStagesTimestampedCopy(t *testing.T) {
	fake := &fakePortal{confirmUpload: true}
	fixed := time.Unix(1700000000, 0)

	u := sharepoint.New(portalConfig(), portalFactory(fake, nil), zaptest.NewLogger(t),
		sharepoint.WithClock(func() time.Time { return fixed }))
	require.NoError(t, u.Upload(context.Background(), writeDocument(t)))

	assert.Equal(t, "document-1700000000.pdf", filepath.Base(fake.uploadPath))
}
