// Package overleaf exports the compiled PDF of an Overleaf project through
// the project's read-only share link.
package overleaf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"

	"github.com/mycielski/overleaf-to-sharepoint/internal/browser"
	"github.com/mycielski/overleaf-to-sharepoint/internal/config"
)

// DownloadName is the fixed name of the exported PDF, written to the
// working directory and overwritten on each run.
const DownloadName = "document.pdf"

// Selectors in the Overleaf read view. These track the vendor's markup and
// break when it changes; that surfaces as an element-not-found failure.
const (
	canvasXPath   = `//div[@class='canvasWrapper']`
	downloadXPath = `//i[contains(@class, 'fa-download')]`
)

// Exporter drives a browser to a share link and saves the project's PDF.
type Exporter struct {
	cfg    config.Config
	open   browser.Factory
	log    *zap.Logger
	verify func(path string) error
}

// Option configures an [Exporter].
type Option func(*Exporter)

// WithVerifier replaces the structural check run on the downloaded file.
func WithVerifier(f func(path string) error) Option {
	return func(e *Exporter) {
		if f != nil {
			e.verify = f
		}
	}
}

// New creates an Exporter that opens browsers through the given factory.
func New(cfg config.Config, open browser.Factory, log *zap.Logger, opts ...Option) *Exporter {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Exporter{
		cfg:    cfg,
		open:   open,
		log:    log,
		verify: verifyPDF,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Export navigates to the share link, waits for the project to render,
// triggers the PDF download, and returns the absolute path of the saved
// file. Configuration is validated before any browser is launched.
func (e *Exporter) Export(ctx context.Context) (string, error) {
	if err := e.cfg.ValidateExport(); err != nil {
		return "", fmt.Errorf("overleaf: %w", err)
	}

	workDir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("overleaf: resolving working directory: %w", err)
	}
	target := filepath.Join(workDir, DownloadName)

	drvOpts := []browser.Option{
		browser.WithHeadless(e.cfg.Headless),
		browser.WithDownloadDir(workDir),
		browser.WithLogger(e.log),
	}
	if e.cfg.ChromePath != "" {
		drvOpts = append(drvOpts, browser.WithChromePath(e.cfg.ChromePath))
	}
	if e.cfg.ChromeAutoDownload {
		drvOpts = append(drvOpts, browser.WithAutoDownload())
	}

	drv, err := e.open(drvOpts...)
	if err != nil {
		return "", fmt.Errorf("overleaf: opening browser: %w", err)
	}
	defer drv.Close()

	e.log.Info("navigating to share link", zap.String("url", e.cfg.OverleafURL))
	if err := drv.Navigate(ctx, e.cfg.OverleafURL); err != nil {
		return "", fmt.Errorf("overleaf: %w", err)
	}

	// The canvas appears once the project's LaTeX has compiled and the PDF
	// preview is rendered. This can take a while on large projects.
	e.log.Info("waiting for the project to render", zap.Duration("timeout", e.cfg.RenderTimeout))
	if err := drv.WaitVisible(ctx, canvasXPath, e.cfg.RenderTimeout); err != nil {
		return "", fmt.Errorf("overleaf: render canvas: %w", err)
	}

	downloads, err := drv.ExpectDownload(ctx)
	if err != nil {
		return "", fmt.Errorf("overleaf: %w", err)
	}
	e.log.Info("triggering PDF download")
	if err := drv.Click(ctx, downloadXPath); err != nil {
		return "", fmt.Errorf("overleaf: download control: %w", err)
	}

	var dl browser.Download
	select {
	case dl = <-downloads:
	case <-time.After(e.cfg.DownloadTimeout):
		return "", fmt.Errorf("overleaf: %w after %s", browser.ErrDownloadTimeout, e.cfg.DownloadTimeout)
	case <-ctx.Done():
		return "", fmt.Errorf("overleaf: %w", ctx.Err())
	}
	if dl.Err != nil {
		return "", fmt.Errorf("overleaf: %w", dl.Err)
	}

	if dl.Path != target {
		if err := os.Rename(dl.Path, target); err != nil {
			return "", fmt.Errorf("overleaf: placing %s: %w", DownloadName, err)
		}
	}
	if err := e.verify(target); err != nil {
		return "", fmt.Errorf("overleaf: %w", err)
	}

	e.log.Info("export complete", zap.String("file", target))
	return target, nil
}

// verifyPDF rejects empty or structurally broken downloads before the
// upload stage can pick them up.
func verifyPDF(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return fmt.Errorf("downloaded file %s is empty", path)
	}
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.ValidateFile(path, conf); err != nil {
		return fmt.Errorf("downloaded file %s is not a valid PDF: %w", path, err)
	}
	return nil
}
