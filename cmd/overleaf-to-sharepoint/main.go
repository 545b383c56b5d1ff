// overleaf-to-sharepoint fetches the compiled PDF of an Overleaf project
// through a read-only share link and uploads it to a SharePoint document
// library, driving both web UIs with a headless Chromium.
//
// The binary takes no arguments; all input comes from environment
// variables (OVERLEAF_URL, SHAREPOINT_URL, MICROSOFT_USERNAME,
// MICROSOFT_PASSWORD, COOKIES_FILE, and the tunables documented in
// internal/config). Exit code 0 means both stages completed.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mycielski/overleaf-to-sharepoint/internal/browser"
	"github.com/mycielski/overleaf-to-sharepoint/internal/config"
	"github.com/mycielski/overleaf-to-sharepoint/internal/overleaf"
	"github.com/mycielski/overleaf-to-sharepoint/internal/pipeline"
	"github.com/mycielski/overleaf-to-sharepoint/internal/sharepoint"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "overleaf-to-sharepoint",
		Short: "Export an Overleaf project PDF and upload it to SharePoint",
		Long: `overleaf-to-sharepoint downloads the compiled PDF of an Overleaf project
via its read-only share link and uploads it to a SharePoint document
library. Both sites are driven through their web UIs with an automated
Chromium instance.

Configuration is read from the environment:

  OVERLEAF_URL        read-only share link of the source project (required)
  SHAREPOINT_URL      target document library URL (required)
  MICROSOFT_USERNAME  portal account (required)
  MICROSOFT_PASSWORD  portal secret (required)
  COOKIES_FILE        optional saved-session file, reused to skip login`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exporter := overleaf.New(cfg, browser.NewSession, log.Named("overleaf"))
	uploader := sharepoint.New(cfg, browser.NewSession, log.Named("sharepoint"))

	p := pipeline.Pipeline{
		Export: exporter.Export,
		Upload: uploader.Upload,
		Log:    log,
	}
	if err := p.Run(ctx); err != nil {
		log.Error("workflow failed", zap.Error(err))
		return err
	}
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg.Build()
}
