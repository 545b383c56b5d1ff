package pipeline_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mycielski/overleaf-to-sharepoint/internal/browser"
	"github.com/mycielski/overleaf-to-sharepoint/internal/pipeline"
)

func observedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.InfoLevel)
	return zap.New(core), logs
}

func TestRunBothStagesSucceed(t *testing.T) {
	log, logs := observedLogger()

	exported := filepath.Join(t.TempDir(), "document.pdf")
	require.NoError(t, os.WriteFile(exported, []byte("0123456789"), 0o644))

	var uploaded string
	p := pipeline.Pipeline{
		Export: func(context.Context) (string, error) { return exported, nil },
		Upload: func(_ context.Context, path string) error {
			uploaded = path
			return nil
		},
		Log: log,
	}

	require.NoError(t, p.Run(context.Background()))
	assert.Equal(t, exported, uploaded, "upload must receive the exported file")

	info, err := os.Stat(uploaded)
	require.NoError(t, err)
	assert.EqualValues(t, 10, info.Size())

	var successes []string
	for _, entry := range logs.All() {
		switch entry.Message {
		case "export stage complete", "upload stage complete":
			successes = append(successes, entry.Message)
		}
	}
	assert.Equal(t, []string{"export stage complete", "upload stage complete"}, successes,
		"one success line per stage, in order")
}

func TestRunExportFailureStopsPipeline(t *testing.T) {
	log, logs := observedLogger()

	uploadCalled := false
	p := pipeline.Pipeline{
		Export: func(context.Context) (string, error) {
			return "", fmt.Errorf("overleaf: download control: %w", browser.ErrElementNotFound)
		},
		Upload: func(context.Context, string) error {
			uploadCalled = true
			return nil
		},
		Log: log,
	}

	err := p.Run(context.Background())
	require.ErrorIs(t, err, browser.ErrElementNotFound)
	assert.False(t, uploadCalled, "upload must never run after a failed export")

	failures := logs.FilterLevelExact(zapcore.ErrorLevel).All()
	require.Len(t, failures, 1)
	assert.Equal(t, "export stage failed", failures[0].Message)
	assert.Contains(t, fmt.Sprint(failures[0].ContextMap()["error"]), "element not found")
}

func TestRunUploadFailureReported(t *testing.T) {
	log, logs := observedLogger()

	p := pipeline.Pipeline{
		Export: func(context.Context) (string, error) { return "document.pdf", nil },
		Upload: func(context.Context, string) error {
			return fmt.Errorf("sharepoint: portal down")
		},
		Log: log,
	}

	err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload:")

	failures := logs.FilterLevelExact(zapcore.ErrorLevel).All()
	require.Len(t, failures, 1)
	assert.Equal(t, "upload stage failed", failures[0].Message)
}

func TestRunNilLogger(t *testing.T) {
	p := pipeline.Pipeline{
		Export: func(context.Context) (string, error) { return "document.pdf", nil },
		Upload: func(context.Context, string) error { return nil },
	}
	assert.NoError(t, p.Run(context.Background()))
}
