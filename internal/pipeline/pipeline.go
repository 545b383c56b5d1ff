// Package pipeline sequences the export and upload stages. It carries no
// business logic of its own: the first stage failure stops the run.
package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Pipeline composes the two workflow stages. Export produces a local file
// path; Upload consumes it. Upload is never invoked when Export fails.
type Pipeline struct {
	Export func(ctx context.Context) (string, error)
	Upload func(ctx context.Context, filePath string) error
	Log    *zap.Logger
}

// Run executes Export then Upload and returns the first failure.
func (p *Pipeline) Run(ctx context.Context) error {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}

	log.Info("export stage starting")
	filePath, err := p.Export(ctx)
	if err != nil {
		log.Error("export stage failed", zap.Error(err))
		return fmt.Errorf("export: %w", err)
	}
	log.Info("export stage complete", zap.String("file", filePath))

	log.Info("upload stage starting", zap.String("file", filePath))
	if err := p.Upload(ctx, filePath); err != nil {
		log.Error("upload stage failed", zap.Error(err))
		return fmt.Errorf("upload: %w", err)
	}
	log.Info("upload stage complete")
	return nil
}
