package ops

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/soundbluemusic/dictgen/internal/db"
)

// ExportDBInput contains parameters for the ExportDB operation.
type ExportDBInput struct {
	Path string // optional, default: <out>/data/offline/context.db
}

// ExportDBOutput contains the result of the ExportDB operation.
type ExportDBOutput struct {
	Path    string `json:"path"`
	RunID   string `json:"run_id"`
	Count   int    `json:"count"`
	Size    int64  `json:"size"`
	Elapsed string `json:"elapsed"`
}

// ExportDB writes the offline SQLite database on its own.
func ExportDB(ctx context.Context, rt *Runtime, input ExportDBInput) (*ExportDBOutput, error) {
	if err := rt.Config.Validate(); err != nil {
		return nil, err
	}

	path := input.Path
	if path == "" {
		path = db.Path(rt.Config.DataDir())
	}

	start := time.Now()
	now := rt.Now()

	data, err := rt.loadIndexed(ctx)
	if err != nil {
		return nil, err
	}

	runID := newRunID(now)
	if err := exportOfflineDB(ctx, rt, data, runID, now, path); err != nil {
		return nil, err
	}

	out := &ExportDBOutput{
		Path:    path,
		RunID:   runID,
		Count:   data.idx.Len(),
		Elapsed: time.Since(start).Round(time.Millisecond).String(),
	}
	if info, err := statSize(path); err == nil {
		out.Size = info
	}
	return out, nil
}

func exportOfflineDB(ctx context.Context, rt *Runtime, data *indexed, runID string, now time.Time, path string) error {
	err := db.Export(ctx, path, db.ExportInput{
		Entries:    data.ds.Entries,
		Categories: data.ds.Categories,
		KeyOf:      data.idx.Key,
		Run: db.BuildRun{
			ID:           runID,
			GeneratedAt:  now,
			TotalEntries: data.idx.Len(),
			Partition:    rt.Config.Partition,
			Locales:      rt.Config.LocaleCodes(),
		},
	})
	if err != nil {
		return err
	}
	rt.Logger.Info("Offline database written", zap.String("path", path), zap.Int("entries", data.idx.Len()))
	return nil
}
