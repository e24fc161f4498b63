package ops

import (
	"context"

	"go.uber.org/zap"
)

// ReloadOutput contains the result of the Reload operation.
type ReloadOutput struct {
	TotalEntries int `json:"total_entries"`
	Categories   int `json:"categories"`
	Partitions   int `json:"partitions"`
	Loads        int `json:"loads"`
}

// Reload drops the cached dataset and reads the source files again. Invalid
// source data is reported and left uncached, so the next operation retries.
func Reload(ctx context.Context, rt *Runtime) (*ReloadOutput, error) {
	rt.Cache.Invalidate()
	data, err := rt.loadIndexed(ctx)
	if err != nil {
		rt.Logger.Warn("Source data reload failed", zap.Error(err))
		return nil, err
	}

	out := &ReloadOutput{
		TotalEntries: data.idx.Len(),
		Categories:   len(categoryIDs(data.ds)),
		Partitions:   len(data.idx.Keys),
		Loads:        rt.Cache.Loads(),
	}
	rt.Logger.Info("Source data reloaded",
		zap.Int("entries", out.TotalEntries),
		zap.Int("partitions", out.Partitions),
	)
	return out, nil
}
