// Package verify detects deployment drift: entry ids built locally that the
// deployed copy of the partition files does not serve yet.
package verify

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/soundbluemusic/dictgen/internal/chunk"
	"github.com/soundbluemusic/dictgen/internal/errors"
)

// DefaultConcurrency bounds concurrent remote fetches.
const DefaultConcurrency = 4

// PartitionResult is the outcome for one partition key.
type PartitionResult struct {
	Key    string `json:"key"`
	File   string `json:"file"`
	Local  int    `json:"local"`
	Remote int    `json:"remote"`

	// Missing lists local ids the remote copy lacks, in local order
	Missing []string `json:"missing"`

	// Error is set when the remote partition could not be fetched
	Error string `json:"error,omitempty"`
}

// Failed reports whether the remote fetch failed.
func (r *PartitionResult) Failed() bool {
	return r.Error != ""
}

// OK reports whether the partition is fully deployed.
func (r *PartitionResult) OK() bool {
	return !r.Failed() && len(r.Missing) == 0
}

// Report is the aggregated verification outcome.
type Report struct {
	ID            string            `json:"id"`
	RemoteBaseURL string            `json:"remoteBaseUrl,omitempty"`
	CheckedAt     time.Time         `json:"checkedAt"`
	Partitions    []PartitionResult `json:"partitions"`

	TotalLocal        int `json:"totalLocal"`
	TotalMissing      int `json:"totalMissing"`
	DriftedPartitions int `json:"driftedPartitions"`
	FailedPartitions  int `json:"failedPartitions"`
}

// HasDrift reports whether any entry is missing remotely or any fetch failed.
func (r *Report) HasDrift() bool {
	return r.TotalMissing > 0 || r.FailedPartitions > 0
}

// Options configures Run.
type Options struct {
	// Concurrency bounds in-flight fetches (DefaultConcurrency when zero)
	Concurrency int

	RemoteBaseURL string
	Logger        *zap.Logger
	Now           time.Time
}

// Run compares every local partition file under dataDir with its remote copy.
// Keys are checked in the given order and the report keeps that order.
// A failed fetch is recorded for its partition and never stops the others.
// Missing or unreadable local files are data integrity errors and abort
// before any network request.
func Run(ctx context.Context, dataDir string, keys []string, fetcher Fetcher, opts Options) (*Report, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	local := make([][]string, len(keys))
	for i, key := range keys {
		ids, err := ReadLocalIDs(dataDir, key)
		if err != nil {
			return nil, err
		}
		local[i] = ids
	}

	results := make([]PartitionResult, len(keys))
	p := pool.New().WithMaxGoroutines(concurrency)
	for i, key := range keys {
		i, key := i, key
		p.Go(func() {
			res := fetcher.Fetch(ctx, key)
			results[i] = compare(key, local[i], res)
			if res.Err != nil {
				logger.Warn("Remote partition fetch failed",
					zap.String("key", key),
					zap.Error(res.Err),
				)
				return
			}
			logger.Debug("Remote partition checked",
				zap.String("key", key),
				zap.Int("local", len(local[i])),
				zap.Int("remote", len(res.IDs)),
				zap.Int("missing", len(results[i].Missing)),
			)
		})
	}
	p.Wait()

	if ctx.Err() != nil {
		return nil, errors.NewCancelled("verify")
	}

	report := &Report{
		ID:            ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		RemoteBaseURL: opts.RemoteBaseURL,
		CheckedAt:     now,
		Partitions:    results,
	}
	for i := range results {
		r := &results[i]
		report.TotalLocal += r.Local
		report.TotalMissing += len(r.Missing)
		if r.Failed() {
			report.FailedPartitions++
		} else if len(r.Missing) > 0 {
			report.DriftedPartitions++
		}
	}

	logger.Info("Verification finished",
		zap.Int("partitions", len(results)),
		zap.Int("missing", report.TotalMissing),
		zap.Int("failed", report.FailedPartitions),
	)
	return report, nil
}

// compare computes local minus remote. Remote-only ids are ignored.
func compare(key string, local []string, res FetchResult) PartitionResult {
	out := PartitionResult{
		Key:     key,
		File:    chunk.PartitionFileName(key),
		Local:   len(local),
		Missing: []string{},
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
		return out
	}
	out.Remote = len(res.IDs)

	remote := make(map[string]struct{}, len(res.IDs))
	for _, id := range res.IDs {
		remote[id] = struct{}{}
	}
	for _, id := range local {
		if _, ok := remote[id]; !ok {
			out.Missing = append(out.Missing, id)
		}
	}
	return out
}

// ReadLocalIDs reads the entry ids of the local partition file for key.
func ReadLocalIDs(dataDir, key string) ([]string, error) {
	p := filepath.Join(dataDir, filepath.FromSlash(chunk.PartitionPath(key)))
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewDataIntegrity("local partition file missing: " + chunk.PartitionFileName(key) + " (run build first)")
		}
		return nil, errors.NewInternal(err)
	}
	ids, err := ParseIDs(data)
	if err != nil {
		return nil, errors.NewDataIntegrity("local partition file " + chunk.PartitionFileName(key) + ": " + err.Error())
	}
	return ids, nil
}
