package ops

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/soundbluemusic/dictgen/internal/artifact"
	"github.com/soundbluemusic/dictgen/internal/chunk"
	"github.com/soundbluemusic/dictgen/internal/db"
	"github.com/soundbluemusic/dictgen/internal/errors"
	"github.com/soundbluemusic/dictgen/internal/sitemap"
)

// Task is one phase B output of a build.
type Task string

const (
	TaskBrowse     Task = "browse"
	TaskPartitions Task = "partitions"
	TaskCategories Task = "categories"
	TaskSitemaps   Task = "sitemaps"
	TaskHomonyms   Task = "homonyms"
	TaskOfflineDB  Task = "offline-db"
)

// AllTasks returns every build task in report order. The offline database
// stays last so skip_offline_db can drop it.
func AllTasks() []Task {
	return []Task{TaskBrowse, TaskPartitions, TaskCategories, TaskSitemaps, TaskHomonyms, TaskOfflineDB}
}

// BuildInput contains parameters for the Build operation.
type BuildInput struct {
	// Tasks restricts phase B (all tasks when empty)
	Tasks []Task
}

// TaskResult reports one phase B task.
type TaskResult struct {
	Task     Task   `json:"task"`
	Duration string `json:"duration"`
	Error    string `json:"error,omitempty"`
}

// BuildOutput contains the result of the Build operation.
type BuildOutput struct {
	RunID         string       `json:"run_id"`
	GeneratedAt   string       `json:"generated_at"`
	TotalEntries  int          `json:"total_entries"`
	Partition     string       `json:"partition"`
	PartitionKeys int          `json:"partition_keys"`
	BrowseChunks  int          `json:"browse_chunks"`
	Categories    int          `json:"categories"`
	Sitemaps      []string     `json:"sitemaps,omitempty"`
	Homonyms      int          `json:"homonyms"`
	OfflineDB     string       `json:"offline_db,omitempty"`
	Removed       int          `json:"removed"`
	Files         int64        `json:"files"`
	Bytes         int64        `json:"bytes"`
	Size          string       `json:"size"`
	Duration      string       `json:"duration"`
	Tasks         []TaskResult `json:"tasks"`
}

// Build runs the two-phase build. Phase A loads, validates and indexes the
// source data; nothing is written if it fails. Phase B runs the selected tasks
// concurrently, each to completion, and reports every failure.
func Build(ctx context.Context, rt *Runtime, input BuildInput) (*BuildOutput, error) {
	cfg := rt.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tasks, err := selectTasks(input.Tasks, cfg.SkipOfflineDB)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	now := rt.Now()

	// Phase A
	data, err := rt.loadIndexed(ctx)
	if err != nil {
		return nil, err
	}
	ds, idx := data.ds, data.idx
	rt.Logger.Info("Source data indexed",
		zap.Int("entries", idx.Len()),
		zap.Int("partitions", len(idx.Keys)),
		zap.String("partition", cfg.Partition),
	)

	out := &BuildOutput{
		RunID:         newRunID(now),
		GeneratedAt:   now.UTC().Format(chunk.TimeLayout),
		TotalEntries:  idx.Len(),
		Partition:     cfg.Partition,
		PartitionKeys: len(idx.Keys),
		Tasks:         make([]TaskResult, len(tasks)),
	}

	dataWriter := artifact.NewWriter(cfg.DataDir(), cfg.Compress)
	siteWriter := artifact.NewWriter(cfg.OutDir, false)

	// Each task owns distinct output fields and paths; errs and Removed are shared.
	var (
		mu   sync.Mutex
		errs error
	)
	addRemoved := func(n int) {
		mu.Lock()
		out.Removed += n
		mu.Unlock()
	}

	runners := map[Task]func(context.Context) error{
		TaskBrowse: func(ctx context.Context) error {
			res, err := chunk.Generate(ctx, dataWriter, ds.Entries, chunk.Options{
				ChunkSize:  cfg.BrowseChunkSize,
				Strategies: chunk.DefaultStrategies(),
				Now:        now,
			})
			if err != nil {
				return err
			}
			out.BrowseChunks = res.Metadata.TotalChunks
			addRemoved(res.Removed)
			return nil
		},
		TaskPartitions: func(ctx context.Context) error {
			meta, err := chunk.WritePartitions(ctx, dataWriter, ds.Entries, idx, cfg.Partition, now)
			if err != nil {
				return err
			}
			addRemoved(meta.Removed)
			return nil
		},
		TaskCategories: func(ctx context.Context) error {
			meta, err := chunk.WriteCategoryChunks(ctx, dataWriter, ds.Entries, ds.Categories, cfg.LocaleCodes(), now)
			if err != nil {
				return err
			}
			out.Categories = len(meta.Categories)
			addRemoved(meta.Removed)
			return nil
		},
		TaskSitemaps: func(ctx context.Context) error {
			members := categoryMembers(ds)
			ids := categoryIDs(ds)
			groups := make([]sitemap.CategoryGroup, len(ids))
			for i, id := range ids {
				groups[i] = sitemap.CategoryGroup{ID: id, EntryIDs: members[id]}
			}
			res, err := sitemap.Write(ctx, siteWriter, sitemap.Input{
				SiteURL: cfg.SiteURL,
				Locales: cfg.Locales,
				Groups:  groups,
				Now:     now,
			})
			if err != nil {
				return err
			}
			out.Sitemaps = res.Files
			return nil
		},
		TaskHomonyms: func(ctx context.Context) error {
			res, err := chunk.WriteHomonyms(ctx, dataWriter, ds.Entries)
			if err != nil {
				return err
			}
			out.Homonyms = res.Words
			return nil
		},
		TaskOfflineDB: func(ctx context.Context) error {
			path := db.Path(cfg.DataDir())
			if err := exportOfflineDB(ctx, rt, data, out.RunID, now, path); err != nil {
				return err
			}
			out.OfflineDB = path
			return nil
		},
	}

	// A plain Group: one failing task must not cancel the others. Wait only
	// returns the first error, so every failure is also collected in errs.
	var g errgroup.Group
	for i, task := range tasks {
		i, task := i, task
		run := runners[task]
		g.Go(func() error {
			taskStart := time.Now()
			err := run(ctx)
			res := TaskResult{Task: task, Duration: time.Since(taskStart).Round(time.Millisecond).String()}
			if err != nil {
				res.Error = err.Error()
			}
			out.Tasks[i] = res
			if err != nil {
				rt.Logger.Error("Build task failed", zap.String("task", string(task)), zap.Error(err))
				err = fmt.Errorf("%s: %w", task, err)
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
				return err
			}
			rt.Logger.Debug("Build task finished", zap.String("task", string(task)), zap.String("duration", res.Duration))
			return nil
		})
	}
	failed := g.Wait()

	siteFiles, siteBytes := siteWriter.Stats()
	dataFiles, dataBytes := dataWriter.Stats()
	out.Files = siteFiles + dataFiles
	out.Bytes = siteBytes + dataBytes
	out.Size = humanize.Bytes(uint64(out.Bytes))
	out.Duration = time.Since(start).Round(time.Millisecond).String()

	if failed != nil {
		if ctx.Err() != nil {
			return out, errors.NewCancelled("build")
		}
		return out, errs
	}

	rt.Logger.Info("Build finished",
		zap.String("run_id", out.RunID),
		zap.Int("entries", out.TotalEntries),
		zap.Int64("files", out.Files),
		zap.String("size", out.Size),
		zap.String("duration", out.Duration),
	)
	return out, nil
}

func selectTasks(requested []Task, skipOfflineDB bool) ([]Task, error) {
	if len(requested) == 0 {
		tasks := AllTasks()
		if skipOfflineDB {
			tasks = tasks[:len(tasks)-1]
		}
		return tasks, nil
	}
	known := make(map[Task]bool)
	for _, t := range AllTasks() {
		known[t] = true
	}
	seen := make(map[Task]bool, len(requested))
	var tasks []Task
	for _, t := range requested {
		if !known[t] {
			return nil, errors.NewInvalidConfig("tasks", fmt.Sprintf("unknown build task %q", t))
		}
		if !seen[t] {
			seen[t] = true
			tasks = append(tasks, t)
		}
	}
	return tasks, nil
}
