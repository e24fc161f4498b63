package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/soundbluemusic/dictgen/internal/config"
	"github.com/soundbluemusic/dictgen/internal/errors"
	"github.com/soundbluemusic/dictgen/internal/loader"
	"github.com/soundbluemusic/dictgen/internal/logging"
	"github.com/soundbluemusic/dictgen/internal/mcp"
	"github.com/soundbluemusic/dictgen/internal/ops"
	"github.com/soundbluemusic/dictgen/internal/web"
)

// appState carries the runtime from the Before hook into the commands.
type appState struct {
	rt *ops.Runtime
}

// load resolves config file, .env and process environment for the project in dir.
func (s *appState) load(dir, logLevel string) error {
	if s.rt != nil {
		return nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return errors.NewInvalidConfig("dir", err.Error())
	}
	if err := config.LoadDotEnv(abs); err != nil {
		return err
	}
	cfg, err := config.Load(abs)
	if err != nil {
		return err
	}
	env, err := config.LoadEnv()
	if err != nil {
		return err
	}
	cfg = cfg.Apply(env)
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return errors.NewInvalidConfig("log_file", err.Error())
	}
	s.rt = ops.NewRuntime(cfg, env, logger)
	return nil
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(s *appState) *cli.App {
	app := &cli.App{
		Name:    "dictgen",
		Usage:   "Partition a static dictionary into chunked JSON, route sets and an offline database",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Aliases: []string{"C"}, Value: ".", Usage: "Project directory holding " + config.FileName},
			&cli.StringFlag{Name: "log-level", Usage: "Log level: debug|info|warn|error (overrides config)"},
		},
		Before: func(c *cli.Context) error {
			if err := s.load(c.String("dir"), c.String("log-level")); err != nil {
				return outputError(err)
			}
			return nil
		},
		After: func(c *cli.Context) error {
			if s.rt != nil {
				_ = s.rt.Logger.Sync()
			}
			return nil
		},
		Commands: []*cli.Command{
			buildCmd(s, "build", "Run every build task", nil),
			buildCmd(s, "chunks", "Write browse chunks only", []ops.Task{ops.TaskBrowse}),
			buildCmd(s, "index", "Write partition files and the entry index only", []ops.Task{ops.TaskPartitions}),
			routesCmd(s),
			metaCmd(s),
			verifyCmd(s),
			verifyLocalCmd(s),
			exportDBCmd(s),
			lookupCmd(s),
			listCmd(s),
			serveCmd(s),
			mcpCmd(s),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// buildCmd creates build and its single-task shortcuts.
func buildCmd(s *appState, name, usage string, tasks []ops.Task) *cli.Command {
	flags := []cli.Flag{
		&cli.BoolFlag{Name: "json", Usage: "Print the build summary as JSON"},
		&cli.BoolFlag{Name: "compress", Usage: "Also write .zst siblings of partition and full category files"},
	}
	if tasks == nil {
		flags = append(flags,
			&cli.StringSliceFlag{Name: "task", Aliases: []string{"t"}, Usage: "Restrict to tasks: browse, partitions, categories, sitemaps, homonyms, offline-db"},
			&cli.BoolFlag{Name: "skip-offline-db", Usage: "Do not write the offline SQLite database"},
		)
	}

	return &cli.Command{
		Name:  name,
		Usage: usage,
		Flags: flags,
		Action: func(c *cli.Context) error {
			if c.Bool("compress") {
				s.rt.Config.Compress = true
			}
			if c.Bool("skip-offline-db") {
				s.rt.Config.SkipOfflineDB = true
			}

			input := ops.BuildInput{Tasks: tasks}
			for _, t := range c.StringSlice("task") {
				input.Tasks = append(input.Tasks, ops.Task(strings.TrimSpace(t)))
			}

			output, err := ops.Build(c.Context, s.rt, input)
			if output != nil {
				if c.Bool("json") {
					if jerr := outputJSON(c.App.Writer, output); jerr != nil {
						return outputError(errors.NewInternal(jerr))
					}
				} else {
					writeBuildSummary(c.App.Writer, output, err == nil)
				}
			}
			if err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// routesCmd creates the routes command.
func routesCmd(s *appState) *cli.Command {
	return &cli.Command{
		Name:  "routes",
		Usage: "Print the routes one build invocation pre-renders (BUILD_TARGET, CHUNK_INDEX, CHUNK_SIZE)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "target", Usage: "Build target: pages|all|chunked (overrides BUILD_TARGET)"},
			&cli.IntFlag{Name: "chunk-index", Usage: "Zero-based route chunk (overrides CHUNK_INDEX)"},
			&cli.IntFlag{Name: "chunk-size", Usage: "Entries per route chunk (overrides CHUNK_SIZE)"},
			&cli.BoolFlag{Name: "json", Usage: "Print metadata and routes as JSON"},
		},
		Action: func(c *cli.Context) error {
			input := ops.RoutesInput{
				Target:    config.BuildTarget(c.String("target")),
				ChunkSize: c.Int("chunk-size"),
			}
			if c.IsSet("chunk-index") {
				input.ChunkIndex, input.HasChunkIndex = c.Int("chunk-index"), true
			}
			if c.IsSet("chunk-size") && input.ChunkSize <= 0 {
				return outputError(errors.NewInvalidConfig(config.EnvChunkSize, "must be a positive integer"))
			}

			output, err := ops.Routes(c.Context, s.rt, input)
			if err != nil {
				return outputError(err)
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, output)
			}
			for _, r := range output.Routes {
				fmt.Fprintln(c.App.Writer, r)
			}
			return nil
		},
	}
}

// metaCmd creates the meta command.
func metaCmd(s *appState) *cli.Command {
	return &cli.Command{
		Name:  "meta",
		Usage: "Show the metadata of the last build",
		Action: func(c *cli.Context) error {
			output, err := ops.Meta(c.Context, s.rt)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// verifyCmd creates the verify command. It needs no flags: the remote comes
// from config or REMOTE_BASE_URL.
func verifyCmd(s *appState) *cli.Command {
	return &cli.Command{
		Name:  "verify",
		Usage: "Compare every local partition file with the deployed copy",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "remote", Usage: "Deployed origin (overrides remote_base_url)"},
			&cli.BoolFlag{Name: "fail-on-drift", Usage: "Exit 3 when entries are missing remotely or a fetch failed"},
			&cli.StringFlag{Name: "report", Usage: "Write a Markdown report (and an .html rendering) to this path"},
			&cli.BoolFlag{Name: "json", Usage: "Print the report as JSON"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Verify(c.Context, s.rt, ops.VerifyInput{
				RemoteBaseURL: c.String("remote"),
				FailOnDrift:   c.Bool("fail-on-drift"),
				ReportPath:    c.String("report"),
			})
			// With fail_on_drift the report comes back alongside the error.
			if output != nil {
				if c.Bool("json") {
					if jerr := outputJSON(c.App.Writer, output); jerr != nil {
						return outputError(errors.NewInternal(jerr))
					}
				} else {
					if werr := output.Report.WriteText(c.App.Writer); werr != nil {
						return outputError(errors.NewInternal(werr))
					}
					if output.ReportPath != "" {
						fmt.Fprintf(c.App.Writer, "Report: %s\n", output.ReportPath)
					}
				}
			}
			if err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// verifyLocalCmd creates the verify-local command.
func verifyLocalCmd(s *appState) *cli.Command {
	return &cli.Command{
		Name:  "verify-local",
		Usage: "Check that every entry resolves in the local partition and category files",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Print the report as JSON"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.VerifyLocal(c.Context, s.rt)
			if output != nil {
				if c.Bool("json") {
					if jerr := outputJSON(c.App.Writer, output); jerr != nil {
						return outputError(errors.NewInternal(jerr))
					}
				} else {
					writeLocalReport(c.App.Writer, output)
				}
			}
			if err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// exportDBCmd creates the export-db command.
func exportDBCmd(s *appState) *cli.Command {
	return &cli.Command{
		Name:  "export-db",
		Usage: "Write the offline SQLite database",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Usage: "Output path (default: <out_dir>/data/offline/context.db)"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.ExportDB(c.Context, s.rt, ops.ExportDBInput{Path: c.String("path")})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// lookupCmd creates the lookup command.
func lookupCmd(s *appState) *cli.Command {
	return &cli.Command{
		Name:      "lookup",
		Usage:     "Show one entry with its partition, category and routes",
		ArgsUsage: "[--locale code] [--source data|db] <id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "locale", Aliases: []string{"l"}, Usage: "Project the entry onto one locale"},
			&cli.StringFlag{Name: "source", Value: ops.SourceData, Usage: "Read from: data|db"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return outputError(errors.NewInvalidConfig("id", "is required"))
			}

			output, err := ops.Lookup(c.Context, s.rt, ops.LookupInput{
				ID:     c.Args().First(),
				Locale: c.String("locale"),
				Source: c.String("source"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// listCmd creates the list command.
func listCmd(s *appState) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List the entries of one partition or category from the offline database",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "partition", Aliases: []string{"p"}, Usage: "Partition key"},
			&cli.StringFlag{Name: "category", Aliases: []string{"c"}, Usage: "Category id"},
			&cli.IntFlag{Name: "limit", Value: 20, Usage: "Maximum entries to return"},
			&cli.IntFlag{Name: "offset", Value: 0, Usage: "Number of entries to skip"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.ListEntries(c.Context, s.rt, ops.ListEntriesInput{
				Partition: c.String("partition"),
				Category:  c.String("category"),
				Limit:     c.Int("limit"),
				Offset:    c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(s *appState) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Preview the build output in a local web server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Value: 8080, Usage: "Port to listen on"},
			watchFlag(),
		},
		Action: func(c *cli.Context) error {
			ctx, cancel := context.WithCancel(c.Context)
			defer cancel()
			if c.Bool("watch") {
				s.watchSources(ctx)
			}

			srv, err := web.NewServer(s.rt, Version, c.String("bind"), c.Int("port"))
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			if err := web.Run(ctx, srv, s.rt.Logger); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(s *appState) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the dictionary tools over MCP stdio",
		Flags: []cli.Flag{watchFlag()},
		Action: func(c *cli.Context) error {
			ctx, cancel := context.WithCancel(c.Context)
			defer cancel()
			if c.Bool("watch") {
				s.watchSources(ctx)
			}

			if unknown := mcp.ValidateDisabledTools(s.rt.Config.DisabledTools); len(unknown) > 0 {
				s.rt.Logger.Warn("Unknown tools in disabled_tools", zap.Strings("tools", unknown))
			}
			if err := mcp.Run(s.rt, Version); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// Helper functions

func watchFlag() cli.Flag {
	return &cli.BoolFlag{Name: "watch", Value: true, Usage: "Reload the source data when entry or category files change"}
}

// watchSources invalidates the runtime cache on source edits until ctx is done.
// A watcher that cannot start is logged; explicit reloads still work.
func (s *appState) watchSources(ctx context.Context) {
	w, err := loader.NewWatcher(s.rt.Cache, s.rt.Logger, loader.DefaultDebounce)
	if err != nil {
		s.rt.Logger.Warn("Source watcher disabled", zap.Error(err))
		return
	}
	go w.Run(ctx)
}

// outputJSON writes v to w as indented JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats err for the CLI and carries its exit code.
func outputError(err error) error {
	var dErr *errors.DictError
	if stderrors.As(err, &dErr) {
		msg := dErr.Message
		if err != error(dErr) {
			msg = err.Error()
		}
		return cli.Exit(fmt.Sprintf("[%s] %s", dErr.Code, msg), errors.ExitCode(err))
	}
	return cli.Exit(err.Error(), errors.ExitFailure)
}

// writeBuildSummary prints one line per task and a summary block.
func writeBuildSummary(w io.Writer, out *ops.BuildOutput, ok bool) {
	fmt.Fprintf(w, "Indexed %d entries into %d %s partitions\n", out.TotalEntries, out.PartitionKeys, out.Partition)
	for _, t := range out.Tasks {
		if t.Error != "" {
			fmt.Fprintf(w, "[FAIL] %s: %s\n", t.Task, t.Error)
			continue
		}
		fmt.Fprintf(w, "[OK] %s (%s)\n", t.Task, t.Duration)
	}
	fmt.Fprintln(w, "--- Summary ---")
	fmt.Fprintf(w, "Run: %s\n", out.RunID)
	fmt.Fprintf(w, "Files written: %d (%s)\n", out.Files, out.Size)
	if out.Homonyms > 0 {
		fmt.Fprintf(w, "Homonyms: %d\n", out.Homonyms)
	}
	if out.Removed > 0 {
		fmt.Fprintf(w, "Stale files removed: %d\n", out.Removed)
	}
	fmt.Fprintf(w, "Duration: %s\n", out.Duration)
	if ok {
		fmt.Fprintln(w, "Result: OK")
	} else {
		fmt.Fprintln(w, "Result: FAILED")
	}
}

// writeLocalReport prints one line per unresolved entry and a verdict.
func writeLocalReport(w io.Writer, out *ops.VerifyLocalOutput) {
	for _, f := range out.Report.Failures {
		fmt.Fprintf(w, "[FAIL] %s: %s (%s)\n", f.ID, f.File, f.Reason)
	}
	fmt.Fprintf(w, "Checked %d entries (locale %s), %d failures\n", out.Report.Checked, out.Locale, len(out.Report.Failures))
	if out.Report.OK() {
		fmt.Fprintln(w, "Result: OK")
	} else {
		fmt.Fprintln(w, "Result: FAILED")
	}
}
