package ops

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/soundbluemusic/dictgen/internal/artifact"
	"github.com/soundbluemusic/dictgen/internal/errors"
	"github.com/soundbluemusic/dictgen/internal/verify"
)

// VerifyInput contains parameters for the Verify operation. Zero values fall
// back to the config.
type VerifyInput struct {
	RemoteBaseURL string
	FailOnDrift   bool

	// ReportPath writes a Markdown report there plus an .html rendering next to it
	ReportPath string

	// Fetcher replaces the HTTP fetcher (tests)
	Fetcher verify.Fetcher
}

// VerifyOutput contains the result of the Verify operation.
type VerifyOutput struct {
	Report     *verify.Report `json:"report"`
	ReportPath string         `json:"report_path,omitempty"`
	HTMLPath   string         `json:"html_path,omitempty"`
}

// Verify checks the deployed partition files against the local build.
//
// Drift is a finding, not a failure: the output is returned with a nil error.
// With fail_on_drift the output is returned together with a DRIFT_DETECTED
// error so callers can still print the report.
func Verify(ctx context.Context, rt *Runtime, input VerifyInput) (*VerifyOutput, error) {
	cfg := rt.Config
	base := strings.TrimSpace(input.RemoteBaseURL)
	if base == "" {
		base = cfg.RemoteBaseURL
	}
	if base == "" && input.Fetcher == nil {
		return nil, errors.NewInvalidConfig("remote_base_url", "is required (config, REMOTE_BASE_URL or --remote)")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	data, err := rt.loadIndexed(ctx)
	if err != nil {
		return nil, err
	}

	fetcher := input.Fetcher
	if fetcher == nil {
		hf := verify.NewHTTPFetcher(base, time.Duration(cfg.VerifyTimeoutSeconds)*time.Second)
		defer hf.Close()
		fetcher = hf
	}

	report, err := verify.Run(ctx, cfg.DataDir(), data.idx.Keys, fetcher, verify.Options{
		Concurrency:   cfg.VerifyConcurrency,
		RemoteBaseURL: base,
		Logger:        rt.Logger,
		Now:           rt.Now(),
	})
	if err != nil {
		return nil, err
	}

	out := &VerifyOutput{Report: report}
	if input.ReportPath != "" {
		if err := writeReport(out, input.ReportPath); err != nil {
			return nil, err
		}
		rt.Logger.Info("Verification report written", zap.String("path", out.ReportPath))
	}

	if (input.FailOnDrift || cfg.FailOnDrift) && report.HasDrift() {
		return out, errors.NewDriftDetected(report.TotalMissing, report.FailedPartitions)
	}
	return out, nil
}

func writeReport(out *VerifyOutput, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.NewInternal(err)
	}
	w := artifact.NewWriter(filepath.Dir(abs), false)
	base := filepath.Base(abs)

	if err := w.WriteFile(base, out.Report.Markdown()); err != nil {
		return err
	}
	html, err := out.Report.HTML()
	if err != nil {
		return err
	}
	htmlName := strings.TrimSuffix(base, filepath.Ext(base)) + ".html"
	if err := w.WriteFile(htmlName, html); err != nil {
		return err
	}

	out.ReportPath = abs
	out.HTMLPath = filepath.Join(filepath.Dir(abs), htmlName)
	return nil
}

// VerifyLocalOutput contains the result of the VerifyLocal operation.
type VerifyLocalOutput struct {
	Report *verify.LocalReport `json:"report"`
	Locale string              `json:"locale"`
}

// VerifyLocal checks the local output without network access. Unresolved
// entries are a data integrity error; the output is returned alongside it.
func VerifyLocal(ctx context.Context, rt *Runtime) (*VerifyLocalOutput, error) {
	if err := rt.Config.Validate(); err != nil {
		return nil, err
	}
	data, err := rt.loadIndexed(ctx)
	if err != nil {
		return nil, err
	}

	locale := rt.Config.Locales[0].Code
	report, err := verify.VerifyLocal(ctx, verify.LocalInput{
		DataDir: rt.Config.DataDir(),
		Index:   data.idx,
		CategoryOf: func(id string) string {
			if e, ok := data.ds.Lookup(id); ok {
				return e.CategoryID
			}
			return ""
		},
		Locale: locale,
	})
	if err != nil {
		return nil, err
	}

	out := &VerifyLocalOutput{Report: report, Locale: locale}
	if !report.OK() {
		ids := make([]string, 0, len(report.Failures))
		seen := make(map[string]bool)
		for _, f := range report.Failures {
			if !seen[f.ID] {
				seen[f.ID] = true
				ids = append(ids, f.ID)
			}
		}
		return out, errors.NewDataIntegrity("local output does not resolve every entry", ids...)
	}
	return out, nil
}
