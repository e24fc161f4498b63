package ops

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/soundbluemusic/dictgen/internal/chunk"
	"github.com/soundbluemusic/dictgen/internal/errors"
	"github.com/soundbluemusic/dictgen/internal/verify"
)

// lagFetcher serves every partition except the ids in missing.
type lagFetcher struct {
	dataDir string
	missing map[string]bool
}

func (f lagFetcher) Fetch(_ context.Context, key string) verify.FetchResult {
	ids, err := verify.ReadLocalIDs(f.dataDir, key)
	if err != nil {
		return verify.FetchResult{Err: err}
	}
	var served []string
	for _, id := range ids {
		if !f.missing[id] {
			served = append(served, id)
		}
	}
	return verify.FetchResult{IDs: served}
}

func buildPartitions(t *testing.T, rt *Runtime) {
	t.Helper()
	if _, err := Build(context.Background(), rt, BuildInput{Tasks: []Task{TaskPartitions, TaskCategories}}); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
}

func TestVerify_ReportOnlyByDefault(t *testing.T) {
	rt := newTestRuntime(t, sevenEntries())
	buildPartitions(t, rt)

	out, err := Verify(context.Background(), rt, VerifyInput{
		Fetcher: lagFetcher{dataDir: rt.Config.DataDir(), missing: map[string]bool{"gamsa": true}},
	})
	if err != nil {
		t.Fatalf("Verify() error = %v, want nil without fail_on_drift", err)
	}
	if out.Report.TotalMissing != 1 {
		t.Errorf("TotalMissing = %d, want 1", out.Report.TotalMissing)
	}
	// Partitions follow index order: first appearance in merge order.
	if out.Report.Partitions[0].Key != "ㅅ" {
		t.Errorf("first partition = %q, want ㅅ", out.Report.Partitions[0].Key)
	}
}

func TestVerify_FailOnDrift(t *testing.T) {
	rt := newTestRuntime(t, sevenEntries())
	buildPartitions(t, rt)
	reportPath := filepath.Join(t.TempDir(), "reports", "verify.md")

	out, err := Verify(context.Background(), rt, VerifyInput{
		FailOnDrift: true,
		ReportPath:  reportPath,
		Fetcher:     lagFetcher{dataDir: rt.Config.DataDir(), missing: map[string]bool{"gamsa": true}},
	})
	if !errors.Is(err, errors.ErrDriftDetected) {
		t.Fatalf("Verify() error = %v, want DRIFT_DETECTED", err)
	}
	if errors.ExitCode(err) != errors.ExitDrift {
		t.Errorf("ExitCode = %d, want %d", errors.ExitCode(err), errors.ExitDrift)
	}
	if out == nil || out.Report == nil {
		t.Fatal("Verify() should return the report with the drift error")
	}

	md, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	if !strings.Contains(string(md), "`gamsa`") {
		t.Errorf("report does not name the missing id:\n%s", md)
	}
	html, err := os.ReadFile(filepath.Join(filepath.Dir(reportPath), "verify.html"))
	if err != nil {
		t.Fatalf("html report not written: %v", err)
	}
	if !strings.Contains(string(html), "<table>") {
		t.Errorf("html report has no table:\n%s", html)
	}
}

func TestVerify_NoDriftWithFailOnDrift(t *testing.T) {
	rt := newTestRuntime(t, sevenEntries())
	rt.Config.FailOnDrift = true
	buildPartitions(t, rt)

	out, err := Verify(context.Background(), rt, VerifyInput{Fetcher: lagFetcher{dataDir: rt.Config.DataDir()}})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if out.Report.HasDrift() {
		t.Error("HasDrift() = true, want false")
	}
}

func TestVerify_RequiresRemoteBaseURL(t *testing.T) {
	rt := newTestRuntime(t, sevenEntries())
	rt.Config.RemoteBaseURL = ""

	_, err := Verify(context.Background(), rt, VerifyInput{})
	if !errors.Is(err, errors.ErrInvalidConfig) {
		t.Fatalf("Verify() error = %v, want INVALID_CONFIG", err)
	}
}

func TestVerify_MissingLocalBuild(t *testing.T) {
	rt := newTestRuntime(t, sevenEntries())

	_, err := Verify(context.Background(), rt, VerifyInput{Fetcher: lagFetcher{dataDir: rt.Config.DataDir()}})
	if !errors.Is(err, errors.ErrDataIntegrity) {
		t.Fatalf("Verify() error = %v, want DATA_INTEGRITY", err)
	}
}

func TestVerifyLocal(t *testing.T) {
	rt := newTestRuntime(t, sevenEntries())
	buildPartitions(t, rt)

	out, err := VerifyLocal(context.Background(), rt)
	if err != nil {
		t.Fatalf("VerifyLocal() error = %v", err)
	}
	if out.Report.Checked != 7 || !out.Report.OK() {
		t.Errorf("report = %+v", out.Report)
	}

	if err := os.Remove(filepath.Join(rt.Config.DataDir(), filepath.FromSlash(chunk.PartitionPath("ㅅ")))); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	out, err = VerifyLocal(context.Background(), rt)
	if !errors.Is(err, errors.ErrDataIntegrity) {
		t.Fatalf("VerifyLocal() error = %v, want DATA_INTEGRITY", err)
	}
	if out == nil || out.Report.OK() {
		t.Error("VerifyLocal() should return the failing report")
	}
}
