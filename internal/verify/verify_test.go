package verify

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/soundbluemusic/dictgen/internal/chunk"
	"github.com/soundbluemusic/dictgen/internal/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

// writeLocal writes chunks/entries-<key>.json with the given ids.
func writeLocal(t *testing.T, dataDir, key string, ids ...string) {
	t.Helper()
	var parts []string
	for _, id := range ids {
		parts = append(parts, `{"id":"`+id+`","korean":"가"}`)
	}
	p := filepath.Join(dataDir, filepath.FromSlash(chunk.PartitionPath(key)))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte("["+strings.Join(parts, ",")+"]"), 0o644))
}

type staticFetcher map[string]FetchResult

func (f staticFetcher) Fetch(_ context.Context, key string) FetchResult {
	return f[key]
}

func TestRun_ReportsOnlyLocalMinusRemote(t *testing.T) {
	dataDir := t.TempDir()
	writeLocal(t, dataDir, "p", "a", "b", "c")

	report, err := Run(context.Background(), dataDir, []string{"p"}, staticFetcher{
		"p": {IDs: []string{"a", "b", "z"}},
	}, Options{})
	require.NoError(t, err)

	require.Len(t, report.Partitions, 1)
	assert.Equal(t, []string{"c"}, report.Partitions[0].Missing)
	assert.Equal(t, 1, report.TotalMissing)
	assert.Equal(t, 1, report.DriftedPartitions)
	assert.True(t, report.HasDrift())
	assert.NotEmpty(t, report.ID)
}

func TestRun_NoDrift(t *testing.T) {
	dataDir := t.TempDir()
	writeLocal(t, dataDir, "p", "a", "b")

	report, err := Run(context.Background(), dataDir, []string{"p"}, staticFetcher{
		"p": {IDs: []string{"b", "a"}},
	}, Options{})
	require.NoError(t, err)
	assert.False(t, report.HasDrift())
	assert.True(t, report.Partitions[0].OK())
}

func TestRun_EmptyRemoteIsNotAFetchFailure(t *testing.T) {
	dataDir := t.TempDir()
	writeLocal(t, dataDir, "p", "a")

	report, err := Run(context.Background(), dataDir, []string{"p"}, staticFetcher{
		"p": {IDs: []string{}},
	}, Options{})
	require.NoError(t, err)
	assert.False(t, report.Partitions[0].Failed())
	assert.Equal(t, []string{"a"}, report.Partitions[0].Missing)
}

func TestRun_MissingLocalFile(t *testing.T) {
	_, err := Run(context.Background(), t.TempDir(), []string{"p"}, staticFetcher{}, Options{})
	assert.True(t, errors.Is(err, errors.ErrDataIntegrity), "err = %v", err)
}

func TestRun_HTTPContinuesAfterFailure(t *testing.T) {
	dataDir := t.TempDir()
	keys := []string{"ㄱ", "ㄴ", "ㄷ", "etc"}
	writeLocal(t, dataDir, "ㄱ", "a1", "a2")
	writeLocal(t, dataDir, "ㄴ", "b1")
	writeLocal(t, dataDir, "ㄷ", "c1")
	writeLocal(t, dataDir, "etc", "d1", "d2")

	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		switch r.URL.Path {
		case "/data/chunks/entries-ㄱ.json":
			_, _ = w.Write([]byte(`[{"id":"a1"},{"id":"a2"}]`))
		case "/data/chunks/entries-ㄴ.json":
			http.Error(w, "boom", http.StatusInternalServerError)
		case "/data/chunks/entries-ㄷ.json":
			_, _ = w.Write([]byte(`{not json`))
		case "/data/chunks/entries-etc.json":
			_, _ = w.Write([]byte(`[{"id":"d1"}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	fetcher := NewHTTPFetcher(srv.URL+"/", 5*time.Second)
	defer fetcher.Close()

	report, err := Run(context.Background(), dataDir, keys, fetcher, Options{Concurrency: 2, RemoteBaseURL: srv.URL})
	require.NoError(t, err)

	assert.EqualValues(t, 4, requests.Load())
	require.Len(t, report.Partitions, 4)
	for i, key := range keys {
		assert.Equal(t, key, report.Partitions[i].Key, "report keeps partition order")
	}

	assert.True(t, report.Partitions[0].OK())
	assert.True(t, report.Partitions[1].Failed())
	assert.Contains(t, report.Partitions[1].Error, "500")
	assert.True(t, report.Partitions[2].Failed())
	assert.Equal(t, []string{"d2"}, report.Partitions[3].Missing)

	assert.Equal(t, 2, report.FailedPartitions)
	assert.Equal(t, 1, report.TotalMissing)
	assert.Equal(t, 6, report.TotalLocal)
}

func TestHTTPFetcher_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	fetcher := NewHTTPFetcher(srv.URL, 50*time.Millisecond)
	defer fetcher.Close()

	res := fetcher.Fetch(context.Background(), "ㄱ")
	assert.True(t, errors.Is(res.Err, errors.ErrFetchFailed), "err = %v", res.Err)
	assert.Nil(t, res.IDs)
}

func TestHTTPFetcher_URLEscapesKey(t *testing.T) {
	f := NewHTTPFetcher("https://example.com/", time.Second)
	assert.Equal(t, "https://example.com/data/chunks/entries-%E3%84%B1.json", f.URL("ㄱ"))
	assert.Equal(t, "https://example.com/data/chunks/entries-a%2Fb.json", f.URL("a/b"))
}

func TestParseIDs(t *testing.T) {
	ids, err := ParseIDs([]byte(`[{"id":"x"},{"id":"y","korean":"나"}]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, ids)

	ids, err = ParseIDs([]byte(`[]`))
	require.NoError(t, err)
	assert.Empty(t, ids)

	for _, bad := range []string{`{"id":"x"}`, `[{"id":1}]`, `[{"korean":"가"}]`, `[`} {
		_, err := ParseIDs([]byte(bad))
		assert.Error(t, err, bad)
	}
}

func TestReport_WriteText(t *testing.T) {
	report := &Report{
		Partitions: []PartitionResult{
			{Key: "ㄱ", File: "entries-ㄱ.json", Local: 2, Remote: 2, Missing: []string{}},
			{Key: "ㄴ", File: "entries-ㄴ.json", Local: 3, Remote: 2, Missing: []string{"c"}},
			{Key: "ㄷ", File: "entries-ㄷ.json", Local: 1, Missing: []string{}, Error: "FETCH_FAILED: timeout"},
		},
		TotalLocal: 6, TotalMissing: 1, DriftedPartitions: 1, FailedPartitions: 1,
	}

	var buf bytes.Buffer
	require.NoError(t, report.WriteText(&buf))
	out := buf.String()

	assert.Contains(t, out, "[OK] entries-ㄱ.json (2 entries)\n")
	assert.Contains(t, out, "[FAIL] entries-ㄴ.json missing 1 entries: c\n")
	assert.Contains(t, out, "[FAIL] entries-ㄷ.json fetch failed: FETCH_FAILED: timeout\n")
	assert.Contains(t, out, "--- Summary ---")
	assert.Contains(t, out, "Result: DRIFT DETECTED")
}

func TestReport_HTML(t *testing.T) {
	report := &Report{
		ID:           "01J000",
		CheckedAt:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Partitions:   []PartitionResult{{Key: "p", File: "entries-p.json", Local: 1, Missing: []string{"x"}}},
		TotalMissing: 1,
	}

	html, err := report.HTML()
	require.NoError(t, err)
	assert.Contains(t, string(html), "<h1>Deployment verification 01J000</h1>")
	assert.Contains(t, string(html), "<code>x</code>")
	assert.Contains(t, string(html), "<table>")
}

func TestListIDs_Truncates(t *testing.T) {
	ids := make([]string, maxListedIDs+3)
	for i := range ids {
		ids[i] = "id"
	}
	assert.True(t, strings.HasSuffix(listIDs(ids), "(3 more)"))
}
