package verify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/soundbluemusic/dictgen/internal/chunk"
	"github.com/soundbluemusic/dictgen/internal/errors"
)

// maxPartitionBytes caps how much of one remote partition is read.
const maxPartitionBytes = 256 << 20

// FetchResult is the outcome of fetching one remote partition. A nil Err with
// no IDs means the remote partition exists and is empty.
type FetchResult struct {
	IDs []string
	Err error
}

// Fetcher retrieves the entry ids of one deployed partition.
type Fetcher interface {
	Fetch(ctx context.Context, key string) FetchResult
}

// HTTPFetcher fetches partitions from <baseURL>/data/chunks/entries-<key>.json.
type HTTPFetcher struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
}

// NewHTTPFetcher creates a fetcher with a per-request timeout.
func NewHTTPFetcher(baseURL string, timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		timeout: timeout,
		client: &http.Client{
			Timeout:   timeout,
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
		},
	}
}

// Close releases idle connections.
func (f *HTTPFetcher) Close() {
	f.client.CloseIdleConnections()
}

// URL returns the remote location of one partition. The key is path-escaped.
func (f *HTTPFetcher) URL(key string) string {
	return f.baseURL + "/data/" + chunk.ChunksDir + "/" + url.PathEscape(chunk.PartitionFileName(key))
}

// Fetch downloads one partition. Timeouts, transport errors, non-2xx responses
// and malformed bodies all come back as a FETCH_FAILED error in the result.
func (f *HTTPFetcher) Fetch(ctx context.Context, key string) FetchResult {
	target := f.URL(key)

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return FetchResult{Err: errors.NewFetchFailed(target, 0, err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return FetchResult{Err: errors.NewFetchFailed(target, 0, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return FetchResult{Err: errors.NewFetchFailed(target, resp.StatusCode, nil)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPartitionBytes+1))
	if err != nil {
		return FetchResult{Err: errors.NewFetchFailed(target, 0, err)}
	}
	if len(body) > maxPartitionBytes {
		return FetchResult{Err: errors.NewFetchFailed(target, 0, fmt.Errorf("response exceeds %d bytes", maxPartitionBytes))}
	}

	ids, err := ParseIDs(body)
	if err != nil {
		return FetchResult{Err: errors.NewFetchFailed(target, 0, err)}
	}
	return FetchResult{IDs: ids}
}

// ParseIDs extracts the id of every element of a JSON array of entries.
func ParseIDs(data []byte) ([]string, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("malformed JSON")
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsArray() {
		return nil, fmt.Errorf("expected a JSON array of entries")
	}

	elems := doc.Array()
	ids := make([]string, 0, len(elems))
	for i, e := range elems {
		id := e.Get("id")
		if id.Type != gjson.String || id.String() == "" {
			return nil, fmt.Errorf("element %d has no string id", i)
		}
		ids = append(ids, id.String())
	}
	return ids, nil
}
