package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	dicterrors "github.com/soundbluemusic/dictgen/internal/errors"
)

func TestLoad_DefaultWhenMissing(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BrowseChunkSize != DefaultConfig().BrowseChunkSize {
		t.Fatalf("BrowseChunkSize = %d, want %d", cfg.BrowseChunkSize, DefaultConfig().BrowseChunkSize)
	}
	if cfg.EntriesDir != filepath.Join(tmpDir, "data/entries") {
		t.Errorf("EntriesDir = %q, want resolved against base dir", cfg.EntriesDir)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestLoad_OverridesFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, FileName)

	if err := os.WriteFile(configPath, []byte(`{"browse_chunk_size": 500, "partition": "category"}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BrowseChunkSize != 500 {
		t.Fatalf("BrowseChunkSize = %d, want %d", cfg.BrowseChunkSize, 500)
	}
	if cfg.Partition != PartitionCategory {
		t.Errorf("Partition = %q, want %q", cfg.Partition, PartitionCategory)
	}
	if cfg.RouteChunkSize != 50000 {
		t.Errorf("RouteChunkSize = %d, want default 50000", cfg.RouteChunkSize)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, FileName)

	if err := os.WriteFile(configPath, []byte(`{not json}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	_, err := Load(tmpDir)
	if !dicterrors.Is(err, dicterrors.ErrInvalidConfig) {
		t.Fatalf("Load() error = %v, want INVALID_CONFIG", err)
	}
}

func TestLoad_AbsolutePathsKept(t *testing.T) {
	tmpDir := t.TempDir()
	abs := filepath.Join(t.TempDir(), "out")
	configPath := filepath.Join(tmpDir, FileName)

	if err := os.WriteFile(configPath, []byte(`{"out_dir": "`+filepath.ToSlash(abs)+`"}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if filepath.Clean(cfg.OutDir) != filepath.Clean(abs) {
		t.Errorf("OutDir = %q, want %q", cfg.OutDir, abs)
	}
	if cfg.DataDir() != filepath.Join(cfg.OutDir, "data") {
		t.Errorf("DataDir() = %q", cfg.DataDir())
	}
}

func TestLoad_DisabledTools(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, FileName)

	if err := os.WriteFile(configPath, []byte(`{"disabled_tools": ["dict_verify", " dict_verify ", "dict_meta"]}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.DisabledTools) != 2 {
		t.Fatalf("DisabledTools = %v, want 2 deduplicated", cfg.DisabledTools)
	}
	if cfg.DisabledTools[0] != "dict_verify" || cfg.DisabledTools[1] != "dict_meta" {
		t.Errorf("DisabledTools = %v", cfg.DisabledTools)
	}
}

func TestMerge_LocalesReplaced(t *testing.T) {
	base := DefaultConfig()
	overlay := &Config{Locales: []Locale{{Code: "ko", Prefix: ""}}}

	got := Merge(base, overlay)
	if len(got.Locales) != 1 || got.Locales[0].Code != "ko" {
		t.Fatalf("Locales = %v, want overlay locales", got.Locales)
	}

	got.Locales[0].Code = "xx"
	if overlay.Locales[0].Code != "ko" {
		t.Error("Merge should copy locales, not alias them")
	}
}

func TestMerge_Booleans(t *testing.T) {
	got := Merge(&Config{FailOnDrift: true}, &Config{Compress: true})
	if !got.FailOnDrift || !got.Compress || got.SkipOfflineDB {
		t.Errorf("booleans = %v/%v/%v", got.FailOnDrift, got.Compress, got.SkipOfflineDB)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		param  string
	}{
		{"zero browse chunk", func(c *Config) { c.BrowseChunkSize = 0 }, "browse_chunk_size"},
		{"negative route chunk", func(c *Config) { c.RouteChunkSize = -1 }, "route_chunk_size"},
		{"unknown partition", func(c *Config) { c.Partition = "hash" }, "partition"},
		{"no locales", func(c *Config) { c.Locales = nil }, "locales"},
		{"duplicate locale", func(c *Config) { c.Locales = []Locale{{Code: "en"}, {Code: "en", Prefix: "/x"}} }, "locales"},
		{"bad prefix", func(c *Config) { c.Locales = []Locale{{Code: "en"}, {Code: "ko", Prefix: "ko/"}} }, "locales"},
		{"empty entries dir", func(c *Config) { c.EntriesDir = " " }, "entries_dir"},
		{"zero concurrency", func(c *Config) { c.VerifyConcurrency = 0 }, "verify_concurrency"},
		{"zero timeout", func(c *Config) { c.VerifyTimeoutSeconds = 0 }, "verify_timeout_seconds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			var dErr *dicterrors.DictError
			if !asDictError(err, &dErr) {
				t.Fatalf("Validate() error = %v, want DictError", err)
			}
			if dErr.Details["param"] != tt.param {
				t.Errorf("param = %v, want %q", dErr.Details["param"], tt.param)
			}
		})
	}
}

func asDictError(err error, target **dicterrors.DictError) bool {
	dErr, ok := err.(*dicterrors.DictError)
	if ok {
		*target = dErr
	}
	return ok
}

func TestLocaleCodes(t *testing.T) {
	codes := DefaultConfig().LocaleCodes()
	if len(codes) != 2 || codes[0] != "en" || codes[1] != "ko" {
		t.Errorf("LocaleCodes() = %v, want [en ko]", codes)
	}
}

func envLookup(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestParseEnv_Defaults(t *testing.T) {
	env, err := ParseEnv(envLookup(nil))
	if err != nil {
		t.Fatalf("ParseEnv() error = %v", err)
	}
	if env.Target != TargetAll {
		t.Errorf("Target = %q, want %q", env.Target, TargetAll)
	}
	if env.HasChunkIndex {
		t.Error("HasChunkIndex should be false without CHUNK_INDEX")
	}
	if err := env.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestParseEnv_Chunked(t *testing.T) {
	env, err := ParseEnv(envLookup(map[string]string{
		EnvBuildTarget:       "chunked",
		EnvChunkIndex:        "2",
		EnvChunkSize:         "3",
		EnvVerifyFailOnDrift: "true",
		EnvSourceDateEpoch:   "1700000000",
	}))
	if err != nil {
		t.Fatalf("ParseEnv() error = %v", err)
	}
	if env.Target != TargetChunked || env.ChunkIndex != 2 || !env.HasChunkIndex || env.ChunkSize != 3 {
		t.Errorf("env = %+v", env)
	}
	if !env.FailOnDrift {
		t.Error("FailOnDrift should be true")
	}
	want := time.Unix(1700000000, 0).UTC()
	if !env.Now().Equal(want) {
		t.Errorf("Now() = %v, want %v", env.Now(), want)
	}
}

func TestParseEnv_Errors(t *testing.T) {
	tests := []struct {
		name  string
		vars  map[string]string
		param string
	}{
		{"bad target", map[string]string{EnvBuildTarget: "some"}, EnvBuildTarget},
		{"non-numeric index", map[string]string{EnvChunkIndex: "abc"}, EnvChunkIndex},
		{"negative index", map[string]string{EnvChunkIndex: "-1"}, EnvChunkIndex},
		{"zero size", map[string]string{EnvChunkSize: "0"}, EnvChunkSize},
		{"bad bool", map[string]string{EnvVerifyFailOnDrift: "sometimes"}, EnvVerifyFailOnDrift},
		{"bad epoch", map[string]string{EnvSourceDateEpoch: "yesterday"}, EnvSourceDateEpoch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEnv(envLookup(tt.vars))
			var dErr *dicterrors.DictError
			if !asDictError(err, &dErr) {
				t.Fatalf("ParseEnv() error = %v, want DictError", err)
			}
			if dErr.Details["param"] != tt.param {
				t.Errorf("param = %v, want %q", dErr.Details["param"], tt.param)
			}
		})
	}
}

func TestBuildEnv_ChunkedRequiresIndex(t *testing.T) {
	env, err := ParseEnv(envLookup(map[string]string{EnvBuildTarget: "chunked"}))
	if err != nil {
		t.Fatalf("ParseEnv() error = %v", err)
	}
	if err := env.Validate(); !dicterrors.Is(err, dicterrors.ErrInvalidConfig) {
		t.Fatalf("Validate() error = %v, want INVALID_CONFIG", err)
	}
}

func TestConfig_Apply(t *testing.T) {
	cfg := DefaultConfig()
	env := &BuildEnv{ChunkSize: 10, RemoteBaseURL: "https://example.com", FailOnDrift: true, LogLevel: "debug"}

	got := cfg.Apply(env)
	if got.RouteChunkSize != 10 {
		t.Errorf("RouteChunkSize = %d, want 10", got.RouteChunkSize)
	}
	if got.RemoteBaseURL != "https://example.com" || !got.FailOnDrift || got.LogLevel != "debug" {
		t.Errorf("Apply() = %+v", got)
	}
	if cfg.RouteChunkSize != 50000 {
		t.Error("Apply should not mutate the receiver")
	}
}

func TestLoadDotEnv(t *testing.T) {
	tmpDir := t.TempDir()
	if err := LoadDotEnv(tmpDir); err != nil {
		t.Fatalf("LoadDotEnv() without file error = %v", err)
	}

	if err := os.WriteFile(filepath.Join(tmpDir, ".env"), []byte("DICTGEN_TEST_DOTENV=from-file\n"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv("DICTGEN_TEST_DOTENV", "")
	os.Unsetenv("DICTGEN_TEST_DOTENV")

	if err := LoadDotEnv(tmpDir); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv("DICTGEN_TEST_DOTENV"); got != "from-file" {
		t.Errorf("DICTGEN_TEST_DOTENV = %q, want from-file", got)
	}
}
