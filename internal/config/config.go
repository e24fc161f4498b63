package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	dicterrors "github.com/soundbluemusic/dictgen/internal/errors"
)

// FileName is the project configuration file looked up in the project directory.
const FileName = "dictgen.json"

// Partition strategies for the entry index.
const (
	PartitionChoseong = "choseong"
	PartitionCategory = "category"
)

// Locale describes one localized URL space of the site.
type Locale struct {
	// Code is the locale key used in translations (e.g. "en", "ko")
	Code string `json:"code"`

	// Prefix is prepended to every route of this locale ("" for the default locale)
	Prefix string `json:"prefix"`
}

// Config holds application configuration.
type Config struct {
	// EntriesDir holds the per-category entry JSON files.
	EntriesDir string `json:"entries_dir"`

	// CategoriesPath points at categories.json or categories.yaml. Optional.
	CategoriesPath string `json:"categories_path,omitempty"`

	// OutDir is the public output root; artifacts go under OutDir/data.
	OutDir string `json:"out_dir"`

	// BrowseChunkSize is the capacity of one browse chunk.
	BrowseChunkSize int `json:"browse_chunk_size"`

	// RouteChunkSize is the number of entries pre-rendered per chunked build job.
	RouteChunkSize int `json:"route_chunk_size"`

	// Partition selects the partition function of the entry index: choseong|category.
	Partition string `json:"partition"`

	// Locales lists the localized URL spaces. The first locale is x-default.
	Locales []Locale `json:"locales,omitempty"`

	// SiteURL is the absolute origin used in sitemaps.
	SiteURL string `json:"site_url,omitempty"`

	// RemoteBaseURL is the deployed origin checked by the verifier.
	RemoteBaseURL string `json:"remote_base_url,omitempty"`

	// VerifyConcurrency bounds concurrent remote fetches.
	VerifyConcurrency int `json:"verify_concurrency,omitempty"`

	// VerifyTimeoutSeconds is the per-request timeout of the verifier.
	VerifyTimeoutSeconds int `json:"verify_timeout_seconds,omitempty"`

	// FailOnDrift makes the verifier exit non-zero when entries are missing remotely.
	FailOnDrift bool `json:"fail_on_drift,omitempty"`

	// Compress writes .json.zst siblings for partition and full-category files.
	Compress bool `json:"compress,omitempty"`

	// SkipOfflineDB disables the SQLite export during build.
	SkipOfflineDB bool `json:"skip_offline_db,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// LogLevel is one of debug|info|warn|error.
	LogLevel string `json:"log_level,omitempty"`

	// LogFile redirects logs to a file instead of stderr.
	LogFile string `json:"log_file,omitempty"`
}

// DefaultLocales returns the English (default) and Korean URL spaces.
func DefaultLocales() []Locale {
	return []Locale{
		{Code: "en", Prefix: ""},
		{Code: "ko", Prefix: "/ko"},
	}
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		EntriesDir:           "data/entries",
		OutDir:               "public",
		BrowseChunkSize:      1000,
		RouteChunkSize:       50000,
		Partition:            PartitionChoseong,
		Locales:              DefaultLocales(),
		SiteURL:              "https://context.soundbluemusic.com",
		VerifyConcurrency:    4,
		VerifyTimeoutSeconds: 15,
		LogLevel:             "info",
	}
}

// Load loads configuration from baseDir/dictgen.json and resolves relative
// paths against baseDir. Returns default config if the file doesn't exist.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFile(filepath.Join(baseDir, FileName))
	if err != nil {
		return nil, err
	}
	cfg.ResolvePaths(baseDir)
	return cfg, nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, dicterrors.NewInvalidConfig(filepath.Base(configPath), err.Error())
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// ResolvePaths makes relative directory settings absolute against baseDir.
func (c *Config) ResolvePaths(baseDir string) {
	c.EntriesDir = resolve(baseDir, c.EntriesDir)
	c.CategoriesPath = resolve(baseDir, c.CategoriesPath)
	c.OutDir = resolve(baseDir, c.OutDir)
	c.LogFile = resolve(baseDir, c.LogFile)
}

func resolve(baseDir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}

// DataDir returns the directory that holds every generated data artifact.
func (c *Config) DataDir() string {
	return filepath.Join(c.OutDir, "data")
}

// LocaleCodes returns the configured locale codes in order.
func (c *Config) LocaleCodes() []string {
	codes := make([]string, len(c.Locales))
	for i, l := range c.Locales {
		codes[i] = l.Code
	}
	return codes
}

// Validate checks the configuration before any file I/O happens.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.EntriesDir) == "" {
		return dicterrors.NewInvalidConfig("entries_dir", "must not be empty")
	}
	if strings.TrimSpace(c.OutDir) == "" {
		return dicterrors.NewInvalidConfig("out_dir", "must not be empty")
	}
	if c.BrowseChunkSize <= 0 {
		return dicterrors.NewInvalidConfig("browse_chunk_size", "must be a positive integer")
	}
	if c.RouteChunkSize <= 0 {
		return dicterrors.NewInvalidConfig("route_chunk_size", "must be a positive integer")
	}
	if c.Partition != PartitionChoseong && c.Partition != PartitionCategory {
		return dicterrors.NewInvalidConfig("partition", "must be one of: choseong, category")
	}
	if len(c.Locales) == 0 {
		return dicterrors.NewInvalidConfig("locales", "at least one locale is required")
	}
	seen := make(map[string]bool, len(c.Locales))
	for _, l := range c.Locales {
		if l.Code == "" {
			return dicterrors.NewInvalidConfig("locales", "locale code must not be empty")
		}
		if seen[l.Code] {
			return dicterrors.NewInvalidConfig("locales", "duplicate locale "+l.Code)
		}
		seen[l.Code] = true
		if l.Prefix != "" && (!strings.HasPrefix(l.Prefix, "/") || strings.HasSuffix(l.Prefix, "/")) {
			return dicterrors.NewInvalidConfig("locales", "prefix "+l.Prefix+" must start with / and not end with /")
		}
	}
	if c.VerifyConcurrency <= 0 {
		return dicterrors.NewInvalidConfig("verify_concurrency", "must be a positive integer")
	}
	if c.VerifyTimeoutSeconds <= 0 {
		return dicterrors.NewInvalidConfig("verify_timeout_seconds", "must be a positive integer")
	}
	return nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated,
// except Locales which overlay replaces wholesale (order is significant).
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.EntriesDir = firstString(overlay.EntriesDir, base.EntriesDir)
	result.CategoriesPath = firstString(overlay.CategoriesPath, base.CategoriesPath)
	result.OutDir = firstString(overlay.OutDir, base.OutDir)
	result.Partition = firstString(overlay.Partition, base.Partition)
	result.SiteURL = firstString(overlay.SiteURL, base.SiteURL)
	result.RemoteBaseURL = firstString(overlay.RemoteBaseURL, base.RemoteBaseURL)
	result.LogLevel = firstString(overlay.LogLevel, base.LogLevel)
	result.LogFile = firstString(overlay.LogFile, base.LogFile)

	result.BrowseChunkSize = firstInt(overlay.BrowseChunkSize, base.BrowseChunkSize)
	result.RouteChunkSize = firstInt(overlay.RouteChunkSize, base.RouteChunkSize)
	result.VerifyConcurrency = firstInt(overlay.VerifyConcurrency, base.VerifyConcurrency)
	result.VerifyTimeoutSeconds = firstInt(overlay.VerifyTimeoutSeconds, base.VerifyTimeoutSeconds)

	// Booleans: overlay wins if true, else base
	result.FailOnDrift = base.FailOnDrift || overlay.FailOnDrift
	result.Compress = base.Compress || overlay.Compress
	result.SkipOfflineDB = base.SkipOfflineDB || overlay.SkipOfflineDB

	result.Locales = base.Locales
	if len(overlay.Locales) > 0 {
		result.Locales = overlay.Locales
	}
	result.Locales = append([]Locale(nil), result.Locales...)

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func firstString(overlay, base string) string {
	if overlay != "" {
		return overlay
	}
	return base
}

func firstInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
