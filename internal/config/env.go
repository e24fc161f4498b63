package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	dicterrors "github.com/soundbluemusic/dictgen/internal/errors"
)

// BuildTarget selects which route set a build invocation pre-renders.
type BuildTarget string

const (
	TargetPages   BuildTarget = "pages"
	TargetAll     BuildTarget = "all"
	TargetChunked BuildTarget = "chunked"
)

// Environment variable names.
const (
	EnvChunkIndex        = "CHUNK_INDEX"
	EnvChunkSize         = "CHUNK_SIZE"
	EnvBuildTarget       = "BUILD_TARGET"
	EnvRemoteBaseURL     = "REMOTE_BASE_URL"
	EnvVerifyFailOnDrift = "VERIFY_FAIL_ON_DRIFT"
	EnvLogLevel          = "LOG_LEVEL"
	EnvLogFile           = "LOG_FILE"
	EnvSourceDateEpoch   = "SOURCE_DATE_EPOCH"
)

// BuildEnv is the process environment, resolved once at startup and passed down.
type BuildEnv struct {
	Target BuildTarget

	// ChunkIndex is only meaningful when HasChunkIndex is set.
	ChunkIndex    int
	HasChunkIndex bool

	// ChunkSize overrides route_chunk_size when non-zero.
	ChunkSize int

	RemoteBaseURL string
	FailOnDrift   bool
	LogLevel      string
	LogFile       string

	// SourceDate pins generatedAt for reproducible builds. Zero means wall clock.
	SourceDate time.Time
}

// LoadDotEnv loads dir/.env into the process environment. Variables that are
// already set win. A missing file is not an error.
func LoadDotEnv(dir string) error {
	err := godotenv.Load(filepath.Join(dir, ".env"))
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return dicterrors.NewInvalidConfig(".env", err.Error())
	}
	return nil
}

// LoadEnv resolves the build environment from the process environment.
func LoadEnv() (*BuildEnv, error) {
	return ParseEnv(os.LookupEnv)
}

// ParseEnv resolves the build environment through lookup. Malformed values are
// configuration errors naming the variable.
func ParseEnv(lookup func(string) (string, bool)) (*BuildEnv, error) {
	env := &BuildEnv{Target: TargetAll}

	if v := getEnv(lookup, EnvBuildTarget, ""); v != "" {
		switch BuildTarget(v) {
		case TargetPages, TargetAll, TargetChunked:
			env.Target = BuildTarget(v)
		default:
			return nil, dicterrors.NewInvalidConfig(EnvBuildTarget, "must be one of: pages, all, chunked")
		}
	}

	idx, ok, err := getEnvInt(lookup, EnvChunkIndex)
	if err != nil {
		return nil, err
	}
	if ok {
		if idx < 0 {
			return nil, dicterrors.NewInvalidConfig(EnvChunkIndex, "must be a non-negative integer")
		}
		env.ChunkIndex = idx
		env.HasChunkIndex = true
	}

	size, ok, err := getEnvInt(lookup, EnvChunkSize)
	if err != nil {
		return nil, err
	}
	if ok {
		if size <= 0 {
			return nil, dicterrors.NewInvalidConfig(EnvChunkSize, "must be a positive integer")
		}
		env.ChunkSize = size
	}

	env.RemoteBaseURL = getEnv(lookup, EnvRemoteBaseURL, "")
	env.LogLevel = getEnv(lookup, EnvLogLevel, "")
	env.LogFile = getEnv(lookup, EnvLogFile, "")

	failOnDrift, err := getEnvBool(lookup, EnvVerifyFailOnDrift, false)
	if err != nil {
		return nil, err
	}
	env.FailOnDrift = failOnDrift

	epoch, ok, err := getEnvInt(lookup, EnvSourceDateEpoch)
	if err != nil {
		return nil, err
	}
	if ok {
		env.SourceDate = time.Unix(int64(epoch), 0).UTC()
	}

	return env, nil
}

// Validate checks cross-variable constraints.
func (e *BuildEnv) Validate() error {
	if e.Target == TargetChunked && !e.HasChunkIndex {
		return dicterrors.NewInvalidConfig(EnvChunkIndex, "required when BUILD_TARGET=chunked")
	}
	return nil
}

// Now returns the pinned source date, or the current UTC time.
func (e *BuildEnv) Now() time.Time {
	if e == nil || e.SourceDate.IsZero() {
		return time.Now().UTC()
	}
	return e.SourceDate
}

// Apply overlays the environment onto cfg. Environment values win over the file.
func (c *Config) Apply(env *BuildEnv) *Config {
	out := Merge(c, &Config{})
	if env == nil {
		return out
	}
	if env.ChunkSize > 0 {
		out.RouteChunkSize = env.ChunkSize
	}
	out.RemoteBaseURL = firstString(env.RemoteBaseURL, out.RemoteBaseURL)
	out.LogLevel = firstString(env.LogLevel, out.LogLevel)
	out.LogFile = firstString(env.LogFile, out.LogFile)
	out.FailOnDrift = out.FailOnDrift || env.FailOnDrift
	return out
}

func getEnv(lookup func(string) (string, bool), key, defaultValue string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func getEnvInt(lookup func(string) (string, bool), key string) (int, bool, error) {
	value := getEnv(lookup, key, "")
	if value == "" {
		return 0, false, nil
	}
	intVal, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, dicterrors.NewInvalidConfig(key, "must be an integer, got "+strconv.Quote(value))
	}
	return intVal, true, nil
}

func getEnvBool(lookup func(string) (string, bool), key string, defaultValue bool) (bool, error) {
	value := getEnv(lookup, key, "")
	if value == "" {
		return defaultValue, nil
	}
	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return false, dicterrors.NewInvalidConfig(key, "must be a boolean, got "+strconv.Quote(value))
	}
	return boolVal, nil
}
