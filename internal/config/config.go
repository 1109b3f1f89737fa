package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/nightfoxfilms/ingestcore/internal/jobqueue"
)

// Config is the single recognised configuration surface (spec.md §6): one
// table of options per component, no free-form environment-variable
// spelunking beyond the explicit overrides cmd/ingest layers on top.
type Config struct {
	// WorkingRoot is the archive root new projects are written under.
	WorkingRoot string `yaml:"working_root"`

	// SourcePaths lists the default card/drive paths scanned when none
	// are given on the command line.
	SourcePaths []string `yaml:"source_paths"`

	// DatabasePath is where the SQLite repository and job queue live.
	DatabasePath string `yaml:"database_path"`

	// StorageProfile holds storage-profile override values. They are
	// loaded and saved with the config but not applied: every profile
	// comes from internal/storageprofile's own detection.
	StorageProfile StorageProfileConfig `yaml:"storage_profile"`

	// Copy engine options (spec.md §4.4, §6).
	AbortThreshold int    `yaml:"abort_threshold"`
	TempDirSuffix  string `yaml:"temp_dir_suffix"`
	AutoRollback   bool   `yaml:"auto_rollback"`

	// Job queue options (spec.md §4.6, §6).
	JobQueue JobQueueConfig `yaml:"job_queue"`

	// Sidecar options (spec.md §4.7, §6).
	SchemaVersion string `yaml:"schema_version"`
	GeneratorTag  string `yaml:"generator_tag"`

	// ExifToolPath is loaded and saved with the config (default:
	// "exiftool"); internal/metadata's EXIF provider does not read it and
	// starts the exiftool found on PATH.
	ExifToolPath string `yaml:"exiftool_path"`

	// FFmpegPath is the ffmpeg binary internal/jobhandlers shells out to
	// for proxy and thumbnail generation (default: "ffmpeg", resolved
	// off PATH).
	FFmpegPath string `yaml:"ffmpeg_path"`

	// ProxyMaxHeight caps the vertical resolution of generated edit
	// proxies; 0 leaves the source resolution untouched.
	ProxyMaxHeight int `yaml:"proxy_max_height"`

	// ThumbnailAtSeconds is the timestamp, in seconds from the start of
	// a clip, a still thumbnail is grabbed from.
	ThumbnailAtSeconds float64 `yaml:"thumbnail_at_seconds"`

	// MLExtractorPath is the executable internal/bgservice supervises
	// for the ml-extract job kind. Empty disables the background service.
	MLExtractorPath string `yaml:"ml_extractor_path"`

	// MLExtractorIdleTimeoutSec is how long the ML extractor subprocess
	// stays up after its last request before bgservice shuts it down.
	MLExtractorIdleTimeoutSec int `yaml:"ml_extractor_idle_timeout_sec"`

	// MLExtractorHealthURL is polled until it answers 200 while the
	// subprocess starts up.
	MLExtractorHealthURL string `yaml:"ml_extractor_health_url"`

	// MLExtractorExtractURL receives the per-file extraction POST once
	// the subprocess is healthy.
	MLExtractorExtractURL string `yaml:"ml_extractor_extract_url"`

	// MLExtractorPIDFile records the subprocess's PID across restarts so
	// an orphaned process from a crashed run can be reaped on startup.
	MLExtractorPIDFile string `yaml:"ml_extractor_pid_file"`

	// WatchEnabled turns on fsnotify-driven auto-enqueue of new files
	// appearing under a source path.
	WatchEnabled bool `yaml:"watch_enabled"`

	// LogLevel controls logging verbosity: debug, info, warn, error (default: info)
	LogLevel string `yaml:"log_level"`

	// HTTPAddr is the address internal/api listens on, empty disables it.
	HTTPAddr string `yaml:"http_addr"`
}

// StorageProfileConfig holds override values for the parameters
// internal/storageprofile derives from the destination mount (spec.md
// §4.1, §6). Nothing reads them; storageprofile's Detect always returns
// its built-in local or network defaults.
type StorageProfileConfig struct {
	BufferBytes         int     `yaml:"buffer_bytes"`
	InterOpDelayMs      int     `yaml:"inter_op_delay_ms"`
	Concurrency         int     `yaml:"concurrency"`
	RetryDelaysMs       []int   `yaml:"retry_delays_ms"`
	RetryableErrorCodes []string `yaml:"retryable_error_codes"`
}

// JobQueueConfig mirrors spec.md §6's job-queue configuration table.
type JobQueueConfig struct {
	PollIntervalMs    int                      `yaml:"poll_interval_ms"`
	ConcurrencyByKind map[jobqueue.Kind]int    `yaml:"concurrency_by_kind"`
	PriorityByKind    map[jobqueue.Kind]int    `yaml:"priority_by_kind"`
	DefaultMaxRetries int                      `yaml:"default_max_retries"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		WorkingRoot:  "/archive",
		SourcePaths:  nil,
		DatabasePath: "/config/ingest.db",

		StorageProfile: StorageProfileConfig{},

		AbortThreshold: 5,
		TempDirSuffix:  ".tmp",
		AutoRollback:   true,

		JobQueue: JobQueueConfig{
			PollIntervalMs:    1000,
			ConcurrencyByKind: map[jobqueue.Kind]int{},
			PriorityByKind:    map[jobqueue.Kind]int{},
			DefaultMaxRetries: jobqueue.DefaultMaxRetries,
		},

		SchemaVersion: "1.0",
		GeneratorTag:  "ingestcore",

		ExifToolPath: "exiftool",

		FFmpegPath:         "ffmpeg",
		ProxyMaxHeight:     720,
		ThumbnailAtSeconds: 1,

		MLExtractorPath:           "",
		MLExtractorIdleTimeoutSec: 300,
		MLExtractorHealthURL:      "http://127.0.0.1:8799/health",
		MLExtractorExtractURL:     "http://127.0.0.1:8799/extract",
		MLExtractorPIDFile:        "/config/ml-extractor.pid",

		WatchEnabled: false,
		LogLevel:     "info",
		HTTPAddr:     "",
	}
}

// Load reads config from a YAML file, applying defaults for missing values.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// No config file - create one with defaults
			if saveErr := cfg.Save(path); saveErr != nil {
				fmt.Printf("Warning: Could not create config file: %v\n", saveErr)
			}
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// Apply defaults for empty values
	if cfg.WorkingRoot == "" {
		cfg.WorkingRoot = "/archive"
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = "/config/ingest.db"
	}
	if cfg.AbortThreshold <= 0 {
		cfg.AbortThreshold = 5
	}
	if cfg.TempDirSuffix == "" {
		cfg.TempDirSuffix = ".tmp"
	}
	if cfg.JobQueue.PollIntervalMs <= 0 {
		cfg.JobQueue.PollIntervalMs = 1000
	}
	if cfg.JobQueue.ConcurrencyByKind == nil {
		cfg.JobQueue.ConcurrencyByKind = map[jobqueue.Kind]int{}
	}
	if cfg.JobQueue.PriorityByKind == nil {
		cfg.JobQueue.PriorityByKind = map[jobqueue.Kind]int{}
	}
	if cfg.JobQueue.DefaultMaxRetries <= 0 {
		cfg.JobQueue.DefaultMaxRetries = jobqueue.DefaultMaxRetries
	}
	if cfg.SchemaVersion == "" {
		cfg.SchemaVersion = "1.0"
	}
	if cfg.GeneratorTag == "" {
		cfg.GeneratorTag = "ingestcore"
	}
	if cfg.ExifToolPath == "" {
		cfg.ExifToolPath = "exiftool"
	}
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.ProxyMaxHeight < 0 {
		cfg.ProxyMaxHeight = 720
	}
	if cfg.ThumbnailAtSeconds <= 0 {
		cfg.ThumbnailAtSeconds = 1
	}
	if cfg.MLExtractorIdleTimeoutSec <= 0 {
		cfg.MLExtractorIdleTimeoutSec = 300
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

// Save writes the config to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ResolvedConcurrency merges JobQueue.ConcurrencyByKind onto
// jobqueue.DefaultConcurrency, the same override-onto-defaults shape
// jobqueue.NewPool itself applies.
func (c *Config) ResolvedConcurrency() map[jobqueue.Kind]int {
	merged := make(map[jobqueue.Kind]int, len(jobqueue.DefaultConcurrency))
	for k, v := range jobqueue.DefaultConcurrency {
		merged[k] = v
	}
	for k, v := range c.JobQueue.ConcurrencyByKind {
		merged[k] = v
	}
	return merged
}
