// Package config provides hierarchical configuration management.
// Priority: defaults < system < user < project < env < flags
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all LogView configuration.
type Config struct {
	Version int `yaml:"version"`

	Columns      ColumnsConfig      `yaml:"columns"`
	Loader       LoaderConfig       `yaml:"loader"`
	Characterize CharacterizeConfig `yaml:"characterize"`
	Export       ExportConfig       `yaml:"export"`
	Telemetry    TelemetryConfig    `yaml:"telemetry"`

	Verbose bool `yaml:"verbose"`
}

// ColumnsConfig maps source columns onto the standard event columns.
type ColumnsConfig struct {
	CaseID    string `yaml:"case_id"`
	Activity  string `yaml:"activity"`
	Timestamp string `yaml:"timestamp"`
	Resource  string `yaml:"resource"`
}

// LoaderConfig controls how initial logs are read.
type LoaderConfig struct {
	TimestampFormat string `yaml:"timestamp_format"` // empty = auto-detect
	Delimiter       string `yaml:"delimiter"`        // empty = sniff
	Sheet           string `yaml:"sheet"`            // xlsx sheet, empty = first
	MemoryLimit     string `yaml:"memory_limit"`     // duckdb, e.g. "2GB"
	Threads         int    `yaml:"threads"`          // 0 = auto
}

// CharacterizeConfig sets defaults for the built-in characterizers.
type CharacterizeConfig struct {
	Samples int   `yaml:"samples"`
	Seed    int64 `yaml:"seed"`
}

// ExportConfig controls result set export.
type ExportConfig struct {
	Dir         string `yaml:"dir"`
	Concurrency int    `yaml:"concurrency"`
	Format      string `yaml:"format"`      // arrow, parquet
	Compression string `yaml:"compression"` // parquet only
	CaseSummary bool   `yaml:"case_summary"`
}

// TelemetryConfig for optional tracing.
type TelemetryConfig struct {
	Endpoint      string        `yaml:"endpoint"` // empty = disabled
	ServiceName   string        `yaml:"service_name"`
	Environment   string        `yaml:"environment"`
	SamplingRatio float64       `yaml:"sampling_ratio"`
	ExportTimeout time.Duration `yaml:"export_timeout"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Version: 1,
		Columns: ColumnsConfig{
			CaseID:    "case:concept:name",
			Activity:  "concept:name",
			Timestamp: "time:timestamp",
			Resource:  "org:resource",
		},
		Loader: LoaderConfig{
			MemoryLimit: "2GB",
		},
		Characterize: CharacterizeConfig{
			Samples: 2,
			Seed:    1,
		},
		Export: ExportConfig{
			Dir:         "logview-out",
			Concurrency: 4,
			Format:      "arrow",
			Compression: "zstd",
		},
		Telemetry: TelemetryConfig{
			ServiceName:   "logview",
			Environment:   "development",
			SamplingRatio: 1.0,
			ExportTimeout: 30 * time.Second,
		},
	}
}

// Manager handles configuration loading and merging.
type Manager struct {
	mu     sync.RWMutex
	config *Config
	paths  []string // Paths that were loaded
}

// NewManager creates a new configuration manager.
func NewManager() *Manager {
	return &Manager{
		config: Default(),
	}
}

// Load loads configuration from all sources in priority order.
func (m *Manager) Load() error {
	return m.LoadFrom(m.getConfigPaths()...)
}

// LoadFrom loads defaults, then the given files in order, then the
// environment. Missing files are skipped.
func (m *Manager) LoadFrom(paths ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.config = Default()
	m.paths = nil

	for _, path := range paths {
		if err := m.loadFile(path); err != nil {
			if !os.IsNotExist(err) {
				return fmt.Errorf("config %s: %w", path, err)
			}
		} else {
			m.paths = append(m.paths, path)
		}
	}

	m.loadEnv()
	return nil
}

// getConfigPaths returns config file paths in priority order.
func (m *Manager) getConfigPaths() []string {
	var paths []string

	if runtime.GOOS != "windows" {
		paths = append(paths, "/etc/logview/config.yaml")
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".logview", "config.yaml"))
	}
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".logview.yaml"))
	}

	return paths
}

// loadFile loads a single config file and merges it.
func (m *Manager) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var partial Config
	if err := yaml.Unmarshal(data, &partial); err != nil {
		return err
	}

	m.merge(&partial)
	return nil
}

// merge merges non-zero values from src into config.
func (m *Manager) merge(src *Config) {
	// Columns
	mergeString(&m.config.Columns.CaseID, src.Columns.CaseID)
	mergeString(&m.config.Columns.Activity, src.Columns.Activity)
	mergeString(&m.config.Columns.Timestamp, src.Columns.Timestamp)
	mergeString(&m.config.Columns.Resource, src.Columns.Resource)

	// Loader
	mergeString(&m.config.Loader.TimestampFormat, src.Loader.TimestampFormat)
	mergeString(&m.config.Loader.Delimiter, src.Loader.Delimiter)
	mergeString(&m.config.Loader.Sheet, src.Loader.Sheet)
	mergeString(&m.config.Loader.MemoryLimit, src.Loader.MemoryLimit)
	if src.Loader.Threads != 0 {
		m.config.Loader.Threads = src.Loader.Threads
	}

	// Characterize
	if src.Characterize.Samples != 0 {
		m.config.Characterize.Samples = src.Characterize.Samples
	}
	if src.Characterize.Seed != 0 {
		m.config.Characterize.Seed = src.Characterize.Seed
	}

	// Export
	mergeString(&m.config.Export.Dir, src.Export.Dir)
	if src.Export.Concurrency != 0 {
		m.config.Export.Concurrency = src.Export.Concurrency
	}
	mergeString(&m.config.Export.Format, src.Export.Format)
	mergeString(&m.config.Export.Compression, src.Export.Compression)
	if src.Export.CaseSummary {
		m.config.Export.CaseSummary = true
	}

	// Telemetry
	mergeString(&m.config.Telemetry.Endpoint, src.Telemetry.Endpoint)
	mergeString(&m.config.Telemetry.ServiceName, src.Telemetry.ServiceName)
	mergeString(&m.config.Telemetry.Environment, src.Telemetry.Environment)
	if src.Telemetry.SamplingRatio != 0 {
		m.config.Telemetry.SamplingRatio = src.Telemetry.SamplingRatio
	}
	if src.Telemetry.ExportTimeout != 0 {
		m.config.Telemetry.ExportTimeout = src.Telemetry.ExportTimeout
	}

	if src.Verbose {
		m.config.Verbose = true
	}
}

func mergeString(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}

// loadEnv loads configuration from environment variables.
func (m *Manager) loadEnv() {
	// LOGVIEW_CASE_COLUMN, LOGVIEW_ACTIVITY_COLUMN, LOGVIEW_TIMESTAMP_COLUMN
	mergeString(&m.config.Columns.CaseID, os.Getenv("LOGVIEW_CASE_COLUMN"))
	mergeString(&m.config.Columns.Activity, os.Getenv("LOGVIEW_ACTIVITY_COLUMN"))
	mergeString(&m.config.Columns.Timestamp, os.Getenv("LOGVIEW_TIMESTAMP_COLUMN"))

	// LOGVIEW_TIMESTAMP_FORMAT
	mergeString(&m.config.Loader.TimestampFormat, os.Getenv("LOGVIEW_TIMESTAMP_FORMAT"))

	// LOGVIEW_EXPORT_DIR
	mergeString(&m.config.Export.Dir, os.Getenv("LOGVIEW_EXPORT_DIR"))
	mergeString(&m.config.Export.Format, os.Getenv("LOGVIEW_EXPORT_FORMAT"))

	// LOGVIEW_SEED
	if v := os.Getenv("LOGVIEW_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			m.config.Characterize.Seed = seed
		}
	}

	// LOGVIEW_OTLP_ENDPOINT
	mergeString(&m.config.Telemetry.Endpoint, os.Getenv("LOGVIEW_OTLP_ENDPOINT"))

	// LOGVIEW_VERBOSE
	if v := os.Getenv("LOGVIEW_VERBOSE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			m.config.Verbose = b
		}
	}
}

// Get returns the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// GetPaths returns the paths that were loaded.
func (m *Manager) GetPaths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paths
}

// Save writes the current config to the user config file.
func (m *Manager) Save() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	configDir := filepath.Join(home, ".logview")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}

	data, err := yaml.Marshal(m.config)
	if err != nil {
		return "", err
	}

	path := filepath.Join(configDir, "config.yaml")
	return path, os.WriteFile(path, data, 0644)
}

// Marshal renders the current config as YAML.
func (m *Manager) Marshal() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return yaml.Marshal(m.config)
}
