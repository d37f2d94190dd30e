package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string         `toml:"environment"` // "development" or "production"
	Server      ServerConfig   `toml:"server"`
	Index       IndexConfig    `toml:"index"`
	Search      SearchConfig   `toml:"search"`
	Ontology    OntologyConfig `toml:"ontology"`
	Files       FilesConfig    `toml:"files"`
	Auth        AuthConfig     `toml:"auth"`
	Queue       QueueConfig    `toml:"queue"`
	Logging     LoggingConfig  `toml:"logging"`
	Proxy       ProxyConfig    `toml:"proxy"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

// IndexConfig controls index directory layout and admin access
type IndexConfig struct {
	BaseDir          string   `toml:"base_dir"`            // Parent directory of all index directories
	TaskDBPath       string   `toml:"task_db_path"`        // Badger directory for task and view-count records
	AdminIPAllowList []string `toml:"admin_ip_allow_list"` // IPs allowed on /internal/api (default: localhost)
	ResetOnStartup   bool     `toml:"reset_on_startup"`    // Delete index directories on startup for clean test runs
}

// SearchConfig contains configuration for query behavior
type SearchConfig struct {
	AutocompleteFilterByIndex bool `toml:"autocomplete_filter_by_index"` // Filter autocomplete hits to terms present in the submission index
	HighlightFragmentSize     int  `toml:"highlight_fragment_size"`      // Snippet width in characters
	SuggestionCount           int  `toml:"suggestion_count"`             // Max spell suggestions returned
}

// OntologyConfig describes the EFO source files and refresh endpoint
type OntologyConfig struct {
	Stopwords        string `toml:"stopwords"`          // CSV of terms never matched or suggested
	Synonyms         string `toml:"synonyms"`           // Extra synonym file path
	IgnoreList       string `toml:"ignore_list"`        // File of ontology ids to skip on load
	OwlFilename      string `toml:"owl_filename"`       // Source OWL path used to (re)build the ontology index
	UpdateURL        string `toml:"update_url"`         // Remote OWL location for scheduled refresh
	LocalOwlFilename string `toml:"local_owl_filename"` // Download target for the refresh
	UpdateSchedule   string `toml:"update_schedule"`    // Cron expression; empty disables the refresh job
}

// FilesConfig carries the external file-resolution endpoints.
// File content itself is served by collaborators; only the URLs are
// threaded through to response records.
type FilesConfig struct {
	NFSBaseURL  string `toml:"nfs_base_url"`
	FireBaseURL string `toml:"fire_base_url"`
	NFSCache    bool   `toml:"nfs_cache"`
	NFSCacheDir string `toml:"nfs_cache_dir"`
}

type AuthConfig struct {
	PartialUpdateToken string   `toml:"partial_update_token"` // Shared secret for privileged REST
	SuperUsers         []string `toml:"super_users"`          // Logins granted the match-all access filter
}

type QueueConfig struct {
	Size            int    `toml:"size"`              // Bounded task queue capacity
	Concurrency     int    `toml:"concurrency"`       // Indexing worker count
	ViewsReload     string `toml:"views_reload"`      // Cron expression for the view-count map reload
	CommitBatchSize int    `toml:"commit_batch_size"` // Submissions indexed between commits
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05.000")
}

// ProxyConfig describes the optional outbound HTTP proxy
type ProxyConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// DefaultConfig returns a configuration populated with defaults
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Index: IndexConfig{
			BaseDir:          "./data/indexes",
			TaskDBPath:       "./data/tasks",
			AdminIPAllowList: []string{"127.0.0.1", "::1"},
		},
		Search: SearchConfig{
			AutocompleteFilterByIndex: true,
			HighlightFragmentSize:     200,
			SuggestionCount:           5,
		},
		Queue: QueueConfig{
			Size:            256,
			Concurrency:     2,
			ViewsReload:     "@every 1h",
			CommitBatchSize: 50,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05.000",
		},
	}
}

// LoadFromFiles loads configuration from defaults, then each TOML file in
// order (later files override earlier ones), then environment variables.
func LoadFromFiles(paths ...string) (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides applies STUDYSEARCH_* environment variables on top of
// file configuration
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("STUDYSEARCH_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("STUDYSEARCH_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("STUDYSEARCH_INDEX_BASE_DIR"); v != "" {
		cfg.Index.BaseDir = v
	}
	if v := os.Getenv("STUDYSEARCH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("STUDYSEARCH_PARTIAL_UPDATE_TOKEN"); v != "" {
		cfg.Auth.PartialUpdateToken = v
	}
	if v := os.Getenv("STUDYSEARCH_PROXY_HOST"); v != "" {
		cfg.Proxy.Host = v
	}
	if v := os.Getenv("STUDYSEARCH_PROXY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Proxy.Port = port
		}
	}
}

// Validate checks configuration invariants that would otherwise surface as
// confusing runtime failures
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Index.BaseDir == "" {
		return fmt.Errorf("index.base_dir must not be empty")
	}
	if c.Queue.Size <= 0 {
		return fmt.Errorf("queue.size must be positive, got %d", c.Queue.Size)
	}
	if c.Queue.Concurrency <= 0 {
		return fmt.Errorf("queue.concurrency must be positive, got %d", c.Queue.Concurrency)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}
	return nil
}

// ProxyURL returns the configured outbound proxy as a URL string, or ""
// when no proxy is configured
func (c *Config) ProxyURL() string {
	if c.Proxy.Host == "" {
		return ""
	}
	if c.Proxy.Port > 0 {
		return fmt.Sprintf("http://%s:%d", c.Proxy.Host, c.Proxy.Port)
	}
	return fmt.Sprintf("http://%s", c.Proxy.Host)
}

// ShutdownGracePeriod is how long in-flight readers are given to complete
// during shutdown before they are abandoned
const ShutdownGracePeriod = 10 * time.Second
