package types

import "time"

// HTTPConfig holds shared HTTP settings used by backends that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "mdconvert/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// ConversionBackend identifies the document conversion tool.
type ConversionBackend string

const (
	BackendMarkitdown ConversionBackend = "markitdown"
	BackendDocling    ConversionBackend = "docling"
)

// MarkitdownConfig holds settings for the container-based markitdown backend.
type MarkitdownConfig struct {
	// Image is the container image to run (default "markitdown:latest").
	Image string `json:"image" yaml:"image"`
}

// DoclingConfig holds settings for the docling-serve HTTP backend.
type DoclingConfig struct {
	HTTPConfig `yaml:",inline"`

	// URL is the base URL of the docling-serve instance (e.g. "http://localhost:5001").
	URL string `json:"url" yaml:"url"`

	// APIKey is sent as X-Api-Key when set.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxRetries is the number of retry attempts on 429/503 responses (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// ConversionConfig holds settings for a conversion batch.
type ConversionConfig struct {
	// Backend selects the conversion tool: markitdown or docling.
	Backend ConversionBackend `json:"backend" yaml:"backend"`

	// Frontmatter prepends YAML frontmatter to every written Markdown file.
	Frontmatter bool `json:"frontmatter" yaml:"frontmatter"`

	Markitdown MarkitdownConfig `json:"markitdown" yaml:"markitdown"`
	Docling    DoclingConfig    `json:"docling" yaml:"docling"`

	// Fetch configures downloads of http(s) inputs.
	Fetch HTTPConfig `json:"fetch" yaml:"fetch"`
}

// HistoryConfig holds settings for the batch history database.
type HistoryConfig struct {
	// Path is the SQLite database file.
	Path string `json:"path" yaml:"path"`

	// Disabled turns off history recording.
	Disabled bool `json:"disabled" yaml:"disabled"`
}

// ServeConfig holds settings for the websocket server.
type ServeConfig struct {
	// Addr is the listen address (default ":8080").
	Addr string `json:"addr" yaml:"addr"`
}

// LogConfig selects the diagnostic log level and format ("text" or "json").
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// Config groups all settings read from the config file, environment, and flags.
type Config struct {
	Conversion ConversionConfig `json:"conversion" yaml:"conversion"`
	History    HistoryConfig    `json:"history" yaml:"history"`
	Serve      ServeConfig      `json:"serve" yaml:"serve"`
	Log        LogConfig        `json:"log" yaml:"log"`
}
