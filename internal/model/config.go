package model

import "time"

// Config holds every runtime setting of the engine
type Config struct {
	Catalog     CatalogConfig     `yaml:"catalog" mapstructure:"catalog"`
	Segmenter   SegmenterConfig   `yaml:"segmenter" mapstructure:"segmenter"`
	Matcher     MatcherConfig     `yaml:"matcher" mapstructure:"matcher"`
	Vision      VisionConfig      `yaml:"vision" mapstructure:"vision"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Source      SourceConfig      `yaml:"source" mapstructure:"source"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
	Labs        LabsConfig        `yaml:"labs" mapstructure:"labs"`
}

// CatalogConfig points at an optional directory overriding the embedded tables
type CatalogConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

type SegmenterConfig struct {
	MinIndexHits     int `yaml:"min_index_hits" mapstructure:"min_index_hits"`
	MinSentenceChars int `yaml:"min_sentence_chars" mapstructure:"min_sentence_chars"`
	MinPageChars     int `yaml:"min_page_chars" mapstructure:"min_page_chars"`
}

type MatcherConfig struct {
	SnippetWindow int `yaml:"snippet_window" mapstructure:"snippet_window"` // words on each side
}

// VisionConfig configures the label detector
type VisionConfig struct {
	Provider          string        `yaml:"provider" mapstructure:"provider"` // openai, remote, tesseract, multi, none
	Model             string        `yaml:"model" mapstructure:"model"`
	APIKey            string        `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL           string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MinConfidence     float64       `yaml:"min_confidence" mapstructure:"min_confidence"`
	DPI               int           `yaml:"dpi" mapstructure:"dpi"`
	Pdftoppm          string        `yaml:"pdftoppm" mapstructure:"pdftoppm"`
	OCRLanguages      []string      `yaml:"ocr_languages" mapstructure:"ocr_languages"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int           `yaml:"burst" mapstructure:"burst"`
	MaxRetries        int           `yaml:"max_retries" mapstructure:"max_retries"`
}

type ConcurrencyConfig struct {
	Workers         int           `yaml:"workers" mapstructure:"workers"`
	QueueSize       int           `yaml:"queue_size" mapstructure:"queue_size"`
	AnalysisTimeout time.Duration `yaml:"analysis_timeout" mapstructure:"analysis_timeout"`
}

// StoreConfig selects where document records live
type StoreConfig struct {
	Driver string        `yaml:"driver" mapstructure:"driver"` // memory, disk, sqlite, layered
	Dir    string        `yaml:"dir" mapstructure:"dir"`
	DSN    string        `yaml:"dsn" mapstructure:"dsn"`
	TTL    time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// SourceConfig controls how documents are loaded from paths or URLs
type SourceConfig struct {
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxBytes   int64         `yaml:"max_bytes" mapstructure:"max_bytes"`
	UserAgent  string        `yaml:"user_agent" mapstructure:"user_agent"`
	HTTPProxy  string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy    string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

type ServerConfig struct {
	Addr  string `yaml:"addr" mapstructure:"addr"`
	Inbox string `yaml:"inbox,omitempty" mapstructure:"inbox"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // text or json
}

type LabsConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	Limit   int  `yaml:"limit" mapstructure:"limit"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Segmenter: SegmenterConfig{
			MinIndexHits:     2,
			MinSentenceChars: 3,
			MinPageChars:     10,
		},
		Matcher: MatcherConfig{
			SnippetWindow: 12,
		},
		Vision: VisionConfig{
			Provider:          "none",
			Model:             "gpt-4o-mini",
			Timeout:           60 * time.Second,
			MinConfidence:     0.3,
			DPI:               300,
			Pdftoppm:          "pdftoppm",
			OCRLanguages:      []string{"spa", "eng"},
			RequestsPerSecond: 2,
			Burst:             2,
			MaxRetries:        3,
		},
		Concurrency: ConcurrencyConfig{
			Workers:         4,
			QueueSize:       64,
			AnalysisTimeout: 5 * time.Minute,
		},
		Store: StoreConfig{
			Driver: "memory",
			Dir:    ".nopro/store",
			DSN:    "file:.nopro/nopro.db",
			TTL:    7 * 24 * time.Hour,
		},
		Source: SourceConfig{
			Timeout:   30 * time.Second,
			MaxBytes:  50 << 20,
			UserAgent: "nopro/0.3 (+https://github.com/KevinDz11/nopro)",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Labs: LabsConfig{
			Enabled: true,
			Limit:   3,
		},
	}
}
