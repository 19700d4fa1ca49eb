// Package config loads the converter settings from a YAML file and fills
// in defaults for anything the file leaves out.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the console and the pipeline.
type Config struct {
	// TickInterval is how often the console drives the result poller.
	TickInterval time.Duration `yaml:"tick_interval"`

	Transport Transport `yaml:"transport"`
	Render    Render    `yaml:"render"`
	Export    Export    `yaml:"export"`
	Log       Log       `yaml:"log"`
}

// Transport configures both ends of the request/result channel.
type Transport struct {
	// MaxResultText bounds the base64 text accepted from the result key.
	MaxResultText int `yaml:"max_result_text"`
	// MaxPayload bounds the decoded image size in bytes.
	MaxPayload int `yaml:"max_payload"`
	// FetchTimeout limits a single host-side HTTP fetch.
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	// PollInterval is how often the host checks the request key.
	PollInterval time.Duration `yaml:"poll_interval"`
	UserAgent    string        `yaml:"user_agent"`
}

// Render configures the text renderer.
type Render struct {
	// FontPath is a TTF file; empty selects the embedded Go Mono face.
	FontPath string `yaml:"font_path"`
	// MaxPixels bounds the rendered export bitmap.
	MaxPixels int `yaml:"max_pixels"`
	// MaxSourcePixels bounds the declared size of a fetched image.
	MaxSourcePixels int `yaml:"max_source_pixels"`
}

// Export selects where exported PNGs are delivered.
type Export struct {
	// Sink is "dir" or "minio".
	Sink  string `yaml:"sink"`
	Dir   string `yaml:"dir"`
	MinIO MinIO  `yaml:"minio"`
}

// MinIO holds object storage credentials for the "minio" sink.
type MinIO struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Log configures the diagnostic log.
type Log struct {
	Level string `yaml:"level"`
	// File receives log output; empty means stderr.
	File string `yaml:"file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		TickInterval: 100 * time.Millisecond,
		Transport: Transport{
			MaxResultText: 20*1024*1024 + 1,
			MaxPayload:    15 * 1024 * 1024,
			FetchTimeout:  30 * time.Second,
			PollInterval:  100 * time.Millisecond,
			UserAgent:     "img2ascii/1.0",
		},
		Render: Render{
			MaxPixels:       1 << 25,
			MaxSourcePixels: 1 << 25,
		},
		Export: Export{
			Sink: "dir",
			Dir:  ".",
		},
		Log: Log{
			Level: "info",
		},
	}
}

// Load reads path and merges it over the defaults. A missing file is not
// an error; the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	merged := merge(cfg, &file)
	if err := merged.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return merged, nil
}

// Validate checks settings that would break the pipeline at runtime.
func (c *Config) Validate() error {
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive")
	}
	if c.Transport.MaxResultText <= 0 || c.Transport.MaxPayload <= 0 {
		return fmt.Errorf("transport limits must be positive")
	}
	if c.Render.MaxPixels <= 0 || c.Render.MaxSourcePixels <= 0 {
		return fmt.Errorf("render pixel limits must be positive")
	}
	switch c.Export.Sink {
	case "dir":
	case "minio":
		if c.Export.MinIO.Endpoint == "" || c.Export.MinIO.Bucket == "" {
			return fmt.Errorf("minio sink needs endpoint and bucket")
		}
	default:
		return fmt.Errorf("unknown export sink %q", c.Export.Sink)
	}
	return nil
}

// merge overlays non-zero values from file onto base.
func merge(base, file *Config) *Config {
	result := *base

	if file.TickInterval != 0 {
		result.TickInterval = file.TickInterval
	}

	t := file.Transport
	if t.MaxResultText != 0 {
		result.Transport.MaxResultText = t.MaxResultText
	}
	if t.MaxPayload != 0 {
		result.Transport.MaxPayload = t.MaxPayload
	}
	if t.FetchTimeout != 0 {
		result.Transport.FetchTimeout = t.FetchTimeout
	}
	if t.PollInterval != 0 {
		result.Transport.PollInterval = t.PollInterval
	}
	if t.UserAgent != "" {
		result.Transport.UserAgent = t.UserAgent
	}

	if file.Render.FontPath != "" {
		result.Render.FontPath = file.Render.FontPath
	}
	if file.Render.MaxPixels != 0 {
		result.Render.MaxPixels = file.Render.MaxPixels
	}
	if file.Render.MaxSourcePixels != 0 {
		result.Render.MaxSourcePixels = file.Render.MaxSourcePixels
	}

	if file.Export.Sink != "" {
		result.Export.Sink = file.Export.Sink
	}
	if file.Export.Dir != "" {
		result.Export.Dir = file.Export.Dir
	}
	if file.Export.MinIO != (MinIO{}) {
		result.Export.MinIO = file.Export.MinIO
	}

	if file.Log.Level != "" {
		result.Log.Level = file.Log.Level
	}
	if file.Log.File != "" {
		result.Log.File = file.Log.File
	}

	return &result
}
