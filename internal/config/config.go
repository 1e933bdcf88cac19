package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the packaging policy shared by the bundle binaries.
type Config struct {
	// Organization is the issuing organization, used in bundle names and notes.
	Organization string `yaml:"organization"`
	// Label is the classification or marking label, free text.
	Label string `yaml:"label"`
	// OutputDir is the directory where archives are written.
	OutputDir string `yaml:"output_dir"`
	// Extensions is the whitelist of file extensions allowed into the payload,
	// lowercase, without leading dot.
	Extensions []string `yaml:"extensions"`
	// MaxSizeMB is the per-file size cap in megabytes.
	MaxSizeMB int64 `yaml:"max_size_mb"`
	// AllowBinary additionally permits the fixed binary document extension set.
	AllowBinary bool `yaml:"allow_binary"`
	// ScrubMetadata enables best-effort EXIF removal from staged images.
	ScrubMetadata bool `yaml:"scrub_metadata"`
	// ScanPayload enables the antivirus scan of the staged payload.
	ScanPayload bool `yaml:"scan_payload"`
	// Sign enables detached signature generation for the produced archive.
	Sign bool `yaml:"sign"`
	// SigningKey is the identifier passed to the signing tool. Optional.
	SigningKey string `yaml:"signing_key"`
}

const (
	// DefaultConfigFilename is the default filename for the packaging policy.
	DefaultConfigFilename = "bundle-policy.yaml"

	// DefaultOutputDir is used when no output directory is configured.
	DefaultOutputDir = "bundles"

	// DefaultMaxSizeMB is the per-file size cap applied when none is configured.
	DefaultMaxSizeMB = 50

	// DefaultOrganization is used when no organization is configured.
	DefaultOrganization = "unspecified"

	// DefaultLabel is used when no marking label is configured.
	DefaultLabel = "unclassified"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600

	bytesPerMB = 1024 * 1024
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errNoExtensions is returned when the whitelist resolves to an empty set.
	errNoExtensions = errors.New("extension whitelist must not be empty")
	// errNegativeMaxSize is returned when a negative size cap is configured.
	errNegativeMaxSize = errors.New("max file size must not be negative")
)

// DefaultExtensions returns the whitelist applied when none is configured.
func DefaultExtensions() []string {
	return []string{"txt", "md", "csv", "json", "yaml", "log", "jpg", "jpeg", "png"}
}

// BinaryExtensions returns the fixed extension set additionally permitted
// when AllowBinary is enabled.
func BinaryExtensions() []string {
	return []string{"pdf", "docx", "xlsx", "pptx", "zip"}
}

// Load reads the policy from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read policy: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal policy: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the policy to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal policy: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write policy: %w", err)
	}

	return nil
}

// Validate normalizes the provided policy and applies defaults to unset fields.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.MaxSizeMB < 0 {
		return errNegativeMaxSize
	}

	if cfg.MaxSizeMB == 0 {
		cfg.MaxSizeMB = DefaultMaxSizeMB
	}

	if cfg.Organization == "" {
		cfg.Organization = DefaultOrganization
	}

	if cfg.Label == "" {
		cfg.Label = DefaultLabel
	}

	if cfg.OutputDir == "" {
		cfg.OutputDir = DefaultOutputDir
	}

	if len(cfg.Extensions) == 0 {
		cfg.Extensions = DefaultExtensions()
	}

	normalized := make([]string, 0, len(cfg.Extensions))

	for _, ext := range cfg.Extensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			normalized = append(normalized, ext)
		}
	}

	if len(normalized) == 0 {
		return errNoExtensions
	}

	cfg.Extensions = normalized

	return nil
}

// MaxSizeBytes returns the per-file size cap in bytes.
func (c *Config) MaxSizeBytes() int64 {
	return c.MaxSizeMB * bytesPerMB
}

// AllowedExtensions returns the effective whitelist as a lookup set,
// including the binary document set when AllowBinary is enabled.
func (c *Config) AllowedExtensions() map[string]struct{} {
	allowed := make(map[string]struct{}, len(c.Extensions))
	for _, ext := range c.Extensions {
		allowed[ext] = struct{}{}
	}

	if c.AllowBinary {
		for _, ext := range BinaryExtensions() {
			allowed[ext] = struct{}{}
		}
	}

	return allowed
}
