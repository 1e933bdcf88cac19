package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestValidate checks defaults and normalization applied to the policy.
func TestValidate(t *testing.T) {
	t.Parallel()

	// Empty config gains defaults.
	cfg := new(Config)

	require.NoError(t, Validate(cfg))
	require.Equal(t, int64(DefaultMaxSizeMB), cfg.MaxSizeMB)
	require.Equal(t, DefaultOrganization, cfg.Organization)
	require.Equal(t, DefaultExtensions(), cfg.Extensions)

	// Extensions are lowercased and stripped of leading dots.
	cfg = &Config{
		Extensions: []string{".TXT", "Md", " csv "},
	}

	require.NoError(t, Validate(cfg))
	require.Equal(t, []string{"txt", "md", "csv"}, cfg.Extensions)

	// Whitelist collapsing to nothing is rejected.
	cfg = &Config{
		Extensions: []string{".", "  "},
	}
	require.Error(t, Validate(cfg))

	// Negative size cap is rejected.
	cfg = &Config{
		MaxSizeMB: -1,
	}
	require.Error(t, Validate(cfg))
}

// TestAllowedExtensions verifies the binary document set is only merged in on request.
func TestAllowedExtensions(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Extensions: []string{"txt"},
	}
	require.NoError(t, Validate(cfg))

	allowed := cfg.AllowedExtensions()
	require.Contains(t, allowed, "txt")
	require.NotContains(t, allowed, "pdf")

	cfg.AllowBinary = true
	allowed = cfg.AllowedExtensions()
	require.Contains(t, allowed, "pdf")
	require.Contains(t, allowed, "zip")
}

// TestSaveLoadRoundtrip ensures the policy is persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")

	cfg := &Config{
		Organization: "acme",
		Label:        "internal",
		Extensions:   []string{"txt", "md"},
		MaxSizeMB:    10,
		ScanPayload:  true,
	}

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.Organization, loaded.Organization)
	require.Equal(t, cfg.Label, loaded.Label)
	require.Equal(t, cfg.Extensions, loaded.Extensions)
	require.Equal(t, cfg.MaxSizeMB, loaded.MaxSizeMB)
	require.True(t, loaded.ScanPayload)

	// File exists.
	_, err = os.Stat(path)
	require.NoError(t, err)
}
