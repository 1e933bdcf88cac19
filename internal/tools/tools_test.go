package tools

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeTool writes an executable shell script and returns its binary name.
// The directory is prepended to PATH for the remainder of the test.
func fakeTool(t *testing.T, name, script string) string {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("fake tools use shell scripts")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))

	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))

	return name
}

// TestCapability_Available probes PATH lookup for present and absent tools.
func TestCapability_Available(t *testing.T) {
	binary := fakeTool(t, "present-tool", "exit 0\n")

	present := Capability{Name: "present", Binary: binary}
	require.True(t, present.Available())

	absent := Capability{Name: "absent", Binary: "definitely-not-installed-anywhere"}
	require.False(t, absent.Available())
}

// TestScanner_Outcomes maps scanner exit codes to the three results.
func TestScanner_Outcomes(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	scanner := NewScanner()

	scanner.Binary = fakeTool(t, "scan-clean", "exit 0\n")
	result, _ := scanner.Scan(ctx, dir)
	require.Equal(t, ScanClean, result)

	scanner.Binary = fakeTool(t, "scan-infected", "echo 'Eicar-Test-Signature FOUND'\nexit 1\n")
	result, detail := scanner.Scan(ctx, dir)
	require.Equal(t, ScanInfected, result)
	require.Contains(t, detail, "FOUND")

	scanner.Binary = fakeTool(t, "scan-broken", "exit 2\n")
	result, _ = scanner.Scan(ctx, dir)
	require.Equal(t, ScanError, result)
}

// TestScrubber_Strip verifies success and per-file failure classification.
func TestScrubber_Strip(t *testing.T) {
	ctx := context.Background()
	file := filepath.Join(t.TempDir(), "photo.jpg")
	require.NoError(t, os.WriteFile(file, []byte("jpeg"), 0o644))

	scrubber := NewScrubber()

	scrubber.Binary = fakeTool(t, "strip-ok", "exit 0\n")
	require.NoError(t, scrubber.Strip(ctx, file))

	scrubber.Binary = fakeTool(t, "strip-fail", "echo 'unsupported format'\nexit 1\n")
	err := scrubber.Strip(ctx, file)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported format")
}

// TestIsImage covers the fixed image extension set.
func TestIsImage(t *testing.T) {
	t.Parallel()

	require.True(t, IsImage("photo.jpg"))
	require.True(t, IsImage("photo.JPEG"))
	require.True(t, IsImage("dir/shot.png"))
	require.False(t, IsImage("notes.txt"))
	require.False(t, IsImage("archive.zip"))
	require.False(t, IsImage("noextension"))
}

// TestSigner_Sign verifies the signature file lands where requested.
func TestSigner_Sign(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	file := filepath.Join(dir, "bundle.tar.gz")
	sigPath := file + ".asc"
	require.NoError(t, os.WriteFile(file, []byte("archive"), 0o644))

	signer := NewSigner()

	// Fake gpg writes its output argument.
	signer.Binary = fakeTool(t, "sign-ok", `
while [ "$1" != "--output" ]; do shift; done
echo "-----BEGIN PGP SIGNATURE-----" > "$2"
exit 0
`)
	require.NoError(t, signer.Sign(ctx, file, sigPath, "release@acme"))

	_, err := os.Stat(sigPath)
	require.NoError(t, err)

	signer.Binary = fakeTool(t, "sign-fail", "exit 2\n")
	require.Error(t, signer.Sign(ctx, file, sigPath, ""))
}
