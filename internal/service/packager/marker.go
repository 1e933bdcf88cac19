package packager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/transfer-bundle/internal/config"
	"github.com/oshokin/transfer-bundle/internal/logger"
)

// markerFilename marks that a packager is writing into this output
// directory right now, to avoid two runs interleaving their artifacts.
const markerFilename = ".bundle-packager-marker"

// errPackagerRunning indicates another packager run owns the output directory.
var errPackagerRunning = errors.New("another packager run is in progress")

// acquireRunMarker claims the output directory for this run. A marker left
// by a crashed run is recovered by checking whether its recorded process
// is still alive.
func acquireRunMarker(ctx context.Context, outputDir string) (func(), error) {
	markerPath := filepath.Join(outputDir, markerFilename)

	contents, err := os.ReadFile(filepath.Clean(markerPath))

	switch {
	case err == nil:
		pid, parseErr := strconv.Atoi(strings.TrimSpace(string(contents)))
		if parseErr == nil && isProcessAlive(pid) {
			return nil, fmt.Errorf("%w (pid %d)", errPackagerRunning, pid)
		}

		logger.WarnKV(ctx, "Removing stale packager marker", "path", markerPath)

		if err = os.Remove(markerPath); err != nil {
			return nil, fmt.Errorf("remove stale marker: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		// Nothing to recover.
	default:
		return nil, fmt.Errorf("read marker: %w", err)
	}

	pid := strconv.Itoa(os.Getpid())
	if err = os.WriteFile(markerPath, []byte(pid), config.DefaultFilePermissions); err != nil {
		return nil, fmt.Errorf("write marker: %w", err)
	}

	release := func() {
		if err := os.Remove(markerPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.WarnKV(ctx, "Unable to remove packager marker", "path", markerPath, "error", err)
		}
	}

	return release, nil
}

// isProcessAlive reports whether a process with the given pid exists.
func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	process, err := ps.FindProcess(pid)

	return err == nil && process != nil
}
