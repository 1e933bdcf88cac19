package tools

import (
	"context"
	"strings"
)

// ScanResult classifies the outcome of an antivirus scan.
type ScanResult int

const (
	// ScanClean means the scanner ran and found nothing.
	ScanClean ScanResult = iota
	// ScanInfected means the scanner ran and detected malware.
	// This is the one tool outcome that must abort packaging.
	ScanInfected
	// ScanError means the scanner itself failed; treated as a soft
	// failure so a broken scanner does not block legitimate transfers.
	ScanError
)

// scannerInfectedExitCode is clamscan's exit code for positive detections.
const scannerInfectedExitCode = 1

// Scanner runs an antivirus sweep over a directory via clamscan.
type Scanner struct {
	Capability
}

// NewScanner returns the default clamscan-backed scanner.
func NewScanner() *Scanner {
	return &Scanner{
		Capability: Capability{
			Name:   "antivirus scanner",
			Binary: "clamscan",
		},
	}
}

// Scan sweeps the directory recursively. The detail string carries the
// scanner's own report for logging.
func (s *Scanner) Scan(ctx context.Context, dir string) (ScanResult, string) {
	output, code, err := s.run(ctx, "--recursive", "--infected", dir)
	if err != nil {
		return ScanError, err.Error()
	}

	detail := strings.TrimSpace(string(output))

	switch code {
	case 0:
		return ScanClean, detail
	case scannerInfectedExitCode:
		return ScanInfected, detail
	default:
		return ScanError, detail
	}
}
