package tools

import (
	"context"
	"fmt"
	"strings"
)

// Signer produces detached armored signatures via gpg.
type Signer struct {
	Capability
}

// NewSigner returns the default gpg-backed signer.
func NewSigner() *Signer {
	return &Signer{
		Capability: Capability{
			Name:   "detached signer",
			Binary: "gpg",
		},
	}
}

// Sign writes a detached armored signature of path to sigPath.
// When keyID is empty the tool's default identity signs; the caller is
// expected to warn about that.
func (s *Signer) Sign(ctx context.Context, path, sigPath, keyID string) error {
	args := []string{"--batch", "--yes", "--armor", "--detach-sign"}
	if keyID != "" {
		args = append(args, "--local-user", keyID)
	}

	args = append(args, "--output", sigPath, path)

	output, code, err := s.run(ctx, args...)
	if err != nil {
		return fmt.Errorf("run %s: %w", s.Binary, err)
	}

	if code != 0 {
		return fmt.Errorf("%s exited with code %d: %s", s.Binary, code, strings.TrimSpace(string(output)))
	}

	return nil
}
