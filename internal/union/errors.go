package union

import (
	"errors"
	"fmt"
)

// Sentinel errors for the taxonomy in the union filesystem's error design.
// Callers match with errors.Is; the FUSE adapter maps each to a
// syscall.Errno at the boundary.
var (
	ErrNotFound    = errors.New("not found")
	ErrExists      = errors.New("already exists")
	ErrNameTooLong = errors.New("name too long")
	ErrInvalid     = errors.New("invalid argument")
	ErrPermission  = errors.New("permission denied")
	ErrNotEmpty    = errors.New("directory not empty")
	ErrCrossBranch = errors.New("cross-branch operation")
	ErrBug         = errors.New("internal invariant violated")
)

// wrap annotates a sentinel with the path that triggered it, keeping
// errors.Is working against the sentinel.
func wrap(sentinel error, op, path string) error {
	return fmt.Errorf("%s %s: %w", op, path, sentinel)
}

func wrapf(sentinel error, op, path string, extra string) error {
	return fmt.Errorf("%s %s: %s: %w", op, path, extra, sentinel)
}
