// Package outdir prepares output directories for a run and publishes staged
// output into them, so that an abandoned or failed attempt never leaves a
// partial mix of old and new files behind.
package outdir

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"niobiums/internal/common"

	"github.com/rs/zerolog/log"
)

var (
	// ErrDestinationConflict is returned when the destination already holds
	// output and the caller declined to overwrite it.
	ErrDestinationConflict = errors.New("outdir: destination holds output from a prior run")
	// ErrResourceBusy is returned when the destination cannot be cleared or
	// written because something else holds it open. Retrying is safe.
	ErrResourceBusy = errors.New("outdir: destination is busy")
)

// Confirmer decides whether an existing, non-empty destination may be
// overwritten.
type Confirmer interface {
	ConfirmOverwrite(path string) bool
}

// ConfirmFunc adapts a function to the Confirmer interface.
type ConfirmFunc func(path string) bool

func (f ConfirmFunc) ConfirmOverwrite(path string) bool { return f(path) }

// Always approves every overwrite.
var Always = ConfirmFunc(func(string) bool { return true })

// Never refuses every overwrite.
var Never = ConfirmFunc(func(string) bool { return false })

// Prepare guarantees that path exists and is empty. An existing non-empty
// directory is only cleared after the confirmer approves.
func Prepare(path string, confirm Confirmer) error {
	entries, err := os.ReadDir(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := os.MkdirAll(path, 0o755); err != nil {
			return classify(path, err)
		}
		return nil
	case err != nil:
		return classify(path, err)
	case len(entries) == 0:
		return nil
	}

	if confirm == nil || !confirm.ConfirmOverwrite(path) {
		return fmt.Errorf("%w: %s", ErrDestinationConflict, path)
	}

	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(path, entry.Name())); err != nil {
			return classify(path, err)
		}
	}
	log.Info().Str("dir", path).Int("removed", len(entries)).Msg("Cleared previous output")
	return nil
}

// Stage creates an empty staging directory next to final.
func Stage(final string) (string, error) {
	parent := filepath.Dir(final)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", classify(parent, err)
	}
	dir, err := os.MkdirTemp(parent, common.StagingDirPattern)
	if err != nil {
		return "", classify(parent, err)
	}
	return dir, nil
}

// Commit moves every file of the staging directory into final (which must
// have been prepared) and removes the staging directory. On failure the
// files already moved are removed again so final is left empty.
func Commit(staging, final string) error {
	entries, err := os.ReadDir(staging)
	if err != nil {
		return classify(staging, err)
	}

	moved := make([]string, 0, len(entries))
	for _, entry := range entries {
		dest := filepath.Join(final, entry.Name())
		if err := os.Rename(filepath.Join(staging, entry.Name()), dest); err != nil {
			for _, m := range moved {
				_ = os.RemoveAll(m)
			}
			_ = os.RemoveAll(staging)
			return classify(final, err)
		}
		moved = append(moved, dest)
	}
	return os.Remove(staging)
}

// Discard removes a staging directory. It is safe to call with "".
func Discard(staging string) {
	if staging == "" {
		return
	}
	if err := os.RemoveAll(staging); err != nil {
		log.Warn().Err(err).Str("dir", staging).Msg("Failed to remove staging directory")
	}
}

func classify(path string, err error) error {
	if errors.Is(err, fs.ErrPermission) || errors.Is(err, syscall.EBUSY) || errors.Is(err, syscall.ETXTBSY) {
		return fmt.Errorf("%w: %s: %v", ErrResourceBusy, path, err)
	}
	return fmt.Errorf("outdir %s: %w", path, err)
}
