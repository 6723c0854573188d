// Package ota replaces the running executable with an uploaded build.
package ota

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrNotExecutable is returned when the upload is not an ELF binary.
var ErrNotExecutable = errors.New("upload is not an ELF executable")

var elfMagic = []byte{0x7f, 'E', 'L', 'F'}

// Updater swaps Target for an uploaded file.
type Updater struct {
	Target string
}

// New returns an updater for the running executable.
func New() (*Updater, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate executable: %w", err)
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return nil, fmt.Errorf("resolve executable: %w", err)
	}
	return &Updater{Target: exe}, nil
}

// Apply stages r next to Target and renames it into place. On any error
// Target is left untouched. It returns the number of bytes written.
func (u *Updater) Apply(r io.Reader) (int64, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(elfMagic))
	if err != nil || !bytes.Equal(head, elfMagic) {
		return 0, ErrNotExecutable
	}

	dir := filepath.Dir(u.Target)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(u.Target)+".update-*")
	if err != nil {
		return 0, fmt.Errorf("stage update: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	n, err := io.Copy(tmp, br)
	if err != nil {
		tmp.Close()
		return n, fmt.Errorf("write update: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return n, fmt.Errorf("sync update: %w", err)
	}
	if err := tmp.Chmod(0o755); err != nil {
		tmp.Close()
		return n, fmt.Errorf("chmod update: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return n, fmt.Errorf("close update: %w", err)
	}
	if err := os.Rename(tmpName, u.Target); err != nil {
		return n, fmt.Errorf("install update: %w", err)
	}
	return n, nil
}
