package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrEmptyFile is returned when an upload carries no bytes.
	ErrEmptyFile = errors.New("file is empty")
	// ErrFileTooLarge is returned when an upload exceeds the staging limit.
	ErrFileTooLarge = errors.New("file exceeds maximum upload size")
)

// Staging holds upload bytes on disk while a file moves through the pipeline.
type Staging struct {
	dir string
}

// StagedFile is one staged upload. Release must be called on every exit path.
type StagedFile struct {
	Name         string
	OriginalName string
	Path         string
	Size         int64
}

// NewStaging creates the staging directory if needed.
func NewStaging(dir string) (*Staging, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}
	return &Staging{dir: dir}, nil
}

// Stage copies r under a unique name derived from originalName. A positive
// maxBytes bounds the copy; nothing is left on disk when staging fails.
func (s *Staging) Stage(originalName string, r io.Reader, maxBytes int64) (*StagedFile, error) {
	f, err := os.CreateTemp(s.dir, "*-"+sanitizeName(originalName))
	if err != nil {
		return nil, fmt.Errorf("create staged file: %w", err)
	}
	staged := &StagedFile{
		Name:         filepath.Base(f.Name()),
		OriginalName: originalName,
		Path:         f.Name(),
	}

	src := r
	if maxBytes > 0 {
		src = io.LimitReader(r, maxBytes+1)
	}
	n, err := io.Copy(f, src)
	closeErr := f.Close()
	switch {
	case err != nil:
		err = fmt.Errorf("write staged file: %w", err)
	case closeErr != nil:
		err = fmt.Errorf("close staged file: %w", closeErr)
	case n == 0:
		err = ErrEmptyFile
	case maxBytes > 0 && n > maxBytes:
		err = ErrFileTooLarge
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return nil, err
	}
	staged.Size = n
	return staged, nil
}

// Release removes the staged bytes. Releasing twice is a no-op.
func (f *StagedFile) Release() error {
	if f == nil || f.Path == "" {
		return nil
	}
	if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release staged file: %w", err)
	}
	return nil
}

// Read returns the staged bytes.
func (f *StagedFile) Read() ([]byte, error) {
	return os.ReadFile(f.Path)
}

func sanitizeName(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '*' || r == '/' || r == '\\' || r < 0x20:
			return '_'
		default:
			return r
		}
	}, name)
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "upload"
	}
	return name
}
