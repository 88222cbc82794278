package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rustyeddy/portfolio/position"
)

// FileStore writes one JSON document per name under Dir.
type FileStore struct {
	Dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("store: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	return &FileStore{Dir: dir}, nil
}

func (f *FileStore) Path(name string) string {
	return filepath.Join(f.Dir, name+".json")
}

// SaveSnapshot writes through a temp file and renames it into place so a
// crash never leaves a half-written snapshot.
func (f *FileStore) SaveSnapshot(ctx context.Context, name string, s position.Snapshot) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := s.Marshal()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.Dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("store: write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: write %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), f.Path(name)); err != nil {
		return fmt.Errorf("store: write %s: %w", name, err)
	}
	return nil
}

func (f *FileStore) LoadSnapshot(ctx context.Context, name string) (position.Snapshot, error) {
	if err := checkName(name); err != nil {
		return position.Snapshot{}, err
	}
	if err := ctx.Err(); err != nil {
		return position.Snapshot{}, err
	}
	b, err := os.ReadFile(f.Path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return position.Snapshot{}, nil
	}
	if err != nil {
		return position.Snapshot{}, fmt.Errorf("store: read %s: %w", name, err)
	}
	return position.UnmarshalSnapshot(b)
}
