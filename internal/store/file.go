package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/nexusdeck/nexus/backend-go/internal/document"
	"github.com/nexusdeck/nexus/backend-go/internal/typeid"
)

// File stores one JSON document per presentation under dir.
type File struct {
	mu  sync.Mutex
	dir string
}

func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &File{dir: dir}, nil
}

func (f *File) path(id string) (string, error) {
	if err := typeid.Validate(id, typeid.PrefixPresentation); err != nil {
		return "", ErrNotFound
	}
	return filepath.Join(f.dir, id+".json"), nil
}

func (f *File) read(id string) (*document.Presentation, error) {
	p, err := f.path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read presentation: %w", err)
	}
	return Decode(data)
}

func (f *File) List(ctx context.Context, owner string) ([]Summary, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("list presentations: %w", err)
	}

	out := make([]Summary, 0)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		pres, err := f.read(strings.TrimSuffix(name, ".json"))
		if err != nil {
			// A corrupt file must not hide the rest of the dashboard.
			slog.Warn("skip unreadable presentation", "file", name, "error", err)
			continue
		}
		if pres.OwnerID == owner {
			out = append(out, Summarize(pres))
		}
	}
	SortRecent(out)
	return out, nil
}

func (f *File) Load(ctx context.Context, owner, id string) (*document.Presentation, error) {
	pres, err := f.read(id)
	if err != nil {
		return nil, err
	}
	if pres.OwnerID != owner {
		return nil, ErrForbidden
	}
	return pres, nil
}

func (f *File) Save(ctx context.Context, owner string, pres *document.Presentation) error {
	data, err := Encode(owner, pres)
	if err != nil {
		return err
	}
	p, err := f.path(pres.ID)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	existing, err := f.read(pres.ID)
	switch {
	case err == nil && existing.OwnerID != owner:
		return ErrForbidden
	case err != nil && !errors.Is(err, ErrNotFound):
		return err
	}
	return writeAtomic(p, data)
}

func (f *File) Delete(ctx context.Context, owner, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	pres, err := f.read(id)
	if err != nil {
		return err
	}
	if pres.OwnerID != owner {
		return ErrForbidden
	}
	p, _ := f.path(id)
	if err := os.Remove(p); err != nil {
		return fmt.Errorf("delete presentation: %w", err)
	}
	return nil
}

// writeAtomic writes to a temp file, syncs it and renames it over path.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	file, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
