package vectorfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/paulmach/orb"

	"github.com/depowered/culvertvision/internal/core/domain"
)

// TileIndexFile implements ports.TileIndexRepository and
// ports.TileIndexWriter on a GeoJSON file. The parsed index is kept in memory
// until the file changes.
type TileIndexFile struct {
	path string

	mu     sync.Mutex
	cached *domain.TileIndex
	mod    int64
}

// NewTileIndexFile creates a file-backed tile index at path.
func NewTileIndexFile(path string) *TileIndexFile {
	return &TileIndexFile{path: path}
}

// Path is the backing file.
func (f *TileIndexFile) Path() string { return f.path }

func (f *TileIndexFile) read() (*domain.TileIndex, error) {
	info, err := os.Stat(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("tile index %s: %w", f.path, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cached != nil && f.mod == info.ModTime().UnixNano() {
		return f.cached, nil
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, err
	}
	index, err := DecodeTiles(data)
	if err != nil {
		return nil, fmt.Errorf("tile index %s: %w", f.path, err)
	}
	f.cached, f.mod = index, info.ModTime().UnixNano()
	return index, nil
}

// CRS implements ports.TileIndexRepository.
func (f *TileIndexFile) CRS(ctx context.Context) (domain.CRS, error) {
	index, err := f.read()
	if err != nil {
		return domain.CRS{}, err
	}
	return index.CRS, nil
}

// Load implements ports.TileIndexRepository.
func (f *TileIndexFile) Load(ctx context.Context, within *orb.Bound) (*domain.TileIndex, error) {
	index, err := f.read()
	if err != nil {
		return nil, err
	}
	out := &domain.TileIndex{CRS: index.CRS, Records: index.Records}
	if within != nil {
		out.Records = filterBound(index.Records, *within)
	}
	return out, nil
}

// ReplaceAll implements ports.TileIndexWriter. The file is replaced atomically.
func (f *TileIndexFile) ReplaceAll(ctx context.Context, index *domain.TileIndex) error {
	data, err := EncodeTiles(index.CRS, index.Records)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".tile_index-*.geojson")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return err
	}

	f.mu.Lock()
	f.cached = nil
	f.mu.Unlock()
	return nil
}
