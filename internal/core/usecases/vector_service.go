package usecases

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/depowered/culvertvision/internal/core/ports"
	"github.com/depowered/culvertvision/internal/pkg/config"
)

// VectorSourceService mirrors remote vector datasets into the data directory.
type VectorSourceService struct {
	remote ports.RemoteFile
	dir    string
}

// NewVectorSourceService creates a new VectorSourceService writing under dir.
func NewVectorSourceService(remote ports.RemoteFile, dir string) *VectorSourceService {
	return &VectorSourceService{remote: remote, dir: dir}
}

// ExtractResult reports what happened to one source.
type ExtractResult struct {
	Name       string
	Path       string
	Downloaded bool
}

// Extract downloads each source that is missing locally or changed remotely.
// Zip archives are unpacked to their first GeoPackage member.
func (s *VectorSourceService) Extract(ctx context.Context, sources []config.VectorSource) ([]ExtractResult, error) {
	var out []ExtractResult
	for _, src := range sources {
		res, err := s.extractOne(ctx, src)
		if err != nil {
			return out, fmt.Errorf("vector source %s: %w", src.Name, err)
		}
		out = append(out, res)
	}
	return out, nil
}

// LocalPath is where a source is stored once extracted.
func (s *VectorSourceService) LocalPath(src config.VectorSource) string {
	name := src.Filename
	if name == "" {
		name = path.Base(src.URL)
		if strings.HasSuffix(strings.ToLower(name), ".zip") {
			name = strings.TrimSuffix(name, name[len(name)-4:]) + ".gpkg"
		}
	}
	return filepath.Join(s.dir, name)
}

func (s *VectorSourceService) extractOne(ctx context.Context, src config.VectorSource) (ExtractResult, error) {
	dest := s.LocalPath(src)
	res := ExtractResult{Name: src.Name, Path: dest}

	if info, err := os.Stat(dest); err == nil {
		newer, err := s.remote.ModifiedSince(ctx, src.URL, info.ModTime())
		if err != nil {
			return res, err
		}
		if !newer {
			slog.Info("vector source up-to-date", "source", src.Name, "path", dest)
			return res, nil
		}
	}

	slog.Info("downloading vector source", "source", src.Name, "url", src.URL)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return res, err
	}
	body, err := s.remote.Fetch(ctx, src.URL)
	if err != nil {
		return res, err
	}
	defer body.Close()

	if strings.HasSuffix(strings.ToLower(src.URL), ".zip") {
		err = unzipFirstGeoPackage(body, dest)
	} else {
		err = writeAtomic(body, dest)
	}
	if err != nil {
		return res, err
	}
	res.Downloaded = true
	return res, nil
}

func unzipFirstGeoPackage(r io.Reader, dest string) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*.zip")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	size, err := io.Copy(tmp, r)
	if err != nil {
		return err
	}
	zr, err := zip.NewReader(tmp, size)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	for _, f := range zr.File {
		if !strings.Contains(strings.ToLower(f.Name), ".gpkg") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		defer rc.Close()
		return writeAtomic(rc, dest)
	}
	return fmt.Errorf("archive has no .gpkg member")
}

func writeAtomic(r io.Reader, dest string) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".part-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), dest)
}
