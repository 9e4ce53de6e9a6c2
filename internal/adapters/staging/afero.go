// Package staging writes uploads to scoped temporary files before they leave the process.
package staging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/0xcro3dile/filechat-go/internal/domain/entities"
	"github.com/spf13/afero"
	"pkt.systems/pslog"
)

// Stager implements ports.DocumentStager on an afero filesystem.
type Stager struct {
	fs  afero.Fs
	dir string
}

// NewStager creates a stager writing under dir. An empty dir uses the OS temp dir.
func NewStager(fs afero.Fs, dir string) (*Stager, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "filechat")
	}
	if ok, _ := afero.DirExists(fs, dir); !ok {
		if err := fs.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating staging directory: %w", err)
		}
	}
	return &Stager{fs: fs, dir: dir}, nil
}

// WithStagedFile writes doc to a fresh temp file and hands it to fn.
// The file is removed when fn returns, whatever the outcome.
func (s *Stager) WithStagedFile(ctx context.Context, doc entities.UploadedDocument, fn func(name string, r io.Reader) error) error {
	f, err := afero.TempFile(s.fs, s.dir, "upload-*.pdf")
	if err != nil {
		return entities.UploadError("stage", doc.Name, err)
	}
	path := f.Name()
	defer func() {
		f.Close()
		if err := s.fs.Remove(path); err != nil {
			pslog.Ctx(ctx).Warn("staged file not removed", "path", path, "err", err)
		}
	}()

	if _, err := f.Write(doc.Data); err != nil {
		return entities.UploadError("stage", doc.Name, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return entities.UploadError("stage", doc.Name, err)
	}
	return fn(doc.Name, f)
}

// Dir returns the staging directory.
func (s *Stager) Dir() string {
	return s.dir
}
