// Package loader provides document loading adapters.
package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/0xcro3dile/filechat-go/internal/domain/entities"
	"github.com/spf13/afero"
	"pkt.systems/pslog"
)

// PDFLoader reads PDF documents from a filesystem.
type PDFLoader struct {
	fs afero.Fs
}

// NewPDFLoader creates a loader over fs. A nil fs reads the OS filesystem.
func NewPDFLoader(fs afero.Fs) *PDFLoader {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &PDFLoader{fs: fs}
}

// Load reads and validates a PDF from the given path.
func (l *PDFLoader) Load(ctx context.Context, path string) (*entities.UploadedDocument, error) {
	name := filepath.Base(path)
	data, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return nil, entities.UploadError("read", name, err)
	}

	doc := &entities.UploadedDocument{Name: name, Data: data}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

// LoadDir reads every valid PDF in dir, sorted by name.
// Files that fail validation are skipped; they may still be being written.
func (l *PDFLoader) LoadDir(ctx context.Context, dir string) ([]entities.UploadedDocument, error) {
	entries, err := afero.ReadDir(l.fs, dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	log := pslog.Ctx(ctx)
	var docs []entities.UploadedDocument
	for _, entry := range entries {
		if entry.IsDir() || !l.supported(entry.Name()) {
			continue
		}
		doc, err := l.Load(ctx, filepath.Join(dir, entry.Name()))
		if err != nil {
			log.Debug("skipping document", "name", entry.Name(), "err", err)
			continue
		}
		docs = append(docs, *doc)
	}
	return docs, nil
}

// LoadPaths reads the listed files in order. Any failure aborts.
func (l *PDFLoader) LoadPaths(ctx context.Context, paths []string) ([]entities.UploadedDocument, error) {
	docs := make([]entities.UploadedDocument, 0, len(paths))
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		doc, err := l.Load(ctx, ExpandHome(p))
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, nil
}

// SupportedExtensions returns file extensions this loader handles.
func (l *PDFLoader) SupportedExtensions() []string {
	return []string{".pdf"}
}

func (l *PDFLoader) supported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range l.SupportedExtensions() {
		if ext == e {
			return true
		}
	}
	return false
}

// SplitPaths parses a comma separated path list.
func SplitPaths(list string) []string {
	var out []string
	for _, p := range strings.Split(list, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ExpandHome replaces a leading ~ with the home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
