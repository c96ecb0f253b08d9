package decoder

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"path"
	"time"
)

// Source locates the raw bytes of a document.
type Source interface {
	// Name identifies the source in logs and errors.
	Name() string

	// Parts lists the files that make up the document, in page order.
	Parts(ctx context.Context) ([]Part, error)
}

// Part is one file of a document.
type Part struct {
	Name    string
	Size    int64
	ModTime time.Time

	open func() (io.ReadCloser, error)
}

// Open returns a reader for the part's content.
func (p Part) Open() (io.ReadCloser, error) {
	if p.open == nil {
		return nil, fmt.Errorf("decoder: part %q has no content", p.Name)
	}
	return p.open()
}

// FSSource reads document files from a file system. Paths are
// slash-separated and relative to FS, as for fs.Open.
type FSSource struct {
	FS    fs.FS
	Paths []string

	// Manifest optionally names a JSONC file with metadata, outline and
	// links. Decoders that do not understand manifests ignore it.
	Manifest string
}

// Name returns the first path, or "fs" when there is none.
func (s FSSource) Name() string {
	if len(s.Paths) == 0 {
		return "fs"
	}
	if len(s.Paths) == 1 {
		return s.Paths[0]
	}
	return fmt.Sprintf("%s (+%d)", s.Paths[0], len(s.Paths)-1)
}

// Parts stats every path. A missing path is an error.
func (s FSSource) Parts(ctx context.Context) ([]Part, error) {
	parts := make([]Part, 0, len(s.Paths))
	for _, p := range s.Paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, err := fs.Stat(s.FS, p)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			return nil, fmt.Errorf("decoder: %s is a directory", p)
		}
		name := p
		parts = append(parts, Part{
			Name:    path.Base(p),
			Size:    info.Size(),
			ModTime: info.ModTime(),
			open:    func() (io.ReadCloser, error) { return s.FS.Open(name) },
		})
	}
	return parts, nil
}

// ReadManifest returns the manifest content, or nil if none is configured.
func (s FSSource) ReadManifest() ([]byte, error) {
	if s.Manifest == "" {
		return nil, nil
	}
	return fs.ReadFile(s.FS, s.Manifest)
}

// BytesSource serves document files from memory.
type BytesSource struct {
	Label string
	Files [][]byte

	// Manifest is optional JSONC content, see FSSource.Manifest.
	Manifest []byte
}

// Name returns the label.
func (s BytesSource) Name() string {
	if s.Label == "" {
		return "bytes"
	}
	return s.Label
}

// Parts wraps each file in a reader.
func (s BytesSource) Parts(ctx context.Context) ([]Part, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	parts := make([]Part, len(s.Files))
	for i, data := range s.Files {
		parts[i] = Part{
			Name: fmt.Sprintf("%s#%d", s.Name(), i),
			Size: int64(len(data)),
			open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
		}
	}
	return parts, nil
}

// ReadManifest returns the manifest content.
func (s BytesSource) ReadManifest() ([]byte, error) { return s.Manifest, nil }

// ManifestSource is implemented by sources that can carry a manifest.
type ManifestSource interface {
	ReadManifest() ([]byte, error)
}
