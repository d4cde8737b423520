package resource

import (
	"archive/zip"
	"context"
	"io"
	"io/fs"
	"os"
	"path"
)

// FSSource reads resources from any fs.FS: a directory tree, an embedded
// filesystem or an archive.
type FSSource struct {
	fsys fs.FS
}

func NewFSSource(fsys fs.FS) *FSSource {
	return &FSSource{fsys: fsys}
}

func NewDirSource(dir string) *FSSource {
	return NewFSSource(os.DirFS(dir))
}

// NewZipSource serves resources out of a zip archive held in r.
func NewZipSource(r io.ReaderAt, size int64) (*FSSource, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, err
	}
	return NewFSSource(zr), nil
}

func (s *FSSource) Enumerate(ctx context.Context, root string) ([]string, error) {
	var ids []string
	err := fs.WalkDir(s.fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		ids = append(ids, path.Clean(p))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *FSSource) Open(_ context.Context, id string) (io.ReadCloser, error) {
	return s.fsys.Open(id)
}
