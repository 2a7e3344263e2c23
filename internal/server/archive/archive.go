// Package archive reads uploaded result archives and builds the weekly
// sample archive. Only regular file entries are exposed; directory entries
// are skipped.
package archive

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/dmitrijs2005/seqsubmit/internal/common"
	"github.com/klauspost/compress/zip"
)

// maxEntrySize caps the decompressed size of a single entry.
const maxEntrySize = 512 << 20

type Reader struct {
	zr *zip.Reader
}

func Open(data []byte) (*Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: not a zip archive: %v", common.ErrorValidation, err)
	}
	return &Reader{zr: zr}, nil
}

// Names lists the file entries in archive order.
func (r *Reader) Names() []string {
	names := make([]string, 0, len(r.zr.File))
	for _, f := range r.zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		names = append(names, f.Name)
	}
	return names
}

// Read returns the contents of the named entry, or common.ErrorNotFound.
func (r *Reader) Read(name string) ([]byte, error) {
	for _, f := range r.zr.File {
		if f.Name != name || f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()

		b, err := io.ReadAll(io.LimitReader(rc, maxEntrySize+1))
		if err != nil {
			return nil, err
		}
		if len(b) > maxEntrySize {
			return nil, fmt.Errorf("%w: entry %s too large", common.ErrorValidation, name)
		}
		return b, nil
	}
	return nil, common.ErrorNotFound
}

// NamesByExt lists the file entries whose base name ends in "."+ext,
// compared case-insensitively, in archive order.
func (r *Reader) NamesByExt(ext string) []string {
	suffix := "." + strings.ToLower(ext)
	var names []string
	for _, name := range r.Names() {
		if strings.HasSuffix(strings.ToLower(path.Base(name)), suffix) {
			names = append(names, name)
		}
	}
	return names
}

type Entry struct {
	Name string
	Data []byte
}

// Build writes entries into a new deflate-compressed archive, stamping
// each with modified.
func Build(entries []Entry, modified time.Time) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, e := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     e.Name,
			Method:   zip.Deflate,
			Modified: modified,
		})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(e.Data); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
