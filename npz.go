package npy

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"
)

// An NPZ archive is a standard zip container in which every entry is named
// "<variable>.npy" and holds exactly one NPY file.
const npySuffix = ".npy"

// LoadArchive reads every NPY entry of an NPZ archive into a map keyed by
// variable name. Entries whose name does not end in ".npy" are skipped with a
// diagnostic, not an error.
func LoadArchive(path string) (map[string]*Array, error) {
	f, size, err := openArchive(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	zr, err := zip.NewReader(f, size)
	if err != nil {
		return nil, fmt.Errorf("npz %s: %w", path, err)
	}

	arrays := make(map[string]*Array)
	for _, zf := range zr.File {
		if !strings.HasSuffix(zf.Name, npySuffix) {
			Logger().Warn("archive entry does not end with .npy; skipping",
				zap.String("archive", path), zap.String("entry", zf.Name))
			continue
		}
		arr, err := loadZipEntry(f, zf)
		if err != nil {
			for _, a := range arrays {
				a.Close()
			}
			return nil, fmt.Errorf("npz %s: entry %s: %w", path, zf.Name, err)
		}
		arrays[strings.TrimSuffix(zf.Name, npySuffix)] = arr
	}
	return arrays, nil
}

// LoadArchiveEntry reads the single variable name from an NPZ archive.
func LoadArchiveEntry(path, name string) (*Array, error) {
	f, size, err := openArchive(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	zr, err := zip.NewReader(f, size)
	if err != nil {
		return nil, fmt.Errorf("npz %s: %w", path, err)
	}

	want := name + npySuffix
	for _, zf := range zr.File {
		if zf.Name != want {
			continue
		}
		arr, err := loadZipEntry(f, zf)
		if err != nil {
			return nil, fmt.Errorf("npz %s: entry %s: %w", path, zf.Name, err)
		}
		return arr, nil
	}
	return nil, fmt.Errorf("%w: variable name %q in %s", ErrNotFound, name, path)
}

func openArchive(path string) (*os.File, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("npz %s: %w", path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("npz %s: %w", path, err)
	}
	return f, fi.Size(), nil
}

// loadZipEntry materialises one NPY entry. The header is read in one bounded
// shot; if the whole entry fit that read, the payload is sliced out directly.
// Otherwise stored entries are read with a direct seek to the payload offset,
// while compressed entries cannot seek and pay a reopen-skip-read instead.
func loadZipEntry(ra io.ReaderAt, zf *zip.File) (*Array, error) {
	entrySize := int(zf.UncompressedSize64)

	rc, err := zf.Open()
	if err != nil {
		return nil, err
	}

	head := make([]byte, min(maxHeaderSize, entrySize))
	if _, err := io.ReadFull(rc, head); err != nil {
		rc.Close()
		return nil, fmt.Errorf("%w: truncated entry: %v", ErrFormat, err)
	}

	h, hdrLen, err := parseHeaderBytes(head)
	if err != nil {
		rc.Close()
		return nil, err
	}

	// the payload starts right after the header and runs to the end of the
	// entry; anything else means a corrupt or tampered entry
	numBytes := h.numBytes()
	if entrySize != hdrLen+numBytes {
		rc.Close()
		return nil, fmt.Errorf("%w: entry holds %d bytes, header declares %d",
			ErrFormat, entrySize, hdrLen+numBytes)
	}
	offset := hdrLen

	buf := NewInMemoryBuffer(numBytes)
	switch {
	case entrySize <= len(head):
		// the entry fit the initial read; payload is already in hand
		copy(buf.Data(), head[offset:offset+numBytes])
		rc.Close()

	case zf.Method == zip.Store:
		rc.Close()
		dataOff, err := zf.DataOffset()
		if err != nil {
			return nil, err
		}
		sr := io.NewSectionReader(ra, dataOff+int64(offset), int64(numBytes))
		if _, err := io.ReadFull(sr, buf.Data()); err != nil {
			return nil, fmt.Errorf("%w: truncated stored payload: %v", ErrFormat, err)
		}

	default:
		// compressed data, seek impossible: reopen the entry and discard
		// the header-sized prefix
		rc.Close()
		rc2, err := zf.Open()
		if err != nil {
			return nil, err
		}
		if _, err := io.CopyN(io.Discard, rc2, int64(offset)); err != nil {
			rc2.Close()
			return nil, fmt.Errorf("%w: truncated compressed entry: %v", ErrFormat, err)
		}
		if _, err := io.ReadFull(rc2, buf.Data()); err != nil {
			rc2.Close()
			return nil, fmt.Errorf("%w: truncated compressed payload: %v", ErrFormat, err)
		}
		rc2.Close()
	}

	return NewArray(h.shape, h.layout, h.order, buf)
}

// SaveToArchive writes data as the named variable of an NPZ archive. Mode "w"
// replaces the archive; mode "a" keeps its other entries, overwriting an
// entry of the same name.
func SaveToArchive[T Scalar](path, name string, data []T, shape Shape, mode Mode, order MemoryOrder, opts ...ArchiveOption) error {
	layout, err := NewLayout(FieldOf[T](""))
	if err != nil {
		return err
	}
	if err := shape.validate(); err != nil {
		return err
	}
	if len(data) != shape.Elements() {
		return fmt.Errorf("%w: %d elements for shape with %d", ErrUsage, len(data), shape.Elements())
	}
	return saveArchive(path, name, layout, &sliceSource[T]{data: data}, shape, mode, order, opts)
}

// SaveRecordsToArchive writes a structured array as the named variable of an
// NPZ archive; src must produce exactly shape.Elements() records.
func SaveRecordsToArchive(path, name string, layout *Layout, src ElementSource, shape Shape, mode Mode, order MemoryOrder, opts ...ArchiveOption) error {
	if err := shape.validate(); err != nil {
		return err
	}
	return saveArchive(path, name, layout, src, shape, mode, order, opts)
}

// saveArchive streams one entry into a replacement archive and renames it
// over the target. The entry payload is pulled chunk by chunk through
// npyStream; the archive is never asked to buffer the whole array.
func saveArchive(path, name string, layout *Layout, src ElementSource, shape Shape, mode Mode, order MemoryOrder, opts []ArchiveOption) error {
	if err := mode.validate(); err != nil {
		return err
	}
	options := defaultArchiveOptions()
	for _, opt := range opts {
		opt(&options)
	}

	hdr, err := generateHeader(shape, layout, order)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".npz-*")
	if err != nil {
		return fmt.Errorf("npz %s: %w", path, err)
	}
	defer func() {
		if tmp != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	zw := zip.NewWriter(tmp)
	entryName := name + npySuffix

	if mode == ModeAppend && fileExists(path) {
		if err := copySurvivingEntries(zw, path, entryName); err != nil {
			return err
		}
	}

	method := zip.Deflate
	if options.Stored {
		method = zip.Store
	}
	w, err := zw.CreateHeader(&zip.FileHeader{Name: entryName, Method: method})
	if err != nil {
		return fmt.Errorf("npz %s: entry %s: %w", path, entryName, err)
	}

	stream := newNpyStream(hdr, src, layout.Stride(), shape.Elements())
	chunk := make([]byte, options.CopyBufferSize)
	if _, err := io.CopyBuffer(w, stream, chunk); err != nil {
		return fmt.Errorf("npz %s: entry %s: %w", path, entryName, err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("npz %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("npz %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("npz %s: %w", path, err)
	}
	tmp = nil
	return nil
}

// copySurvivingEntries raw-copies every entry of the existing archive except
// the one being replaced.
func copySurvivingEntries(zw *zip.Writer, path, replaced string) error {
	f, size, err := openArchive(path)
	if err != nil {
		return err
	}
	defer f.Close()

	zr, err := zip.NewReader(f, size)
	if err != nil {
		return fmt.Errorf("npz %s: %w", path, err)
	}
	for _, zf := range zr.File {
		if zf.Name == replaced {
			Logger().Debug("overwriting archive entry",
				zap.String("archive", path), zap.String("entry", zf.Name))
			continue
		}
		if err := zw.Copy(zf); err != nil {
			return fmt.Errorf("npz %s: copying entry %s: %w", path, zf.Name, err)
		}
	}
	return nil
}
