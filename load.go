package npy

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// Load reads an NPY file into an in-memory Array.
func Load(path string) (*Array, error) {
	return loadFile(path, false)
}

// LoadMapped reads an NPY file's metadata and memory-maps its payload
// read-only. The mapping is released by Array.Close.
func LoadMapped(path string) (*Array, error) {
	return loadFile(path, true)
}

func loadFile(path string, mapped bool) (*Array, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	h, hdrLen, err := parseHeader(br)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	var buf Buffer
	if mapped {
		buf, err = NewMappedBuffer(path, hdrLen, h.numBytes())
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	} else {
		mem := NewInMemoryBuffer(h.numBytes())
		if _, err := io.ReadFull(br, mem.Data()); err != nil {
			return nil, fmt.Errorf("load %s: truncated payload: %w", path, err)
		}
		buf = mem
	}

	arr, err := NewArray(h.shape, h.layout, h.order, buf)
	if err != nil {
		buf.Close()
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return arr, nil
}
