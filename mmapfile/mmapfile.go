// Package mmapfile provides read-only, memory-mapped access to the
// immutable binary tables (dictionary, connector matrix, character
// property table) that back a Model. It is the single choke point every
// on-disk format opens through.
package mmapfile

import (
	"encoding/binary"
	"io"
	"os"
	"unsafe"

	mmap "github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"
)

// Mode selects how a Table was opened. ModeRead is the only mode used by
// the runtime analyzer; ModeReadWrite exists for symmetry with the
// original Mmap<T>; no caller in this module uses it.
type Mode int

const (
	ModeRead Mode = iota
	ModeReadWrite
)

// Table is a read-only view over a memory-mapped file. On platforms
// where shared mapping is unavailable, Open falls back to a single
// sequential read into a heap buffer; callers cannot tell the
// difference from the returned slices.
type Table struct {
	path   string
	mode   Mode
	data   mmap.MMap
	heap   []byte
	mapped bool
	file   *os.File
}

// OpenFailedError reports that a table could not be mapped because the
// backing file is missing or truncated.
type OpenFailedError struct {
	Path string
	Err  error
}

func (e *OpenFailedError) Error() string {
	return "mmapfile: open failed: " + e.Path + ": " + e.Err.Error()
}

func (e *OpenFailedError) Unwrap() error { return e.Err }

// Open memory-maps path read-only. If mode is ModeReadWrite the mapping
// is writable and Close() will flush dirty pages back to disk; every
// runtime caller in this module uses ModeRead.
func Open(path string, mode Mode) (*Table, error) {
	flag := os.O_RDONLY
	if mode == ModeReadWrite {
		flag = os.O_RDWR
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, &OpenFailedError{Path: path, Err: err}
	}

	t := &Table{path: path, mode: mode, file: f}

	mmapMode := mmap.RDONLY
	if mode == ModeReadWrite {
		mmapMode = mmap.RDWR
	}

	m, err := mmap.Map(f, mmapMode, 0)
	if err != nil {
		// Fall back to a single sequential heap read — some filesystems
		// (network mounts, certain container overlays) refuse shared
		// mappings even though the file itself is readable.
		heap, rerr := readAllFrom(f)
		if rerr != nil {
			f.Close()
			return nil, &OpenFailedError{Path: path, Err: rerr}
		}
		t.heap = heap
		return t, nil
	}

	t.data = m
	t.mapped = true
	return t, nil
}

func readAllFrom(f *os.File) ([]byte, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return io.ReadAll(f)
}

// Bytes returns the full mapped (or heap-backed) region.
func (t *Table) Bytes() []byte {
	if t.mapped {
		return t.data
	}
	return t.heap
}

// Size returns the length of the mapped region in bytes.
func (t *Table) Size() int { return len(t.Bytes()) }

// Slice returns b[off:off+n], bounds-checked against the mapped region.
// This is the only sanctioned way to hand out a bounded view into the
// mapping — callers never receive a raw pointer past this boundary.
func (t *Table) Slice(off, n int) ([]byte, error) {
	b := t.Bytes()
	if off < 0 || n < 0 || off+n > len(b) {
		return nil, errors.Errorf("mmapfile: slice [%d:%d] out of range (size=%d)", off, off+n, len(b))
	}
	return b[off : off+n], nil
}

// Uint32 reads a little-endian uint32 at byte offset off.
func (t *Table) Uint32(off int) (uint32, error) {
	s, err := t.Slice(off, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(s), nil
}

// Uint16 reads a little-endian uint16 at byte offset off.
func (t *Table) Uint16(off int) (uint16, error) {
	s, err := t.Slice(off, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(s), nil
}

// Int16View returns a bounds-checked []int16 view over count elements
// starting at byte offset off, without copying.
func (t *Table) Int16View(off, count int) ([]int16, error) {
	s, err := t.Slice(off, count*2)
	if err != nil {
		return nil, err
	}
	if len(s) == 0 {
		return nil, nil
	}
	return unsafe.Slice((*int16)(unsafe.Pointer(&s[0])), count), nil
}

// TypedView returns a bounds-checked []T view over count elements of a
// fixed-size record type starting at byte offset off, without copying.
// T must have no pointers and a layout matching the on-disk record
// (callers are limited to the small set of record structs defined in
// this module — see darts.Unit and dict.TokenEntry).
func TypedView[T any](t *Table, off, count int) ([]T, error) {
	var zero T
	size := int(unsafe.Sizeof(zero))
	s, err := t.Slice(off, count*size)
	if err != nil {
		return nil, err
	}
	if len(s) == 0 {
		return nil, nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&s[0])), count), nil
}

// Close releases the mapping. When the table was opened ModeReadWrite,
// dirty pages are flushed back to disk; a ModeRead table never writes
// back, regardless of the platform-level mmap flags used internally.
//
// This intentionally differs from the original Mmap<T>::close(), whose
// `flag.compare("r+b")` guard is inverted and writes back even on
// read-only opens; we only rematerialise a write-back for an explicit
// ModeReadWrite open.
func (t *Table) Close() error {
	var err error
	if t.mapped {
		if t.mode == ModeReadWrite {
			if ferr := t.data.Flush(); ferr != nil {
				err = ferr
			}
		}
		if uerr := t.data.Unmap(); uerr != nil && err == nil {
			err = uerr
		}
	}
	if t.file != nil {
		if cerr := t.file.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	t.heap = nil
	return err
}
