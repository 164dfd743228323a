// Package firmware provides the measurement application images handed to the
// TMF8821 bootloader.
//
// Raw binaries are memory mapped read-only so the loader streams the image
// straight from the page cache.  Intel HEX files are decoded into memory
// together with their load address.
package firmware

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sys/unix"
)

// DefaultAddress is the RAM load address used for raw binaries
const DefaultAddress uint16 = 0x0000

var (
	// ErrEmptyImage is returned for images without a single data byte
	ErrEmptyImage = errors.New("firmware: empty image")
	// ErrClosed is returned when reading a closed image
	ErrClosed = errors.New("firmware: closed")
)

// Image is a firmware image ready for download.
type Image struct {
	// Address is the RAM address the image is loaded to
	Address uint16

	data   []byte
	mapped bool
}

// FromBytes returns an in-memory image loaded at addr.  data is referenced,
// not copied.
func FromBytes(data []byte, addr uint16) *Image {
	return &Image{Address: addr, data: data}
}

// Open opens the image at path.  Files with a .hex extension are decoded as
// Intel HEX, anything else is mapped as a raw binary loaded at
// DefaultAddress.
func Open(path string) (*Image, error) {

	if strings.EqualFold(filepath.Ext(path), ".hex") {

		f, err := os.Open(path)

		if err != nil {
			return nil, fmt.Errorf("firmware: %w", err)
		}
		defer f.Close()

		img, err := ParseHex(f)

		if err != nil {
			return nil, fmt.Errorf("firmware: %s: %w", path, err)
		}

		return img, nil
	}

	return mmapFile(path)
}

// mmapFile maps path read-only
func mmapFile(path string) (*Image, error) {

	f, err := os.Open(path)

	if err != nil {
		return nil, fmt.Errorf("firmware: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()

	if err != nil {
		return nil, fmt.Errorf("firmware: stat %s: %w", path, err)
	}

	size := fi.Size()

	if size == 0 {
		return nil, fmt.Errorf("firmware: %s: %w", path, ErrEmptyImage)
	}

	if size != int64(int(size)) {
		return nil, fmt.Errorf("firmware: %s: file too large", path)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)

	if err != nil {
		return nil, fmt.Errorf("firmware: mmap %s: %w", path, err)
	}

	img := &Image{Address: DefaultAddress, data: data, mapped: true}
	runtime.SetFinalizer(img, (*Image).Close)

	return img, nil
}

// Bytes returns the image contents.  The slice is only valid until Close.
func (img *Image) Bytes() []byte {
	return img.data
}

// Len returns the image length in bytes
func (img *Image) Len() int {
	return len(img.data)
}

// ReadAt implements io.ReaderAt
func (img *Image) ReadAt(p []byte, off int64) (int, error) {

	if img == nil {
		return 0, os.ErrInvalid
	}

	if img.data == nil {
		return 0, ErrClosed
	}

	if off < 0 || int64(len(img.data)) < off {
		return 0, fmt.Errorf("firmware: invalid ReadAt offset %d", off)
	}

	n := copy(p, img.data[off:])

	if n < len(p) {
		return n, io.EOF
	}

	return n, nil
}

// Close releases the image.  Mapped images are unmapped.
func (img *Image) Close() error {

	if img == nil {
		return os.ErrInvalid
	}

	if img.data == nil {
		return nil
	}

	data := img.data
	img.data = nil

	if !img.mapped {
		return nil
	}

	runtime.SetFinalizer(img, nil)

	return unix.Munmap(data)
}
