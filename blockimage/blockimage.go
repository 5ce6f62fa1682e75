// Package blockimage implements the fixed-capacity, sector-addressed byte
// buffer the FAT12 driver mounts. It is the "Block Image" boundary: a plain
// contiguous array of bytes, with no knowledge of FAT, BPB, or directories
// leaking in either direction.
package blockimage

import (
	"fmt"
	"io"

	"github.com/xaionaro-go/bytesextra"

	ferrors "github.com/hisahi/fat12/errors"
)

// SectorSize is the only sector size this driver supports.
const SectorSize = 512

// Capacity is the fixed size, in bytes, of a 3.5" 1.44 MB floppy image.
const Capacity = 1_474_560

// TotalSectors is Capacity / SectorSize.
const TotalSectors = Capacity / SectorSize

// Image is a fixed-capacity, byte-addressable block device. It never
// resizes: New allocates a buffer of exactly Capacity bytes, and Open
// accepts only a buffer of that size.
type Image struct {
	raw    []byte
	stream io.ReadWriteSeeker
}

// New allocates a fresh, zero-filled image of exactly Capacity bytes.
func New() *Image {
	raw := make([]byte, Capacity)
	return &Image{raw: raw, stream: bytesextra.NewReadWriteSeeker(raw)}
}

// Open wraps an existing byte slice as an Image without copying it; writes
// through the Image mutate the caller's slice in place. It fails if the
// slice isn't exactly Capacity bytes long.
func Open(raw []byte) (*Image, error) {
	if len(raw) != Capacity {
		return nil, ferrors.ErrUnsupportedGeometry.WithMessage(
			fmt.Sprintf("image is %d bytes, need exactly %d", len(raw), Capacity))
	}
	return &Image{raw: raw, stream: bytesextra.NewReadWriteSeeker(raw)}, nil
}

// Bytes returns the backing buffer. Callers must not retain it past the
// Image's lifetime if they intend to keep using the Image concurrently with
// their own access -- this driver has no concurrency story (see Volume).
func (img *Image) Bytes() []byte {
	return img.raw
}

func (img *Image) checkSectorRange(sector, count uint) error {
	if count == 0 {
		return ferrors.ErrInvalidArgument.WithMessage("sector count must be positive")
	}
	if sector >= TotalSectors || sector+count > TotalSectors {
		return ferrors.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("sector range [%d, %d) out of bounds [0, %d)", sector, sector+count, TotalSectors))
	}
	return nil
}

// ReadSectors reads `count` sectors starting at `sector`.
func (img *Image) ReadSectors(sector, count uint) ([]byte, error) {
	if err := img.checkSectorRange(sector, count); err != nil {
		return nil, err
	}

	buf := make([]byte, count*SectorSize)
	_, err := img.stream.Seek(int64(sector)*SectorSize, io.SeekStart)
	if err != nil {
		return nil, ferrors.ErrIOFailed.WrapError(err)
	}
	if _, err := io.ReadFull(img.stream, buf); err != nil {
		return nil, ferrors.ErrIOFailed.WrapError(err)
	}
	return buf, nil
}

// WriteSectors writes `data` starting at `sector`. len(data) must be an
// exact multiple of SectorSize.
func (img *Image) WriteSectors(sector uint, data []byte) error {
	if len(data)%SectorSize != 0 {
		return ferrors.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("data length %d is not a multiple of sector size %d", len(data), SectorSize))
	}
	count := uint(len(data)) / SectorSize
	if err := img.checkSectorRange(sector, count); err != nil {
		return err
	}

	if _, err := img.stream.Seek(int64(sector)*SectorSize, io.SeekStart); err != nil {
		return ferrors.ErrIOFailed.WrapError(err)
	}
	if _, err := img.stream.Write(data); err != nil {
		return ferrors.ErrIOFailed.WrapError(err)
	}
	return nil
}

// Read reads `length` bytes at byte offset `offset`, without regard to
// sector boundaries. Used for sub-sector reads (e.g. a single directory
// entry or BPB field).
func (img *Image) Read(offset int64, length int) ([]byte, error) {
	if offset < 0 || length < 0 || offset+int64(length) > Capacity {
		return nil, ferrors.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("read [%d, %d) out of bounds [0, %d)", offset, offset+int64(length), Capacity))
	}
	buf := make([]byte, length)
	if _, err := img.stream.Seek(offset, io.SeekStart); err != nil {
		return nil, ferrors.ErrIOFailed.WrapError(err)
	}
	if _, err := io.ReadFull(img.stream, buf); err != nil {
		return nil, ferrors.ErrIOFailed.WrapError(err)
	}
	return buf, nil
}

// Write writes `data` at byte offset `offset`, without regard to sector
// boundaries.
func (img *Image) Write(offset int64, data []byte) error {
	if offset < 0 || offset+int64(len(data)) > Capacity {
		return ferrors.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("write [%d, %d) out of bounds [0, %d)", offset, offset+int64(len(data)), Capacity))
	}
	if _, err := img.stream.Seek(offset, io.SeekStart); err != nil {
		return ferrors.ErrIOFailed.WrapError(err)
	}
	if _, err := img.stream.Write(data); err != nil {
		return ferrors.ErrIOFailed.WrapError(err)
	}
	return nil
}
