// Package volume is the orchestration layer: mounting, formatting, path
// resolution, and every mutating operation, flushing FAT+BPB+label state
// back through the Block Image after each call.
package volume

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/noxer/bytewriter"

	"github.com/hisahi/fat12/blockimage"
	"github.com/hisahi/fat12/bpb"
	"github.com/hisahi/fat12/dirent"
	"github.com/hisahi/fat12/disks"
	ferrors "github.com/hisahi/fat12/errors"
	"github.com/hisahi/fat12/fattable"
)

// RootCluster is the synthetic identifier for the root directory (9,
// "Synthetic root cluster"): the root has no real cluster number, so 1
// (which can never be a valid data cluster, since data clusters start at 2)
// stands in for it uniformly wherever a cluster reference is expected.
const RootCluster uint32 = 1

const (
	canonicalFATCount         = 2
	canonicalReservedSectors  = 1
	canonicalSectorsPerFAT    = 9
	canonicalRootEntries      = 224
	canonicalSectorsPerTrack  = 18
	canonicalHeads            = 2
	canonicalMediaDescriptor  = 0xF0
	canonicalBytesPerSector   = 512
	canonicalSectorsPerClust  = 1
)

// MountOptions configures Mount/Format. The zero value is a sane default:
// read-write, logging to slog.Default().
type MountOptions struct {
	ReadOnly bool
	Logger   *slog.Logger
}

// Volume is the mounted, live FAT12 file system. It is not safe for
// concurrent use (5, "Concurrency & Resource Model"): callers must
// serialize their own access.
type Volume struct {
	img      *blockimage.Image
	geom     *bpb.Geometry
	fat      *fattable.Table
	readOnly bool
	log      *slog.Logger

	cwdCluster uint32
	cwdParents []uint32
	cwdPath    string
}

// FileInfo is the public stat() result shape (spec 6): mtime and size are
// nil for directories.
type FileInfo struct {
	Name            string
	Attributes      uint8
	ModTime         *time.Time
	StartingCluster uint32
	Size            *uint32
}

func logger(opts MountOptions) *slog.Logger {
	if opts.Logger != nil {
		return opts.Logger
	}
	return slog.Default()
}

// Mount parses the BPB, reads the FAT, and returns a ready-to-use Volume
// positioned at the root directory.
func Mount(img *blockimage.Image, opts MountOptions) (*Volume, error) {
	geom, err := bpb.Parse(img)
	if err != nil {
		return nil, err
	}

	totalDataSectors := geom.TotalSectors - geom.DataRegion
	totalClusters := int(totalDataSectors / uint32(geom.SectorsPerCluster))

	fatBytesLen := int(geom.SectorsPerFAT) * int(geom.BytesPerSector)
	var primary *fattable.Table
	for copyIdx := 0; copyIdx < int(geom.FATCount); copyIdx++ {
		startSector := geom.FATStartSector + uint32(copyIdx)*uint32(geom.SectorsPerFAT)
		raw, err := img.ReadSectors(uint(startSector), uint(geom.SectorsPerFAT))
		if err != nil {
			return nil, err
		}
		if len(raw) < fatBytesLen {
			return nil, ferrors.ErrInvalidFat.WithMessage("short read of FAT copy")
		}

		table, err := fattable.Unpack(raw, totalClusters)
		if err != nil {
			return nil, err
		}
		if !table.ReservedOK() {
			return nil, ferrors.ErrInvalidFat.WithMessage(
				fmt.Sprintf("FAT copy %d has invalid reserved entries", copyIdx))
		}
		if copyIdx == 0 {
			primary = table
		}
	}

	v := &Volume{
		img:        img,
		geom:       geom,
		fat:        primary,
		readOnly:   opts.ReadOnly,
		log:        logger(opts),
		cwdCluster: RootCluster,
		cwdParents: nil,
		cwdPath:    "/",
	}
	v.log.Debug("mounted FAT12 volume", "totalClusters", totalClusters, "fatCount", geom.FATCount)
	return v, nil
}

// Format writes a fresh 1.44 MB FAT12 volume (4.6) and returns it mounted.
func Format(img *blockimage.Image, label string, opts MountOptions) (*Volume, error) {
	canonicalLabel, err := canonicalLabelBytes(label)
	if err != nil {
		return nil, err
	}

	var serial [4]byte
	if _, err := rand.Read(serial[:]); err != nil {
		return nil, ferrors.ErrIOFailed.WrapError(err)
	}

	geom := &bpb.Geometry{
		JumpCode:          [3]byte{0xEB, 0x3C, 0x90},
		OEMName:           [8]byte{'F', 'A', 'T', '1', '2', 'G', 'O', ' '},
		BytesPerSector:    canonicalBytesPerSector,
		SectorsPerCluster: canonicalSectorsPerClust,
		ReservedSectors:   canonicalReservedSectors,
		FATCount:          canonicalFATCount,
		RootEntries:       canonicalRootEntries,
		TotalSectors:      blockimage.TotalSectors,
		MediaDescriptor:   canonicalMediaDescriptor,
		SectorsPerFAT:     canonicalSectorsPerFAT,
		SectorsPerTrack:   canonicalSectorsPerTrack,
		NumberOfHeads:     canonicalHeads,
		HiddenSectors:     0,
		HasEBPB:           true,
		DriveNumber:       0,
		EBPBFlags:         0,
		Serial:            serial,
		Label:             canonicalLabel,
		FSType:            [8]byte{'F', 'A', 'T', '1', '2', ' ', ' ', ' '},
	}
	geom.FATStartSector = canonicalReservedSectors
	geom.RootDirSector = geom.FATStartSector + canonicalSectorsPerFAT*canonicalFATCount
	geom.RootDirSectors = canonicalRootEntries / 16
	geom.DataRegion = geom.RootDirSector + geom.RootDirSectors

	if err := bpb.Serialize(img, geom); err != nil {
		return nil, err
	}
	if err := writeBootStub(img); err != nil {
		return nil, err
	}

	totalDataSectors := geom.TotalSectors - geom.DataRegion
	totalClusters := int(totalDataSectors / uint32(geom.SectorsPerCluster))
	fat := fattable.New(canonicalMediaDescriptor, totalClusters)

	// Zero the root directory region.
	rootBytes := make([]byte, geom.RootDirSectors*geom.BytesPerSector)
	if err := img.WriteSectors(uint(geom.RootDirSector), rootBytes); err != nil {
		return nil, err
	}

	v := &Volume{
		img:        img,
		geom:       geom,
		fat:        fat,
		readOnly:   opts.ReadOnly,
		log:        logger(opts),
		cwdCluster: RootCluster,
		cwdParents: nil,
		cwdPath:    "/",
	}

	if err := v.writeLabelEntry(canonicalLabel); err != nil {
		return nil, err
	}
	if err := v.commit(); err != nil {
		return nil, err
	}

	v.log.Info("formatted FAT12 volume", "label", strings.TrimRight(string(canonicalLabel[:]), " "), "totalClusters", totalClusters)
	return v, nil
}

// bootCodeRegionSize is the span of the boot sector available for a
// boot-code stub: everything after the EBPB and before the 0x55AA
// signature at offset 0x1FE.
const bootCodeRegionSize = 0x1FE - 62

// writeBootStub fills the boot-code region with a minimal, non-executable
// message.
func writeBootStub(img *blockimage.Image) error {
	buf := make([]byte, bootCodeRegionSize)
	bw := bytewriter.New(buf)
	_, _ = bw.Write([]byte("This disk is not bootable.\r\n"))
	return bpb.WriteBootCode(img, buf)
}

func (v *Volume) commit() error {
	if v.readOnly {
		return nil
	}

	packed := v.fat.Pack()
	for copyIdx := uint32(0); copyIdx < uint32(v.geom.FATCount); copyIdx++ {
		startSector := v.geom.FATStartSector + copyIdx*uint32(v.geom.SectorsPerFAT)
		padded := make([]byte, uint32(v.geom.SectorsPerFAT)*uint32(v.geom.BytesPerSector))
		copy(padded, packed)
		if err := v.img.WriteSectors(uint(startSector), padded); err != nil {
			return err
		}
	}

	return bpb.Serialize(v.img, v.geom)
}

func canonicalLabelBytes(label string) ([11]byte, error) {
	var out [11]byte
	for i := range out {
		out[i] = ' '
	}
	if len(label) > 11 {
		return out, ferrors.ErrInvalidArgument.WithMessage("label must be at most 11 characters")
	}
	for i := 0; i < len(label); i++ {
		c := label[i]
		if c < 0x20 || c > 0x7E {
			return out, ferrors.ErrInvalidArgument.WithMessage("label must be ASCII/CP437 printable")
		}
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return out, nil
}

// MediaName reports the best-effort human-readable name of the media this
// volume is formatted for, looked up by track layout in the disks
// registry. Returns "unknown" if the geometry doesn't match any cataloged
// floppy format.
func (v *Volume) MediaName() string {
	if v.geom.SectorsPerTrack == 0 || v.geom.NumberOfHeads == 0 {
		return "unknown"
	}
	totalTracks := v.geom.TotalSectors / (uint32(v.geom.SectorsPerTrack) * uint32(v.geom.NumberOfHeads))
	if g, ok := disks.IdentifyBySectorsAndHeads(
		uint(v.geom.SectorsPerTrack), uint(v.geom.NumberOfHeads), uint(totalTracks)); ok {
		return g.Name
	}
	return "unknown"
}

func (v *Volume) writeLabelEntry(label [11]byte) error {
	e := dirent.Entry{
		ShortName:  label,
		Attr:       dirent.AttrVolumeLabel,
		PackedTime: dirent.EncodeDateTime(time.Now()),
		Cluster:    0,
		Size32:     0,
	}
	raw := e.Encode()
	offset := int64(v.geom.RootDirSector) * int64(v.geom.BytesPerSector)
	return v.img.Write(offset, raw[:])
}
