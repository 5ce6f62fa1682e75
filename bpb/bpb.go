// Package bpb parses and serializes the BIOS Parameter Block (and optional
// Extended BPB) that occupies sector 0 of a FAT12 volume.
package bpb

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/hisahi/fat12/blockimage"
	ferrors "github.com/hisahi/fat12/errors"
)

// BootSignature marks the presence of a valid Extended BPB.
const BootSignature = 0x29

// SectorSignature is the mandatory 0x55AA marker at offset 0x1FE.
const SectorSignature = 0xAA55

const ebpbSignatureOffset = 0x26
const sectorSignatureOffset = 0x1FE

// rawBPB is the byte-for-byte layout of the fixed 12-field BPB, starting
// immediately after the 11-byte jump instruction + OEM name.
type rawBPB struct {
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ReservedSectors   uint16
	NumFATs           uint8
	RootEntryCount    uint16
	TotalSectors16    uint16
	MediaDescriptor   uint8
	SectorsPerFAT     uint16
	SectorsPerTrack   uint16
	NumHeads          uint16
	HiddenSectors     uint32
	TotalSectors32    uint32
}

// rawEBPB is the FAT12/16-style Extended BPB tail.
type rawEBPB struct {
	DriveNumber     uint8
	Reserved1       uint8
	BootSignature   uint8
	VolumeSerial    uint32
	VolumeLabel     [11]byte
	FileSystemType  [8]byte
}

// Geometry holds the decoded BPB/EBPB fields plus the layout constants
// derived from them. Immutable after Parse/Mount, except Label, which
// Volume.SetLabel rewrites.
type Geometry struct {
	JumpCode          [3]byte
	OEMName           [8]byte
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ReservedSectors   uint16
	FATCount          uint8
	RootEntries       uint16
	TotalSectors      uint32
	MediaDescriptor   uint8
	SectorsPerFAT     uint16
	SectorsPerTrack   uint16
	NumberOfHeads     uint16
	HiddenSectors     uint32

	HasEBPB        bool
	DriveNumber    uint8
	EBPBFlags      uint8
	Serial         [4]byte
	Label          [11]byte
	FSType         [8]byte

	// Derived layout, computed once at Parse time (spec 3, "Derived layout").
	FATStartSector uint32
	RootDirSector  uint32
	RootDirSectors uint32
	DataRegion     uint32
}

// ClusterToSector maps a data cluster to its first sector. Clusters are
// numbered from 2, so cluster c maps to DataRegion + (c-2)*SectorsPerCluster.
func (g *Geometry) ClusterToSector(cluster uint32) uint32 {
	return g.DataRegion + (cluster-2)*uint32(g.SectorsPerCluster)
}

// Parse reads and validates sector 0 of the image, returning the decoded
// Geometry. Returns ErrUnsupportedGeometry for a geometry this driver
// cannot operate on, ErrInvalidBpb for an internally inconsistent BPB.
func Parse(img *blockimage.Image) (*Geometry, error) {
	sector, err := img.ReadSectors(0, 1)
	if err != nil {
		return nil, err
	}

	var jmp [3]byte
	var oem [8]byte
	copy(jmp[:], sector[0:3])
	copy(oem[:], sector[3:11])

	var raw rawBPB
	if err := binary.Read(bytes.NewReader(sector[11:36]), binary.LittleEndian, &raw); err != nil {
		return nil, ferrors.ErrInvalidBpb.WrapError(err)
	}

	var ebpb rawEBPB
	hasEBPB := sector[ebpbSignatureOffset] == BootSignature
	if hasEBPB {
		if err := binary.Read(bytes.NewReader(sector[36:62]), binary.LittleEndian, &ebpb); err != nil {
			return nil, ferrors.ErrInvalidBpb.WrapError(err)
		}
	}

	sig := binary.LittleEndian.Uint16(sector[sectorSignatureOffset:])
	if sig != SectorSignature {
		return nil, ferrors.ErrInvalidBpb.WithMessage(
			fmt.Sprintf("bad boot sector signature 0x%04X, want 0x%04X", sig, SectorSignature))
	}

	var verr *multierror.Error
	if raw.BytesPerSector != 512 {
		verr = multierror.Append(verr, fmt.Errorf("bytes_per_sector must be 512, got %d", raw.BytesPerSector))
	}
	if raw.SectorsPerCluster != 1 {
		verr = multierror.Append(verr, fmt.Errorf("sectors_per_cluster must be 1, got %d", raw.SectorsPerCluster))
	}
	if raw.MediaDescriptor != 0xF0 {
		verr = multierror.Append(verr, fmt.Errorf("media_descriptor must be 0xF0, got 0x%02X", raw.MediaDescriptor))
	}
	if raw.RootEntryCount == 0 || raw.RootEntryCount%16 != 0 {
		verr = multierror.Append(verr, fmt.Errorf("root_entries must be a positive multiple of 16, got %d", raw.RootEntryCount))
	}
	if verr != nil && verr.Len() > 0 {
		return nil, ferrors.ErrUnsupportedGeometry.WithMessage(verr.Error())
	}

	var structErr *multierror.Error
	if raw.NumFATs != 1 && raw.NumFATs != 2 {
		structErr = multierror.Append(structErr, fmt.Errorf("fat_count must be 1 or 2, got %d", raw.NumFATs))
	}
	if hasEBPB {
		fsType := string(bytes.TrimRight(ebpb.FileSystemType[:], " "))
		if fsType != "FAT" && fsType != "FAT12" {
			structErr = multierror.Append(structErr, fmt.Errorf("fs_type must be \"FAT     \" or \"FAT12   \", got %q", fsType))
		}
	}
	if structErr != nil && structErr.Len() > 0 {
		return nil, ferrors.ErrInvalidBpb.WithMessage(structErr.Error())
	}

	totalSectors := uint32(raw.TotalSectors16)
	if totalSectors == 0 {
		totalSectors = raw.TotalSectors32
	}

	g := &Geometry{
		JumpCode:          jmp,
		OEMName:           oem,
		BytesPerSector:    raw.BytesPerSector,
		SectorsPerCluster: raw.SectorsPerCluster,
		ReservedSectors:   raw.ReservedSectors,
		FATCount:          raw.NumFATs,
		RootEntries:       raw.RootEntryCount,
		TotalSectors:      totalSectors,
		MediaDescriptor:   raw.MediaDescriptor,
		SectorsPerFAT:     raw.SectorsPerFAT,
		SectorsPerTrack:   raw.SectorsPerTrack,
		NumberOfHeads:     raw.NumHeads,
		HiddenSectors:     raw.HiddenSectors,
		HasEBPB:           hasEBPB,
	}

	if hasEBPB {
		g.DriveNumber = ebpb.DriveNumber
		g.EBPBFlags = ebpb.Reserved1
		binary.LittleEndian.PutUint32(g.Serial[:], ebpb.VolumeSerial)
		g.Label = ebpb.VolumeLabel
		g.FSType = ebpb.FileSystemType
	}

	g.FATStartSector = uint32(raw.ReservedSectors)
	g.RootDirSector = g.FATStartSector + uint32(raw.SectorsPerFAT)*uint32(raw.NumFATs)
	g.RootDirSectors = uint32(raw.RootEntryCount) / 16
	g.DataRegion = g.RootDirSector + g.RootDirSectors

	return g, nil
}

// WriteBootCode copies a boot-code stub into the boot sector, leaving the
// BPB/EBPB ranges and the 0x55AA signature untouched -- serialization only
// ever rewrites the BPB/EBPB byte ranges, per 4.1.
func WriteBootCode(img *blockimage.Image, code []byte) error {
	if len(code) > sectorSignatureOffset-62 {
		return ferrors.ErrInvalidArgument.WithMessage("boot code stub too large for the reserved region")
	}
	return img.Write(62, code)
}

// Serialize writes g back to sector 0 of img, preserving the boot-code area
// (bytes [62, 0x1FE)) already present on the image -- it rewrites only the
// jump code and OEM name, the BPB/EBPB ranges and the trailing signature.
func Serialize(img *blockimage.Image, g *Geometry) error {
	sector, err := img.ReadSectors(0, 1)
	if err != nil {
		return err
	}

	copy(sector[0:3], g.JumpCode[:])
	copy(sector[3:11], g.OEMName[:])

	raw := rawBPB{
		BytesPerSector:    g.BytesPerSector,
		SectorsPerCluster: g.SectorsPerCluster,
		ReservedSectors:   g.ReservedSectors,
		NumFATs:           g.FATCount,
		RootEntryCount:    g.RootEntries,
		MediaDescriptor:   g.MediaDescriptor,
		SectorsPerFAT:     g.SectorsPerFAT,
		SectorsPerTrack:   g.SectorsPerTrack,
		NumHeads:          g.NumberOfHeads,
		HiddenSectors:     g.HiddenSectors,
	}
	if g.TotalSectors <= 0xFFFF {
		raw.TotalSectors16 = uint16(g.TotalSectors)
	} else {
		raw.TotalSectors32 = g.TotalSectors
	}

	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, &raw); err != nil {
		return ferrors.ErrInvalidBpb.WrapError(err)
	}
	copy(sector[11:36], buf.Bytes())

	if g.HasEBPB {
		ebpb := rawEBPB{
			DriveNumber:    g.DriveNumber,
			Reserved1:      g.EBPBFlags,
			BootSignature:  BootSignature,
			VolumeSerial:   binary.LittleEndian.Uint32(g.Serial[:]),
			VolumeLabel:    g.Label,
			FileSystemType: g.FSType,
		}
		ebpbBuf := new(bytes.Buffer)
		if err := binary.Write(ebpbBuf, binary.LittleEndian, &ebpb); err != nil {
			return ferrors.ErrInvalidBpb.WrapError(err)
		}
		copy(sector[36:62], ebpbBuf.Bytes())
	}

	binary.LittleEndian.PutUint16(sector[sectorSignatureOffset:], SectorSignature)
	return img.WriteSectors(0, sector)
}
