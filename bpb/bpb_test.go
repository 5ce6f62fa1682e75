package bpb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hisahi/fat12/blockimage"
)

func canonicalGeometry() *Geometry {
	g := &Geometry{
		OEMName:           [8]byte{'F', 'A', 'T', '1', '2', 'G', 'O', ' '},
		BytesPerSector:    512,
		SectorsPerCluster: 1,
		ReservedSectors:   1,
		FATCount:          2,
		RootEntries:       224,
		TotalSectors:      blockimage.TotalSectors,
		MediaDescriptor:   0xF0,
		SectorsPerFAT:     9,
		SectorsPerTrack:   18,
		NumberOfHeads:     2,
		HasEBPB:           true,
		DriveNumber:       0,
		Serial:            [4]byte{1, 2, 3, 4},
		Label:             [11]byte{'N', 'O', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' '},
		FSType:            [8]byte{'F', 'A', 'T', '1', '2', ' ', ' ', ' '},
	}
	g.FATStartSector = 1
	g.RootDirSector = g.FATStartSector + 9*2
	g.RootDirSectors = 224 / 16
	g.DataRegion = g.RootDirSector + g.RootDirSectors
	return g
}

func TestSerializeParseRoundTrip(t *testing.T) {
	img := blockimage.New()
	g := canonicalGeometry()
	require.NoError(t, Serialize(img, g))

	parsed, err := Parse(img)
	require.NoError(t, err)

	assert.Equal(t, g.BytesPerSector, parsed.BytesPerSector)
	assert.Equal(t, g.SectorsPerCluster, parsed.SectorsPerCluster)
	assert.Equal(t, g.FATCount, parsed.FATCount)
	assert.Equal(t, g.RootEntries, parsed.RootEntries)
	assert.Equal(t, g.MediaDescriptor, parsed.MediaDescriptor)
	assert.Equal(t, g.Label, parsed.Label)
	assert.Equal(t, g.FATStartSector, parsed.FATStartSector)
	assert.Equal(t, g.RootDirSector, parsed.RootDirSector)
	assert.Equal(t, g.DataRegion, parsed.DataRegion)
}

func TestParseRejectsMissingSignature(t *testing.T) {
	img := blockimage.New()
	_, err := Parse(img)
	assert.Error(t, err)
}

func TestParseRejectsBadGeometry(t *testing.T) {
	img := blockimage.New()
	g := canonicalGeometry()
	g.BytesPerSector = 1024
	require.NoError(t, Serialize(img, g))

	_, err := Parse(img)
	assert.Error(t, err)
}

func TestWriteBootCodeTooLarge(t *testing.T) {
	img := blockimage.New()
	err := WriteBootCode(img, make([]byte, 1000))
	assert.Error(t, err)
}

func TestClusterToSector(t *testing.T) {
	g := canonicalGeometry()
	assert.Equal(t, g.DataRegion, g.ClusterToSector(2))
	assert.Equal(t, g.DataRegion+1, g.ClusterToSector(3))
}
