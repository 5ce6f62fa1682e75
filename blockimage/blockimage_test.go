package blockimage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsZeroFilledAndFullCapacity(t *testing.T) {
	img := New()
	assert.Len(t, img.Bytes(), Capacity)
	assert.Equal(t, make([]byte, Capacity), img.Bytes())
}

func TestOpenRejectsWrongSize(t *testing.T) {
	_, err := Open(make([]byte, 100))
	assert.Error(t, err)
}

func TestWriteSectorsThenReadSectors(t *testing.T) {
	img := New()
	data := make([]byte, SectorSize*2)
	for i := range data {
		data[i] = byte(i)
	}
	require.NoError(t, img.WriteSectors(5, data))

	read, err := img.ReadSectors(5, 2)
	require.NoError(t, err)
	assert.Equal(t, data, read)
}

func TestWriteSectorsRejectsNonMultiple(t *testing.T) {
	img := New()
	err := img.WriteSectors(0, make([]byte, 10))
	assert.Error(t, err)
}

func TestSectorRangeOutOfBounds(t *testing.T) {
	img := New()
	_, err := img.ReadSectors(TotalSectors-1, 2)
	assert.Error(t, err)
}

func TestSubSectorReadWrite(t *testing.T) {
	img := New()
	require.NoError(t, img.Write(100, []byte{1, 2, 3}))
	read, err := img.Read(100, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, read)
}

func TestOpenSharesBackingSlice(t *testing.T) {
	raw := make([]byte, Capacity)
	img, err := Open(raw)
	require.NoError(t, err)
	require.NoError(t, img.Write(0, []byte{0xAB}))
	assert.Equal(t, byte(0xAB), raw[0])
}
