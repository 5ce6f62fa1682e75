package fattable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/hisahi/fat12/errors"
)

func TestNewReservedEntries(t *testing.T) {
	table := New(0xF0, 10)
	assert.True(t, table.ReservedOK())
	assert.Equal(t, 10, table.FreeClusterCount())
}

func TestPackUnpackRoundTrip(t *testing.T) {
	table := New(0xF0, 10)
	first, err := table.AllocCluster(0, false)
	require.NoError(t, err)
	second, err := table.AllocCluster(first, true)
	require.NoError(t, err)

	packed := table.Pack()
	restored, err := Unpack(packed, 10)
	require.NoError(t, err)

	entry, err := restored.Get(first)
	require.NoError(t, err)
	assert.Equal(t, uint16(second), entry)

	tail, err := restored.Get(second)
	require.NoError(t, err)
	assert.True(t, IsEnd(tail))
}

func TestAllocClusterExhaustion(t *testing.T) {
	table := New(0xF0, 2)
	_, err := table.AllocCluster(0, false)
	require.NoError(t, err)
	_, err = table.AllocCluster(0, false)
	require.NoError(t, err)

	_, err = table.AllocCluster(0, false)
	assert.ErrorIs(t, err, ferrors.ErrNoSpace)
}

func TestChainAndFreeChain(t *testing.T) {
	table := New(0xF0, 5)
	c1, err := table.AllocCluster(0, false)
	require.NoError(t, err)
	c2, err := table.AllocCluster(c1, true)
	require.NoError(t, err)
	c3, err := table.AllocCluster(c2, true)
	require.NoError(t, err)

	chain, err := table.Chain(c1)
	require.NoError(t, err)
	assert.Equal(t, []uint32{c1, c2, c3}, chain)

	require.NoError(t, table.FreeChain(c1))
	assert.Equal(t, 5, table.FreeClusterCount())
}

func TestTruncateChain(t *testing.T) {
	table := New(0xF0, 5)
	c1, _ := table.AllocCluster(0, false)
	c2, _ := table.AllocCluster(c1, true)
	_, _ = table.AllocCluster(c2, true)

	require.NoError(t, table.TruncateChain(c1, 2))
	chain, err := table.Chain(c1)
	require.NoError(t, err)
	assert.Equal(t, []uint32{c1, c2}, chain)
	assert.Equal(t, 3, table.FreeClusterCount())
}

func TestExtendChain(t *testing.T) {
	table := New(0xF0, 5)
	c1, _ := table.AllocCluster(0, false)

	newTail, err := table.ExtendChain(c1, 2)
	require.NoError(t, err)
	chain, err := table.Chain(c1)
	require.NoError(t, err)
	assert.Len(t, chain, 3)
	assert.Equal(t, newTail, chain[len(chain)-1])
}

func TestIsValidAndIsEnd(t *testing.T) {
	assert.True(t, IsValid(2))
	assert.False(t, IsValid(1))
	assert.False(t, IsValid(0xFF0))
	assert.True(t, IsEnd(0xFFF))
	assert.True(t, IsEnd(0xFF8))
	assert.False(t, IsEnd(0xFF7))
}
