// Package fattable implements the packed 12-bit File Allocation Table: the
// pack/unpack codec between its on-disk byte form and an in-memory ordered
// sequence of 12-bit values, plus the cluster allocation and chain
// manipulation primitives built on top of it. The allocator uses a
// bitmap-backed first-fit scan over free clusters.
package fattable

import (
	"fmt"

	"github.com/boljen/go-bitmap"

	ferrors "github.com/hisahi/fat12/errors"
)

// Reserved FAT entry values (spec 3, "FAT").
const (
	entryFree         = 0x000
	entryReservedLow  = 0xFF0
	entryReservedHigh = 0xFF6
	entryBad          = 0xFF7
	entryEOCLow       = 0xFF8
	entryEOCHigh      = 0xFFF
	entryMediaID      = 0xFF0
	entryMediaIDHigh  = 0xFFF
)

// Table is the in-memory representation of one FAT copy: a dense slice of
// 12-bit values indexed by cluster number. Entries 0 and 1 are the media-ID
// and end-of-chain reserved slots, per I2.
type Table struct {
	entries   []uint16
	free      *bitmap.Bitmap
	freeCount int
}

// New builds an empty table sized for totalClusters data clusters (indices
// 2..totalClusters+1), with the two reserved entries preset.
func New(mediaDescriptor uint8, totalClusters int) *Table {
	size := totalClusters + 2
	t := &Table{entries: make([]uint16, size)}
	t.entries[0] = 0xF00 | uint16(mediaDescriptor)
	t.entries[1] = entryMediaIDHigh
	bm := bitmap.New(size)
	t.free = &bm
	for i := 2; i < size; i++ {
		t.free.Set(i, true)
	}
	t.freeCount = totalClusters
	return t
}

// Unpack decodes raw FAT bytes (as read from sectors_per_fat sectors
// starting at fat_start_sector) into a Table with `clusterCount` data
// clusters. Implements the exact 4.2 bit layout: given bytes b0,b1,b2,
// entry 2k = b0 | ((b1&0x0F)<<8), entry 2k+1 = (b1>>4) | (b2<<4).
func Unpack(raw []byte, clusterCount int) (*Table, error) {
	total := clusterCount + 2
	entries := make([]uint16, total)

	i := 0
	for b := 0; i < total; b += 3 {
		if b+1 >= len(raw) {
			break
		}
		b0, b1 := raw[b], raw[b+1]
		entries[i] = uint16(b0) | (uint16(b1&0x0F) << 8)
		i++
		if i >= total {
			break
		}
		if b+2 >= len(raw) {
			break
		}
		b2 := raw[b+2]
		entries[i] = (uint16(b1) >> 4) | (uint16(b2) << 4)
		i++
	}

	t := &Table{entries: entries}
	size := total
	bm := bitmap.New(size)
	t.free = &bm
	for c := 2; c < total; c++ {
		if entries[c] == entryFree {
			t.free.Set(c, true)
			t.freeCount++
		}
	}
	return t, nil
}

// Pack re-encodes the table to its on-disk byte form. The entry count is
// padded with one zero entry if odd, per 4.2 ("the in-memory sequence is
// padded with one zero if the entry count is odd").
func (t *Table) Pack() []byte {
	n := len(t.entries)
	padded := t.entries
	if n%2 != 0 {
		padded = make([]uint16, n+1)
		copy(padded, t.entries)
	}

	out := make([]byte, 0, len(padded)/2*3)
	for i := 0; i < len(padded); i += 2 {
		e0, e1 := padded[i], padded[i+1]
		out = append(out,
			byte(e0&0xFF),
			byte((e0>>8)&0x0F)|byte((e1&0x0F)<<4),
			byte((e1>>4)&0xFF),
		)
	}
	return out
}

// ClusterCount returns the number of addressable data clusters (excludes
// reserved entries 0 and 1).
func (t *Table) ClusterCount() int {
	return len(t.entries) - 2
}

func (t *Table) checkIndex(c uint32) error {
	if int(c) >= len(t.entries) {
		return ferrors.ErrInvalidArgument.WithMessage(fmt.Sprintf("cluster %d out of range", c))
	}
	return nil
}

// Get returns the raw 12-bit FAT entry at cluster c.
func (t *Table) Get(c uint32) (uint16, error) {
	if err := t.checkIndex(c); err != nil {
		return 0, err
	}
	return t.entries[c], nil
}

func (t *Table) set(c uint32, v uint16) {
	wasFree := t.entries[c] == entryFree
	isFree := v == entryFree
	t.entries[c] = v
	if c >= 2 {
		if wasFree && !isFree {
			t.free.Set(int(c), false)
			t.freeCount--
		} else if !wasFree && isFree {
			t.free.Set(int(c), true)
			t.freeCount++
		}
	}
}

// IsValid reports whether c is a valid data cluster reference (2 <= c <
// 0xFF0), per 4.2 `is_valid`.
func IsValid(c uint16) bool {
	return c >= 2 && c < entryReservedLow
}

// IsEnd reports whether c is an end-of-chain marker, per 4.2
// `is_end(c) == c & 0xFF8 == 0xFF8`.
func IsEnd(c uint16) bool {
	return c&0xFF8 == 0xFF8
}

// Next returns the FAT entry following cluster c.
func (t *Table) Next(c uint32) (uint16, error) {
	return t.Get(c)
}

// AllocCluster scans from index 2 upward for the first free entry, marks it
// end-of-chain, and if attachTo names a valid data cluster, rewrites that
// cluster's entry from end-of-chain to point at the new cluster. Returns
// ErrNoSpace if the table is exhausted.
func (t *Table) AllocCluster(attachTo uint32, hasAttachTo bool) (uint32, error) {
	if t.freeCount == 0 {
		return 0, ferrors.ErrNoSpace.WithMessage("no free cluster available")
	}

	idx := -1
	for i := 2; i < len(t.entries); i++ {
		if t.free.Get(i) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0, ferrors.ErrNoSpace.WithMessage("no free cluster available")
	}

	t.set(uint32(idx), entryMediaIDHigh)

	if hasAttachTo && attachTo >= 2 && attachTo < entryReservedLow {
		tail, err := t.Get(attachTo)
		if err != nil {
			return 0, err
		}
		if !IsEnd(tail) {
			return 0, ferrors.ErrInvalidArgument.WithMessage("attachTo cluster is not a chain tail")
		}
		t.set(attachTo, uint16(idx))
	}

	return uint32(idx), nil
}

// FreeChain walks `next` from c while valid, zeroing each entry. Tolerates
// a chain that ends prematurely (an invalid or already-free entry).
func (t *Table) FreeChain(c uint32) error {
	current := c
	for {
		entry, err := t.Get(current)
		if err != nil {
			return err
		}
		if !IsValid(entry) {
			// current itself may still need freeing below; this just means
			// the chain stops here.
			t.set(current, entryFree)
			return nil
		}
		next := uint32(entry)
		t.set(current, entryFree)
		current = next
	}
}

// Chain returns the full list of cluster numbers in the chain starting at
// c, stopping at (but not including) the end-of-chain marker.
func (t *Table) Chain(c uint32) ([]uint32, error) {
	chain := []uint32{}
	current := c
	for {
		entry, err := t.Get(current)
		if err != nil {
			return nil, err
		}
		chain = append(chain, current)
		if IsEnd(entry) {
			return chain, nil
		}
		if !IsValid(entry) {
			return nil, ferrors.ErrInvalidFat.WithMessage(
				fmt.Sprintf("cluster %d followed by invalid entry 0x%03X", current, entry))
		}
		current = uint32(entry)
	}
}

// ExtendChain appends `add` newly-allocated clusters to the chain whose
// current tail is `tail`, returning the new tail.
func (t *Table) ExtendChain(tail uint32, add int) (uint32, error) {
	current := tail
	for i := 0; i < add; i++ {
		next, err := t.AllocCluster(current, true)
		if err != nil {
			return 0, err
		}
		current = next
	}
	return current, nil
}

// TruncateChain keeps the first `keep` clusters of the chain starting at
// `start` (keep >= 1), marks the new tail end-of-chain, and frees the
// surplus suffix.
func (t *Table) TruncateChain(start uint32, keep int) error {
	if keep < 1 {
		return ferrors.ErrInvalidArgument.WithMessage("keep must be at least 1")
	}

	chain, err := t.Chain(start)
	if err != nil {
		return err
	}
	if keep >= len(chain) {
		return nil
	}

	newTail := chain[keep-1]
	firstSurplus := chain[keep]
	t.set(newTail, entryMediaIDHigh)
	return t.FreeChain(firstSurplus)
}

// ReservedOK reports whether the two reserved entries satisfy I2.
func (t *Table) ReservedOK() bool {
	return t.entries[0]&0xFF0 == entryMediaID && t.entries[1] == entryMediaIDHigh
}

// FreeClusterCount returns the number of currently-free data clusters.
func (t *Table) FreeClusterCount() int {
	return t.freeCount
}

// SetNext rewrites the FAT entry at c to v directly, without walking or
// validating a chain. Used when splicing a cluster out of the middle of a
// chain (4.3 remove_entry's tail compaction).
func (t *Table) SetNext(c uint32, v uint16) error {
	if err := t.checkIndex(c); err != nil {
		return err
	}
	t.set(c, v)
	return nil
}

// FreeSingle marks exactly cluster c free, without following its chain.
func (t *Table) FreeSingle(c uint32) error {
	return t.SetNext(c, entryFree)
}
