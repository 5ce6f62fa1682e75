package volume

import (
	"github.com/hisahi/fat12/dirent"
	ferrors "github.com/hisahi/fat12/errors"
)

// region is the directory-entry iteration abstraction of 4.3: a linear
// sequence of 32-byte slots, whether backed by the fixed root-directory
// sector range or a subdirectory's cluster chain.
type region struct {
	v       *Volume
	isRoot  bool
	cluster uint32   // subdirectory's own cluster (unused for root)
	chain   []uint32 // subdirectory's cluster chain (unused for root)
}

func (v *Volume) entriesPerCluster() int {
	return int(v.geom.BytesPerSector) / dirent.Size
}

// openRegion resolves a directory cluster reference (RootCluster or a real
// data cluster) into a region ready for iteration/allocation.
func (v *Volume) openRegion(dirCluster uint32) (*region, error) {
	if dirCluster == RootCluster {
		return &region{v: v, isRoot: true}, nil
	}

	chain, err := v.fat.Chain(dirCluster)
	if err != nil {
		return nil, err
	}
	return &region{v: v, isRoot: false, cluster: dirCluster, chain: chain}, nil
}

func (r *region) totalSlots() int {
	if r.isRoot {
		return int(r.v.geom.RootEntries)
	}
	return len(r.chain) * r.v.entriesPerCluster()
}

// slotOffset returns the absolute byte offset of slot k in the image.
func (r *region) slotOffset(k int) int64 {
	epc := r.v.entriesPerCluster()
	if r.isRoot {
		sector := r.v.geom.RootDirSector + uint32(k/epc)
		within := (k % epc) * dirent.Size
		return int64(sector)*int64(r.v.geom.BytesPerSector) + int64(within)
	}

	cluster := r.chain[k/epc]
	within := (k % epc) * dirent.Size
	sector := r.v.geom.ClusterToSector(cluster)
	return int64(sector)*int64(r.v.geom.BytesPerSector) + int64(within)
}

func (r *region) readSlot(k int) ([]byte, error) {
	return r.v.img.Read(r.slotOffset(k), dirent.Size)
}

func (r *region) writeSlot(k int, raw []byte) error {
	return r.v.img.Write(r.slotOffset(k), raw)
}

// dirLocation names one decoded directory entry's position, everything a
// caller needs to both re-read and overwrite it in place.
type dirLocation struct {
	DirCluster    uint32 // the directory this entry lives in (RootCluster or a cluster)
	OwningCluster uint32 // the specific cluster holding the slot (0 for root)
	Slot          int    // slot index within the region
	Entry         *dirent.Entry
}

// listEntries returns every live (non-free, non-sentinel) entry in the
// directory at dirCluster, in on-disk order, including `.`/`..`.
func (v *Volume) listEntries(dirCluster uint32) ([]dirLocation, error) {
	r, err := v.openRegion(dirCluster)
	if err != nil {
		return nil, err
	}

	var out []dirLocation
	total := r.totalSlots()
	for k := 0; k < total; k++ {
		raw, err := r.readSlot(k)
		if err != nil {
			return nil, err
		}
		switch dirent.PeekStatus(raw) {
		case dirent.StatusEndOfDirectory:
			return out, nil
		case dirent.StatusFree:
			continue
		}

		e, err := dirent.Decode(raw)
		if err != nil {
			return nil, err
		}
		owning := uint32(0)
		if !r.isRoot {
			owning = r.chain[k/r.v.entriesPerCluster()]
		}
		out = append(out, dirLocation{DirCluster: dirCluster, OwningCluster: owning, Slot: k, Entry: e})
	}
	return out, nil
}

// findEntry looks up a single child by its canonical 11-byte short name.
func (v *Volume) findEntry(dirCluster uint32, shortName [11]byte) (*dirLocation, error) {
	entries, err := v.listEntries(dirCluster)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if dirent.NamesEqual(entries[i].Entry.ShortName, shortName) {
			return &entries[i], nil
		}
	}
	return nil, ferrors.ErrNotFound
}

// allocSlot finds or creates a free 32-byte slot in the directory at
// dirCluster, per 4.3 alloc_entry.
func (v *Volume) allocSlot(dirCluster uint32) (*region, int, error) {
	r, err := v.openRegion(dirCluster)
	if err != nil {
		return nil, 0, err
	}

	total := r.totalSlots()
	for k := 0; k < total; k++ {
		raw, err := r.readSlot(k)
		if err != nil {
			return nil, 0, err
		}
		status := dirent.PeekStatus(raw)
		if status == dirent.StatusFree || status == dirent.StatusEndOfDirectory {
			return r, k, nil
		}
	}

	if r.isRoot {
		return nil, 0, ferrors.ErrRootFull
	}

	newCluster, err := v.fat.AllocCluster(r.chain[len(r.chain)-1], true)
	if err != nil {
		return nil, 0, err
	}
	zeroed := make([]byte, v.geom.BytesPerSector)
	if err := v.img.WriteSectors(uint(v.geom.ClusterToSector(newCluster)), zeroed); err != nil {
		return nil, 0, err
	}

	r.chain = append(r.chain, newCluster)
	return r, total, nil
}

// writeEntryAt writes e into the directory at dirCluster, slot k.
func (v *Volume) writeEntryAt(dirCluster uint32, slot int, e *dirent.Entry) (dirLocation, error) {
	if len(e.ShortName) != 11 {
		return dirLocation{}, ferrors.ErrInvalidArgument
	}
	r, err := v.openRegion(dirCluster)
	if err != nil {
		return dirLocation{}, err
	}
	raw := e.Encode()
	if err := r.writeSlot(slot, raw[:]); err != nil {
		return dirLocation{}, err
	}
	owning := uint32(0)
	if !r.isRoot {
		owning = r.chain[slot/v.entriesPerCluster()]
	}
	return dirLocation{DirCluster: dirCluster, OwningCluster: owning, Slot: slot, Entry: e}, nil
}

// removeEntry marks the slot at loc as free (0xE5), then, for a
// subdirectory, compacts a now-empty non-head tail cluster out of the
// chain (4.3 remove_entry).
func (v *Volume) removeEntry(loc dirLocation) error {
	r, err := v.openRegion(loc.DirCluster)
	if err != nil {
		return err
	}

	raw, err := r.readSlot(loc.Slot)
	if err != nil {
		return err
	}
	dirent.EncodeFree(raw)
	if err := r.writeSlot(loc.Slot, raw); err != nil {
		return err
	}

	if r.isRoot {
		return nil
	}
	return v.compactSubdirTail(r, loc.OwningCluster)
}

// compactSubdirTail unlinks owningCluster from the subdirectory chain if
// every slot in it is now free/sentinel and it is not the chain's first
// cluster.
func (v *Volume) compactSubdirTail(r *region, owningCluster uint32) error {
	if len(r.chain) == 0 || r.chain[0] == owningCluster {
		return nil
	}

	clusterIdx := -1
	for i, c := range r.chain {
		if c == owningCluster {
			clusterIdx = i
			break
		}
	}
	if clusterIdx < 0 {
		return nil
	}

	epc := v.entriesPerCluster()
	empty := true
	for within := 0; within < epc; within++ {
		raw, err := r.readSlot(clusterIdx*epc + within)
		if err != nil {
			return err
		}
		if dirent.PeekStatus(raw) == dirent.StatusEntry {
			empty = false
			break
		}
	}
	if !empty {
		return nil
	}

	predecessor := r.chain[clusterIdx-1]
	successor, err := v.fat.Get(owningCluster)
	if err != nil {
		return err
	}

	if err := v.fat.SetNext(predecessor, successor); err != nil {
		return err
	}
	return v.fat.FreeSingle(owningCluster)
}
