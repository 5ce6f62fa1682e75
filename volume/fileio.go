package volume

import (
	"time"

	"github.com/hisahi/fat12/dirent"
	ferrors "github.com/hisahi/fat12/errors"
)

func (v *Volume) clusterSize() int {
	return int(v.geom.BytesPerSector) * int(v.geom.SectorsPerCluster)
}

func isDotfileName(name string) bool {
	return name == "." || name == ".."
}

// ReadFile implements 4.5 read_file(path).
func (v *Volume) ReadFile(path string) ([]byte, error) {
	loc, err := v.resolvePath(path)
	if err != nil {
		return nil, err
	}
	if loc.Entry.IsDirectory() {
		return nil, ferrors.ErrIsADirectory
	}

	if loc.Entry.Cluster == 0 {
		if loc.Entry.Size32 != 0 {
			return nil, ferrors.ErrInvalidFat.WithMessage("zero-cluster entry has nonzero size")
		}
		return []byte{}, nil
	}

	chain, err := v.fat.Chain(uint32(loc.Entry.Cluster))
	if err != nil {
		return nil, err
	}

	clusterSize := v.clusterSize()
	out := make([]byte, 0, loc.Entry.Size32)
	remaining := int64(loc.Entry.Size32)
	for _, cluster := range chain {
		sector := v.geom.ClusterToSector(cluster)
		raw, err := v.img.ReadSectors(uint(sector), uint(v.geom.SectorsPerCluster))
		if err != nil {
			return nil, err
		}
		if remaining < int64(clusterSize) {
			out = append(out, raw[:remaining]...)
			remaining = 0
			break
		}
		out = append(out, raw...)
		remaining -= int64(clusterSize)
	}
	return out, nil
}

// WriteFile implements 4.5 write_file(path, bytes, ignore_readonly). The
// path must already exist; use CreateFile first.
func (v *Volume) WriteFile(path string, data []byte, ignoreReadonly bool) error {
	loc, err := v.resolvePath(path)
	if err != nil {
		return err
	}
	if loc.Entry.IsDirectory() {
		return ferrors.ErrIsADirectory
	}
	if loc.Entry.IsReadOnly() && !ignoreReadonly {
		return ferrors.ErrReadOnly
	}
	return v.writeFileData(loc, data)
}

// writeFileData rewrites the cluster chain and size/time fields of an
// already-resolved entry. Shared by WriteFile and Copy, which resolves its
// destination entry directly by directory cluster rather than by path.
func (v *Volume) writeFileData(loc dirLocation, data []byte) error {
	clusterSize := v.clusterSize()
	newClusters := ceilDiv(len(data), clusterSize)
	oldClusters := ceilDiv(int(loc.Entry.Size32), clusterSize)

	startCluster := uint32(loc.Entry.Cluster)
	if startCluster == 0 && newClusters > 0 {
		first, err := v.fat.AllocCluster(0, false)
		if err != nil {
			return err
		}
		startCluster = first
		oldClusters = 1
	}

	if newClusters == 0 {
		if startCluster != 0 {
			if err := v.fat.FreeChain(startCluster); err != nil {
				return err
			}
		}
		startCluster = 0
	} else {
		chain, err := v.fat.Chain(startCluster)
		if err != nil {
			return err
		}
		tail := chain[len(chain)-1]

		if newClusters > len(chain) {
			newTail, err := v.fat.ExtendChain(tail, newClusters-len(chain))
			if err != nil {
				return err
			}
			tail = newTail
			chain = append(chain, tail)
		}

		writeChain, err := v.fat.Chain(startCluster)
		if err != nil {
			return err
		}

		offset := 0
		for _, cluster := range writeChain[:newClusters] {
			block := make([]byte, clusterSize)
			copy(block, data[offset:])
			if err := v.img.WriteSectors(uint(v.geom.ClusterToSector(cluster)), block); err != nil {
				return err
			}
			offset += clusterSize
		}

		if newClusters < oldClusters {
			if err := v.fat.TruncateChain(startCluster, newClusters); err != nil {
				return err
			}
		}
	}

	loc.Entry.Cluster = uint16(startCluster)
	loc.Entry.Size32 = uint32(len(data))
	loc.Entry.PackedTime = dirent.EncodeDateTime(time.Now())

	if _, err := v.writeEntryAt(loc.DirCluster, loc.Slot, loc.Entry); err != nil {
		return err
	}
	return v.commit()
}

func ceilDiv(a, b int) int {
	if a == 0 {
		return 0
	}
	return (a + b - 1) / b
}

// CreateFile implements 4.5 create_file(path).
func (v *Volume) CreateFile(path string) error {
	parent, name, err := v.resolveParent(path)
	if err != nil {
		return err
	}
	if isDotfileName(name) {
		return ferrors.ErrInvalidName
	}

	shortName, err := dirent.ToShortName(name)
	if err != nil {
		return err
	}
	if _, err := v.findEntry(parent.cluster, shortName); err == nil {
		return ferrors.ErrAlreadyExists
	}

	r, slot, err := v.allocSlot(parent.cluster)
	if err != nil {
		return err
	}

	e := &dirent.Entry{
		ShortName:  shortName,
		Attr:       dirent.AttrArchive,
		PackedTime: dirent.EncodeDateTime(time.Now()),
		Cluster:    0,
		Size32:     0,
	}
	raw := e.Encode()
	if err := r.writeSlot(slot, raw[:]); err != nil {
		return err
	}
	return v.commit()
}

// DeleteFile implements 4.5 delete_file(path, ignore_readonly).
func (v *Volume) DeleteFile(path string, ignoreReadonly bool) error {
	components, _ := splitPath(path)
	if len(components) == 0 {
		return ferrors.ErrInvalidArgument
	}
	name := components[len(components)-1]
	if isDotfileName(name) {
		return ferrors.ErrInvalidName
	}

	loc, err := v.resolvePath(path)
	if err != nil {
		return err
	}
	if loc.Entry.IsDirectory() {
		return ferrors.ErrIsADirectory
	}
	if loc.Entry.IsReadOnly() && !ignoreReadonly {
		return ferrors.ErrReadOnly
	}

	if loc.Entry.Cluster != 0 {
		if err := v.fat.FreeChain(uint32(loc.Entry.Cluster)); err != nil {
			return err
		}
	}
	if err := v.removeEntry(loc); err != nil {
		return err
	}
	return v.commit()
}
