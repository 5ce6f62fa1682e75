package volume

import (
	"time"

	"github.com/hisahi/fat12/dirent"
	ferrors "github.com/hisahi/fat12/errors"
)

// CreateDirectory implements 4.5 create_directory(path, chdir).
func (v *Volume) CreateDirectory(path string, chdirInto bool) error {
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

	newCluster, err := v.fat.AllocCluster(0, false)
	if err != nil {
		return err
	}
	if err := v.zeroCluster(newCluster); err != nil {
		return err
	}
	if err := v.writeDotfiles(newCluster); err != nil {
		return err
	}

	r, slot, err := v.allocSlot(parent.cluster)
	if err != nil {
		return err
	}
	e := &dirent.Entry{
		ShortName:  shortName,
		Attr:       dirent.AttrDirectory,
		PackedTime: dirent.EncodeDateTime(time.Now()),
		Cluster:    uint16(newCluster),
		Size32:     0,
	}
	raw := e.Encode()
	if err := r.writeSlot(slot, raw[:]); err != nil {
		return err
	}
	if err := v.commit(); err != nil {
		return err
	}

	if chdirInto {
		v.cwdCluster = newCluster
		v.cwdParents = append(append([]uint32{}, parent.parents...), parent.cluster)
		v.cwdPath = normalizeCwdPath(path, v.cwdPath)
	}
	return nil
}

func (v *Volume) zeroCluster(cluster uint32) error {
	zeroed := make([]byte, v.clusterSize())
	return v.img.WriteSectors(uint(v.geom.ClusterToSector(cluster)), zeroed)
}

// writeDotfiles writes `.` and `..` at offsets 0 and 32 of a freshly
// allocated subdirectory cluster. Both carry cluster field 0 on disk (I4);
// navigation never trusts them, only the runtime parent chain does.
func (v *Volume) writeDotfiles(cluster uint32) error {
	base := int64(v.geom.ClusterToSector(cluster)) * int64(v.geom.BytesPerSector)

	dot := dotName(".")
	dotdot := dotName("..")

	e1 := dirent.Entry{ShortName: dot, Attr: dirent.AttrDirectory, PackedTime: dirent.EncodeDateTime(time.Now())}
	e2 := dirent.Entry{ShortName: dotdot, Attr: dirent.AttrDirectory, PackedTime: dirent.EncodeDateTime(time.Now())}

	raw1 := e1.Encode()
	raw2 := e2.Encode()
	if err := v.img.Write(base, raw1[:]); err != nil {
		return err
	}
	return v.img.Write(base+dirent.Size, raw2[:])
}

// dotName builds the literal "." or ".." canonical short name, bypassing
// ToShortName's ordinary 8.3 validation (I6's sole exception).
func dotName(n string) [11]byte {
	var out [11]byte
	for i := range out {
		out[i] = ' '
	}
	copy(out[:], n)
	return out
}

// isEmptyDir reports whether dirCluster contains no entries besides `.`
// and `..` (4.5 remove_directory: "a directory is empty iff, ignoring .
// and .., its first non-sentinel entry is 0x00").
func (v *Volume) isEmptyDir(dirCluster uint32) (bool, error) {
	entries, err := v.listEntries(dirCluster)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		name := dirent.PresentationName(e.Entry.ShortName)
		if !isDotfileName(name) {
			return false, nil
		}
	}
	return true, nil
}

// RemoveDirectory implements 4.5 remove_directory(path).
func (v *Volume) RemoveDirectory(path string) error {
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
	loc, err := v.findEntry(parent.cluster, shortName)
	if err != nil {
		return err
	}
	if !loc.Entry.IsDirectory() {
		return ferrors.ErrNotADirectory
	}

	targetCluster := uint32(loc.Entry.Cluster)
	empty, err := v.isEmptyDir(targetCluster)
	if err != nil {
		return err
	}
	if !empty {
		return ferrors.ErrNotEmpty
	}

	if v.cwdCluster == targetCluster {
		v.cwdCluster = RootCluster
		v.cwdParents = nil
		v.cwdPath = "/"
	}

	if err := v.fat.FreeChain(targetCluster); err != nil {
		return err
	}
	if err := v.removeEntry(*loc); err != nil {
		return err
	}
	return v.commit()
}

// Rename implements 4.5 rename(path, new_name): rewrites the entry in
// place with a new 8.3 name, preserving everything else.
func (v *Volume) Rename(path, newName string) error {
	if isDotfileName(newName) {
		return ferrors.ErrInvalidName
	}
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
	loc, err := v.findEntry(parent.cluster, shortName)
	if err != nil {
		return err
	}

	newShortName, err := dirent.ToShortName(newName)
	if err != nil {
		return err
	}
	if _, err := v.findEntry(parent.cluster, newShortName); err == nil {
		return ferrors.ErrAlreadyExists
	}

	loc.Entry.ShortName = newShortName
	if _, err := v.writeEntryAt(loc.DirCluster, loc.Slot, loc.Entry); err != nil {
		return err
	}
	return v.commit()
}

// Move implements 4.5 move(path, folder): allocate an entry in the target
// directory, copy the source entry bytes verbatim, remove the source slot.
func (v *Volume) Move(path, folder string) error {
	loc, err := v.resolvePath(path)
	if err != nil {
		return err
	}

	destCluster, _, err := v.resolveDir(folder)
	if err != nil {
		return err
	}

	name := dirent.PresentationName(loc.Entry.ShortName)
	if isDotfileName(name) {
		return ferrors.ErrInvalidName
	}
	if _, err := v.findEntry(destCluster, loc.Entry.ShortName); err == nil {
		return ferrors.ErrAlreadyExists
	}

	r, slot, err := v.allocSlot(destCluster)
	if err != nil {
		return err
	}
	movedEntry := *loc.Entry
	raw := movedEntry.Encode()
	if err := r.writeSlot(slot, raw[:]); err != nil {
		return err
	}

	movedCluster := uint32(loc.Entry.Cluster)
	if err := v.removeEntry(loc); err != nil {
		return err
	}

	if loc.Entry.IsDirectory() && v.cwdCluster == movedCluster {
		v.cwdCluster = RootCluster
		v.cwdParents = nil
		v.cwdPath = "/"
	}
	return v.commit()
}

// Copy implements 4.5 copy(source, destination, ignore_readonly).
func (v *Volume) Copy(source, destination string, ignoreReadonly bool) error {
	srcLoc, err := v.resolvePath(source)
	if err != nil {
		return err
	}
	if srcLoc.Entry.IsDirectory() {
		return ferrors.ErrIsADirectory
	}

	destDirCluster, destName, err := v.destinationFor(destination, dirent.PresentationName(srcLoc.Entry.ShortName))
	if err != nil {
		return err
	}

	destShortName, err := dirent.ToShortName(destName)
	if err != nil {
		return err
	}
	if existing, err := v.findEntry(destDirCluster, destShortName); err == nil {
		if existing.Entry.IsReadOnly() && !ignoreReadonly {
			return ferrors.ErrReadOnly
		}
	}

	data, err := v.ReadFile(source)
	if err != nil {
		return err
	}

	destLoc, err := v.findEntry(destDirCluster, destShortName)
	if err != nil {
		_, slot, err := v.allocSlot(destDirCluster)
		if err != nil {
			return err
		}
		e := &dirent.Entry{
			ShortName:  destShortName,
			Attr:       (srcLoc.Entry.Attr | dirent.AttrArchive) &^ dirent.AttrSystem,
			PackedTime: dirent.EncodeDateTime(time.Now()),
		}
		loc, err := v.writeEntryAt(destDirCluster, slot, e)
		if err != nil {
			return err
		}
		destLoc = &loc
	}

	return v.writeFileData(*destLoc, data)
}

// destinationFor resolves copy()'s destination argument: if it names an
// existing directory, the target is destination/basename(source); if it
// doesn't exist, destination itself is the new file's path (9, resolved
// Open Question on `at_root`).
func (v *Volume) destinationFor(destination, sourceBaseName string) (uint32, string, error) {
	if cluster, _, err := v.resolveDir(destination); err == nil {
		return cluster, sourceBaseName, nil
	}

	parent, name, err := v.resolveParent(destination)
	if err != nil {
		return 0, "", err
	}
	return parent.cluster, name, nil
}

// SetAttributes implements 4.5 set_attributes(path, flags).
func (v *Volume) SetAttributes(path string, flags uint8) error {
	components, _ := splitPath(path)
	if len(components) > 0 && isDotfileName(components[len(components)-1]) {
		return ferrors.ErrInvalidName
	}

	loc, err := v.resolvePath(path)
	if err != nil {
		return err
	}
	loc.Entry.SetAttributes(flags)
	if _, err := v.writeEntryAt(loc.DirCluster, loc.Slot, loc.Entry); err != nil {
		return err
	}
	return v.commit()
}
