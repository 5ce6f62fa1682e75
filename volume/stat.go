package volume

import (
	"strings"

	"github.com/hisahi/fat12/dirent"
)

// listNames walks the directory at path (or fails if path is not a
// directory) and returns every live entry that satisfies keep, skipping
// `.`/`..` and attribute-skippable entries per dirent.Skippable.
func (v *Volume) listNames(path string, includeHidden bool, keep func(*dirent.Entry) bool) ([]string, error) {
	cluster, _, err := v.resolveDir(path)
	if err != nil {
		return nil, err
	}

	entries, err := v.listEntries(cluster)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, loc := range entries {
		name := dirent.PresentationName(loc.Entry.ShortName)
		if isDotfileName(name) {
			continue
		}
		if loc.Entry.Skippable() {
			continue
		}
		if !includeHidden && loc.Entry.Attr&dirent.AttrHidden != 0 {
			continue
		}
		if !keep(loc.Entry) {
			continue
		}
		out = append(out, name)
	}
	return out, nil
}

// ListFiles implements 4.5 list_files(path, hidden).
func (v *Volume) ListFiles(path string, hidden bool) ([]string, error) {
	return v.listNames(path, hidden, func(e *dirent.Entry) bool { return !e.IsDirectory() })
}

// ListDirs implements 4.5 list_dirs(path, hidden).
func (v *Volume) ListDirs(path string, hidden bool) ([]string, error) {
	return v.listNames(path, hidden, func(e *dirent.Entry) bool { return e.IsDirectory() })
}

// statEntry builds a FileInfo for a resolved location. Directories report
// size/mtime as nil; files always carry both, so an empty file (starting
// cluster 0) reports size 0.
func statEntry(name string, e *dirent.Entry) FileInfo {
	fi := FileInfo{
		Name:            name,
		Attributes:      e.Attr,
		StartingCluster: uint32(e.Cluster),
	}
	if !e.IsDirectory() {
		size := e.Size32
		fi.Size = &size
		t := dirent.DecodeDateTime(e.PackedTime)
		fi.ModTime = &t
	}
	return fi
}

// Stat implements 6 stat(path). The root directory itself has no backing
// directory entry; it is reported as a synthetic directory FileInfo.
func (v *Volume) Stat(path string) (FileInfo, error) {
	components, _ := splitPath(path)
	if len(components) == 0 {
		return FileInfo{Name: "/", Attributes: dirent.AttrDirectory, StartingCluster: RootCluster}, nil
	}

	last := components[len(components)-1]
	if last == "." || last == ".." {
		cluster, _, err := v.resolveDir(path)
		if err != nil {
			return FileInfo{}, err
		}
		return FileInfo{Name: last, Attributes: dirent.AttrDirectory, StartingCluster: cluster}, nil
	}

	loc, err := v.resolvePath(path)
	if err != nil {
		return FileInfo{}, err
	}
	return statEntry(dirent.PresentationName(loc.Entry.ShortName), loc.Entry), nil
}

// Exists implements 6 exists(path).
func (v *Volume) Exists(path string) bool {
	_, err := v.Stat(path)
	return err == nil
}

// IsFile implements 6 is_file(path).
func (v *Volume) IsFile(path string) bool {
	fi, err := v.Stat(path)
	return err == nil && fi.Size != nil
}

// IsDir implements 6 is_dir(path).
func (v *Volume) IsDir(path string) bool {
	fi, err := v.Stat(path)
	return err == nil && fi.Size == nil
}

// IsSameFile implements the is_same_file(a, b) tri-state: both return values
// false means the comparison could not be made (either path failed to
// resolve), treating a missing operand as "unknown" rather than "not same".
func (v *Volume) IsSameFile(a, b string) (same bool, known bool) {
	locA, errA := v.resolvePath(a)
	locB, errB := v.resolvePath(b)
	if errA != nil || errB != nil {
		return false, false
	}
	if locA.Entry.IsDirectory() != locB.Entry.IsDirectory() {
		return false, true
	}
	if locA.Entry.IsDirectory() {
		return locA.Entry.Cluster == locB.Entry.Cluster, true
	}
	return locA.DirCluster == locB.DirCluster && locA.Slot == locB.Slot, true
}

// ReadLabel implements 4.6 read_label(): the dual-stored volume label, read
// from its root-directory entry if present, falling back to the EBPB
// mirror (9, "Volume label dual storage").
func (v *Volume) ReadLabel() (string, error) {
	entries, err := v.listEntries(RootCluster)
	if err != nil {
		return "", err
	}
	for _, loc := range entries {
		if loc.Entry.Attr&dirent.AttrVolumeLabel != 0 {
			return strings.TrimRight(string(loc.Entry.ShortName[:]), " "), nil
		}
	}
	return strings.TrimRight(string(v.geom.Label[:]), " "), nil
}

// SetLabel implements 4.6 set_label(label): rewrites both the root-
// directory label entry and the EBPB mirror so the two never diverge.
func (v *Volume) SetLabel(label string) error {
	canonical, err := canonicalLabelBytes(label)
	if err != nil {
		return err
	}

	if err := v.writeLabelEntry(canonical); err != nil {
		return err
	}
	v.geom.Label = canonical
	return v.commit()
}
