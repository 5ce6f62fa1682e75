package volume

import (
	"strings"

	"github.com/hisahi/fat12/dirent"
	ferrors "github.com/hisahi/fat12/errors"
)

// splitPath normalizes backslashes to '/', strips empty components, and
// reports whether the path was absolute (4.4: "A leading / resets
// traversal to root; otherwise resolution starts at cwd").
func splitPath(p string) (components []string, absolute bool) {
	p = strings.ReplaceAll(p, "\\", "/")
	absolute = strings.HasPrefix(p, "/")
	for _, part := range strings.Split(p, "/") {
		if part != "" {
			components = append(components, part)
		}
	}
	return components, absolute
}

// cursor is the traversal state threaded through resolveDir: the current
// directory's cluster reference plus the runtime parent chain (9, "Parent
// chain" -- on-disk `..` records cluster 0, so navigation never trusts it).
type cursor struct {
	cluster uint32
	parents []uint32
}

func (v *Volume) startCursor(absolute bool) cursor {
	if absolute {
		return cursor{cluster: RootCluster, parents: nil}
	}
	parents := make([]uint32, len(v.cwdParents))
	copy(parents, v.cwdParents)
	return cursor{cluster: v.cwdCluster, parents: parents}
}

// step advances the cursor by one path component.
func (v *Volume) step(c cursor, component string) (cursor, error) {
	switch component {
	case ".":
		return c, nil
	case "..":
		if len(c.parents) == 0 {
			return cursor{cluster: RootCluster, parents: nil}, nil
		}
		parent := c.parents[len(c.parents)-1]
		return cursor{cluster: parent, parents: c.parents[:len(c.parents)-1]}, nil
	}

	shortName, err := dirent.ToShortName(component)
	if err != nil {
		return cursor{}, ferrors.ErrNotFound
	}

	loc, err := v.findEntry(c.cluster, shortName)
	if err != nil {
		return cursor{}, err
	}
	if !loc.Entry.IsDirectory() {
		return cursor{}, ferrors.ErrNotADirectory
	}

	newParents := append(append([]uint32{}, c.parents...), c.cluster)
	return cursor{cluster: uint32(loc.Entry.Cluster), parents: newParents}, nil
}

// resolveDir implements 4.4 resolve_dir: walks every component as a
// directory, returning NotFound/NotADirectory as appropriate.
func (v *Volume) resolveDir(path string) (uint32, []uint32, error) {
	components, absolute := splitPath(path)
	c := v.startCursor(absolute)

	for _, comp := range components {
		next, err := v.step(c, comp)
		if err != nil {
			return 0, nil, err
		}
		c = next
	}
	return c.cluster, c.parents, nil
}

// resolvePath implements 4.4 resolve_path: walks every component but the
// last as a directory, then looks up the last component as a plain name
// (may be a file or a directory) in that parent.
func (v *Volume) resolvePath(path string) (dirLocation, error) {
	components, absolute := splitPath(path)
	if len(components) == 0 {
		// "/" itself has no directory entry; report it as a directory.
		return dirLocation{}, ferrors.ErrIsADirectory
	}

	c := v.startCursor(absolute)
	for _, comp := range components[:len(components)-1] {
		next, err := v.step(c, comp)
		if err != nil {
			return dirLocation{}, err
		}
		c = next
	}

	last := components[len(components)-1]
	if last == "." || last == ".." {
		return dirLocation{}, ferrors.ErrIsADirectory
	}

	shortName, err := dirent.ToShortName(last)
	if err != nil {
		return dirLocation{}, err
	}
	return v.findEntry(c.cluster, shortName)
}

// resolveParent walks every component but the last as a directory and
// returns the parent cursor plus the last (unvalidated) component name.
// Used by operations that create or rename the final component themselves
// (CreateFile, CreateDirectory, RemoveDirectory, Rename, Copy).
func (v *Volume) resolveParent(path string) (cursor, string, error) {
	components, absolute := splitPath(path)
	if len(components) == 0 {
		return cursor{}, "", ferrors.ErrInvalidArgument
	}

	c := v.startCursor(absolute)
	for _, comp := range components[:len(components)-1] {
		next, err := v.step(c, comp)
		if err != nil {
			return cursor{}, "", err
		}
		c = next
	}
	return c, components[len(components)-1], nil
}

// Getwd returns the current working directory's presentation path.
func (v *Volume) Getwd() string {
	return v.cwdPath
}

// Chdir changes the current directory, per 6 chdir(path).
func (v *Volume) Chdir(path string) error {
	cluster, parents, err := v.resolveDir(path)
	if err != nil {
		return err
	}
	v.cwdCluster = cluster
	v.cwdParents = parents
	v.cwdPath = normalizeCwdPath(path, v.cwdPath)
	return nil
}

func normalizeCwdPath(path, previous string) string {
	components, absolute := splitPath(path)
	base := []string{}
	if !absolute {
		prevComponents, _ := splitPath(previous)
		base = prevComponents
	}
	for _, comp := range components {
		switch comp {
		case ".":
			continue
		case "..":
			if len(base) > 0 {
				base = base[:len(base)-1]
			}
		default:
			base = append(base, comp)
		}
	}
	if len(base) == 0 {
		return "/"
	}
	return "/" + strings.Join(base, "/")
}
