package engine

import (
	"path/filepath"
	"sort"
)

// Diff computes the ordered actions that turn the replica tree described by
// dst into an exact copy of the source tree described by src.
//
// Deletions come first, deepest paths first, so a directory is only removed
// once everything beneath it is gone and a path whose kind changed is cleared
// before its new kind is created. Creations and updates follow, shallowest
// paths first, so every directory exists before anything is written into it.
// Within one depth, paths are ordered lexicographically.
//
// Replica paths at or beneath a path the source scan had to skip are left
// untouched. A KindOther replica entry (a symlink, say) is always deleted as a
// file; removing it unlinks the entry itself and never touches its target.
func Diff(src, dst *Snapshot) []Action {
	var deletes, creates []Action

	for relPath, de := range dst.Entries {
		if src.covered(relPath) {
			continue
		}
		se, ok := src.Entries[relPath]
		if ok && se.Kind == de.Kind {
			continue
		}
		kind := DeleteFile
		if de.Kind == KindDir {
			kind = DeleteDir
		}
		deletes = append(deletes, Action{
			Kind:    kind,
			RelPath: relPath,
			DstPath: joinRoot(dst.Root, relPath),
			Entry:   de,
		})
	}

	for relPath, se := range src.Entries {
		de, exists := dst.Entries[relPath]
		sameKind := exists && de.Kind == se.Kind

		var kind ActionKind
		switch {
		case se.Kind == KindDir && !sameKind:
			kind = CreateDir
		case se.Kind == KindFile && !sameKind:
			kind = CopyFile
		case se.Kind == KindFile && se.Fingerprint != de.Fingerprint:
			kind = UpdateFile
		default:
			continue
		}

		a := Action{
			Kind:    kind,
			RelPath: relPath,
			DstPath: joinRoot(dst.Root, relPath),
			Entry:   se,
		}
		if kind != CreateDir {
			a.SrcPath = joinRoot(src.Root, relPath)
		}
		creates = append(creates, a)
	}

	sort.Slice(deletes, func(i, j int) bool {
		di, dj := depth(deletes[i].RelPath), depth(deletes[j].RelPath)
		if di != dj {
			return di > dj
		}
		return deletes[i].RelPath < deletes[j].RelPath
	})
	sort.Slice(creates, func(i, j int) bool {
		di, dj := depth(creates[i].RelPath), depth(creates[j].RelPath)
		if di != dj {
			return di < dj
		}
		return creates[i].RelPath < creates[j].RelPath
	})

	return append(deletes, creates...)
}

func joinRoot(root, relPath string) string {
	return filepath.Join(root, filepath.FromSlash(relPath))
}
