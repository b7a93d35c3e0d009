package engine

// ActionKind identifies one kind of replica mutation.
type ActionKind int

const (
	CreateDir ActionKind = iota + 1
	CopyFile
	UpdateFile
	DeleteFile
	DeleteDir
)

var actionNames = [...]string{
	CreateDir:  "create-dir",
	CopyFile:   "copy-file",
	UpdateFile: "update-file",
	DeleteFile: "delete-file",
	DeleteDir:  "delete-dir",
}

func (k ActionKind) String() string {
	if k > 0 && int(k) < len(actionNames) {
		return actionNames[k]
	}
	return "unknown"
}

// IsDelete reports whether the action removes something from the replica.
func (k ActionKind) IsDelete() bool {
	return k == DeleteFile || k == DeleteDir
}

// Action is one required mutation on the replica.
type Action struct {
	// Entry is the source entry for create/copy/update and the replica
	// entry for deletes.
	Entry   PathEntry
	RelPath string
	SrcPath string // absolute source path; copy-file and update-file only
	DstPath string // absolute replica path
	Kind    ActionKind
}

func (a Action) String() string {
	return a.Kind.String() + " " + a.RelPath
}
