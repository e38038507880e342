package model

// DataFilesDiff is the set of files added and removed by a single commit.
// Added and Removed are keyed by physical path, so each map holds a path at
// most once; the two maps are separate, so a path can still appear in both,
// and Validate reports that case as an error.
// Removed entries carry only enough of DataFile to identify the file (path
// and, where known, partition identity) — the full payload need not be
// reconstructed.
type DataFilesDiff struct {
	Added   map[string]DataFile
	Removed map[string]DataFile
}

// NewDataFilesDiff builds a diff from added/removed slices, keyed by path.
func NewDataFilesDiff(added, removed []DataFile) DataFilesDiff {
	d := DataFilesDiff{Added: make(map[string]DataFile, len(added)), Removed: make(map[string]DataFile, len(removed))}
	for _, f := range added {
		d.Added[f.Path] = f
	}
	for _, f := range removed {
		d.Removed[f.Path] = f
	}
	return d
}

// IsEmpty reports whether the diff carries no changes at all — the case
// for a schema-only or protocol-only commit.
func (d DataFilesDiff) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

// Validate enforces the invariant that no path appears in both Added and
// Removed.
func (d DataFilesDiff) Validate() error {
	for path := range d.Added {
		if _, ok := d.Removed[path]; ok {
			return Newf(ErrSourceReadError, "path %q present in both added and removed files", path)
		}
	}
	return nil
}
