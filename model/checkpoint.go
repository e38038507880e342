package model

// SyncCheckpoint is the per-target marker recording how far a sync target
// has caught up with a source table. It is persisted inside the target's
// own metadata (a table property, a configuration map entry, or a
// Hudi-properties-file entry depending on format) in the same atomic unit
// as the target commit it accompanies.
type SyncCheckpoint struct {
	LastSourceVersion   VersionToken
	LastSourceInstantMs int64
	TargetMetadataVersion []byte
}

// Advances reports whether next is a valid forward move from cp: checkpoints
// must advance monotonically, so LastSourceVersion may only increase.
func (cp SyncCheckpoint) Advances(next SyncCheckpoint) bool {
	return next.LastSourceVersion.Ord > cp.LastSourceVersion.Ord
}

// CheckpointPropertyKey is the namespaced property name lakebridge writes
// its SyncCheckpoint under inside each target format's own metadata.
const CheckpointPropertyKey = "lakebridge.last_sync_version"
