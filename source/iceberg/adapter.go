// Package iceberg implements the source adapter contract against an
// Iceberg table's metadata.json, manifest lists and Avro-encoded manifests,
// the read-side counterpart of target/iceberg's writer.
package iceberg

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strconv"

	"github.com/hamba/avro/v2/ocf"

	"lakebridge/model"
	"lakebridge/source"
	"lakebridge/storage"
	icetranslate "lakebridge/translate/iceberg"
)

const (
	entryStatusAdded   = 1
	entryStatusDeleted = 2
)

type schemaEntry struct {
	SchemaID           int                        `json:"schema-id"`
	Fields             []icetranslate.NestedField `json:"fields"`
	IdentifierFieldIDs []int                      `json:"identifier-field-ids,omitempty"`
}

type partitionSpecEntry struct {
	SpecID int                               `json:"spec-id"`
	Fields []icetranslate.PartitionFieldJSON `json:"fields"`
}

type snapshotEntry struct {
	SnapshotID       int64             `json:"snapshot-id"`
	ParentSnapshotID *int64            `json:"parent-snapshot-id,omitempty"`
	TimestampMs      int64             `json:"timestamp-ms"`
	ManifestList     string            `json:"manifest-list"`
	Summary          map[string]string `json:"summary"`
	SchemaID         int               `json:"schema-id"`
}

type tableMetadata struct {
	FormatVersion     int                  `json:"format-version"`
	TableUUID         string               `json:"table-uuid"`
	Location          string               `json:"location"`
	LastUpdatedMs     int64                `json:"last-updated-ms"`
	CurrentSchemaID   int                  `json:"current-schema-id"`
	Schemas           []schemaEntry        `json:"schemas"`
	DefaultSpecID     int                  `json:"default-spec-id"`
	PartitionSpecs    []partitionSpecEntry `json:"partition-specs"`
	Properties        map[string]string    `json:"properties"`
	CurrentSnapshotID int64                `json:"current-snapshot-id"`
	Snapshots         []snapshotEntry      `json:"snapshots"`
}

type manifestDataFile struct {
	FilePath        string            `avro:"file_path"`
	FileFormat      string            `avro:"file_format"`
	Partition       map[string]string `avro:"partition"`
	RecordCount     int64             `avro:"record_count"`
	FileSizeInBytes int64             `avro:"file_size_in_bytes"`
	ColumnSizes     map[string]int64  `avro:"column_sizes"`
	ValueCounts     map[string]int64  `avro:"value_counts"`
	NullValueCounts map[string]int64  `avro:"null_value_counts"`
	LowerBounds     map[string][]byte `avro:"lower_bounds"`
	UpperBounds     map[string][]byte `avro:"upper_bounds"`
}

type manifestEntryRecord struct {
	Status     int32            `avro:"status"`
	SnapshotID *int64           `avro:"snapshot_id"`
	DataFile   manifestDataFile `avro:"data_file"`
}

type manifestListRecord struct {
	ManifestPath          string `avro:"manifest_path"`
	ManifestLength        int64  `avro:"manifest_length"`
	AddedSnapshotID       int64  `avro:"added_snapshot_id"`
	AddedDataFilesCount   int32  `avro:"added_data_files_count"`
	DeletedDataFilesCount int32  `avro:"deleted_data_files_count"`
	AddedRowsCount        int64  `avro:"added_rows_count"`
}

// Adapter reads an Iceberg table's metadata.json, its manifest lists and
// the Avro manifests they reference.
type Adapter struct {
	store    storage.Storage
	basePath string
	cache    *source.ChangesCache
}

// New constructs an Iceberg source Adapter rooted at basePath within store.
func New(store storage.Storage, basePath string) *Adapter {
	return &Adapter{store: store, basePath: basePath, cache: source.NewChangesCache(64)}
}

// NewAdapter constructs a source.Adapter backed by the local filesystem.
func NewAdapter(basePath string, _ map[string]string) (source.Adapter, error) {
	store, err := storage.NewFS(basePath)
	if err != nil {
		return nil, err
	}
	return New(store, ""), nil
}

func (a *Adapter) Close() error {
	a.cache.Invalidate()
	return nil
}

func (a *Adapter) metadataPath() string {
	return path.Join(a.basePath, "metadata/metadata.json")
}

func (a *Adapter) readMetadata(ctx context.Context) (*tableMetadata, error) {
	r, err := a.store.Read(ctx, a.metadataPath())
	if err != nil {
		return nil, model.Wrap(model.ErrSourceReadError, "reading iceberg table metadata", err)
	}
	defer r.Close()
	var meta tableMetadata
	if err := json.NewDecoder(r).Decode(&meta); err != nil {
		return nil, model.Wrap(model.ErrSourceReadError, "decoding iceberg table metadata", err)
	}
	return &meta, nil
}

func schemaByID(meta *tableMetadata, id int) (icetranslate.Schema, error) {
	for _, s := range meta.Schemas {
		if s.SchemaID == id {
			return icetranslate.Schema{Fields: s.Fields, IdentifierFieldIDs: s.IdentifierFieldIDs}, nil
		}
	}
	return icetranslate.Schema{}, model.Newf(model.ErrInvalidSchema, "no schema with id %d in table metadata", id)
}

func partitionSpecByID(meta *tableMetadata, id int) ([]icetranslate.PartitionFieldJSON, error) {
	for _, s := range meta.PartitionSpecs {
		if s.SpecID == id {
			return s.Fields, nil
		}
	}
	return nil, model.Newf(model.ErrInvalidSchema, "no partition spec with id %d in table metadata", id)
}

func (a *Adapter) tableAt(meta *tableMetadata, schemaID, specID int) (model.TableDescriptor, error) {
	iceSchema, err := schemaByID(meta, schemaID)
	if err != nil {
		return model.TableDescriptor{}, err
	}
	schema, err := icetranslate.FromIceberg(iceSchema)
	if err != nil {
		return model.TableDescriptor{}, err
	}
	specFields, err := partitionSpecByID(meta, specID)
	if err != nil {
		return model.TableDescriptor{}, err
	}
	spec, err := icetranslate.FromIcebergPartitionSpec(specFields)
	if err != nil {
		return model.TableDescriptor{}, err
	}
	index := model.BuildFieldIndex(schema)
	pathByID := make(map[int]string, len(index))
	for id, path := range index {
		pathByID[int(id)] = path
	}
	var recordKeyPaths []string
	for _, id := range iceSchema.IdentifierFieldIDs {
		if path, ok := pathByID[id]; ok {
			recordKeyPaths = append(recordKeyPaths, path)
		}
	}
	return model.TableDescriptor{
		SourceFormat:   model.FormatIceberg,
		BasePath:       a.basePath,
		ReadSchema:     schema,
		PartitionSpec:  spec,
		LayoutStrategy: model.LayoutFlat,
		RecordKeyPaths: recordKeyPaths,
	}, nil
}

func (a *Adapter) GetTable(ctx context.Context, at model.VersionToken) (model.TableDescriptor, error) {
	meta, err := a.readMetadata(ctx)
	if err != nil {
		return model.TableDescriptor{}, err
	}
	schemaID, specID := meta.CurrentSchemaID, meta.DefaultSpecID
	if !at.IsZero() {
		snap, ok := a.snapshotByID(meta, at.Ord)
		if ok {
			schemaID = snap.SchemaID
		}
	}
	return a.tableAt(meta, schemaID, specID)
}

func (a *Adapter) GetSchemaCatalog(ctx context.Context, at model.VersionToken) (map[model.SchemaVersion]*model.Schema, error) {
	meta, err := a.readMetadata(ctx)
	if err != nil {
		return nil, err
	}
	catalog := make(map[model.SchemaVersion]*model.Schema, len(meta.Schemas))
	for _, s := range meta.Schemas {
		schema, err := icetranslate.FromIceberg(icetranslate.Schema{Fields: s.Fields, IdentifierFieldIDs: s.IdentifierFieldIDs})
		if err != nil {
			return nil, err
		}
		catalog[model.NewSchemaVersion(int64(s.SchemaID))] = schema
	}
	return catalog, nil
}

func (a *Adapter) snapshotByID(meta *tableMetadata, id int64) (snapshotEntry, bool) {
	for _, s := range meta.Snapshots {
		if s.SnapshotID == id {
			return s, true
		}
	}
	return snapshotEntry{}, false
}

func (a *Adapter) readManifestList(ctx context.Context, path string) ([]manifestListRecord, error) {
	r, err := a.store.Read(ctx, path)
	if err != nil {
		return nil, model.Wrapf(model.ErrSourceReadError, err, "reading manifest list %s", path)
	}
	defer r.Close()
	dec, err := ocf.NewDecoder(r)
	if err != nil {
		return nil, model.Wrapf(model.ErrSourceReadError, err, "opening manifest list %s", path)
	}
	var out []manifestListRecord
	for dec.HasNext() {
		var rec manifestListRecord
		if err := dec.Decode(&rec); err != nil {
			return nil, model.Wrapf(model.ErrSourceReadError, err, "decoding manifest list entry in %s", path)
		}
		out = append(out, rec)
	}
	return out, dec.Error()
}

func (a *Adapter) readManifest(ctx context.Context, path string) ([]manifestEntryRecord, error) {
	r, err := a.store.Read(ctx, path)
	if err != nil {
		return nil, model.Wrapf(model.ErrSourceReadError, err, "reading manifest %s", path)
	}
	defer r.Close()
	dec, err := ocf.NewDecoder(r)
	if err != nil {
		return nil, model.Wrapf(model.ErrSourceReadError, err, "opening manifest %s", path)
	}
	var out []manifestEntryRecord
	for dec.HasNext() {
		var rec manifestEntryRecord
		if err := dec.Decode(&rec); err != nil {
			return nil, model.Wrapf(model.ErrSourceReadError, err, "decoding manifest entry in %s", path)
		}
		out = append(out, rec)
	}
	return out, dec.Error()
}

func toDataFile(rec manifestEntryRecord, schema *model.Schema, spec model.PartitionSpec) model.DataFile {
	stats := icetranslate.FromFileMetrics(icetranslate.FileMetrics{
		ColumnSizes:     stringKeysToInt(rec.DataFile.ColumnSizes),
		ValueCounts:     stringKeysToInt(rec.DataFile.ValueCounts),
		NullValueCounts: stringKeysToInt(rec.DataFile.NullValueCounts),
		LowerBounds:     stringKeysToIntBytes(rec.DataFile.LowerBounds),
		UpperBounds:     stringKeysToIntBytes(rec.DataFile.UpperBounds),
	}, schema)
	return model.DataFile{
		Path:            rec.DataFile.FilePath,
		Format:          model.FormatParquet,
		PartitionValues: partitionValuesFromStrings(rec.DataFile.Partition, spec),
		FileSizeBytes:   rec.DataFile.FileSizeInBytes,
		RecordCount:     rec.DataFile.RecordCount,
		ColumnStats:     stats,
	}
}

// partitionValuesFromStrings is the read-side counterpart of the writer's
// partitionValuesToStrings: it walks spec in the same order the writer did
// to recover each PartitionField from its positional string key.
func partitionValuesFromStrings(raw map[string]string, spec model.PartitionSpec) map[model.PartitionField]model.Range {
	if len(raw) == 0 {
		return nil
	}
	values := make(map[model.PartitionField]model.Range, len(raw))
	for i, pf := range spec {
		v, ok := raw[strconv.Itoa(i)]
		if !ok {
			continue
		}
		values[pf] = model.ScalarRange(v)
	}
	return values
}

func stringKeysToInt(m map[string]int64) map[int]int64 {
	out := make(map[int]int64, len(m))
	for k, v := range m {
		var id int
		fmt.Sscanf(k, "%d", &id)
		out[id] = v
	}
	return out
}

func stringKeysToIntBytes(m map[string][]byte) map[int][]byte {
	out := make(map[int][]byte, len(m))
	for k, v := range m {
		var id int
		fmt.Sscanf(k, "%d", &id)
		out[id] = v
	}
	return out
}

// GetCurrentSnapshot recovers the live file set of the current snapshot by
// replaying the manifest lists of it and all its ancestors (liveFilesAsOf).
func (a *Adapter) GetCurrentSnapshot(ctx context.Context) (model.Snapshot, error) {
	meta, err := a.readMetadata(ctx)
	if err != nil {
		return model.Snapshot{}, err
	}
	if meta.CurrentSnapshotID == 0 && len(meta.Snapshots) == 0 {
		return model.Snapshot{}, model.New(model.ErrSourceVersionMissing, "iceberg table has no snapshots")
	}
	snap, ok := a.snapshotByID(meta, meta.CurrentSnapshotID)
	if !ok {
		return model.Snapshot{}, model.Newf(model.ErrSourceVersionMissing, "current snapshot %d not found in metadata", meta.CurrentSnapshotID)
	}
	table, err := a.tableAt(meta, snap.SchemaID, meta.DefaultSpecID)
	if err != nil {
		return model.Snapshot{}, err
	}

	active, err := a.liveFilesAsOf(ctx, meta, snap, table.ReadSchema, table.PartitionSpec)
	if err != nil {
		return model.Snapshot{}, err
	}

	catalog, err := a.GetSchemaCatalog(ctx, model.VersionToken{Ord: meta.CurrentSnapshotID})
	if err != nil {
		return model.Snapshot{}, err
	}
	return model.Snapshot{
		Table:         table,
		SchemaCatalog: catalog,
		Files:         model.GroupFiles(active),
		SourceVersion: model.VersionToken{Raw: fmt.Sprintf("%d", snap.SnapshotID), Ord: snap.SnapshotID},
	}, nil
}

// liveFilesAsOf replays every ancestor snapshot's manifest from the table's
// first snapshot through snap, applying ADDED/DELETED entries in order to
// recover the set of files live at snap.
func (a *Adapter) liveFilesAsOf(ctx context.Context, meta *tableMetadata, snap snapshotEntry, schema *model.Schema, spec model.PartitionSpec) ([]model.DataFile, error) {
	chain := a.ancestorChain(meta, snap)
	active := map[string]model.DataFile{}
	for _, s := range chain {
		entries, err := a.readManifestList(ctx, s.ManifestList)
		if err != nil {
			return nil, err
		}
		for _, m := range entries {
			records, err := a.readManifest(ctx, m.ManifestPath)
			if err != nil {
				return nil, err
			}
			for _, rec := range records {
				switch rec.Status {
				case entryStatusAdded:
					active[rec.DataFile.FilePath] = toDataFile(rec, schema, spec)
				case entryStatusDeleted:
					delete(active, rec.DataFile.FilePath)
				}
			}
		}
	}
	out := make([]model.DataFile, 0, len(active))
	for _, f := range active {
		out = append(out, f)
	}
	return out, nil
}

// ancestorChain returns snap's lineage from the table's root snapshot
// through snap itself, oldest first.
func (a *Adapter) ancestorChain(meta *tableMetadata, snap snapshotEntry) []snapshotEntry {
	var chain []snapshotEntry
	cur := snap
	for {
		chain = append([]snapshotEntry{cur}, chain...)
		if cur.ParentSnapshotID == nil {
			break
		}
		parent, ok := a.snapshotByID(meta, *cur.ParentSnapshotID)
		if !ok {
			break
		}
		cur = parent
	}
	return chain
}

func (a *Adapter) GetCommitState(ctx context.Context, afterInstantMs int64, after *model.VersionToken) (source.CommitPlan, error) {
	meta, err := a.readMetadata(ctx)
	if err != nil {
		return source.CommitPlan{}, err
	}
	if len(meta.Snapshots) == 0 {
		return source.CommitPlan{}, nil
	}
	if after == nil {
		return source.CommitPlan{MustDoFullSync: true}, nil
	}
	if _, ok := a.snapshotByID(meta, after.Ord); !ok {
		// The checkpointed snapshot is no longer reachable (expired by a
		// snapshot-expiration policy): fall back to a full resync.
		return source.CommitPlan{MustDoFullSync: true}, nil
	}

	var plan []model.VersionToken
	for _, s := range meta.Snapshots {
		if s.TimestampMs <= afterInstantMs && s.SnapshotID != after.Ord {
			continue
		}
		if s.SnapshotID == after.Ord {
			continue
		}
		plan = append(plan, model.VersionToken{Raw: fmt.Sprintf("%d", s.SnapshotID), Ord: s.SnapshotID})
	}
	return source.CommitPlan{CommitsToProcess: plan}, nil
}

// GetCommit recovers the incremental file diff a single snapshot
// introduced: it reads the manifests in the snapshot's manifest list that
// were added by that snapshot and collects their ADDED and DELETED entries.
func (a *Adapter) GetCommit(ctx context.Context, v model.VersionToken) (model.Commit, error) {
	meta, err := a.readMetadata(ctx)
	if err != nil {
		return model.Commit{}, err
	}
	snap, ok := a.snapshotByID(meta, v.Ord)
	if !ok {
		return model.Commit{}, model.Newf(model.ErrSourceVersionMissing, "snapshot %d not found in metadata", v.Ord)
	}
	table, err := a.tableAt(meta, snap.SchemaID, meta.DefaultSpecID)
	if err != nil {
		return model.Commit{}, err
	}

	entries, err := a.readManifestList(ctx, snap.ManifestList)
	if err != nil {
		return model.Commit{}, err
	}
	var added, removed []model.DataFile
	for _, m := range entries {
		if m.AddedSnapshotID != snap.SnapshotID {
			continue
		}
		records, err := a.readManifest(ctx, m.ManifestPath)
		if err != nil {
			return model.Commit{}, err
		}
		for _, rec := range records {
			df := toDataFile(rec, table.ReadSchema, table.PartitionSpec)
			switch rec.Status {
			case entryStatusAdded:
				added = append(added, df)
			case entryStatusDeleted:
				removed = append(removed, df)
			}
		}
	}

	diff := model.NewDataFilesDiff(added, removed)
	if err := diff.Validate(); err != nil {
		return model.Commit{}, err
	}
	return model.Commit{Version: v, TimestampMs: snap.TimestampMs, FilesDiff: diff, TableAfter: table}, nil
}

var _ source.Adapter = (*Adapter)(nil)
