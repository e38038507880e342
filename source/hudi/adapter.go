// Package hudi implements the source adapter contract against a Hudi
// table's timeline (.hoodie directory), the read-side counterpart of
// target/hudi's writer.
package hudi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"

	"lakebridge/model"
	"lakebridge/source"
	"lakebridge/storage"
	translatedelta "lakebridge/translate/delta"
	translatehudi "lakebridge/translate/hudi"
)

const timelineDir = ".hoodie"
const schemaDir = ".hoodie/.schema"

// completedSuffixes are the copy-on-write instant file extensions this
// adapter understands. ".log" files (merge-on-read's unmerged delta logs)
// are deliberately excluded: a table using merge-on-read requires reading
// base files plus log files and compacting them, which this adapter does
// not do. Such an instant is skipped rather than read, so a copy-on-write
// target still receives every other commit in the timeline.
var completedSuffixes = []string{"commit", "deltacommit", "replacecommit"}

type writeStat struct {
	Path            string `json:"path"`
	PartitionPath   string `json:"partitionPath"`
	TotalWriteBytes int64  `json:"totalWriteBytes"`
	NumWrites       int64  `json:"numWrites"`
}

type commitMetadata struct {
	PartitionToWriteStats   map[string][]writeStat `json:"partitionToWriteStats"`
	PartitionToDeletedPaths map[string][]string    `json:"partitionToDeletedPaths,omitempty"`
	OperationType           string                 `json:"operationType"`
	ExtraMetadata           map[string]string       `json:"extraMetadata"`
}

// Adapter reads a Hudi table's timeline of completed instants.
type Adapter struct {
	store    storage.Storage
	basePath string
	cache    *source.ChangesCache
}

// New constructs a Hudi source Adapter rooted at basePath within store.
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

// instant is one timeline entry this adapter can read: its timestamp, the
// suffix it was found under, and (for a .log entry) the fact that reading
// it must fail rather than be silently treated as empty.
type instant struct {
	Timestamp    string
	Suffix       string
	MergeOnRead  bool
}

func (a *Adapter) listInstants(ctx context.Context) ([]instant, error) {
	files, err := a.store.List(ctx, path.Join(a.basePath, timelineDir))
	if err != nil {
		return nil, model.Wrap(model.ErrSourceReadError, "listing hudi timeline", err)
	}
	byTimestamp := map[string]instant{}
	for _, f := range files {
		base := f[strings.LastIndex(f, "/")+1:]
		if strings.HasSuffix(base, ".log") {
			ts := strings.SplitN(base, ".", 2)[0]
			byTimestamp[ts] = instant{Timestamp: ts, MergeOnRead: true}
			continue
		}
		for _, suffix := range completedSuffixes {
			trimmed := strings.TrimSuffix(base, "."+suffix)
			if trimmed == base {
				continue
			}
			if existing, ok := byTimestamp[trimmed]; !ok || !existing.MergeOnRead {
				byTimestamp[trimmed] = instant{Timestamp: trimmed, Suffix: suffix}
			}
			break
		}
	}
	out := make([]instant, 0, len(byTimestamp))
	for _, inst := range byTimestamp {
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

func (a *Adapter) readCommit(ctx context.Context, inst instant) (*commitMetadata, error) {
	if inst.MergeOnRead {
		return nil, model.Newf(model.ErrSourceReadError, "instant %s is a merge-on-read log file; lakebridge only reads copy-on-write commits", inst.Timestamp)
	}
	instantPath := path.Join(a.basePath, timelineDir, inst.Timestamp+"."+inst.Suffix)
	r, err := a.store.Read(ctx, instantPath)
	if err != nil {
		return nil, model.Wrapf(model.ErrSourceReadError, err, "reading hudi instant %s", inst.Timestamp)
	}
	defer r.Close()
	var meta commitMetadata
	if err := json.NewDecoder(r).Decode(&meta); err != nil {
		return nil, model.Wrapf(model.ErrSourceReadError, err, "decoding hudi instant %s", inst.Timestamp)
	}
	return &meta, nil
}

func (a *Adapter) readSchemaAt(ctx context.Context, timestamp string) (*model.Schema, error) {
	instants, err := a.listInstants(ctx)
	if err != nil {
		return nil, err
	}
	var latest string
	for _, inst := range instants {
		if inst.Timestamp > timestamp {
			break
		}
		latest = inst.Timestamp
	}
	if latest == "" {
		return nil, model.New(model.ErrInvalidSchema, "no schema recorded at or before the requested instant")
	}
	r, err := a.store.Read(ctx, path.Join(a.basePath, schemaDir, latest+".avsc"))
	if err != nil {
		return nil, model.Wrap(model.ErrSourceReadError, "reading hudi table schema", err)
	}
	defer r.Close()
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, model.Wrap(model.ErrSourceReadError, "reading hudi table schema", err)
	}
	return translatehudi.FromAvroSchema(string(b))
}

func (a *Adapter) GetTable(ctx context.Context, at model.VersionToken) (model.TableDescriptor, error) {
	instants, err := a.listInstants(ctx)
	if err != nil {
		return model.TableDescriptor{}, err
	}
	if len(instants) == 0 {
		return model.TableDescriptor{}, model.New(model.ErrSourceVersionMissing, "hudi table has no completed instants")
	}
	timestamp := at.Raw
	if timestamp == "" {
		timestamp = instants[len(instants)-1].Timestamp
	}
	schema, err := a.readSchemaAt(ctx, timestamp)
	if err != nil {
		return model.TableDescriptor{}, err
	}

	var spec model.PartitionSpec
	for _, inst := range instants {
		if inst.Timestamp > timestamp || inst.MergeOnRead {
			continue
		}
		meta, err := a.readCommit(ctx, inst)
		if err != nil {
			return model.TableDescriptor{}, err
		}
		if s, ok := inferSpecFromStats(schema, meta); ok {
			spec = s
		}
	}
	layout := model.LayoutFlat
	if len(spec) > 0 {
		layout = model.LayoutDirHierarchyPartitionValues
	}
	return model.TableDescriptor{
		SourceFormat:   model.FormatHudi,
		BasePath:       a.basePath,
		ReadSchema:     schema,
		PartitionSpec:  spec,
		LayoutStrategy: layout,
	}, nil
}

// inferSpecFromStats recovers a partition spec from the field names
// encoded in a commit's partition paths, since Hudi has no first-class
// partition-spec metadata of its own: the path segments' names are the
// schema's own field names, always under TransformValue.
func inferSpecFromStats(schema *model.Schema, meta *commitMetadata) (model.PartitionSpec, bool) {
	for partitionPath := range meta.PartitionToWriteStats {
		if partitionPath == "" {
			continue
		}
		components := translatehudi.ParsePartitionPath(partitionPath)
		values, err := translatehudi.ToCanonicalPartitionValues(schema, nil, components)
		if err != nil {
			continue
		}
		spec := make(model.PartitionSpec, 0, len(values))
		for pf := range values {
			spec = append(spec, pf)
		}
		return spec, true
	}
	return nil, false
}

func (a *Adapter) GetSchemaCatalog(ctx context.Context, at model.VersionToken) (map[model.SchemaVersion]*model.Schema, error) {
	instants, err := a.listInstants(ctx)
	if err != nil {
		return nil, err
	}
	catalog := make(map[model.SchemaVersion]*model.Schema)
	for _, inst := range instants {
		if inst.MergeOnRead || (at.Raw != "" && inst.Timestamp > at.Raw) {
			continue
		}
		schema, err := a.readSchemaAt(ctx, inst.Timestamp)
		if err != nil {
			continue
		}
		catalog[model.SchemaVersion(inst.Timestamp)] = schema
	}
	return catalog, nil
}

func (a *Adapter) filesFromCommit(ctx context.Context, schema *model.Schema, spec model.PartitionSpec, meta *commitMetadata) ([]model.DataFile, []string, error) {
	var added []model.DataFile
	for partitionPath, stats := range meta.PartitionToWriteStats {
		values, err := partitionValuesFor(schema, spec, partitionPath)
		if err != nil {
			return nil, nil, err
		}
		for _, s := range stats {
			df := model.DataFile{
				Path:            s.Path,
				Format:          model.FormatParquet,
				PartitionValues: values,
				FileSizeBytes:   s.TotalWriteBytes,
				RecordCount:     s.NumWrites,
			}
			if colStats, err := a.statsFromFooter(ctx, schema, s.Path); err == nil {
				df.ColumnStats = colStats
			}
			added = append(added, df)
		}
	}
	var removed []string
	for _, paths := range meta.PartitionToDeletedPaths {
		removed = append(removed, paths...)
	}
	return added, removed, nil
}

// statsFromFooter recovers per-column statistics from a copy-on-write data
// file's Parquet footer. Hudi commit metadata's write stats carry file size
// and write count but no column-level statistics, so the footer is the only
// source for them; reuses the same reader the Delta adapter falls back to,
// since both are just reading plain Parquet footers.
func (a *Adapter) statsFromFooter(ctx context.Context, schema *model.Schema, filePath string) (map[int32]model.ColumnStat, error) {
	r, err := a.store.Read(ctx, filePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, model.Wrap(model.ErrSourceReadError, "reading data file", err)
	}
	stats, _, err := translatedelta.StatsFromParquetFooter(bytes.NewReader(data), int64(len(data)), schema)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func partitionValuesFor(schema *model.Schema, spec model.PartitionSpec, partitionPath string) (map[model.PartitionField]model.Range, error) {
	if partitionPath == "" {
		return nil, nil
	}
	components := translatehudi.ParsePartitionPath(partitionPath)
	return translatehudi.ToCanonicalPartitionValues(schema, spec, components)
}

func (a *Adapter) GetCurrentSnapshot(ctx context.Context) (model.Snapshot, error) {
	instants, err := a.listInstants(ctx)
	if err != nil {
		return model.Snapshot{}, err
	}
	if len(instants) == 0 {
		return model.Snapshot{}, model.New(model.ErrSourceVersionMissing, "hudi table has no completed instants")
	}
	current := instants[len(instants)-1]
	table, err := a.GetTable(ctx, model.VersionToken{Raw: current.Timestamp})
	if err != nil {
		return model.Snapshot{}, err
	}

	active := map[string]model.DataFile{}
	for _, inst := range instants {
		if inst.MergeOnRead {
			// Merge-on-read log files carry no standalone file listing; skip
			// this instant rather than abort, so a copy-on-write-only target
			// still gets every commit that has a real file listing.
			continue
		}
		meta, err := a.readCommit(ctx, inst)
		if err != nil {
			return model.Snapshot{}, err
		}
		added, removed, err := a.filesFromCommit(ctx, table.ReadSchema, table.PartitionSpec, meta)
		if err != nil {
			return model.Snapshot{}, err
		}
		for _, f := range added {
			active[f.Path] = f
		}
		for _, p := range removed {
			delete(active, p)
		}
	}
	files := make([]model.DataFile, 0, len(active))
	for _, f := range active {
		files = append(files, f)
	}

	catalog, err := a.GetSchemaCatalog(ctx, model.VersionToken{Raw: current.Timestamp})
	if err != nil {
		return model.Snapshot{}, err
	}
	ord, _ := strconv.ParseInt(current.Timestamp, 10, 64)
	return model.Snapshot{
		Table:         table,
		SchemaCatalog: catalog,
		Files:         model.GroupFiles(files),
		SourceVersion: model.VersionToken{Raw: current.Timestamp, Ord: ord},
	}, nil
}

func (a *Adapter) GetCommitState(ctx context.Context, afterInstantMs int64, after *model.VersionToken) (source.CommitPlan, error) {
	instants, err := a.listInstants(ctx)
	if err != nil {
		return source.CommitPlan{}, err
	}
	if len(instants) == 0 {
		return source.CommitPlan{}, nil
	}
	afterTimestamp := ""
	if after != nil {
		afterTimestamp = after.Raw
	}
	if afterTimestamp != "" && afterTimestamp < instants[0].Timestamp {
		// The checkpointed instant predates the earliest retained timeline
		// entry: Hudi's cleaner service has archived past it.
		return source.CommitPlan{MustDoFullSync: true}, nil
	}

	var plan []model.VersionToken
	for _, inst := range instants {
		if inst.Timestamp <= afterTimestamp {
			continue
		}
		if inst.MergeOnRead {
			// Skip the commit rather than abort the round: a copy-on-write
			// target can still apply every other commit in this plan.
			continue
		}
		ord, _ := strconv.ParseInt(inst.Timestamp, 10, 64)
		plan = append(plan, model.VersionToken{Raw: inst.Timestamp, Ord: ord})
	}
	return source.CommitPlan{CommitsToProcess: plan}, nil
}

func (a *Adapter) GetCommit(ctx context.Context, v model.VersionToken) (model.Commit, error) {
	table, err := a.GetTable(ctx, v)
	if err != nil {
		return model.Commit{}, err
	}
	instants, err := a.listInstants(ctx)
	if err != nil {
		return model.Commit{}, err
	}
	var inst instant
	found := false
	for _, i := range instants {
		if i.Timestamp == v.Raw {
			inst, found = i, true
			break
		}
	}
	if !found {
		return model.Commit{}, model.Newf(model.ErrSourceVersionMissing, "instant %s not found in timeline", v.Raw)
	}
	meta, err := a.readCommit(ctx, inst)
	if err != nil {
		return model.Commit{}, err
	}
	added, removedPaths, err := a.filesFromCommit(ctx, table.ReadSchema, table.PartitionSpec, meta)
	if err != nil {
		return model.Commit{}, err
	}
	removed := make([]model.DataFile, 0, len(removedPaths))
	for _, p := range removedPaths {
		removed = append(removed, model.DataFile{Path: p})
	}

	diff := model.NewDataFilesDiff(added, removed)
	if err := diff.Validate(); err != nil {
		return model.Commit{}, err
	}
	return model.Commit{Version: v, TimestampMs: v.Ord, FilesDiff: diff, TableAfter: table}, nil
}

var _ source.Adapter = (*Adapter)(nil)
