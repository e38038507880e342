// Package delta implements the source adapter contract against a Delta
// Lake transaction log (_delta_log/*.json plus optional checkpoints).
package delta

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"

	translatedelta "lakebridge/translate/delta"

	"lakebridge/model"
	"lakebridge/source"
	"lakebridge/storage"
)

const logDir = "_delta_log"

// action is one line of a Delta commit JSON file. Exactly one of the
// pointer fields is non-nil per action, matching Delta's single-action-
// per-line log encoding.
type action struct {
	Add        *addAction        `json:"add,omitempty"`
	Remove     *removeAction     `json:"remove,omitempty"`
	MetaData   *metaDataAction   `json:"metaData,omitempty"`
	Protocol   *protocolAction   `json:"protocol,omitempty"`
	CommitInfo *commitInfoAction `json:"commitInfo,omitempty"`
	Txn        *txnAction        `json:"txn,omitempty"`
}

type addAction struct {
	Path             string            `json:"path"`
	PartitionValues  map[string]string `json:"partitionValues"`
	Size             int64             `json:"size"`
	ModificationTime int64             `json:"modificationTime"`
	DataChange       bool              `json:"dataChange"`
	Stats            string            `json:"stats,omitempty"`
}

type removeAction struct {
	Path             string            `json:"path"`
	PartitionValues  map[string]string `json:"partitionValues"`
	DeletionTimestamp int64            `json:"deletionTimestamp"`
	DataChange       bool              `json:"dataChange"`
}

type metaDataAction struct {
	ID              string            `json:"id"`
	SchemaString    string            `json:"schemaString"`
	PartitionColumns []string         `json:"partitionColumns"`
	Configuration   map[string]string `json:"configuration"`
}

type protocolAction struct {
	MinReaderVersion int `json:"minReaderVersion"`
	MinWriterVersion int `json:"minWriterVersion"`
}

type commitInfoAction struct {
	Timestamp int64 `json:"timestamp"`
}

type txnAction struct {
	AppID string `json:"appId"`
}

// deltaSchema is the JSON shape of a Delta "schemaString" value (a
// serialized Spark StructType).
type deltaSchema struct {
	Type   string                     `json:"type"`
	Fields []translatedelta.StructField `json:"fields"`
}

// Adapter reads a Delta table's transaction log.
type Adapter struct {
	store    storage.Storage
	basePath string
	cache    *source.ChangesCache
	// cacheStart is the start version of the cache line GetCommitState most
	// recently populated, letting actionsForVersion find it again without
	// the caller having to repeat it.
	cacheStart *model.VersionToken
}

// New constructs a Delta source Adapter reading the table at basePath
// through the Storage the caller hands in.
func New(store storage.Storage, basePath string) *Adapter {
	return &Adapter{store: store, basePath: basePath, cache: source.NewChangesCache(64)}
}

// NewAdapter constructs a source.Adapter backed by the local filesystem.
// The hadoopConf map is accepted for interface symmetry with other format
// factories and is not used.
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

func (a *Adapter) logPath(version int64) string {
	return path.Join(a.basePath, logDir, fmt.Sprintf("%020d.json", version))
}

func (a *Adapter) listVersions(ctx context.Context) ([]int64, error) {
	files, err := a.store.List(ctx, path.Join(a.basePath, logDir))
	if err != nil {
		return nil, err
	}
	var versions []int64
	for _, f := range files {
		base := f[strings.LastIndex(f, "/")+1:]
		if !strings.HasSuffix(base, ".json") {
			continue
		}
		v, err := strconv.ParseInt(strings.TrimSuffix(base, ".json"), 10, 64)
		if err != nil {
			continue
		}
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions, nil
}

func (a *Adapter) readActions(ctx context.Context, version int64) ([]action, error) {
	r, err := a.store.Read(ctx, a.logPath(version))
	if err != nil {
		return nil, model.Wrapf(model.ErrSourceReadError, err, "reading delta log version %d", version)
	}
	defer r.Close()

	var actions []action
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var a action
		if err := json.Unmarshal(line, &a); err != nil {
			return nil, model.Wrapf(model.ErrSourceReadError, err, "parsing delta log version %d", version)
		}
		actions = append(actions, a)
	}
	if err := scanner.Err(); err != nil {
		return nil, model.Wrapf(model.ErrSourceReadError, err, "scanning delta log version %d", version)
	}
	return actions, nil
}

// latestMetadata scans actions up to and including version for the most
// recent metaData action, to resolve the active schema/partition columns
// at that point.
func (a *Adapter) latestMetadata(ctx context.Context, version int64) (*metaDataAction, error) {
	versions, err := a.listVersions(ctx)
	if err != nil {
		return nil, err
	}
	var latest *metaDataAction
	for _, v := range versions {
		if v > version {
			break
		}
		actions, err := a.readActions(ctx, v)
		if err != nil {
			return nil, err
		}
		for _, act := range actions {
			if act.MetaData != nil {
				latest = act.MetaData
			}
		}
	}
	if latest == nil {
		return nil, model.Newf(model.ErrSourceReadError, "no metaData action found at or before version %d", version)
	}
	return latest, nil
}

func (a *Adapter) GetTable(ctx context.Context, at model.VersionToken) (model.TableDescriptor, error) {
	meta, err := a.latestMetadata(ctx, at.Ord)
	if err != nil {
		return model.TableDescriptor{}, err
	}
	schema, err := a.parseSchema(meta.SchemaString)
	if err != nil {
		return model.TableDescriptor{}, err
	}
	cols := make([]translatedelta.PartitionColumnRef, 0, len(meta.PartitionColumns))
	for _, name := range meta.PartitionColumns {
		cols = append(cols, translatedelta.PartitionColumnRef{Name: name})
	}
	spec, err := translatedelta.ToCanonicalPartitionSpecFromNames(schema, cols)
	if err != nil {
		return model.TableDescriptor{}, err
	}
	layout := model.LayoutFlat
	if len(spec) > 0 {
		layout = model.LayoutDirHierarchyPartitionValues
	}
	return model.TableDescriptor{
		SourceFormat:   model.FormatDelta,
		BasePath:       a.basePath,
		ReadSchema:     schema,
		PartitionSpec:  spec,
		LayoutStrategy: layout,
	}, nil
}

func (a *Adapter) parseSchema(schemaString string) (*model.Schema, error) {
	var s deltaSchema
	if err := json.Unmarshal([]byte(schemaString), &s); err != nil {
		return nil, model.Wrap(model.ErrInvalidSchema, "parsing delta schemaString", err)
	}
	return translatedelta.ToCanonicalSchema(s.Fields)
}

func (a *Adapter) GetSchemaCatalog(ctx context.Context, at model.VersionToken) (map[model.SchemaVersion]*model.Schema, error) {
	versions, err := a.listVersions(ctx)
	if err != nil {
		return nil, err
	}
	catalog := make(map[model.SchemaVersion]*model.Schema)
	for _, v := range versions {
		if v > at.Ord {
			break
		}
		actions, err := a.readActions(ctx, v)
		if err != nil {
			return nil, err
		}
		for _, act := range actions {
			if act.MetaData == nil {
				continue
			}
			schema, err := a.parseSchema(act.MetaData.SchemaString)
			if err != nil {
				return nil, err
			}
			catalog[model.NewSchemaVersion(v)] = schema
		}
	}
	return catalog, nil
}

func (a *Adapter) GetCurrentSnapshot(ctx context.Context) (model.Snapshot, error) {
	versions, err := a.listVersions(ctx)
	if err != nil {
		return model.Snapshot{}, err
	}
	if len(versions) == 0 {
		return model.Snapshot{}, model.New(model.ErrSourceVersionMissing, "delta table has no commits")
	}
	current := versions[len(versions)-1]
	table, err := a.GetTable(ctx, model.VersionToken{Ord: current})
	if err != nil {
		return model.Snapshot{}, err
	}

	active := map[string]model.DataFile{}
	for _, v := range versions {
		actions, err := a.readActions(ctx, v)
		if err != nil {
			return model.Snapshot{}, err
		}
		for _, act := range actions {
			if act.Add != nil {
				df, err := a.toDataFile(ctx, table.ReadSchema, table.PartitionSpec, *act.Add)
				if err != nil {
					return model.Snapshot{}, err
				}
				active[act.Add.Path] = df
			}
			if act.Remove != nil {
				delete(active, act.Remove.Path)
			}
		}
	}
	files := make([]model.DataFile, 0, len(active))
	for _, f := range active {
		files = append(files, f)
	}

	catalog, err := a.GetSchemaCatalog(ctx, model.VersionToken{Ord: current})
	if err != nil {
		return model.Snapshot{}, err
	}
	return model.Snapshot{
		Table:         table,
		SchemaCatalog: catalog,
		Files:         model.GroupFiles(files),
		SourceVersion: model.VersionToken{Raw: fmt.Sprintf("%d", current), Ord: current},
	}, nil
}

// toDataFile resolves one add action's partition values and column
// statistics. Statistics come from the action's inline stats JSON when
// present; otherwise they are recovered from the physical Parquet file's
// footer, since Delta tables written without statistics collection carry
// no inline stats at all.
func (a *Adapter) toDataFile(ctx context.Context, schema *model.Schema, spec model.PartitionSpec, add addAction) (model.DataFile, error) {
	values, err := translatedelta.PartitionValuesFromNames(schema, spec, add.PartitionValues)
	if err != nil {
		return model.DataFile{}, err
	}
	df := model.DataFile{
		Path:            add.Path,
		Format:          model.FormatParquet,
		PartitionValues: values,
		FileSizeBytes:   add.Size,
		LastModifiedMs:  add.ModificationTime,
	}

	if add.Stats != "" {
		stats, numRecords, err := translatedelta.StatsFromInline(add.Stats, schema)
		if err != nil {
			return model.DataFile{}, err
		}
		df.ColumnStats = stats
		df.RecordCount = numRecords
		return df, nil
	}
	if stats, numRecords, err := a.statsFromFooter(ctx, schema, add.Path); err == nil {
		df.ColumnStats = stats
		df.RecordCount = numRecords
	}
	return df, nil
}

func (a *Adapter) statsFromFooter(ctx context.Context, schema *model.Schema, filePath string) (map[int32]model.ColumnStat, int64, error) {
	r, err := a.store.Read(ctx, filePath)
	if err != nil {
		return nil, 0, err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, err
	}
	return translatedelta.StatsFromParquetFooter(bytes.NewReader(data), int64(len(data)), schema)
}

func (a *Adapter) GetCommitState(ctx context.Context, afterInstantMs int64, after *model.VersionToken) (source.CommitPlan, error) {
	versions, err := a.listVersions(ctx)
	if err != nil {
		return source.CommitPlan{}, err
	}
	if len(versions) == 0 {
		return source.CommitPlan{}, nil
	}
	earliest := versions[0]
	var startOrd int64 = earliest - 1
	if after != nil {
		startOrd = after.Ord
	}
	if startOrd < earliest-1 {
		// Requested checkpoint predates the earliest retained log entry:
		// the log has been truncated (e.g. by a retention/vacuum policy).
		return source.CommitPlan{MustDoFullSync: true}, nil
	}
	var plan []model.VersionToken
	var actionLines []source.ActionList
	for _, v := range versions {
		if v <= startOrd {
			continue
		}
		actions, err := a.readActions(ctx, v)
		if err != nil {
			return source.CommitPlan{}, err
		}
		token := model.VersionToken{Raw: fmt.Sprintf("%d", v), Ord: v}
		plan = append(plan, token)
		actionLines = append(actionLines, source.ActionList{Version: token, Actions: actions})
	}
	startToken := model.VersionToken{Raw: fmt.Sprintf("%d", startOrd), Ord: startOrd}
	a.cache.Put(a.basePath, startToken, actionLines)
	a.cacheStart = &startToken
	return source.CommitPlan{CommitsToProcess: plan}, nil
}

func (a *Adapter) GetCommit(ctx context.Context, v model.VersionToken) (model.Commit, error) {
	actions, err := a.actionsForVersion(ctx, v)
	if err != nil {
		return model.Commit{}, err
	}
	table, err := a.GetTable(ctx, v)
	if err != nil {
		return model.Commit{}, err
	}

	var added, removed []model.DataFile
	var timestampMs int64
	for _, act := range actions {
		if act.Add != nil {
			df, err := a.toDataFile(ctx, table.ReadSchema, table.PartitionSpec, *act.Add)
			if err != nil {
				return model.Commit{}, err
			}
			added = append(added, df)
		}
		if act.Remove != nil {
			removed = append(removed, model.DataFile{Path: act.Remove.Path})
		}
		if act.CommitInfo != nil {
			timestampMs = act.CommitInfo.Timestamp
		}
	}

	diff := model.NewDataFilesDiff(added, removed)
	if err := diff.Validate(); err != nil {
		return model.Commit{}, err
	}
	return model.Commit{Version: v, TimestampMs: timestampMs, FilesDiff: diff, TableAfter: table}, nil
}

// actionsForVersion serves from the round cache populated by the most
// recent GetCommitState call when available, falling back to a direct log
// read otherwise (e.g. a caller requesting a single commit outside of the
// cached range, or before GetCommitState has ever run).
func (a *Adapter) actionsForVersion(ctx context.Context, v model.VersionToken) ([]action, error) {
	if a.cacheStart != nil {
		if line, ok := a.cache.Get(a.basePath, *a.cacheStart, v); ok {
			if actions, ok := line.Actions.([]action); ok {
				return actions, nil
			}
		}
	}
	return a.readActions(ctx, v.Ord)
}

var _ source.Adapter = (*Adapter)(nil)
