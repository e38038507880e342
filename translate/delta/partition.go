// Package delta translates between Delta Lake's native partition and schema
// representations and the canonical model.
package delta

import (
	"fmt"
	"regexp"
	"strings"

	"lakebridge/model"
)

const (
	generationExpressionProperty = "delta.generationExpression"
	partitionColNameFormat       = "lakebridge_partition_col_%s_%s"

	dateFormatForHour  = "yyyy-MM-dd-HH"
	dateFormatForDay   = "yyyy-MM-dd"
	dateFormatForMonth = "yyyy-MM"
	dateFormatForYear  = "yyyy"
)

var (
	yearPattern  = regexp.MustCompile(`YEAR\(([^)]+)\)`)
	monthPattern = regexp.MustCompile(`MONTH\(([^)]+)\)`)
	dayPattern   = regexp.MustCompile(`DAY\(([^)]+)\)`)
	hourPattern  = regexp.MustCompile(`HOUR\(([^)]+)\)`)
	castPattern  = regexp.MustCompile(`CAST\(([^ ]+) AS DATE\)`)
)

// generatedExprKind tags which generated-column shape a parsed expression
// matched; DATE_FORMAT further carries the granularity it resolved to.
type generatedExprKind int

const (
	exprYear generatedExprKind = iota
	exprMonth
	exprDay
	exprHour
	exprCast
	exprDateFormat
)

type parsedGeneratedExpr struct {
	sourceColumn string
	kind         generatedExprKind
	granularity  model.TransformType // only meaningful for exprDateFormat
}

// parseGeneratedExpr extracts the source column and transform shape from a
// Delta generated-column expression string such as "YEAR(ts)" or
// "DATE_FORMAT(ts, 'yyyy-MM')".
func parseGeneratedExpr(expr string) (parsedGeneratedExpr, error) {
	switch {
	case strings.Contains(expr, "YEAR"):
		col, err := extractColumn(expr, yearPattern)
		return parsedGeneratedExpr{sourceColumn: col, kind: exprYear}, err
	case strings.Contains(expr, "MONTH"):
		col, err := extractColumn(expr, monthPattern)
		return parsedGeneratedExpr{sourceColumn: col, kind: exprMonth}, err
	case strings.Contains(expr, "DAY"):
		col, err := extractColumn(expr, dayPattern)
		return parsedGeneratedExpr{sourceColumn: col, kind: exprDay}, err
	case strings.Contains(expr, "HOUR"):
		col, err := extractColumn(expr, hourPattern)
		return parsedGeneratedExpr{sourceColumn: col, kind: exprHour}, err
	case strings.Contains(expr, "CAST"):
		col, err := extractColumn(expr, castPattern)
		return parsedGeneratedExpr{sourceColumn: col, kind: exprCast}, err
	case strings.Contains(expr, "DATE_FORMAT"):
		return parseDateFormatExpr(expr)
	default:
		return parsedGeneratedExpr{}, model.Newf(model.ErrUnsupportedPartitionTransform,
			"unsupported generated expression: %s", expr)
	}
}

func parseDateFormatExpr(expr string) (parsedGeneratedExpr, error) {
	if !strings.HasPrefix(expr, "DATE_FORMAT(") || !strings.HasSuffix(expr, ")") {
		return parsedGeneratedExpr{}, model.Newf(model.ErrUnsupportedPartitionTransform,
			"could not extract values from: %s", expr)
	}
	firstParen := strings.Index(expr, "(")
	comma := strings.Index(expr, ",")
	lastParen := strings.LastIndex(expr, ")")
	if comma < 0 || lastParen <= comma {
		return parsedGeneratedExpr{}, model.Newf(model.ErrUnsupportedPartitionTransform,
			"could not extract values from: %s", expr)
	}
	dateFormat := strings.Trim(strings.TrimSpace(expr[comma+1:lastParen]), "'")
	granularity, err := granularityForDateFormat(dateFormat)
	if err != nil {
		return parsedGeneratedExpr{}, err
	}
	return parsedGeneratedExpr{
		sourceColumn: strings.TrimSpace(expr[firstParen+1 : comma]),
		kind:         exprDateFormat,
		granularity:  granularity,
	}, nil
}

func granularityForDateFormat(format string) (model.TransformType, error) {
	switch format {
	case dateFormatForHour:
		return model.TransformHour, nil
	case dateFormatForDay:
		return model.TransformDay, nil
	case dateFormatForMonth:
		return model.TransformMonth, nil
	default:
		return 0, model.Newf(model.ErrUnsupportedPartitionTransform,
			"unsupported date format expression: %s", format)
	}
}

func extractColumn(expr string, pattern *regexp.Regexp) (string, error) {
	m := pattern.FindStringSubmatch(expr)
	if m == nil {
		return "", model.Newf(model.ErrUnsupportedPartitionTransform,
			"could not extract column name from: %s using pattern %s", expr, pattern.String())
	}
	return strings.TrimSpace(m[1]), nil
}

// PartitionColumn is the minimal description of a Delta partitionSchema
// struct field this package needs: its name, and, for generated columns, the
// generation expression recorded in its metadata.
type PartitionColumn struct {
	Name                 string
	GenerationExpression string // empty if this is a plain VALUE partition column
}

// ToCanonicalPartitionSpec translates a Delta partition schema into a
// canonical PartitionSpec. Value-transform columns are resolved directly;
// generated columns are grouped by source column and collapsed to the
// finest time granularity present, matching Delta's own conventions for
// YEAR/MONTH/DAY/HOUR generated partition columns.
func ToCanonicalPartitionSpec(schema *model.Schema, cols []PartitionColumn) (model.PartitionSpec, error) {
	var spec model.PartitionSpec
	var generated []parsedGeneratedExpr

	for _, c := range cols {
		if c.GenerationExpression == "" {
			field, ok := model.FieldByPath(schema, c.Name)
			if !ok || field.FieldID == nil {
				return nil, model.Newf(model.ErrInvalidPartitionSpec,
					"partition column %q not found in schema", c.Name)
			}
			spec = append(spec, model.PartitionField{SourceFieldID: *field.FieldID, Transform: model.TransformValue})
			continue
		}
		parsed, err := parseGeneratedExpr(c.GenerationExpression)
		if err != nil {
			return nil, err
		}
		generated = append(generated, parsed)
	}

	if len(generated) == 0 {
		return spec, nil
	}

	timeField, rest, err := collapseTimeGranularity(generated)
	if err != nil {
		return nil, err
	}
	if timeField != nil {
		field, ok := model.FieldByPath(schema, timeField.sourceColumn)
		if !ok || field.FieldID == nil {
			return nil, model.Newf(model.ErrInvalidPartitionSpec,
				"partition source column %q not found in schema", timeField.sourceColumn)
		}
		spec = append(spec, model.PartitionField{SourceFieldID: *field.FieldID, Transform: timeField.transform()})
	}

	for _, p := range rest {
		field, ok := model.FieldByPath(schema, p.sourceColumn)
		if !ok || field.FieldID == nil {
			return nil, model.Newf(model.ErrInvalidPartitionSpec,
				"partition source column %q not found in schema", p.sourceColumn)
		}
		spec = append(spec, model.PartitionField{SourceFieldID: *field.FieldID, Transform: p.transform()})
	}
	return spec, nil
}

func (p parsedGeneratedExpr) transform() model.TransformType {
	switch p.kind {
	case exprYear:
		return model.TransformYear
	case exprMonth:
		return model.TransformMonth
	case exprDay, exprCast:
		return model.TransformDay
	case exprHour:
		return model.TransformHour
	case exprDateFormat:
		return p.granularity
	default:
		return model.TransformValue
	}
}

// collapseTimeGranularity implements the finest-granularity-wins collapse:
// HOUR requires matching DAY/MONTH/YEAR siblings on the same source column
// and collapses to a single HOUR partition field; DAY requires MONTH/YEAR;
// MONTH requires YEAR. CAST(... AS DATE) counts as DAY and DATE_FORMAT
// counts as the granularity of its pattern. Expressions not consumed by the
// collapse are returned unchanged in rest.
func collapseTimeGranularity(exprs []parsedGeneratedExpr) (collapsed *parsedGeneratedExpr, rest []parsedGeneratedExpr, err error) {
	byKind := func(kind generatedExprKind) []parsedGeneratedExpr {
		want := parsedGeneratedExpr{kind: kind}.transform()
		var out []parsedGeneratedExpr
		for _, e := range exprs {
			if e.transform() == want {
				out = append(out, e)
			}
		}
		return out
	}

	hours := byKind(exprHour)
	if len(hours) > 1 {
		return nil, nil, model.New(model.ErrInvalidPartitionSpec, "multiple hour transforms found and currently not supported")
	}
	if len(hours) == 1 {
		hour := hours[0]
		days := byKind(exprDay)
		months := byKind(exprMonth)
		years := byKind(exprYear)
		if err := requireSingleMatching(days, hour.sourceColumn, "day", "hour"); err != nil {
			return nil, nil, err
		}
		if err := requireSingleMatching(months, hour.sourceColumn, "month", "hour"); err != nil {
			return nil, nil, err
		}
		if err := requireSingleMatching(years, hour.sourceColumn, "year", "hour"); err != nil {
			return nil, nil, err
		}
		h := hour
		return &h, remaining(exprs, hour, days[0], months[0], years[0]), nil
	}

	days := byKind(exprDay)
	if len(days) > 1 {
		return nil, nil, model.New(model.ErrInvalidPartitionSpec, "multiple day transforms found and currently not supported")
	}
	if len(days) == 1 {
		day := days[0]
		months := byKind(exprMonth)
		years := byKind(exprYear)
		if err := requireSingleMatching(months, day.sourceColumn, "month", "day"); err != nil {
			return nil, nil, err
		}
		if err := requireSingleMatching(years, day.sourceColumn, "year", "day"); err != nil {
			return nil, nil, err
		}
		d := day
		return &d, remaining(exprs, day, months[0], years[0]), nil
	}

	months := byKind(exprMonth)
	if len(months) > 1 {
		return nil, nil, model.New(model.ErrInvalidPartitionSpec, "multiple month transforms found and currently not supported")
	}
	if len(months) == 1 {
		month := months[0]
		years := byKind(exprYear)
		if err := requireSingleMatching(years, month.sourceColumn, "year", "month"); err != nil {
			return nil, nil, err
		}
		m := month
		return &m, remaining(exprs, month, years[0]), nil
	}

	years := byKind(exprYear)
	if len(years) > 1 {
		return nil, nil, model.New(model.ErrInvalidPartitionSpec, "multiple year transforms found and currently not supported")
	}
	if len(years) == 1 {
		y := years[0]
		return &y, remaining(exprs, y), nil
	}

	return nil, exprs, nil
}

func requireSingleMatching(candidates []parsedGeneratedExpr, sourceColumn, name, against string) error {
	if len(candidates) == 0 {
		return model.Newf(model.ErrInvalidPartitionSpec, "%s transform not found to match %s transform", name, against)
	}
	if len(candidates) > 1 {
		return model.Newf(model.ErrInvalidPartitionSpec, "multiple %s transforms found", name)
	}
	if candidates[0].sourceColumn != sourceColumn {
		return model.Newf(model.ErrInvalidPartitionSpec, "%s transform not matching %s transform's source column", name, against)
	}
	return nil
}

// remaining returns every expr in exprs not among the consumed members of
// the collapsed time hierarchy.
func remaining(exprs []parsedGeneratedExpr, consumed ...parsedGeneratedExpr) []parsedGeneratedExpr {
	var out []parsedGeneratedExpr
	for _, e := range exprs {
		isConsumed := false
		for _, c := range consumed {
			if c == e {
				isConsumed = true
				break
			}
		}
		if !isConsumed {
			out = append(out, e)
		}
	}
	return out
}

// GeneratedColumnName reproduces Delta's naming convention for a synthetic
// generated partition column.
func GeneratedColumnName(transform model.TransformType, sourceFieldName string) string {
	return fmt.Sprintf(partitionColNameFormat, transform, sourceFieldName)
}

// PartitionColumnRef names one entry of a Delta metaData action's
// "partitionColumns" list, before it has been matched up against the
// table's schema fields to discover whether it is a generated column.
type PartitionColumnRef struct {
	Name string
}

// ToCanonicalPartitionSpecFromNames delegates partitionColumns to
// ToCanonicalPartitionSpec as plain VALUE partition columns. It does not
// look up generation expressions, so generated time-transform columns are
// not recognized here: each name must match a schema field with a field id.
func ToCanonicalPartitionSpecFromNames(schema *model.Schema, refs []PartitionColumnRef) (model.PartitionSpec, error) {
	cols := make([]PartitionColumn, 0, len(refs))
	for _, ref := range refs {
		cols = append(cols, PartitionColumn{Name: ref.Name})
	}
	return ToCanonicalPartitionSpec(schema, cols)
}

// PartitionValuesFromNames converts a Delta add-action's raw
// "partitionValues" map (column name -> string-serialized value) into the
// canonical Range map keyed by PartitionField, matching each spec field
// against either its own schema field name (VALUE transform) or its
// synthesized generated-column name (time transforms).
func PartitionValuesFromNames(schema *model.Schema, spec model.PartitionSpec, raw map[string]string) (map[model.PartitionField]model.Range, error) {
	index := model.BuildFieldIndex(schema)
	values := make(map[model.PartitionField]model.Range, len(spec))
	for _, pf := range spec {
		path, ok := index[pf.SourceFieldID]
		if !ok {
			return nil, model.Newf(model.ErrInvalidPartitionSpec, "no schema field for source field id %d", pf.SourceFieldID)
		}
		columnName := path
		if pf.Transform != model.TransformValue {
			columnName = GeneratedColumnName(pf.Transform, path)
		}
		v, present := raw[columnName]
		if !present {
			values[pf] = model.ScalarRange(nil)
			continue
		}
		values[pf] = model.ScalarRange(v)
	}
	return values, nil
}

// DateFormatFor returns the Delta DATE_FORMAT pattern matching a given time
// transform granularity, used both when emitting generated columns and when
// serializing partition values.
func DateFormatFor(transform model.TransformType) (string, error) {
	switch transform {
	case model.TransformYear:
		return dateFormatForYear, nil
	case model.TransformMonth:
		return dateFormatForMonth, nil
	case model.TransformDay:
		return dateFormatForDay, nil
	case model.TransformHour:
		return dateFormatForHour, nil
	default:
		return "", model.New(model.ErrUnsupportedPartitionTransform, "invalid transform type for date format")
	}
}
