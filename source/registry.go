package source

import (
	"fmt"

	"lakebridge/model"
)

// Registry maps a source format tag to the Factory that constructs an
// Adapter for it. cmd/lakebridge builds one at startup from the format
// packages' own constructors; nothing in this package imports delta,
// iceberg or hudi directly, so the dependency only runs one way.
type Registry map[model.SourceFormat]Factory

// Adapter looks up and invokes the Factory registered for format.
func (r Registry) Adapter(format model.SourceFormat, basePath string, hadoopConf map[string]string) (Adapter, error) {
	factory, ok := r[format]
	if !ok {
		return nil, model.Newf(model.ErrConfigError, "no source adapter registered for format %q", format)
	}
	adapter, err := factory(basePath, hadoopConf)
	if err != nil {
		return nil, fmt.Errorf("constructing %s source adapter: %w", format, err)
	}
	return adapter, nil
}
