package pricing

import (
	"bytes"
	"embed"
	"fmt"

	"github.com/janekbaraniewski/ccost/internal/core"
)

//go:embed snapshots/*.json
var snapshotFS embed.FS

// Embedded loads the bundled per-source snapshots for the given sources.
func Embedded(kinds []core.SourceKind) (Table, error) {
	table := make(Table)
	for _, kind := range kinds {
		data, err := snapshotFS.ReadFile("snapshots/" + string(kind) + ".json")
		if err != nil {
			return nil, fmt.Errorf("read %s pricing snapshot: %w", kind, err)
		}
		part, err := decodeLiteLLM(bytes.NewReader(data), []core.SourceKind{kind})
		if err != nil {
			return nil, fmt.Errorf("%s pricing snapshot: %w", kind, err)
		}
		table.Merge(part)
	}
	return table, nil
}
