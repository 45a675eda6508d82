package column

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/oakwood-commons/gridx/internal/value"
)

// fileColumn is the YAML shape of one column definition. The field names
// match the backend's field-config records so the same documents can be
// served or checked in as fixtures.
type fileColumn struct {
	Key           string   `yaml:"key"`
	Label         string   `yaml:"label"`
	Kind          string   `yaml:"kind"`
	Editable      bool     `yaml:"editable"`
	Required      bool     `yaml:"required"`
	Formula       string   `yaml:"formula"`
	AllowOverride bool     `yaml:"allowOverride"`
	LookupTable   string   `yaml:"lookupTable"`
	Default       any      `yaml:"default"`
	Aliases       []string `yaml:"aliases"`
}

// configFile is the top-level YAML document.
type configFile struct {
	Columns []fileColumn `yaml:"columns"`
}

// LoadYAML builds a registry from a YAML column-configuration document.
func LoadYAML(data []byte) (*Registry, error) {
	var file configFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode column config: %w", err)
	}
	if len(file.Columns) == 0 {
		return nil, fmt.Errorf("column config has no columns")
	}
	defs := make([]Definition, 0, len(file.Columns))
	for _, fc := range file.Columns {
		defs = append(defs, Definition{
			Key:           fc.Key,
			Label:         fc.Label,
			Kind:          Kind(fc.Kind),
			Editable:      fc.Editable,
			Required:      fc.Required,
			Formula:       fc.Formula,
			AllowOverride: fc.AllowOverride,
			LookupTable:   fc.LookupTable,
			Default:       value.FromAny(fc.Default),
			Aliases:       fc.Aliases,
		})
	}
	return NewRegistry(defs)
}
