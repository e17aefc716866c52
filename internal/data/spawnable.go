package data

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"github.com/innernet/server/internal/world"
	"gopkg.in/yaml.v3"
)

//go:embed spawnables.yaml
var defaultSpawnables []byte

// SpawnableEntry is one row of spawnables.yaml.
type SpawnableEntry struct {
	Index      uint32   `yaml:"index"`
	Name       string   `yaml:"name"`
	Components []string `yaml:"components"`
}

// LoadSpawnTable loads a spawnable list. An empty path loads the built-in list.
func LoadSpawnTable(path string) (*world.SpawnTable, error) {
	raw := defaultSpawnables
	if path != "" {
		var err error
		raw, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read spawnable list: %w", err)
		}
	}
	return ParseSpawnTable(raw)
}

// ParseSpawnTable parses spawnable YAML. Indexes must be contiguous from 0
// and every component name must be a known kind.
func ParseSpawnTable(raw []byte) (*world.SpawnTable, error) {
	var entries []SpawnableEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse spawnable list: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Index < entries[j].Index })

	templates := make([]world.SpawnTemplate, 0, len(entries))
	for i, e := range entries {
		if e.Index != uint32(i) {
			return nil, fmt.Errorf("spawnable list: expected index %d, got %d (%s)", i, e.Index, e.Name)
		}
		kinds := make([]world.Kind, 0, len(e.Components))
		for _, name := range e.Components {
			k, ok := world.ParseKind(name)
			if !ok {
				return nil, fmt.Errorf("spawnable %d (%s): unknown component %q", e.Index, e.Name, name)
			}
			kinds = append(kinds, k)
		}
		templates = append(templates, world.SpawnTemplate{Name: e.Name, Components: kinds})
	}
	return world.NewSpawnTable(templates)
}
