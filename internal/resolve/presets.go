package resolve

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// Preset is a TOML recipe file letting a project extend or override the
// built-in status/type/priority synonym tables (spec.md §4.6), grounded on
// the teacher's formula.go preset-file convention (TOML as the declarative
// customization format, searched project-then-user).
type Preset struct {
	Status   map[string]string `toml:"status"`
	Type     map[string]string `toml:"type"`
	Priority map[string]string `toml:"priority"`
}

// LoadPresetFile reads a TOML preset from path and merges its entries into
// the built-in synonym tables; project entries win over built-ins with the
// same key. Missing keys in a preset section are left untouched.
func LoadPresetFile(path string) error {
	var p Preset
	if _, err := toml.DecodeFile(path, &p); err != nil {
		return fmt.Errorf("decoding synonym preset %s: %w", path, err)
	}
	mergeInto(statusSynonyms, p.Status)
	mergeInto(typeSynonyms, p.Type)
	mergeInto(prioritySynonyms, p.Priority)
	return nil
}

func mergeInto(table map[string]string, overrides map[string]string) {
	for k, v := range overrides {
		table[strings.ToLower(strings.TrimSpace(k))] = strings.ToLower(strings.TrimSpace(v))
	}
}
