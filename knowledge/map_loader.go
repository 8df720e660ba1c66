package knowledge

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// ItemsFromMaps converts loosely-typed guidance records (e.g. parsed from
// YAML or an admin upload) into indexable items. A "source" key, when
// present, is decoded into the typed Source.
func ItemsFromMaps(data []map[string]any) []*Item {
	items := make([]*Item, 0, len(data))
	for _, entry := range data {
		content := extractTextFromMap(entry)
		if content == "" {
			continue
		}

		item := &Item{
			Content:  content,
			Source:   Source{Type: SourceTypeMap},
			Metadata: entry,
		}
		if raw, ok := entry["source"]; ok {
			var src Source
			if err := mapstructure.Decode(raw, &src); err == nil {
				if src.Type == "" {
					src.Type = SourceTypeMap
				}
				item.Source = src
			}
		}

		items = append(items, item)
	}
	return items
}

// extractTextFromMap pulls searchable text out of a knowledge map,
// preferring conventional text fields.
func extractTextFromMap(entry map[string]any) string {
	textFields := []string{"content", "description", "title", "summary", "text", "name"}

	var parts []string
	for _, field := range textFields {
		if value, exists := entry[field]; exists {
			if str, ok := value.(string); ok && str != "" {
				parts = append(parts, str)
			}
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}

	// No conventional fields: take every string value in key order.
	keys := make([]string, 0, len(entry))
	for k := range entry {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if str, ok := entry[key].(string); ok && str != "" {
			parts = append(parts, fmt.Sprintf("%s: %s", key, str))
		}
	}
	return strings.Join(parts, " ")
}
