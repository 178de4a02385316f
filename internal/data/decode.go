package data

import (
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"
)

// decodeRecords decodes a YAML sequence (or id-keyed mapping) of records.
// Malformed or invalid records are logged and skipped; the rest still load.
func decodeRecords[T Record](dt DataType, node *yaml.Node, origin string) map[string]T {
	out := make(map[string]T)
	if node == nil {
		return out
	}

	add := func(item *yaml.Node, key string) {
		var def T
		if err := item.Decode(&def); err != nil {
			slog.Warn("skipping malformed record",
				"type", dt, "origin", origin, "line", item.Line, "err", err)
			return
		}
		id, err := checkRecord(def, key)
		if err != nil {
			slog.Warn("skipping invalid record",
				"type", dt, "origin", origin, "line", item.Line, "err", err)
			return
		}
		if _, dup := out[id]; dup {
			slog.Warn("duplicate record id in one source, keeping first",
				"type", dt, "origin", origin, "id", id)
			return
		}
		out[id] = def
	}

	switch node.Kind {
	case yaml.SequenceNode:
		for _, item := range node.Content {
			add(item, "")
		}
	case yaml.MappingNode:
		// id-keyed form: the key must agree with the record's own id
		for i := 0; i+1 < len(node.Content); i += 2 {
			add(node.Content[i+1], node.Content[i].Value)
		}
	default:
		slog.Warn("data section is neither a list nor a mapping",
			"type", dt, "origin", origin, "line", node.Line)
	}
	return out
}

// decodePayload decodes one JSON or YAML document into a record.
func decodePayload[T Record](payload []byte, key string) (T, error) {
	var def T
	if err := yaml.Unmarshal(payload, &def); err != nil {
		return def, fmt.Errorf("decoding %s: %w", key, err)
	}
	if _, err := checkRecord(def, key); err != nil {
		return def, err
	}
	return def, nil
}

func checkRecord[T Record](def T, key string) (string, error) {
	id := def.RecordID()
	if id == "" {
		return "", ErrMissingID
	}
	if key != "" && key != id {
		return "", fmt.Errorf("record key %q does not match id %q", key, id)
	}
	if err := def.Validate(); err != nil {
		return "", err
	}
	return id, nil
}
