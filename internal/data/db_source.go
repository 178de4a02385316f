package data

import (
	"context"
	"log/slog"
	"time"
)

// DefinitionStore is the persistence side of DBSource.
// Implemented by db.DefinitionRepository.
type DefinitionStore interface {
	LoadDefinitions(ctx context.Context, dataType string) (map[string][]byte, error)
	Ping(ctx context.Context) error
}

// DBSource serves one data type from JSON payloads kept in a database.
// Payloads decode through the records' yaml tags (JSON is valid YAML).
type DBSource[T Record] struct {
	store       DefinitionStore
	dataType    DataType
	priority    int
	pingTimeout time.Duration
}

// NewDBSource creates a hot-reloadable database source.
func NewDBSource[T Record](store DefinitionStore, dt DataType, priority int) *DBSource[T] {
	return &DBSource[T]{
		store:       store,
		dataType:    dt,
		priority:    priority,
		pingTimeout: 2 * time.Second,
	}
}

func (s *DBSource[T]) SourceType() string      { return "db" }
func (s *DBSource[T]) Priority() int           { return s.priority }
func (s *DBSource[T]) SupportsHotReload() bool { return true }

// Available pings the store; an unreachable database is skipped, not an error.
func (s *DBSource[T]) Available() bool {
	ctx, cancel := context.WithTimeout(context.Background(), s.pingTimeout)
	defer cancel()
	return s.store.Ping(ctx) == nil
}

// Load decodes every stored payload of the type; invalid rows are logged and skipped.
func (s *DBSource[T]) Load(ctx context.Context) (map[string]T, error) {
	rows, err := s.store.LoadDefinitions(ctx, string(s.dataType))
	if err != nil {
		return nil, err
	}

	out := make(map[string]T, len(rows))
	for id, payload := range rows {
		def, err := decodePayload[T](payload, id)
		if err != nil {
			slog.Warn("skipping invalid stored definition",
				"type", s.dataType, "id", id, "err", err)
			continue
		}
		out[id] = def
	}
	return out, nil
}
