package data

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownType is returned for a data type with no registered layer.
	ErrUnknownType = errors.New("unknown data type")
	// ErrTypeMismatch is returned when a layer is requested with another record type.
	ErrTypeMismatch = errors.New("data type registered with a different record type")
	// ErrMissingID rejects a record without an id.
	ErrMissingID = errors.New("record without id")
)

// DataType names one kind of configuration record.
type DataType string

const (
	TypeElements       DataType = "elements"
	TypeReactions      DataType = "reactions"
	TypeAttackDefense  DataType = "attack_defense_reactions"
	TypeCombinations   DataType = "combinations"
	TypeEntityBindings DataType = "entity_bindings"
)

// AllTypes lists the data types the engine consumes.
var AllTypes = []DataType{TypeElements, TypeReactions, TypeAttackDefense, TypeCombinations, TypeEntityBindings}

// Record is implemented by every definition stored in a layer.
type Record interface {
	RecordID() string
	Validate() error
}

// Source provides the id→definition map of one data type.
// Higher Priority wins during a priority-highest merge.
type Source[T any] interface {
	SourceType() string
	Priority() int
	Load(ctx context.Context) (map[string]T, error)
	SupportsHotReload() bool
	Available() bool
}

// Strategy selects how sources of one layer are merged.
type Strategy int8

const (
	// PriorityHighest: the highest-priority source claiming an id owns it entirely.
	PriorityHighest Strategy = iota
	// Overwrite: sources are applied lowest priority first, each replacing earlier records.
	Overwrite
	// SourceWhitelist: only sources at the maximum available priority contribute.
	SourceWhitelist
)

func (s Strategy) String() string {
	switch s {
	case PriorityHighest:
		return "priority_highest"
	case Overwrite:
		return "overwrite"
	case SourceWhitelist:
		return "source_whitelist"
	}
	return fmt.Sprintf("Strategy(%d)", int8(s))
}

// ParseStrategy maps a config value to a Strategy; "" is PriorityHighest.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "priority_highest", "highest":
		return PriorityHighest, nil
	case "overwrite", "merge":
		return Overwrite, nil
	case "source_whitelist", "whitelist":
		return SourceWhitelist, nil
	}
	return PriorityHighest, fmt.Errorf("unknown merge strategy %q", s)
}
