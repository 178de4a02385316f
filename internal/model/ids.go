package model

import (
	"errors"
	"strings"
)

// ErrInvalidDefinition is wrapped by every Validate failure of a config record.
var ErrInvalidDefinition = errors.New("invalid definition")

// ElementID is a namespaced element key ("namespace:name").
type ElementID string

// Namespace returns the part before ':' or "" when the id is not namespaced.
func (id ElementID) Namespace() string {
	ns, _, ok := strings.Cut(string(id), ":")
	if !ok {
		return ""
	}
	return ns
}

// Name returns the part after ':' (the whole id when not namespaced).
func (id ElementID) Name() string {
	_, name, ok := strings.Cut(string(id), ":")
	if !ok {
		return string(id)
	}
	return name
}

// ActorID is the host's stable identity of a living entity.
type ActorID uint64
