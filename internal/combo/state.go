package combo

import (
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/udisondev/elemcore/internal/model"
)

// modifierNamespace scopes combination modifier ids.
var modifierNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("elemcore:combination-modifier"))

// ModifierID returns the stable modifier id of one combination effect.
// The same (combination, attribute) pair always maps to the same id, so a
// host that replaces modifiers by id never stacks them.
func ModifierID(comboID, attribute string) string {
	return uuid.NewSHA1(modifierNamespace, []byte(comboID+"\x00"+attribute)).String()
}

// appliedModifier is a modifier handed to the sink and not yet removed.
type appliedModifier struct {
	combo     string
	modifier  model.AttributeModifier
	appliedAt int64
}

// actorState is the active combination set of one actor.
type actorState struct {
	mu sync.Mutex

	active    map[string]struct{}
	modifiers map[modifierKey]appliedModifier

	// change detection
	snapshot  map[model.ElementID]float64
	checkedAt int64
	checked   bool
}

func newActorState() *actorState {
	return &actorState{
		active:    make(map[string]struct{}),
		modifiers: make(map[modifierKey]appliedModifier),
	}
}

// modifierKey identifies one granted modifier. Both parts may contain ':'.
type modifierKey struct {
	combo     string
	attribute string
}

func (s *actorState) activeIDs() []string {
	ids := make([]string, 0, len(s.active))
	for id := range s.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// unchanged reports whether no tracked element moved more than threshold
// since the last check.
func (s *actorState) unchanged(elems model.ElementSnapshot, tracked []model.ElementID, threshold float64) bool {
	if !s.checked {
		return false
	}
	for _, id := range tracked {
		if math.Abs(elems.Value(id)-s.snapshot[id]) > threshold {
			return false
		}
	}
	return true
}

func (s *actorState) remember(elems model.ElementSnapshot, tracked []model.ElementID, now int64) {
	snap := make(map[model.ElementID]float64, len(tracked))
	for _, id := range tracked {
		snap[id] = elems.Value(id)
	}
	s.snapshot = snap
	s.checkedAt = now
	s.checked = true
}
